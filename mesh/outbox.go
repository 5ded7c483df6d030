/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mesh

// outboxEntry records one Send to a peer that hasn't yet been accounted for by a
// matching REQUEST probe.
type outboxEntry struct {
	tag  int32
	size int
}

// Outbox is the per-peer record of in-flight Sends, consulted only when a REQUEST
// probe arrives on the matching Inbox for the same peer. It is touched only by the
// user thread — Push from Send, Pop from the retrieval path handling a REQUEST
// entry — so it needs no locking of its own.
type Outbox struct {
	entries []outboxEntry
}

// NewOutbox returns an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Push records a completed Send of the given shape.
func (ob *Outbox) Push(tag int32, size int) {
	ob.entries = append(ob.entries, outboxEntry{tag: tag, size: size})
}

// Pop removes and reports whether any recorded entry matches (size, tag) under the
// probe-match rule: sizes equal, and tags equal or either is the wildcard. Scan
// order doesn't affect correctness — only existence of a match matters — so entries
// are scanned most-recently-pushed first and removed by swap-with-last.
func (ob *Outbox) Pop(size int, tag int32) bool {
	for i := len(ob.entries) - 1; i >= 0; i-- {
		e := ob.entries[i]
		if e.size == size && tagsMatch(e.tag, tag) {
			last := len(ob.entries) - 1
			ob.entries[i] = ob.entries[last]
			ob.entries = ob.entries[:last]
			return true
		}
	}
	return false
}

// Len reports the number of unmatched outstanding sends, for housekeeping metrics.
func (ob *Outbox) Len() int {
	return len(ob.entries)
}
