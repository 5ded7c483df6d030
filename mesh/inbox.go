/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mesh

import "sync"

// entryKind is the closed set of inbox variants: a user MESSAGE, a
// REQUEST probe from the bound peer, CLOSE marking peer termination, and DEADLOCK, a
// variant kept for forward-compatible extension (a receiver task never produces it;
// Retrieve removes it and continues).
type entryKind int

const (
	kindMessage entryKind = iota
	kindRequest
	kindClose
	kindDeadlock
)

type inboxEntry struct {
	kind    entryKind
	tag     int32
	size    int
	payload []byte
}

// Inbox is the per-peer, single-writer/single-reader delivery queue.
// The bound receiver task is the sole writer (saveMessage/saveRequest/close); the
// user thread is the sole reader (Retrieve). It is realized as a mutex-guarded,
// unbounded append-only slice rather than a Go channel: an arbitrarily long run of
// unmatched Sends must accumulate without blocking the sender side, and a
// fixed-capacity chan cannot guarantee that (see DESIGN.md). A sync.Cond provides
// the blocking wait a channel would otherwise give for free.
type Inbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries []inboxEntry

	// outbox is this rank's own record of Sends to the SAME peer this inbox is bound
	// to. A REQUEST entry here means that peer is blocked waiting on a shape from us;
	// we resolve it by checking whether we've already sent a matching message.
	outbox            *Outbox
	deadlockDetection bool
}

// NewInbox binds an inbox to the outbox of the same peer.
func NewInbox(outbox *Outbox, deadlockDetection bool) *Inbox {
	ib := &Inbox{outbox: outbox, deadlockDetection: deadlockDetection}
	ib.cond = sync.NewCond(&ib.mu)
	return ib
}

// saveMessage enqueues a user MESSAGE entry. Called only by the bound receiver task.
func (ib *Inbox) saveMessage(tag int32, payload []byte) {
	ib.mu.Lock()
	ib.entries = append(ib.entries, inboxEntry{kind: kindMessage, tag: tag, size: len(payload), payload: payload})
	ib.cond.Broadcast()
	ib.mu.Unlock()
}

// saveRequest enqueues a REQUEST probe entry carrying the peer's pending-receive
// shape. Called only by the bound receiver task.
func (ib *Inbox) saveRequest(tag int32, size int) {
	ib.mu.Lock()
	ib.entries = append(ib.entries, inboxEntry{kind: kindRequest, tag: tag, size: size})
	ib.cond.Broadcast()
	ib.mu.Unlock()
}

// close enqueues the terminal CLOSE entry. Called only by the bound receiver task,
// which exits immediately after.
func (ib *Inbox) close() {
	ib.mu.Lock()
	ib.entries = append(ib.entries, inboxEntry{kind: kindClose})
	ib.cond.Broadcast()
	ib.mu.Unlock()
}

// Retrieve implements the selective-receive walk: scan from the
// head, matching MESSAGE entries by (size, tag) and skipping non-matching ones in
// place (they remain for a later, differently-shaped Retrieve); resolve REQUEST
// entries against this peer's own outbox as they're reached; treat CLOSE as terminal.
// Blocks until a matching MESSAGE or a terminal entry is available.
func (ib *Inbox) Retrieve(tag int32, size int, out []byte) Retcode {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	idx := 0
	for {
		for idx < len(ib.entries) {
			e := ib.entries[idx]
			switch e.kind {
			case kindClose:
				return RemoteFinished

			case kindDeadlock:
				ib.removeAt(idx)

			case kindRequest:
				if !ib.deadlockDetection {
					ib.removeAt(idx)
					continue
				}
				if ib.outbox.Pop(e.size, e.tag) {
					ib.removeAt(idx)
					continue
				}
				return DeadlockDetected

			case kindMessage:
				if e.size == size && tagsMatch(e.tag, tag) {
					copy(out, e.payload)
					ib.removeAt(idx)
					return Success
				}
				idx++
			}
		}
		ib.cond.Wait()
	}
}

// removeAt deletes the entry at idx in place, preserving order of the remaining
// entries. Callers that remove do not advance idx: the next entry has shifted into
// its place.
func (ib *Inbox) removeAt(idx int) {
	ib.entries = append(ib.entries[:idx], ib.entries[idx+1:]...)
}

// Len reports the number of entries currently queued, for housekeeping metrics.
func (ib *Inbox) Len() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return len(ib.entries)
}
