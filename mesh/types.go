// Package mesh is rankmesh's per-rank communication runtime: outboxes, inboxes,
// per-peer receiver goroutines, point-to-point send/recv, tree topology, and the
// collective algorithms built on top of them.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mesh

import (
	"io"

	"github.com/NVIDIA/rankmesh/wire"
)

// Retcode is the result value returned by every runtime API call. It is
// embedded as a single trailing byte in every collective payload, so its width and
// ordering below double as the wire encoding collectives append to the buffer.
type Retcode byte

const (
	Success Retcode = iota
	NoSuchRank
	AttemptedSelfOp
	RemoteFinished
	DeadlockDetected
)

func (rc Retcode) String() string {
	switch rc {
	case Success:
		return "SUCCESS"
	case NoSuchRank:
		return "NO_SUCH_RANK"
	case AttemptedSelfOp:
		return "ATTEMPTED_SELF_OP"
	case RemoteFinished:
		return "REMOTE_FINISHED"
	case DeadlockDetected:
		return "DEADLOCK_DETECTED"
	default:
		return "UNKNOWN_RETCODE"
	}
}

// priority ranks Retcodes for the merge rule: higher wins, ties keep
// the incumbent.
func (rc Retcode) priority() int {
	switch rc {
	case NoSuchRank:
		return 4
	case AttemptedSelfOp:
		return 3
	case RemoteFinished:
		return 2
	case DeadlockDetected:
		return 1
	default: // Success
		return 0
	}
}

// mergeRetcode folds an incoming code into a running one per the retcode-merge
// priority: the first non-SUCCESS code (by priority) wins; ties keep
// the incumbent.
func mergeRetcode(incumbent, incoming Retcode) Retcode {
	if incoming.priority() > incumbent.priority() {
		return incoming
	}
	return incumbent
}

// AnyTag is the wildcard tag ("any"), matching any tag at either end.
const AnyTag = wire.TagAny

// tagsMatch implements the probe-match / receive-match rule common to outbox
// matching and inbox retrieval: equal, or either side is the wildcard.
func tagsMatch(a, b int32) bool {
	return a == AnyTag || b == AnyTag || a == b
}

// Conn is one peer's pair of byte-stream endpoints: a reader bound to that peer's
// receiver task, and a writer used directly by Send/Recv/collectives. rankmesh
// treats blocking read/write on it as a given primitive, whether backed by a real
// pipe fd (cmd/launcher) or an os.Pipe (tests).
type Conn struct {
	Reader io.Reader
	Writer io.Writer
}

// Op is a reduction operator: merges src elementwise into dst, byte-wise.
// len(dst) == len(src) is guaranteed by the caller.
type Op func(dst, src []byte)

// OpMax, OpMin, OpSum, OpProd act on unsigned 8-bit lanes; Sum and Prod wrap on
// overflow (Reduce with SUM over N ranks each contributing byte b yields (N*b) mod
// 256 per lane).
var (
	OpMax  Op = func(dst, src []byte) { byteOp(dst, src, func(a, b byte) byte { return max(a, b) }) }
	OpMin  Op = func(dst, src []byte) { byteOp(dst, src, func(a, b byte) byte { return min(a, b) }) }
	OpSum  Op = func(dst, src []byte) { byteOp(dst, src, func(a, b byte) byte { return a + b }) }
	OpProd Op = func(dst, src []byte) { byteOp(dst, src, func(a, b byte) byte { return a * b }) }

	// opNoop is the identity for control-only collectives (Barrier, Bcast): it never
	// reads the payload, since those collectives carry no user data through Collect.
	opNoop Op = func(dst, src []byte) {}
)

func byteOp(dst, src []byte, f func(a, b byte) byte) {
	for i := range dst {
		dst[i] = f(dst[i], src[i])
	}
}

func max(a, b byte) byte {
	if a > b {
		return a
	}
	return b
}

func min(a, b byte) byte {
	if a < b {
		return a
	}
	return b
}
