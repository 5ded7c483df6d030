// Point-to-point Send/Recv.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mesh

import "github.com/NVIDIA/rankmesh/wire"

// Send transmits payload to dest tagged tag. Self-sends and out-of-range ranks are
// rejected without touching the connection.
func (rt *Runtime) Send(dest int, tag int32, payload []byte) Retcode {
	if dest == rt.rank {
		return AttemptedSelfOp
	}
	if dest < 0 || dest >= rt.size {
		return NoSuchRank
	}
	if err := wire.Encode(rt.writers[dest], tag, payload, rt.compression); err != nil {
		return RemoteFinished
	}
	if rt.deadlockDetection {
		rt.outboxes[dest].Push(tag, len(payload))
	}
	if rt.metrics != nil {
		rt.metrics.MessagesSent.Inc()
		rt.metrics.BytesSent.Add(float64(len(payload)))
	}
	return Success
}

// Recv blocks until a message from src matching (tag, len(out)) is delivered into
// out, src's connection closes, or — when deadlock detection is enabled — a mutual
// block with src is discovered. Self-receives and out-of-range ranks are rejected
// without emitting a probe.
func (rt *Runtime) Recv(src int, tag int32, out []byte) Retcode {
	if src == rt.rank {
		return AttemptedSelfOp
	}
	if src < 0 || src >= rt.size {
		return NoSuchRank
	}
	if rt.deadlockDetection {
		probe := wire.EncodeRequest(tag, uint32(len(out)))
		if err := wire.Encode(rt.writers[src], wire.TagRequest, probe, rt.compression); err != nil {
			return RemoteFinished
		}
	}
	rc := rt.inboxes[src].Retrieve(tag, len(out), out)
	if rt.metrics != nil {
		switch rc {
		case Success:
			rt.metrics.MessagesRecv.Inc()
			rt.metrics.BytesRecv.Add(float64(len(out)))
		case DeadlockDetected:
			rt.metrics.DeadlocksFound.Inc()
		}
	}
	return rc
}
