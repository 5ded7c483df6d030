// Collectives: Barrier, Bcast, Reduce, built from the two-phase Collect/Distribute
// walk over the binary tree of tree.go: fold upward, then propagate a single
// decision downward.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mesh

import "github.com/NVIDIA/rankmesh/wire"

// phaseBuf allocates a collective payload buffer: count data bytes plus one trailing
// status byte.
func phaseBuf(count int) []byte { return make([]byte, count+1) }

func statusOf(buf []byte) Retcode    { return Retcode(buf[len(buf)-1]) }
func setStatus(buf []byte, rc Retcode) { buf[len(buf)-1] = byte(rc) }

// collect folds contribution up the tree rooted at root using op, returning the
// root's fully-reduced buffer (valid only at root) and the merged status across
// every rank touched by the fold. Every non-root rank sends its own folded result to
// its parent; only the root retains the final reduced payload.
func (rt *Runtime) collect(root int, count int, contribution []byte, op Op) ([]byte, Retcode) {
	buf := phaseBuf(count)
	copy(buf[:count], contribution)
	setStatus(buf, Success)
	status := Success

	for _, child := range Children(rt.rank, root, rt.size) {
		recvBuf := phaseBuf(count)
		rc := rt.Recv(child, wire.TagGroup, recvBuf)
		status = mergeRetcode(status, rc)
		if rc == Success {
			status = mergeRetcode(status, statusOf(recvBuf))
			if statusOf(recvBuf) == Success {
				op(buf[:count], recvBuf[:count])
			}
		}
	}
	setStatus(buf, status)

	if parent, ok := Parent(rt.rank, root, rt.size); ok {
		rc := rt.Send(parent, wire.TagGroup, buf)
		status = mergeRetcode(status, rc)
	}
	return buf, status
}

// distribute propagates buf (valid at root) down the tree rooted at root, returning
// the copy each rank receives (root keeps its own) and the merged status.
func (rt *Runtime) distribute(root int, buf []byte, status Retcode) ([]byte, Retcode) {
	if parent, ok := Parent(rt.rank, root, rt.size); ok {
		recvBuf := phaseBuf(len(buf) - 1)
		rc := rt.Recv(parent, wire.TagGroup, recvBuf)
		status = mergeRetcode(status, rc)
		if rc == Success {
			buf = recvBuf
			status = mergeRetcode(status, statusOf(buf))
		}
	}
	setStatus(buf, status)

	for _, child := range Children(rt.rank, root, rt.size) {
		rc := rt.Send(child, wire.TagGroup, buf)
		status = mergeRetcode(status, rc)
	}
	setStatus(buf, status)
	return buf, status
}

// Barrier blocks until every rank in the group has called Barrier, via a
// control-only Collect/Distribute round-trip (root 0) carrying no payload.
func (rt *Runtime) Barrier() Retcode {
	buf, status := rt.collect(0, 0, nil, opNoop)
	_, status = rt.distribute(0, buf, status)
	return status
}

// Bcast sends buf's contents from root to every other rank, in place: non-root
// callers' buf is overwritten with the broadcast payload. An empty Collect runs
// first, so a failure anywhere in the group folds into the single status every
// rank's Distribute then carries.
func (rt *Runtime) Bcast(root int, buf []byte) Retcode {
	_, status := rt.collect(root, 0, nil, opNoop)

	phase := phaseBuf(len(buf))
	if rt.rank == root {
		copy(phase[:len(buf)], buf)
	}
	out, status := rt.distribute(root, phase, status)
	if rt.rank != root {
		copy(buf, out[:len(buf)])
	}
	return status
}

// Reduce combines each rank's contribution with op and delivers the result to root's
// out buffer; non-root ranks' out is left untouched. A trailing empty Distribute
// fans the merged status back out, so every rank returns the same Retcode even when
// the failure occurred in a subtree a given rank never folded through.
func (rt *Runtime) Reduce(root int, contribution []byte, out []byte, op Op) Retcode {
	buf, status := rt.collect(root, len(contribution), contribution, op)
	if rt.rank == root && status == Success {
		copy(out, buf[:len(contribution)])
	}
	_, status = rt.distribute(root, phaseBuf(0), status)
	return status
}
