// Lifecycle: Init/Finalize and the well-known fd placement contract a launched
// process relies on: bring up N peer connections, tear them all down cleanly,
// against rankmesh's fixed, launcher-provided group rather than a dynamic cluster
// membership.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mesh

import (
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/NVIDIA/rankmesh/cmn/cos"
	"github.com/NVIDIA/rankmesh/cmn/nlog"
	"github.com/NVIDIA/rankmesh/hk"
	"github.com/NVIDIA/rankmesh/mesh/metrics"
	"github.com/NVIDIA/rankmesh/wire"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// ReaderBaseFD and WriterBaseFD are the well-known descriptor numbers the launcher
// places peer pipe ends at: rank r's reader for peer p sits at
// ReaderBaseFD+p, its writer for peer p at WriterBaseFD+p. Self-indexed slots are
// never opened.
const (
	ReaderBaseFD = 64
	WriterBaseFD = 64 + MaxGroupSize
)

// MaxGroupSize bounds the well-known fd window; InitFromEnv rejects a SIZE larger
// than this.
const MaxGroupSize = 256

// hkRunOnce starts hk.DefaultHK's Run loop the first time Init registers a job.
var hkRunOnce sync.Once

// Runtime is one rank's live handle onto the group: connections, per-peer
// inboxes/outboxes, and the receiver tasks reading them.
type Runtime struct {
	rank, size        int
	deadlockDetection bool
	compression       bool

	writers  []io.Writer
	closers  []io.Closer
	inboxes  []*Inbox
	outboxes []*Outbox

	group   *errgroup.Group
	metrics *metrics.Set
}

// Init brings up the runtime for a fixed-size group: it wires one Inbox/Outbox pair
// per remote peer, starts that peer's receiver task, and — if reg is non-nil —
// registers Prometheus counters and a housekeeping job that logs queue depth.
// conns must be indexed by rank, with conns[rank] left zero-valued (no self-loop).
// compression must agree across every rank in the group: it gates whether Send/Recv
// and Finalize's CLOSE frames lz4-compress their out-of-line remainder bytes.
func Init(rank, size int, conns []Conn, deadlockDetection, compression bool, reg prometheus.Registerer) (*Runtime, error) {
	if rank < 0 || rank >= size {
		return nil, errors.Errorf("mesh: rank %d out of range for size %d", rank, size)
	}
	if len(conns) != size {
		return nil, errors.Errorf("mesh: expected %d connections, got %d", size, len(conns))
	}

	rt := &Runtime{
		rank:              rank,
		size:              size,
		deadlockDetection: deadlockDetection,
		compression:       compression,
		writers:           make([]io.Writer, size),
		inboxes:           make([]*Inbox, size),
		outboxes:          make([]*Outbox, size),
		group:             &errgroup.Group{},
	}
	if reg != nil {
		rt.metrics = metrics.NewSet(reg, rank)
	}

	for p := 0; p < size; p++ {
		if p == rank {
			continue
		}
		outbox := NewOutbox()
		inbox := NewInbox(outbox, deadlockDetection)
		rt.writers[p] = conns[p].Writer
		rt.outboxes[p] = outbox
		rt.inboxes[p] = inbox
		if c, ok := conns[p].Reader.(io.Closer); ok {
			rt.closers = append(rt.closers, c)
		}
		if c, ok := conns[p].Writer.(io.Closer); ok {
			rt.closers = append(rt.closers, c)
		}

		peer, r, ib := p, conns[p].Reader, inbox
		rt.group.Go(func() error {
			return (&receiver{peer: peer, conn: r, inbox: ib, compress: compression}).run()
		})
	}

	if reg != nil {
		hkRunOnce.Do(func() { go hk.Run() })
		hk.Reg("rankmesh-queue-depth"+hk.NameSuffix, rt.logQueueDepths, 30*time.Second)
	}
	nlog.Infof("mesh: rank %d/%d initialized (deadlock detection=%v, compression=%v)",
		rank, size, deadlockDetection, compression)
	return rt, nil
}

// Rank returns this process's rank in the group.
func (rt *Runtime) Rank() int { return rt.rank }

// Size returns the group's fixed size.
func (rt *Runtime) Size() int { return rt.size }

func (rt *Runtime) logQueueDepths() time.Duration {
	for p, ib := range rt.inboxes {
		if ib == nil {
			continue
		}
		depth := ib.Len()
		if rt.metrics != nil {
			rt.metrics.QueueDepth.WithLabelValues(strconv.Itoa(p)).Set(float64(depth))
		}
		if depth > 0 {
			nlog.Infof("mesh: rank %d: peer %d inbox depth=%d", rt.rank, p, depth)
		}
	}
	return 30 * time.Second
}

// Finalize sends CLOSE to every peer, waits for all receiver tasks to observe either
// that CLOSE or their own connection's closure, and releases the underlying fds. It
// aggregates, rather than stops at, the first failure: Finalize sits outside the
// Retcode contract, so it reports diagnostics through a plain error instead.
func (rt *Runtime) Finalize() error {
	hk.Unreg("rankmesh-queue-depth" + hk.NameSuffix)

	var errs cos.Errs
	for p := 0; p < rt.size; p++ {
		if p == rt.rank {
			continue
		}
		if err := wire.Encode(rt.writers[p], wire.TagClose, nil, rt.compression); err != nil {
			errs.Add(errors.Wrapf(err, "mesh: close peer %d", p))
		}
	}
	// Closing our own fds — not waiting on the peer's CLOSE — is what unblocks our
	// receiver tasks: each one's blocked wire.Decode read errors out once its reader
	// fd is closed locally, regardless of whether the peer has finalized yet.
	for _, c := range rt.closers {
		if err := c.Close(); err != nil {
			errs.Add(errors.Wrap(err, "mesh: close fd"))
		}
	}
	if err := rt.group.Wait(); err != nil {
		errs.Add(err)
	}
	if cnt, err := errs.JoinErr(); cnt > 0 {
		return err
	}
	return nil
}

// InitFromEnv reads RANK and SIZE from the environment and opens the well-known fds
// the launcher placed.
func InitFromEnv(deadlockDetection, compression bool, reg prometheus.Registerer) (*Runtime, error) {
	rank, err := strconv.Atoi(os.Getenv("RANK"))
	if err != nil {
		return nil, errors.Wrap(err, "mesh: invalid RANK")
	}
	size, err := strconv.Atoi(os.Getenv("SIZE"))
	if err != nil {
		return nil, errors.Wrap(err, "mesh: invalid SIZE")
	}
	if size > MaxGroupSize {
		return nil, errors.Errorf("mesh: group size %d exceeds MaxGroupSize %d", size, MaxGroupSize)
	}

	conns := make([]Conn, size)
	for p := 0; p < size; p++ {
		if p == rank {
			continue
		}
		conns[p] = Conn{
			Reader: os.NewFile(uintptr(ReaderBaseFD+p), "mesh-reader-"+strconv.Itoa(p)),
			Writer: os.NewFile(uintptr(WriterBaseFD+p), "mesh-writer-"+strconv.Itoa(p)),
		}
	}
	return Init(rank, size, conns, deadlockDetection, compression, reg)
}
