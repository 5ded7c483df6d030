// End-to-end scenarios against real mesh.Runtimes wired with os.Pipe, covering six
// walkthroughs: point-to-point delivery, deadlock detection, peer termination, and
// the three collectives. Ginkgo/gomega drives goroutine-backed components via real
// pipes rather than mocks.
package mesh_test

import (
	"os"
	"time"

	"github.com/NVIDIA/rankmesh/mesh"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
)

// buildGroup wires size in-process ranks with a full os.Pipe mesh and starts each
// one's Runtime with a private registry, so specs can run concurrently without
// colliding on prometheus.DefaultRegisterer.
func buildGroup(size int, deadlockDetection bool) []*mesh.Runtime {
	return buildGroupWith(size, deadlockDetection, false)
}

func buildGroupWith(size int, deadlockDetection, compression bool) []*mesh.Runtime {
	conns := make([][]mesh.Conn, size)
	for r := range conns {
		conns[r] = make([]mesh.Conn, size)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i == j {
				continue
			}
			r, w, err := os.Pipe()
			Expect(err).NotTo(HaveOccurred())
			conns[j][i].Reader = r
			conns[i][j].Writer = w
		}
	}

	runtimes := make([]*mesh.Runtime, size)
	for r := 0; r < size; r++ {
		rt, err := mesh.Init(r, size, conns[r], deadlockDetection, compression, prometheus.NewRegistry())
		Expect(err).NotTo(HaveOccurred())
		runtimes[r] = rt
	}
	return runtimes
}

var _ = Describe("point-to-point", func() {
	It("delivers sends from the same peer in FIFO order even when tags differ", func() {
		rt := buildGroup(2, false)
		defer func() {
			rt[0].Finalize()
			rt[1].Finalize()
		}()

		done := make(chan struct{})
		go func() {
			defer close(done)
			Expect(rt[0].Send(1, 5, []byte("first"))).To(Equal(mesh.Success))
			Expect(rt[0].Send(1, 9, []byte("second"))).To(Equal(mesh.Success))
		}()
		Eventually(done, time.Second).Should(BeClosed())

		buf1 := make([]byte, len("first"))
		Expect(rt[1].Recv(0, mesh.AnyTag, buf1)).To(Equal(mesh.Success))
		Expect(string(buf1)).To(Equal("first"))

		buf2 := make([]byte, len("second"))
		Expect(rt[1].Recv(0, mesh.AnyTag, buf2)).To(Equal(mesh.Success))
		Expect(string(buf2)).To(Equal("second"))
	})

	It("lets a later Recv skip past an earlier unmatched message by tag", func() {
		rt := buildGroup(2, false)
		defer func() {
			rt[0].Finalize()
			rt[1].Finalize()
		}()

		go func() {
			Expect(rt[0].Send(1, 1, []byte("aaa"))).To(Equal(mesh.Success))
			Expect(rt[0].Send(1, 2, []byte("bb"))).To(Equal(mesh.Success))
		}()

		out2 := make([]byte, 2)
		Eventually(func() mesh.Retcode { return rt[1].Recv(0, 2, out2) }, time.Second).Should(Equal(mesh.Success))
		Expect(string(out2)).To(Equal("bb"))

		out1 := make([]byte, 3)
		Expect(rt[1].Recv(0, 1, out1)).To(Equal(mesh.Success))
		Expect(string(out1)).To(Equal("aaa"))
	})

	It("rejects self-send and self-recv without touching the connection", func() {
		rt := buildGroup(2, false)
		defer func() {
			rt[0].Finalize()
			rt[1].Finalize()
		}()
		Expect(rt[0].Send(0, 1, []byte("x"))).To(Equal(mesh.AttemptedSelfOp))
		Expect(rt[0].Recv(0, 1, make([]byte, 1))).To(Equal(mesh.AttemptedSelfOp))
	})

	It("rejects an out-of-range peer as NO_SUCH_RANK", func() {
		rt := buildGroup(2, false)
		defer func() {
			rt[0].Finalize()
			rt[1].Finalize()
		}()
		Expect(rt[0].Send(7, 1, []byte("x"))).To(Equal(mesh.NoSuchRank))
	})

	It("delivers a remainder-sized payload correctly with compression enabled", func() {
		rt := buildGroupWith(2, false, true)
		defer func() {
			rt[0].Finalize()
			rt[1].Finalize()
		}()

		payload := make([]byte, 8*1024)
		for i := range payload {
			payload[i] = byte(i)
		}
		go func() {
			Expect(rt[0].Send(1, 1, payload)).To(Equal(mesh.Success))
		}()

		out := make([]byte, len(payload))
		Eventually(func() mesh.Retcode { return rt[1].Recv(0, 1, out) }, time.Second).Should(Equal(mesh.Success))
		Expect(out).To(Equal(payload))
	})
})

var _ = Describe("deadlock detection", func() {
	It("reports DEADLOCK_DETECTED on both sides of a mutual wait", func() {
		rt := buildGroup(2, true)

		var rc0, rc1 mesh.Retcode
		done := make(chan struct{})
		go func() {
			defer close(done)
			rc1 = rt[1].Recv(0, 1, make([]byte, 1))
		}()
		rc0 = rt[0].Recv(1, 1, make([]byte, 1))
		Eventually(done, 2*time.Second).Should(BeClosed())

		Expect(rc0).To(Equal(mesh.DeadlockDetected))
		Expect(rc1).To(Equal(mesh.DeadlockDetected))

		rt[0].Finalize()
		rt[1].Finalize()
	})

	It("does not false-positive when a matching send is already in flight", func() {
		rt := buildGroup(2, true)
		defer func() {
			rt[0].Finalize()
			rt[1].Finalize()
		}()

		Expect(rt[0].Send(1, 1, []byte("x"))).To(Equal(mesh.Success))
		out := make([]byte, 1)
		Expect(rt[1].Recv(0, 1, out)).To(Equal(mesh.Success))
	})
})

var _ = Describe("peer termination", func() {
	It("reports REMOTE_FINISHED to a blocked Recv once the peer finalizes", func() {
		rt := buildGroup(2, false)
		defer rt[1].Finalize()

		done := make(chan mesh.Retcode, 1)
		go func() { done <- rt[1].Recv(0, 1, make([]byte, 1)) }()

		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
		Expect(rt[0].Finalize()).To(Succeed())
		Eventually(done, 2*time.Second).Should(Receive(Equal(mesh.RemoteFinished)))
	})
})

var _ = Describe("collectives", func() {
	It("releases every rank from Barrier only once all have called it", func() {
		const n = 4
		rts := buildGroup(n, false)
		defer func() {
			for _, rt := range rts {
				rt.Finalize()
			}
		}()

		results := make(chan mesh.Retcode, n)
		for _, rt := range rts {
			go func(rt *mesh.Runtime) { results <- rt.Barrier() }(rt)
		}
		for i := 0; i < n; i++ {
			Eventually(results, 2*time.Second).Should(Receive(Equal(mesh.Success)))
		}
	})

	It("broadcasts root's payload to every rank", func() {
		const n = 5
		rts := buildGroup(n, false)
		defer func() {
			for _, rt := range rts {
				rt.Finalize()
			}
		}()

		type result struct {
			rank int
			rc   mesh.Retcode
			buf  []byte
		}
		results := make(chan result, n)
		for _, rt := range rts {
			go func(rt *mesh.Runtime) {
				buf := make([]byte, 3)
				if rt.Rank() == 0 {
					copy(buf, []byte{1, 2, 3})
				}
				rc := rt.Bcast(0, buf)
				results <- result{rank: rt.Rank(), rc: rc, buf: buf}
			}(rt)
		}
		for i := 0; i < n; i++ {
			var res result
			Eventually(results, 2*time.Second).Should(Receive(&res))
			Expect(res.rc).To(Equal(mesh.Success))
			Expect(res.buf).To(Equal([]byte{1, 2, 3}))
		}
	})

	It("reduces each rank's contribution with SUM onto root", func() {
		const n = 4
		rts := buildGroup(n, false)
		defer func() {
			for _, rt := range rts {
				rt.Finalize()
			}
		}()

		results := make(chan byte, n)
		for _, rt := range rts {
			go func(rt *mesh.Runtime) {
				contribution := []byte{1}
				out := make([]byte, 1)
				rc := rt.Reduce(0, contribution, out, mesh.OpSum)
				Expect(rc).To(Equal(mesh.Success))
				if rt.Rank() == 0 {
					results <- out[0]
				} else {
					results <- 0
				}
			}(rt)
		}
		var got byte
		for i := 0; i < n; i++ {
			var v byte
			Eventually(results, 2*time.Second).Should(Receive(&v))
			if v != 0 {
				got = v
			}
		}
		Expect(got).To(Equal(byte(n))) // each of n ranks contributes 1
	})
})
