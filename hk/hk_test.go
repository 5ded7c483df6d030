package hk_test

import (
	"time"

	"github.com/NVIDIA/rankmesh/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Housekeeper", func() {
	It("invokes a registered job on its own schedule", func() {
		calls := make(chan struct{}, 8)
		hk.Reg("probe", func() time.Duration {
			calls <- struct{}{}
			return 10 * time.Millisecond
		}, time.Millisecond)

		Eventually(calls, 2*time.Second).Should(Receive())
		Eventually(calls, 2*time.Second).Should(Receive())

		hk.Unreg("probe")
	})

	It("stops calling a job once unregistered", func() {
		var n int
		hk.Reg("once", func() time.Duration {
			n++
			return time.Hour
		}, time.Millisecond)

		Eventually(func() int { return n }, time.Second).Should(BeNumerically(">=", 1))
		hk.Unreg("once")
		after := n
		time.Sleep(50 * time.Millisecond)
		Expect(n).To(Equal(after))
	})
})
