package eventqueue

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Synchronized", func() {
	var q *Synchronized[string, float64]

	BeforeEach(func() {
		q = NewSynchronized[string, float64](NewTreeQueue[string, float64](nil))
	})

	It("should forward to the wrapped queue", func() {
		h := q.Enqueue("a", 2)
		q.Enqueue("b", 1)
		q.Enqueue("c", 1)

		t, ok := q.PeekMin()
		Expect(ok).To(BeTrue())
		Expect(t).To(Equal(1.0))

		Expect(q.DequeueAllAtMin()).To(HaveLen(2))

		h, ok = q.Reschedule(h, 4)
		Expect(ok).To(BeTrue())
		Expect(q.Len()).To(Equal(1))

		Expect(q.Remove(h)).To(BeTrue())
		Expect(q.IsEmpty()).To(BeTrue())

		_, _, ok = q.DequeueMin()
		Expect(ok).To(BeFalse())
	})

	It("should report bucket stats only for bucket queues", func() {
		_, ok := q.BucketStats()
		Expect(ok).To(BeFalse())

		c := NewSynchronized[string, float64](
			NewCalendarQueue[string, float64](nil))
		c.Enqueue("a", 1)

		stats, ok := c.BucketStats()
		Expect(ok).To(BeTrue())
		Expect(stats.BucketCount).To(Equal(DefaultBucketCount))
		Expect(stats.InBuckets + stats.Overflow).To(Equal(1))
	})

	It("should accept concurrent producers", func() {
		var wg sync.WaitGroup
		for p := 0; p < 8; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					q.Enqueue("x", float64(p*500+i))
				}
			}(p)
		}
		wg.Wait()

		Expect(q.Len()).To(Equal(4000))

		last := -1.0
		for !q.IsEmpty() {
			_, t, _ := q.DequeueMin()
			Expect(t).To(BeNumerically(">", last))
			last = t
		}
	})

	It("should return an available event without waiting", func() {
		q.Enqueue("a", 1)

		evt, t, err := q.WaitMin(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(evt).To(Equal("a"))
		Expect(t).To(Equal(1.0))
	})

	It("should wake a waiter on enqueue", func() {
		got := make(chan string)
		go func() {
			defer GinkgoRecover()
			evt, _, err := q.WaitMin(context.Background())
			Expect(err).NotTo(HaveOccurred())
			got <- evt
		}()

		Consistently(got, 20*time.Millisecond).ShouldNot(Receive())

		q.Enqueue("late", 3)
		Eventually(got).Should(Receive(Equal("late")))
	})

	It("should stop waiting when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		errs := make(chan error)
		go func() {
			_, _, err := q.WaitMin(ctx)
			errs <- err
		}()

		cancel()
		Eventually(errs).Should(Receive(MatchError(context.Canceled)))
	})

	It("should release every waiter on shutdown", func() {
		errs := make(chan error, 3)
		for i := 0; i < 3; i++ {
			go func() {
				_, _, err := q.WaitMin(context.Background())
				errs <- err
			}()
		}

		q.Shutdown()
		q.Shutdown()

		for i := 0; i < 3; i++ {
			Eventually(errs).Should(Receive(MatchError(ErrShutdown)))
		}

		_, _, err := q.WaitMin(context.Background())
		Expect(err).To(MatchError(ErrShutdown))
	})
})

var _ = Describe("Synchronized waiting", func() {
	It("should not consume the entry while waiting", func() {
		q := NewSynchronized[string, float64](NewSortedQueue[string, float64](nil))

		done := make(chan error)
		go func() {
			done <- q.Wait(context.Background())
		}()

		q.Enqueue("a", 1)
		Eventually(done).Should(Receive(BeNil()))
		Expect(q.Len()).To(Equal(1))
	})
})
