package eventqueue

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/eventq/sim/hooking"
)

var _ = Describe("CalendarQueue", func() {
	var (
		q       *CalendarQueue[int, float64]
		counter *hooking.PosCounter
	)

	BeforeEach(func() {
		q = NewCalendarQueue[int, float64](FIFO())
		counter = hooking.NewPosCounter()
		q.AcceptHook(counter)
	})

	It("should rebuild when buckets get crowded", func() {
		r := rand.New(rand.NewSource(3))
		for i := 0; i < 1000; i++ {
			q.Enqueue(i, r.Float64()*0.5)
		}

		stats := q.Stats()
		Expect(stats.Rebuilds).To(BeNumerically(">", 0))
		Expect(stats.BucketCount).To(BeNumerically(">", DefaultBucketCount))
		Expect(stats.Width).To(BeNumerically("<", DefaultBucketWidth))
		Expect(counter.Count(HookPosRebuild)).To(
			Equal(uint64(stats.Rebuilds)))
	})

	It("should keep every entry on a forced rebuild", func() {
		reference := NewSortedQueue[int, float64](FIFO())
		r := rand.New(rand.NewSource(4))

		var handles []Handle
		for i := 0; i < 500; i++ {
			t := r.Float64() * 1000
			handles = append(handles, q.Enqueue(i, t))
			reference.Enqueue(i, t)
		}

		for i := 0; i < 500; i += 5 {
			Expect(q.Remove(handles[i])).To(BeTrue())
			Expect(reference.Remove(handles[i])).To(BeTrue())
		}

		before := q.Stats().Rebuilds
		q.Rebuild()

		stats := q.Stats()
		Expect(stats.Rebuilds).To(Equal(before + 1))
		Expect(q.Len()).To(Equal(400))
		Expect(stats.InBuckets + stats.Overflow).To(Equal(400))

		for !reference.IsEmpty() {
			wantEvt, wantTime, _ := reference.DequeueMin()
			evt, t, ok := q.DequeueMin()
			Expect(ok).To(BeTrue())
			Expect(evt).To(Equal(wantEvt))
			Expect(t).To(Equal(wantTime))
		}
		Expect(q.IsEmpty()).To(BeTrue())
	})

	It("should never move the base backward", func() {
		r := rand.New(rand.NewSource(5))
		for i := 0; i < 200; i++ {
			q.Enqueue(i, r.Float64()*2)
		}

		base := q.Stats().Base
		for i := 0; i < 20000; i++ {
			_, now, ok := q.DequeueMin()
			Expect(ok).To(BeTrue())

			q.Enqueue(i, now+r.ExpFloat64())

			next := q.Stats().Base
			Expect(next).To(BeNumerically(">=", base))
			base = next
		}
	})

	It("should use the width estimator", func() {
		q = newCalendarQueue[int, float64](bucketConfig{
			bucketCount: 4,
			width:       1,
			lower:       DefaultCalendarLower,
			upper:       DefaultCalendarUpper,
			estimator: WidthEstimatorFunc(func(s WidthSample) float64 {
				return s.Current / 2
			}),
		})
		q.Enqueue(1, 1)

		q.Rebuild()
		Expect(q.Stats().Width).To(Equal(0.5))
	})

	It("should ignore unusable widths", func() {
		q = newCalendarQueue[int, float64](bucketConfig{
			bucketCount: 4,
			width:       2,
			lower:       DefaultCalendarLower,
			upper:       DefaultCalendarUpper,
			estimator: WidthEstimatorFunc(func(WidthSample) float64 {
				return -1
			}),
		})
		q.Enqueue(1, 1)

		q.Rebuild()
		Expect(q.Stats().Width).To(Equal(2.0))
	})

	It("should report an empty layout", func() {
		stats := q.Stats()

		Expect(stats.BucketCount).To(Equal(DefaultBucketCount))
		Expect(stats.Width).To(Equal(DefaultBucketWidth))
		Expect(stats.InBuckets).To(Equal(0))
		Expect(stats.Overflow).To(Equal(0))
	})
})

var _ = Describe("TwoListQueue", func() {
	var q *TwoListQueue[string, float64]

	BeforeEach(func() {
		q = newTwoListQueue[string, float64](bucketConfig{
			bucketCount: 4,
			width:       1,
			lower:       DefaultTwoListLower,
			upper:       DefaultTwoListUpper,
		})
	})

	It("should keep far entries in the far list", func() {
		q.Enqueue("near", 0.5)
		q.Enqueue("far", 100)
		q.Enqueue("farther", 200)

		Expect(q.FarLen()).To(Equal(2))
		Expect(q.Stats().InBuckets).To(Equal(1))

		evt, _, _ := q.DequeueMin()
		Expect(evt).To(Equal("near"))

		evt, t, _ := q.DequeueMin()
		Expect(evt).To(Equal("far"))
		Expect(t).To(Equal(100.0))
		Expect(q.FarLen()).To(Equal(1))

		evt, _, _ = q.DequeueMin()
		Expect(evt).To(Equal("farther"))
		Expect(q.FarLen()).To(Equal(0))
	})

	It("should migrate entries as the horizon passes them", func() {
		for i := 0; i < 12; i++ {
			q.Enqueue("x", float64(i))
		}
		Expect(q.FarLen()).To(Equal(8))

		for i := 0; i < 12; i++ {
			_, t, ok := q.DequeueMin()
			Expect(ok).To(BeTrue())
			Expect(t).To(Equal(float64(i)))
		}
		Expect(q.FarLen()).To(Equal(0))
	})

	It("should remove far entries", func() {
		q.Enqueue("near", 1)
		h := q.Enqueue("far", 50)
		q.Enqueue("farther", 60)

		Expect(q.Remove(h)).To(BeTrue())
		Expect(q.FarLen()).To(Equal(1))

		t, ok := q.PeekMin()
		Expect(ok).To(BeTrue())
		Expect(t).To(Equal(1.0))

		q.DequeueMin()
		t, _ = q.PeekMin()
		Expect(t).To(Equal(60.0))
	})

	It("should keep its bucket count on rebuild", func() {
		for i := 0; i < 300; i++ {
			q.Enqueue("x", float64(i)/10)
		}

		q.Rebuild()
		Expect(q.Stats().BucketCount).To(Equal(4))
		Expect(q.Len()).To(Equal(300))
	})
})

var _ = Describe("GapEstimator", func() {
	It("should ignore outlying gaps", func() {
		w := GapEstimator{}.EstimateWidth(WidthSample{
			Gaps: []float64{1, 1, 1, 10},
		})

		Expect(w).To(BeNumerically("~", 3.0, 1e-9))
	})

	It("should fall back to the spread of the entries", func() {
		w := GapEstimator{}.EstimateWidth(WidthSample{
			Count:   5,
			MinTime: 0,
			MaxTime: 8,
		})

		Expect(w).To(BeNumerically("~", 6.0, 1e-9))
	})

	It("should keep the current width without information", func() {
		w := GapEstimator{}.EstimateWidth(WidthSample{
			Count:   1,
			Current: 0.7,
		})

		Expect(w).To(Equal(0.7))
	})
})
