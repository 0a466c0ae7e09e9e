package eventqueue

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Builder", func() {
	It("should build a tree queue by default", func() {
		q := Build[string, float64](MakeBuilder())

		Expect(q).To(BeAssignableToTypeOf(&TreeQueue[string, float64]{}))
	})

	It("should build every strategy", func() {
		b := MakeBuilder().WithCapacity(16)

		Expect(Build[string, float64](b.WithStrategy(StrategySorted))).
			To(BeAssignableToTypeOf(&SortedQueue[string, float64]{}))
		Expect(Build[string, float64](b.WithStrategy(StrategyHeap))).
			To(BeAssignableToTypeOf(&HeapQueue[string, float64]{}))
		Expect(Build[string, float64](b.WithStrategy(StrategyCalendar))).
			To(BeAssignableToTypeOf(&CalendarQueue[string, float64]{}))
		Expect(Build[string, float64](b.WithStrategy(StrategyTwoList))).
			To(BeAssignableToTypeOf(&TwoListQueue[string, float64]{}))
	})

	It("should apply the bucket layout", func() {
		q := Build[string, float64](MakeBuilder().
			WithStrategy(StrategyTwoList).
			WithBucketCount(8).
			WithBucketWidth(0.25))

		stats := q.(*TwoListQueue[string, float64]).Stats()
		Expect(stats.BucketCount).To(Equal(8))
		Expect(stats.Width).To(Equal(0.25))
	})

	DescribeTable("should fail fast on invalid configuration",
		func(b Builder) {
			Expect(func() { Build[string, float64](b) }).To(Panic())
		},
		Entry("zero width",
			MakeBuilder().WithStrategy(StrategyCalendar).WithBucketWidth(0)),
		Entry("negative width",
			MakeBuilder().WithStrategy(StrategyTwoList).WithBucketWidth(-1)),
		Entry("zero bucket count",
			MakeBuilder().WithStrategy(StrategyCalendar).WithBucketCount(0)),
		Entry("negative bucket count",
			MakeBuilder().WithStrategy(StrategyTwoList).WithBucketCount(-4)),
		Entry("inverted thresholds",
			MakeBuilder().WithStrategy(StrategyCalendar).
				WithRebuildThresholds(3, 1)),
		Entry("negative capacity", MakeBuilder().WithCapacity(-1)),
		Entry("unknown strategy", MakeBuilder().WithStrategy(Strategy(99))),
	)

	It("should parse strategy names", func() {
		for _, s := range Strategies() {
			parsed, err := ParseStrategy(s.String())
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(s))
		}

		parsed, err := ParseStrategy("Calendar")
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(StrategyCalendar))

		_, err = ParseStrategy("splay")
		Expect(err).To(MatchError(ContainSubstring("splay")))
	})

	It("should name unknown strategies", func() {
		Expect(Strategy(99).String()).To(Equal("Strategy(99)"))
	})
})
