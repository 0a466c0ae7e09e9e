package eventqueue

// Default layout of the bucket strategies.
const (
	DefaultBucketCount       = 16
	DefaultBucketWidth       = 1.0
	DefaultCalendarLower     = 0.5
	DefaultCalendarUpper     = 2.0
	DefaultTwoListLower      = 0.25
	DefaultTwoListUpper      = 8.0
	DefaultTwoListBucketSize = 64
)

// CalendarQueue is an adaptive calendar queue. Enqueue and DequeueMin cost
// amortized O(1) when event times are roughly uniform over a moving
// horizon.
//
// The bucket count grows and shrinks with the number of entries and the
// bucket width follows the recent separation of dequeued events. When the
// moving average of entries per bucket leaves [lower, upper], or the
// overflow outgrows the buckets, the queue rebuilds itself, but never more
// often than once per Θ(n) operations.
type CalendarQueue[E any, T Time] struct {
	*bucketQueue[E, T]
}

// NewCalendarQueue creates an empty CalendarQueue with the default layout.
func NewCalendarQueue[E any, T Time](tb TieBreaker) *CalendarQueue[E, T] {
	return newCalendarQueue[E, T](bucketConfig{
		bucketCount: DefaultBucketCount,
		width:       DefaultBucketWidth,
		lower:       DefaultCalendarLower,
		upper:       DefaultCalendarUpper,
		tieBreaker:  tb,
	})
}

func newCalendarQueue[E any, T Time](c bucketConfig) *CalendarQueue[E, T] {
	c.adaptiveCount = true
	c.overflowLinked = false
	c.rebalanceOverflow = true

	return &CalendarQueue[E, T]{bucketQueue: newBucketQueue[E, T](c)}
}
