package eventqueue

// TwoListQueue keeps a small, fixed ring of buckets for the near future and
// a linked list for everything beyond it. It suits schedules with a long
// tail, such as rare timeouts far in the future, without allocating a large
// and mostly empty bucket array.
//
// Far entries move into the ring as the horizon passes their time. Only the
// bucket width adapts on rebuild; the number of buckets stays as
// configured.
type TwoListQueue[E any, T Time] struct {
	*bucketQueue[E, T]
}

// NewTwoListQueue creates an empty TwoListQueue with the default layout.
func NewTwoListQueue[E any, T Time](tb TieBreaker) *TwoListQueue[E, T] {
	return newTwoListQueue[E, T](bucketConfig{
		bucketCount: DefaultTwoListBucketSize,
		width:       DefaultBucketWidth,
		lower:       DefaultTwoListLower,
		upper:       DefaultTwoListUpper,
		tieBreaker:  tb,
	})
}

func newTwoListQueue[E any, T Time](c bucketConfig) *TwoListQueue[E, T] {
	c.adaptiveCount = false
	c.overflowLinked = true
	c.rebalanceOverflow = false

	return &TwoListQueue[E, T]{bucketQueue: newBucketQueue[E, T](c)}
}

// FarLen returns the number of entries waiting beyond the near horizon.
func (q *TwoListQueue[E, T]) FarLen() int {
	return q.overflow.len() + len(q.end)
}
