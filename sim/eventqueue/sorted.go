package eventqueue

import "sort"

// SortedQueue keeps its entries in order at all times. Enqueue costs O(n),
// DequeueMin and PeekMin cost O(1). It is the reference that every other
// strategy is checked against.
type SortedQueue[E any, T Time] struct {
	core[E, T]

	// entries is kept in descending order, so the minimum is at the tail.
	entries []*entry[E, T]
}

// NewSortedQueue creates an empty SortedQueue.
func NewSortedQueue[E any, T Time](tb TieBreaker) *SortedQueue[E, T] {
	return newSortedQueue[E, T](tb, 0)
}

func newSortedQueue[E any, T Time](
	tb TieBreaker,
	capacity int,
) *SortedQueue[E, T] {
	return &SortedQueue[E, T]{
		core:    newCore[E, T](tb, capacity),
		entries: make([]*entry[E, T], 0, capacity),
	}
}

// position returns the index at which e is, or would be, stored.
func (q *SortedQueue[E, T]) position(e *entry[E, T]) int {
	return sort.Search(len(q.entries), func(i int) bool {
		return !less(e, q.entries[i])
	})
}

// Enqueue inserts an event at its ordered position.
func (q *SortedQueue[E, T]) Enqueue(evt E, t T) Handle {
	e := q.newEntry(evt, t)

	i := q.position(e)
	q.entries = append(q.entries, nil)
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = e

	return e.handle()
}

// DequeueMin removes and returns the earliest event.
func (q *SortedQueue[E, T]) DequeueMin() (E, T, bool) {
	if len(q.entries) == 0 {
		return zero[E, T]()
	}

	e := q.popTail()

	return e.event, e.time, true
}

func (q *SortedQueue[E, T]) popTail() *entry[E, T] {
	last := len(q.entries) - 1
	e := q.entries[last]
	q.entries[last] = nil
	q.entries = q.entries[:last]
	q.forget(e)

	return e
}

// DequeueAllAtMin removes and returns all the events at the earliest time.
func (q *SortedQueue[E, T]) DequeueAllAtMin() []Item[E, T] {
	if len(q.entries) == 0 {
		return nil
	}

	minTime := q.entries[len(q.entries)-1].time

	var items []Item[E, T]
	for len(q.entries) > 0 && q.entries[len(q.entries)-1].time == minTime {
		items = append(items, q.popTail().item())
	}

	return items
}

// PeekMin returns the earliest time.
func (q *SortedQueue[E, T]) PeekMin() (T, bool) {
	if len(q.entries) == 0 {
		var t T
		return t, false
	}

	return q.entries[len(q.entries)-1].time, true
}

// Remove drops the entry identified by h.
func (q *SortedQueue[E, T]) Remove(h Handle) bool {
	e, ok := q.lookup(h)
	if !ok {
		return false
	}

	q.detach(e)

	return true
}

func (q *SortedQueue[E, T]) detach(e *entry[E, T]) {
	i := q.position(e)
	copy(q.entries[i:], q.entries[i+1:])
	q.entries[len(q.entries)-1] = nil
	q.entries = q.entries[:len(q.entries)-1]
	q.forget(e)
}

// Reschedule moves the entry identified by h to time t.
func (q *SortedQueue[E, T]) Reschedule(h Handle, t T) (Handle, bool) {
	e, ok := q.lookup(h)
	if !ok {
		return h, false
	}

	q.detach(e)

	return q.Enqueue(e.event, t), true
}
