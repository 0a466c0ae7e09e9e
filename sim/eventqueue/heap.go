package eventqueue

import "container/heap"

// HeapQueue is a binary heap of entries. Every operation costs O(log n).
// The heap tracks the index of each entry so that Remove does not need a
// search.
type HeapQueue[E any, T Time] struct {
	core[E, T]

	entries entryHeap[E, T]
}

// NewHeapQueue creates an empty HeapQueue.
func NewHeapQueue[E any, T Time](tb TieBreaker) *HeapQueue[E, T] {
	return newHeapQueue[E, T](tb, 0)
}

func newHeapQueue[E any, T Time](tb TieBreaker, capacity int) *HeapQueue[E, T] {
	q := &HeapQueue[E, T]{
		core:    newCore[E, T](tb, capacity),
		entries: make(entryHeap[E, T], 0, capacity),
	}
	heap.Init(&q.entries)

	return q
}

// Enqueue adds an event.
func (q *HeapQueue[E, T]) Enqueue(evt E, t T) Handle {
	e := q.newEntry(evt, t)
	heap.Push(&q.entries, e)

	return e.handle()
}

// DequeueMin removes and returns the earliest event.
func (q *HeapQueue[E, T]) DequeueMin() (E, T, bool) {
	if q.entries.Len() == 0 {
		return zero[E, T]()
	}

	e := heap.Pop(&q.entries).(*entry[E, T])
	q.forget(e)

	return e.event, e.time, true
}

// DequeueAllAtMin removes and returns all the events at the earliest time.
func (q *HeapQueue[E, T]) DequeueAllAtMin() []Item[E, T] {
	if q.entries.Len() == 0 {
		return nil
	}

	minTime := q.entries[0].time

	var items []Item[E, T]
	for q.entries.Len() > 0 && q.entries[0].time == minTime {
		e := heap.Pop(&q.entries).(*entry[E, T])
		q.forget(e)
		items = append(items, e.item())
	}

	return items
}

// PeekMin returns the earliest time.
func (q *HeapQueue[E, T]) PeekMin() (T, bool) {
	if q.entries.Len() == 0 {
		var t T
		return t, false
	}

	return q.entries[0].time, true
}

// Remove drops the entry identified by h.
func (q *HeapQueue[E, T]) Remove(h Handle) bool {
	e, ok := q.lookup(h)
	if !ok {
		return false
	}

	heap.Remove(&q.entries, e.index)
	q.forget(e)

	return true
}

// Reschedule moves the entry identified by h to time t.
func (q *HeapQueue[E, T]) Reschedule(h Handle, t T) (Handle, bool) {
	e, ok := q.lookup(h)
	if !ok {
		return h, false
	}

	heap.Remove(&q.entries, e.index)
	q.forget(e)

	return q.Enqueue(e.event, t), true
}

type entryHeap[E any, T Time] []*entry[E, T]

func (h entryHeap[E, T]) Len() int { return len(h) }

func (h entryHeap[E, T]) Less(i, j int) bool {
	return less(h[i], h[j])
}

func (h entryHeap[E, T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap[E, T]) Push(x any) {
	e := x.(*entry[E, T])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap[E, T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]

	return e
}
