package eventqueue

import "github.com/google/btree"

const treeDegree = 32

// TreeQueue indexes its entries in a B-tree. Enqueue, DequeueMin and Remove
// all cost O(log n). It is the default strategy when nothing is known about
// the distribution of event times.
type TreeQueue[E any, T Time] struct {
	core[E, T]

	tree *btree.BTreeG[*entry[E, T]]
}

// NewTreeQueue creates an empty TreeQueue.
func NewTreeQueue[E any, T Time](tb TieBreaker) *TreeQueue[E, T] {
	return newTreeQueue[E, T](tb, 0)
}

func newTreeQueue[E any, T Time](tb TieBreaker, capacity int) *TreeQueue[E, T] {
	return &TreeQueue[E, T]{
		core: newCore[E, T](tb, capacity),
		tree: btree.NewG(treeDegree, less[E, T]),
	}
}

// Enqueue adds an event.
func (q *TreeQueue[E, T]) Enqueue(evt E, t T) Handle {
	e := q.newEntry(evt, t)
	q.tree.ReplaceOrInsert(e)

	return e.handle()
}

// DequeueMin removes and returns the earliest event.
func (q *TreeQueue[E, T]) DequeueMin() (E, T, bool) {
	e, ok := q.tree.DeleteMin()
	if !ok {
		return zero[E, T]()
	}

	q.forget(e)

	return e.event, e.time, true
}

// DequeueAllAtMin removes and returns all the events at the earliest time.
func (q *TreeQueue[E, T]) DequeueAllAtMin() []Item[E, T] {
	first, ok := q.tree.Min()
	if !ok {
		return nil
	}

	var items []Item[E, T]
	for {
		e, ok := q.tree.Min()
		if !ok || e.time != first.time {
			break
		}

		q.tree.DeleteMin()
		q.forget(e)
		items = append(items, e.item())
	}

	return items
}

// PeekMin returns the earliest time.
func (q *TreeQueue[E, T]) PeekMin() (T, bool) {
	e, ok := q.tree.Min()
	if !ok {
		var t T
		return t, false
	}

	return e.time, true
}

// Remove drops the entry identified by h.
func (q *TreeQueue[E, T]) Remove(h Handle) bool {
	e, ok := q.lookup(h)
	if !ok {
		return false
	}

	q.tree.Delete(e)
	q.forget(e)

	return true
}

// Reschedule moves the entry identified by h to time t.
func (q *TreeQueue[E, T]) Reschedule(h Handle, t T) (Handle, bool) {
	e, ok := q.lookup(h)
	if !ok {
		return h, false
	}

	q.tree.Delete(e)
	q.forget(e)

	return q.Enqueue(e.event, t), true
}
