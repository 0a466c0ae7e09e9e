package eventqueue

import "container/list"

// overflowStore holds the entries that are beyond the bucket horizon.
type overflowStore[E any, T Time] interface {
	push(e *entry[E, T])
	remove(e *entry[E, T])
	len() int

	// min returns the earliest entry, or nil if the store is empty.
	min() *entry[E, T]

	// migrate removes every entry for which due returns true and hands it to
	// place.
	migrate(due func(*entry[E, T]) bool, place func(*entry[E, T]))

	// takeAll removes and returns every entry.
	takeAll() []*entry[E, T]
}

// sliceOverflow is an unsorted slice. Migration scans the whole slice.
type sliceOverflow[E any, T Time] struct {
	entries []*entry[E, T]
}

func (o *sliceOverflow[E, T]) push(e *entry[E, T]) {
	e.slot = -1
	e.index = len(o.entries)
	o.entries = append(o.entries, e)
}

func (o *sliceOverflow[E, T]) remove(e *entry[E, T]) {
	last := len(o.entries) - 1
	moved := o.entries[last]
	o.entries[e.index] = moved
	moved.index = e.index
	o.entries[last] = nil
	o.entries = o.entries[:last]
	e.index = -1
}

func (o *sliceOverflow[E, T]) len() int {
	return len(o.entries)
}

func (o *sliceOverflow[E, T]) min() *entry[E, T] {
	var m *entry[E, T]
	for _, e := range o.entries {
		if m == nil || less(e, m) {
			m = e
		}
	}

	return m
}

func (o *sliceOverflow[E, T]) migrate(
	due func(*entry[E, T]) bool,
	place func(*entry[E, T]),
) {
	kept := o.entries[:0]
	var moved []*entry[E, T]

	for _, e := range o.entries {
		if due(e) {
			moved = append(moved, e)
			continue
		}

		e.index = len(kept)
		kept = append(kept, e)
	}

	for i := len(kept); i < len(o.entries); i++ {
		o.entries[i] = nil
	}
	o.entries = kept

	for _, e := range moved {
		place(e)
	}
}

func (o *sliceOverflow[E, T]) takeAll() []*entry[E, T] {
	all := o.entries
	o.entries = nil

	return all
}

// listOverflow is a linked list with a cached minimum. Migration is skipped
// in O(1) when even the earliest far entry is not due yet.
type listOverflow[E any, T Time] struct {
	l        *list.List
	earliest *entry[E, T]
	stale    bool
}

func newListOverflow[E any, T Time]() *listOverflow[E, T] {
	return &listOverflow[E, T]{l: list.New()}
}

func (o *listOverflow[E, T]) push(e *entry[E, T]) {
	e.slot = -1
	e.elem = o.l.PushBack(e)

	if !o.stale && (o.earliest == nil || less(e, o.earliest)) {
		o.earliest = e
	}
}

func (o *listOverflow[E, T]) remove(e *entry[E, T]) {
	o.l.Remove(e.elem)
	e.elem = nil

	if e == o.earliest {
		o.earliest = nil
		o.stale = o.l.Len() > 0
	}
}

func (o *listOverflow[E, T]) len() int {
	return o.l.Len()
}

func (o *listOverflow[E, T]) min() *entry[E, T] {
	if o.stale {
		o.earliest = nil
		for el := o.l.Front(); el != nil; el = el.Next() {
			e := el.Value.(*entry[E, T])
			if o.earliest == nil || less(e, o.earliest) {
				o.earliest = e
			}
		}
		o.stale = false
	}

	return o.earliest
}

func (o *listOverflow[E, T]) migrate(
	due func(*entry[E, T]) bool,
	place func(*entry[E, T]),
) {
	first := o.min()
	if first == nil || !due(first) {
		return
	}

	var next *list.Element
	for el := o.l.Front(); el != nil; el = next {
		next = el.Next()

		e := el.Value.(*entry[E, T])
		if !due(e) {
			continue
		}

		o.l.Remove(el)
		e.elem = nil
		place(e)
	}

	o.earliest = nil
	o.stale = o.l.Len() > 0
}

func (o *listOverflow[E, T]) takeAll() []*entry[E, T] {
	all := make([]*entry[E, T], 0, o.l.Len())
	for el := o.l.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[E, T])
		e.elem = nil
		all = append(all, e)
	}

	o.l.Init()
	o.earliest = nil
	o.stale = false

	return all
}
