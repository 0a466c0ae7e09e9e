package eventqueue

import (
	"container/list"

	log "github.com/sirupsen/logrus"
)

type entry[E any, T Time] struct {
	event E
	time  T
	seq   uint64
	key   uint64

	// Position bookkeeping used by the strategies that need O(1) removal.
	index int
	slot  int
	elem  *list.Element
}

func (e *entry[E, T]) handle() Handle {
	return Handle(e.seq)
}

func (e *entry[E, T]) item() Item[E, T] {
	return Item[E, T]{Event: e.event, Time: e.time}
}

// less orders entries by time, then tie-break key, then insertion order.
func less[E any, T Time](a, b *entry[E, T]) bool {
	if a.time != b.time {
		return a.time < b.time
	}

	if a.key != b.key {
		return a.key < b.key
	}

	return a.seq < b.seq
}

// core holds the state every strategy shares: the sequence counter, the
// tie-break policy and the handle index.
type core[E any, T Time] struct {
	tieBreaker TieBreaker
	nextSeq    uint64
	live       map[Handle]*entry[E, T]
}

func newCore[E any, T Time](tb TieBreaker, capacity int) core[E, T] {
	if tb == nil {
		tb = FIFO()
	}

	return core[E, T]{
		tieBreaker: tb,
		live:       make(map[Handle]*entry[E, T], capacity),
	}
}

func (c *core[E, T]) newEntry(evt E, t T) *entry[E, T] {
	if t != t {
		log.Panic("eventqueue: cannot enqueue an event at NaN time")
	}

	c.nextSeq++

	e := &entry[E, T]{
		event: evt,
		time:  t,
		seq:   c.nextSeq,
		key:   c.tieBreaker.Key(c.nextSeq),
		index: -1,
		slot:  -1,
	}
	c.live[e.handle()] = e

	return e
}

func (c *core[E, T]) lookup(h Handle) (*entry[E, T], bool) {
	e, ok := c.live[h]
	return e, ok
}

func (c *core[E, T]) forget(e *entry[E, T]) {
	delete(c.live, e.handle())
}

// Len returns the number of entries in the queue.
func (c *core[E, T]) Len() int {
	return len(c.live)
}

// IsEmpty tells if the queue holds no entry.
func (c *core[E, T]) IsEmpty() bool {
	return len(c.live) == 0
}

func zero[E any, T Time]() (E, T, bool) {
	var evt E
	var t T

	return evt, t, false
}
