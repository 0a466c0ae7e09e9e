// Package eventqueue provides the priority queues that order pending
// simulation events by time.
//
// Every strategy implements Queue and produces exactly the same dequeue
// sequence for the same sequence of calls and the same TieBreaker, so a
// simulation can swap strategies for performance without changing its
// outcome. None of the strategies is safe for concurrent use; see
// Synchronized and Front for the ways to feed a queue from several
// goroutines.
package eventqueue

import "golang.org/x/exp/constraints"

// Time is the type of the simulation clock a queue orders by.
type Time interface {
	constraints.Integer | constraints.Float
}

// A Handle identifies an enqueued entry. The zero Handle never refers to a
// live entry and a Handle is never reused by the queue that issued it.
type Handle uint64

// An Item is an event together with the time it is scheduled at.
type Item[E any, T Time] struct {
	Event E
	Time  T
}

// Queue is a priority queue of events ordered by time. Entries sharing the
// same time are ordered by the TieBreaker the queue is built with.
type Queue[E any, T Time] interface {
	// Enqueue adds an event and returns the handle that identifies it.
	Enqueue(evt E, t T) Handle

	// DequeueMin removes and returns the earliest event. The boolean is
	// false if the queue is empty.
	DequeueMin() (E, T, bool)

	// DequeueAllAtMin removes and returns every event scheduled at the
	// earliest time, in tie-break order. It returns nil if the queue is
	// empty.
	DequeueAllAtMin() []Item[E, T]

	// PeekMin returns the earliest time without removing anything.
	PeekMin() (T, bool)

	// Remove drops the entry identified by h. It returns false if h is
	// unknown or the entry has already left the queue.
	Remove(h Handle) bool

	// Reschedule moves the entry identified by h to time t. It behaves as
	// Remove followed by Enqueue with the same event. If h is stale, it
	// returns h and false.
	Reschedule(h Handle, t T) (Handle, bool)

	// Len returns the number of entries in the queue.
	Len() int

	// IsEmpty tells if the queue holds no entry.
	IsEmpty() bool
}
