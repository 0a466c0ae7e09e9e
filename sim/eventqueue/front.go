package eventqueue

import (
	"context"
)

type requestKind int

const (
	requestEnqueue requestKind = iota
	requestRemove
	requestReschedule
)

type request[E any, T Time] struct {
	kind   requestKind
	event  E
	time   T
	handle Handle
	reply  chan Handle
}

// Front lets any number of goroutines submit changes to a queue that is
// owned by a single goroutine. Requests travel through a bounded channel, so
// producers block when the owner falls behind. Only the owner calls Drain or
// Serve, and only the owner touches the queue itself.
type Front[E any, T Time] struct {
	q        Queue[E, T]
	requests chan request[E, T]
}

// NewFront creates a Front for q whose channel holds up to capacity pending
// requests.
func NewFront[E any, T Time](q Queue[E, T], capacity int) *Front[E, T] {
	if capacity <= 0 {
		panic("eventqueue: front capacity must be positive")
	}

	return &Front[E, T]{
		q:        q,
		requests: make(chan request[E, T], capacity),
	}
}

// Queue returns the queue the front feeds. Only the owner may use it.
func (f *Front[E, T]) Queue() Queue[E, T] {
	return f.q
}

// Enqueue submits an event without waiting for it to be applied.
func (f *Front[E, T]) Enqueue(evt E, t T) {
	f.requests <- request[E, T]{kind: requestEnqueue, event: evt, time: t}
}

// EnqueueSync submits an event and waits until the owner has applied it,
// returning the assigned handle.
func (f *Front[E, T]) EnqueueSync(
	ctx context.Context,
	evt E,
	t T,
) (Handle, error) {
	reply := make(chan Handle, 1)
	req := request[E, T]{
		kind:  requestEnqueue,
		event: evt,
		time:  t,
		reply: reply,
	}

	select {
	case f.requests <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case h := <-reply:
		return h, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Remove submits the removal of an entry. A stale handle is ignored when the
// request is applied.
func (f *Front[E, T]) Remove(h Handle) {
	f.requests <- request[E, T]{kind: requestRemove, handle: h}
}

// Reschedule submits moving an entry to time t.
func (f *Front[E, T]) Reschedule(h Handle, t T) {
	f.requests <- request[E, T]{kind: requestReschedule, handle: h, time: t}
}

// Pending returns the number of submitted requests not yet applied.
func (f *Front[E, T]) Pending() int {
	return len(f.requests)
}

// Drain applies every pending request without blocking and returns how many
// were applied.
func (f *Front[E, T]) Drain() int {
	n := 0

	for {
		select {
		case req := <-f.requests:
			f.apply(req)
			n++
		default:
			return n
		}
	}
}

// Serve applies requests as they arrive until done is closed, then drains
// whatever is left. It returns early with ctx.Err() if ctx is done.
func (f *Front[E, T]) Serve(ctx context.Context, done <-chan struct{}) error {
	for {
		select {
		case req := <-f.requests:
			f.apply(req)
		case <-done:
			f.Drain()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Wait blocks until one request is available and applies it. It reports
// false if ctx is done first.
func (f *Front[E, T]) Wait(ctx context.Context) bool {
	select {
	case req := <-f.requests:
		f.apply(req)
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *Front[E, T]) apply(req request[E, T]) {
	var h Handle

	switch req.kind {
	case requestEnqueue:
		h = f.q.Enqueue(req.event, req.time)
	case requestRemove:
		f.q.Remove(req.handle)
	case requestReschedule:
		h, _ = f.q.Reschedule(req.handle, req.time)
	}

	if req.reply != nil {
		req.reply <- h
	}
}
