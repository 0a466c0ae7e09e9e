package eventqueue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrShutdown is returned to waiters once the queue has been shut down.
var ErrShutdown = errors.New("eventqueue: queue is shut down")

// Synchronized makes a Queue safe for concurrent use by taking one lock per
// call. Callers must not hold on to the queue between DequeueMin and the
// handling of the event; the lock is released before DequeueMin returns.
type Synchronized[E any, T Time] struct {
	lock     sync.Mutex
	q        Queue[E, T]
	notEmpty chan struct{}
	shutdown chan struct{}
	once     sync.Once
}

// NewSynchronized wraps q. The caller must not use q directly afterwards.
func NewSynchronized[E any, T Time](q Queue[E, T]) *Synchronized[E, T] {
	return &Synchronized[E, T]{
		q:        q,
		notEmpty: make(chan struct{}),
		shutdown: make(chan struct{}),
	}
}

// Enqueue adds an event and wakes up waiters.
func (s *Synchronized[E, T]) Enqueue(evt E, t T) Handle {
	s.lock.Lock()
	h := s.q.Enqueue(evt, t)
	s.wakeWaiters()
	s.lock.Unlock()

	return h
}

// wakeWaiters must be called with the lock held.
func (s *Synchronized[E, T]) wakeWaiters() {
	close(s.notEmpty)
	s.notEmpty = make(chan struct{})
}

// DequeueMin removes and returns the earliest event.
func (s *Synchronized[E, T]) DequeueMin() (E, T, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.q.DequeueMin()
}

// DequeueAllAtMin removes and returns all the events at the earliest time.
func (s *Synchronized[E, T]) DequeueAllAtMin() []Item[E, T] {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.q.DequeueAllAtMin()
}

// PeekMin returns the earliest time.
func (s *Synchronized[E, T]) PeekMin() (T, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.q.PeekMin()
}

// Remove drops the entry identified by h.
func (s *Synchronized[E, T]) Remove(h Handle) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.q.Remove(h)
}

// Reschedule moves the entry identified by h to time t.
func (s *Synchronized[E, T]) Reschedule(h Handle, t T) (Handle, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.q.Reschedule(h, t)
}

// Len returns the number of entries in the queue.
func (s *Synchronized[E, T]) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.q.Len()
}

// IsEmpty tells if the queue holds no entry.
func (s *Synchronized[E, T]) IsEmpty() bool {
	return s.Len() == 0
}

// BucketStats implements StatsReporter.
func (s *Synchronized[E, T]) BucketStats() (BucketStats, bool) {
	r, ok := s.q.(StatsReporter)
	if !ok {
		return BucketStats{}, false
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	return r.BucketStats()
}

// Wait blocks until the queue holds at least one entry. It returns
// ctx.Err() if ctx is done first, or ErrShutdown once Shutdown has been
// called. Another goroutine may still take the entry before the caller does.
func (s *Synchronized[E, T]) Wait(ctx context.Context) error {
	for {
		s.lock.Lock()
		select {
		case <-s.shutdown:
			s.lock.Unlock()
			return ErrShutdown
		default:
		}

		ready := s.q.Len() > 0
		wait := s.notEmpty
		s.lock.Unlock()

		if ready {
			return nil
		}

		select {
		case <-wait:
		case <-s.shutdown:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitMin blocks until an event is available and then dequeues the earliest
// one. It fails the same way as Wait.
func (s *Synchronized[E, T]) WaitMin(ctx context.Context) (E, T, error) {
	for {
		if err := s.Wait(ctx); err != nil {
			evt, t, _ := zero[E, T]()
			return evt, t, err
		}

		if evt, t, ok := s.DequeueMin(); ok {
			return evt, t, nil
		}
	}
}

// Shutdown unblocks every current and future WaitMin call. Entries still in
// the queue remain reachable through the non-blocking methods.
func (s *Synchronized[E, T]) Shutdown() {
	s.once.Do(func() { close(s.shutdown) })
}
