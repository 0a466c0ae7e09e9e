package timing

import (
	"context"
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/hooking"
)

var _ Engine = (*ParallelEngine)(nil)

// A ParallelEngine is an event engine that handles all the events of the
// same time in parallel.
//
// Each round takes every event at the earliest time from one queue and hands
// them to a bounded pool of workers. While the workers run, the events they
// schedule travel through a Front, so each queue is only ever modified by
// one goroutine.
//
// Events that the handlers of one round schedule for the same time are
// numbered in the order the handlers reach the Front, so with more than one
// worker their tie order can differ from run to run. With a parallelism of
// one, the workers run the batch in order and every run is reproducible.
type ParallelEngine struct {
	hooking.HookableBase

	pauseLock sync.Mutex
	nowLock   sync.RWMutex
	now       VTimeInSec

	primary   *eventqueue.Front[Event, VTimeInSec]
	secondary *eventqueue.Front[Event, VTimeInSec]

	// queueLock guards inRound. Outside a round, the holder of the write
	// lock owns the queues. During a round, the Fronts own them and
	// schedulers hold the read lock until their request is applied.
	queueLock  sync.RWMutex
	inRound    bool
	maxWorkers int

	singleRunLock sync.Mutex
	errLock       sync.Mutex
	errs          *multierror.Error
}

// NewParallelEngine creates a ParallelEngine with the default queues.
func NewParallelEngine() *ParallelEngine {
	return MakeBuilder().BuildParallelEngine()
}

// Name returns the name of the engine.
func (e *ParallelEngine) Name() string {
	return "ParallelEngine"
}

func (e *ParallelEngine) readNow() VTimeInSec {
	e.nowLock.RLock()
	now := e.now
	e.nowLock.RUnlock()

	return now
}

func (e *ParallelEngine) writeNow(t VTimeInSec) {
	e.nowLock.Lock()
	e.now = t
	e.nowLock.Unlock()
}

// Schedule register an event to be happen in the future. It can be called
// from handlers and from any other goroutine, while the engine runs or not.
func (e *ParallelEngine) Schedule(evt Event) EventHandle {
	now := e.readNow()
	if evt.Time() < now {
		log.Panicf(
			"cannot schedule event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), now)
	}

	front := e.primary
	if evt.IsSecondary() {
		front = e.secondary
	}

	h := EventHandle{secondary: evt.IsSecondary()}

	for {
		if handle, ok := e.scheduleInRound(front, evt); ok {
			h.handle = handle
			return h
		}

		if handle, ok := e.scheduleIdle(front, evt); ok {
			h.handle = handle
			return h
		}
	}
}

func (e *ParallelEngine) scheduleInRound(
	front *eventqueue.Front[Event, VTimeInSec],
	evt Event,
) (eventqueue.Handle, bool) {
	e.queueLock.RLock()
	defer e.queueLock.RUnlock()

	if !e.inRound {
		return 0, false
	}

	handle, err := front.EnqueueSync(context.Background(), evt, evt.Time())
	if err != nil {
		log.Panicf("cannot schedule event: %v", err)
	}

	return handle, true
}

func (e *ParallelEngine) scheduleIdle(
	front *eventqueue.Front[Event, VTimeInSec],
	evt Event,
) (eventqueue.Handle, bool) {
	e.queueLock.Lock()
	defer e.queueLock.Unlock()

	if e.inRound {
		return 0, false
	}

	return front.Queue().Enqueue(evt, evt.Time()), true
}

// Run processes all the events scheduled in the ParallelEngine
func (e *ParallelEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		e.pauseLock.Lock()
		e.queueLock.Lock()

		batch, ok := e.nextBatch()
		if !ok {
			e.queueLock.Unlock()
			e.pauseLock.Unlock()

			return e.takeErrors()
		}

		e.inRound = true
		e.queueLock.Unlock()

		e.runRound(batch)
		e.pauseLock.Unlock()
	}
}

func (e *ParallelEngine) nextBatch() ([]eventqueue.Item[Event, VTimeInSec], bool) {
	primary := e.primary.Queue()
	secondary := e.secondary.Queue()

	primaryTime, hasPrimary := primary.PeekMin()
	secondaryTime, hasSecondary := secondary.PeekMin()

	var batch []eventqueue.Item[Event, VTimeInSec]

	switch {
	case !hasPrimary && !hasSecondary:
		return nil, false
	case hasPrimary && (!hasSecondary || primaryTime <= secondaryTime):
		batch = primary.DequeueAllAtMin()
	default:
		batch = secondary.DequeueAllAtMin()
	}

	now := e.readNow()
	if batch[0].Time < now {
		log.Panicf("cannot run events in the past, %.10f, now %.10f",
			batch[0].Time, now)
	}
	e.writeNow(batch[0].Time)

	return batch, true
}

// runRound hands the batch to the workers. Once they are done, it waits for
// the pending schedulers and takes the queues back from the Fronts.
func (e *ParallelEngine) runRound(batch []eventqueue.Item[Event, VTimeInSec]) {
	done := make(chan struct{})

	var owners sync.WaitGroup
	for _, front := range []*eventqueue.Front[Event, VTimeInSec]{
		e.primary, e.secondary,
	} {
		owners.Add(1)
		go func(front *eventqueue.Front[Event, VTimeInSec]) {
			defer owners.Done()
			_ = front.Serve(context.Background(), done)
		}(front)
	}

	slots := make(chan struct{}, e.maxWorkers)

	var workers sync.WaitGroup
	for _, item := range batch {
		workers.Add(1)
		slots <- struct{}{}

		go func(evt Event) {
			defer workers.Done()
			defer func() { <-slots }()

			e.runEvent(evt)
		}(item.Event)
	}

	workers.Wait()

	e.queueLock.Lock()
	e.inRound = false
	close(done)
	owners.Wait()
	e.queueLock.Unlock()
}

func (e *ParallelEngine) runEvent(evt Event) {
	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	if err := evt.Handler().Handle(evt); err != nil {
		e.errLock.Lock()
		e.errs = multierror.Append(e.errs, errors.Wrapf(err,
			"handling %s @ %.10f", reflect.TypeOf(evt), evt.Time()))
		e.errLock.Unlock()
	}

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)
}

func (e *ParallelEngine) takeErrors() error {
	e.errLock.Lock()
	defer e.errLock.Unlock()

	err := e.errs.ErrorOrNil()
	e.errs = nil

	return err
}

// Pause will prevent the engine to move forward. Events of the round that
// is running still complete.
func (e *ParallelEngine) Pause() {
	e.pauseLock.Lock()
}

// Continue allows the engine to continue to make progress.
func (e *ParallelEngine) Continue() {
	e.pauseLock.Unlock()
}

// Now returns the time of the events that are running.
func (e *ParallelEngine) Now() VTimeInSec {
	return e.readNow()
}
