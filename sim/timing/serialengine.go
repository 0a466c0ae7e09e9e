package timing

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/hooking"
)

// ErrEventInPast is returned when an injected event is earlier than the
// current time of the engine.
var ErrEventInPast = errors.New("event is earlier than the current time")

var _ Engine = (*SerialEngine)(nil)

// A SerialEngine is an Engine that always run events one after another.
//
// Handlers schedule events with Schedule. Other goroutines, such as an
// external driver feeding a long running simulation, use Inject.
type SerialEngine struct {
	hooking.HookableBase

	timeLock       sync.RWMutex
	time           VTimeInSec
	queue          *eventqueue.Synchronized[Event, VTimeInSec]
	secondaryQueue *eventqueue.Synchronized[Event, VTimeInSec]

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
	stopped       atomic.Bool
	errs          *multierror.Error
}

// NewSerialEngine creates a SerialEngine with the default queues.
func NewSerialEngine() *SerialEngine {
	return MakeBuilder().BuildSerialEngine()
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "SerialEngine"
}

// Queues returns the primary and the secondary queue. They are safe to
// inspect while the engine runs.
func (e *SerialEngine) Queues() (primary, secondary EventQueue) {
	return e.queue, e.secondaryQueue
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt Event) EventHandle {
	now := e.readNow()
	if evt.Time() < now {
		log.Panicf(
			"cannot schedule event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), now)
	}

	return e.enqueue(evt)
}

func (e *SerialEngine) enqueue(evt Event) EventHandle {
	if evt.IsSecondary() {
		return EventHandle{
			handle:    e.secondaryQueue.Enqueue(evt, evt.Time()),
			secondary: true,
		}
	}

	return EventHandle{handle: e.queue.Enqueue(evt, evt.Time())}
}

// Inject schedules an event from outside the simulation. Unlike Schedule,
// an event earlier than the current time is rejected with ErrEventInPast
// instead of stopping the simulation. Only primary events can be injected.
func (e *SerialEngine) Inject(evt Event) (EventHandle, error) {
	if evt.IsSecondary() {
		return EventHandle{}, errors.Errorf(
			"cannot inject secondary event %s", reflect.TypeOf(evt))
	}

	e.timeLock.RLock()
	defer e.timeLock.RUnlock()

	if evt.Time() < e.time {
		return EventHandle{}, errors.Wrapf(ErrEventInPast,
			"inject %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), e.time)
	}

	return e.enqueue(evt), nil
}

// Cancel removes a scheduled event. It returns false if the event has
// already been handled or cancelled.
func (e *SerialEngine) Cancel(h EventHandle) bool {
	if h.secondary {
		return e.secondaryQueue.Remove(h.handle)
	}

	return e.queue.Remove(h.handle)
}

// Reschedule moves a scheduled event to time t. The returned handle
// replaces h. If the event has already been handled or cancelled, h is
// returned unchanged together with false.
//
// The engine handles the event at t, but the Time method of the event keeps
// returning the time it was created with.
func (e *SerialEngine) Reschedule(h EventHandle, t VTimeInSec) (EventHandle, bool) {
	now := e.readNow()
	if t < now {
		log.Panicf("cannot reschedule event to %.10f, now %.10f", t, now)
	}

	q := e.queue
	if h.secondary {
		q = e.secondaryQueue
	}

	newHandle, ok := q.Reschedule(h.handle, t)

	return EventHandle{handle: newHandle, secondary: h.secondary}, ok
}

func (e *SerialEngine) readNow() VTimeInSec {
	e.timeLock.RLock()
	t := e.time
	e.timeLock.RUnlock()

	return t
}

// Run processes all the events scheduled in the SerialEngine
func (e *SerialEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for e.step() {
	}

	return e.takeErrors()
}

// Serve processes events like Run but, when no event is left, waits for
// injected events instead of returning. It returns when ctx is done or
// Shutdown is called, together with the errors of the handlers.
func (e *SerialEngine) Serve(ctx context.Context) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		for ctx.Err() == nil && !e.stopped.Load() && e.step() {
		}

		if err := ctx.Err(); err != nil {
			return e.finishServing(err)
		}

		if err := e.queue.Wait(ctx); err != nil {
			return e.finishServing(err)
		}
	}
}

func (e *SerialEngine) finishServing(cause error) error {
	var result *multierror.Error
	if !errors.Is(cause, eventqueue.ErrShutdown) {
		result = multierror.Append(result, cause)
	}

	if handlerErrs := e.takeErrors(); handlerErrs != nil {
		result = multierror.Append(result, handlerErrs)
	}

	return result.ErrorOrNil()
}

// Shutdown makes Serve return once the current event has been handled.
// Events left in the queues stay there.
func (e *SerialEngine) Shutdown() {
	e.stopped.Store(true)
	e.queue.Shutdown()
}

// step handles the next event. It returns false if there is no event.
func (e *SerialEngine) step() bool {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	evt, ok := e.advance()
	if !ok {
		return false
	}

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	handler := evt.Handler()
	if err := handler.Handle(evt); err != nil {
		e.errs = multierror.Append(e.errs, errors.Wrapf(err,
			"handling %s @ %.10f", reflect.TypeOf(evt), evt.Time()))
	}

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	return true
}

// advance takes the next event and moves the time forward to it. Holding the
// time lock keeps Inject from adding an event behind the new time.
func (e *SerialEngine) advance() (Event, bool) {
	e.timeLock.Lock()
	defer e.timeLock.Unlock()

	evt, t, ok := e.nextEvent()
	if !ok {
		return nil, false
	}

	if t < e.time {
		log.Panicf(
			"cannot run event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), t, e.time,
		)
	}

	e.time = t

	return evt, true
}

func (e *SerialEngine) nextEvent() (Event, VTimeInSec, bool) {
	primaryTime, hasPrimary := e.queue.PeekMin()
	secondaryTime, hasSecondary := e.secondaryQueue.PeekMin()

	switch {
	case !hasPrimary && !hasSecondary:
		return nil, 0, false
	case hasPrimary && (!hasSecondary || primaryTime <= secondaryTime):
		return e.queue.DequeueMin()
	default:
		return e.secondaryQueue.DequeueMin()
	}
}

func (e *SerialEngine) takeErrors() error {
	err := e.errs.ErrorOrNil()
	e.errs = nil

	return err
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// Now returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) Now() VTimeInSec {
	return e.readNow()
}
