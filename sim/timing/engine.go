package timing

import (
	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/hooking"
)

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event) EventHandle
}

// An Engine is a unit that keeps the discrete event simulation run.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run will process all the events until the simulation finishes. It
	// returns the errors the handlers returned on the way.
	Run() error

	// Pause will pause the simulation until continue is called.
	Pause()

	// Continue will continue the paused simulation
	Continue()
}

// EventQueue is the queue an engine keeps its pending events in.
type EventQueue = eventqueue.Queue[Event, VTimeInSec]

// A QueueFactory creates the queue of the given name. Engines ask for one
// queue named "primary" and one named "secondary".
type QueueFactory func(name string) EventQueue

// Names of the queues of an engine.
const (
	PrimaryQueueName   = "primary"
	SecondaryQueueName = "secondary"
)

// QueueFactoryFromBuilder creates every queue with b. The builder must not
// carry a Seeded tie breaker, since its random source cannot be shared.
func QueueFactoryFromBuilder(b eventqueue.Builder) QueueFactory {
	return func(string) EventQueue {
		return eventqueue.Build[Event, VTimeInSec](b)
	}
}
