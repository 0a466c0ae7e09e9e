package workload

import (
	"math/rand"

	"github.com/sarchlab/eventq/sim/eventqueue"
)

// OpKind is the kind of a queue operation in a Script.
type OpKind int

// The operations a Script can contain.
const (
	OpEnqueue OpKind = iota
	OpDequeue
	OpDequeueAll
	OpRemove
	OpReschedule
)

// An Op is one step of a Script. Delay is relative to the time of the last
// dequeued event. Pick selects one of the handles issued so far.
type Op struct {
	Kind  OpKind
	Delay float64
	Pick  int
}

// A Script is a reproducible sequence of queue operations.
type Script []Op

// NewScript generates n operations. About half of them enqueue, the rest
// dequeue, remove or reschedule.
func NewScript(r *rand.Rand, inc Increment, n int) Script {
	script := make(Script, 0, n)

	for i := 0; i < n; i++ {
		op := Op{Pick: r.Int()}

		switch x := r.Intn(100); {
		case x < 50:
			op.Kind = OpEnqueue
			op.Delay = inc.Next()
		case x < 80:
			op.Kind = OpDequeue
		case x < 88:
			op.Kind = OpDequeueAll
		case x < 94:
			op.Kind = OpRemove
		default:
			op.Kind = OpReschedule
			op.Delay = inc.Next()
		}

		script = append(script, op)
	}

	return script
}

// Trace runs the script on q, then drains q, and returns every event that
// left the queue in order. Events are numbered by the index of the
// operation that enqueued them.
func Trace(q eventqueue.Queue[int, float64], script Script) []eventqueue.Item[int, float64] {
	var (
		handles []eventqueue.Handle
		trace   []eventqueue.Item[int, float64]
		now     float64
	)

	take := func(items ...eventqueue.Item[int, float64]) {
		for _, item := range items {
			trace = append(trace, item)
			now = item.Time
		}
	}

	for i, op := range script {
		switch op.Kind {
		case OpEnqueue:
			handles = append(handles, q.Enqueue(i, now+op.Delay))
		case OpDequeue:
			if evt, t, ok := q.DequeueMin(); ok {
				take(eventqueue.Item[int, float64]{Event: evt, Time: t})
			}
		case OpDequeueAll:
			take(q.DequeueAllAtMin()...)
		case OpRemove:
			if len(handles) > 0 {
				q.Remove(handles[op.Pick%len(handles)])
			}
		case OpReschedule:
			if len(handles) > 0 {
				h, ok := q.Reschedule(handles[op.Pick%len(handles)], now+op.Delay)
				if ok {
					handles = append(handles, h)
				}
			}
		}
	}

	for {
		evt, t, ok := q.DequeueMin()
		if !ok {
			return trace
		}

		take(eventqueue.Item[int, float64]{Event: evt, Time: t})
	}
}
