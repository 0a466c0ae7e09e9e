package timing

import (
	"runtime"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/eventq/sim/eventqueue"
)

// Builder can build serial and parallel engines.
type Builder struct {
	queueFactory QueueFactory
	parallelism  int
	frontSize    int
}

// MakeBuilder creates a builder with the default settings: tree queues and
// one worker per CPU for the parallel engine.
func MakeBuilder() Builder {
	return Builder{
		queueFactory: QueueFactoryFromBuilder(eventqueue.MakeBuilder()),
		parallelism:  runtime.GOMAXPROCS(0),
		frontSize:    1024,
	}
}

// WithQueueFactory sets how the engine creates its queues.
func (b Builder) WithQueueFactory(f QueueFactory) Builder {
	b.queueFactory = f
	return b
}

// WithQueueBuilder creates every queue with the given queue builder.
func (b Builder) WithQueueBuilder(qb eventqueue.Builder) Builder {
	b.queueFactory = QueueFactoryFromBuilder(qb)
	return b
}

// WithParallelism sets the maximum number of events a parallel engine
// handles at the same time.
func (b Builder) WithParallelism(n int) Builder {
	b.parallelism = n
	return b
}

// WithFrontSize sets how many scheduling requests from handlers can be
// pending before the handlers block.
func (b Builder) WithFrontSize(n int) Builder {
	b.frontSize = n
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.queueFactory == nil {
		log.Panic("timing: queue factory is not set")
	}

	if b.parallelism <= 0 {
		log.Panicf("timing: parallelism must be positive, got %d",
			b.parallelism)
	}

	if b.frontSize <= 0 {
		log.Panicf("timing: front size must be positive, got %d",
			b.frontSize)
	}
}

// BuildSerialEngine creates a SerialEngine.
func (b Builder) BuildSerialEngine() *SerialEngine {
	b.parametersMustBeValid()

	e := &SerialEngine{
		queue: eventqueue.NewSynchronized(
			b.queueFactory(PrimaryQueueName)),
		secondaryQueue: eventqueue.NewSynchronized(
			b.queueFactory(SecondaryQueueName)),
	}

	return e
}

// BuildParallelEngine creates a ParallelEngine.
func (b Builder) BuildParallelEngine() *ParallelEngine {
	b.parametersMustBeValid()

	e := &ParallelEngine{
		primary: eventqueue.NewFront(
			b.queueFactory(PrimaryQueueName), b.frontSize),
		secondary: eventqueue.NewFront(
			b.queueFactory(SecondaryQueueName), b.frontSize),
		maxWorkers: b.parallelism,
	}

	return e
}
