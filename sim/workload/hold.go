package workload

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/eventq/sim/eventqueue"
)

// HoldConfig describes one run of the hold model.
type HoldConfig struct {
	// Size is the number of events the queue is filled with before
	// measuring. It stays constant during the run.
	Size int

	// Operations is the number of hold operations measured. One hold
	// operation dequeues the earliest event and enqueues a new one.
	Operations int

	// Increment draws the delay of every new event.
	Increment Increment
}

// HoldResult is what a hold run measured. Durations are in nanoseconds.
type HoldResult struct {
	Size        int     `yaml:"size" json:"size"`
	Operations  int     `yaml:"operations" json:"operations"`
	ElapsedNS   int64   `yaml:"elapsed_ns" json:"elapsed_ns"`
	EnqueueMean float64 `yaml:"enqueue_mean_ns" json:"enqueue_mean_ns"`
	EnqueueP99  float64 `yaml:"enqueue_p99_ns" json:"enqueue_p99_ns"`
	DequeueMean float64 `yaml:"dequeue_mean_ns" json:"dequeue_mean_ns"`
	DequeueP99  float64 `yaml:"dequeue_p99_ns" json:"dequeue_p99_ns"`
	FinalTime   float64 `yaml:"final_time" json:"final_time"`
	FinalLen    int     `yaml:"final_len" json:"final_len"`
}

// Validate checks that the configuration can be run.
func (c HoldConfig) Validate() error {
	if c.Size <= 0 {
		return errors.Errorf("hold size must be positive, got %d", c.Size)
	}

	if c.Operations < 0 {
		return errors.Errorf("hold operations cannot be negative, got %d",
			c.Operations)
	}

	if c.Increment == nil {
		return errors.New("hold increment is not set")
	}

	return nil
}

// RunHold fills q with cfg.Size events and then performs cfg.Operations hold
// operations, timing every enqueue and dequeue. The queue must be empty.
func RunHold(q eventqueue.Queue[int, float64], cfg HoldConfig) (HoldResult, error) {
	if err := cfg.Validate(); err != nil {
		return HoldResult{}, err
	}

	if !q.IsEmpty() {
		return HoldResult{}, errors.New("hold model needs an empty queue")
	}

	for i := 0; i < cfg.Size; i++ {
		q.Enqueue(i, cfg.Increment.Next())
	}

	registry := metrics.NewRegistry()
	defer registry.UnregisterAll()

	enqueueTimer := metrics.GetOrRegisterTimer("enqueue", registry)
	dequeueTimer := metrics.GetOrRegisterTimer("dequeue", registry)

	now := 0.0
	start := time.Now()

	for i := 0; i < cfg.Operations; i++ {
		opStart := time.Now()
		evt, t, ok := q.DequeueMin()
		dequeueTimer.UpdateSince(opStart)

		if !ok {
			return HoldResult{}, errors.Errorf(
				"queue drained after %d hold operations", i)
		}

		if t < now {
			return HoldResult{}, errors.Errorf(
				"event %d dequeued at %g after %g", evt, t, now)
		}
		now = t

		next := now + cfg.Increment.Next()

		opStart = time.Now()
		q.Enqueue(cfg.Size+i, next)
		enqueueTimer.UpdateSince(opStart)
	}

	elapsed := time.Since(start)

	enq := enqueueTimer.Snapshot()
	deq := dequeueTimer.Snapshot()

	result := HoldResult{
		Size:        cfg.Size,
		Operations:  cfg.Operations,
		ElapsedNS:   elapsed.Nanoseconds(),
		EnqueueMean: enq.Mean(),
		EnqueueP99:  enq.Percentile(0.99),
		DequeueMean: deq.Mean(),
		DequeueP99:  deq.Percentile(0.99),
		FinalTime:   now,
		FinalLen:    q.Len(),
	}

	log.WithFields(log.Fields{
		"size":       cfg.Size,
		"operations": cfg.Operations,
		"elapsed":    elapsed,
	}).Debug("workload: hold run finished")

	return result, nil
}
