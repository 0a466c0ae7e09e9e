package eventqueue

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Strategy names a queue implementation.
type Strategy int

// The available strategies.
const (
	StrategyTree Strategy = iota
	StrategySorted
	StrategyHeap
	StrategyCalendar
	StrategyTwoList
)

var strategyNames = map[Strategy]string{
	StrategyTree:     "tree",
	StrategySorted:   "sorted",
	StrategyHeap:     "heap",
	StrategyCalendar: "calendar",
	StrategyTwoList:  "twolist",
}

// Strategies lists every strategy, the reference strategy first.
func Strategies() []Strategy {
	return []Strategy{
		StrategySorted,
		StrategyTree,
		StrategyHeap,
		StrategyCalendar,
		StrategyTwoList,
	}
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}

	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy converts a strategy name, as returned by String, back to a
// Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}

	return 0, errors.Errorf("unknown event queue strategy %q", name)
}

// Builder can build queues of any strategy.
type Builder struct {
	strategy    Strategy
	tieBreaker  TieBreaker
	capacity    int
	bucketCount *int
	width       *float64
	lower       float64
	upper       float64
	estimator   WidthEstimator
}

// MakeBuilder creates a builder with the default settings: a TreeQueue with
// FIFO tie breaking.
func MakeBuilder() Builder {
	return Builder{
		strategy: StrategyTree,
	}
}

// WithStrategy sets the strategy of the queue.
func (b Builder) WithStrategy(s Strategy) Builder {
	b.strategy = s
	return b
}

// WithTieBreaker sets how same-time entries are ordered. A TieBreaker holds
// state, so a builder carrying a Seeded tie breaker must build only one
// queue.
func (b Builder) WithTieBreaker(tb TieBreaker) Builder {
	b.tieBreaker = tb
	return b
}

// WithCapacity pre-sizes the queue for the given number of entries.
func (b Builder) WithCapacity(n int) Builder {
	b.capacity = n
	return b
}

// WithBucketCount sets the number of buckets of a bucket strategy. For the
// calendar strategy it is the minimum bucket count.
func (b Builder) WithBucketCount(n int) Builder {
	b.bucketCount = &n
	return b
}

// WithBucketWidth sets the initial bucket width of a bucket strategy.
func (b Builder) WithBucketWidth(w float64) Builder {
	b.width = &w
	return b
}

// WithRebuildThresholds sets the range of the average number of entries per
// bucket outside which a bucket strategy rebuilds itself.
func (b Builder) WithRebuildThresholds(lower, upper float64) Builder {
	b.lower = lower
	b.upper = upper
	return b
}

// WithWidthEstimator replaces the way a bucket strategy computes its bucket
// width on rebuild.
func (b Builder) WithWidthEstimator(e WidthEstimator) Builder {
	b.estimator = e
	return b
}

func (b Builder) parametersMustBeValid() {
	if _, ok := strategyNames[b.strategy]; !ok {
		log.Panicf("eventqueue: unknown strategy %d", int(b.strategy))
	}

	if b.capacity < 0 {
		log.Panicf("eventqueue: capacity cannot be negative, got %d",
			b.capacity)
	}
}

func (b Builder) bucketConfig(defaultCount int, lower, upper float64) bucketConfig {
	c := bucketConfig{
		bucketCount: defaultCount,
		width:       DefaultBucketWidth,
		lower:       lower,
		upper:       upper,
		estimator:   b.estimator,
		capacity:    b.capacity,
		tieBreaker:  b.tieBreaker,
	}

	if b.bucketCount != nil {
		c.bucketCount = *b.bucketCount
	}

	if b.width != nil {
		c.width = *b.width
	}

	if b.lower != 0 || b.upper != 0 {
		c.lower = b.lower
		c.upper = b.upper
	}

	return c
}

// Build creates a queue. Build panics if the configuration is invalid, for
// example a non-positive bucket width or count.
func Build[E any, T Time](b Builder) Queue[E, T] {
	b.parametersMustBeValid()

	switch b.strategy {
	case StrategySorted:
		return newSortedQueue[E, T](b.tieBreaker, b.capacity)
	case StrategyHeap:
		return newHeapQueue[E, T](b.tieBreaker, b.capacity)
	case StrategyCalendar:
		return newCalendarQueue[E, T](b.bucketConfig(
			DefaultBucketCount, DefaultCalendarLower, DefaultCalendarUpper))
	case StrategyTwoList:
		return newTwoListQueue[E, T](b.bucketConfig(
			DefaultTwoListBucketSize, DefaultTwoListLower, DefaultTwoListUpper))
	default:
		return newTreeQueue[E, T](b.tieBreaker, b.capacity)
	}
}
