// Package workload drives event queues with the hold model, the classic
// benchmark of priority queues for discrete event simulation.
package workload

import (
	"math/rand/v2"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sarchlab/eventq/sim/timing"
)

// An Increment draws the delay between the time of a dequeued event and
// the time of the event that replaces it.
type Increment interface {
	Next() float64
}

type sampler interface {
	Rand() float64
}

type incrementFunc func() float64

func (f incrementFunc) Next() float64 { return f() }

// newIncrementFuncs maps a distribution name to a constructor that returns
// an Increment with the given mean.
var newIncrementFuncs = map[string]func(mean float64, src rand.Source) Increment{
	"uniform": func(mean float64, src rand.Source) Increment {
		return fromSampler(distuv.Uniform{Min: 0, Max: 2 * mean, Src: src})
	},
	"exponential": func(mean float64, src rand.Source) Increment {
		return fromSampler(distuv.Exponential{Rate: 1 / mean, Src: src})
	},
	"bimodal": newBimodal,
	"pareto": func(mean float64, src rand.Source) Increment {
		// The mean of a Pareto distribution is Alpha*Xm/(Alpha-1).
		return fromSampler(distuv.Pareto{Xm: mean / 3, Alpha: 1.5, Src: src})
	},
	"tick": newTick,
}

// Distributions lists the names accepted by NewIncrement.
func Distributions() []string {
	names := make([]string, 0, len(newIncrementFuncs))
	for name := range newIncrementFuncs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// NewIncrement creates an Increment that follows the named distribution
// with the given mean. The distribution draws from src only.
func NewIncrement(name string, mean float64, src rand.Source) (Increment, error) {
	if !(mean > 0) {
		return nil, errors.Errorf("mean increment must be positive, got %g", mean)
	}

	if src == nil {
		return nil, errors.New("random source is required")
	}

	newIncrement, ok := newIncrementFuncs[name]
	if !ok {
		return nil, errors.Errorf("unknown distribution %q", name)
	}

	return newIncrement(mean, src), nil
}

func fromSampler(s sampler) Increment {
	return incrementFunc(s.Rand)
}

// newBimodal returns mostly short increments and occasionally very long
// ones: 90% from [0, 0.2*mean) and 10% from [0, 18.2*mean).
func newBimodal(mean float64, src rand.Source) Increment {
	far := distuv.Bernoulli{P: 0.1, Src: src}
	short := distuv.Uniform{Min: 0, Max: 0.2 * mean, Src: src}
	long := distuv.Uniform{Min: 0, Max: 18.2 * mean, Src: src}

	return incrementFunc(func() float64 {
		if far.Rand() == 1 {
			return long.Rand()
		}

		return short.Rand()
	})
}

// newTick returns exponential increments rounded up to the ticks of a clock
// with four ticks per mean, so that many events share the same time.
func newTick(mean float64, src rand.Source) Increment {
	clock := timing.Freq(4 / mean)
	exp := distuv.Exponential{Rate: 1 / mean, Src: src}

	return incrementFunc(func() float64 {
		return clock.NoEarlierThan(exp.Rand())
	})
}
