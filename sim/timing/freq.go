package timing

import (
	"math"

	log "github.com/sirupsen/logrus"
)

// Freq is a clock frequency. Components driven by a clock schedule their
// events on the ticks of a Freq, which makes many events share the exact
// same time.
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive ticks
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return VTimeInSec(1.0 / f)
}

// Cycle converts a time to the number of cycles passed since time 0.
func (f Freq) Cycle(time VTimeInSec) uint64 {
	return uint64(math.Round(time * float64(f)))
}

// ThisTick returns the tick at or right after now. Times within a tenth of a
// cycle after a tick count as that tick.
func (f Freq) ThisTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Ceil(math.Round(now*10*float64(f)) / 10)

	return count / float64(f)
}

// NextTick returns the first tick strictly after now.
func (f Freq) NextTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Floor(math.Round(now*10*float64(f)) / 10)

	return (count + 1) / float64(f)
}

// NCyclesLater returns the tick n cycles after now. The result is always on
// a tick.
func (f Freq) NCyclesLater(n int, now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	return f.ThisTick(now + VTimeInSec(Freq(n)/f))
}

// NoEarlierThan returns the tick that is at or right after the given time
func (f Freq) NoEarlierThan(t VTimeInSec) VTimeInSec {
	mustBeValidTime(t)

	count := t / f.Period()

	return math.Ceil(count) * f.Period()
}

func mustBeValidTime(t VTimeInSec) {
	if math.IsNaN(t) {
		log.Panic("invalid time")
	}
}
