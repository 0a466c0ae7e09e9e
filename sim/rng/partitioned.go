// Package rng derives reproducible, isolated random number generators from a
// single master seed.
package rng

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
)

// Subsystem names used across the repository.
const (
	// SubsystemWorkload feeds workload generation. It uses the master seed
	// directly.
	SubsystemWorkload = "workload"

	// SubsystemTieBreak feeds the Seeded tie breaker of event queues.
	SubsystemTieBreak = "tiebreak"
)

// SubsystemQueue returns the subsystem name of the tie breaker of the
// queue with the given name, so that every queue in a run gets its own
// stream.
func SubsystemQueue(name string) string {
	return fmt.Sprintf("%s_%s", SubsystemTieBreak, name)
}

// PartitionedRNG hands out one *rand.Rand per subsystem. The generator of a
// subsystem is seeded with masterSeed XOR fnv1a64(name), except for the
// workload subsystem which uses the master seed itself. Asking for the same
// subsystem twice returns the same generator.
//
// PartitionedRNG is safe for concurrent use, but the generators it returns
// are not.
type PartitionedRNG struct {
	lock       sync.Mutex
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// Seed returns the master seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

// ForSubsystem returns the generator of the named subsystem. It never
// returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	p.lock.Lock()
	defer p.lock.Unlock()

	if r, ok := p.subsystems[name]; ok {
		return r
	}

	r := rand.New(rand.NewSource(p.SubsystemSeed(name)))
	p.subsystems[name] = r

	return r
}

// SubsystemSeed returns the seed the named subsystem is derived from.
func (p *PartitionedRNG) SubsystemSeed(name string) int64 {
	if name == SubsystemWorkload {
		return p.seed
	}

	return p.seed ^ fnv1a64(name)
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))

	return int64(h.Sum64())
}
