package eventqueue

import "math"

// A TieBreaker decides the order of entries that share the same time.
//
// Key is called exactly once per enqueued entry, in enqueue order, with the
// entry's insertion sequence number. Entries with the same time leave the
// queue in ascending key order; equal keys fall back to insertion order.
// A TieBreaker must not be shared between queues.
type TieBreaker interface {
	Key(seq uint64) uint64
}

// RandomSource provides the random numbers of a seeded TieBreaker. A
// *rand.Rand from math/rand satisfies it.
type RandomSource interface {
	Uint64() uint64
}

type fifo struct{}

func (fifo) Key(seq uint64) uint64 { return seq }

type lifo struct{}

func (lifo) Key(seq uint64) uint64 { return math.MaxUint64 - seq }

type seeded struct {
	src RandomSource
}

func (s seeded) Key(uint64) uint64 { return s.src.Uint64() }

// FIFO returns a TieBreaker that serves same-time entries in the order they
// were enqueued.
func FIFO() TieBreaker { return fifo{} }

// LIFO returns a TieBreaker that serves the most recently enqueued entry
// first among same-time entries.
func LIFO() TieBreaker { return lifo{} }

// Seeded returns a TieBreaker that orders same-time entries pseudo-randomly
// by drawing from src. Two queues given sources with the same seed produce
// the same order.
func Seeded(src RandomSource) TieBreaker {
	if src == nil {
		panic("eventqueue: seeded tie breaker requires a random source")
	}

	return seeded{src: src}
}
