package hooking

import "sync"

// PosCounter is a hook that counts how many times each hook position has
// been reached. It is safe to read while the simulation is running.
type PosCounter struct {
	lock   sync.Mutex
	counts map[string]uint64
}

// NewPosCounter creates a PosCounter.
func NewPosCounter() *PosCounter {
	return &PosCounter{
		counts: make(map[string]uint64),
	}
}

// Func counts the position of ctx.
func (c *PosCounter) Func(ctx HookCtx) {
	if ctx.Pos == nil {
		return
	}

	c.lock.Lock()
	c.counts[ctx.Pos.Name]++
	c.lock.Unlock()
}

// Count returns the number of times pos has been reached.
func (c *PosCounter) Count(pos *HookPos) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.counts[pos.Name]
}

// Snapshot returns a copy of all the counts, keyed by position name.
func (c *PosCounter) Snapshot() map[string]uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}

	return out
}
