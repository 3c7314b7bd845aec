// Package simclock adapts the teacher's Lamport logical clock into the
// optional causal-ordering enrichment described in SPEC_FULL.md: when a
// session's SimulationParameters opts into CausalOrdering, the engine stamps
// every outbound Message with a Lamport counter via this clock instead of
// leaving Message.Seq unset.
package simclock

import "sync"

// LamportClock is one process's logical clock (the engine keeps one per
// node), advanced on every causally
// significant local event (message send) and folded forward on receipt of a
// remote timestamp.
type LamportClock struct {
	mu   sync.RWMutex
	time uint64
}

// New creates a clock starting at 0.
func New() *LamportClock {
	return &LamportClock{}
}

// Time returns the current clock value without advancing it.
func (c *LamportClock) Time() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.time
}

// Tick advances the clock by 1 and returns the new value. Called before
// stamping an outbound message.
func (c *LamportClock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time++
	return c.time
}

// Observe folds a received timestamp into the local clock: the new value is
// max(local, received) + 1.
func (c *LamportClock) Observe(received uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if received > c.time {
		c.time = received
	}
	c.time++
	return c.time
}

// Compare reports the Lamport ordering of two timestamps: -1 if a < b, 1 if
// a > b, 0 if equal. Equal or "a < b" does not by itself imply
// happens-before — Lamport clocks only witness it, they don't decide
// concurrency.
func Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
