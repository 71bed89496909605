// Package state owns the per-node shared process state: the last known
// process variable and the last commanded actuator level. It is the only
// channel through which the network loop, the physics or control tick,
// and the sandboxed program reach live process data.
package state

import (
	"math"
	"sync/atomic"
	"time"
)

// DefaultAcquireWait bounds how long any caller may wait for the guard.
// The real-time loops contending on the bridge must never stall longer
// than this; on expiry they proceed with a safe default.
const DefaultAcquireWait = 10 * time.Millisecond

// Bridge guards the two scalars against concurrent access. The critical
// section only ever copies one scalar in or out, keeping worst-case hold
// time bounded for the loops that contend on it.
type Bridge struct {
	sem  chan struct{}
	wait time.Duration

	processVariable float64
	actuatorCommand float64

	// lastReading shadows processVariable so a reader that loses the
	// bounded wait still gets the last externally-supplied value.
	lastReading atomic.Uint64

	timeouts atomic.Uint64
}

// NewBridge seeds the process variable (and its timeout fallback) with
// initialReading. A wait of zero or less selects DefaultAcquireWait.
func NewBridge(initialReading float64, wait time.Duration) *Bridge {
	if wait <= 0 {
		wait = DefaultAcquireWait
	}
	b := &Bridge{
		sem:             make(chan struct{}, 1),
		wait:            wait,
		processVariable: initialReading,
	}
	b.lastReading.Store(math.Float64bits(initialReading))
	return b
}

func (b *Bridge) acquire() bool {
	timer := time.NewTimer(b.wait)
	defer timer.Stop()
	select {
	case b.sem <- struct{}{}:
		return true
	case <-timer.C:
		b.timeouts.Add(1)
		return false
	}
}

func (b *Bridge) release() {
	<-b.sem
}

// ProcessVariable returns the last deposited reading. On guard timeout it
// falls back to the last successfully written value rather than blocking.
func (b *Bridge) ProcessVariable() float64 {
	if !b.acquire() {
		return math.Float64frombits(b.lastReading.Load())
	}
	v := b.processVariable
	b.release()
	return v
}

// SetProcessVariable deposits a fresh reading. On guard timeout the write
// is dropped and false returned; the next receive naturally supersedes it.
func (b *Bridge) SetProcessVariable(v float64) bool {
	if !b.acquire() {
		return false
	}
	b.processVariable = v
	b.release()
	b.lastReading.Store(math.Float64bits(v))
	return true
}

// ActuatorCommand returns the last commanded actuator level. On guard
// timeout it returns 0: the actuator fails de-energized, never stale-hot.
func (b *Bridge) ActuatorCommand() float64 {
	if !b.acquire() {
		return 0
	}
	v := b.actuatorCommand
	b.release()
	return v
}

// SetActuatorCommand stores a new actuator level, clamped to [0,1]. An
// out-of-range value is not an error; it is silently normalized. On guard
// timeout the write is dropped and false returned.
func (b *Bridge) SetActuatorCommand(v float64) bool {
	v = clamp01(v)
	if !b.acquire() {
		return false
	}
	b.actuatorCommand = v
	b.release()
	return true
}

// GuardTimeouts reports how many acquisitions expired their bounded wait.
func (b *Bridge) GuardTimeouts() uint64 {
	return b.timeouts.Load()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
