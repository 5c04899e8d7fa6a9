// Package clint models the Core-Local Interruptor's timer register
// (rdtime), spec.md §4.11. The real instruction reads a CSR counting
// platform cycles since reset; the simulator build derives the same
// quantity from wall-clock time so "sleep accuracy" tests (spec.md §8)
// observe real elapsed time.
package clint

import (
	"time"

	"github.com/keix/claudia-sub001/internal/platform"
)

// Clock abstracts the rdtime source so tests can drive it manually
// instead of depending on wall-clock time.
type Clock interface {
	Cycles() uint64
}

// WallClock derives cycle counts from time.Since(epoch) at TimerHz.
type WallClock struct{ epoch time.Time }

// NewWallClock starts a wall-clock cycle source ticking from now.
func NewWallClock() *WallClock { return &WallClock{epoch: time.Now()} }

// Cycles reports elapsed platform cycles since the clock was created.
func (w *WallClock) Cycles() uint64 {
	return uint64(time.Since(w.epoch)) * platform.TimerHz / uint64(time.Second)
}

// ManualClock is driven explicitly by tests via Advance.
type ManualClock struct{ cur uint64 }

// Cycles returns the manually maintained counter.
func (m *ManualClock) Cycles() uint64 { return m.cur }

// Advance moves the clock forward by n cycles.
func (m *ManualClock) Advance(n uint64) { m.cur += n }

// CyclesToDuration converts a cycle count to a time.Duration at TimerHz.
func CyclesToDuration(cycles uint64) time.Duration {
	return time.Duration(cycles) * time.Second / time.Duration(platform.TimerHz)
}

// DurationToCycles is the inverse of CyclesToDuration.
func DurationToCycles(d time.Duration) uint64 {
	return uint64(d) * platform.TimerHz / uint64(time.Second)
}
