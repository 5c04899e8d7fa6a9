// Package sbi models the firmware bridge a supervisor-mode kernel uses
// to schedule its next timer interrupt (spec.md §6): the legacy SBI
// timer extension, `a7=0, a0=next_mtime; ecall`. The repository has only
// the simulator build, which makes no ecall into firmware and just
// records the requested deadline against its clint.Clock.
package sbi

import (
	"github.com/keix/claudia-sub001/internal/clint"
	"github.com/keix/claudia-sub001/internal/platform"
)

// Bridge schedules S-timer interrupts against a clint.Clock.
type Bridge struct {
	clock clint.Clock
	next  uint64
}

// NewBridge binds a timer bridge to the given cycle source.
func NewBridge(clock clint.Clock) *Bridge {
	return &Bridge{clock: clock, next: ^uint64(0)}
}

// SetTimer is the SBI legacy eid=0 call: schedule the next S-timer
// interrupt at the given absolute mtime value.
func (b *Bridge) SetTimer(nextMtime uint64) {
	b.next = nextMtime
}

// Pending reports whether the scheduled deadline has elapsed, which
// cmd/claudia's runLoop polls once per scheduler iteration in lieu of a
// hardware-asserted S-timer interrupt line.
func (b *Bridge) Pending() bool {
	return b.clock.Cycles() >= b.next
}

// Now returns the current cycle count.
func (b *Bridge) Now() uint64 { return b.clock.Cycles() }

// Shutdown and Reboot model the platform test device's magic writes
// (spec.md §6). The simulator build cannot actually halt the host
// process's scheduler loop from here; callers observe the returned
// signal and unwind themselves.
type PowerSignal int

const (
	PowerNone PowerSignal = iota
	PowerShutdown
	PowerReboot
)

// DecodeTestWrite interprets a 32-bit write to the "virt" platform's
// test device (spec.md §6), returning the power action it requests. A
// boot loop checks this after any write targeting platform.TestBase and
// unwinds itself on anything other than PowerNone. This build has no
// MMIO-store trap path to hang that off of (ecalls are the only trap
// source), so internal/syscall's sys_reboot calls this directly with
// its a0 argument standing in for the magic value.
func DecodeTestWrite(v uint32) PowerSignal {
	switch v {
	case platform.TestShutdown:
		return PowerShutdown
	case platform.TestReboot:
		return PowerReboot
	default:
		return PowerNone
	}
}
