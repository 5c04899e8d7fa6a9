// Package diag renders fatal-trap diagnostics, adapted from the
// teacher's caller/caller.go Callerdump: a short backtrace printed
// before the kernel halts. On real hardware a Go-level runtime
// backtrace isn't available, so Snapshot instead captures the
// architectural state the trap handler already has in hand.
package diag

import (
	"fmt"

	"github.com/keix/claudia-sub001/internal/klog"
)

// Snapshot is the minimal architectural context worth printing when a
// trap turns out to be fatal (spec.md §4.4, §7). It copies the few
// trap-frame fields it prints rather than importing internal/trap;
// internal/trap does not import diag either and reports fatal traps
// only through its OnFatal callback.
type Snapshot struct {
	Pid    int
	Name   string
	Cause  uint64
	Sepc   uint64
	Stval  uint64
	Reason string
}

// Dump logs a one-paragraph fatal-trap report and returns the formatted
// text, in case a caller wants to also stash it as an exit message.
func Dump(s Snapshot) string {
	msg := fmt.Sprintf(
		"fatal trap in pid %d (%s): %s (cause=%#x sepc=%#x stval=%#x)",
		s.Pid, s.Name, s.Reason, s.Cause, s.Sepc, s.Stval,
	)
	klog.Fatalf("%s", msg)
	return msg
}

// KernelHalt reports an unrecoverable supervisor-mode fault (spec.md
// §7: "faults taken in supervisor mode other than from ecall are fatal
// to the whole system"). It never returns in the real build; the
// simulator build panics so tests can observe the condition.
func KernelHalt(reason string) {
	klog.Fatalf("kernel halt: %s", reason)
	panic("claudia: kernel halt: " + reason)
}
