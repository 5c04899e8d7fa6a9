package timekeeper

import (
	"testing"
	"time"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/clint"
	"github.com/keix/claudia-sub001/internal/limits"
	"github.com/keix/claudia-sub001/internal/mem"
	"github.com/keix/claudia-sub001/internal/platform"
	"github.com/keix/claudia-sub001/internal/proc"
)

func TestTickWakesExpiredSleeperOnly(t *testing.T) {
	q := NewQueue()
	early := &proc.PCB{}
	late := &proc.PCB{}
	if _, err := q.Sleep(early, 100); err != 0 {
		t.Fatalf("sleep early: %v", err)
	}
	if _, err := q.Sleep(late, 1000); err != 0 {
		t.Fatalf("sleep late: %v", err)
	}

	woken := q.Tick(500)
	if len(woken) != 1 || woken[0] != early {
		t.Fatalf("expected only the early sleeper woken, got %v", woken)
	}
	if early.State != proc.StateRunnable {
		t.Fatalf("early sleeper not marked runnable")
	}
	if late.State != proc.StateSleeping {
		t.Fatalf("late sleeper should still be sleeping")
	}
}

func TestInterruptReportsRemainingCycles(t *testing.T) {
	q := NewQueue()
	p := &proc.PCB{}
	res, err := q.Sleep(p, 1000)
	if err != 0 {
		t.Fatalf("sleep: %v", err)
	}

	if !q.Interrupt(p, 400) {
		t.Fatalf("expected interrupt to find the sleeper")
	}
	if !res.Interrupted {
		t.Fatalf("expected Interrupted=true")
	}
	if res.RemainingCycles != 600 {
		t.Fatalf("remaining = %d, want 600", res.RemainingCycles)
	}
	if p.State != proc.StateRunnable {
		t.Fatalf("expected interrupted sleeper marked runnable")
	}
}

func TestInterruptUnknownProcessReturnsFalse(t *testing.T) {
	q := NewQueue()
	if q.Interrupt(&proc.PCB{}, 0) {
		t.Fatalf("expected false for a process never registered")
	}
}

func TestSleepReturnsEAGAINWhenSleeperBudgetExhausted(t *testing.T) {
	old := limits.Syslimit
	limits.Syslimit = limits.MkSysLimit(64, 2048, 20000, 1)
	defer func() { limits.Syslimit = old }()

	q := NewQueue()
	a := &proc.PCB{}
	b := &proc.PCB{}
	if _, err := q.Sleep(a, 100); err != 0 {
		t.Fatalf("first sleep: %v", err)
	}
	if _, err := q.Sleep(b, 100); err != claudeerr.EAGAIN {
		t.Fatalf("got %v, want EAGAIN", err)
	}
	if b.State == proc.StateSleeping {
		t.Fatalf("rejected sleeper should not be marked sleeping")
	}

	q.Tick(100)
	if _, err := q.Sleep(b, 200); err != 0 {
		t.Fatalf("sleep after budget freed by tick: %v", err)
	}
}

func TestNanosleepEndToEndThroughScheduler(t *testing.T) {
	tbl := proc.NewTable()
	sched := proc.NewScheduler(tbl)
	q := NewQueue()
	clk := &clint.ManualClock{}

	phys := mem.NewPhysmem(0, 16)
	p, err := proc.NewUserProcess(tbl, phys, "sleeper", platform.UserCodeBase)
	if err != 0 {
		t.Fatalf("new process: %v", err)
	}

	var gotRemaining time.Duration
	var gotErr claudeerr.Errno
	p.Body = func(p *proc.PCB) {
		gotRemaining, gotErr = Nanosleep(clk, q, p, 10*time.Millisecond)
	}

	if !sched.Step() {
		t.Fatalf("expected process to run and enter sleep")
	}
	if p.State != proc.StateSleeping {
		t.Fatalf("expected process sleeping after nanosleep call, got %v", p.State)
	}

	clk.Advance(clint.DurationToCycles(20 * time.Millisecond))
	q.Tick(clk.Cycles())

	if !sched.Step() {
		t.Fatalf("expected sleeper to resume and finish")
	}
	if gotErr != 0 {
		t.Fatalf("nanosleep returned error %v", gotErr)
	}
	if gotRemaining != 0 {
		t.Fatalf("expected zero remaining on a natural wake, got %v", gotRemaining)
	}
}
