// Package timekeeper implements the sleep queue spec.md §4.7 describes:
// a process blocks in nanosleep by registering (PCB, wake_cycles) here;
// cmd/claudia's run loop calls Tick whenever the SBI timer bridge
// reports a pending deadline, to wake anything whose deadline has
// passed. Interrupt wakes a sleeper early and reports the remaining duration the way nanosleep(2)
// fills in its "rem" output parameter. Grounded on the teacher's
// clint-adjacent time handling (internal/clint, already adapted from
// the platform's CLINT) rather than any single teacher file, since the
// retrieval pack carries no dedicated sleep-queue package.
package timekeeper

import (
	"sync"
	"time"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/clint"
	"github.com/keix/claudia-sub001/internal/limits"
	"github.com/keix/claudia-sub001/internal/proc"
)

// Result is filled in once a sleeper wakes, either normally (Tick) or
// early (Interrupt).
type Result struct {
	Interrupted     bool
	RemainingCycles uint64
}

type entry struct {
	p      *proc.PCB
	wake   uint64
	result *Result
}

// Queue is the kernel-wide sleep queue (spec.md §4.7). One per kernel,
// shared by every sleeping process.
type Queue struct {
	mu      sync.Mutex
	entries []*entry
}

// NewQueue returns an empty sleep queue.
func NewQueue() *Queue { return &Queue{} }

// Sleep registers p to wake at wakeCycles and marks it StateSleeping so
// the scheduler skips it until Tick or Interrupt makes it runnable
// again. The returned Result is populated before p.State flips back.
// Unlike proc.Table and fdtable.Table, q.entries has no fixed-size array
// behind it, so internal/limits.Syslimit.Sleeper is the only ceiling on
// how many processes may sleep at once; EAGAIN once it is spent.
func (q *Queue) Sleep(p *proc.PCB, wakeCycles uint64) (*Result, claudeerr.Errno) {
	if !limits.Syslimit.Sleeper.Take() {
		return nil, claudeerr.EAGAIN
	}
	r := &Result{}
	q.mu.Lock()
	q.entries = append(q.entries, &entry{p: p, wake: wakeCycles, result: r})
	q.mu.Unlock()
	p.State = proc.StateSleeping
	return r, 0
}

// Tick wakes every sleeper whose deadline is at or before now (spec.md
// §4.7: "scans the sleep queue on every timer tick"). Returns the
// woken PCBs for the caller to log or account for.
func (q *Queue) Tick(now uint64) []*proc.PCB {
	q.mu.Lock()
	defer q.mu.Unlock()
	var woken []*proc.PCB
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.wake <= now {
			e.p.State = proc.StateRunnable
			woken = append(woken, e.p)
			limits.Syslimit.Sleeper.Give()
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return woken
}

// Interrupt wakes p early (a delivered signal, spec.md §4.7's
// redesign note on EINTR), recording how much of its sleep remained.
// Reports false if p was not in the queue.
func (q *Queue) Interrupt(p *proc.PCB, now uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.p != p {
			continue
		}
		if e.wake > now {
			e.result.RemainingCycles = e.wake - now
		}
		e.result.Interrupted = true
		e.p.State = proc.StateRunnable
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		limits.Syslimit.Sleeper.Give()
		return true
	}
	return false
}

// Nanosleep implements the blocking half of the nanosleep syscall
// (spec.md §4.8): register p in q for d, cooperatively yield until
// woken, then report EINTR plus the remaining duration if a signal cut
// the sleep short. EAGAIN if the sleep queue's budget is spent, without
// ever marking p as sleeping.
func Nanosleep(clk clint.Clock, q *Queue, p *proc.PCB, d time.Duration) (remaining time.Duration, err claudeerr.Errno) {
	wake := clk.Cycles() + clint.DurationToCycles(d)
	res, serr := q.Sleep(p, wake)
	if serr != 0 {
		return 0, serr
	}
	for p.State == proc.StateSleeping {
		p.Yield()
	}
	if res.Interrupted {
		return clint.CyclesToDuration(res.RemainingCycles), claudeerr.EINTR
	}
	return 0, 0
}
