package proc

// Scheduler runs the single-hart cooperative round-robin loop of
// spec.md §4.5. Non-goal: SMP (spec.md Non-goals) — Current is a single
// field, not a per-hart array.
//
// A process's body runs on its own goroutine, but Run hands control
// back and forth with two unbuffered channels so that only one body is
// ever actually executing at a time; Yield is the only place a body
// gives up that exclusive turn. This models the real kernel's "context
// switch swaps callee-saved registers and jumps" with Go's own
// stack-switching primitive (goroutines) instead of hand-written
// assembly, which this build has no use for (see SPEC_FULL.md's
// execution-model note).
type Scheduler struct {
	Table   *Table
	Current *PCB
}

// NewScheduler binds a scheduler to a process table.
func NewScheduler(t *Table) *Scheduler {
	return &Scheduler{Table: t}
}

// Schedule picks the next StateRunnable PCB after Table.cur, wrapping
// around (spec.md §4.5: "round robin over runnable processes").
func (s *Scheduler) Schedule() *PCB {
	t := s.Table
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.slots)
	for i := 1; i <= n; i++ {
		idx := (t.cur + i) % n
		if t.slots[idx].State == StateRunnable {
			t.cur = idx
			return &t.slots[idx]
		}
	}
	return nil
}

func (p *PCB) start(s *Scheduler) {
	p.resume = make(chan struct{})
	p.done = make(chan struct{})
	p.started = true
	go func() {
		<-p.resume
		if p.Body != nil {
			p.Body(p)
		}
		s.Exit(p, p.ExitStatus)
		p.done <- struct{}{}
	}()
}

// Yield gives up the current turn, returning control to Run until the
// scheduler picks this PCB again (spec.md §4.5's cooperative yield
// point: the timer tick, or an explicit sched_yield).
func (p *PCB) Yield() {
	p.done <- struct{}{}
	<-p.resume
}

// Step runs one scheduling round: picks the next runnable PCB, resumes
// its goroutine (starting it on first use), and blocks until it hands
// control back via Yield or by returning from Body. Reports whether any
// process ran.
func (s *Scheduler) Step() bool {
	p := s.Schedule()
	if p == nil {
		return false
	}
	s.Current = p
	p.State = StateRunning
	if !p.started {
		p.start(s)
	}
	p.resume <- struct{}{}
	<-p.done
	if p.State == StateRunning {
		p.State = StateRunnable
	}
	s.Current = nil
	return true
}

// Run drives Step until no process is runnable, i.e. the machine is
// idle (every process is sleeping, zombie, or the table is empty).
func (s *Scheduler) Run() {
	for s.Step() {
	}
}
