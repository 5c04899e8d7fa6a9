// Package proc implements the process table, round-robin scheduler,
// and fork/exec/exit/wait4 lifecycle of spec.md §4.5/§4.6. The teacher
// repo's own proc.go was not present in this retrieval pack (its
// kernel/ package is a stub carrying only chentry.go), so the PCB shape
// here is grounded on the sibling packages that are present: fd/fd.go's
// pattern of a small fixed struct plus a owning table, and vm/as.go's
// address-space lifecycle, which internal/vm already adapted. Handle
// indirection (Parent is a slot index plus a generation counter rather
// than a raw pointer) follows spec.md §9's explicit redesign note.
package proc

import (
	"sync"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/fdtable"
	"github.com/keix/claudia-sub001/internal/limits"
	"github.com/keix/claudia-sub001/internal/mem"
	"github.com/keix/claudia-sub001/internal/platform"
	"github.com/keix/claudia-sub001/internal/trap"
	"github.com/keix/claudia-sub001/internal/vm"
)

// State is a PCB's lifecycle stage (spec.md §4.5).
type State int

const (
	StateUnused State = iota
	StateRunnable
	StateRunning
	StateSleeping
	StateZombie
)

func (s State) String() string {
	switch s {
	case StateUnused:
		return "unused"
	case StateRunnable:
		return "runnable"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateZombie:
		return "zombie"
	default:
		return "?"
	}
}

// Context holds the callee-saved registers swapped across a cooperative
// context switch (spec.md §4.5: "the context switch itself... saves/
// restores the callee-saved register set"). ra/sp frame a resumption
// point; S holds s0..s11, the RISC-V callee-saved registers.
type Context struct {
	RA, SP uint64
	S      [12]uint64
}

// Handle names a process by table slot plus the generation the slot
// held when the handle was taken, so a stale Handle into a reused slot
// resolves to "not found" instead of silently addressing an impostor.
type Handle struct {
	idx int
	gen uint64
}

// PCB is one process control block (spec.md §3).
type PCB struct {
	Pid        int
	Name       string
	State      State
	gen        uint64
	tableIndex int
	parent     Handle
	hasParent  bool

	PageTable *vm.PageTable
	Phys      *mem.Physmem_t
	TrapFrame *trap.TrapFrame
	Fds       *fdtable.Table
	Cwd       *fdtable.Cwd_t

	HeapStart uint64
	HeapBrk   uint64
	HeapEnd   uint64

	ExitStatus int

	// Body is the user-mode trampoline driven by the scheduler; nil for
	// a kernel-only test PCB that is only ever stepped directly.
	Body func(p *PCB)

	resume  chan struct{}
	done    chan struct{}
	started bool
}

// Self returns a Handle identifying p's current table slot.
func (p *PCB) Self() Handle { return Handle{idx: p.tableIndex, gen: p.gen} }

// tableIndex is filled in by Table.Alloc; kept unexported so callers
// can't forge one.
func (p *PCB) setIndex(i int) { p.tableIndex = i }

// Table is the fixed-size process table (spec.md §4.5). A new process
// takes the first unused slot; a slot index has no fixed relation to
// the pid stored in it.
type Table struct {
	mu    sync.Mutex
	slots [platform.MaxProcs]PCB
	// cur is the slot round-robin resumes scanning from.
	cur    int
	nextPid int
}

// NewTable returns an empty process table with pid numbering starting
// at 1 (0 is reserved, matching POSIX's "no process has pid 0").
func NewTable() *Table {
	return &Table{nextPid: 1}
}

// Alloc reserves the first StateUnused slot for a new process. Returns
// EAGAIN when the table is full (spec.md §8: "process-table exhaustion
// returns -EAGAIN") or when the system-wide process budget
// (internal/limits.Syslimit.Procs) is already spent. The two ceilings
// are sized equal (platform.MaxProcs), and the budget is taken before
// the slot scan, so with a single table the budget check is what
// reports EAGAIN first.
func (t *Table) Alloc(name string) (*PCB, claudeerr.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !limits.Syslimit.Procs.Take() {
		return nil, claudeerr.EAGAIN
	}
	for i := range t.slots {
		if t.slots[i].State == StateUnused {
			p := &t.slots[i]
			p.Pid = t.nextPid
			t.nextPid++
			p.Name = name
			p.State = StateRunnable
			p.gen++
			p.hasParent = false
			p.ExitStatus = 0
			p.Body = nil
			p.resume = nil
			p.done = nil
			p.started = false
			p.setIndex(i)
			return p, 0
		}
	}
	limits.Syslimit.Procs.Give()
	return nil, claudeerr.EAGAIN
}

// Lookup resolves h to its PCB, or reports that the slot was reused or
// never allocated.
func (t *Table) Lookup(h Handle) (*PCB, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h.idx < 0 || h.idx >= len(t.slots) {
		return nil, false
	}
	p := &t.slots[h.idx]
	if p.State == StateUnused || p.gen != h.gen {
		return nil, false
	}
	return p, true
}

// ByPid scans for a live PCB with the given pid. O(MaxProcs); fine at
// this table size (spec.md's sizing note, §4.5).
func (t *Table) ByPid(pid int) (*PCB, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		p := &t.slots[i]
		if p.State != StateUnused && p.Pid == pid {
			return p, true
		}
	}
	return nil, false
}

// Children returns every live PCB whose parent handle resolves to
// parent's current slot+generation (used by Wait4).
func (t *Table) Children(parent Handle) []*PCB {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*PCB
	for i := range t.slots {
		p := &t.slots[i]
		if p.State == StateUnused || !p.hasParent {
			continue
		}
		if p.parent == parent {
			out = append(out, p)
		}
	}
	return out
}

// Reap clears a zombie's slot back to StateUnused, invalidating any
// outstanding Handle via the slot's generation counter (no need to bump
// gen here; Alloc bumps it on reuse).
func (t *Table) Reap(p *PCB) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.State == StateUnused {
		return
	}
	p.State = StateUnused
	p.PageTable = nil
	p.Fds = nil
	p.Cwd = nil
	p.TrapFrame = nil
	limits.Syslimit.Procs.Give()
}
