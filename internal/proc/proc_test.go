package proc

import (
	"testing"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/limits"
	"github.com/keix/claudia-sub001/internal/mem"
	"github.com/keix/claudia-sub001/internal/platform"
	"github.com/keix/claudia-sub001/internal/vm"
)

func newTestProcess(t *testing.T, tbl *Table, name string) (*PCB, *mem.Physmem_t) {
	t.Helper()
	phys := mem.NewPhysmem(0, 64)
	p, err := NewUserProcess(tbl, phys, name, platform.UserCodeBase)
	if err != 0 {
		t.Fatalf("NewUserProcess: %v", err)
	}
	return p, phys
}

func TestForkChildSeesZeroParentSeesChildPid(t *testing.T) {
	tbl := NewTable()
	parent, _ := newTestProcess(t, tbl, "parent")
	parent.TrapFrame.SetA0(123) // parent's own a0 before fork, unrelated to pid

	childPid, err := Fork(tbl, parent)
	if err != 0 {
		t.Fatalf("fork: %v", err)
	}
	child, ok := tbl.ByPid(childPid)
	if !ok {
		t.Fatalf("child pid %d not found", childPid)
	}
	if int64(child.TrapFrame.A0()) != 0 {
		t.Fatalf("child a0 = %d, want 0", int64(child.TrapFrame.A0()))
	}
	if childPid == parent.Pid {
		t.Fatalf("child pid must differ from parent pid")
	}
}

func TestForkClonesAddressSpaceWithDistinctFrames(t *testing.T) {
	tbl := NewTable()
	parent, phys := newTestProcess(t, tbl, "parent")

	pa, ok := phys.Alloc()
	if !ok {
		t.Fatal("alloc failed")
	}
	const va = 0x12000
	if err := parent.PageTable.Map(va, pa, vm.PteR|vm.PteW|vm.PteU); err != 0 {
		t.Fatalf("map: %v", err)
	}
	phys.Arena().Read(pa, mem.PageSize)[0] = 0x7

	childPid, err := Fork(tbl, parent)
	if err != 0 {
		t.Fatalf("fork: %v", err)
	}
	child, _ := tbl.ByPid(childPid)

	childPA, ok := child.PageTable.Translate(va)
	if !ok {
		t.Fatalf("child has no mapping")
	}
	if childPA&^mem.Pa_t(mem.PageMask) == pa&^mem.Pa_t(mem.PageMask) {
		t.Fatalf("child frame must differ from parent frame")
	}
	if phys.Arena().Read(childPA&^mem.Pa_t(mem.PageMask), mem.PageSize)[0] != 0x7 {
		t.Fatalf("child content not copied")
	}
}

func TestAllocExhaustionReturnsEAGAIN(t *testing.T) {
	// Earlier tests in this binary leave processes allocated against the
	// shared system-wide budget; start this one from a full budget.
	old := limits.Syslimit
	limits.Syslimit = limits.MkSysLimit(platform.MaxProcs, platform.MaxProcs*platform.MaxFds, 20000, platform.MaxSleep)
	defer func() { limits.Syslimit = old }()

	tbl := NewTable()
	for i := 0; i < platform.MaxProcs; i++ {
		if _, err := tbl.Alloc("p"); err != 0 {
			t.Fatalf("unexpected exhaustion at %d: %v", i, err)
		}
	}
	if _, err := tbl.Alloc("overflow"); err != claudeerr.EAGAIN {
		t.Fatalf("got %v, want EAGAIN", err)
	}
}

func TestReapFreesSlotForReuse(t *testing.T) {
	tbl := NewTable()
	p, err := tbl.Alloc("once")
	if err != 0 {
		t.Fatalf("alloc: %v", err)
	}
	p.State = StateZombie
	tbl.Reap(p)
	if p.State != StateUnused {
		t.Fatalf("expected slot reclaimed")
	}
	if _, ok := tbl.ByPid(p.Pid); ok {
		t.Fatalf("reaped pid should not resolve")
	}
}

func TestSchedulerRunsChildAndParentReapsViaWait4(t *testing.T) {
	tbl := NewTable()
	sched := NewScheduler(tbl)

	parent, _ := newTestProcess(t, tbl, "parent")
	var gotPid, gotStatus int
	var gotErr claudeerr.Errno
	parent.Body = func(p *PCB) {
		childPid, err := Fork(tbl, p)
		if err != 0 {
			gotErr = err
			return
		}
		child, _ := tbl.ByPid(childPid)
		child.Body = func(c *PCB) { c.ExitStatus = 7 }

		gotPid, gotStatus, gotErr = Wait4(sched, p, childPid)
	}

	sched.Run()

	if gotErr != 0 {
		t.Fatalf("wait4 error: %v", gotErr)
	}
	if gotStatus != 7 {
		t.Fatalf("status = %d, want 7", gotStatus)
	}
	if gotPid == 0 {
		t.Fatalf("expected nonzero reaped pid")
	}
	if reaped, ok := tbl.ByPid(gotPid); ok {
		t.Fatalf("child pid %d should have been reaped, found state %v", gotPid, reaped.State)
	}
}

func TestWait4NoChildrenReturnsECHILD(t *testing.T) {
	tbl := NewTable()
	sched := NewScheduler(tbl)
	parent, _ := newTestProcess(t, tbl, "lonely")
	_, _, err := Wait4(sched, parent, -1)
	if err != claudeerr.ECHILD {
		t.Fatalf("got %v, want ECHILD", err)
	}
}

func TestExitReparentsChildrenToInit(t *testing.T) {
	tbl := NewTable()
	sched := NewScheduler(tbl)

	init, _ := newTestProcess(t, tbl, "init") // pid 1
	if init.Pid != 1 {
		t.Fatalf("expected init to be pid 1, got %d", init.Pid)
	}
	mid, _ := newTestProcess(t, tbl, "mid")
	childPid, err := Fork(tbl, mid)
	if err != 0 {
		t.Fatalf("fork: %v", err)
	}
	child, _ := tbl.ByPid(childPid)

	sched.Exit(mid, 0)

	if !child.hasParent || child.parent != init.Self() {
		t.Fatalf("orphan was not reparented to init")
	}
}
