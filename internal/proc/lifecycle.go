package proc

import (
	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/elfload"
	"github.com/keix/claudia-sub001/internal/fdtable"
	"github.com/keix/claudia-sub001/internal/mem"
	"github.com/keix/claudia-sub001/internal/platform"
	"github.com/keix/claudia-sub001/internal/trap"
	"github.com/keix/claudia-sub001/internal/vm"
)

// Fork clones parent into a freshly allocated child PCB (spec.md §4.6):
// an eager, full copy of every mapped user page (internal/vm's
// CloneUserSpace — no COW, a spec Non-goal), a cloned fd table sharing
// the parent's open files, and a trap frame identical to the parent's
// except a0, which the child sees as 0 so the syscall-return path tells
// parent and child apart (spec.md §8's testable property). The parent's
// eventual return value is childPid itself, to be stored in the
// parent's own a0 by the caller.
func Fork(t *Table, parent *PCB) (childPid int, err claudeerr.Errno) {
	child, err := t.Alloc(parent.Name)
	if err != 0 {
		return 0, err
	}

	child.PageTable, err = vm.Init(parent.Phys)
	if err != 0 {
		t.Reap(child)
		return 0, err
	}
	if err := installGlobalMappings(child.PageTable); err != 0 {
		child.PageTable.Deinit(false)
		t.Reap(child)
		return 0, err
	}
	child.Phys = parent.Phys
	if err := vm.CloneUserSpace(parent.PageTable, child.PageTable); err != 0 {
		child.PageTable.Deinit(true)
		t.Reap(child)
		return 0, err
	}

	tf := *parent.TrapFrame
	child.TrapFrame = &tf
	child.TrapFrame.SetA0(0)

	child.Fds = parent.Fds.Clone()
	child.Cwd = &fdtable.Cwd_t{Path: parent.Cwd.Get()}
	child.HeapStart = parent.HeapStart
	child.HeapBrk = parent.HeapBrk
	child.HeapEnd = parent.HeapEnd

	child.parent = parent.Self()
	child.hasParent = true
	child.State = StateRunnable

	return child.Pid, 0
}

// Exit transitions p to StateZombie, releases its fd table, and
// reparents any live children to pid 1 if one exists (spec.md §4.6).
// Idempotent: a process that called the exit syscall explicitly and
// then let its Body return only pays the cost once.
func (s *Scheduler) Exit(p *PCB, status int) {
	if p.State == StateZombie {
		return
	}
	p.ExitStatus = status
	p.State = StateZombie
	if p.Fds != nil {
		p.Fds.CloseAll()
	}

	children := s.Table.Children(p.Self())
	initProc, hasInit := s.Table.ByPid(1)
	for _, c := range children {
		if hasInit && initProc.Pid != p.Pid {
			c.parent = initProc.Self()
		} else {
			c.hasParent = false
		}
	}
}

// Wait4 implements spec.md §4.6: block (cooperatively yielding) until a
// matching child becomes a zombie, then reap it and report its pid and
// exit status. pid<=0 matches any child. ECHILD if parent has none.
func Wait4(s *Scheduler, parent *PCB, pid int) (reapedPid int, status int, err claudeerr.Errno) {
	for {
		children := s.Table.Children(parent.Self())
		if len(children) == 0 {
			return 0, 0, claudeerr.ECHILD
		}
		for _, c := range children {
			if pid > 0 && c.Pid != pid {
				continue
			}
			if c.State == StateZombie {
				st := c.ExitStatus
				rpid := c.Pid
				s.Table.Reap(c)
				return rpid, st, 0
			}
		}
		parent.Yield()
	}
}

// NewUserProcess allocates a PCB, its address space, and its trap frame
// in one step, used by the boot sequence to create the first process
// (spec.md §4.6). Exec does not use it: it replaces an existing PCB's
// contents in place rather than allocating a new slot.
func NewUserProcess(t *Table, phys *mem.Physmem_t, name string, entry uint64) (*PCB, claudeerr.Errno) {
	p, err := t.Alloc(name)
	if err != 0 {
		return nil, err
	}
	pt, err := vm.Init(phys)
	if err != 0 {
		t.Reap(p)
		return nil, err
	}
	if err := installGlobalMappings(pt); err != 0 {
		pt.Deinit(false)
		t.Reap(p)
		return nil, err
	}
	p.PageTable = pt
	p.Phys = phys
	p.TrapFrame = &trap.TrapFrame{Sepc: entry}
	p.Fds = fdtable.NewTable(platform.MaxFds)
	p.Cwd = fdtable.MkRootCwd()
	return p, 0
}

// execRegistry maps the short program names exec(2) recognizes to their
// ELF64 image bytes (spec.md §4.6: "look up program image by short-name
// registry"). The boot sequence populates this once with the images it
// constructs or embeds; proc itself only consults it.
var execRegistry = map[string][]byte{}

// RegisterProgram installs name's image in the exec registry. Called
// once at boot for every program the running system recognizes.
func RegisterProgram(name string, image []byte) {
	execRegistry[name] = image
}

// Exec implements spec.md §4.6: build a brand-new address space from
// name's registered ELF image, then replace p's in place. The build is
// transactional — the new page table, and everything mapped into it,
// is torn down on any failure, leaving p's existing address space
// running unmodified. On success p's heap pointers, trap frame, and
// page table are all replaced; by convention the caller (p's own Body,
// having issued this as the execve syscall) returns immediately
// afterward rather than continuing to execute the old program image.
func Exec(t *Table, p *PCB, name string) claudeerr.Errno {
	image, ok := execRegistry[name]
	if !ok {
		return claudeerr.ENOENT
	}

	newPT, err := vm.Init(p.Phys)
	if err != 0 {
		return err
	}
	if err := installGlobalMappings(newPT); err != 0 {
		newPT.Deinit(false)
		return err
	}

	entry, err := elfload.Load(newPT, p.Phys, image)
	if err != 0 {
		newPT.Deinit(true)
		return err
	}

	stackPages := platform.UserStackSize / mem.PageSize
	for i := 0; i < stackPages; i++ {
		pa, ok := p.Phys.Alloc()
		if !ok {
			newPT.Deinit(true)
			return claudeerr.ENOMEM
		}
		va := uint64(platform.UserStackBase) + uint64(i*mem.PageSize)
		if err := newPT.Map(va, pa, vm.PteR|vm.PteW|vm.PteU); err != 0 {
			newPT.Deinit(true)
			return err
		}
	}

	oldPT := p.PageTable
	p.PageTable = newPT
	p.HeapStart = platform.UserHeapBase
	p.HeapBrk = platform.UserHeapBase
	p.HeapEnd = platform.UserHeapBase + platform.UserHeapSize

	sp := uint64(platform.UserStackBase+platform.UserStackSize) - 16
	tf := &trap.TrapFrame{Sepc: entry}
	tf.Regs[trap.RegSP] = sp
	p.TrapFrame = tf

	oldPT.Deinit(true)
	return 0
}
