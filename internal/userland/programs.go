// programs.go wires the two placeholder user programs (internal/
// userland's InitImage/ShellImage) to actual Body closures the
// scheduler can run. Both closures drive the kernel exclusively
// through internal/syscall.Dispatch with hand-built trap frames,
// exercising the real ecall-numbered entry points rather than calling
// kernel packages directly — the same path a real user binary's libc
// would take, just without an instruction interpreter underneath it
// (see SPEC_FULL.md's execution-model note). The interactive shell
// itself — its line editor, command table, and per-command utilities —
// is an explicit spec Non-goal; Shell below prints one canned
// transcript in its place, just enough to prove write/exit/execve/
// wait4 all work end to end.
package userland

import (
	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/klog"
	"github.com/keix/claudia-sub001/internal/platform"
	"github.com/keix/claudia-sub001/internal/proc"
	"github.com/keix/claudia-sub001/internal/syscall"
	"github.com/keix/claudia-sub001/internal/trap"
)

// scratchVA is a fixed offset into a process's own user stack region
// used to stage short strings before a syscall that reads them back
// out of user memory — always valid since every program built from
// these placeholder images maps UserStackBase R|W|U.
const scratchVA = uint64(platform.UserStackBase)

func ecall(k *syscall.Kernel, p *proc.PCB, no uint64, a0, a1, a2 uint64) int64 {
	tf := &trap.TrapFrame{}
	tf.Regs[trap.RegA7] = no
	tf.Regs[trap.RegA0] = a0
	tf.Regs[trap.RegA1] = a1
	tf.Regs[trap.RegA2] = a2
	return syscall.Dispatch(k, p, tf)
}

func writeString(k *syscall.Kernel, p *proc.PCB, fd int, s string) {
	buf := []byte(s)
	if err := p.PageTable.Copyout(scratchVA, buf); err != 0 {
		klog.Warnf("userland: write staging failed: %v", err)
		return
	}
	ecall(k, p, syscall.SysWrite, uint64(fd), scratchVA, uint64(len(buf)))
}

func exit(k *syscall.Kernel, p *proc.PCB, status int64) {
	ecall(k, p, syscall.SysExit, uint64(status), 0, 0)
}

// Init returns pid 1's body (spec.md §4.6's reaper convention): fork
// once, hand the child the Shell program, then wait4 until no children
// remain. In this simulator fork's child starts with no Body of its
// own (a Go closure can't literally continue "the same code" the way a
// forked process resumes the same machine code on real hardware); the
// forking caller assigns what the child becomes, exactly as
// proc's own fork tests do.
func Init(k *syscall.Kernel) func(p *proc.PCB) {
	return func(p *proc.PCB) {
		klog.Infof("init: pid %d starting", p.Pid)
		ret := ecall(k, p, syscall.SysClone, 0, 0, 0)
		if ret < 0 {
			klog.Warnf("init: fork failed: %d", ret)
			return
		}
		if child, ok := k.Procs.ByPid(int(ret)); ok {
			child.Body = Shell(k)
		}
		for {
			r := ecall(k, p, syscall.SysWait4, ^uint64(0), 0, 0)
			if r == claudeerr.ECHILD.Neg() {
				break
			}
		}
		klog.Infof("init: all children reaped")
	}
}

// Shell returns the stand-in shell's body: execve itself into
// ShellImage (proving the registry/ELF/address-space-replace path),
// then print one fixed transcript and exit. A real shell's line editor
// and command table are out of scope; this replaces them with the
// smallest thing that still drives write(2) through the syscall gate.
func Shell(k *syscall.Kernel) func(p *proc.PCB) {
	return func(p *proc.PCB) {
		if err := p.PageTable.Copyout(scratchVA, append([]byte("shell"), 0)); err != 0 {
			klog.Warnf("shell: name staging failed: %v", err)
			return
		}
		if ret := ecall(k, p, syscall.SysExecve, scratchVA, 0, 0); ret != 0 {
			klog.Warnf("shell: execve failed: %d", ret)
			return
		}
		writeString(k, p, 1, "claudia:/ # echo hello world\nhello world\nclaudia:/ # exit\n")
		exit(k, p, 0)
	}
}
