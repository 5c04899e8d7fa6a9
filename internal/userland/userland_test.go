package userland

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/keix/claudia-sub001/internal/clint"
	"github.com/keix/claudia-sub001/internal/devfs"
	"github.com/keix/claudia-sub001/internal/fdtable"
	"github.com/keix/claudia-sub001/internal/mem"
	"github.com/keix/claudia-sub001/internal/platform"
	"github.com/keix/claudia-sub001/internal/proc"
	"github.com/keix/claudia-sub001/internal/syscall"
	"github.com/keix/claudia-sub001/internal/timekeeper"
	"github.com/keix/claudia-sub001/internal/uart"
	"github.com/keix/claudia-sub001/internal/vfs"
)

// bootKernel assembles just enough of cmd/claudia's boot sequence to
// run the init/shell stand-in end to end: a process table, a VFS with
// a console device wired to fds 0-2, and a syscall.Kernel.
func bootKernel(t *testing.T) (*syscall.Kernel, *proc.PCB, *bytes.Buffer) {
	t.Helper()
	proc.GlobalMappings = nil // exercises no real kernel-global region here

	phys := mem.NewPhysmem(0, 4096)
	tbl := proc.NewTable()
	sched := proc.NewScheduler(tbl)
	v := vfs.New()

	var out bytes.Buffer
	console := uart.New(&out, 256)
	consoleNode := &vfs.Vnode{Kind: vfs.KindDevice, Name: "console", Dev: devfs.Console{U: console}}

	proc.RegisterProgram("init-image", InitImage)
	proc.RegisterProgram("shell", ShellImage)

	init, err := proc.NewUserProcess(tbl, phys, "pre-init", platform.UserCodeBase)
	if err != 0 {
		t.Fatalf("NewUserProcess: %v", err)
	}
	if err := proc.Exec(tbl, init, "init-image"); err != 0 {
		t.Fatalf("exec init image: %v", err)
	}

	ops := vfs.File{Node: consoleNode}
	if _, err := init.Fds.Open(ops, fdtable.FDRead); err != 0 {
		t.Fatalf("install stdin: %v", err)
	}
	if _, err := init.Fds.Open(ops, fdtable.FDWrite); err != 0 {
		t.Fatalf("install stdout: %v", err)
	}
	if _, err := init.Fds.Open(ops, fdtable.FDWrite); err != 0 {
		t.Fatalf("install stderr: %v", err)
	}

	k := &syscall.Kernel{
		Procs: tbl,
		Sched: sched,
		VFS:   v,
		Sleep: timekeeper.NewQueue(),
		Clock: clint.NewWallClock(),
		Epoch: time.Now(),
	}
	init.Body = Init(k)
	return k, init, &out
}

// TestInitForksShellAndReapsIt drives the whole chain a real boot would:
// init forks, the child execs into the shell image and writes its
// transcript through the syscall-numbered write(2) path, exits, and
// init's wait4 loop reaps it before returning.
func TestInitForksShellAndReapsIt(t *testing.T) {
	k, _, out := bootKernel(t)

	k.Sched.Run()

	got := out.String()
	if !strings.Contains(got, "hello world") {
		t.Fatalf("console output missing shell transcript: %q", got)
	}
}
