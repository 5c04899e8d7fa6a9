// Command claudia assembles and runs the simulator build of the
// kernel: the data flow spec.md §1 describes end to end — frame
// allocator, kernel-global page mappings, VFS, process table, initrd,
// first process, scheduler loop — minus the parts this build never
// needs because there is no RISC-V instruction interpreter under it
// (SPEC_FULL.md's execution-model note): user programs are Go closures
// driving internal/syscall.Dispatch directly rather than machine code
// the hart fetches. Grounded on the overall boot sequence spec.md
// describes; no single teacher file plays "kernel main" since the
// retrieval pack's own kernel boots through hand-written assembly this
// build has no use for.
package main

import (
	"os"
	"time"
	"unsafe"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/clint"
	"github.com/keix/claudia-sub001/internal/devfs"
	"github.com/keix/claudia-sub001/internal/diag"
	"github.com/keix/claudia-sub001/internal/fdtable"
	"github.com/keix/claudia-sub001/internal/kheap"
	"github.com/keix/claudia-sub001/internal/klog"
	"github.com/keix/claudia-sub001/internal/limits"
	"github.com/keix/claudia-sub001/internal/mem"
	"github.com/keix/claudia-sub001/internal/platform"
	"github.com/keix/claudia-sub001/internal/plic"
	"github.com/keix/claudia-sub001/internal/proc"
	"github.com/keix/claudia-sub001/internal/sbi"
	"github.com/keix/claudia-sub001/internal/simplefs"
	"github.com/keix/claudia-sub001/internal/syscall"
	"github.com/keix/claudia-sub001/internal/timekeeper"
	"github.com/keix/claudia-sub001/internal/uart"
	"github.com/keix/claudia-sub001/internal/userland"
	"github.com/keix/claudia-sub001/internal/ustr"
	"github.com/keix/claudia-sub001/internal/vfs"
	"github.com/keix/claudia-sub001/internal/vm"
)

// totalFrames sizes the simulated physical RAM pool: enough for the
// kernel-global mappings (text, a demo-scaled heap, MMIO) plus a
// handful of user processes' stacks, heaps, and ELF segments.
const totalFrames = 16384 // 64MiB at 4KiB pages

// demoKernelHeapPages stands in for platform.KernelHeapSize's full
// 64MiB: nothing in this build actually drives kheap.Heap hard enough
// to need the whole spec'd arena backed by simulated frames, and eager
// Map() would burn startup time backing all of it for no benefit.
const demoKernelHeapPages = 64

func main() {
	klog.Infof("claudia: booting")

	phys := mem.NewPhysmem(0, totalFrames)

	regions, err := buildGlobalMappings(phys)
	if err != 0 {
		klog.Fatalf("claudia: building kernel-global mappings: %v", err)
		os.Exit(1)
	}
	proc.GlobalMappings = regions

	// A throwaway page table, just to prove the global mapping set
	// translates correctly before any real process needs it (spec.md
	// §4.2's ordering rule).
	probe, err := vm.Init(phys)
	if err != 0 {
		klog.Fatalf("claudia: probe page table: %v", err)
		os.Exit(1)
	}
	if err := vm.BuildKernelGlobalMappings(probe, regions); err != 0 {
		klog.Fatalf("claudia: installing global mappings: %v", err)
		os.Exit(1)
	}
	if len(regions) > 0 && !vm.SelfTranslationTest(probe, regions[0].VA, mem.Pa_t(regions[0].PA)) {
		diag.KernelHalt("kernel-global mapping failed self-translation")
	}
	probe.Deinit(false)

	console := uart.New(os.Stdout, 256)

	// kh accounts for every kernel-lifetime descriptor minted at boot
	// (spec.md §4.3) against the reserved kernel-heap region; sized to
	// the frames buildGlobalMappings actually backed, not the full
	// platform.KernelHeapSize arena.
	kh := kheap.New(platform.KernelHeapBase, demoKernelHeapPages*platform.PageSize)

	v := vfs.New()
	mountInitrd(v)
	installDevices(v, console, kh)

	tbl := proc.NewTable()
	sched := proc.NewScheduler(tbl)

	clock := clint.NewWallClock()
	bridge := sbi.NewBridge(clock)
	plicDev := plic.New(func(int) bool { return console.HasPending() })
	plicDev.Enable(platform.PLICSourceUART0)

	k := &syscall.Kernel{
		Procs: tbl,
		Sched: sched,
		VFS:   v,
		Sleep: timekeeper.NewQueue(),
		Clock: clock,
		Epoch: time.Now(),
		Heap:  kh,
	}

	proc.RegisterProgram("init", userland.InitImage)
	proc.RegisterProgram("shell", userland.ShellImage)

	init, err := proc.NewUserProcess(tbl, phys, "init", platform.UserCodeBase)
	if err != 0 {
		klog.Fatalf("claudia: creating init: %v", err)
		os.Exit(1)
	}
	if err := proc.Exec(tbl, init, "init"); err != 0 {
		klog.Fatalf("claudia: exec init: %v", err)
		os.Exit(1)
	}
	wireStdio(init, console, kh)
	init.Body = userland.Init(k)

	klog.Infof("claudia: pid 1 ready, entering scheduler loop")
	runLoop(k, bridge, plicDev)
	klog.Infof("claudia: scheduler idle, halting")
}

// buildGlobalMappings carves the kernel-global region set every
// process page table carries (spec.md §3): an identity-style kernel
// text range, a kernel heap arena, and one MMIO page each for the
// UART/CLINT/PLIC devices. Called once, before the first page table
// exists, so the frames it allocates come back contiguous (the
// allocator is a fresh, empty bitmap scanned low-to-high). Every frame
// is pinned: these leaves are aliased into every process's page table,
// but only this function owns them, and internal/proc's Exec frees a
// process's old page table (and Fork a half-built child's) with
// freeLeaves=true — without pinning,
// that would silently hand kernel text or MMIO back to the allocator
// (spec.md §4.1's "rejects the sentinel addresses" contract).
func buildGlobalMappings(phys *mem.Physmem_t) ([]vm.Region, claudeerr.Errno) {
	var regions []vm.Region

	textPA, err := allocRun(phys, 4)
	if err != 0 {
		return nil, err
	}
	regions = append(regions, vm.Region{VA: platform.KernelBase, PA: uint64(textPA), Npages: 4, Flags: vm.PteR | vm.PteX})

	heapPA, err := allocRun(phys, demoKernelHeapPages)
	if err != 0 {
		return nil, err
	}
	regions = append(regions, vm.Region{VA: platform.KernelHeapBase, PA: uint64(heapPA), Npages: demoKernelHeapPages, Flags: vm.PteR | vm.PteW})

	for _, va := range []uint64{platform.UARTBase, platform.CLINTBase, platform.PLICBase} {
		pa, ok := phys.Alloc()
		if !ok {
			return nil, claudeerr.ENOMEM
		}
		regions = append(regions, vm.Region{VA: va, PA: uint64(pa), Npages: 1, Flags: vm.PteR | vm.PteW})
	}

	for _, r := range regions {
		for i := 0; i < r.Npages; i++ {
			phys.Pin(mem.Pa_t(r.PA) + mem.Pa_t(i*mem.PageSize))
		}
	}
	return regions, 0
}

// allocRun allocates n frames back to back, relying on the allocator's
// low-to-high first-fit order to hand back a contiguous run.
func allocRun(phys *mem.Physmem_t, n int) (mem.Pa_t, claudeerr.Errno) {
	first, ok := phys.Alloc()
	if !ok {
		return 0, claudeerr.ENOMEM
	}
	for i := 1; i < n; i++ {
		if _, ok := phys.Alloc(); !ok {
			return 0, claudeerr.ENOMEM
		}
	}
	return first, 0
}

// runLoop drives the scheduler and the sleep queue together (spec.md
// §4.7: the timer tick wakes sleepers between scheduling rounds).
// There is no hardware timer interrupt to wait for in the simulator
// build, so each round just polls bridge.Pending() and the PLIC's
// claim inline, rather than trapping into internal/trap.Dispatch's
// OnTimerTick/OnExternal; nothing in this build calls Dispatch.
func runLoop(k *syscall.Kernel, bridge *sbi.Bridge, pl *plic.Plic_t) {
	for {
		if k.Power != sbi.PowerNone {
			klog.Infof("claudia: power action requested: %v", k.Power)
			return
		}
		if bridge.Pending() {
			k.Sleep.Tick(bridge.Now())
			bridge.SetTimer(^uint64(0))
		}
		if src := pl.Claim(); src != 0 {
			pl.Complete(src)
		}
		if !k.Sched.Step() {
			return
		}
	}
}

func mountInitrd(v *vfs.VFS) {
	image, buildErr := simplefs.BuildImage(map[string][]byte{
		"motd": []byte("Hi\n"),
	})
	if buildErr != nil {
		klog.Fatalf("claudia: building initrd: %v", buildErr)
		os.Exit(1)
	}
	if mountErr := simplefs.Mount(v, image); mountErr != nil {
		klog.Fatalf("claudia: mounting initrd: %v", mountErr)
		os.Exit(1)
	}
}

// vnodeSize estimates the bytes a device vnode occupies in the kernel
// heap, charged via kh.Alloc before each Mknod below (spec.md §4.3:
// "objects with kernel lifetime" live here, not in the per-process
// arenas). Go's own allocator still backs the Vnode struct itself, the
// same way internal/mem's Physmem_t tracks frame ownership in a bitmap
// while a real Go byte slice backs the simulated RAM those frames
// describe; kh's cursor is the kernel-heap-consumption ledger, not a
// literal placement address.
var vnodeSize = int(unsafe.Sizeof(vfs.Vnode{}))

func installDevices(v *vfs.VFS, console *uart.Uart_t, kh *kheap.Heap) {
	if err := v.CreateDirectory(v.Root, ustr.Ustr("/dev"), 0755); err != 0 {
		klog.Fatalf("claudia: mkdir /dev: %v", err)
		os.Exit(1)
	}
	mounts := []struct {
		path string
		dev  vfs.Device
	}{
		{"/dev/console", devfs.Console{U: console}},
		{"/dev/null", devfs.Null{}},
		{"/dev/stat", devfs.Stat{Limits: limits.Syslimit, Heap: kh}},
		{"/dev/prof", devfs.NewProf()},
	}
	for _, m := range mounts {
		if _, err := kh.Alloc(vnodeSize, 8); err != 0 {
			klog.Fatalf("claudia: kernel heap exhausted mounting %s: %v", m.path, err)
			os.Exit(1)
		}
		if err := v.Mknod(v.Root, ustr.Ustr(m.path), m.dev); err != 0 {
			klog.Fatalf("claudia: mknod %s: %v", m.path, err)
			os.Exit(1)
		}
	}
}

// wireStdio installs fds 0-2, all pointed at the console (spec.md §6:
// stdin/stdout/stderr default to the terminal device), relying on
// fdtable.Table.Open's lowest-free-index allocation to land them at
// 0, 1, 2 on a freshly built process. The shared console vnode is
// itself a kernel-lifetime descriptor (every process's stdio points at
// this one instance), so its creation is charged against kh the same
// way installDevices charges /dev's entries.
func wireStdio(p *proc.PCB, console *uart.Uart_t, kh *kheap.Heap) {
	if _, err := kh.Alloc(vnodeSize, 8); err != 0 {
		klog.Fatalf("claudia: kernel heap exhausted wiring stdio: %v", err)
		os.Exit(1)
	}
	node := &vfs.Vnode{Kind: vfs.KindDevice, Name: "console", Dev: devfs.Console{U: console}}
	ops := vfs.File{Node: node}
	for _, mode := range []int{fdtable.FDRead, fdtable.FDWrite, fdtable.FDWrite} {
		if _, err := p.Fds.Open(ops, mode); err != 0 {
			klog.Fatalf("claudia: installing stdio: %v", err)
			os.Exit(1)
		}
	}
}
