package vm

import (
	"testing"

	"github.com/keix/claudia-sub001/internal/mem"
)

func newTestPT(t *testing.T) (*PageTable, *mem.Physmem_t) {
	t.Helper()
	phys := mem.NewPhysmem(0, 64)
	pt, err := Init(phys)
	if err != 0 {
		t.Fatalf("Init: %v", err)
	}
	return pt, phys
}

func TestMapThenTranslate(t *testing.T) {
	pt, phys := newTestPT(t)
	pa, ok := phys.Alloc()
	if !ok {
		t.Fatal("alloc failed")
	}
	const va = 0x4000
	if err := pt.Map(va, pa, PteR|PteW|PteU); err != 0 {
		t.Fatalf("Map: %v", err)
	}
	got, ok := pt.Translate(va + 0x10)
	if !ok {
		t.Fatalf("translate failed")
	}
	if got != pa+0x10 {
		t.Fatalf("translate = %#x, want %#x", got, pa+0x10)
	}
	flags, ok := pt.LookupFlags(va)
	if !ok || flags&(PteR|PteW|PteU|PteV) != (PteR|PteW|PteU|PteV) {
		t.Fatalf("flags = %#x", flags)
	}
}

func TestMapRejectsMisaligned(t *testing.T) {
	pt, phys := newTestPT(t)
	pa, _ := phys.Alloc()
	if err := pt.Map(1, pa, PteR); err == 0 {
		t.Fatalf("expected misalignment error")
	}
}

func TestTranslateUnmappedFails(t *testing.T) {
	pt, _ := newTestPT(t)
	if _, ok := pt.Translate(0x9000); ok {
		t.Fatalf("expected no mapping")
	}
}

func TestCloneUserSpaceCopiesContentAndDiffersInFrame(t *testing.T) {
	src, phys := newTestPT(t)
	dst, err := Init(phys)
	if err != 0 {
		t.Fatalf("Init dst: %v", err)
	}

	pa, _ := phys.Alloc()
	const va = 0x8000
	if err := src.Map(va, pa, PteR|PteW|PteU); err != 0 {
		t.Fatalf("map: %v", err)
	}
	buf := phys.Arena().Read(pa, mem.PageSize)
	buf[0] = 0x42

	if err := CloneUserSpace(src, dst); err != 0 {
		t.Fatalf("clone: %v", err)
	}

	childPA, ok := dst.Translate(va)
	if !ok {
		t.Fatalf("child has no mapping for va")
	}
	if childPA&^mem.Pa_t(mem.PageMask) == pa&^mem.Pa_t(mem.PageMask) {
		t.Fatalf("child frame must differ from parent frame")
	}
	childFlags, _ := dst.LookupFlags(va)
	srcFlags, _ := src.LookupFlags(va)
	if childFlags != srcFlags {
		t.Fatalf("permission mismatch: child=%#x src=%#x", childFlags, srcFlags)
	}
	childBuf := phys.Arena().Read(childPA&^mem.Pa_t(mem.PageMask), mem.PageSize)
	if childBuf[0] != 0x42 {
		t.Fatalf("content not copied")
	}
}

func TestDeinitFreesFrames(t *testing.T) {
	pt, phys := newTestPT(t)
	pa, _ := phys.Alloc()
	pt.Map(0x1000, pa, PteR|PteW|PteU)
	before := phys.StatsOf().Free
	pt.Deinit(true)
	after := phys.StatsOf().Free
	if after <= before {
		t.Fatalf("expected frames to be reclaimed: before=%d after=%d", before, after)
	}
}
