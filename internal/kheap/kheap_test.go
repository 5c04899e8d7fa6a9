package kheap

import "testing"

func TestAllocAdvancesAndAligns(t *testing.T) {
	h := New(0x1000, 64)
	a, err := h.Alloc(3, 8)
	if err != 0 {
		t.Fatalf("err = %v", err)
	}
	if a%8 != 0 {
		t.Fatalf("not aligned: %x", a)
	}
	b, err := h.Alloc(3, 8)
	if err != 0 {
		t.Fatalf("err = %v", err)
	}
	if b <= a {
		t.Fatalf("expected forward progress")
	}
}

func TestAllocExhaustionReturnsENOMEM(t *testing.T) {
	h := New(0, 8)
	if _, err := h.Alloc(16, 1); err == 0 {
		t.Fatalf("expected ENOMEM")
	}
}

func TestUsedAndTotalTrackAllocations(t *testing.T) {
	h := New(0x2000, 128)
	if h.Total() != 128 {
		t.Fatalf("total = %d, want 128", h.Total())
	}
	if h.Used() != 0 {
		t.Fatalf("used = %d, want 0 before any alloc", h.Used())
	}
	if _, err := h.Alloc(40, 8); err != 0 {
		t.Fatalf("alloc: %v", err)
	}
	if h.Used() != 40 {
		t.Fatalf("used = %d, want 40", h.Used())
	}
}
