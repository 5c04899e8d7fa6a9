package mem

import "testing"

func TestAllocFreeStatsInvariant(t *testing.T) {
	p := NewPhysmem(0, 8)
	st0 := p.StatsOf()
	if st0.Free != 8 || st0.Total != 8 {
		t.Fatalf("got %+v", st0)
	}

	a, ok := p.Alloc()
	if !ok {
		t.Fatalf("alloc failed")
	}
	if st := p.StatsOf(); st.Free != 7 {
		t.Fatalf("free = %d, want 7", st.Free)
	}
	p.Free(a)
	if st := p.StatsOf(); st.Free != 8 {
		t.Fatalf("free = %d, want 8 after free", st.Free)
	}
}

func TestDoubleFreeIsNoop(t *testing.T) {
	p := NewPhysmem(0, 4)
	a, _ := p.Alloc()
	p.Free(a)
	p.Free(a) // must not panic or double-credit
	if st := p.StatsOf(); st.Free != 4 {
		t.Fatalf("free = %d, want 4", st.Free)
	}
}

func TestExhaustionReturnsFalse(t *testing.T) {
	p := NewPhysmem(0, 2)
	p.Alloc()
	p.Alloc()
	if _, ok := p.Alloc(); ok {
		t.Fatalf("expected exhaustion")
	}
}

func TestPinnedFrameSurvivesFree(t *testing.T) {
	p := NewPhysmem(0, 2)
	a, _ := p.Alloc()
	p.Pin(a)
	p.Free(a)
	if st := p.StatsOf(); st.Free != 1 {
		t.Fatalf("pinned frame was freed: %+v", st)
	}
}

func TestAllocationDeterministicOrder(t *testing.T) {
	p := NewPhysmem(0, 4)
	a1, _ := p.Alloc()
	a2, _ := p.Alloc()
	if a2 <= a1 {
		t.Fatalf("expected increasing allocation order, got %v then %v", a1, a2)
	}
}
