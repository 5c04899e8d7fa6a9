package vm

import (
	"testing"

	"github.com/keix/claudia-sub001/internal/mem"
)

func mapUserPages(t *testing.T, pt *PageTable, phys *mem.Physmem_t, va uint64, npages int, flags uint64) {
	t.Helper()
	for i := 0; i < npages; i++ {
		pa, ok := phys.Alloc()
		if !ok {
			t.Fatal("alloc failed")
		}
		if err := pt.Map(va+uint64(i*mem.PageSize), pa, flags); err != 0 {
			t.Fatalf("map: %v", err)
		}
	}
}

func TestCopyoutThenCopyinRoundtrip(t *testing.T) {
	pt, phys := newTestPT(t)
	const va = 0x10000
	mapUserPages(t, pt, phys, va, 1, PteR|PteW|PteU)

	want := []byte("hello, sv39")
	if err := pt.Copyout(va+8, want); err != 0 {
		t.Fatalf("copyout: %v", err)
	}
	got := make([]byte, len(want))
	if err := pt.Copyin(got, va+8); err != 0 {
		t.Fatalf("copyin: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCopySpansPageBoundary(t *testing.T) {
	pt, phys := newTestPT(t)
	const va = 0x20000
	mapUserPages(t, pt, phys, va, 2, PteR|PteW|PteU)

	buf := make([]byte, 4100)
	for i := range buf {
		buf[i] = byte(i)
	}
	if err := pt.Copyout(va, buf); err != 0 {
		t.Fatalf("copyout: %v", err)
	}
	got := make([]byte, len(buf))
	if err := pt.Copyin(got, va); err != 0 {
		t.Fatalf("copyin: %v", err)
	}
	for i := range buf {
		if got[i] != buf[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, got[i], buf[i])
		}
	}
}

func TestCopyoutRejectsReadOnlyMapping(t *testing.T) {
	pt, phys := newTestPT(t)
	const va = 0x30000
	mapUserPages(t, pt, phys, va, 1, PteR|PteU)

	if err := pt.Copyout(va, []byte("x")); err == 0 {
		t.Fatalf("expected EFAULT writing to read-only page")
	}
}

func TestCopyinInvalidAddress(t *testing.T) {
	pt, _ := newTestPT(t)
	buf := make([]byte, 4)
	if err := pt.Copyin(buf, 0x10); err == 0 {
		t.Fatalf("expected EFAULT for sentinel-low address")
	}
}

func TestCopyinStrStopsAtNUL(t *testing.T) {
	pt, phys := newTestPT(t)
	const va = 0x40000
	mapUserPages(t, pt, phys, va, 1, PteR|PteW|PteU)

	pt.Copyout(va, []byte("abc\x00garbage"))
	buf := make([]byte, 16)
	n, err := pt.CopyinStr(buf, va)
	if err != 0 {
		t.Fatalf("copyinstr: %v", err)
	}
	if string(buf[:n]) != "abc" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestCopyinStrTooLong(t *testing.T) {
	pt, phys := newTestPT(t)
	const va = 0x50000
	mapUserPages(t, pt, phys, va, 1, PteR|PteW|PteU)
	long := make([]byte, mem.PageSize)
	for i := range long {
		long[i] = 'a'
	}
	pt.Copyout(va, long)

	buf := make([]byte, 8)
	if _, err := pt.CopyinStr(buf, va); err == 0 {
		t.Fatalf("expected ENAMETOOLONG")
	}
}
