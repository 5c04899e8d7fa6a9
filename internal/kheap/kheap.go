// Package kheap is the kernel's bump allocator (spec.md §4.3), carved
// out of an identity-mapped kernel region. Free is a documented no-op;
// this matches the teacher's choice (biscuit likewise never reclaims
// certain long-lived kernel arenas) and the spec's explicit contract.
package kheap

import "github.com/keix/claudia-sub001/internal/claudeerr"

// Heap is a bump allocator over [base, base+size).
type Heap struct {
	base, end, cursor uintptr
}

// New creates a heap spanning [base, base+size).
func New(base uintptr, size int) *Heap {
	return &Heap{base: base, end: base + uintptr(size), cursor: base}
}

// Alloc rounds the cursor up to align and reserves size bytes, returning
// the resulting address. It fails with ENOMEM once the arena is
// exhausted.
func (h *Heap) Alloc(size int, align uintptr) (uintptr, claudeerr.Errno) {
	if align == 0 {
		align = 1
	}
	start := (h.cursor + align - 1) &^ (align - 1)
	if start+uintptr(size) > h.end {
		return 0, claudeerr.ENOMEM
	}
	h.cursor = start + uintptr(size)
	return start, 0
}

// Free is a documented no-op (spec.md §4.3).
func (h *Heap) Free(uintptr) {}

// Used reports bytes consumed so far, for diagnostics.
func (h *Heap) Used() int { return int(h.cursor - h.base) }

// Total reports the arena's full size, for diagnostics.
func (h *Heap) Total() int { return int(h.end - h.base) }
