// Package vm implements the Sv39 three-level page table (spec.md §3,
// §4.2): the PTE flag set, map/translate/deinit, kernel-global mapping
// installation, and fork's eager user-space clone. PTE bit layout and
// the map/walk control flow are adapted from the teacher's vm/as.go
// (Page_insert, pmap_walk, the PTE_* constants); the teacher's
// copy-on-write and demand-paging machinery around those primitives is
// dropped per spec.md's Non-goals — every mapping here is eagerly
// backed by a real frame the moment Map is called.
package vm

import (
	"encoding/binary"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/mem"
)

// Sv39 PTE flag bits (spec.md §3).
const (
	PteV = uint64(1) << 0
	PteR = uint64(1) << 1
	PteW = uint64(1) << 2
	PteX = uint64(1) << 3
	PteU = uint64(1) << 4
	PteG = uint64(1) << 5
	PteA = uint64(1) << 6
	PteD = uint64(1) << 7

	pteFlagMask = uint64(0x3ff)
)

const entriesPerTable = 512

// PageTable is a rooted 3-level Sv39 tree.
type PageTable struct {
	phys *mem.Physmem_t
	Root mem.Pa_t
}

// Init allocates a zeroed root frame (spec.md §4.2).
func Init(phys *mem.Physmem_t) (*PageTable, claudeerr.Errno) {
	root, ok := phys.Alloc()
	if !ok {
		return nil, claudeerr.ENOMEM
	}
	return &PageTable{phys: phys, Root: root}, 0
}

func (pt *PageTable) readEntry(frame mem.Pa_t, idx int) uint64 {
	b := pt.phys.Arena().Read(frame, mem.PageSize)
	return binary.LittleEndian.Uint64(b[idx*8:])
}

func (pt *PageTable) writeEntry(frame mem.Pa_t, idx int, v uint64) {
	b := pt.phys.Arena().Read(frame, mem.PageSize)
	binary.LittleEndian.PutUint64(b[idx*8:], v)
}

func mkpte(addr mem.Pa_t, flags uint64) uint64 {
	ppn := uint64(addr) >> mem.PageShift
	return (ppn << 10) | (flags & pteFlagMask) | PteV
}

func pteAddr(pte uint64) mem.Pa_t {
	return mem.Pa_t((pte >> 10) << mem.PageShift)
}

func pteFlags(pte uint64) uint64 {
	return pte & pteFlagMask
}

func vpn(va uint64, level int) int {
	return int((va >> uint(mem.PageShift+9*level)) & 0x1ff)
}

// walk descends the tree for va, allocating intermediate tables as it
// goes when alloc is true. It returns a pointer descriptor (frame,
// index) for the level-0 leaf slot.
func (pt *PageTable) walk(va uint64, alloc bool) (frame mem.Pa_t, idx int, err claudeerr.Errno) {
	cur := pt.Root
	for level := 2; level > 0; level-- {
		i := vpn(va, level)
		ent := pt.readEntry(cur, i)
		if ent&PteV == 0 {
			if !alloc {
				return 0, 0, claudeerr.ENOENT
			}
			child, ok := pt.phys.Alloc()
			if !ok {
				return 0, 0, claudeerr.ENOMEM
			}
			pt.writeEntry(cur, i, mkpte(child, 0))
			cur = child
		} else if ent&(PteR|PteW|PteX) != 0 {
			// a leaf at a non-final level would be a superpage; this
			// kernel never creates one (spec.md §4.2: 4KiB pages only).
			return 0, 0, claudeerr.EINVAL
		} else {
			cur = pteAddr(ent)
		}
	}
	return cur, vpn(va, 0), 0
}

// Map installs a leaf PTE for va -> pa with the given flags (spec.md
// §4.2). Both addresses must be page-aligned.
func (pt *PageTable) Map(va uint64, pa mem.Pa_t, flags uint64) claudeerr.Errno {
	if va%mem.PageSize != 0 || uint64(pa)%mem.PageSize != 0 {
		return claudeerr.EINVAL // "Misaligned"
	}
	frame, idx, err := pt.walk(va, true)
	if err != 0 {
		return err
	}
	pt.writeEntry(frame, idx, mkpte(pa, flags))
	return 0
}

// Translate walks va to its backing physical address, or reports that
// no mapping exists.
func (pt *PageTable) Translate(va uint64) (mem.Pa_t, bool) {
	frame, idx, err := pt.walk(va, false)
	if err != 0 {
		return 0, false
	}
	ent := pt.readEntry(frame, idx)
	if ent&PteV == 0 {
		return 0, false
	}
	return pteAddr(ent) | mem.Pa_t(va&uint64(mem.PageMask)), true
}

// LookupFlags returns the permission flags of va's leaf PTE, used by
// internal/vm's copy primitives to check R/W/U before touching memory.
func (pt *PageTable) LookupFlags(va uint64) (uint64, bool) {
	frame, idx, err := pt.walk(va, false)
	if err != 0 {
		return 0, false
	}
	ent := pt.readEntry(frame, idx)
	if ent&PteV == 0 {
		return 0, false
	}
	return pteFlags(ent), true
}

// Unmap clears the leaf entry for va, if any, without freeing the frame
// it pointed at (the caller owns that decision).
func (pt *PageTable) Unmap(va uint64) {
	frame, idx, err := pt.walk(va, false)
	if err != 0 {
		return
	}
	pt.writeEntry(frame, idx, 0)
}

// deinitLevel recursively frees every child frame of a non-leaf table,
// then the table frame itself.
func (pt *PageTable) deinitLevel(frame mem.Pa_t, level int, freeLeaves bool) {
	if level > 0 {
		for i := 0; i < entriesPerTable; i++ {
			ent := pt.readEntry(frame, i)
			if ent&PteV == 0 {
				continue
			}
			if ent&(PteR|PteW|PteX) != 0 {
				if freeLeaves {
					pt.phys.Free(pteAddr(ent))
				}
				continue
			}
			pt.deinitLevel(pteAddr(ent), level-1, freeLeaves)
		}
	}
	pt.phys.Free(frame)
}

// Deinit walks and frees all child frames then the root (spec.md §4.2).
// freeLeaves controls whether mapped user pages are also released; the
// kernel-global page table's text/heap/MMIO leaves are never owned by
// it, so callers pass false there.
func (pt *PageTable) Deinit(freeLeaves bool) {
	pt.deinitLevel(pt.Root, 2, freeLeaves)
}

// Region describes one kernel-global mapping to install.
type Region struct {
	VA, PA uint64
	Npages int
	Flags  uint64
}

// BuildKernelGlobalMappings installs every kernel-global region (text,
// heap, MMIO, kernel stacks), all carrying PteG, per spec.md §4.2. Data
// and MMIO regions must not carry PteX; callers are expected to have
// already excluded it from non-text regions' Flags.
func BuildKernelGlobalMappings(pt *PageTable, regions []Region) claudeerr.Errno {
	for _, r := range regions {
		for i := 0; i < r.Npages; i++ {
			off := uint64(i * mem.PageSize)
			if err := pt.Map(r.VA+off, mem.Pa_t(r.PA+off), r.Flags|PteG); err != 0 {
				return err
			}
		}
	}
	return 0
}

// SelfTranslationTest verifies that a representative kernel-global
// address translates correctly before the MMU is enabled (spec.md
// §4.2's "ordering rule").
func SelfTranslationTest(pt *PageTable, va uint64, wantPA mem.Pa_t) bool {
	pa, ok := pt.Translate(va)
	return ok && pa&^mem.Pa_t(mem.PageMask) == wantPA&^mem.Pa_t(mem.PageMask)
}

// leafVAs enumerates every U-accessible leaf virtual address currently
// mapped in pt, used by CloneUserSpace.
func (pt *PageTable) leafVAs() []uint64 {
	var out []uint64
	var walk func(frame mem.Pa_t, level int, vaPrefix uint64)
	walk = func(frame mem.Pa_t, level int, vaPrefix uint64) {
		for i := 0; i < entriesPerTable; i++ {
			ent := pt.readEntry(frame, i)
			if ent&PteV == 0 {
				continue
			}
			va := vaPrefix | uint64(i)<<uint(mem.PageShift+9*level)
			if ent&(PteR|PteW|PteX) != 0 {
				if ent&PteU != 0 {
					out = append(out, va)
				}
				continue
			}
			walk(pteAddr(ent), level-1, va)
		}
	}
	walk(pt.Root, 2, 0)
	return out
}

// CloneUserSpace copies every U-accessible leaf page from src into a
// freshly allocated frame mapped at the same virtual address in dst,
// preserving permissions (spec.md §4.2, §4.6, the testable property in
// §8: child content and permissions equal, but the physical frame
// differs). There is no copy-on-write path to fall back to: every page
// is duplicated immediately, matching the spec's Non-goal on COW.
func CloneUserSpace(src, dst *PageTable) claudeerr.Errno {
	for _, va := range src.leafVAs() {
		srcFrame, idx, err := src.walk(va, false)
		if err != 0 {
			return err
		}
		ent := src.readEntry(srcFrame, idx)
		flags := pteFlags(ent)

		newFrame, ok := src.phys.Alloc()
		if !ok {
			return claudeerr.ENOMEM
		}
		srcPA := pteAddr(ent)
		copy(src.phys.Arena().Read(newFrame, mem.PageSize), src.phys.Arena().Read(srcPA, mem.PageSize))

		if err := dst.Map(va, newFrame, flags&^PteG); err != 0 {
			return err
		}
	}
	return 0
}
