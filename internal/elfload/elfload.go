// Package elfload parses a RISC-V 64 ET_EXEC image and maps its
// PT_LOAD segments into a fresh address space (spec.md §4.6's exec).
// spec.md lists "the ELF-header parser" among the out-of-scope external
// collaborators this kernel consumes through a well-defined interface;
// the teacher's own cmd/chentry.go (biscuit's kernel/chentry.go) treats
// ELF the same way, reaching for the standard library's debug/elf
// rather than hand-rolling a header parser, so this package does the
// same for the kernel-side loader half.
package elfload

import (
	"bytes"
	"debug/elf"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/mem"
	"github.com/keix/claudia-sub001/internal/vm"
)

// Load validates image as a 64-bit LSB RISC-V ET_EXEC file, maps each
// PT_LOAD segment into pt (copying p_filesz bytes and zero-filling the
// BSS tail out to p_memsz, per spec.md §4.6), and returns the entry
// point.
func Load(pt *vm.PageTable, phys *mem.Physmem_t, image []byte) (entry uint64, err claudeerr.Errno) {
	f, ferr := elf.NewFile(bytes.NewReader(image))
	if ferr != nil {
		return 0, claudeerr.ENOEXEC
	}
	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB || f.Type != elf.ET_EXEC || f.Machine != elf.EM_RISCV {
		return 0, claudeerr.ENOEXEC
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if loadErr := loadSegment(pt, phys, image, prog); loadErr != 0 {
			return 0, loadErr
		}
	}
	return f.Entry, 0
}

func loadSegment(pt *vm.PageTable, phys *mem.Physmem_t, image []byte, prog *elf.Prog) claudeerr.Errno {
	flags := vm.PteU | vm.PteR
	if prog.Flags&elf.PF_W != 0 {
		flags |= vm.PteW
	}
	if prog.Flags&elf.PF_X != 0 {
		flags |= vm.PteX
	}

	base := prog.Vaddr &^ uint64(mem.PageMask)
	end := prog.Vaddr + prog.Memsz
	endAligned := (end + uint64(mem.PageSize) - 1) &^ uint64(mem.PageMask)

	content := make([]byte, int(prog.Filesz))
	off := int(prog.Off)
	copy(content, image[off:off+int(prog.Filesz)])

	for va := base; va < endAligned; va += uint64(mem.PageSize) {
		pa, ok := phys.Alloc()
		if !ok {
			return claudeerr.ENOMEM
		}
		page := phys.Arena().Read(pa, mem.PageSize)
		pageStart := va
		for i := range page {
			srcOff := int64(pageStart) + int64(i) - int64(prog.Vaddr)
			if srcOff >= 0 && srcOff < int64(len(content)) {
				page[i] = content[srcOff]
			}
		}
		if err := pt.Map(va, pa, flags); err != 0 {
			return err
		}
	}
	return 0
}
