package elfload

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/keix/claudia-sub001/internal/mem"
	"github.com/keix/claudia-sub001/internal/vm"
)

// buildTinyExec assembles the smallest ELF64 RISC-V ET_EXEC debug/elf
// will parse back: a file header plus one PT_LOAD program header
// covering a handful of bytes of "code".
func buildTinyExec(t *testing.T, vaddr, entry uint64, code []byte) []byte {
	t.Helper()
	const ehsize = 64
	const phsize = 56

	var buf bytes.Buffer
	fh := elf.Header64{
		Ident:     [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1},
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   1,
		Entry:     entry,
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phsize,
		Phnum:     1,
	}
	if err := binary.Write(&buf, binary.LittleEndian, &fh); err != nil {
		t.Fatalf("write ehdr: %v", err)
	}

	ph := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    ehsize + phsize,
		Vaddr:  vaddr,
		Paddr:  vaddr,
		Filesz: uint64(len(code)),
		Memsz:  uint64(len(code)) + 16, // a little BSS tail
		Align:  4096,
	}
	if err := binary.Write(&buf, binary.LittleEndian, &ph); err != nil {
		t.Fatalf("write phdr: %v", err)
	}
	buf.Write(code)
	return buf.Bytes()
}

func TestLoadMapsSegmentAndZerosBSS(t *testing.T) {
	phys := mem.NewPhysmem(0, 64)
	pt, err := vm.Init(phys)
	if err != 0 {
		t.Fatalf("vm.Init: %v", err)
	}

	vaddr := uint64(0x10000)
	code := []byte{0x13, 0x00, 0x00, 0x00} // addi x0, x0, 0
	image := buildTinyExec(t, vaddr, vaddr, code)

	entry, lerr := Load(pt, phys, image)
	if lerr != 0 {
		t.Fatalf("Load: %v", lerr)
	}
	if entry != vaddr {
		t.Fatalf("entry = %#x, want %#x", entry, vaddr)
	}

	pa, ok := pt.Translate(vaddr)
	if !ok {
		t.Fatalf("expected vaddr %#x mapped", vaddr)
	}
	page := phys.Arena().Read(pa, mem.PageSize)
	if !bytes.Equal(page[:len(code)], code) {
		t.Fatalf("loaded code mismatch: got %v want %v", page[:len(code)], code)
	}
	if page[len(code)] != 0 {
		t.Fatalf("expected BSS tail zeroed, got %d", page[len(code)])
	}
}

func TestLoadRejectsWrongMachine(t *testing.T) {
	phys := mem.NewPhysmem(0, 16)
	pt, _ := vm.Init(phys)

	var buf bytes.Buffer
	fh := elf.Header64{
		Ident:   [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1},
		Type:    uint16(elf.ET_EXEC),
		Machine: uint16(elf.EM_X86_64),
		Version: 1,
		Ehsize:  64,
	}
	binary.Write(&buf, binary.LittleEndian, &fh)

	if _, lerr := Load(pt, phys, buf.Bytes()); lerr == 0 {
		t.Fatalf("expected an error for a non-RISC-V machine")
	}
}
