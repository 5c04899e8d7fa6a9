package proc

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/mem"
	"github.com/keix/claudia-sub001/internal/platform"
)

// buildTinyExec assembles the smallest ELF64 RISC-V ET_EXEC image
// debug/elf will parse back, mirroring internal/elfload's own test
// fixture (kept separate here to avoid an import-for-tests-only cycle).
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
		Memsz:  uint64(len(code)) + 16,
		Align:  4096,
	}
	if err := binary.Write(&buf, binary.LittleEndian, &ph); err != nil {
		t.Fatalf("write phdr: %v", err)
	}
	buf.Write(code)
	return buf.Bytes()
}

func TestExecReplacesAddressSpaceAndSetsEntry(t *testing.T) {
	tbl := NewTable()
	phys := mem.NewPhysmem(0, 256)
	p, err := NewUserProcess(tbl, phys, "init", platform.UserCodeBase)
	if err != 0 {
		t.Fatalf("NewUserProcess: %v", err)
	}
	oldPT := p.PageTable

	code := []byte{0x13, 0x00, 0x00, 0x00}
	image := buildTinyExec(t, platform.UserCodeBase, platform.UserCodeBase, code)
	RegisterProgram("shell", image)

	if err := Exec(tbl, p, "shell"); err != 0 {
		t.Fatalf("Exec: %v", err)
	}
	if p.PageTable == oldPT {
		t.Fatalf("exec did not replace the page table")
	}
	if p.TrapFrame.Sepc != platform.UserCodeBase {
		t.Fatalf("sepc = %#x, want %#x", p.TrapFrame.Sepc, platform.UserCodeBase)
	}
	wantSP := uint64(platform.UserStackBase+platform.UserStackSize) - 16
	if p.TrapFrame.Regs[1] != wantSP {
		t.Fatalf("sp = %#x, want %#x", p.TrapFrame.Regs[1], wantSP)
	}
	if p.HeapBrk != platform.UserHeapBase {
		t.Fatalf("heap brk not reset to base")
	}
	if _, ok := p.PageTable.Translate(platform.UserCodeBase); !ok {
		t.Fatalf("entry address not mapped in new space")
	}
}

func TestExecUnknownNameReturnsENOENT(t *testing.T) {
	tbl := NewTable()
	phys := mem.NewPhysmem(0, 64)
	p, _ := NewUserProcess(tbl, phys, "init", platform.UserCodeBase)

	if err := Exec(tbl, p, "no-such-program"); err != claudeerr.ENOENT {
		t.Fatalf("got %v, want ENOENT", err)
	}
}
