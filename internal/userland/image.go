// Package userland supplies the handful of user-mode programs this
// build needs to exercise the kernel end to end. spec.md §6 says the
// real image gets these from linker symbols
// (_user_init_start/_user_shell_start/_initrd_start) that an external
// build pipeline produces — explicitly out of scope per spec.md §1's
// "host-side initrd builder" and "build-system plumbing" exclusions.
// Since this build has no such pipeline, BuildPlaceholderELF hand-
// assembles a minimal, valid ELF64 RISC-V ET_EXEC image in pure Go,
// standing in for what the linker would otherwise embed; the teacher's
// own kernel/chentry.go shows the same debug/elf + encoding/binary
// combination used here, just patching a header rather than building
// one from scratch.
package userland

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/keix/claudia-sub001/internal/platform"
)

const (
	ehsize = 64
	phsize = 56
)

// BuildPlaceholderELF assembles a one-segment ET_EXEC image loading
// code at vaddr with entry point vaddr, R|X permissions, and a small
// zero-filled BSS tail. code never actually executes in the simulator
// build (there is no RISC-V instruction interpreter here; see
// SPEC_FULL.md's execution-model note) — its only job is to give
// internal/elfload a real PT_LOAD segment to validate and map.
func BuildPlaceholderELF(vaddr uint64, code []byte) []byte {
	var buf bytes.Buffer
	fh := elf.Header64{
		Ident:     [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1},
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   1,
		Entry:     vaddr,
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phsize,
		Phnum:     1,
	}
	binary.Write(&buf, binary.LittleEndian, &fh)

	ph := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    ehsize + phsize,
		Vaddr:  vaddr,
		Paddr:  vaddr,
		Filesz: uint64(len(code)),
		Memsz:  uint64(len(code)) + 16,
		Align:  uint64(platform.PageSize),
	}
	binary.Write(&buf, binary.LittleEndian, &ph)
	buf.Write(code)
	return buf.Bytes()
}

// nopSled is a few RISC-V addi x0,x0,0 instructions, standing in for
// "the program's code" in placeholder images; the simulator never
// fetches or decodes it.
var nopSled = []byte{
	0x13, 0x00, 0x00, 0x00,
	0x13, 0x00, 0x00, 0x00,
	0x13, 0x00, 0x00, 0x00,
	0x13, 0x00, 0x00, 0x00,
}

// InitImage and ShellImage are the two programs cmd/claudia registers
// in the exec registry, under "init" and "shell". InitImage is this
// build's pid-1 stand-in and ShellImage is what init's child execs;
// exec(2) accepts either name and returns ENOENT for any other.
var (
	InitImage  = BuildPlaceholderELF(platform.UserCodeBase, nopSled)
	ShellImage = BuildPlaceholderELF(platform.UserCodeBase, nopSled)
)
