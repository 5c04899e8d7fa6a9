// Package simplefs implements the on-disk image format spec.md §4.9
// calls SimpleFS: block 0 is a superblock carrying the magic "SIMP",
// blocks 1-4 hold a fixed 32-entry 64-byte file table, and block 5
// onward is file data at 512 bytes per block. Grounded on the
// teacher's fs/super.go, whose Superblock_t reads/writes a set of
// fixed integer fields out of a raw block; this package's superblock
// and entry accessors follow the same fixed-offset-into-a-byte-block
// pattern, simplified to the flat non-log, non-inode-bitmap layout
// spec.md describes instead of the teacher's logged, bitmap-indexed
// inode filesystem.
package simplefs

import (
	"encoding/binary"
	"errors"

	"github.com/keix/claudia-sub001/internal/ustr"
	"github.com/keix/claudia-sub001/internal/vfs"
)

// Block and table geometry (spec.md §3's SimpleFS image data model).
const (
	BlockSize = 512

	Magic uint32 = 0x53494D50 // "SIMP"

	MaxFiles  = 32
	NameLen   = 28
	EntrySize = 64

	superblockLBA   = 0
	fileTableLBA    = 1
	fileTableBlocks = (MaxFiles * EntrySize) / BlockSize // 4
	dataLBA         = fileTableLBA + fileTableBlocks     // 5
)

// Entry flag bits (spec.md §3).
const (
	FlagExists    uint32 = 1 << 0
	FlagDirectory uint32 = 1 << 1
)

var (
	ErrBadMagic     = errors.New("simplefs: bad superblock magic")
	ErrTooManyFiles = errors.New("simplefs: file table full")
	ErrNameTooLong  = errors.New("simplefs: name exceeds table width")
)

func block(image []byte, lba int) []byte {
	return image[lba*BlockSize : (lba+1)*BlockSize]
}

// superblock field layout: magic, total_blocks, free_blocks, file_count,
// all little-endian u32 words at the start of block 0.
func readMagic(image []byte) uint32 {
	return binary.LittleEndian.Uint32(block(image, superblockLBA))
}

func writeSuperblock(image []byte, totalBlocks, freeBlocks, fileCount uint32) {
	b := block(image, superblockLBA)
	binary.LittleEndian.PutUint32(b[0:], Magic)
	binary.LittleEndian.PutUint32(b[4:], totalBlocks)
	binary.LittleEndian.PutUint32(b[8:], freeBlocks)
	binary.LittleEndian.PutUint32(b[12:], fileCount)
}

// entry is one 64-byte file table row (spec.md §3): name[28], size:u32,
// start_block:u32, blocks_used:u32, flags:u32, reserved[20].
type entry struct {
	name       [NameLen]byte
	size       uint32
	startBlock uint32
	blocksUsed uint32
	flags      uint32
}

func entryBytes(image []byte, idx int) []byte {
	off := fileTableLBA*BlockSize + idx*EntrySize
	return image[off : off+EntrySize]
}

func readEntry(image []byte, idx int) entry {
	b := entryBytes(image, idx)
	var e entry
	copy(e.name[:], b[:NameLen])
	e.size = binary.LittleEndian.Uint32(b[NameLen:])
	e.startBlock = binary.LittleEndian.Uint32(b[NameLen+4:])
	e.blocksUsed = binary.LittleEndian.Uint32(b[NameLen+8:])
	e.flags = binary.LittleEndian.Uint32(b[NameLen+12:])
	return e
}

func writeEntry(image []byte, idx int, e entry) {
	b := entryBytes(image, idx)
	copy(b[:NameLen], e.name[:])
	binary.LittleEndian.PutUint32(b[NameLen:], e.size)
	binary.LittleEndian.PutUint32(b[NameLen+4:], e.startBlock)
	binary.LittleEndian.PutUint32(b[NameLen+8:], e.blocksUsed)
	binary.LittleEndian.PutUint32(b[NameLen+12:], e.flags)
}

func (e entry) nameString() string {
	n := 0
	for n < NameLen && e.name[n] != 0 {
		n++
	}
	return string(e.name[:n])
}

// blocksFor rounds a byte length up to whole blocks.
func blocksFor(n int) int {
	return (n + BlockSize - 1) / BlockSize
}

// Mount reads image's superblock and file table and populates every
// EXISTS entry under root, in table order: a FlagDirectory entry as a
// directory, any other entry as a file with its contents. Directories
// are not created ahead of files (BuildImage never emits FlagDirectory
// entries, since the initrd tree it builds is always flat).
func Mount(v *vfs.VFS, image []byte) error {
	if readMagic(image) != Magic {
		return ErrBadMagic
	}
	for i := 0; i < MaxFiles; i++ {
		e := readEntry(image, i)
		if e.flags&FlagExists == 0 {
			continue
		}
		name := e.nameString()
		if name == "" {
			continue
		}
		if e.flags&FlagDirectory != 0 {
			if err := v.CreateDirectory(v.Root, ustr.Ustr("/"+name), 0755); err != 0 {
				return errors.New("simplefs: mount mkdir " + name + " failed")
			}
			continue
		}
		off := int(e.startBlock) * BlockSize
		data := image[off : off+int(e.size)]
		n, err := v.CreateFile(v.Root, ustr.Ustr("/"+name), 0644)
		if err != 0 {
			return errors.New("simplefs: mount create " + name + " failed")
		}
		if _, werr := n.Write(data, 0); werr != 0 {
			return errors.New("simplefs: mount write " + name + " failed")
		}
	}
	return nil
}

// BuildImage assembles a raw SimpleFS image from a flat set of
// filenames to byte contents, used by the mkinitrd host tool.
func BuildImage(files map[string][]byte) ([]byte, error) {
	if len(files) > MaxFiles {
		return nil, ErrTooManyFiles
	}
	totalBlocks := dataLBA
	type placed struct {
		name  string
		data  []byte
		block int
	}
	var plan []placed
	for name, data := range files {
		if len(name) >= NameLen {
			return nil, ErrNameTooLong
		}
		plan = append(plan, placed{name: name, data: data, block: totalBlocks})
		totalBlocks += blocksFor(len(data))
	}

	image := make([]byte, totalBlocks*BlockSize)
	for i, p := range plan {
		var e entry
		copy(e.name[:], p.name)
		e.size = uint32(len(p.data))
		e.startBlock = uint32(p.block)
		e.blocksUsed = uint32(blocksFor(len(p.data)))
		e.flags = FlagExists
		writeEntry(image, i, e)
		copy(image[p.block*BlockSize:], p.data)
	}
	writeSuperblock(image, uint32(totalBlocks), 0, uint32(len(plan)))
	return image, nil
}
