// Package stat defines the on-wire struct stat layout returned by
// fstat/fstatat, adapted field-for-field from the teacher's stat/stat.go.
package stat

import "encoding/binary"

// Mode bits, POSIX subset actually consumed by the shell/ls userland.
const (
	SIFMT  = 0170000
	SIFDIR = 0040000
	SIFREG = 0100000
	SIFCHR = 0020000
)

// Stat_t mirrors the fields copied out to user memory. Field order and
// width match the little-endian layout the shell's libc-less stat() stub
// expects: nine u64 words.
type Stat_t struct {
	dev    uint64
	ino    uint64
	mode   uint64
	size   uint64
	rdev   uint64
	uid    uint64
	blocks uint64
	mtimeSec  uint64
	mtimeNsec uint64
}

func (st *Stat_t) Wdev(v uint64)  { st.dev = v }
func (st *Stat_t) Wino(v uint64)  { st.ino = v }
func (st *Stat_t) Wmode(v uint64) { st.mode = v }
func (st *Stat_t) Wsize(v uint64) { st.size = v }
func (st *Stat_t) Wrdev(v uint64) { st.rdev = v }
func (st *Stat_t) Wmtime(sec, nsec uint64) {
	st.mtimeSec, st.mtimeNsec = sec, nsec
}

func (st *Stat_t) Mode() uint64 { return st.mode }
func (st *Stat_t) Size() uint64 { return st.size }
func (st *Stat_t) Rdev() uint64 { return st.rdev }
func (st *Stat_t) Rino() uint64 { return st.ino }

// Bytes renders the struct as its little-endian wire form, ready to be
// copied into user memory by internal/vm.Copyout.
func (st *Stat_t) Bytes() []byte {
	buf := make([]byte, 9*8)
	binary.LittleEndian.PutUint64(buf[0:], st.dev)
	binary.LittleEndian.PutUint64(buf[8:], st.ino)
	binary.LittleEndian.PutUint64(buf[16:], st.mode)
	binary.LittleEndian.PutUint64(buf[24:], st.size)
	binary.LittleEndian.PutUint64(buf[32:], st.rdev)
	binary.LittleEndian.PutUint64(buf[40:], st.uid)
	binary.LittleEndian.PutUint64(buf[48:], st.blocks)
	binary.LittleEndian.PutUint64(buf[56:], st.mtimeSec)
	binary.LittleEndian.PutUint64(buf[64:], st.mtimeNsec)
	return buf
}
