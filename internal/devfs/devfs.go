// Package devfs implements the handful of device vnodes spec.md §4.10
// and its device-id table (internal/devid) name: the console, a
// /dev/null sink, and the D_STAT/D_PROF pair SPEC_FULL.md's domain-stack
// expansion adds in place of the dropped /proc. Each type implements
// vfs.Device (Read/Write), the same shape the teacher's console driver
// exposes to its VFS layer, so internal/vfs never needs to know these
// aren't backed by a byte buffer.
package devfs

import (
	"bytes"
	"runtime/pprof"

	"github.com/google/pprof/profile"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/kheap"
	"github.com/keix/claudia-sub001/internal/limits"
	"github.com/keix/claudia-sub001/internal/uart"
)

// Console adapts a 16550 UART to vfs.Device, backing /dev/console
// (devid.DConsole). Read drains whatever bytes are currently queued
// without blocking; the blocking terminal-read contract (spec.md §5's
// "yield loop polling the UART ring buffer") lives in the syscall
// layer, one level up, since only it has a process to yield.
type Console struct {
	U *uart.Uart_t
}

func (c Console) Read(buf []byte) (int, claudeerr.Errno) {
	n := 0
	for n < len(buf) {
		b, ok := c.U.Getc()
		if !ok {
			break
		}
		buf[n] = b
		n++
	}
	if n > 0 {
		c.U.ISR()
	}
	return n, 0
}

func (c Console) Write(buf []byte) (int, claudeerr.Errno) {
	for _, b := range buf {
		c.U.Putc(b)
	}
	return len(buf), 0
}

// Null is /dev/null (devid.DNull): reads report EOF, writes are
// discarded after reporting success.
type Null struct{}

func (Null) Read(buf []byte) (int, claudeerr.Errno)  { return 0, 0 }
func (Null) Write(buf []byte) (int, claudeerr.Errno) { return len(buf), 0 }

// Stat backs /dev/stat (devid.DStat): a read-only text snapshot of the
// system-wide resource counters internal/limits tracks, regenerated on
// every read rather than cached. Heap is optional; when set, its
// used/total byte counts are appended (the boot sequence's kheap.Heap
// instance over the kernel-heap arena).
type Stat struct {
	Limits *limits.Syslimit_t
	Heap   *kheap.Heap
}

func (s Stat) Read(buf []byte) (int, claudeerr.Errno) {
	var b bytes.Buffer
	b.WriteString("procs ")
	writeInt(&b, s.Limits.Procs.Remaining())
	b.WriteString("\nfds ")
	writeInt(&b, s.Limits.Fds.Remaining())
	b.WriteString("\nvnodes ")
	writeInt(&b, s.Limits.Vnodes.Remaining())
	b.WriteString("\nsleepers ")
	writeInt(&b, s.Limits.Sleeper.Remaining())
	b.WriteString("\n")
	if s.Heap != nil {
		b.WriteString("heap_used ")
		writeInt(&b, int64(s.Heap.Used()))
		b.WriteString("\nheap_total ")
		writeInt(&b, int64(s.Heap.Total()))
		b.WriteString("\n")
	}
	n := copy(buf, b.Bytes())
	return n, 0
}

func (Stat) Write(buf []byte) (int, claudeerr.Errno) { return 0, claudeerr.EINVAL }

func writeInt(b *bytes.Buffer, v int64) {
	if v < 0 {
		b.WriteByte('-')
		v = -v
	}
	var digits [20]byte
	i := len(digits)
	if v == 0 {
		b.WriteByte('0')
		return
	}
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	b.Write(digits[i:])
}

// Prof backs /dev/prof (devid.DProf): a device that, on any write,
// captures a short CPU profile with the runtime's own
// profiler (the only thing that can sample the runtime's own call
// stacks) and renders a human-readable summary with
// google/pprof/profile — the same profile-parsing library the
// retrieval pack's go.mod already carries — so a read afterward
// returns text, not a raw protobuf.
type Prof struct {
	raw     *bytes.Buffer
	summary []byte
}

// NewProf returns a profile device writing captured samples to an
// internal buffer, readable back via Bytes.
func NewProf() *Prof { return &Prof{raw: &bytes.Buffer{}} }

func (p *Prof) Write(buf []byte) (int, claudeerr.Errno) {
	if err := pprof.StartCPUProfile(p.raw); err == nil {
		pprof.StopCPUProfile()
	}
	prof, err := profile.ParseData(p.raw.Bytes())
	if err != nil {
		p.summary = []byte("prof: no samples captured\n")
		return len(buf), 0
	}
	p.summary = []byte(prof.String())
	return len(buf), 0
}

func (p *Prof) Read(buf []byte) (int, claudeerr.Errno) {
	n := copy(buf, p.summary)
	return n, 0
}

// Bytes exposes the last captured profile's raw protobuf, for a boot
// sequence that wants to flush it to a file at shutdown.
func (p *Prof) Bytes() []byte { return p.raw.Bytes() }
