// copy.go implements the user<->kernel copy primitives (spec.md §4.7):
// copyin, copyout, copyinstr. Adapted from the teacher's
// Userdmap8_inner/K2user_inner/User2k_inner (vm/as.go), but without
// their page-fault-resolution fallback — Claudia's Non-goal on demand
// paging means a page that isn't present is simply an error, never an
// opportunity to allocate one lazily.
package vm

import (
	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/mem"
)

// sentinelFloor rejects suspiciously-low addresses outright (spec.md
// §4.7's "InvalidAddress (below a small sentinel)"), catching the
// common NULL-deref-style bug before a walk is even attempted.
const sentinelFloor = 0x1000

// pageFlagsFor validates uva against the required flag set and returns
// its backing page's physical frame and the in-page offset of uva.
func (pt *PageTable) pageFlagsFor(uva uint64, needWrite bool) (frame mem.Pa_t, pageOff int, err claudeerr.Errno) {
	if uva < sentinelFloor {
		return 0, 0, claudeerr.EFAULT // InvalidAddress
	}
	page := uva &^ uint64(mem.PageMask)
	flags, ok := pt.LookupFlags(page)
	if !ok {
		return 0, 0, claudeerr.EFAULT // PageNotPresent
	}
	need := PteV | PteU | PteR
	if needWrite {
		need |= PteW
	}
	if flags&need != need {
		return 0, 0, claudeerr.EFAULT // AccessDenied
	}
	pa, _ := pt.Translate(page)
	return pa, int(uva - page), 0
}

// Copyin copies len(dst) bytes from the user address uva into dst,
// looping across page boundaries (spec.md §4.7).
func (pt *PageTable) Copyin(dst []byte, uva uint64) claudeerr.Errno {
	n := len(dst)
	off := 0
	for off < n {
		frame, pageOff, err := pt.pageFlagsFor(uva+uint64(off), false)
		if err != 0 {
			return err
		}
		room := mem.PageSize - pageOff
		take := n - off
		if take > room {
			take = room
		}
		src := pt.phys.Arena().Read(frame, mem.PageSize)
		copy(dst[off:off+take], src[pageOff:pageOff+take])
		off += take
	}
	return 0
}

// Copyout copies src into the user virtual address space starting at
// uva, looping across page boundaries.
func (pt *PageTable) Copyout(uva uint64, src []byte) claudeerr.Errno {
	n := len(src)
	off := 0
	for off < n {
		frame, pageOff, err := pt.pageFlagsFor(uva+uint64(off), true)
		if err != 0 {
			return err
		}
		room := mem.PageSize - pageOff
		take := n - off
		if take > room {
			take = room
		}
		dst := pt.phys.Arena().Read(frame, mem.PageSize)
		copy(dst[pageOff:pageOff+take], src[off:off+take])
		off += take
	}
	return 0
}

// CopyinStr copies a NUL-terminated string from user space, byte by
// byte, into dst until NUL or len(dst)-1 bytes have been copied. It
// returns the copied length (excluding the NUL) or StringTooLong
// (mapped to ENAMETOOLONG).
func (pt *PageTable) CopyinStr(dst []byte, uva uint64) (int, claudeerr.Errno) {
	if len(dst) == 0 {
		return 0, claudeerr.ENAMETOOLONG
	}
	for i := 0; i < len(dst)-1; i++ {
		var b [1]byte
		if err := pt.Copyin(b[:], uva+uint64(i)); err != 0 {
			return 0, err
		}
		if b[0] == 0 {
			return i, 0
		}
		dst[i] = b[0]
	}
	return 0, claudeerr.ENAMETOOLONG
}
