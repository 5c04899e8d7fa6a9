// Package fdtable implements the per-process file-descriptor table
// (spec.md §3, §4.10), adapted from the teacher's fd/fd.go: an Fd_t
// wrapping a reference-counted open file, dup by re-pointing at the
// same handle, dup3 by closing the target first, and a Cwd_t
// tracking the canonical current-working-directory path. The teacher's
// table is an unbounded slice; spec.md requires a fixed-size array, so
// Table here is sized at construction and Install returns EMFILE once
// full rather than growing.
package fdtable

import (
	"sync"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/limits"
	"github.com/keix/claudia-sub001/internal/stat"
	"github.com/keix/claudia-sub001/internal/ustr"
)

// FileOps is the open-file vtable (spec.md §9: "dynamic dispatch (file
// ops)... a tagged-union with methods instead of function pointers" —
// Go's natural rendering of that note is an interface).
type FileOps interface {
	Read(of *OpenFile, buf []byte) (int, claudeerr.Errno)
	Write(of *OpenFile, buf []byte) (int, claudeerr.Errno)
	Close(of *OpenFile) claudeerr.Errno
	Fstat(of *OpenFile, st *stat.Stat_t) claudeerr.Errno
	Seekable() bool
}

// OpenFile is the reference-counted handle shared by every fd that
// dup/dup2'd from the same open() call (spec.md §3).
type OpenFile struct {
	Ops      FileOps
	Offset   int64
	Mode     int // FD_READ | FD_WRITE
	refcount int
}

// Access mode bits (teacher: fd/fd.go's FD_READ/FD_WRITE/FD_CLOEXEC).
const (
	FDRead    = 0x1
	FDWrite   = 0x2
	FDCloexec = 0x4
)

// Fd_t is one process's view of an OpenFile: its own permission/cloexec
// bits, but a shared handle (spec.md §3: "an fd refers to at most one
// open file; multiple fds may share an open file").
type Fd_t struct {
	File  *OpenFile
	Perms int
}

// Table is a fixed-size fd array. index 0/1/2 are conventionally
// stdin/stdout/stderr, wired by the boot sequence before any process
// runs.
type Table struct {
	mu  sync.Mutex
	fds []*Fd_t
}

// NewTable allocates an empty table with room for n descriptors.
func NewTable(n int) *Table {
	return &Table{fds: make([]*Fd_t, n)}
}

// Install places fd at the lowest free index and returns it. Gated on
// the system-wide descriptor budget (internal/limits.Syslimit.Fds) as
// well as this table's own size, so EMFILE can come from either the
// per-process array filling up or the whole system running out of fds.
func (t *Table) Install(fd *Fd_t) (int, claudeerr.Errno) {
	if !limits.Syslimit.Fds.Take() {
		return -1, claudeerr.EMFILE
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.fds {
		if e == nil {
			t.fds[i] = fd
			return i, 0
		}
	}
	limits.Syslimit.Fds.Give()
	return -1, claudeerr.EMFILE
}

// InstallAt places fd at exactly index n, closing whatever was there
// (dup2/dup3 semantics). Only charges the system-wide fd budget when n
// was empty; replacing an already-installed fd is a net-zero swap.
func (t *Table) InstallAt(n int, fd *Fd_t) claudeerr.Errno {
	if n < 0 || n >= len(t.fds) {
		return claudeerr.EBADF
	}
	t.mu.Lock()
	old := t.fds[n]
	if old == nil && !limits.Syslimit.Fds.Take() {
		t.mu.Unlock()
		return claudeerr.EMFILE
	}
	t.fds[n] = fd
	t.mu.Unlock()
	if old != nil {
		closeHandle(old)
	}
	return 0
}

// Get returns the fd at index n.
func (t *Table) Get(n int) (*Fd_t, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 0 || n >= len(t.fds) || t.fds[n] == nil {
		return nil, false
	}
	return t.fds[n], true
}

// Open wraps ops in a fresh refcount-1 OpenFile and installs it at the
// lowest free fd.
func (t *Table) Open(ops FileOps, mode int) (int, claudeerr.Errno) {
	of := &OpenFile{Ops: ops, Mode: mode, refcount: 1}
	return t.Install(&Fd_t{File: of, Perms: mode})
}

// Dup duplicates oldfd to the lowest free index, sharing the same
// OpenFile (spec.md §4.10).
func (t *Table) Dup(oldfd int) (int, claudeerr.Errno) {
	old, ok := t.Get(oldfd)
	if !ok {
		return -1, claudeerr.EBADF
	}
	t.mu.Lock()
	old.File.refcount++
	t.mu.Unlock()
	nfd := &Fd_t{File: old.File, Perms: old.Perms}
	idx, err := t.Install(nfd)
	if err != 0 {
		t.mu.Lock()
		old.File.refcount--
		t.mu.Unlock()
	}
	return idx, err
}

// Dup3 duplicates oldfd onto newfd, closing whatever newfd held first
// (spec.md §4.10). oldfd==newfd is EINVAL rather than a no-op, matching
// dup3(2) and the generic riscv64 syscall ABI, which carries dup3 but
// not the older dup2.
func (t *Table) Dup3(oldfd, newfd int) claudeerr.Errno {
	if oldfd == newfd {
		return claudeerr.EINVAL
	}
	old, ok := t.Get(oldfd)
	if !ok {
		return claudeerr.EBADF
	}
	t.mu.Lock()
	old.File.refcount++
	t.mu.Unlock()
	return t.InstallAt(newfd, &Fd_t{File: old.File, Perms: old.Perms})
}

func closeHandle(fd *Fd_t) claudeerr.Errno {
	fd.File.refcount--
	if fd.File.refcount > 0 {
		return 0
	}
	return fd.File.Ops.Close(fd.File)
}

// Close releases fd n (spec.md §4.10); EBADF if unknown. The slot is
// freed, and the system-wide budget credited back, regardless of
// whatever errno the underlying file's own Close reports.
func (t *Table) Close(n int) claudeerr.Errno {
	t.mu.Lock()
	if n < 0 || n >= len(t.fds) || t.fds[n] == nil {
		t.mu.Unlock()
		return claudeerr.EBADF
	}
	fd := t.fds[n]
	t.fds[n] = nil
	t.mu.Unlock()
	err := closeHandle(fd)
	limits.Syslimit.Fds.Give()
	return err
}

// Clone produces an independent table sharing every OpenFile with t,
// each with its refcount bumped (spec.md §4.6: "fork clones the table
// and bumps each referenced open file's refcount"). Every copied slot
// also takes a unit of the system-wide fd budget, matching fork's net
// effect of doubling the number of live descriptor references.
func (t *Table) Clone() *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	nt := &Table{fds: make([]*Fd_t, len(t.fds))}
	for i, fd := range t.fds {
		if fd == nil {
			continue
		}
		limits.Syslimit.Fds.Take()
		fd.File.refcount++
		nt.fds[i] = &Fd_t{File: fd.File, Perms: fd.Perms}
	}
	return nt
}

// CloseAll closes every installed descriptor, used by exit (spec.md
// §4.6: "closes fds").
func (t *Table) CloseAll() {
	for i := range t.fds {
		t.Close(i)
	}
}

// Cwd_t tracks a process's current working directory, adapted from the
// teacher's fd.Cwd_t.
type Cwd_t struct {
	mu   sync.Mutex
	Path ustr.Ustr
}

// MkRootCwd returns a Cwd_t rooted at "/".
func MkRootCwd() *Cwd_t {
	return &Cwd_t{Path: ustr.MkUstrRoot()}
}

// Fullpath joins cwd with p if p is not already absolute.
func (c *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.IsAbsolute() {
		return p
	}
	return c.Path.Extend(p)
}

// Set updates the stored cwd path (chdir, after resolution succeeds).
func (c *Cwd_t) Set(p ustr.Ustr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Path = p
}

// Get returns the current cwd path.
func (c *Cwd_t) Get() ustr.Ustr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Path
}
