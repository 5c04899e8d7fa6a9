// Package vfs implements the in-memory vnode tree spec.md §4.9
// describes: FILE, DIRECTORY, and DEVICE nodes, path resolution
// relative to a process cwd, and create/unlink operations with
// AT_REMOVEDIR semantics. Grounded on the teacher's ufs/ufs.go, which
// layers the same three operations (Fs_open/Fs_mkdir/Fs_unlink-style
// calls) over a real on-disk filesystem; this package plays the same
// role but keeps everything resident in memory, since SimpleFS
// (internal/simplefs) populates the whole tree once at mount and never
// pages anything back out.
package vfs

import (
	"sync"

	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/limits"
	"github.com/keix/claudia-sub001/internal/platform"
	"github.com/keix/claudia-sub001/internal/ustr"
)

// Kind tags a Vnode's variant.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindDevice
)

// Device backs a DEVICE vnode (spec.md §4.10: D_STAT, D_PROF, the
// console). Read/Write forward straight through; there is no backing
// byte buffer the way a FILE vnode has one.
type Device interface {
	Read(buf []byte) (int, claudeerr.Errno)
	Write(buf []byte) (int, claudeerr.Errno)
}

// Vnode is one entry in the tree: a directory's Children map, or a
// file's byte contents, or a device's live backend.
type Vnode struct {
	mu       sync.Mutex
	Kind     Kind
	Name     string
	Mode     uint32
	Parent   *Vnode
	Children map[string]*Vnode
	Data     []byte
	Dev      Device
}

// VFS owns the root directory.
type VFS struct {
	Root *Vnode
}

// New returns an empty filesystem with just a root directory.
func New() *VFS {
	root := &Vnode{Kind: KindDir, Name: "/", Children: map[string]*Vnode{}}
	root.Parent = root
	return &VFS{Root: root}
}

// start picks the directory a walk of path begins at: root if path is
// absolute or cwd is nil, cwd otherwise (spec.md §4.9's cwd-relative
// lookup rule).
func (v *VFS) start(cwd *Vnode, path ustr.Ustr) *Vnode {
	if path.IsAbsolute() || cwd == nil {
		return v.Root
	}
	return cwd
}

// Resolve walks path to its vnode, relative to cwd when path is not
// absolute. "." and ".." are handled as directory entries.
func (v *VFS) Resolve(cwd *Vnode, path ustr.Ustr) (*Vnode, claudeerr.Errno) {
	cur := v.start(cwd, path)
	for _, comp := range path.Split() {
		s := comp.String()
		if s == "." {
			continue
		}
		cur.mu.Lock()
		if cur.Kind != KindDir {
			cur.mu.Unlock()
			return nil, claudeerr.ENOTDIR
		}
		if s == ".." {
			parent := cur.Parent
			cur.mu.Unlock()
			cur = parent
			continue
		}
		next, ok := cur.Children[s]
		cur.mu.Unlock()
		if !ok {
			return nil, claudeerr.ENOENT
		}
		cur = next
	}
	return cur, 0
}

// resolveParent resolves path's containing directory and splits off
// its final component name.
func (v *VFS) resolveParent(cwd *Vnode, path ustr.Ustr) (dir *Vnode, name string, err claudeerr.Errno) {
	parts := path.Split()
	if len(parts) == 0 {
		return nil, "", claudeerr.EINVAL
	}
	name = parts[len(parts)-1].String()
	parentPath := ustr.MkUstr()
	if path.IsAbsolute() {
		parentPath = ustr.MkUstrRoot()
	}
	for _, c := range parts[:len(parts)-1] {
		parentPath = parentPath.Extend(c)
	}
	if len(parts) == 1 {
		dir = v.start(cwd, path)
		return dir, name, 0
	}
	dir, err = v.Resolve(cwd, parentPath)
	return dir, name, err
}

// CreateFile creates an empty regular file at path (spec.md §4.9,
// §4.10's openat O_CREAT path). EEXIST if one is already there. Charges
// one unit of the system-wide vnode budget (internal/limits.Syslimit.
// Vnodes), the one ceiling in this package with no equivalent fixed-size
// array behind it.
func (v *VFS) CreateFile(cwd *Vnode, path ustr.Ustr, mode uint32) (*Vnode, claudeerr.Errno) {
	dir, name, err := v.resolveParent(cwd, path)
	if err != 0 {
		return nil, err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if dir.Kind != KindDir {
		return nil, claudeerr.ENOTDIR
	}
	if _, exists := dir.Children[name]; exists {
		return nil, claudeerr.EEXIST
	}
	if !limits.Syslimit.Vnodes.Take() {
		return nil, claudeerr.ENOSPC
	}
	n := &Vnode{Kind: KindFile, Name: name, Mode: mode, Parent: dir}
	dir.Children[name] = n
	return n, 0
}

// CreateDirectory creates an empty directory at path (mkdirat). Charges
// the vnode budget the same way CreateFile does.
func (v *VFS) CreateDirectory(cwd *Vnode, path ustr.Ustr, mode uint32) claudeerr.Errno {
	dir, name, err := v.resolveParent(cwd, path)
	if err != 0 {
		return err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if dir.Kind != KindDir {
		return claudeerr.ENOTDIR
	}
	if _, exists := dir.Children[name]; exists {
		return claudeerr.EEXIST
	}
	if !limits.Syslimit.Vnodes.Take() {
		return claudeerr.ENOSPC
	}
	n := &Vnode{Kind: KindDir, Name: name, Mode: mode, Parent: dir, Children: map[string]*Vnode{}}
	dir.Children[name] = n
	return 0
}

// Mknod installs a device vnode at path, used once at boot to populate
// /dev (spec.md §4.10). Device vnodes come from the fixed boot-time
// /dev population, not arbitrary user creation, so this does not charge
// the vnode budget.
func (v *VFS) Mknod(cwd *Vnode, path ustr.Ustr, dev Device) claudeerr.Errno {
	dir, name, err := v.resolveParent(cwd, path)
	if err != 0 {
		return err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if _, exists := dir.Children[name]; exists {
		return claudeerr.EEXIST
	}
	dir.Children[name] = &Vnode{Kind: KindDevice, Name: name, Parent: dir, Dev: dev}
	return 0
}

// Unlink removes the entry at path. removeDir requires the target be
// an empty directory (AT_REMOVEDIR, spec.md §4.9); otherwise it must
// be a non-directory.
func (v *VFS) Unlink(cwd *Vnode, path ustr.Ustr, removeDir bool) claudeerr.Errno {
	dir, name, err := v.resolveParent(cwd, path)
	if err != 0 {
		return err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	target, ok := dir.Children[name]
	if !ok {
		return claudeerr.ENOENT
	}
	if removeDir {
		if target.Kind != KindDir {
			return claudeerr.ENOTDIR
		}
		target.mu.Lock()
		n := len(target.Children)
		target.mu.Unlock()
		if n > 0 {
			return claudeerr.ENOTEMPTY
		}
	} else if target.Kind == KindDir {
		return claudeerr.EISDIR
	}
	delete(dir.Children, name)
	if target.Kind != KindDevice {
		limits.Syslimit.Vnodes.Give()
	}
	return 0
}

// Read reads up to len(buf) bytes from a FILE vnode at off, or
// forwards straight to a DEVICE's Read.
func (n *Vnode) Read(buf []byte, off int64) (int, claudeerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.Kind {
	case KindDevice:
		return n.Dev.Read(buf)
	case KindDir:
		return 0, claudeerr.EISDIR
	default:
		if off >= int64(len(n.Data)) {
			return 0, 0
		}
		c := copy(buf, n.Data[off:])
		return c, 0
	}
}

// Write writes buf to a FILE vnode at off, extending Data as needed, or
// forwards to a DEVICE's Write. A write that would grow Data past
// platform.MaxVFSFileSize is rejected wholesale with ENOSPC (spec.md
// §4.9: "writing past capacity returns ENOSPC") rather than partially
// applied.
func (n *Vnode) Write(buf []byte, off int64) (int, claudeerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.Kind {
	case KindDevice:
		return n.Dev.Write(buf)
	case KindDir:
		return 0, claudeerr.EISDIR
	default:
		end := off + int64(len(buf))
		if end > platform.MaxVFSFileSize {
			return 0, claudeerr.ENOSPC
		}
		if end > int64(len(n.Data)) {
			grown := make([]byte, end)
			copy(grown, n.Data)
			n.Data = grown
		}
		copy(n.Data[off:end], buf)
		return len(buf), 0
	}
}

// Size returns the current byte length of a FILE vnode's contents.
func (n *Vnode) Size() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return int64(len(n.Data))
}

// Truncate discards a FILE vnode's contents (openat's O_TRUNC).
func (n *Vnode) Truncate() claudeerr.Errno {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Kind != KindFile {
		return claudeerr.EISDIR
	}
	n.Data = nil
	return 0
}
