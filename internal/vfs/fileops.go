package vfs

import (
	"github.com/keix/claudia-sub001/internal/claudeerr"
	"github.com/keix/claudia-sub001/internal/fdtable"
	"github.com/keix/claudia-sub001/internal/stat"
)

// File adapts a Vnode to fdtable.FileOps, giving each fdtable.OpenFile
// its own cursor (fdtable.OpenFile.Offset) while sharing the
// underlying Vnode's content across every fd dup'd from the same open.
type File struct {
	Node *Vnode
}

var _ fdtable.FileOps = File{}

func (f File) Read(of *fdtable.OpenFile, buf []byte) (int, claudeerr.Errno) {
	n, err := f.Node.Read(buf, of.Offset)
	if err == 0 {
		of.Offset += int64(n)
	}
	return n, err
}

func (f File) Write(of *fdtable.OpenFile, buf []byte) (int, claudeerr.Errno) {
	n, err := f.Node.Write(buf, of.Offset)
	if err == 0 {
		of.Offset += int64(n)
	}
	return n, err
}

func (f File) Close(of *fdtable.OpenFile) claudeerr.Errno { return 0 }

func (f File) Fstat(of *fdtable.OpenFile, st *stat.Stat_t) claudeerr.Errno {
	f.Node.mu.Lock()
	kind := f.Node.Kind
	mode := uint64(f.Node.Mode)
	size := uint64(len(f.Node.Data))
	f.Node.mu.Unlock()

	st.Wsize(size)
	switch kind {
	case KindDir:
		st.Wmode(mode | stat.SIFDIR)
	case KindDevice:
		st.Wmode(mode | stat.SIFCHR)
	default:
		st.Wmode(mode | stat.SIFREG)
	}
	return 0
}

func (f File) Seekable() bool { return f.Node.Kind == KindFile }
