// Package bpath canonicalizes paths. The teacher's bpath package ships
// only an empty go.mod in this retrieval pack; Claudia implements the
// contract fd.Cwd_t.Canonicalpath (teacher's fd/fd.go) expects of it:
// collapse repeated slashes, resolve "." and "..", and always return an
// absolute path rooted at "/".
package bpath

import "github.com/keix/claudia-sub001/internal/ustr"

// Canonicalize resolves p (already joined with a cwd by the caller) into
// a minimal absolute path with no ".", "..", or empty components.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	parts := p.Split()
	stack := make([]ustr.Ustr, 0, len(parts))
	for _, c := range parts {
		switch {
		case c.Isdot():
			// no-op
		case c.Isdotdot():
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, c)
		}
	}
	out := ustr.MkUstrRoot()
	for i, c := range stack {
		if i == 0 {
			out = ustr.Ustr("/" + c.String())
		} else {
			out = out.Extend(c)
		}
	}
	return out
}
