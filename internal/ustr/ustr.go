// Package ustr provides the kernel's path/string type, adapted from the
// teacher's ustr/ustr.go. A byte slice rather than a Go string because
// user-supplied path bytes are copied in from user memory one page
// fragment at a time (internal/vm.CopyinStr) and must never be assumed
// to be valid UTF-8.
package ustr

// Ustr is an immutable-by-convention path or string.
type Ustr []byte

// MkUstr returns an empty Ustr.
func MkUstr() Ustr { return Ustr{} }

// MkUstrDot returns ".".
func MkUstrDot() Ustr { return Ustr(".") }

// MkUstrRoot returns "/".
func MkUstrRoot() Ustr { return Ustr("/") }

// DotDot is a reusable Ustr for "..".
var DotDot = Ustr("..")

// MkUstrSlice truncates buf at its first NUL byte, mirroring the
// teacher's conversion of a fixed-size C buffer into a path.
func MkUstrSlice(buf []byte) Ustr {
	for i, b := range buf {
		if b == 0 {
			return Ustr(buf[:i])
		}
	}
	return Ustr(buf)
}

// Isdot reports whether us is exactly ".".
func (us Ustr) Isdot() bool { return len(us) == 1 && us[0] == '.' }

// Isdotdot reports whether us is exactly "..".
func (us Ustr) Isdotdot() bool { return len(us) == 2 && us[0] == '.' && us[1] == '.' }

// Eq compares two Ustr values byte for byte.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

// IsAbsolute reports whether us begins with '/'.
func (us Ustr) IsAbsolute() bool {
	return len(us) > 0 && us[0] == '/'
}

// IndexByte returns the index of b in us, or -1.
func (us Ustr) IndexByte(b byte) int {
	for i, v := range us {
		if v == b {
			return i
		}
	}
	return -1
}

// Extend appends '/' then p to a copy of us.
func (us Ustr) Extend(p Ustr) Ustr {
	tmp := make(Ustr, len(us), len(us)+1+len(p))
	copy(tmp, us)
	tmp = append(tmp, '/')
	return append(tmp, p...)
}

// ExtendStr is Extend with a Go string component.
func (us Ustr) ExtendStr(p string) Ustr {
	return us.Extend(Ustr(p))
}

// String renders us as a Go string, for logging.
func (us Ustr) String() string { return string(us) }

// Split breaks a path into its '/'-delimited, non-empty components.
func (us Ustr) Split() []Ustr {
	var parts []Ustr
	start := -1
	for i := 0; i <= len(us); i++ {
		if i == len(us) || us[i] == '/' {
			if start >= 0 {
				parts = append(parts, us[start:i])
			}
			start = -1
		} else if start < 0 {
			start = i
		}
	}
	return parts
}
