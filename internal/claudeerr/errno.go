// Package claudeerr defines the kernel's single error currency: a
// negative-errno integer, mirroring the teacher's defs.Err_t shape.
package claudeerr

// Errno is a kernel-internal error code. The zero value means success;
// other values are positive POSIX errno numbers, which the syscall
// boundary negates with Neg before storing them in a0.
type Errno int

// POSIX errno numbers used by this kernel (spec.md §6).
const (
	ESRCH         Errno = 3
	ENOENT        Errno = 2
	EBADF         Errno = 9
	EAGAIN        Errno = 11
	ENOMEM        Errno = 12
	EFAULT        Errno = 14
	EEXIST        Errno = 17
	ENOTDIR       Errno = 20
	EISDIR        Errno = 21
	EINVAL        Errno = 22
	EMFILE        Errno = 24
	ESPIPE        Errno = 29
	ERANGE        Errno = 34
	ENAMETOOLONG  Errno = 36
	ENOSYS        Errno = 38
	ECHILD        Errno = 10
	ENOSPC        Errno = 28
	EINTR         Errno = 4
	EBUSY         Errno = 16
	ENOTEMPTY     Errno = 39
	ENOEXEC       Errno = 8
)

// String renders a short mnemonic, used by klog and diag.
func (e Errno) String() string {
	switch e {
	case 0:
		return "ok"
	case ESRCH:
		return "ESRCH"
	case ENOENT:
		return "ENOENT"
	case EBADF:
		return "EBADF"
	case EAGAIN:
		return "EAGAIN"
	case ENOMEM:
		return "ENOMEM"
	case EFAULT:
		return "EFAULT"
	case EEXIST:
		return "EEXIST"
	case ENOTDIR:
		return "ENOTDIR"
	case EISDIR:
		return "EISDIR"
	case EINVAL:
		return "EINVAL"
	case EMFILE:
		return "EMFILE"
	case ESPIPE:
		return "ESPIPE"
	case ERANGE:
		return "ERANGE"
	case ENAMETOOLONG:
		return "ENAMETOOLONG"
	case ENOSYS:
		return "ENOSYS"
	case ECHILD:
		return "ECHILD"
	case ENOSPC:
		return "ENOSPC"
	case EINTR:
		return "EINTR"
	case EBUSY:
		return "EBUSY"
	case ENOTEMPTY:
		return "ENOTEMPTY"
	case ENOEXEC:
		return "ENOEXEC"
	default:
		return "errno"
	}
}

// Neg returns the syscall-boundary return value: -errno as an int64, or
// 0 for success. Callers in internal/syscall use this exclusively; no
// other package should negate an Errno.
func (e Errno) Neg() int64 {
	return -int64(e)
}
