// Package limits tracks system-wide resource ceilings, adapted from the
// teacher's limits/limits.go Sysatomic_t budget type. Claudia is
// single-hart and cooperatively scheduled (spec.md §5), so the CAS dance
// the teacher needs for its multi-hart build collapses to plain
// arithmetic: no two call sites of Taken/Given ever interleave.
package limits

// Counter is a resource budget that can be taken from and given back.
// The shape (Taken/Given/Take/Give) matches the teacher's Sysatomic_t so
// a future SMP port only needs to swap this type's implementation, not
// every call site (spec.md §5's forward-looking note).
type Counter struct {
	cur int64
}

// Taken tries to decrement the counter by n, refusing (and leaving the
// counter unchanged) if that would take it negative.
func (c *Counter) Taken(n uint) bool {
	d := int64(n)
	if c.cur-d < 0 {
		return false
	}
	c.cur -= d
	return true
}

// Take is Taken(1).
func (c *Counter) Take() bool { return c.Taken(1) }

// Given increases the counter by n (returning resources to the budget).
func (c *Counter) Given(n uint) { c.cur += int64(n) }

// Give is Given(1).
func (c *Counter) Give() { c.Given(1) }

// Remaining reports the current budget, for the D_STAT device snapshot.
func (c *Counter) Remaining() int64 { return c.cur }

// Syslimit_t holds every system-wide ceiling the kernel enforces.
type Syslimit_t struct {
	Procs   Counter // process-table slots (spec.md §4.6 EAGAIN case)
	Fds     Counter // total open-file handles across all processes
	Vnodes  Counter // VFS node count
	Sleeper Counter // sleep-queue slots (spec.md §4.11)
}

// MkSysLimit returns the default ceiling set, sized for the "virt"
// platform's small fixed tables (spec.md §3, §4.5, §4.10).
func MkSysLimit(maxProcs, maxFds, maxVnodes, maxSleep int) *Syslimit_t {
	s := &Syslimit_t{}
	s.Procs.Given(uint(maxProcs))
	s.Fds.Given(uint(maxFds))
	s.Vnodes.Given(uint(maxVnodes))
	s.Sleeper.Given(uint(maxSleep))
	return s
}

// Syslimit is the kernel-wide singleton. Its literal sizes match
// internal/platform's MaxProcs, MaxProcs*MaxFds, and MaxSleep.
var Syslimit = MkSysLimit(64, 64*32, 20000, 64)
