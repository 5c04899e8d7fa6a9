// Package trap implements the trap frame and the interrupt/exception
// demux described in spec.md §4.4. The repository has no assembly trap
// vector: a caller constructs a TrapFrame directly and calls Dispatch.
// cmd/claudia's run loop polls the timer and PLIC inline instead of
// going through Dispatch, so this package's own tests are its only
// callers. Handler behavior is supplied by the caller as a small set
// of callbacks rather than by importing internal/proc directly, which
// would create an import cycle (proc drives the scheduler loop that
// calls into trap).
package trap

// Register indices within TrapFrame.Regs, RISC-V ABI names for the
// argument/callee registers the syscall gate needs (x1 is Regs[0]).
const (
	RegRA = 0  // x1
	RegSP = 1  // x2
	RegA0 = 9  // x10
	RegA1 = 10 // x11
	RegA2 = 11 // x12
	RegA3 = 12 // x13
	RegA4 = 13 // x14
	RegA5 = 14 // x15
	RegA7 = 16 // x17
)

// TrapFrame is the saved architectural state at trap entry (spec.md
// §3): all 31 GPRs plus sepc/sstatus/scause/stval.
type TrapFrame struct {
	Regs    [31]uint64
	Sepc    uint64
	Sstatus uint64
	Scause  uint64
	Stval   uint64
}

// A0..A7 read the RISC-V syscall argument registers.
func (tf *TrapFrame) A0() uint64 { return tf.Regs[RegA0] }
func (tf *TrapFrame) A1() uint64 { return tf.Regs[RegA1] }
func (tf *TrapFrame) A2() uint64 { return tf.Regs[RegA2] }
func (tf *TrapFrame) A3() uint64 { return tf.Regs[RegA3] }
func (tf *TrapFrame) A4() uint64 { return tf.Regs[RegA4] }
func (tf *TrapFrame) A5() uint64 { return tf.Regs[RegA5] }
func (tf *TrapFrame) A7() uint64 { return tf.Regs[RegA7] }

// SetA0 stores the syscall return value into a0, per spec.md §6 ("return
// in a0").
func (tf *TrapFrame) SetA0(v int64) { tf.Regs[RegA0] = uint64(v) }

// scause's top bit marks an interrupt rather than an exception.
const interruptBit = uint64(1) << 63

// Classify splits scause into (isInterrupt, code).
func Classify(scause uint64) (isInterrupt bool, code uint64) {
	return scause&interruptBit != 0, scause &^ interruptBit
}

// Exception causes recognized by this configuration (spec.md §4.4).
const (
	CauseUserEcall          = 8
	CauseIllegalInstruction = 2
	CauseLoadPageFault      = 13
	CauseStorePageFault     = 15
	CauseInstrPageFault     = 12
)

// Interrupt causes.
const (
	CauseSupervisorTimer    = 5
	CauseSupervisorExternal = 9
)

// Handlers bundles the callbacks Dispatch routes to. A kernel boot
// sequence builds one Handlers value once its scheduler, PLIC, and
// syscall dispatcher exist, then calls Dispatch on every trap.
type Handlers struct {
	// OnTimerTick fires on cause=5: reschedule the next SBI timer,
	// advance the tick counter, wake expired sleepers, then yield.
	OnTimerTick func()
	// OnExternal fires on cause=9: claim from the PLIC and dispatch to
	// the owning device's ISR.
	OnExternal func()
	// OnSyscall fires on a U-mode ecall: dispatch syscall tf.A7() with
	// arguments tf.A0()..tf.A5(), returning the isize to store in a0.
	OnSyscall func(tf *TrapFrame) int64
	// OnFatal fires for any other exception: illegal instruction, a
	// page fault on a kernel address, or (per spec.md §7) any
	// supervisor-mode fault not caused by ecall. reason is advisory.
	OnFatal func(tf *TrapFrame, reason string)
}

// Dispatch classifies tf.Scause and routes to the matching handler
// (spec.md §4.4). It returns nothing; for an ecall it advances sepc past
// the ecall instruction and stores OnSyscall's result in a0.
func Dispatch(tf *TrapFrame, h Handlers) {
	isInt, code := Classify(tf.Scause)
	if isInt {
		switch code {
		case CauseSupervisorTimer:
			if h.OnTimerTick != nil {
				h.OnTimerTick()
			}
		case CauseSupervisorExternal:
			if h.OnExternal != nil {
				h.OnExternal()
			}
		default:
			if h.OnFatal != nil {
				h.OnFatal(tf, "unexpected interrupt cause")
			}
		}
		return
	}

	switch code {
	case CauseUserEcall:
		tf.Sepc += 4 // advance past the ecall instruction
		if h.OnSyscall != nil {
			ret := h.OnSyscall(tf)
			tf.SetA0(ret)
		}
	case CauseIllegalInstruction, CauseLoadPageFault, CauseStorePageFault, CauseInstrPageFault:
		if h.OnFatal != nil {
			h.OnFatal(tf, "fatal exception")
		}
	default:
		if h.OnFatal != nil {
			h.OnFatal(tf, "unrecognized exception")
		}
	}
}
