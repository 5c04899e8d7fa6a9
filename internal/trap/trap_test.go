package trap

import "testing"

func TestClassifySplitsInterruptBit(t *testing.T) {
	isInt, code := Classify(interruptBit | CauseSupervisorTimer)
	if !isInt || code != CauseSupervisorTimer {
		t.Fatalf("got (%v,%d)", isInt, code)
	}
	isInt, code = Classify(CauseUserEcall)
	if isInt || code != CauseUserEcall {
		t.Fatalf("got (%v,%d)", isInt, code)
	}
}

func TestDispatchEcallAdvancesSepcAndSetsA0(t *testing.T) {
	tf := &TrapFrame{Scause: CauseUserEcall, Sepc: 0x1000}
	tf.Regs[RegA7] = 93 // exit
	called := false
	Dispatch(tf, Handlers{
		OnSyscall: func(tf *TrapFrame) int64 {
			called = true
			return -5
		},
	})
	if !called {
		t.Fatalf("syscall handler not invoked")
	}
	if tf.Sepc != 0x1004 {
		t.Fatalf("sepc = %#x, want 0x1004", tf.Sepc)
	}
	if int64(tf.A0()) != -5 {
		t.Fatalf("a0 = %d, want -5", int64(tf.A0()))
	}
}

func TestDispatchTimerInterrupt(t *testing.T) {
	tf := &TrapFrame{Scause: interruptBit | CauseSupervisorTimer}
	ticked := false
	Dispatch(tf, Handlers{OnTimerTick: func() { ticked = true }})
	if !ticked {
		t.Fatalf("timer handler not invoked")
	}
}

func TestDispatchFatalOnIllegalInstruction(t *testing.T) {
	tf := &TrapFrame{Scause: CauseIllegalInstruction}
	var reason string
	Dispatch(tf, Handlers{OnFatal: func(tf *TrapFrame, r string) { reason = r }})
	if reason == "" {
		t.Fatalf("expected fatal handler invocation")
	}
}
