package uart

import (
	"bytes"
	"testing"
)

func TestPutcWritesOut(t *testing.T) {
	var buf bytes.Buffer
	u := New(&buf, 16)
	u.Putc('h')
	u.Putc('i')
	if buf.String() != "hi" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestGetcPollsLSR(t *testing.T) {
	var buf bytes.Buffer
	u := New(&buf, 16)
	if _, ok := u.Getc(); ok {
		t.Fatalf("expected no byte ready")
	}
	u.Feed('x')
	if !u.HasPending() {
		t.Fatalf("expected interrupt pending after feed")
	}
	b, ok := u.Getc()
	if !ok || b != 'x' {
		t.Fatalf("got (%c,%v)", b, ok)
	}
	u.ISR()
	if u.HasPending() {
		t.Fatalf("expected interrupt cleared once queue drained")
	}
}
