// Package uart models the 16550-compatible UART at the platform's fixed
// MMIO base (spec.md §6), in poll mode for both transmit and receive.
// The teacher (biscuit) targets x86 and has no UART package in this
// retrieval pack; the register-poll idiom below follows iansmith/mazarin's
// uartInit (MMIO register writes guarded by status bits) adapted to the
// 16550 register layout this platform actually exposes.
package uart

import (
	"io"

	"github.com/keix/claudia-sub001/internal/circbuf"
)

// LSR (line status register) bits this driver consults.
const (
	lsrRxReady = 1 << 0
	lsrTxEmpty = 1 << 5
)

// Uart_t is the simulated device: transmitted bytes are written to Out,
// received bytes are queued in Rx until Getc drains them. Feed is the
// hook an external byte source (a pty, a test) uses to deliver input,
// standing in for the real device's RBR-filled-by-hardware behavior.
type Uart_t struct {
	Out     io.Writer
	Rx      *circbuf.Circbuf_t
	pending bool // PLIC source 10 asserted
}

// New constructs a UART device writing to out with an rxSize-byte input
// ring buffer.
func New(out io.Writer, rxSize int) *Uart_t {
	return &Uart_t{Out: out, Rx: circbuf.MkCircbuf(rxSize)}
}

// Putc performs a poll-mode transmit: biscuit's teacher and this
// platform agree there is no output backpressure worth modeling here,
// so the "poll LSR bit 5" step is implicit in Out.Write always
// succeeding immediately.
func (u *Uart_t) Putc(b byte) {
	u.Out.Write([]byte{b})
}

// LSR returns the simulated line-status register: bit 0 set means a
// byte is ready to read.
func (u *Uart_t) LSR() byte {
	var v byte
	if u.Rx.Len() > 0 {
		v |= lsrRxReady
	}
	v |= lsrTxEmpty
	return v
}

// Getc reads RBR if LSR bit 0 is set, per spec.md §6's "check LSR bit 0;
// read RBR" contract. ok is false if no byte is queued.
func (u *Uart_t) Getc() (b byte, ok bool) {
	if u.LSR()&lsrRxReady == 0 {
		return 0, false
	}
	return u.Rx.Getb()
}

// Feed delivers one byte of input, as if the hardware UART had just
// latched it into RBR and asserted its interrupt line.
func (u *Uart_t) Feed(b byte) {
	u.Rx.Putb(b)
	u.pending = true
}

// HasPending reports whether this device has an unserviced interrupt,
// consulted by internal/plic's Claim.
func (u *Uart_t) HasPending() bool { return u.pending && u.Rx.Len() > 0 }

// ISR services the UART's interrupt: it does no work beyond what Getc
// already performs on demand, but clears the pending flag once the RX
// queue has been drained by the caller (spec.md §4.4: "dispatch to UART
// ISR, complete").
func (u *Uart_t) ISR() {
	if u.Rx.Len() == 0 {
		u.pending = false
	}
}
