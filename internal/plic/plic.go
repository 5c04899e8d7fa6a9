// Package plic models the Platform-Level Interrupt Controller far enough
// to satisfy spec.md §4.4's "claim from PLIC, dispatch to UART ISR,
// complete" path: one source (UART0, source 10) routed to the hart.
package plic

// Source is interrupt source 10, the platform's fixed UART wiring
// (spec.md §6).
const SourceUART0 = 10

// Plic_t tracks which sources are enabled and currently pending.
type Plic_t struct {
	enabled map[int]bool
	source  func(int) bool // returns true if that source has work pending
}

// New constructs a PLIC whose Claim consults isPending to decide which
// source, if any, should be serviced.
func New(isPending func(source int) bool) *Plic_t {
	return &Plic_t{enabled: map[int]bool{SourceUART0: true}, source: isPending}
}

// Enable turns on routing for a source.
func (p *Plic_t) Enable(source int) { p.enabled[source] = true }

// Claim returns the highest-priority pending, enabled source, or 0 if
// none is pending (the real PLIC reserves id 0 for "no interrupt").
func (p *Plic_t) Claim() int {
	if p.enabled[SourceUART0] && p.source(SourceUART0) {
		return SourceUART0
	}
	return 0
}

// Complete acknowledges service of a source; the simulator has nothing
// further to track, but keeps the call so trap.go's control flow matches
// the real claim/complete protocol.
func (p *Plic_t) Complete(source int) {}
