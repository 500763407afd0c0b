package gpib

import "time"

// Pin is the capability the bus-state driver and byte handshake consume.
// It is the narrow, infallible surface described in spec §4.1 and design
// note 2: a board supplies one concrete implementation (see the platform
// package) and the rest of this package never touches a register
// directly. Grounded on the teacher's GPIOPin/PinFactory split
// (services/hal/types.go) generalised from a single pin to the whole
// 8-bit data bus plus the 8-bit control bitfield.
type Pin interface {
	// ReadyDataBus configures all eight data lines as inputs with
	// pull-ups.
	ReadyDataBus()

	// ReadDataBus samples the eight data lines and returns the bitwise
	// complement of what was driven onto the wire (negative logic, I3).
	ReadDataBus() byte

	// WriteDataBus configures the data lines as outputs and drives the
	// bitwise complement of b.
	WriteDataBus(b byte)

	// SetControl applies value's bits, for every bit set in mask, either
	// to the addressed lines' direction registers (mode == Direction) or
	// to their driven level (mode == State). Bits outside mask are left
	// unchanged (P2).
	SetControl(value, mask Line, mode Mode)

	// ReadControlLine returns the electrical level of a single control
	// line: true == HIGH (unasserted), false == LOW (asserted).
	ReadControlLine(line Line) bool

	// NowMs returns a monotonic millisecond clock, used to bound
	// handshake waits by rtmo.
	NowMs() int64

	// SleepMicros blocks the calling goroutine for roughly d. Used for
	// the IFC pulse, the universal-clear waits, and the EOI trailing
	// pulse; never called from inside a handshake polling loop.
	SleepMicros(d time.Duration)
}
