// Package gpib implements an IEEE-488 (GPIB) bus engine: the bus-state
// machine, the three-wire byte handshake, and the controller/talker/
// listener protocol on top of an abstract pin capability.
package gpib

import "time"

// Line is one bit of the GPIB control-signal bitfield. It is used both as
// a value and as a mask in Pin.SetControl calls (§3 of the spec).
type Line uint8

const (
	IFC  Line = 0x01
	NDAC Line = 0x02
	NRFD Line = 0x04
	DAV  Line = 0x08
	EOI  Line = 0x10
	REN  Line = 0x20
	SRQ  Line = 0x40
	ATN  Line = 0x80
)

// allLines is every control line the state driver ever touches.
const allLines = IFC | NDAC | NRFD | DAV | EOI | REN | SRQ | ATN

// Mode selects whether SetControl writes the direction register or the
// driven level for the bits named by its mask.
type Mode uint8

const (
	// Direction: 1 = output, 0 = input with pull-up.
	Direction Mode = iota
	// State: 1 = HIGH/pull-up (unasserted), 0 = LOW/driven (asserted).
	State
)

// Role selects the engine's active party on the bus.
type Role uint8

const (
	RoleNone       Role = 0
	RoleDevice     Role = 1
	RoleController Role = 2
)

// GPIB universal command bytes (§6). Primary addresses 0-30 are added to
// the listen/talk address base to build an addressing command.
const (
	cmdGTL = 0x01 // Go To Local
	cmdSDC = 0x04 // Selected Device Clear
	cmdGET = 0x08 // Group Execute Trigger
	cmdLLO = 0x11 // Local Lockout
	cmdUNL = 0x3F // Unlisten
	LadBase = 0x20 // Listen Address base
	TadBase = 0x40 // Talk Address base
	cmdUNT  = 0x5F // Untalk
)

// Terminator bytes (§6).
const (
	CR  = 0x0D
	LF  = 0x0A
	ESC = 0x1B
	ETX = 0x03
)

// Timing constants (§6), as durations so callers never have to guess units.
const (
	DefaultRTMO        = 1200 * time.Millisecond
	ifcPulse           = 150 * time.Microsecond
	universalClearWait = 40 * time.Millisecond
	addressDebounce    = 30 * time.Microsecond
	roleSwitchSettle   = 200 * time.Microsecond
	eoiTrailingPulse   = 40 * time.Microsecond
)
