package gpib

// BusState names one of the nine bus states of §3 (or NoState). Exactly one is
// current at any moment.
type BusState uint8

const (
	NoState BusState = iota
	CINI
	CIDS
	CCMS
	CLAS
	CTAS
	DINI
	DIDS
	DLAS
	DTAS
)

func (s BusState) String() string {
	switch s {
	case CINI:
		return "CINI"
	case CIDS:
		return "CIDS"
	case CCMS:
		return "CCMS"
	case CLAS:
		return "CLAS"
	case CTAS:
		return "CTAS"
	case DINI:
		return "DINI"
	case DIDS:
		return "DIDS"
	case DLAS:
		return "DLAS"
	case DTAS:
		return "DTAS"
	default:
		return "NONE"
	}
}

// contract is the (direction mask, direction value, level mask, level
// value) write pair for one bus state, per Table 1. readyData requests an
// extra ReadyDataBus() call, issued by CINI and DINI only.
type contract struct {
	dirMask, dirVal Line
	lvlMask, lvlVal Line
	readyData       bool
}

// stateTable is Table 1 from spec §4.2, derived bit-for-bit from the
// per-line (direction, asserted/unasserted) columns. "Asserted" is
// electrical LOW, so a levelVal bit is 1 for every unasserted line and 0
// for every asserted one; a line outside a state's mask is left alone.
var stateTable = map[BusState]contract{
	CINI: {
		dirMask: allLines, dirVal: ATN | REN | EOI | DAV,
		lvlMask: allLines, lvlVal: allLines &^ ATN,
		readyData: true,
	},
	CIDS: {
		dirMask: allLines, dirVal: ATN | REN | EOI | DAV,
		lvlMask: allLines, lvlVal: allLines,
	},
	CCMS: {
		dirMask: allLines, dirVal: ATN | REN | EOI | DAV | IFC,
		lvlMask: allLines, lvlVal: allLines &^ ATN,
	},
	CLAS: {
		dirMask: allLines &^ IFC, dirVal: ATN | REN | NRFD | NDAC,
		lvlMask: allLines &^ IFC, lvlVal: ATN | SRQ | REN | EOI | DAV,
	},
	CTAS: {
		dirMask: allLines &^ IFC, dirVal: ATN | REN | EOI | DAV,
		lvlMask: allLines &^ IFC, lvlVal: allLines &^ IFC,
	},
	DINI: {
		dirMask: allLines, dirVal: 0,
		lvlMask: allLines, lvlVal: allLines,
		readyData: true,
	},
	DIDS: {
		dirMask: DAV | NRFD | NDAC, dirVal: 0,
		lvlMask: DAV | NRFD | NDAC, lvlVal: DAV | NRFD | NDAC,
	},
	DLAS: {
		dirMask: EOI | DAV | NRFD | NDAC, dirVal: NRFD | NDAC,
		lvlMask: EOI | DAV | NRFD | NDAC, lvlVal: EOI | DAV,
	},
	DTAS: {
		dirMask: EOI | DAV | NRFD | NDAC, dirVal: EOI | DAV,
		lvlMask: EOI | DAV | NRFD | NDAC, lvlVal: EOI | DAV | NRFD | NDAC,
	},
}

// stateDriver owns cstate and the two-write sequence of §4.2. It is
// embedded in Engine rather than exported standalone, since cstate is
// the engine-thread-owned field that design note 4 warns interrupt
// handlers must never touch.
type stateDriver struct {
	pin    Pin
	cstate BusState
}

// setControls issues the direction write then the state write for s, in
// that order, and records cstate. CINI/DINI additionally ready the data
// bus first so the controller/device starts with a known-input bus.
func (d *stateDriver) setControls(s BusState) {
	c, ok := stateTable[s]
	if !ok {
		// NoState: leave the pin configuration untouched, just record it.
		// (Stop programs the lines itself and sets cstate directly.)
		d.cstate = s
		return
	}
	if c.readyData {
		d.pin.ReadyDataBus()
	}
	d.pin.SetControl(c.dirVal, c.dirMask, Direction)
	d.pin.SetControl(c.lvlVal, c.lvlMask, State)
	d.cstate = s
}
