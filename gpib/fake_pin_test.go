package gpib

import "time"

// fakePin is a scripted, in-memory Pin used by the tests in this
// package. It models an ideal loopback bus (P1) and lets a test script
// per-line level sequences to stand in for a cooperating peer, without
// any goroutines or wall-clock sleeps — every "wait" in the handshake
// becomes a deterministic pop from a queue.
type fakePin struct {
	wire byte // what's actually driven on the data bus (active-low)

	dir   map[Line]bool // true == output
	level map[Line]bool // true == HIGH (unasserted)

	// script, if non-empty for a line, is consumed one entry per
	// ReadControlLine call for that line; once drained, level[line] is
	// used as a steady-state value.
	script map[Line][]bool

	clockMs int64
	slept   []int64 // recorded SleepMicros durations, as microseconds

	readyCalls int
	// writeLog records the byte on the wire each time DAV is asserted,
	// i.e. every byte a writeByte hands over; the stage-9 write that
	// clears the bus is not a transfer and is not logged.
	writeLog []byte

	// autoPeer, once enabled by primePeer, makes NRFD/NDAC mirror an
	// instantly-responding receiver each time the source side toggles
	// DAV, so engine-level tests can drive many back-to-back writeByte
	// calls (SendCmd, addressDevice, ...) without scripting every stage
	// of every byte by hand. readByte/writeByte's own stage behavior is
	// covered directly in handshake_test.go with explicit scripts.
	autoPeer bool

	// incoming queues data-bus bytes (and their EOI flag) to be latched
	// onto the wire exactly when the matching DAV-asserted script entry
	// is consumed, so a scripted incoming message delivers the right
	// byte on each readByte call instead of whatever was last written.
	incoming []incomingByte
}

type incomingByte struct {
	b   byte
	eoi bool
}

func newFakePin() *fakePin {
	p := &fakePin{
		dir:    map[Line]bool{},
		level:  map[Line]bool{},
		script: map[Line][]bool{},
	}
	for _, l := range []Line{IFC, NDAC, NRFD, DAV, EOI, REN, SRQ, ATN} {
		p.level[l] = true // power-on: every line unasserted
	}
	return p
}

func (p *fakePin) ReadyDataBus() { p.readyCalls++ }

func (p *fakePin) ReadDataBus() byte { return ^p.wire }

func (p *fakePin) WriteDataBus(b byte) {
	p.wire = ^b
}

func (p *fakePin) SetControl(value, mask Line, mode Mode) {
	for _, l := range []Line{IFC, NDAC, NRFD, DAV, EOI, REN, SRQ, ATN} {
		if mask&l == 0 {
			continue
		}
		bit := value&l != 0
		if mode == Direction {
			p.dir[l] = bit
			continue
		}
		p.level[l] = bit
		if l == DAV && !bit {
			// DAV asserted: the byte on the wire is handed over.
			p.writeLog = append(p.writeLog, ^p.wire)
		}
		if p.autoPeer && l == DAV {
			if bit {
				// DAV released: peer goes idle, ready for the next byte.
				p.level[NRFD] = true
				p.level[NDAC] = false
			} else {
				// DAV asserted: peer instantly accepts.
				p.level[NRFD] = false
				p.level[NDAC] = true
			}
		}
	}
}

// primePeer puts the fake into auto-responding receiver mode: NRFD/NDAC
// track an idealized instantaneous peer reacting to DAV, so a test can
// drive engine-level operations that issue several writeByte calls back
// to back (SendCmd, addressDevice, SendData, ...) without scripting each
// handshake stage individually.
func (p *fakePin) primePeer() {
	p.autoPeer = true
	p.level[NDAC] = false
	p.level[NRFD] = true
}

func (p *fakePin) ReadControlLine(line Line) bool {
	if q := p.script[line]; len(q) > 0 {
		v := q[0]
		p.script[line] = q[1:]
		p.level[line] = v
		if line == DAV && !v && len(p.incoming) > 0 {
			next := p.incoming[0]
			p.incoming = p.incoming[1:]
			p.wire = ^next.b
			p.level[EOI] = !next.eoi
		}
		return v
	}
	return p.level[line]
}

func (p *fakePin) NowMs() int64 { return p.clockMs }

func (p *fakePin) SleepMicros(d time.Duration) { p.slept = append(p.slept, int64(d/time.Microsecond)) }

// script queues up n values to be returned by successive
// ReadControlLine(line) calls before falling back to the steady level.
func (p *fakePin) scriptLine(line Line, values ...bool) {
	p.script[line] = append(p.script[line], values...)
}

// tick advances the fake clock.
func (p *fakePin) tick(ms int64) { p.clockMs += ms }

// scriptIncomingByte arranges for the next readByte call to observe b
// (with EOI asserted when eoi is true), timed to the DAV-asserted edge.
func (p *fakePin) scriptIncomingByte(b byte, eoi bool) {
	p.incoming = append(p.incoming, incomingByte{b: b, eoi: eoi})
	p.scriptLine(DAV, false, true)
}
