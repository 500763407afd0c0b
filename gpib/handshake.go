package gpib

import (
	"gpibengine/errcode"
)

// assert drives line(s) l LOW (electrically asserted).
func (e *Engine) assert(l Line) { e.pin.SetControl(0, l, State) }

// unassert drives line(s) l HIGH (electrically unasserted/pulled up).
func (e *Engine) unassert(l Line) { e.pin.SetControl(l, l, State) }

// elapsed reports whether at least e.cfg.Rtmo has passed since startMs,
// per the Pin capability's own clock (design note 2) rather than the
// wall clock, so the handshake's timeout behavior is fully testable
// against a fake clock.
func (e *Engine) elapsed(startMs int64) bool {
	return e.pin.NowMs()-startMs >= e.cfg.Rtmo.Milliseconds()
}

// deviceAbort reports whether a device-mode handshake must abort this
// iteration: IFC asserted aborts with IFCAbort; ATN transitioning to
// asserted (having been unasserted when the handshake started) aborts
// with ATNAbort. Controller-mode handshakes never abort this way — the
// controller drives ATN/IFC itself.
func (e *Engine) deviceAbort(atnAssertedAtEntry bool) (errcode.Code, bool) {
	if !e.pin.ReadControlLine(IFC) { // asserted == LOW
		return errcode.IFCAbort, true
	}
	if !atnAssertedAtEntry && !e.pin.ReadControlLine(ATN) {
		return errcode.ATNAbort, true
	}
	return errcode.OK, false
}

// readByte implements the acceptor handshake of spec §4.3, stages 4→6→7→8.
func (e *Engine) readByte(readWithEoi bool) (byte, bool, errcode.Code) {
	start := e.pin.NowMs()
	deviceMode := e.cfg.Mode == RoleDevice
	atnAssertedAtEntry := deviceMode && !e.pin.ReadControlLine(ATN)

	// stage 4: announce ready for data.
	e.unassert(NRFD)

	// stage 6: wait for DAV asserted, then re-assert NRFD (busy reading).
	for e.pin.ReadControlLine(DAV) {
		if deviceMode {
			if c, abort := e.deviceAbort(atnAssertedAtEntry); abort {
				return 0, false, c
			}
		}
		if e.elapsed(start) {
			return 0, false, errcode.Stage6
		}
	}
	e.assert(NRFD)

	// stage 7: sample the byte (and EOI), then signal data accepted.
	var eoi bool
	if readWithEoi && !e.pin.ReadControlLine(EOI) {
		eoi = true
	}
	b := e.pin.ReadDataBus()
	e.unassert(NDAC)

	// stage 8: wait for DAV un-asserted, then re-assert NDAC.
	for !e.pin.ReadControlLine(DAV) {
		if deviceMode {
			if c, abort := e.deviceAbort(atnAssertedAtEntry); abort {
				return 0, false, c
			}
		}
		if e.elapsed(start) {
			return 0, false, errcode.Stage8
		}
	}
	e.assert(NDAC)

	return b, eoi, errcode.OK
}

// writeByte implements the source handshake of spec §4.3, stages 4→9.
func (e *Engine) writeByte(b byte, isLast bool) errcode.Code {
	start := e.pin.NowMs()
	deviceMode := e.cfg.Mode == RoleDevice

	deviceAbort := func() (errcode.Code, bool) {
		if !deviceMode {
			return errcode.OK, false
		}
		if !e.pin.ReadControlLine(IFC) {
			e.state.setControls(DLAS)
			return errcode.IFCAbort, true
		}
		if !e.pin.ReadControlLine(ATN) {
			e.state.setControls(DLAS)
			return errcode.ATNAbort, true
		}
		return errcode.OK, false
	}

	// stage 4: wait for receivers attentive (NDAC asserted).
	for e.pin.ReadControlLine(NDAC) {
		if c, abort := deviceAbort(); abort {
			return c
		}
		if e.elapsed(start) {
			return errcode.Stage4
		}
	}

	// stage 5: wait for receivers ready (NRFD un-asserted).
	for !e.pin.ReadControlLine(NRFD) {
		if c, abort := deviceAbort(); abort {
			return c
		}
		if e.elapsed(start) {
			return errcode.Stage5
		}
	}

	// stage 6: drive the byte, then assert DAV (and EOI, if this is the
	// last byte of an EOI-terminated message).
	e.pin.WriteDataBus(b)
	withEOI := e.cfg.EoiTx && isLast
	if withEOI {
		e.pin.SetControl(0, DAV|EOI, State)
	} else {
		e.assert(DAV)
	}

	// stage 7: wait for the receiver accepting (NRFD asserted).
	for e.pin.ReadControlLine(NRFD) {
		if c, abort := deviceAbort(); abort {
			return c
		}
		if e.elapsed(start) {
			return errcode.Stage7
		}
	}

	// stage 8: wait for all receivers accepted (NDAC un-asserted).
	for !e.pin.ReadControlLine(NDAC) {
		if c, abort := deviceAbort(); abort {
			return c
		}
		if e.elapsed(start) {
			return errcode.Stage8
		}
	}

	// stage 9: release DAV (and EOI), clear the data bus.
	if withEOI {
		e.pin.SetControl(DAV|EOI, DAV|EOI, State)
	} else {
		e.unassert(DAV)
	}
	e.pin.WriteDataBus(0)
	return errcode.OK
}

// terminatorHit implements the sliding-window terminator match of §4.3.
// window holds the most recently received bytes, newest last (so the
// last element is b0, the one before is b1, and so on); it may be
// shorter than three elements early in a message.
func terminatorHit(window []byte, eor uint8) bool {
	n := len(window)
	b0 := func() byte { return window[n-1] }
	b1 := func() byte { return window[n-2] }
	b2 := func() byte { return window[n-3] }

	switch eor {
	case 0:
		return n >= 2 && b1() == CR && b0() == LF
	case 1:
		return n >= 1 && b0() == CR
	case 2:
		return n >= 1 && b0() == LF
	case 3:
		return false // length- or EOI-terminated only
	case 4:
		return n >= 2 && b1() == LF && b0() == CR
	case 5:
		return n >= 1 && b0() == ETX
	case 6:
		return n >= 3 && b2() == CR && b1() == LF && b0() == ETX
	case 7:
		return false // EOI only; forced readWithEoi handled by the caller
	default:
		return false
	}
}
