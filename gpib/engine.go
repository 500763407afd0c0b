package gpib

import (
	"io"
	"sync/atomic"

	"gpibengine/errcode"
)

// Engine is the single owned GPIB session described by spec §9's
// re-architecture note: one value per bus, parameterized by a Pin
// capability, lifetime equal to the bus session. It is not safe for
// concurrent use by more than one goroutine (§5) except for SetTxBreak,
// which is the sole asynchronous entry point.
type Engine struct {
	pin   Pin
	state stateDriver
	cfg   Config

	deviceAddressed bool
	txBreak         atomic.Bool
}

// NewEngine returns an Engine over pin, configured per cfg. cfg is
// clamped before use; call Begin to select a role and bring the bus up.
func NewEngine(pin Pin, cfg Config) *Engine {
	cfg.Clamp()
	e := &Engine{pin: pin, cfg: cfg}
	e.state.pin = pin
	return e
}

// Config returns a copy of the engine's current configuration record.
func (e *Engine) Config() Config { return e.cfg }

// SetConfig replaces the configuration record in place (clamped). It does
// not itself change role or bus state; call Begin/Stop for that.
func (e *Engine) SetConfig(cfg Config) {
	cfg.Clamp()
	e.cfg = cfg
}

// State returns the bus state driver's currently recorded state.
func (e *Engine) State() BusState { return e.state.cstate }

// DeviceAddressed reports whether the controller has addressed a device
// (LAD/TAD) with no subsequent UNL/UNT (I2).
func (e *Engine) DeviceAddressed() bool { return e.deviceAddressed }

// SetTxBreak requests that an in-progress ReceiveData loop exit at the
// next inter-byte boundary. It is the one field §5 allows a second
// goroutine (e.g. the serial-input reader) to touch.
func (e *Engine) SetTxBreak() { e.txBreak.Store(true) }

func (e *Engine) clearTxBreak() { e.txBreak.Store(false) }

// -----------------------------------------------------------------------------
// Lifecycle (§4.4)
// -----------------------------------------------------------------------------

// Begin dispatches to the startup sequence named by cfg.Mode.
func (e *Engine) Begin() errcode.Code {
	switch e.cfg.Mode {
	case RoleController:
		return e.controllerStart()
	case RoleDevice:
		return e.deviceStart()
	default:
		e.Stop()
		return errcode.OK
	}
}

func (e *Engine) controllerStart() errcode.Code {
	e.sendAllClear()
	e.Stop()
	e.pin.SleepMicros(roleSwitchSettle)
	e.cfg.Mode = RoleController
	e.state.setControls(CINI)
	e.pin.ReadyDataBus()
	e.pulseIFC()
	if e.cfg.Paddr > 1 {
		return e.addressDevice(e.cfg.Paddr, false)
	}
	return errcode.OK
}

func (e *Engine) deviceStart() errcode.Code {
	e.Stop()
	e.pin.SleepMicros(roleSwitchSettle)
	e.cfg.Mode = RoleDevice
	e.state.setControls(DINI)
	e.pin.ReadyDataBus()
	return errcode.OK
}

// Stop releases every control line to input-with-pullup, drives all
// lines HIGH, returns the data bus to input-with-pullup, and forgets the
// current bus state (I4, fully released form).
func (e *Engine) Stop() {
	e.pin.SetControl(0, allLines, Direction) // all lines input
	e.pin.SetControl(allLines, allLines, State) // all driven HIGH (pulled up)
	e.pin.ReadyDataBus()
	e.state.cstate = NoState
	e.cfg.Mode = RoleNone
	e.deviceAddressed = false
}

func (e *Engine) pulseIFC() {
	e.assert(IFC)
	e.pin.SleepMicros(ifcPulse)
	e.unassert(IFC)
}

// sendAllClear implements the universal-clear sequence of §4.4: REN
// un-asserted for the settle window, then ATN+REN asserted together for
// the same window, then ATN released.
func (e *Engine) sendAllClear() {
	e.unassert(REN)
	e.pin.SleepMicros(universalClearWait)
	e.pin.SetControl(0, ATN|REN, State)
	e.pin.SleepMicros(universalClearWait)
	e.unassert(ATN)
}

// SendIFC asserts IFC for the standard pulse width then releases it.
func (e *Engine) SendIFC() { e.pulseIFC() }

// SendAllClear performs a GPIB universal clear, followed by the IFC
// pulse controllerStart also issues.
func (e *Engine) SendAllClear() {
	e.sendAllClear()
	e.pulseIFC()
}

// -----------------------------------------------------------------------------
// Command send (§4.4)
// -----------------------------------------------------------------------------

// SendCmd transitions to CCMS (asserting ATN) if not already there, and
// writes b as a command byte (never EOI-terminated).
func (e *Engine) SendCmd(b byte) errcode.Code {
	if e.state.cstate != CCMS {
		e.state.setControls(CCMS)
	}
	return e.writeByte(b, false)
}

// -----------------------------------------------------------------------------
// Addressing (§4.4)
// -----------------------------------------------------------------------------

// AddressDevice sends UNL, then TAD+addr (talk) or LAD+addr (listen).
func (e *Engine) AddressDevice(addr uint8, talk bool) errcode.Code {
	return e.addressDevice(addr, talk)
}

func (e *Engine) addressDevice(addr uint8, talk bool) errcode.Code {
	if c := e.SendCmd(cmdUNL); c != errcode.OK {
		return c
	}
	base := byte(LadBase)
	if talk {
		base = byte(TadBase)
	}
	if c := e.SendCmd(base + addr); c != errcode.OK {
		return c
	}
	e.deviceAddressed = true
	return errcode.OK
}

// UnAddressDevice waits the address-debounce window, then sends UNL then
// UNT, clearing deviceAddressed (P4).
func (e *Engine) UnAddressDevice() errcode.Code {
	e.pin.SleepMicros(addressDebounce)
	if c := e.SendCmd(cmdUNL); c != errcode.OK {
		return c
	}
	if c := e.SendCmd(cmdUNT); c != errcode.OK {
		return c
	}
	e.deviceAddressed = false
	return errcode.OK
}

// SendUNT sends Untalk, returns the controller to CIDS, and clears
// deviceAddressed.
func (e *Engine) SendUNT() errcode.Code {
	c := e.SendCmd(cmdUNT)
	e.state.setControls(CIDS)
	e.deviceAddressed = false
	return c
}

// SendUNL sends Unlisten, returns the controller to CIDS, and clears
// deviceAddressed.
func (e *Engine) SendUNL() errcode.Code {
	c := e.SendCmd(cmdUNL)
	e.state.setControls(CIDS)
	e.deviceAddressed = false
	return c
}

// SendMTA addresses the controller itself to talk (used when the bridge
// reads data from the host into the bus).
func (e *Engine) SendMTA() errcode.Code {
	if c := e.SendCmd(cmdUNL); c != errcode.OK {
		return c
	}
	return e.SendCmd(byte(TadBase) + e.cfg.Paddr)
}

// SendMLA addresses the controller itself to listen.
func (e *Engine) SendMLA() errcode.Code {
	if c := e.SendCmd(cmdUNL); c != errcode.OK {
		return c
	}
	return e.SendCmd(byte(LadBase) + e.cfg.Paddr)
}

// SendMSA sends a secondary address byte, then releases ATN.
func (e *Engine) SendMSA(addr uint8) errcode.Code {
	c := e.SendCmd(addr)
	e.unassert(ATN)
	return c
}

// -----------------------------------------------------------------------------
// Device commands (§4.4): address target to listen, send one command
// byte, un-address. Any failing step aborts the sequence immediately.
// -----------------------------------------------------------------------------

func (e *Engine) addressedCommand(addr uint8, cmd byte) errcode.Code {
	if c := e.addressDevice(addr, false); c != errcode.OK {
		return c
	}
	if c := e.SendCmd(cmd); c != errcode.OK {
		return c
	}
	return e.UnAddressDevice()
}

// SendSDC sends Selected Device Clear to addr.
func (e *Engine) SendSDC(addr uint8) errcode.Code { return e.addressedCommand(addr, cmdSDC) }

// SendLLO sends Local Lockout to addr.
func (e *Engine) SendLLO(addr uint8) errcode.Code { return e.addressedCommand(addr, cmdLLO) }

// SendGTL sends Go To Local to addr.
func (e *Engine) SendGTL(addr uint8) errcode.Code { return e.addressedCommand(addr, cmdGTL) }

// SendGET sends Group Execute Trigger to addr.
func (e *Engine) SendGET(addr uint8) errcode.Code { return e.addressedCommand(addr, cmdGET) }

// -----------------------------------------------------------------------------
// Data transfer (§4.4)
// -----------------------------------------------------------------------------

// needsEscape decides, for the non-EOI transmit policy, whether d needs
// escaping. Resolves spec §9's open ambiguity: CR/LF/ESC are escaped
// (ESC followed by the literal byte) rather than silently dropped, so a
// payload byte is never lost when eoi_tx is false.
func needsEscape(d byte) bool {
	return d == CR || d == LF || d == ESC
}

// SendData writes buf as a GPIB data message: CTAS for a controller,
// DTAS for a device, then each byte (escaped per policy unless eoi_tx),
// then the eos terminators, then an EOI trailing pulse if eoi_tx. The
// role's idle state is restored on return.
func (e *Engine) SendData(buf []byte) errcode.Code {
	idle := e.dataIdleState()
	if e.cfg.Mode == RoleController {
		e.state.setControls(CTAS)
	} else {
		e.state.setControls(DTAS)
	}

	for _, d := range buf {
		if !e.cfg.EoiTx && needsEscape(d) {
			if c := e.writeByte(ESC, false); c != errcode.OK {
				e.state.setControls(idle)
				return c
			}
		}
		if c := e.writeByte(d, false); c != errcode.OK {
			e.state.setControls(idle)
			return c
		}
	}

	if c := e.sendTerminators(); c != errcode.OK {
		e.state.setControls(idle)
		return c
	}

	if e.cfg.EoiTx {
		e.assert(EOI)
		e.pin.SleepMicros(eoiTrailingPulse)
		e.unassert(EOI)
	}

	e.state.setControls(idle)
	return errcode.OK
}

// sendTerminators writes CR unless Eos bit 0x2 is set, and LF unless bit
// 0x1 is set. EOI is never asserted here; the trailing EOI pulse in
// SendData carries that signal once the whole message has gone out.
func (e *Engine) sendTerminators() errcode.Code {
	sendCR := e.cfg.Eos&0x2 == 0
	sendLF := e.cfg.Eos&0x1 == 0
	if sendCR {
		if c := e.writeByte(CR, false); c != errcode.OK {
			return c
		}
	}
	if sendLF {
		if c := e.writeByte(LF, false); c != errcode.OK {
			return c
		}
	}
	return errcode.OK
}

func (e *Engine) dataIdleState() BusState {
	if e.cfg.Mode == RoleController {
		return CIDS
	}
	return DIDS
}

// ReceiveData reads GPIB data bytes into sink until a terminator fires,
// EOI is seen, txBreak is set, or IFC/ATN aborts the handshake.
//
// forceEoi requests EOI-terminated reception regardless of eor (used by
// eor==7 and always true in device mode, per §4.4). detectEndByte, when
// set and reception is not EOI-terminated, ends the message on the first
// received byte equal to endByte in place of the eor terminator match —
// compared against the received byte itself, resolving spec
// §9's open ambiguity about comparing the handshake status instead.
func (e *Engine) ReceiveData(sink io.Writer, forceEoi bool, detectEndByte bool, endByte byte) errcode.Code {
	idle := e.dataIdleState()
	readWithEoi := forceEoi || e.cfg.Eor == 7

	if e.cfg.Mode == RoleController {
		if c := e.addressDevice(e.cfg.Paddr, true); c != errcode.OK {
			return c
		}
		e.state.setControls(CLAS)
	} else {
		e.state.setControls(DLAS)
		readWithEoi = true
	}

	e.clearTxBreak()
	defer e.clearTxBreak()

	var window []byte
	for {
		if e.txBreak.Load() {
			break
		}
		b, eoi, status := e.readByte(readWithEoi)
		if status == errcode.IFCAbort || status == errcode.ATNAbort {
			e.state.setControls(idle)
			return status
		}
		if status != errcode.OK {
			e.state.setControls(idle)
			return status
		}

		_, _ = sink.Write([]byte{b})
		window = append(window, b)
		if len(window) > 3 {
			window = window[len(window)-3:]
		}

		done := false
		switch {
		case readWithEoi:
			done = eoi
		case detectEndByte:
			done = b == endByte
		default:
			done = terminatorHit(window, e.cfg.Eor)
		}

		if done {
			if eoi && e.cfg.EotEn {
				_, _ = sink.Write([]byte{e.cfg.EotCh})
			}
			break
		}
	}

	e.state.setControls(idle)
	return errcode.OK
}

// -----------------------------------------------------------------------------
// Serial poll (§4.4)
// -----------------------------------------------------------------------------

// SetStatus stores b as the device's status byte and drives SRQ
// accordingly: asserted (LOW, driven output) if bit 0x40 is set,
// released (input with pull-up) otherwise (P6).
func (e *Engine) SetStatus(b byte) {
	e.cfg.Stat = b
	if b&0x40 != 0 {
		e.pin.SetControl(SRQ, SRQ, Direction) // output
		e.pin.SetControl(0, SRQ, State)       // driven LOW
	} else {
		e.pin.SetControl(0, SRQ, Direction) // input with pull-up
		e.pin.SetControl(SRQ, SRQ, State)
	}
}

// SendStatus transitions to DTAS, writes the stored status byte with no
// EOI, returns to DIDS, clears the SRQ-intent bit, and releases SRQ.
func (e *Engine) SendStatus() errcode.Code {
	e.state.setControls(DTAS)
	c := e.writeByte(e.cfg.Stat, false)
	e.state.setControls(DIDS)
	e.cfg.Stat &^= 0x40
	e.pin.SetControl(0, SRQ, Direction)
	e.pin.SetControl(SRQ, SRQ, State)
	return c
}
