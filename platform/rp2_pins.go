// platform/rp2_pins.go
//go:build rp2040 || rp2350

package platform

import (
	"time"

	"machine"

	"gpibengine/gpib"
)

// PinMap names the physical GP numbers wired to each GPIB signal.
// DataPins is DIO1..DIO8, in order.
type PinMap struct {
	DataPins [8]uint8
	IFC      uint8
	NDAC     uint8
	NRFD     uint8
	DAV      uint8
	EOI      uint8
	REN      uint8
	SRQ      uint8
	ATN      uint8
}

// RP2Pin drives a real GPIB transceiver over RP2040/RP2350 GPIOs,
// following the board-default pin-factory pattern used elsewhere on this
// platform (logical number -> machine.Pin(n)).
type RP2Pin struct {
	data    [8]machine.Pin
	control map[gpib.Line]machine.Pin
}

// NewRP2Pin configures every line in m as input with pull-up (the bus's
// power-on state) and returns a ready-to-use gpib.Pin.
func NewRP2Pin(m PinMap) *RP2Pin {
	p := &RP2Pin{control: map[gpib.Line]machine.Pin{
		gpib.IFC:  machine.Pin(m.IFC),
		gpib.NDAC: machine.Pin(m.NDAC),
		gpib.NRFD: machine.Pin(m.NRFD),
		gpib.DAV:  machine.Pin(m.DAV),
		gpib.EOI:  machine.Pin(m.EOI),
		gpib.REN:  machine.Pin(m.REN),
		gpib.SRQ:  machine.Pin(m.SRQ),
		gpib.ATN:  machine.Pin(m.ATN),
	}}
	for i, n := range m.DataPins {
		p.data[i] = machine.Pin(n)
		p.data[i].Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	for _, pin := range p.control {
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	return p
}

func (p *RP2Pin) ReadyDataBus() {
	for i := range p.data {
		p.data[i].Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
}

func (p *RP2Pin) ReadDataBus() byte {
	var b byte
	for i, pin := range p.data {
		if !pin.Get() { // active-low
			b |= 1 << uint(i)
		}
	}
	return b
}

func (p *RP2Pin) WriteDataBus(b byte) {
	for i := range p.data {
		p.data[i].Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.data[i].Set(b&(1<<uint(i)) == 0) // active-low: drive LOW to assert the bit
	}
}

func (p *RP2Pin) SetControl(value, mask gpib.Line, mode gpib.Mode) {
	for line, pin := range p.control {
		if mask&line == 0 {
			continue
		}
		asserted := value&line == 0
		if mode == gpib.Direction {
			if value&line != 0 { // 1 = output, 0 = input with pull-up
				pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
			} else {
				pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
			}
			continue
		}
		pin.Set(!asserted) // active-low: LOW means asserted
	}
}

func (p *RP2Pin) ReadControlLine(line gpib.Line) bool {
	pin, ok := p.control[line]
	if !ok {
		return true
	}
	return pin.Get()
}

func (p *RP2Pin) NowMs() int64 { return time.Now().UnixMilli() }

func (p *RP2Pin) SleepMicros(d time.Duration) { time.Sleep(d) }
