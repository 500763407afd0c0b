// platform/host_pins_test.go
package platform

import (
	"testing"
	"time"

	"gpibengine/gpib"
)

var _ gpib.Pin = (*HostPin)(nil)

func TestHostPin_PowerOnLinesUnasserted(t *testing.T) {
	p := NewHostPin()
	for _, l := range hostLines {
		if !p.ReadControlLine(l) {
			t.Errorf("line %#02x asserted at power-on", l)
		}
	}
}

func TestHostPin_SetControl_MasksAndModes(t *testing.T) {
	p := NewHostPin()
	p.SetControl(0, gpib.ATN, gpib.Direction)
	p.SetControl(0, gpib.ATN, gpib.State)

	if p.ReadControlLine(gpib.ATN) {
		t.Fatalf("ATN should read asserted (LOW)")
	}
	if p.ReadControlLine(gpib.REN) != true {
		t.Fatalf("REN should be untouched (still HIGH)")
	}
}

func TestHostPin_DataBusLoopback(t *testing.T) {
	p := NewHostPin()
	p.WriteDataBus(0x5A)
	if got := p.ReadDataBus(); got != 0x5A {
		t.Fatalf("ReadDataBus = %#02x, want 0x5A", got)
	}
}

func TestHostPin_SleepMicros_ActuallySleeps(t *testing.T) {
	p := NewHostPin()
	start := time.Now()
	p.SleepMicros(5 * time.Millisecond)
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("SleepMicros returned too early")
	}
}
