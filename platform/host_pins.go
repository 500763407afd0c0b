// platform/host_pins.go
package platform

import (
	"sync"
	"time"

	"gpibengine/gpib"
)

// HostPin is a software-simulated gpib.Pin for standard Go builds, where
// there is no real GPIB transceiver wired up. It models an idle bus (all
// lines input, all levels HIGH) and is driven the same way a real Pin
// would be; it exists so the bridge and its diagnostic REPL run on a
// developer's workstation without hardware.
type HostPin struct {
	mu    sync.Mutex
	wire  byte
	dir   map[gpib.Line]bool
	level map[gpib.Line]bool
}

var hostLines = []gpib.Line{gpib.IFC, gpib.NDAC, gpib.NRFD, gpib.DAV, gpib.EOI, gpib.REN, gpib.SRQ, gpib.ATN}

// NewHostPin returns a HostPin with every control line released (input,
// HIGH), matching a freshly powered-up bus.
func NewHostPin() *HostPin {
	p := &HostPin{dir: map[gpib.Line]bool{}, level: map[gpib.Line]bool{}}
	for _, l := range hostLines {
		p.level[l] = true
	}
	return p
}

func (p *HostPin) ReadyDataBus() {}

func (p *HostPin) ReadDataBus() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ^p.wire
}

func (p *HostPin) WriteDataBus(b byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wire = ^b
}

func (p *HostPin) SetControl(value, mask gpib.Line, mode gpib.Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range hostLines {
		if mask&l == 0 {
			continue
		}
		bit := value&l != 0
		if mode == gpib.Direction {
			p.dir[l] = bit
		} else {
			p.level[l] = bit
		}
	}
}

func (p *HostPin) ReadControlLine(line gpib.Line) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level[line]
}

func (p *HostPin) NowMs() int64 { return time.Now().UnixMilli() }

func (p *HostPin) SleepMicros(d time.Duration) { time.Sleep(d) }
