package gpib

import "sync/atomic"

// CachedPin decorates a Pin so that ATN/SRQ reads can be served from a
// value updated by a board's pin-change interrupt instead of a fresh
// register read, per design note 4 ("pin-change interrupts on ATN/SRQ,
// if used, must only update cached flags — never touch cstate").
// Adapted from the teacher's gpio_worker.go ISR-to-cache pattern
// (services/hal/gpio_worker.go: handleISR updates wh.lastLevel, never
// engine state), narrowed from edge-dispatch to a plain cached read
// because the handshake only ever needs the current level, polled.
//
// A CachedPin with no interrupt wired up behaves exactly like the
// wrapped Pin: ReadControlLine falls through until OnATNChange/
// OnSRQChange is called at least once.
type CachedPin struct {
	Pin

	atn, srq               atomic.Bool
	atnEnabled, srqEnabled atomic.Bool
}

// NewCachedPin wraps p. Call OnATNChange/OnSRQChange from the board's
// interrupt handler (or a polling goroutine) to start serving cached
// reads for that line.
func NewCachedPin(p Pin) *CachedPin {
	return &CachedPin{Pin: p}
}

// OnATNChange records the ATN line's level (true == HIGH/unasserted) and
// switches ReadControlLine(ATN) to serve from cache. Safe to call from
// an interrupt context: it only stores an atomic value.
func (c *CachedPin) OnATNChange(level bool) {
	c.atn.Store(level)
	c.atnEnabled.Store(true)
}

// OnSRQChange records the SRQ line's level (true == HIGH/unasserted) and
// switches ReadControlLine(SRQ) to serve from cache.
func (c *CachedPin) OnSRQChange(level bool) {
	c.srq.Store(level)
	c.srqEnabled.Store(true)
}

// ReadControlLine overrides the embedded Pin for ATN and SRQ once a
// cached value has been published; every other line, and ATN/SRQ before
// the first cache update, fall through to the wrapped Pin.
func (c *CachedPin) ReadControlLine(line Line) bool {
	switch line {
	case ATN:
		if c.atnEnabled.Load() {
			return c.atn.Load()
		}
	case SRQ:
		if c.srqEnabled.Load() {
			return c.srq.Load()
		}
	}
	return c.Pin.ReadControlLine(line)
}
