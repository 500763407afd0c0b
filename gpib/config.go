package gpib

import (
	"encoding/binary"
	"fmt"
	"time"

	"gpibengine/x/mathx"
)

// RecordSize is the persisted size of Config, per spec §6: "persisted as
// an 84-byte opaque block". This package only reads/writes the fields it
// knows about (Record layout below); the remaining bytes are reserved for
// the external persistence codec (addresses, macros, and anything else
// the host side owns) and are round-tripped unchanged by Unpack/Pack.
const RecordSize = 84

// Config is the in-memory configuration record of spec §3.
type Config struct {
	Mode  Role
	Paddr uint8 // primary GPIB address of the local party, 0-30
	Stat  uint8 // last-set status byte; bit 0x40 mirrors SRQ intent

	EoiTx bool // SendData pulses EOI once after a message's last byte

	// Eos is the terminator-transmit policy: bit1 suppresses CR, bit0
	// suppresses LF.
	Eos uint8

	// Eor selects the terminator-receive policy, 0..7 (§4.3).
	Eor uint8

	EotEn bool // append EotCh to received data when EOI-terminated
	EotCh byte

	Rtmo time.Duration // per-byte handshake timeout

	// Dirty is expansion bookkeeping (not part of the persisted record:
	// Pack and Unpack ignore it). Nothing in this module sets, clears or
	// reads it.
	Dirty bool

	reserved [RecordSize - recordFieldBytes]byte
}

const recordFieldBytes = 12 // bytes 0..11 below; the rest is reserved.

// DefaultConfig returns the record's power-on defaults.
func DefaultConfig() Config {
	return Config{
		Mode:  RoleNone,
		Paddr: 0,
		Stat:  0,
		EoiTx: true,
		Eos:   0,
		Eor:   0,
		EotEn: false,
		EotCh: 0,
		Rtmo:  DefaultRTMO,
	}
}

// Clamp normalizes out-of-range fields in place: Paddr to [0,30], Eor to
// [0,7], and Rtmo to a sane [1ms, 60s] band so a corrupt persisted block
// can't wedge the handshake with a zero or absurd timeout.
func (c *Config) Clamp() {
	c.Paddr = mathx.Clamp(c.Paddr, 0, 30)
	c.Eor = mathx.Clamp(c.Eor, 0, 7)
	c.Rtmo = time.Duration(mathx.Clamp(int64(c.Rtmo), int64(time.Millisecond), int64(60*time.Second)))
}

// Pack serializes c into its persisted 84-byte layout:
//
//	0: mode
//	1: paddr
//	2: stat
//	3: flags (bit0 eoi_tx, bit1 eot_en)
//	4: eos
//	5: eor
//	6: eot_ch
//	7: reserved
//	8-11: rtmo, milliseconds, little-endian uint32
//	12-83: reserved (opaque to this package)
func (c Config) Pack() [RecordSize]byte {
	var out [RecordSize]byte
	out[0] = byte(c.Mode)
	out[1] = c.Paddr
	out[2] = c.Stat
	var flags byte
	if c.EoiTx {
		flags |= 0x01
	}
	if c.EotEn {
		flags |= 0x02
	}
	out[3] = flags
	out[4] = c.Eos
	out[5] = c.Eor
	out[6] = c.EotCh
	binary.LittleEndian.PutUint32(out[8:12], uint32(c.Rtmo/time.Millisecond))
	copy(out[recordFieldBytes:], c.reserved[:])
	return out
}

// Unpack parses a persisted 84-byte block into a Config. The reserved
// tail is preserved verbatim so a later Pack round-trips bytes this
// package doesn't understand.
func Unpack(data []byte) (Config, error) {
	if len(data) != RecordSize {
		return Config{}, fmt.Errorf("gpib: config record must be %d bytes, got %d", RecordSize, len(data))
	}
	c := Config{
		Mode:  Role(data[0]),
		Paddr: data[1],
		Stat:  data[2],
		EoiTx: data[3]&0x01 != 0,
		EotEn: data[3]&0x02 != 0,
		Eos:   data[4],
		Eor:   data[5],
		EotCh: data[6],
		Rtmo:  time.Duration(binary.LittleEndian.Uint32(data[8:12])) * time.Millisecond,
	}
	copy(c.reserved[:], data[recordFieldBytes:])
	c.Clamp()
	return c, nil
}
