package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gpibengine/bus"
	"gpibengine/gpib"

	"github.com/andreyvit/tinyjson"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for device ID
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// -----------------------------------------------------------------------------
// Overrides
// -----------------------------------------------------------------------------

// ApplyOverrides parses raw as a JSON object of gpib.Config field
// overrides and applies it on top of base, returning the result clamped.
// Recognized keys: mode ("controller"|"device"|"none"), paddr, stat,
// eoi_tx, eos, eor, eot_en, eot_ch, rtmo_ms. Unrecognized keys are
// ignored so a persisted record can carry fields this build doesn't know
// about yet.
func ApplyOverrides(base gpib.Config, raw []byte) (gpib.Config, error) {
	if len(raw) == 0 {
		base.Clamp()
		return base, nil
	}

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return gpib.Config{}, errors.New("config: overrides must be a JSON object")
	}

	out := base
	for k, v := range m {
		if err := applyField(&out, k, v); err != nil {
			return gpib.Config{}, fmt.Errorf("config: field %q: %w", k, err)
		}
	}
	out.Clamp()
	return out, nil
}

func applyField(c *gpib.Config, key string, v any) error {
	switch key {
	case "mode":
		s, ok := v.(string)
		if !ok {
			return errors.New("want string")
		}
		switch s {
		case "controller":
			c.Mode = gpib.RoleController
		case "device":
			c.Mode = gpib.RoleDevice
		case "none":
			c.Mode = gpib.RoleNone
		default:
			return fmt.Errorf("unrecognized role %q", s)
		}
	case "paddr":
		n, err := asUint8(v)
		if err != nil {
			return err
		}
		c.Paddr = n
	case "stat":
		n, err := asUint8(v)
		if err != nil {
			return err
		}
		c.Stat = n
	case "eoi_tx":
		b, ok := v.(bool)
		if !ok {
			return errors.New("want bool")
		}
		c.EoiTx = b
	case "eos":
		n, err := asUint8(v)
		if err != nil {
			return err
		}
		c.Eos = n
	case "eor":
		n, err := asUint8(v)
		if err != nil {
			return err
		}
		c.Eor = n
	case "eot_en":
		b, ok := v.(bool)
		if !ok {
			return errors.New("want bool")
		}
		c.EotEn = b
	case "eot_ch":
		n, err := asUint8(v)
		if err != nil {
			return err
		}
		c.EotCh = n
	case "rtmo_ms":
		n, err := asUint8(v)
		if err == nil {
			c.Rtmo = time.Duration(n) * time.Millisecond
			return nil
		}
		f, ok := v.(float64)
		if !ok {
			return errors.New("want number")
		}
		c.Rtmo = time.Duration(f) * time.Millisecond
	default:
		// unknown field: ignore, don't fail the whole record over it
	}
	return nil
}

func asUint8(v any) (uint8, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, errors.New("want number")
	}
	if f < 0 || f > 255 {
		return 0, fmt.Errorf("value %v out of byte range", f)
	}
	return uint8(f), nil
}

// -----------------------------------------------------------------------------
// Config service
// -----------------------------------------------------------------------------

// Service resolves a device's embedded configuration at startup and
// publishes each top-level JSON field as a retained bus message under
// "config/<field>", the same way the adapter publishes bus-state and
// status events rather than logging them.
type Service struct {
	Name string
}

func NewService() *Service {
	return &Service{Name: serviceName}
}

// publishConfig reads the device config from embedded data and publishes
// it as retained messages.
func (s *Service) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}

	r := tinyjson.Raw(raw)
	val := r.Value() // should be a map[string]any
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return errors.New("embedded config is not a JSON object")
	}

	for k, v := range m {
		msg := &bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  v,
			Retained: true,
		}
		conn.Publish(msg)
	}

	return nil
}

// Start launches the config publisher in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		_ = s.publishConfig(ctx, conn) // error discarded: neither published nor logged
	}()
}

// Load resolves device's embedded config (if any) and applies it as
// gpib.Config overrides on top of base. A missing embedded config is not
// an error: base is returned unchanged (clamped).
func Load(device string, base gpib.Config) (gpib.Config, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok {
		base.Clamp()
		return base, nil
	}
	return ApplyOverrides(base, raw)
}
