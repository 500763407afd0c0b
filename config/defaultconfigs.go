package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes of gpib.Config field overrides for that device
// -----------------------------------------------------------------------------

const cfgPicoController = `{
  "mode": "controller",
  "paddr": 0,
  "eoi_tx": true,
  "eor": 0,
  "rtmo_ms": 1200
}`

const cfgPicoDevice = `{
  "mode": "device",
  "paddr": 1,
  "eoi_tx": true,
  "eor": 7,
  "eot_en": false,
  "rtmo_ms": 1200
}`

var embeddedConfigs = map[string][]byte{
	"pico-controller": []byte(cfgPicoController),
	"pico-device":     []byte(cfgPicoDevice),
}
