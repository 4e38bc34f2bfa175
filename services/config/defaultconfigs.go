package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device name (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

// host-sim: two simulated chips on the host plan; rtc0 seeds the host clock
// at boot and rtc1 is refreshed from it hourly.
const cfgHostSim = `{
  "hal": {
    "devices": [
      {"id": "rtc0", "type": "isl1208", "params": {"bus": "i2c0", "addr": 111, "name": "board", "sync_on_boot": "read"}},
      {"id": "rtc1", "type": "ds1307", "params": {"bus": "i2c1", "addr": 104, "name": "aux"}}
    ],
    "actions": [
      {"device": "rtc1", "verb": "write_time", "trigger": "interval", "interval_ms": 3600000, "jitter_ms": 500}
    ]
  },
  "bridge": {
    "transport": {"type": ""}
  },
  "heartbeat": {
    "interval": 10
  }
}`

// linux: one ISL1208 on /dev/i2c-1 read at boot and every 10 minutes.
const cfgLinux = `{
  "hal": {
    "devices": [
      {"id": "rtc0", "type": "isl1208", "params": {"bus": "i2c0", "addr": 111, "name": "board", "sync_on_boot": "read"}}
    ],
    "actions": [
      {"device": "rtc0", "verb": "read_time", "trigger": "interval", "interval_ms": 600000}
    ]
  },
  "bridge": {
    "transport": {"type": "uart", "uart": {"device": "/dev/ttyACM0", "baud": 115200}}
  },
  "heartbeat": {
    "interval": 60
  }
}`

// pico: the board RTC sets the clock at boot; the peer may push corrections
// over the UART bridge.
const cfgPico = `{
  "hal": {
    "devices": [
      {"id": "rtc0", "type": "isl1208", "params": {"bus": "i2c0", "addr": 111, "name": "board", "sync_on_boot": "read"}}
    ]
  },
  "bridge": {
    "transport": {"type": "uart", "uart": {"baud": 115200, "tx_pin": 0, "rx_pin": 1}}
  },
  "heartbeat": {
    "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"host-sim": []byte(cfgHostSim),
	"linux":    []byte(cfgLinux),
	"pico":     []byte(cfgPico),
}
