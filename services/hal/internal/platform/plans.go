package platform

import (
	"sort"

	"rtcsync-go/services/hal/internal/provider"
)

// Plans wires controllers to pins (MCU), device nodes (Linux) or simulated
// chips (host). Board configs select one by name.
var Plans = map[string]provider.ResourcePlan{
	// An ISL1208 on i2c0 and a DS1307 on i2c1, both simulated.
	"host-sim": {
		I2C: []provider.I2CPlan{
			{ID: "i2c0", Sim: []provider.SimChip{{Chip: "isl1208"}}},
			{ID: "i2c1", Sim: []provider.SimChip{{Chip: "ds1307", Start: "2024-03-15T09:05:00Z"}}},
		},
	},
	// Raspberry Pi style SBC with the RTC on /dev/i2c-1.
	"linux": {
		I2C: []provider.I2CPlan{{ID: "i2c0", Dev: "/dev/i2c-1"}},
	},
	"pico": {
		I2C: []provider.I2CPlan{
			{ID: "i2c0", SDA: 4, SCL: 5, Hz: 400_000},
			{ID: "i2c1", SDA: 2, SCL: 3, Hz: 100_000},
		},
		UART: []provider.UARTPlan{{ID: "uart0", TX: 0, RX: 1, Baud: 115200}},
	},
}

// Lookup returns the named plan.
func Lookup(name string) (provider.ResourcePlan, bool) {
	p, ok := Plans[name]
	return p, ok
}

// Names lists the known plans in order.
func Names() []string {
	out := make([]string, 0, len(Plans))
	for n := range Plans {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
