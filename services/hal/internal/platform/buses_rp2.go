//go:build rp2040 || rp2350

package platform

import (
	"machine"

	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/provider"

	"tinygo.org/x/drivers"
)

type Buses struct {
	I2C map[string]drivers.I2C
}

// OpenI2C configures the RP2 controllers named in plan.
func OpenI2C(plan provider.ResourcePlan) (*Buses, error) {
	b := &Buses{I2C: make(map[string]drivers.I2C)}
	for _, p := range plan.I2C {
		var hw *machine.I2C
		switch p.ID {
		case "i2c0":
			hw = machine.I2C0
		case "i2c1":
			hw = machine.I2C1
		default:
			return nil, errcode.UnknownBus
		}
		hz := p.Hz
		if hz == 0 {
			hz = 400 * machine.KHz
		}
		if err := hw.Configure(machine.I2CConfig{
			Frequency: hz,
			SDA:       machine.Pin(p.SDA),
			SCL:       machine.Pin(p.SCL),
		}); err != nil {
			return nil, err
		}
		b.I2C[p.ID] = hw
	}
	return b, nil
}

func (b *Buses) Close() error { return nil }
