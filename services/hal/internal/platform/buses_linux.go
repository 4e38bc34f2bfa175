//go:build linux && !(rp2040 || rp2350)

package platform

import (
	"strings"
	"sync"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"tinygo.org/x/drivers"
)

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// openDevice opens a Linux I²C adapter through periph. name may be a device
// node ("/dev/i2c-1") or a periph bus name ("1", "I2C1").
func openDevice(name string) (drivers.I2C, func() error, error) {
	if err := hostInit(); err != nil {
		return nil, nil, err
	}
	// periph registers buses by number, not by device node.
	bus, err := i2creg.Open(strings.TrimPrefix(name, "/dev/i2c-"))
	if err != nil {
		return nil, nil, err
	}
	println("[platform] opened i2c", bus.String())
	return bus, bus.Close, nil
}
