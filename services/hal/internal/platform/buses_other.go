//go:build !linux && !(rp2040 || rp2350)

package platform

import (
	"rtcsync-go/errcode"

	"tinygo.org/x/drivers"
)

func openDevice(string) (drivers.I2C, func() error, error) {
	return nil, nil, errcode.Unsupported
}
