//go:build (linux || darwin) && !(rp2040 || rp2350)

package bridge

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/pkg/term"
)

func init() {
	if UARTDial == nil {
		UARTDial = OpenSerial
	}
}

// OpenSerial opens a host serial device in raw mode at the configured baud.
func OpenSerial(_ context.Context, u UARTConfig) (io.ReadWriteCloser, error) {
	if u.Device == "" {
		return nil, errors.New("uart transport on a host requires uart.device")
	}
	opts := []func(*term.Term) error{term.RawMode}
	if u.Baud > 0 {
		opts = append(opts, term.Speed(u.Baud))
	}
	if u.ReadTimeoutMS > 0 {
		opts = append(opts, term.ReadTimeout(time.Duration(u.ReadTimeoutMS)*time.Millisecond))
	}
	t, err := term.Open(u.Device, opts...)
	if err != nil {
		return nil, err
	}
	return t, nil
}
