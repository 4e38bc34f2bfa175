//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"

	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/provider"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// UARTStream is a configured hardware UART presented as a byte stream.
type UARTStream struct{ u *uartx.UART }

func (s *UARTStream) Write(b []byte) (int, error) { return s.u.Write(b) }

// Read blocks until at least one byte arrives.
func (s *UARTStream) Read(b []byte) (int, error) {
	return s.u.RecvSomeContext(context.Background(), b)
}

// Close is a no-op; the controller stays configured for the next link.
func (s *UARTStream) Close() error { return nil }

// OpenUART configures the UART with the given id from plan. A non-zero baud
// overrides the plan's rate.
func OpenUART(plan provider.ResourcePlan, id string, baud uint32) (*UARTStream, error) {
	for _, u := range plan.UART {
		if u.ID != id {
			continue
		}
		var hw *uartx.UART
		switch u.ID {
		case "uart0":
			hw = uartx.UART0
		case "uart1":
			hw = uartx.UART1
		default:
			return nil, errcode.UnknownBus
		}
		if baud == 0 {
			baud = u.Baud
		}
		// Defaults inside uartx apply if zero.
		if err := hw.Configure(uartx.UARTConfig{
			BaudRate: baud,
			TX:       machine.Pin(u.TX),
			RX:       machine.Pin(u.RX),
		}); err != nil {
			return nil, err
		}
		return &UARTStream{u: hw}, nil
	}
	return nil, errcode.UnknownBus
}
