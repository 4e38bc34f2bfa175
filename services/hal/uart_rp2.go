//go:build rp2040 || rp2350

package hal

import (
	"io"

	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/platform"
)

// OpenUART opens UART id from the named plan for use as a bridge link.
func OpenUART(planName, id string, baud uint32) (io.ReadWriteCloser, error) {
	plan, ok := platform.Lookup(planName)
	if !ok {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "uart", Msg: "unknown plan " + planName}
	}
	return platform.OpenUART(plan, id, baud)
}
