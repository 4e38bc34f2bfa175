//go:build linux && !(rp2040 || rp2350)

package timesource

import (
	"time"

	"golang.org/x/sys/unix"
)

// SetSystemClock steps the OS clock. It needs CAP_SYS_TIME.
func SetSystemClock(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	return unix.Settimeofday(&tv)
}
