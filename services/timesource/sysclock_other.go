//go:build !linux || rp2040 || rp2350

package timesource

import (
	"time"

	"rtcsync-go/errcode"
)

func SetSystemClock(time.Time) error { return errcode.Unsupported }
