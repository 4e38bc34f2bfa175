// services/hal/hal.go
package hal

import (
	"context"
	"time"

	"rtcsync-go/bus"
	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/core"
	"rtcsync-go/services/hal/internal/platform"
	"rtcsync-go/services/hal/internal/provider"
	"rtcsync-go/types"

	_ "rtcsync-go/services/hal/devices/rtc"

	"tinygo.org/x/drivers"
)

// TimeSource is the host clock RTC devices read from and publish into.
type TimeSource = core.TimeSource

// Options selects the buses and collaborators for one HAL instance.
type Options struct {
	// Plan names a platform resource plan ("host-sim", "linux", "pico").
	Plan string
	// Buses, when set, is used instead of opening Plan.
	Buses map[string]drivers.I2C
	// Timeout bounds every bus transaction; 0 selects the provider default.
	Timeout time.Duration
	Time    TimeSource
}

// Run opens the buses, starts the HAL and blocks until ctx is cancelled.
func Run(ctx context.Context, conn *bus.Connection, opts Options) error {
	buses := opts.Buses
	if buses == nil {
		plan, ok := platform.Lookup(opts.Plan)
		if !ok {
			return &errcode.E{C: errcode.InvalidConfig, Op: "hal", Msg: "unknown plan " + opts.Plan}
		}
		opened, err := platform.OpenI2C(plan)
		if err != nil {
			return err
		}
		defer opened.Close()
		buses = opened.I2C
	}

	reg := provider.NewRegistry(buses, opts.Timeout)
	defer reg.Close()

	h := core.NewHAL(conn, core.Resources{Reg: reg, Time: opts.Time})
	h.Run(ctx)
	return nil
}

// ControlTopic is hal/cap/<domain>/<kind>/<name>/control/<verb>.
func ControlTopic(domain string, kind types.Kind, name, verb string) bus.Topic {
	return core.CapCtrl(core.CapAddr{Domain: domain, Kind: kind, Name: name}, verb)
}

// ValueTopic is the retained value topic of a capability.
func ValueTopic(domain string, kind types.Kind, name string) bus.Topic {
	return core.T("hal", "cap", domain, string(kind), name, "value")
}

// StatusTopic is the retained status topic of a capability.
func StatusTopic(domain string, kind types.Kind, name string) bus.Topic {
	return core.T("hal", "cap", domain, string(kind), name, "status")
}

// DeviceTypes lists the registered device types.
func DeviceTypes() []string { return core.BuilderTypes() }

// Validate checks a HAL config without applying it.
func Validate(cfg types.HALConfig) error { return core.ValidateConfig(cfg) }

// Plans lists the platform resource plans known to this build.
func Plans() []string { return platform.Names() }
