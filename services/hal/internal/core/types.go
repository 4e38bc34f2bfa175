package core

import (
	"context"
	"time"

	"rtcsync-go/errcode"
	"rtcsync-go/types"

	"tinygo.org/x/drivers"
)

// ---- Capability & device model ----

// CapAddr is the public identity of a capability: hal/cap/<domain>/<kind>/<name>.
type CapAddr struct {
	Domain string
	Kind   types.Kind
	Name   string
}

type CapabilitySpec struct {
	Domain string
	Kind   types.Kind
	Name   string
	Info   types.Info
}

// EnqueueResult is the immediate outcome of a control. Work runs later on the
// device's own goroutine; results arrive as events.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
}

type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	// Control must not block.
	Control(addr CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error // release claimed resources
}

// ---- Device → HAL telemetry (single shape) ----
// By default an Event is a value update published retained on .../value.
// IsEvent publishes to .../event[/<tag>] instead (not retained). Err, when
// non-empty, publishes only .../status=degraded (retained).

type Event struct {
	Addr     CapAddr
	Payload  any
	TS       int64  // Unix ns
	Err      string // errcode string
	IsEvent  bool
	EventTag string
}

type EventEmitter interface {
	// Emit must be non-blocking; false indicates a drop under pressure.
	Emit(ev Event) bool
}

// ---- Host time source ----

// TimeSource is the host clock that RTC devices read from and publish into.
type TimeSource interface {
	Now() time.Time
	Publish(t time.Time, origin string) error
}

// ---- Resources ----

type ResourceID string // e.g. "i2c0"

// ResourceRegistry hands out serialised bus handles. Transactions on one bus
// never interleave; each Tx is bounded by the provider timeout.
type ResourceRegistry interface {
	ClaimI2C(devID string, id ResourceID) (drivers.I2C, error)
	ReleaseI2C(devID string, id ResourceID)
}

type Resources struct {
	Reg  ResourceRegistry
	Pub  EventEmitter // provided by HAL
	Time TimeSource
}

// ---- Builders ----

type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}

// ParamValidator is implemented by builders that can check params without
// claiming resources. ValidateConfig calls it before anything is built.
type ParamValidator interface {
	ValidateParams(params any) error
}
