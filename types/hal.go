package types

// ------------------------
// Common HAL state (retained)
// ------------------------

type HALState struct {
	Level  string `json:"level"`  // "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ns"`  // publish Unix ns
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TS    int64  `json:"ts_ns"`           // Unix ns
	Error string `json:"error,omitempty"` // machine-readable short code
}

// ------------------------
// Polling (control)
// ------------------------

type PollStart struct {
	Verb       string `json:"verb"`        // e.g. "read"
	IntervalMs uint32 `json:"interval_ms"` // >0
	JitterMs   uint16 `json:"jitter_ms"`   // uniform [0..JitterMs]
}

type PollStop struct {
	Verb string `json:"verb,omitempty"` // empty => "read"
}

// ------------------------
// Action bindings (declarative)
// ------------------------

// Triggers understood by ActionSpec.
const (
	TriggerBoot     = "boot"
	TriggerInterval = "interval"
)

// ActionSpec binds a device verb to a trigger. Device is resolved by ID when
// the config is applied; an unknown ID rejects the whole config.
type ActionSpec struct {
	Device     string `json:"device"`                // HALDevice.ID
	Verb       string `json:"verb"`                  // "write_time" | "read_time"
	Trigger    string `json:"trigger"`               // "boot" | "interval"
	IntervalMs uint32 `json:"interval_ms,omitempty"` // interval only
	JitterMs   uint16 `json:"jitter_ms,omitempty"`
}

// ------------------------
// HAL configuration
// ------------------------

type HALConfig struct {
	Devices []HALDevice  `json:"devices"`
	Actions []ActionSpec `json:"actions,omitempty"`
}

type HALDevice struct {
	ID     string `json:"id"`     // logical device id
	Type   string `json:"type"`   // e.g. "isl1208"
	Params any    `json:"params"` // device-specific params (JSON-like)
}

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ------------------------
// Info envelope (retained)
// ------------------------

type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"` // one of *Info types
}
