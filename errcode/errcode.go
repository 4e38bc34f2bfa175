package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	Unavailable       Code = "unavailable"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	InvalidConfig     Code = "invalid_config"
	UnknownCapability Code = "unknown_capability"
	UnknownDevice     Code = "unknown_device"
	UnknownType       Code = "unknown_type"
	DuplicateDevice   Code = "duplicate_device"
	HALNotReady       Code = "hal_not_ready"
	InvalidTopic      Code = "invalid_topic"

	UnknownBus Code = "unknown_bus"
	BusInUse   Code = "bus_in_use"
	Timeout    Code = "timeout"

	// Clock synchronisation.
	BusFailure       Code = "bus_failure"
	InvalidInput     Code = "invalid_input"
	DecodeFailure    Code = "decode_failure"
	OscillatorFailed Code = "oscillator_failed"
	ClockUnset       Code = "clock_unset"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap returns an *E for code c at op, keeping err as the cause.
func Wrap(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a Code. Codes raised by the
// resource provider (timeout, busy, unknown_bus) pass through unchanged;
// anything else from the bus becomes bus_failure.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	for e := err; e != nil; e = unwrap(e) {
		if c := Of(e); c != Error {
			return c
		}
	}
	return BusFailure
}

func unwrap(err error) error {
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return u.Unwrap()
	}
	return nil
}
