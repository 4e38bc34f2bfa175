package rtc

import (
	"errors"
	"strconv"
)

// Error kinds. Match with errors.Is.
var (
	ErrBusFailure    = errors.New("rtc: bus failure")
	ErrInvalidInput  = errors.New("rtc: invalid input")
	ErrDecodeFailure = errors.New("rtc: decode failure")
)

// Error carries the failing operation, its kind and the underlying cause.
// errors.Is matches both Kind and anything in the Err chain.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Op != "" {
		s += " (" + e.Op + ")"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func busErr(op string, err error) error {
	return &Error{Kind: ErrBusFailure, Op: op, Err: err}
}

// RangeError reports a calendar field outside its valid range.
type RangeError struct {
	Field string
	Value int
}

func (e *RangeError) Error() string {
	return e.Field + " " + strconv.Itoa(e.Value) + " out of range"
}

// DecodeError reports a register byte that is not valid BCD, or whose
// decoded value is outside the field's range.
type DecodeError struct {
	Reg string
	Raw byte
	BCD bool // true: bad nibble; false: value out of range
}

func (e *DecodeError) Error() string {
	why := "value out of range"
	if e.BCD {
		why = "invalid BCD"
	}
	return "rtc: " + why + " in " + e.Reg + " register (0x" + hex2(e.Raw) + ")"
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecodeFailure }

func hex2(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}
