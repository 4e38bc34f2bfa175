package errcode

import (
	"errors"
	"testing"
)

func TestOf(t *testing.T) {
	if got := Of(nil); got != OK {
		t.Fatalf("Of(nil) = %q, want ok", got)
	}
	if got := Of(Busy); got != Busy {
		t.Fatalf("Of(Busy) = %q", got)
	}
	if got := Of(&E{C: DecodeFailure, Op: "decode"}); got != DecodeFailure {
		t.Fatalf("Of(*E) = %q", got)
	}
	if got := Of(errors.New("boom")); got != Error {
		t.Fatalf("Of(plain) = %q, want error", got)
	}
}

func TestMapDriverErr(t *testing.T) {
	if got := MapDriverErr(Timeout); got != Timeout {
		t.Fatalf("timeout mapped to %q", got)
	}
	wrapped := Wrap(InvalidInput, "encode", errors.New("year"))
	if got := MapDriverErr(wrapped); got != InvalidInput {
		t.Fatalf("wrapped mapped to %q", got)
	}
	if got := MapDriverErr(errors.New("nack")); got != BusFailure {
		t.Fatalf("plain bus error mapped to %q, want bus_failure", got)
	}
}

func TestEErrorString(t *testing.T) {
	e := &E{C: BusFailure, Op: "write", Err: errors.New("nack")}
	if got, want := e.Error(), "write: bus_failure: nack"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(e, e.Err) {
		t.Fatal("errors.Is should reach the cause")
	}
}
