package util

import (
	"testing"
	"time"
)

type params struct {
	Bus  string `json:"bus"`
	Addr uint16 `json:"addr"`
}

func TestDecodeJSON(t *testing.T) {
	for name, in := range map[string]any{
		"bytes":  []byte(`{"bus":"i2c0","addr":111}`),
		"string": `{"bus":"i2c0","addr":111}`,
		"map":    map[string]any{"bus": "i2c0", "addr": 111},
		"typed":  params{Bus: "i2c0", Addr: 111},
		"ptr":    &params{Bus: "i2c0", Addr: 111},
	} {
		var p params
		if err := DecodeJSON(in, &p); err != nil {
			t.Fatalf("%s: decode failed: %v", name, err)
		}
		if p.Bus != "i2c0" || p.Addr != 0x6F {
			t.Fatalf("%s: unexpected result: %+v", name, p)
		}
	}
}

func TestDecodeJSONRejectsWrongShape(t *testing.T) {
	var p params
	if err := DecodeJSON(map[string]any{"addr": "sixty"}, &p); err == nil {
		t.Fatal("expected type error")
	}
}

func TestResetAndDrainTimer(t *testing.T) {
	tm := time.NewTimer(time.Hour)
	if !tm.Stop() {
		DrainTimer(tm)
	}
	// Reset to near-zero and ensure it fires quickly.
	ResetTimer(tm, 1*time.Millisecond)
	select {
	case <-tm.C:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("timer did not fire after ResetTimer")
	}
	// Negative reset clamps to zero and should fire immediately.
	ResetTimer(tm, -1)
	select {
	case <-tm.C:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("timer did not fire after negative ResetTimer")
	}
}
