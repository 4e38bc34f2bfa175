package core

import (
	"testing"

	"rtcsync-go/errcode"
	"rtcsync-go/types"
)

func TestValidateConfig(t *testing.T) {
	dev := func(id, typ string) types.HALDevice {
		return types.HALDevice{ID: id, Type: typ, Params: fakeParams{Name: id}}
	}
	cases := []struct {
		name string
		cfg  types.HALConfig
		want errcode.Code
	}{
		{"ok", types.HALConfig{
			Devices: []types.HALDevice{dev("a", "fake")},
			Actions: []types.ActionSpec{
				{Device: "a", Verb: "read", Trigger: types.TriggerBoot},
				{Device: "a", Verb: "read", Trigger: types.TriggerInterval, IntervalMs: 60000},
			},
		}, errcode.OK},
		{"empty id", types.HALConfig{Devices: []types.HALDevice{dev("", "fake")}}, errcode.InvalidConfig},
		{"duplicate", types.HALConfig{Devices: []types.HALDevice{dev("a", "fake"), dev("a", "fake")}}, errcode.DuplicateDevice},
		{"unknown type", types.HALConfig{Devices: []types.HALDevice{dev("a", "pcf8523")}}, errcode.UnknownType},
		{"bad params", types.HALConfig{Devices: []types.HALDevice{dev("bad", "fake")}}, errcode.InvalidParams},
		{"unknown action device", types.HALConfig{
			Devices: []types.HALDevice{dev("a", "fake")},
			Actions: []types.ActionSpec{{Device: "b", Verb: "read", Trigger: types.TriggerBoot}},
		}, errcode.UnknownDevice},
		{"no verb", types.HALConfig{
			Devices: []types.HALDevice{dev("a", "fake")},
			Actions: []types.ActionSpec{{Device: "a", Trigger: types.TriggerBoot}},
		}, errcode.InvalidConfig},
		{"bad trigger", types.HALConfig{
			Devices: []types.HALDevice{dev("a", "fake")},
			Actions: []types.ActionSpec{{Device: "a", Verb: "read", Trigger: "sometimes"}},
		}, errcode.InvalidConfig},
		{"interval without period", types.HALConfig{
			Devices: []types.HALDevice{dev("a", "fake")},
			Actions: []types.ActionSpec{{Device: "a", Verb: "read", Trigger: types.TriggerInterval}},
		}, errcode.InvalidConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := errcode.Of(ValidateConfig(tc.cfg)); got != tc.want {
				t.Fatalf("ValidateConfig = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuilderTypesSorted(t *testing.T) {
	got := BuilderTypes()
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("not sorted: %v", got)
		}
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	RegisterBuilder("fake", fakeBuilder{})
}
