package core

import (
	"rtcsync-go/errcode"
	"rtcsync-go/types"
)

// ValidateConfig checks a whole configuration before anything is built:
// unique device IDs, known device types, params accepted by the builder and
// every action bound to a device declared in the same config.
func ValidateConfig(cfg types.HALConfig) error {
	seen := make(map[string]bool, len(cfg.Devices))
	for _, d := range cfg.Devices {
		if d.ID == "" {
			return &errcode.E{C: errcode.InvalidConfig, Op: "validate", Msg: "device without id"}
		}
		if seen[d.ID] {
			return &errcode.E{C: errcode.DuplicateDevice, Op: "validate", Msg: d.ID}
		}
		seen[d.ID] = true

		b, ok := lookupBuilder(d.Type)
		if !ok {
			return &errcode.E{C: errcode.UnknownType, Op: "validate", Msg: d.ID + ": " + d.Type}
		}
		if v, ok := b.(ParamValidator); ok {
			if err := v.ValidateParams(d.Params); err != nil {
				c := errcode.Of(err)
				if c == errcode.Error {
					c = errcode.InvalidParams
				}
				return &errcode.E{C: c, Op: "validate", Msg: d.ID, Err: err}
			}
		}
	}

	for _, a := range cfg.Actions {
		if !seen[a.Device] {
			return &errcode.E{C: errcode.UnknownDevice, Op: "validate", Msg: "action " + a.Verb + " -> " + a.Device}
		}
		if a.Verb == "" {
			return &errcode.E{C: errcode.InvalidConfig, Op: "validate", Msg: "action without verb on " + a.Device}
		}
		switch a.Trigger {
		case types.TriggerBoot:
		case types.TriggerInterval:
			if a.IntervalMs == 0 {
				return &errcode.E{C: errcode.InvalidConfig, Op: "validate", Msg: "interval action without interval_ms on " + a.Device}
			}
		default:
			return &errcode.E{C: errcode.InvalidConfig, Op: "validate", Msg: "unknown trigger " + a.Trigger}
		}
	}
	return nil
}
