// Package rtcdev exposes battery-backed RTC chips as HAL devices. Each device
// publishes one capability, time/rtc/<name>, and accepts write_time and
// read_time controls that synchronise the chip with the host time source.
package rtcdev

import (
	"context"

	"rtcsync-go/drivers/rtc"
	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/core"
	"rtcsync-go/services/hal/internal/util"
)

// Boot sync modes.
const (
	SyncNone  = ""
	SyncRead  = "read"
	SyncWrite = "write"
)

// Params defines wiring and behaviour for one RTC instance.
type Params struct {
	Bus    string `json:"bus"`            // e.g. "i2c0" (required)
	Addr   uint16 `json:"addr,omitempty"` // 0 => chip default
	Name   string `json:"name,omitempty"` // capability name; default device ID
	Domain string `json:"domain,omitempty"`

	// SyncOnBoot runs one action after Init: "read" pulls the chip time into
	// the host, "write" pushes host time into the chip.
	SyncOnBoot string `json:"sync_on_boot,omitempty"`
	// AcceptUnreliable publishes into the host clock even when the chip
	// reports an oscillator failure.
	AcceptUnreliable bool `json:"accept_unreliable,omitempty"`
}

func init() {
	core.RegisterBuilder(rtc.ChipISL1208.String(), builder{chip: rtc.ChipISL1208})
	core.RegisterBuilder(rtc.ChipDS1307.String(), builder{chip: rtc.ChipDS1307})
}

type builder struct{ chip rtc.Chip }

// Ensure eager validation is available to core.ValidateConfig.
var _ core.ParamValidator = builder{}

func (b builder) ValidateParams(params any) error {
	_, err := decodeParams(params)
	return err
}

func (b builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := decodeParams(in.Params)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = in.ID
	}
	if in.Res.Reg == nil {
		return nil, errcode.Unavailable
	}
	i2c, err := in.Res.Reg.ClaimI2C(in.ID, core.ResourceID(p.Bus))
	if err != nil {
		return nil, err
	}
	return newDevice(in.ID, b.chip, p, in.Res, i2c), nil
}

func decodeParams(params any) (Params, error) {
	var p Params
	if params == nil {
		return p, errcode.InvalidParams
	}
	if err := util.DecodeJSON(params, &p); err != nil {
		return p, &errcode.E{C: errcode.InvalidParams, Op: "params", Err: err}
	}
	switch {
	case p.Bus == "":
		return p, &errcode.E{C: errcode.InvalidParams, Op: "params", Msg: "bus required"}
	case p.Addr > 0x7F:
		return p, &errcode.E{C: errcode.InvalidParams, Op: "params", Msg: "addr must be a 7-bit address"}
	}
	switch p.SyncOnBoot {
	case SyncNone, SyncRead, SyncWrite:
	default:
		return p, &errcode.E{C: errcode.InvalidParams, Op: "params", Msg: "sync_on_boot must be read or write"}
	}
	if p.Domain == "" {
		p.Domain = "time"
	}
	return p, nil
}
