package rtcdev

import (
	"errors"
	"time"

	"rtcsync-go/drivers/rtc"
	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/core"
	"rtcsync-go/types"
)

// Action is one synchronisation step against a device. The set is closed:
// WriteTimeOp and ReadTimeOp.
type Action interface {
	Execute() error
	action()
}

// WriteTimeOp pushes the host's current time into the chip.
type WriteTimeOp struct{ Target *Device }

// ReadTimeOp pulls the chip's time and publishes it to the host time source.
type ReadTimeOp struct{ Target *Device }

func (WriteTimeOp) action() {}
func (ReadTimeOp) action()  {}

// Execute writes once. Failures are logged and reported as degraded status;
// nothing is retried.
func (op WriteTimeOp) Execute() error {
	d := op.Target
	ts := time.Now().UnixNano()
	if d.res.Time == nil {
		d.fail("write", errcode.ClockUnset, ts)
		return errcode.ClockUnset
	}
	now := d.res.Time.Now().UTC()
	if err := d.drv.WriteTime(rtc.FromTime(now)); err != nil {
		d.fail("write", err, ts)
		return err
	}
	d.emit(core.Event{
		Addr:     d.addr,
		Payload:  types.RTCWritten{Unix: now.Unix()},
		TS:       ts,
		IsEvent:  true,
		EventTag: "written",
	})
	return nil
}

// Execute reads once. The host clock is only touched after a full decode, and
// only when the chip vouches for its time (or the device accepts unreliable
// time).
func (op ReadTimeOp) Execute() error {
	d := op.Target
	ts := time.Now().UnixNano()
	ct, flags, err := d.drv.ReadTime()
	if err != nil {
		d.fail("read", err, ts)
		return err
	}
	t := ct.Time(time.UTC)
	reliable := !flags.OscillatorFailed
	d.emit(core.Event{
		Addr: d.addr,
		Payload: types.RTCValue{
			Unix:             t.Unix(),
			ISO:              t.Format(time.RFC3339),
			Weekday:          ct.Weekday,
			OscillatorFailed: flags.OscillatorFailed,
			BatteryLow:       flags.BatteryLow,
			Reliable:         reliable,
		},
		TS: ts,
	})
	if !reliable {
		println("[rtc]", d.id, "oscillator failed; stored time is unreliable")
		d.emit(core.Event{Addr: d.addr, Err: string(errcode.OscillatorFailed), TS: ts})
		if !d.params.AcceptUnreliable {
			return nil
		}
	}
	if d.res.Time == nil {
		return nil
	}
	if err := d.res.Time.Publish(t, "rtc/"+d.id); err != nil {
		println("[rtc]", d.id, "time source rejected", t.Format(time.RFC3339)+":", err.Error())
		return err
	}
	return nil
}

// codeOf maps driver errors to bus-facing codes.
func codeOf(err error) errcode.Code {
	switch {
	case err == nil:
		return errcode.OK
	case errors.Is(err, rtc.ErrInvalidInput):
		return errcode.InvalidInput
	case errors.Is(err, rtc.ErrDecodeFailure):
		return errcode.DecodeFailure
	case errors.Is(err, rtc.ErrBusFailure):
		return errcode.BusFailure
	}
	return errcode.MapDriverErr(err)
}
