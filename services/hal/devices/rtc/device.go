package rtcdev

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"rtcsync-go/drivers/rtc"
	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/core"
	"rtcsync-go/types"

	"tinygo.org/x/drivers"
)

const queueLen = 4

// Device is a single-goroutine HAL device for one RTC chip. Actions run to
// completion on the worker, so requests against one chip never overlap.
type Device struct {
	id     string
	chip   rtc.Chip
	params Params
	addr   core.CapAddr
	res    core.Resources

	// Owned by the worker only:
	drv *rtc.Device

	reqCh chan Action
	alive atomic.Bool
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newDevice(id string, chip rtc.Chip, p Params, res core.Resources, i2c drivers.I2C) *Device {
	d := &Device{
		id:     id,
		chip:   chip,
		params: p,
		addr:   core.CapAddr{Domain: p.Domain, Kind: types.KindRTC, Name: p.Name},
		res:    res,
		drv:    rtc.New(i2c, rtc.Config{Address: p.Addr, Chip: chip}),
		reqCh:  make(chan Action, queueLen),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	d.drv.OnCleanupError = func(err error) {
		println("[rtc]", id, "resume after failed write:", err.Error())
	}
	return d
}

// ---- core.Device interface ----

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindRTC,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        d.chip.String(),
			Detail: types.RTCInfo{
				Chip: d.chip.String(),
				Bus:  d.params.Bus,
				Addr: d.drv.Address(),
			},
		},
	}}
}

// Init starts the worker; the bus is not touched until the first action.
func (d *Device) Init(ctx context.Context) error {
	d.alive.Store(true)
	go d.worker(ctx)

	switch d.params.SyncOnBoot {
	case SyncRead:
		d.enqueue(ReadTimeOp{Target: d})
	case SyncWrite:
		d.enqueue(WriteTimeOp{Target: d})
	}
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	switch verb {
	case "write_time":
		return d.enqueue(WriteTimeOp{Target: d}), nil
	case "read_time", "read":
		return d.enqueue(ReadTimeOp{Target: d}), nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

// Close stops the worker and releases the bus claim.
func (d *Device) Close() error {
	d.once.Do(func() {
		d.alive.Store(false)
		close(d.stop)
		t := time.NewTimer(300 * time.Millisecond)
		select {
		case <-d.done:
		case <-t.C:
		}
		t.Stop()
		if d.res.Reg != nil {
			d.res.Reg.ReleaseI2C(d.id, core.ResourceID(d.params.Bus))
		}
	})
	return nil
}

func (d *Device) enqueue(a Action) core.EnqueueResult {
	if !d.alive.Load() {
		return core.EnqueueResult{OK: false, Error: errcode.Unavailable}
	}
	select {
	case d.reqCh <- a:
		return core.EnqueueResult{OK: true}
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Busy}
	}
}

func (d *Device) worker(ctx context.Context) {
	defer close(d.done)
	defer d.alive.Store(false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case a := <-d.reqCh:
			_ = a.Execute()
		}
	}
}

// ---- emission ----

func (d *Device) emit(ev core.Event) {
	if d.res.Pub == nil {
		return
	}
	if !d.res.Pub.Emit(ev) {
		println("[rtc]", d.id, "event dropped")
	}
}

func (d *Device) fail(op string, err error, ts int64) {
	println("[rtc]", d.id, op, "failed:", err.Error())
	d.emit(core.Event{Addr: d.addr, Err: string(codeOf(err)), TS: ts})
}
