package hal_test

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"rtcsync-go/bus"
	"rtcsync-go/drivers/rtc"
	"rtcsync-go/drivers/rtc/rtcsim"
	"rtcsync-go/errcode"
	"rtcsync-go/services/hal"
	"rtcsync-go/services/timesource"
	"rtcsync-go/types"
	"rtcsync-go/x/timex"

	"tinygo.org/x/drivers"
)

var (
	hostTime = time.Date(2024, 3, 15, 9, 5, 0, 0, time.UTC)
	chipTime = time.Date(2023, 11, 2, 22, 41, 7, 0, time.UTC)
)

type rig struct {
	bus    *bus.Bus
	client *bus.Connection
	sim    *rtcsim.Bus
	chip   *rtcsim.Chip
	time   *timesource.Source
}

func startRig(c *qt.C) *rig {
	l := rtc.LayoutFor(rtc.ChipISL1208)
	r := &rig{
		bus:  bus.NewBus(16),
		sim:  rtcsim.NewBus(),
		chip: rtcsim.MustChip(l, rtc.FromTime(chipTime)),
	}
	r.sim.Attach(l.Address, r.chip)
	r.time = timesource.New(timex.NewManual(hostTime), timesource.WithBus(r.bus.NewConnection("time")))
	r.client = r.bus.NewConnection("test")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- hal.Run(ctx, r.bus.NewConnection("hal"), hal.Options{
			Buses:   map[string]drivers.I2C{"i2c0": r.sim},
			Timeout: 100 * time.Millisecond,
			Time:    r.time,
		})
	}()
	c.Cleanup(func() {
		cancel()
		c.Check(<-done, qt.IsNil)
	})
	return r
}

func (r *rig) configure(cfg types.HALConfig) {
	r.client.Publish(r.client.NewMessage(bus.T("config", "hal"), cfg, true))
}

func (r *rig) await(c *qt.C, topic bus.Topic, pred func(*bus.Message) bool) *bus.Message {
	c.Helper()
	sub := r.client.Subscribe(topic)
	defer r.client.Unsubscribe(sub)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if pred(m) {
				return m
			}
		case <-deadline:
			c.Fatalf("timed out waiting on %s", topic)
			return nil
		}
	}
}

func (r *rig) control(c *qt.C, verb string) any {
	c.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rep, err := r.client.RequestWait(ctx, r.client.NewMessage(
		hal.ControlTopic("time", types.KindRTC, "board", verb), nil, false))
	c.Assert(err, qt.IsNil)
	return rep.Payload
}

func boardConfig(actions ...types.ActionSpec) types.HALConfig {
	return types.HALConfig{
		Devices: []types.HALDevice{{
			ID:     "rtc0",
			Type:   "isl1208",
			Params: map[string]any{"bus": "i2c0", "name": "board"},
		}},
		Actions: actions,
	}
}

func anyMsg(*bus.Message) bool { return true }

func TestBootReadSyncsHostClock(t *testing.T) {
	c := qt.New(t)
	r := startRig(c)
	r.configure(boardConfig(types.ActionSpec{Device: "rtc0", Verb: "read_time", Trigger: types.TriggerBoot}))

	m := r.await(c, hal.ValueTopic("time", types.KindRTC, "board"), anyMsg)
	v := m.Payload.(types.RTCValue)
	c.Assert(v.Unix, qt.Equals, chipTime.Unix())
	c.Assert(v.Reliable, qt.IsTrue)

	st := r.await(c, bus.T("time", "state"), func(m *bus.Message) bool {
		return m.Payload.(types.TimeState).Synced
	})
	c.Assert(st.Payload.(types.TimeState).Origin, qt.Equals, "rtc/rtc0")
	c.Assert(r.time.Now().Equal(chipTime), qt.IsTrue)
}

func TestWriteTimeControl(t *testing.T) {
	c := qt.New(t)
	r := startRig(c)
	r.configure(boardConfig())
	r.await(c, bus.T("hal", "state"), func(m *bus.Message) bool {
		return m.Payload.(types.HALState).Level == "ready"
	})

	c.Assert(r.control(c, "write_time"), qt.Equals, types.OKReply{OK: true})
	r.await(c, hal.StatusTopic("time", types.KindRTC, "board"), func(m *bus.Message) bool {
		return m.Payload.(types.CapabilityStatus).Link == types.LinkUp
	})
	got, _, err := r.chip.Now()
	c.Assert(err, qt.IsNil)
	c.Assert(got.Time(nil), qt.Equals, hostTime)
}

func TestBusFailureDegradesAndLeavesHostClock(t *testing.T) {
	c := qt.New(t)
	r := startRig(c)
	r.configure(boardConfig())
	r.await(c, bus.T("hal", "state"), func(m *bus.Message) bool {
		return m.Payload.(types.HALState).Level == "ready"
	})
	r.sim.SetFault(rtcsim.FailAll(rtcsim.ErrNACK))

	c.Assert(r.control(c, "read_time"), qt.Equals, types.OKReply{OK: true})
	m := r.await(c, hal.StatusTopic("time", types.KindRTC, "board"), func(m *bus.Message) bool {
		return m.Payload.(types.CapabilityStatus).Link == types.LinkDegraded
	})
	c.Assert(m.Payload.(types.CapabilityStatus).Error, qt.Equals, string(errcode.BusFailure))
	c.Assert(r.time.State().Synced, qt.IsFalse)
	c.Assert(r.time.Now(), qt.Equals, hostTime)
}

func TestActionOnUnknownDeviceRejectsConfig(t *testing.T) {
	c := qt.New(t)
	r := startRig(c)
	r.configure(boardConfig(types.ActionSpec{Device: "rtc9", Verb: "read_time", Trigger: types.TriggerBoot}))

	r.await(c, bus.T("hal", "state"), func(m *bus.Message) bool {
		return m.Payload.(types.HALState).Status == string(errcode.UnknownDevice)
	})
	c.Assert(r.sim.Count(), qt.Equals, 0)
	c.Assert(r.control(c, "read_time"), qt.Equals,
		types.ErrorReply{OK: false, Error: string(errcode.HALNotReady)})
}

func TestRunRejectsUnknownPlan(t *testing.T) {
	c := qt.New(t)
	b := bus.NewBus(4)
	err := hal.Run(context.Background(), b.NewConnection("hal"), hal.Options{Plan: "toaster"})
	c.Assert(errcode.Of(err), qt.Equals, errcode.InvalidConfig)
}

func TestRegisteredTypes(t *testing.T) {
	qt.New(t).Assert(hal.DeviceTypes(), qt.DeepEquals, []string{"ds1307", "isl1208"})
}
