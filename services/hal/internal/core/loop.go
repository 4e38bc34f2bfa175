package core

import (
	"context"
	"time"

	"rtcsync-go/bus"
	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/util"
	"rtcsync-go/types"
	"rtcsync-go/x/timex"
)

const (
	eventQueueLen = 16
	pollQueueLen  = 8
)

// HAL owns devices and their capabilities. Config, controls, poll fires and
// device events are all handled on the Run goroutine.
type HAL struct {
	conn *bus.Connection
	res  Resources

	dev      map[string]Device    // devID -> device
	devCaps  map[string][]CapAddr // devID -> registered capabilities
	capIndex map[CapAddr]string   // capability -> devID

	cfgSub  *bus.Subscription
	ctrlSub *bus.Subscription

	pollCh chan PollReq
	poller *Poller

	// Single-threaded publication of device events
	evCh chan Event

	ready bool
}

func NewHAL(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		dev:      map[string]Device{},
		devCaps:  map[string][]CapAddr{},
		capIndex: map[CapAddr]string{},
		pollCh:   make(chan PollReq, pollQueueLen),
		evCh:     make(chan Event, eventQueueLen),
	}
	h.poller = NewPoller(h.pollCh)
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

func (h *HAL) Run(ctx context.Context) {
	h.cfgSub = h.conn.Subscribe(topicConfigHAL())
	h.ctrlSub = h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(h.cfgSub)
	defer h.conn.Unsubscribe(h.ctrlSub)

	go h.poller.Run(ctx)
	h.pubHALState("idle", "awaiting_config")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.pubHALState("stopped", "context_cancelled")
			return

		case msg := <-h.cfgSub.Channel():
			cfg, err := decodeConfig(msg.Payload)
			if err == nil {
				err = ValidateConfig(cfg)
			}
			if err != nil {
				println("[hal] config rejected:", err.Error())
				h.pubHALState(h.level(), string(errcode.Of(err)))
				continue
			}
			h.applyConfig(ctx, cfg)
			h.ready = true
			h.pubHALState("ready", "")

		case m := <-h.ctrlSub.Channel():
			if !h.ready {
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m)

		case pr := <-h.pollCh:
			if res, err := h.invoke(pr.Addr, pr.Verb, nil); err != nil || !res.OK {
				println("[hal] poll", pr.Addr.Name, pr.Verb, "not accepted")
			}

		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		}
	}
}

func decodeConfig(p any) (types.HALConfig, error) {
	var cfg types.HALConfig
	if err := util.DecodeJSON(p, &cfg); err != nil {
		return cfg, &errcode.E{C: errcode.InvalidConfig, Op: "decode", Err: err}
	}
	return cfg, nil
}

func (h *HAL) level() string {
	if h.ready {
		return "ready"
	}
	return "idle"
}

// applyConfig is additive: devices already running are left untouched.
func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			println("[hal] no builder for type:", dc.Type, "id:", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			println("[hal] build failed for:", dc.ID, "err:", err.Error())
			continue
		}

		// Register capabilities before Init so events emitted during Init
		// land on known topics.
		h.dev[dev.ID()] = dev
		for _, cs := range dev.Capabilities() {
			a := CapAddr{Domain: cs.Domain, Kind: cs.Kind, Name: cs.Name}
			if a.Name == "" {
				a.Name = dev.ID()
			}
			h.capIndex[a] = dev.ID()
			h.devCaps[dev.ID()] = append(h.devCaps[dev.ID()], a)

			h.conn.Publish(h.conn.NewMessage(capInfo(a), cs.Info, true))
			h.conn.Publish(h.conn.NewMessage(
				capStatus(a),
				types.CapabilityStatus{Link: types.LinkDown, TS: timex.NowNs()},
				true,
			))
		}

		if err := dev.Init(ctx); err != nil {
			println("[hal] init failed for:", dc.ID, "err:", err.Error())
			h.dropDevice(dev.ID(), string(errcode.Of(err)))
			continue
		}
	}

	for _, a := range cfg.Actions {
		h.applyAction(a)
	}
}

func (h *HAL) applyAction(a types.ActionSpec) {
	caps := h.devCaps[a.Device]
	if len(caps) == 0 {
		println("[hal] action", a.Verb, "skipped: device", a.Device, "not running")
		return
	}
	addr := caps[0]
	switch a.Trigger {
	case types.TriggerBoot:
		if res, err := h.invoke(addr, a.Verb, nil); err != nil || !res.OK {
			println("[hal] boot action", a.Verb, "on", a.Device, "not accepted")
		}
	case types.TriggerInterval:
		h.poller.Upsert(addr, a.Verb,
			time.Duration(a.IntervalMs)*time.Millisecond,
			time.Duration(a.JitterMs)*time.Millisecond)
	}
}

func (h *HAL) dropDevice(id, code string) {
	if d := h.dev[id]; d != nil {
		_ = d.Close()
	}
	delete(h.dev, id)
	for _, a := range h.devCaps[id] {
		delete(h.capIndex, a)
		h.poller.StopAll(a)
		h.conn.Publish(h.conn.NewMessage(
			capStatus(a),
			types.CapabilityStatus{Link: types.LinkDown, TS: timex.NowNs(), Error: code},
			true,
		))
	}
	delete(h.devCaps, id)
}

func (h *HAL) closeAll() {
	for id := range h.dev {
		h.dropDevice(id, "")
	}
}

func (h *HAL) invoke(a CapAddr, verb string, payload any) (EnqueueResult, error) {
	ownerID, ok := h.capIndex[a]
	if !ok {
		return EnqueueResult{}, errcode.UnknownCapability
	}
	dev := h.dev[ownerID]
	if dev == nil {
		return EnqueueResult{}, errcode.UnknownDevice
	}
	return dev.Control(a, verb, payload)
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() < 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, _ := msg.Topic.At(2).(string)
	kind, _ := msg.Topic.At(3).(string)
	name, _ := msg.Topic.At(4).(string)
	verb, _ := msg.Topic.At(6).(string)
	addr := CapAddr{Domain: domain, Kind: types.Kind(kind), Name: name}

	if _, ok := h.capIndex[addr]; !ok {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}

	switch verb {
	case "poll_start":
		var ps types.PollStart
		if err := util.DecodeJSON(msg.Payload, &ps); err != nil || ps.IntervalMs == 0 {
			h.replyErr(msg, errcode.InvalidPayload)
			return
		}
		if ps.Verb == "" {
			ps.Verb = "read"
		}
		h.poller.Upsert(addr, ps.Verb,
			time.Duration(ps.IntervalMs)*time.Millisecond,
			time.Duration(ps.JitterMs)*time.Millisecond)
		h.replyOK(msg)
		return
	case "poll_stop":
		var ps types.PollStop
		if msg.Payload != nil {
			if err := util.DecodeJSON(msg.Payload, &ps); err != nil {
				h.replyErr(msg, errcode.InvalidPayload)
				return
			}
		}
		if ps.Verb == "" {
			ps.Verb = "read"
		}
		h.poller.Stop(addr, ps.Verb)
		h.replyOK(msg)
		return
	}

	res, err := h.invoke(addr, verb, msg.Payload)
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	if res.OK {
		h.replyOK(msg)
		return
	}
	code := res.Error
	if code == "" {
		code = errcode.Busy
	}
	h.replyErr(msg, code)
}

func (h *HAL) handleEvent(ev Event) {
	a := ev.Addr
	if _, ok := h.capIndex[a]; !ok {
		return // device dropped meanwhile
	}
	ts := ev.TS
	if ts == 0 {
		ts = timex.NowNs()
	}

	// 1) Error → retained status:degraded; no value/event published.
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			capStatus(a),
			types.CapabilityStatus{Link: types.LinkDegraded, TS: ts, Error: ev.Err},
			true,
		))
		return
	}

	// 2) Success: event vs value
	if ev.IsEvent {
		if ev.EventTag != "" {
			h.conn.Publish(h.conn.NewMessage(capEventTagged(a, ev.EventTag), ev.Payload, false))
		} else {
			h.conn.Publish(h.conn.NewMessage(capEvent(a), ev.Payload, false))
		}
	} else {
		h.conn.Publish(h.conn.NewMessage(capValue(a), ev.Payload, true))
	}
	// Retained status: up
	h.conn.Publish(h.conn.NewMessage(
		capStatus(a),
		types.CapabilityStatus{Link: types.LinkUp, TS: ts},
		true,
	))
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		topicHALState(),
		types.HALState{Level: level, Status: status, TS: timex.NowNs()},
		true,
	))
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}
