// Package timesource is the host's notion of wall-clock time. Consumers call
// Now; producers such as an RTC read call Publish. The source keeps an offset
// over a base clock, so publishing never requires privileges; on Linux it can
// also step the system clock.
package timesource

import (
	"context"
	"sync"
	"time"

	"rtcsync-go/bus"
	"rtcsync-go/errcode"
	"rtcsync-go/types"
	"rtcsync-go/x/timex"
)

// Earliest time accepted by Publish. Anything older is an unset clock.
var MinValid = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func topicState() bus.Topic { return bus.T("time", "state") }
func topicGet() bus.Topic   { return bus.T("time", "get") }
func topicSet() bus.Topic   { return bus.T("time", "set") }

type Source struct {
	base timex.Clock

	mu     sync.Mutex
	offset time.Duration
	synced bool
	origin string
	last   time.Time

	conn   *bus.Connection
	setter func(time.Time) error
}

type Option func(*Source)

// WithBus publishes retained state on time/state after every change.
func WithBus(conn *bus.Connection) Option { return func(s *Source) { s.conn = conn } }

// WithSetter steps an external clock (usually the OS clock) on Publish.
func WithSetter(f func(time.Time) error) Option { return func(s *Source) { s.setter = f } }

// New returns a source over base (the process clock if nil).
func New(base timex.Clock, opts ...Option) *Source {
	if base == nil {
		base = timex.System{}
	}
	s := &Source{base: base}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Now returns the current host time.
func (s *Source) Now() time.Time {
	s.mu.Lock()
	off := s.offset
	s.mu.Unlock()
	return s.base.Now().Add(off)
}

// Publish makes t the current host time. origin names the producer, for
// example "rtc/rtc0".
func (s *Source) Publish(t time.Time, origin string) error {
	if t.Before(MinValid) {
		return &errcode.E{C: errcode.InvalidInput, Op: "publish", Msg: t.UTC().Format(time.RFC3339)}
	}
	if s.setter != nil {
		if err := s.setter(t); err != nil {
			println("[time] system clock not set:", err.Error())
		}
	}

	s.mu.Lock()
	s.offset = t.Sub(s.base.Now())
	s.synced = true
	s.origin = origin
	s.last = t
	st := s.stateLocked()
	s.mu.Unlock()

	println("[time] synced from", origin+":", t.UTC().Format(time.RFC3339))
	s.publishState(st)
	return nil
}

// State reports the current synchronisation state.
func (s *Source) State() types.TimeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Source) stateLocked() types.TimeState {
	return types.TimeState{
		Synced: s.synced,
		Origin: s.origin,
		Unix:   s.base.Now().Add(s.offset).Unix(),
		Offset: int64(s.offset),
		TS:     timex.NowNs(),
	}
}

func (s *Source) publishState(st types.TimeState) {
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(topicState(), st, true))
}

// Run answers time/get with the current state and accepts manual sets on
// time/set (RFC 3339 string payload). It blocks until ctx is done.
func (s *Source) Run(ctx context.Context) {
	if s.conn == nil {
		<-ctx.Done()
		return
	}
	getSub := s.conn.Subscribe(topicGet())
	setSub := s.conn.Subscribe(topicSet())
	defer s.conn.Unsubscribe(getSub)
	defer s.conn.Unsubscribe(setSub)

	s.publishState(s.State())
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-getSub.Channel():
			s.conn.Reply(m, s.State(), false)
		case m := <-setSub.Channel():
			s.handleSet(m)
		}
	}
}

func (s *Source) handleSet(m *bus.Message) {
	var err error
	switch v := m.Payload.(type) {
	case string:
		var t time.Time
		if t, err = time.Parse(time.RFC3339, v); err == nil {
			err = s.Publish(t, "manual")
		}
	case time.Time:
		err = s.Publish(v, "manual")
	default:
		err = errcode.InvalidPayload
	}
	if err != nil {
		code := errcode.Of(err)
		if code == errcode.Error {
			code = errcode.InvalidPayload
		}
		s.conn.Reply(m, types.ErrorReply{OK: false, Error: string(code)}, false)
		return
	}
	s.conn.Reply(m, types.OKReply{OK: true}, false)
}
