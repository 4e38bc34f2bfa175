package heartbeat

import (
	"context"
	"time"

	"rtcsync-go/bus"
	"rtcsync-go/types"
	"rtcsync-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicTimeState       = bus.T("time", "state")
	topicBeat            = bus.T("heartbeat")
)

const defaultInterval = time.Second

// Beat is published (not retained) on "heartbeat" every interval.
type Beat struct {
	Unix   int64  `json:"unix"` // host clock, seconds
	Uptime int64  `json:"uptime_s"`
	Synced bool   `json:"synced"`
	Origin string `json:"origin,omitempty"`
}

// Service logs and publishes a periodic beat carrying the time-source state.
type Service struct {
	// Clock is the host clock reported in each beat; nil uses the system clock.
	Clock timex.Clock
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)
	stateSub := conn.Subscribe(topicTimeState)
	defer conn.Unsubscribe(stateSub)

	clock := s.Clock
	if clock == nil {
		clock = timex.System{}
	}
	start := time.Now()
	var state types.TimeState

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case <-tick.C:
			now := clock.Now().UTC()
			b := Beat{
				Unix:   now.Unix(),
				Uptime: int64(time.Since(start) / time.Second),
				Synced: state.Synced,
				Origin: state.Origin,
			}
			if b.Synced {
				println("[heartbeat]", now.Format(time.RFC3339), "synced from", b.Origin)
			} else {
				println("[heartbeat]", now.Format(time.RFC3339), "unsynced")
			}
			conn.Publish(conn.NewMessage(topicBeat, b, false))
		case msg := <-stateSub.Channel():
			if ts, ok := msg.Payload.(types.TimeState); ok {
				state = ts
			}
		case msg := <-cfgSub.Channel():
			if d, ok := interval(msg.Payload); ok {
				tick.Reset(d)
				println("[heartbeat] interval set to", d.String())
			}
		}
	}
}

// interval reads {"interval": seconds} from a config payload.
func interval(p any) (time.Duration, bool) {
	m, ok := p.(map[string]any)
	if !ok {
		return 0, false
	}
	secs, ok := m["interval"].(float64)
	if !ok || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
