// bridge/bridge.go
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rtcsync-go/bus"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Start starts the bridge service. It blocks until ctx is cancelled.
// It listens for JSON config on topic {"config","bridge"} and (re)configures the link.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{
		conn:       conn,
		stateTopic: bus.T("bridge", "state"),
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Default topic filters. Clock state flows out; RTC controls and manual time
// sets flow in.
var (
	DefaultForward = []string{"hal/state", "hal/cap/time/#", "time/state"}
	DefaultAccept  = []string{"hal/cap/+/+/+/control/+", "time/set", "time/get"}
)

// Config is the JSON-encoded configuration expected on "config/bridge".
type Config struct {
	Transport TransportConfig `json:"transport"`

	// Forward lists local topic filters mirrored to the peer.
	Forward []string `json:"forward,omitempty"`
	// Accept lists topic filters the peer may publish into the local bus.
	Accept []string `json:"accept,omitempty"`

	// MQTT mirrors the same topics to a broker (host builds only).
	MQTT *MQTTConfig `json:"mqtt,omitempty"`
}

type TransportConfig struct {
	// "uart", "websocket", "" (no link) or names registered via RegisterTransport.
	Type      string           `json:"type"`
	UART      *UARTConfig      `json:"uart,omitempty"`
	WebSocket *WebSocketConfig `json:"websocket,omitempty"`
}

// UARTConfig carries enough information for the injected dialler to open the
// UART: pins on an MCU, a device node on a host.
type UARTConfig struct {
	Device         string `json:"device,omitempty"` // host serial device, e.g. /dev/ttyACM0
	Baud           int    `json:"baud"`
	RxPin          int    `json:"rx_pin"`
	TxPin          int    `json:"tx_pin"`
	ReadTimeoutMS  int    `json:"read_timeout_ms,omitempty"` // per read; 0 means blocking
	WriteTimeoutMS int    `json:"write_timeout_ms,omitempty"`
}

type WebSocketConfig struct {
	URL string `json:"url"` // ws://host:port/path
}

func (c Config) forward() []string {
	if len(c.Forward) == 0 {
		return DefaultForward
	}
	return c.Forward
}

func (c Config) accept() []string {
	if len(c.Accept) == 0 {
		return DefaultAccept
	}
	return c.Accept
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic

	mu     sync.Mutex
	curRun context.CancelFunc
	curCfg atomic.Value // stores Config
}

// run waits for config and supervises a single link instance.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.T("config", "bridge"))
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	// Cancel any existing run.
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	s.curCfg.Store(cfg)
	if cfg.MQTT != nil {
		go s.runMirror(ctx, cfg)
	}
	if cfg.Transport.Type == "" {
		s.publishState("idle", "no_link", nil)
		return
	}
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision and I/O
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		if err := s.handleLink(ctx, cfg, rwc); err != nil {
			_ = rwc.Close()
			delay := backoff()
			s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		_ = rwc.Close()
		// Clean close: restart only on new config.
		return
	}
}

// handleLink owns the active link lifetime: forwarded topics go out as PUB
// frames, accepted PUB frames from the peer are published locally.
func (s *Service) handleLink(ctx context.Context, cfg Config, rwc io.ReadWriteCloser) error {
	rd := newFramedReader(rwc)
	wr := newFramedWriter(rwc)

	linkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Reader
	errCh := make(chan error, 1)
	inCh := make(chan Frame, 8)
	go func() {
		defer close(errCh)
		for {
			f, err := rd.ReadFrame()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case inCh <- f:
			case <-linkCtx.Done():
				return
			}
		}
	}()

	// Forwarded local topics and request replies funnel into one writer.
	outCh := make(chan pubFrame, 16)
	subs := s.subscribeAll(cfg.forward())
	defer func() {
		for _, sub := range subs {
			s.conn.Unsubscribe(sub)
		}
	}()
	for _, sub := range subs {
		go pump(linkCtx, sub, outCh)
	}

	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

	accept := cfg.accept()
	for {
		select {
		case <-ctx.Done():
			// Best-effort close.
			_ = wr.WriteFrame(Frame{Type: frameClose})
			return nil
		case err := <-errCh:
			return err
		case <-tick.C:
			if err := wr.WriteFrame(Frame{Type: framePing}); err != nil {
				return err
			}
		case pf := <-outCh:
			b, err := json.Marshal(pf)
			if err != nil {
				println("[bridge] drop", pf.Topic+":", err.Error())
				continue
			}
			if err := wr.WriteFrame(Frame{Type: framePub, Payload: b}); err != nil {
				return err
			}
		case f := <-inCh:
			switch f.Type {
			case framePing:
				if err := wr.WriteFrame(Frame{Type: framePong}); err != nil {
					return err
				}
			case framePong:
			case framePub:
				s.inbound(linkCtx, f.Payload, accept, outCh)
			case frameClose:
				return nil
			default:
				// Unknown; ignore.
			}
		}
	}
}

// pubFrame is the JSON body of a PUB frame.
type pubFrame struct {
	Topic    string          `json:"topic"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Retained bool            `json:"retained,omitempty"`
	ReplyTo  string          `json:"reply_to,omitempty"`
}

func toPubFrame(m *bus.Message) (pubFrame, error) {
	b, err := json.Marshal(m.Payload)
	if err != nil {
		return pubFrame{}, err
	}
	return pubFrame{Topic: m.Topic.String(), Payload: b, Retained: m.Retained}, nil
}

func pump(ctx context.Context, sub *bus.Subscription, out chan<- pubFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			pf, err := toPubFrame(m)
			if err != nil {
				println("[bridge] cannot encode", m.Topic.String()+":", err.Error())
				continue
			}
			select {
			case out <- pf:
			case <-ctx.Done():
				return
			}
		}
	}
}

// inbound publishes an accepted peer frame locally. Frames with reply_to are
// sent as requests and the reply is written back on that topic.
func (s *Service) inbound(ctx context.Context, body []byte, accept []string, out chan<- pubFrame) {
	var pf pubFrame
	if err := json.Unmarshal(body, &pf); err != nil {
		println("[bridge] bad pub frame:", err.Error())
		return
	}
	if !acceptTopic(accept, pf.Topic) {
		println("[bridge] rejected inbound", pf.Topic)
		return
	}
	var payload any
	if len(pf.Payload) > 0 {
		if err := json.Unmarshal(pf.Payload, &payload); err != nil {
			println("[bridge] bad payload on", pf.Topic+":", err.Error())
			return
		}
	}
	msg := s.conn.NewMessage(ParseTopic(pf.Topic), payload, pf.Retained)
	if pf.ReplyTo == "" {
		s.conn.Publish(msg)
		return
	}
	go func() {
		rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		rep, err := s.conn.RequestWait(rctx, msg)
		if err != nil {
			return
		}
		b, err := json.Marshal(rep.Payload)
		if err != nil {
			return
		}
		select {
		case out <- pubFrame{Topic: pf.ReplyTo, Payload: b}:
		case <-ctx.Done():
		}
	}()
}

func (s *Service) subscribeAll(filters []string) []*bus.Subscription {
	subs := make([]*bus.Subscription, 0, len(filters))
	for _, f := range filters {
		subs = append(subs, s.conn.Subscribe(ParseTopic(f)))
	}
	return subs
}

// ParseTopic splits a "/" separated filter into bus tokens.
func ParseTopic(s string) bus.Topic {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	t := make([]any, len(parts))
	for i, p := range parts {
		t[i] = p
	}
	return bus.T(t...)
}

// acceptTopic reports whether topic matches one of the MQTT-style filters.
func acceptTopic(filters []string, topic string) bool {
	tt := strings.Split(strings.Trim(topic, "/"), "/")
	for _, f := range filters {
		if matchFilter(strings.Split(strings.Trim(f, "/"), "/"), tt) {
			return true
		}
	}
	return false
}

func matchFilter(f, t []string) bool {
	for i, tok := range f {
		if tok == bus.MultiWildcard {
			return true
		}
		if i >= len(t) {
			return false
		}
		if tok != bus.Wildcard && tok != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

// Transport is a pluggable link dialler/owner.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu     sync.RWMutex
	registry  = map[string]transportFactory{}
	errNoDial = errors.New("UARTDial not implemented")
)

// RegisterTransport allows external packages to add transports (eg. "ws", "tcp").
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Type {
	case "uart":
		return newUARTTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}

// UARTDial is injected by platform code (a host serial opener or an MCU UART).
// It must open and return an io.ReadWriteCloser over the configured UART.
var UARTDial func(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error)

// uartTransport implements Transport via an injected dial function.
type uartTransport struct {
	cfg TransportConfig
}

func newUARTTransport(cfg TransportConfig) (Transport, error) {
	if cfg.UART == nil {
		return nil, errors.New("uart transport requires uart config")
	}
	return &uartTransport{cfg: cfg}, nil
}

func (u *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, errNoDial
	}
	return UARTDial(ctx, *u.cfg.UART)
}

func (u *uartTransport) String() string { return "uart" }

// -----------------------------------------------------------------------------
// Framing: type byte, 16-bit big-endian length, payload
// -----------------------------------------------------------------------------

const (
	framePing  byte = 0x01
	framePong  byte = 0x02
	framePub   byte = 0x10
	frameClose byte = 0x7f
)

// Frame is a very simple length-prefixed frame.
type Frame struct {
	Type    byte
	Payload []byte
}

type framedReader struct{ r io.Reader }
type framedWriter struct{ w io.Writer }

func newFramedReader(r io.Reader) *framedReader { return &framedReader{r: r} }
func newFramedWriter(w io.Writer) *framedWriter { return &framedWriter{w: w} }

func (fr *framedReader) ReadFrame() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	typ := hdr[0]
	n := int(hdr[1])<<8 | int(hdr[2])
	var buf []byte
	if n > 0 {
		buf = make([]byte, n)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: typ, Payload: buf}, nil
}

// WriteFrame writes header and payload in one call so message-oriented
// transports see one frame per message.
func (fw *framedWriter) WriteFrame(f Frame) error {
	if len(f.Payload) > 0xFFFF {
		return fmt.Errorf("frame too large: %d", len(f.Payload))
	}
	buf := make([]byte, 3, 3+len(f.Payload))
	buf[0], buf[1], buf[2] = f.Type, byte(len(f.Payload)>>8), byte(len(f.Payload))
	buf = append(buf, f.Payload...)
	_, err := fw.w.Write(buf)
	return err
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case Config:
		return v, nil
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, err
		}
	case map[string]any:
		// Already a decoded object (e.g. from the embedded config); re-marshal for simplicity.
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	msg := s.conn.NewMessage(s.stateTopic, payload, true)
	s.conn.Publish(msg)
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
