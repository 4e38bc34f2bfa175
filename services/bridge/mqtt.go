package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MQTTConfig mirrors forwarded topics to a broker under Prefix and accepts
// controls published below it.
type MQTTConfig struct {
	Broker           string `json:"broker"` // tcp://host:1883
	ClientID         string `json:"client_id"`
	Prefix           string `json:"prefix"` // e.g. "devices/pico-1"
	ConnectTimeoutMS int    `json:"connect_timeout_ms,omitempty"`
}

func (c MQTTConfig) timeout() time.Duration {
	if c.ConnectTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// mqttClient is the part of a broker client the mirror needs.
type mqttClient interface {
	Publish(topic string, retained bool, payload []byte) error
	Subscribe(filter string, fn func(topic string, payload []byte)) error
	Close()
}

var errNoMQTT = errors.New("mqtt not available on this platform")

// DialMQTT opens a broker client; replaced in tests.
var DialMQTT = dialMQTT

func (s *Service) runMirror(ctx context.Context, cfg Config) {
	m := *cfg.MQTT
	if m.Broker == "" {
		s.publishState("error", "mqtt_config_invalid", errors.New("mqtt.broker required"))
		return
	}
	backoff := backoffSeq(500*time.Millisecond, 30*time.Second)
	var cl mqttClient
	for {
		var err error
		if cl, err = DialMQTT(m); err == nil {
			break
		}
		println("[bridge] mqtt dial failed:", err.Error())
		if errors.Is(err, errNoMQTT) || !sleep(ctx, backoff()) {
			return
		}
	}
	defer cl.Close()
	println("[bridge] mqtt connected to", m.Broker)

	prefix := strings.Trim(m.Prefix, "/")
	for _, f := range cfg.accept() {
		err := cl.Subscribe(joinTopic(prefix, f), func(topic string, payload []byte) {
			s.fromBroker(prefix, cfg.accept(), topic, payload)
		})
		if err != nil {
			println("[bridge] mqtt subscribe", f, "failed:", err.Error())
		}
	}

	subs := s.subscribeAll(cfg.forward())
	defer func() {
		for _, sub := range subs {
			s.conn.Unsubscribe(sub)
		}
	}()
	out := make(chan pubFrame, 16)
	for _, sub := range subs {
		go pump(ctx, sub, out)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case pf := <-out:
			if err := cl.Publish(joinTopic(prefix, pf.Topic), pf.Retained, pf.Payload); err != nil {
				println("[bridge] mqtt publish", pf.Topic, "failed:", err.Error())
			}
		}
	}
}

// fromBroker publishes an accepted broker message on the local bus.
func (s *Service) fromBroker(prefix string, accept []string, topic string, body []byte) {
	local := strings.TrimPrefix(strings.Trim(topic, "/"), prefix)
	local = strings.Trim(local, "/")
	if !acceptTopic(accept, local) {
		return
	}
	var payload any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			println("[bridge] mqtt bad payload on", topic+":", err.Error())
			return
		}
	}
	s.conn.Publish(s.conn.NewMessage(ParseTopic(local), payload, false))
}

func joinTopic(prefix, topic string) string {
	topic = strings.Trim(topic, "/")
	if prefix == "" {
		return topic
	}
	return prefix + "/" + topic
}
