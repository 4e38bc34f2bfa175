//go:build !(rp2040 || rp2350)

package bridge

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"rtcsync-go/errcode"
)

type pahoClient struct {
	c       mqtt.Client
	timeout time.Duration
}

func dialMQTT(cfg MQTTConfig) (mqttClient, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.timeout())
	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(cfg.timeout()) {
		return nil, errcode.Timeout
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return &pahoClient{c: c, timeout: cfg.timeout()}, nil
}

func (p *pahoClient) Publish(topic string, retained bool, payload []byte) error {
	tok := p.c.Publish(topic, 0, retained, payload)
	if !tok.WaitTimeout(p.timeout) {
		return errcode.Timeout
	}
	return tok.Error()
}

func (p *pahoClient) Subscribe(filter string, fn func(topic string, payload []byte)) error {
	tok := p.c.Subscribe(filter, 0, func(_ mqtt.Client, m mqtt.Message) {
		fn(m.Topic(), m.Payload())
	})
	if !tok.WaitTimeout(p.timeout) {
		return errcode.Timeout
	}
	return tok.Error()
}

func (p *pahoClient) Close() { p.c.Disconnect(250) }
