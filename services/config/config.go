package config

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"rtcsync-go/bus"
	"rtcsync-go/errcode"
)

// -----------------------------------------------------------------------------
// String constants
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey struct{}

// CtxDeviceKey is the context key carrying the device (config) name.
var CtxDeviceKey = ctxKey{}

// WithDevice returns ctx carrying the device name used to pick a config.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, CtxDeviceKey, device)
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Devices lists the embedded config names, sorted.
func Devices() []string {
	out := make([]string, 0, len(embeddedConfigs))
	for k := range embeddedConfigs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// Parse splits a JSON config object into its top-level sections.
func Parse(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "parse", Err: err}
	}
	if m == nil {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "parse", Msg: "config is not a JSON object"}
	}
	return m, nil
}

// Publish publishes each section of raw as a retained message on config/<key>.
func Publish(conn *bus.Connection, raw []byte) error {
	m, err := Parse(raw)
	if err != nil {
		return err
	}
	for k, v := range m {
		conn.Publish(&bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  v,
			Retained: true,
		})
	}
	return nil
}

// publishConfig reads the device config from embedded data and publishes it as retained messages.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}
	return Publish(conn, raw)
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("[config]", err.Error())
		}
	}()
}
