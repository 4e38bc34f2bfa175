//go:build rp2040 || rp2350

package bridge

func dialMQTT(MQTTConfig) (mqttClient, error) { return nil, errNoMQTT }
