//go:build no_mqtt

package main

import (
	"log/slog"

	"zigbee-go-host/internal/host"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *host.Host, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
