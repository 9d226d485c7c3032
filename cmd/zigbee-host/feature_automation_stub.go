//go:build no_automation

package main

import (
	"log/slog"

	"zigbee-go-host/internal/host"
	"zigbee-go-host/internal/web"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ *host.Host, _ *Config, _ *slog.Logger) (*autoStopper, []web.ServerOption) {
	return &autoStopper{}, nil
}
