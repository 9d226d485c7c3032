package main

import (
	"strings"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte("transport:\n  port: /dev/ttyUSB0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport.Baud != 115200 {
		t.Errorf("baud = %d", cfg.Transport.Baud)
	}
	if cfg.Transaction.Timeout != 8*time.Second || cfg.Transaction.SweepInterval != time.Second {
		t.Errorf("transaction = %+v", cfg.Transaction)
	}
	if cfg.Host.ProfileID != 0x0104 || cfg.Host.LocalEndpoint != 1 {
		t.Errorf("host = %+v", cfg.Host)
	}
	if cfg.Web.Listen != "127.0.0.1:8080" || cfg.MQTT.TopicPrefix != "zigbee" {
		t.Errorf("web listen %q, mqtt prefix %q", cfg.Web.Listen, cfg.MQTT.TopicPrefix)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestParseConfigEndpoints(t *testing.T) {
	data := `
transport:
  port: /dev/ttyACM0
transaction:
  timeout: 3s
endpoints:
  - ieee: "00:12:4B:00:01:02:03:04"
    network: 0x1234
    endpoint: 1
    profile: 0x0104
    input_clusters: [0x0000, 0x0006]
`
	cfg, err := parseConfig([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transaction.Timeout != 3*time.Second {
		t.Errorf("timeout = %s", cfg.Transaction.Timeout)
	}
	if len(cfg.Endpoints) != 1 {
		t.Fatalf("endpoints = %d", len(cfg.Endpoints))
	}
	ep := cfg.Endpoints[0]
	if ep.Network != 0x1234 || ep.EndpointID != 1 || len(ep.InputClusterIDs) != 2 {
		t.Errorf("endpoint = %+v", ep)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := "transport:\n  port: /dev/ttyUSB0\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no port", "log:\n  level: debug\n", "transport.port"},
		{"bad format", base + "log:\n  format: xml\n", "log.format"},
		{"mqtt without broker", base + "mqtt:\n  enabled: true\n", "mqtt.broker"},
		{"local endpoint", base + "host:\n  local_endpoint: 241\n", "local_endpoint"},
		{"endpoint zero", base + "endpoints:\n  - network: 1\n    endpoint: 0\n", "endpoint must be"},
		{"broadcast", base + "endpoints:\n  - network: 0xFFFD\n    endpoint: 1\n", "broadcast"},
		{"bad ieee", base + "endpoints:\n  - ieee: zz\n    network: 1\n    endpoint: 1\n", "ieee"},
		{"duplicate", base + "endpoints:\n  - network: 1\n    endpoint: 1\n  - network: 1\n    endpoint: 1\n", "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseConfig([]byte(tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			err = cfg.validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("validate = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
