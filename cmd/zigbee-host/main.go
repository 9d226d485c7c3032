package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/host"
	"zigbee-go-host/internal/store"
	"zigbee-go-host/internal/transaction"
	"zigbee-go-host/internal/transport"
	"zigbee-go-host/internal/web"
	"zigbee-go-host/internal/zcl"
	"zigbee-go-host/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// StaticEndpoint is an endpoint registered at startup without discovery.
type StaticEndpoint struct {
	IEEE                string `yaml:"ieee"`
	Network             uint16 `yaml:"network"`
	endpoint.Descriptor `yaml:",inline"`
}

type Config struct {
	Transport   transport.SerialConfig `yaml:"transport"`
	Transaction transaction.Config     `yaml:"transaction"`
	Host        struct {
		ProfileID     uint16        `yaml:"profile_id"`
		LocalEndpoint uint8         `yaml:"local_endpoint"`
		SendTimeout   time.Duration `yaml:"send_timeout"`
	} `yaml:"host"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		ClientID    string `yaml:"client_id"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ScriptsDir string           `yaml:"scripts_dir"`
	Endpoints  []StaticEndpoint `yaml:"endpoints"`
}

func (c *Config) validate() error {
	if c.Transport.Port == "" {
		return errors.New("transport.port is required")
	}
	if c.Transport.Baud <= 0 {
		return fmt.Errorf("transport.baud must be positive, got %d", c.Transport.Baud)
	}
	if c.Transaction.Timeout <= 0 {
		return fmt.Errorf("transaction.timeout must be positive, got %s", c.Transaction.Timeout)
	}
	if c.Transaction.SweepInterval <= 0 {
		return fmt.Errorf("transaction.sweep_interval must be positive, got %s", c.Transaction.SweepInterval)
	}
	if c.Host.LocalEndpoint == 0 || c.Host.LocalEndpoint > 240 {
		return fmt.Errorf("host.local_endpoint must be 1-240, got %d", c.Host.LocalEndpoint)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required when mqtt is enabled")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	seen := make(map[endpoint.Key]bool)
	for i, se := range c.Endpoints {
		if se.EndpointID == 0 || se.EndpointID > 240 {
			return fmt.Errorf("endpoints[%d]: endpoint must be 1-240, got %d", i, se.EndpointID)
		}
		if se.Network >= 0xFFF8 {
			return fmt.Errorf("endpoints[%d]: network 0x%04X is a broadcast address", i, se.Network)
		}
		if se.IEEE != "" {
			if _, err := codec.ParseIEEE(se.IEEE); err != nil {
				return fmt.Errorf("endpoints[%d]: %w", i, err)
			}
		}
		key := endpoint.Key{Network: se.Network, Endpoint: se.EndpointID}
		if seen[key] {
			return fmt.Errorf("endpoints[%d]: duplicate endpoint %s", i, key)
		}
		seen[key] = true
	}
	return nil
}

func (c *Config) hostConfig() host.Config {
	return host.Config{
		Transaction:   c.Transaction,
		ProfileID:     c.Host.ProfileID,
		LocalEndpoint: c.Host.LocalEndpoint,
		SendTimeout:   c.Host.SendTimeout,
	}
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("zigbee-go-host starting", "version", version)

	registry := zcl.NewRegistry(logger)
	clusters.RegisterAll(registry)
	logger.Info("ZCL registry initialized", "clusters", len(registry.All()))

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	link, err := transport.OpenSerial(cfg.Transport, logger)
	if err != nil {
		logger.Error("open transport", "err", err)
		os.Exit(1)
	}

	events := host.NewEventBus(logger)
	h := host.New(link, registry, db, events, cfg.hostConfig(), logger)
	if err := h.Start(context.Background()); err != nil {
		logger.Error("start host", "err", err)
		link.Close()
		os.Exit(1)
	}
	registerStaticEndpoints(h, cfg.Endpoints, logger)

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(h, cfg, logger)

	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithVersion(version))
	webOpts = append(webOpts, autoWebOpts...)
	webServer := web.NewServer(h, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(h, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	h.Stop()

	logger.Info("goodbye")
}

func registerStaticEndpoints(h *host.Host, eps []StaticEndpoint, logger *slog.Logger) {
	for _, se := range eps {
		var ieee codec.IEEEAddress
		if se.IEEE != "" {
			// Checked by validate.
			ieee, _ = codec.ParseIEEE(se.IEEE)
		}
		if _, err := h.AddEndpoint(ieee, se.Network, se.Descriptor); err != nil {
			logger.Error("register static endpoint", "network", fmt.Sprintf("0x%04X", se.Network), "endpoint", se.EndpointID, "err", err)
		}
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	defaults := host.DefaultConfig()
	if cfg.Transport.Baud == 0 {
		cfg.Transport.Baud = 115200
	}
	if cfg.Transaction.Timeout == 0 {
		cfg.Transaction.Timeout = defaults.Transaction.Timeout
	}
	if cfg.Transaction.SweepInterval == 0 {
		cfg.Transaction.SweepInterval = defaults.Transaction.SweepInterval
	}
	if cfg.Host.ProfileID == 0 {
		cfg.Host.ProfileID = defaults.ProfileID
	}
	if cfg.Host.LocalEndpoint == 0 {
		cfg.Host.LocalEndpoint = defaults.LocalEndpoint
	}
	if cfg.Host.SendTimeout == 0 {
		cfg.Host.SendTimeout = defaults.SendTimeout
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "zigbee-host.db"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "zigbee"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
