//go:build !no_mqtt

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/host"
	"zigbee-go-host/internal/zcl"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

const sendTimeout = 10 * time.Second

// Bridge mirrors host events to MQTT and sends commands published to
// .../set topics.
type Bridge struct {
	client pahomqtt.Client
	host   *host.Host
	prefix string
	logger *slog.Logger
	unsub  func()
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(h *host.Host, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(nil, h, cfg.TopicPrefix, logger)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "zigbee-go-host"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(b.prefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.publishAllEndpoints()
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt: connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}
	return b, nil
}

func newBridge(client pahomqtt.Client, h *host.Host, prefix string, logger *slog.Logger) *Bridge {
	if prefix == "" {
		prefix = "zigbee"
	}
	return &Bridge{
		client: client,
		host:   h,
		prefix: strings.TrimSuffix(prefix, "/"),
		logger: logger.With("component", "mqtt"),
	}
}

// Start subscribes to host events and begins publishing.
func (b *Bridge) Start() {
	b.unsub = b.host.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event host.Event) {
	switch data := event.Data.(type) {
	case host.CommandEvent:
		if event.Type == host.EventCommandReceived {
			b.publish(commandTopic(b.prefix, data), mustJSON(event), false)
		}
	case host.TransactionEvent:
		if event.Type == host.EventTransactionTimeout {
			b.publish(b.prefix+"/bridge/timeout", mustJSON(event), false)
		}
	case host.EndpointEvent:
		switch event.Type {
		case host.EventEndpointAdded:
			if e := b.host.Endpoints().Endpoint(endpoint.Key{Network: data.Network, Endpoint: data.Endpoint}); e != nil {
				b.publishEndpoint(e)
			}
		case host.EventEndpointRemoved:
			// An empty retained payload clears the topic.
			b.publish(infoTopic(b.prefix, data.IEEE, data.Network, data.Endpoint), nil, true)
		}
	}
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publishAllEndpoints() {
	for _, e := range b.host.Endpoints().All() {
		b.publishEndpoint(e)
	}
}

func (b *Bridge) publishEndpoint(e *endpoint.Endpoint) {
	info := buildEndpointInfo(e)
	b.publish(infoTopic(b.prefix, info.IEEE, e.Network(), e.ID()), mustJSON(info), true)
}

func (b *Bridge) subscribeCommands() {
	topic := b.prefix + "/+/+/+/+/set"
	b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleSet(msg.Topic(), msg.Payload())
	})
}

func (b *Bridge) handleSet(topic string, payload []byte) {
	cmd, err := b.buildCommand(topic, payload)
	if err != nil {
		b.logger.Warn("invalid command", "topic", topic, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(b.host.Context(), sendTimeout)
	defer cancel()
	b.host.Prepare(cmd)
	if err := b.host.SendCommand(ctx, cmd); err != nil {
		b.logger.Warn("command failed", "topic", topic, "dst", cmd.Destination, "err", err)
		return
	}
	b.logger.Debug("command sent", "cmd", cmd.Name(), "dst", cmd.Destination, "tsn", cmd.TransactionID)
}

// buildCommand resolves a .../set topic and its JSON field object into a
// command addressed to a registered endpoint.
func (b *Bridge) buildCommand(topic string, payload []byte) (*zcl.Command, error) {
	req, err := parseSetTopic(b.prefix, topic)
	if err != nil {
		return nil, err
	}
	e, err := b.resolveEndpoint(req.Node, req.Endpoint)
	if err != nil {
		return nil, err
	}
	reg := b.host.Registry()
	clusterID, err := resolveCluster(reg, req.Cluster)
	if err != nil {
		return nil, err
	}
	def := reg.Get(clusterID)
	name := req.Command
	for _, c := range def.Commands {
		if sanitize(c.Name) == sanitize(req.Command) {
			name = c.Name
			break
		}
	}
	cmd, err := reg.NewClusterCommand(clusterID, name)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		var fields map[string]any
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		for k, v := range fields {
			if err := cmd.Set(k, v); err != nil {
				return nil, err
			}
		}
	}
	cmd.Destination = zcl.Address{Network: e.Network(), Endpoint: e.ID()}
	return cmd, nil
}

func (b *Bridge) resolveEndpoint(node string, ep uint8) (*endpoint.Endpoint, error) {
	if hex, ok := strings.CutPrefix(node, "nwk_"); ok {
		network, err := strconv.ParseUint(hex, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", node, err)
		}
		if e := b.host.Endpoints().Endpoint(endpoint.Key{Network: uint16(network), Endpoint: ep}); e != nil {
			return e, nil
		}
		return nil, fmt.Errorf("%w %s/%d", host.ErrUnknownEndpoint, node, ep)
	}
	ieee, err := codec.ParseIEEE(node)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", node, err)
	}
	for _, e := range b.host.Endpoints().All() {
		if e.IEEE() == ieee && e.ID() == ep {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w %s/%d", host.ErrUnknownEndpoint, node, ep)
}

// resolveCluster accepts a hex id (0x0006), a decimal id, or a cluster name
// in any case with spaces and punctuation as underscores.
func resolveCluster(reg *zcl.Registry, s string) (uint16, error) {
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		id, err := strconv.ParseUint(hex, 16, 16)
		if err != nil {
			return 0, fmt.Errorf("cluster %q: %w", s, err)
		}
		return known(reg, uint16(id))
	}
	if id, err := strconv.ParseUint(s, 10, 16); err == nil {
		return known(reg, uint16(id))
	}
	for _, c := range reg.All() {
		if sanitize(c.Name) == sanitize(s) {
			return c.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown cluster %q", s)
}

func known(reg *zcl.Registry, id uint16) (uint16, error) {
	if reg.Get(id) == nil {
		return 0, fmt.Errorf("unknown cluster 0x%04X", id)
	}
	return id, nil
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
