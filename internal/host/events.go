package host

import (
	"log/slog"
	"sync"
	"time"

	"zigbee-go-host/internal/zcl"
)

// Event types
const (
	EventCommandReceived    = "command_received"
	EventTransactionMatched = "transaction_matched"
	EventTransactionTimeout = "transaction_timeout"
	EventRoutingMiss        = "routing_miss"
	EventFrameError         = "frame_error"
	EventEndpointAdded      = "endpoint_added"
	EventEndpointRemoved    = "endpoint_removed"
)

// Event represents a host event.
type Event struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data"`
}

// CommandEvent describes one decoded inbound command and where it went.
type CommandEvent struct {
	IEEE          string         `json:"ieee,omitempty"`
	Source        zcl.Address    `json:"source"`
	Destination   zcl.Address    `json:"destination"`
	ClusterID     uint16         `json:"cluster_id"`
	Cluster       string         `json:"cluster"`
	CommandID     uint8          `json:"command_id"`
	Command       string         `json:"command"`
	Generic       bool           `json:"generic"`
	Direction     string         `json:"direction"`
	TransactionID uint8          `json:"transaction_id"`
	Fields        map[string]any `json:"fields,omitempty"`
	Outcome       string         `json:"outcome"`
	LQI           uint8          `json:"lqi"`
	RSSI          int8           `json:"rssi"`
}

// TransactionEvent describes a transaction that matched or timed out.
type TransactionEvent struct {
	ID       string    `json:"id"`
	Matcher  string    `json:"matcher"`
	Created  time.Time `json:"created"`
	Deadline time.Time `json:"deadline"`
	Response string    `json:"response,omitempty"`
}

// FrameErrorEvent describes an inbound frame that could not be decoded.
type FrameErrorEvent struct {
	Sender    uint16 `json:"sender"`
	ClusterID uint16 `json:"cluster_id"`
	Error     string `json:"error"`
	Frame     string `json:"frame"`
}

// EndpointEvent describes an endpoint added to or removed from the host.
type EndpointEvent struct {
	IEEE     string `json:"ieee"`
	Network  uint16 `json:"network"`
	Endpoint uint8  `json:"endpoint"`
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// EventBus provides pub/sub for host events.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[string]map[uint64]EventHandler
	allHandlers map[uint64]EventHandler
	nextID      uint64
	logger      *slog.Logger
}

// NewEventBus creates a new event bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers:    make(map[string]map[uint64]EventHandler),
		allHandlers: make(map[uint64]EventHandler),
		logger:      logger.With("component", "events"),
	}
}

// On registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	if eb.handlers[eventType] == nil {
		eb.handlers[eventType] = make(map[uint64]EventHandler)
	}
	eb.handlers[eventType][id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.handlers[eventType], id)
	}
}

// OnAll registers a handler that receives all events.
// Returns an unsubscribe function.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	eb.allHandlers[id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.allHandlers, id)
	}
}

// Emit stamps the event and sends it to all matching handlers. Handlers run
// synchronously on the caller's goroutine; a panicking handler is recovered.
func (eb *EventBus) Emit(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.handlers[event.Type])+len(eb.allHandlers))
	for _, h := range eb.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range eb.allHandlers {
		handlers = append(handlers, h)
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panic", "type", event.Type, "panic", r)
				}
			}()
			h(event)
		}()
	}
}
