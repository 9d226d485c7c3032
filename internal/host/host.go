// Package host ties the transport, the ZCL codec, the endpoint registry and
// the transaction engine together.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/ezsp"
	"zigbee-go-host/internal/store"
	"zigbee-go-host/internal/transaction"
	"zigbee-go-host/internal/transport"
	"zigbee-go-host/internal/zcl"
)

// ErrUnknownEndpoint is returned for operations on an endpoint the host does
// not know.
var ErrUnknownEndpoint = errors.New("host: unknown endpoint")

// ErrSendsBusy is returned when every frame sequence number belongs to a
// send still waiting for its status.
var ErrSendsBusy = errors.New("host: too many sends in flight")

// Config holds host configuration.
type Config struct {
	Transaction   transaction.Config `yaml:"transaction"`
	ProfileID     uint16             `yaml:"profile_id"`
	LocalEndpoint uint8              `yaml:"local_endpoint"`
	// SendTimeout bounds the wait for the co-processor to accept a frame.
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		Transaction:   transaction.DefaultConfig(),
		ProfileID:     0x0104,
		LocalEndpoint: 1,
		SendTimeout:   2 * time.Second,
	}
}

// Host owns the link to the co-processor and everything that dispatches on
// top of it.
type Host struct {
	transport transport.Transport
	catalog   *zcl.Registry
	endpoints *endpoint.Registry
	tx        *transaction.Manager
	events    *EventBus
	store     store.Store
	logger    *slog.Logger
	config    Config

	seqMu    sync.Mutex
	frameSeq uint8
	tsn      uint8
	apsSeq   uint8
	sendWait map[uint8]chan ezsp.Status

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a host. st may be nil, in which case endpoints are not
// persisted.
func New(t transport.Transport, catalog *zcl.Registry, st store.Store, events *EventBus, cfg Config, logger *slog.Logger) *Host {
	def := DefaultConfig()
	if cfg.ProfileID == 0 {
		cfg.ProfileID = def.ProfileID
	}
	if cfg.LocalEndpoint == 0 {
		cfg.LocalEndpoint = def.LocalEndpoint
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if events == nil {
		events = NewEventBus(logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		transport: t,
		catalog:   catalog,
		events:    events,
		store:     st,
		logger:    logger.With("component", "host"),
		config:    cfg,
		sendWait:  make(map[uint8]chan ezsp.Status),
		ctx:       ctx,
		cancel:    cancel,
	}
	h.tx = transaction.NewManager(h, cfg.Transaction, logger)
	h.tx.OnMatch(h.transactionMatched)
	h.tx.OnTimeout(h.transactionTimedOut)
	h.endpoints = endpoint.NewRegistry(catalog, h.tx, logger)
	return h
}

// Context returns the host's context, which is cancelled on Stop().
func (h *Host) Context() context.Context {
	return h.ctx
}

// Start reloads persisted endpoints and starts the reader and the
// transaction sweep.
func (h *Host) Start(ctx context.Context) error {
	if h.started {
		return errors.New("host: already started")
	}
	if err := h.loadNodes(); err != nil {
		return err
	}
	h.started = true
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		h.readLoop(h.ctx)
	}()
	go func() {
		defer h.wg.Done()
		h.tx.Run(h.ctx)
	}()
	h.logger.Info("host started", "endpoints", h.endpoints.Len())
	return nil
}

// Stop cancels the host context, closes the transport and waits for the
// background goroutines. Pending transactions fail with ErrClosed and every
// application is shut down.
func (h *Host) Stop() {
	h.cancel()
	h.tx.Close()
	if err := h.transport.Close(); err != nil {
		h.logger.Warn("close transport", "err", err)
	}
	h.wg.Wait()
	for _, e := range h.endpoints.All() {
		e.Close()
	}
	h.logger.Info("host stopped")
}

// Registry returns the ZCL registry.
func (h *Host) Registry() *zcl.Registry { return h.catalog }

// Endpoints returns the endpoint registry.
func (h *Host) Endpoints() *endpoint.Registry { return h.endpoints }

// Transactions returns the transaction manager.
func (h *Host) Transactions() *transaction.Manager { return h.tx }

// Events returns the event bus.
func (h *Host) Events() *EventBus { return h.events }

// Store returns the store, or nil.
func (h *Host) Store() store.Store { return h.store }

// AddApplication binds app to the endpoint at key.
func (h *Host) AddApplication(key endpoint.Key, app endpoint.Application) error {
	e := h.endpoints.Endpoint(key)
	if e == nil {
		return fmt.Errorf("%w %s", ErrUnknownEndpoint, key)
	}
	return e.AddApplication(app)
}

func (h *Host) transactionMatched(r *transaction.Record, resp *zcl.Command) {
	h.events.Emit(Event{Type: EventTransactionMatched, Data: TransactionEvent{
		ID:       r.ID().String(),
		Matcher:  fmt.Sprint(r.Matcher()),
		Created:  r.Created(),
		Deadline: r.Deadline(),
		Response: resp.Name(),
	}})
}

func (h *Host) transactionTimedOut(r *transaction.Record) {
	h.events.Emit(Event{Type: EventTransactionTimeout, Data: TransactionEvent{
		ID:       r.ID().String(),
		Matcher:  fmt.Sprint(r.Matcher()),
		Created:  r.Created(),
		Deadline: r.Deadline(),
	}})
}
