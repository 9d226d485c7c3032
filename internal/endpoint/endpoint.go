// Package endpoint models the endpoints of remote nodes, the cluster
// instances they declare, and the dispatch of received commands to
// transactions and applications.
package endpoint

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

// Key identifies an endpoint on the network.
type Key struct {
	Network  uint16 `json:"network"`
	Endpoint uint8  `json:"endpoint"`
}

func (k Key) String() string { return fmt.Sprintf("0x%04X/%d", k.Network, k.Endpoint) }

// KeyOf returns the key of the endpoint addr refers to.
func KeyOf(addr zcl.Address) Key { return Key{Network: addr.Network, Endpoint: addr.Endpoint} }

// Application consumes commands for one cluster.
type Application interface {
	ClusterID() uint16
	// AppStartup is called once for each cluster registration the
	// application is bound to, before any CommandReceived for it.
	AppStartup(c *Cluster) error
	CommandReceived(cmd *zcl.Command) error
	AppShutdown()
}

// TransactionHandler gets first refusal on every received command.
type TransactionHandler interface {
	HandleCommand(cmd *zcl.Command) bool
}

// Outcome says which consumer claimed a received command.
type Outcome int

const (
	Unclaimed Outcome = iota
	Transaction
	Delivered
)

func (o Outcome) String() string {
	switch o {
	case Transaction:
		return "transaction"
	case Delivered:
		return "application"
	}
	return "unclaimed"
}

type boundApp struct {
	app     Application
	cluster *Cluster // instance AppStartup ran against, nil if none yet
}

// Endpoint is one endpoint of a remote node.
type Endpoint struct {
	key     Key
	catalog *zcl.Registry
	logger  *slog.Logger

	mu            sync.RWMutex
	ieee          codec.IEEEAddress
	profileID     uint16
	deviceID      uint16
	deviceVersion uint8
	inputIDs      []uint16
	outputIDs     []uint16
	inputs        map[uint16]*Cluster
	outputs       map[uint16]*Cluster
	apps          []*boundApp
	tx            TransactionHandler
}

// New creates an endpoint. catalog supplies definitions for fallback
// instances and may be nil.
func New(key Key, catalog *zcl.Registry, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		key:     key,
		catalog: catalog,
		logger:  logger.With("component", "endpoint", "endpoint", key.String()),
		inputs:  make(map[uint16]*Cluster),
		outputs: make(map[uint16]*Cluster),
	}
}

func (e *Endpoint) Key() Key        { return e.key }
func (e *Endpoint) ID() uint8       { return e.key.Endpoint }
func (e *Endpoint) Network() uint16 { return e.key.Network }

func (e *Endpoint) IEEE() codec.IEEEAddress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ieee
}

func (e *Endpoint) SetIEEE(a codec.IEEEAddress) {
	e.mu.Lock()
	e.ieee = a
	e.mu.Unlock()
}

func (e *Endpoint) ProfileID() uint16 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profileID
}

func (e *Endpoint) SetProfileID(id uint16) {
	e.mu.Lock()
	e.profileID = id
	e.mu.Unlock()
}

func (e *Endpoint) DeviceID() uint16 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deviceID
}

func (e *Endpoint) SetDeviceID(id uint16) {
	e.mu.Lock()
	e.deviceID = id
	e.mu.Unlock()
}

func (e *Endpoint) DeviceVersion() uint8 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deviceVersion
}

func (e *Endpoint) SetDeviceVersion(v uint8) {
	e.mu.Lock()
	e.deviceVersion = v
	e.mu.Unlock()
}

// InputClusterIDs returns the declared input cluster ids in discovery order.
func (e *Endpoint) InputClusterIDs() []uint16 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.inputIDs)
}

// OutputClusterIDs returns the declared output cluster ids in discovery order.
func (e *Endpoint) OutputClusterIDs() []uint16 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.outputIDs)
}

// SetInputClusterIDs replaces the declared input cluster list. Duplicates are
// dropped and explicit instances are kept.
func (e *Endpoint) SetInputClusterIDs(ids []uint16) {
	e.mu.Lock()
	e.inputIDs = declare(ids, e.inputs)
	e.mu.Unlock()
	e.startPending()
}

// SetOutputClusterIDs replaces the declared output cluster list.
func (e *Endpoint) SetOutputClusterIDs(ids []uint16) {
	e.mu.Lock()
	e.outputIDs = declare(ids, e.outputs)
	e.mu.Unlock()
	e.startPending()
}

// declare dedups ids and keeps every explicit instance declared.
func declare(ids []uint16, instances map[uint16]*Cluster) []uint16 {
	out := make([]uint16, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	for id, c := range instances {
		if c.generic && !slices.Contains(out, id) {
			delete(instances, id)
			continue
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// SetTransactionHandler sets the handler offered every received command.
func (e *Endpoint) SetTransactionHandler(h TransactionHandler) {
	e.mu.Lock()
	e.tx = h
	e.mu.Unlock()
}

// AddInputCluster registers an explicit server instance. It fails when an
// explicit instance already holds the id or c is not a server instance; a
// provisional fallback is replaced.
func (e *Endpoint) AddInputCluster(c *Cluster) bool { return e.addCluster(c, Server) }

// AddOutputCluster is AddInputCluster for client instances.
func (e *Endpoint) AddOutputCluster(c *Cluster) bool { return e.addCluster(c, Client) }

func (e *Endpoint) addCluster(c *Cluster, role Role) bool {
	if c == nil || c.role != role || c.generic {
		return false
	}
	e.mu.Lock()
	instances, ids := e.inputs, &e.inputIDs
	if role == Client {
		instances, ids = e.outputs, &e.outputIDs
	}
	if existing := instances[c.id]; existing != nil && !existing.generic {
		e.mu.Unlock()
		e.logger.Debug("cluster already registered", "cluster", fmt.Sprintf("0x%04X", c.id), "role", role)
		return false
	}
	c.bind(e.key)
	instances[c.id] = c
	if !slices.Contains(*ids, c.id) {
		*ids = append(*ids, c.id)
	}
	var starts []*boundApp
	if role == Server {
		starts = e.rebindLocked(c)
	}
	e.mu.Unlock()

	e.logger.Debug("cluster registered", "cluster", c.Name(), "id", fmt.Sprintf("0x%04X", c.id), "role", role)
	e.startApps(starts)
	return true
}

// InputCluster returns the server instance for id. A declared id without an
// instance gets a provisional fallback, the same one on every call. An
// undeclared id returns nil.
func (e *Endpoint) InputCluster(id uint16) *Cluster { return e.cluster(id, Server) }

// OutputCluster is InputCluster for client instances.
func (e *Endpoint) OutputCluster(id uint16) *Cluster { return e.cluster(id, Client) }

func (e *Endpoint) cluster(id uint16, role Role) *Cluster {
	e.mu.RLock()
	c, declared := e.lookupLocked(id, role)
	e.mu.RUnlock()
	if c != nil || !declared {
		return c
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	c, declared = e.lookupLocked(id, role)
	if c != nil || !declared {
		return c
	}
	var def *zcl.ClusterDef
	if e.catalog != nil {
		def = e.catalog.Get(id)
	}
	c = newFallback(id, role, def)
	c.bind(e.key)
	if role == Client {
		e.outputs[id] = c
	} else {
		e.inputs[id] = c
	}
	return c
}

func (e *Endpoint) lookupLocked(id uint16, role Role) (*Cluster, bool) {
	if role == Client {
		return e.outputs[id], slices.Contains(e.outputIDs, id)
	}
	return e.inputs[id], slices.Contains(e.inputIDs, id)
}

// Clusters returns every instantiated cluster, inputs first, each ordered by
// declaration.
func (e *Endpoint) Clusters() []*Cluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Cluster
	for _, id := range e.inputIDs {
		if c := e.inputs[id]; c != nil {
			out = append(out, c)
		}
	}
	for _, id := range e.outputIDs {
		if c := e.outputs[id]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// AddApplication binds app to the cluster it serves and runs AppStartup
// against the input instance, or the output instance when only that exists.
// An application whose cluster is not declared yet is started when a
// matching input cluster is registered.
func (e *Endpoint) AddApplication(app Application) error {
	e.mu.RLock()
	for _, b := range e.apps {
		if b.app == app {
			e.mu.RUnlock()
			return fmt.Errorf("endpoint %s: application for cluster 0x%04X already added", e.key, app.ClusterID())
		}
	}
	e.mu.RUnlock()

	id := app.ClusterID()
	c := e.InputCluster(id)
	if c == nil {
		c = e.OutputCluster(id)
	}
	if c != nil {
		if err := safeStartup(app, c); err != nil {
			return fmt.Errorf("endpoint %s: start application for cluster 0x%04X: %w", e.key, id, err)
		}
	}
	e.mu.Lock()
	e.apps = append(e.apps, &boundApp{app: app, cluster: c})
	e.mu.Unlock()
	e.logger.Info("application added", "cluster", fmt.Sprintf("0x%04X", id), "started", c != nil)
	return nil
}

// RemoveApplication unbinds app and calls AppShutdown. It reports whether app
// was bound.
func (e *Endpoint) RemoveApplication(app Application) bool {
	e.mu.Lock()
	i := slices.IndexFunc(e.apps, func(b *boundApp) bool { return b.app == app })
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	e.apps = slices.Delete(e.apps, i, i+1)
	e.mu.Unlock()
	e.shutdown(app)
	return true
}

// Application returns the first application bound to clusterID, or nil.
func (e *Endpoint) Application(clusterID uint16) Application {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, b := range e.apps {
		if b.app.ClusterID() == clusterID {
			return b.app
		}
	}
	return nil
}

// Applications returns the bound applications in registration order.
func (e *Endpoint) Applications() []Application {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Application, len(e.apps))
	for i, b := range e.apps {
		out[i] = b.app
	}
	return out
}

// rebindLocked points applications for c's id at c and returns those that
// need AppStartup. mu must be held.
func (e *Endpoint) rebindLocked(c *Cluster) []*boundApp {
	var starts []*boundApp
	for _, b := range e.apps {
		if b.app.ClusterID() == c.id && b.cluster != c {
			b.cluster = c
			starts = append(starts, b)
		}
	}
	return starts
}

// startPending starts applications added before their cluster was declared.
func (e *Endpoint) startPending() {
	e.mu.RLock()
	var pending []*boundApp
	for _, b := range e.apps {
		if b.cluster == nil {
			pending = append(pending, b)
		}
	}
	e.mu.RUnlock()

	var starts []*boundApp
	for _, b := range pending {
		id := b.app.ClusterID()
		c := e.InputCluster(id)
		if c == nil {
			c = e.OutputCluster(id)
		}
		if c == nil {
			continue
		}
		e.mu.Lock()
		if b.cluster == nil && slices.Contains(e.apps, b) {
			b.cluster = c
			starts = append(starts, b)
		}
		e.mu.Unlock()
	}
	e.startApps(starts)
}

func (e *Endpoint) startApps(bs []*boundApp) {
	for _, b := range bs {
		if err := safeStartup(b.app, b.cluster); err != nil {
			e.logger.Error("application startup failed", "cluster", fmt.Sprintf("0x%04X", b.cluster.id), "err", err)
		}
	}
}

func (e *Endpoint) shutdown(app Application) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("application shutdown panic", "cluster", fmt.Sprintf("0x%04X", app.ClusterID()), "panic", r)
		}
	}()
	app.AppShutdown()
}

func safeStartup(app Application, c *Cluster) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return app.AppStartup(c)
}

// CommandReceived dispatches a command received from this endpoint.
//
// The target instance is the one on the receiving side of the command's
// direction: a server to client command goes to the client instance. It
// caches any attribute values the command carries. The transaction handler
// then gets first refusal; a command it claims goes nowhere else. Otherwise
// every started application bound to the command's cluster receives it in
// registration order. Application errors and panics are logged and do not
// stop delivery to the rest.
func (e *Endpoint) CommandReceived(cmd *zcl.Command) Outcome {
	if target := e.cluster(cmd.ClusterID(), roleFor(cmd.Direction())); target != nil {
		target.observe(cmd, time.Now())
	}

	e.mu.RLock()
	tx := e.tx
	var apps []Application
	for _, b := range e.apps {
		if b.cluster != nil && b.app.ClusterID() == cmd.ClusterID() {
			apps = append(apps, b.app)
		}
	}
	e.mu.RUnlock()

	if tx != nil && tx.HandleCommand(cmd) {
		return Transaction
	}
	if len(apps) == 0 {
		e.logger.Debug("routing miss", "cmd", cmd.Name(), "cluster", fmt.Sprintf("0x%04X", cmd.ClusterID()), "src", cmd.Source)
		return Unclaimed
	}
	for _, app := range apps {
		e.deliver(app, cmd)
	}
	return Delivered
}

func (e *Endpoint) deliver(app Application, cmd *zcl.Command) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("application panic", "cluster", fmt.Sprintf("0x%04X", cmd.ClusterID()), "cmd", cmd.Name(), "panic", r)
		}
	}()
	if err := app.CommandReceived(cmd); err != nil {
		e.logger.Error("application failed", "cluster", fmt.Sprintf("0x%04X", cmd.ClusterID()), "cmd", cmd.Name(), "err", err)
	}
}

// Close shuts down every bound application.
func (e *Endpoint) Close() {
	e.mu.Lock()
	apps := e.apps
	e.apps = nil
	e.mu.Unlock()
	for _, b := range apps {
		e.shutdown(b.app)
	}
}

func (e *Endpoint) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Endpoint [network=0x%04X, endpoint=%d, ieee=%s, profile=0x%04X, device=0x%04X, version=%d",
		e.key.Network, e.key.Endpoint, e.ieee, e.profileID, e.deviceID, e.deviceVersion)
	fmt.Fprintf(&sb, ", in=%s, out=%s]", hexList(e.inputIDs), hexList(e.outputIDs))
	return sb.String()
}

func hexList(ids []uint16) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("0x%04X", id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
