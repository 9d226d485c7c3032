//go:build !no_automation

package automation

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/host"
)

// Engine binds enabled scripts to the host's endpoints. Every endpoint that
// declares a script's cluster gets its own App instance, and endpoints added
// later are bound as they appear.
type Engine struct {
	host    *host.Host
	manager *Manager
	logger  *slog.Logger

	mu     sync.Mutex
	apps   map[string][]*App // script ID -> bound instances
	unsubs []func()
}

// NewEngine creates a new automation engine.
func NewEngine(h *host.Host, mgr *Manager, logger *slog.Logger) *Engine {
	return &Engine{
		host:    h,
		manager: mgr,
		logger:  logger.With("component", "automation"),
		apps:    make(map[string][]*App),
	}
}

// Start binds every enabled script to the current endpoints and follows
// endpoint changes.
func (e *Engine) Start() {
	events := e.host.Events()
	e.unsubs = append(e.unsubs,
		events.On(host.EventEndpointAdded, e.endpointAdded),
		events.On(host.EventEndpointRemoved, e.endpointRemoved),
	)

	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}
	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}
	e.logger.Info("automation engine started", "scripts", len(e.apps))
}

// Stop unbinds every script and stops following endpoint changes.
func (e *Engine) Stop() {
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil

	e.mu.Lock()
	ids := make([]string, 0, len(e.apps))
	for id := range e.apps {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.stopScript(id)
	}
	e.logger.Info("automation engine stopped")
}

// ReloadScript unbinds a script and binds it again from disk.
func (e *Engine) ReloadScript(id string) error {
	e.stopScript(id)
	s, err := e.manager.Get(id)
	if err != nil {
		return fmt.Errorf("automation: get script: %w", err)
	}
	if !s.Meta.Enabled {
		return nil
	}
	return e.startScript(s)
}

// StopScript unbinds a script from every endpoint.
func (e *Engine) StopScript(id string) {
	e.stopScript(id)
}

// Bindings returns the endpoints each running script is bound to.
func (e *Engine) Bindings() map[string][]endpoint.Key {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]endpoint.Key, len(e.apps))
	for id, apps := range e.apps {
		keys := make([]endpoint.Key, 0, len(apps))
		for _, a := range apps {
			keys = append(keys, a.Key())
		}
		out[id] = keys
	}
	return out
}

func (e *Engine) startScript(s *Script) error {
	// Load once up front so a broken script fails here rather than per endpoint.
	probe, err := NewApp(s, e.host, e.logger)
	if err != nil {
		return err
	}
	probe.release()

	e.mu.Lock()
	e.apps[s.ID] = nil
	e.mu.Unlock()

	for _, ep := range e.host.Endpoints().All() {
		e.bind(s, ep)
	}
	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name, "cluster", fmt.Sprintf("0x%04X", probe.ClusterID()))
	return nil
}

func (e *Engine) stopScript(id string) {
	e.mu.Lock()
	apps, ok := e.apps[id]
	delete(e.apps, id)
	e.mu.Unlock()
	if !ok {
		return
	}
	for _, a := range apps {
		if ep := e.host.Endpoints().Endpoint(a.Key()); ep != nil && ep.RemoveApplication(a) {
			continue
		}
		a.AppShutdown()
	}
	e.logger.Info("script stopped", "id", id)
}

// bind starts an instance of s on ep if ep declares the script's cluster and
// passes its endpoint filter.
func (e *Engine) bind(s *Script, ep *endpoint.Endpoint) {
	if !s.bindsTo(ep.Key().String()) {
		return
	}
	app, err := NewApp(s, e.host, e.logger)
	if err != nil {
		e.logger.Error("load script", "id", s.ID, "err", err)
		return
	}
	id := app.ClusterID()
	if !slices.Contains(ep.InputClusterIDs(), id) && !slices.Contains(ep.OutputClusterIDs(), id) {
		app.release()
		return
	}
	if err := ep.AddApplication(app); err != nil {
		e.logger.Error("bind script", "id", s.ID, "endpoint", ep.Key(), "err", err)
		app.release()
		return
	}
	e.mu.Lock()
	e.apps[s.ID] = append(e.apps[s.ID], app)
	e.mu.Unlock()
	e.logger.Debug("script bound", "id", s.ID, "endpoint", ep.Key())
}

func (e *Engine) endpointAdded(ev host.Event) {
	data, ok := ev.Data.(host.EndpointEvent)
	if !ok {
		return
	}
	ep := e.host.Endpoints().Endpoint(endpoint.Key{Network: data.Network, Endpoint: data.Endpoint})
	if ep == nil {
		return
	}
	e.mu.Lock()
	ids := make([]string, 0, len(e.apps))
	for id := range e.apps {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		s, err := e.manager.Get(id)
		if err != nil {
			e.logger.Warn("script vanished", "id", id, "err", err)
			continue
		}
		e.bind(s, ep)
	}
}

// endpointRemoved forgets instances on a removed endpoint. The endpoint has
// already shut them down.
func (e *Engine) endpointRemoved(ev host.Event) {
	data, ok := ev.Data.(host.EndpointEvent)
	if !ok {
		return
	}
	key := endpoint.Key{Network: data.Network, Endpoint: data.Endpoint}
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, apps := range e.apps {
		e.apps[id] = slices.DeleteFunc(apps, func(a *App) bool { return a.Key() == key })
	}
}
