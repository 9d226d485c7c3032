package endpoint

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"zigbee-go-host/internal/zcl"
)

// Registry maps keys to endpoints.
type Registry struct {
	catalog *zcl.Registry
	logger  *slog.Logger

	mu        sync.RWMutex
	endpoints map[Key]*Endpoint
	tx        TransactionHandler
}

// NewRegistry creates an empty registry. Endpoints added without a
// transaction handler get tx.
func NewRegistry(catalog *zcl.Registry, tx TransactionHandler, logger *slog.Logger) *Registry {
	return &Registry{
		catalog:   catalog,
		logger:    logger,
		endpoints: make(map[Key]*Endpoint),
		tx:        tx,
	}
}

// Catalog returns the ZCL registry used for fallback clusters.
func (r *Registry) Catalog() *zcl.Registry { return r.catalog }

// NewEndpoint creates an endpoint bound to this registry's catalog. The
// endpoint is not added.
func (r *Registry) NewEndpoint(key Key) *Endpoint {
	return New(key, r.catalog, r.logger)
}

// Add registers e. It fails if the key is taken.
func (r *Registry) Add(e *Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.endpoints[e.key]; ok {
		return false
	}
	e.mu.Lock()
	if e.tx == nil {
		e.tx = r.tx
	}
	e.mu.Unlock()
	r.endpoints[e.key] = e
	return true
}

// Endpoint returns the endpoint for key, or nil.
func (r *Registry) Endpoint(key Key) *Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[key]
}

// Remove deletes the endpoint for key and shuts down its applications.
func (r *Registry) Remove(key Key) *Endpoint {
	r.mu.Lock()
	e := r.endpoints[key]
	delete(r.endpoints, key)
	r.mu.Unlock()
	if e != nil {
		e.Close()
	}
	return e
}

// Node returns the endpoints of one node ordered by endpoint id.
func (r *Registry) Node(network uint16) []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Endpoint
	for k, e := range r.endpoints {
		if k.Network == network {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, byKey)
	return out
}

// All returns every endpoint ordered by network address then endpoint id.
func (r *Registry) All() []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Collect(maps.Values(r.endpoints))
	slices.SortFunc(out, byKey)
	return out
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

func byKey(a, b *Endpoint) int {
	if c := cmp.Compare(a.key.Network, b.key.Network); c != 0 {
		return c
	}
	return cmp.Compare(a.key.Endpoint, b.key.Endpoint)
}
