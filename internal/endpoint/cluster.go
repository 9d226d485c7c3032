package endpoint

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

// Role says which side of a cluster an instance represents.
type Role uint8

const (
	Server Role = iota // input cluster
	Client             // output cluster
)

func (r Role) String() string {
	if r == Client {
		return "client"
	}
	return "server"
}

// roleFor is the role of the instance a command travelling in dir is
// delivered to.
func roleFor(dir zcl.Direction) Role {
	if dir == zcl.ServerToClient {
		return Client
	}
	return Server
}

// Attribute is a cached attribute value.
type Attribute struct {
	ID      uint16         `json:"id"`
	Type    codec.DataType `json:"type"`
	Value   any            `json:"value"`
	Updated time.Time      `json:"updated"`
}

// Cluster is one cluster instance on an endpoint. It refers back to its
// endpoint by key only; use Endpoint to resolve it.
type Cluster struct {
	id      uint16
	role    Role
	def     *zcl.ClusterDef
	generic bool

	mu         sync.RWMutex
	key        Key
	attrs      map[uint16]Attribute
	lastUpdate time.Time
}

// NewCluster creates an explicit instance for a catalog cluster.
func NewCluster(def *zcl.ClusterDef, role Role) *Cluster {
	return &Cluster{id: def.ID, role: role, def: def, attrs: make(map[uint16]Attribute)}
}

// NewCustomCluster creates an explicit instance for a cluster the catalog
// does not describe.
func NewCustomCluster(id uint16, role Role) *Cluster {
	return &Cluster{id: id, role: role, attrs: make(map[uint16]Attribute)}
}

func newFallback(id uint16, role Role, def *zcl.ClusterDef) *Cluster {
	return &Cluster{id: id, role: role, def: def, generic: true, attrs: make(map[uint16]Attribute)}
}

func (c *Cluster) ID() uint16     { return c.id }
func (c *Cluster) Role() Role     { return c.role }
func (c *Cluster) IsServer() bool { return c.role == Server }
func (c *Cluster) IsClient() bool { return c.role == Client }

// Generic reports whether this is a provisional fallback instance created on
// first lookup. An explicit registration replaces it.
func (c *Cluster) Generic() bool { return c.generic }

// Def returns the catalog definition, or nil for custom clusters.
func (c *Cluster) Def() *zcl.ClusterDef { return c.def }

// Name returns the catalog name or a hex placeholder.
func (c *Cluster) Name() string {
	if c.def != nil && c.def.Name != "" {
		return c.def.Name
	}
	return fmt.Sprintf("Custom(0x%04X)", c.id)
}

// EndpointKey returns the key of the endpoint holding c. It is the zero Key
// until c is added to an endpoint.
func (c *Cluster) EndpointKey() Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

// Endpoint resolves the owning endpoint through reg.
func (c *Cluster) Endpoint(reg *Registry) *Endpoint {
	return reg.Endpoint(c.EndpointKey())
}

func (c *Cluster) bind(k Key) {
	c.mu.Lock()
	c.key = k
	c.mu.Unlock()
}

// Attribute returns the cached value of an attribute.
func (c *Cluster) Attribute(id uint16) (Attribute, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.attrs[id]
	return a, ok
}

// Attributes returns all cached attributes ordered by id.
func (c *Cluster) Attributes() []Attribute {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(c.attrs))
	out := make([]Attribute, len(ids))
	for i, id := range ids {
		out[i] = c.attrs[id]
	}
	return out
}

// LastUpdate returns when an attribute was last cached.
func (c *Cluster) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// observe caches attribute values carried by reports and read responses.
// It returns the number of attributes updated.
func (c *Cluster) observe(cmd *zcl.Command, now time.Time) int {
	if !cmd.Generic() {
		return 0
	}
	v, ok := cmd.Get("records")
	if !ok {
		return 0
	}
	var n int
	c.mu.Lock()
	defer c.mu.Unlock()
	switch records := v.(type) {
	case []zcl.AttributeRecord:
		if cmd.CommandID() != zcl.FoundationReportAttributes {
			return 0
		}
		for _, r := range records {
			c.attrs[r.ID] = Attribute{ID: r.ID, Type: r.Type, Value: r.Value, Updated: now}
			n++
		}
	case []zcl.ReadAttributeStatus:
		for _, r := range records {
			if r.Status != zcl.StatusSuccess {
				continue
			}
			c.attrs[r.ID] = Attribute{ID: r.ID, Type: r.Type, Value: r.Value, Updated: now}
			n++
		}
	}
	if n > 0 {
		c.lastUpdate = now
	}
	return n
}

func (c *Cluster) String() string {
	kind := "explicit"
	if c.generic {
		kind = "fallback"
	}
	return fmt.Sprintf("%s[0x%04X %s %s]", c.Name(), c.id, c.role, kind)
}
