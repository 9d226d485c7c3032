package zcl

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

type commandKey struct {
	cluster   uint16
	command   uint8
	direction Direction
}

// Registry holds all known ZCL cluster definitions and the two command
// identifier spaces: generic command ids, and (cluster, command, direction).
type Registry struct {
	mu       sync.RWMutex
	clusters map[uint16]*ClusterDef
	generic  map[uint8]*CommandDef
	commands map[commandKey]*CommandDef
	logger   *slog.Logger
}

// NewRegistry creates a registry holding only the foundation commands.
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		clusters: make(map[uint16]*ClusterDef),
		generic:  make(map[uint8]*CommandDef, len(foundationByID)),
		commands: make(map[commandKey]*CommandDef),
		logger:   logger,
	}
	for id, def := range foundationByID {
		r.generic[id] = def
	}
	return r
}

// Register adds a cluster definition to the registry. A second definition for
// the same cluster is merged into the first.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clusters[c.ID]; ok {
		existing.Merge(&c)
		r.indexCommands(existing)
		r.logger.Debug("cluster merged", "id", fmt.Sprintf("0x%04X", c.ID), "name", existing.Name)
	} else {
		clone := c.DeepCopy()
		r.clusters[c.ID] = clone
		r.indexCommands(clone)
		r.logger.Debug("cluster registered", "id", fmt.Sprintf("0x%04X", c.ID), "name", c.Name)
	}
}

func (r *Registry) indexCommands(c *ClusterDef) {
	for i := range c.Commands {
		cmd := &c.Commands[i]
		key := commandKey{cluster: c.ID, command: cmd.ID, direction: cmd.Direction}
		if _, ok := r.commands[key]; !ok {
			r.commands[key] = cmd
		}
	}
}

// RegisterGeneric adds a profile-wide command layout. Existing ids are kept.
func (r *Registry) RegisterGeneric(def CommandDef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.generic[def.ID]; ok {
		return false
	}
	r.generic[def.ID] = &def
	return true
}

// Get returns a cluster definition by ID, or nil if not found.
// The returned value is a deep copy; callers may modify it safely.
func (r *Registry) Get(id uint16) *ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[id]
	if c == nil {
		return nil
	}
	return c.DeepCopy()
}

// All returns all registered cluster definitions ordered by id.
// Each entry is a deep copy; callers may modify them safely.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ClusterDef, 0, len(r.clusters))
	for _, c := range r.clusters {
		result = append(result, *c.DeepCopy())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// GenericCommand returns the layout of a profile-wide command, or nil.
func (r *Registry) GenericCommand(id uint8) *CommandDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generic[id]
}

// ClusterCommand returns the layout of a cluster-specific command, or nil.
func (r *Registry) ClusterCommand(cluster uint16, id uint8, dir Direction) *CommandDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[commandKey{cluster: cluster, command: id, direction: dir}]
}

// Lookup resolves the layout for a received frame header.
func (r *Registry) Lookup(h Header, cluster uint16) *CommandDef {
	if h.Generic() {
		return r.GenericCommand(h.CommandID)
	}
	return r.ClusterCommand(cluster, h.CommandID, h.Direction)
}

// NewClusterCommand builds a cluster-specific command by name.
func (r *Registry) NewClusterCommand(cluster uint16, name string) (*Command, error) {
	r.mu.RLock()
	c := r.clusters[cluster]
	var def *CommandDef
	if c != nil {
		def = c.FindCommandByName(name)
	}
	r.mu.RUnlock()
	if c == nil {
		return nil, fmt.Errorf("zcl: unknown cluster 0x%04X", cluster)
	}
	if def == nil {
		return nil, fmt.Errorf("zcl: cluster %s has no command %q", c.Name, name)
	}
	return NewCommand(cluster, def, false), nil
}

// ClusterName returns the registered name of a cluster, or its hex id.
func (r *Registry) ClusterName(id uint16) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.clusters[id]; c != nil && c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("0x%04X", id)
}
