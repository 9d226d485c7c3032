package store

import (
	"errors"

	"zigbee-go-host/internal/codec"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	SaveNode(node *Node) error
	GetNode(ieee codec.IEEEAddress) (*Node, error)
	DeleteNode(ieee codec.IEEEAddress) error
	ListNodes() ([]*Node, error)

	// UpdateNode atomically reads, modifies, and saves a node in a single
	// transaction. Returns ErrNotFound if the node does not exist.
	UpdateNode(ieee codec.IEEEAddress, fn func(node *Node) error) error

	Close() error
}
