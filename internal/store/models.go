package store

import (
	"time"

	"zigbee-go-host/internal/codec"
)

// Node is a remote node and the endpoints it reported.
type Node struct {
	IEEEAddress    codec.IEEEAddress `json:"ieee_address" cbor:"1,keyasint"`
	NetworkAddress uint16            `json:"network_address" cbor:"2,keyasint"`
	Endpoints      []Endpoint        `json:"endpoints,omitempty" cbor:"3,keyasint,omitempty"`
	LastSeen       time.Time         `json:"last_seen" cbor:"4,keyasint"`
}

// Endpoint is the stored snapshot of one endpoint descriptor.
type Endpoint struct {
	ID            uint8    `json:"id" cbor:"1,keyasint"`
	ProfileID     uint16   `json:"profile_id" cbor:"2,keyasint"`
	DeviceID      uint16   `json:"device_id" cbor:"3,keyasint"`
	DeviceVersion uint8    `json:"device_version" cbor:"4,keyasint"`
	InClusters    []uint16 `json:"in_clusters" cbor:"5,keyasint"`
	OutClusters   []uint16 `json:"out_clusters" cbor:"6,keyasint"`
}

// Endpoint returns the stored endpoint with the given id.
func (n *Node) Endpoint(id uint8) (Endpoint, bool) {
	for _, ep := range n.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// PutEndpoint adds ep or replaces the endpoint with the same id, keeping the
// list ordered by id.
func (n *Node) PutEndpoint(ep Endpoint) {
	for i := range n.Endpoints {
		if n.Endpoints[i].ID == ep.ID {
			n.Endpoints[i] = ep
			return
		}
		if n.Endpoints[i].ID > ep.ID {
			n.Endpoints = append(n.Endpoints[:i], append([]Endpoint{ep}, n.Endpoints[i:]...)...)
			return
		}
	}
	n.Endpoints = append(n.Endpoints, ep)
}
