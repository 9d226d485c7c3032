package host

import (
	"errors"
	"fmt"
	"time"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/store"
)

// AddEndpoint registers the endpoint described by d on node ieee and persists
// the descriptor. A known endpoint takes the new descriptor. When the node
// comes back with a different network address its endpoints move to the new
// address.
func (h *Host) AddEndpoint(ieee codec.IEEEAddress, network uint16, d endpoint.Descriptor) (*endpoint.Endpoint, error) {
	if !ieee.IsZero() {
		h.moveNode(ieee, network)
	}
	e := h.registerEndpoint(ieee, network, d)
	if e == nil {
		return nil, fmt.Errorf("host: endpoint 0x%04X/%d: could not register", network, d.EndpointID)
	}
	if err := h.persistEndpoint(ieee, network, d); err != nil {
		return e, err
	}
	return e, nil
}

func (h *Host) registerEndpoint(ieee codec.IEEEAddress, network uint16, d endpoint.Descriptor) *endpoint.Endpoint {
	key := endpoint.Key{Network: network, Endpoint: d.EndpointID}
	if e := h.endpoints.Endpoint(key); e != nil {
		if err := e.ApplyDescriptor(d); err != nil {
			h.logger.Error("apply descriptor", "endpoint", key, "err", err)
			return nil
		}
		if !ieee.IsZero() {
			e.SetIEEE(ieee)
		}
		return e
	}
	e := endpoint.NewFromDescriptor(network, d, h.catalog, h.logger)
	e.SetIEEE(ieee)
	if !h.endpoints.Add(e) {
		// Lost a race with another registration of the same key.
		return h.endpoints.Endpoint(key)
	}
	h.logger.Info("endpoint added", "endpoint", key, "ieee", ieee, "descriptor", d)
	h.events.Emit(Event{Type: EventEndpointAdded, Data: EndpointEvent{
		IEEE: ieeeString(ieee), Network: network, Endpoint: d.EndpointID,
	}})
	return e
}

// moveNode drops the endpoints registered under a node's previous network
// address and re-registers them under network.
func (h *Host) moveNode(ieee codec.IEEEAddress, network uint16) {
	if h.store == nil {
		return
	}
	node, err := h.store.GetNode(ieee)
	if err != nil || node.NetworkAddress == network {
		return
	}
	h.logger.Info("node address changed", "ieee", ieee,
		"old", fmt.Sprintf("0x%04X", node.NetworkAddress), "new", fmt.Sprintf("0x%04X", network))
	for _, se := range node.Endpoints {
		h.removeEndpoint(endpoint.Key{Network: node.NetworkAddress, Endpoint: se.ID})
		h.registerEndpoint(ieee, network, descriptorOf(se))
	}
}

func (h *Host) persistEndpoint(ieee codec.IEEEAddress, network uint16, d endpoint.Descriptor) error {
	if h.store == nil || ieee.IsZero() {
		return nil
	}
	snap := snapshotOf(d)
	now := time.Now()
	err := h.store.UpdateNode(ieee, func(n *store.Node) error {
		n.NetworkAddress = network
		n.LastSeen = now
		n.PutEndpoint(snap)
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		err = h.store.SaveNode(&store.Node{
			IEEEAddress:    ieee,
			NetworkAddress: network,
			Endpoints:      []store.Endpoint{snap},
			LastSeen:       now,
		})
	}
	if err != nil {
		return fmt.Errorf("host: persist endpoint %s/%d: %w", ieee, d.EndpointID, err)
	}
	return nil
}

// RemoveNode forgets a node and all of its endpoints.
func (h *Host) RemoveNode(ieee codec.IEEEAddress) error {
	for _, e := range h.endpoints.All() {
		if e.IEEE() == ieee {
			h.removeEndpoint(e.Key())
		}
	}
	if h.store == nil {
		return nil
	}
	if err := h.store.DeleteNode(ieee); err != nil {
		return fmt.Errorf("host: delete node %s: %w", ieee, err)
	}
	return nil
}

func (h *Host) removeEndpoint(key endpoint.Key) {
	e := h.endpoints.Remove(key)
	if e == nil {
		return
	}
	h.logger.Info("endpoint removed", "endpoint", key)
	h.events.Emit(Event{Type: EventEndpointRemoved, Data: EndpointEvent{
		IEEE: ieeeString(e.IEEE()), Network: key.Network, Endpoint: key.Endpoint,
	}})
}

// loadNodes registers every persisted endpoint.
func (h *Host) loadNodes() error {
	if h.store == nil {
		return nil
	}
	nodes, err := h.store.ListNodes()
	if err != nil {
		return fmt.Errorf("host: load nodes: %w", err)
	}
	for _, n := range nodes {
		for _, se := range n.Endpoints {
			h.registerEndpoint(n.IEEEAddress, n.NetworkAddress, descriptorOf(se))
		}
	}
	h.logger.Info("nodes loaded", "nodes", len(nodes), "endpoints", h.endpoints.Len())
	return nil
}

// ieeeString leaves an unknown address empty in events.
func ieeeString(a codec.IEEEAddress) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

func snapshotOf(d endpoint.Descriptor) store.Endpoint {
	return store.Endpoint{
		ID:            d.EndpointID,
		ProfileID:     d.ProfileID,
		DeviceID:      d.DeviceID,
		DeviceVersion: d.DeviceVersion,
		InClusters:    d.InputClusterIDs,
		OutClusters:   d.OutputClusterIDs,
	}
}

func descriptorOf(se store.Endpoint) endpoint.Descriptor {
	return endpoint.Descriptor{
		EndpointID:       se.ID,
		ProfileID:        se.ProfileID,
		DeviceID:         se.DeviceID,
		DeviceVersion:    se.DeviceVersion,
		InputClusterIDs:  se.InClusters,
		OutputClusterIDs: se.OutClusters,
	}
}
