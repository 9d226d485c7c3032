package endpoint

import (
	"fmt"
	"log/slog"
	"slices"

	"zigbee-go-host/internal/zcl"
)

// Descriptor is the persisted snapshot of an endpoint, as learned from a
// simple descriptor.
type Descriptor struct {
	EndpointID       uint8    `json:"endpoint_id" yaml:"endpoint"`
	ProfileID        uint16   `json:"profile_id" yaml:"profile"`
	DeviceID         uint16   `json:"device_id" yaml:"device"`
	DeviceVersion    uint8    `json:"device_version" yaml:"version"`
	InputClusterIDs  []uint16 `json:"input_clusters" yaml:"input_clusters"`
	OutputClusterIDs []uint16 `json:"output_clusters" yaml:"output_clusters"`
}

// Descriptor returns a snapshot of the endpoint.
func (e *Endpoint) Descriptor() Descriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Descriptor{
		EndpointID:       e.key.Endpoint,
		ProfileID:        e.profileID,
		DeviceID:         e.deviceID,
		DeviceVersion:    e.deviceVersion,
		InputClusterIDs:  slices.Clone(e.inputIDs),
		OutputClusterIDs: slices.Clone(e.outputIDs),
	}
}

// ApplyDescriptor loads a snapshot into the endpoint. The snapshot must
// describe this endpoint.
func (e *Endpoint) ApplyDescriptor(d Descriptor) error {
	if d.EndpointID != e.key.Endpoint {
		return fmt.Errorf("endpoint %s: descriptor is for endpoint %d", e.key, d.EndpointID)
	}
	e.mu.Lock()
	e.profileID = d.ProfileID
	e.deviceID = d.DeviceID
	e.deviceVersion = d.DeviceVersion
	e.inputIDs = declare(d.InputClusterIDs, e.inputs)
	e.outputIDs = declare(d.OutputClusterIDs, e.outputs)
	e.mu.Unlock()
	e.startPending()
	return nil
}

// NewFromDescriptor creates an endpoint of node network from a snapshot.
func NewFromDescriptor(network uint16, d Descriptor, catalog *zcl.Registry, logger *slog.Logger) *Endpoint {
	e := New(Key{Network: network, Endpoint: d.EndpointID}, catalog, logger)
	_ = e.ApplyDescriptor(d)
	return e
}

func (d Descriptor) String() string {
	return fmt.Sprintf("Descriptor [endpoint=%d, profile=0x%04X, device=0x%04X, version=%d, in=%s, out=%s]",
		d.EndpointID, d.ProfileID, d.DeviceID, d.DeviceVersion, hexList(d.InputClusterIDs), hexList(d.OutputClusterIDs))
}
