// Package ezsp defines the co-processor structures that carry ZCL frames
// between the host and the radio.
package ezsp

import (
	"fmt"

	"zigbee-go-host/internal/codec"
)

// ApsOption is one bit of the APS options bitmask.
type ApsOption uint16

const (
	ApsOptionNone                   ApsOption = 0x0000
	ApsOptionEncryption             ApsOption = 0x0020
	ApsOptionRetry                  ApsOption = 0x0040
	ApsOptionEnableRouteDiscovery   ApsOption = 0x0100
	ApsOptionForceRouteDiscovery    ApsOption = 0x0200
	ApsOptionSourceEUI64            ApsOption = 0x0400
	ApsOptionDestinationEUI64       ApsOption = 0x0800
	ApsOptionEnableAddressDiscovery ApsOption = 0x1000
	ApsOptionPollResponse           ApsOption = 0x2000
	ApsOptionZDOResponseRequired    ApsOption = 0x4000
	ApsOptionFragment               ApsOption = 0x8000
)

// knownApsOptions masks the bits with a defined meaning.
const knownApsOptions = ApsOptionEncryption | ApsOptionRetry | ApsOptionEnableRouteDiscovery |
	ApsOptionForceRouteDiscovery | ApsOptionSourceEUI64 | ApsOptionDestinationEUI64 |
	ApsOptionEnableAddressDiscovery | ApsOptionPollResponse | ApsOptionZDOResponseRequired |
	ApsOptionFragment

var apsOptionNames = map[ApsOption]string{
	ApsOptionNone:                   "NONE",
	ApsOptionEncryption:             "ENCRYPTION",
	ApsOptionRetry:                  "RETRY",
	ApsOptionEnableRouteDiscovery:   "ENABLE_ROUTE_DISCOVERY",
	ApsOptionForceRouteDiscovery:    "FORCE_ROUTE_DISCOVERY",
	ApsOptionSourceEUI64:            "SOURCE_EUI64",
	ApsOptionDestinationEUI64:       "DESTINATION_EUI64",
	ApsOptionEnableAddressDiscovery: "ENABLE_ADDRESS_DISCOVERY",
	ApsOptionPollResponse:           "POLL_RESPONSE",
	ApsOptionZDOResponseRequired:    "ZDO_RESPONSE_REQUIRED",
	ApsOptionFragment:               "FRAGMENT",
}

func (o ApsOption) String() string {
	if name, ok := apsOptionNames[o]; ok {
		return name
	}
	return fmt.Sprintf("ApsOption(0x%04X)", uint16(o))
}

// ApsOptions is a set of APS options.
type ApsOptions = codec.FlagSet[ApsOption]

// DefaultApsOptions is used for unicasts when the caller sets none.
var DefaultApsOptions = codec.FlagSetOf(ApsOptionRetry, ApsOptionEnableRouteDiscovery)

// ApsFrame is the APS header the co-processor attaches to every message.
type ApsFrame struct {
	ProfileID           uint16
	ClusterID           uint16
	SourceEndpoint      uint8
	DestinationEndpoint uint8
	Options             ApsOptions
	GroupID             uint16
	Sequence            uint8
}

// Serialize writes the frame in wire order.
func (f *ApsFrame) Serialize(s *codec.Serializer) {
	s.WriteUint16(f.ProfileID)
	s.WriteUint16(f.ClusterID)
	s.WriteUint8(f.SourceEndpoint)
	s.WriteUint8(f.DestinationEndpoint)
	codec.WriteFlags(s, f.Options)
	s.WriteUint16(f.GroupID)
	s.WriteUint8(f.Sequence)
}

// Deserialize reads the frame in wire order. Unknown option bits are dropped.
func (f *ApsFrame) Deserialize(d *codec.Deserializer) error {
	var err error
	if f.ProfileID, err = d.ReadUint16(); err != nil {
		return fmt.Errorf("ezsp: aps profile: %w", err)
	}
	if f.ClusterID, err = d.ReadUint16(); err != nil {
		return fmt.Errorf("ezsp: aps cluster: %w", err)
	}
	if f.SourceEndpoint, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: aps source endpoint: %w", err)
	}
	if f.DestinationEndpoint, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: aps destination endpoint: %w", err)
	}
	if f.Options, err = codec.ReadFlags(d, knownApsOptions); err != nil {
		return fmt.Errorf("ezsp: aps options: %w", err)
	}
	if f.GroupID, err = d.ReadUint16(); err != nil {
		return fmt.Errorf("ezsp: aps group: %w", err)
	}
	if f.Sequence, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: aps sequence: %w", err)
	}
	return nil
}

func (f ApsFrame) String() string {
	return fmt.Sprintf("ApsFrame [profileId=0x%04X, clusterId=0x%04X, sourceEndpoint=%d, destinationEndpoint=%d, options=%s, groupId=0x%04X, sequence=%d]",
		f.ProfileID, f.ClusterID, f.SourceEndpoint, f.DestinationEndpoint, f.Options, f.GroupID, f.Sequence)
}
