package clusters

import (
	"fmt"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

// TierLabel names one price tier.
type TierLabel struct {
	TierID uint8
	Label  []byte
}

// tierLabels is a uint8 count followed by (tier id, octet string) pairs.
var tierLabels = &zcl.RecordCodec{
	Name: "[]TierLabel",
	Encode: func(s *codec.Serializer, v any) error {
		labels, ok := v.([]TierLabel)
		if !ok && v != nil {
			return fmt.Errorf("clusters: cannot encode %T as tier labels", v)
		}
		if len(labels) > 0xFF {
			return &codec.RangeError{Type: codec.TypeUint8, Value: len(labels), Reason: "too many tier labels"}
		}
		scratch := codec.NewSerializer()
		scratch.WriteUint8(uint8(len(labels)))
		for _, l := range labels {
			scratch.WriteUint8(l.TierID)
			if err := scratch.WriteOctets(l.Label); err != nil {
				return err
			}
		}
		s.WriteBytes(scratch.Bytes())
		return nil
	},
	Decode: func(d *codec.Deserializer) (any, error) {
		n, err := d.ReadUint8()
		if err != nil {
			return nil, err
		}
		labels := make([]TierLabel, 0, n)
		for i := 0; i < int(n); i++ {
			var l TierLabel
			if l.TierID, err = d.ReadUint8(); err != nil {
				return nil, err
			}
			if l.Label, err = d.ReadOctets(); err != nil {
				return nil, err
			}
			labels = append(labels, l)
		}
		return labels, nil
	},
}

var Price = zcl.ClusterDef{
	ID:   0x0700,
	Name: "Price",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "Tier1PriceLabel", Type: codec.TypeOctetStr, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0001, Name: "Tier2PriceLabel", Type: codec.TypeOctetStr, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0615, Name: "CommodityType", Type: codec.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x0616, Name: "StandingCharge", Type: codec.TypeUint32, Access: zcl.AccessRead},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "GetCurrentPrice", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("commandOptions", codec.TypeBitmap8)}},
		{ID: 0x01, Name: "GetScheduledPrices", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("startTime", codec.TypeUTC), field("numberOfEvents", codec.TypeUint8)}},
		{ID: 0x02, Name: "PriceAcknowledgement", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{
			field("providerID", codec.TypeUint32),
			field("issuerEventID", codec.TypeUint32),
			field("priceAckTime", codec.TypeUTC),
			field("control", codec.TypeBitmap8),
		}},
		{ID: 0x0A, Name: "GetTierLabels", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("issuerTariffID", codec.TypeUint32)}},
		{ID: 0x08, Name: "PublishTierLabels", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{
			field("providerID", codec.TypeUint32),
			field("issuerEventID", codec.TypeUint32),
			field("issuerTariffID", codec.TypeUint32),
			field("commandIndex", codec.TypeUint8),
			field("numberOfCommands", codec.TypeUint8),
			{Name: "tierLabels", Record: tierLabels},
		}},
	},
}
