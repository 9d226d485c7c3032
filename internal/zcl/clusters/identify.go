package clusters

import (
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

var Identify = zcl.ClusterDef{
	ID:   0x0003,
	Name: "Identify",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "IdentifyTime", Type: codec.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "Identify", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("identifyTime", codec.TypeUint16)}},
		{ID: 0x01, Name: "IdentifyQuery", Direction: zcl.ClientToServer},
		{ID: 0x40, Name: "TriggerEffect", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("effectIdentifier", codec.TypeEnum8), field("effectVariant", codec.TypeEnum8)}},
		{ID: 0x00, Name: "IdentifyQueryResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("identifyTimeout", codec.TypeUint16)}},
	},
}
