package clusters

import (
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

var OnOff = zcl.ClusterDef{
	ID:   0x0006,
	Name: "On/Off",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "OnOff", Type: codec.TypeBool, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x4000, Name: "GlobalSceneControl", Type: codec.TypeBool, Access: zcl.AccessRead},
		{ID: 0x4001, Name: "OnTime", Type: codec.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x4002, Name: "OffWaitTime", Type: codec.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x4003, Name: "StartUpOnOff", Type: codec.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "Off", Direction: zcl.ClientToServer},
		{ID: 0x01, Name: "On", Direction: zcl.ClientToServer},
		{ID: 0x02, Name: "Toggle", Direction: zcl.ClientToServer},
		{ID: 0x40, Name: "OffWithEffect", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("effectIdentifier", codec.TypeEnum8), field("effectVariant", codec.TypeUint8)}},
		{ID: 0x41, Name: "OnWithRecallGlobalScene", Direction: zcl.ClientToServer},
		{ID: 0x42, Name: "OnWithTimedOff", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("onOffControl", codec.TypeBitmap8), field("onTime", codec.TypeUint16), field("offWaitTime", codec.TypeUint16)}},
	},
}
