package clusters

import (
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

var LevelControl = zcl.ClusterDef{
	ID:   0x0008,
	Name: "Level Control",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "CurrentLevel", Type: codec.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "RemainingTime", Type: codec.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x000F, Name: "Options", Type: codec.TypeBitmap8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0010, Name: "OnOffTransitionTime", Type: codec.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0011, Name: "OnLevel", Type: codec.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x4000, Name: "StartUpCurrentLevel", Type: codec.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "MoveToLevel", Direction: zcl.ClientToServer, Fields: withOptions(field("level", codec.TypeUint8), field("transitionTime", codec.TypeUint16))},
		{ID: 0x01, Name: "Move", Direction: zcl.ClientToServer, Fields: withOptions(field("moveMode", codec.TypeEnum8), field("rate", codec.TypeUint8))},
		{ID: 0x02, Name: "Step", Direction: zcl.ClientToServer, Fields: withOptions(field("stepMode", codec.TypeEnum8), field("stepSize", codec.TypeUint8), field("transitionTime", codec.TypeUint16))},
		{ID: 0x03, Name: "Stop", Direction: zcl.ClientToServer, Fields: withOptions()},
		{ID: 0x04, Name: "MoveToLevelWithOnOff", Direction: zcl.ClientToServer, Fields: withOptions(field("level", codec.TypeUint8), field("transitionTime", codec.TypeUint16))},
		{ID: 0x05, Name: "MoveWithOnOff", Direction: zcl.ClientToServer, Fields: withOptions(field("moveMode", codec.TypeEnum8), field("rate", codec.TypeUint8))},
		{ID: 0x06, Name: "StepWithOnOff", Direction: zcl.ClientToServer, Fields: withOptions(field("stepMode", codec.TypeEnum8), field("stepSize", codec.TypeUint8), field("transitionTime", codec.TypeUint16))},
		{ID: 0x07, Name: "StopWithOnOff", Direction: zcl.ClientToServer, Fields: withOptions()},
	},
}
