package clusters

import (
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

var ColorControl = zcl.ClusterDef{
	ID:   0x0300,
	Name: "Color Control",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "CurrentHue", Type: codec.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "CurrentSaturation", Type: codec.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0002, Name: "RemainingTime", Type: codec.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x0003, Name: "CurrentX", Type: codec.TypeUint16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0004, Name: "CurrentY", Type: codec.TypeUint16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0007, Name: "ColorTemperatureMireds", Type: codec.TypeUint16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0008, Name: "ColorMode", Type: codec.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x000F, Name: "Options", Type: codec.TypeBitmap8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x4001, Name: "EnhancedCurrentHue", Type: codec.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x4002, Name: "EnhancedColorMode", Type: codec.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x400A, Name: "ColorCapabilities", Type: codec.TypeBitmap16, Access: zcl.AccessRead},
		{ID: 0x400B, Name: "ColorTempPhysicalMinMireds", Type: codec.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x400C, Name: "ColorTempPhysicalMaxMireds", Type: codec.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x400D, Name: "CoupleColorTempToLevelMinMireds", Type: codec.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x4010, Name: "StartUpColorTemperatureMireds", Type: codec.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "MoveToHue", Direction: zcl.ClientToServer, Fields: withOptions(field("hue", codec.TypeUint8), field("direction", codec.TypeEnum8), field("transitionTime", codec.TypeUint16))},
		{ID: 0x01, Name: "MoveHue", Direction: zcl.ClientToServer, Fields: withOptions(field("moveMode", codec.TypeEnum8), field("rate", codec.TypeUint8))},
		{ID: 0x02, Name: "StepHue", Direction: zcl.ClientToServer, Fields: withOptions(field("stepMode", codec.TypeEnum8), field("stepSize", codec.TypeUint8), field("transitionTime", codec.TypeUint8))},
		{ID: 0x03, Name: "MoveToSaturation", Direction: zcl.ClientToServer, Fields: withOptions(field("saturation", codec.TypeUint8), field("transitionTime", codec.TypeUint16))},
		{ID: 0x04, Name: "MoveSaturation", Direction: zcl.ClientToServer, Fields: withOptions(field("moveMode", codec.TypeEnum8), field("rate", codec.TypeUint8))},
		{ID: 0x05, Name: "StepSaturation", Direction: zcl.ClientToServer, Fields: withOptions(field("stepMode", codec.TypeEnum8), field("stepSize", codec.TypeUint8), field("transitionTime", codec.TypeUint8))},
		{ID: 0x06, Name: "MoveToHueAndSaturation", Direction: zcl.ClientToServer, Fields: withOptions(field("hue", codec.TypeUint8), field("saturation", codec.TypeUint8), field("transitionTime", codec.TypeUint16))},
		{ID: 0x07, Name: "MoveToColor", Direction: zcl.ClientToServer, Fields: withOptions(field("colorX", codec.TypeUint16), field("colorY", codec.TypeUint16), field("transitionTime", codec.TypeUint16))},
		{ID: 0x08, Name: "MoveColor", Direction: zcl.ClientToServer, Fields: withOptions(field("rateX", codec.TypeInt16), field("rateY", codec.TypeInt16))},
		{ID: 0x09, Name: "StepColor", Direction: zcl.ClientToServer, Fields: withOptions(field("stepX", codec.TypeInt16), field("stepY", codec.TypeInt16), field("transitionTime", codec.TypeUint16))},
		{ID: 0x0A, Name: "MoveToColorTemperature", Direction: zcl.ClientToServer, Fields: withOptions(field("colorTemperature", codec.TypeUint16), field("transitionTime", codec.TypeUint16))},
		{ID: 0x47, Name: "StopMoveStep", Direction: zcl.ClientToServer, Fields: withOptions()},
		{ID: 0x4B, Name: "MoveColorTemperature", Direction: zcl.ClientToServer, Fields: withOptions(field("moveMode", codec.TypeEnum8), field("rate", codec.TypeUint16), field("colorTemperatureMinimum", codec.TypeUint16), field("colorTemperatureMaximum", codec.TypeUint16))},
		{ID: 0x4C, Name: "StepColorTemperature", Direction: zcl.ClientToServer, Fields: withOptions(field("stepMode", codec.TypeEnum8), field("stepSize", codec.TypeUint16), field("transitionTime", codec.TypeUint16), field("colorTemperatureMinimum", codec.TypeUint16), field("colorTemperatureMaximum", codec.TypeUint16))},
	},
}
