package clusters

import (
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

var IASZone = zcl.ClusterDef{
	ID:   0x0500,
	Name: "IAS Zone",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "ZoneState", Type: codec.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x0001, Name: "ZoneType", Type: codec.TypeEnum16, Access: zcl.AccessRead},
		{ID: 0x0002, Name: "ZoneStatus", Type: codec.TypeBitmap16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0010, Name: "IASCIEAddress", Type: codec.TypeEUI64, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0011, Name: "ZoneID", Type: codec.TypeUint8, Access: zcl.AccessRead},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "ZoneEnrollResponse", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("enrollResponseCode", codec.TypeEnum8), field("zoneID", codec.TypeUint8)}},
		{ID: 0x00, Name: "ZoneStatusChangeNotification", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("zoneStatus", codec.TypeBitmap16), field("extendedStatus", codec.TypeBitmap8), field("zoneID", codec.TypeUint8), field("delay", codec.TypeUint16)}},
		{ID: 0x01, Name: "ZoneEnrollRequest", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("zoneType", codec.TypeEnum16), field("manufacturerCode", codec.TypeUint16)}},
	},
}
