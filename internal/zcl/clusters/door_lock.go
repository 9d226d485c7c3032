package clusters

import (
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

var DoorLock = zcl.ClusterDef{
	ID:   0x0101,
	Name: "Door Lock",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "LockState", Type: codec.TypeEnum8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "LockType", Type: codec.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x0002, Name: "ActuatorEnabled", Type: codec.TypeBool, Access: zcl.AccessRead},
		{ID: 0x0003, Name: "DoorState", Type: codec.TypeEnum8, Access: zcl.AccessRead | zcl.AccessReport},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "LockDoor", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{optional("pinCode", codec.TypeOctetStr)}},
		{ID: 0x01, Name: "UnlockDoor", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{optional("pinCode", codec.TypeOctetStr)}},
		{ID: 0x02, Name: "Toggle", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{optional("pinCode", codec.TypeOctetStr)}},
		{ID: 0x00, Name: "LockDoorResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("status", codec.TypeEnum8)}},
		{ID: 0x01, Name: "UnlockDoorResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("status", codec.TypeEnum8)}},
		{ID: 0x02, Name: "ToggleResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("status", codec.TypeEnum8)}},
		{ID: 0x20, Name: "OperationEventNotification", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{
			field("operationEventSource", codec.TypeUint8),
			field("operationEventCode", codec.TypeUint8),
			field("userID", codec.TypeUint16),
			field("pin", codec.TypeOctetStr),
			field("localTime", codec.TypeUTC),
			optional("data", codec.TypeCharStr),
		}},
	},
}
