package clusters

import (
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

var Groups = zcl.ClusterDef{
	ID:   0x0004,
	Name: "Groups",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "NameSupport", Type: codec.TypeBitmap8, Access: zcl.AccessRead},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x00, Name: "AddGroup", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("groupID", codec.TypeUint16), field("groupName", codec.TypeCharStr)}},
		{ID: 0x01, Name: "ViewGroup", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("groupID", codec.TypeUint16)}},
		{ID: 0x02, Name: "GetGroupMembership", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{list8("groupList", codec.TypeUint16)}},
		{ID: 0x03, Name: "RemoveGroup", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("groupID", codec.TypeUint16)}},
		{ID: 0x04, Name: "RemoveAllGroups", Direction: zcl.ClientToServer},
		{ID: 0x05, Name: "AddGroupIfIdentifying", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("groupID", codec.TypeUint16), field("groupName", codec.TypeCharStr)}},
		{ID: 0x00, Name: "AddGroupResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("status", codec.TypeEnum8), field("groupID", codec.TypeUint16)}},
		{ID: 0x01, Name: "ViewGroupResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("status", codec.TypeEnum8), field("groupID", codec.TypeUint16), field("groupName", codec.TypeCharStr)}},
		{ID: 0x02, Name: "GetGroupMembershipResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("capacity", codec.TypeUint8), list8("groupList", codec.TypeUint16)}},
		{ID: 0x03, Name: "RemoveGroupResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("status", codec.TypeEnum8), field("groupID", codec.TypeUint16)}},
	},
}
