package clusters

import (
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

var OTAUpgrade = zcl.ClusterDef{
	ID:   0x0019,
	Name: "OTA Upgrade",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "UpgradeServerID", Type: codec.TypeEUI64, Access: zcl.AccessRead},
		{ID: 0x0002, Name: "CurrentFileVersion", Type: codec.TypeUint32, Access: zcl.AccessRead},
		{ID: 0x0004, Name: "DownloadedFileVersion", Type: codec.TypeUint32, Access: zcl.AccessRead},
		{ID: 0x0006, Name: "ImageUpgradeStatus", Type: codec.TypeEnum8, Access: zcl.AccessRead},
	},
	Commands: []zcl.CommandDef{
		{ID: 0x01, Name: "QueryNextImageRequest", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("fieldControl", codec.TypeBitmap8), field("manufacturerCode", codec.TypeUint16), field("imageType", codec.TypeUint16), field("fileVersion", codec.TypeUint32), optional("hardwareVersion", codec.TypeUint16)}},
		{ID: 0x03, Name: "ImageBlockRequest", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("fieldControl", codec.TypeBitmap8), field("manufacturerCode", codec.TypeUint16), field("imageType", codec.TypeUint16), field("fileVersion", codec.TypeUint32), field("fileOffset", codec.TypeUint32), field("maximumDataSize", codec.TypeUint8), optional("requestNodeAddress", codec.TypeEUI64), optional("minimumBlockPeriod", codec.TypeUint16)}},
		{ID: 0x06, Name: "UpgradeEndRequest", Direction: zcl.ClientToServer, Fields: []zcl.FieldDef{field("status", codec.TypeEnum8), field("manufacturerCode", codec.TypeUint16), field("imageType", codec.TypeUint16), field("fileVersion", codec.TypeUint32)}},
		{ID: 0x02, Name: "QueryNextImageResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("status", codec.TypeEnum8), optional("manufacturerCode", codec.TypeUint16), optional("imageType", codec.TypeUint16), optional("fileVersion", codec.TypeUint32), optional("imageSize", codec.TypeUint32)}},
		{ID: 0x05, Name: "ImageBlockResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("status", codec.TypeEnum8), field("manufacturerCode", codec.TypeUint16), field("imageType", codec.TypeUint16), field("fileVersion", codec.TypeUint32), field("fileOffset", codec.TypeUint32), field("imageData", codec.TypeOctetStr)}},
		{ID: 0x07, Name: "UpgradeEndResponse", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("manufacturerCode", codec.TypeUint16), field("imageType", codec.TypeUint16), field("fileVersion", codec.TypeUint32), field("currentTime", codec.TypeUTC), field("upgradeTime", codec.TypeUTC)}},
		{ID: 0x00, Name: "ImageNotify", Direction: zcl.ServerToClient, Fields: []zcl.FieldDef{field("payloadType", codec.TypeEnum8), field("queryJitter", codec.TypeUint8), optional("manufacturerCode", codec.TypeUint16), optional("imageType", codec.TypeUint16), optional("newFileVersion", codec.TypeUint32)}},
	},
}
