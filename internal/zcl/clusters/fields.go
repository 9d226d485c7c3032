// Package clusters holds the bundled ZCL cluster catalog.
package clusters

import (
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

func field(name string, t codec.DataType) zcl.FieldDef {
	return zcl.FieldDef{Name: name, Type: t}
}

func optional(name string, t codec.DataType) zcl.FieldDef {
	return zcl.FieldDef{Name: name, Type: t, Optional: true}
}

func list8(name string, elem codec.DataType) zcl.FieldDef {
	return zcl.FieldDef{Name: name, Type: elem, Array: codec.Prefix8}
}

// withOptions appends the trailing options mask/override pair used by the
// lighting clusters.
func withOptions(fields ...zcl.FieldDef) []zcl.FieldDef {
	return append(fields,
		optional("optionsMask", codec.TypeBitmap8),
		optional("optionsOverride", codec.TypeBitmap8),
	)
}

// All returns the bundled cluster definitions.
func All() []zcl.ClusterDef {
	return []zcl.ClusterDef{
		Basic, Identify, Groups, OnOff, LevelControl, ColorControl,
		OTAUpgrade, IASZone, DoorLock, Price,
	}
}

// RegisterAll adds the bundled catalog to reg.
func RegisterAll(reg *zcl.Registry) {
	for _, c := range All() {
		reg.Register(c)
	}
}
