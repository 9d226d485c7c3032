// Package codec encodes and decodes typed protocol fields to and from
// little-endian byte buffers.
//
// Field types are identified by their ZCL data type id. The same ids drive
// ZCL command payloads and the co-processor structures carried around them.
package codec

import "fmt"

// DataType identifies the wire representation of a field.
type DataType uint8

// ZCL data type IDs
const (
	TypeNoData     DataType = 0x00
	TypeBool       DataType = 0x10
	TypeBitmap8    DataType = 0x18
	TypeBitmap16   DataType = 0x19
	TypeBitmap24   DataType = 0x1A
	TypeBitmap32   DataType = 0x1B
	TypeUint8      DataType = 0x20
	TypeUint16     DataType = 0x21
	TypeUint24     DataType = 0x22
	TypeUint32     DataType = 0x23
	TypeUint40     DataType = 0x24
	TypeUint48     DataType = 0x25
	TypeUint64     DataType = 0x27
	TypeInt8       DataType = 0x28
	TypeInt16      DataType = 0x29
	TypeInt24      DataType = 0x2A
	TypeInt32      DataType = 0x2B
	TypeEnum8      DataType = 0x30
	TypeEnum16     DataType = 0x31
	TypeFloat32    DataType = 0x39
	TypeFloat64    DataType = 0x3A
	TypeOctetStr   DataType = 0x41
	TypeCharStr    DataType = 0x42
	TypeOctetStr16 DataType = 0x43
	TypeCharStr16  DataType = 0x44
	TypeUTC        DataType = 0xE2 // seconds since 2000-01-01
	TypeClusterID  DataType = 0xE8
	TypeAttrID     DataType = 0xE9
	TypeEUI64      DataType = 0xF0
)

// Size returns the fixed size in bytes of a type, or -1 for variable-length types.
func (t DataType) Size() int {
	switch t {
	case TypeNoData:
		return 0
	case TypeBool, TypeUint8, TypeInt8, TypeEnum8, TypeBitmap8:
		return 1
	case TypeUint16, TypeInt16, TypeEnum16, TypeBitmap16, TypeClusterID, TypeAttrID:
		return 2
	case TypeUint24, TypeInt24, TypeBitmap24:
		return 3
	case TypeUint32, TypeInt32, TypeBitmap32, TypeFloat32, TypeUTC:
		return 4
	case TypeUint40:
		return 5
	case TypeUint48:
		return 6
	case TypeUint64, TypeFloat64, TypeEUI64:
		return 8
	default:
		return -1
	}
}

// Valid reports whether t is one of the supported field types.
func (t DataType) Valid() bool {
	switch t {
	case TypeOctetStr, TypeCharStr, TypeOctetStr16, TypeCharStr16:
		return true
	}
	return t.Size() >= 0
}

// String returns the short ZCL name of the type.
func (t DataType) String() string {
	switch t {
	case TypeNoData:
		return "nodata"
	case TypeBool:
		return "bool"
	case TypeBitmap8:
		return "map8"
	case TypeBitmap16:
		return "map16"
	case TypeBitmap24:
		return "map24"
	case TypeBitmap32:
		return "map32"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeUint24:
		return "uint24"
	case TypeUint32:
		return "uint32"
	case TypeUint40:
		return "uint40"
	case TypeUint48:
		return "uint48"
	case TypeUint64:
		return "uint64"
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt24:
		return "int24"
	case TypeInt32:
		return "int32"
	case TypeEnum8:
		return "enum8"
	case TypeEnum16:
		return "enum16"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	case TypeOctetStr:
		return "octstr"
	case TypeCharStr:
		return "string"
	case TypeOctetStr16:
		return "octstr16"
	case TypeCharStr16:
		return "string16"
	case TypeUTC:
		return "UTC"
	case TypeClusterID:
		return "clusterId"
	case TypeAttrID:
		return "attrId"
	case TypeEUI64:
		return "EUI64"
	default:
		return fmt.Sprintf("0x%02X", uint8(t))
	}
}

// unsignedMax returns the largest value an unsigned-backed type can hold.
func (t DataType) unsignedMax() (uint64, bool) {
	switch t {
	case TypeUint8, TypeEnum8, TypeBitmap8:
		return 0xFF, true
	case TypeUint16, TypeEnum16, TypeBitmap16, TypeClusterID, TypeAttrID:
		return 0xFFFF, true
	case TypeUint24, TypeBitmap24:
		return 0xFFFFFF, true
	case TypeUint32, TypeBitmap32, TypeUTC:
		return 0xFFFFFFFF, true
	case TypeUint40:
		return 0xFFFFFFFFFF, true
	case TypeUint48:
		return 0xFFFFFFFFFFFF, true
	case TypeUint64:
		return ^uint64(0), true
	}
	return 0, false
}

// signedRange returns the bounds of a signed type.
func (t DataType) signedRange() (int64, int64, bool) {
	switch t {
	case TypeInt8:
		return -128, 127, true
	case TypeInt16:
		return -32768, 32767, true
	case TypeInt24:
		return -8388608, 8388607, true
	case TypeInt32:
		return -2147483648, 2147483647, true
	}
	return 0, 0, false
}

// ArrayPrefix describes how the element count of an array field is carried.
type ArrayPrefix uint8

const (
	// NoArray marks a scalar field.
	NoArray ArrayPrefix = iota
	// Prefix8 arrays start with a uint8 element count.
	Prefix8
	// Prefix16 arrays start with a uint16 element count.
	Prefix16
	// Fixed arrays carry no count; the reader supplies it.
	Fixed
	// Remaining arrays run to the end of the buffer.
	Remaining
)

func (p ArrayPrefix) String() string {
	switch p {
	case NoArray:
		return "scalar"
	case Prefix8:
		return "prefix8"
	case Prefix16:
		return "prefix16"
	case Fixed:
		return "fixed"
	case Remaining:
		return "remaining"
	default:
		return fmt.Sprintf("prefix(%d)", uint8(p))
	}
}
