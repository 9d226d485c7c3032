package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Deserializer reads typed fields from a byte buffer. A read that fails leaves
// the cursor where it was.
type Deserializer struct {
	buf     []byte
	pos     int
	unknown []UnknownValue
}

func NewDeserializer(b []byte) *Deserializer {
	return &Deserializer{buf: b}
}

// Position returns the cursor offset.
func (d *Deserializer) Position() int { return d.pos }

// Remaining returns the number of unread bytes.
func (d *Deserializer) Remaining() int { return len(d.buf) - d.pos }

// IsEnd reports whether the buffer has been consumed.
func (d *Deserializer) IsEnd() bool { return d.pos >= len(d.buf) }

// Rest consumes and returns every unread byte.
func (d *Deserializer) Rest() []byte {
	b := d.buf[d.pos:]
	d.pos = len(d.buf)
	return b
}

// Unknown returns the enumeration values read so far that had no known meaning.
func (d *Deserializer) Unknown() []UnknownValue { return d.unknown }

// peek returns the next n bytes without consuming them.
func (d *Deserializer) peek(t DataType, n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, &FormatError{Type: t, Need: n, Have: d.Remaining()}
	}
	return d.buf[d.pos : d.pos+n], nil
}

func (d *Deserializer) take(t DataType, n int) ([]byte, error) {
	b, err := d.peek(t, n)
	if err != nil {
		return nil, err
	}
	d.pos += n
	return b, nil
}

func (d *Deserializer) readUint(t DataType) (uint64, error) {
	n := t.Size()
	b, err := d.take(t, n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (d *Deserializer) readInt(t DataType) (int64, error) {
	u, err := d.readUint(t)
	if err != nil {
		return 0, err
	}
	shift := 64 - 8*t.Size()
	return int64(u<<shift) >> shift, nil
}

func (d *Deserializer) ReadUint8() (uint8, error) {
	b, err := d.take(TypeUint8, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Deserializer) ReadUint16() (uint16, error) {
	b, err := d.take(TypeUint16, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Deserializer) ReadUint24() (uint32, error) {
	v, err := d.readUint(TypeUint24)
	return uint32(v), err
}

func (d *Deserializer) ReadUint32() (uint32, error) {
	b, err := d.take(TypeUint32, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Deserializer) ReadUint40() (uint64, error) { return d.readUint(TypeUint40) }
func (d *Deserializer) ReadUint48() (uint64, error) { return d.readUint(TypeUint48) }

func (d *Deserializer) ReadUint64() (uint64, error) {
	b, err := d.take(TypeUint64, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Deserializer) ReadInt8() (int8, error) {
	v, err := d.readInt(TypeInt8)
	return int8(v), err
}

func (d *Deserializer) ReadInt16() (int16, error) {
	v, err := d.readInt(TypeInt16)
	return int16(v), err
}

func (d *Deserializer) ReadInt24() (int32, error) {
	v, err := d.readInt(TypeInt24)
	return int32(v), err
}

func (d *Deserializer) ReadInt32() (int32, error) {
	v, err := d.readInt(TypeInt32)
	return int32(v), err
}

// ReadBool accepts only 0 and 1. Read keeps other bytes as Invalid.
func (d *Deserializer) ReadBool() (bool, error) {
	b, err := d.peek(TypeBool, 1)
	if err != nil {
		return false, err
	}
	if b[0] > 1 {
		return false, &FormatError{Type: TypeBool, Reason: fmt.Sprintf("invalid boolean 0x%02X", b[0])}
	}
	d.pos++
	return b[0] == 1, nil
}

func (d *Deserializer) readBoolValue() (any, error) {
	b, err := d.take(TypeBool, 1)
	if err != nil {
		return nil, err
	}
	if b[0] > 1 {
		return Invalid{Type: TypeBool, Raw: b[0]}, nil
	}
	return b[0] == 1, nil
}

// ReadEnum8 reads an 8-bit enumeration. A value for which known returns false
// is still returned and is recorded in Unknown.
func (d *Deserializer) ReadEnum8(known func(uint8) bool) (uint8, error) {
	b, err := d.take(TypeEnum8, 1)
	if err != nil {
		return 0, err
	}
	if known != nil && !known(b[0]) {
		d.unknown = append(d.unknown, UnknownValue{Type: TypeEnum8, Raw: uint64(b[0])})
	}
	return b[0], nil
}

// ReadEnum16 is ReadEnum8 for 16-bit enumerations.
func (d *Deserializer) ReadEnum16(known func(uint16) bool) (uint16, error) {
	b, err := d.take(TypeEnum16, 2)
	if err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(b)
	if known != nil && !known(v) {
		d.unknown = append(d.unknown, UnknownValue{Type: TypeEnum16, Raw: uint64(v)})
	}
	return v, nil
}

// ReadBitmap reads a raw bitmap of type t.
func (d *Deserializer) ReadBitmap(t DataType) (uint64, error) {
	switch t {
	case TypeBitmap8, TypeBitmap16, TypeBitmap24, TypeBitmap32:
		return d.readUint(t)
	}
	return 0, fmt.Errorf("codec: %s is not a bitmap type", t)
}

func (d *Deserializer) ReadFloat32() (float32, error) {
	b, err := d.take(TypeFloat32, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (d *Deserializer) ReadFloat64() (float64, error) {
	b, err := d.take(TypeFloat64, 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func (d *Deserializer) ReadIEEE() (IEEEAddress, error) {
	var a IEEEAddress
	b, err := d.take(TypeEUI64, 8)
	if err != nil {
		return a, err
	}
	copy(a[:], b)
	return a, nil
}

// ReadBytes consumes exactly n bytes with no prefix.
func (d *Deserializer) ReadBytes(n int) ([]byte, error) {
	b, err := d.take(TypeOctetStr, n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// readVar reads a length-prefixed string body. The all-ones length marks an
// invalid value, reported with an empty body.
func (d *Deserializer) readVar(t DataType) ([]byte, bool, error) {
	long := t == TypeCharStr16 || t == TypeOctetStr16
	hdr := 1
	if long {
		hdr = 2
	}
	p, err := d.peek(t, hdr)
	if err != nil {
		return nil, false, err
	}
	n := int(p[0])
	invalid := n == 0xFF
	if long {
		n = int(binary.LittleEndian.Uint16(p))
		invalid = n == 0xFFFF
	}
	if invalid {
		d.pos += hdr
		return []byte{}, true, nil
	}
	if d.Remaining() < hdr+n {
		return nil, false, &FormatError{Type: t, Need: hdr + n, Have: d.Remaining()}
	}
	b := append([]byte(nil), d.buf[d.pos+hdr:d.pos+hdr+n]...)
	d.pos += hdr + n
	return b, false, nil
}

// The typed string readers return an invalid marker as an empty value. Read
// keeps it as Invalid.

func (d *Deserializer) ReadString() (string, error) {
	b, _, err := d.readVar(TypeCharStr)
	return string(b), err
}

func (d *Deserializer) ReadLongString() (string, error) {
	b, _, err := d.readVar(TypeCharStr16)
	return string(b), err
}

func (d *Deserializer) ReadOctets() ([]byte, error) {
	b, _, err := d.readVar(TypeOctetStr)
	return b, err
}

func (d *Deserializer) ReadLongOctets() ([]byte, error) {
	b, _, err := d.readVar(TypeOctetStr16)
	return b, err
}

// Read decodes one value of type t. The Go type of the result mirrors what
// Write accepts most naturally: uint8/uint16/uint32/uint64 by width for
// unsigned, bitmap and enum types, int8/int16/int32 for signed types, string
// for character strings, []byte for octet strings and IEEEAddress for EUI64.
func (d *Deserializer) Read(t DataType) (any, error) {
	switch t {
	case TypeNoData:
		return nil, nil
	case TypeBool:
		return d.readBoolValue()
	case TypeFloat32:
		return d.ReadFloat32()
	case TypeFloat64:
		return d.ReadFloat64()
	case TypeCharStr, TypeCharStr16, TypeOctetStr, TypeOctetStr16:
		b, invalid, err := d.readVar(t)
		switch {
		case err != nil:
			return nil, err
		case invalid:
			return Invalid{Type: t}, nil
		case t == TypeCharStr || t == TypeCharStr16:
			return string(b), nil
		}
		return b, nil
	case TypeEUI64:
		return d.ReadIEEE()
	case TypeInt8:
		return d.ReadInt8()
	case TypeInt16:
		return d.ReadInt16()
	case TypeInt24:
		return d.ReadInt24()
	case TypeInt32:
		return d.ReadInt32()
	}
	if _, ok := t.unsignedMax(); !ok {
		return nil, fmt.Errorf("codec: unsupported type %s", t)
	}
	u, err := d.readUint(t)
	if err != nil {
		return nil, err
	}
	switch n := t.Size(); {
	case n == 1:
		return uint8(u), nil
	case n == 2:
		return uint16(u), nil
	case n <= 4:
		return uint32(u), nil
	default:
		return u, nil
	}
}

// ReadArray decodes an array of elem. count is used only with Fixed. The
// cursor is restored if any element fails.
func (d *Deserializer) ReadArray(elem DataType, prefix ArrayPrefix, count int) ([]any, error) {
	start := d.pos
	fail := func(err error) ([]any, error) {
		d.pos = start
		return nil, err
	}
	switch prefix {
	case Prefix8:
		n, err := d.ReadUint8()
		if err != nil {
			return fail(err)
		}
		count = int(n)
	case Prefix16:
		n, err := d.ReadUint16()
		if err != nil {
			return fail(err)
		}
		count = int(n)
	case Fixed:
	case Remaining:
		count = -1
	default:
		return nil, fmt.Errorf("codec: %s is not an array prefix", prefix)
	}

	var out []any
	for i := 0; count < 0 || i < count; i++ {
		if count < 0 && d.IsEnd() {
			break
		}
		v, err := d.Read(elem)
		if err != nil {
			return fail(fmt.Errorf("codec: array element %d: %w", i, err))
		}
		out = append(out, v)
	}
	return out, nil
}
