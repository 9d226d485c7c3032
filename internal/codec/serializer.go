package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	maxShortString = 0xFE
	maxLongString  = 0xFFFE
)

// Serializer appends typed fields to a growing buffer. Multi-byte integers are
// written little-endian. A writer that rejects its value leaves the buffer
// untouched.
type Serializer struct {
	buf []byte
}

func NewSerializer() *Serializer {
	return &Serializer{buf: make([]byte, 0, 32)}
}

// Bytes returns the encoded buffer. The slice aliases internal storage.
func (s *Serializer) Bytes() []byte { return s.buf }

// Len returns the number of bytes written so far.
func (s *Serializer) Len() int { return len(s.buf) }

// Reset discards everything written.
func (s *Serializer) Reset() { s.buf = s.buf[:0] }

func (s *Serializer) putUint(v uint64, n int) {
	for i := 0; i < n; i++ {
		s.buf = append(s.buf, byte(v>>(8*i)))
	}
}

func (s *Serializer) WriteUint8(v uint8)   { s.buf = append(s.buf, v) }
func (s *Serializer) WriteUint16(v uint16) { s.buf = binary.LittleEndian.AppendUint16(s.buf, v) }
func (s *Serializer) WriteUint32(v uint32) { s.buf = binary.LittleEndian.AppendUint32(s.buf, v) }
func (s *Serializer) WriteUint64(v uint64) { s.buf = binary.LittleEndian.AppendUint64(s.buf, v) }

func (s *Serializer) WriteUint24(v uint32) error { return s.Write(TypeUint24, v) }
func (s *Serializer) WriteUint40(v uint64) error { return s.Write(TypeUint40, v) }
func (s *Serializer) WriteUint48(v uint64) error { return s.Write(TypeUint48, v) }

func (s *Serializer) WriteInt8(v int8)   { s.WriteUint8(uint8(v)) }
func (s *Serializer) WriteInt16(v int16) { s.WriteUint16(uint16(v)) }
func (s *Serializer) WriteInt32(v int32) { s.WriteUint32(uint32(v)) }

func (s *Serializer) WriteInt24(v int32) error { return s.Write(TypeInt24, v) }

func (s *Serializer) WriteBool(v bool) {
	if v {
		s.WriteUint8(1)
	} else {
		s.WriteUint8(0)
	}
}

func (s *Serializer) WriteEnum8(v uint8)   { s.WriteUint8(v) }
func (s *Serializer) WriteEnum16(v uint16) { s.WriteUint16(v) }

// WriteBitmap writes raw using the width of bitmap type t.
func (s *Serializer) WriteBitmap(t DataType, raw uint64) error {
	switch t {
	case TypeBitmap8, TypeBitmap16, TypeBitmap24, TypeBitmap32:
		return s.Write(t, raw)
	}
	return fmt.Errorf("codec: %s is not a bitmap type", t)
}

func (s *Serializer) WriteFloat32(v float32) { s.WriteUint32(math.Float32bits(v)) }
func (s *Serializer) WriteFloat64(v float64) { s.WriteUint64(math.Float64bits(v)) }

// WriteString writes a character string with a uint8 length prefix.
func (s *Serializer) WriteString(v string) error { return s.writeVar(TypeCharStr, []byte(v)) }

// WriteLongString writes a character string with a uint16 length prefix.
func (s *Serializer) WriteLongString(v string) error { return s.writeVar(TypeCharStr16, []byte(v)) }

// WriteOctets writes an octet string with a uint8 length prefix.
func (s *Serializer) WriteOctets(v []byte) error { return s.writeVar(TypeOctetStr, v) }

// WriteLongOctets writes an octet string with a uint16 length prefix.
func (s *Serializer) WriteLongOctets(v []byte) error { return s.writeVar(TypeOctetStr16, v) }

// WriteBytes appends b with no prefix.
func (s *Serializer) WriteBytes(b []byte) { s.buf = append(s.buf, b...) }

func (s *Serializer) WriteIEEE(a IEEEAddress) { s.buf = append(s.buf, a[:]...) }

func (s *Serializer) writeVar(t DataType, b []byte) error {
	if t == TypeCharStr || t == TypeOctetStr {
		if len(b) > maxShortString {
			return &RangeError{Type: t, Value: len(b), Reason: fmt.Sprintf("length exceeds %d", maxShortString)}
		}
		s.WriteUint8(uint8(len(b)))
	} else {
		if len(b) > maxLongString {
			return &RangeError{Type: t, Value: len(b), Reason: fmt.Sprintf("length exceeds %d", maxLongString)}
		}
		s.WriteUint16(uint16(len(b)))
	}
	s.buf = append(s.buf, b...)
	return nil
}

func (s *Serializer) writeInvalid(t DataType, v Invalid) error {
	if v.Type != t {
		return typeMismatch(t, v)
	}
	switch t {
	case TypeBool:
		s.WriteUint8(v.Raw)
	case TypeCharStr, TypeOctetStr:
		s.WriteUint8(0xFF)
	case TypeCharStr16, TypeOctetStr16:
		s.WriteUint16(0xFFFF)
	default:
		return typeMismatch(t, v)
	}
	return nil
}

// Write encodes v as type t. Any Go numeric kind is accepted for numeric
// types; the value must fit the declared width.
func (s *Serializer) Write(t DataType, v any) error {
	if inv, ok := v.(Invalid); ok {
		return s.writeInvalid(t, inv)
	}
	switch t {
	case TypeNoData:
		return nil
	case TypeBool:
		b, ok := toBool(v)
		if !ok {
			return typeMismatch(t, v)
		}
		s.WriteBool(b)
		return nil
	case TypeFloat32:
		f, ok := toFloat64(v)
		if !ok {
			return typeMismatch(t, v)
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return &RangeError{Type: t, Value: v}
		}
		s.WriteFloat32(float32(f))
		return nil
	case TypeFloat64:
		f, ok := toFloat64(v)
		if !ok {
			return typeMismatch(t, v)
		}
		s.WriteFloat64(f)
		return nil
	case TypeCharStr, TypeCharStr16, TypeOctetStr, TypeOctetStr16:
		switch val := v.(type) {
		case string:
			return s.writeVar(t, []byte(val))
		case []byte:
			return s.writeVar(t, val)
		case nil:
			return s.writeVar(t, nil)
		}
		return typeMismatch(t, v)
	case TypeEUI64:
		switch val := v.(type) {
		case IEEEAddress:
			s.WriteIEEE(val)
		case [8]byte:
			s.WriteIEEE(val)
		case string:
			a, err := ParseIEEE(val)
			if err != nil {
				return &RangeError{Type: t, Value: v, Reason: err.Error()}
			}
			s.WriteIEEE(a)
		default:
			u, neg, ok := toUint64(v)
			if !ok {
				return typeMismatch(t, v)
			}
			if neg {
				return &RangeError{Type: t, Value: v}
			}
			s.WriteUint64(u)
		}
		return nil
	}

	if max, ok := t.unsignedMax(); ok {
		u, neg, ok := toUint64(v)
		if !ok {
			return typeMismatch(t, v)
		}
		if neg || u > max {
			return &RangeError{Type: t, Value: v}
		}
		s.putUint(u, t.Size())
		return nil
	}
	if lo, hi, ok := t.signedRange(); ok {
		i, over, ok := toInt64(v)
		if !ok {
			return typeMismatch(t, v)
		}
		if over || i < lo || i > hi {
			return &RangeError{Type: t, Value: v}
		}
		s.putUint(uint64(i), t.Size())
		return nil
	}
	return fmt.Errorf("codec: unsupported type %s", t)
}

// WriteArray writes values as an array of elem. values may be []any or a
// slice of a concrete element type.
func (s *Serializer) WriteArray(elem DataType, prefix ArrayPrefix, values any) error {
	items, ok := toAnySlice(values)
	if !ok {
		return fmt.Errorf("codec: cannot encode %T as array of %s", values, elem)
	}
	scratch := Serializer{buf: make([]byte, 0, len(items)*max(elem.Size(), 1)+2)}
	switch prefix {
	case Prefix8:
		if len(items) > 0xFF {
			return &RangeError{Type: elem, Value: len(items), Reason: "array length exceeds 255"}
		}
		scratch.WriteUint8(uint8(len(items)))
	case Prefix16:
		if len(items) > 0xFFFF {
			return &RangeError{Type: elem, Value: len(items), Reason: "array length exceeds 65535"}
		}
		scratch.WriteUint16(uint16(len(items)))
	case Fixed, Remaining:
	default:
		return fmt.Errorf("codec: %s is not an array prefix", prefix)
	}
	for i, item := range items {
		if err := scratch.Write(elem, item); err != nil {
			return fmt.Errorf("codec: array element %d: %w", i, err)
		}
	}
	s.buf = append(s.buf, scratch.buf...)
	return nil
}

// CheckRange reports whether v can be written as type t without writing it.
func CheckRange(t DataType, v any) error {
	var s Serializer
	return s.Write(t, v)
}

// CheckArray is CheckRange for array fields.
func CheckArray(elem DataType, prefix ArrayPrefix, values any) error {
	var s Serializer
	return s.WriteArray(elem, prefix, values)
}

func typeMismatch(t DataType, v any) error {
	return fmt.Errorf("codec: cannot encode %T as %s", v, t)
}

// ArrayLen reports the element count of an array value accepted by
// WriteArray, or -1 when v is not one.
func ArrayLen(v any) int {
	items, ok := toAnySlice(v)
	if !ok {
		return -1
	}
	return len(items)
}

func toAnySlice(v any) ([]any, bool) {
	switch vals := v.(type) {
	case nil:
		return nil, true
	case []any:
		return vals, true
	case []uint8:
		return anySlice(vals), true
	case []uint16:
		return anySlice(vals), true
	case []uint32:
		return anySlice(vals), true
	case []uint64:
		return anySlice(vals), true
	case []int8:
		return anySlice(vals), true
	case []int16:
		return anySlice(vals), true
	case []int32:
		return anySlice(vals), true
	case []int:
		return anySlice(vals), true
	case []bool:
		return anySlice(vals), true
	case []string:
		return anySlice(vals), true
	case [][]byte:
		return anySlice(vals), true
	case []IEEEAddress:
		return anySlice(vals), true
	}
	return nil, false
}

func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
