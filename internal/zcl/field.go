package zcl

import (
	"fmt"

	"zigbee-go-host/internal/codec"
)

// FieldDef describes one payload field of a command.
type FieldDef struct {
	Name  string            `json:"name"`
	Type  codec.DataType    `json:"type"`
	Array codec.ArrayPrefix `json:"array,omitempty"`
	Count int               `json:"count,omitempty"` // element count for codec.Fixed
	// Record encodes compound fields. Type and Array are ignored when set.
	Record *RecordCodec `json:"-"`
	// Optional fields may be omitted at the end of a payload.
	Optional bool `json:"optional,omitempty"`
}

// RecordCodec encodes a compound field such as a list of attribute records.
// Encode must accept nil as the empty value.
type RecordCodec struct {
	Name   string
	Encode func(s *codec.Serializer, v any) error
	Decode func(d *codec.Deserializer) (any, error)
}

// Check validates v against the field without producing output.
func (f *FieldDef) Check(v any) error {
	var s codec.Serializer
	return f.encode(&s, v)
}

func (f *FieldDef) encode(s *codec.Serializer, v any) error {
	switch {
	case f.Record != nil:
		return f.Record.Encode(s, v)
	case f.Array == codec.NoArray:
		return s.Write(f.Type, v)
	case f.Array == codec.Fixed:
		if n := codec.ArrayLen(v); n != f.Count {
			return &codec.RangeError{Type: f.Type, Value: n, Reason: fmt.Sprintf("%s needs exactly %d elements", f.Name, f.Count)}
		}
	}
	return s.WriteArray(f.Type, f.Array, v)
}

// encodeZero writes the value an absent field stands for.
func (f *FieldDef) encodeZero(s *codec.Serializer) error {
	switch {
	case f.Record != nil:
		return f.Record.Encode(s, nil)
	case f.Array == codec.Fixed:
		zeros := make([]any, f.Count)
		for i := range zeros {
			zeros[i] = zeroValue(f.Type)
		}
		return s.WriteArray(f.Type, f.Array, zeros)
	case f.Array != codec.NoArray:
		return s.WriteArray(f.Type, f.Array, nil)
	}
	return s.Write(f.Type, zeroValue(f.Type))
}

func (f *FieldDef) decode(d *codec.Deserializer) (any, error) {
	switch {
	case f.Record != nil:
		return f.Record.Decode(d)
	case f.Array == codec.NoArray:
		return d.Read(f.Type)
	}
	items, err := d.ReadArray(f.Type, f.Array, f.Count)
	if err != nil {
		return nil, err
	}
	return typedArray(items), nil
}

func (f FieldDef) String() string {
	switch {
	case f.Record != nil:
		return f.Record.Name
	case f.Array == codec.NoArray:
		return f.Type.String()
	case f.Array == codec.Fixed:
		return fmt.Sprintf("[%d]%s", f.Count, f.Type)
	default:
		return "[]" + f.Type.String()
	}
}

func zeroValue(t codec.DataType) any {
	switch t {
	case codec.TypeCharStr, codec.TypeCharStr16, codec.TypeOctetStr, codec.TypeOctetStr16:
		return nil
	case codec.TypeEUI64:
		return codec.IEEEAddress{}
	}
	return 0
}

// typedArray turns decoded elements into the slice type a caller would have
// built by hand, so decoded commands compare equal to constructed ones.
func typedArray(items []any) any {
	if len(items) == 0 {
		return items
	}
	switch items[0].(type) {
	case uint8:
		return collect[uint8](items)
	case uint16:
		return collect[uint16](items)
	case uint32:
		return collect[uint32](items)
	case uint64:
		return collect[uint64](items)
	case int8:
		return collect[int8](items)
	case int16:
		return collect[int16](items)
	case int32:
		return collect[int32](items)
	case bool:
		return collect[bool](items)
	case string:
		return collect[string](items)
	case codec.IEEEAddress:
		return collect[codec.IEEEAddress](items)
	}
	return items
}

// collect keeps items as []any when any element is of another type, such as
// a codec.Invalid among strings.
func collect[T any](items []any) any {
	out := make([]T, len(items))
	for i, v := range items {
		t, ok := v.(T)
		if !ok {
			return items
		}
		out[i] = t
	}
	return out
}
