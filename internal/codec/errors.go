package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrRange is matched by errors for values outside a field's declared width.
	ErrRange = errors.New("value out of range")
	// ErrFormat is matched by errors for truncated or malformed input.
	ErrFormat = errors.New("malformed data")
)

// RangeError reports a value that cannot be represented by its field type.
type RangeError struct {
	Type   DataType
	Value  any
	Reason string
}

func (e *RangeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("codec: %s value %v: %s", e.Type, e.Value, e.Reason)
	}
	return fmt.Sprintf("codec: value %v overflows %s", e.Value, e.Type)
}

func (e *RangeError) Is(target error) bool { return target == ErrRange }

// FormatError reports input that ended early or could not be parsed.
type FormatError struct {
	Type   DataType
	Need   int
	Have   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("codec: %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("codec: not enough data for %s: need %d, have %d", e.Type, e.Need, e.Have)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// UnknownValue records an enumeration value with no known meaning. It is kept
// as a raw integer rather than failing the decode.
type UnknownValue struct {
	Type DataType
	Raw  uint64
}

func (u UnknownValue) String() string {
	return fmt.Sprintf("%s(0x%X)", u.Type, u.Raw)
}

// Invalid is a decoded field carrying its type's invalid marker: a string
// length of all ones, or a boolean byte other than 0 and 1. Writing it as the
// same type reproduces the original bytes.
type Invalid struct {
	Type DataType
	Raw  uint8 // boolean byte; unused for strings
}

func (v Invalid) String() string {
	if v.Type == TypeBool {
		return fmt.Sprintf("%s(invalid 0x%02X)", v.Type, v.Raw)
	}
	return fmt.Sprintf("%s(invalid)", v.Type)
}

// MarshalJSON encodes an invalid value as null.
func (v Invalid) MarshalJSON() ([]byte, error) { return []byte("null"), nil }
