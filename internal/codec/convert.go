package codec

import (
	"math"
	"reflect"
)

// Values handed to Write may come from typed Go code, JSON (float64), YAML
// (int) or Lua (float64). Named integer types such as enum constants are
// accepted through their underlying kind.

func toBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if u, neg, ok := toUint64(v); ok && !neg {
		return u != 0, true
	}
	return false, false
}

// toUint64 converts v to an unsigned value. neg is set for negative or
// fractional input, which no unsigned type can hold.
func toUint64(v any) (u uint64, neg bool, ok bool) {
	switch val := v.(type) {
	case uint8:
		return uint64(val), false, true
	case uint16:
		return uint64(val), false, true
	case uint32:
		return uint64(val), false, true
	case uint64:
		return val, false, true
	case int:
		if val < 0 {
			return 0, true, true
		}
		return uint64(val), false, true
	case rawBitser:
		return val.rawBits(), false, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), false, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i := rv.Int(); i >= 0 {
			return uint64(i), false, true
		}
		return 0, true, true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
			return 0, true, true
		}
		return uint64(f), false, true
	}
	return 0, false, false
}

// toInt64 converts v for a signed field. over is set when v has no exact
// int64 representation.
func toInt64(v any) (i int64, over bool, ok bool) {
	switch val := v.(type) {
	case int:
		return int64(val), false, true
	case int8:
		return int64(val), false, true
	case int16:
		return int64(val), false, true
	case int32:
		return int64(val), false, true
	case int64:
		return val, false, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), false, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u), false, true
		}
		return 0, true, true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, true, true
		}
		return int64(f), false, true
	}
	return 0, false, false
}

func toFloat64(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

// AsUint64 converts a decoded or loosely typed value to uint64.
func AsUint64(v any) (uint64, bool) {
	u, neg, ok := toUint64(v)
	return u, ok && !neg
}

// AsInt64 converts a decoded or loosely typed value to int64.
func AsInt64(v any) (int64, bool) {
	i, over, ok := toInt64(v)
	return i, ok && !over
}

// AsFloat64 converts any numeric value to float64.
func AsFloat64(v any) (float64, bool) { return toFloat64(v) }

// AsBool converts a bool or numeric value to bool.
func AsBool(v any) (bool, bool) { return toBool(v) }
