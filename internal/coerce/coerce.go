// Package coerce converts loosely typed numeric values, such as JSON decoded
// float64 or named integer types, into canonical integer representations.
package coerce

import (
	"math"
	"reflect"
	"strconv"
)

// Integer splits an integral value into sign and magnitude so the full
// int64 and uint64 ranges share one representation.
func Integer(value any) (neg bool, mag uint64, ok bool) {
	switch v := value.(type) {
	case int:
		return fromInt64(int64(v))
	case int8:
		return fromInt64(int64(v))
	case int16:
		return fromInt64(int64(v))
	case int32:
		return fromInt64(int64(v))
	case int64:
		return fromInt64(v)
	case uint:
		return false, uint64(v), true
	case uint8:
		return false, uint64(v), true
	case uint16:
		return false, uint64(v), true
	case uint32:
		return false, uint64(v), true
	case uint64:
		return false, v, true
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case bool, string, nil:
		return false, 0, false
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fromInt64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return false, rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float())
	}
	return false, 0, false
}

func fromInt64(v int64) (bool, uint64, bool) {
	if v < 0 {
		return true, uint64(-(v + 1)) + 1, true
	}
	return false, uint64(v), true
}

func fromFloat(v float64) (bool, uint64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return false, 0, false
	}
	if v < 0 {
		if v < -(1 << 63) {
			return false, 0, false
		}
		return true, uint64(-v), true
	}
	if v >= 1<<64 {
		return false, 0, false
	}
	return false, uint64(v), true
}

// ToInt64 converts value to int64 when it fits.
func ToInt64(value any) (int64, bool) {
	neg, mag, ok := Integer(value)
	if !ok {
		return 0, false
	}
	if neg {
		if mag > 1<<63 {
			return 0, false
		}
		return int64(-mag), true
	}
	if mag > math.MaxInt64 {
		return 0, false
	}
	return int64(mag), true
}

// ToUint64 converts value to uint64 when it is a non-negative integer.
func ToUint64(value any) (uint64, bool) {
	neg, mag, ok := Integer(value)
	if !ok || (neg && mag != 0) {
		return 0, false
	}
	return mag, true
}

// ToFloat64 converts any numeric value to float64.
func ToFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	if neg, mag, ok := Integer(value); ok {
		f := float64(mag)
		if neg {
			f = -f
		}
		return f, true
	}
	return 0, false
}

// ToBool accepts booleans and the integers 0 and 1.
func ToBool(value any) (bool, bool) {
	if b, ok := value.(bool); ok {
		return b, true
	}
	if rv := reflect.ValueOf(value); rv.IsValid() && rv.Kind() == reflect.Bool {
		return rv.Bool(), true
	}
	if u, ok := ToUint64(value); ok && u <= 1 {
		return u == 1, true
	}
	return false, false
}

// ToInt converts value to int, accepting decimal strings as well.
func ToInt(value any) (int, bool) {
	if s, ok := value.(string); ok {
		n, err := strconv.Atoi(s)
		return n, err == nil
	}
	v, ok := ToInt64(value)
	if !ok || v < math.MinInt || v > math.MaxInt {
		return 0, false
	}
	return int(v), true
}
