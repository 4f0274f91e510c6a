package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
)

type valueKind uint8

const (
	noneValue valueKind = iota
	stringValue
	intValue
)

// Value is a normalized attribute value: none, a string or an integer.
// Two values are equal only if both tag and payload match; no coercion
// happens between strings and integers.
type Value struct {
	kind valueKind
	s    string
	i    int64
}

// None is the value of an unset or absent attribute.
func None() Value { return Value{} }

// String wraps a string value.
func String(s string) Value { return Value{kind: stringValue, s: s} }

// Int wraps an integer value.
func Int(i int64) Value { return Value{kind: intValue, i: i} }

// ValueOf converts a raw Go value to a Value without any attribute-specific
// normalization.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return None()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return String(strconv.FormatBool(t))
	case os.FileMode:
		return Int(int64(t))
	case float32:
		return ValueOf(float64(t))
	case float64:
		if i, ok := AsInt(t); ok {
			return Int(i)
		}
		return String(strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		return String(t.String())
	}
	if i, ok := AsInt(v); ok {
		return Int(i)
	}
	return String(fmt.Sprint(v))
}

// AsInt reports whether v is an integer (or an integral float) that fits in
// an int64 and returns it.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uint64ToInt(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uint64ToInt(n)
	case os.FileMode:
		return int64(n), true
	case float64:
		// -2^63 and 2^63 are exact in float64; the upper bound is exclusive.
		if n == math.Trunc(n) && n >= math.MinInt64 && n < -math.MinInt64 {
			return int64(n), true
		}
	case float32:
		return AsInt(float64(n))
	}
	return 0, false
}

func uint64ToInt(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

// IsNone reports whether the value is unset.
func (v Value) IsNone() bool { return v.kind == noneValue }

// IsInt reports whether the value holds an integer.
func (v Value) IsInt() bool { return v.kind == intValue }

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == stringValue }

// Int64 returns the integer payload and whether the value is an integer.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == intValue }

// Equal is value equality on the normalized representation.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case stringValue:
		return v.s == o.s
	case intValue:
		return v.i == o.i
	}
	return true
}

// String renders the value for messages: strings quoted, integers bare,
// none as the word none.
func (v Value) String() string {
	switch v.kind {
	case stringValue:
		return strconv.Quote(v.s)
	case intValue:
		return strconv.FormatInt(v.i, 10)
	}
	return "none"
}

// Interface returns the payload as a plain Go value (nil, string or int64).
func (v Value) Interface() any {
	switch v.kind {
	case stringValue:
		return v.s
	case intValue:
		return v.i
	}
	return nil
}

// MarshalJSON encodes none as null, strings and integers natively.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts null, strings and integral numbers.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	*v = ValueOf(raw)
	return nil
}
