package loader

import (
	"math"
	"strconv"
	"time"
)

// Kind identifies the scalar type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "timestamp"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a typed scalar field of a Record. The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	t    time.Time
}

// Null returns an explicitly absent value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating point value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Time returns a timestamp value normalized to UTC.
func Time(v time.Time) Value { return Value{kind: KindTime, t: v.UTC()} }

// IntPtr returns Int(*v), or Null when v is nil.
func IntPtr[T ~int | ~int32 | ~int64](v *T) Value {
	if v == nil {
		return Null()
	}
	return Int(int64(*v))
}

// FloatPtr returns Float(*v), or Null when v is nil.
func FloatPtr(v *float64) Value {
	if v == nil {
		return Null()
	}
	return Float(*v)
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the integer payload; ok is false for other kinds.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == KindInt }

// Float64 returns the float payload; ok is false for other kinds.
func (v Value) Float64() (float64, bool) { return v.f, v.kind == KindFloat }

// Timestamp returns the time payload; ok is false for other kinds.
func (v Value) Timestamp() (time.Time, bool) { return v.t, v.kind == KindTime }

// Any returns the Go representation handed to the store driver:
// int64, float64, time.Time or nil.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// Finite reports whether a float value can be written to the store.
// Non-float values are always finite.
func (v Value) Finite() bool {
	if v.kind != KindFloat {
		return true
	}
	return !math.IsNaN(v.f) && !math.IsInf(v.f, 0)
}

// Equal compares kind and payload. Timestamps compare by instant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return "NULL"
	}
}

// appendKey appends a canonical, kind-tagged encoding used for tuple dedup.
func (v Value) appendKey(b []byte) []byte {
	b = append(b, byte('0'+v.kind), ':')
	switch v.kind {
	case KindInt:
		b = strconv.AppendInt(b, v.i, 10)
	case KindFloat:
		b = strconv.AppendFloat(b, v.f, 'g', -1, 64)
	case KindTime:
		b = strconv.AppendInt(b, v.t.UnixNano(), 10)
	}
	return append(b, '|')
}
