package uow

import (
	"strconv"
	"time"
)

// valueKind discriminates the closed representations a leaf observation
// can take.
type valueKind uint8

const (
	kindEmpty valueKind = iota
	kindInt
	kindUint
	kindFloat
	kindString
	kindDuration
	kindTime
)

// Value is the immutable, closed form of a single observation. A Value
// is produced when a record field is snapshotted, and carries everything
// a format needs to serialize it: the scalar itself, an optional unit,
// and a sampling multiplicity.
//
// The zero Value is "empty": it contributes nothing to the output. Empty
// values come from unfilled slots closed under the discard policy.
type Value struct {
	kind valueKind
	i    int64
	u    uint64
	f    float64
	s    string
	d    time.Duration
	t    time.Time

	unit Unit

	// multiplicity is the sampling weight. 0 means "unset" and is
	// treated as 1 everywhere.
	multiplicity float64
}

// Int returns a Value holding a signed integer metric.
func Int(v int64) Value { return Value{kind: kindInt, i: v} }

// Uint returns a Value holding an unsigned integer metric.
func Uint(v uint64) Value { return Value{kind: kindUint, u: v} }

// Float returns a Value holding a floating-point metric.
func Float(v float64) Value { return Value{kind: kindFloat, f: v} }

// Bool returns a Value holding a boolean metric, serialized as 0 or 1.
func Bool(v bool) Value {
	if v {
		return Value{kind: kindUint, u: 1}
	}
	return Value{kind: kindUint, u: 0}
}

// String returns a Value holding a string property.
func String(v string) Value { return Value{kind: kindString, s: v} }

// Duration returns a Value holding an elapsed time. Durations serialize
// as floats in their unit; without an explicit unit they render in
// milliseconds.
func Duration(v time.Duration) Value { return Value{kind: kindDuration, d: v} }

// Time returns a Value holding a wall-clock instant, serialized as
// epoch milliseconds unless a formatter overrides the rendering.
func Time(v time.Time) Value { return Value{kind: kindTime, t: v} }

// WithUnit returns a copy of v annotated with the given unit.
func (v Value) WithUnit(u Unit) Value {
	v.unit = u
	return v
}

// WithMultiplicity returns a copy of v weighted by the given sampling
// multiplicity. Multiplicities below 1 are coerced to 1.
func (v Value) WithMultiplicity(m float64) Value {
	if m < 1 {
		m = 1
	}
	v.multiplicity = m
	return v
}

// IsEmpty reports whether v is the empty value, which formats omit.
func (v Value) IsEmpty() bool { return v.kind == kindEmpty }

// Unit returns the unit annotation, or UnitNone if none was set.
func (v Value) Unit() Unit {
	if v.unit == "" {
		return UnitNone
	}
	return v.unit
}

// Multiplicity returns the sampling weight, defaulting to 1.
func (v Value) Multiplicity() float64 {
	if v.multiplicity == 0 {
		return 1
	}
	return v.multiplicity
}

// isNumeric reports whether v serializes as a metric datum rather than
// a string property.
func (v Value) isNumeric() bool {
	switch v.kind {
	case kindInt, kindUint, kindFloat, kindDuration:
		return true
	}
	return false
}

// durationIn converts a duration to a float in the given unit. Units
// that are not time units fall back to milliseconds.
func durationIn(d time.Duration, u Unit) float64 {
	switch u {
	case UnitSeconds:
		return d.Seconds()
	case UnitMicroseconds:
		return float64(d) / float64(time.Microsecond)
	default:
		return float64(d) / float64(time.Millisecond)
	}
}

// Float64 returns the numeric rendering of a metric value. Calling it
// on a non-numeric value returns 0.
func (v Value) Float64() float64 {
	switch v.kind {
	case kindInt:
		return float64(v.i)
	case kindUint:
		return float64(v.u)
	case kindFloat:
		return v.f
	case kindDuration:
		return durationIn(v.d, v.Unit())
	}
	return 0
}

// StringValue returns the property rendering of a value. Numeric values
// render with strconv round-trip formatting; timestamps render as epoch
// milliseconds.
func (v Value) StringValue() string {
	switch v.kind {
	case kindString:
		return v.s
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindUint:
		return strconv.FormatUint(v.u, 10)
	case kindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case kindDuration:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case kindTime:
		return strconv.FormatInt(v.t.UnixMilli(), 10)
	}
	return ""
}

// ValueCloser is the close contract for leaf values: snapshotting
// produces an immutable Value. Types whose state is shared across
// goroutines (Counter, Slot) implement it on the pointer receiver so
// that a shared reference can be closed without ownership transfer.
type ValueCloser interface {
	CloseValue() Value
}

// ValueFormatter renders a Value into its string-property form, used by
// fields tagged `format=<name>`.
type ValueFormatter func(Value) string

// formatters is the registry backing `format=` tags. Registration
// happens in init functions; lookups are read-only afterwards, so no
// locking is needed.
var formatters = map[string]ValueFormatter{}

// RegisterFormatter installs a named ValueFormatter for use in
// `metric:"...,format=<name>"` tags. Registering during init only;
// later registrations race with record closing.
func RegisterFormatter(name string, f ValueFormatter) {
	formatters[name] = f
}

func init() {
	RegisterFormatter("epochms", func(v Value) string {
		return strconv.FormatInt(v.t.UnixMilli(), 10)
	})
	RegisterFormatter("iso8601", func(v Value) string {
		return v.t.UTC().Format(time.RFC3339Nano)
	})
}
