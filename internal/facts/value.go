package facts

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// EntityID identifies an entity (individual, kind or snapshot measurement).
type EntityID string

// PredicateID names a relation or attribute.
type PredicateID string

// PredicateType links an entity to one of its kinds: (e, type, Ref(K)).
const PredicateType PredicateID = "type"

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindRef
	KindNumber
	KindString
	KindBool
	KindTimestamp
)

func (k ValueKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRef:
		return "ref"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is the object position of a fact: either a reference to another
// entity or a literal. Values are comparable, so two values are equal exactly
// when they hold the same variant and payload. The zero Value is KindNone and
// acts as a wildcard in patterns.
type Value struct {
	kind  ValueKind
	text  string // ref id or string literal
	bits  uint64 // numbers, canonical IEEE 754 bits
	flag  bool
	nanos int64 // timestamps, UTC unix nanoseconds
}

// Ref returns a reference to entity id.
func Ref(id EntityID) Value { return Value{kind: KindRef, text: string(id)} }

// Number returns a numeric literal. Numbers compare by their canonical bit
// pattern: every NaN is the same value, and -0 equals 0.
func Number(f float64) Value {
	switch {
	case math.IsNaN(f):
		f = math.NaN()
	case f == 0:
		f = 0
	}
	return Value{kind: KindNumber, bits: math.Float64bits(f)}
}

// String returns a string literal.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Bool returns a boolean literal.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Timestamp returns a time literal normalised to UTC.
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, nanos: t.UTC().UnixNano()} }

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether v is the wildcard value.
func (v Value) IsZero() bool { return v.kind == KindNone }

// IsLiteral reports whether v is a literal (anything but a reference).
func (v Value) IsLiteral() bool { return v.kind != KindNone && v.kind != KindRef }

// Entity returns the referenced entity when v is a reference.
func (v Value) Entity() (EntityID, bool) {
	if v.kind != KindRef {
		return "", false
	}
	return EntityID(v.text), true
}

// Number returns the numeric payload when v is a number literal.
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return math.Float64frombits(v.bits), true
}

// Str returns the string payload when v is a string literal.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// Bool returns the boolean payload when v is a boolean literal.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.flag, true
}

// Time returns the timestamp payload when v is a timestamp literal.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindTimestamp {
		return time.Time{}, false
	}
	return time.Unix(0, v.nanos).UTC(), true
}

// Numeric interprets v as a number. Number literals convert directly and
// string literals are parsed, mirroring how rule inputs are often authored
// as text in definition files. Other variants are not numeric.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return math.Float64frombits(v.bits), true
	case KindString:
		f, err := strconv.ParseFloat(v.text, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case KindNone, KindRef, KindBool, KindTimestamp:
		return 0, false
	default:
		return 0, false
	}
}

// Display renders the payload without type decoration, e.g. for API output.
func (v Value) Display() string {
	switch v.kind {
	case KindRef, KindString:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(math.Float64frombits(v.bits), 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindTimestamp:
		t, _ := v.Time()
		return t.Format(time.RFC3339)
	case KindNone:
		return ""
	default:
		return ""
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindRef:
		return "<" + v.text + ">"
	case KindString:
		return strconv.Quote(v.text)
	case KindNone:
		return "*"
	case KindNumber, KindBool, KindTimestamp:
		return v.Display()
	default:
		return v.Display()
	}
}
