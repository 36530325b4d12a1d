package clinical

import "time"

// ValueKind discriminates the typed payload of an observation value.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueNumeric
	ValueCoded
	ValueDatetime
	ValueText
)

func (k ValueKind) String() string {
	switch k {
	case ValueNumeric:
		return "numeric"
	case ValueCoded:
		return "coded"
	case ValueDatetime:
		return "datetime"
	case ValueText:
		return "text"
	default:
		return "none"
	}
}

// Value is an observation value: exactly one of a numeric, a coded concept
// reference, a datetime, or free text. The zero Value carries nothing.
type Value struct {
	kind     ValueKind
	numeric  float64
	coded    int
	datetime time.Time
	text     string
}

func NumericValue(f float64) Value {
	return Value{kind: ValueNumeric, numeric: f}
}

// CodedValue references a concept by ID.
func CodedValue(conceptID int) Value {
	return Value{kind: ValueCoded, coded: conceptID}
}

func DatetimeValue(t time.Time) Value {
	return Value{kind: ValueDatetime, datetime: t}
}

func TextValue(s string) Value {
	return Value{kind: ValueText, text: s}
}

func (v Value) Kind() ValueKind { return v.kind }

// Numeric returns the numeric payload; ok is false for any other kind.
func (v Value) Numeric() (float64, bool) {
	return v.numeric, v.kind == ValueNumeric
}

// Coded returns the referenced concept ID; ok is false for any other kind.
func (v Value) Coded() (int, bool) {
	return v.coded, v.kind == ValueCoded
}

// Datetime returns the datetime payload; ok is false for any other kind.
func (v Value) Datetime() (time.Time, bool) {
	return v.datetime, v.kind == ValueDatetime
}

// Text returns the text payload; ok is false for any other kind.
func (v Value) Text() (string, bool) {
	return v.text, v.kind == ValueText
}
