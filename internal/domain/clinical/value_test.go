package clinical

import (
	"testing"
	"time"
)

func TestValue_Kinds(t *testing.T) {
	var zero Value
	if zero.Kind() != ValueNone {
		t.Errorf("zero Value should carry nothing, got %v", zero.Kind())
	}

	n := NumericValue(98.6)
	if got, ok := n.Numeric(); !ok || got != 98.6 {
		t.Errorf("numeric payload lost: %v %v", got, ok)
	}
	if _, ok := n.Text(); ok {
		t.Error("numeric value must not answer as text")
	}

	c := CodedValue(5089)
	if got, ok := c.Coded(); !ok || got != 5089 {
		t.Errorf("coded payload lost: %v %v", got, ok)
	}
	if _, ok := c.Numeric(); ok {
		t.Error("coded value must not answer as numeric")
	}

	when := time.Date(2006, 3, 7, 14, 30, 0, 0, time.UTC)
	d := DatetimeValue(when)
	if got, ok := d.Datetime(); !ok || !got.Equal(when) {
		t.Errorf("datetime payload lost: %v %v", got, ok)
	}

	s := TextValue("free text")
	if got, ok := s.Text(); !ok || got != "free text" {
		t.Errorf("text payload lost: %q %v", got, ok)
	}
	if _, ok := s.Datetime(); ok {
		t.Error("text value must not answer as datetime")
	}
}

func TestValueKind_String(t *testing.T) {
	cases := map[ValueKind]string{
		ValueNone:     "none",
		ValueNumeric:  "numeric",
		ValueCoded:    "coded",
		ValueDatetime: "datetime",
		ValueText:     "text",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("kind %d: got %q, want %q", kind, got, want)
		}
	}
}

func TestSplitJoinValue(t *testing.T) {
	cases := []Value{
		{},
		NumericValue(12.5),
		CodedValue(42),
		DatetimeValue(time.Date(2006, 3, 7, 0, 0, 0, 0, time.UTC)),
		TextValue("note"),
	}
	for _, v := range cases {
		numeric, coded, datetime, text := splitValue(v)
		if got := joinValue(numeric, coded, datetime, text); got != v {
			t.Errorf("round trip changed %v into %v", v, got)
		}
	}
}
