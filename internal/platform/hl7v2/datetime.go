package hl7v2

import (
	"fmt"
	"strings"
	"time"
)

// ParseTimestamp parses an HL7v2 TS value at any of its declared precisions:
// YYYYMMDDHHmmss, YYYYMMDDHHmm, YYYYMMDDHH, or YYYYMMDD. Anything past second
// precision (fractional seconds, timezone offset) is ignored. Lengths between
// the declared precisions are malformed and rejected rather than silently
// truncated.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 14:
		return time.Parse("20060102150405", s[:14])
	case len(s) == 12:
		return time.Parse("200601021504", s)
	case len(s) == 10:
		return time.Parse("2006010215", s)
	case len(s) == 8:
		return time.Parse("20060102", s)
	default:
		return time.Time{}, fmt.Errorf("hl7v2: unrecognized timestamp %q", s)
	}
}

// ParseDate parses an HL7v2 DT value (YYYYMMDD).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("hl7v2: unrecognized date %q", s)
	}
	return time.Parse("20060102", s[:8])
}

// ParseTime parses an HL7v2 TM value (HHmmss or HHmm).
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 6:
		return time.Parse("150405", s[:6])
	case len(s) >= 4:
		return time.Parse("1504", s[:4])
	default:
		return time.Time{}, fmt.Errorf("hl7v2: unrecognized time %q", s)
	}
}
