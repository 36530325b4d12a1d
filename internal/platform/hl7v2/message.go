// Package hl7v2 implements the pipe-and-hat wire format used by the inbound
// HL7 interface: a message is an ordered list of segments, a segment an
// ordered list of fields, a field splittable into components. Delimiters are
// declared by the message itself (MSH-1 and MSH-2), not assumed.
package hl7v2

import (
	"fmt"
	"strings"
)

// ParseError reports a structurally unusable message (missing or malformed
// MSH header). It always aborts processing of the whole message.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "hl7v2: " + e.Reason
}

// Message is one parsed HL7v2 message. Segments are immutable after Parse;
// the read cursor is the only mutable state and belongs to a single
// processing pass. It only ever moves forward.
type Message struct {
	Version      string // MSH-12
	Type         string // MSH-9, first component (e.g. "ORU")
	ControlID    string // MSH-10
	ProfileID    string // MSH-21, raw field value
	FieldSep     string
	ComponentSep string

	segments []Segment
	cursor   int
}

// Segment is a single segment: a type code and its positional fields.
// Fields are addressed 1-based to match the wire format; reads past the end
// return the empty string.
type Segment struct {
	Code string

	fields       []string
	fieldSep     string
	componentSep string
}

// Parse builds a Message from raw wire bytes. It accepts \r, \n, and \r\n
// segment separators and requires the first segment to be an MSH header.
func Parse(raw []byte) (*Message, error) {
	if len(raw) == 0 {
		return nil, &ParseError{Reason: "message is empty"}
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")

	var lines []string
	for _, line := range strings.Split(text, "\r") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, &ParseError{Reason: "no segments found"}
	}

	header := lines[0]
	if !strings.HasPrefix(header, "MSH") || len(header) < 5 {
		return nil, &ParseError{Reason: fmt.Sprintf("first segment must be MSH, got %q", truncate(header, 8))}
	}

	msg := &Message{FieldSep: header[3:4]}

	// MSH-2 declares the encoding characters; the component separator is
	// the first of them. Everything downstream splits on the declared
	// separators, never on literals.
	encoding := strings.SplitN(header[4:], msg.FieldSep, 2)[0]
	if encoding == "" {
		return nil, &ParseError{Reason: "MSH-2 encoding characters are missing"}
	}
	msg.ComponentSep = encoding[0:1]

	for _, line := range lines {
		msg.segments = append(msg.segments, parseSegment(line, msg.FieldSep, msg.ComponentSep))
	}

	msh := &msg.segments[0]
	msg.Type = msh.Component(9, 1)
	msg.ControlID = msh.Field(10)
	msg.Version = msh.Field(12)
	msg.ProfileID = msh.Field(21)

	return msg, nil
}

// parseSegment splits one segment line on the declared field separator. The
// MSH segment is special: MSH-1 is the field separator character itself, so
// its first stored field is the separator and splitting starts after it.
func parseSegment(line, fieldSep, componentSep string) Segment {
	seg := Segment{fieldSep: fieldSep, componentSep: componentSep}

	if strings.HasPrefix(line, "MSH") && len(line) > 4 {
		seg.Code = "MSH"
		seg.fields = append([]string{fieldSep}, strings.Split(line[4:], fieldSep)...)
		return seg
	}

	parts := strings.Split(line, fieldSep)
	seg.Code = parts[0]
	seg.fields = parts[1:]
	return seg
}

// Field returns the 1-based field value, or "" when the position is beyond
// the available data. For MSH, field 1 is the field separator itself.
func (s *Segment) Field(index int) string {
	if index < 1 || index > len(s.fields) {
		return ""
	}
	return s.fields[index-1]
}

// Components returns the field at the given 1-based position split on the
// declared component separator.
func (s *Segment) Components(index int) []string {
	return strings.Split(s.Field(index), s.componentSep)
}

// Component returns the 1-based component of the 1-based field, or "" when
// either position is beyond the available data.
func (s *Segment) Component(fieldIdx, compIdx int) string {
	comps := s.Components(fieldIdx)
	if compIdx < 1 || compIdx > len(comps) {
		return ""
	}
	return comps[compIdx-1]
}

// String re-serializes the segment with its declared delimiters. Parsing is
// lossless: a parsed segment serializes back to its original line.
func (s *Segment) String() string {
	if s.Code == "MSH" && len(s.fields) > 1 {
		// fields[0] holds MSH-1 (the separator); it is written as the
		// separator after the code, not as a field of its own.
		return "MSH" + s.fieldSep + strings.Join(s.fields[1:], s.fieldSep)
	}
	if len(s.fields) == 0 {
		return s.Code
	}
	return s.Code + s.fieldSep + strings.Join(s.fields, s.fieldSep)
}

// Fields returns the segment's fields in wire order as a copy. For MSH the
// first element is the field separator, matching MSH-1.
func (s *Segment) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// Segments returns the parsed segments in wire order. The slice is shared;
// callers must not mutate it.
func (m *Message) Segments() []Segment {
	return m.segments
}

// String re-serializes the whole message with \r segment separators.
func (m *Message) String() string {
	lines := make([]string, len(m.segments))
	for i := range m.segments {
		lines[i] = m.segments[i].String()
	}
	return strings.Join(lines, "\r")
}

// NextSegment advances the cursor to the next segment with the given type
// code, skipping non-matching segments. It returns nil when no match remains;
// the cursor is then past the end and never rewinds.
func (m *Message) NextSegment(code string) *Segment {
	for m.cursor < len(m.segments) {
		seg := &m.segments[m.cursor]
		m.cursor++
		if seg.Code == code {
			return seg
		}
	}
	return nil
}

// Next advances the cursor unconditionally and returns the segment it
// consumed, or nil at the end of the message.
func (m *Message) Next() *Segment {
	if m.cursor >= len(m.segments) {
		return nil
	}
	seg := &m.segments[m.cursor]
	m.cursor++
	return seg
}

// HasNext reports whether the segment immediately at the cursor has the given
// type code. It never consumes: detail groups are walked by pairing HasNext
// with Next so a group boundary is left for the outer loop.
func (m *Message) HasNext(code string) bool {
	return m.cursor < len(m.segments) && m.segments[m.cursor].Code == code
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
