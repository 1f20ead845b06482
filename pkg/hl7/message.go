package hl7

import (
	"strings"
)

// SegmentTerminator separates segments in rendered messages
const SegmentTerminator = "\r"

// Message is a decoded ADT message. Segment order on the wire is always
// MSH, EVN, PID, PV1, PV2.
type Message struct {
	MSH MSH
	EVN EVN
	PID PID
	PV1 PV1
	PV2 PV2
}

// Segments returns the segments in wire order
func (m *Message) Segments() []Segment {
	return []Segment{m.MSH, m.EVN, m.PID, m.PV1, m.PV2}
}

// String renders the message with the default delimiters
func (m *Message) String() string {
	d := defaultDelimiters
	lines := make([]string, 0, 5)
	for _, seg := range m.Segments() {
		fields := append([]string{seg.Tag()}, seg.render(d, defaultEscaper)...)
		lines = append(lines, strings.Join(fields, string(d.field)))
	}
	return strings.Join(lines, SegmentTerminator)
}

// MessageType returns the MSH-9 value, e.g. ADT^A02
func (m *Message) MessageType() string {
	if m.MSH.TriggerEvent == "" {
		return m.MSH.MessageCode
	}
	return m.MSH.MessageCode + "^" + m.MSH.TriggerEvent
}
