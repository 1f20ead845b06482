package hl7

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// Parse decodes a raw ADT message into a clinical event
func Parse(raw string) (*types.ClinicalEvent, error) {
	msg, err := ParseMessage(raw)
	if err != nil {
		return nil, err
	}
	return msg.Event()
}

// ParseMessage splits raw into segments and decodes the ones this package
// knows. Unknown segment tags are skipped. Segments may be terminated by
// CR, LF or CRLF.
func ParseMessage(raw string) (*Message, error) {
	lines := splitSegments(raw)
	if len(lines) == 0 {
		return nil, types.NewMalformedMessageError("empty message")
	}
	if !strings.HasPrefix(lines[0], TagMSH) {
		return nil, types.NewMalformedMessageError("message does not start with an MSH segment")
	}

	d, err := readDelimiters(lines[0])
	if err != nil {
		return nil, err
	}
	un := defaultUnescaper
	if d != defaultDelimiters {
		un = d.unescaper()
	}

	msg := &Message{}
	var sawPID bool
	for _, line := range lines {
		f := segmentFields{d: d, un: un, fields: strings.Split(line, string(d.field))}
		switch f.tag() {
		case TagMSH:
			msg.MSH = decodeMSH(f)
		case TagEVN:
			msg.EVN = decodeEVN(f)
		case TagPID:
			if f.component(3, 0) == "" {
				return nil, types.NewMalformedMessageError("PID-3 patient identifier is absent")
			}
			msg.PID = decodePID(f)
			sawPID = true
		case TagPV1:
			msg.PV1 = decodePV1(f)
		case TagPV2:
			msg.PV2 = decodePV2(f)
		}
	}

	if msg.MSH.MessageCode != "ADT" {
		return nil, types.NewMalformedMessageError(fmt.Sprintf("unsupported message type %q", msg.MessageType()))
	}
	if !types.TriggerCode(msg.MSH.TriggerEvent).Valid() {
		return nil, types.NewMalformedMessageError(fmt.Sprintf("unsupported trigger event %q", msg.MSH.TriggerEvent))
	}
	if !sawPID {
		return nil, types.NewMalformedMessageError("required PID segment is absent")
	}
	return msg, nil
}

// Event converts the decoded segments into a clinical event
func (m *Message) Event() (*types.ClinicalEvent, error) {
	stamp := m.MSH.DateTime
	if stamp == "" {
		stamp = m.EVN.RecordedDateTime
	}
	var ts time.Time
	if stamp != "" {
		var err error
		ts, err = time.ParseInLocation(TimestampLayout, stamp, time.Local)
		if err != nil {
			return nil, types.NewMalformedMessageError(fmt.Sprintf("invalid message timestamp %q", stamp))
		}
	}

	visit := 0
	if m.PV1.VisitNumber != "" {
		n, err := strconv.Atoi(m.PV1.VisitNumber)
		if err != nil {
			return nil, types.NewMalformedMessageError(fmt.Sprintf("invalid visit number %q", m.PV1.VisitNumber))
		}
		visit = n
	}

	return &types.ClinicalEvent{
		Trigger:         types.TriggerCode(m.MSH.TriggerEvent),
		PatientClass:    types.PatientClass(m.PV1.PatientClass),
		HospitalService: types.HospitalService(m.PV1.HospitalService),
		Timestamp:       ts,
		ControlID:       m.MSH.ControlID,
		PatientID:       m.PID.PatientID,
		FirstName:       m.PID.FirstName,
		LastName:        m.PID.LastName,
		Gender:          types.GenderFromCode(m.PID.Sex),
		Address: types.Address{
			Line1:   m.PID.Address.Street,
			City:    m.PID.Address.City,
			State:   m.PID.Address.State,
			ZipCode: m.PID.Address.Zip,
		},
		VisitNumber:     visit,
		Department:      m.PV1.Department,
		PriorDepartment: m.PV1.PriorLocation,
		Doctor:          m.PV1.AttendingDoctor,
		AdmitReason:     m.PV2.AdmitReason,
	}, nil
}

func splitSegments(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\r")
	raw = strings.ReplaceAll(raw, "\n", "\r")
	var lines []string
	for _, line := range strings.Split(raw, "\r") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimLeft(line, " \t"))
		}
	}
	return lines
}

// readDelimiters takes MSH-1 and MSH-2 from the header line
func readDelimiters(header string) (delimiters, error) {
	if len(header) < 8 {
		return delimiters{}, types.NewMalformedMessageError("MSH segment too short to declare delimiters")
	}
	d := delimiters{
		field:        header[3],
		component:    header[4],
		repetition:   header[5],
		escape:       header[6],
		subcomponent: header[7],
	}
	if d.component == d.field || d.escape == d.field {
		return delimiters{}, types.NewMalformedMessageError("MSH-2 encoding characters are invalid")
	}
	return d, nil
}
