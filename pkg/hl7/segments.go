package hl7

import (
	"strings"
)

// Segment tags handled by this package
const (
	TagMSH = "MSH"
	TagEVN = "EVN"
	TagPID = "PID"
	TagPV1 = "PV1"
	TagPV2 = "PV2"
)

// Fixed field counts (excluding the tag) rendered for each segment.
const (
	mshFieldCount = 11
	evnFieldCount = 2
	pidFieldCount = 11
	pv1FieldCount = 10
	pv2FieldCount = 3
)

// TimestampLayout is the HL7 DTM layout used in MSH-7 and EVN-2
const TimestampLayout = "20060102150405"

const (
	patientIdentifierType = "PI"
	defaultCountry        = "IND"
)

// delimiters are the separators declared by MSH-1 and MSH-2
type delimiters struct {
	field        byte
	component    byte
	repetition   byte
	escape       byte
	subcomponent byte
}

var defaultDelimiters = delimiters{field: '|', component: '^', repetition: '~', escape: '\\', subcomponent: '&'}

func (d delimiters) encodingCharacters() string {
	return string([]byte{d.component, d.repetition, d.escape, d.subcomponent})
}

func (d delimiters) escaper() *strings.Replacer {
	e := string(d.escape)
	return strings.NewReplacer(
		e, e+"E"+e,
		string(d.field), e+"F"+e,
		string(d.component), e+"S"+e,
		string(d.subcomponent), e+"T"+e,
		string(d.repetition), e+"R"+e,
		"\r", e+"X0D"+e,
		"\n", e+"X0A"+e,
	)
}

func (d delimiters) unescaper() *strings.Replacer {
	e := string(d.escape)
	return strings.NewReplacer(
		e+"E"+e, e,
		e+"F"+e, string(d.field),
		e+"S"+e, string(d.component),
		e+"T"+e, string(d.subcomponent),
		e+"R"+e, string(d.repetition),
		e+"X0D"+e, "\r",
		e+"X0A"+e, "\n",
	)
}

var (
	defaultEscaper   = defaultDelimiters.escaper()
	defaultUnescaper = defaultDelimiters.unescaper()
)

// composite joins already-escaped components with the component separator
func composite(d delimiters, components ...string) string {
	return strings.Join(components, string(d.component))
}

// segmentFields is the split form of one segment line. Index 0 is the tag,
// so index n is HL7 field n (for MSH, index 1 is MSH-2).
type segmentFields struct {
	d      delimiters
	un     *strings.Replacer
	fields []string
}

func (f segmentFields) tag() string {
	if len(f.fields) == 0 {
		return ""
	}
	return f.fields[0]
}

// raw returns field i untouched, or "" when absent
func (f segmentFields) raw(i int) string {
	if i >= len(f.fields) {
		return ""
	}
	return f.fields[i]
}

// at returns field i unescaped, or "" when absent
func (f segmentFields) at(i int) string {
	return f.un.Replace(f.raw(i))
}

// component returns component c of field i unescaped, or "" when absent
func (f segmentFields) component(i, c int) string {
	parts := strings.Split(f.raw(i), string(f.d.component))
	if c >= len(parts) {
		return ""
	}
	return f.un.Replace(parts[c])
}

// MSH is the message header segment
type MSH struct {
	SendingApplication   string
	SendingFacility      string
	ReceivingApplication string
	ReceivingFacility    string
	DateTime             string
	MessageCode          string
	TriggerEvent         string
	ControlID            string
	ProcessingID         string
	Version              string
}

// Tag implements Segment
func (MSH) Tag() string { return TagMSH }

func (s MSH) render(d delimiters, esc *strings.Replacer) []string {
	return []string{
		d.encodingCharacters(),
		esc.Replace(s.SendingApplication),
		esc.Replace(s.SendingFacility),
		esc.Replace(s.ReceivingApplication),
		esc.Replace(s.ReceivingFacility),
		esc.Replace(s.DateTime),
		"",
		composite(d, esc.Replace(s.MessageCode), esc.Replace(s.TriggerEvent)),
		esc.Replace(s.ControlID),
		esc.Replace(s.ProcessingID),
		esc.Replace(s.Version),
	}
}

func decodeMSH(f segmentFields) MSH {
	return MSH{
		SendingApplication:   f.at(2),
		SendingFacility:      f.at(3),
		ReceivingApplication: f.at(4),
		ReceivingFacility:    f.at(5),
		DateTime:             f.at(6),
		MessageCode:          f.component(8, 0),
		TriggerEvent:         f.component(8, 1),
		ControlID:            f.at(9),
		ProcessingID:         f.at(10),
		Version:              f.at(11),
	}
}

// EVN is the event type segment. The trigger lives in MSH-9 so EVN-1 stays blank.
type EVN struct {
	EventTypeCode    string
	RecordedDateTime string
}

// Tag implements Segment
func (EVN) Tag() string { return TagEVN }

func (s EVN) render(d delimiters, esc *strings.Replacer) []string {
	return []string{esc.Replace(s.EventTypeCode), esc.Replace(s.RecordedDateTime)}
}

func decodeEVN(f segmentFields) EVN {
	return EVN{EventTypeCode: f.at(1), RecordedDateTime: f.at(2)}
}

// Address is the XAD composite in PID-11
type Address struct {
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

// PID is the patient identification segment
type PID struct {
	SetID          string
	PatientID      string
	IdentifierType string
	LastName       string
	FirstName      string
	Sex            string
	Address        Address
}

// Tag implements Segment
func (PID) Tag() string { return TagPID }

func (s PID) render(d delimiters, esc *strings.Replacer) []string {
	out := make([]string, pidFieldCount)
	out[0] = esc.Replace(s.SetID)
	out[2] = composite(d, esc.Replace(s.PatientID), "", "", "", esc.Replace(s.IdentifierType))
	out[4] = composite(d, esc.Replace(s.LastName), esc.Replace(s.FirstName))
	out[7] = esc.Replace(s.Sex)
	out[10] = composite(d,
		esc.Replace(s.Address.Street),
		"",
		esc.Replace(s.Address.City),
		esc.Replace(s.Address.State),
		esc.Replace(s.Address.Zip),
		esc.Replace(s.Address.Country),
	)
	return out
}

func decodePID(f segmentFields) PID {
	return PID{
		SetID:          f.at(1),
		PatientID:      f.component(3, 0),
		IdentifierType: f.component(3, 4),
		LastName:       f.component(5, 0),
		FirstName:      f.component(5, 1),
		Sex:            f.at(8),
		Address: Address{
			Street:  f.component(11, 0),
			City:    f.component(11, 2),
			State:   f.component(11, 3),
			Zip:     f.component(11, 4),
			Country: f.component(11, 5),
		},
	}
}

// PV1 is the patient visit segment
type PV1 struct {
	VisitNumber     string
	PatientClass    string
	Department      string
	Facility        string
	PriorLocation   string
	AttendingDoctor string
	HospitalService string
}

// Tag implements Segment
func (PV1) Tag() string { return TagPV1 }

func (s PV1) render(d delimiters, esc *strings.Replacer) []string {
	out := make([]string, pv1FieldCount)
	out[0] = esc.Replace(s.VisitNumber)
	out[1] = esc.Replace(s.PatientClass)
	out[2] = composite(d, esc.Replace(s.Department), "", esc.Replace(s.Facility))
	out[5] = esc.Replace(s.PriorLocation)
	out[6] = esc.Replace(s.AttendingDoctor)
	out[9] = esc.Replace(s.HospitalService)
	return out
}

func decodePV1(f segmentFields) PV1 {
	return PV1{
		VisitNumber:     f.at(1),
		PatientClass:    f.at(2),
		Department:      f.component(3, 0),
		Facility:        f.component(3, 2),
		PriorLocation:   f.at(6),
		AttendingDoctor: f.at(7),
		HospitalService: f.at(10),
	}
}

// PV2 carries the admission or visit reason
type PV2 struct {
	AdmitReason string
}

// Tag implements Segment
func (PV2) Tag() string { return TagPV2 }

func (s PV2) render(d delimiters, esc *strings.Replacer) []string {
	return []string{"", "", esc.Replace(s.AdmitReason)}
}

func decodePV2(f segmentFields) PV2 {
	return PV2{AdmitReason: f.at(3)}
}

// Segment is one typed line of an ADT message
type Segment interface {
	Tag() string
	render(d delimiters, esc *strings.Replacer) []string
}
