package hl7

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// Options holds the constant MSH and PV1 values for a sending facility
type Options struct {
	SendingApplication   string
	SendingFacility      string
	ReceivingApplication string
	ReceivingFacility    string
	HospitalName         string
	ProcessingID         string
	Version              string
}

// DefaultOptions returns the Quantum Care facility settings
func DefaultOptions() Options {
	return Options{
		SendingApplication:   "QuantumCare",
		SendingFacility:      "Quantum Care Hospital",
		ReceivingApplication: "Selene EHR",
		ReceivingFacility:    "SeleneHospital",
		HospitalName:         "Quantum Care Hospital",
		ProcessingID:         "P",
		Version:              "2.8",
	}
}

// Encoder renders clinical events as ADT messages. It holds no mutable
// state and is safe for concurrent use.
type Encoder struct {
	opts      Options
	now       func() time.Time
	controlID func() string
}

// NewEncoder creates an encoder for the given facility options
func NewEncoder(opts Options) *Encoder {
	return &Encoder{
		opts:      opts,
		now:       time.Now,
		controlID: NewControlID,
	}
}

// HashedID returns the first n hex characters of a SHA-256 over a fresh UUID
func HashedID(n int) string {
	sum := sha256.Sum256([]byte(uuid.New().String()))
	return hex.EncodeToString(sum[:])[:n]
}

// NewControlID returns a 6 character message control ID. Collisions are
// possible and tolerated downstream.
func NewControlID() string {
	return HashedID(6)
}

// Encode renders event as an ADT message. The timestamp and control ID are
// generated when the event does not carry them.
func (e *Encoder) Encode(event types.ClinicalEvent) (*Message, error) {
	if err := validateEvent(&event); err != nil {
		return nil, err
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}
	stamp := ts.Format(TimestampLayout)

	controlID := event.ControlID
	if controlID == "" {
		controlID = e.controlID()
	}

	visit := ""
	if event.VisitNumber > 0 {
		visit = strconv.Itoa(event.VisitNumber)
	}

	prior := ""
	if event.Trigger == types.TriggerTransfer {
		prior = event.PriorDepartment
	}

	return &Message{
		MSH: MSH{
			SendingApplication:   e.opts.SendingApplication,
			SendingFacility:      e.opts.SendingFacility,
			ReceivingApplication: e.opts.ReceivingApplication,
			ReceivingFacility:    e.opts.ReceivingFacility,
			DateTime:             stamp,
			MessageCode:          "ADT",
			TriggerEvent:         string(event.Trigger),
			ControlID:            controlID,
			ProcessingID:         e.opts.ProcessingID,
			Version:              e.opts.Version,
		},
		EVN: EVN{RecordedDateTime: stamp},
		PID: PID{
			SetID:          "1",
			PatientID:      event.PatientID,
			IdentifierType: patientIdentifierType,
			LastName:       event.LastName,
			FirstName:      event.FirstName,
			Sex:            types.GenderCode(event.Gender),
			Address: Address{
				Street:  event.Address.Line1,
				City:    event.Address.City,
				State:   event.Address.State,
				Zip:     event.Address.ZipCode,
				Country: defaultCountry,
			},
		},
		PV1: PV1{
			VisitNumber:     visit,
			PatientClass:    string(event.PatientClass),
			Department:      event.Department,
			Facility:        e.opts.HospitalName,
			PriorLocation:   prior,
			AttendingDoctor: event.Doctor,
			HospitalService: string(event.HospitalService),
		},
		PV2: PV2{AdmitReason: event.AdmitReason},
	}, nil
}

// EncodeString is Encode followed by rendering
func (e *Encoder) EncodeString(event types.ClinicalEvent) (string, error) {
	msg, err := e.Encode(event)
	if err != nil {
		return "", err
	}
	return msg.String(), nil
}

func validateEvent(ev *types.ClinicalEvent) error {
	if ev.Trigger == "" {
		return types.NewMissingFieldError("trigger")
	}
	if !ev.Trigger.Valid() {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			"unsupported trigger "+string(ev.Trigger), map[string]interface{}{"trigger": string(ev.Trigger)})
	}
	if ev.PatientID == "" {
		return types.NewMissingFieldError("patient_id")
	}
	if ev.LastName == "" && ev.FirstName == "" {
		return types.NewMissingFieldError("patient_name")
	}
	if ev.Department == "" {
		return types.NewMissingFieldError("department")
	}
	if ev.Trigger == types.TriggerTransfer && ev.PriorDepartment == "" {
		return types.NewMissingFieldError("prior_department")
	}
	return nil
}
