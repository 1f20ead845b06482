package types

import (
	"strings"
	"time"
)

// Operation is the patient-lifecycle action that produced an ADT event
type Operation string

const (
	OperationNew       Operation = "new"
	OperationSubmit    Operation = "submit"
	OperationTransfer  Operation = "transfer"
	OperationDischarge Operation = "discharge"
	OperationEdit      Operation = "edit"
)

// TriggerCode is the ADT trigger event carried in MSH-9
type TriggerCode string

const (
	TriggerAdmit      TriggerCode = "A01"
	TriggerTransfer   TriggerCode = "A02"
	TriggerDischarge  TriggerCode = "A03"
	TriggerRegister   TriggerCode = "A04"
	TriggerUpdateInfo TriggerCode = "A08"
)

// Valid reports whether t is one of the supported ADT triggers
func (t TriggerCode) Valid() bool {
	switch t {
	case TriggerAdmit, TriggerTransfer, TriggerDischarge, TriggerRegister, TriggerUpdateInfo:
		return true
	}
	return false
}

// PatientClass is the PV1-2 patient class letter
type PatientClass string

const (
	PatientClassInpatient  PatientClass = "I"
	PatientClassOutpatient PatientClass = "O"
	PatientClassEmergency  PatientClass = "E"
	PatientClassObstetrics PatientClass = "B"
)

// HospitalService is the PV1-10 hospital service code
type HospitalService string

const (
	ServiceMedicine   HospitalService = "MED"
	ServiceSurgery    HospitalService = "SUR"
	ServiceObstetrics HospitalService = "OB"
)

// Patient types accepted at registration
const (
	PatientTypeInpatient  = "Inpatient"
	PatientTypeOutpatient = "Outpatient"
	PatientTypeEmergency  = "Emergency"
	PatientTypeObstetrics = "Obstetrics"
)

// DepartmentRadiology is the department whose admissions open a worklist order
const DepartmentRadiology = "Radiology"

// Address is the postal address rendered into PID-11
type Address struct {
	Line1   string `json:"address_line1" bson:"addressLine1"`
	City    string `json:"city" bson:"city"`
	State   string `json:"state" bson:"state"`
	ZipCode string `json:"zip_code" bson:"zipCode"`
}

// Patient is the registration record kept by the patient store
type Patient struct {
	PID           string    `json:"pid" bson:"pid"`
	Visit         int       `json:"pv" bson:"pv"`
	FirstName     string    `json:"fname" bson:"fname"`
	LastName      string    `json:"lname" bson:"lname"`
	BirthDate     string    `json:"bdate" bson:"bdate"`
	Gender        string    `json:"gender" bson:"gender"`
	AddressLine1  string    `json:"addressLine1" bson:"addressLine1"`
	AddressLine2  string    `json:"addressLine2,omitempty" bson:"addressLine2,omitempty"`
	City          string    `json:"city" bson:"city"`
	State         string    `json:"state" bson:"state"`
	ZipCode       string    `json:"zipCode" bson:"zipCode"`
	Country       string    `json:"country,omitempty" bson:"country,omitempty"`
	PhoneNumber   string    `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	Email         string    `json:"email,omitempty" bson:"email,omitempty"`
	PatientType   string    `json:"patientType" bson:"patientType"`
	AdmitReason   string    `json:"admitreason" bson:"admitreason"`
	Department    string    `json:"department" bson:"department"`
	Doctor        string    `json:"doctor" bson:"doctor"`
	ExamType      string    `json:"examType,omitempty" bson:"examType,omitempty"`
	PreferredDate string    `json:"preferredDate,omitempty" bson:"preferredDate,omitempty"`
	PreferredTime string    `json:"preferredTime,omitempty" bson:"preferredTime,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updatedAt"`
}

// Snapshot freezes the fields needed for message generation
func (p *Patient) Snapshot() PatientSnapshot {
	return PatientSnapshot{
		PatientID:   p.PID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Gender:      p.Gender,
		BirthDate:   p.BirthDate,
		Address:     Address{Line1: p.AddressLine1, City: p.City, State: p.State, ZipCode: p.ZipCode},
		VisitNumber: p.Visit,
		PatientType: p.PatientType,
		Department:  p.Department,
		Doctor:      p.Doctor,
		AdmitReason: p.AdmitReason,
		Order: RadiologyOrder{
			ExamType:      p.ExamType,
			PreferredDate: p.PreferredDate,
			PreferredTime: p.PreferredTime,
		},
	}
}

// PatientUpdates holds the demographic fields an edit may change
type PatientUpdates struct {
	FirstName    *string `json:"fname,omitempty"`
	LastName     *string `json:"lname,omitempty"`
	BirthDate    *string `json:"bdate,omitempty"`
	Gender       *string `json:"gender,omitempty"`
	AddressLine1 *string `json:"addressLine1,omitempty"`
	AddressLine2 *string `json:"addressLine2,omitempty"`
	City         *string `json:"city,omitempty"`
	State        *string `json:"state,omitempty"`
	ZipCode      *string `json:"zipCode,omitempty"`
	PhoneNumber  *string `json:"phoneNumber,omitempty"`
	Email        *string `json:"email,omitempty"`
	PatientType  *string `json:"patientType,omitempty"`
	AdmitReason  *string `json:"admitreason,omitempty"`
}

// RadiologyOrder is the imaging request attached to an admission
type RadiologyOrder struct {
	ExamType      string `json:"examType,omitempty"`
	PreferredDate string `json:"preferredDate,omitempty"`
	PreferredTime string `json:"preferredTime,omitempty"`
}

// PatientSnapshot is an immutable view of a patient at message-generation time
type PatientSnapshot struct {
	PatientID       string
	FirstName       string
	LastName        string
	Gender          string
	BirthDate       string
	Address         Address
	VisitNumber     int
	PatientType     string
	Department      string
	PriorDepartment string
	Doctor          string
	AdmitReason     string
	Order           RadiologyOrder
}

// ClinicalEvent is the structured form of one ADT message
type ClinicalEvent struct {
	Trigger         TriggerCode     `json:"trigger"`
	PatientClass    PatientClass    `json:"patient_class"`
	HospitalService HospitalService `json:"hospital_service"`
	Timestamp       time.Time       `json:"timestamp"`
	ControlID       string          `json:"control_id"`
	PatientID       string          `json:"patient_id"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Gender          string          `json:"gender"`
	Address         Address         `json:"address"`
	VisitNumber     int             `json:"visit_number"`
	Department      string          `json:"department"`
	PriorDepartment string          `json:"prior_department,omitempty"`
	Doctor          string          `json:"doctor"`
	AdmitReason     string          `json:"admit_reason"`
}

// MessageType renders the MSH-9 value, e.g. ADT^A04
func (e *ClinicalEvent) MessageType() string {
	return "ADT^" + string(e.Trigger)
}

// StoredEvent is a row of the append-only ADT event log
type StoredEvent struct {
	ID int64 `json:"id"`
	ClinicalEvent
	RecordedAt time.Time `json:"recorded_at"`
}

// StoredMessage is a row of the raw message log
type StoredMessage struct {
	ID          int64     `json:"id"`
	PatientID   string    `json:"patient_id"`
	MessageType string    `json:"message_type"`
	ControlID   string    `json:"control_id"`
	Raw         string    `json:"raw"`
	CreatedAt   time.Time `json:"created_at"`
}

// Gender codes used in PID-8 and DICOM (0010,0040)
const (
	GenderCodeMale   = "M"
	GenderCodeFemale = "F"
	GenderCodeOther  = "O"
)

// GenderCode maps a free-text gender to M, F or O. Anything that is not
// male or female, including empty, becomes O.
func GenderCode(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m":
		return GenderCodeMale
	case "female", "f":
		return GenderCodeFemale
	default:
		return GenderCodeOther
	}
}

// GenderFromCode is the inverse of GenderCode
func GenderFromCode(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case GenderCodeMale:
		return "male"
	case GenderCodeFemale:
		return "female"
	case "":
		return ""
	default:
		return "other"
	}
}

// VisitRequest starts a new visit for a registered patient
type VisitRequest struct {
	PatientType   string `json:"patientType"`
	Department    string `json:"department"`
	Doctor        string `json:"doctor"`
	AdmitReason   string `json:"admitReason"`
	ExamType      string `json:"examType,omitempty"`
	PreferredDate string `json:"preferredDate,omitempty"`
	PreferredTime string `json:"preferredTime,omitempty"`
}

// Order returns the radiology order carried by the request
func (r *VisitRequest) Order() RadiologyOrder {
	return RadiologyOrder{ExamType: r.ExamType, PreferredDate: r.PreferredDate, PreferredTime: r.PreferredTime}
}

// TransferRequest moves a patient to another department
type TransferRequest struct {
	Department    string `json:"newDepartment"`
	Doctor        string `json:"newDoctor"`
	ExamType      string `json:"examType,omitempty"`
	PreferredDate string `json:"preferredDate,omitempty"`
	PreferredTime string `json:"preferredTime,omitempty"`
}

// Order returns the radiology order carried by the request
func (r *TransferRequest) Order() RadiologyOrder {
	return RadiologyOrder{ExamType: r.ExamType, PreferredDate: r.PreferredDate, PreferredTime: r.PreferredTime}
}

// AdmissionResult is returned by every lifecycle operation
type AdmissionResult struct {
	Patient       *Patient       `json:"patient"`
	Message       string         `json:"hl7_message"`
	Event         *ClinicalEvent `json:"parsed_message"`
	WorklistEntry *WorklistEntry `json:"worklist_entry,omitempty"`
}

// PatientRecord is the existing-patient view: demographics, the latest ADT
// event and any archived studies
type PatientRecord struct {
	Patient     *Patient        `json:"patient"`
	LatestEvent *StoredEvent    `json:"latest_event,omitempty"`
	Studies     []ArchivedStudy `json:"studies"`
}
