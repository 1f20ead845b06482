package types

import (
	"strings"
	"time"
)

// ExamType is the radiology exam requested at ordering time
type ExamType string

const (
	ExamMRI        ExamType = "MRI"
	ExamCT         ExamType = "CT"
	ExamXRay       ExamType = "XRay"
	ExamUltrasound ExamType = "Ultrasound"
)

// ModalityCode is the DICOM modality used in accession numbers and (0008,0060)
type ModalityCode string

const (
	ModalityMR ModalityCode = "MR"
	ModalityCT ModalityCode = "CT"
	ModalityXR ModalityCode = "XR"
	ModalityUS ModalityCode = "US"
)

var examModalities = map[ExamType]ModalityCode{
	ExamMRI:        ModalityMR,
	ExamCT:         ModalityCT,
	ExamXRay:       ModalityXR,
	ExamUltrasound: ModalityUS,
}

// Modality returns the modality code for the exam type
func (e ExamType) Modality() (ModalityCode, bool) {
	m, ok := examModalities[e]
	return m, ok
}

// ParseExamType resolves a client-supplied exam type. Matching ignores case
// and hyphens, so "Xray" and "X-Ray" both resolve to XRay.
func ParseExamType(s string) (ExamType, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	for e := range examModalities {
		if strings.ToLower(string(e)) == key {
			return e, true
		}
	}
	return "", false
}

// Valid reports whether m is a known modality code
func (m ModalityCode) Valid() bool {
	switch m {
	case ModalityMR, ModalityCT, ModalityXR, ModalityUS:
		return true
	}
	return false
}

// WorklistStatus is the lifecycle state of a modality worklist entry
type WorklistStatus string

const (
	WorklistPending WorklistStatus = "Pending"
	WorklistSuccess WorklistStatus = "Success"
	WorklistError   WorklistStatus = "Error"
)

// Terminal reports whether no further transition is allowed from s
func (s WorklistStatus) Terminal() bool {
	return s == WorklistSuccess || s == WorklistError
}

// WorklistEntry is a scheduled radiology order
type WorklistEntry struct {
	ID               int64          `json:"id"`
	PatientID        string         `json:"patient_id"`
	ExamType         ExamType       `json:"exam_type"`
	PreferredDate    string         `json:"preferred_date"`
	PreferredTime    string         `json:"preferred_time"`
	AccessionNumber  string         `json:"accession_number,omitempty"`
	Status           WorklistStatus `json:"status"`
	StudyInstanceUID string         `json:"study_instance_uid,omitempty"`
	SOPID            string         `json:"sop_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// WorklistResolution is the outcome reported by the image-ingest pipeline
type WorklistResolution struct {
	PatientID        string         `json:"patient_id"`
	Status           WorklistStatus `json:"status"`
	AccessionNumber  string         `json:"accession_number"`
	StudyInstanceUID string         `json:"study_instance_uid"`
	SOPID            string         `json:"sop_id"`
}

// ArchivedStudy identifies a study stored in the PACS
type ArchivedStudy struct {
	SOPID            string `json:"sop_id"`
	StudyInstanceUID string `json:"study_instance_uid"`
}

// ExamOrder carries the patient and exam data used for tag mapping
type ExamOrder struct {
	PatientID       string   `json:"patientid"`
	FirstName       string   `json:"firstname"`
	LastName        string   `json:"lastname"`
	Gender          string   `json:"gender"`
	BirthDate       string   `json:"bdate"`
	ExamType        ExamType `json:"examType"`
	PreferredDate   string   `json:"preferredDate"`
	PreferredTime   string   `json:"preferredTime"`
	AdmitReason     string   `json:"admitreason"`
	Doctor          string   `json:"doctor"`
	AccessionNumber string   `json:"accessionNumber,omitempty"`
}

// ModalityEntry is the worklist view shown at the modality console
type ModalityEntry struct {
	PatientID       string   `json:"patientid"`
	FirstName       string   `json:"firstname"`
	LastName        string   `json:"lastname"`
	Gender          string   `json:"gender"`
	BirthDate       string   `json:"bdate"`
	Doctor          string   `json:"doctor"`
	Department      string   `json:"department"`
	AdmitReason     string   `json:"admitreason"`
	ExamType        ExamType `json:"examType"`
	PreferredDate   string   `json:"preferredDate"`
	PreferredTime   string   `json:"preferredTime"`
	AccessionNumber string   `json:"accessionNumber"`
}

// ExamOrder converts the console view into the tag-mapping input
func (m *ModalityEntry) ExamOrder() ExamOrder {
	return ExamOrder{
		PatientID:       m.PatientID,
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Gender:          m.Gender,
		BirthDate:       m.BirthDate,
		ExamType:        m.ExamType,
		PreferredDate:   m.PreferredDate,
		PreferredTime:   m.PreferredTime,
		AdmitReason:     m.AdmitReason,
		Doctor:          m.Doctor,
		AccessionNumber: m.AccessionNumber,
	}
}

// TagEdit is one DICOM attribute assignment, e.g. (0010,0010)=Jane Doe
type TagEdit struct {
	Tag     string `json:"tag"`
	Keyword string `json:"keyword"`
	Value   string `json:"value"`
}

// TagSet is the ordered list of attribute edits derived for one image
type TagSet []TagEdit

// Get returns the value assigned to tag, in "(gggg,eeee)" form
func (s TagSet) Get(tag string) (string, bool) {
	for _, e := range s {
		if e.Tag == tag {
			return e.Value, true
		}
	}
	return "", false
}

// IngestResult reports the outcome of archiving one acquired image
type IngestResult struct {
	PatientID        string         `json:"patient_id"`
	AccessionNumber  string         `json:"accession_number"`
	Status           WorklistStatus `json:"status"`
	SOPID            string         `json:"sop_id,omitempty"`
	StudyInstanceUID string         `json:"study_instance_uid,omitempty"`
	Tags             TagSet         `json:"tags"`
}
