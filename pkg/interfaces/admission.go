package interfaces

import (
	"context"

	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// AdmissionService defines the patient lifecycle operations that emit ADT messages
type AdmissionService interface {
	RegisterPatient(ctx context.Context, patient *types.Patient) (*types.AdmissionResult, error)
	SubmitVisit(ctx context.Context, patientID string, req *types.VisitRequest) (*types.AdmissionResult, error)
	TransferPatient(ctx context.Context, patientID string, req *types.TransferRequest) (*types.AdmissionResult, error)
	DischargePatient(ctx context.Context, patientID string) (*types.AdmissionResult, error)
	EditPatient(ctx context.Context, patientID string, updates *types.PatientUpdates) (*types.AdmissionResult, error)

	GetPatient(ctx context.Context, patientID string) (*types.PatientRecord, error)
	ParseMessage(ctx context.Context, raw string) (*types.ClinicalEvent, error)
}

// AdmissionRepository persists patients, ADT events and raw ADT messages
type AdmissionRepository interface {
	// RecordRegistration stores a new patient together with its first
	// message and event in one transaction.
	RecordRegistration(ctx context.Context, patient *types.Patient, msg *types.StoredMessage, event *types.ClinicalEvent) error

	// RecordEvent copies the current registration document into the
	// relational patients table and appends the message and event, in one
	// transaction.
	RecordEvent(ctx context.Context, patient *types.Patient, msg *types.StoredMessage, event *types.ClinicalEvent) error

	GetLatestEvent(ctx context.Context, patientID string) (*types.StoredEvent, error)
}

// PatientStore keeps patient registration documents
type PatientStore interface {
	Create(ctx context.Context, patient *types.Patient) error
	Delete(ctx context.Context, patientID string) error

	// Restore writes back a document previously read from the store
	Restore(ctx context.Context, patient *types.Patient) error

	Get(ctx context.Context, patientID string) (*types.Patient, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, patientID string, updates *types.PatientUpdates) (*types.Patient, error)

	// BeginVisit increments the visit number and records the new visit details
	BeginVisit(ctx context.Context, patientID string, req *types.VisitRequest) (*types.Patient, error)

	// MoveDepartment records a transfer and returns the document as it was before
	MoveDepartment(ctx context.Context, patientID string, req *types.TransferRequest) (*types.Patient, error)
}

// MessagePublisher forwards generated ADT messages to downstream systems
type MessagePublisher interface {
	Publish(ctx context.Context, msg *types.StoredMessage) error
	Close() error
}
