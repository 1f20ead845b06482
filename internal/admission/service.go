// Package admission implements the patient lifecycle: every registration,
// visit, transfer, discharge or edit is classified, rendered as an HL7 ADT
// message, parsed back and persisted, and opens a radiology order when it
// targets the Radiology department.
package admission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RouteToVasanth/Quantum-Care/pkg/config"
	"github.com/RouteToVasanth/Quantum-Care/pkg/hl7"
	"github.com/RouteToVasanth/Quantum-Care/pkg/interfaces"
	"github.com/RouteToVasanth/Quantum-Care/pkg/logger"
	"github.com/RouteToVasanth/Quantum-Care/pkg/monitoring"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// Dependencies are the collaborators of the admission service
type Dependencies struct {
	Repository interfaces.AdmissionRepository
	Patients   interfaces.PatientStore
	Worklist   interfaces.WorklistService
	Imaging    interfaces.ImagingPipeline
	Publisher  interfaces.MessagePublisher
	Metrics    *monitoring.MetricsCollector
}

// Service implements the AdmissionService interface
type Service struct {
	config       *config.Config
	logger       *logger.Logger
	metrics      *monitoring.MetricsCollector
	repository   interfaces.AdmissionRepository
	patients     interfaces.PatientStore
	worklist     interfaces.WorklistService
	imaging      interfaces.ImagingPipeline
	publisher    interfaces.MessagePublisher
	encoder      *hl7.Encoder
	newPatientID func() string
	server       *http.Server
}

// New creates a new admission service
func New(cfg *config.Config, log *logger.Logger, deps Dependencies) *Service {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = noopPublisher{}
	}

	return &Service{
		config:       cfg,
		logger:       log,
		metrics:      deps.Metrics,
		repository:   deps.Repository,
		patients:     deps.Patients,
		worklist:     deps.Worklist,
		imaging:      deps.Imaging,
		publisher:    publisher,
		encoder:      hl7.NewEncoder(encoderOptions(&cfg.HL7)),
		newPatientID: func() string { return hl7.HashedID(8) },
	}
}

func encoderOptions(cfg *config.HL7Config) hl7.Options {
	opts := hl7.DefaultOptions()
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&opts.SendingApplication, cfg.SendingApplication)
	set(&opts.SendingFacility, cfg.SendingFacility)
	set(&opts.ReceivingApplication, cfg.ReceivingApplication)
	set(&opts.ReceivingFacility, cfg.ReceivingFacility)
	set(&opts.HospitalName, cfg.HospitalName)
	set(&opts.ProcessingID, cfg.ProcessingID)
	set(&opts.Version, cfg.Version)
	return opts
}

// RegisterPatient registers a new patient on visit 1
func (s *Service) RegisterPatient(ctx context.Context, patient *types.Patient) (*types.AdmissionResult, error) {
	if err := validateRegistration(patient); err != nil {
		return nil, err
	}
	c, err := hl7.Classify(patient.PatientType, types.OperationNew)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(patient.Department, patient.ExamType); err != nil {
		return nil, err
	}

	if patient.Email != "" {
		exists, err := s.patients.EmailExists(ctx, patient.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, types.NewDuplicateEmailError(patient.Email)
		}
	}

	patient.PID = s.newPatientID()
	patient.Visit = 1
	if patient.Gender != "" {
		patient.Gender = types.GenderFromCode(types.GenderCode(patient.Gender))
	}

	raw, event, err := s.render(ctx, patient.Snapshot(), c)
	if err != nil {
		return nil, err
	}

	var undo compensation
	entry, err := s.openOrder(ctx, &undo, patient.PID, patient.Department, patient.Snapshot().Order)
	if err != nil {
		return nil, err
	}

	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, s.rollback(ctx, undo, patient.PID, err)
	}
	undo.add(func(ctx context.Context) error { return s.patients.Delete(ctx, patient.PID) })

	msg := storedMessage(raw, event)
	if err := s.repository.RecordRegistration(ctx, patient, msg, event); err != nil {
		return nil, s.rollback(ctx, undo, patient.PID, err)
	}

	s.publish(ctx, msg)
	s.logger.WithContext(ctx).WithField("patient_id", patient.PID).Info("Patient registered")
	return &types.AdmissionResult{Patient: patient, Message: raw, Event: event, WorklistEntry: entry}, nil
}

// SubmitVisit starts a new visit, incrementing the visit number
func (s *Service) SubmitVisit(ctx context.Context, patientID string, req *types.VisitRequest) (*types.AdmissionResult, error) {
	if req.Department == "" {
		return nil, types.NewMissingFieldError("department")
	}
	c, err := hl7.Classify(req.PatientType, types.OperationSubmit)
	if err != nil {
		return nil, err
	}
	if err := checkOrder(req.Department, req.ExamType); err != nil {
		return nil, err
	}
	current, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var undo compensation
	entry, err := s.openOrder(ctx, &undo, patientID, req.Department, req.Order())
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.BeginVisit(ctx, patientID, req)
	if err != nil {
		return nil, s.rollback(ctx, undo, patientID, err)
	}
	undo.add(s.restore(current))

	result, err := s.emit(ctx, patient, patient.Snapshot(), c)
	if err != nil {
		return nil, s.rollback(ctx, undo, patientID, err)
	}
	result.WorklistEntry = entry
	return result, nil
}

// TransferPatient moves the patient to another department within the
// current visit
func (s *Service) TransferPatient(ctx context.Context, patientID string, req *types.TransferRequest) (*types.AdmissionResult, error) {
	if req.Department == "" {
		return nil, types.NewMissingFieldError("newDepartment")
	}
	if err := checkOrder(req.Department, req.ExamType); err != nil {
		return nil, err
	}
	current, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	c, err := hl7.Classify(current.PatientType, types.OperationTransfer)
	if err != nil {
		return nil, err
	}

	var undo compensation
	entry, err := s.openOrder(ctx, &undo, patientID, req.Department, req.Order())
	if err != nil {
		return nil, err
	}

	prior, err := s.patients.MoveDepartment(ctx, patientID, req)
	if err != nil {
		return nil, s.rollback(ctx, undo, patientID, err)
	}
	undo.add(s.restore(prior))

	moved := *prior
	moved.Department = req.Department
	moved.Doctor = req.Doctor
	moved.ExamType = req.ExamType
	moved.PreferredDate = req.PreferredDate
	moved.PreferredTime = req.PreferredTime

	snap := moved.Snapshot()
	snap.PriorDepartment = prior.Department

	result, err := s.emit(ctx, &moved, snap, c)
	if err != nil {
		return nil, s.rollback(ctx, undo, patientID, err)
	}
	result.WorklistEntry = entry
	return result, nil
}

// DischargePatient ends the current visit
func (s *Service) DischargePatient(ctx context.Context, patientID string) (*types.AdmissionResult, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	c, err := hl7.Classify(patient.PatientType, types.OperationDischarge)
	if err != nil {
		return nil, err
	}
	return s.emit(ctx, patient, patient.Snapshot(), c)
}

// EditPatient changes demographic data
func (s *Service) EditPatient(ctx context.Context, patientID string, updates *types.PatientUpdates) (*types.AdmissionResult, error) {
	if updates == nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "no updates provided", nil)
	}
	if updates.PatientType != nil {
		if _, err := hl7.Classify(*updates.PatientType, types.OperationEdit); err != nil {
			return nil, err
		}
	}

	current, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var undo compensation
	patient, err := s.patients.Update(ctx, patientID, updates)
	if err != nil {
		return nil, err
	}
	undo.add(s.restore(current))

	c, err := hl7.Classify(patient.PatientType, types.OperationEdit)
	if err != nil {
		return nil, s.rollback(ctx, undo, patientID, err)
	}
	result, err := s.emit(ctx, patient, patient.Snapshot(), c)
	if err != nil {
		return nil, s.rollback(ctx, undo, patientID, err)
	}
	return result, nil
}

// GetPatient returns demographics, the latest ADT event and archived studies
func (s *Service) GetPatient(ctx context.Context, patientID string) (*types.PatientRecord, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	record := &types.PatientRecord{Patient: patient}

	latest, err := s.repository.GetLatestEvent(ctx, patientID)
	switch {
	case err == nil:
		record.LatestEvent = latest
	case !errors.Is(err, types.ErrNotFound):
		return nil, err
	}

	studies, err := s.worklist.GetArchivedStudies(ctx, patientID)
	if err != nil {
		return nil, err
	}
	record.Studies = studies
	return record, nil
}

// ParseMessage decodes a raw ADT message without persisting it
func (s *Service) ParseMessage(ctx context.Context, raw string) (*types.ClinicalEvent, error) {
	event, err := hl7.Parse(raw)
	if err != nil {
		s.logger.HL7Message(ctx, "", "", "", false, map[string]interface{}{"error": err.Error()})
		s.metrics.RecordHL7Message("unknown", false)
		return nil, err
	}
	s.logger.HL7Message(ctx, event.MessageType(), event.ControlID, event.PatientID, true,
		map[string]interface{}{"direction": "inbound"})
	s.metrics.RecordHL7Message(string(event.Trigger), true)
	return event, nil
}

// emit renders, parses and records the message for an existing patient in
// event-log mode, then forwards it downstream
func (s *Service) emit(ctx context.Context, patient *types.Patient, snap types.PatientSnapshot, c hl7.Classification) (*types.AdmissionResult, error) {
	raw, event, err := s.render(ctx, snap, c)
	if err != nil {
		return nil, err
	}

	msg := storedMessage(raw, event)
	if err := s.repository.RecordEvent(ctx, patient, msg, event); err != nil {
		return nil, err
	}

	s.publish(ctx, msg)
	return &types.AdmissionResult{Patient: patient, Message: raw, Event: event}, nil
}

// render encodes the event for snap and parses it back
func (s *Service) render(ctx context.Context, snap types.PatientSnapshot, c hl7.Classification) (string, *types.ClinicalEvent, error) {
	trigger := string(c.Trigger)

	msg, err := s.encoder.Encode(hl7.NewEvent(snap, c))
	if err != nil {
		s.logger.HL7Message(ctx, "ADT^"+trigger, "", snap.PatientID, false, map[string]interface{}{"error": err.Error()})
		s.metrics.RecordHL7Message(trigger, false)
		return "", nil, err
	}
	raw := msg.String()

	event, err := hl7.Parse(raw)
	if err != nil {
		s.metrics.RecordHL7Message(trigger, false)
		return "", nil, types.NewInternalError("generated message failed to parse", err)
	}

	s.logger.HL7Message(ctx, event.MessageType(), event.ControlID, event.PatientID, true,
		map[string]interface{}{"direction": "outbound", "visit": event.VisitNumber})
	s.metrics.RecordHL7Message(trigger, true)
	return raw, event, nil
}

// openOrder creates the Pending worklist entry for a Radiology event and
// registers its withdrawal on undo. The pending check runs before any other
// write, so a rejected order leaves nothing behind.
func (s *Service) openOrder(ctx context.Context, undo *compensation, patientID, department string, order types.RadiologyOrder) (*types.WorklistEntry, error) {
	if department != types.DepartmentRadiology {
		return nil, nil
	}
	entry, err := s.worklist.CreateOrder(ctx, patientID, order)
	if err != nil {
		return nil, err
	}
	undo.add(func(ctx context.Context) error { return s.worklist.CancelOrder(ctx, entry) })
	return entry, nil
}

// compensation holds the writes that undo an operation's completed steps
// across the patient store and the worklist
type compensation []func(ctx context.Context) error

func (c *compensation) add(step func(ctx context.Context) error) {
	*c = append(*c, step)
}

// rollback runs undo newest first and returns cause. A failed step is logged
// and the remaining steps still run.
func (s *Service) rollback(ctx context.Context, undo compensation, patientID string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("patient_id", patientID).
				Error("Failed to undo partial admission write")
		}
	}
	return cause
}

func (s *Service) restore(prior *types.Patient) func(ctx context.Context) error {
	return func(ctx context.Context) error { return s.patients.Restore(ctx, prior) }
}

// publish forwards msg downstream. The message is already persisted, so a
// feed failure is logged and not returned.
func (s *Service) publish(ctx context.Context, msg *types.StoredMessage) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to publish ADT message")
		s.metrics.RecordExternalToolFailure("kafka")
	}
}

func storedMessage(raw string, event *types.ClinicalEvent) *types.StoredMessage {
	return &types.StoredMessage{
		PatientID:   event.PatientID,
		MessageType: event.MessageType(),
		ControlID:   event.ControlID,
		Raw:         raw,
	}
}

// checkOrder validates the radiology order carried by a Radiology event
func checkOrder(department, examType string) error {
	if department != types.DepartmentRadiology {
		return nil
	}
	if examType == "" {
		return types.NewMissingFieldError("examType")
	}
	if _, ok := types.ParseExamType(examType); !ok {
		return types.NewUnknownModalityError(examType)
	}
	return nil
}

func validateRegistration(p *types.Patient) error {
	if p == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "Invalid patient details", nil)
	}
	required := []struct {
		name  string
		value string
	}{
		{"fname", p.FirstName},
		{"lname", p.LastName},
		{"patientType", p.PatientType},
		{"department", p.Department},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return types.NewMissingFieldError(f.name)
		}
	}
	return nil
}

// Start serves handler on addr until Stop is called
func (s *Service) Start(addr string, handler http.Handler) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}

	s.logger.Infof("Starting Admission Service on %s", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admission service stopped: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down and flushes the outbound feed
func (s *Service) Stop(ctx context.Context) error {
	var errs []error
	if s.server != nil {
		s.logger.Info("Stopping Admission Service")
		errs = append(errs, s.server.Shutdown(ctx))
	}
	errs = append(errs, s.publisher.Close())
	return errors.Join(errs...)
}
