// Package worklist drives radiology work orders through their lifecycle.
// An entry is created Pending and moves exactly once to Success or Error.
package worklist

import (
	"context"
	"errors"
	"fmt"

	"github.com/RouteToVasanth/Quantum-Care/pkg/interfaces"
	"github.com/RouteToVasanth/Quantum-Care/pkg/logger"
	"github.com/RouteToVasanth/Quantum-Care/pkg/monitoring"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// Service implements the WorklistService interface
type Service struct {
	repository interfaces.WorklistRepository
	logger     *logger.Logger
	metrics    *monitoring.MetricsCollector
}

// NewService creates a worklist service. metrics may be nil.
func NewService(repo interfaces.WorklistRepository, log *logger.Logger, metrics *monitoring.MetricsCollector) *Service {
	return &Service{
		repository: repo,
		logger:     log,
		metrics:    metrics,
	}
}

// CreateOrder opens a Pending entry for the patient. A patient may hold only
// one Pending entry at a time.
func (s *Service) CreateOrder(ctx context.Context, patientID string, order types.RadiologyOrder) (*types.WorklistEntry, error) {
	if patientID == "" {
		return nil, types.NewMissingFieldError("patient_id")
	}
	if order.ExamType == "" {
		return nil, types.NewMissingFieldError("examType")
	}
	exam, ok := types.ParseExamType(order.ExamType)
	if !ok {
		return nil, types.NewUnknownModalityError(order.ExamType)
	}

	existing, err := s.repository.GetPendingEntry(ctx, patientID)
	switch {
	case err == nil:
		s.logger.WorklistTransition(ctx, patientID, "", string(types.WorklistPending), false,
			map[string]interface{}{"pending_id": existing.ID})
		return nil, types.NewConflictError("patient already has a pending worklist entry",
			map[string]interface{}{"patient_id": patientID, "pending_id": existing.ID})
	case !errors.Is(err, types.ErrNotFound):
		return nil, fmt.Errorf("failed to check pending worklist entry: %w", err)
	}

	entry := &types.WorklistEntry{
		PatientID:     patientID,
		ExamType:      exam,
		PreferredDate: order.PreferredDate,
		PreferredTime: order.PreferredTime,
		Status:        types.WorklistPending,
	}
	if err := s.repository.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.WorklistTransition(ctx, patientID, "", string(types.WorklistPending), true,
		map[string]interface{}{"exam_type": string(exam)})
	s.metrics.RecordWorklistTransition(string(types.WorklistPending))
	return entry, nil
}

// Resolve moves the patient's Pending entry to Success or Error
func (s *Service) Resolve(ctx context.Context, res *types.WorklistResolution) error {
	if res == nil || res.PatientID == "" {
		return types.NewMissingFieldError("patient_id")
	}
	if !res.Status.Terminal() {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("worklist entries can only be resolved to %s or %s", types.WorklistSuccess, types.WorklistError),
			map[string]interface{}{"status": string(res.Status)})
	}

	if err := s.repository.ResolveEntry(ctx, res); err != nil {
		s.logger.WorklistTransition(ctx, res.PatientID, string(types.WorklistPending), string(res.Status), false,
			map[string]interface{}{"error": err.Error()})
		return err
	}

	s.logger.WorklistTransition(ctx, res.PatientID, string(types.WorklistPending), string(res.Status), true,
		map[string]interface{}{
			"accession":          res.AccessionNumber,
			"study_instance_uid": res.StudyInstanceUID,
		})
	s.metrics.RecordWorklistTransition(string(res.Status))
	return nil
}

// CancelOrder withdraws a Pending entry whose admission event could not be
// recorded
func (s *Service) CancelOrder(ctx context.Context, entry *types.WorklistEntry) error {
	if err := s.repository.DeletePendingEntry(ctx, entry.ID); err != nil {
		s.logger.WorklistTransition(ctx, entry.PatientID, string(types.WorklistPending), "Cancelled", false,
			map[string]interface{}{"id": entry.ID, "error": err.Error()})
		return err
	}
	s.logger.WorklistTransition(ctx, entry.PatientID, string(types.WorklistPending), "Cancelled", true,
		map[string]interface{}{"id": entry.ID})
	return nil
}

// GetModalityEntry returns the console view of the patient's Pending order
func (s *Service) GetModalityEntry(ctx context.Context, patientID string) (*types.ModalityEntry, error) {
	return s.repository.GetModalityEntry(ctx, patientID)
}

// GetArchivedStudies lists the studies archived for the patient
func (s *Service) GetArchivedStudies(ctx context.Context, patientID string) ([]types.ArchivedStudy, error) {
	return s.repository.GetArchivedStudies(ctx, patientID)
}
