package worklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/RouteToVasanth/Quantum-Care/pkg/database"
	"github.com/RouteToVasanth/Quantum-Care/pkg/interfaces"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

const (
	insertEntryQuery = `
		INSERT INTO mwl (patient_id, exam_type, preferred_date, preferred_time, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	selectPendingEntryQuery = `
		SELECT id, patient_id, exam_type, COALESCE(preferred_date, ''), COALESCE(preferred_time, ''),
			   COALESCE(accession_number, ''), status, created_at, updated_at
		FROM mwl
		WHERE patient_id = $1 AND status = 'Pending'`

	// The status predicate is the guard: a resolved row never matches again.
	resolveEntryQuery = `
		UPDATE mwl
		SET status = $2,
			accession_number = COALESCE($3, accession_number),
			study_instance_uid = $4,
			sop_id = $5,
			updated_at = NOW()
		WHERE patient_id = $1 AND status = 'Pending'`

	// Only an untouched Pending row may be withdrawn.
	deletePendingEntryQuery = `
		DELETE FROM mwl
		WHERE id = $1 AND status = 'Pending'`

	selectModalityEntryQuery = `
		SELECT p.pid, p.fname, p.lname, COALESCE(p.gender, ''), COALESCE(p.bdate, ''),
			   COALESCE(e.doctor, p.doctor, ''), COALESCE(e.department, p.department, ''),
			   COALESCE(e.admit_reason, p.admit_reason, ''),
			   m.exam_type, COALESCE(m.preferred_date, ''), COALESCE(m.preferred_time, ''),
			   COALESCE(m.accession_number, '')
		FROM mwl m
		JOIN patients p ON p.pid = m.patient_id
		LEFT JOIN LATERAL (
			SELECT doctor, department, admit_reason
			FROM adt_events
			WHERE patient_id = m.patient_id
			ORDER BY id DESC
			LIMIT 1
		) e ON TRUE
		WHERE m.patient_id = $1 AND m.status = 'Pending'`

	selectArchivedStudiesQuery = `
		SELECT sop_id, study_instance_uid
		FROM mwl
		WHERE patient_id = $1 AND status = 'Success'
		ORDER BY preferred_date DESC, id DESC`
)

// Repository implements the WorklistRepository interface on PostgreSQL
type Repository struct {
	db *database.DB
}

// NewRepository creates a new worklist repository
func NewRepository(db *database.DB) interfaces.WorklistRepository {
	return &Repository{db: db}
}

// CreateEntry inserts a Pending worklist entry. The partial unique index on
// Pending rows turns a racing second order into a conflict.
func (r *Repository) CreateEntry(ctx context.Context, entry *types.WorklistEntry) error {
	start := time.Now()
	err := r.db.QueryRowContext(ctx, insertEntryQuery,
		entry.PatientID,
		string(entry.ExamType),
		entry.PreferredDate,
		entry.PreferredTime,
		string(entry.Status),
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	r.db.Observe(ctx, "insert", "mwl", start, 1, err,
		map[string]interface{}{"patient_id": entry.PatientID})

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.NewConflictError("patient already has a pending worklist entry",
				map[string]interface{}{"patient_id": entry.PatientID})
		}
		return fmt.Errorf("failed to create worklist entry: %w", err)
	}
	return nil
}

// GetPendingEntry returns the patient's Pending entry
func (r *Repository) GetPendingEntry(ctx context.Context, patientID string) (*types.WorklistEntry, error) {
	entry := &types.WorklistEntry{}
	var exam, status string
	err := r.db.QueryRowContext(ctx, selectPendingEntryQuery, patientID).Scan(
		&entry.ID,
		&entry.PatientID,
		&exam,
		&entry.PreferredDate,
		&entry.PreferredTime,
		&entry.AccessionNumber,
		&status,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFoundError(fmt.Sprintf("no pending worklist entry for patient %s", patientID))
		}
		return nil, fmt.Errorf("failed to get pending worklist entry: %w", err)
	}

	entry.ExamType = types.ExamType(exam)
	entry.Status = types.WorklistStatus(status)
	return entry, nil
}

// ResolveEntry implements the guarded Pending → terminal write
func (r *Repository) ResolveEntry(ctx context.Context, res *types.WorklistResolution) error {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, resolveEntryQuery,
		res.PatientID,
		string(res.Status),
		nullable(res.AccessionNumber),
		nullable(res.StudyInstanceUID),
		nullable(res.SOPID),
	)
	if err != nil {
		r.db.Observe(ctx, "update", "mwl", start, 0, err,
			map[string]interface{}{"patient_id": res.PatientID})
		return fmt.Errorf("failed to resolve worklist entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	r.db.Observe(ctx, "update", "mwl", start, rows, nil,
		map[string]interface{}{"patient_id": res.PatientID, "status": string(res.Status)})

	if rows == 0 {
		return types.NewConflictError("worklist entry is no longer pending", map[string]interface{}{
			"patient_id": res.PatientID,
			"status":     string(res.Status),
		})
	}
	return nil
}

// DeletePendingEntry withdraws a Pending entry that was opened for an
// admission event which then failed to record
func (r *Repository) DeletePendingEntry(ctx context.Context, id int64) error {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, deletePendingEntryQuery, id)
	if err != nil {
		r.db.Observe(ctx, "delete", "mwl", start, 0, err, map[string]interface{}{"id": id})
		return fmt.Errorf("failed to delete worklist entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	r.db.Observe(ctx, "delete", "mwl", start, rows, nil, map[string]interface{}{"id": id})

	if rows == 0 {
		return types.NewConflictError("worklist entry is no longer pending", map[string]interface{}{"id": id})
	}
	return nil
}

// GetModalityEntry returns the console view of the patient's Pending order
func (r *Repository) GetModalityEntry(ctx context.Context, patientID string) (*types.ModalityEntry, error) {
	me := &types.ModalityEntry{}
	var exam string
	err := r.db.QueryRowContext(ctx, selectModalityEntryQuery, patientID).Scan(
		&me.PatientID,
		&me.FirstName,
		&me.LastName,
		&me.Gender,
		&me.BirthDate,
		&me.Doctor,
		&me.Department,
		&me.AdmitReason,
		&exam,
		&me.PreferredDate,
		&me.PreferredTime,
		&me.AccessionNumber,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFoundError(fmt.Sprintf("no pending worklist entry for patient %s", patientID))
		}
		return nil, fmt.Errorf("failed to get modality entry: %w", err)
	}
	me.ExamType = types.ExamType(exam)
	return me, nil
}

// GetArchivedStudies lists the PACS identifiers of the patient's Success entries
func (r *Repository) GetArchivedStudies(ctx context.Context, patientID string) ([]types.ArchivedStudy, error) {
	rows, err := r.db.QueryContext(ctx, selectArchivedStudiesQuery, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived studies: %w", err)
	}
	defer rows.Close()

	studies := []types.ArchivedStudy{}
	for rows.Next() {
		var s types.ArchivedStudy
		var sop, uid sql.NullString
		if err := rows.Scan(&sop, &uid); err != nil {
			return nil, fmt.Errorf("failed to scan archived study: %w", err)
		}
		s.SOPID = sop.String
		s.StudyInstanceUID = uid.String
		studies = append(studies, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived studies: %w", err)
	}
	return studies, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
