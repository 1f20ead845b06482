package admission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RouteToVasanth/Quantum-Care/pkg/database"
	"github.com/RouteToVasanth/Quantum-Care/pkg/interfaces"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

const (
	insertPatientQuery = `
		INSERT INTO patients (
			pid, visit, fname, lname, bdate, gender, address_line1, address_line2,
			city, state, zip_code, phone_number, email, patient_type, department,
			doctor, admit_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	syncPatientQuery = `
		UPDATE patients
		SET visit = $2, fname = $3, lname = $4, bdate = $5, gender = $6,
			address_line1 = $7, address_line2 = $8, city = $9, state = $10,
			zip_code = $11, phone_number = $12, email = $13, patient_type = $14,
			department = $15, doctor = $16, admit_reason = $17, updated_at = NOW()
		WHERE pid = $1`

	insertEventQuery = `
		INSERT INTO adt_events (
			patient_id, trigger_event, patient_class, hospital_service, control_id,
			event_time, visit_number, fname, lname, gender, address_line1, city,
			state, zip_code, department, prior_department, doctor, admit_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`

	insertMessageQuery = `
		INSERT INTO adt_messages (patient_id, message_type, control_id, raw)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	selectLatestEventQuery = `
		SELECT id, patient_id, trigger_event, patient_class, hospital_service, control_id,
			   event_time, visit_number, COALESCE(fname, ''), COALESCE(lname, ''),
			   COALESCE(gender, ''), COALESCE(address_line1, ''), COALESCE(city, ''),
			   COALESCE(state, ''), COALESCE(zip_code, ''), COALESCE(department, ''),
			   COALESCE(prior_department, ''), COALESCE(doctor, ''),
			   COALESCE(admit_reason, ''), recorded_at
		FROM adt_events
		WHERE patient_id = $1
		ORDER BY id DESC
		LIMIT 1`
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository implements the AdmissionRepository interface on PostgreSQL
type Repository struct {
	db *database.DB
}

// NewRepository creates a new admission repository
func NewRepository(db *database.DB) interfaces.AdmissionRepository {
	return &Repository{db: db}
}

// RecordRegistration stores a new patient with its first message and event
func (r *Repository) RecordRegistration(ctx context.Context, patient *types.Patient, msg *types.StoredMessage, event *types.ClinicalEvent) error {
	start := time.Now()
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertPatientQuery, patientArgs(patient)...); err != nil {
			return fmt.Errorf("failed to insert patient: %w", err)
		}
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		if _, err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
		return nil
	})

	r.db.Observe(ctx, "register", "patients", start, 3, err,
		map[string]interface{}{"patient_id": patient.PID})
	return err
}

// RecordEvent brings the relational patient row up to date and appends
// the message and its parsed event, all in one transaction
func (r *Repository) RecordEvent(ctx context.Context, patient *types.Patient, msg *types.StoredMessage, event *types.ClinicalEvent) error {
	start := time.Now()
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := syncPatient(ctx, tx, patient); err != nil {
			return err
		}
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		if _, err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
		return nil
	})

	r.db.Observe(ctx, "record", "adt_events", start, 3, err,
		map[string]interface{}{"patient_id": event.PatientID, "trigger": string(event.Trigger)})
	return err
}

// GetLatestEvent returns the most recent ADT event recorded for a patient
func (r *Repository) GetLatestEvent(ctx context.Context, patientID string) (*types.StoredEvent, error) {
	ev := &types.StoredEvent{}
	var trigger, class, service string
	err := r.db.QueryRowContext(ctx, selectLatestEventQuery, patientID).Scan(
		&ev.ID,
		&ev.PatientID,
		&trigger,
		&class,
		&service,
		&ev.ControlID,
		&ev.Timestamp,
		&ev.VisitNumber,
		&ev.FirstName,
		&ev.LastName,
		&ev.Gender,
		&ev.Address.Line1,
		&ev.Address.City,
		&ev.Address.State,
		&ev.Address.ZipCode,
		&ev.Department,
		&ev.PriorDepartment,
		&ev.Doctor,
		&ev.AdmitReason,
		&ev.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewNotFoundError(fmt.Sprintf("no ADT events for patient %s", patientID))
		}
		return nil, fmt.Errorf("failed to get latest ADT event: %w", err)
	}

	ev.Trigger = types.TriggerCode(trigger)
	ev.PatientClass = types.PatientClass(class)
	ev.HospitalService = types.HospitalService(service)
	return ev, nil
}

func syncPatient(ctx context.Context, q querier, patient *types.Patient) error {
	result, err := q.ExecContext(ctx, syncPatientQuery, patientArgs(patient)...)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return types.NewNotFoundError(fmt.Sprintf("patient %s not found", patient.PID))
	}
	return nil
}

func insertEvent(ctx context.Context, q querier, ev *types.ClinicalEvent) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, insertEventQuery,
		ev.PatientID,
		string(ev.Trigger),
		string(ev.PatientClass),
		string(ev.HospitalService),
		ev.ControlID,
		ev.Timestamp,
		ev.VisitNumber,
		ev.FirstName,
		ev.LastName,
		ev.Gender,
		ev.Address.Line1,
		ev.Address.City,
		ev.Address.State,
		ev.Address.ZipCode,
		ev.Department,
		ev.PriorDepartment,
		ev.Doctor,
		ev.AdmitReason,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ADT event: %w", err)
	}
	return id, nil
}

func insertMessage(ctx context.Context, q querier, msg *types.StoredMessage) error {
	err := q.QueryRowContext(ctx, insertMessageQuery,
		msg.PatientID,
		msg.MessageType,
		msg.ControlID,
		msg.Raw,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ADT message: %w", err)
	}
	return nil
}

func patientArgs(p *types.Patient) []interface{} {
	return []interface{}{
		p.PID,
		p.Visit,
		p.FirstName,
		p.LastName,
		p.BirthDate,
		p.Gender,
		p.AddressLine1,
		p.AddressLine2,
		p.City,
		p.State,
		p.ZipCode,
		p.PhoneNumber,
		p.Email,
		p.PatientType,
		p.Department,
		p.Doctor,
		p.AdmitReason,
	}
}
