package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the admission, worklist and sequencer tables
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	tables := []string{
		createPatientsTable,
		createADTEventsTable,
		createADTMessagesTable,
		createWorklistTable,
		createAccessionCountersTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createADTEventsIndexes,
		createADTMessagesIndexes,
		createWorklistIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// SQL DDL statements for table creation
const (
	createPatientsTable = `
		CREATE TABLE IF NOT EXISTS patients (
			pid VARCHAR(16) PRIMARY KEY,
			visit INTEGER NOT NULL DEFAULT 1,
			fname VARCHAR(100) NOT NULL,
			lname VARCHAR(100) NOT NULL,
			bdate VARCHAR(10),
			gender VARCHAR(20),
			address_line1 VARCHAR(200),
			address_line2 VARCHAR(200),
			city VARCHAR(100),
			state VARCHAR(100),
			zip_code VARCHAR(20),
			phone_number VARCHAR(30),
			email VARCHAR(200),
			patient_type VARCHAR(20) NOT NULL,
			department VARCHAR(100),
			doctor VARCHAR(100),
			admit_reason TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createADTEventsTable = `
		CREATE TABLE IF NOT EXISTS adt_events (
			id BIGSERIAL PRIMARY KEY,
			patient_id VARCHAR(16) NOT NULL,
			trigger_event VARCHAR(3) NOT NULL,
			patient_class VARCHAR(1) NOT NULL,
			hospital_service VARCHAR(3) NOT NULL,
			control_id VARCHAR(20) NOT NULL,
			event_time TIMESTAMP WITH TIME ZONE NOT NULL,
			visit_number INTEGER NOT NULL,
			fname VARCHAR(100),
			lname VARCHAR(100),
			gender VARCHAR(20),
			address_line1 VARCHAR(200),
			city VARCHAR(100),
			state VARCHAR(100),
			zip_code VARCHAR(20),
			department VARCHAR(100),
			prior_department VARCHAR(100),
			doctor VARCHAR(100),
			admit_reason TEXT,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createADTMessagesTable = `
		CREATE TABLE IF NOT EXISTS adt_messages (
			id BIGSERIAL PRIMARY KEY,
			patient_id VARCHAR(16) NOT NULL,
			message_type VARCHAR(10) NOT NULL,
			control_id VARCHAR(20) NOT NULL,
			raw TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createWorklistTable = `
		CREATE TABLE IF NOT EXISTS mwl (
			id BIGSERIAL PRIMARY KEY,
			patient_id VARCHAR(16) NOT NULL,
			exam_type VARCHAR(20) NOT NULL,
			preferred_date VARCHAR(10),
			preferred_time VARCHAR(8),
			accession_number VARCHAR(20),
			status VARCHAR(10) NOT NULL DEFAULT 'Pending',
			study_instance_uid VARCHAR(128),
			sop_id VARCHAR(128),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createAccessionCountersTable = `
		CREATE TABLE IF NOT EXISTS accession_counters (
			modality VARCHAR(4) PRIMARY KEY,
			last_seq BIGINT NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`
)

// SQL DDL statements for index creation
const (
	createADTEventsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_adt_events_patient_id ON adt_events(patient_id, id DESC);
		CREATE INDEX IF NOT EXISTS idx_adt_events_trigger ON adt_events(trigger_event);`

	createADTMessagesIndexes = `
		CREATE INDEX IF NOT EXISTS idx_adt_messages_patient_id ON adt_messages(patient_id);
		CREATE INDEX IF NOT EXISTS idx_adt_messages_control_id ON adt_messages(control_id);`

	// At most one Pending order per patient.
	createWorklistIndexes = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_mwl_one_pending ON mwl(patient_id) WHERE status = 'Pending';
		CREATE INDEX IF NOT EXISTS idx_mwl_status ON mwl(status);`
)
