package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the scheduling service
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	tables := []string{
		createDoctorsTable,
		createAppointmentsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createDoctorsIndexes,
		createAppointmentsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`); err != nil {
		return fmt.Errorf("failed to create extension: %w", err)
	}
	return nil
}

// SQL DDL statements for table creation
const (
	createDoctorsTable = `
		CREATE TABLE IF NOT EXISTS doctors (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id VARCHAR(64) UNIQUE NOT NULL,
			full_name VARCHAR(200) NOT NULL,
			specialty VARCHAR(100) NOT NULL,
			consultation_fee NUMERIC(10,2) NOT NULL DEFAULT 0,
			weekly_hours JSONB,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	createAppointmentsTable = `
		CREATE TABLE IF NOT EXISTS appointments (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id VARCHAR(64) NOT NULL,
			doctor_id UUID NOT NULL REFERENCES doctors(id),
			start_time TIMESTAMPTZ NOT NULL,
			appointment_type VARCHAR(10) NOT NULL
				CHECK (appointment_type IN ('video', 'audio', 'chat')),
			status VARCHAR(20) NOT NULL DEFAULT 'scheduled'
				CHECK (status IN ('scheduled', 'confirmed', 'in_progress', 'completed', 'cancelled', 'no_show')),
			consultation_fee NUMERIC(10,2) NOT NULL DEFAULT 0,
			reason_for_visit TEXT,
			symptoms TEXT,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	createDoctorsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_doctors_user_id ON doctors(user_id);
		CREATE INDEX IF NOT EXISTS idx_doctors_specialty ON doctors(specialty);`

	// The partial unique index is the transactional backstop for the booking
	// invariant: at most one non-terminal appointment per (doctor, start_time).
	createAppointmentsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id);
		CREATE INDEX IF NOT EXISTS idx_appointments_doctor_start ON appointments(doctor_id, start_time);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_active_slot
			ON appointments(doctor_id, start_time)
			WHERE status IN ('scheduled', 'confirmed', 'in_progress');`
)
