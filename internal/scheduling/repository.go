package scheduling

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hmb104/Sahatak/pkg/database"
	"github.com/hmb104/Sahatak/pkg/interfaces"
	"github.com/hmb104/Sahatak/pkg/logger"
	"github.com/hmb104/Sahatak/pkg/types"
)

// uniqueViolation is the PostgreSQL error code raised when an insert or
// update hits the partial unique index over active (doctor, start_time)
// pairs. It is reported to callers as the same Conflict as a pre-check hit.
const uniqueViolation = pq.ErrorCode("23505")

// Repository is the PostgreSQL booking ledger. It also serves doctor
// profiles, which the scheduler reads but only mutates through the explicit
// profile operations.
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new scheduling repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

const appointmentColumns = `id, patient_id, doctor_id, start_time, appointment_type, status,
	   consultation_fee, reason_for_visit, symptoms, notes, created_at, updated_at`

// Insert persists a new appointment. A unique-index violation on the active
// slot maps to a Conflict error.
func (r *Repository) Insert(apt *types.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, start_time, appointment_type, status,
			consultation_fee, reason_for_visit, symptoms, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(query,
		apt.ID,
		apt.PatientID,
		apt.DoctorID,
		apt.StartTime,
		apt.Type,
		apt.Status,
		apt.ConsultationFee,
		apt.ReasonForVisit,
		apt.Symptoms,
		apt.Notes,
		apt.CreatedAt,
		apt.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return types.NewConflictError(types.ErrCodeConflict, "this time slot is already booked")
		}
		r.logger.WithError(err).Error("Failed to insert appointment")
		return types.NewInternalError(types.ErrCodeUnavailable, "failed to insert appointment", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"appointment_id": apt.ID,
		"patient_id":     apt.PatientID,
		"doctor_id":      apt.DoctorID,
	}).Info("Created appointment")
	return nil
}

// GetByID retrieves an appointment by ID
func (r *Repository) GetByID(id string) (*types.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	apt, err := scanAppointment(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("appointment %s not found", id))
		}
		r.logger.WithError(err).Error("Failed to get appointment")
		return nil, types.NewInternalError(types.ErrCodeUnavailable, "failed to get appointment", err)
	}

	return apt, nil
}

// Update rewrites the mutable fields of an appointment. Moving an appointment
// onto an occupied slot trips the unique index and surfaces as Conflict.
func (r *Repository) Update(apt *types.Appointment) error {
	query := `
		UPDATE appointments
		SET start_time = $1, status = $2, notes = $3, updated_at = $4
		WHERE id = $5`

	result, err := r.db.Exec(query, apt.StartTime, apt.Status, apt.Notes, apt.UpdatedAt, apt.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return types.NewConflictError(types.ErrCodeConflict, "this time slot is already booked")
		}
		r.logger.WithError(err).Error("Failed to update appointment")
		return types.NewInternalError(types.ErrCodeUnavailable, "failed to update appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return types.NewInternalError(types.ErrCodeUnavailable, "failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("appointment %s not found", apt.ID))
	}

	r.logger.WithField("appointment_id", apt.ID).Info("Updated appointment")
	return nil
}

// List retrieves appointments based on filters
func (r *Repository) List(filters *types.AppointmentFilters) ([]*types.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	if filters.PatientID != "" {
		query += fmt.Sprintf(" AND patient_id = $%d", argIndex)
		args = append(args, filters.PatientID)
		argIndex++
	}

	if filters.DoctorID != "" {
		query += fmt.Sprintf(" AND doctor_id = $%d", argIndex)
		args = append(args, filters.DoctorID)
		argIndex++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(filters.Status))
		argIndex++
	}

	if !filters.FromDate.IsZero() {
		query += fmt.Sprintf(" AND start_time >= $%d", argIndex)
		args = append(args, filters.FromDate)
		argIndex++
	}

	if !filters.ToDate.IsZero() {
		query += fmt.Sprintf(" AND start_time <= $%d", argIndex)
		args = append(args, filters.ToDate)
		argIndex++
	}

	query += " ORDER BY start_time DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filters.Limit)
		argIndex++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filters.Offset)
	}

	return r.queryAppointments(query, args...)
}

// FindConflicting finds appointments that would collide with a booking at
// exactly start for the given doctor. Only statuses that still occupy a slot
// count; cancelled, completed and no-show rows are free for rebooking.
func (r *Repository) FindConflicting(doctorID string, start time.Time, excludeID string) ([]*types.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		  AND start_time = $2
		  AND status IN ('scheduled', 'confirmed', 'in_progress')`

	args := []interface{}{doctorID, start}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}

	return r.queryAppointments(query, args...)
}

// ListForDoctorDay returns the doctor's slot-occupying appointments on one
// calendar date.
func (r *Repository) ListForDoctorDay(doctorID string, date time.Time) ([]*types.Appointment, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND status IN ('scheduled', 'confirmed', 'in_progress')
		ORDER BY start_time ASC`

	return r.queryAppointments(query, doctorID, dayStart, dayEnd)
}

func (r *Repository) queryAppointments(query string, args ...interface{}) ([]*types.Appointment, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to query appointments")
		return nil, types.NewInternalError(types.ErrCodeUnavailable, "failed to query appointments", err)
	}
	defer rows.Close()

	var appointments []*types.Appointment
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			r.logger.WithError(err).Error("Failed to scan appointment")
			return nil, types.NewInternalError(types.ErrCodeUnavailable, "failed to scan appointment", err)
		}
		appointments = append(appointments, apt)
	}

	if err = rows.Err(); err != nil {
		return nil, types.NewInternalError(types.ErrCodeUnavailable, "error iterating appointments", err)
	}

	return appointments, nil
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row scanner) (*types.Appointment, error) {
	apt := &types.Appointment{}
	var reason, symptoms, notes sql.NullString

	err := row.Scan(
		&apt.ID,
		&apt.PatientID,
		&apt.DoctorID,
		&apt.StartTime,
		&apt.Type,
		&apt.Status,
		&apt.ConsultationFee,
		&reason,
		&symptoms,
		&notes,
		&apt.CreatedAt,
		&apt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	apt.ReasonForVisit = reason.String
	apt.Symptoms = symptoms.String
	apt.Notes = notes.String
	return apt, nil
}

// CreateDoctor persists a doctor profile
func (r *Repository) CreateDoctor(doctor *types.DoctorProfile) error {
	hours, err := marshalWeeklyHours(doctor.WeeklyHours)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to encode weekly hours", err)
	}

	query := `
		INSERT INTO doctors (
			id, user_id, full_name, specialty, consultation_fee, weekly_hours,
			is_verified, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.Exec(query,
		doctor.ID,
		doctor.UserID,
		doctor.FullName,
		doctor.Specialty,
		doctor.ConsultationFee,
		hours,
		doctor.IsVerified,
		doctor.IsActive,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return types.NewConflictError(types.ErrCodeConflict, "doctor profile already exists for this user")
		}
		r.logger.WithError(err).Error("Failed to create doctor")
		return types.NewInternalError(types.ErrCodeUnavailable, "failed to create doctor", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"doctor_id": doctor.ID,
		"user_id":   doctor.UserID,
	}).Info("Created doctor profile")
	return nil
}

// GetDoctor retrieves a doctor profile by ID
func (r *Repository) GetDoctor(doctorID string) (*types.DoctorProfile, error) {
	query := `
		SELECT id, user_id, full_name, specialty, consultation_fee, weekly_hours,
		       is_verified, is_active, created_at, updated_at
		FROM doctors
		WHERE id = $1`

	doctor := &types.DoctorProfile{}
	var hours []byte

	err := r.db.QueryRow(query, doctorID).Scan(
		&doctor.ID,
		&doctor.UserID,
		&doctor.FullName,
		&doctor.Specialty,
		&doctor.ConsultationFee,
		&hours,
		&doctor.IsVerified,
		&doctor.IsActive,
		&doctor.CreatedAt,
		&doctor.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("doctor %s not found", doctorID))
		}
		r.logger.WithError(err).Error("Failed to get doctor")
		return nil, types.NewInternalError(types.ErrCodeUnavailable, "failed to get doctor", err)
	}

	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &doctor.WeeklyHours); err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to decode weekly hours", err)
		}
	}

	return doctor, nil
}

// UpdateWeeklyHours replaces a doctor's weekly schedule
func (r *Repository) UpdateWeeklyHours(doctorID string, weekly types.WeeklySchedule) error {
	hours, err := marshalWeeklyHours(weekly)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to encode weekly hours", err)
	}

	query := `UPDATE doctors SET weekly_hours = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, hours, time.Now().UTC(), doctorID)
	if err != nil {
		r.logger.WithError(err).Error("Failed to update doctor schedule")
		return types.NewInternalError(types.ErrCodeUnavailable, "failed to update doctor schedule", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return types.NewInternalError(types.ErrCodeUnavailable, "failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("doctor %s not found", doctorID))
	}

	r.logger.WithField("doctor_id", doctorID).Info("Updated doctor schedule")
	return nil
}

func marshalWeeklyHours(weekly types.WeeklySchedule) (interface{}, error) {
	if len(weekly) == 0 {
		return nil, nil
	}
	return json.Marshal(weekly)
}

var _ interfaces.BookingRepository = (*Repository)(nil)
var _ interfaces.DoctorProfileStore = (*Repository)(nil)
