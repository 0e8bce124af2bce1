package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Weekday is a lowercase weekday name used as the key of a weekly schedule.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// WeekdayOf returns the Weekday for a calendar date.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(strings.ToLower(t.Weekday().String()))
}

// ClockTime is a minute-resolution time of day. It marshals as "HH:MM" and is
// comparable, so it can be used as a map key.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses a "HH:MM" string into a ClockTime.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ClockTimeOf extracts the time of day from a timestamp.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// String formats the time as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns the number of minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Before reports whether c is earlier in the day than other.
func (c ClockTime) Before(other ClockTime) bool {
	return c.Minutes() < other.Minutes()
}

// At anchors the time of day onto a calendar date in that date's location.
func (c ClockTime) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, date.Location())
}

// MarshalJSON implements json.Marshaler.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// DayHours is a doctor's working window for one weekday.
type DayHours struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// WeeklySchedule maps weekdays to working hours. Days absent from the map are
// unavailable.
type WeeklySchedule map[Weekday]DayHours

// Validate checks that every configured day has start before end.
func (w WeeklySchedule) Validate() error {
	for day, hours := range w {
		if !hours.Start.Before(hours.End) {
			return NewValidationError(ErrCodeValidationFailed,
				fmt.Sprintf("working hours for %s must start before they end", day),
				map[string]interface{}{"day": string(day), "start": hours.Start.String(), "end": hours.End.String()})
		}
	}
	return nil
}

// Slot is a candidate appointment window derived from a doctor's weekly
// schedule. Slots are computed on each availability query and never persisted.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// AppointmentStatus represents appointment status values
type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

// Terminal reports whether the status is an end state.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// OccupiesSlot reports whether an appointment in this status still holds its
// time slot. Cancelled, completed and no-show appointments free the slot for
// rebooking.
func (s AppointmentStatus) OccupiesSlot() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status state machine allows moving from
// s to next. The forward path is scheduled -> confirmed -> in_progress ->
// completed; scheduled and confirmed may branch to cancelled or no_show.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusConfirmed || next == StatusInProgress ||
			next == StatusCancelled || next == StatusNoShow
	case StatusConfirmed:
		return next == StatusInProgress || next == StatusCancelled || next == StatusNoShow
	case StatusInProgress:
		return next == StatusCompleted
	}
	return false
}

// NonTerminalStatuses lists the statuses that occupy a slot, in the order the
// ledger queries filter on.
var NonTerminalStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed, StatusInProgress}

// AppointmentType represents the consultation channel.
type AppointmentType string

const (
	TypeVideo AppointmentType = "video"
	TypeAudio AppointmentType = "audio"
	TypeChat  AppointmentType = "chat"
)

// Valid reports whether the type is one of the supported channels.
func (t AppointmentType) Valid() bool {
	switch t {
	case TypeVideo, TypeAudio, TypeChat:
		return true
	}
	return false
}

// Appointment represents a booked consultation. Appointments are never hard
// deleted; cancelled rows are retained for history.
type Appointment struct {
	ID              string            `json:"id" db:"id"`
	PatientID       string            `json:"patient_id" db:"patient_id"`
	DoctorID        string            `json:"doctor_id" db:"doctor_id"`
	StartTime       time.Time         `json:"start_time" db:"start_time"`
	Type            AppointmentType   `json:"appointment_type" db:"appointment_type"`
	Status          AppointmentStatus `json:"status" db:"status"`
	ConsultationFee decimal.Decimal   `json:"consultation_fee" db:"consultation_fee"`
	ReasonForVisit  string            `json:"reason_for_visit,omitempty" db:"reason_for_visit"`
	Symptoms        string            `json:"symptoms,omitempty" db:"symptoms"`
	Notes           string            `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// CreateAppointmentRequest carries the booking parameters supplied by a
// patient.
type CreateAppointmentRequest struct {
	PatientID      string          `json:"patient_id"`
	DoctorID       string          `json:"doctor_id"`
	StartTime      time.Time       `json:"start_time"`
	Type           AppointmentType `json:"appointment_type"`
	ReasonForVisit string          `json:"reason_for_visit,omitempty"`
	Symptoms       string          `json:"symptoms,omitempty"`
}

// AppointmentFilters represents filters for appointment queries
type AppointmentFilters struct {
	PatientID string            `json:"patient_id,omitempty"`
	DoctorID  string            `json:"doctor_id,omitempty"`
	Status    AppointmentStatus `json:"status,omitempty"`
	FromDate  time.Time         `json:"from_date,omitempty"`
	ToDate    time.Time         `json:"to_date,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// DoctorProfile is the slice of a doctor's profile the scheduler reads. The
// profile store owns it; the scheduler never writes through this type.
type DoctorProfile struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	FullName        string          `json:"full_name" db:"full_name"`
	Specialty       string          `json:"specialty" db:"specialty"`
	ConsultationFee decimal.Decimal `json:"consultation_fee" db:"consultation_fee"`
	WeeklyHours     WeeklySchedule  `json:"weekly_hours,omitempty" db:"weekly_hours"`
	IsVerified      bool            `json:"is_verified" db:"is_verified"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Bookable reports whether the doctor can accept new appointments.
func (d *DoctorProfile) Bookable() bool {
	return d.IsVerified && d.IsActive
}

// BookingEventKind identifies what happened to an appointment.
type BookingEventKind string

const (
	EventCreated     BookingEventKind = "created"
	EventCancelled   BookingEventKind = "cancelled"
	EventRescheduled BookingEventKind = "rescheduled"
)

// BookingEvent is emitted to the notification dispatcher after a booking
// mutation commits. Delivery failures never roll back the booking.
type BookingEvent struct {
	AppointmentID string           `json:"appointment_id"`
	Kind          BookingEventKind `json:"kind"`
	PatientID     string           `json:"patient_id"`
	DoctorID      string           `json:"doctor_id"`
	StartTime     time.Time        `json:"start_time"`
}
