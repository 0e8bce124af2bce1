package interfaces

import (
	"time"

	"github.com/hmb104/Sahatak/pkg/types"
)

// SchedulingService defines the interface for appointment booking and
// availability queries.
type SchedulingService interface {
	// Booking operations
	CreateAppointment(req *types.CreateAppointmentRequest, actorID string) (*types.Appointment, error)
	CancelAppointment(aptID, reason, actorID string) (*types.Appointment, error)
	RescheduleAppointment(aptID string, newStart time.Time, reason, actorID string) (*types.Appointment, error)
	UpdateStatus(aptID string, next types.AppointmentStatus, actorID string) (*types.Appointment, error)

	// Queries
	GetAppointment(aptID, actorID string) (*types.Appointment, error)
	ListAppointments(filters *types.AppointmentFilters, actorID string) ([]*types.Appointment, error)
	GetAvailability(doctorID string, date time.Time) ([]types.Slot, error)

	// Doctor profile management
	RegisterDoctor(doctor *types.DoctorProfile, actorID string) (*types.DoctorProfile, error)
	GetDoctor(doctorID string) (*types.DoctorProfile, error)
	UpdateDoctorSchedule(doctorID string, hours types.WeeklySchedule, actorID string) error

	// Service management
	Start(addr string) error
	Stop() error
}

// BookingRepository is the booking ledger: the persisted set of appointments
// consulted for slot occupancy and mutated by bookings.
type BookingRepository interface {
	Insert(apt *types.Appointment) error
	GetByID(id string) (*types.Appointment, error)
	Update(apt *types.Appointment) error
	List(filters *types.AppointmentFilters) ([]*types.Appointment, error)

	// FindConflicting returns non-terminal appointments for the doctor at
	// exactly start, excluding excludeID when non-empty.
	FindConflicting(doctorID string, start time.Time, excludeID string) ([]*types.Appointment, error)

	// ListForDoctorDay returns the doctor's non-terminal appointments whose
	// start falls on the given calendar date.
	ListForDoctorDay(doctorID string, date time.Time) ([]*types.Appointment, error)
}

// DoctorProfileStore supplies the doctor attributes the scheduler reads:
// weekly hours, consultation fee and the verified/active flags.
type DoctorProfileStore interface {
	GetDoctor(doctorID string) (*types.DoctorProfile, error)
	CreateDoctor(doctor *types.DoctorProfile) error
	UpdateWeeklyHours(doctorID string, hours types.WeeklySchedule) error
}

// NotificationDispatcher turns booking events into outbound notifications.
// Implementations must be safe to fail: the service logs and continues.
type NotificationDispatcher interface {
	Dispatch(event *types.BookingEvent) error
}

// AuditLogger records appointment state transitions for compliance. Failures
// must not block the transition.
type AuditLogger interface {
	RecordTransition(actorID, action, aptID string, oldStatus, newStatus types.AppointmentStatus) error
}
