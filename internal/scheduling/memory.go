package scheduling

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hmb104/Sahatak/pkg/interfaces"
	"github.com/hmb104/Sahatak/pkg/types"
)

// MemoryRepository is an in-memory booking ledger. It enforces the same
// at-most-one-active-booking-per-slot invariant as the partial unique index
// in PostgreSQL, under a single mutex, which makes it usable both for tests
// and for verifying concurrent booking behavior without a database.
type MemoryRepository struct {
	mu           sync.Mutex
	appointments map[string]*types.Appointment
}

// NewMemoryRepository creates an empty in-memory ledger
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[string]*types.Appointment),
	}
}

// Insert adds an appointment, rejecting it with Conflict when another
// slot-occupying appointment already holds the (doctor, start) pair.
func (m *MemoryRepository) Insert(apt *types.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if apt.Status.OccupiesSlot() {
		for _, existing := range m.appointments {
			if existing.DoctorID == apt.DoctorID &&
				existing.StartTime.Equal(apt.StartTime) &&
				existing.Status.OccupiesSlot() {
				return types.NewConflictError(types.ErrCodeConflict, "this time slot is already booked")
			}
		}
	}

	stored := *apt
	m.appointments[apt.ID] = &stored
	return nil
}

// GetByID returns a copy of the stored appointment
func (m *MemoryRepository) GetByID(id string) (*types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.appointments[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("appointment %s not found", id))
	}

	apt := *stored
	return &apt, nil
}

// Update replaces the stored appointment, applying the same slot-uniqueness
// check as Insert when the updated row still occupies a slot.
func (m *MemoryRepository) Update(apt *types.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appointments[apt.ID]; !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("appointment %s not found", apt.ID))
	}

	if apt.Status.OccupiesSlot() {
		for id, existing := range m.appointments {
			if id != apt.ID &&
				existing.DoctorID == apt.DoctorID &&
				existing.StartTime.Equal(apt.StartTime) &&
				existing.Status.OccupiesSlot() {
				return types.NewConflictError(types.ErrCodeConflict, "this time slot is already booked")
			}
		}
	}

	stored := *apt
	m.appointments[apt.ID] = &stored
	return nil
}

// List returns appointments matching the filters, newest start first
func (m *MemoryRepository) List(filters *types.AppointmentFilters) ([]*types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*types.Appointment
	for _, stored := range m.appointments {
		if filters.PatientID != "" && stored.PatientID != filters.PatientID {
			continue
		}
		if filters.DoctorID != "" && stored.DoctorID != filters.DoctorID {
			continue
		}
		if filters.Status != "" && stored.Status != filters.Status {
			continue
		}
		if !filters.FromDate.IsZero() && stored.StartTime.Before(filters.FromDate) {
			continue
		}
		if !filters.ToDate.IsZero() && stored.StartTime.After(filters.ToDate) {
			continue
		}
		apt := *stored
		result = append(result, &apt)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(result) {
			return nil, nil
		}
		result = result[filters.Offset:]
	}
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}

	return result, nil
}

// FindConflicting returns slot-occupying appointments at exactly start
func (m *MemoryRepository) FindConflicting(doctorID string, start time.Time, excludeID string) ([]*types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*types.Appointment
	for id, stored := range m.appointments {
		if id == excludeID {
			continue
		}
		if stored.DoctorID == doctorID && stored.StartTime.Equal(start) && stored.Status.OccupiesSlot() {
			apt := *stored
			result = append(result, &apt)
		}
	}
	return result, nil
}

// ListForDoctorDay returns the doctor's slot-occupying appointments on a date
func (m *MemoryRepository) ListForDoctorDay(doctorID string, date time.Time) ([]*types.Appointment, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*types.Appointment
	for _, stored := range m.appointments {
		if stored.DoctorID != doctorID || !stored.Status.OccupiesSlot() {
			continue
		}
		if stored.StartTime.Before(dayStart) || !stored.StartTime.Before(dayEnd) {
			continue
		}
		apt := *stored
		result = append(result, &apt)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

// MemoryProfileStore is an in-memory doctor profile store
type MemoryProfileStore struct {
	mu      sync.RWMutex
	doctors map[string]*types.DoctorProfile
}

// NewMemoryProfileStore creates an empty in-memory profile store
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		doctors: make(map[string]*types.DoctorProfile),
	}
}

// GetDoctor returns a copy of the stored profile
func (m *MemoryProfileStore) GetDoctor(doctorID string) (*types.DoctorProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.doctors[doctorID]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("doctor %s not found", doctorID))
	}

	doctor := *stored
	return &doctor, nil
}

// CreateDoctor stores a doctor profile
func (m *MemoryProfileStore) CreateDoctor(doctor *types.DoctorProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.doctors {
		if existing.UserID == doctor.UserID {
			return types.NewConflictError(types.ErrCodeConflict, "doctor profile already exists for this user")
		}
	}

	stored := *doctor
	m.doctors[doctor.ID] = &stored
	return nil
}

// UpdateWeeklyHours replaces a doctor's weekly schedule
func (m *MemoryProfileStore) UpdateWeeklyHours(doctorID string, weekly types.WeeklySchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.doctors[doctorID]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("doctor %s not found", doctorID))
	}

	stored.WeeklyHours = weekly
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

var _ interfaces.BookingRepository = (*MemoryRepository)(nil)
var _ interfaces.DoctorProfileStore = (*MemoryProfileStore)(nil)
