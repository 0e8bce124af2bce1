package scheduling

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hmb104/Sahatak/pkg/config"
	"github.com/hmb104/Sahatak/pkg/logger"
	"github.com/hmb104/Sahatak/pkg/types"
)

// MockNotificationDispatcher is a mock implementation of NotificationDispatcher
type MockNotificationDispatcher struct {
	mock.Mock
}

func (m *MockNotificationDispatcher) Dispatch(event *types.BookingEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockAuditLogger is a mock implementation of AuditLogger
type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) RecordTransition(actorID, action, aptID string, oldStatus, newStatus types.AppointmentStatus) error {
	args := m.Called(actorID, action, aptID, oldStatus, newStatus)
	return args.Error(0)
}

// Test setup helper
func setupTestService() (*Service, *MemoryRepository, *MemoryProfileStore, *MockNotificationDispatcher) {
	cfg := &config.Config{}
	cfg.Scheduling.SlotMinutes = 30
	cfg.Scheduling.CancellationCutoffMinutes = 60

	repo := NewMemoryRepository()
	profiles := NewMemoryProfileStore()

	dispatcher := &MockNotificationDispatcher{}
	dispatcher.On("Dispatch", mock.AnythingOfType("*types.BookingEvent")).Return(nil)

	audit := &MockAuditLogger{}
	audit.On("RecordTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	service := newService(cfg, logger.New("debug"), repo, profiles, dispatcher, audit)
	return service, repo, profiles, dispatcher
}

// registerTestDoctor stores a verified, active doctor using the default
// weekly hours.
func registerTestDoctor(t *testing.T, profiles *MemoryProfileStore) *types.DoctorProfile {
	t.Helper()

	doctor := &types.DoctorProfile{
		ID:              "doctor-1",
		UserID:          "user-doctor-1",
		FullName:        "Dr. Amal Hassan",
		Specialty:       "cardiology",
		ConsultationFee: decimal.NewFromInt(150),
		IsVerified:      true,
		IsActive:        true,
	}
	require.NoError(t, profiles.CreateDoctor(doctor))
	return doctor
}

// futureWorkingSlot returns a 10:00 start on the next working day (the
// default schedule covers Sunday through Thursday), at least one day out.
func futureWorkingSlot() time.Time {
	weekly := DefaultWeeklyHours()
	day := time.Now().AddDate(0, 0, 1)
	for {
		if _, ok := weekly[types.WeekdayOf(day)]; ok {
			break
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, day.Location())
}

func bookingRequest(doctor *types.DoctorProfile, start time.Time) *types.CreateAppointmentRequest {
	return &types.CreateAppointmentRequest{
		PatientID:      "patient-1",
		DoctorID:       doctor.ID,
		StartTime:      start,
		Type:           types.TypeVideo,
		ReasonForVisit: "chest pain follow-up",
	}
}

func TestCreateAppointment_Success(t *testing.T) {
	service, _, profiles, dispatcher := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	apt, err := service.CreateAppointment(bookingRequest(doctor, futureWorkingSlot()), "patient-1")

	require.NoError(t, err)
	assert.NotEmpty(t, apt.ID)
	assert.Equal(t, types.StatusScheduled, apt.Status)
	assert.True(t, apt.ConsultationFee.Equal(doctor.ConsultationFee))
	assert.Equal(t, "patient-1", apt.PatientID)
	dispatcher.AssertCalled(t, "Dispatch", mock.AnythingOfType("*types.BookingEvent"))
}

func TestCreateAppointment_Conflict(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)
	start := futureWorkingSlot()

	_, err := service.CreateAppointment(bookingRequest(doctor, start), "patient-1")
	require.NoError(t, err)

	req := bookingRequest(doctor, start)
	req.PatientID = "patient-2"
	_, err = service.CreateAppointment(req, "patient-2")

	require.Error(t, err)
	assert.True(t, types.IsConflict(err))
}

func TestCreateAppointment_PastTime(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	req := bookingRequest(doctor, time.Now().Add(-1*time.Hour))
	_, err := service.CreateAppointment(req, "patient-1")

	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.Contains(t, err.Error(), "future")
}

func TestCreateAppointment_InvalidType(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	req := bookingRequest(doctor, futureWorkingSlot())
	req.Type = "in_person"
	_, err := service.CreateAppointment(req, "patient-1")

	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestCreateAppointment_UnverifiedDoctor(t *testing.T) {
	service, _, profiles, _ := setupTestService()

	doctor := &types.DoctorProfile{
		ID:         "doctor-2",
		UserID:     "user-doctor-2",
		FullName:   "Dr. Sara Omar",
		Specialty:  "dermatology",
		IsVerified: false,
		IsActive:   true,
	}
	require.NoError(t, profiles.CreateDoctor(doctor))

	_, err := service.CreateAppointment(bookingRequest(doctor, futureWorkingSlot()), "patient-1")

	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestCreateAppointment_OutsideWorkingHours(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	// 10:15 is not on the 30-minute grid anchored at 09:00
	misaligned := futureWorkingSlot().Add(15 * time.Minute)
	_, err := service.CreateAppointment(bookingRequest(doctor, misaligned), "patient-1")

	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestCreateAppointment_ForbiddenActor(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	_, err := service.CreateAppointment(bookingRequest(doctor, futureWorkingSlot()), "someone-else")

	require.Error(t, err)
	assert.True(t, types.IsForbidden(err))
}

func TestCancelAppointment_Success(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)
	start := futureWorkingSlot()

	apt, err := service.CreateAppointment(bookingRequest(doctor, start), "patient-1")
	require.NoError(t, err)

	cancelled, err := service.CancelAppointment(apt.ID, "feeling better", "patient-1")

	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)
	assert.Equal(t, "feeling better", cancelled.Notes)

	// The slot is free again
	req := bookingRequest(doctor, start)
	req.PatientID = "patient-2"
	_, err = service.CreateAppointment(req, "patient-2")
	assert.NoError(t, err)
}

func TestCancelAppointment_InsideCutoff(t *testing.T) {
	service, repo, _, _ := setupTestService()

	apt := &types.Appointment{
		ID:        "apt-cutoff",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		StartTime: time.Now().Add(59 * time.Minute),
		Type:      types.TypeVideo,
		Status:    types.StatusScheduled,
	}
	require.NoError(t, repo.Insert(apt))

	_, err := service.CancelAppointment(apt.ID, "", "patient-1")

	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.Contains(t, err.Error(), "60 minutes")
}

func TestCancelAppointment_JustOutsideCutoff(t *testing.T) {
	service, repo, _, _ := setupTestService()

	apt := &types.Appointment{
		ID:        "apt-ok",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		StartTime: time.Now().Add(61 * time.Minute),
		Type:      types.TypeVideo,
		Status:    types.StatusScheduled,
	}
	require.NoError(t, repo.Insert(apt))

	cancelled, err := service.CancelAppointment(apt.ID, "", "patient-1")

	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)
}

func TestCancelAppointment_AlreadyCancelled(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	apt, err := service.CreateAppointment(bookingRequest(doctor, futureWorkingSlot()), "patient-1")
	require.NoError(t, err)

	_, err = service.CancelAppointment(apt.ID, "", "patient-1")
	require.NoError(t, err)

	_, err = service.CancelAppointment(apt.ID, "", "patient-1")
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.Contains(t, err.Error(), "cancelled")
}

func TestCancelAppointment_Forbidden(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	apt, err := service.CreateAppointment(bookingRequest(doctor, futureWorkingSlot()), "patient-1")
	require.NoError(t, err)

	_, err = service.CancelAppointment(apt.ID, "", "patient-2")

	require.Error(t, err)
	assert.True(t, types.IsForbidden(err))
}

func TestRescheduleAppointment_Success(t *testing.T) {
	service, repo, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)
	start := futureWorkingSlot()

	apt, err := service.CreateAppointment(bookingRequest(doctor, start), "patient-1")
	require.NoError(t, err)

	// Confirm it first so the reschedule provably resets the status
	apt.Status = types.StatusConfirmed
	require.NoError(t, repo.Update(apt))

	newStart := start.Add(time.Hour)
	moved, err := service.RescheduleAppointment(apt.ID, newStart, "conflict on my side", "patient-1")

	require.NoError(t, err)
	assert.True(t, moved.StartTime.Equal(newStart))
	assert.Equal(t, types.StatusScheduled, moved.Status)
}

func TestRescheduleAppointment_ConflictLeavesUnchanged(t *testing.T) {
	service, repo, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)
	start := futureWorkingSlot()

	first, err := service.CreateAppointment(bookingRequest(doctor, start), "patient-1")
	require.NoError(t, err)

	second := bookingRequest(doctor, start.Add(time.Hour))
	second.PatientID = "patient-2"
	other, err := service.CreateAppointment(second, "patient-2")
	require.NoError(t, err)

	_, err = service.RescheduleAppointment(first.ID, other.StartTime, "", "patient-1")
	require.Error(t, err)
	assert.True(t, types.IsConflict(err))

	// The losing appointment keeps its original slot and status
	unchanged, err := repo.GetByID(first.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.StartTime.Equal(start))
	assert.Equal(t, types.StatusScheduled, unchanged.Status)
}

func TestRescheduleAppointment_Terminal(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	apt, err := service.CreateAppointment(bookingRequest(doctor, futureWorkingSlot()), "patient-1")
	require.NoError(t, err)

	_, err = service.CancelAppointment(apt.ID, "", "patient-1")
	require.NoError(t, err)

	_, err = service.RescheduleAppointment(apt.ID, futureWorkingSlot().Add(time.Hour), "", "patient-1")

	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestUpdateStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    types.AppointmentStatus
		to      types.AppointmentStatus
		allowed bool
	}{
		{"scheduled to confirmed", types.StatusScheduled, types.StatusConfirmed, true},
		{"confirmed to in progress", types.StatusConfirmed, types.StatusInProgress, true},
		{"in progress to completed", types.StatusInProgress, types.StatusCompleted, true},
		{"scheduled to no show", types.StatusScheduled, types.StatusNoShow, true},
		{"confirmed to cancelled", types.StatusConfirmed, types.StatusCancelled, true},
		{"scheduled to completed", types.StatusScheduled, types.StatusCompleted, false},
		{"in progress to cancelled", types.StatusInProgress, types.StatusCancelled, false},
		{"completed to scheduled", types.StatusCompleted, types.StatusScheduled, false},
		{"cancelled to confirmed", types.StatusCancelled, types.StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo, _, _ := setupTestService()

			apt := &types.Appointment{
				ID:        "apt-" + tt.name,
				PatientID: "patient-1",
				DoctorID:  "doctor-1",
				StartTime: futureWorkingSlot(),
				Type:      types.TypeVideo,
				Status:    tt.from,
			}
			require.NoError(t, repo.Insert(apt))

			updated, err := service.UpdateStatus(apt.ID, tt.to, "doctor-1")
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, updated.Status)
			} else {
				require.Error(t, err)
				assert.True(t, types.IsValidation(err))
			}
		})
	}
}

func TestUpdateStatus_Forbidden(t *testing.T) {
	service, repo, _, _ := setupTestService()

	apt := &types.Appointment{
		ID:        "apt-1",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		StartTime: futureWorkingSlot(),
		Type:      types.TypeVideo,
		Status:    types.StatusScheduled,
	}
	require.NoError(t, repo.Insert(apt))

	_, err := service.UpdateStatus(apt.ID, types.StatusConfirmed, "patient-1")

	require.Error(t, err)
	assert.True(t, types.IsForbidden(err))
}

func TestGetAppointment_Participants(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	apt, err := service.CreateAppointment(bookingRequest(doctor, futureWorkingSlot()), "patient-1")
	require.NoError(t, err)

	_, err = service.GetAppointment(apt.ID, "patient-1")
	assert.NoError(t, err)

	_, err = service.GetAppointment(apt.ID, doctor.ID)
	assert.NoError(t, err)

	_, err = service.GetAppointment(apt.ID, "stranger")
	require.Error(t, err)
	assert.True(t, types.IsForbidden(err))
}

func TestListAppointments_OwnProfileOnly(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	_, err := service.CreateAppointment(bookingRequest(doctor, futureWorkingSlot()), "patient-1")
	require.NoError(t, err)

	appointments, err := service.ListAppointments(&types.AppointmentFilters{PatientID: "patient-1"}, "patient-1")
	require.NoError(t, err)
	assert.Len(t, appointments, 1)

	_, err = service.ListAppointments(&types.AppointmentFilters{PatientID: "patient-1"}, "patient-2")
	require.Error(t, err)
	assert.True(t, types.IsForbidden(err))
}

func TestGetAvailability_PastDate(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	_, err := service.GetAvailability(doctor.ID, time.Now().AddDate(0, 0, -1))

	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestGetAvailability_MarksBookedSlot(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)
	start := futureWorkingSlot()

	apt, err := service.CreateAppointment(bookingRequest(doctor, start), "patient-1")
	require.NoError(t, err)

	slots, err := service.GetAvailability(doctor.ID, start)
	require.NoError(t, err)

	// 09:00 to 17:00 in 30-minute steps
	require.Len(t, slots, 16)

	booked := 0
	for _, slot := range slots {
		if slot.Start.Equal(start) {
			assert.False(t, slot.Available)
			booked++
		} else {
			assert.True(t, slot.Available)
		}
	}
	assert.Equal(t, 1, booked)

	// Cancelling frees the slot in the next availability query
	_, err = service.CancelAppointment(apt.ID, "", "patient-1")
	require.NoError(t, err)

	slots, err = service.GetAvailability(doctor.ID, start)
	require.NoError(t, err)
	for _, slot := range slots {
		assert.True(t, slot.Available)
	}
}

func TestGetAvailability_DayOff(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	// Friday is not in the default schedule
	day := time.Now().AddDate(0, 0, 1)
	for types.WeekdayOf(day) != types.Friday {
		day = day.AddDate(0, 0, 1)
	}

	slots, err := service.GetAvailability(doctor.ID, day)

	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestConcurrentBooking_SingleWinner(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)
	start := futureWorkingSlot()

	const patients = 8
	errs := make([]error, patients)

	var wg sync.WaitGroup
	for i := 0; i < patients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := bookingRequest(doctor, start)
			req.PatientID = "patient-" + string(rune('a'+i))
			_, errs[i] = service.CreateAppointment(req, req.PatientID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, types.IsConflict(err), "losing bookings must fail with a conflict, got %v", err)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestRegisterDoctor_Validation(t *testing.T) {
	service, _, _, _ := setupTestService()

	_, err := service.RegisterDoctor(&types.DoctorProfile{UserID: "u1", Specialty: "gp"}, "u1")
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))

	bad := &types.DoctorProfile{
		UserID:    "u1",
		FullName:  "Dr. Test",
		Specialty: "gp",
		WeeklyHours: types.WeeklySchedule{
			types.Monday: {
				Start: types.ClockTime{Hour: 17},
				End:   types.ClockTime{Hour: 9},
			},
		},
	}
	_, err = service.RegisterDoctor(bad, "u1")
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestUpdateDoctorSchedule_Forbidden(t *testing.T) {
	service, _, profiles, _ := setupTestService()
	doctor := registerTestDoctor(t, profiles)

	weekly := types.WeeklySchedule{
		types.Saturday: {
			Start: types.ClockTime{Hour: 8},
			End:   types.ClockTime{Hour: 12},
		},
	}

	err := service.UpdateDoctorSchedule(doctor.ID, weekly, "not-the-doctor")
	require.Error(t, err)
	assert.True(t, types.IsForbidden(err))

	err = service.UpdateDoctorSchedule(doctor.ID, weekly, doctor.UserID)
	require.NoError(t, err)

	stored, err := profiles.GetDoctor(doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, weekly, stored.WeeklyHours)
}
