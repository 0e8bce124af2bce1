package scheduling

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hmb104/Sahatak/pkg/config"
	"github.com/hmb104/Sahatak/pkg/database"
	"github.com/hmb104/Sahatak/pkg/interfaces"
	"github.com/hmb104/Sahatak/pkg/logger"
	"github.com/hmb104/Sahatak/pkg/monitoring"
	"github.com/hmb104/Sahatak/pkg/types"
)

// Service implements the SchedulingService interface
type Service struct {
	config       *config.Config
	logger       *logger.Logger
	repository   interfaces.BookingRepository
	profiles     interfaces.DoctorProfileStore
	dispatcher   interfaces.NotificationDispatcher
	audit        interfaces.AuditLogger
	metrics      *monitoring.MetricsCollector
	health       *monitoring.HealthManager
	db           *database.DB
	server       *http.Server
	slotStep     time.Duration
	cancelCutoff time.Duration
}

// New creates a new scheduling service backed by PostgreSQL
func New(cfg *config.Config, log *logger.Logger) interfaces.SchedulingService {
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Error("Failed to connect to database")
		panic(err)
	}

	if err := db.CreateSchema(context.Background()); err != nil {
		log.WithError(err).Error("Failed to create database schema")
		panic(err)
	}

	repository := NewRepository(db, log)

	svc := newService(cfg, log, repository, repository,
		NewNotificationDispatcher(log), NewAuditLogger(log))
	svc.db = db
	svc.health.Register("database", monitoring.NewDatabaseChecker(db.DB))
	return svc
}

// newService wires a service from explicit collaborators. Tests use it with
// in-memory or mock implementations.
func newService(
	cfg *config.Config,
	log *logger.Logger,
	repository interfaces.BookingRepository,
	profiles interfaces.DoctorProfileStore,
	dispatcher interfaces.NotificationDispatcher,
	audit interfaces.AuditLogger,
) *Service {
	slotStep := DefaultSlotDuration
	if cfg.Scheduling.SlotMinutes > 0 {
		slotStep = time.Duration(cfg.Scheduling.SlotMinutes) * time.Minute
	}

	cancelCutoff := time.Hour
	if cfg.Scheduling.CancellationCutoffMinutes > 0 {
		cancelCutoff = time.Duration(cfg.Scheduling.CancellationCutoffMinutes) * time.Minute
	}

	return &Service{
		config:       cfg,
		logger:       log,
		repository:   repository,
		profiles:     profiles,
		dispatcher:   dispatcher,
		audit:        audit,
		metrics:      monitoring.NewMetricsCollector("scheduling"),
		health:       monitoring.NewHealthManager("scheduling"),
		slotStep:     slotStep,
		cancelCutoff: cancelCutoff,
	}
}

// CreateAppointment books a slot for a patient. The conflict check runs
// against the current ledger state and the ledger's own uniqueness guarantee
// backstops it: whichever concurrent caller loses gets the same Conflict.
func (s *Service) CreateAppointment(req *types.CreateAppointmentRequest, actorID string) (*types.Appointment, error) {
	s.logger.WithFields(map[string]interface{}{
		"patient_id": req.PatientID,
		"doctor_id":  req.DoctorID,
	}).Info("Creating appointment")

	if err := validateCreateRequest(req); err != nil {
		s.metrics.RecordBookingOperation("create", "validation_error")
		return nil, err
	}

	if actorID != req.PatientID {
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "patients can only book appointments for themselves")
	}

	doctor, err := s.bookableDoctor(req.DoctorID)
	if err != nil {
		s.metrics.RecordBookingOperation("create", "doctor_not_found")
		return nil, err
	}

	weekly := doctor.WeeklyHours
	if len(weekly) == 0 {
		weekly = DefaultWeeklyHours()
	}
	if !slotAligned(weekly, req.StartTime, s.slotStep) {
		s.metrics.RecordBookingOperation("create", "validation_error")
		return nil, types.NewValidationError(types.ErrCodeValidationFailed,
			"requested time is outside the doctor's working hours",
			map[string]interface{}{"start_time": req.StartTime})
	}

	conflicts, err := s.repository.FindConflicting(req.DoctorID, req.StartTime, "")
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.metrics.RecordBookingOperation("create", "conflict")
		return nil, types.NewConflictError(types.ErrCodeConflict, "this time slot is already booked")
	}

	now := time.Now().UTC()
	apt := &types.Appointment{
		ID:              uuid.New().String(),
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		StartTime:       req.StartTime,
		Type:            req.Type,
		Status:          types.StatusScheduled,
		ConsultationFee: doctor.ConsultationFee,
		ReasonForVisit:  req.ReasonForVisit,
		Symptoms:        req.Symptoms,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repository.Insert(apt); err != nil {
		if types.IsConflict(err) {
			// A concurrent booking won the slot between the pre-check and
			// the insert; the constraint violation is the same outcome.
			s.metrics.RecordBookingOperation("create", "conflict")
			return nil, err
		}
		s.metrics.RecordBookingOperation("create", "error")
		return nil, err
	}

	s.metrics.RecordBookingOperation("create", "success")
	s.recordTransition(actorID, "appointment_created", apt.ID, "", types.StatusScheduled)
	s.dispatch(apt, types.EventCreated)

	s.logger.WithField("appointment_id", apt.ID).Info("Successfully created appointment")
	return apt, nil
}

// CancelAppointment cancels a booking, freeing its slot for rebooking.
// Cancellation is refused inside the cutoff window before the start time.
func (s *Service) CancelAppointment(aptID, reason, actorID string) (*types.Appointment, error) {
	s.logger.WithFields(map[string]interface{}{
		"appointment_id": aptID,
		"actor_id":       actorID,
	}).Info("Cancelling appointment")

	apt, err := s.repository.GetByID(aptID)
	if err != nil {
		return nil, err
	}

	if apt.PatientID != actorID {
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "only the booking patient can cancel this appointment")
	}

	if apt.Status == types.StatusCompleted || apt.Status == types.StatusCancelled {
		s.metrics.RecordBookingOperation("cancel", "validation_error")
		return nil, types.NewValidationError(types.ErrCodeValidationFailed,
			fmt.Sprintf("cannot cancel appointment that is already %s", apt.Status), nil)
	}

	if time.Until(apt.StartTime) <= s.cancelCutoff {
		s.metrics.RecordBookingOperation("cancel", "validation_error")
		return nil, types.NewValidationError(types.ErrCodeValidationFailed,
			fmt.Sprintf("cannot cancel appointments less than %d minutes before the scheduled time",
				int(s.cancelCutoff.Minutes())), nil)
	}

	oldStatus := apt.Status
	apt.Status = types.StatusCancelled
	if reason != "" {
		apt.Notes = reason
	}
	apt.UpdatedAt = time.Now().UTC()

	if err := s.repository.Update(apt); err != nil {
		s.metrics.RecordBookingOperation("cancel", "error")
		return nil, err
	}

	s.metrics.RecordBookingOperation("cancel", "success")
	s.recordTransition(actorID, "appointment_cancelled", apt.ID, oldStatus, types.StatusCancelled)
	s.dispatch(apt, types.EventCancelled)

	s.logger.WithField("appointment_id", aptID).Info("Successfully cancelled appointment")
	return apt, nil
}

// RescheduleAppointment moves a booking to a new slot and resets its status
// to scheduled. When the new slot is taken the appointment stays untouched at
// its original time.
func (s *Service) RescheduleAppointment(aptID string, newStart time.Time, reason, actorID string) (*types.Appointment, error) {
	s.logger.WithFields(map[string]interface{}{
		"appointment_id": aptID,
		"new_start":      newStart,
	}).Info("Rescheduling appointment")

	apt, err := s.repository.GetByID(aptID)
	if err != nil {
		return nil, err
	}

	if apt.PatientID != actorID {
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "only the booking patient can reschedule this appointment")
	}

	switch apt.Status {
	case types.StatusCompleted, types.StatusCancelled, types.StatusInProgress:
		s.metrics.RecordBookingOperation("reschedule", "validation_error")
		return nil, types.NewValidationError(types.ErrCodeValidationFailed,
			fmt.Sprintf("cannot reschedule appointment that is %s", apt.Status), nil)
	}

	if newStart.IsZero() || !newStart.After(time.Now()) {
		s.metrics.RecordBookingOperation("reschedule", "validation_error")
		return nil, types.NewValidationError(types.ErrCodeValidationFailed,
			"new appointment time must be in the future", nil)
	}

	doctor, err := s.bookableDoctor(apt.DoctorID)
	if err != nil {
		return nil, err
	}
	weekly := doctor.WeeklyHours
	if len(weekly) == 0 {
		weekly = DefaultWeeklyHours()
	}
	if !slotAligned(weekly, newStart, s.slotStep) {
		s.metrics.RecordBookingOperation("reschedule", "validation_error")
		return nil, types.NewValidationError(types.ErrCodeValidationFailed,
			"requested time is outside the doctor's working hours",
			map[string]interface{}{"start_time": newStart})
	}

	conflicts, err := s.repository.FindConflicting(apt.DoctorID, newStart, apt.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.metrics.RecordBookingOperation("reschedule", "conflict")
		return nil, types.NewConflictError(types.ErrCodeConflict, "the new time slot is already booked")
	}

	oldStatus := apt.Status
	apt.StartTime = newStart
	apt.Status = types.StatusScheduled
	if reason != "" {
		apt.Notes = reason
	}
	apt.UpdatedAt = time.Now().UTC()

	if err := s.repository.Update(apt); err != nil {
		if types.IsConflict(err) {
			s.metrics.RecordBookingOperation("reschedule", "conflict")
		} else {
			s.metrics.RecordBookingOperation("reschedule", "error")
		}
		return nil, err
	}

	s.metrics.RecordBookingOperation("reschedule", "success")
	s.recordTransition(actorID, "appointment_rescheduled", apt.ID, oldStatus, types.StatusScheduled)
	s.dispatch(apt, types.EventRescheduled)

	s.logger.WithField("appointment_id", aptID).Info("Successfully rescheduled appointment")
	return apt, nil
}

// UpdateStatus applies a doctor- or system-side state transition, validated
// against the status state machine.
func (s *Service) UpdateStatus(aptID string, next types.AppointmentStatus, actorID string) (*types.Appointment, error) {
	s.logger.WithFields(map[string]interface{}{
		"appointment_id": aptID,
		"next_status":    string(next),
	}).Info("Updating appointment status")

	apt, err := s.repository.GetByID(aptID)
	if err != nil {
		return nil, err
	}

	if apt.DoctorID != actorID {
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "only the appointment's doctor can update its status")
	}

	if !apt.Status.CanTransitionTo(next) {
		return nil, types.NewValidationError(types.ErrCodeValidationFailed,
			fmt.Sprintf("cannot transition appointment from %s to %s", apt.Status, next), nil)
	}

	oldStatus := apt.Status
	apt.Status = next
	apt.UpdatedAt = time.Now().UTC()

	if err := s.repository.Update(apt); err != nil {
		return nil, err
	}

	s.recordTransition(actorID, "appointment_status_updated", apt.ID, oldStatus, next)
	if next == types.StatusCancelled {
		s.dispatch(apt, types.EventCancelled)
	}

	return apt, nil
}

// GetAppointment retrieves an appointment the actor participates in
func (s *Service) GetAppointment(aptID, actorID string) (*types.Appointment, error) {
	apt, err := s.repository.GetByID(aptID)
	if err != nil {
		return nil, err
	}

	if apt.PatientID != actorID && apt.DoctorID != actorID {
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "access denied")
	}

	return apt, nil
}

// ListAppointments retrieves the actor's own appointments
func (s *Service) ListAppointments(filters *types.AppointmentFilters, actorID string) ([]*types.Appointment, error) {
	if filters.PatientID != actorID && filters.DoctorID != actorID {
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "appointments can only be listed for your own profile")
	}

	return s.repository.List(filters)
}

// GetAvailability returns the doctor's slots for a date, flagged with
// occupancy from the booking ledger. Past dates are a validation failure;
// today and future dates are allowed.
func (s *Service) GetAvailability(doctorID string, date time.Time) ([]types.Slot, error) {
	s.logger.WithFields(map[string]interface{}{
		"doctor_id": doctorID,
		"date":      date.Format("2006-01-02"),
	}).Info("Getting availability")

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, date.Location())
	if date.Before(today) {
		return nil, types.NewValidationError(types.ErrCodeValidationFailed,
			"cannot book appointments in the past", nil)
	}

	doctor, err := s.bookableDoctor(doctorID)
	if err != nil {
		return nil, err
	}

	weekly := doctor.WeeklyHours
	if len(weekly) == 0 {
		weekly = DefaultWeeklyHours()
	}

	slots := GenerateSlots(weekly, date, s.slotStep)
	if len(slots) == 0 {
		return nil, nil
	}

	booked, err := s.repository.ListForDoctorDay(doctorID, date)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSlotQuery()
	return MarkAvailability(slots, OccupiedStarts(booked)), nil
}

// RegisterDoctor creates a doctor profile in the store
func (s *Service) RegisterDoctor(doctor *types.DoctorProfile, actorID string) (*types.DoctorProfile, error) {
	if doctor.UserID == "" {
		return nil, types.NewValidationError(types.ErrCodeValidationFailed, "user ID is required", nil)
	}
	if doctor.FullName == "" {
		return nil, types.NewValidationError(types.ErrCodeValidationFailed, "full name is required", nil)
	}
	if doctor.Specialty == "" {
		return nil, types.NewValidationError(types.ErrCodeValidationFailed, "specialty is required", nil)
	}
	if err := doctor.WeeklyHours.Validate(); err != nil {
		return nil, err
	}

	doctor.ID = uuid.New().String()
	now := time.Now().UTC()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	if err := s.profiles.CreateDoctor(doctor); err != nil {
		return nil, err
	}

	s.logger.WithField("doctor_id", doctor.ID).Info("Successfully registered doctor")
	return doctor, nil
}

// GetDoctor retrieves a doctor profile
func (s *Service) GetDoctor(doctorID string) (*types.DoctorProfile, error) {
	return s.profiles.GetDoctor(doctorID)
}

// UpdateDoctorSchedule replaces the doctor's weekly hours. The schedule is
// validated here, at the profile boundary; the slot generator trusts it.
func (s *Service) UpdateDoctorSchedule(doctorID string, weekly types.WeeklySchedule, actorID string) error {
	if err := weekly.Validate(); err != nil {
		return err
	}

	doctor, err := s.profiles.GetDoctor(doctorID)
	if err != nil {
		return err
	}
	if doctor.UserID != actorID {
		return types.NewForbiddenError(types.ErrCodeForbidden, "only the doctor can update their own schedule")
	}

	if err := s.profiles.UpdateWeeklyHours(doctorID, weekly); err != nil {
		return err
	}

	s.logger.WithField("doctor_id", doctorID).Info("Successfully updated doctor schedule")
	return nil
}

// Start starts the scheduling service HTTP server
func (s *Service) Start(addr string) error {
	router := mux.NewRouter()
	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}

	s.logger.WithField("addr", addr).Info("Starting Scheduling Service")
	return s.server.ListenAndServe()
}

// Stop stops the scheduling service
func (s *Service) Stop() error {
	if s.server != nil {
		s.logger.Info("Stopping Scheduling Service")
		if err := s.server.Close(); err != nil {
			return err
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// bookableDoctor resolves a doctor and checks the verified/active flags. An
// unverified or inactive doctor is reported as NotFound, same as a missing
// one.
func (s *Service) bookableDoctor(doctorID string) (*types.DoctorProfile, error) {
	doctor, err := s.profiles.GetDoctor(doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Bookable() {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "doctor not found or not available")
	}
	return doctor, nil
}

// recordTransition writes an audit entry; failures are logged, never raised
func (s *Service) recordTransition(actorID, action, aptID string, oldStatus, newStatus types.AppointmentStatus) {
	if err := s.audit.RecordTransition(actorID, action, aptID, oldStatus, newStatus); err != nil {
		s.logger.WithError(err).Error("Failed to record audit transition")
	}
}

// dispatch emits a booking event; failures are logged, never raised
func (s *Service) dispatch(apt *types.Appointment, kind types.BookingEventKind) {
	event := &types.BookingEvent{
		AppointmentID: apt.ID,
		Kind:          kind,
		PatientID:     apt.PatientID,
		DoctorID:      apt.DoctorID,
		StartTime:     apt.StartTime,
	}
	if err := s.dispatcher.Dispatch(event); err != nil {
		s.logger.WithError(err).Error("Failed to dispatch booking notification")
	}
}

// validateCreateRequest validates booking input
func validateCreateRequest(req *types.CreateAppointmentRequest) error {
	if req.PatientID == "" {
		return types.NewValidationError(types.ErrCodeValidationFailed, "patient ID is required",
			map[string]interface{}{"field": "patient_id"})
	}
	if req.DoctorID == "" {
		return types.NewValidationError(types.ErrCodeValidationFailed, "doctor ID is required",
			map[string]interface{}{"field": "doctor_id"})
	}
	if req.StartTime.IsZero() {
		return types.NewValidationError(types.ErrCodeValidationFailed, "start time is required",
			map[string]interface{}{"field": "start_time"})
	}
	if !req.StartTime.After(time.Now()) {
		return types.NewValidationError(types.ErrCodeValidationFailed,
			"appointment must be scheduled in the future",
			map[string]interface{}{"field": "start_time"})
	}
	if !req.Type.Valid() {
		return types.NewValidationError(types.ErrCodeValidationFailed,
			fmt.Sprintf("appointment type must be one of video, audio or chat, got %q", req.Type),
			map[string]interface{}{"field": "appointment_type"})
	}
	return nil
}
