package scheduling

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/hmb104/Sahatak/pkg/types"
)

// setupRoutes configures the HTTP routes for the scheduling service
func (s *Service) setupRoutes(router *mux.Router) {
	router.Use(s.metrics.HTTPMiddleware)

	router.Handle("/health", s.health.Handler()).Methods("GET")
	if s.config.Monitoring.Enabled {
		router.Handle(s.config.Monitoring.MetricsPath, s.metrics.Handler()).Methods("GET")
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/appointments", s.handleCreateAppointment).Methods("POST")
	api.HandleFunc("/appointments", s.handleListAppointments).Methods("GET")
	api.HandleFunc("/appointments/{id}", s.handleGetAppointment).Methods("GET")
	api.HandleFunc("/appointments/{id}/cancel", s.handleCancelAppointment).Methods("PUT")
	api.HandleFunc("/appointments/{id}/reschedule", s.handleRescheduleAppointment).Methods("PUT")
	api.HandleFunc("/appointments/{id}/status", s.handleUpdateStatus).Methods("PUT")

	api.HandleFunc("/doctors", s.handleRegisterDoctor).Methods("POST")
	api.HandleFunc("/doctors/{id}", s.handleGetDoctor).Methods("GET")
	api.HandleFunc("/doctors/{id}/schedule", s.handleUpdateDoctorSchedule).Methods("PUT")
	api.HandleFunc("/doctors/{id}/availability", s.handleGetAvailability).Methods("GET")
}

// authMiddleware extracts the caller identity from the Authorization header.
// The gateway terminates authentication; this service verifies the token
// signature and pulls user_id out of the claims. X-User-ID is honored for
// in-cluster calls that arrive without a token.
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.identify(r)
		if err != nil {
			s.writeError(w, types.NewForbiddenError(types.ErrCodeForbidden, err.Error()))
			return
		}

		r.Header.Set("X-User-ID", userID)
		next.ServeHTTP(w, r)
	})
}

// identify resolves the caller's user ID from the request
func (s *Service) identify(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		if userID := r.Header.Get("X-User-ID"); userID != "" {
			return userID, nil
		}
		return "", errors.New("missing authorization")
	}

	tokenStr := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWT.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("token missing user_id claim")
	}
	return userID, nil
}

func actorFrom(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// handleCreateAppointment handles POST /api/v1/appointments
func (s *Service) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req types.CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, types.NewValidationError(types.ErrCodeValidationFailed, "invalid request body", nil))
		return
	}

	apt, err := s.CreateAppointment(&req, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, apt)
}

// handleListAppointments handles GET /api/v1/appointments
func (s *Service) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	appointments, err := s.ListAppointments(filters, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

// handleGetAppointment handles GET /api/v1/appointments/{id}
func (s *Service) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	apt, err := s.GetAppointment(mux.Vars(r)["id"], actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, apt)
}

// handleCancelAppointment handles PUT /api/v1/appointments/{id}/cancel
func (s *Service) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason,omitempty"`
	}
	if r.Body != nil {
		// An empty body is fine; cancellation does not require a reason.
		json.NewDecoder(r.Body).Decode(&body)
	}

	apt, err := s.CancelAppointment(mux.Vars(r)["id"], body.Reason, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, apt)
}

// handleRescheduleAppointment handles PUT /api/v1/appointments/{id}/reschedule
func (s *Service) handleRescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StartTime time.Time `json:"start_time"`
		Reason    string    `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, types.NewValidationError(types.ErrCodeValidationFailed, "invalid request body", nil))
		return
	}

	apt, err := s.RescheduleAppointment(mux.Vars(r)["id"], body.StartTime, body.Reason, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, apt)
}

// handleUpdateStatus handles PUT /api/v1/appointments/{id}/status
func (s *Service) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status types.AppointmentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, types.NewValidationError(types.ErrCodeValidationFailed, "invalid request body", nil))
		return
	}

	apt, err := s.UpdateStatus(mux.Vars(r)["id"], body.Status, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, apt)
}

// handleRegisterDoctor handles POST /api/v1/doctors
func (s *Service) handleRegisterDoctor(w http.ResponseWriter, r *http.Request) {
	var doctor types.DoctorProfile
	if err := json.NewDecoder(r.Body).Decode(&doctor); err != nil {
		s.writeError(w, types.NewValidationError(types.ErrCodeValidationFailed, "invalid request body", nil))
		return
	}

	created, err := s.RegisterDoctor(&doctor, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, created)
}

// handleGetDoctor handles GET /api/v1/doctors/{id}
func (s *Service) handleGetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := s.GetDoctor(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, doctor)
}

// handleUpdateDoctorSchedule handles PUT /api/v1/doctors/{id}/schedule
func (s *Service) handleUpdateDoctorSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WeeklyHours types.WeeklySchedule `json:"weekly_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, types.NewValidationError(types.ErrCodeValidationFailed, "invalid request body", nil))
		return
	}

	doctorID := mux.Vars(r)["id"]
	if err := s.UpdateDoctorSchedule(doctorID, body.WeeklyHours, actorFrom(r)); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message":   "schedule updated",
		"doctor_id": doctorID,
	})
}

// handleGetAvailability handles GET /api/v1/doctors/{id}/availability?date=YYYY-MM-DD
func (s *Service) handleGetAvailability(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		s.writeError(w, types.NewValidationError(types.ErrCodeValidationFailed,
			"date query parameter is required", map[string]interface{}{"format": "2006-01-02"}))
		return
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		s.writeError(w, types.NewValidationError(types.ErrCodeValidationFailed,
			fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", dateStr), nil))
		return
	}

	doctorID := mux.Vars(r)["id"]
	slots, err := s.GetAvailability(doctorID, date)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"date":      dateStr,
		"slots":     slots,
	})
}

// parseFilters builds appointment filters from query parameters
func parseFilters(r *http.Request) (*types.AppointmentFilters, error) {
	q := r.URL.Query()
	filters := &types.AppointmentFilters{
		PatientID: q.Get("patient_id"),
		DoctorID:  q.Get("doctor_id"),
		Status:    types.AppointmentStatus(q.Get("status")),
	}

	if from := q.Get("from_date"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, types.NewValidationError(types.ErrCodeValidationFailed,
				fmt.Sprintf("invalid from_date %q, expected YYYY-MM-DD", from), nil)
		}
		filters.FromDate = t
	}
	if to := q.Get("to_date"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, types.NewValidationError(types.ErrCodeValidationFailed,
				fmt.Sprintf("invalid to_date %q, expected YYYY-MM-DD", to), nil)
		}
		filters.ToDate = t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return nil, types.NewValidationError(types.ErrCodeValidationFailed,
				fmt.Sprintf("invalid limit %q", limit), nil)
		}
		filters.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return nil, types.NewValidationError(types.ErrCodeValidationFailed,
				fmt.Sprintf("invalid offset %q", offset), nil)
		}
		filters.Offset = n
	}

	return filters, nil
}

// writeJSON writes a JSON response with the given status code
func (s *Service) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps a scheduling error onto an HTTP status and writes the
// structured error body. Unknown errors become opaque 500s.
func (s *Service) writeError(w http.ResponseWriter, err error) {
	var se *types.SchedulingError
	if !errors.As(err, &se) {
		s.logger.WithError(err).Error("Unhandled error")
		se = types.NewInternalError(types.ErrCodeInternalError, "internal server error", nil)
	}

	status := http.StatusInternalServerError
	switch se.Type {
	case types.ErrorTypeValidation:
		status = http.StatusBadRequest
	case types.ErrorTypeForbidden:
		status = http.StatusForbidden
	case types.ErrorTypeNotFound:
		status = http.StatusNotFound
	case types.ErrorTypeConflict:
		status = http.StatusConflict
	case types.ErrorTypeInternal:
		if se.Code == types.ErrCodeUnavailable {
			status = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    se.Code,
			"message": se.Message,
			"details": se.Details,
		},
	})
}
