package scheduling

import (
	"github.com/hmb104/Sahatak/pkg/interfaces"
	"github.com/hmb104/Sahatak/pkg/logger"
	"github.com/hmb104/Sahatak/pkg/types"
)

// AuditLogger writes appointment state transitions to the structured audit
// log. Audit failures never block a transition; the service logs and
// continues.
type AuditLogger struct {
	logger *logger.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(log *logger.Logger) interfaces.AuditLogger {
	return &AuditLogger{
		logger: log,
	}
}

// RecordTransition records one appointment state transition
func (a *AuditLogger) RecordTransition(actorID, action, aptID string, oldStatus, newStatus types.AppointmentStatus) error {
	a.logger.Audit(actorID, action, "appointment:"+aptID, true, map[string]interface{}{
		"appointment_id": aptID,
		"old_status":     string(oldStatus),
		"new_status":     string(newStatus),
	})
	return nil
}
