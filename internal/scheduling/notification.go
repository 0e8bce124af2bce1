package scheduling

import (
	"fmt"

	"github.com/hmb104/Sahatak/pkg/interfaces"
	"github.com/hmb104/Sahatak/pkg/logger"
	"github.com/hmb104/Sahatak/pkg/types"
)

// NotificationDispatcher renders booking events into email and SMS payloads
// and hands them to the delivery channel. The default channel only logs;
// actual delivery belongs to the platform's notification system. Dispatch
// failures are reported to the caller, which logs and moves on. A booking
// never rolls back because a notification failed.
type NotificationDispatcher struct {
	logger *logger.Logger
}

// NewNotificationDispatcher creates a new notification dispatcher
func NewNotificationDispatcher(log *logger.Logger) interfaces.NotificationDispatcher {
	return &NotificationDispatcher{
		logger: log,
	}
}

// Dispatch fans a booking event out to the configured channels
func (d *NotificationDispatcher) Dispatch(event *types.BookingEvent) error {
	subject, body := renderEmail(event)
	sms := renderSMS(event)

	d.logger.WithFields(map[string]interface{}{
		"appointment_id": event.AppointmentID,
		"kind":           string(event.Kind),
		"patient_id":     event.PatientID,
		"doctor_id":      event.DoctorID,
		"email_subject":  subject,
		"sms":            sms,
	}).Info("Dispatching booking notification")

	// Email and SMS delivery run through the platform's notification system;
	// the scheduling service only emits the event payload.
	d.logger.WithField("appointment_id", event.AppointmentID).Debug(body)

	return nil
}

// renderEmail builds the email subject and body for a booking event
func renderEmail(event *types.BookingEvent) (string, string) {
	date := event.StartTime.Format("January 2, 2006")
	clock := event.StartTime.Format("3:04 PM")

	switch event.Kind {
	case types.EventCancelled:
		return "Appointment Cancelled", fmt.Sprintf(
			"Your appointment scheduled for %s at %s has been cancelled.\n\nPlease book a new time slot if you still need a consultation.\n\nAppointment ID: %s",
			date, clock, event.AppointmentID,
		)
	case types.EventRescheduled:
		return "Appointment Rescheduled", fmt.Sprintf(
			"Your appointment has been rescheduled.\n\nNew Appointment Details:\n- Date: %s\n- Time: %s\n\nAppointment ID: %s",
			date, clock, event.AppointmentID,
		)
	default:
		return "Appointment Confirmation", fmt.Sprintf(
			"Your appointment has been booked.\n\nAppointment Details:\n- Date: %s\n- Time: %s\n\nAppointment ID: %s",
			date, clock, event.AppointmentID,
		)
	}
}

// renderSMS builds the short-message text for a booking event
func renderSMS(event *types.BookingEvent) string {
	clock := event.StartTime.Format("Jan 2 3:04 PM")

	switch event.Kind {
	case types.EventCancelled:
		return fmt.Sprintf("Your appointment on %s has been cancelled", clock)
	case types.EventRescheduled:
		return fmt.Sprintf("Your appointment has been moved to %s", clock)
	default:
		return fmt.Sprintf("Your appointment on %s is booked", clock)
	}
}
