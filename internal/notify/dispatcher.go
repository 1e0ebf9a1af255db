package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/internal/observability/metrics"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// DispatcherConfig wires the delivery channels. Nil senders are skipped.
type DispatcherConfig struct {
	SMS         SMSSender
	Email       EmailSender
	ClinicInbox string
	ClinicName  string
	ClinicPhone string
	Metrics     *metrics.ReceptionistMetrics
	Logger      *logging.Logger
}

// Dispatcher notifies patients and clinic staff about bookings. Delivery
// failures are logged and counted but never reported as a failed dispatch;
// there are no retries.
type Dispatcher struct {
	sms         SMSSender
	email       EmailSender
	clinicInbox string
	clinicName  string
	clinicPhone string
	metrics     *metrics.ReceptionistMetrics
	logger      *logging.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.ClinicName == "" {
		cfg.ClinicName = "the clinic"
	}
	return &Dispatcher{
		sms:         cfg.SMS,
		email:       cfg.Email,
		clinicInbox: cfg.ClinicInbox,
		clinicName:  cfg.ClinicName,
		clinicPhone: cfg.ClinicPhone,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// SendConfirmation tells the patient their appointment is booked and copies the
// clinic inbox. It returns false only when appt is unusable.
func (d *Dispatcher) SendConfirmation(ctx context.Context, appt *appointments.Appointment) bool {
	if appt == nil || appt.ID == "" {
		d.logger.Error("confirmation skipped: missing appointment")
		return false
	}
	d.logger.Info("sending appointment confirmation", "appointment_id", appt.ID, "contact", appt.ContactNumber)

	d.deliverSMS(ctx, "confirmation", appt.ContactNumber, d.confirmationText(appt))
	d.deliverEmail(ctx, "confirmation", EmailMessage{
		To:       d.clinicInbox,
		Subject:  fmt.Sprintf("New appointment: %s on %s", appt.PatientName, appt.Date()),
		Body:     staffSummary(appt),
		Category: "confirmation",
	})
	return true
}

// SendReminder reminds the patient of an upcoming appointment.
func (d *Dispatcher) SendReminder(ctx context.Context, appt *appointments.Appointment) bool {
	if appt == nil || appt.ID == "" {
		d.logger.Error("reminder skipped: missing appointment")
		return false
	}
	d.logger.Info("sending appointment reminder", "appointment_id", appt.ID, "contact", appt.ContactNumber)

	text := fmt.Sprintf("Reminder: %s, you have a dental appointment at %s on %s at %s.",
		firstName(appt.PatientName), d.clinicName, displayDate(appt), appt.Clock())
	if d.clinicPhone != "" {
		text += " Call " + d.clinicPhone + " if you need to reschedule."
	}
	d.deliverSMS(ctx, "reminder", appt.ContactNumber, text)
	return true
}

// SendDetails forwards free-form appointment details the assistant collected
// during a call to contactNumber.
func (d *Dispatcher) SendDetails(ctx context.Context, contactNumber, details string) bool {
	details = strings.TrimSpace(details)
	if contactNumber == "" || details == "" {
		d.logger.Warn("details confirmation skipped: missing contact or details")
		return false
	}
	d.logger.Info("sending appointment details", "contact", contactNumber)
	d.deliverSMS(ctx, "details", contactNumber, fmt.Sprintf("%s: %s", d.clinicName, details))
	return true
}

func (d *Dispatcher) deliverSMS(ctx context.Context, kind, to, body string) {
	if d.sms == nil {
		d.metrics.ObserveConfirmation("sms", "skipped")
		return
	}
	if to == "" {
		d.logger.Warn("sms skipped: no contact number", "kind", kind)
		d.metrics.ObserveConfirmation("sms", "skipped")
		return
	}
	if err := d.sms.SendSMS(ctx, to, body); err != nil {
		d.logger.Error("sms delivery failed", "kind", kind, "to", to, "error", err)
		d.metrics.ObserveConfirmation("sms", "failed")
		return
	}
	d.metrics.ObserveConfirmation("sms", "sent")
}

func (d *Dispatcher) deliverEmail(ctx context.Context, kind string, msg EmailMessage) {
	if d.email == nil || msg.To == "" {
		d.metrics.ObserveConfirmation("email", "skipped")
		return
	}
	if err := d.email.Send(ctx, msg); err != nil {
		d.logger.Error("email delivery failed", "kind", kind, "to", msg.To, "error", err)
		d.metrics.ObserveConfirmation("email", "failed")
		return
	}
	d.metrics.ObserveConfirmation("email", "sent")
}

func (d *Dispatcher) confirmationText(appt *appointments.Appointment) string {
	verb := "is booked"
	if appt.Status == appointments.StatusConfirmed {
		verb = "is confirmed"
	}
	text := fmt.Sprintf("Hi %s, your appointment at %s %s for %s at %s.",
		firstName(appt.PatientName), d.clinicName, verb, displayDate(appt), appt.Clock())
	if d.clinicPhone != "" {
		text += " Questions? Call " + d.clinicPhone + "."
	}
	return text
}

func staffSummary(appt *appointments.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\n", appt.PatientName)
	fmt.Fprintf(&b, "Contact: %s\n", appt.ContactNumber)
	fmt.Fprintf(&b, "Start: %s\n", appt.Start)
	fmt.Fprintf(&b, "End: %s\n", appt.End)
	if appt.TreatmentType != "" {
		fmt.Fprintf(&b, "Treatment: %s\n", appt.TreatmentType)
	}
	fmt.Fprintf(&b, "Status: %s\n", appt.Status)
	fmt.Fprintf(&b, "Reference: %s\n", appt.ID)
	return b.String()
}

func displayDate(appt *appointments.Appointment) string {
	t, err := time.Parse(time.DateOnly, appt.Date())
	if err != nil {
		return appt.Date()
	}
	return t.Format("Mon, Jan 2")
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

var _ appointments.Confirmer = (*Dispatcher)(nil)
