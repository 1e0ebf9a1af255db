package calls

import (
	"context"
	"time"
)

// SeedDemo stores the sample completed call shown on a fresh install.
func (s *Service) SeedDemo(ctx context.Context) error {
	start := s.now().UTC().Add(-time.Hour)
	end := start.Add(180 * time.Second)
	duration := 180
	return s.repo.Save(ctx, &Session{
		ID:         "call_123",
		PatientID:  "patient_456",
		StartTime:  start,
		EndTime:    &end,
		Duration:   &duration,
		CallType:   TypeAppointment,
		Status:     StatusCompleted,
		Transcript: "Patient called to schedule a dental cleaning appointment...",
		Outcome:    "Appointment scheduled for John Doe",
	})
}
