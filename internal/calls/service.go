package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/dental-receptionist/internal/ids"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// Service records call sessions and publishes lifecycle events.
type Service struct {
	repo   Repository
	hub    *Hub
	logger *logging.Logger
	now    func() time.Time
}

// NewService wires a call session service. hub may be nil.
func NewService(repo Repository, hub *Hub, logger *logging.Logger) *Service {
	if repo == nil {
		panic("calls: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, hub: hub, logger: logger, now: time.Now}
}

// Start creates a session with a generated id and start time.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	now := s.now().UTC()
	session := &Session{
		ID:         ids.New("call", now),
		PatientID:  req.PatientID,
		StartTime:  now,
		CallType:   req.CallType,
		Status:     req.Status,
		Transcript: req.Transcript,
		Outcome:    req.Outcome,
	}
	if session.CallType == "" {
		session.CallType = TypeInquiry
	}
	if session.Status == "" {
		session.Status = StatusActive
	}
	if err := validateStruct(session); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("call session started", "call_id", session.ID, "call_type", session.CallType)
	s.hub.Publish(Event{Type: EventCallStarted, Session: session, At: now})
	return session, nil
}

// Update merges u onto the stored session. Unknown ids start a new record
// holding only the update.
func (s *Service) Update(ctx context.Context, u Update) (*Session, error) {
	if u.CallID == "" {
		return nil, ErrCallIDRequired
	}
	if err := validateStruct(u); err != nil {
		return nil, err
	}

	session, err := s.repo.Get(ctx, u.CallID)
	if errors.Is(err, ErrNotFound) {
		session = &Session{ID: u.CallID}
	} else if err != nil {
		return nil, err
	}
	u.Apply(session)
	now := s.now().UTC()
	session.UpdatedAt = &now

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	evt := EventCallUpdated
	if session.Status == StatusCompleted || session.Status == StatusDisconnected {
		evt = EventCallEnded
	}
	s.hub.Publish(Event{Type: evt, Session: session, At: now})
	return session, nil
}

// List returns sessions matching filter, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Session, error) {
	return s.repo.List(ctx, filter)
}

// RecordStarted stores a session for a call the voice platform reported,
// keyed by the platform's call id.
func (s *Service) RecordStarted(ctx context.Context, callID string, callType CallType, startedAt time.Time) (*Session, error) {
	if callID == "" {
		return nil, ErrCallIDRequired
	}
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	if callType == "" {
		callType = TypeInquiry
	}
	session := &Session{
		ID:        callID,
		StartTime: startedAt.UTC(),
		CallType:  callType,
		Status:    StatusActive,
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("calls: record start: %w", err)
	}
	s.hub.Publish(Event{Type: EventCallStarted, Session: session})
	return session, nil
}

// EndDetails describes how a call finished.
type EndDetails struct {
	EndedAt    time.Time
	Reason     string
	Transcript string
	Outcome    string
}

// RecordEnded closes a session, computing its duration from the stored start.
func (s *Service) RecordEnded(ctx context.Context, callID string, d EndDetails) (*Session, error) {
	if callID == "" {
		return nil, ErrCallIDRequired
	}
	session, err := s.repo.Get(ctx, callID)
	if errors.Is(err, ErrNotFound) {
		session = &Session{ID: callID, CallType: TypeInquiry}
	} else if err != nil {
		return nil, err
	}

	ended := d.EndedAt
	if ended.IsZero() {
		ended = s.now()
	}
	ended = ended.UTC()
	if session.StartTime.IsZero() {
		session.StartTime = ended
	}
	session.EndTime = &ended
	secs := int(ended.Sub(session.StartTime).Seconds())
	if secs < 0 {
		secs = 0
	}
	session.Duration = &secs
	session.Status = StatusCompleted
	if isDisconnect(d.Reason) {
		session.Status = StatusDisconnected
	}
	if d.Transcript != "" {
		session.Transcript = d.Transcript
	}
	if d.Outcome != "" {
		session.Outcome = d.Outcome
	}
	session.UpdatedAt = &ended

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("calls: record end: %w", err)
	}
	s.hub.Publish(Event{Type: EventCallEnded, Session: session})
	return session, nil
}

// SetType reclassifies a call, e.g. once a booking is made during it.
func (s *Service) SetType(ctx context.Context, callID string, callType CallType, outcome string) error {
	if callID == "" {
		return nil
	}
	u := Update{CallID: callID, CallType: &callType}
	if outcome != "" {
		u.Outcome = &outcome
	}
	_, err := s.Update(ctx, u)
	return err
}

func isDisconnect(reason string) bool {
	switch reason {
	case "customer-did-not-answer", "silence-timed-out", "pipeline-error", "phone-call-provider-closed-websocket", "disconnected":
		return true
	}
	return false
}
