package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

var smsTracer = otel.Tracer("receptionist.internal.notify.sms")

const defaultTelnyxBaseURL = "https://api.telnyx.com"

// SMSSender sends a text message to a patient.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TelnyxConfig configures the Telnyx messaging sender.
type TelnyxConfig struct {
	APIKey             string
	MessagingProfileID string
	FromNumber         string
	BaseURL            string
	HTTPClient         *http.Client
}

// TelnyxSMSSender posts SMS messages using Telnyx's V2 API. It makes a single
// attempt per message.
type TelnyxSMSSender struct {
	apiKey             string
	messagingProfileID string
	from               string
	baseURL            string
	httpClient         *http.Client
	logger             *logging.Logger
}

// NewTelnyxSMSSender returns nil when no API key or sender number is configured.
func NewTelnyxSMSSender(cfg TelnyxConfig, logger *logging.Logger) *TelnyxSMSSender {
	if cfg.APIKey == "" || cfg.FromNumber == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTelnyxBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TelnyxSMSSender{
		apiKey:             cfg.APIKey,
		messagingProfileID: cfg.MessagingProfileID,
		from:               cfg.FromNumber,
		baseURL:            strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:         cfg.HTTPClient,
		logger:             logger,
	}
}

// SendSMS dispatches one message.
func (s *TelnyxSMSSender) SendSMS(ctx context.Context, to, body string) error {
	if to == "" {
		return errors.New("notify: sms recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("notify: sms body required")
	}

	ctx, span := smsTracer.Start(ctx, "notify.telnyx.send")
	defer span.End()
	span.SetAttributes(attribute.String("receptionist.to", to))

	payload := map[string]any{
		"from": s.from,
		"to":   to,
		"text": body,
	}
	if s.messagingProfileID != "" {
		payload["messaging_profile_id"] = s.messagingProfileID
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal telnyx payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/messages", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("notify: build telnyx request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: telnyx send: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("notify: telnyx send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		span.RecordError(err)
		return err
	}

	s.logger.Info("telnyx sms sent", "to", to)
	return nil
}

// StubSMSSender logs instead of sending.
type StubSMSSender struct {
	logger *logging.Logger
}

func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub SMS sender: would send", "to", to, "body_preview", truncate(body, 50))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var (
	_ SMSSender = (*TelnyxSMSSender)(nil)
	_ SMSSender = (*StubSMSSender)(nil)
)
