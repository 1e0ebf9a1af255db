// Package vapi is a thin client for the hosted voice platform's REST API.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-receptionist/internal/assistant"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

const (
	defaultBaseURL   = "https://api.vapi.ai"
	defaultUserAgent = "dental-receptionist/0.1"
)

var vapiTracer = otel.Tracer("receptionist.internal.vapi")

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("vapi: API key not configured")

// Config controls the client.
type Config struct {
	APIKey        string
	BaseURL       string
	PhoneNumberID string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *logging.Logger
}

// Client calls the voice platform. Requests are attempted once.
type Client struct {
	apiKey        string
	baseURL       string
	phoneNumberID string
	httpClient    *http.Client
	logger        *logging.Logger
}

// New returns a client, or ErrNotConfigured when cfg has no API key.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Client{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		baseURL:       baseURL,
		phoneNumberID: cfg.PhoneNumberID,
		httpClient:    httpClient,
		logger:        cfg.Logger,
	}, nil
}

// AssistantSpec is the assistant definition sent on create and inline on calls.
type AssistantSpec struct {
	Name             string                `json:"name"`
	Model            assistant.Model       `json:"model"`
	Voice            assistant.Voice       `json:"voice"`
	FirstMessage     string                `json:"firstMessage,omitempty"`
	VoicemailMessage string                `json:"voicemailMessage,omitempty"`
	EndCallMessage   string                `json:"endCallMessage,omitempty"`
	Transcriber      assistant.Transcriber `json:"transcriber"`
	ServerURL        string                `json:"serverUrl,omitempty"`
}

// SpecFromConfig projects the fields the platform accepts.
func SpecFromConfig(cfg assistant.Config) AssistantSpec {
	return AssistantSpec{
		Name:             cfg.Name,
		Model:            cfg.Model,
		Voice:            cfg.Voice,
		FirstMessage:     cfg.FirstMessage,
		VoicemailMessage: cfg.VoicemailMessage,
		EndCallMessage:   cfg.EndCallMessage,
		Transcriber:      cfg.Transcriber,
		ServerURL:        cfg.ServerURL,
	}
}

// Assistant is the platform's record of a created assistant.
type Assistant struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Call is the platform's record of a phone call.
type Call struct {
	ID          string     `json:"id"`
	AssistantID string     `json:"assistantId,omitempty"`
	Type        string     `json:"type,omitempty"`
	Status      string     `json:"status,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	EndedReason string     `json:"endedReason,omitempty"`
	Cost        float64    `json:"cost,omitempty"`
	Transcript  string     `json:"transcript,omitempty"`
	Summary     string     `json:"summary,omitempty"`
}

// CallRequest starts an outbound call. Either AssistantID or Assistant is used.
type CallRequest struct {
	CustomerNumber string
	AssistantID    string
	Assistant      *AssistantSpec
}

// CreateAssistant registers spec with the platform.
func (c *Client) CreateAssistant(ctx context.Context, spec AssistantSpec) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPost, "/assistant", spec, &out); err != nil {
		return nil, err
	}
	c.logger.Info("voice assistant created", "assistant_id", out.ID, "name", out.Name)
	return &out, nil
}

// InitiateCall dials req.CustomerNumber from the configured phone number.
func (c *Client) InitiateCall(ctx context.Context, req CallRequest) (*Call, error) {
	if strings.TrimSpace(req.CustomerNumber) == "" {
		return nil, errors.New("vapi: customer number required")
	}
	body := struct {
		PhoneNumberID string         `json:"phoneNumberId,omitempty"`
		AssistantID   string         `json:"assistantId,omitempty"`
		Assistant     *AssistantSpec `json:"assistant,omitempty"`
		Customer      struct {
			Number string `json:"number"`
		} `json:"customer"`
	}{
		PhoneNumberID: c.phoneNumberID,
		AssistantID:   req.AssistantID,
	}
	if req.AssistantID == "" {
		body.Assistant = req.Assistant
	}
	body.Customer.Number = req.CustomerNumber

	var out Call
	if err := c.do(ctx, http.MethodPost, "/call", body, &out); err != nil {
		return nil, err
	}
	c.logger.Info("outbound call initiated", "call_id", out.ID, "status", out.Status)
	return &out, nil
}

// GetCall fetches a call by id.
func (c *Client) GetCall(ctx context.Context, callID string) (*Call, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, errors.New("vapi: call id required")
	}
	var out Call
	if err := c.do(ctx, http.MethodGet, "/call/"+url.PathEscape(callID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// APIError is a non-2xx response from the platform.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vapi: API error: %d", e.Status)
	}
	return fmt.Sprintf("vapi: API error: %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, span := vapiTracer.Start(ctx, "vapi."+strings.ToLower(method))
	defer span.End()
	span.SetAttributes(attribute.String("http.route", path))

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("vapi: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("vapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", defaultUserAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("vapi: http error: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("vapi: read response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
		span.RecordError(apiErr)
		c.logger.Warn("voice platform request failed", "path", path, "status", resp.StatusCode)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("vapi: decode response: %w", err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var payload struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	switch m := payload.Message.(type) {
	case string:
		return m
	case []any:
		parts := make([]string, 0, len(m))
		for _, p := range m {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, "; ")
	}
	return payload.Error
}
