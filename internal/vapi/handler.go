package vapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-receptionist/internal/assistant"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// ConfigSource yields the assistant configuration currently in effect.
type ConfigSource interface {
	Current(ctx context.Context) (assistant.Config, error)
}

// Handler exposes the voice platform operations over HTTP. A nil client
// makes every endpoint answer 503.
type Handler struct {
	client *Client
	config ConfigSource
	logger *logging.Logger
}

func NewHandler(client *Client, config ConfigSource, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{client: client, config: config, logger: logger}
}

// CreateAssistant handles POST /voice/assistant using the current configuration.
func (h *Handler) CreateAssistant(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	cfg, err := h.config.Current(r.Context())
	if err != nil {
		h.logger.Error("load assistant config failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load assistant configuration")
		return
	}
	created, err := h.client.CreateAssistant(r.Context(), SpecFromConfig(cfg))
	if err != nil {
		h.writeUpstreamError(w, err, "Failed to create assistant")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "assistant": created})
}

type callBody struct {
	PhoneNumber string `json:"phoneNumber"`
	AssistantID string `json:"assistantId,omitempty"`
}

// InitiateCall handles POST /voice/calls. Without an assistantId the current
// configuration is sent inline.
func (h *Handler) InitiateCall(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var body callBody
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err == nil {
		err = json.Unmarshal(data, &body)
	}
	if err != nil || strings.TrimSpace(body.PhoneNumber) == "" {
		writeError(w, http.StatusBadRequest, "Phone number is required")
		return
	}

	req := CallRequest{CustomerNumber: strings.TrimSpace(body.PhoneNumber), AssistantID: body.AssistantID}
	if req.AssistantID == "" {
		cfg, err := h.config.Current(r.Context())
		if err != nil {
			h.logger.Error("load assistant config failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load assistant configuration")
			return
		}
		spec := SpecFromConfig(cfg)
		req.Assistant = &spec
	}
	call, err := h.client.InitiateCall(r.Context(), req)
	if err != nil {
		h.writeUpstreamError(w, err, "Failed to initiate call")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "call": call})
}

// GetCall handles GET /voice/calls/{callID}.
func (h *Handler) GetCall(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	call, err := h.client.GetCall(r.Context(), chi.URLParam(r, "callID"))
	if err != nil {
		h.writeUpstreamError(w, err, "Failed to fetch call details")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "call": call})
}

func (h *Handler) available(w http.ResponseWriter) bool {
	if h.client == nil {
		writeError(w, http.StatusServiceUnavailable, "Voice platform not configured")
		return false
	}
	return true
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, err error, msg string) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		writeError(w, http.StatusNotFound, "Call not found")
		return
	}
	h.logger.Error(msg, "error", err)
	writeError(w, http.StatusBadGateway, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
