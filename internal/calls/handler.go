package calls

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

const maxBodyBytes = 1 << 20

// Handler serves the call session API.
type Handler struct {
	service *Service
	hub     *Hub
	logger  *logging.Logger
}

// NewHandler creates a call session handler. hub may be nil, in which case
// the stream endpoint answers 503.
func NewHandler(service *Service, hub *Hub, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, hub: hub, logger: logger}
}

// Start handles POST /calls.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session, err := h.service.Start(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to start call session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"callSession": session,
		"message":     "Call session started successfully",
	})
}

// Update handles PUT /calls.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var u Update
	if err := decodeJSON(r, &u); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	session, err := h.service.Update(r.Context(), u)
	if err != nil {
		h.writeServiceError(w, err, "Failed to update call session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"callSession": session,
		"message":     "Call session updated successfully",
	})
}

// List handles GET /calls?callId=&status=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessions, err := h.service.List(r.Context(), Filter{
		ID:     q.Get("callId"),
		Status: Status(q.Get("status")),
	})
	if err != nil {
		h.logger.Error("failed to list call sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch call sessions")
		return
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// Stream handles GET /calls/stream.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Live call feed unavailable")
		return
	}
	h.hub.ServeHTTP(w, r)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var fieldErr *InvalidFieldError
	switch {
	case errors.Is(err, ErrCallIDRequired):
		writeError(w, http.StatusBadRequest, "Call ID is required")
	case errors.As(err, &fieldErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Invalid call session fields",
			"fields": fieldErr.Fields,
		})
	default:
		h.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
