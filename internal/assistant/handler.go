package assistant

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// Handler exposes the assistant configuration and clinic facts over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// GetConfig handles GET /config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Current(r.Context())
	if err != nil {
		h.logger.Error("failed to load assistant config", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch voice AI configuration")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig handles PUT /config.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cfg, err := h.service.Update(r.Context(), body)
	if err != nil {
		if errors.Is(err, ErrInvalidPatch) {
			writeError(w, http.StatusBadRequest, "Invalid voice AI configuration")
			return
		}
		h.logger.Error("failed to update assistant config", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update voice AI configuration")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetClinic handles GET /clinic.
func (h *Handler) GetClinic(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Clinic())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
