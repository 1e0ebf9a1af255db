package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

const maxBodyBytes = 1 << 20

// HandlerConfig configures the /webhook endpoint.
type HandlerConfig struct {
	Router *Router
	// Secret verifies SignatureHeader. When empty, requests are rejected
	// unless AllowUnsigned is set.
	Secret        string
	AllowUnsigned bool
	Logger        *logging.Logger
}

// Handler receives voice platform webhooks.
type Handler struct {
	router        *Router
	secret        string
	allowUnsigned bool
	logger        *logging.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Handler{
		router:        cfg.Router,
		secret:        cfg.Secret,
		allowUnsigned: cfg.AllowUnsigned,
		logger:        cfg.Logger,
	}
}

// Handle serves POST /webhook. Every decodable event is acknowledged with 200,
// including ones whose processing failed; failures are logged.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("webhook: read body failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Webhook processing failed"})
		return
	}

	if !h.authorized(r, payload) {
		h.logger.Warn("webhook: invalid signature", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		return
	}

	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("webhook: decode failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Webhook processing failed"})
		return
	}

	res, err := h.router.Dispatch(r.Context(), evt)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnhandledEvent), errors.Is(err, ErrUnhandledFunction):
		h.logger.Info("webhook: event ignored", "type", evt.Type, "reason", err)
	default:
		h.logger.Error("webhook: event handling failed", "type", evt.Type, "call_id", evt.callID(), "error", err)
	}

	body := map[string]any{"success": true}
	if res != nil {
		body["result"] = res
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) authorized(r *http.Request, payload []byte) bool {
	if h.secret == "" {
		return h.allowUnsigned
	}
	return VerifySignature(h.secret, payload, r.Header.Get(SignatureHeader))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
