package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-receptionist/internal/ids"
	"github.com/wolfman30/dental-receptionist/internal/scheduling"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// PublishedSlots is the fixed list the direct GET /appointments endpoint advertises.
var PublishedSlots = []string{"9:00 AM", "10:00 AM", "11:00 AM", "2:00 PM", "3:00 PM", "4:00 PM", "5:00 PM"}

const maxBodyBytes = 1 << 20

// Confirmer notifies a patient about a booked appointment.
type Confirmer interface {
	SendConfirmation(ctx context.Context, appt *Appointment) bool
}

// HandlerConfig wires the appointments HTTP surface.
type HandlerConfig struct {
	Service   *Service
	Requests  RequestRepository
	Slots     *scheduling.Generator
	Confirmer Confirmer
	ClinicID  string
	Location  *time.Location
	Logger    *logging.Logger
	Now       func() time.Time
}

// Handler serves appointment requests, bookings and availability.
type Handler struct {
	service   *Service
	requests  RequestRepository
	slots     *scheduling.Generator
	confirmer Confirmer
	clinicID  string
	location  *time.Location
	logger    *logging.Logger
	now       func() time.Time
}

// NewHandler creates a new appointments handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ClinicID == "" {
		cfg.ClinicID = "sai-clinic"
	}
	return &Handler{
		service:   cfg.Service,
		requests:  cfg.Requests,
		slots:     cfg.Slots,
		confirmer: cfg.Confirmer,
		clinicID:  cfg.ClinicID,
		location:  cfg.Location,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// CreateRequest handles POST /appointments. The request is recorded as pending
// and is not routed through the booking workflow.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Error("appointment request: decode failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create appointment")
		return
	}
	if err := Validate(&req); err != nil {
		h.logger.Info("appointment request rejected", "error", err)
		writeError(w, http.StatusBadRequest, MissingInfoMessage)
		return
	}

	now := h.now()
	rec := &AppointmentRecord{
		AppointmentRequest: req,
		ID:                 ids.New("req", now),
		Status:             RecordStatusPending,
		CreatedAt:          now.UTC(),
		ClinicID:           h.clinicID,
	}
	if h.requests != nil {
		if err := h.requests.SaveRequest(r.Context(), rec); err != nil {
			h.logger.Error("appointment request: save failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create appointment")
			return
		}
	}

	h.logger.Info("appointment request recorded", "request_id", rec.ID, "date", req.PreferredDate, "time", req.PreferredTime)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"appointment": rec,
		"message":     fmt.Sprintf("Appointment scheduled for %s on %s at %s", req.PatientName, req.PreferredDate, req.PreferredTime),
	})
}

// PublishedAvailability handles GET /appointments?date=D.
func (h *Handler) PublishedAvailability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().In(h.location).Format(time.DateOnly)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":           date,
		"availableSlots": PublishedSlots,
		"message":        "Available appointment slots retrieved successfully",
	})
}

// Availability handles GET /availability?date=D using the slot generator.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().In(h.location).Format(time.DateOnly)
	}
	slots, err := h.slots.AvailableSlots(date)
	if err != nil {
		if errors.Is(err, scheduling.ErrInvalidDate) {
			writeError(w, http.StatusBadRequest, "Invalid date")
			return
		}
		h.logger.Error("availability lookup failed", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load availability")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"slots": slots,
		"total": len(slots),
	})
}

// Book handles POST /bookings: validate, book, then confirm.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := Validate(&req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  MissingInfoMessage,
				"fields": verr.Fields,
			})
			return
		}
		writeError(w, http.StatusBadRequest, MissingInfoMessage)
		return
	}

	appt, err := h.service.Book(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to book appointment")
		return
	}

	sent := false
	if h.confirmer != nil {
		sent = h.confirmer.SendConfirmation(r.Context(), appt)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"appointment":      appt,
		"confirmationSent": sent,
	})
}

// ListBookings handles GET /bookings?date=&status=&limit=.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Date:   q.Get("date"),
		Status: Status(q.Get("status")),
		Limit:  100,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 500 {
			filter.Limit = limit
		}
	}

	appts, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list appointments")
		return
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"appointments": appts,
		"total":        len(appts),
	})
}

// GetBooking handles GET /bookings/{id}.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "appointment": appt})
}

type statusUpdate struct {
	Status Status `json:"status"`
}

// UpdateBookingStatus handles PATCH /bookings/{id}.
func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	var body statusUpdate
	if err := decodeJSON(r, &body); err != nil || !body.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	appt, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "appointment": appt})
}

// GetRequest handles GET /appointments/{id}.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	if h.requests == nil {
		writeError(w, http.StatusNotFound, "Appointment not found")
		return
	}
	rec, err := h.requests.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "appointment": rec})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Appointment not found")
		return
	}
	h.logger.Error("appointment lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Failed to load appointment")
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
