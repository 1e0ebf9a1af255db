package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// ErrInvalidPatch is returned when an update body is not a JSON object or
// does not fit the configuration shape.
var ErrInvalidPatch = errors.New("assistant: invalid configuration patch")

// Service serves the current assistant configuration. The base value passed
// at construction is never modified; edits are written to the override store.
type Service struct {
	base   Config
	clinic ClinicInfo
	store  OverrideStore
	logger *logging.Logger
	now    func() time.Time
}

// NewService builds a Service. A nil store keeps edits in memory.
func NewService(base Config, clinic ClinicInfo, store OverrideStore, logger *logging.Logger) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		base:   base.Clone(),
		clinic: clinic.Clone(),
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Current returns the saved override, or the base configuration.
func (s *Service) Current(ctx context.Context) (Config, error) {
	override, err := s.store.Load(ctx)
	if err != nil {
		return Config{}, err
	}
	if override != nil {
		return *override, nil
	}
	return s.base.Clone(), nil
}

// Base returns the configuration the process started with.
func (s *Service) Base() Config {
	return s.base.Clone()
}

// Clinic returns the static clinic fact sheet.
func (s *Service) Clinic() ClinicInfo {
	return s.clinic.Clone()
}

// Update shallow-merges the top-level keys of patch onto the current
// configuration, stamps updatedAt and saves the result.
func (s *Service) Update(ctx context.Context, patch []byte) (Config, error) {
	var updates map[string]json.RawMessage
	if err := json.Unmarshal(patch, &updates); err != nil || updates == nil {
		return Config{}, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPatch)
	}

	current, err := s.Current(ctx)
	if err != nil {
		return Config{}, err
	}
	raw, err := json.Marshal(current)
	if err != nil {
		return Config{}, fmt.Errorf("assistant: marshal current: %w", err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return Config{}, fmt.Errorf("assistant: decode current: %w", err)
	}
	for k, v := range updates {
		merged[k] = v
	}
	delete(merged, "updatedAt")

	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return Config{}, fmt.Errorf("assistant: marshal merged: %w", err)
	}
	var next Config
	if err := json.Unmarshal(mergedRaw, &next); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	next.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, next); err != nil {
		return Config{}, err
	}
	s.logger.Info("assistant configuration updated", "keys", len(updates))
	return next, nil
}
