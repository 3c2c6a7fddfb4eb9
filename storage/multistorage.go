package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/divs-identity/divs-agent/interfaces"
)

// MultiPinner implements interfaces.Pinner over several backends. Content is
// pinned to every available backend and fetched from the first that has it.
type MultiPinner struct {
	backends []interfaces.Pinner
	log      *slog.Logger
}

// NewMultiPinner creates a multi-backend pinner. Backend order matters: the
// first successful pin determines the returned identifier.
func NewMultiPinner(backends []interfaces.Pinner, logger *slog.Logger) *MultiPinner {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiPinner{
		backends: backends,
		log:      logger,
	}
}

// Fetch tries each backend in order. Availability is not checked first:
// reads may work where pins do not, e.g. a public gateway without credentials.
func (m *MultiPinner) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	var errs []error

	for _, backend := range m.backends {
		data, err := backend.Fetch(ctx, id)
		if err == nil {
			m.log.Info("Successfully fetched content",
				slog.String("backend_name", backend.Name()),
				slog.String("cid", id.String()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("cid", id.String()),
			"err", err)
	}

	m.log.Error("All backends failed to fetch content",
		slog.String("cid", id.String()),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}
	return nil, fmt.Errorf("all backends failed to fetch %s: %w", id, errors.Join(errs...))
}

// Pin saves payload to all available backends. A backend that derives a
// different identifier also receives a copy under the returned one when it
// supports mirroring.
func (m *MultiPinner) Pin(ctx context.Context, payload []byte, name string) (interfaces.ContentID, error) {
	start := time.Now()
	var result interfaces.ContentID
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		id, err := backend.Pin(ctx, payload, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to pin to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}

		switch {
		case result.IsZero():
			result = id
			m.log.Info("Successfully pinned content",
				slog.String("backend_name", backend.Name()),
				slog.String("cid", id.String()),
				slog.Duration("duration", time.Since(start)))
		case result != id:
			mb, ok := backend.(mirror)
			if !ok {
				m.log.Warn("Inconsistent identifiers from backends",
					slog.String("backend_name", backend.Name()),
					slog.String("expected_cid", result.String()),
					slog.String("actual_cid", id.String()))
				continue
			}
			if err := mb.Mirror(ctx, result, payload); err != nil {
				m.log.Warn("Failed to mirror content",
					slog.String("backend_name", backend.Name()),
					slog.String("cid", result.String()),
					"err", err)
			}
		}
	}

	if result.IsZero() {
		m.log.Error("All backends failed to pin data",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return "", interfaces.ErrBackendUnavailable
		}
		return "", fmt.Errorf("all backends failed to pin data: %w", errors.Join(errs...))
	}

	return result, nil
}

// Available checks if any backend is available
func (m *MultiPinner) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiPinner) Name() string {
	return "multi-pinner"
}

// LocationURI returns the combined URIs of all backends.
func (m *MultiPinner) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
