// Package acquire assembles readings from the upstream sources: a meteo
// fallback chain, TTL caches in front of each source, and the collector the
// scheduler pulls from.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

// ErrMeteoUnavailable is returned when every meteo source failed.
var ErrMeteoUnavailable = errors.New("meteorological data unavailable")

// FallbackMeteo asks the primary source first and the fallback when the
// primary errors or has no report for the window.
type FallbackMeteo struct {
	primary  domain.MeteoSource
	fallback domain.MeteoSource
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewFallbackMeteo chains two meteo sources.
func NewFallbackMeteo(primary, fallback domain.MeteoSource, logger *slog.Logger, metrics *observability.Metrics) *FallbackMeteo {
	return &FallbackMeteo{primary: primary, fallback: fallback, logger: logger, metrics: metrics}
}

func (f *FallbackMeteo) FetchMeteo(ctx context.Context, at time.Time) (domain.MeteoObservation, error) {
	obs, err := f.primary.FetchMeteo(ctx, at)
	if err == nil {
		return obs, nil
	}
	if ctx.Err() != nil {
		return domain.MeteoObservation{}, ctx.Err()
	}
	f.logger.Warn("primary meteo source failed, trying fallback", "error", err, "at", at)

	obs, ferr := f.fallback.FetchMeteo(ctx, at)
	if ferr != nil {
		return domain.MeteoObservation{}, fmt.Errorf("%w: %w", ErrMeteoUnavailable, errors.Join(err, ferr))
	}
	f.metrics.MeteoFallbacks.Inc()
	return obs, nil
}
