package acquire

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
)

// Collector fetches both halves of a reading concurrently. It implements
// pipeline.Acquirer.
type Collector struct {
	meteo  domain.MeteoSource
	hydro  domain.HydroSource
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(meteo domain.MeteoSource, hydro domain.HydroSource, clock clockwork.Clock, logger *slog.Logger) *Collector {
	return &Collector{meteo: meteo, hydro: hydro, clock: clock, logger: logger}
}

// TargetHour is the last complete hour before now, the window whose report
// is expected to be published.
func TargetHour(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour).Add(-time.Hour)
}

// Acquire returns a reading for the current target hour. A failed half
// leaves its measurements absent, which the classifier reports as
// incomplete evidence; only when both halves fail is it an error.
func (c *Collector) Acquire(ctx context.Context) (domain.Reading, error) {
	now := c.clock.Now()
	at := TargetHour(now)

	var (
		m          domain.MeteoObservation
		h          domain.HydroObservation
		mErr, hErr error
	)
	var wg sync.WaitGroup
	wg.Go(func() { m, mErr = c.meteo.FetchMeteo(ctx, at) })
	wg.Go(func() { h, hErr = c.hydro.FetchHydro(ctx) })
	wg.Wait()

	if ctx.Err() != nil {
		return domain.Reading{}, ctx.Err()
	}
	if mErr != nil && hErr != nil {
		return domain.Reading{}, errors.Join(mErr, hErr)
	}
	if mErr != nil {
		c.logger.Warn("meteo unavailable, continuing with hydro only", "error", mErr)
		m = domain.MeteoObservation{}
	}
	if hErr != nil {
		c.logger.Warn("hydro unavailable, continuing with meteo only", "error", hErr)
		h = domain.HydroObservation{}
	}

	r := domain.CombineReading(m, h, now)
	if err := r.Validate(); err != nil {
		return domain.Reading{}, err
	}
	return r, nil
}
