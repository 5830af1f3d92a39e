package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNoObservation is returned by a source that answered but had nothing for
// the requested window.
var ErrNoObservation = errors.New("no observation available")

// MeteoSource returns the meteorological observation for the hour starting at.
type MeteoSource interface {
	FetchMeteo(ctx context.Context, at time.Time) (MeteoObservation, error)
}

// HydroSource returns the current hydrological observation.
type HydroSource interface {
	FetchHydro(ctx context.Context) (HydroObservation, error)
}
