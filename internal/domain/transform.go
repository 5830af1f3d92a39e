package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidReading is returned for readings that cannot be ingested.
var ErrInvalidReading = errors.New("invalid reading")

// ParseReading deserializes a JSON reading (the format written by
// /api/v1/readings/current and accepted by floodctl).
func ParseReading(data []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return Reading{}, fmt.Errorf("parse reading: %w", err)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = Now()
	}
	r.Timestamp = r.Timestamp.UTC()
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate rejects non-finite and negative measurements. Absent values are
// always valid.
func (r Reading) Validate() error {
	checks := []struct {
		name string
		v    *float64
	}{
		{"precipitation_mm", r.PrecipitationMM},
		{"humidity_pct", r.HumidityPct},
		{"discharge_cumecs", r.DischargeCumecs},
		{"hq2", r.Thresholds.HQ2},
		{"hq5", r.Thresholds.HQ5},
		{"hq30", r.Thresholds.HQ30},
	}
	for _, c := range checks {
		if c.v == nil {
			continue
		}
		if math.IsNaN(*c.v) || math.IsInf(*c.v, 0) || *c.v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidReading, c.name, *c.v)
		}
	}
	if t := r.TemperatureC; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		return fmt.Errorf("%w: temperature_c=%v", ErrInvalidReading, *t)
	}
	return nil
}

// CombineReading merges the two observations of one cycle. The reading is
// stamped with the meteorological time when present, since that is the
// observation the cycle is keyed on, and with now otherwise.
func CombineReading(m MeteoObservation, h HydroObservation, now time.Time) Reading {
	ts := m.Time
	if ts.IsZero() {
		ts = now
	}
	return Reading{
		Timestamp:       ts.UTC(),
		PrecipitationMM: m.PrecipitationMM,
		TemperatureC:    m.TemperatureC,
		HumidityPct:     m.HumidityPct,
		DischargeCumecs: h.DischargeCumecs,
		Thresholds:      h.Thresholds,
		Sources: Sources{
			Meteo:     m.Source,
			MeteoTime: m.Time.UTC(),
			Hydro:     h.Source,
			HydroTime: h.Time.UTC(),
		},
	}
}
