package domain

import (
	"context"
	"time"
)

// History windows are clamped to [MinHistoryDays, MaxHistoryDays] on each side
// of now.
const (
	DefaultHistoryDays = 5
	MinHistoryDays     = 1
	MaxHistoryDays     = 10
)

// ClampHistoryDays bounds a requested window length.
func ClampHistoryDays(days int) int {
	return min(max(days, MinHistoryDays), MaxHistoryDays)
}

// Measurement is one reported parameter value.
type Measurement struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit,omitempty"`
}

// MeteoPoint groups the parameters of one report.
type MeteoPoint struct {
	Timestamp  time.Time              `json:"timestamp"`
	Parameters map[string]Measurement `json:"parameters"`
}

// Period is the window a history was requested for.
type Period struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Current time.Time `json:"current"`
}

// MeteoHistory splits a station's reports around Period.Current: History is
// at or before it, Forecast after. Both are in time order.
type MeteoHistory struct {
	History  []MeteoPoint `json:"history"`
	Forecast []MeteoPoint `json:"forecast"`
	Period   Period       `json:"period"`
}

// MeteoHistoryQuery selects the days before and after now to cover.
type MeteoHistoryQuery struct {
	DaysBefore int
	DaysAfter  int
}

// MeteoHistorySource returns reports around now.
type MeteoHistorySource interface {
	FetchMeteoHistory(ctx context.Context, now time.Time, q MeteoHistoryQuery) (MeteoHistory, error)
}

// HydroPoint is one simulated discharge value in m³/s.
type HydroPoint struct {
	Time      time.Time `json:"datetime"`
	Discharge *float64  `json:"discharge"`
	Unit      string    `json:"unit"`
}

// StationInfo describes the hydrological station a series belongs to.
type StationInfo struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	River       string    `json:"river,omitempty"`
	Country     string    `json:"country,omitempty"`
	Coordinates []float64 `json:"coordinates"`
}

// HydroHistory is the hindcast and forecast of one sub-basin. ScaleTicks maps
// epoch milliseconds to axis labels.
type HydroHistory struct {
	Station    StationInfo       `json:"station"`
	History    []HydroPoint      `json:"history"`
	Forecast   []HydroPoint      `json:"forecast"`
	Thresholds StationThresholds `json:"thresholds"`
	ScaleTicks map[string]string `json:"scale_ticks"`
}

// HydroHistoryQuery selects a sub-basin. Zero fields fall back to the
// source's configured station.
type HydroHistoryQuery struct {
	SubID int
	Y     float64
}

// HydroHistorySource returns the discharge series of a sub-basin.
type HydroHistorySource interface {
	FetchHydroHistory(ctx context.Context, q HydroHistoryQuery) (HydroHistory, error)
}
