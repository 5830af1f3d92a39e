package domain

import "time"

// Reading is one normalized snapshot handed to the core: one meteorological
// observation, one hydrological observation and the station thresholds.
type Reading struct {
	Timestamp       time.Time         `json:"timestamp"`
	PrecipitationMM *float64          `json:"precipitation_mm,omitempty"`
	TemperatureC    *float64          `json:"temperature_c,omitempty"`
	HumidityPct     *float64          `json:"humidity_pct,omitempty"`
	DischargeCumecs *float64          `json:"discharge_cumecs,omitempty"`
	Thresholds      StationThresholds `json:"station_thresholds"`
	Sources         Sources           `json:"sources"`
}

// StationThresholds are return-period discharges (m³/s) at the hydrological
// station.
type StationThresholds struct {
	HQ2  *float64 `json:"hq2,omitempty"`
	HQ5  *float64 `json:"hq5,omitempty"`
	HQ30 *float64 `json:"hq30,omitempty"`
}

// Sources records where each half of a reading came from.
type Sources struct {
	Meteo     string    `json:"meteo,omitempty"` // "wigos", "open-meteo"
	MeteoTime time.Time `json:"meteo_time,omitzero"`
	Hydro     string    `json:"hydro,omitempty"` // "fanfar"
	HydroTime time.Time `json:"hydro_time,omitzero"`
}

// MeteoObservation is the meteorological half of a reading.
type MeteoObservation struct {
	Time            time.Time
	PrecipitationMM *float64
	TemperatureC    *float64
	HumidityPct     *float64
	Source          string
}

// HydroObservation is the hydrological half of a reading.
type HydroObservation struct {
	Time            time.Time
	DischargeCumecs *float64
	Thresholds      StationThresholds
	Source          string
}

// WaterLevel estimates the river stage in metres from discharge.
func WaterLevel(dischargeCumecs float64) float64 {
	return dischargeCumecs / 20
}

// Float returns a pointer to v, for building readings with present values.
func Float(v float64) *float64 { return &v }
