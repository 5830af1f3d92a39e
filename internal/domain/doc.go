// Package domain models flood risk readings for Ouagadougou and the
// vocabulary used to express them as facts.
//
// # Data Sources
//
// Meteorological readings come from the WMO WIS2 box for the Ouagadougou
// synoptic station (WIGOS id 0-854-0-090). When that feed is down or returns
// no report for the requested window, the Open-Meteo hourly forecast for the
// city centre (12.4052, -1.5063) is used instead. Hydrological readings come
// from the FANFAR HYPE point service for the Nakanbé sub-basin at Wayen
// (subid 208493), which also publishes the return-period discharges used as
// station alert thresholds.
//
// # Conventions
//
// Units:
//
//	precipitation   mm over the reporting period
//	temperature     °C
//	humidity        % relative humidity
//	discharge       m³/s
//	water level     m, estimated as discharge / 20
//
// The water level estimate is a coarse rating-curve stand-in; it is only used
// by the combined rainfall and water level rule.
//
// Station thresholds:
//
//	hq2, hq5, hq30 are the 2, 5 and 30 year return-period discharges at the
//	hydrological station. They are attached to the station as facts and
//	reported alongside the assessment.
//
// Missing values:
//
//	Any measurement may be absent. Absent values are represented as nil
//	pointers and never as zero, so rules that reference them are skipped
//	rather than evaluated against 0.
//
// # Risk Levels
//
// Three ordered levels (Low < Moderate < High) and two warning statuses
// (Normal, Alert). Within one evaluation a level is only ever raised and an
// alert is never cleared. In the fact vocabulary the levels are the
// individuals LowRisk, MediumRisk and HighRisk.
//
// # ID Generation
//
// Analysis sessions get a random id (analysis_<uuid>). Measurement entities
// are named after the reading time (MeteoData_<unix>, HydroData_<unix>) so
// re-ingesting the same reading into a store is a no-op.
package domain
