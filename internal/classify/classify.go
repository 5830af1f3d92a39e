// Package classify runs the flood risk cascade over the closed facts of one
// snapshot.
package classify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
)

// StableConditions is the single reason reported when no rule fires.
const StableConditions = "Stable meteorological and hydrological conditions"

// Reason records one rule firing. Rule is the cascade position (1-5), or 0
// for the stable-conditions default.
type Reason struct {
	Rule int    `json:"rule"`
	Text string `json:"text"`
}

// Evidence is the set of values the cascade read from the store.
type Evidence struct {
	PrecipitationMM *float64                 `json:"precipitation_mm"`
	TemperatureC    *float64                 `json:"temperature_c"`
	HumidityPct     *float64                 `json:"humidity_pct"`
	DischargeCumecs *float64                 `json:"discharge_cumecs"`
	WaterLevelM     *float64                 `json:"water_level_m"`
	Thresholds      domain.StationThresholds `json:"thresholds"`
	MeteoStation    string                   `json:"meteo_station"`
	HydroStation    string                   `json:"hydro_station"`
}

// Result is the outcome for one snapshot. It is not modified after Classify
// returns it.
type Result struct {
	AnalysisID         facts.EntityID     `json:"analysis_id"`
	Timestamp          time.Time          `json:"timestamp"`
	City               string             `json:"city"`
	RiskLevel          domain.RiskLevel   `json:"risk_level"`
	AlertStatus        domain.AlertStatus `json:"alert_status"`
	Reasons            []Reason           `json:"reasons"`
	Recommendations    []string           `json:"recommendations"`
	Evidence           Evidence           `json:"data"`
	IncompleteEvidence bool               `json:"incomplete_evidence"`
	Missing            []string           `json:"missing,omitempty"`
}

// ReasonRules returns the rule numbers of the reasons, in firing order.
func (r Result) ReasonRules() []int {
	out := make([]int, len(r.Reasons))
	for i, rs := range r.Reasons {
		out[i] = rs.Rule
	}
	return out
}

// state is the running outcome while the cascade is applied.
type state struct {
	level   domain.RiskLevel
	alert   domain.AlertStatus
	reasons []Reason
}

// raise only ever moves the level up.
func (s *state) raise(l domain.RiskLevel) { s.level = s.level.Max(l) }

func (s *state) reason(rule int, format string, args ...any) {
	s.reasons = append(s.reasons, Reason{Rule: rule, Text: fmt.Sprintf(format, args...)})
}

// step is one row of the cascade. Steps are evaluated independently and in
// order; a step whose inputs are missing is skipped.
type step struct {
	rule  int
	apply func(s *state, e Evidence, rule int)
}

var cascade = []step{
	{1, func(s *state, e Evidence, rule int) {
		if e.PrecipitationMM == nil || e.WaterLevelM == nil {
			return
		}
		if *e.PrecipitationMM > 30.0 && *e.WaterLevelM > 2.5 {
			s.raise(domain.RiskHigh)
			s.reason(rule, "Heavy rainfall (%s mm) and high water level (%s m)", num(*e.PrecipitationMM), num(*e.WaterLevelM))
		}
	}},
	{2, func(s *state, e Evidence, rule int) {
		if e.DischargeCumecs == nil || *e.DischargeCumecs <= 10.0 {
			return
		}
		s.raise(domain.RiskModerate)
		s.reason(rule, "High discharge at %s (%s m³/s)", e.HydroStation, num(*e.DischargeCumecs))
	}},
	{3, func(s *state, e Evidence, rule int) {
		if e.DischargeCumecs == nil || *e.DischargeCumecs <= 50.0 {
			return
		}
		s.alert = domain.AlertRaised
		s.raise(domain.RiskModerate)
		s.reason(rule, "Very high discharge at %s (%s m³/s), early warning raised", e.HydroStation, num(*e.DischargeCumecs))
	}},
	{4, func(s *state, e Evidence, rule int) {
		if e.PrecipitationMM == nil {
			return
		}
		if p := *e.PrecipitationMM; p > 15.0 && p <= 30.0 {
			s.raise(domain.RiskModerate)
			s.reason(rule, "Moderate rainfall (%s mm)", num(p))
		}
	}},
	{5, func(s *state, e Evidence, rule int) {
		if e.PrecipitationMM == nil || *e.PrecipitationMM <= 30.0 {
			return
		}
		s.raise(domain.RiskHigh)
		s.reason(rule, "Very heavy rainfall (%s mm)", num(*e.PrecipitationMM))
	}},
}

// Classify reads the snapshot's measurements from r and applies the cascade.
// Missing precipitation or discharge skips the rules that need them and
// marks the result as incomplete; it is not an error.
func Classify(r facts.Reader, ids domain.SnapshotIDs) Result {
	e := gather(r, ids)

	var s state
	for _, st := range cascade {
		st.apply(&s, e, st.rule)
	}
	if len(s.reasons) == 0 {
		s.reasons = []Reason{{Rule: 0, Text: StableConditions}}
	}

	res := Result{
		AnalysisID:      ids.Analysis,
		City:            nameOf(r, ids.City),
		RiskLevel:       s.level,
		AlertStatus:     s.alert,
		Reasons:         s.reasons,
		Recommendations: domain.Recommendations(s.level),
		Evidence:        e,
	}
	if ids.Analysis != "" {
		if t, ok := facts.First(r, ids.Analysis, domain.PredHasTime); ok {
			res.Timestamp, _ = t.Time()
		}
	}
	if e.PrecipitationMM == nil {
		res.Missing = append(res.Missing, "precipitation")
	}
	if e.DischargeCumecs == nil {
		res.Missing = append(res.Missing, "discharge")
	}
	res.IncompleteEvidence = len(res.Missing) > 0
	return res
}

func gather(r facts.Reader, ids domain.SnapshotIDs) Evidence {
	e := Evidence{
		PrecipitationMM: number(r, ids.MeteoData, domain.PredPrecipitation),
		TemperatureC:    number(r, ids.MeteoData, domain.PredTemperature),
		HumidityPct:     number(r, ids.MeteoData, domain.PredHumidity),
		DischargeCumecs: number(r, ids.HydroData, domain.PredDischarge),
		WaterLevelM:     number(r, ids.HydroData, domain.PredWaterLevel),
		Thresholds: domain.StationThresholds{
			HQ2:  number(r, ids.HydroStation, domain.PredHQ2),
			HQ5:  number(r, ids.HydroStation, domain.PredHQ5),
			HQ30: number(r, ids.HydroStation, domain.PredHQ30),
		},
		MeteoStation: nameOf(r, ids.MeteoStation),
		HydroStation: nameOf(r, ids.HydroStation),
	}
	if e.WaterLevelM == nil && e.DischargeCumecs != nil {
		e.WaterLevelM = domain.Float(domain.WaterLevel(*e.DischargeCumecs))
	}
	return e
}

func number(r facts.Reader, subject facts.EntityID, p facts.PredicateID) *float64 {
	if subject == "" {
		return nil
	}
	if v, ok := facts.FirstNumber(r, subject, p); ok {
		return &v
	}
	return nil
}

func nameOf(r facts.Reader, id facts.EntityID) string {
	if id == "" {
		return ""
	}
	if v, ok := facts.First(r, id, domain.PredHasName); ok {
		if s, ok := v.Str(); ok {
			return s
		}
	}
	return string(id)
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
