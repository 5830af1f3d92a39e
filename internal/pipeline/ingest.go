package pipeline

import (
	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
)

// Ingest adds the facts of one reading to s under ids and returns how many
// were new. Absent measurements produce no facts. The water level is
// estimated from discharge.
func Ingest(s *facts.Store, ids domain.SnapshotIDs, r domain.Reading) int {
	meteoTime := r.Sources.MeteoTime
	if meteoTime.IsZero() {
		meteoTime = r.Timestamp
	}
	hydroTime := r.Sources.HydroTime
	if hydroTime.IsZero() {
		hydroTime = r.Timestamp
	}

	batch := []facts.Fact{
		facts.TypeFact(ids.Analysis, domain.KindFloodRiskAnalysis),
		facts.NewFact(ids.Analysis, domain.PredHasTime, facts.Timestamp(r.Timestamp)),
		facts.NewFact(ids.Analysis, domain.PredConcerns, facts.Ref(ids.City)),
		facts.NewFact(ids.Analysis, domain.PredUsesData, facts.Ref(ids.MeteoData)),
		facts.NewFact(ids.Analysis, domain.PredUsesData, facts.Ref(ids.HydroData)),

		facts.TypeFact(ids.MeteoData, domain.KindMeteorologicalData),
		facts.NewFact(ids.MeteoData, domain.PredOccursAt, facts.Timestamp(meteoTime)),
		facts.NewFact(ids.MeteoData, domain.PredMeasuredAt, facts.Ref(ids.MeteoStation)),

		facts.TypeFact(ids.HydroData, domain.KindHydrologicalData),
		facts.NewFact(ids.HydroData, domain.PredOccursAt, facts.Timestamp(hydroTime)),
		facts.NewFact(ids.HydroData, domain.PredMeasuredAt, facts.Ref(ids.HydroStation)),
	}

	add := func(subject facts.EntityID, p facts.PredicateID, v *float64) {
		if v != nil {
			batch = append(batch, facts.NewFact(subject, p, facts.Number(*v)))
		}
	}
	add(ids.MeteoData, domain.PredPrecipitation, r.PrecipitationMM)
	add(ids.MeteoData, domain.PredTemperature, r.TemperatureC)
	add(ids.MeteoData, domain.PredHumidity, r.HumidityPct)
	add(ids.HydroData, domain.PredDischarge, r.DischargeCumecs)
	if r.DischargeCumecs != nil {
		add(ids.HydroData, domain.PredWaterLevel, domain.Float(domain.WaterLevel(*r.DischargeCumecs)))
	}
	add(ids.HydroStation, domain.PredHQ2, r.Thresholds.HQ2)
	add(ids.HydroStation, domain.PredHQ5, r.Thresholds.HQ5)
	add(ids.HydroStation, domain.PredHQ30, r.Thresholds.HQ30)

	return s.InsertAll(batch)
}

// assertConclusions records the outcome on the assessed zone so explanation
// and projection see it.
func assertConclusions(s *facts.Store, zone facts.EntityID, level domain.RiskLevel, alert domain.AlertStatus) int {
	return s.InsertAll([]facts.Fact{
		facts.NewFact(zone, domain.PredRiskLevel, facts.Ref(level.Entity())),
		facts.NewFact(zone, domain.PredWarningStatus, facts.Ref(alert.Entity())),
	})
}
