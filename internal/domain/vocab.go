package domain

import "github.com/couchcryptid/flood-risk-service/internal/facts"

// Kinds referenced by ingestion and classification. The full hierarchy lives
// in the schema definition.
const (
	KindCity                  facts.EntityID = "City"
	KindZone                  facts.EntityID = "Zone"
	KindMeteorologicalStation facts.EntityID = "MeteorologicalStation"
	KindHydrologicalStation   facts.EntityID = "HydrologicalStation"
	KindMeteorologicalData    facts.EntityID = "MeteorologicalData"
	KindHydrologicalData      facts.EntityID = "HydrologicalData"
	KindFloodRiskAnalysis     facts.EntityID = "FloodRiskAnalysis"
	KindRiskLevel             facts.EntityID = "RiskLevel"
	KindWarningStatus         facts.EntityID = "WarningStatus"
	KindFloodProneZone        facts.EntityID = "FloodProneZone"
)

// Individuals of the level and status kinds.
const (
	EntityLowRisk    facts.EntityID = "LowRisk"
	EntityMediumRisk facts.EntityID = "MediumRisk"
	EntityHighRisk   facts.EntityID = "HighRisk"
	EntityNormal     facts.EntityID = "NormalStatus"
	EntityAlert      facts.EntityID = "AlertStatus"
)

// Predicates.
const (
	PredHasName     facts.PredicateID = "hasName"
	PredIsLocatedIn facts.PredicateID = "isLocatedIn"
	PredDownstream  facts.PredicateID = "isDownstreamOf"
	PredOccursAt    facts.PredicateID = "occursAtTime"
	PredMeasuredAt  facts.PredicateID = "measuredAt"
	PredHasTime     facts.PredicateID = "hasTime"
	PredConcerns    facts.PredicateID = "concernsZone"
	PredUsesData    facts.PredicateID = "usesData"

	PredPrecipitation facts.PredicateID = "hasPrecipitation"
	PredTemperature   facts.PredicateID = "hasTemperature"
	PredHumidity      facts.PredicateID = "hasHumidity"
	PredDischarge     facts.PredicateID = "hasDischarge"
	PredWaterLevel    facts.PredicateID = "hasWaterLevel"
	PredHQ2           facts.PredicateID = "hasHQ2Threshold"
	PredHQ5           facts.PredicateID = "hasHQ5Threshold"
	PredHQ30          facts.PredicateID = "hasHQ30Threshold"

	PredRiskLevel        facts.PredicateID = "hasRiskLevel"
	PredWarningStatus    facts.PredicateID = "hasEarlyWarningStatus"
	PredRainfall         facts.PredicateID = "hasRainfall"
	PredDrainage         facts.PredicateID = "hasDrainageCapacity"
	PredElevation        facts.PredicateID = "hasElevation"
	PredProximityToWater facts.PredicateID = "hasProximityToWater"
)

// SnapshotIDs names the entities one reading is ingested under.
type SnapshotIDs struct {
	Analysis     facts.EntityID
	City         facts.EntityID
	MeteoStation facts.EntityID
	HydroStation facts.EntityID
	MeteoData    facts.EntityID
	HydroData    facts.EntityID
}
