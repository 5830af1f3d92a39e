package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/flood-risk-service/internal/facts"
)

// Static individuals every reading is attached to.
const (
	EntityCity         facts.EntityID = "Ouagadougou"
	EntityMeteoStation facts.EntityID = "Station_Ouaga_Meteo"
	EntityHydroStation facts.EntityID = "Station_Wayen"
)

// NewSnapshotIDs names the entities for a reading taken at ts. The analysis
// id is random; measurement ids are derived from ts.
func NewSnapshotIDs(ts time.Time) SnapshotIDs {
	unix := ts.Unix()
	return SnapshotIDs{
		Analysis:     facts.EntityID("analysis_" + uuid.NewString()),
		City:         EntityCity,
		MeteoStation: EntityMeteoStation,
		HydroStation: EntityHydroStation,
		MeteoData:    facts.EntityID(fmt.Sprintf("MeteoData_%d", unix)),
		HydroData:    facts.EntityID(fmt.Sprintf("HydroData_%d", unix)),
	}
}
