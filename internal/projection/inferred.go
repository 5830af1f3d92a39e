package projection

import (
	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

// MaxInferredExamples caps the examples listed per category.
const MaxInferredExamples = 10

// RiskExample is an entity carrying a risk level.
type RiskExample struct {
	Area      facts.EntityID `json:"area"`
	RiskLevel string         `json:"risk_level"`
}

// AreaExample is an entity of a flood-prone kind.
type AreaExample struct {
	Area facts.EntityID `json:"area"`
}

// WarningExample is an entity carrying an early-warning status.
type WarningExample struct {
	Entity facts.EntityID `json:"entity"`
	Status string         `json:"status"`
}

// Category counts the matches of one kind of conclusion and lists the first
// MaxInferredExamples of them.
type Category[T any] struct {
	Count    int `json:"count"`
	Examples []T `json:"examples"`
}

func (c *Category[T]) add(v T) {
	c.Count++
	if len(c.Examples) < MaxInferredExamples {
		c.Examples = append(c.Examples, v)
	}
}

// Inferred summarizes the conclusions held by a store: risk levels,
// flood-prone areas and early warnings.
type Inferred struct {
	FloodRisks      Category[RiskExample]    `json:"flood_risks"`
	FloodProneAreas Category[AreaExample]    `json:"flood_prone_areas"`
	EarlyWarnings   Category[WarningExample] `json:"early_warnings"`
	TotalInferences int                      `json:"total_inferences"`
}

// Inferences collects the conclusions in r, in store order.
func Inferences(c *schema.Catalog, r facts.Reader) (Inferred, error) {
	if c == nil {
		return Inferred{}, ErrSchemaUnavailable
	}
	out := Inferred{
		FloodRisks:      Category[RiskExample]{Examples: []RiskExample{}},
		FloodProneAreas: Category[AreaExample]{Examples: []AreaExample{}},
		EarlyWarnings:   Category[WarningExample]{Examples: []WarningExample{}},
	}
	if r == nil {
		return out, nil
	}

	for f := range r.Query(facts.Pattern{Predicate: domain.PredRiskLevel}) {
		out.FloodRisks.add(RiskExample{Area: f.Subject, RiskLevel: f.Object.Display()})
	}
	if c.HasKind(domain.KindFloodProneZone) {
		for _, e := range facts.Subjects(r, facts.PredicateType, facts.Ref(domain.KindFloodProneZone)) {
			out.FloodProneAreas.add(AreaExample{Area: e})
		}
	}
	for f := range r.Query(facts.Pattern{Predicate: domain.PredWarningStatus}) {
		out.EarlyWarnings.add(WarningExample{Entity: f.Subject, Status: f.Object.Display()})
	}
	out.TotalInferences = out.FloodRisks.Count + out.FloodProneAreas.Count + out.EarlyWarnings.Count
	return out, nil
}
