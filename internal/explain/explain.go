// Package explain reconstructs why an entity carries a risk level: which
// rules could have produced it, which facts were on hand and which zone
// factors crossed their thresholds. It only reads the store.
package explain

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

var (
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrUnknownProperty = errors.New("unknown property")
	ErrNoMatchingRule  = errors.New("no matching rule")
)

// Strategy names the rule lookup that produced an explanation.
type Strategy string

const (
	// StrategyVariant matches rules that set a risk level and name the target.
	StrategyVariant Strategy = "variant"
	// StrategyFallback matches rules that set a risk level and name HighRisk.
	// It only runs when StrategyVariant found nothing.
	StrategyFallback Strategy = "fallback"
)

// DefaultZoneKind is the kind explained entities must belong to.
const DefaultZoneKind facts.EntityID = "Zone"

// TriggeredRule is a rule whose conclusion matches the requested level.
type TriggeredRule struct {
	RuleID      int    `json:"rule_id"`
	Description string `json:"description"`
	Text        string `json:"rule_text"`
}

// ContributingFact is one fact held about the explained entity, rendered
// for display.
type ContributingFact struct {
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// PathStep is one zone attribute that crossed its High-risk threshold.
type PathStep struct {
	Factor       string `json:"factor"`
	Value        string `json:"value"`
	Threshold    string `json:"threshold"`
	Contribution string `json:"contribution"`
}

// Explanation is the answer for one (entity, property) pair.
type Explanation struct {
	Entity            facts.EntityID     `json:"entity"`
	Property          facts.EntityID     `json:"inferred_property"`
	Strategy          Strategy           `json:"strategy"`
	TriggeredRules    []TriggeredRule    `json:"triggered_rules"`
	ContributingFacts []ContributingFact `json:"contributing_facts"`
	PathOfInference   []PathStep         `json:"path_of_inference"`
}

// factor is a zone attribute checked when reconstructing a High path.
type factor struct {
	predicate    facts.PredicateID
	name         string
	op           schema.Op
	threshold    float64
	contribution string
}

var highRiskFactors = []factor{
	{domain.PredRainfall, "Heavy rainfall", schema.OpGreater, 100, "Strong"},
	{domain.PredDrainage, "Low drainage capacity", schema.OpLess, 30, "Strong"},
	{domain.PredElevation, "Low elevation", schema.OpLess, 10, "Medium"},
	{domain.PredProximityToWater, "Close to a watercourse", schema.OpLess, 500, "Strong"},
}

// Explainer answers explanation requests for entities of one zone kind.
type Explainer struct {
	zoneKind facts.EntityID
}

// New returns an explainer. An empty zoneKind selects DefaultZoneKind.
func New(zoneKind facts.EntityID) *Explainer {
	if zoneKind == "" {
		zoneKind = DefaultZoneKind
	}
	return &Explainer{zoneKind: zoneKind}
}

// ParseProperty maps a property name to a risk level. Case, spacing and
// underscore variants are accepted ("HighRisk", "High_Risk", "high risk");
// ModerateRisk is an alias of MediumRisk.
func ParseProperty(name string) (domain.RiskLevel, error) {
	if l, ok := schema.MatchRiskLevel(name); ok {
		return l, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
}

// Explain reconstructs how entity could have been given property. The store
// must already be closed so kind membership is complete.
func (x *Explainer) Explain(r facts.Reader, rules []schema.Rule, entity facts.EntityID, property string) (Explanation, error) {
	if entity == "" || !facts.HasKind(r, entity, x.zoneKind) {
		return Explanation{}, fmt.Errorf("%w: %q is not a %s", ErrUnknownEntity, entity, x.zoneKind)
	}
	level, err := ParseProperty(property)
	if err != nil {
		return Explanation{}, err
	}

	ex := Explanation{
		Entity:            entity,
		Property:          level.Entity(),
		Strategy:          StrategyVariant,
		TriggeredRules:    matchRules(rules, level),
		ContributingFacts: []ContributingFact{},
		PathOfInference:   []PathStep{},
	}
	if len(ex.TriggeredRules) == 0 {
		ex.Strategy = StrategyFallback
		ex.TriggeredRules = matchRules(rules, domain.RiskHigh)
	}
	if len(ex.TriggeredRules) == 0 {
		return Explanation{}, fmt.Errorf("%w: %s for %s", ErrNoMatchingRule, level.Entity(), entity)
	}

	for f := range r.Query(facts.Pattern{Subject: entity}) {
		if f.Predicate == domain.PredRiskLevel {
			continue
		}
		ex.ContributingFacts = append(ex.ContributingFacts, ContributingFact{
			Predicate: string(f.Predicate),
			Object:    f.Object.Display(),
		})
	}

	if level == domain.RiskHigh {
		ex.PathOfInference = highRiskPath(r, entity)
	}
	return ex, nil
}

func matchRules(rules []schema.Rule, level domain.RiskLevel) []TriggeredRule {
	var out []TriggeredRule
	for _, rule := range rules {
		if rule.SetsRiskLevel && rule.MentionsLevel(level) {
			out = append(out, TriggeredRule{RuleID: rule.ID, Description: rule.Description, Text: rule.Text})
		}
	}
	return out
}

// highRiskPath lists the factors whose value crosses the threshold. Missing
// or non-numeric values are skipped.
func highRiskPath(r facts.Reader, entity facts.EntityID) []PathStep {
	path := []PathStep{}
	for _, fc := range highRiskFactors {
		v, ok := facts.First(r, entity, fc.predicate)
		if !ok {
			continue
		}
		n, ok := v.Numeric()
		if !ok || !fc.op.Compare(n, fc.threshold) {
			continue
		}
		path = append(path, PathStep{
			Factor:       fc.name,
			Value:        v.Display(),
			Threshold:    strconv.FormatFloat(fc.threshold, 'f', -1, 64),
			Contribution: fc.contribution,
		})
	}
	return path
}
