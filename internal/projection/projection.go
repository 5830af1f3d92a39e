// Package projection turns a catalog and a closed store into a node/link
// graph for rendering, plus the listings and counts shown next to it.
package projection

import (
	"errors"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

// ErrSchemaUnavailable is returned when there is no catalog to project.
var ErrSchemaUnavailable = errors.New("schema unavailable")

// DefaultMaxIndividuals caps individual nodes when no limit is configured.
const DefaultMaxIndividuals = 30

// NodeType distinguishes the three node families of the graph.
type NodeType string

const (
	NodeClass      NodeType = "class"
	NodeProperty   NodeType = "property"
	NodeIndividual NodeType = "individual"
)

// LinkType names the relation a link draws.
type LinkType string

const (
	LinkInstanceOf        LinkType = "instanceOf"
	LinkSubClassOf        LinkType = "subClassOf"
	LinkHasDomain         LinkType = "hasDomain"
	LinkHasRange          LinkType = "hasRange"
	LinkPropertyAssertion LinkType = "objectPropertyAssertion"
)

// Node is one class, object property or individual. Value sizes the node:
// classes grow with their instance count, properties and individuals are
// fixed.
type Node struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Type        NodeType `json:"type"`
	Value       float64  `json:"value"`
}

// Link connects two node IDs of the same graph; Value is the drawing weight.
type Link struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   LinkType `json:"type"`
	Label  string   `json:"label"`
	Value  float64  `json:"value"`
}

// Graph is the visualization model. Truncated is set when individuals beyond
// MaxIndividuals were left out; IndividualTotal is the uncapped count.
type Graph struct {
	Nodes           []Node `json:"nodes"`
	Links           []Link `json:"links"`
	Truncated       bool   `json:"truncated"`
	IndividualTotal int    `json:"individual_total"`
	MaxIndividuals  int    `json:"max_individuals"`
}

func classID(k facts.EntityID) string        { return "class_" + string(k) }
func propertyID(p facts.PredicateID) string { return "prop_" + string(p) }
func individualID(e facts.EntityID) string   { return "indiv_" + string(e) }

// Project builds the graph. Only links whose two endpoints are nodes are
// emitted. A maxIndividuals of zero or less selects DefaultMaxIndividuals.
func Project(c *schema.Catalog, r facts.Reader, maxIndividuals int) (Graph, error) {
	if c == nil {
		return Graph{}, ErrSchemaUnavailable
	}
	if r == nil {
		r = facts.NewStore()
	}
	if maxIndividuals <= 0 {
		maxIndividuals = DefaultMaxIndividuals
	}

	g := Graph{Nodes: []Node{}, Links: []Link{}, MaxIndividuals: maxIndividuals}
	present := make(map[string]bool)
	addNode := func(n Node) {
		if present[n.ID] {
			return
		}
		present[n.ID] = true
		g.Nodes = append(g.Nodes, n)
	}
	addLink := func(l Link) {
		if present[l.Source] && present[l.Target] {
			g.Links = append(g.Links, l)
		}
	}

	for _, k := range c.Kinds() {
		if k.ID == schema.Root {
			continue
		}
		addNode(Node{
			ID:          classID(k.ID),
			Name:        string(k.ID),
			Label:       k.Label,
			Description: describe(k.Comment, "Class "+string(k.ID)),
			Type:        NodeClass,
			Value:       importance(c, r, k.ID),
		})
	}
	for _, p := range c.ObjectPredicates() {
		addNode(Node{
			ID:          propertyID(p.ID),
			Name:        string(p.ID),
			Label:       p.Label,
			Description: describe(p.Comment, "Object property "+string(p.ID)),
			Type:        NodeProperty,
			Value:       0.7,
		})
	}

	labels := individualLabels(c)
	all := individuals(c, r)
	g.IndividualTotal = len(all)
	shown := all
	if len(shown) > maxIndividuals {
		shown = shown[:maxIndividuals]
		g.Truncated = true
	}
	for _, e := range shown {
		label := labels[e]
		if label == "" {
			label = displayName(r, e)
		}
		addNode(Node{
			ID:          individualID(e),
			Name:        string(e),
			Label:       label,
			Description: "Individual " + string(e),
			Type:        NodeIndividual,
			Value:       0.5,
		})
		for _, k := range specificKinds(c, r, e) {
			addLink(Link{Source: individualID(e), Target: classID(k), Type: LinkInstanceOf, Label: "is an instance of", Value: 1})
		}
	}

	for _, k := range c.Kinds() {
		for _, p := range k.Parents {
			addLink(Link{Source: classID(k.ID), Target: classID(p), Type: LinkSubClassOf, Label: "is a subclass of", Value: 2})
		}
	}
	for _, p := range c.ObjectPredicates() {
		if p.Domain != "" {
			addLink(Link{Source: classID(p.Domain), Target: propertyID(p.ID), Type: LinkHasDomain, Label: "has domain", Value: 1.5})
		}
		if p.Range != "" {
			addLink(Link{Source: propertyID(p.ID), Target: classID(p.Range), Type: LinkHasRange, Label: "has range", Value: 1.5})
		}
	}
	for _, p := range c.ObjectPredicates() {
		for f := range r.Query(facts.Pattern{Predicate: p.ID}) {
			o, ok := f.Object.Entity()
			if !ok {
				continue
			}
			addLink(Link{Source: individualID(f.Subject), Target: individualID(o), Type: LinkPropertyAssertion, Label: string(p.ID), Value: 1})
		}
	}
	return g, nil
}

// importance is 1 + 0.5·subclasses + 0.3·instances + 0.2·(domain and range
// uses). It only drives node size.
func importance(c *schema.Catalog, r facts.Reader, k facts.EntityID) float64 {
	subclasses := len(c.Children(k))
	instances := len(facts.Subjects(r, facts.PredicateType, facts.Ref(k)))
	uses := 0
	for _, p := range c.Predicates() {
		if p.Domain == k {
			uses++
		}
		if p.Range == k {
			uses++
		}
	}
	return 1 + 0.5*float64(subclasses) + 0.3*float64(instances) + 0.2*float64(uses)
}

// individuals lists entities typed with a declared kind, in first-seen order.
// Kinds themselves are never individuals.
func individuals(c *schema.Catalog, r facts.Reader) []facts.EntityID {
	seen := make(map[facts.EntityID]bool)
	var out []facts.EntityID
	for f := range r.Query(facts.Pattern{Predicate: facts.PredicateType}) {
		k, ok := f.Object.Entity()
		if !ok || !c.HasKind(k) || c.HasKind(f.Subject) || seen[f.Subject] {
			continue
		}
		seen[f.Subject] = true
		out = append(out, f.Subject)
	}
	return out
}

// specificKinds drops every kind of e that is an ancestor of another kind of
// e, so a closed store links City rather than City, Zone and Thing.
func specificKinds(c *schema.Catalog, r facts.Reader, e facts.EntityID) []facts.EntityID {
	var kinds []facts.EntityID
	for _, k := range facts.KindsOf(r, e) {
		if c.HasKind(k) && k != schema.Root {
			kinds = append(kinds, k)
		}
	}
	var out []facts.EntityID
	for _, k := range kinds {
		general := false
		for _, other := range kinds {
			if other != k && c.IsSubKind(other, k) {
				general = true
				break
			}
		}
		if !general {
			out = append(out, k)
		}
	}
	return out
}

func individualLabels(c *schema.Catalog) map[facts.EntityID]string {
	out := make(map[facts.EntityID]string)
	for _, ind := range c.Individuals() {
		out[ind.ID] = ind.Label
	}
	return out
}

func displayName(r facts.Reader, e facts.EntityID) string {
	if v, ok := facts.First(r, e, domain.PredHasName); ok {
		if s, ok := v.Str(); ok {
			return s
		}
	}
	return string(e)
}

func describe(comment, fallback string) string {
	if comment != "" {
		return comment
	}
	return fallback
}
