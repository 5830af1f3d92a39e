// Package schema holds the static domain description: the kind hierarchy,
// predicate declarations, named individuals and the rule corpus. A Catalog
// is immutable once built; reloading builds a new one.
package schema

import (
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/facts"
)

// Root is the single top kind every other kind descends from.
const Root facts.EntityID = "Thing"

// Arity distinguishes object-valued predicates from literal-valued ones.
type Arity int

const (
	ArityLiteral Arity = iota
	ArityObject
)

func (a Arity) String() string {
	if a == ArityObject {
		return "object"
	}
	return "literal"
}

// Kind is a class in the hierarchy.
type Kind struct {
	ID      facts.EntityID   `json:"id"`
	Label   string           `json:"label"`
	Comment string           `json:"comment,omitempty"`
	Parents []facts.EntityID `json:"parents,omitempty"`
}

// PredicateDecl declares a relation or attribute. Domain and Range are empty
// when unconstrained; Range is only meaningful for object predicates.
type PredicateDecl struct {
	ID       facts.PredicateID `json:"id"`
	Label    string            `json:"label"`
	Comment  string            `json:"comment,omitempty"`
	Arity    Arity             `json:"-"`
	Domain   facts.EntityID    `json:"domain,omitempty"`
	Range    facts.EntityID    `json:"range,omitempty"`
	Datatype string            `json:"datatype,omitempty"`
}

// Property is one asserted value of a named individual.
type Property struct {
	Predicate facts.PredicateID
	Value     facts.Value
}

// Individual is a named entity declared alongside the schema.
type Individual struct {
	ID         facts.EntityID
	Label      string
	Comment    string
	Kinds      []facts.EntityID
	Properties []Property
}

// Catalog is the loaded, validated schema.
type Catalog struct {
	source string

	kinds     map[facts.EntityID]*Kind
	kindOrder []facts.EntityID
	children  map[facts.EntityID][]facts.EntityID
	ancestors map[facts.EntityID][]facts.EntityID
	depth     int

	preds     map[facts.PredicateID]*PredicateDecl
	predOrder []facts.PredicateID

	individuals []Individual
	rules       []Rule

	description Description
	loadedAt    time.Time
}

// Description is the metadata block of a schema definition.
type Description struct {
	URI         string `yaml:"uri" json:"uri"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Details     string `yaml:"details" json:"details"`
	Version     string `yaml:"version" json:"version"`
	Created     string `yaml:"created" json:"created"`
}

// Description returns the definition's metadata. Title defaults to Source.
func (c *Catalog) Description() Description { return c.description }

// Source describes where the catalog was loaded from.
func (c *Catalog) Source() string { return c.source }

// LoadedAt is when the catalog was built.
func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

// Kind looks up a kind by id.
func (c *Catalog) Kind(id facts.EntityID) (Kind, bool) {
	k, ok := c.kinds[id]
	if !ok {
		return Kind{}, false
	}
	return *k, true
}

// HasKind reports whether id is a declared kind.
func (c *Catalog) HasKind(id facts.EntityID) bool {
	_, ok := c.kinds[id]
	return ok
}

// Kinds returns every kind in declaration order, root first.
func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, 0, len(c.kindOrder))
	for _, id := range c.kindOrder {
		out = append(out, *c.kinds[id])
	}
	return out
}

// Parents returns the direct parents of id.
func (c *Catalog) Parents(id facts.EntityID) []facts.EntityID {
	if k, ok := c.kinds[id]; ok {
		return k.Parents
	}
	return nil
}

// Children returns the direct subkinds of id in declaration order.
func (c *Catalog) Children(id facts.EntityID) []facts.EntityID {
	return c.children[id]
}

// Ancestors returns every proper ancestor of id, nearest first, ending with
// the root.
func (c *Catalog) Ancestors(id facts.EntityID) []facts.EntityID {
	return c.ancestors[id]
}

// IsSubKind reports whether sub equals sup or descends from it.
func (c *Catalog) IsSubKind(sub, sup facts.EntityID) bool {
	if sub == sup {
		return c.HasKind(sub)
	}
	for _, a := range c.ancestors[sub] {
		if a == sup {
			return true
		}
	}
	return false
}

// Depth is the length of the longest parent chain from any kind to the root.
func (c *Catalog) Depth() int { return c.depth }

// Predicate looks up a predicate declaration.
func (c *Catalog) Predicate(id facts.PredicateID) (PredicateDecl, bool) {
	p, ok := c.preds[id]
	if !ok {
		return PredicateDecl{}, false
	}
	return *p, true
}

// Predicates returns every declaration in declaration order.
func (c *Catalog) Predicates() []PredicateDecl {
	out := make([]PredicateDecl, 0, len(c.predOrder))
	for _, id := range c.predOrder {
		out = append(out, *c.preds[id])
	}
	return out
}

// ObjectPredicates returns the object-valued declarations.
func (c *Catalog) ObjectPredicates() []PredicateDecl {
	return c.predicatesWith(ArityObject)
}

// DataPredicates returns the literal-valued declarations.
func (c *Catalog) DataPredicates() []PredicateDecl {
	return c.predicatesWith(ArityLiteral)
}

func (c *Catalog) predicatesWith(a Arity) []PredicateDecl {
	var out []PredicateDecl
	for _, id := range c.predOrder {
		if p := c.preds[id]; p.Arity == a {
			out = append(out, *p)
		}
	}
	return out
}

// Individuals returns the named individuals in declaration order.
func (c *Catalog) Individuals() []Individual {
	out := make([]Individual, len(c.individuals))
	copy(out, c.individuals)
	return out
}

// Rules returns the rule corpus in precedence order.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Seed inserts the declared individuals into s and returns how many facts
// were new.
func (c *Catalog) Seed(s *facts.Store) int {
	n := 0
	for _, ind := range c.individuals {
		for _, k := range ind.Kinds {
			if s.Insert(facts.TypeFact(ind.ID, k)) {
				n++
			}
		}
		for _, p := range ind.Properties {
			if s.Insert(facts.NewFact(ind.ID, p.Predicate, p.Value)) {
				n++
			}
		}
	}
	return n
}
