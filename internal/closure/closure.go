// Package closure materializes the facts entailed by the schema: kind
// membership up the hierarchy and the kinds implied by predicate domains and
// ranges. It does nothing else; there is no general reasoner here.
package closure

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

// ErrNonConvergence means a pass still derived facts when the ceiling was
// reached. It indicates a schema defect and is fatal for the cycle.
var ErrNonConvergence = errors.New("closure did not converge")

// Stats describes one Materialize call. Passes includes the final empty pass.
type Stats struct {
	Passes  int `json:"passes"`
	Derived int `json:"derived"`
}

// Engine applies the entailment rules of one catalog.
type Engine struct {
	catalog   *schema.Catalog
	maxPasses int
}

// minPasses lets the smallest schemas finish: one pass for each rule family
// and the final empty pass.
const minPasses = 3

// New returns an engine for c. A maxPasses of zero derives the ceiling from
// the catalog as depth × |kinds| + 1, never less than minPasses.
func New(c *schema.Catalog, maxPasses int) *Engine {
	return &Engine{catalog: c, maxPasses: maxPasses}
}

// Ceiling is the number of passes after which Materialize gives up.
func (e *Engine) Ceiling() int {
	if e.maxPasses > 0 {
		return e.maxPasses
	}
	return max(e.catalog.Depth()*len(e.catalog.Kinds())+1, minPasses)
}

// Materialize runs passes until one inserts nothing. Each pass applies kind
// transitivity and then domain/range propagation, in that order. Running it
// on an already closed store performs a single empty pass.
func (e *Engine) Materialize(s *facts.Store) (Stats, error) {
	ceiling := e.Ceiling()
	var st Stats
	for st.Passes < ceiling {
		st.Passes++
		n := e.inheritKinds(s) + e.propagateDomainRange(s)
		st.Derived += n
		if n == 0 {
			return st, nil
		}
	}
	return st, fmt.Errorf("%w: still deriving facts after %d passes", ErrNonConvergence, ceiling)
}

// inheritKinds asserts (e, type, A) for every ancestor A of every kind e has.
func (e *Engine) inheritKinds(s *facts.Store) int {
	var pending []facts.Fact
	for f := range s.Query(facts.Pattern{Predicate: facts.PredicateType}) {
		k, ok := f.Object.Entity()
		if !ok {
			continue
		}
		for _, a := range e.catalog.Ancestors(k) {
			if t := facts.TypeFact(f.Subject, a); !s.Contains(t) {
				pending = append(pending, t)
			}
		}
	}
	return s.InsertAll(pending)
}

// propagateDomainRange asserts the declared domain kind of every subject and,
// for object predicates, the declared range kind of every object.
func (e *Engine) propagateDomainRange(s *facts.Store) int {
	var pending []facts.Fact
	for _, p := range e.catalog.Predicates() {
		hasRange := p.Arity == schema.ArityObject && p.Range != ""
		if p.Domain == "" && !hasRange {
			continue
		}
		for f := range s.Query(facts.Pattern{Predicate: p.ID}) {
			if p.Domain != "" {
				if t := facts.TypeFact(f.Subject, p.Domain); !s.Contains(t) {
					pending = append(pending, t)
				}
			}
			if !hasRange {
				continue
			}
			if o, ok := f.Object.Entity(); ok {
				if t := facts.TypeFact(o, p.Range); !s.Contains(t) {
					pending = append(pending, t)
				}
			}
		}
	}
	return s.InsertAll(pending)
}
