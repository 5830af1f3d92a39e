package projection

import (
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

// Statistics summarizes a catalog and the store it was applied to.
type Statistics struct {
	Classes                  int       `json:"classes"`
	ObjectProperties         int       `json:"object_properties"`
	DataProperties           int       `json:"data_properties"`
	Individuals              int       `json:"individuals"`
	ObjectPropertyAssertions int       `json:"object_property_assertions"`
	DataPropertyAssertions   int       `json:"data_property_assertions"`
	TotalTriples             int       `json:"total_triples"`
	Rules                    int       `json:"rules"`
	LastLoaded               time.Time `json:"last_loaded"`
}

// ClassInfo is one kind with its direct parents and closed instance count.
type ClassInfo struct {
	ID        facts.EntityID   `json:"id"`
	Label     string           `json:"label"`
	Comment   string           `json:"comment,omitempty"`
	Parents   []facts.EntityID `json:"parents,omitempty"`
	Instances int              `json:"instances"`
}

// PropertyInfo is one predicate declaration.
type PropertyInfo struct {
	ID       facts.PredicateID `json:"id"`
	Label    string            `json:"label"`
	Comment  string            `json:"comment,omitempty"`
	Domain   facts.EntityID    `json:"domain,omitempty"`
	Range    facts.EntityID    `json:"range,omitempty"`
	Datatype string            `json:"datatype,omitempty"`
}

// IndividualInfo is one individual with its most specific kinds.
type IndividualInfo struct {
	ID    facts.EntityID   `json:"id"`
	Label string           `json:"label"`
	Kinds []facts.EntityID `json:"kinds"`
}

// Stats counts the catalog declarations and the store's assertions.
func Stats(c *schema.Catalog, r facts.Reader) (Statistics, error) {
	if c == nil {
		return Statistics{}, ErrSchemaUnavailable
	}
	if r == nil {
		r = facts.NewStore()
	}
	st := Statistics{
		Classes:          len(c.Kinds()) - 1,
		ObjectProperties: len(c.ObjectPredicates()),
		DataProperties:   len(c.DataPredicates()),
		Individuals:      len(individuals(c, r)),
		TotalTriples:     r.Len(),
		Rules:            len(c.Rules()),
		LastLoaded:       c.LoadedAt(),
	}
	for _, p := range c.Predicates() {
		n := 0
		for range r.Query(facts.Pattern{Predicate: p.ID}) {
			n++
		}
		if p.Arity == schema.ArityObject {
			st.ObjectPropertyAssertions += n
		} else {
			st.DataPropertyAssertions += n
		}
	}
	return st, nil
}

// Classes lists every kind except the root, in declaration order.
func Classes(c *schema.Catalog, r facts.Reader) ([]ClassInfo, error) {
	if c == nil {
		return nil, ErrSchemaUnavailable
	}
	if r == nil {
		r = facts.NewStore()
	}
	out := []ClassInfo{}
	for _, k := range c.Kinds() {
		if k.ID == schema.Root {
			continue
		}
		out = append(out, ClassInfo{
			ID:        k.ID,
			Label:     k.Label,
			Comment:   k.Comment,
			Parents:   k.Parents,
			Instances: len(facts.Subjects(r, facts.PredicateType, facts.Ref(k.ID))),
		})
	}
	return out, nil
}

// Properties lists the declarations of one arity.
func Properties(c *schema.Catalog, arity schema.Arity) ([]PropertyInfo, error) {
	if c == nil {
		return nil, ErrSchemaUnavailable
	}
	decls := c.DataPredicates()
	if arity == schema.ArityObject {
		decls = c.ObjectPredicates()
	}
	out := make([]PropertyInfo, 0, len(decls))
	for _, p := range decls {
		out = append(out, PropertyInfo{
			ID:       p.ID,
			Label:    p.Label,
			Comment:  p.Comment,
			Domain:   p.Domain,
			Range:    p.Range,
			Datatype: p.Datatype,
		})
	}
	return out, nil
}

// Individuals lists individuals, optionally only those of kind (including
// subkinds, since the store is closed). An empty kind lists all of them.
func Individuals(c *schema.Catalog, r facts.Reader, kind facts.EntityID) ([]IndividualInfo, error) {
	if c == nil {
		return nil, ErrSchemaUnavailable
	}
	if r == nil {
		r = facts.NewStore()
	}
	labels := individualLabels(c)
	out := []IndividualInfo{}
	for _, e := range individuals(c, r) {
		if kind != "" && !facts.HasKind(r, e, kind) {
			continue
		}
		label := labels[e]
		if label == "" {
			label = displayName(r, e)
		}
		out = append(out, IndividualInfo{ID: e, Label: label, Kinds: specificKinds(c, r, e)})
	}
	return out, nil
}
