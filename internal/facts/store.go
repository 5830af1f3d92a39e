// Package facts holds the snapshot-scoped fact store: a deduplicated,
// append-only set of (subject, predicate, object) facts indexed for pattern
// queries.
package facts

import (
	"fmt"
	"iter"
)

// Fact is an immutable (subject, predicate, object) statement.
type Fact struct {
	Subject   EntityID
	Predicate PredicateID
	Object    Value
}

// NewFact builds a fact.
func NewFact(s EntityID, p PredicateID, o Value) Fact {
	return Fact{Subject: s, Predicate: p, Object: o}
}

// TypeFact asserts that e belongs to kind k.
func TypeFact(e, k EntityID) Fact {
	return Fact{Subject: e, Predicate: PredicateType, Object: Ref(k)}
}

func (f Fact) String() string {
	return fmt.Sprintf("(%s %s %s)", f.Subject, f.Predicate, f.Object)
}

// Pattern selects facts. Empty fields are wildcards.
type Pattern struct {
	Subject   EntityID
	Predicate PredicateID
	Object    Value
}

func (p Pattern) matches(f Fact) bool {
	if p.Subject != "" && p.Subject != f.Subject {
		return false
	}
	if p.Predicate != "" && p.Predicate != f.Predicate {
		return false
	}
	if !p.Object.IsZero() && p.Object != f.Object {
		return false
	}
	return true
}

// Reader is the read-only view handed to classification, explanation and
// projection.
type Reader interface {
	Query(p Pattern) iter.Seq[Fact]
	Contains(f Fact) bool
	Len() int
}

// Store is not safe for concurrent writers. Concurrent readers are fine once
// writing has stopped.
type Store struct {
	facts       []Fact
	set         map[Fact]struct{}
	bySubject   map[EntityID][]int
	byPredicate map[PredicateID][]int
	byObject    map[Value][]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		set:         make(map[Fact]struct{}),
		bySubject:   make(map[EntityID][]int),
		byPredicate: make(map[PredicateID][]int),
		byObject:    make(map[Value][]int),
	}
}

// Insert adds f and reports whether it was new. Re-inserting an existing fact
// is a no-op.
func (s *Store) Insert(f Fact) bool {
	if _, ok := s.set[f]; ok {
		return false
	}
	i := len(s.facts)
	s.facts = append(s.facts, f)
	s.set[f] = struct{}{}
	s.bySubject[f.Subject] = append(s.bySubject[f.Subject], i)
	s.byPredicate[f.Predicate] = append(s.byPredicate[f.Predicate], i)
	s.byObject[f.Object] = append(s.byObject[f.Object], i)
	return true
}

// InsertAll inserts every fact and returns how many were new.
func (s *Store) InsertAll(fs []Fact) int {
	n := 0
	for _, f := range fs {
		if s.Insert(f) {
			n++
		}
	}
	return n
}

// Contains reports whether f is in the store.
func (s *Store) Contains(f Fact) bool {
	_, ok := s.set[f]
	return ok
}

// Len returns the number of distinct facts.
func (s *Store) Len() int { return len(s.facts) }

// Query returns the facts matching p in insertion order. The sequence is
// evaluated lazily against the store state at the time Query is called;
// facts inserted while iterating are not visited.
func (s *Store) Query(p Pattern) iter.Seq[Fact] {
	candidates, scan := s.candidates(p)
	return func(yield func(Fact) bool) {
		if scan {
			for _, f := range s.facts[:len(s.facts):len(s.facts)] {
				if p.matches(f) && !yield(f) {
					return
				}
			}
			return
		}
		for _, i := range candidates {
			f := s.facts[i]
			if p.matches(f) && !yield(f) {
				return
			}
		}
	}
}

// candidates picks the smallest index list among the bound positions. A full
// scan is only used when nothing is bound.
func (s *Store) candidates(p Pattern) ([]int, bool) {
	var best []int
	found := false
	consider := func(idx []int) {
		if !found || len(idx) < len(best) {
			best = idx
			found = true
		}
	}
	if p.Subject != "" {
		consider(s.bySubject[p.Subject])
	}
	if p.Predicate != "" {
		consider(s.byPredicate[p.Predicate])
	}
	if !p.Object.IsZero() {
		consider(s.byObject[p.Object])
	}
	if !found {
		return nil, true
	}
	// Clip capacity so later appends never alias the captured view.
	return best[:len(best):len(best)], false
}

// All returns a copy of every fact in insertion order.
func (s *Store) All() []Fact {
	out := make([]Fact, len(s.facts))
	copy(out, s.facts)
	return out
}
