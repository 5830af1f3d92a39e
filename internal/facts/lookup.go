package facts

// Objects returns every object asserted for (subject, predicate).
func Objects(r Reader, subject EntityID, predicate PredicateID) []Value {
	var out []Value
	for f := range r.Query(Pattern{Subject: subject, Predicate: predicate}) {
		out = append(out, f.Object)
	}
	return out
}

// First returns the first object asserted for (subject, predicate).
func First(r Reader, subject EntityID, predicate PredicateID) (Value, bool) {
	for f := range r.Query(Pattern{Subject: subject, Predicate: predicate}) {
		return f.Object, true
	}
	return Value{}, false
}

// FirstNumber returns the first numeric object for (subject, predicate).
func FirstNumber(r Reader, subject EntityID, predicate PredicateID) (float64, bool) {
	for f := range r.Query(Pattern{Subject: subject, Predicate: predicate}) {
		if n, ok := f.Object.Number(); ok {
			return n, true
		}
	}
	return 0, false
}

// Subjects returns the distinct subjects of facts matching (predicate, object)
// in first-seen order.
func Subjects(r Reader, predicate PredicateID, object Value) []EntityID {
	seen := make(map[EntityID]struct{})
	var out []EntityID
	for f := range r.Query(Pattern{Predicate: predicate, Object: object}) {
		if _, ok := seen[f.Subject]; ok {
			continue
		}
		seen[f.Subject] = struct{}{}
		out = append(out, f.Subject)
	}
	return out
}

// HasKind reports whether e is asserted (or derived) to belong to kind k.
func HasKind(r Reader, e, k EntityID) bool {
	return r.Contains(TypeFact(e, k))
}

// KindsOf returns the kinds of e in insertion order.
func KindsOf(r Reader, e EntityID) []EntityID {
	var out []EntityID
	for f := range r.Query(Pattern{Subject: e, Predicate: PredicateType}) {
		if k, ok := f.Object.Entity(); ok {
			out = append(out, k)
		}
	}
	return out
}

// Exists reports whether e appears as the subject of any fact.
func Exists(r Reader, e EntityID) bool {
	for range r.Query(Pattern{Subject: e}) {
		return true
	}
	return false
}
