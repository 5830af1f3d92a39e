package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle is returned when the kind hierarchy is not acyclic.
	ErrCycle = errors.New("kind hierarchy has a cycle")
	// ErrUnknownKind is returned when a parent, domain, range or individual
	// kind is not declared.
	ErrUnknownKind = errors.New("unknown kind")
	// ErrUnknownPredicate is returned when an individual uses an undeclared
	// predicate.
	ErrUnknownPredicate = errors.New("unknown predicate")
	// ErrDuplicate is returned for a second declaration of the same id.
	ErrDuplicate = errors.New("duplicate declaration")
	// ErrInvalid covers malformed definitions.
	ErrInvalid = errors.New("invalid definition")
)

// LoadError reports why a schema or rule corpus could not be loaded. The
// wrapped error is one of the sentinels above or a decoding error.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load schema %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErr(source string, format string, args ...any) error {
	return &LoadError{Source: source, Err: fmt.Errorf(format, args...)}
}
