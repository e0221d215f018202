// Package filter defines the predicate model and filter container used by the
// query planner, the backend translators and the in-process post-filter.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

// Support is a set of capability flags declaring where a predicate may be
// evaluated.
type Support uint8

const (
	// SupportCriteria means the predicate can be pushed to the relational backend.
	SupportCriteria Support = 1 << iota
	// SupportFullText means the predicate can be pushed to the full-text
	// backend, provided every field it touches is indexed.
	SupportFullText
	// SupportResultSet means the predicate can be re-evaluated in-process
	// against a materialized entity.
	SupportResultSet

	SupportAll = SupportCriteria | SupportFullText | SupportResultSet
)

// Has reports whether every flag in f is set.
func (s Support) Has(f Support) bool { return s&f == f }

// None reports whether no flag is set.
func (s Support) None() bool { return s&SupportAll == 0 }

func (s Support) String() string {
	var parts []string
	if s.Has(SupportCriteria) {
		parts = append(parts, "criteria")
	}
	if s.Has(SupportFullText) {
		parts = append(parts, "fulltext")
	}
	if s.Has(SupportResultSet) {
		parts = append(parts, "resultset")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseSupport converts flag names (criteria, fulltext, resultset) to a Support.
func ParseSupport(names []string) (Support, error) {
	var s Support
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "criteria":
			s |= SupportCriteria
		case "fulltext":
			s |= SupportFullText
		case "resultset":
			s |= SupportResultSet
		default:
			return 0, fmt.Errorf("%w: unknown support flag %q", ErrInvalid, n)
		}
	}
	return s, nil
}

var (
	// ErrInvalid marks malformed filter input.
	ErrInvalid = errors.New("invalid filter")
	// ErrUnsupported is returned by translators handed a predicate they cannot
	// express. Correct planning never produces it.
	ErrUnsupported = errors.New("unsupported predicate")
)

// Predicate is a single filter condition or a boolean composition of them.
//
// The interface is sealed: only this package defines predicates, so
// translators can switch over the concrete types exhaustively.
type Predicate interface {
	// Field is the dotted entity path the predicate applies to. Composite
	// and free-text predicates return "".
	Field() string
	// Support returns the capability flags.
	Support() Support
	String() string

	withSupport(Support) Predicate
	predicate()
}

type base struct {
	field   string
	support Support
}

func (b base) Field() string    { return b.field }
func (b base) Support() Support { return b.support }
func (base) predicate()         {}

// WithSupport returns a copy of p carrying the given capability flags.
func WithSupport(p Predicate, s Support) Predicate {
	return p.withSupport(s)
}

// Fields returns every field path referenced by p, descending into
// composites. Free-text predicates contribute their explicit field list.
func Fields(p Predicate) []string {
	var out []string
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch v := p.(type) {
		case *Not:
			walk(v.Child)
		case *And:
			for _, c := range v.Children {
				walk(c)
			}
		case *Or:
			for _, c := range v.Children {
				walk(c)
			}
		case *FreeText:
			out = append(out, v.Fields...)
		default:
			if f := p.Field(); f != "" {
				out = append(out, f)
			}
		}
	}
	walk(p)
	return out
}
