package filter

import (
	"fmt"
	"strings"
)

// Equal matches when the field equals Value.
type Equal struct {
	base
	Value any
}

// NotEqual matches when the field differs from Value.
type NotEqual struct {
	base
	Value any
}

// Between matches Min <= field <= Max.
type Between struct {
	base
	Min, Max any
}

// Greater matches field > Value.
type Greater struct {
	base
	Value any
}

// GreaterEqual matches field >= Value.
type GreaterEqual struct {
	base
	Value any
}

// Less matches field < Value.
type Less struct {
	base
	Value any
}

// LessEqual matches field <= Value.
type LessEqual struct {
	base
	Value any
}

// IsIn matches when the field equals any of Values.
type IsIn struct {
	base
	Values []any
}

// IsNull matches a missing or nil field.
type IsNull struct{ base }

// IsNotNull matches a present, non-nil field.
type IsNotNull struct{ base }

// Not negates Child.
type Not struct {
	base
	Child Predicate
}

// And matches when every child matches. An empty And matches everything.
type And struct {
	base
	Children []Predicate
}

// Or matches when any child matches. An empty Or matches nothing.
type Or struct {
	base
	Children []Predicate
}

// FreeText is a search term run against a list of text fields, or against
// every string-indexed field when Fields is empty. Only the full-text backend
// evaluates it natively.
type FreeText struct {
	base
	Term   string
	Fields []string
}

func leaf(field string) base { return base{field: field, support: SupportAll} }

// NewEqual returns field == v.
func NewEqual(field string, v any) *Equal { return &Equal{base: leaf(field), Value: v} }

// NewNotEqual returns field != v.
func NewNotEqual(field string, v any) *NotEqual { return &NotEqual{base: leaf(field), Value: v} }

// NewBetween returns lo <= field <= hi.
func NewBetween(field string, lo, hi any) *Between {
	return &Between{base: leaf(field), Min: lo, Max: hi}
}

// NewGreater returns field > v.
func NewGreater(field string, v any) *Greater { return &Greater{base: leaf(field), Value: v} }

// NewGreaterEqual returns field >= v.
func NewGreaterEqual(field string, v any) *GreaterEqual {
	return &GreaterEqual{base: leaf(field), Value: v}
}

// NewLess returns field < v.
func NewLess(field string, v any) *Less { return &Less{base: leaf(field), Value: v} }

// NewLessEqual returns field <= v.
func NewLessEqual(field string, v any) *LessEqual { return &LessEqual{base: leaf(field), Value: v} }

// NewIsIn returns field IN values.
func NewIsIn(field string, values ...any) *IsIn {
	return &IsIn{base: leaf(field), Values: append([]any(nil), values...)}
}

// NewIsNull returns field IS NULL. The full-text backend cannot index
// absence, so only criteria and result-set support are set.
func NewIsNull(field string) *IsNull {
	return &IsNull{base: base{field: field, support: SupportCriteria | SupportResultSet}}
}

// NewIsNotNull returns field IS NOT NULL.
func NewIsNotNull(field string) *IsNotNull {
	return &IsNotNull{base: base{field: field, support: SupportCriteria | SupportResultSet}}
}

// NewNot negates child and inherits its support.
func NewNot(child Predicate) *Not {
	return &Not{base: base{support: child.Support()}, Child: child}
}

// NewAnd combines children; support is the intersection of theirs.
func NewAnd(children ...Predicate) *And {
	return &And{base: base{support: intersect(children)}, Children: append([]Predicate(nil), children...)}
}

// NewOr combines children; support is the intersection of theirs.
func NewOr(children ...Predicate) *Or {
	return &Or{base: base{support: intersect(children)}, Children: append([]Predicate(nil), children...)}
}

// NewFreeText returns a free-text search predicate.
func NewFreeText(term string, fields ...string) *FreeText {
	return &FreeText{
		base:   base{support: SupportFullText},
		Term:   strings.TrimSpace(term),
		Fields: append([]string(nil), fields...),
	}
}

func intersect(children []Predicate) Support {
	s := SupportAll
	for _, c := range children {
		s &= c.Support()
	}
	return s
}

func (p Equal) withSupport(s Support) Predicate        { p.support = s; return &p }
func (p NotEqual) withSupport(s Support) Predicate     { p.support = s; return &p }
func (p Between) withSupport(s Support) Predicate      { p.support = s; return &p }
func (p Greater) withSupport(s Support) Predicate      { p.support = s; return &p }
func (p GreaterEqual) withSupport(s Support) Predicate { p.support = s; return &p }
func (p Less) withSupport(s Support) Predicate         { p.support = s; return &p }
func (p LessEqual) withSupport(s Support) Predicate    { p.support = s; return &p }
func (p IsIn) withSupport(s Support) Predicate         { p.support = s; return &p }
func (p IsNull) withSupport(s Support) Predicate       { p.support = s; return &p }
func (p IsNotNull) withSupport(s Support) Predicate    { p.support = s; return &p }
func (p Not) withSupport(s Support) Predicate          { p.support = s; return &p }
func (p And) withSupport(s Support) Predicate          { p.support = s; return &p }
func (p Or) withSupport(s Support) Predicate           { p.support = s; return &p }
func (p FreeText) withSupport(s Support) Predicate     { p.support = s; return &p }
func (p Like) withSupport(s Support) Predicate         { p.support = s; return &p }

func (p *Equal) String() string        { return fmt.Sprintf("%s = %v", p.field, p.Value) }
func (p *NotEqual) String() string     { return fmt.Sprintf("%s != %v", p.field, p.Value) }
func (p *Between) String() string      { return fmt.Sprintf("%s between %v and %v", p.field, p.Min, p.Max) }
func (p *Greater) String() string      { return fmt.Sprintf("%s > %v", p.field, p.Value) }
func (p *GreaterEqual) String() string { return fmt.Sprintf("%s >= %v", p.field, p.Value) }
func (p *Less) String() string         { return fmt.Sprintf("%s < %v", p.field, p.Value) }
func (p *LessEqual) String() string    { return fmt.Sprintf("%s <= %v", p.field, p.Value) }
func (p *IsIn) String() string         { return fmt.Sprintf("%s in %v", p.field, p.Values) }
func (p *IsNull) String() string       { return p.field + " is null" }
func (p *IsNotNull) String() string    { return p.field + " is not null" }
func (p *Not) String() string          { return "not (" + p.Child.String() + ")" }
func (p *And) String() string          { return joinChildren(p.Children, " and ") }
func (p *Or) String() string           { return joinChildren(p.Children, " or ") }

func (p *FreeText) String() string {
	if len(p.Fields) == 0 {
		return fmt.Sprintf("text %q", p.Term)
	}
	return fmt.Sprintf("text %q in %s", p.Term, strings.Join(p.Fields, ","))
}

func joinChildren(children []Predicate, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
