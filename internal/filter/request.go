package filter

import (
	"fmt"
	"strings"
)

// Condition is the wire form of one predicate.
type Condition struct {
	Op           string      `json:"op" yaml:"op"`
	Field        string      `json:"field,omitempty" yaml:"field,omitempty"`
	Value        any         `json:"value,omitempty" yaml:"value,omitempty"`
	Values       []any       `json:"values,omitempty" yaml:"values,omitempty"`
	Min          any         `json:"min,omitempty" yaml:"min,omitempty"`
	Max          any         `json:"max,omitempty" yaml:"max,omitempty"`
	Children     []Condition `json:"children,omitempty" yaml:"children,omitempty"`
	Fields       []string    `json:"fields,omitempty" yaml:"fields,omitempty"`
	AutoWildcard bool        `json:"auto_wildcard,omitempty" yaml:"auto_wildcard,omitempty"`
	// Support overrides the default capability flags.
	Support []string `json:"support,omitempty" yaml:"support,omitempty"`
}

// Request is the wire form of a filter, accepted over HTTP, gRPC and in
// export job files.
type Request struct {
	Where           []Condition    `json:"where,omitempty" yaml:"where,omitempty"`
	Sort            []SortProperty `json:"sort,omitempty" yaml:"sort,omitempty"`
	MaxRows         int            `json:"max_rows,omitempty" yaml:"max_rows,omitempty"`
	LimitResultSize int            `json:"limit_result_size,omitempty" yaml:"limit_result_size,omitempty"`
	History         *HistoryParams `json:"history,omitempty" yaml:"history,omitempty"`
	IncludeDeleted  bool           `json:"include_deleted,omitempty" yaml:"include_deleted,omitempty"`
}

// Build converts the request into a Filter. When deleteField is non-empty
// and the request does not include deleted rows, the filter carries
// deleteField = false as its delete flag.
func (r *Request) Build(deleteField string) (*Filter, error) {
	f := New()
	for i, c := range r.Where {
		p, err := c.Predicate()
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		f.Add(p)
	}
	for i, s := range r.Sort {
		if strings.TrimSpace(s.Path) == "" {
			return nil, fmt.Errorf("%w: sort %d: field is required", ErrInvalid, i)
		}
		f.AddSort(s)
	}
	f.MaxRows = r.MaxRows
	f.LimitResultSize = r.LimitResultSize
	if r.History.Active() {
		h := *r.History
		f.History = &h
	}
	if deleteField != "" && !r.IncludeDeleted {
		f.SetDeleteFlag(NewEqual(deleteField, false))
	}
	return f, nil
}

// Predicate converts the condition into a predicate.
func (c Condition) Predicate() (Predicate, error) {
	op := strings.ToLower(strings.TrimSpace(c.Op))
	if op != "and" && op != "or" && op != "not" && op != "text" && c.Field == "" {
		return nil, fmt.Errorf("%w: op %q requires a field", ErrInvalid, c.Op)
	}

	var p Predicate
	switch op {
	case "eq", "=", "equal":
		p = NewEqual(c.Field, c.Value)
	case "ne", "!=", "not_equal":
		p = NewNotEqual(c.Field, c.Value)
	case "gt", ">":
		p = NewGreater(c.Field, c.Value)
	case "gte", ">=":
		p = NewGreaterEqual(c.Field, c.Value)
	case "lt", "<":
		p = NewLess(c.Field, c.Value)
	case "lte", "<=":
		p = NewLessEqual(c.Field, c.Value)
	case "between":
		if c.Min == nil || c.Max == nil {
			return nil, fmt.Errorf("%w: between requires min and max", ErrInvalid)
		}
		p = NewBetween(c.Field, c.Min, c.Max)
	case "like":
		s, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: like requires a string value", ErrInvalid)
		}
		p = NewLike(c.Field, s, c.AutoWildcard)
	case "in":
		p = NewIsIn(c.Field, c.Values...)
	case "null", "is_null":
		p = NewIsNull(c.Field)
	case "not_null", "is_not_null":
		p = NewIsNotNull(c.Field)
	case "not":
		if len(c.Children) != 1 {
			return nil, fmt.Errorf("%w: not requires exactly one child", ErrInvalid)
		}
		child, err := c.Children[0].Predicate()
		if err != nil {
			return nil, err
		}
		p = NewNot(child)
	case "and", "or":
		children := make([]Predicate, 0, len(c.Children))
		for _, cc := range c.Children {
			child, err := cc.Predicate()
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if op == "and" {
			p = NewAnd(children...)
		} else {
			p = NewOr(children...)
		}
	case "text":
		s, _ := c.Value.(string)
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: text requires a search term", ErrInvalid)
		}
		p = NewFreeText(s, c.Fields...)
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalid, c.Op)
	}

	if len(c.Support) > 0 {
		s, err := ParseSupport(c.Support)
		if err != nil {
			return nil, err
		}
		p = WithSupport(p, s)
	}
	return p, nil
}
