package filter

import (
	"fmt"
	"strings"
	"time"
)

// SortProperty orders results by a dotted path.
type SortProperty struct {
	Path       string `json:"field" yaml:"field"`
	Descending bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Asc sorts by path ascending.
func Asc(path string) SortProperty { return SortProperty{Path: path} }

// Desc sorts by path descending.
func Desc(path string) SortProperty { return SortProperty{Path: path, Descending: true} }

func (s SortProperty) String() string {
	if s.Descending {
		return s.Path + " desc"
	}
	return s.Path + " asc"
}

// HistoryParams restricts results to entities with matching audit entries.
type HistoryParams struct {
	User string     `json:"user,omitempty" yaml:"user,omitempty"`
	From *time.Time `json:"from,omitempty" yaml:"from,omitempty"`
	To   *time.Time `json:"to,omitempty" yaml:"to,omitempty"`
	Text string     `json:"text,omitempty" yaml:"text,omitempty"`
}

// Active reports whether any history constraint is set.
func (h *HistoryParams) Active() bool {
	return h != nil && (h.User != "" || h.From != nil || h.To != nil || strings.TrimSpace(h.Text) != "")
}

func (h *HistoryParams) String() string {
	if !h.Active() {
		return "none"
	}
	var parts []string
	if h.User != "" {
		parts = append(parts, "user="+h.User)
	}
	if h.From != nil {
		parts = append(parts, "from="+h.From.Format(time.RFC3339))
	}
	if h.To != nil {
		parts = append(parts, "to="+h.To.Format(time.RFC3339))
	}
	if h.Text != "" {
		parts = append(parts, fmt.Sprintf("text=%q", h.Text))
	}
	return strings.Join(parts, " ")
}

// Filter is the planner's unit of input: predicates, sort order and paging
// caps. Build it with New and Add/AddSort, then treat it as read-only.
type Filter struct {
	predicates []Predicate
	sort       []SortProperty
	deleteFlag Predicate

	// MaxRows caps the page. Zero or negative means no cap.
	MaxRows int
	// LimitResultSize is a second cap; the smaller positive cap wins.
	LimitResultSize int
	// History, when active, restricts results to entities with matching
	// audit entries.
	History *HistoryParams
}

// New returns an empty filter.
func New() *Filter { return &Filter{} }

// Add appends a predicate.
func (f *Filter) Add(p Predicate) *Filter {
	if p != nil {
		f.predicates = append(f.predicates, p)
	}
	return f
}

// AddSort appends a sort property.
func (f *Filter) AddSort(s SortProperty) *Filter {
	f.sort = append(f.sort, s)
	return f
}

// SetDeleteFlag sets the predicate that hides soft-deleted rows.
func (f *Filter) SetDeleteFlag(p Predicate) *Filter {
	f.deleteFlag = p
	return f
}

// DeleteFlag returns the soft-delete predicate, or nil.
func (f *Filter) DeleteFlag() Predicate { return f.deleteFlag }

// Predicates returns the user predicates followed by the delete flag.
func (f *Filter) Predicates() []Predicate {
	out := make([]Predicate, 0, len(f.predicates)+1)
	out = append(out, f.predicates...)
	if f.deleteFlag != nil {
		out = append(out, f.deleteFlag)
	}
	return out
}

// Sort returns the sort properties in order.
func (f *Filter) Sort() []SortProperty {
	return append([]SortProperty(nil), f.sort...)
}

// WithSort returns a shallow copy of f using the given sort properties.
func (f *Filter) WithSort(props []SortProperty) *Filter {
	cp := *f
	cp.sort = append([]SortProperty(nil), props...)
	return &cp
}

// Limit returns min(MaxRows, LimitResultSize) over the positive caps, or 0
// when neither is set.
func (f *Filter) Limit() int {
	switch {
	case f.MaxRows > 0 && f.LimitResultSize > 0:
		return min(f.MaxRows, f.LimitResultSize)
	case f.MaxRows > 0:
		return f.MaxRows
	case f.LimitResultSize > 0:
		return f.LimitResultSize
	}
	return 0
}

// String describes the filter for logs.
func (f *Filter) String() string {
	var b strings.Builder
	b.WriteString("where [")
	for i, p := range f.Predicates() {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.String())
	}
	b.WriteString("] order [")
	for i, s := range f.sort {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.String())
	}
	fmt.Fprintf(&b, "] limit %d", f.Limit())
	if f.History.Active() {
		b.WriteString(" history {" + f.History.String() + "}")
	}
	return b.String()
}
