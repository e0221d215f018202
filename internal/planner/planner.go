// Package planner decides which backend runs a filter and partitions its
// predicates into pushed, post-filtered and dropped sets.
package planner

import (
	"log/slog"

	"github.com/alfredjeanlab/kquery/internal/filter"
)

// MaxSortKeys is the number of sort properties honored; later ones are
// ignored.
const MaxSortKeys = 3

// Mode is the backend chosen for a query.
type Mode int

const (
	Relational Mode = iota
	FullText
)

func (m Mode) String() string {
	if m == FullText {
		return "FULLTEXT"
	}
	return "RELATIONAL"
}

// Inspector reports full-text indexing per entity field.
type Inspector interface {
	IsIndexed(entityType, path string) bool
}

// Plan is the outcome of planning one filter. Every filter predicate lands in
// exactly one of Pushed, PostFilter or Dropped.
type Plan struct {
	Mode       Mode
	Pushed     []filter.Predicate
	PostFilter []filter.Predicate
	Dropped    []filter.Predicate
	Sort       []filter.SortProperty
}

// Planner partitions filters. It never fails: predicates no stage can run
// are logged and dropped.
type Planner struct {
	inspector Inspector
	logger    *slog.Logger
}

// New creates a planner.
func New(inspector Inspector, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{inspector: inspector, logger: logger}
}

// SelectMode returns FullText when some predicate can be evaluated by
// neither the relational backend nor the post-filter.
func SelectMode(preds []filter.Predicate) Mode {
	for _, p := range preds {
		s := p.Support()
		if !s.Has(filter.SupportResultSet) && !s.Has(filter.SupportCriteria) {
			return FullText
		}
	}
	return Relational
}

// Plan chooses the mode and partitions f's predicates for entityType.
func (p *Planner) Plan(entityType string, f *filter.Filter) *Plan {
	preds := f.Predicates()
	plan := &Plan{Mode: SelectMode(preds)}

	for _, pred := range preds {
		s := pred.Support()
		switch {
		case plan.Mode == FullText && s.Has(filter.SupportFullText) && p.indexed(entityType, pred):
			plan.Pushed = append(plan.Pushed, pred)
		case plan.Mode == Relational && s.Has(filter.SupportCriteria):
			plan.Pushed = append(plan.Pushed, pred)
		case s.Has(filter.SupportResultSet):
			plan.PostFilter = append(plan.PostFilter, pred)
		default:
			p.logger.Error("predicate supports neither mode, dropping",
				"entity", entityType, "mode", plan.Mode, "predicate", pred.String(), "support", s)
			plan.Dropped = append(plan.Dropped, pred)
		}
	}

	plan.Sort = f.Sort()
	if len(plan.Sort) > MaxSortKeys {
		plan.Sort = plan.Sort[:MaxSortKeys]
	}
	return plan
}

// indexed reports whether every field the predicate touches is indexed. A
// free-text predicate without explicit fields searches the indexed text
// fields and always qualifies.
func (p *Planner) indexed(entityType string, pred filter.Predicate) bool {
	for _, f := range filter.Fields(pred) {
		if !p.inspector.IsIndexed(entityType, f) {
			return false
		}
	}
	return true
}
