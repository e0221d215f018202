// Package search runs filters against the relational or full-text backend
// and assembles access-checked, deduplicated, sorted result pages.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/alfredjeanlab/kquery/internal/access"
	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/fulltext"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/planner"
	"github.com/alfredjeanlab/kquery/internal/sorting"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// DefaultSlowQuery is the wall time above which a search is logged.
const DefaultSlowQuery = 2 * time.Second

// ResultFilter is a caller-supplied row filter applied after the post-filter.
type ResultFilter func(ctx context.Context, e model.Entity) bool

// FullText is the full-text backend.
type FullText interface {
	Scroll(info *catalog.Info, preds []filter.Predicate, loader fulltext.Loader, sorter *sorting.Sorter, sort []filter.SortProperty) (store.Iterator, error)
	store.HistorySource
}

// Searcher executes searches. It holds no per-query state and is safe for
// concurrent use.
type Searcher struct {
	catalog  *catalog.Catalog
	planner  *planner.Planner
	sessions store.SessionFactory
	history  store.HistorySource
	fulltext FullText
	sorter   *sorting.Sorter
	logger   *slog.Logger
	slow     time.Duration
	metrics  gometrics.Registry
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Searcher) { s.logger = l } }

// WithSlowQuery sets the slow-query threshold.
func WithSlowQuery(d time.Duration) Option { return func(s *Searcher) { s.slow = d } }

// WithSorter sets the page sorter used for full-text results.
func WithSorter(srt *sorting.Sorter) Option { return func(s *Searcher) { s.sorter = srt } }

// WithMetrics sets the registry query timers are recorded in.
func WithMetrics(r gometrics.Registry) Option { return func(s *Searcher) { s.metrics = r } }

// New creates a Searcher. rel serves relational sessions and structured
// history lookups; ft serves full-text queries and text history lookups.
func New(cat *catalog.Catalog, rel interface {
	store.SessionFactory
	store.HistorySource
}, ft FullText, opts ...Option) *Searcher {
	s := &Searcher{
		catalog:  cat,
		sessions: rel,
		history:  rel,
		fulltext: ft,
		logger:   slog.Default(),
		slow:     DefaultSlowQuery,
	}
	for _, o := range opts {
		o(s)
	}
	if s.sorter == nil {
		s.sorter = sorting.New("en", s.logger)
	}
	if s.metrics == nil {
		s.metrics = gometrics.NewRegistry()
	}
	s.planner = planner.New(cat, s.logger)
	return s
}

// Metrics returns the registry holding per-mode query timers.
func (s *Searcher) Metrics() gometrics.Registry { return s.metrics }

// Select builds a filter from req and runs it. Any failure yields an empty
// page; details are logged.
func (s *Searcher) Select(ctx context.Context, entityType string, req *filter.Request, custom []ResultFilter, checker access.Checker) []model.Entity {
	if req == nil {
		req = &filter.Request{}
	}
	info, err := s.catalog.Lookup(entityType)
	if err != nil {
		s.logger.Error("search on unknown entity type", "entity", entityType, "err", err)
		return []model.Entity{}
	}
	f, err := req.Build(info.DeleteFlag)
	if err != nil {
		s.logger.Error("invalid search request", "entity", entityType, "err", err)
		return []model.Entity{}
	}
	return s.SelectFilter(ctx, entityType, f, custom, checker)
}

// Validate reports whether req builds into a filter for entityType.
func (s *Searcher) Validate(entityType string, req *filter.Request) error {
	info, err := s.catalog.Lookup(entityType)
	if err != nil {
		return err
	}
	_, err = req.Build(info.DeleteFlag)
	return err
}

// SelectFilter runs f. It never fails: errors and panics are logged with the
// filter description and produce an empty page.
func (s *Searcher) SelectFilter(ctx context.Context, entityType string, f *filter.Filter, custom []ResultFilter, checker access.Checker) (page []model.Entity) {
	log := s.logger.With("query_id", uuid.NewString(), "entity", entityType)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("search panicked", "filter", f.String(), "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			gometrics.GetOrRegisterCounter("search.errors", s.metrics).Inc(1)
			page = []model.Entity{}
		}
	}()

	page, mode, err := s.run(ctx, log, entityType, f, custom, checker)
	if err != nil {
		log.Error("search failed", "filter", f.String(), "err", err)
		gometrics.GetOrRegisterCounter("search.errors", s.metrics).Inc(1)
		return []model.Entity{}
	}

	took := time.Since(start)
	gometrics.GetOrRegisterTimer("search."+strings.ToLower(mode.String()), s.metrics).Update(took)
	gometrics.GetOrRegisterHistogram("search.rows", s.metrics, gometrics.NewUniformSample(1028)).Update(int64(len(page)))
	if s.slow > 0 && took > s.slow {
		log.Info("slow search", "filter", f.String(), "mode", mode, "rows", len(page), "took", took)
	}
	return page
}

func (s *Searcher) run(ctx context.Context, log *slog.Logger, entityType string, f *filter.Filter, custom []ResultFilter, checker access.Checker) ([]model.Entity, planner.Mode, error) {
	if !checker.CanSelect(ctx, entityType) {
		log.Debug("select access denied")
		return []model.Entity{}, planner.Relational, nil
	}
	info, err := s.catalog.Lookup(entityType)
	if err != nil {
		return nil, planner.Relational, err
	}
	if len(f.Sort()) == 0 {
		f = f.WithSort(info.DefaultSort)
	}
	plan := s.planner.Plan(entityType, f)
	if len(plan.Dropped) > 0 {
		gometrics.GetOrRegisterCounter("search.dropped_predicates", s.metrics).Inc(int64(len(plan.Dropped)))
	}
	log.Debug("planned search", "mode", plan.Mode, "pushed", len(plan.Pushed), "post_filter", len(plan.PostFilter), "dropped", len(plan.Dropped))

	sess, err := s.sessions.BeginReadOnly(ctx)
	if err != nil {
		return nil, plan.Mode, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("closing search session", "err", err)
		}
	}()

	var it store.Iterator
	switch plan.Mode {
	case planner.FullText:
		if s.fulltext == nil {
			return nil, plan.Mode, fmt.Errorf("full-text backend not configured")
		}
		it, err = s.fulltext.Scroll(info, plan.Pushed, sess, s.sorter, plan.Sort)
	default:
		it, err = sess.Scroll(ctx, info, plan.Pushed, plan.Sort)
	}
	if err != nil {
		return nil, plan.Mode, fmt.Errorf("open %s iterator: %w", plan.Mode, err)
	}
	defer func() {
		if err := it.Close(); err != nil {
			log.Warn("closing iterator", "err", err)
		}
	}()

	members, err := s.historyMembers(ctx, entityType, f.History)
	if err != nil {
		return nil, plan.Mode, err
	}

	page, err := collect(ctx, it, f.Limit(), func(e model.Entity) bool {
		if !checker.CanRead(ctx, e) {
			return false
		}
		if members != nil {
			if _, ok := members[e.EntityID()]; !ok {
				return false
			}
		}
		for _, p := range plan.PostFilter {
			if !filter.Matches(p, e) {
				return false
			}
		}
		for _, cf := range custom {
			if !cf(ctx, e) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, plan.Mode, err
	}
	return it.Sort(page), plan.Mode, nil
}

// collect drains it, keeping the first occurrence of each identity that keep
// accepts, until limit rows are gathered. A non-positive limit is unbounded.
func collect(ctx context.Context, it store.Iterator, limit int, keep func(model.Entity) bool) ([]model.Entity, error) {
	page := []model.Entity{}
	seen := make(map[string]struct{})
	for limit <= 0 || len(page) < limit {
		e, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		id := e.EntityID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if keep(e) {
			page = append(page, e)
		}
	}
	return page, nil
}
