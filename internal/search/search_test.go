package search

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/kquery/internal/access"
	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/fulltext"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// memIter streams a fixed slice.
type memIter struct {
	items   []model.Entity
	pos     int
	nexts   int
	panicAt int
	closed  bool
}

func (it *memIter) Next(context.Context) (model.Entity, bool, error) {
	it.nexts++
	if it.panicAt > 0 && it.nexts == it.panicAt {
		panic("boom")
	}
	if it.pos >= len(it.items) {
		return nil, false, nil
	}
	e := it.items[it.pos]
	it.pos++
	return e, true, nil
}

func (it *memIter) Sort(page []model.Entity) []model.Entity { return page }
func (it *memIter) Close() error                            { it.closed = true; return nil }

// memBackend is an in-memory relational backend. Scroll returns its rows
// verbatim (duplicates included) after applying the pushed predicates.
type memBackend struct {
	rows    []model.Entity
	iter    *memIter
	pushed  []filter.Predicate
	sort    []filter.SortProperty
	history map[string]struct{}

	beginErr     error
	historyCalls int
	closed       int
	panicAt      int
}

func (b *memBackend) BeginReadOnly(context.Context) (store.Session, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return &memSession{b: b}, nil
}

func (b *memBackend) HistoryIDs(context.Context, string, filter.HistoryParams) (map[string]struct{}, error) {
	b.historyCalls++
	return b.history, nil
}

type memSession struct{ b *memBackend }

func (s *memSession) Scroll(_ context.Context, _ *catalog.Info, preds []filter.Predicate, sort []filter.SortProperty) (store.Iterator, error) {
	s.b.pushed, s.b.sort = preds, sort
	var out []model.Entity
	for _, e := range s.b.rows {
		ok := true
		for _, p := range preds {
			if !filter.Matches(p, e) {
				ok = false
			}
		}
		if ok {
			out = append(out, e)
		}
	}
	s.b.iter = &memIter{items: out, panicAt: s.b.panicAt}
	return s.b.iter, nil
}

func (s *memSession) Load(_ context.Context, _ *catalog.Info, ids []string) ([]model.Entity, error) {
	byID := map[string]model.Entity{}
	for _, e := range s.b.rows {
		byID[e.EntityID()] = e
	}
	var out []model.Entity
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memSession) Close() error { s.b.closed++; return nil }

func bead(id, title, owner string, prio int) *model.Bead {
	return &model.Bead{ID: id, Title: title, Owner: owner, Priority: prio, Status: model.StatusOpen}
}

func newSearcher(t *testing.T, b *memBackend, ft FullText, opts ...Option) (*Searcher, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(catalog.Default(), b, ft, opts...), &logs
}

func ids(page []model.Entity) string {
	out := make([]string, len(page))
	for i, e := range page {
		out[i] = e.EntityID()
	}
	return strings.Join(out, ",")
}

func TestSelect_DedupAndLimit(t *testing.T) {
	a, b2, c := bead("a", "A", "", 1), bead("b", "B", "", 1), bead("c", "C", "", 1)
	backend := &memBackend{rows: []model.Entity{a, a, b2, a, c, b2}}
	s, _ := newSearcher(t, backend, nil)

	for _, tc := range []struct {
		name     string
		maxRows  int
		limit    int
		want     string
		wantNext int
	}{
		{"unbounded", 0, 0, "a,b,c", 7},
		{"max rows", 2, 0, "a,b", 3},
		{"smaller cap wins", 5, 1, "a", 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := &filter.Request{MaxRows: tc.maxRows, LimitResultSize: tc.limit}
			page := s.Select(context.Background(), model.EntityBead, req, nil, access.AllowAll{})
			if got := ids(page); got != tc.want {
				t.Errorf("page = %s, want %s", got, tc.want)
			}
			if backend.iter.nexts != tc.wantNext {
				t.Errorf("Next called %d times, want %d", backend.iter.nexts, tc.wantNext)
			}
			if !backend.iter.closed {
				t.Error("iterator not closed")
			}
		})
	}
	if backend.closed != 3 {
		t.Errorf("sessions closed %d times, want 3", backend.closed)
	}
}

func TestSelect_DefaultSortAndDeleteFlag(t *testing.T) {
	backend := &memBackend{rows: []model.Entity{bead("a", "A", "", 1)}}
	s, _ := newSearcher(t, backend, nil)

	s.Select(context.Background(), model.EntityBead, &filter.Request{}, nil, access.AllowAll{})
	if len(backend.sort) != 2 || backend.sort[0] != filter.Desc("updated_at") {
		t.Errorf("sort = %v, want default bead sort", backend.sort)
	}
	if len(backend.pushed) != 1 || backend.pushed[0].Field() != "deleted" {
		t.Errorf("pushed = %v, want delete flag", backend.pushed)
	}

	req := &filter.Request{Sort: []filter.SortProperty{filter.Asc("title")}, IncludeDeleted: true}
	s.Select(context.Background(), model.EntityBead, req, nil, access.AllowAll{})
	if len(backend.sort) != 1 || backend.sort[0] != filter.Asc("title") {
		t.Errorf("sort = %v, want request sort", backend.sort)
	}
	if len(backend.pushed) != 0 {
		t.Errorf("pushed = %v, want none", backend.pushed)
	}
}

func TestSelect_Access(t *testing.T) {
	backend := &memBackend{rows: []model.Entity{
		bead("a", "A", "alice", 1), bead("b", "B", "bob", 1), bead("c", "C", "", 1),
	}}
	s, _ := newSearcher(t, backend, nil)

	for _, tc := range []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"no principal", context.Background(), ""},
		{"restricted", access.WithPrincipal(context.Background(), access.Principal{User: "alice", Roles: []string{access.RoleRestricted}}), ""},
		{"alice", access.WithPrincipal(context.Background(), access.Principal{User: "alice"}), "a,c"},
		{"admin", access.WithPrincipal(context.Background(), access.Principal{User: "x", Roles: []string{access.RoleAdmin}}), "a,b,c"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			page := s.Select(tc.ctx, model.EntityBead, &filter.Request{}, nil, access.Policy{})
			if page == nil {
				t.Fatal("page is nil, want empty slice")
			}
			if got := ids(page); got != tc.want {
				t.Errorf("page = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSelect_PostAndCustomFilters(t *testing.T) {
	backend := &memBackend{rows: []model.Entity{
		bead("a", "Login bug", "", 1), bead("b", "Logout", "", 2), bead("c", "Login page", "", 3),
	}}
	s, _ := newSearcher(t, backend, nil)

	f := filter.New().
		Add(filter.WithSupport(filter.NewLike("title", "login*", false), filter.SupportResultSet)).
		Add(filter.NewGreater("priority", 0))
	notC := func(_ context.Context, e model.Entity) bool { return e.EntityID() != "c" }

	page := s.SelectFilter(context.Background(), model.EntityBead, f, []ResultFilter{notC}, access.AllowAll{})
	if got := ids(page); got != "a" {
		t.Errorf("page = %s, want a", got)
	}
	if len(backend.pushed) != 1 {
		t.Errorf("pushed %d predicates, want 1", len(backend.pushed))
	}
}

func TestSelect_HistoryRouting(t *testing.T) {
	rows := []model.Entity{bead("kd-1", "One", "", 1), bead("kd-2", "Two", "", 1)}
	backend := &memBackend{rows: rows, history: map[string]struct{}{"kd-2": {}}}

	ft, err := fulltext.Open(catalog.Default(), "", nil)
	if err != nil {
		t.Fatalf("fulltext.Open: %v", err)
	}
	defer ft.Close()
	if err := ft.Put(model.EntityHistory, &model.HistoryEntry{
		ID: 1, EntityType: model.EntityBead, EntityRef: "kd-1", Field: "title", OldValue: "Uno", Actor: "alice", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s, _ := newSearcher(t, backend, ft)

	page := s.Select(context.Background(), model.EntityBead, &filter.Request{History: &filter.HistoryParams{User: "alice"}}, nil, access.AllowAll{})
	if got := ids(page); got != "kd-2" {
		t.Errorf("relational history page = %s, want kd-2", got)
	}
	if backend.historyCalls != 1 {
		t.Errorf("relational history calls = %d, want 1", backend.historyCalls)
	}

	page = s.Select(context.Background(), model.EntityBead, &filter.Request{History: &filter.HistoryParams{User: "alice", Text: "uno"}}, nil, access.AllowAll{})
	if got := ids(page); got != "kd-1" {
		t.Errorf("full-text history page = %s, want kd-1", got)
	}
	if backend.historyCalls != 1 {
		t.Errorf("relational history ran for a text query")
	}
}

func TestSelect_FullTextMode(t *testing.T) {
	rows := []model.Entity{
		bead("kd-1", "Fix login bug", "", 3),
		bead("kd-2", "Release notes", "", 1),
		bead("kd-3", "Login page", "", 1),
	}
	ft, err := fulltext.Open(catalog.Default(), "", nil)
	if err != nil {
		t.Fatalf("fulltext.Open: %v", err)
	}
	defer ft.Close()
	for _, e := range rows {
		if err := ft.Put(model.EntityBead, e); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	backend := &memBackend{rows: rows}
	s, _ := newSearcher(t, backend, ft)

	req := &filter.Request{
		Where: []filter.Condition{
			{Op: "text", Value: "login"},
			{Op: "is_null", Field: "closed_at"},
		},
		Sort: []filter.SortProperty{filter.Asc("priority"), filter.Asc("id")},
	}
	page := s.Select(context.Background(), model.EntityBead, req, nil, access.AllowAll{})
	if got := ids(page); got != "kd-3,kd-1" {
		t.Errorf("page = %s, want kd-3,kd-1", got)
	}
	if backend.pushed != nil {
		t.Error("relational scroll ran in full-text mode")
	}
}

func TestSelect_FullTextSortHonorsThreeKeys(t *testing.T) {
	// Identical text scores equally, so hits arrive in id order. kd-1..kd-3
	// tie on the first three keys; the fourth (id desc) and fifth (slug asc)
	// would reverse them if applied.
	rows := []model.Entity{
		&model.Bead{ID: "kd-1", Title: "login task", Slug: "c", Priority: 2, Status: model.StatusOpen, Type: model.TypeTask},
		&model.Bead{ID: "kd-2", Title: "login task", Slug: "b", Priority: 2, Status: model.StatusOpen, Type: model.TypeTask},
		&model.Bead{ID: "kd-3", Title: "login task", Slug: "a", Priority: 2, Status: model.StatusOpen, Type: model.TypeTask},
		&model.Bead{ID: "kd-4", Title: "login task", Slug: "d", Priority: 1, Status: model.StatusOpen, Type: model.TypeTask},
	}
	ft, err := fulltext.Open(catalog.Default(), "", nil)
	if err != nil {
		t.Fatalf("fulltext.Open: %v", err)
	}
	defer ft.Close()
	for _, e := range rows {
		if err := ft.Put(model.EntityBead, e); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	backend := &memBackend{rows: rows}
	s, _ := newSearcher(t, backend, ft)

	req := &filter.Request{
		Where: []filter.Condition{{Op: "text", Value: "login"}},
		Sort: []filter.SortProperty{
			filter.Asc("priority"),
			filter.Asc("status"),
			filter.Asc("type"),
			filter.Desc("id"),
			filter.Asc("slug"),
		},
	}
	page := s.Select(context.Background(), model.EntityBead, req, nil, access.AllowAll{})
	if got := ids(page); got != "kd-4,kd-1,kd-2,kd-3" {
		t.Errorf("page = %s, want kd-4,kd-1,kd-2,kd-3", got)
	}
	if backend.pushed != nil {
		t.Error("relational scroll ran in full-text mode")
	}
}

func TestSelect_FailureContainment(t *testing.T) {
	t.Run("session error", func(t *testing.T) {
		backend := &memBackend{beginErr: errors.New("db down")}
		s, logs := newSearcher(t, backend, nil)
		page := s.Select(context.Background(), model.EntityBead, &filter.Request{}, nil, access.AllowAll{})
		if page == nil || len(page) != 0 {
			t.Errorf("page = %v, want empty", page)
		}
		if !strings.Contains(logs.String(), "db down") || !strings.Contains(logs.String(), "query_id=") {
			t.Errorf("failure not logged: %s", logs.String())
		}
	})
	t.Run("panic", func(t *testing.T) {
		backend := &memBackend{rows: []model.Entity{bead("a", "A", "", 1)}, panicAt: 1}
		s, logs := newSearcher(t, backend, nil)
		page := s.Select(context.Background(), model.EntityBead, &filter.Request{}, nil, access.AllowAll{})
		if page == nil || len(page) != 0 {
			t.Errorf("page = %v, want empty", page)
		}
		if !strings.Contains(logs.String(), "search panicked") {
			t.Errorf("panic not logged: %s", logs.String())
		}
		if !backend.iter.closed || backend.closed != 1 {
			t.Error("resources not released after panic")
		}
	})
	t.Run("bad request", func(t *testing.T) {
		s, _ := newSearcher(t, &memBackend{}, nil)
		req := &filter.Request{Where: []filter.Condition{{Op: "bogus", Field: "x"}}}
		if page := s.Select(context.Background(), model.EntityBead, req, nil, access.AllowAll{}); len(page) != 0 {
			t.Errorf("page = %v, want empty", page)
		}
		if err := s.Validate(model.EntityBead, req); !errors.Is(err, filter.ErrInvalid) {
			t.Errorf("Validate err = %v, want ErrInvalid", err)
		}
	})
	t.Run("full text without backend", func(t *testing.T) {
		s, _ := newSearcher(t, &memBackend{}, nil)
		req := &filter.Request{Where: []filter.Condition{{Op: "text", Value: "x"}}}
		if page := s.Select(context.Background(), model.EntityBead, req, nil, access.AllowAll{}); len(page) != 0 {
			t.Errorf("page = %v, want empty", page)
		}
	})
}

func TestSelect_SlowQueryLogAndMetrics(t *testing.T) {
	backend := &memBackend{rows: []model.Entity{bead("a", "A", "", 1)}}
	s, logs := newSearcher(t, backend, nil, WithSlowQuery(time.Nanosecond))
	s.Select(context.Background(), model.EntityBead, &filter.Request{}, nil, access.AllowAll{})
	if !strings.Contains(logs.String(), "slow search") {
		t.Errorf("slow search not logged: %s", logs.String())
	}
	if s.Metrics().Get("search.relational") == nil {
		t.Error("relational timer not registered")
	}
}
