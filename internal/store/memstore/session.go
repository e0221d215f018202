package memstore

import (
	"context"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/store"
)

type session struct{ m *Store }

// BeginReadOnly returns a session over the live maps.
func (m *Store) BeginReadOnly(context.Context) (store.Session, error) {
	return &session{m: m}, nil
}

// Scroll evaluates preds against a snapshot and sorts the matches.
func (s *session) Scroll(_ context.Context, info *catalog.Info, preds []filter.Predicate, props []filter.SortProperty) (store.Iterator, error) {
	all, err := s.m.snapshot(info.Name)
	if err != nil {
		return nil, err
	}
	var matched []model.Entity
	for _, e := range all {
		if matchesAll(preds, e) {
			matched = append(matched, e)
		}
	}
	return &iterator{items: s.m.sorter.Sort(matched, props)}, nil
}

func (s *session) Load(_ context.Context, info *catalog.Info, ids []string) ([]model.Entity, error) {
	all, err := s.m.snapshot(info.Name)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Entity, len(all))
	for _, e := range all {
		byID[e.EntityID()] = e
	}
	out := make([]model.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *session) Close() error { return nil }

func matchesAll(preds []filter.Predicate, e model.Entity) bool {
	for _, p := range preds {
		if !filter.Matches(p, e) {
			return false
		}
	}
	return true
}

type iterator struct {
	items []model.Entity
	pos   int
}

func (it *iterator) Next(context.Context) (model.Entity, bool, error) {
	if it.pos >= len(it.items) {
		return nil, false, nil
	}
	e := it.items[it.pos]
	it.pos++
	return e, true, nil
}

func (it *iterator) Sort(page []model.Entity) []model.Entity { return page }
func (it *iterator) Close() error                            { return nil }
