// Package memstore is an in-memory store.Store. Sessions evaluate pushed
// predicates in process, so it stands in for the relational backend in tests
// and local demos.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/sorting"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// Store keeps beads, comments and history in maps guarded by one mutex.
// Entities are copied on the way in and out.
type Store struct {
	mu       sync.RWMutex
	beads    map[string]*model.Bead
	comments map[string][]*model.Comment
	history  []*model.HistoryEntry

	nextComment int64
	nextHistory int64
	sorter      *sorting.Sorter
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		beads:    make(map[string]*model.Bead),
		comments: make(map[string][]*model.Comment),
		sorter:   sorting.New("en", nil),
	}
}

func (m *Store) CreateBead(_ context.Context, b *model.Bead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.beads[b.ID]; ok {
		return fmt.Errorf("bead %s already exists", b.ID)
	}
	m.beads[b.ID] = cloneBead(b)
	return nil
}

func (m *Store) GetBead(_ context.Context, id string) (*model.Bead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.beads[id]
	if !ok {
		return nil, fmt.Errorf("bead %s: %w", id, store.ErrNotFound)
	}
	return m.hydrated(b), nil
}

func (m *Store) UpdateBead(_ context.Context, b *model.Bead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.beads[b.ID]; !ok {
		return fmt.Errorf("bead %s: %w", b.ID, store.ErrNotFound)
	}
	m.beads[b.ID] = cloneBead(b)
	return nil
}

func (m *Store) DeleteBead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beads[id]
	if !ok {
		return fmt.Errorf("bead %s: %w", id, store.ErrNotFound)
	}
	b.Deleted = true
	return nil
}

func (m *Store) SetLabels(_ context.Context, beadID string, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beads[beadID]
	if !ok {
		return fmt.Errorf("bead %s: %w", beadID, store.ErrNotFound)
	}
	b.Labels = append([]string(nil), labels...)
	return nil
}

func (m *Store) AddComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.beads[c.BeadID]; !ok {
		return fmt.Errorf("bead %s: %w", c.BeadID, store.ErrNotFound)
	}
	m.nextComment++
	c.ID = m.nextComment
	cp := *c
	m.comments[c.BeadID] = append(m.comments[c.BeadID], &cp)
	return nil
}

func (m *Store) GetComments(_ context.Context, beadID string) ([]*model.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneComments(m.comments[beadID]), nil
}

func (m *Store) RecordHistory(_ context.Context, entries []*model.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, h := range entries {
		m.nextHistory++
		h.ID = m.nextHistory
		if h.CreatedAt.IsZero() {
			h.CreatedAt = now
		}
		cp := *h
		m.history = append(m.history, &cp)
	}
	return nil
}

func (m *Store) GetHistory(_ context.Context, entityType, entityID string) ([]*model.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.HistoryEntry
	for _, h := range m.history {
		if h.EntityType == entityType && h.EntityRef == entityID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Store) ListBeadIDs(_ context.Context, includeDeleted bool) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.beads))
	for id, b := range m.beads {
		if includeDeleted || !b.Deleted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Store) ListHistory(_ context.Context, afterID int64, limit int) ([]*model.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.HistoryEntry
	for _, h := range m.history {
		if h.ID <= afterID {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *h
		out = append(out, &cp)
	}
	return out, nil
}

// HistoryIDs matches actor and time window; the text term is ignored like the
// relational backend does.
func (m *Store) HistoryIDs(_ context.Context, entityType string, params filter.HistoryParams) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make(map[string]struct{})
	for _, h := range m.history {
		if h.EntityType != entityType {
			continue
		}
		if params.User != "" && h.Actor != params.User {
			continue
		}
		if params.From != nil && h.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && h.CreatedAt.After(*params.To) {
			continue
		}
		ids[h.EntityRef] = struct{}{}
	}
	return ids, nil
}

// RunInTransaction runs fn against the store itself; changes are not rolled
// back on error.
func (m *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *Store) Close() error { return nil }

// hydrated returns a copy of b with its comments attached. Callers hold mu.
func (m *Store) hydrated(b *model.Bead) *model.Bead {
	cp := cloneBead(b)
	cp.Comments = cloneComments(m.comments[b.ID])
	return cp
}

// snapshot returns copies of every entity of entityType.
func (m *Store) snapshot(entityType string) ([]model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Entity
	switch entityType {
	case model.EntityBead:
		ids := make([]string, 0, len(m.beads))
		for id := range m.beads {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, m.hydrated(m.beads[id]))
		}
	case model.EntityHistory:
		for _, h := range m.history {
			cp := *h
			out = append(out, &cp)
		}
	default:
		return nil, fmt.Errorf("memstore does not hold %q", entityType)
	}
	return out, nil
}

func cloneBead(b *model.Bead) *model.Bead {
	cp := *b
	cp.Labels = append([]string(nil), b.Labels...)
	cp.Comments = nil
	if b.Parent != nil {
		p := *b.Parent
		cp.Parent = &p
	}
	return &cp
}

func cloneComments(in []*model.Comment) []*model.Comment {
	if len(in) == 0 {
		return nil
	}
	out := make([]*model.Comment, len(in))
	for i, c := range in {
		cp := *c
		out[i] = &cp
	}
	return out
}
