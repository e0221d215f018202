package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Iterator streams the entities of one query. Close must be called on every
// exit path.
type Iterator interface {
	// Next returns the next entity; ok is false once the stream is exhausted.
	Next(ctx context.Context) (e model.Entity, ok bool, err error)
	// Sort orders a materialized page. Backends that already ordered the
	// stream return it unchanged.
	Sort(page []model.Entity) []model.Entity
	Close() error
}

// Session is a read-only unit of work scoped to one search.
type Session interface {
	// Scroll opens a forward-only cursor over the entities matching preds,
	// ordered by sort.
	Scroll(ctx context.Context, info *catalog.Info, preds []filter.Predicate, sort []filter.SortProperty) (Iterator, error)
	// Load fetches entities by identity, returning them in ids order and
	// skipping ids that no longer exist.
	Load(ctx context.Context, info *catalog.Info, ids []string) ([]model.Entity, error)
	Close() error
}

// SessionFactory opens read-only sessions.
type SessionFactory interface {
	BeginReadOnly(ctx context.Context) (Session, error)
}

// HistorySource answers structured history queries with the set of entity
// identifiers that have matching audit entries.
type HistorySource interface {
	HistoryIDs(ctx context.Context, entityType string, params filter.HistoryParams) (map[string]struct{}, error)
}

// Store defines the persistence interface for beads and their audit trail.
type Store interface {
	SessionFactory
	HistorySource

	// Bead CRUD
	CreateBead(ctx context.Context, bead *model.Bead) error
	GetBead(ctx context.Context, id string) (*model.Bead, error)
	UpdateBead(ctx context.Context, bead *model.Bead) error
	DeleteBead(ctx context.Context, id string) error

	// Labels
	SetLabels(ctx context.Context, beadID string, labels []string) error

	// Comments
	AddComment(ctx context.Context, comment *model.Comment) error
	GetComments(ctx context.Context, beadID string) ([]*model.Comment, error)

	// History
	RecordHistory(ctx context.Context, entries []*model.HistoryEntry) error
	GetHistory(ctx context.Context, entityType, entityID string) ([]*model.HistoryEntry, error)

	// Bulk reads used by index rebuilds and export.
	ListBeadIDs(ctx context.Context, includeDeleted bool) ([]string, error)
	ListHistory(ctx context.Context, afterID int64, limit int) ([]*model.HistoryEntry, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
