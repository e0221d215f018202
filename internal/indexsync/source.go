package indexsync

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// PageSize is the number of entities a Source yields per call.
const PageSize = 500

// Source returns a paging function over every stored entity of entityType,
// suitable for fulltext.Indexes.Rebuild. Soft-deleted beads are included so
// the index carries their delete flag.
func Source(st store.Store, cat *catalog.Catalog, entityType string) (func(ctx context.Context) ([]model.Entity, error), error) {
	info, err := cat.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	switch entityType {
	case model.EntityBead:
		return beadSource(st, info), nil
	case model.EntityHistory:
		return historySource(st), nil
	}
	return nil, fmt.Errorf("no rebuild source for %q", entityType)
}

func beadSource(st store.Store, info *catalog.Info) func(ctx context.Context) ([]model.Entity, error) {
	var (
		ids    []string
		loaded bool
	)
	return func(ctx context.Context) ([]model.Entity, error) {
		if !loaded {
			all, err := st.ListBeadIDs(ctx, true)
			if err != nil {
				return nil, fmt.Errorf("list bead ids: %w", err)
			}
			ids, loaded = all, true
		}
		sess, err := st.BeginReadOnly(ctx)
		if err != nil {
			return nil, err
		}
		defer func() { _ = sess.Close() }()

		// A chunk whose beads all vanished must not end the rebuild early.
		for len(ids) > 0 {
			n := min(PageSize, len(ids))
			chunk := ids[:n]
			ids = ids[n:]
			out, err := sess.Load(ctx, info, chunk)
			if err != nil {
				return nil, fmt.Errorf("load beads: %w", err)
			}
			if len(out) > 0 {
				return out, nil
			}
		}
		return nil, nil
	}
}

func historySource(st store.Store) func(ctx context.Context) ([]model.Entity, error) {
	var after int64
	return func(ctx context.Context) ([]model.Entity, error) {
		entries, err := st.ListHistory(ctx, after, PageSize)
		if err != nil {
			return nil, fmt.Errorf("list history after %d: %w", after, err)
		}
		out := make([]model.Entity, len(entries))
		for i, h := range entries {
			out[i] = h
			after = h.ID
		}
		return out, nil
	}
}
