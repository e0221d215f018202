package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/config"
	"github.com/alfredjeanlab/kquery/internal/fulltext"
	"github.com/alfredjeanlab/kquery/internal/indexsync"
	"github.com/alfredjeanlab/kquery/internal/search"
	"github.com/alfredjeanlab/kquery/internal/sorting"
	"github.com/alfredjeanlab/kquery/internal/store/postgres"
)

// backend is the local search stack: relational store, full-text indexes
// and the searcher over both.
type backend struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	store    *postgres.PostgresStore
	index    *fulltext.Indexes
	searcher *search.Searcher
}

// openBackend wires the stack from the environment. In-memory indexes start
// empty, so they are filled from Postgres before returning.
func openBackend(ctx context.Context, logger *slog.Logger) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cat := catalog.Default()

	st, err := postgres.New(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	ix, err := fulltext.Open(cat, cfg.IndexDir, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	searcher := search.New(cat, st, ix,
		search.WithLogger(logger),
		search.WithSlowQuery(cfg.SlowQuery),
		search.WithSorter(sorting.New(cfg.Collation, logger)),
	)
	b := &backend{cfg: cfg, catalog: cat, store: st, index: ix, searcher: searcher}
	if cfg.IndexDir == "" {
		if err := b.rebuild(ctx, cat.Names(), logger); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

// rebuild replaces the full-text index of each named entity type with the
// rows currently in Postgres.
func (b *backend) rebuild(ctx context.Context, entities []string, logger *slog.Logger) error {
	for _, name := range entities {
		next, err := indexsync.Source(b.store, b.catalog, name)
		if err != nil {
			return err
		}
		n, err := b.index.Rebuild(ctx, name, next)
		if err != nil {
			return fmt.Errorf("rebuild %s: %w", name, err)
		}
		logger.Debug("index rebuilt", "entity", name, "documents", n)
	}
	return nil
}

func (b *backend) Close() error {
	return errors.Join(b.index.Close(), b.store.Close())
}
