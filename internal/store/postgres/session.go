package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// session is one read-only transaction. It never commits.
type session struct {
	tx     *sql.Tx
	logger *slog.Logger
	seq    int
}

var _ store.Session = (*session)(nil)

// BeginReadOnly opens a read-only transaction for one search.
func (s *PostgresStore) BeginReadOnly(ctx context.Context) (store.Session, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	return &session{tx: tx, logger: s.logger}, nil
}

func (s *session) Scroll(ctx context.Context, info *catalog.Info, preds []filter.Predicate, sort []filter.SortProperty) (store.Iterator, error) {
	spec, err := specFor(info)
	if err != nil {
		return nil, err
	}
	c := newCriteria(info, spec, s.logger)
	c.declare(preds, sort)
	for _, p := range preds {
		c.add(p)
	}
	c.sortBy(sort)

	query, args, err := c.finalize().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", info.Name, err)
	}
	s.seq++
	name := fmt.Sprintf("kq_cur_%d", s.seq)
	s.logger.Debug("opening cursor", "cursor", name, "sql", query)
	return openCursor(ctx, s.tx, name, spec, query, args)
}

func (s *session) Load(ctx context.Context, info *catalog.Info, ids []string) ([]model.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	spec, err := specFor(info)
	if err != nil {
		return nil, err
	}
	c := newCriteria(info, spec, s.logger)
	idCol := info.Table + "." + c.idColumn()
	query, args, err := psql.Select(columnList(info.Table, spec.columns)).
		From(info.Table).
		Where(sq.Eq{idCol: ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s load: %w", info.Name, err)
	}

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", info.Name, err)
	}
	defer rows.Close()

	byID := make(map[string]model.Entity, len(ids))
	var batch []model.Entity
	for rows.Next() {
		e, err := spec.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", info.Name, err)
		}
		byID[e.EntityID()] = e
		batch = append(batch, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", info.Name, err)
	}
	rows.Close()

	if spec.hydrate != nil && len(batch) > 0 {
		if err := spec.hydrate(ctx, s.tx, batch); err != nil {
			return nil, err
		}
	}

	out := make([]model.Entity, 0, len(batch))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *session) Close() error {
	if err := s.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("end read-only transaction: %w", err)
	}
	return nil
}
