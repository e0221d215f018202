package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/alfredjeanlab/kquery/internal/filter"
)

// HistoryIDs returns the identifiers of entities of entityType with audit
// entries matching the actor and time window. It runs in its own repeatable
// read transaction so it does not share the search session. The text term is
// not evaluated here; text history queries go to the full-text index.
func (s *PostgresStore) HistoryIDs(ctx context.Context, entityType string, params filter.HistoryParams) (map[string]struct{}, error) {
	q := psql.Select("DISTINCT entity_id").From("history").Where(sq.Eq{"entity_type": entityType})
	if params.User != "" {
		q = q.Where(sq.Eq{"actor": params.User})
	}
	if params.From != nil {
		q = q.Where(sq.GtOrEq{"created_at": params.From.UTC()})
	}
	if params.To != nil {
		q = q.Where(sq.LtOrEq{"created_at": params.To.UTC()})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan history id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history ids: %w", err)
	}
	return ids, nil
}
