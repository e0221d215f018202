package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// fetchSize is the number of rows pulled per FETCH.
const fetchSize = 100

// cursor is a forward-only server-side cursor inside a read-only transaction.
type cursor struct {
	tx     *sql.Tx
	name   string
	spec   *tableSpec
	buf    []model.Entity
	pos    int
	done   bool
	closed bool
}

var _ store.Iterator = (*cursor)(nil)

func openCursor(ctx context.Context, tx *sql.Tx, name string, spec *tableSpec, query string, args []any) (*cursor, error) {
	if _, err := tx.ExecContext(ctx, "DECLARE "+name+" NO SCROLL CURSOR FOR "+query, args...); err != nil {
		return nil, fmt.Errorf("declare cursor: %w", err)
	}
	return &cursor{tx: tx, name: name, spec: spec}, nil
}

func (c *cursor) Next(ctx context.Context) (model.Entity, bool, error) {
	if c.pos >= len(c.buf) {
		if c.done {
			return nil, false, nil
		}
		if err := c.fetch(ctx); err != nil {
			return nil, false, err
		}
		if len(c.buf) == 0 {
			return nil, false, nil
		}
	}
	e := c.buf[c.pos]
	c.pos++
	return e, true, nil
}

func (c *cursor) fetch(ctx context.Context) error {
	rows, err := c.tx.QueryContext(ctx, fmt.Sprintf("FETCH FORWARD %d FROM %s", fetchSize, c.name))
	if err != nil {
		return fmt.Errorf("fetch %s: %w", c.name, err)
	}
	defer rows.Close()

	c.buf, c.pos = c.buf[:0], 0
	for rows.Next() {
		e, err := c.spec.scan(rows)
		if err != nil {
			return fmt.Errorf("scan %s: %w", c.name, err)
		}
		c.buf = append(c.buf, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("fetch %s: %w", c.name, err)
	}
	rows.Close()

	if len(c.buf) < fetchSize {
		c.done = true
	}
	if c.spec.hydrate != nil && len(c.buf) > 0 {
		if err := c.spec.hydrate(ctx, c.tx, c.buf); err != nil {
			return err
		}
	}
	return nil
}

// Sort is a no-op: rows arrive in ORDER BY order.
func (c *cursor) Sort(page []model.Entity) []model.Entity { return page }

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if _, err := c.tx.Exec("CLOSE " + c.name); err != nil {
		return fmt.Errorf("close cursor: %w", err)
	}
	return nil
}
