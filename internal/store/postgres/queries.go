package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// beadColumns is the column list used for SELECT statements on the beads table.
var beadColumns = []string{
	"id", "slug", "kind", "type", "title", "description",
	"status", "priority", "assignee", "owner", "parent_id", "created_at", "created_by", "updated_at",
	"closed_at", "closed_by", "due_at", "deleted", "fields",
}

// historyColumns is the column list used for SELECT statements on the history table.
var historyColumns = []string{
	"id", "entity_type", "entity_id", "field", "old_value", "new_value", "actor", "created_at",
}

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateBead(ctx context.Context, db executor, b *model.Bead) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO beads (
			id, slug, kind, type, title, description,
			status, priority, assignee, owner, parent_id, created_at, created_by, updated_at,
			closed_at, closed_by, due_at, deleted, fields
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19
		)`,
		b.ID,
		nullString(b.Slug),
		string(b.Kind),
		string(b.Type),
		b.Title,
		b.Description,
		string(b.Status),
		b.Priority,
		b.Assignee,
		b.Owner,
		nullRef(b.Parent),
		b.CreatedAt,
		b.CreatedBy,
		b.UpdatedAt,
		nullTimePtr(b.ClosedAt),
		b.ClosedBy,
		nullTimePtr(b.DueAt),
		b.Deleted,
		jsonbBytes(b.Fields),
	)
	if err != nil {
		return err
	}
	return querySetLabels(ctx, db, b.ID, b.Labels)
}

func queryGetBead(ctx context.Context, db executor, id string) (*model.Bead, error) {
	row := db.QueryRowContext(ctx, `SELECT `+columnList("", beadColumns)+` FROM beads WHERE id = $1`, id)
	b, err := scanBead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bead %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := hydrateBeads(ctx, db, []*model.Bead{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func queryUpdateBead(ctx context.Context, db executor, b *model.Bead) error {
	err := db.QueryRowContext(ctx, `
		UPDATE beads SET
			slug = $2,
			kind = $3,
			type = $4,
			title = $5,
			description = $6,
			status = $7,
			priority = $8,
			assignee = $9,
			owner = $10,
			parent_id = $11,
			updated_at = NOW(),
			closed_at = $12,
			closed_by = $13,
			due_at = $14,
			deleted = $15,
			fields = $16
		WHERE id = $1
		RETURNING updated_at`,
		b.ID,
		nullString(b.Slug),
		string(b.Kind),
		string(b.Type),
		b.Title,
		b.Description,
		string(b.Status),
		b.Priority,
		b.Assignee,
		b.Owner,
		nullRef(b.Parent),
		nullTimePtr(b.ClosedAt),
		b.ClosedBy,
		nullTimePtr(b.DueAt),
		b.Deleted,
		jsonbBytes(b.Fields),
	).Scan(&b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("bead %s: %w", b.ID, store.ErrNotFound)
	}
	return err
}

// queryDeleteBead soft-deletes a bead; search hides it through the delete flag.
func queryDeleteBead(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `UPDATE beads SET deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bead %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func querySetLabels(ctx context.Context, db executor, beadID string, labels []string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM labels WHERE bead_id = $1`, beadID); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}
	if len(labels) == 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO labels (bead_id, label)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`,
		beadID, pq.Array(labels),
	)
	if err != nil {
		return fmt.Errorf("insert labels: %w", err)
	}
	return nil
}

func queryAddComment(ctx context.Context, db executor, c *model.Comment) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO comments (bead_id, author, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		c.BeadID, c.Author, c.Text,
	).Scan(&c.ID, &c.CreatedAt)
}

func queryGetComments(ctx context.Context, db executor, beadID string) ([]*model.Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, bead_id, author, text, created_at
		FROM comments
		WHERE bead_id = $1
		ORDER BY created_at ASC`,
		beadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

func queryRecordHistory(ctx context.Context, db executor, entries []*model.HistoryEntry) error {
	for _, h := range entries {
		err := db.QueryRowContext(ctx, `
			INSERT INTO history (entity_type, entity_id, field, old_value, new_value, actor)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			h.EntityType, h.EntityRef, h.Field, h.OldValue, h.NewValue, h.Actor,
		).Scan(&h.ID, &h.CreatedAt)
		if err != nil {
			return fmt.Errorf("record history %s.%s: %w", h.EntityRef, h.Field, err)
		}
	}
	return nil
}

func queryGetHistory(ctx context.Context, db executor, entityType, entityID string) ([]*model.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+columnList("", historyColumns)+`
		FROM history
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC, id ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

func queryListBeadIDs(ctx context.Context, db executor, includeDeleted bool) ([]string, error) {
	q := `SELECT id FROM beads`
	if !includeDeleted {
		q += ` WHERE deleted = FALSE`
	}
	rows, err := db.QueryContext(ctx, q+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list bead ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func queryListHistory(ctx context.Context, db executor, afterID int64, limit int) ([]*model.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+columnList("", historyColumns)+`
		FROM history
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// hydrateBeads loads labels and comments for a batch of beads with one query
// per relation.
func hydrateBeads(ctx context.Context, db executor, beads []*model.Bead) error {
	if len(beads) == 0 {
		return nil
	}
	// A batch may hold the same bead more than once when a join fans out.
	byID := make(map[string][]*model.Bead, len(beads))
	ids := make([]string, 0, len(beads))
	for _, b := range beads {
		if _, dup := byID[b.ID]; !dup {
			ids = append(ids, b.ID)
		}
		byID[b.ID] = append(byID[b.ID], b)
		b.Labels, b.Comments = nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT bead_id, label FROM labels
		WHERE bead_id = ANY($1)
		ORDER BY bead_id, label`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}
	for rows.Next() {
		var beadID, label string
		if err := rows.Scan(&beadID, &label); err != nil {
			rows.Close()
			return fmt.Errorf("scan label: %w", err)
		}
		for _, b := range byID[beadID] {
			b.Labels = append(b.Labels, label)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("load labels: %w", err)
	}
	rows.Close()

	rows, err = db.QueryContext(ctx, `
		SELECT id, bead_id, author, text, created_at FROM comments
		WHERE bead_id = ANY($1)
		ORDER BY created_at ASC, id ASC`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	defer rows.Close()
	comments, err := scanComments(rows)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	for _, c := range comments {
		for _, b := range byID[c.BeadID] {
			b.Comments = append(b.Comments, c)
		}
	}
	return nil
}
