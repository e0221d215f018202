package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/kquery/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanBead scans a single row into a model.Bead.
// The row must contain columns in the order defined by beadColumns.
func scanBead(row scannable) (*model.Bead, error) {
	var b model.Bead
	var (
		slug        sql.NullString
		description sql.NullString
		assignee    sql.NullString
		owner       sql.NullString
		parentID    sql.NullString
		createdBy   sql.NullString
		closedAt    sql.NullTime
		closedBy    sql.NullString
		dueAt       sql.NullTime
		fields      []byte
	)

	err := row.Scan(
		&b.ID,
		&slug,
		&b.Kind,
		&b.Type,
		&b.Title,
		&description,
		&b.Status,
		&b.Priority,
		&assignee,
		&owner,
		&parentID,
		&b.CreatedAt,
		&createdBy,
		&b.UpdatedAt,
		&closedAt,
		&closedBy,
		&dueAt,
		&b.Deleted,
		&fields,
	)
	if err != nil {
		return nil, err
	}

	b.Slug = slug.String
	b.Description = description.String
	b.Assignee = assignee.String
	b.Owner = owner.String
	b.CreatedBy = createdBy.String
	b.ClosedBy = closedBy.String

	if parentID.Valid {
		b.Parent = &model.Ref{ID: parentID.String}
	}
	if closedAt.Valid {
		t := closedAt.Time
		b.ClosedAt = &t
	}
	if dueAt.Valid {
		t := dueAt.Time
		b.DueAt = &t
	}
	if len(fields) > 0 {
		b.Fields = json.RawMessage(fields)
	}

	return &b, nil
}

// scanComment scans a single row into a model.Comment.
func scanComment(row scannable) (*model.Comment, error) {
	var c model.Comment
	var author sql.NullString
	err := row.Scan(
		&c.ID,
		&c.BeadID,
		&author,
		&c.Text,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Author = author.String
	return &c, nil
}

// scanComments scans multiple rows into a slice of model.Comment pointers.
func scanComments(rows *sql.Rows) ([]*model.Comment, error) {
	var comments []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

// scanHistory scans a single row into a model.HistoryEntry.
// The row must contain columns in the order defined by historyColumns.
func scanHistory(row scannable) (*model.HistoryEntry, error) {
	var h model.HistoryEntry
	var (
		oldValue sql.NullString
		newValue sql.NullString
		actor    sql.NullString
	)
	err := row.Scan(&h.ID, &h.EntityType, &h.EntityRef, &h.Field, &oldValue, &newValue, &actor, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	h.OldValue = oldValue.String
	h.NewValue = newValue.String
	h.Actor = actor.String
	return &h, nil
}

// scanHistoryRows scans multiple rows into a slice of model.HistoryEntry pointers.
func scanHistoryRows(rows *sql.Rows) ([]*model.HistoryEntry, error) {
	var out []*model.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullRef converts an optional reference to its nullable id.
func nullRef(r *model.Ref) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	return nullString(r.ID)
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
