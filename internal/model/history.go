package model

import (
	"strconv"
	"time"
)

// HistoryEntry is one audit-trail row: a single field change on an entity.
type HistoryEntry struct {
	ID         int64     `json:"id" db:"id" search:"id"`
	EntityType string    `json:"entity_type" db:"entity_type" search:"keyword"`
	EntityRef  string    `json:"entity_id" db:"entity_id" search:"keyword,store"`
	Field      string    `json:"field" db:"field" search:"keyword"`
	OldValue   string    `json:"old_value,omitempty" db:"old_value" search:"fulltext"`
	NewValue   string    `json:"new_value,omitempty" db:"new_value"`
	Actor      string    `json:"actor,omitempty" db:"actor" search:"keyword"`
	CreatedAt  time.Time `json:"created_at" db:"created_at" search:"field"`
}

// EntityID returns the history row id in decimal form.
func (h *HistoryEntry) EntityID() string { return strconv.FormatInt(h.ID, 10) }

// Diff returns one history entry per changed field between old and new.
// The entries carry no id or timestamp; the store assigns both.
func Diff(old, updated *Bead, actor string) []*HistoryEntry {
	var out []*HistoryEntry
	add := func(field, before, after string) {
		if before == after {
			return
		}
		out = append(out, &HistoryEntry{
			EntityType: EntityBead,
			EntityRef:  updated.ID,
			Field:      field,
			OldValue:   before,
			NewValue:   after,
			Actor:      actor,
		})
	}
	add("title", old.Title, updated.Title)
	add("description", old.Description, updated.Description)
	add("status", string(old.Status), string(updated.Status))
	add("priority", strconv.Itoa(old.Priority), strconv.Itoa(updated.Priority))
	add("assignee", old.Assignee, updated.Assignee)
	add("owner", old.Owner, updated.Owner)
	add("type", string(old.Type), string(updated.Type))
	if old.Deleted != updated.Deleted {
		add("deleted", strconv.FormatBool(old.Deleted), strconv.FormatBool(updated.Deleted))
	}
	return out
}
