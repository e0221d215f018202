package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind is a two-level classification for beads.
type Kind string

const (
	KindIssue  Kind = "issue"
	KindData   Kind = "data"
	KindConfig Kind = "config"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks whether the kind is a known value.
func (k Kind) IsValid() bool {
	switch k {
	case KindIssue, KindData, KindConfig:
		return true
	}
	return false
}

// BeadType categorizes the kind of bead.
// Well-known constants are provided below, but bead types are extensible.
type BeadType string

const (
	TypeEpic    BeadType = "epic"
	TypeTask    BeadType = "task"
	TypeFeature BeadType = "feature"
	TypeChore   BeadType = "chore"
	TypeBug     BeadType = "bug"
)

// String returns the string representation of the bead type.
func (t BeadType) String() string {
	return string(t)
}

// IsValid reports whether the bead type is a non-empty string.
func (t BeadType) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Status represents the current state of a bead.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDeferred   Status = "deferred"
	StatusClosed     Status = "closed"
	StatusBlocked    Status = "blocked"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDeferred, StatusClosed, StatusBlocked:
		return true
	}
	return false
}

// Bead is the core work-item record.
type Bead struct {
	ID          string          `json:"id" db:"id" search:"id"`
	Slug        string          `json:"slug,omitempty" db:"slug" search:"keyword"`
	Kind        Kind            `json:"kind" db:"kind" search:"keyword"`
	Type        BeadType        `json:"type" db:"type" search:"keyword"`
	Title       string          `json:"title" db:"title" search:"fulltext"`
	Description string          `json:"description,omitempty" db:"description" search:"fulltext"`
	Status      Status          `json:"status" db:"status" search:"keyword"`
	Priority    int             `json:"priority" db:"priority" search:"numeric"`
	Assignee    string          `json:"assignee,omitempty" db:"assignee" search:"keyword"`
	Owner       string          `json:"owner,omitempty" db:"owner" search:"keyword"`
	Parent      *Ref            `json:"parent,omitempty" db:"parent_id" search:"ref"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at" search:"field"`
	CreatedBy   string          `json:"created_by,omitempty" db:"created_by" search:"keyword"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at" search:"field"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty" db:"closed_at"`
	ClosedBy    string          `json:"closed_by,omitempty" db:"closed_by"`
	DueAt       *time.Time      `json:"due_at,omitempty" db:"due_at" search:"field"`
	Deleted     bool            `json:"deleted,omitempty" db:"deleted" search:"field"`
	Fields      json.RawMessage `json:"fields,omitempty" db:"fields"`

	// Relational data -- populated from joined tables, not stored in beads.
	Labels   []string   `json:"labels,omitempty" join:"labels,labels,bead_id,label" search:"keyword"`
	Comments []*Comment `json:"comments,omitempty" join:"comments,comments,bead_id"`
}

// EntityID returns the bead's identifier.
func (b *Bead) EntityID() string { return b.ID }

// VisibleTo reports whether user may read the bead. Unowned beads are public.
func (b *Bead) VisibleTo(user string) bool {
	return b.Owner == "" || (user != "" && (b.Owner == user || b.Assignee == user))
}

// BridgeFields returns composite search fields computed from the bead.
func (b *Bead) BridgeFields() map[string]any {
	return map[string]any{"label_text": strings.Join(b.Labels, " ")}
}
