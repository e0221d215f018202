// Package model holds the entity types served by the search layer.
//
// Struct tags drive the capability catalog:
//
//	db:"column"                 relational column on the entity's table
//	join:"alias,table,fk[,col]" collection loaded from a joined table
//	search:"kind[,name=x]"      full-text indexing (id, fulltext, keyword,
//	                            field, numeric, ref, -)
package model

// Entity is a persisted record that can be paged over by identity.
type Entity interface {
	EntityID() string
}

// Visible is implemented by entities with per-user read restrictions.
type Visible interface {
	VisibleTo(user string) bool
}

// Ref is an embedded reference to another entity.
type Ref struct {
	ID string `json:"id" search:"id"`
}

// EntityID returns the referenced identifier.
func (r Ref) EntityID() string { return r.ID }

// Entity type names used for registration, routing, and history rows.
const (
	EntityBead    = "bead"
	EntityComment = "comment"
	EntityHistory = "history"
)
