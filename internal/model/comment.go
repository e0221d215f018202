package model

import (
	"strconv"
	"time"
)

// Comment represents a comment on a bead.
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	BeadID    string    `json:"bead_id" db:"bead_id"`
	Author    string    `json:"author" db:"author" search:"keyword"`
	Text      string    `json:"text" db:"text" search:"fulltext"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EntityID returns the comment id in decimal form.
func (c *Comment) EntityID() string { return strconv.FormatInt(c.ID, 10) }
