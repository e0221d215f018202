// Package events publishes and consumes entity change notifications. Write
// paths publish after commit; index followers consume them to keep full-text
// replicas current.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/kquery/internal/model"
)

// Event topic constants
const (
	TopicBeadCreated     = "beads.bead.created"
	TopicBeadUpdated     = "beads.bead.updated"
	TopicBeadDeleted     = "beads.bead.deleted"
	TopicCommentAdded    = "beads.comment.added"
	TopicHistoryRecorded = "beads.history.recorded"

	// TopicAll matches every change topic.
	TopicAll = "beads.>"
)

// Event types

type BeadCreated struct {
	Bead *model.Bead `json:"bead"`
}

type BeadUpdated struct {
	Bead    *model.Bead    `json:"bead"`
	Changes map[string]any `json:"changes"` // field name -> new value
}

// BeadDeleted carries the soft-deleted bead so replicas can index the flag.
type BeadDeleted struct {
	Bead *model.Bead `json:"bead"`
}

// CommentAdded carries the comment and the bead it now belongs to.
type CommentAdded struct {
	Comment *model.Comment `json:"comment"`
	Bead    *model.Bead    `json:"bead,omitempty"`
}

type HistoryRecorded struct {
	Entries []*model.HistoryEntry `json:"entries"`
}

// Message is one raw payload received on a subject.
type Message struct {
	Subject string
	Data    []byte
}

// Change is a decoded message: the entities it touches, keyed by entity type.
type Change struct {
	Topic    string
	Entities map[string][]model.Entity
}

// Decode parses a raw message into the entities it carries. Unknown topics
// under the beads namespace decode to an empty change.
func Decode(msg Message) (*Change, error) {
	c := &Change{Topic: msg.Subject, Entities: make(map[string][]model.Entity)}
	addBead := func(b *model.Bead) {
		if b != nil && b.ID != "" {
			c.Entities[model.EntityBead] = append(c.Entities[model.EntityBead], b)
		}
	}

	var err error
	switch msg.Subject {
	case TopicBeadCreated:
		var ev BeadCreated
		if err = json.Unmarshal(msg.Data, &ev); err == nil {
			addBead(ev.Bead)
		}
	case TopicBeadUpdated:
		var ev BeadUpdated
		if err = json.Unmarshal(msg.Data, &ev); err == nil {
			addBead(ev.Bead)
		}
	case TopicBeadDeleted:
		var ev BeadDeleted
		if err = json.Unmarshal(msg.Data, &ev); err == nil {
			addBead(ev.Bead)
		}
	case TopicCommentAdded:
		var ev CommentAdded
		if err = json.Unmarshal(msg.Data, &ev); err == nil {
			addBead(ev.Bead)
		}
	case TopicHistoryRecorded:
		var ev HistoryRecorded
		if err = json.Unmarshal(msg.Data, &ev); err == nil {
			for _, h := range ev.Entries {
				if h != nil {
					c.Entities[model.EntityHistory] = append(c.Entities[model.EntityHistory], h)
				}
			}
		}
	default:
		if !strings.HasPrefix(msg.Subject, "beads.") {
			return nil, fmt.Errorf("unexpected subject %q", msg.Subject)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", msg.Subject, err)
	}
	return c, nil
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
