package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/kquery/internal/events"
	"github.com/alfredjeanlab/kquery/internal/idgen"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// createBeadInput holds transport-agnostic parameters for creating a bead.
type createBeadInput struct {
	Title       string          `json:"title"`
	Kind        string          `json:"kind"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Priority    int             `json:"priority"`
	Assignee    string          `json:"assignee"`
	Owner       string          `json:"owner"`
	Parent      string          `json:"parent_id"`
	Labels      []string        `json:"labels"`
	Fields      json.RawMessage `json:"fields"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
}

// updateBeadInput holds the fields a PATCH may change. Nil means unchanged.
type updateBeadInput struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Priority    *int            `json:"priority"`
	Assignee    *string         `json:"assignee"`
	Owner       *string         `json:"owner"`
	Labels      *[]string       `json:"labels"`
	Fields      json.RawMessage `json:"fields"`
}

// createBead validates input, persists a new bead with its creation history,
// indexes it and publishes a BeadCreated event. Returns inputError for
// validation failures.
func (s *Server) createBead(ctx context.Context, in createBeadInput) (*model.Bead, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, inputError("title is required")
	}
	id, err := idgen.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}

	now := time.Now().UTC()
	who := actor(ctx)
	bead := &model.Bead{
		ID:          id,
		Kind:        model.Kind(in.Kind),
		Type:        model.BeadType(in.Type),
		Title:       in.Title,
		Description: in.Description,
		Status:      model.StatusOpen,
		Priority:    in.Priority,
		Assignee:    in.Assignee,
		Owner:       in.Owner,
		CreatedAt:   now,
		CreatedBy:   who,
		UpdatedAt:   now,
		DueAt:       in.DueAt,
		Labels:      in.Labels,
		Fields:      in.Fields,
	}
	if bead.Kind == "" {
		bead.Kind = model.KindIssue
	}
	if bead.Type == "" {
		bead.Type = model.TypeTask
	}
	if in.Parent != "" {
		bead.Parent = &model.Ref{ID: in.Parent}
	}
	if err := model.ValidateBead(bead); err != nil {
		return nil, inputError("invalid bead: " + err.Error())
	}

	created := []*model.HistoryEntry{{
		EntityType: model.EntityBead,
		EntityRef:  bead.ID,
		Field:      "created",
		NewValue:   bead.Title,
		Actor:      who,
	}}
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateBead(ctx, bead); err != nil {
			return fmt.Errorf("failed to create bead: %w", err)
		}
		return tx.RecordHistory(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, events.TopicBeadCreated, bead, events.BeadCreated{Bead: bead}, created)
	return bead, nil
}

// getBead returns a bead the caller may read. Unreadable beads are reported
// as not found.
func (s *Server) getBead(ctx context.Context, id string) (*model.Bead, error) {
	if !idgen.Valid(id) {
		return nil, inputError("invalid bead id")
	}
	bead, err := s.store.GetBead(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.checker.CanRead(ctx, bead) {
		return nil, fmt.Errorf("bead %s: %w", id, store.ErrNotFound)
	}
	return bead, nil
}

// updateBead applies in to the bead, records one history entry per changed
// field and publishes a BeadUpdated event.
func (s *Server) updateBead(ctx context.Context, id string, in updateBeadInput) (*model.Bead, error) {
	old, err := s.getBead(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *old
	changes := make(map[string]any)
	if in.Title != nil {
		updated.Title = *in.Title
		changes["title"] = *in.Title
	}
	if in.Description != nil {
		updated.Description = *in.Description
		changes["description"] = *in.Description
	}
	if in.Status != nil {
		updated.Status = model.Status(*in.Status)
		changes["status"] = *in.Status
		now := time.Now().UTC()
		switch {
		case updated.Status == model.StatusClosed && old.Status != model.StatusClosed:
			updated.ClosedAt = &now
			updated.ClosedBy = actor(ctx)
		case updated.Status != model.StatusClosed:
			updated.ClosedAt = nil
			updated.ClosedBy = ""
		}
	}
	if in.Priority != nil {
		updated.Priority = *in.Priority
		changes["priority"] = *in.Priority
	}
	if in.Assignee != nil {
		updated.Assignee = *in.Assignee
		changes["assignee"] = *in.Assignee
	}
	if in.Owner != nil {
		updated.Owner = *in.Owner
		changes["owner"] = *in.Owner
	}
	if in.Labels != nil {
		updated.Labels = *in.Labels
		changes["labels"] = *in.Labels
	}
	if len(in.Fields) > 0 {
		updated.Fields = in.Fields
		changes["fields"] = in.Fields
	}
	if len(changes) == 0 {
		return nil, inputError("no fields to update")
	}
	updated.UpdatedAt = time.Now().UTC()
	if err := model.ValidateBead(&updated); err != nil {
		return nil, inputError("invalid bead: " + err.Error())
	}

	entries := model.Diff(old, &updated, actor(ctx))
	if in.Labels != nil && strings.Join(old.Labels, ",") != strings.Join(updated.Labels, ",") {
		entries = append(entries, &model.HistoryEntry{
			EntityType: model.EntityBead,
			EntityRef:  id,
			Field:      "labels",
			OldValue:   strings.Join(old.Labels, ","),
			NewValue:   strings.Join(updated.Labels, ","),
			Actor:      actor(ctx),
		})
	}
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.UpdateBead(ctx, &updated); err != nil {
			return fmt.Errorf("failed to update bead: %w", err)
		}
		if in.Labels != nil {
			if err := tx.SetLabels(ctx, id, updated.Labels); err != nil {
				return fmt.Errorf("failed to set labels: %w", err)
			}
		}
		return tx.RecordHistory(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, events.TopicBeadUpdated, &updated, events.BeadUpdated{Bead: &updated, Changes: changes}, entries)
	return &updated, nil
}

// deleteBead soft-deletes a bead and records the change.
func (s *Server) deleteBead(ctx context.Context, id string) error {
	old, err := s.getBead(ctx, id)
	if err != nil {
		return err
	}
	if old.Deleted {
		return nil
	}
	deleted := *old
	deleted.Deleted = true
	entries := model.Diff(old, &deleted, actor(ctx))

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteBead(ctx, id); err != nil {
			return fmt.Errorf("failed to delete bead: %w", err)
		}
		return tx.RecordHistory(ctx, entries)
	})
	if err != nil {
		return err
	}

	s.afterWrite(ctx, events.TopicBeadDeleted, &deleted, events.BeadDeleted{Bead: &deleted}, entries)
	return nil
}

// addComment attaches a comment to a readable bead and reindexes the bead so
// comment text becomes searchable.
func (s *Server) addComment(ctx context.Context, beadID, text string) (*model.Comment, error) {
	if _, err := s.getBead(ctx, beadID); err != nil {
		return nil, err
	}
	comment := &model.Comment{
		BeadID:    beadID,
		Author:    actor(ctx),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := model.ValidateComment(comment); err != nil {
		return nil, inputError("invalid comment: " + err.Error())
	}

	entries := []*model.HistoryEntry{{
		EntityType: model.EntityBead,
		EntityRef:  beadID,
		Field:      "comment",
		NewValue:   text,
		Actor:      comment.Author,
	}}
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.AddComment(ctx, comment); err != nil {
			return fmt.Errorf("failed to add comment: %w", err)
		}
		return tx.RecordHistory(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	bead, err := s.store.GetBead(ctx, beadID)
	if err != nil {
		return nil, fmt.Errorf("reload bead: %w", err)
	}
	s.afterWrite(ctx, events.TopicCommentAdded, bead, events.CommentAdded{Comment: comment, Bead: bead}, entries)
	return comment, nil
}

// beadHistory returns the audit trail of a readable bead.
func (s *Server) beadHistory(ctx context.Context, id string) ([]*model.HistoryEntry, error) {
	if _, err := s.getBead(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.store.GetHistory(ctx, model.EntityBead, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if entries == nil {
		entries = []*model.HistoryEntry{}
	}
	return entries, nil
}

// afterWrite indexes the bead and its new history rows, then publishes the
// bead event and the history event.
func (s *Server) afterWrite(ctx context.Context, topic string, bead *model.Bead, event any, entries []*model.HistoryEntry) {
	s.reindex(model.EntityBead, bead)
	hist := make([]model.Entity, len(entries))
	for i, h := range entries {
		hist[i] = h
	}
	s.reindex(model.EntityHistory, hist...)

	s.publish(ctx, topic, bead.ID, event)
	if len(entries) > 0 {
		s.publish(ctx, events.TopicHistoryRecorded, bead.ID, events.HistoryRecorded{Entries: entries})
	}
}
