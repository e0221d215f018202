package search

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alfredjeanlab/kquery/internal/access"
	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/store/memstore"
)

func TestSelect_ActiveByNameScenario(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seed := []struct{ id, title, status string }{
		{"kd-1", "E", "active"},
		{"kd-2", "C", "active"},
		{"kd-3", "A", "inactive"},
		{"kd-4", "D", "active"},
		{"kd-5", "B", "active"},
		{"kd-6", "A", "active"},
		{"kd-7", "B", "inactive"},
	}
	for _, s := range seed {
		b := &model.Bead{ID: s.id, Title: s.title, Status: model.Status(s.status), Kind: model.KindIssue, Type: model.TypeTask}
		if err := st.CreateBead(ctx, b); err != nil {
			t.Fatalf("CreateBead: %v", err)
		}
	}

	s := New(catalog.Default(), st, nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	req := &filter.Request{
		Where:   []filter.Condition{{Op: "eq", Field: "status", Value: "active"}},
		Sort:    []filter.SortProperty{{Path: "title"}},
		MaxRows: 2,
	}
	page := s.Select(ctx, model.EntityBead, req, nil, access.AllowAll{})
	if got := ids(page); got != "kd-6,kd-5" {
		t.Fatalf("page = %s, want kd-6,kd-5 (titles A, B among active beads)", got)
	}
}
