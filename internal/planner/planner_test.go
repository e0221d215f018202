package planner

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

func newPlanner(t *testing.T) (*Planner, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return New(catalog.Default(), logger), &buf
}

func TestSelectMode(t *testing.T) {
	eq := filter.NewEqual("status", "open")
	ft := filter.NewFreeText("login")
	onlyRS := filter.WithSupport(filter.NewEqual("x", 1), filter.SupportResultSet)
	onlyCrit := filter.WithSupport(filter.NewEqual("x", 1), filter.SupportCriteria)
	none := filter.WithSupport(filter.NewEqual("x", 1), 0)

	tests := []struct {
		name  string
		preds []filter.Predicate
		want  Mode
	}{
		{"empty", nil, Relational},
		{"plain", []filter.Predicate{eq}, Relational},
		{"result set only", []filter.Predicate{onlyRS, onlyCrit}, Relational},
		{"free text", []filter.Predicate{eq, ft}, FullText},
		{"free text first", []filter.Predicate{ft, eq}, FullText},
		{"no flags", []filter.Predicate{none}, FullText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectMode(tt.preds))
		})
	}
}

func TestSelectMode_OrderIndependent(t *testing.T) {
	preds := []filter.Predicate{
		filter.NewEqual("a", 1),
		filter.NewIsNull("b"),
		filter.NewFreeText("x"),
		filter.NewLike("c", "d*", false),
	}
	want := SelectMode(preds)
	for i := range preds {
		rotated := append(append([]filter.Predicate{}, preds[i:]...), preds[:i]...)
		assert.Equal(t, want, SelectMode(rotated))
	}
}

func TestPlan_Relational(t *testing.T) {
	p, _ := newPlanner(t)
	f := filter.New().
		Add(filter.NewEqual("status", "open")).
		Add(filter.WithSupport(filter.NewLike("title", "*x*", false), filter.SupportResultSet|filter.SupportFullText)).
		Add(filter.NewIsNull("closed_at"))

	plan := p.Plan(model.EntityBead, f)
	assert.Equal(t, Relational, plan.Mode)
	assert.Len(t, plan.Pushed, 2)
	assert.Len(t, plan.PostFilter, 1)
	assert.Empty(t, plan.Dropped)
}

func TestPlan_FullText(t *testing.T) {
	p, _ := newPlanner(t)
	f := filter.New().
		Add(filter.NewFreeText("login")).
		Add(filter.NewEqual("status", "open")).      // indexed
		Add(filter.NewEqual("fields.team", "core")). // not indexed
		Add(filter.NewIsNull("closed_at"))           // no full-text support
	f.SetDeleteFlag(filter.NewEqual("deleted", false))

	plan := p.Plan(model.EntityBead, f)
	require.Equal(t, FullText, plan.Mode)
	assert.Len(t, plan.Pushed, 3) // free text, status, deleted
	assert.Len(t, plan.PostFilter, 2)
	assert.Empty(t, plan.Dropped)
}

func TestPlan_DropsUnsupported(t *testing.T) {
	p, logs := newPlanner(t)
	f := filter.New().
		Add(filter.NewFreeText("x")).
		Add(filter.WithSupport(filter.NewEqual("status", "open"), filter.SupportCriteria)).
		Add(filter.WithSupport(filter.NewEqual("title", "t"), 0))

	plan := p.Plan(model.EntityBead, f)
	assert.Equal(t, FullText, plan.Mode)
	assert.Len(t, plan.Pushed, 1)
	assert.Len(t, plan.Dropped, 2)
	assert.Contains(t, logs.String(), "supports neither mode")
}

func TestPlan_PartitionComplete(t *testing.T) {
	p, _ := newPlanner(t)
	supports := []filter.Support{
		0, filter.SupportCriteria, filter.SupportFullText, filter.SupportResultSet,
		filter.SupportCriteria | filter.SupportResultSet, filter.SupportAll,
	}
	for _, s1 := range supports {
		for _, s2 := range supports {
			f := filter.New().
				Add(filter.WithSupport(filter.NewEqual("status", "a"), s1)).
				Add(filter.WithSupport(filter.NewEqual("fields.x", "b"), s2))
			plan := p.Plan(model.EntityBead, f)

			seen := map[filter.Predicate]int{}
			for _, set := range [][]filter.Predicate{plan.Pushed, plan.PostFilter, plan.Dropped} {
				for _, pred := range set {
					seen[pred]++
				}
			}
			require.Len(t, seen, 2, "supports %v/%v", s1, s2)
			for pred, n := range seen {
				assert.Equal(t, 1, n, "predicate %s placed %d times", pred, n)
			}
		}
	}
}

func TestPlan_SortCap(t *testing.T) {
	p, _ := newPlanner(t)
	f := filter.New()
	for _, path := range []string{"a", "b", "c", "d", "e"} {
		f.AddSort(filter.Asc(path))
	}
	plan := p.Plan(model.EntityBead, f)
	assert.Equal(t, []filter.SortProperty{filter.Asc("a"), filter.Asc("b"), filter.Asc("c")}, plan.Sort)
}
