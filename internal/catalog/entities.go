package catalog

import (
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// Default returns a catalog with the served entity types registered.
func Default() *Catalog {
	c := New()
	c.Register(model.EntityBead, &model.Bead{},
		WithTable("beads"),
		WithDefaultSort(filter.Desc("updated_at"), filter.Asc("id")),
		WithDeleteFlag("deleted"),
		WithAdditionalField("closed_by", IndexKeyword),
		WithBridge("label_text", IndexFullText),
	)
	c.Register(model.EntityHistory, &model.HistoryEntry{},
		WithTable("history"),
		WithDefaultSort(filter.Desc("created_at"), filter.Desc("id")),
	)
	return c
}
