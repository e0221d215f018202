package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// tableSpec knows how to read one entity type from its table.
type tableSpec struct {
	columns []string
	scan    func(scannable) (model.Entity, error)
	// hydrate loads joined collections for a fetched batch; may be nil.
	hydrate func(ctx context.Context, db executor, batch []model.Entity) error
}

var tables = map[string]*tableSpec{
	model.EntityBead: {
		columns: beadColumns,
		scan: func(row scannable) (model.Entity, error) {
			return scanBead(row)
		},
		hydrate: func(ctx context.Context, db executor, batch []model.Entity) error {
			beads := make([]*model.Bead, 0, len(batch))
			for _, e := range batch {
				beads = append(beads, e.(*model.Bead))
			}
			return hydrateBeads(ctx, db, beads)
		},
	},
	model.EntityHistory: {
		columns: historyColumns,
		scan: func(row scannable) (model.Entity, error) {
			return scanHistory(row)
		},
	},
}

func specFor(info *catalog.Info) (*tableSpec, error) {
	spec, ok := tables[info.Name]
	if !ok {
		return nil, fmt.Errorf("no relational mapping for entity %q", info.Name)
	}
	return spec, nil
}

// columnList joins columns, qualifying each with table when it is non-empty.
func columnList(table string, columns []string) string {
	if table == "" {
		return strings.Join(columns, ", ")
	}
	qualified := make([]string, len(columns))
	for i, c := range columns {
		qualified[i] = table + "." + c
	}
	return strings.Join(qualified, ", ")
}
