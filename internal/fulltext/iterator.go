package fulltext

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/alfredjeanlab/kquery/internal/catalog"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/sorting"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// BlockSize is the number of hits fetched per search request.
const BlockSize = 100

// Loader fetches entities by identity in the order given.
type Loader interface {
	Load(ctx context.Context, info *catalog.Info, ids []string) ([]model.Entity, error)
}

// hits pages through search results in blocks, loading each block's
// entities from the relational session.
type hits struct {
	index  bleve.Index
	q      query.Query
	info   *catalog.Info
	loader Loader
	sorter *sorting.Sorter
	sort   []filter.SortProperty

	offset int
	buf    []model.Entity
	pos    int
	done   bool
}

var _ store.Iterator = (*hits)(nil)

// Scroll translates preds and returns an iterator over the matching entities
// of info's type. Entities are loaded through loader in hit order; Sort
// orders each page by sortProps.
func (x *Indexes) Scroll(info *catalog.Info, preds []filter.Predicate, loader Loader, sorter *sorting.Sorter, sortProps []filter.SortProperty) (store.Iterator, error) {
	idx, err := x.Index(info.Name)
	if err != nil {
		return nil, err
	}
	q, err := Translate(info, preds)
	if err != nil {
		return nil, err
	}
	return &hits{index: idx, q: q, info: info, loader: loader, sorter: sorter, sort: sortProps}, nil
}

func (h *hits) Next(ctx context.Context) (model.Entity, bool, error) {
	for h.pos >= len(h.buf) {
		if h.done {
			return nil, false, nil
		}
		if err := h.fetch(ctx); err != nil {
			return nil, false, err
		}
	}
	e := h.buf[h.pos]
	h.pos++
	return e, true, nil
}

func (h *hits) fetch(ctx context.Context) error {
	req := bleve.NewSearchRequestOptions(h.q, BlockSize, h.offset, false)
	req.SortBy([]string{"-_score", "_id"})
	res, err := h.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("search %s at %d: %w", h.info.Name, h.offset, err)
	}
	h.offset += len(res.Hits)
	if len(res.Hits) < BlockSize {
		h.done = true
	}

	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	h.buf, h.pos = nil, 0
	if len(ids) == 0 {
		return nil
	}
	loaded, err := h.loader.Load(ctx, h.info, ids)
	if err != nil {
		return fmt.Errorf("load %s hits: %w", h.info.Name, err)
	}
	h.buf = loaded
	return nil
}

// Sort orders the page; hits arrive by relevance, not by the requested sort.
func (h *hits) Sort(page []model.Entity) []model.Entity {
	if h.sorter == nil {
		return page
	}
	return h.sorter.Sort(page, h.sort)
}

func (h *hits) Close() error { return nil }
