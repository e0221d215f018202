package fulltext

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

const historyPage = 1000

// HistoryIDs returns the identifiers of entities of entityType whose audit
// entries match params. The text term matches old values by wildcard; a
// plain alphanumeric term is wrapped in wildcards.
func (x *Indexes) HistoryIDs(ctx context.Context, entityType string, params filter.HistoryParams) (map[string]struct{}, error) {
	idx, err := x.Index(model.EntityHistory)
	if err != nil {
		return nil, err
	}
	q := historyQuery(entityType, params)

	ids := make(map[string]struct{})
	for from := 0; ; from += historyPage {
		req := bleve.NewSearchRequestOptions(q, historyPage, from, false)
		req.Fields = []string{"entity_id"}
		req.SortBy([]string{"_id"})
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("search history: %w", err)
		}
		for _, hit := range res.Hits {
			switch v := hit.Fields["entity_id"].(type) {
			case string:
				ids[v] = struct{}{}
			case []any:
				for _, s := range v {
					if id, ok := s.(string); ok {
						ids[id] = struct{}{}
					}
				}
			}
		}
		if len(res.Hits) < historyPage {
			return ids, nil
		}
	}
}

func historyQuery(entityType string, params filter.HistoryParams) query.Query {
	term := func(field, v string) query.Query {
		q := query.NewTermQuery(v)
		q.SetField(field)
		return q
	}
	conj := []query.Query{term("entity_type", entityType)}
	if params.User != "" {
		conj = append(conj, term("actor", params.User))
	}
	if params.From != nil || params.To != nil {
		start, end := zeroIfNil(params.From), zeroIfNil(params.To)
		q := query.NewDateRangeInclusiveQuery(start, end, &inclusive, &inclusive)
		q.SetField("created_at")
		conj = append(conj, q)
	}
	if text := strings.ToLower(strings.TrimSpace(params.Text)); text != "" {
		if isWord(text) {
			text = "*" + text + "*"
		}
		q := query.NewWildcardQuery(text)
		q.SetField("old_value")
		conj = append(conj, q)
	}
	return query.NewConjunctionQuery(conj)
}
