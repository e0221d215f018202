package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/kquery/internal/filter"
)

// historyMembers resolves history constraints to the identifier set rows must
// belong to. It returns nil when no constraint is set. A text term goes to
// the full-text history index; otherwise the relational audit table answers.
func (s *Searcher) historyMembers(ctx context.Context, entityType string, params *filter.HistoryParams) (map[string]struct{}, error) {
	if !params.Active() {
		return nil, nil
	}
	src, kind := s.history, "relational"
	if strings.TrimSpace(params.Text) != "" {
		if s.fulltext == nil {
			return nil, fmt.Errorf("history text search needs the full-text backend")
		}
		src, kind = s.fulltext, "full-text"
	}
	ids, err := src.HistoryIDs(ctx, entityType, *params)
	if err != nil {
		return nil, fmt.Errorf("%s history lookup: %w", kind, err)
	}
	s.logger.Debug("history constraint", "entity", entityType, "source", kind, "params", params.String(), "matches", len(ids))
	return ids, nil
}
