package server

import (
	"context"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// search validates req and runs it for the caller. Malformed requests are
// input errors; everything past validation yields a page, possibly empty.
func (s *Server) search(ctx context.Context, entityType string, req *filter.Request) ([]model.Entity, error) {
	if req == nil {
		req = &filter.Request{}
	}
	if err := s.searcher.Validate(entityType, req); err != nil {
		return nil, inputError(err.Error())
	}
	if req.MaxRows == 0 && s.maxRows > 0 {
		capped := *req
		capped.MaxRows = s.maxRows
		req = &capped
	}
	return s.searcher.Select(ctx, entityType, req, nil, s.checker), nil
}
