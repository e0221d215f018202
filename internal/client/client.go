// Package client talks to a remote kquery server over HTTP/JSON or gRPC.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// Searcher is the subset of a remote server the search command needs. It is
// implemented by HTTPClient and GRPCClient.
type Searcher interface {
	Search(ctx context.Context, entity string, req *filter.Request) (*SearchResponse, error)
	Close() error
}

// SearchResponse is one page of search results. Results stay raw so callers
// can decode them into the entity type they asked for.
type SearchResponse struct {
	Entity  string            `json:"entity"`
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
}

// Beads decodes Results as beads.
func (r *SearchResponse) Beads() ([]*model.Bead, error) {
	out := make([]*model.Bead, 0, len(r.Results))
	for _, raw := range r.Results {
		var b model.Bead
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, nil
}

// Principal names the caller forwarded to the server.
type Principal struct {
	User  string
	Roles []string
}

// CreateBeadRequest holds parameters for creating a bead.
type CreateBeadRequest struct {
	Title       string          `json:"title"`
	Kind        string          `json:"kind,omitempty"`
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Priority    int             `json:"priority"`
	Assignee    string          `json:"assignee,omitempty"`
	Owner       string          `json:"owner,omitempty"`
	Parent      string          `json:"parent_id,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
	Fields      json.RawMessage `json:"fields,omitempty"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
}

// UpdateBeadRequest holds optional parameters for updating a bead.
// Nil pointer fields mean "don't change".
type UpdateBeadRequest struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Status      *string         `json:"status,omitempty"`
	Priority    *int            `json:"priority,omitempty"`
	Assignee    *string         `json:"assignee,omitempty"`
	Owner       *string         `json:"owner,omitempty"`
	Labels      *[]string       `json:"labels,omitempty"`
	Fields      json.RawMessage `json:"fields,omitempty"`
}
