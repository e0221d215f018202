package server

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/kquery/internal/access"
	"github.com/alfredjeanlab/kquery/internal/events"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/search"
	"github.com/alfredjeanlab/kquery/internal/store"
)

// Indexer receives entities written through the server so full-text search
// sees them without waiting for a rebuild.
type Indexer interface {
	Put(entityType string, e model.Entity) error
}

// Server serves searches and the bead write path over HTTP and gRPC.
type Server struct {
	store     store.Store
	searcher  *search.Searcher
	index     Indexer
	publisher events.Publisher
	checker   access.Checker
	maxRows   int
}

// Option configures a Server.
type Option func(*Server)

// WithChecker replaces the default access policy.
func WithChecker(c access.Checker) Option { return func(s *Server) { s.checker = c } }

// WithMaxRows caps search requests that carry no cap of their own.
func WithMaxRows(n int) Option { return func(s *Server) { s.maxRows = n } }

// New returns a Server. index and publisher may be nil.
func New(st store.Store, searcher *search.Searcher, index Indexer, publisher events.Publisher, opts ...Option) *Server {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	s := &Server{
		store:     st,
		searcher:  searcher,
		index:     index,
		publisher: publisher,
		checker:   access.Policy{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// publish emits an event. Failures are logged but do not block the caller.
func (s *Server) publish(ctx context.Context, topic, id string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "id", id, "error", err)
	}
}

// reindex writes entities to the local full-text index. Failures are logged;
// the next rebuild repairs the index.
func (s *Server) reindex(entityType string, entities ...model.Entity) {
	if s.index == nil {
		return
	}
	for _, e := range entities {
		if err := s.index.Put(entityType, e); err != nil {
			slog.Warn("failed to index entity", "entity", entityType, "id", e.EntityID(), "error", err)
		}
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// actor names the caller for audit entries.
func actor(ctx context.Context) string {
	if p, ok := access.FromContext(ctx); ok && p.User != "" {
		return p.User
	}
	return "anonymous"
}

// grpcError maps an operation error to a gRPC status.
func grpcError(err error) error {
	var ie inputError
	switch {
	case errors.As(err, &ie):
		return status.Error(codes.InvalidArgument, ie.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Errorf(codes.Internal, "%v", err)
}
