// Package indexsync keeps full-text indexes in step with the relational
// store: Follower applies change events to a local replica and Source feeds
// full rebuilds.
package indexsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alfredjeanlab/kquery/internal/events"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// Writer receives indexed entities.
type Writer interface {
	Put(entityType string, e model.Entity) error
}

// Follower consumes change events and writes the entities they carry to an
// index.
type Follower struct {
	sub    events.Subscriber
	index  Writer
	logger *slog.Logger

	applied atomic.Int64
	failed  atomic.Int64
}

// NewFollower creates a follower reading from sub and writing to index.
func NewFollower(sub events.Subscriber, index Writer, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	return &Follower{sub: sub, index: index, logger: logger}
}

// Run subscribes to every change topic and applies messages until ctx is
// done or the subscription closes. Undecodable messages and index failures
// are logged and counted, never fatal.
func (f *Follower) Run(ctx context.Context) error {
	ch, cancel, err := f.sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribe to changes: %w", err)
	}
	defer cancel()

	f.logger.Info("following changes", "topic", events.TopicAll)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.Apply(msg)
		}
	}
}

// Apply indexes the entities carried by one message.
func (f *Follower) Apply(msg events.Message) {
	change, err := events.Decode(msg)
	if err != nil {
		f.failed.Add(1)
		f.logger.Warn("skipping change event", "subject", msg.Subject, "err", err)
		return
	}
	for entityType, entities := range change.Entities {
		for _, e := range entities {
			if err := f.index.Put(entityType, e); err != nil {
				f.failed.Add(1)
				f.logger.Warn("indexing change failed", "subject", msg.Subject, "entity", entityType, "id", e.EntityID(), "err", err)
				continue
			}
			f.applied.Add(1)
		}
	}
}

// Stats returns how many entities were indexed and how many changes failed.
func (f *Follower) Stats() (applied, failed int64) {
	return f.applied.Load(), f.failed.Load()
}
