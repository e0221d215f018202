package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/kquery/internal/access"
	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
	"github.com/alfredjeanlab/kquery/internal/search"
)

// Selecter runs a search request.
type Selecter interface {
	Select(ctx context.Context, entityType string, req *filter.Request, custom []search.ResultFilter, checker access.Checker) []model.Entity
}

// Scheduler runs jobs periodically and writes their results to every
// destination.
type Scheduler struct {
	searcher     Selecter
	checker      access.Checker
	jobs         []Job
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. Jobs run with the permissions of checker.
func NewScheduler(s Selecter, checker access.Checker, jobs []Job, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		searcher:     s,
		checker:      checker,
		jobs:         jobs,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic export. It runs every job immediately, then on each
// tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current run (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	_ = s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job once. Failures are logged and joined; one failing
// job or destination does not stop the rest.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if err := s.runJob(ctx, job); err != nil {
			s.logger.Error("export job failed", "job", job.Name, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	start := time.Now()
	req := job.Request
	page := s.searcher.Select(ctx, job.Entity, &req, nil, s.checker)

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, job, page); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	data := buf.Bytes()

	var errs []error
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, job.Name, data); err != nil {
			errs = append(errs, fmt.Errorf("job %s destination %d: %w", job.Name, i, err))
		}
	}
	s.logger.Info("export completed", "job", job.Name, "rows", len(page),
		"destinations", len(s.destinations), "bytes", len(data), "took", time.Since(start))
	return errors.Join(errs...)
}
