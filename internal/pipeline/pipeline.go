// Package pipeline orchestrates a splitter run: list the source prefix,
// filter eligible quotes and drain them through the worker pool.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sbtplatform/quote-splitter/internal/blobstore"
	"github.com/sbtplatform/quote-splitter/internal/constants"
	"github.com/sbtplatform/quote-splitter/internal/events"
	"github.com/sbtplatform/quote-splitter/internal/quote"
	"github.com/sbtplatform/quote-splitter/internal/splitter"
)

type rules interface {
	KeyField() string
	ExtractObjects() []string
}

// Runner executes complete pipeline runs over a blob store.
type Runner struct {
	store blobstore.Store
	sink  events.Sink
	rules rules

	workers      int
	splitterOpts []splitter.Options
}

type options struct {
	workers      int
	splitterOpts []splitter.Options
}

// Options represents an optional function to override Runner default values.
type Options func(*options)

// WithWorkers overrides the number of concurrent workers.
func WithWorkers(count int) Options {
	return func(o *options) {
		o.workers = count
	}
}

// WithSplitterOptions forwards options to the per-quote processor.
func WithSplitterOptions(opts ...splitter.Options) Options {
	return func(o *options) {
		o.splitterOpts = append(o.splitterOpts, opts...)
	}
}

// New creates a new Runner instance.
func New(store blobstore.Store, sink events.Sink, r rules, args ...Options) (*Runner, error) {
	if store == nil || sink == nil || r == nil {
		return nil, fmt.Errorf("store, sink and rules must be set")
	}

	opts := options{
		workers: constants.DefaultWorkerCount,
	}
	for _, opt := range args {
		opt(&opts)
	}
	if opts.workers < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", opts.workers)
	}

	return &Runner{
		store:        store,
		sink:         sink,
		rules:        r,
		workers:      opts.workers,
		splitterOpts: opts.splitterOpts,
	}, nil
}

// Run performs one complete pipeline run and returns once the queue is
// drained and all workers have finished.
//
// Every event emitted during the run carries the same run id. Item-level
// failures are reported as events and do not fail the run; only a listing
// failure or cancellation does.
func (r *Runner) Run(ctx context.Context) error {
	sink := &runSink{next: r.sink, runID: uuid.NewString()}

	sink.Emit(ctx, events.Start, map[string]string{
		"message": "Starting " + constants.CmdName + " run",
	})

	paths, err := r.store.List(ctx, "")
	if err != nil {
		sink.Emit(ctx, events.GeneralError, map[string]string{
			"unit":      "list",
			"error_msg": err.Error(),
		})
		return fmt.Errorf("failed to list source prefix: %w", err)
	}

	extractObjects := r.rules.ExtractObjects()
	eligible := make([]string, 0, len(paths))
	for _, blobPath := range paths {
		ok, reason := quote.Eligible(blobPath, extractObjects)
		if !ok {
			slog.Debug("Skipping blob", "blob", blobPath, "reason", reason)
			continue
		}
		eligible = append(eligible, blobPath)
	}
	slog.Info("Listed source prefix", "total", len(paths), "eligible", len(eligible))

	proc, err := splitter.New(r.store, sink, r.rules, r.splitterOpts...)
	if err != nil {
		return fmt.Errorf("failed to create processor: %v", err)
	}
	pool, err := splitter.NewPool(proc, sink, r.workers)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %v", err)
	}

	if err := pool.Run(ctx, eligible); err != nil {
		return fmt.Errorf("pipeline run interrupted: %w", err)
	}

	slog.Info("Pipeline run drained", "processed", len(eligible))
	return nil
}

// runSink stamps the run id on every event of a single run.
type runSink struct {
	next  events.Sink
	runID string
}

func (s *runSink) Emit(ctx context.Context, event string, props map[string]string) {
	stamped := make(map[string]string, len(props)+1)
	for k, v := range props {
		stamped[k] = v
	}
	stamped["run_id"] = s.runID
	s.next.Emit(ctx, event, stamped)
}
