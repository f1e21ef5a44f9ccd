package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, <-chan error, error)
}

// Service runs the pipeline repeatedly at a fixed interval, reloading the
// split rules whenever their file changes on disk.
//
// This is the long-running deployment mode; a zero interval caller should use
// Runner.Run directly instead.
type Service struct {
	runner   *Runner
	rules    watcher
	interval time.Duration
}

// NewService creates a new interval service around runner.
func NewService(runner *Runner, rules watcher, interval time.Duration) (*Service, error) {
	if runner == nil || rules == nil {
		return nil, fmt.Errorf("runner and rules must be set")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}

	return &Service{
		runner:   runner,
		rules:    rules,
		interval: interval,
	}, nil
}

// Run starts the interval loop. An initial run happens immediately.
//
// This is blocking until the context is canceled or the split rules watcher
// fails irrecoverably. Failed runs are logged and the loop keeps going.
func (s *Service) Run(ctx context.Context) error {
	_, watchErrCh, err := s.rules.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watching split rules: %v", err)
	}

	if err := s.runner.Run(ctx); err != nil {
		slog.Warn("Pipeline run failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received, stopping service")
			return nil

		case err, ok := <-watchErrCh:
			if !ok {
				// The watcher also closes its channels on cancellation.
				if ctx.Err() != nil {
					slog.Info("Shutdown signal received, stopping service")
					return nil
				}
				return fmt.Errorf("split rules watcher closed unexpectedly")
			}
			if err != nil {
				slog.Error("Split rules watcher error", "err", err)
			}

		case <-ticker.C:
			if err := s.runner.Run(ctx); err != nil {
				slog.Warn("Pipeline run failed", "err", err)
			}
		}
	}
}
