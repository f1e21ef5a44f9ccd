package splitter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sbtplatform/quote-splitter/internal/events"
)

type dProcessor interface {
	Process(ctx context.Context, blobPath string) error
}

// Pool fans a list of quote paths out across a fixed number of workers.
//
// Each worker pulls the next unprocessed path from a shared queue and runs
// the processor synchronously. An item-level error is reported and the worker
// moves on; a worker never stops the pool.
type Pool struct {
	proc  dProcessor
	sink  events.Sink
	count int
}

// NewPool creates a worker pool running count concurrent workers.
func NewPool(proc dProcessor, sink events.Sink, count int) (*Pool, error) {
	if proc == nil || sink == nil {
		return nil, fmt.Errorf("processor and sink must be set")
	}
	if count < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", count)
	}

	return &Pool{
		proc:  proc,
		sink:  sink,
		count: count,
	}, nil
}

// Run processes every path in blobPaths and blocks until the queue is drained
// and all workers have returned.
//
// The only returned error is the context error when the run is canceled
// mid-drain; item-level failures surface as events, not as an error.
func (p *Pool) Run(ctx context.Context, blobPaths []string) error {
	queue := make(chan string)

	var wg sync.WaitGroup
	for i := 0; i < p.count; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, worker, queue)
		}(i)
	}

	err := func() error {
		defer close(queue)
		for _, blobPath := range blobPaths {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case queue <- blobPath:
			}
		}
		return nil
	}()

	wg.Wait()
	return err
}

func (p *Pool) work(ctx context.Context, worker int, queue <-chan string) {
	for blobPath := range queue {
		select {
		case <-ctx.Done():
			// Keep draining so the dispatcher never blocks; items are dropped.
			continue
		default:
		}

		slog.Debug("Processing quote", "worker", worker, "blob", blobPath)
		if err := p.proc.Process(ctx, blobPath); err != nil {
			p.sink.Emit(ctx, events.BlobProcessingFail, map[string]string{
				"blob_name": blobPath,
				"error_msg": err.Error(),
			})
			slog.Warn("Failed to process quote", "worker", worker, "blob", blobPath, "err", err)
			continue
		}
		slog.Info("Finished processing quote", "worker", worker, "blob", blobPath)
	}
}
