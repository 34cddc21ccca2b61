package indexer

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is how often the background runner checks whether a
// pass is due.
const DefaultPollInterval = time.Minute

// Runner drives the indexer in a background goroutine: it polls
// NeedsReindex and runs ClassifyAndIndex passes until the backlog drains.
type Runner struct {
	indexer      *Indexer
	pollInterval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	err     error
}

// NewRunner creates a background runner for the indexer.
func NewRunner(ix *Indexer, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Runner{
		indexer:      ix,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// IsRunning reports whether the runner's goroutine is active.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches the background loop. Non-blocking; use Stop or Wait.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.run(ctx)
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.doneCh)
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if err := r.pass(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.indexer.logger.Error("background indexing pass failed", "error", err)
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pass runs ClassifyAndIndex passes while a reindex is due, draining the
// backlog batch by batch.
func (r *Runner) pass(ctx context.Context) error {
	for {
		due, reason, err := r.indexer.NeedsReindex(ctx)
		if err != nil {
			return err
		}
		if !due {
			return nil
		}

		r.indexer.logger.Debug("reindex due", "reason", reason)
		result, err := r.indexer.ClassifyAndIndex(ctx, 0)
		if err != nil {
			return err
		}
		if result.Processed == 0 {
			return nil
		}
	}
}

// Stop signals the runner to stop and waits for it to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// Wait blocks until the runner exits and returns the last pass error.
func (r *Runner) Wait() error {
	<-r.doneCh
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
