// Package jobrunner runs transfer jobs on a bounded pool of in-process workers.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/target/bulkmove/internal/core"
)

// ErrPoolClosed is returned by Dispatch after Shutdown has begun.
var ErrPoolClosed = errors.New("job pool is shutting down")

// PoolOptions configures a Pool.
type PoolOptions struct {
	Runner      core.JobRunner // Required
	Concurrency int            // Jobs running at once; defaults to 4
	Logger      *slog.Logger
}

// Pool dispatches each job onto its own goroutine and bounds how many run at once.
// Jobs waiting for a slot stay queued in the ledger.
type Pool struct {
	runner  core.JobRunner
	sem     *semaphore.Weighted
	workers int
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	running int
}

var _ core.Dispatcher = (*Pool)(nil)

// NewPool constructs a Pool.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.Runner == nil {
		return nil, errors.New("JobRunner is required")
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		runner:  opts.Runner,
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
		logger:  logger.With("component", "transfer_pool"),
		ctx:     ctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
	}, nil
}

// Dispatch schedules the job and returns immediately. The job runs under the pool's own context,
// never the caller's.
func (p *Pool) Dispatch(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.wg.Add(1)
	go p.run(jobID)
	return nil
}

func (p *Pool) run(jobID string) {
	defer p.wg.Done()
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		p.logger.Warn("transfer left queued at shutdown", "job_id", jobID)
		return
	}
	defer p.sem.Release(1)
	select {
	case <-p.stop:
		p.logger.Warn("transfer left queued at shutdown", "job_id", jobID)
		return
	default:
	}

	p.track(1)
	defer p.track(-1)

	start := time.Now()
	if err := p.runner.Run(p.ctx, jobID); err != nil {
		p.logger.Error("transfer run error", "job_id", jobID, "duration", time.Since(start), "error", err)
		return
	}
	p.logger.Debug("transfer run finished", "job_id", jobID, "duration", time.Since(start))
}

func (p *Pool) track(delta int) {
	p.mu.Lock()
	p.running += delta
	p.mu.Unlock()
}

// Running reports how many jobs currently hold a worker slot.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Run blocks until ctx is done, then shuts the pool down allowing in-flight jobs up to grace.
func (p *Pool) Run(ctx context.Context, grace time.Duration) error {
	p.logger.InfoContext(ctx, "transfer pool started", "concurrency", p.workers)
	<-ctx.Done()

	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return p.Shutdown(sctx)
}

// Shutdown stops accepting jobs and waits for in-flight ones. When ctx expires first, running jobs
// are cancelled (and record themselves as failed) and Shutdown waits for them to return.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.stop)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.logger.Warn("shutdown timeout reached; cancelling running transfers", "running", p.Running())
		p.cancel()
		<-done
		return fmt.Errorf("transfer pool shutdown: %w", ctx.Err())
	}
}
