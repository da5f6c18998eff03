package jobrunner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context, jobID string) error

func (f runnerFunc) Run(ctx context.Context, jobID string) error { return f(ctx, jobID) }

func TestNewPool_RequiresRunner(t *testing.T) {
	_, err := NewPool(PoolOptions{})
	require.Error(t, err)
}

func TestPool_DispatchDoesNotWait(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 1)
	pool, err := NewPool(PoolOptions{Runner: runnerFunc(func(_ context.Context, id string) error {
		started <- id
		<-release
		return nil
	})})
	require.NoError(t, err)

	require.NoError(t, pool.Dispatch(context.Background(), "job-1"))
	select {
	case id := <-started:
		assert.Equal(t, "job-1", id)
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}

	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPool_RunsUnderPoolContextNotCaller(t *testing.T) {
	errCh := make(chan error, 1)
	pool, err := NewPool(PoolOptions{Runner: runnerFunc(func(ctx context.Context, _ string) error {
		time.Sleep(20 * time.Millisecond)
		errCh <- ctx.Err()
		return nil
	})})
	require.NoError(t, err)

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Dispatch(reqCtx, "job-1"))
	cancel()

	require.NoError(t, <-errCh)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPool_BoundsConcurrency(t *testing.T) {
	var (
		current atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	wg.Add(10)
	pool, err := NewPool(PoolOptions{Concurrency: 3, Runner: runnerFunc(func(context.Context, string) error {
		defer wg.Done()
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return errors.New("logged only")
	})})
	require.NoError(t, err)

	for range 10 {
		require.NoError(t, pool.Dispatch(context.Background(), "job"))
	}
	wg.Wait()
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestPool_ShutdownRejectsNewJobs(t *testing.T) {
	pool, err := NewPool(PoolOptions{Runner: runnerFunc(func(context.Context, string) error { return nil })})
	require.NoError(t, err)

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.ErrorIs(t, pool.Dispatch(context.Background(), "late"), ErrPoolClosed)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPool_ShutdownTimeoutCancelsRunningJobs(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	pool, err := NewPool(PoolOptions{Runner: runnerFunc(func(ctx context.Context, _ string) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})})
	require.NoError(t, err)

	require.NoError(t, pool.Dispatch(context.Background(), "long"))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = pool.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cancelled:
	default:
		t.Fatal("running job was not cancelled")
	}
}

func TestPool_WaitingJobsStayQueuedOnShutdown(t *testing.T) {
	release := make(chan struct{})
	var ran atomic.Int32
	pool, err := NewPool(PoolOptions{Concurrency: 1, Runner: runnerFunc(func(context.Context, string) error {
		ran.Add(1)
		<-release
		return nil
	})})
	require.NoError(t, err)

	require.NoError(t, pool.Dispatch(context.Background(), "first"))
	require.Eventually(t, func() bool { return pool.Running() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, pool.Dispatch(context.Background(), "second"))

	done := make(chan error, 1)
	go func() { done <- pool.Shutdown(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, int32(1), ran.Load())
}

func TestPool_RunShutsDownWhenContextEnds(t *testing.T) {
	pool, err := NewPool(PoolOptions{Runner: runnerFunc(func(context.Context, string) error { return nil })})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, pool.Run(ctx, time.Second))
	assert.ErrorIs(t, pool.Dispatch(context.Background(), "x"), ErrPoolClosed)
}
