package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/bulkmove/config"
	"github.com/target/bulkmove/internal/data"
	"github.com/target/bulkmove/internal/domain/model"
	"github.com/target/bulkmove/internal/mocks"
	"github.com/target/bulkmove/internal/observability/statsd"
)

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, jobID)
	return nil
}

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:       time.Minute,
		QueuedMaxAge:   10 * time.Minute,
		RunningMaxAge:  15 * time.Minute,
		FinishedMaxAge: time.Hour,
		BatchSize:      100,
	}
}

func createQueued(t *testing.T, ledger *data.MemoryLedger, id string) {
	t.Helper()
	require.NoError(t, ledger.Create(context.Background(), &model.TransferJob{
		ID:                 id,
		TargetCollectionID: targetColl,
		Mode:               model.TransferModeSubset,
		CompanyIDs:         []int64{1},
		Total:              1,
		Status:             model.TransferStatusQueued,
	}))
}

func TestNewReaperService(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})
	require.Error(t, err)

	_, err = NewReaperService(ReaperServiceOptions{Ledger: data.NewMemoryLedger(nil)})
	require.Error(t, err)

	svc, err := NewReaperService(ReaperServiceOptions{
		Ledger: data.NewMemoryLedger(nil),
		Config: testReaperConfig(),
		Logger: slog.Default(),
	})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestReaperService_RunOnce(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := data.NewFixedTimeProvider(t0)
	ledger := data.NewMemoryLedger(clock)

	createQueued(t, ledger, "stale-queued")
	createQueued(t, ledger, "stale-cancelled")
	require.NoError(t, ledger.RequestCancel(ctx, "stale-cancelled"))
	createQueued(t, ledger, "stale-running")
	require.NoError(t, ledger.MarkRunning(ctx, "stale-running", 1))
	createQueued(t, ledger, "old-done")
	require.NoError(t, ledger.MarkRunning(ctx, "old-done", 1))
	require.NoError(t, ledger.SetStatus(ctx, "old-done", model.StatusUpdate{Status: model.TransferStatusCompleted}))

	clock.AddTime(2 * time.Hour)
	createQueued(t, ledger, "fresh-queued")
	createQueued(t, ledger, "fresh-running")
	require.NoError(t, ledger.MarkRunning(ctx, "fresh-running", 1))

	dispatcher := &recordingDispatcher{}
	rec := &statsd.Recorder{}
	svc, err := NewReaperService(ReaperServiceOptions{
		Ledger:     ledger,
		Dispatcher: dispatcher,
		Config:     testReaperConfig(),
		Metrics:    rec,
		Now:        clock.Now,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunOnce(ctx))

	assert.Equal(t, []string{"stale-queued"}, dispatcher.ids)

	status := func(id string) model.TransferStatus {
		job, err := ledger.Get(ctx, id)
		require.NoError(t, err)
		return job.Status
	}
	assert.Equal(t, model.TransferStatusQueued, status("stale-queued"))
	assert.Equal(t, model.TransferStatusCancelled, status("stale-cancelled"))
	assert.Equal(t, model.TransferStatusFailed, status("stale-running"))
	assert.Equal(t, model.TransferStatusQueued, status("fresh-queued"))
	assert.Equal(t, model.TransferStatusRunning, status("fresh-running"))

	failed, err := ledger.Get(ctx, "stale-running")
	require.NoError(t, err)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "no progress since 2026-03-01T12:00:00Z")

	_, err = ledger.Get(ctx, "old-done")
	require.Error(t, err, "finished job past retention should be pruned")

	ops := rec.Named("reaper.cleanup_operation")
	require.Len(t, ops, 3)
	for _, m := range ops {
		assert.Equal(t, "success", m.Tags["result"], m.Tags["operation"])
	}
	processed := map[string]float64{}
	for _, m := range rec.Named("reaper.jobs_processed") {
		processed[m.Tags["operation"]] = m.Value
	}
	assert.Equal(t, map[string]float64{
		"redispatch_queued": 2,
		"fail_running":      1,
		"prune_finished":    1,
	}, processed)
	assert.Len(t, rec.Named("reaper.last_success_epoch"), 1)
}

func TestReaperService_RunOnceWithoutDispatcherLeavesQueuedJobs(t *testing.T) {
	ctx := context.Background()
	clock := data.NewFixedTimeProvider(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ledger := data.NewMemoryLedger(clock)
	createQueued(t, ledger, "q")
	clock.AddTime(time.Hour)

	svc, err := NewReaperService(ReaperServiceOptions{Ledger: ledger, Config: testReaperConfig(), Now: clock.Now})
	require.NoError(t, err)
	require.NoError(t, svc.RunOnce(ctx))

	job, err := ledger.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusQueued, job.Status)
}

func TestReaperService_RedispatchesStaleJobsBehindFreshBacklog(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := data.NewFixedTimeProvider(t0)
	ledger := data.NewMemoryLedger(clock)

	stale := []string{"stale-1", "stale-2", "stale-3"}
	for _, id := range stale {
		createQueued(t, ledger, id)
		clock.AddTime(time.Second)
	}
	clock.SetTime(t0.Add(time.Hour))
	for i := 0; i < 100; i++ {
		createQueued(t, ledger, fmt.Sprintf("fresh-%03d", i))
	}

	cfg := testReaperConfig()
	cfg.BatchSize = 100
	dispatcher := &recordingDispatcher{}
	svc, err := NewReaperService(ReaperServiceOptions{
		Ledger:     ledger,
		Dispatcher: dispatcher,
		Config:     cfg,
		Now:        clock.Now,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunOnce(ctx))
	assert.Equal(t, stale, dispatcher.ids)
}

func TestReaperService_StepErrorsDoNotStopOtherSteps(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockTransferLedger(ctrl)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	listErr := errors.New("ledger unavailable")
	ledger.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, listErr).Times(2)
	ledger.EXPECT().Prune(gomock.Any(), now.Add(-time.Hour)).Return(4, nil)

	rec := &statsd.Recorder{}
	svc, err := NewReaperService(ReaperServiceOptions{
		Ledger:     ledger,
		Dispatcher: &recordingDispatcher{},
		Config:     testReaperConfig(),
		Metrics:    rec,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	err = svc.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, listErr)
	assert.Contains(t, err.Error(), "redispatch stale queued jobs")
	assert.Contains(t, err.Error(), "fail stale running jobs")

	results := map[string]string{}
	for _, m := range rec.Named("reaper.cleanup_operation") {
		results[m.Tags["operation"]] = m.Tags["result"]
	}
	assert.Equal(t, map[string]string{
		"redispatch_queued": "error",
		"fail_running":      "error",
		"prune_finished":    "success",
	}, results)
	assert.Empty(t, rec.Named("reaper.last_success_epoch"))
}

func TestReaperService_DispatchFailureIsReported(t *testing.T) {
	ctx := context.Background()
	clock := data.NewFixedTimeProvider(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ledger := data.NewMemoryLedger(clock)
	createQueued(t, ledger, "q")
	clock.AddTime(time.Hour)

	svc, err := NewReaperService(ReaperServiceOptions{
		Ledger:     ledger,
		Dispatcher: &recordingDispatcher{err: errors.New("queue down")},
		Config:     testReaperConfig(),
		Now:        clock.Now,
	})
	require.NoError(t, err)

	err = svc.RunOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job q: queue down")
}

func TestReaperService_Run(t *testing.T) {
	svc, err := NewReaperService(ReaperServiceOptions{
		Ledger: data.NewMemoryLedger(nil),
		Config: testReaperConfig(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
