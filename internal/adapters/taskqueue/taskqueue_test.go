package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	apperrors "github.com/target/bulkmove/internal/errors"
	"github.com/target/bulkmove/internal/mocks"
	"github.com/target/bulkmove/internal/testutil"
)

type fakeEnqueuer struct {
	task *asynq.Task
	opts []asynq.Option
	err  error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.task, f.opts = task, opts
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "id", Queue: "transfers"}, nil
}

func TestNewDispatcher_RequiresClient(t *testing.T) {
	_, err := NewDispatcher(DispatcherOptions{})
	require.Error(t, err)
}

func TestDispatcher_EnqueuesPayload(t *testing.T) {
	fake := &fakeEnqueuer{}
	d, err := NewDispatcher(DispatcherOptions{Client: fake})
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), "job-1"))

	require.NotNil(t, fake.task)
	assert.Equal(t, TypeRunTransfer, fake.task.Type())
	var p Payload
	require.NoError(t, json.Unmarshal(fake.task.Payload(), &p))
	assert.Equal(t, "job-1", p.JobID)
	assert.Len(t, fake.opts, 3)
}

func TestDispatcher_DuplicateEnqueueIsHarmless(t *testing.T) {
	d, err := NewDispatcher(DispatcherOptions{Client: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(context.Background(), "job-1"))
}

func TestDispatcher_EnqueueError(t *testing.T) {
	d, err := NewDispatcher(DispatcherOptions{Client: &fakeEnqueuer{err: errors.New("redis down")}})
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestHandler_RunsJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockJobRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), "job-7").Return(nil)

	task, err := NewRunTransferTask("job-7")
	require.NoError(t, err)
	require.NoError(t, NewHandler(runner, nil).ProcessTask(context.Background(), task))
}

func TestHandler_SkipsRetryForBadPayloadAndUnknownJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockJobRunner(ctrl)
	h := NewHandler(runner, nil)

	err := h.ProcessTask(context.Background(), asynq.NewTask(TypeRunTransfer, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeRunTransfer, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	runner.EXPECT().Run(gomock.Any(), "gone").Return(apperrors.NotFound("transfer job gone not found"))
	task, err := NewRunTransferTask("gone")
	require.NoError(t, err)
	err = h.ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestHandler_PropagatesRunErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockJobRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), "job-1").Return(errors.New("ledger unavailable"))

	task, err := NewRunTransferTask("job-1")
	require.NoError(t, err)
	err = NewHandler(runner, nil).ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestDispatcherAndServer_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })
	opt := asynq.RedisClientOpt{Addr: client.Options().Addr, DB: client.Options().DB}

	ac := asynq.NewClient(opt)
	t.Cleanup(func() { _ = ac.Close() })
	d, err := NewDispatcher(DispatcherOptions{Client: ac, Queue: "transfers-test"})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(context.Background(), "job-redis"))
	require.NoError(t, d.Dispatch(context.Background(), "job-redis"))

	insp := asynq.NewInspector(opt)
	t.Cleanup(func() { _ = insp.Close() })
	info, err := insp.GetTaskInfo("transfers-test", "job-redis")
	require.NoError(t, err)
	assert.Equal(t, TypeRunTransfer, info.Type)

	ran := make(chan string, 1)
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockJobRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), "job-redis").DoAndReturn(func(_ context.Context, id string) error {
		ran <- id
		return nil
	})

	srv := NewServer(ServerOptions{Redis: opt, Queue: "transfers-test", Concurrency: 1}, NewHandler(runner, nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case id := <-ran:
		assert.Equal(t, "job-redis", id)
	case <-time.After(10 * time.Second):
		t.Fatal("task was not processed")
	}
	cancel()
	require.NoError(t, <-done)
}
