// Package taskqueue dispatches transfer jobs through asynq so runners can live in separate worker processes.
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/target/bulkmove/internal/core"
	apperrors "github.com/target/bulkmove/internal/errors"
)

const (
	// TypeRunTransfer is the asynq task type for running one transfer job.
	TypeRunTransfer = "transfer:run"
	// DefaultQueue is used when no queue name is configured.
	DefaultQueue = "transfers"
	// DefaultMaxRetry bounds redelivery; a redelivered job that is no longer queued is skipped by the runner.
	DefaultMaxRetry = 3
)

// Payload is the task body.
type Payload struct {
	JobID string `json:"job_id"`
}

// NewRunTransferTask builds the task for jobID.
func NewRunTransferTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(Payload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeRunTransfer, data), nil
}

// enqueuer is the subset of *asynq.Client used by Dispatcher.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Client   enqueuer // Required; usually *asynq.Client
	Queue    string
	MaxRetry int
	Logger   *slog.Logger
}

// Dispatcher enqueues transfer jobs on Redis.
type Dispatcher struct {
	client   enqueuer
	queue    string
	maxRetry int
	logger   *slog.Logger
}

var _ core.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Client == nil {
		return nil, errors.New("asynq client is required")
	}
	queue := opts.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	retry := opts.MaxRetry
	if retry <= 0 {
		retry = DefaultMaxRetry
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:   opts.Client,
		queue:    queue,
		maxRetry: retry,
		logger:   logger.With("component", "transfer_dispatcher"),
	}, nil
}

// Dispatch enqueues the job using its id as the task id, so enqueueing the same job twice is harmless.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID string) error {
	task, err := NewRunTransferTask(jobID)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.queue),
		asynq.TaskID(jobID),
		asynq.MaxRetry(d.maxRetry),
	)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		d.logger.DebugContext(ctx, "transfer already enqueued", "job_id", jobID)
		return nil
	case err != nil:
		return fmt.Errorf("enqueue transfer task: %w", err)
	}
	d.logger.DebugContext(ctx, "transfer enqueued", "job_id", jobID, "queue", info.Queue)
	return nil
}

// Handler runs transfer tasks delivered by an asynq server.
type Handler struct {
	runner core.JobRunner
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(runner core.JobRunner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, logger: logger.With("component", "transfer_worker")}
}

// Mux registers the handler for TypeRunTransfer.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRunTransfer, h.ProcessTask)
	return mux
}

// ProcessTask decodes the payload and runs the job. Malformed payloads and unknown jobs are not retried.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.JobID == "" {
		return fmt.Errorf("decode transfer payload: %w", errors.Join(err, asynq.SkipRetry))
	}

	start := time.Now()
	err := h.runner.Run(ctx, p.JobID)
	switch {
	case err == nil:
		h.logger.DebugContext(ctx, "transfer task done", "job_id", p.JobID, "duration", time.Since(start))
		return nil
	case apperrors.IsNotFound(err):
		h.logger.WarnContext(ctx, "transfer task for unknown job", "job_id", p.JobID)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Redis           asynq.RedisConnOpt
	Queue           string
	Concurrency     int
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server consumes transfer tasks until its context ends.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewServer builds an asynq server bound to handler.
func NewServer(opts ServerOptions, handler *Handler) *Server {
	queue := opts.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := asynq.NewServer(opts.Redis, asynq.Config{
		Concurrency:     max(opts.Concurrency, 1),
		Queues:          map[string]int{queue: 1},
		ShutdownTimeout: opts.ShutdownTimeout,
		Logger:          slogAdapter{logger.With("component", "asynq")},
	})
	return &Server{srv: srv, mux: handler.Mux()}
}

// Run starts processing and blocks until ctx is done, then drains in-flight tasks.
func (s *Server) Run(ctx context.Context) error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start transfer worker: %w", err)
	}
	<-ctx.Done()
	s.srv.Shutdown()
	return nil
}

// slogAdapter satisfies asynq.Logger.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...any) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
