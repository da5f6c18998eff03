package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/target/bulkmove/config"
	"github.com/target/bulkmove/internal/adapters/jobrunner"
	"github.com/target/bulkmove/internal/adapters/taskqueue"
	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/data"
	"github.com/target/bulkmove/internal/observability/notify/pagerduty"
	"github.com/target/bulkmove/internal/observability/notify/slack"
	"github.com/target/bulkmove/internal/observability/statsd"
	"github.com/target/bulkmove/internal/service"
	"github.com/target/bulkmove/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Transfers  *service.TransferService
	Runner     *service.TransferRunner
	Ledger     core.TransferLedger
	Dispatcher core.Dispatcher

	// Pool is set when jobs run in this process.
	Pool *jobrunner.Pool
	// Queue is set when jobs are handed to the Redis task queue.
	Queue *asynq.Client

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.NotificationsConfig
}

// Sink returns the metrics sink, or nil when metrics are disabled.
//
//nolint:ireturn // callers accept the Sink port; nil disables emission.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires the store, ledger, runner, dispatcher and launcher.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	obs := buildObservability(logger, cfg.Observability)

	ledger, err := NewLedger(cfg, deps.DB, deps.RedisClient, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	store := data.NewMembershipRepo(deps.DB, data.MembershipRepoOptions{Logger: logger})
	writer, err := service.NewBatchWriter(service.BatchWriterOptions{
		Store:   store,
		Metrics: obs.Sink(),
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create batch writer: %w", err)
	}

	runner, err := service.NewTransferRunner(service.TransferRunnerOptions{
		Ledger:  ledger,
		Members: store,
		Writer:  writer,
		Config: service.RunnerConfig{
			BatchSize:  cfg.Transfer.BatchSize,
			BatchDelay: cfg.Transfer.BatchDelay,
		},
		Metrics:  obs.Sink(),
		Notifier: obs.FailureNotifier,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create transfer runner: %w", err)
	}

	container := ServiceContainer{
		Runner:        runner,
		Ledger:        ledger,
		Observability: obs,
	}
	if err := attachDispatcher(&container, cfg, logger); err != nil {
		return ServiceContainer{}, err
	}

	transfers, err := service.NewTransferService(service.TransferServiceOptions{
		Store:      store,
		Ledger:     ledger,
		Dispatcher: container.Dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create transfer service: %w", err)
	}
	container.Transfers = transfers

	return container, nil
}

// Close releases clients owned by the container.
func (c *ServiceContainer) Close() error {
	var errs []error
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close task queue client: %w", err))
		}
	}
	if err := c.Observability.MetricsSink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close statsd client: %w", err))
	}
	return errors.Join(errs...)
}

// NewLedger opens the transfer ledger selected by TRANSFER_LEDGER.
//
//nolint:ireturn // the ledger backend is chosen at runtime.
func NewLedger(
	cfg *config.AppConfig,
	db *sql.DB,
	rdb redis.UniversalClient,
	logger *slog.Logger,
) (core.TransferLedger, error) {
	switch cfg.Transfer.Ledger {
	case config.LedgerMemory:
		logger.Warn("using in-memory transfer ledger; jobs will not survive a restart")
		return data.NewMemoryLedger(nil), nil
	case config.LedgerRedis:
		if rdb == nil {
			return nil, errors.New("TRANSFER_LEDGER=redis requires a redis connection")
		}
		return data.NewRedisLedger(rdb, data.RedisLedgerOptions{Prefix: cfg.Redis.KeyPrefix}), nil
	case config.LedgerPostgres, "":
		return data.NewTransferJobRepo(db, data.RepoConfig{Logger: logger}), nil
	default:
		return nil, fmt.Errorf("unknown transfer ledger %q", cfg.Transfer.Ledger)
	}
}

func attachDispatcher(c *ServiceContainer, cfg *config.AppConfig, logger *slog.Logger) error {
	switch cfg.Transfer.Dispatcher {
	case config.DispatcherQueue:
		connOpt, err := asynqRedisOpt(cfg.Redis)
		if err != nil {
			return err
		}
		client := asynq.NewClient(connOpt)
		dispatcher, err := taskqueue.NewDispatcher(taskqueue.DispatcherOptions{
			Client:   client,
			Queue:    cfg.Transfer.QueueName,
			MaxRetry: cfg.Transfer.MaxRetry,
			Logger:   logger,
		})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("create task queue dispatcher: %w", err)
		}
		c.Queue = client
		c.Dispatcher = dispatcher
	default:
		pool, err := jobrunner.NewPool(jobrunner.PoolOptions{
			Runner:      c.Runner,
			Concurrency: cfg.Transfer.Concurrency,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("create transfer pool: %w", err)
		}
		c.Pool = pool
		c.Dispatcher = pool
	}
	return nil
}

// asynqRedisOpt maps the shared Redis settings onto the task queue's connection options.
//
//nolint:ireturn // asynq picks the client type from the concrete option.
func asynqRedisOpt(cfg config.RedisConfig) (asynq.RedisConnOpt, error) {
	if cfg.UseSentinel {
		nodes := normalizeAddrs(cfg.SentinelNodes)
		if len(nodes) == 0 {
			return nil, errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		return asynq.RedisFailoverClientOpt{
			MasterName:       cfg.SentinelMasterName,
			SentinelAddrs:    nodes,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
		}, nil
	}

	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.NotificationsConfig) *failurenotifier.Service {
	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled() {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled() {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	svc := failurenotifier.NewService(failurenotifier.Options{
		Logger: logger,
		Sinks:  sinks,
	})
	if svc.Enabled() {
		logger.Info("transfer failure notifications enabled", "sinks", svc.SinkNames())
	}
	return svc
}
