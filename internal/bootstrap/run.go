package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/bulkmove/config"
	"github.com/target/bulkmove/internal/adapters/reaper"
	"github.com/target/bulkmove/internal/adapters/taskqueue"
	httpx "github.com/target/bulkmove/internal/http"
)

// ServiceOrchestrationConfig contains dependencies for running services.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the minimum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
	// shutdownSlack is added on top of the transfer drain timeout.
	shutdownSlack = 5 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode config.ServiceMode
	name string
	// always starts the service regardless of the enabled modes.
	always bool
	start  func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:       deps.cfg.Config,
		Services:     deps.cfg.Services,
		HealthChecks: healthChecks(deps.cfg.DB, deps.cfg.RedisClient),
		Logger:       deps.logger,
	})
}

func healthChecks(db *sql.DB, rdb redis.UniversalClient) []httpx.HealthCheck {
	var checks []httpx.HealthCheck
	if db != nil {
		checks = append(checks, httpx.HealthCheck{Name: "postgres", Check: db.PingContext})
	}
	if rdb != nil {
		checks = append(checks, httpx.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return checks
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || (!descriptor.always && !deps.enabledServices[descriptor.mode]) {
		return nil
	}
	logger := deps.logger
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				logger.WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

// newPoolBackgroundService drains the in-process pool on shutdown. Any mode that dispatches
// through the pool needs it running.
func newPoolBackgroundService(deps *serviceStartupDeps) (backgroundService, bool) {
	pool := deps.cfg.Services.Pool
	if pool == nil {
		return backgroundService{}, false
	}
	return backgroundService{
		mode:   config.ServiceModeHTTP,
		name:   "transfer pool",
		always: true,
		start: func(ctx context.Context) error {
			return pool.Run(ctx, deps.cfg.Config.Transfer.ShutdownTimeout)
		},
	}, true
}

func newTransferWorkerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeTransferWorker,
		name: "transfer worker",
		start: func(ctx context.Context) error {
			cfg := deps.cfg.Config
			connOpt, err := asynqRedisOpt(cfg.Redis)
			if err != nil {
				return err
			}
			server := taskqueue.NewServer(taskqueue.ServerOptions{
				Redis:           connOpt,
				Queue:           cfg.Transfer.QueueName,
				Concurrency:     cfg.Transfer.Concurrency,
				ShutdownTimeout: cfg.Transfer.ShutdownTimeout,
				Logger:          deps.logger,
			}, taskqueue.NewHandler(deps.cfg.Services.Runner, deps.logger))
			return server.Run(ctx)
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			runner, err := reaper.NewRunner(reaper.RunnerOptions{
				Ledger:     deps.cfg.Services.Ledger,
				Dispatcher: deps.cfg.Services.Dispatcher,
				Config:     deps.cfg.Config.Reaper,
				Logger:     deps.logger,
				Metrics:    deps.cfg.Services.Observability.Sink(),
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil || deps.cfg == nil || deps.cfg.Config == nil {
		return nil
	}
	services := make([]backgroundService, 0, 3)
	if pool, ok := newPoolBackgroundService(deps); ok {
		services = append(services, pool)
	}
	return append(services,
		newTransferWorkerBackgroundService(deps),
		newReaperBackgroundService(deps),
	)
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		httpTimeout: cfg.Config.HTTP.ShutdownTimeout,
		waitTimeout: serviceWaitTimeout(cfg.Config.Transfer.ShutdownTimeout),
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

// errorChannelBufferSize leaves room for the always-on transfer pool.
func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// serviceWaitTimeout gives draining transfers their full grace period before giving up.
func serviceWaitTimeout(transferDrain time.Duration) time.Duration {
	return max(shutdownWaitTimeout, transferDrain+shutdownSlack)
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	httpTimeout time.Duration
	waitTimeout time.Duration
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops the HTTP server first so no new jobs are launched, then waits for the
// background services to drain.
func gracefulStop(cfg shutdownConfig) error {
	var httpErr error
	if cfg.httpServer != nil {
		httpErr = ShutdownHTTPServer(ShutdownConfig{
			Context: context.Background(),
			Server:  cfg.httpServer,
			Timeout: cfg.httpTimeout,
			Logger:  cfg.logger,
		})
	}

	timeout := cfg.waitTimeout
	if timeout <= 0 {
		timeout = shutdownWaitTimeout
	}
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, timeout, cfg.logger)
	}

	return httpErr
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, timeout time.Duration, logger *slog.Logger) bool {
	if done == nil {
		return true
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
		return true
	case <-time.After(timeout):
		logger.Warn("timeout waiting for " + name + " to stop")
		return false
	}
}
