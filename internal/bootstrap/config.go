package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	slogmulti "github.com/samber/slog-multi"

	"github.com/target/bulkmove/config"
)

// InitLogger initializes the structured logger used before configuration is loaded.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// ConfigureLogger rebuilds the default logger from cfg. When a log file is configured, records
// fan out to stdout and the file. The returned cleanup closes the file.
func ConfigureLogger(cfg config.LoggingConfig) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	stdout := slog.NewJSONHandler(os.Stdout, opts)

	if cfg.File == "" {
		logger := slog.New(stdout)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}

	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logger := slog.New(stdout)
		logger.Error("failed to open log file, using stdout only", "error", err, "file", cfg.File)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}

	logger := newFanoutLogger(stdout, file, opts)
	slog.SetDefault(logger)
	return logger, file.Close
}

func newFanoutLogger(primary slog.Handler, w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(slogmulti.Fanout(primary, slog.NewJSONHandler(w, opts)))
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates that at least one service is enabled and the
// transfer backends fit the enabled services.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	// A memory ledger is private to one process, so a queue consumer cannot see its jobs.
	if cfg.Transfer.Ledger == config.LedgerMemory && cfg.Transfer.Dispatcher == config.DispatcherQueue {
		return errors.New("TRANSFER_LEDGER=memory cannot be combined with TRANSFER_DISPATCHER=queue")
	}
	if services[config.ServiceModeTransferWorker] && cfg.Transfer.Dispatcher != config.DispatcherQueue {
		return errors.New("transfer-worker requires TRANSFER_DISPATCHER=queue")
	}

	return nil
}

// GetEnabledServices returns a list of enabled service names.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Return empty list on error - validation will catch this
		return []string{}
	}

	enabled := make([]string, 0, len(services))
	for _, mode := range config.ValidServiceModes() {
		if services[mode] {
			enabled = append(enabled, string(mode))
		}
	}
	return enabled
}
