package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeTransferWorker consumes transfer tasks from the Redis queue.
	ServiceModeTransferWorker ServiceMode = "transfer-worker"
	// ServiceModeReaper runs ledger cleanup for stuck and expired jobs.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeTransferWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for part := range strings.SplitSeq(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeTransferWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, transfer-worker, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ReaperConfig contains ledger reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// QueuedMaxAge is how long a job may sit queued before it is dispatched again.
	// Jobs left queued by a worker that shut down are picked up this way.
	QueuedMaxAge time.Duration `env:"REAPER_QUEUED_MAX_AGE" envDefault:"15m"`

	// RunningMaxAge is how long a running job may go without progress before it is failed.
	RunningMaxAge time.Duration `env:"REAPER_RUNNING_MAX_AGE" envDefault:"30m"`

	// FinishedMaxAge is the retention for completed, failed and cancelled jobs.
	FinishedMaxAge time.Duration `env:"REAPER_FINISHED_MAX_AGE" envDefault:"168h"` // 7 days

	// BatchSize is the maximum number of jobs examined per step.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"500"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive ledger load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.QueuedMaxAge < 1*time.Minute {
		r.QueuedMaxAge = 1 * time.Minute
	}
	if r.RunningMaxAge < 5*time.Minute {
		r.RunningMaxAge = 5 * time.Minute
	}
	if r.FinishedMaxAge < 1*time.Hour {
		r.FinishedMaxAge = 1 * time.Hour
	}

	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	// A reaper step reads one ledger page, which holds at most 500 jobs.
	if r.BatchSize > 500 {
		r.BatchSize = 500
	}
}
