package config

import (
	"fmt"
	"strings"
	"time"
)

// LedgerBackend selects where transfer job records live.
type LedgerBackend string

// DispatcherKind selects how queued jobs reach a runner.
type DispatcherKind string

const (
	// LedgerMemory keeps jobs in process memory. Jobs do not survive restarts.
	LedgerMemory LedgerBackend = "memory"
	// LedgerPostgres stores jobs in the transfer_jobs table.
	LedgerPostgres LedgerBackend = "postgres"
	// LedgerRedis stores jobs as Redis hashes.
	LedgerRedis LedgerBackend = "redis"

	// DispatcherPool runs jobs on an in-process bounded worker pool.
	DispatcherPool DispatcherKind = "pool"
	// DispatcherQueue enqueues jobs on a Redis-backed task queue consumed by transfer-worker.
	DispatcherQueue DispatcherKind = "queue"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *LedgerBackend) UnmarshalText(text []byte) error {
	v := LedgerBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case LedgerMemory, LedgerPostgres, LedgerRedis:
		*b = v
		return nil
	}
	return fmt.Errorf("invalid ledger backend: %q (valid options: memory, postgres, redis)", v)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DispatcherKind) UnmarshalText(text []byte) error {
	v := DispatcherKind(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case DispatcherPool, DispatcherQueue:
		*d = v
		return nil
	}
	return fmt.Errorf("invalid dispatcher: %q (valid options: pool, queue)", v)
}

// TransferConfig contains transfer execution configuration.
type TransferConfig struct {
	// BatchSize is the number of candidates written per transaction.
	BatchSize int `env:"TRANSFER_BATCH_SIZE" envDefault:"100"`

	// BatchDelay pauses between batches to limit store load.
	BatchDelay time.Duration `env:"TRANSFER_BATCH_DELAY" envDefault:"0s"`

	// Concurrency is the number of jobs run at once by the pool or the queue consumer.
	Concurrency int `env:"TRANSFER_CONCURRENCY" envDefault:"4"`

	Ledger     LedgerBackend  `env:"TRANSFER_LEDGER"     envDefault:"postgres"`
	Dispatcher DispatcherKind `env:"TRANSFER_DISPATCHER" envDefault:"pool"`

	// ShutdownTimeout bounds how long in-flight jobs may keep running after shutdown starts.
	ShutdownTimeout time.Duration `env:"TRANSFER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// QueueName is the task queue used when Dispatcher=queue.
	QueueName string `env:"TRANSFER_QUEUE_NAME" envDefault:"transfers"`

	// MaxRetry is how many times the queue redelivers a task whose handler returned an error.
	MaxRetry int `env:"TRANSFER_QUEUE_MAX_RETRY" envDefault:"3"`
}

// Sanitize applies guardrails to transfer configuration values.
func (t *TransferConfig) Sanitize() {
	if t.BatchSize < 1 {
		t.BatchSize = 100
	}
	if t.BatchSize > 5000 {
		t.BatchSize = 5000
	}
	if t.BatchDelay < 0 {
		t.BatchDelay = 0
	}
	if t.Concurrency < 1 {
		t.Concurrency = 1
	}
	if t.Ledger == "" {
		t.Ledger = LedgerPostgres
	}
	if t.Dispatcher == "" {
		t.Dispatcher = DispatcherPool
	}
	if t.ShutdownTimeout <= 0 {
		t.ShutdownTimeout = 30 * time.Second
	}
	if t.QueueName = strings.TrimSpace(t.QueueName); t.QueueName == "" {
		t.QueueName = "transfers"
	}
	if t.MaxRetry < 0 {
		t.MaxRetry = 0
	}
}
