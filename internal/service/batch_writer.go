package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	"github.com/target/bulkmove/internal/domain/transfer"
	apperrors "github.com/target/bulkmove/internal/errors"
	"github.com/target/bulkmove/internal/observability/metrics"
	"github.com/target/bulkmove/internal/observability/statsd"
)

// BatchWriterOptions groups dependencies for BatchWriter.
type BatchWriterOptions struct {
	Store   core.MembershipStore // Required: membership store
	Metrics statsd.Sink          // Optional: batch metrics
	Logger  *slog.Logger         // Optional: structured logger
}

// BatchWriter inserts the members of a batch that the target collection does not already have.
type BatchWriter struct {
	store   core.MembershipStore
	metrics statsd.Sink
	logger  *slog.Logger
}

var _ core.BatchWriter = (*BatchWriter)(nil)

// NewBatchWriter constructs a BatchWriter.
func NewBatchWriter(opts BatchWriterOptions) (*BatchWriter, error) {
	if opts.Store == nil {
		return nil, errors.New("MembershipStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWriter{
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  logger.With("component", "batch_writer"),
	}, nil
}

// MustNewBatchWriter constructs a BatchWriter and panics on error.
func MustNewBatchWriter(opts BatchWriterOptions) *BatchWriter {
	w, err := NewBatchWriter(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create BatchWriter: %v", err))
	}
	return w
}

// WriteBatch looks up which candidates already belong to targetID and inserts the rest, all in one
// transaction. Repeated ids in the batch count as attempted but are inserted once.
// Any store failure is returned as a StoreError and nothing from the batch is committed.
func (w *BatchWriter) WriteBatch(ctx context.Context, targetID string, batch []int64) (model.BatchResult, error) {
	res := model.BatchResult{Attempted: len(batch)}
	if len(batch) == 0 {
		return res, nil
	}

	start := time.Now()
	candidates := transfer.Dedupe(batch)
	var inserted int
	err := w.store.WithBatch(ctx, func(tx core.MembershipBatch) error {
		existing, err := tx.ExistingMembers(ctx, targetID, candidates)
		if err != nil {
			return err
		}
		fresh := make([]int64, 0, len(candidates))
		for _, id := range candidates {
			if _, ok := existing[id]; !ok {
				fresh = append(fresh, id)
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		n, err := tx.InsertMemberships(ctx, targetID, fresh)
		if err != nil {
			return err
		}
		inserted = n
		return nil
	})
	if err != nil {
		err = apperrors.StoreError(err)
		metrics.EmitBatch(w.metrics, metrics.BatchMetric{Attempted: res.Attempted, Duration: time.Since(start), Err: err})
		w.logger.WarnContext(ctx, "batch write failed",
			"target_collection_id", targetID,
			"attempted", res.Attempted,
			"error", err,
		)
		return model.BatchResult{Attempted: res.Attempted}, err
	}

	res.Inserted = inserted
	metrics.EmitBatch(w.metrics, metrics.BatchMetric{
		Attempted: res.Attempted,
		Inserted:  res.Inserted,
		Duration:  time.Since(start),
	})
	w.logger.DebugContext(ctx, "batch written",
		"target_collection_id", targetID,
		"attempted", res.Attempted,
		"inserted", res.Inserted,
	)
	return res, nil
}
