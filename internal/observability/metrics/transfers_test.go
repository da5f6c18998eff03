package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/bulkmove/internal/errors"
	"github.com/target/bulkmove/internal/observability/statsd"
)

func TestEmitTransferTransition(t *testing.T) {
	var rec statsd.Recorder
	EmitTransferTransition(&rec, TransitionMetric{
		Mode:     "all",
		Status:   "failed",
		Result:   ResultError,
		Duration: 2 * time.Second,
		Err:      apperrors.StoreError(errors.New("boom")),
	})

	counts := rec.Named(TransferTransition)
	require.Len(t, counts, 1)
	assert.Equal(t, map[string]string{
		"mode": "all", "status": "failed", "result": "error", "error_class": "store",
	}, counts[0].Tags)

	timings := rec.Named(TransferDuration)
	require.Len(t, timings, 1)
	assert.InDelta(t, 2000.0, timings[0].Value, 0.001)
}

func TestEmitTransferTransitionSkipsZeroDuration(t *testing.T) {
	var rec statsd.Recorder
	EmitTransferTransition(&rec, TransitionMetric{Mode: "subset", Status: "running", Result: ResultSuccess})

	assert.Len(t, rec.Named(TransferTransition), 1)
	assert.Empty(t, rec.Named(TransferDuration))
	EmitTransferTransition(nil, TransitionMetric{})
}

func TestEmitBatch(t *testing.T) {
	var rec statsd.Recorder
	EmitBatch(&rec, BatchMetric{Attempted: 5, Inserted: 3, Duration: time.Millisecond})

	counts := rec.Named(TransferBatch)
	require.Len(t, counts, 2)
	assert.Equal(t, float64(5), counts[0].Value)
	assert.Equal(t, "attempted", counts[0].Tags["kind"])
	assert.Equal(t, float64(3), counts[1].Value)
	assert.Equal(t, "inserted", counts[1].Tags["kind"])
	assert.Equal(t, ResultSuccess, counts[1].Tags["result"])
	assert.Len(t, rec.Named(BatchDuration), 1)
}

func TestEmitBatchNoopAndError(t *testing.T) {
	var rec statsd.Recorder
	EmitBatch(&rec, BatchMetric{Attempted: 4})
	EmitBatch(&rec, BatchMetric{Attempted: 4, Err: apperrors.StoreError(errors.New("x"))})

	counts := rec.Named(TransferBatch)
	require.Len(t, counts, 4)
	assert.Equal(t, ResultNoop, counts[0].Tags["result"])
	assert.Equal(t, ResultError, counts[2].Tags["result"])
	assert.Equal(t, "store", counts[2].Tags["error_class"])
}
