// Package metrics emits transfer lifecycle and batch metrics through a statsd.Sink.
package metrics

import (
	"time"

	obserrors "github.com/target/bulkmove/internal/observability/errors"
	"github.com/target/bulkmove/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Metric names.
const (
	TransferTransition = "transfer.transition"
	TransferDuration   = "transfer.duration"
	TransferBatch      = "transfer.batch"
	BatchDuration      = "transfer.batch.duration"
)

// TransitionMetric captures a status change of one transfer job.
type TransitionMetric struct {
	Mode     string
	Status   string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitTransferTransition counts a status transition and times the run when a duration is known.
func EmitTransferTransition(sink statsd.Sink, in TransitionMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"mode":   in.Mode,
		"status": in.Status,
		"result": in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(TransferTransition, 1, tags)
	if in.Duration > 0 {
		sink.Timing(TransferDuration, in.Duration, CloneTags(tags))
	}
}

// BatchMetric captures one batch write.
type BatchMetric struct {
	Attempted int
	Inserted  int
	Duration  time.Duration
	Err       error
}

// EmitBatch counts attempted and inserted ids and times the batch write.
func EmitBatch(sink statsd.Sink, in BatchMetric) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Inserted == 0:
		result = ResultNoop
	}
	tags := map[string]string{"result": result}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	attempted := CloneTags(tags)
	attempted["kind"] = "attempted"
	sink.Count(TransferBatch, int64(in.Attempted), attempted)

	inserted := CloneTags(tags)
	inserted["kind"] = "inserted"
	sink.Count(TransferBatch, int64(in.Inserted), inserted)

	if in.Duration > 0 {
		sink.Timing(BatchDuration, in.Duration, tags)
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	out := make(map[string]string, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	return out
}
