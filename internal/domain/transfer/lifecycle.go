// Package transfer holds the pure rules of a bulk transfer job: status transitions and batch sizing.
package transfer

import (
	"fmt"

	"github.com/target/bulkmove/internal/domain/model"
)

var transitions = map[model.TransferStatus][]model.TransferStatus{
	model.TransferStatusQueued: {
		model.TransferStatusRunning,
		model.TransferStatusFailed,
		model.TransferStatusCancelled,
	},
	model.TransferStatusRunning: {
		model.TransferStatusCompleted,
		model.TransferStatusFailed,
		model.TransferStatusCancelled,
	},
}

// CanTransition reports whether a job may move from one status to another.
// Terminal states have no outgoing transitions.
func CanTransition(from, to model.TransferStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedFrom returns the statuses that may transition into to.
func AllowedFrom(to model.TransferStatus) []model.TransferStatus {
	var out []model.TransferStatus
	for _, from := range []model.TransferStatus{model.TransferStatusQueued, model.TransferStatusRunning} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// TransitionError is returned when a ledger update would move a job backwards or out of a terminal state.
type TransitionError struct {
	From model.TransferStatus
	To   model.TransferStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transfer status transition %s -> %s", e.From, e.To)
}
