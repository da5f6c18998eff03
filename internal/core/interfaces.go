// Package core defines the ports between the transfer services and their adapters.
package core

import (
	"context"
	"time"

	"github.com/target/bulkmove/internal/domain/model"
)

// MembershipReader exposes read access to collections and their members.
type MembershipReader interface {
	GetCollection(ctx context.Context, id string) (*model.Collection, error)
	ListCollections(ctx context.Context) ([]*model.Collection, error)
	// MemberIDsOf returns every company id in the collection ordered by id.
	MemberIDsOf(ctx context.Context, collectionID string) ([]int64, error)
	CountMembers(ctx context.Context, collectionID string) (int, error)
	ListMembers(ctx context.Context, opts model.MemberListOptions) (*model.MemberPage, error)
}

// MembershipBatch is the transactional view handed to WithBatch callbacks.
type MembershipBatch interface {
	// ExistingMembers returns which of candidates already belong to the collection.
	ExistingMembers(ctx context.Context, collectionID string, candidates []int64) (map[int64]struct{}, error)
	// InsertMemberships inserts one membership per id and returns the number of rows written.
	// A duplicate pair is an error.
	InsertMemberships(ctx context.Context, collectionID string, ids []int64) (int, error)
}

// MembershipStore is the store adapter used by the launcher and the batch writer.
type MembershipStore interface {
	MembershipReader
	// WithBatch runs fn inside one transaction. The transaction commits only when fn returns nil.
	WithBatch(ctx context.Context, fn func(MembershipBatch) error) error
}

// TransferLedger records job progress and status. Implementations must be safe for concurrent use
// and must return copies so callers never observe partially applied updates.
type TransferLedger interface {
	Create(ctx context.Context, job *model.TransferJob) error
	Get(ctx context.Context, id string) (*model.TransferJob, error)
	// MarkRunning moves a queued job to running and records the authoritative total in one step.
	MarkRunning(ctx context.Context, id string, total int) error
	// Advance adds delta to processed and returns the new value.
	// It fails without change for unknown or terminal jobs and when processed would exceed total.
	Advance(ctx context.Context, id string, delta int) (int, error)
	SetStatus(ctx context.Context, id string, update model.StatusUpdate) error
	// RequestCancel sets the cancel flag. Repeated calls and calls on terminal jobs are no-ops.
	RequestCancel(ctx context.Context, id string) error
	CancelRequested(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, opts model.TransferListOptions) ([]*model.TransferJob, error)
	// Prune deletes terminal jobs that finished before olderThan and returns how many were removed.
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}

// Dispatcher schedules a queued job onto an independent worker and returns without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// JobRunner executes one transfer job to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// BatchWriter writes one batch of candidates into a target collection.
type BatchWriter interface {
	WriteBatch(ctx context.Context, targetID string, batch []int64) (model.BatchResult, error)
}
