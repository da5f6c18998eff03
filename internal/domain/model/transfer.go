// Package model defines the data types shared by the bulk transfer service, its stores and its HTTP surface.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TransferMode selects where a transfer's candidate ids come from.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type TransferMode string

// TransferStatus is the lifecycle state of a transfer job.
type TransferStatus string

const (
	// TransferModeSubset copies an explicit list of company ids.
	TransferModeSubset TransferMode = "subset"
	// TransferModeAll copies every member of the source collection.
	TransferModeAll TransferMode = "all"

	// TransferStatusQueued indicates the job was accepted but no runner has started it.
	TransferStatusQueued TransferStatus = "queued"
	// TransferStatusRunning indicates a runner is writing batches.
	TransferStatusRunning TransferStatus = "running"
	// TransferStatusCompleted indicates every candidate was processed.
	TransferStatusCompleted TransferStatus = "completed"
	// TransferStatusFailed indicates a batch failed or the job could not be scheduled.
	TransferStatusFailed TransferStatus = "failed"
	// TransferStatusCancelled indicates the job stopped at a batch boundary after a cancel request.
	TransferStatusCancelled TransferStatus = "cancelled"
)

// UnmarshalText implements encoding.TextUnmarshaler so modes can be parsed from flags and env.
func (m *TransferMode) UnmarshalText(text []byte) error {
	v := TransferMode(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid transfer mode: %q", v)
	}
	*m = v
	return nil
}

// Valid reports whether m is a known mode.
func (m TransferMode) Valid() bool {
	return m == TransferModeSubset || m == TransferModeAll
}

// Valid reports whether s is a known status.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferStatusQueued, TransferStatusRunning, TransferStatusCompleted,
		TransferStatusFailed, TransferStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s TransferStatus) Terminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusFailed || s == TransferStatusCancelled
}

// TransferJob is the ledger record of one bulk transfer.
// Processed never exceeds Total and Status only moves forward.
type TransferJob struct {
	ID                 string         `json:"id"                           db:"id"`
	SourceCollectionID *string        `json:"sourceCollectionId,omitempty" db:"source_collection_id"`
	TargetCollectionID string         `json:"targetCollectionId"           db:"target_collection_id"`
	Mode               TransferMode   `json:"mode"                         db:"mode"`
	CompanyIDs         []int64        `json:"companyIds,omitempty"         db:"company_ids"`
	Total              int            `json:"total"                        db:"total"`
	Processed          int            `json:"processed"                    db:"processed"`
	Status             TransferStatus `json:"status"                       db:"status"`
	Error              *string        `json:"error,omitempty"              db:"error"`
	CancelRequested    bool           `json:"cancelRequested"              db:"cancel_requested"`
	CreatedAt          time.Time      `json:"createdAt"                    db:"created_at"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"          db:"started_at"`
	FinishedAt         *time.Time     `json:"finishedAt,omitempty"         db:"finished_at"`
	UpdatedAt          time.Time      `json:"updatedAt"                    db:"updated_at"`
}

// Clone returns a deep copy of j so ledger callers never share mutable state.
func (j *TransferJob) Clone() *TransferJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.SourceCollectionID != nil {
		v := *j.SourceCollectionID
		c.SourceCollectionID = &v
	}
	if j.CompanyIDs != nil {
		c.CompanyIDs = append([]int64(nil), j.CompanyIDs...)
	}
	if j.Error != nil {
		v := *j.Error
		c.Error = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		c.StartedAt = &v
	}
	if j.FinishedAt != nil {
		v := *j.FinishedAt
		c.FinishedAt = &v
	}
	return &c
}

// PercentComplete returns processed/total as a percentage rounded to two decimals, or 0 when total is 0.
func PercentComplete(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(processed)/float64(total)*100*100) / 100
}

// StartTransferRequest is the launcher input.
type StartTransferRequest struct {
	SourceCollectionID string       `json:"sourceCollectionId,omitempty" validate:"omitempty,uuid"`
	TargetCollectionID string       `json:"targetCollectionId"           validate:"required,uuid"`
	Mode               TransferMode `json:"mode"                         validate:"required,oneof=subset all"`
	CompanyIDs         []int64      `json:"companyIds,omitempty"         validate:"omitempty,dive,gt=0"`
}

// StartTransferResponse is returned as soon as the job is queued.
type StartTransferResponse struct {
	JobID  string         `json:"jobId"`
	Status TransferStatus `json:"status"`
	Total  int            `json:"total"`
}

// TransferStatusResponse is the poller's view of a job.
type TransferStatusResponse struct {
	JobID           string         `json:"jobId"`
	Status          TransferStatus `json:"status"`
	Processed       int            `json:"processed"`
	Total           int            `json:"total"`
	PercentComplete float64        `json:"percentComplete"`
	Error           *string        `json:"error,omitempty"`
	CancelRequested bool           `json:"cancelRequested"`
}

// NewTransferStatusResponse builds the poller view from a ledger record.
func NewTransferStatusResponse(j *TransferJob) TransferStatusResponse {
	return TransferStatusResponse{
		JobID:           j.ID,
		Status:          j.Status,
		Processed:       j.Processed,
		Total:           j.Total,
		PercentComplete: PercentComplete(j.Processed, j.Total),
		Error:           j.Error,
		CancelRequested: j.CancelRequested,
	}
}

// StatusUpdate is a requested status transition with an optional failure message.
type StatusUpdate struct {
	Status TransferStatus
	Error  string
}

// Page bounds for transfer job listings.
const (
	DefaultTransferListLimit = 50
	MaxTransferListLimit     = 500
)

// TransferListOptions groups parameters for listing transfer jobs. Jobs come back most recent
// first unless UpdatedBefore is set, in which case only jobs last updated before the cutoff are
// returned, least recently updated first.
type TransferListOptions struct {
	Status        *TransferStatus // Optional filter
	UpdatedBefore *time.Time      // Optional staleness cutoff
	Limit         int
	Offset        int
}
