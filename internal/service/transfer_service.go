package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	apperrors "github.com/target/bulkmove/internal/errors"
)

// TransferServiceOptions groups dependencies for TransferService.
type TransferServiceOptions struct {
	Store      core.MembershipReader // Required: collection lookups
	Ledger     core.TransferLedger   // Required: job ledger
	Dispatcher core.Dispatcher       // Required: hands queued jobs to a runner
	Validator  *validator.Validate   // Optional: shared validator instance
	Logger     *slog.Logger          // Optional: structured logger
	// NewID overrides job id generation in tests.
	NewID func() string
}

// TransferService launches transfers and exposes their status.
type TransferService struct {
	store      core.MembershipReader
	ledger     core.TransferLedger
	dispatcher core.Dispatcher
	validate   *validator.Validate
	newID      func() string
	logger     *slog.Logger
}

// NewTransferService constructs a TransferService.
func NewTransferService(opts TransferServiceOptions) (*TransferService, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("MembershipReader is required")
	case opts.Ledger == nil:
		return nil, errors.New("TransferLedger is required")
	case opts.Dispatcher == nil:
		return nil, errors.New("Dispatcher is required")
	}
	v := opts.Validator
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferService{
		store:      opts.Store,
		ledger:     opts.Ledger,
		dispatcher: opts.Dispatcher,
		validate:   v,
		newID:      newID,
		logger:     logger.With("component", "transfer_service"),
	}, nil
}

// MustNewTransferService constructs a TransferService and panics on error.
func MustNewTransferService(opts TransferServiceOptions) *TransferService {
	svc, err := NewTransferService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create TransferService: %v", err))
	}
	return svc
}

// Start validates the request, records a queued job and dispatches it without waiting for any batch.
// Shape errors are reported before any collection is looked up and never create a ledger entry.
func (s *TransferService) Start(ctx context.Context, req model.StartTransferRequest) (*model.StartTransferResponse, error) {
	if err := s.validateShape(req); err != nil {
		return nil, err
	}
	if _, err := s.store.GetCollection(ctx, req.TargetCollectionID); err != nil {
		return nil, fmt.Errorf("target collection: %w", err)
	}
	if req.SourceCollectionID != "" {
		if _, err := s.store.GetCollection(ctx, req.SourceCollectionID); err != nil {
			return nil, fmt.Errorf("source collection: %w", err)
		}
	}

	job := &model.TransferJob{
		ID:                 s.newID(),
		TargetCollectionID: req.TargetCollectionID,
		Mode:               req.Mode,
		Status:             model.TransferStatusQueued,
	}
	if req.SourceCollectionID != "" {
		src := req.SourceCollectionID
		job.SourceCollectionID = &src
	}
	switch req.Mode {
	case model.TransferModeSubset:
		job.CompanyIDs = append([]int64(nil), req.CompanyIDs...)
		job.Total = len(job.CompanyIDs)
	case model.TransferModeAll:
		n, err := s.store.CountMembers(ctx, req.SourceCollectionID)
		if err != nil {
			return nil, fmt.Errorf("count source members: %w", err)
		}
		job.Total = n
	}

	if err := s.ledger.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create transfer job: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		s.logger.ErrorContext(ctx, "dispatch transfer failed", "job_id", job.ID, "error", err)
		msg := "dispatch failed: " + err.Error()
		if serr := s.ledger.SetStatus(context.WithoutCancel(ctx), job.ID, model.StatusUpdate{
			Status: model.TransferStatusFailed,
			Error:  msg,
		}); serr != nil {
			s.logger.ErrorContext(ctx, "mark undispatched transfer failed", "job_id", job.ID, "error", serr)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "could not schedule transfer")
	}

	s.logger.InfoContext(ctx, "transfer queued",
		"job_id", job.ID,
		"mode", job.Mode,
		"target_collection_id", job.TargetCollectionID,
		"total", job.Total,
	)
	return &model.StartTransferResponse{JobID: job.ID, Status: job.Status, Total: job.Total}, nil
}

func (s *TransferService) validateShape(req model.StartTransferRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.ValidationField(jsonField(fe.StructField()),
				fmt.Sprintf("%s failed %s validation", jsonField(fe.StructField()), fe.Tag()))
		}
		return apperrors.Validation(err.Error())
	}
	switch req.Mode {
	case model.TransferModeSubset:
		if len(req.CompanyIDs) == 0 {
			return apperrors.ValidationField("companyIds", ErrEmptySubset.Error())
		}
	case model.TransferModeAll:
		if req.SourceCollectionID == "" {
			return apperrors.ValidationField("sourceCollectionId", "sourceCollectionId required for mode all")
		}
	}
	return nil
}

func jsonField(structField string) string {
	name, _, _ := strings.Cut(structField, "[")
	switch name {
	case "SourceCollectionID":
		return "sourceCollectionId"
	case "TargetCollectionID":
		return "targetCollectionId"
	case "CompanyIDs":
		return "companyIds"
	case "Mode":
		return "mode"
	}
	return name
}

// Status returns the poller view of a job.
func (s *TransferService) Status(ctx context.Context, jobID string) (*model.TransferStatusResponse, error) {
	job, err := s.ledger.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	resp := model.NewTransferStatusResponse(job)
	return &resp, nil
}

// Get returns the full ledger record.
func (s *TransferService) Get(ctx context.Context, jobID string) (*model.TransferJob, error) {
	return s.ledger.Get(ctx, jobID)
}

// Cancel requests cooperative cancellation. It is a no-op for jobs that already finished.
func (s *TransferService) Cancel(ctx context.Context, jobID string) error {
	if err := s.ledger.RequestCancel(ctx, jobID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "transfer cancel requested", "job_id", jobID)
	return nil
}

// List returns recent jobs, newest first.
func (s *TransferService) List(ctx context.Context, opts model.TransferListOptions) ([]*model.TransferJob, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("unknown status %q", *opts.Status))
	}
	return s.ledger.List(ctx, opts)
}

// Prune deletes terminal jobs that finished more than olderThan ago.
func (s *TransferService) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, apperrors.ValidationField("olderThan", "retention must be positive")
	}
	n, err := s.ledger.Prune(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune transfer jobs: %w", err)
	}
	s.logger.InfoContext(ctx, "pruned transfer jobs", "deleted", n, "older_than", olderThan)
	return n, nil
}

// ListCollections returns collection metadata.
func (s *TransferService) ListCollections(ctx context.Context) ([]*model.Collection, error) {
	return s.store.ListCollections(ctx)
}

// CollectionMembers returns one page of a collection's companies.
func (s *TransferService) CollectionMembers(ctx context.Context, opts model.MemberListOptions) (*model.MemberPage, error) {
	return s.store.ListMembers(ctx, opts)
}
