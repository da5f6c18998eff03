package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/data/pgxutil"
	"github.com/target/bulkmove/internal/domain/model"
	"github.com/target/bulkmove/internal/domain/transfer"
	apperrors "github.com/target/bulkmove/internal/errors"
)

// RepoConfig holds configuration options for the transfer job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// TransferJobRepo is the Postgres TransferLedger. Every mutation is one guarded UPDATE so concurrent
// writers never lose increments or move a job backwards.
type TransferJobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.TransferLedger = (*TransferJobRepo)(nil)

// NewTransferJobRepo creates a TransferJobRepo.
func NewTransferJobRepo(db *sql.DB, cfg RepoConfig) *TransferJobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferJobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "transfer_job_repo"),
	}
}

const transferJobColumns = `
  id::text AS id,
  source_collection_id::text AS source_collection_id,
  target_collection_id::text AS target_collection_id,
  mode,
  company_ids,
  total,
  processed,
  status,
  error,
  cancel_requested,
  created_at,
  started_at,
  finished_at,
  updated_at
`

// Create inserts a queued job.
func (r *TransferJobRepo) Create(ctx context.Context, job *model.TransferJob) error {
	if err := validateNewTransfer(job); err != nil {
		return err
	}

	now := r.timeProvider.Now().UTC()
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO transfer_jobs (
			  id, source_collection_id, target_collection_id, mode, company_ids,
			  total, processed, status, cancel_requested, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, 0, 'queued', false, $7, $7)`,
			job.ID, job.SourceCollectionID, job.TargetCollectionID, job.Mode, job.CompanyIDs, job.Total, now)
		if err != nil {
			return fmt.Errorf("insert transfer job: %w", apperrors.MapDBError(err))
		}
		job.CreatedAt, job.UpdatedAt = now, now
		return nil
	})
}

// Get returns the job or a NotFound error.
func (r *TransferJobRepo) Get(ctx context.Context, id string) (*model.TransferJob, error) {
	if err := checkJobID(id); err != nil {
		return nil, err
	}

	var job *model.TransferJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+transferJobColumns+` FROM transfer_jobs WHERE id = $1`, id)
		if err != nil {
			return err
		}
		job, err = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.TransferJob])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transferNotFound(id)
		}
		return nil, fmt.Errorf("get transfer job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// MarkRunning moves a queued job to running and records the authoritative total.
func (r *TransferJobRepo) MarkRunning(ctx context.Context, id string, total int) error {
	if total < 0 {
		return apperrors.Validationf("total must be >= 0, got %d", total)
	}
	if err := checkJobID(id); err != nil {
		return err
	}
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE transfer_jobs
		SET status = 'running', total = $2, processed = 0, started_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'queued'`, id, total, now)
	if err != nil {
		return fmt.Errorf("mark transfer running: %w", apperrors.MapDBError(err))
	}
	if affected(res) > 0 {
		return nil
	}
	return r.explainTransition(ctx, id, model.TransferStatusRunning)
}

// Advance atomically adds delta to processed and returns the new value.
func (r *TransferJobRepo) Advance(ctx context.Context, id string, delta int) (int, error) {
	if err := validateAdvance(delta); err != nil {
		return 0, err
	}
	if err := checkJobID(id); err != nil {
		return 0, err
	}

	var processed int
	err := r.DB.QueryRowContext(ctx, `
		UPDATE transfer_jobs
		SET processed = processed + $2, updated_at = $3
		WHERE id = $1 AND status = 'running' AND processed + $2 <= total
		RETURNING processed`, id, delta, r.timeProvider.Now().UTC()).Scan(&processed)
	if err == nil {
		return processed, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("advance transfer job: %w", apperrors.MapDBError(err))
	}

	job, getErr := r.Get(ctx, id)
	if getErr != nil {
		return 0, getErr
	}
	return job.Processed, advanceConflict(job, delta)
}

// SetStatus applies a forward status transition. Terminal statuses stamp finished_at.
func (r *TransferJobRepo) SetStatus(ctx context.Context, id string, update model.StatusUpdate) error {
	if err := validateStatusUpdate(update); err != nil {
		return err
	}
	if err := checkJobID(id); err != nil {
		return err
	}

	from := make([]string, 0, 2)
	for _, s := range transfer.AllowedFrom(update.Status) {
		from = append(from, string(s))
	}
	if len(from) == 0 {
		return r.explainTransition(ctx, id, update.Status)
	}

	now := r.timeProvider.Now().UTC()
	var finishedAt *time.Time
	if update.Status.Terminal() {
		finishedAt = &now
	}

	var n int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			UPDATE transfer_jobs
			SET status = $2,
			    error = COALESCE(NULLIF($3, ''), error),
			    finished_at = COALESCE($4, finished_at),
			    updated_at = $5
			WHERE id = $1 AND status = ANY($6)`,
			id, update.Status, update.Error, finishedAt, now, from)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("set transfer status: %w", apperrors.MapDBError(err))
	}
	if n > 0 {
		return nil
	}
	return r.explainTransition(ctx, id, update.Status)
}

// RequestCancel sets the cancel flag on a non-terminal job. Terminal jobs are left untouched.
func (r *TransferJobRepo) RequestCancel(ctx context.Context, id string) error {
	if err := checkJobID(id); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE transfer_jobs
		SET cancel_requested = true, updated_at = $2
		WHERE id = $1 AND status IN ('queued', 'running') AND NOT cancel_requested`,
		id, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("request transfer cancel: %w", apperrors.MapDBError(err))
	}
	if affected(res) > 0 {
		return nil
	}
	_, err = r.Get(ctx, id)
	return err
}

// CancelRequested reads the cancel flag.
func (r *TransferJobRepo) CancelRequested(ctx context.Context, id string) (bool, error) {
	if err := checkJobID(id); err != nil {
		return false, err
	}
	var requested bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT cancel_requested FROM transfer_jobs WHERE id = $1`, id).Scan(&requested)
	if errors.Is(err, sql.ErrNoRows) {
		return false, transferNotFound(id)
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", apperrors.MapDBError(err))
	}
	return requested, nil
}

// List returns jobs most recent first with an optional status filter. A staleness cutoff
// switches the order to least recently updated first.
func (r *TransferJobRepo) List(ctx context.Context, opts model.TransferListOptions) ([]*model.TransferJob, error) {
	limit, offset := normalizeTransferList(opts)

	query := `SELECT ` + transferJobColumns + ` FROM transfer_jobs`
	args := []any{limit, offset}
	var where []string
	if opts.Status != nil {
		args = append(args, *opts.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if opts.UpdatedBefore != nil {
		args = append(args, opts.UpdatedBefore.UTC())
		where = append(where, fmt.Sprintf("updated_at < $%d", len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if opts.UpdatedBefore != nil {
		query += ` ORDER BY updated_at ASC, id ASC LIMIT $1 OFFSET $2`
	} else {
		query += ` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	}

	var out []*model.TransferJob
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.TransferJob])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list transfer jobs: %w", apperrors.MapDBError(err))
	}
	if out == nil {
		out = []*model.TransferJob{}
	}
	return out, nil
}

// Prune deletes terminal jobs that finished before olderThan.
func (r *TransferJobRepo) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM transfer_jobs
		WHERE status IN ('completed', 'failed', 'cancelled') AND finished_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune transfer jobs: %w", apperrors.MapDBError(err))
	}
	n := affected(res)
	if n > 0 {
		r.logger.InfoContext(ctx, "pruned transfer jobs", "count", n, "older_than", olderThan)
	}
	return int(n), nil
}

// explainTransition turns a guarded UPDATE that matched no rows into NotFound or a transition conflict.
func (r *TransferJobRepo) explainTransition(ctx context.Context, id string, to model.TransferStatus) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return transitionConflict(id, job.Status, to)
}

// checkJobID rejects ids that cannot exist because they are not UUIDs.
func checkJobID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return transferNotFound(id)
	}
	return nil
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
