package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/data/pgxutil"
	"github.com/target/bulkmove/internal/domain/model"
	apperrors "github.com/target/bulkmove/internal/errors"
)

const (
	defaultMemberPageLimit = 10
	maxMemberPageLimit     = 1000
)

// MembershipRepoOptions configures a MembershipRepo.
type MembershipRepoOptions struct {
	Logger *slog.Logger
	// TxOpts is applied to every WithBatch transaction. Nil uses the server default isolation.
	TxOpts *sql.TxOptions
	// LikedCollection names the collection that drives Company.Liked. Empty uses
	// model.LikedCollectionName.
	LikedCollection string
}

// MembershipRepo is the Postgres membership store.
type MembershipRepo struct {
	DB     *sql.DB
	txOpts *sql.TxOptions
	liked  string
	logger *slog.Logger
}

var _ core.MembershipStore = (*MembershipRepo)(nil)

// NewMembershipRepo creates a MembershipRepo.
func NewMembershipRepo(db *sql.DB, opts MembershipRepoOptions) *MembershipRepo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	liked := opts.LikedCollection
	if liked == "" {
		liked = model.LikedCollectionName
	}
	return &MembershipRepo{
		DB:     db,
		txOpts: opts.TxOpts,
		liked:  liked,
		logger: logger.With("component", "membership_repo"),
	}
}

const collectionColumns = `id::text AS id, collection_name, created_at`

// GetCollection returns the collection or a NotFound error.
func (r *MembershipRepo) GetCollection(ctx context.Context, id string) (*model.Collection, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFoundf("collection %s not found", id)
	}

	var out *model.Collection
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = $1`, id)
		if err != nil {
			return err
		}
		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Collection])
		return err
	})
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			return nil, apperrors.NotFoundf("collection %s not found", id)
		}
		return nil, fmt.Errorf("get collection: %w", mapped)
	}
	return out, nil
}

// ListCollections returns collection metadata ordered by name.
func (r *MembershipRepo) ListCollections(ctx context.Context) ([]*model.Collection, error) {
	var out []*model.Collection
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY collection_name`)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Collection])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list collections: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// MemberIDsOf returns every company id in the collection ordered by id.
func (r *MembershipRepo) MemberIDsOf(ctx context.Context, collectionID string) ([]int64, error) {
	var ids []int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT company_id FROM collection_memberships
			WHERE collection_id = $1
			ORDER BY company_id`, collectionID)
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		return err
	}); err != nil {
		return nil, fmt.Errorf("member ids of %s: %w", collectionID, apperrors.MapDBError(err))
	}
	return ids, nil
}

// CountMembers returns the number of companies in the collection.
func (r *MembershipRepo) CountMembers(ctx context.Context, collectionID string) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM collection_memberships WHERE collection_id = $1`, collectionID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count members: %w", apperrors.MapDBError(err))
	}
	return n, nil
}

// ListMembers returns one page of the collection's companies ordered by id, with the full count.
// Each company is flagged liked when it also belongs to the liked collection.
func (r *MembershipRepo) ListMembers(ctx context.Context, opts model.MemberListOptions) (*model.MemberPage, error) {
	limit, offset := normalizePage(opts.Limit, opts.Offset)

	coll, err := r.GetCollection(ctx, opts.CollectionID)
	if err != nil {
		return nil, err
	}
	total, err := r.CountMembers(ctx, coll.ID)
	if err != nil {
		return nil, err
	}

	var companies []model.Company
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, `
			SELECT c.id, c.company_name, c.created_at,
			       EXISTS (
			           SELECT 1
			           FROM collection_memberships lm
			           JOIN collections lc ON lc.id = lm.collection_id
			           WHERE lm.company_id = c.id AND lc.collection_name = $4
			       ) AS liked
			FROM collection_memberships m
			JOIN companies c ON c.id = m.company_id
			WHERE m.collection_id = $1
			ORDER BY c.id
			LIMIT $2 OFFSET $3`, coll.ID, limit, offset, r.liked)
		if qErr != nil {
			return qErr
		}
		companies, qErr = pgx.CollectRows(rows, pgx.RowToStructByName[model.Company])
		return qErr
	}); err != nil {
		return nil, fmt.Errorf("list members: %w", apperrors.MapDBError(err))
	}
	if companies == nil {
		companies = []model.Company{}
	}

	return &model.MemberPage{Collection: *coll, Companies: companies, Total: total}, nil
}

// WithBatch runs fn in one pgx transaction; the batch commits only if fn returns nil.
func (r *MembershipRepo) WithBatch(ctx context.Context, fn func(core.MembershipBatch) error) error {
	return pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: r.txOpts,
		Fn: func(tx pgx.Tx) error {
			return fn(&membershipTx{tx: tx})
		},
	})
}

type membershipTx struct {
	tx pgx.Tx
}

func (m *membershipTx) ExistingMembers(
	ctx context.Context,
	collectionID string,
	candidates []int64,
) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{})
	if len(candidates) == 0 {
		return existing, nil
	}

	rows, err := m.tx.Query(ctx, `
		SELECT company_id FROM collection_memberships
		WHERE collection_id = $1 AND company_id = ANY($2)`, collectionID, candidates)
	if err != nil {
		return nil, fmt.Errorf("query existing members: %w", apperrors.MapDBError(err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect existing members: %w", apperrors.MapDBError(err))
	}
	for _, id := range ids {
		existing[id] = struct{}{}
	}
	return existing, nil
}

func (m *membershipTx) InsertMemberships(ctx context.Context, collectionID string, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := m.tx.Exec(ctx, `
		INSERT INTO collection_memberships (collection_id, company_id)
		SELECT $1, unnest($2::bigint[])`, collectionID, ids)
	if err != nil {
		return 0, fmt.Errorf("insert memberships: %w", apperrors.MapDBError(err))
	}
	return int(tag.RowsAffected()), nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultMemberPageLimit
	}
	if limit > maxMemberPageLimit {
		limit = maxMemberPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
