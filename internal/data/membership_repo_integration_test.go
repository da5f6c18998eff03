package data

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
	apperrors "github.com/target/bulkmove/internal/errors"
	"github.com/target/bulkmove/internal/testutil"
)

func TestMembershipRepo_Integration_Reads(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewMembershipRepo(db, MembershipRepoOptions{})
		ctx := context.Background()

		src := testutil.SeedCollection(t, db, "My List")
		liked := testutil.SeedCollection(t, db, model.LikedCollectionName)
		ids := testutil.SeedCompanies(t, db, 25)
		// Insert out of order; reads must come back sorted.
		testutil.SeedMemberships(t, db, src, append([]int64{ids[20]}, ids[:20]...))
		testutil.SeedMemberships(t, db, liked, []int64{ids[1], ids[20]})

		coll, err := repo.GetCollection(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, "My List", coll.Name)

		_, err = repo.GetCollection(ctx, uuid.NewString())
		assert.True(t, apperrors.IsNotFound(err))
		_, err = repo.GetCollection(ctx, "bogus")
		assert.True(t, apperrors.IsNotFound(err))

		colls, err := repo.ListCollections(ctx)
		require.NoError(t, err)
		require.Len(t, colls, 2)
		assert.Equal(t, model.LikedCollectionName, colls[0].Name)

		memberIDs, err := repo.MemberIDsOf(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, ids[:21], memberIDs)

		n, err := repo.CountMembers(ctx, src)
		require.NoError(t, err)
		assert.Equal(t, 21, n)

		page, err := repo.ListMembers(ctx, model.MemberListOptions{CollectionID: src, Limit: 10, Offset: 20})
		require.NoError(t, err)
		assert.Equal(t, 21, page.Total)
		require.Len(t, page.Companies, 1)
		assert.Equal(t, ids[20], page.Companies[0].ID)
		assert.True(t, page.Companies[0].Liked)

		first, err := repo.ListMembers(ctx, model.MemberListOptions{CollectionID: src, Limit: 2})
		require.NoError(t, err)
		require.Len(t, first.Companies, 2)
		assert.False(t, first.Companies[0].Liked)
		assert.True(t, first.Companies[1].Liked)
	})
}

func TestMembershipRepo_Integration_BatchCommitsAndRollsBack(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewMembershipRepo(db, MembershipRepoOptions{})
		ctx := context.Background()
		target := testutil.SeedCollection(t, db, "Target")
		ids := testutil.SeedCompanies(t, db, 5)
		testutil.SeedMemberships(t, db, target, []int64{ids[1], ids[3]})

		err := repo.WithBatch(ctx, func(b core.MembershipBatch) error {
			existing, err := b.ExistingMembers(ctx, target, ids)
			if err != nil {
				return err
			}
			assert.Len(t, existing, 2)
			assert.Contains(t, existing, ids[1])
			assert.Contains(t, existing, ids[3])

			n, err := b.InsertMemberships(ctx, target, []int64{ids[0], ids[2], ids[4]})
			assert.Equal(t, 3, n)
			return err
		})
		require.NoError(t, err)

		rows, distinct := testutil.CountMemberships(t, db, target)
		assert.Equal(t, 5, rows)
		assert.Equal(t, 5, distinct)

		// A duplicate pair fails the batch and nothing from it is kept.
		extra := testutil.SeedCompanies(t, db, 1)
		err = repo.WithBatch(ctx, func(b core.MembershipBatch) error {
			_, err := b.InsertMemberships(ctx, target, []int64{extra[0], ids[0]})
			return err
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err), "got %v", err)

		rows, _ = testutil.CountMemberships(t, db, target)
		assert.Equal(t, 5, rows)

		// Callback errors roll back too.
		sentinel := errors.New("stop")
		err = repo.WithBatch(ctx, func(b core.MembershipBatch) error {
			if _, insErr := b.InsertMemberships(ctx, target, extra); insErr != nil {
				return insErr
			}
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		rows, _ = testutil.CountMemberships(t, db, target)
		assert.Equal(t, 5, rows)
	})
}
