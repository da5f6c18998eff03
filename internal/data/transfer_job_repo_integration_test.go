package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/bulkmove/internal/core"
	apperrors "github.com/target/bulkmove/internal/errors"
	"github.com/target/bulkmove/internal/testutil"
)

func TestTransferJobRepo_Integration_Contract(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	runLedgerContract(t, func(t *testing.T) core.TransferLedger {
		db := testutil.SetupEphemeralSchemaDB(t)
		return NewTransferJobRepo(db, RepoConfig{})
	})
}

func TestTransferJobRepo_Integration_NonUUIDIsNotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewTransferJobRepo(db, RepoConfig{})
		ctx := context.Background()

		_, err := repo.Get(ctx, "not-a-uuid")
		assert.True(t, apperrors.IsNotFound(err))
		assert.True(t, apperrors.IsNotFound(repo.RequestCancel(ctx, "not-a-uuid")))
		_, err = repo.Advance(ctx, "not-a-uuid", 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}
