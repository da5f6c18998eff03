package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/bulkmove/config"
	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/data"
	"github.com/target/bulkmove/internal/domain/model"
	apperrors "github.com/target/bulkmove/internal/errors"
)

const targetColl = "9b2f1c3e-4d5a-4b6c-8d7e-0f1a2b3c4d5e"

type adminFixture struct {
	ledger *data.MemoryLedger
	clock  *data.FixedTimeProvider
	opened int
	closed int
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	clock := data.NewFixedTimeProvider(time.Now().Add(-30 * 24 * time.Hour).UTC())
	f := &adminFixture{ledger: data.NewMemoryLedger(clock), clock: clock}
	ctx := context.Background()

	f.create(t, "job-old")
	require.NoError(t, f.ledger.MarkRunning(ctx, "job-old", 3))
	_, err := f.ledger.Advance(ctx, "job-old", 3)
	require.NoError(t, err)
	require.NoError(t, f.ledger.SetStatus(ctx, "job-old", model.StatusUpdate{Status: model.TransferStatusCompleted}))

	clock.SetTime(time.Now().UTC())
	f.create(t, "job-new")
	return f
}

func (f *adminFixture) create(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.ledger.Create(context.Background(), &model.TransferJob{
		ID:                 id,
		TargetCollectionID: targetColl,
		Mode:               model.TransferModeSubset,
		CompanyIDs:         []int64{1, 2, 3},
		Total:              3,
		Status:             model.TransferStatusQueued,
	}))
}

func (f *adminFixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	app := &adminApp{
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		loadConfig: func() (config.AppConfig, error) {
			return config.AppConfig{Transfer: config.TransferConfig{Ledger: config.LedgerPostgres}}, nil
		},
		openLedger: func(context.Context, *adminApp) (core.TransferLedger, func() error, error) {
			f.opened++
			return f.ledger, func() error { f.closed++; return nil }, nil
		},
		in: strings.NewReader(stdin),
	}
	var out bytes.Buffer
	root := newRootCmd(app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTransfersList(t *testing.T) {
	f := newAdminFixture(t)

	out, err := f.run(t, "", "transfers", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "PROGRESS")
	assert.Contains(t, lines[1], "job-new")
	assert.Contains(t, lines[2], "job-old")
	assert.Contains(t, lines[2], "3/3")
	assert.Equal(t, f.opened, f.closed)

	out, err = f.run(t, "", "transfers", "list", "--status", "Completed")
	require.NoError(t, err)
	assert.Contains(t, out, "job-old")
	assert.NotContains(t, out, "job-new")

	_, err = f.run(t, "", "transfers", "list", "--status", "paused")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestTransfersListEmpty(t *testing.T) {
	f := &adminFixture{ledger: data.NewMemoryLedger(nil)}
	out, err := f.run(t, "", "transfers", "list")
	require.NoError(t, err)
	assert.Equal(t, "no transfer jobs\n", out)
}

func TestTransfersStatus(t *testing.T) {
	f := newAdminFixture(t)

	out, err := f.run(t, "", "transfers", "status", "job-old")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "3/3 (100.0%)")
	assert.Contains(t, out, "Duration:")

	out, err = f.run(t, "", "transfers", "status", "job-new", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "job-new"`)
	assert.Contains(t, out, `"status": "queued"`)

	_, err = f.run(t, "", "transfers", "status", "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.run(t, "", "transfers", "status")
	require.Error(t, err)
}

func TestTransfersCancel(t *testing.T) {
	f := newAdminFixture(t)

	out, err := f.run(t, "", "transfers", "cancel", "job-new")
	require.NoError(t, err)
	assert.Equal(t, "cancel requested for job job-new (queued)\n", out)
	requested, err := f.ledger.CancelRequested(context.Background(), "job-new")
	require.NoError(t, err)
	assert.True(t, requested)

	out, err = f.run(t, "", "transfers", "cancel", "job-old")
	require.NoError(t, err)
	assert.Equal(t, "job job-old already completed\n", out)
}

func TestTransfersPrune(t *testing.T) {
	t.Run("aborts without confirmation", func(t *testing.T) {
		f := newAdminFixture(t)
		_, err := f.run(t, "n\n", "transfers", "prune")
		require.EqualError(t, err, "aborted by user")
		assert.Zero(t, f.opened)
	})

	t.Run("deletes finished jobs past the cutoff", func(t *testing.T) {
		f := newAdminFixture(t)
		out, err := f.run(t, "yes\n", "transfers", "prune", "--older-than", "168h")
		require.NoError(t, err)
		assert.Contains(t, out, "pruned 1 transfer job(s)")

		_, err = f.ledger.Get(context.Background(), "job-old")
		assert.True(t, apperrors.IsNotFound(err))
		_, err = f.ledger.Get(context.Background(), "job-new")
		require.NoError(t, err)
	})

	t.Run("rejects non-positive age", func(t *testing.T) {
		f := newAdminFixture(t)
		_, err := f.run(t, "", "transfers", "prune", "--older-than", "0s", "--yes")
		require.Error(t, err)
	})
}

func TestConfigLoadFailureStopsCommand(t *testing.T) {
	app := &adminApp{
		logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
		loadConfig: func() (config.AppConfig, error) { return config.AppConfig{}, errors.New("bad env") },
		openLedger: func(context.Context, *adminApp) (core.TransferLedger, func() error, error) {
			t.Fatal("ledger should not be opened")
			return nil, nil, nil
		},
		in: strings.NewReader(""),
	}
	root := newRootCmd(app)
	root.SetOut(io.Discard)
	root.SetArgs([]string{"transfers", "list"})
	require.EqualError(t, root.Execute(), "bad env")
}

func TestOpenConfiguredLedgerRejectsMemory(t *testing.T) {
	app := &adminApp{cfg: config.AppConfig{Transfer: config.TransferConfig{Ledger: config.LedgerMemory}}}
	_, _, err := openConfiguredLedger(context.Background(), app)
	require.Error(t, err)
}

func TestIsLikelyRemoteHost(t *testing.T) {
	tests := map[string]bool{
		"":               false,
		"localhost":      false,
		"127.0.0.1":      false,
		"::1":            false,
		"db.local":       false,
		"127.0.0.2":      false,
		"10.0.0.5":       true,
		"db.example.com": true,
	}
	for host, want := range tests {
		assert.Equal(t, want, isLikelyRemoteHost(host), host)
	}
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, confirm(&out, strings.NewReader("Y\n"), "reset?"))
	assert.Contains(t, out.String(), "Continue? [y/N]")
	require.Error(t, confirm(io.Discard, strings.NewReader(""), "reset?"))
	require.Error(t, confirm(io.Discard, strings.NewReader("no\n"), "reset?"))
}

func TestRequireRemoteHostConfirmation(t *testing.T) {
	require.NoError(t, requireRemoteHostConfirmation(io.Discard, strings.NewReader("db.example.com\n"), "reset", "db.example.com"))
	require.Error(t, requireRemoteHostConfirmation(io.Discard, strings.NewReader("\n"), "reset", "db.example.com"))
}

func TestHasRedisConfig(t *testing.T) {
	assert.False(t, hasRedisConfig(nil))
	assert.False(t, hasRedisConfig(&config.RedisConfig{}))
	assert.True(t, hasRedisConfig(&config.RedisConfig{URI: "localhost:6379"}))
	assert.False(t, hasRedisConfig(&config.RedisConfig{UseSentinel: true, URI: "localhost:6379"}))
	assert.True(t, hasRedisConfig(&config.RedisConfig{UseSentinel: true, SentinelNodes: []string{"s:26379"}}))
}
