package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/bulkmove/config"
	"github.com/target/bulkmove/internal/bootstrap"
	"github.com/target/bulkmove/internal/core"
)

var errRedisNotConfigured = errors.New("redis not configured")

// openConfiguredLedger connects Postgres, and Redis when the ledger lives there, then opens
// the ledger selected by TRANSFER_LEDGER.
//
//nolint:ireturn // the ledger backend is chosen at runtime.
func openConfiguredLedger(_ context.Context, app *adminApp) (core.TransferLedger, func() error, error) {
	if app.cfg.Transfer.Ledger == config.LedgerMemory {
		return nil, nil, errors.New("TRANSFER_LEDGER=memory is private to the running service; nothing to inspect")
	}

	wantRedis := app.cfg.Transfer.Ledger == config.LedgerRedis
	db, rdb, err := connectInfra(app.logger, &app.cfg, wantRedis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return closeInfra(db, rdb) }

	ledger, err := bootstrap.NewLedger(&app.cfg, db, rdb, app.logger)
	if err != nil {
		return nil, nil, errors.Join(err, cleanup())
	}
	return ledger, cleanup, nil
}

// connectInfra connects Postgres and, when wantRedis is set, Redis.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel support flexible.
func connectInfra(logger *slog.Logger, cfg *config.AppConfig, wantRedis bool) (*sql.DB, redis.UniversalClient, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	if !wantRedis {
		return db, nil, nil
	}

	client, err := maybeConnectRedis(logger, &cfg.Redis)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close db: %w", closeErr))
		}
		return nil, nil, err
	}
	return db, client, nil
}

// maybeConnectRedis returns a connected client when configuration is present.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel support flexible.
func maybeConnectRedis(logger *slog.Logger, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if !hasRedisConfig(cfg) {
		return nil, errRedisNotConfigured
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: *cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func hasRedisConfig(cfg *config.RedisConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.UseSentinel {
		return len(cfg.SentinelNodes) > 0
	}
	return cfg.URI != ""
}

func closeInfra(db *sql.DB, redisClient redis.UniversalClient) error {
	var closeErr error
	if db != nil {
		if err := db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}
