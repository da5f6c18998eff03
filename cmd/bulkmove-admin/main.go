// Command bulkmove-admin runs schema migrations and inspects or manages transfer jobs.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/bulkmove/config"
	"github.com/target/bulkmove/internal/bootstrap"
	"github.com/target/bulkmove/internal/core"
)

const defaultMigrationTimeout = 5 * time.Minute

// ledgerOpener returns the configured ledger plus a cleanup for its connections.
type ledgerOpener func(ctx context.Context, app *adminApp) (core.TransferLedger, func() error, error)

type adminApp struct {
	logger     *slog.Logger
	cfg        config.AppConfig
	loadConfig func() (config.AppConfig, error)
	openLedger ledgerOpener
	in         io.Reader
}

func main() {
	logger := bootstrap.InitLogger()
	app := &adminApp{
		logger:     logger,
		loadConfig: bootstrap.LoadConfig,
		openLedger: openConfiguredLedger,
		in:         os.Stdin,
	}
	if err := newRootCmd(app).ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func newRootCmd(app *adminApp) *cobra.Command {
	root := &cobra.Command{
		Use:   "bulkmove-admin",
		Short: "Operate the bulkmove transfer service",
		Long: `bulkmove-admin manages the bulkmove database schema and the transfer job ledger.

Configuration is read from the same environment variables as the service
(DB_*, REDIS_*, TRANSFER_LEDGER, ...), including a local .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			app.cfg = cfg
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(app),
		newDBResetCmd(app),
		newTransfersCmd(app),
	)
	return root
}
