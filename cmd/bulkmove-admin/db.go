package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/bulkmove/internal/bootstrap"
	"github.com/target/bulkmove/internal/migrate"
)

func newMigrateCmd(app *adminApp) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if timeout <= 0 {
				return errors.New("--timeout must be greater than zero")
			}
			return withDatabase(cmd.Context(), app, timeout, func(ctx context.Context, db *sql.DB) error {
				app.logger.Info("running database migrations")
				if err := bootstrap.RunMigrations(ctx, db, app.logger); err != nil {
					return err
				}
				app.logger.Info("migrations completed successfully")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List embedded migrations and when they were applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), app, defaultMigrationTimeout, func(ctx context.Context, db *sql.DB) error {
				migrations, err := migrate.Status(ctx, db)
				if err != nil {
					return err
				}
				return printMigrations(cmd.OutOrStdout(), migrations)
			})
		},
	})
	return cmd
}

func printMigrations(out io.Writer, migrations []migrate.Migration) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "VERSION\tAPPLIED"); err != nil {
		return fmt.Errorf("write migration header: %w", err)
	}
	for _, m := range migrations {
		applied := "pending"
		if m.AppliedAt != nil {
			applied = m.AppliedAt.UTC().Format(time.RFC3339)
		}
		if err := writef(w, "%s\t%s\n", m.Version, applied); err != nil {
			return fmt.Errorf("write migration row: %w", err)
		}
	}
	return w.Flush()
}

type dbResetOptions struct {
	Timeout     time.Duration
	Yes         bool
	AllowRemote bool
}

func newDBResetCmd(app *adminApp) *cobra.Command {
	opts := dbResetOptions{}
	cmd := &cobra.Command{
		Use:   "db-reset",
		Short: "Drop the public schema and re-run migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Timeout <= 0 {
				return errors.New("--timeout must be greater than zero")
			}
			return runDBReset(cmd, app, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for reset operations to complete")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&opts.AllowRemote, "allow-remote", false,
		"Permit running against database hosts that do not look local")
	return cmd
}

func runDBReset(cmd *cobra.Command, app *adminApp, opts dbResetOptions) error {
	pg := app.cfg.Postgres
	remote, err := guardRemoteHost(app, cmd, opts.AllowRemote, "drop and recreate the public schema")
	if err != nil {
		return err
	}

	// A remote host always needs an interactive confirmation.
	if !opts.Yes || remote {
		target := fmt.Sprintf("database %q on %s:%d", pg.Name, pg.Host, pg.Port)
		if confirmErr := confirm(cmd.OutOrStdout(), app.in, "About to reset the schema of "+target+"."); confirmErr != nil {
			return confirmErr
		}
	}

	return withDatabase(cmd.Context(), app, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		app.logger.Info("dropping public schema", "database", pg.Name)
		if resetErr := resetDatabase(ctx, db, pg.User); resetErr != nil {
			return resetErr
		}

		app.logger.Info("re-running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, app.logger); migrateErr != nil {
			return migrateErr
		}

		app.logger.Info("database reset completed successfully")
		return nil
	})
}

func withDatabase(
	parent context.Context,
	app *adminApp,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: app.cfg.Postgres,
		Logger:   app.logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			app.logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func resetDatabase(ctx context.Context, db *sql.DB, user string) error {
	statements := []string{
		"DROP SCHEMA public CASCADE",
		"CREATE SCHEMA public",
		"GRANT ALL ON SCHEMA public TO public",
	}
	if user = strings.TrimSpace(user); user != "" && !strings.EqualFold(user, "public") {
		statements = append(statements, "GRANT ALL ON SCHEMA public TO "+quoteIdentifier(user))
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func guardRemoteHost(app *adminApp, cmd *cobra.Command, allow bool, action string) (bool, error) {
	host := app.cfg.Postgres.Host
	if !isLikelyRemoteHost(host) {
		return false, nil
	}
	if !allow {
		return true, fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			host,
		)
	}
	return true, requireRemoteHostConfirmation(cmd.ErrOrStderr(), app.in, action, host)
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return false
	}
	if strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func requireRemoteHostConfirmation(out io.Writer, in io.Reader, action, host string) error {
	if err := writef(out,
		"\nWARNING: database host %q does not look like a local address.\nThis operation will %s.\n",
		host, action,
	); err != nil {
		return fmt.Errorf("print remote host warning: %w", err)
	}
	if err := writef(out, "Type %q to continue or press enter to abort: ", host); err != nil {
		return fmt.Errorf("print remote host prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(resp) != host {
		return errors.New("aborted by user")
	}
	return nil
}

// confirm prints msg and accepts only y or yes.
func confirm(out io.Writer, in io.Reader, msg string) error {
	if err := writef(out, "%s\nContinue? [y/N]: ", msg); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
