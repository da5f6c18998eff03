package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/bulkmove/internal/core"
	"github.com/target/bulkmove/internal/domain/model"
)

const (
	defaultPruneAge = 7 * 24 * time.Hour
	ledgerOpTimeout = time.Minute
)

func newTransfersCmd(app *adminApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Inspect and manage transfer jobs in the ledger",
	}
	cmd.AddCommand(
		newTransfersListCmd(app),
		newTransfersStatusCmd(app),
		newTransfersCancelCmd(app),
		newTransfersPruneCmd(app),
	)
	return cmd
}

// withLedger opens the configured ledger for the duration of f.
func withLedger(cmd *cobra.Command, app *adminApp, f func(context.Context, core.TransferLedger) error) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, ledgerOpTimeout)
	defer cancel()

	ledger, cleanup, err := app.openLedger(ctx, app)
	if err != nil {
		return err
	}
	defer func() {
		if cleanup == nil {
			return
		}
		if cerr := cleanup(); cerr != nil {
			app.logger.Warn("close ledger connections failed", "error", cerr)
		}
	}()
	return f(ctx, ledger)
}

func newTransfersListCmd(app *adminApp) *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transfer jobs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := model.TransferListOptions{Limit: limit, Offset: offset}
			if status != "" {
				st := model.TransferStatus(strings.ToLower(strings.TrimSpace(status)))
				if !st.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				opts.Status = &st
			}
			return withLedger(cmd, app, func(ctx context.Context, ledger core.TransferLedger) error {
				jobs, err := ledger.List(ctx, opts)
				if err != nil {
					return fmt.Errorf("list transfers: %w", err)
				}
				return printJobTable(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show jobs in this status (queued, running, completed, failed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", model.DefaultTransferListLimit, "Maximum number of jobs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of jobs to skip")
	return cmd
}

func newTransfersStatusCmd(app *adminApp) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show one transfer job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, app, func(ctx context.Context, ledger core.TransferLedger) error {
				job, err := ledger.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(job)
				}
				return printJobDetail(cmd.OutOrStdout(), job)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw ledger record as JSON")
	return cmd
}

func newTransfersCancelCmd(app *adminApp) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a transfer job",
		Long: `Sets the cancel flag on the job. A running job stops before its next batch;
a queued job is cancelled when a runner or the reaper picks it up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withLedger(cmd, app, func(ctx context.Context, ledger core.TransferLedger) error {
				if err := ledger.RequestCancel(ctx, id); err != nil {
					return err
				}
				job, err := ledger.Get(ctx, id)
				if err != nil {
					return err
				}
				if job.Status.Terminal() {
					return writef(cmd.OutOrStdout(), "job %s already %s\n", id, job.Status)
				}
				return writef(cmd.OutOrStdout(), "cancel requested for job %s (%s)\n", id, job.Status)
			})
		},
	}
}

func newTransfersPruneCmd(app *adminApp) *cobra.Command {
	var (
		olderThan time.Duration
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished transfer jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be greater than zero")
			}
			cutoff := time.Now().Add(-olderThan).UTC()
			if !yes {
				msg := "About to delete transfer jobs that finished before " + cutoff.Format(time.RFC3339) + "."
				if err := confirm(cmd.OutOrStdout(), app.in, msg); err != nil {
					return err
				}
			}
			return withLedger(cmd, app, func(ctx context.Context, ledger core.TransferLedger) error {
				n, err := ledger.Prune(ctx, cutoff)
				if err != nil {
					return fmt.Errorf("prune transfers: %w", err)
				}
				return writef(cmd.OutOrStdout(), "pruned %d transfer job(s)\n", n)
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", defaultPruneAge, "Minimum age since the job finished")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip confirmation prompt")
	return cmd
}

func printJobTable(out io.Writer, jobs []*model.TransferJob) error {
	if len(jobs) == 0 {
		return writeln(out, "no transfer jobs")
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tSTATUS\tMODE\tPROGRESS\tTARGET\tCREATED"); err != nil {
		return fmt.Errorf("write transfer header: %w", err)
	}
	for _, j := range jobs {
		status := string(j.Status)
		if j.CancelRequested && !j.Status.Terminal() {
			status += " (cancelling)"
		}
		if err := writef(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			j.ID,
			status,
			j.Mode,
			j.Processed,
			j.Total,
			j.TargetCollectionID,
			j.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("write transfer row: %w", err)
		}
	}
	return w.Flush()
}

func printJobDetail(out io.Writer, j *model.TransferJob) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"ID", j.ID},
		{"Status", string(j.Status)},
		{"Mode", string(j.Mode)},
		{"Source", orDash(j.SourceCollectionID)},
		{"Target", j.TargetCollectionID},
		{"Progress", fmt.Sprintf("%d/%d (%.1f%%)", j.Processed, j.Total, model.PercentComplete(j.Processed, j.Total))},
		{"Cancel Requested", fmt.Sprintf("%t", j.CancelRequested)},
		{"Error", orDash(j.Error)},
		{"Created", j.CreatedAt.UTC().Format(time.RFC3339)},
		{"Started", formatTime(j.StartedAt)},
		{"Finished", formatTime(j.FinishedAt)},
	}
	if j.StartedAt != nil && j.FinishedAt != nil {
		rows = append(rows, [2]string{"Duration", j.FinishedAt.Sub(*j.StartedAt).Round(time.Millisecond).String()})
	}
	for _, r := range rows {
		if err := writef(w, "%s:\t%s\n", r[0], r[1]); err != nil {
			return fmt.Errorf("write transfer detail: %w", err)
		}
	}
	return w.Flush()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
