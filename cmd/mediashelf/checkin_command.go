package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediashelf/internal/catalog"
	"mediashelf/internal/checkin"
	"mediashelf/internal/config"
	"mediashelf/internal/placement"
)

func newCheckinCommand(ctx *commandContext) *cobra.Command {
	var inbox, archive, policy string

	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Check in every media file currently in the inbox",
		Long: "Fingerprints, deduplicates, archives and registers inbox files once.\n" +
			"Exits non-zero when any file had to be rolled back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err = applyCheckinOverrides(cfg, inbox, archive, policy)
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *catalog.Store) error {
				pipeline, err := newPipeline(cfg, store, logger)
				if err != nil {
					return err
				}
				summary, runErr := pipeline.Run(cmd.Context())
				out := cmd.OutOrStdout()
				printCheckinSummary(out, summary, shouldColorize(out))
				if runErr != nil {
					return runErr
				}
				if summary.HasRollback() {
					return fmt.Errorf("%d file(s) rolled back, %d rollback(s) failed; see the log for replay detail",
						summary.RolledBack, summary.RollbackFailed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&inbox, "inbox", "", "Inbox directory (overrides paths.inbox_dir)")
	cmd.Flags().StringVar(&archive, "archive", "", "Archive directory (overrides paths.archive_dir)")
	cmd.Flags().StringVar(&policy, "policy", "", "Collision policy: fail or disambiguate")
	return cmd
}

func applyCheckinOverrides(cfg *config.Config, inbox, archive, policy string) (*config.Config, error) {
	if strings.TrimSpace(inbox) == "" && strings.TrimSpace(archive) == "" && strings.TrimSpace(policy) == "" {
		return cfg, nil
	}
	copyCfg := *cfg
	if value := strings.TrimSpace(inbox); value != "" {
		expanded, err := config.ExpandPath(value)
		if err != nil {
			return nil, fmt.Errorf("resolve inbox: %w", err)
		}
		copyCfg.Paths.InboxDir = expanded
	}
	if value := strings.TrimSpace(archive); value != "" {
		expanded, err := config.ExpandPath(value)
		if err != nil {
			return nil, fmt.Errorf("resolve archive: %w", err)
		}
		copyCfg.Paths.ArchiveDir = expanded
	}
	if value := strings.TrimSpace(policy); value != "" {
		copyCfg.Checkin.CollisionPolicy = strings.ToLower(value)
	}
	if err := copyCfg.Validate(); err != nil {
		return nil, err
	}
	if err := copyCfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return &copyCfg, nil
}

func newPipeline(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*checkin.Pipeline, error) {
	opts, err := checkin.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	metrics, err := checkin.NewMetrics()
	if err != nil {
		return nil, err
	}
	opts.Metrics = metrics
	return checkin.New(store, placement.NewEngine(logger), opts, logger), nil
}

func runCheckinOnce(ctx context.Context, pipeline *checkin.Pipeline) error {
	summary, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	if summary.HasRollback() {
		return fmt.Errorf("%d file(s) rolled back", summary.RolledBack+summary.RollbackFailed)
	}
	return nil
}

func printCheckinSummary(out io.Writer, summary checkin.Summary, colorize bool) {
	if len(summary.Results) > 0 {
		rows := make([][]string, 0, len(summary.Results))
		for _, res := range summary.Results {
			detail := res.Destination
			if res.Err != nil {
				detail = res.Err.Error()
			}
			rows = append(rows, []string{filepath.Base(res.Source), renderState(res.State, colorize), res.FileID, detail})
		}
		columns := []column{
			{title: "File", maxWidth: 48},
			{title: "State"},
			{title: "File ID"},
			{title: "Destination / Error", maxWidth: 80},
		}
		footer := []string{fmt.Sprintf("%d file(s)", summary.Processed()), "", "", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String()}
		fmt.Fprintln(out, renderTable(columns, rows, footer))
	}

	fmt.Fprintln(out, renderStatusLine("Registered", statusOK, fmt.Sprint(summary.Registered), colorize))
	fmt.Fprintln(out, renderStatusLine("Duplicates", statusInfo, fmt.Sprint(summary.Duplicates), colorize))
	fmt.Fprintln(out, renderStatusLine("Failed", countKind(summary.Failed, statusWarn), fmt.Sprint(summary.Failed), colorize))
	fmt.Fprintln(out, renderStatusLine("Rolled back", countKind(summary.RolledBack+summary.RollbackFailed, statusError),
		fmt.Sprintf("%d (%d failed to restore)", summary.RolledBack, summary.RollbackFailed), colorize))
}
