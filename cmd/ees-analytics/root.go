package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/internal/cli"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/internal/cli/config"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/actors"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	var cfgFile, profileName string

	cmd := &cobra.Command{
		Use:   "ees-analytics",
		Short: "Ingests recorded analytics request files into DuckDB and writes Parquet reports.",
		Long: `ees-analytics consumes the JSON request files recorded by the statistics
service, loads them into an analytical engine in fixed-size batches and writes
Parquet reports.

Batches that fail to ingest are moved to a failures area for inspection while
the remaining batches carry on. It can run once or repeatedly on an interval.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			settings, logger, err := config.LoadAndValidate(cfgFile, profileName, version, cmd.Flags())
			if err != nil {
				return err
			}
			if settings.TuiEnabled && (settings.Verbose || !isTerminal(cmd)) {
				settings.TuiEnabled = false
			}

			return cli.Run(ctx, settings, logger, cmd.OutOrStdout())
		},
	}
	cmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Configuration file path (default is search ., $HOME/.config/ees-analytics/, $HOME/.ees-analytics/)")
	pf.StringVar(&profileName, "profile", "", "Name of configuration profile to use")
	pf.BoolP("verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")

	f := cmd.Flags()
	f.StringP("data-root", "d", config.DefaultDataRoot, "Root directory holding the recorded request files and reports")
	f.StringSliceP("actor", "a", nil, fmt.Sprintf("Actor(s) to run (default all: %v)", actors.Names()))
	f.Int("batch-size", workflow.DefaultBatchSize, "Number of request files per batch")
	f.Int("concurrency", workflow.DefaultConcurrency, "Parallel file moves per batch (0 for auto-detect CPU cores)")
	f.Bool("no-lock", workflow.DefaultDisableLock, "Do not take the advisory lock on each source directory")
	f.String("database", "", "DuckDB database file (default in-memory)")
	f.String("default-encoding", "", `Fallback encoding for request files that are not UTF-8 (e.g. "windows-1252")`)
	f.Duration("interval", config.DefaultInterval, "Repeat every interval until interrupted (0 runs once)")
	f.String("metrics-textfile", "", "Write Prometheus metrics to this file after every pass")
	f.Bool("no-tui", false, "Disable interactive Terminal UI even if in a TTY")
	f.String("output-format", string(config.DefaultOutputFormat), `Run summary format ("text", "json")`)

	return cmd
}

func isTerminal(cmd *cobra.Command) bool {
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
