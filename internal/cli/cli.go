package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/internal/cli/config"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/internal/cli/hooks"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/internal/cli/ui"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/internal/metrics"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/actors"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/engine"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

// ActorResult is the outcome of one actor in one pass.
type ActorResult struct {
	Actor string `json:"actor"`
	// Skipped is set when the source directory was missing or empty.
	Skipped bool                 `json:"skipped"`
	Summary *workflow.RunSummary `json:"summary,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// Run executes one pass over every configured actor, or, when s.Interval is positive,
// repeats passes until ctx is cancelled. Summaries are written to out unless the TUI is on.
func Run(ctx context.Context, s config.Settings, logger *slog.Logger, out io.Writer) error {
	reg := prometheus.NewRegistry()
	r := &runner{
		settings: s,
		logger:   logger,
		out:      out,
		registry: reg,
		metrics:  metrics.NewWorkflowMetrics(reg),
	}
	if s.TuiEnabled {
		return r.runWithTUI(ctx)
	}
	return r.loop(ctx)
}

type runner struct {
	settings config.Settings
	logger   *slog.Logger
	out      io.Writer
	registry *prometheus.Registry
	metrics  *metrics.WorkflowMetrics
	program  hooks.TUIProgram
}

func (r *runner) runWithTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(r.settings.AppVersion)
	p := tea.NewProgram(&model, tea.WithContext(ctx), tea.WithAltScreen())
	r.program = p

	errCh := make(chan error, 1)
	go func() { errCh <- r.loop(ctx) }()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		r.logger.Error("Terminal UI failed", slog.Any("error", err))
	}
	// Quitting the TUI stops any pass still in flight.
	cancel()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *runner) loop(ctx context.Context) error {
	if r.settings.Interval <= 0 {
		return r.pass(ctx)
	}

	ticker := time.NewTicker(r.settings.Interval)
	defer ticker.Stop()
	for {
		if err := r.pass(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Pass finished with errors; waiting for next interval",
				slog.String("error", err.Error()),
				slog.Duration("interval", r.settings.Interval))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// pass runs every configured actor once, in order, then publishes metrics and summaries.
func (r *runner) pass(ctx context.Context) error {
	var result *multierror.Error
	results := make([]ActorResult, 0, len(r.settings.Actors))
	for _, name := range r.settings.Actors {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}
		res, err := r.runActor(ctx, name)
		results = append(results, res)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("actor %s: %w", name, err))
		}
	}
	if r.program != nil {
		r.program.Send(ui.AllRunsCompleteMsg{})
	}

	if r.settings.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(r.settings.MetricsTextfile, r.registry); err != nil {
			r.logger.Warn("Failed to write metrics textfile",
				slog.String("path", r.settings.MetricsTextfile),
				slog.String("error", err.Error()))
		}
	}
	if r.program == nil {
		if err := renderResults(r.out, r.settings.OutputFormat, results); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *runner) runActor(ctx context.Context, name string) (ActorResult, error) {
	res := ActorResult{Actor: name}

	actor, err := actors.New(name, actors.Options{
		DataRoot:        r.settings.DataRoot,
		Fs:              fsOf(r.settings.FileStore),
		DefaultEncoding: r.settings.DefaultEncoding,
		Logger:          r.settings.Logger,
	})
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	recorder := &summaryRecorder{next: hooks.NewCLIHooks(r.logger, name, r.settings.TuiEnabled, r.settings.Verbose, r.program)}
	opts := r.settings.Options
	opts.EventHooks = metrics.NewHooks(name, r.metrics, recorder)
	if opts.EngineOpener == nil {
		opts.EngineOpener = engine.NewDuckDBOpener(r.settings.DatabasePath)
	}

	orch, err := workflow.NewOrchestrator(opts)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	runErr := orch.Run(ctx, actor)
	res.Summary = recorder.summary
	res.Skipped = recorder.summary == nil && runErr == nil
	if runErr != nil {
		res.Error = runErr.Error()
	}
	return res, runErr
}

// fsOf returns the afero filesystem behind store, or nil for the host filesystem.
func fsOf(store workflow.FileStore) afero.Fs {
	if s, ok := store.(*workflow.AferoFileStore); ok {
		return s.Fs()
	}
	return nil
}

// summaryRecorder keeps the summary passed to OnRunComplete and forwards every event.
type summaryRecorder struct {
	next    workflow.Hooks
	summary *workflow.RunSummary
}

func (h *summaryRecorder) OnRunStart(plan workflow.RunPlan) error {
	return h.next.OnRunStart(plan)
}

func (h *summaryRecorder) OnBatchStatusUpdate(batch workflow.Batch, status workflow.BatchStatus, message string, duration time.Duration) error {
	return h.next.OnBatchStatusUpdate(batch, status, message, duration)
}

func (h *summaryRecorder) OnRunComplete(summary workflow.RunSummary) error {
	h.summary = &summary
	return h.next.OnRunComplete(summary)
}

func renderResults(out io.Writer, format config.OutputFormat, results []ActorResult) error {
	if format == config.OutputFormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, res := range results {
		var err error
		switch {
		case res.Summary == nil && res.Error != "":
			_, err = fmt.Fprintf(out, "%s: failed: %s\n", res.Actor, res.Error)
		case res.Summary == nil:
			_, err = fmt.Fprintf(out, "%s: nothing to process\n", res.Actor)
		default:
			sum := res.Summary
			_, err = fmt.Fprintf(out, "%s: run %s, %d files in %d batches, %d succeeded, %d quarantined",
				res.Actor, sum.CorrelationID, sum.FilesDiscovered, sum.BatchCount, sum.SucceededCount, sum.QuarantinedCount)
			if err == nil && sum.ReportsGenerated {
				_, err = fmt.Fprintf(out, ", reports at %s", sum.ReportPrefix)
			}
			if err == nil && res.Error != "" {
				_, err = fmt.Fprintf(out, ", failed: %s", res.Error)
			}
			if err == nil {
				_, err = fmt.Fprintln(out)
			}
		}
		if err != nil {
			return fmt.Errorf("writing run summary: %w", err)
		}
	}
	return nil
}
