package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bcgov/colin-migrate/internal/metrics"
	"github.com/bcgov/colin-migrate/internal/notify"
	"github.com/bcgov/colin-migrate/internal/pipeline"
	"github.com/bcgov/colin-migrate/internal/policy"
	"github.com/bcgov/colin-migrate/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	dbFlags
	Limit       int
	Workers     int
	Corps       []string
	CorpTypes   []string
	MetricsAddr string

	// Clock and RunIDs override the wall clock and UUIDv7 run ids (for testing).
	Clock  pipeline.Clock
	RunIDs pipeline.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Migrate one batch of corporations",
		Long: `Select up to --limit corporations with unprocessed ledger events and
rebuild their filings in event order.

Each corporation resumes after its last processed event. A corporation whose
event fails stops at that event and is marked FAILED; unsupported events are
skipped and the corporation ends PARTIAL.

Example:
  colinmig run --config colinmig.yaml
  colinmig run --ledger ./ledger.db --db ./lear.db --corp CP0001234 -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, opts)
		},
	}

	opts.bindTarget(cmd)
	opts.bindLedger(cmd)
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum corporations to process (overrides pipeline.batch_limit)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "corporations processed in parallel (overrides pipeline.max_workers)")
	cmd.Flags().StringSliceVar(&opts.Corps, "corp", nil, "only process these corporation numbers (repeatable)")
	cmd.Flags().StringSliceVar(&opts.CorpTypes, "corp-type", nil, "only process these corporation types (overrides pipeline.corp_types)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running (overrides metrics.addr)")

	return cmd
}

func runMigration(cmd *cobra.Command, opts *RunOptions) error {
	cfg, err := loadConfig(opts.RootOptions, opts.dbFlags)
	if err != nil {
		return err
	}
	if opts.Limit > 0 {
		cfg.Pipeline.BatchLimit = opts.Limit
	}
	if opts.Workers > 0 {
		cfg.Pipeline.MaxWorkers = opts.Workers
	}
	if len(opts.CorpTypes) > 0 {
		cfg.Pipeline.CorpTypes = opts.CorpTypes
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}
	setupLogging(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	table, err := policy.Load(cfg.Policy.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load filing policy", err)
	}
	out.VerboseLog("filing policy: %d legacy codes", len(table.Codes()))
	out.VerboseLog("scope: flow=%s env=%s limit=%d workers=%d",
		cfg.Scope().FlowName, cfg.Scope().Environment, cfg.Pipeline.BatchLimit, cfg.Pipeline.MaxWorkers)

	st, err := openTarget(cfg.Target)
	if err != nil {
		return err
	}
	defer closeQuietly("target", st)

	reader, ledgerDB, err := openLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	defer closeQuietly("ledger", ledgerDB)

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after in-flight events", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.Enabled {
		notifier = notify.NewHTTP(cfg.Notify.BaseURL, cfg.Notify.RatePerSecond, cfg.Notify.Burst, cfg.NotifyTimeout(), http.DefaultClient)
	}

	pipeOpts := []pipeline.Option{pipeline.WithMetrics(m), pipeline.WithNotifier(notifier)}
	if opts.Clock != nil {
		pipeOpts = append(pipeOpts, pipeline.WithClock(opts.Clock))
	}
	if opts.RunIDs != nil {
		pipeOpts = append(pipeOpts, pipeline.WithRunIDs(opts.RunIDs))
	}
	p := pipeline.New(reader, st, table, pipeline.Config{
		Scope:        cfg.Scope(),
		CorpTypes:    cfg.Pipeline.CorpTypes,
		CorpNums:     opts.Corps,
		BatchLimit:   cfg.Pipeline.BatchLimit,
		MaxWorkers:   cfg.Pipeline.MaxWorkers,
		EventTimeout: cfg.EventTimeout(),
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RetryBase:    cfg.RetryBase(),
		StaleClaim:   cfg.StaleClaim(),
	}, pipeOpts...)

	report, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "run interrupted", err).WithReason(CodeInterrupted)
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	if err := out.Success(runSummary{report}); err != nil {
		return err
	}
	if n := report.Count(store.StatusFailed); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d corporation(s) failed", n)).WithReason(CodeCorpFailed)
	}
	return nil
}

// runSummary renders a run report; JSON output is the report itself.
type runSummary struct {
	*pipeline.RunReport
}

func (s runSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d selected, %d completed, %d partial, %d failed",
		s.RunID, s.Selected,
		s.Count(store.StatusCompleted), s.Count(store.StatusPartial), s.Count(store.StatusFailed))
	for _, c := range s.Corps {
		if c.Held {
			fmt.Fprintf(&b, "\n  %s  held by another run", c.CorpNum)
			continue
		}
		fmt.Fprintf(&b, "\n  %-10s %-10s filed=%d absorbed=%d replayed=%d skipped=%d warnings=%d",
			c.CorpNum, c.Status, len(c.Filed), len(c.Absorbed), len(c.Replayed), len(c.Skipped), c.Warnings)
		if c.FailedEventID != nil {
			fmt.Fprintf(&b, "\n    failed at event %d: %s", *c.FailedEventID, c.Error)
		}
		for _, sk := range c.Skipped {
			fmt.Fprintf(&b, "\n    skipped event %d (%s): %s", sk.EventID, sk.ErrorKind, sk.Reason)
		}
	}
	return b.String()
}
