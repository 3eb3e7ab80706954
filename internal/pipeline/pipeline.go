// Package pipeline drives the reconstruction of legacy corporations.
//
// Run selects a bounded batch of corporations, claims each one, and walks
// its events after the watermark strictly in event order: classify,
// assemble, fold corrections, build, and file inside one transaction that
// also advances the watermark. Corporations run in parallel up to
// MaxWorkers; events of one corporation never do.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bcgov/colin-migrate/internal/assembler"
	"github.com/bcgov/colin-migrate/internal/filer"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/metrics"
	"github.com/bcgov/colin-migrate/internal/notify"
	"github.com/bcgov/colin-migrate/internal/policy"
	"github.com/bcgov/colin-migrate/internal/selector"
	"github.com/bcgov/colin-migrate/internal/store"
)

// Ledger is the read surface of the legacy ledger. *ledger.Reader
// implements it.
type Ledger interface {
	assembler.Source
	CorpEventSummaries(ctx context.Context, filter ledger.Filter, after string, limit int) ([]ledger.CorpSummary, error)
	Events(ctx context.Context, corpNum string) ([]ledger.Event, error)
	CorrectionTouches(ctx context.Context, corpNum string, eventIDs []int64) ([]ledger.Touch, error)
}

var _ Ledger = (*ledger.Reader)(nil)

// Clock supplies wall-clock time for claims, watermarks and filings.
type Clock interface {
	Now() time.Time
}

// RunIDGenerator names each run; the id is written to every claim.
type RunIDGenerator interface {
	Generate() string
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// UUIDv7Generator generates time-sortable run ids.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Config bounds one run.
type Config struct {
	Scope        store.Scope
	CorpTypes    []string
	CorpNums     []string
	BatchLimit   int
	MaxWorkers   int
	EventTimeout time.Duration
	MaxAttempts  int
	RetryBase    time.Duration
	// StaleClaim is how old another run's PROCESSING claim must be before
	// this run takes the corporation over. Zero never takes over.
	StaleClaim time.Duration
}

// Pipeline reconstructs filings from a ledger into a target store.
type Pipeline struct {
	ledger    Ledger
	store     *store.Store
	selector  *selector.Selector
	assembler *assembler.Assembler
	filer     *filer.Filer
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	clock     Clock
	runIDs    RunIDGenerator
	cfg       Config
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithRunIDs replaces the UUIDv7 run id generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(p *Pipeline) { p.runIDs = g }
}

// WithNotifier sends post-commit notifications. The default sends none.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithMetrics records into m instead of a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a Pipeline.
func New(src Ledger, st *store.Store, table *policy.Table, cfg Config, opts ...Option) *Pipeline {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	p := &Pipeline{
		ledger:    src,
		store:     st,
		selector:  selector.New(table),
		assembler: assembler.New(src),
		notifier:  notify.Noop{},
		metrics:   metrics.New(),
		clock:     SystemClock{},
		runIDs:    UUIDv7Generator{},
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.filer = filer.New(p.clock)
	return p
}

// RunReport summarises one run.
type RunReport struct {
	RunID     string       `json:"run_id"`
	Selected  int          `json:"selected"`
	Corps     []CorpReport `json:"corps"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
}

// Count returns how many corporations ended with status.
func (r RunReport) Count(status store.Status) int {
	n := 0
	for _, c := range r.Corps {
		if c.Status == status {
			n++
		}
	}
	return n
}

// Run processes one batch of corporations.
//
// Per-corporation failures are recorded on their watermark and in the
// report; Run only returns an error when selection fails or ctx ends.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: p.runIDs.Generate(), StartedAt: p.clock.Now()}
	logger := slog.With("run_id", report.RunID, "flow", p.cfg.Scope.FlowName, "env", p.cfg.Scope.Environment)

	corps, err := p.selectCorps(ctx)
	if err != nil {
		return nil, err
	}
	report.Selected = len(corps)
	logger.Info("run started", "corps", len(corps), "workers", p.cfg.MaxWorkers)

	results := make([]CorpReport, len(corps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxWorkers)
	for i, s := range corps {
		g.Go(func() error {
			rep, err := p.processCorp(gctx, report.RunID, s.CorpNum)
			results[i] = rep
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.CorpNum != "" {
			report.Corps = append(report.Corps, r)
		}
	}
	report.EndedAt = p.clock.Now()
	logger.Info("run finished",
		"completed", report.Count(store.StatusCompleted),
		"partial", report.Count(store.StatusPartial),
		"failed", report.Count(store.StatusFailed))
	return report, nil
}

// selectCorps pages through the ledger's corporations in corp_num order
// until BatchLimit eligible ones are found.
func (p *Pipeline) selectCorps(ctx context.Context) ([]ledger.CorpSummary, error) {
	filter := ledger.Filter{CorpTypes: p.cfg.CorpTypes, CorpNums: p.cfg.CorpNums}
	page := max(p.cfg.BatchLimit*4, 100)

	var out []ledger.CorpSummary
	after := ""
	for {
		summaries, err := p.ledger.CorpEventSummaries(ctx, filter, after, page)
		if err != nil {
			return nil, fmt.Errorf("select corps: %w", err)
		}
		if len(summaries) == 0 {
			return out, nil
		}
		nums := make([]string, len(summaries))
		for i, s := range summaries {
			nums[i] = s.CorpNum
		}
		wms, err := p.store.Watermarks(ctx, p.cfg.Scope, nums)
		if err != nil {
			return nil, fmt.Errorf("select corps: %w", err)
		}

		remaining := 0
		if p.cfg.BatchLimit > 0 {
			remaining = p.cfg.BatchLimit - len(out)
		}
		out = append(out, selector.SelectCorps(summaries, wms, selector.Options{
			ReclaimStale: p.cfg.StaleClaim > 0,
			StaleAfter:   p.cfg.StaleClaim,
			BatchLimit:   remaining,
			Now:          p.clock.Now(),
		})...)

		if p.cfg.BatchLimit > 0 && len(out) >= p.cfg.BatchLimit {
			return out, nil
		}
		if len(summaries) < page {
			return out, nil
		}
		after = summaries[len(summaries)-1].CorpNum
	}
}

// Metrics returns the collectors the pipeline records into.
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}
