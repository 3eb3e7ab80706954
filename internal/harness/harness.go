package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/filing"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/pipeline"
	"github.com/bcgov/colin-migrate/internal/policy"
	"github.com/bcgov/colin-migrate/internal/store"
	"github.com/bcgov/colin-migrate/internal/testutil"
)

// Scope is the watermark scope every scenario runs under.
var Scope = store.Scope{FlowName: "colin-migrate", Environment: "test"}

// clockStart is the first tick of the deterministic clock.
var clockStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and run ids.
type Harness struct {
	ledger *failingLedger
	store  *store.Store
	table  *policy.Table
	clock  *testutil.StepClock
	runIDs *testutil.FixedRunIDs
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against fresh SQLite ledger and target databases in a
// temporary directory, removed afterwards.
//
// Execution flow:
// 1. Seed the ledger with the scenario's fixtures and rows
// 2. Execute each run step, checking its report expectations
// 3. Evaluate assertions against the target
// 4. Snapshot the target for golden comparison
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "colinmig-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	ledgers := scenario.ledgers()
	db, err := testutil.OpenLedger(ctx, filepath.Join(dir, "ledger.db"), ledgers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to seed ledger: %w", err)
	}
	defer db.Close()
	for _, l := range ledgers[1:] {
		if err := testutil.Seed(ctx, db, l); err != nil {
			return nil, fmt.Errorf("failed to seed ledger: %w", err)
		}
	}

	st, err := store.Open("sqlite3", filepath.Join(dir, "target.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open target: %w", err)
	}
	defer st.Close()

	table, err := policy.Default()
	if err != nil {
		return nil, err
	}

	runIDs := make([]string, len(scenario.Runs))
	for i := range runIDs {
		runIDs[i] = fmt.Sprintf("run-%d", i+1)
	}
	h := &Harness{
		ledger: &failingLedger{Ledger: ledger.NewReader(db, store.DialectSQLite)},
		store:  st,
		table:  table,
		clock:  testutil.NewStepClock(clockStart, time.Second),
		runIDs: testutil.NewFixedRunIDs(runIDs...),
	}

	result := NewResult()
	for i, step := range scenario.Runs {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("run %d", i+1)
		}
		report, err := h.executeRun(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		result.Reports = append(result.Reports, report)
		for _, msg := range checkReport(report, step) {
			result.AddError(name + ": " + msg)
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	snap, err := h.snapshot(ctx, scenario.Name, corpNums(ledgers))
	if err != nil {
		return nil, err
	}
	result.Snapshot = snap
	return result, nil
}

func (h *Harness) executeRun(ctx context.Context, step RunStep) (*pipeline.RunReport, error) {
	for _, corp := range step.Reset {
		if _, err := h.store.Reset(ctx, Scope, corp, h.clock.Now()); err != nil {
			return nil, err
		}
	}
	h.ledger.failing = step.FailEvents

	p := pipeline.New(h.ledger, h.store, h.table, pipeline.Config{
		Scope:        Scope,
		CorpNums:     step.Corps,
		BatchLimit:   step.Limit,
		MaxWorkers:   1,
		EventTimeout: 30 * time.Second,
		MaxAttempts:  1,
		StaleClaim:   time.Hour,
	}, pipeline.WithClock(h.clock), pipeline.WithRunIDs(h.runIDs))
	return p.Run(ctx)
}

// snapshot reads the migrated state of each corporation.
func (h *Harness) snapshot(ctx context.Context, name string, corps []string) (Snapshot, error) {
	snap := Snapshot{Scenario: name, Corps: []CorpSnapshot{}}
	for _, corp := range corps {
		cs := CorpSnapshot{CorpNum: corp, Skipped: []int64{}, Filings: []FilingSnapshot{}}

		wm, err := h.store.Watermark(ctx, Scope, corp)
		if err != nil {
			return Snapshot{}, err
		}
		if wm != nil {
			cs.Status = string(wm.Status)
			cs.LastEvent = wm.LastProcessedEventID
		}
		skips, err := h.store.Skips(ctx, Scope, corp)
		if err != nil {
			return Snapshot{}, err
		}
		for _, s := range skips {
			cs.Skipped = append(cs.Skipped, s.EventID)
		}

		identifier := filing.Identifier(corp)
		biz, err := h.store.Business(ctx, identifier)
		switch {
		case err == nil:
			cs.LegalName = biz.LegalName
			cs.State = biz.State
		case !errors.Is(err, sql.ErrNoRows):
			return Snapshot{}, err
		}

		filings, err := h.store.Filings(ctx, identifier)
		if err != nil {
			return Snapshot{}, err
		}
		for _, f := range filings {
			cs.Filings = append(cs.Filings, FilingSnapshot{Type: f.FilingType, Status: f.Status, EventIDs: f.ColinEventIDs})
		}
		snap.Corps = append(snap.Corps, cs)
	}
	return snap, nil
}

func corpNums(ledgers []testutil.Ledger) []string {
	var out []string
	for _, l := range ledgers {
		for _, c := range l.Corporations {
			out = append(out, c.CorpNum)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// failingLedger fails BaseRow for the events of the current run step.
// Runs are sequential and use one worker, so no locking is needed.
type failingLedger struct {
	pipeline.Ledger
	failing []int64
}

func (f *failingLedger) BaseRow(ctx context.Context, corpNum string, eventID int64) (ledger.BaseRow, error) {
	if slices.Contains(f.failing, eventID) {
		return ledger.BaseRow{}, errs.New(errs.KindTransaction, "injected ledger failure").At(corpNum, eventID)
	}
	return f.Ledger.BaseRow(ctx, corpNum, eventID)
}
