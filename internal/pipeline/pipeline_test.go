package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/notify"
	"github.com/bcgov/colin-migrate/internal/policy"
	"github.com/bcgov/colin-migrate/internal/store"
	"github.com/bcgov/colin-migrate/internal/testutil"
)

var scope = store.Scope{FlowName: "corps", Environment: "test"}

// faultyLedger wraps a reader and fails or stalls BaseRow for chosen
// events.
type faultyLedger struct {
	Ledger

	mu    sync.Mutex
	fail  map[int64]error
	stall map[int64]int
	calls map[int64]int
}

func newFaultyLedger(inner Ledger) *faultyLedger {
	return &faultyLedger{
		Ledger: inner,
		fail:   map[int64]error{},
		stall:  map[int64]int{},
		calls:  map[int64]int{},
	}
}

func (f *faultyLedger) BaseRow(ctx context.Context, corpNum string, eventID int64) (ledger.BaseRow, error) {
	f.mu.Lock()
	f.calls[eventID]++
	err := f.fail[eventID]
	stall := f.stall[eventID] != 0
	if f.stall[eventID] > 0 {
		f.stall[eventID]--
	}
	f.mu.Unlock()

	if err != nil {
		return ledger.BaseRow{}, err
	}
	if stall {
		<-ctx.Done()
		return ledger.BaseRow{}, ctx.Err()
	}
	return f.Ledger.BaseRow(ctx, corpNum, eventID)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

type env struct {
	ledger *faultyLedger
	store  *store.Store
	table  *policy.Table
	cfg    Config
}

func newEnv(t *testing.T, fixtures ...testutil.Ledger) *env {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := testutil.OpenLedger(ctx, filepath.Join(dir, "ledger.db"), fixtures[0])
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, l := range fixtures[1:] {
		require.NoError(t, testutil.Seed(ctx, db, l))
	}

	st, err := store.Open("sqlite3", filepath.Join(dir, "target.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	table, err := policy.Default()
	require.NoError(t, err)

	return &env{
		ledger: newFaultyLedger(ledger.NewReader(db, store.DialectSQLite)),
		store:  st,
		table:  table,
		cfg: Config{
			Scope:        scope,
			BatchLimit:   10,
			MaxWorkers:   2,
			EventTimeout: 5 * time.Second,
			MaxAttempts:  3,
			RetryBase:    time.Millisecond,
			StaleClaim:   time.Hour,
		},
	}
}

func (e *env) pipeline(opts ...Option) *Pipeline {
	clock := testutil.NewStepClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), time.Second)
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(e.ledger, e.store, e.table, e.cfg, opts...)
}

func (e *env) run(t *testing.T, opts ...Option) *RunReport {
	t.Helper()
	rep, err := e.pipeline(opts...).Run(context.Background())
	require.NoError(t, err)
	return rep
}

func (e *env) watermark(t *testing.T, corpNum string) *store.Watermark {
	t.Helper()
	wm, err := e.store.Watermark(context.Background(), scope, corpNum)
	require.NoError(t, err)
	return wm
}

var writtenTables = []string{"businesses", "filings", "colin_event_ids", "parties", "party_roles", "offices", "addresses"}

func (e *env) counts(t *testing.T) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, table := range writtenTables {
		n, err := e.store.CountRows(context.Background(), table)
		require.NoError(t, err)
		out[table] = n
	}
	return out
}

func corpReport(t *testing.T, rep *RunReport, corpNum string) CorpReport {
	t.Helper()
	for _, c := range rep.Corps {
		if c.CorpNum == corpNum {
			return c
		}
	}
	t.Fatalf("no report for %s", corpNum)
	return CorpReport{}
}

func TestRun_CarryForward(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	rep := e.run(t)

	c := corpReport(t, rep, "CP0001234")
	assert.Equal(t, store.StatusCompleted, c.Status)
	assert.Equal(t, []int64{100, 140}, c.Filed)

	wm := e.watermark(t, "CP0001234")
	require.NotNil(t, wm.LastProcessedEventID)
	assert.Equal(t, int64(140), *wm.LastProcessedEventID)
	assert.Equal(t, store.StatusCompleted, wm.Status)

	filings, err := e.store.Filings(context.Background(), "CP0001234")
	require.NoError(t, err)
	require.Len(t, filings, 2)
	assert.Equal(t, "incorporationApplication", filings[0].FilingType)
	assert.Equal(t, "annualReport", filings[1].FilingType)
	assert.Equal(t, []int64{140}, filings[1].ColinEventIDs)

	roles, err := e.store.ActivePartyRoles(context.Background(), "CP0001234")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "Smith", roles[0].LastName)
	require.NotNil(t, roles[0].AppointmentDate)
	assert.Equal(t, "2015-01-01", roles[0].AppointmentDate.Format("2006-01-02"))
	require.NotNil(t, roles[0].ColinPartyID, "the annual report links the party to its legacy id")
	assert.Equal(t, int64(1001), *roles[0].ColinPartyID)
}

func TestRun_SecondRunIsANoop(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	e.run(t)
	before := e.counts(t)
	wmBefore := e.watermark(t, "CP0001234")

	rep := e.run(t)
	assert.Zero(t, rep.Selected)
	assert.Equal(t, before, e.counts(t))
	assert.Equal(t, wmBefore.LastProcessedEventID, e.watermark(t, "CP0001234").LastProcessedEventID)
}

func TestRun_ReprocessingFromScratchWritesNothing(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	e.run(t)
	before := e.counts(t)

	_, err := e.store.DB().ExecContext(context.Background(), "DELETE FROM corp_processing")
	require.NoError(t, err)

	rep := e.run(t)
	c := corpReport(t, rep, "CP0001234")
	assert.Empty(t, c.Filed)
	assert.Equal(t, []int64{100, 140}, c.Replayed)
	assert.Equal(t, before, e.counts(t))
}

func TestRun_CorrectionFoldsIntoCorrectedEvent(t *testing.T) {
	e := newEnv(t, testutil.CorrectionLedger())
	rep := e.run(t)

	c := corpReport(t, rep, "CP0005678")
	assert.Equal(t, store.StatusCompleted, c.Status)
	assert.Equal(t, []int64{150, 200}, c.Filed)
	assert.Equal(t, []int64{210}, c.Absorbed)
	assert.Equal(t, int64(210), *e.watermark(t, "CP0005678").LastProcessedEventID)

	filings, err := e.store.Filings(context.Background(), "CP0005678")
	require.NoError(t, err)
	require.Len(t, filings, 2, "no separate filing for the misspelled appointment")
	assert.Equal(t, "correction", filings[1].FilingType)
	assert.Equal(t, []int64{200, 210}, filings[1].ColinEventIDs)
	assert.Contains(t, filings[1].JSON, `"correctedEventId":200`)

	roles, err := e.store.ActivePartyRoles(context.Background(), "CP0005678")
	require.NoError(t, err)
	var names []string
	for _, r := range roles {
		names = append(names, r.FirstName+" "+r.LastName)
	}
	assert.ElementsMatch(t, []string{"Ana Lee", "John Doe"}, names)
}

func (e *env) activeNames(t *testing.T, corpNum string) []string {
	t.Helper()
	roles, err := e.store.ActivePartyRoles(context.Background(), corpNum)
	require.NoError(t, err)
	names := []string{}
	for _, r := range roles {
		names = append(names, r.FirstName+" "+r.LastName)
	}
	return names
}

func filingTypes(filings []store.FilingRecord) []string {
	out := make([]string, 0, len(filings))
	for _, f := range filings {
		out = append(out, f.FilingType)
	}
	return out
}

func TestRun_CorrectionIgnoresIntermediateEvents(t *testing.T) {
	e := newEnv(t, testutil.IntermediateCorrectionLedger())
	rep := e.run(t)

	c := corpReport(t, rep, "CP0006001")
	assert.Equal(t, store.StatusCompleted, c.Status)
	assert.Equal(t, []int64{150, 200, 205}, c.Filed)
	assert.Equal(t, []int64{210}, c.Absorbed)

	filings, err := e.store.Filings(context.Background(), "CP0006001")
	require.NoError(t, err)
	require.Equal(t, []string{"incorporationApplication", "correction", "changeOfDirectors"}, filingTypes(filings))
	assert.Equal(t, []int64{200, 210}, filings[1].ColinEventIDs)
	assert.Equal(t, []int64{205}, filings[2].ColinEventIDs)

	corrected := filings[1].JSON
	assert.NotContains(t, corrected, `"firstName":"Zed"`, "appointed after the corrected event")
	assert.Contains(t, corrected, `"firstName":"Bob"`, "ceased after the corrected event")
	assert.NotContains(t, corrected, `"firstName":"Jon"`)

	later := filings[2].JSON
	assert.Contains(t, later, `"firstName":"Zed"`)
	assert.NotContains(t, later, `"firstName":"Jon"`, "the intermediate event sees the corrected spelling")

	assert.ElementsMatch(t, []string{"Ana Lee", "John Doe", "Zed Park"}, e.activeNames(t, "CP0006001"))
}

func TestRun_ResumedIntermediateEventSeesFoldedCorrection(t *testing.T) {
	e := newEnv(t, testutil.IntermediateCorrectionLedger())
	e.ledger.fail[205] = errors.New("ledger connection reset")

	c := corpReport(t, e.run(t), "CP0006001")
	assert.Equal(t, store.StatusFailed, c.Status)
	assert.Equal(t, []int64{150, 200}, c.Filed)

	delete(e.ledger.fail, 205)
	c = corpReport(t, e.run(t), "CP0006001")
	assert.Equal(t, store.StatusCompleted, c.Status)
	assert.Equal(t, []int64{205}, c.Filed)
	assert.Equal(t, []int64{210}, c.Absorbed)

	filings, err := e.store.Filings(context.Background(), "CP0006001")
	require.NoError(t, err)
	require.Len(t, filings, 3)
	assert.NotContains(t, filings[2].JSON, `"firstName":"Jon"`)
	assert.ElementsMatch(t, []string{"Ana Lee", "John Doe", "Zed Park"}, e.activeNames(t, "CP0006001"))
}

func TestRun_CorrectedCessationClosesRole(t *testing.T) {
	e := newEnv(t, testutil.CorrectedCessationLedger())
	rep := e.run(t)

	c := corpReport(t, rep, "CP0006002")
	assert.Equal(t, store.StatusCompleted, c.Status)
	assert.Equal(t, []int64{150, 200}, c.Filed)
	assert.Equal(t, []int64{210}, c.Absorbed)

	filings, err := e.store.Filings(context.Background(), "CP0006002")
	require.NoError(t, err)
	require.Equal(t, []string{"incorporationApplication", "correction"}, filingTypes(filings))
	assert.Contains(t, filings[1].JSON, `"cessationDate":"2017-05-01"`)
	assert.NotContains(t, filings[1].JSON, `"lastName":"Jons"`)

	assert.ElementsMatch(t, []string{"Ana Lee", "Cy Jones"}, e.activeNames(t, "CP0006002"))
}

func TestRun_BackReferenceCorrection(t *testing.T) {
	e := newEnv(t, testutil.BackReferenceLedger())
	rep := e.run(t)

	c := corpReport(t, rep, "CP0006003")
	assert.Equal(t, store.StatusCompleted, c.Status)
	assert.Equal(t, []int64{150, 200}, c.Filed)
	assert.Equal(t, []int64{210}, c.Absorbed)

	filings, err := e.store.Filings(context.Background(), "CP0006003")
	require.NoError(t, err)
	require.Equal(t, []string{"incorporationApplication", "correction"}, filingTypes(filings))
	assert.Equal(t, []int64{200, 210}, filings[1].ColinEventIDs)
	assert.Contains(t, filings[1].JSON, `"correctedEventId":200`)
	assert.Equal(t, 1, strings.Count(filings[1].JSON, `"firstName":"Jon"`), "the back-reference row is not a party")
	assert.NotContains(t, filings[1].JSON, `"cessationDate"`)

	assert.ElementsMatch(t, []string{"Ana Lee", "Jon Doe"}, e.activeNames(t, "CP0006003"))
	assert.Equal(t, 2, e.counts(t)["parties"])
}

func TestRun_UnsupportedEventMarksPartial(t *testing.T) {
	e := newEnv(t, testutil.ContinuationLedger())
	rep := e.run(t)

	c := corpReport(t, rep, "C0000777")
	assert.Equal(t, store.StatusPartial, c.Status)
	assert.Equal(t, []int64{300, 320}, c.Filed)
	require.Len(t, c.Skipped, 1)
	assert.Equal(t, int64(330), c.Skipped[0].EventID)
	assert.Equal(t, string(errs.KindInvalidFilingType), c.Skipped[0].ErrorKind)
	assert.Positive(t, c.Warnings)

	wm := e.watermark(t, "C0000777")
	assert.Equal(t, store.StatusPartial, wm.Status)
	assert.Equal(t, int64(330), *wm.LastProcessedEventID)

	skips, err := e.store.Skips(context.Background(), scope, "C0000777")
	require.NoError(t, err)
	assert.Equal(t, c.Skipped, skips)

	biz, err := e.store.Business(context.Background(), "C0000777")
	require.NoError(t, err)
	assert.Equal(t, "CASCADE FOREST PRODUCTS LTD.", biz.LegalName)

	assert.Zero(t, e.run(t).Selected, "a caught-up PARTIAL corporation is not selected again")
}

func TestRun_ProcessesCorporationsInParallel(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger(), testutil.CorrectionLedger(), testutil.ContinuationLedger())
	p := e.pipeline()
	rep, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Selected)
	assert.Equal(t, 2, rep.Count(store.StatusCompleted))
	assert.Equal(t, 1, rep.Count(store.StatusPartial))

	expected := `
# HELP colinmig_corps_total Corporations finished, by final watermark status
# TYPE colinmig_corps_total counter
colinmig_corps_total{status="COMPLETED"} 2
colinmig_corps_total{status="PARTIAL"} 1
`
	require.NoError(t, promtest.GatherAndCompare(p.Metrics().Registry(), strings.NewReader(expected), "colinmig_corps_total"))
}

func TestRun_BatchLimit(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger(), testutil.CorrectionLedger(), testutil.ContinuationLedger())
	e.cfg.BatchLimit = 2

	first := e.run(t)
	require.Equal(t, 2, first.Selected)
	assert.Equal(t, "C0000777", first.Corps[0].CorpNum)
	assert.Equal(t, "CP0001234", first.Corps[1].CorpNum)

	second := e.run(t)
	require.Equal(t, 1, second.Selected)
	assert.Equal(t, "CP0005678", second.Corps[0].CorpNum)
}

func TestRun_TransactionFailureStopsAtFailingEvent(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	e.ledger.fail[140] = errors.New("ledger connection reset")

	rep := e.run(t)
	c := corpReport(t, rep, "CP0001234")
	assert.Equal(t, store.StatusFailed, c.Status)
	assert.Equal(t, []int64{100}, c.Filed)
	require.NotNil(t, c.FailedEventID)
	assert.Equal(t, int64(140), *c.FailedEventID)

	wm := e.watermark(t, "CP0001234")
	assert.Equal(t, store.StatusFailed, wm.Status)
	assert.Equal(t, int64(100), *wm.LastProcessedEventID, "watermark never passes the failing event")
	assert.Contains(t, wm.LastError, "ledger connection reset")

	delete(e.ledger.fail, 140)
	rep = e.run(t)
	c = corpReport(t, rep, "CP0001234")
	assert.Equal(t, store.StatusCompleted, c.Status)
	assert.Equal(t, []int64{140}, c.Filed)
	assert.Equal(t, int64(140), *e.watermark(t, "CP0001234").LastProcessedEventID)
}

func TestRun_TimeoutIsRetried(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	e.cfg.EventTimeout = 50 * time.Millisecond
	e.ledger.stall[140] = 1

	p := e.pipeline()
	rep, err := p.Run(context.Background())
	require.NoError(t, err)

	c := corpReport(t, rep, "CP0001234")
	assert.Equal(t, store.StatusCompleted, c.Status)
	assert.Equal(t, []int64{100, 140}, c.Filed)
	assert.Equal(t, 2, e.ledger.calls[140])

	expected := `
# HELP colinmig_events_total Ledger events processed, by outcome
# TYPE colinmig_events_total counter
colinmig_events_total{outcome="filed"} 2
colinmig_events_total{outcome="retried"} 1
`
	require.NoError(t, promtest.GatherAndCompare(p.Metrics().Registry(), strings.NewReader(expected), "colinmig_events_total"))
}

func TestRun_ExhaustedTimeoutsFailTheCorporation(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	e.cfg.EventTimeout = 20 * time.Millisecond
	e.cfg.MaxAttempts = 2
	e.ledger.stall[100] = -1

	rep := e.run(t)
	c := corpReport(t, rep, "CP0001234")
	assert.Equal(t, store.StatusFailed, c.Status)
	assert.Contains(t, c.Error, string(errs.KindTimeout))
	assert.Equal(t, 2, e.ledger.calls[100])
	assert.Nil(t, e.watermark(t, "CP0001234").LastProcessedEventID)
}

func TestRun_HeldCorporationIsLeftAlone(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	_, err := e.store.Claim(context.Background(), scope, "CP0001234", "other-run", time.Now(), 0)
	require.NoError(t, err)

	// A second run on a fresh clock sees the claim as recent.
	e.cfg.StaleClaim = 0
	rep := e.run(t, WithRunIDs(testutil.NewFixedRunIDs("run-2")))
	assert.Zero(t, rep.Selected, "PROCESSING corporations are not selected without stale reclaim")

	report, err := e.pipeline(WithRunIDs(testutil.NewFixedRunIDs("run-3"))).processCorp(context.Background(), "run-3", "CP0001234")
	require.NoError(t, err)
	assert.True(t, report.Held)
	assert.Empty(t, report.Filed)
	assert.Zero(t, e.counts(t)["filings"])
}

func TestRun_NotifiesAfterCommit(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	n := &recordingNotifier{}
	e.run(t, WithNotifier(n))

	require.Len(t, n.events, 1, "only the incorporation notifies")
	assert.Equal(t, notify.Event{
		Target:     policy.NotifyAffiliation,
		Identifier: "CP0001234",
		FilingType: policy.IncorporationApplication,
		FilingID:   n.events[0].FilingID,
	}, n.events[0])
	assert.NotZero(t, n.events[0].FilingID)
}

func TestRun_NotificationFailureKeepsFiling(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	n := &recordingNotifier{err: errs.New(errs.KindDownstreamNotification, "auth service unavailable")}

	rep := e.run(t, WithNotifier(n))
	c := corpReport(t, rep, "CP0001234")
	assert.Equal(t, store.StatusCompleted, c.Status)
	assert.Equal(t, []int64{100, 140}, c.Filed)
	assert.Equal(t, 2, e.counts(t)["filings"])
}

func TestRun_CancelledContext(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.pipeline().Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconstruct_BuildsWithoutWriting(t *testing.T) {
	e := newEnv(t, testutil.CarryForwardLedger())
	res, err := e.pipeline().Reconstruct(context.Background(), "CP0001234", 140)
	require.NoError(t, err)

	ar := res.Document.Filing.AnnualReport
	require.NotNil(t, ar)
	require.Len(t, ar.Directors, 1)
	assert.Equal(t, "Jane", ar.Directors[0].Officer.FirstName)
	assert.Equal(t, "2015-01-01", ar.Directors[0].AppointmentDate)
	assert.Contains(t, ar.Offices, "registeredOffice")

	assert.Zero(t, e.counts(t)["filings"])
	assert.Nil(t, e.watermark(t, "CP0001234"))
}

func TestReconstruct_AppliesSpanningCorrections(t *testing.T) {
	e := newEnv(t, testutil.IntermediateCorrectionLedger())
	res, err := e.pipeline().Reconstruct(context.Background(), "CP0006001", 205)
	require.NoError(t, err)

	cod := res.Document.Filing.ChangeOfDirectors
	require.NotNil(t, cod)
	var names []string
	for _, d := range cod.Directors {
		names = append(names, d.Officer.FirstName)
	}
	assert.ElementsMatch(t, []string{"Ana", "John", "Zed", "Bob"}, names)
}

func TestReconstruct_Errors(t *testing.T) {
	e := newEnv(t, testutil.ContinuationLedger())
	p := e.pipeline()

	_, err := p.Reconstruct(context.Background(), "C0000777", 999)
	assert.True(t, errs.IsNotFound(err))

	_, err = p.Reconstruct(context.Background(), "C0000777", 330)
	assert.True(t, errs.IsInvalidFilingType(err))
}
