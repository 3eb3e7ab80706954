package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bcgov/colin-migrate/internal/assembler"
	"github.com/bcgov/colin-migrate/internal/correction"
	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/filer"
	"github.com/bcgov/colin-migrate/internal/filing"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/metrics"
	"github.com/bcgov/colin-migrate/internal/notify"
	"github.com/bcgov/colin-migrate/internal/policy"
	"github.com/bcgov/colin-migrate/internal/selector"
	"github.com/bcgov/colin-migrate/internal/store"
)

// CorpReport is the outcome of one corporation in a run.
type CorpReport struct {
	CorpNum string       `json:"corp_num"`
	Status  store.Status `json:"status,omitempty"`
	// Held is set when another run holds the corporation; nothing was done.
	Held          bool         `json:"held,omitempty"`
	Filed         []int64      `json:"filed"`
	Absorbed      []int64      `json:"absorbed,omitempty"`
	Replayed      []int64      `json:"replayed,omitempty"`
	Skipped       []store.Skip `json:"skipped,omitempty"`
	Warnings      int          `json:"warnings"`
	LastEventID   *int64       `json:"last_event_id"`
	FailedEventID *int64       `json:"failed_event_id,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// corpRun is the state of one corporation's event loop. It is owned by a
// single goroutine.
type corpRun struct {
	p             *Pipeline
	corpNum       string
	runID         string
	events        []ledger.Event
	pos           map[int64]int
	correctionIDs []int64
	resolver      *correction.Resolver
	previous      *assembler.Bag
	report        *CorpReport
	logger        *slog.Logger
}

// filed is a committed filing awaiting notification.
type filed struct {
	result   *filer.Result
	rule     policy.Rule
	warnings []errs.Warning
}

// processCorp claims a corporation and files its events after the
// watermark. Only cancellation of ctx is returned as an error; every other
// failure ends up in the report and on the watermark.
func (p *Pipeline) processCorp(ctx context.Context, runID, corpNum string) (CorpReport, error) {
	rep := CorpReport{CorpNum: corpNum, Filed: []int64{}}
	logger := slog.With("run_id", runID, "corp_num", corpNum)

	wm, err := p.store.Claim(ctx, p.cfg.Scope, corpNum, runID, p.clock.Now(), p.cfg.StaleClaim)
	if err != nil {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		if errs.Is(err, errs.KindAlreadyClaimed) {
			logger.Info("corporation held by another run", "error", err)
			rep.Held = true
			return rep, nil
		}
		logger.Error("claim failed", "error", err)
		rep.Status = store.StatusFailed
		rep.Error = err.Error()
		return rep, nil
	}
	rep.LastEventID = wm.LastProcessedEventID

	c := &corpRun{p: p, corpNum: corpNum, runID: runID, report: &rep, logger: logger}
	if err := c.load(ctx); err != nil {
		return c.finish(ctx, store.StatusFailed, nil, err)
	}

	selected := selector.SelectEvents(c.events, wm.LastProcessedEventID)
	logger.Info("corporation claimed", "events", len(selected), "watermark", wm.LastProcessedEventID)

	for _, ev := range selected {
		if err := ctx.Err(); err != nil {
			return c.finish(ctx, store.StatusFailed, &ev.ID, err)
		}
		if err := c.event(ctx, ev); err != nil {
			if errs.Is(err, errs.KindAlreadyClaimed) {
				logger.Warn("claim lost mid-run", "event_id", ev.ID, "error", err)
				rep.Held = true
				rep.Error = err.Error()
				return rep, nil
			}
			return c.finish(ctx, store.StatusFailed, &ev.ID, err)
		}
	}

	status := store.StatusCompleted
	if len(rep.Skipped) > 0 {
		status = store.StatusPartial
	}
	return c.finish(ctx, status, nil, nil)
}

// load reads the corporation's events and builds its correction index.
func (c *corpRun) load(ctx context.Context) error {
	events, err := c.p.ledger.Events(ctx, c.corpNum)
	if err != nil {
		return err
	}
	c.events = events
	c.pos = make(map[int64]int, len(events))
	for i, e := range events {
		c.pos[e.ID] = i
	}

	c.correctionIDs = c.p.selector.CorrectionEventIDs(events)
	touches, err := c.p.ledger.CorrectionTouches(ctx, c.corpNum, c.correctionIDs)
	if err != nil {
		return err
	}
	c.resolver = correction.NewResolver(c.p.assembler, correction.NewIndex(touches, c.correctionIDs))
	return nil
}

// finish releases the claim with the run's outcome. It runs on a context
// detached from cancellation so an interrupted run still records FAILED.
func (c *corpRun) finish(ctx context.Context, status store.Status, failedEventID *int64, cause error) (CorpReport, error) {
	rep := c.report
	rep.Status = status
	rep.FailedEventID = failedEventID

	lastError := ""
	if cause != nil {
		lastError = cause.Error()
		rep.Error = lastError
		c.logger.Error("corporation failed",
			"event_id", failedEventID, "kind", errs.KindOf(cause), "error", cause)
	}

	if err := c.p.store.Finish(context.WithoutCancel(ctx), c.p.cfg.Scope, c.corpNum, c.runID, status, failedEventID, lastError, c.p.clock.Now()); err != nil {
		c.logger.Error("finish failed", "status", status, "error", err)
		rep.Error = errors.Join(cause, err).Error()
	}
	c.p.metrics.Corp(string(status))
	c.logger.Info("corporation finished",
		"status", status,
		"filed", len(rep.Filed),
		"skipped", len(rep.Skipped),
		"watermark", rep.LastEventID)

	if cause != nil && ctx.Err() != nil {
		return *rep, ctx.Err()
	}
	return *rep, nil
}

// event handles one ledger event. A nil error means the watermark now
// covers the event; any error stops the corporation.
func (c *corpRun) event(ctx context.Context, ev ledger.Event) error {
	started := time.Now()
	defer func() { c.p.metrics.ObserveEvent(time.Since(started)) }()

	rule, class := c.p.selector.Classify(ev.Code())
	logger := c.logger.With("event_id", ev.ID, "code", ev.Code(), "class", class)

	switch class {
	case policy.ClassUnsupported:
		return c.skip(ctx, ev, errs.New(errs.KindInvalidFilingType, "unsupported legacy code %q", ev.Code()).At(c.corpNum, ev.ID))
	case policy.ClassCorrection:
		if target, ok := c.resolver.Absorbed(ev.ID); ok {
			logger.Debug("correction folded into earlier filing", "corrected_event_id", target)
			return c.advanceOnly(ctx, ev)
		}
		if _, ok, err := c.p.store.FilingForEvent(ctx, ev.ID); err != nil {
			return errs.Wrap(errs.KindTransaction, err, "look up filing for correction").At(c.corpNum, ev.ID)
		} else if ok {
			logger.Debug("correction already linked to a filing")
			return c.advanceOnly(ctx, ev)
		}
	}

	var (
		out *filed
		err error
	)
	for attempt := 1; ; attempt++ {
		out, err = c.attempt(ctx, ev, rule, class)
		if err == nil || !errs.IsTimeout(err) || attempt >= c.p.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		delay := c.p.cfg.RetryBase << (attempt - 1)
		logger.Warn("event timed out, retrying", "attempt", attempt, "delay", delay, "error", err)
		c.p.metrics.Event(metrics.OutcomeRetried)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	if err != nil {
		if errs.Skippable(err) {
			return c.skip(ctx, ev, err)
		}
		c.p.metrics.Event(metrics.OutcomeFailed)
		return err
	}

	for _, w := range out.warnings {
		logger.Warn("data integrity warning", "code", w.Code, "message", w.Message)
		c.p.metrics.Warning(w.Code)
	}
	c.report.Warnings += len(out.warnings)

	if out.result.Replayed {
		c.report.Replayed = append(c.report.Replayed, ev.ID)
		c.p.metrics.Event(metrics.OutcomeReplayed)
		return nil
	}
	c.report.Filed = append(c.report.Filed, ev.ID)
	c.p.metrics.Event(metrics.OutcomeFiled)
	logger.Info("event filed",
		"filing_id", out.result.FilingID,
		"filing_type", out.result.FilingType,
		"status", out.result.Status)

	c.notify(ctx, out)
	return nil
}

// attempt runs one try at filing ev under the per-event timeout.
func (c *corpRun) attempt(ctx context.Context, ev ledger.Event, rule policy.Rule, class policy.Class) (*filed, error) {
	evCtx := ctx
	if c.p.cfg.EventTimeout > 0 {
		var cancel context.CancelFunc
		evCtx, cancel = context.WithTimeout(ctx, c.p.cfg.EventTimeout)
		defer cancel()
	}

	out, err := c.file(evCtx, ev, rule, class)
	if err != nil && ctx.Err() == nil && errors.Is(evCtx.Err(), context.DeadlineExceeded) {
		return nil, errs.Wrap(errs.KindTimeout, err, "event exceeded %s", c.p.cfg.EventTimeout).At(c.corpNum, ev.ID)
	}
	return out, err
}

// file rebuilds ev and applies it in one transaction with the watermark.
func (c *corpRun) file(ctx context.Context, ev ledger.Event, rule policy.Rule, class policy.Class) (*filed, error) {
	folded, err := c.foldedAfter(ctx, ev)
	if err != nil {
		return nil, err
	}
	bag, err := c.p.assembler.Assemble(ctx, assembler.Request{
		CorpNum:             c.corpNum,
		Event:               ev,
		Rule:                rule,
		Class:               class,
		Previous:            c.previous,
		PrecedingEvent:      c.preceding(ev),
		PriorEventIDs:       c.priorIDs(ev),
		CorrectionEventIDs:  c.correctionIDs,
		FoldedCorrectionIDs: folded,
	})
	if err != nil {
		return nil, err
	}
	resolved, err := c.resolver.Resolve(ctx, bag)
	if err != nil {
		return nil, err
	}
	built, err := filing.Build(resolved)
	if err != nil {
		return nil, err
	}
	if err := filing.Validate(built.Document); err != nil {
		return nil, errs.Wrap(errs.KindDataIntegrity, err, "rebuilt %s failed validation", built.FilingType).At(c.corpNum, ev.ID)
	}

	tx, err := c.p.store.BeginTx(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransaction, err, "begin").At(c.corpNum, ev.ID)
	}
	defer tx.Rollback()

	res, err := c.p.filer.Apply(ctx, tx, built.Document)
	if err != nil {
		return nil, err
	}
	if err := tx.AdvanceTx(ctx, c.p.cfg.Scope, c.corpNum, c.runID, ev.ID, c.p.clock.Now()); err != nil {
		return nil, c.txErr(err, ev, "advance watermark")
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.KindTransaction, err, "commit").At(c.corpNum, ev.ID)
	}

	c.committed(ev)
	c.previous = bag
	c.resolver.Settle(resolved)
	return &filed{result: res, rule: rule, warnings: built.Warnings}, nil
}

// skip records ev as stepped over and moves the watermark past it.
func (c *corpRun) skip(ctx context.Context, ev ledger.Event, cause error) error {
	sk := store.Skip{EventID: ev.ID, ErrorKind: string(errs.KindOf(cause)), Reason: cause.Error()}
	c.logger.Warn("event skipped", "event_id", ev.ID, "kind", sk.ErrorKind, "error", cause)

	tx, err := c.p.store.BeginTx(ctx)
	if err != nil {
		return errs.Wrap(errs.KindTransaction, err, "begin").At(c.corpNum, ev.ID)
	}
	defer tx.Rollback()

	if err := tx.RecordSkipTx(ctx, c.p.cfg.Scope, c.corpNum, sk); err != nil {
		return c.txErr(err, ev, "record skip")
	}
	if err := tx.AdvanceTx(ctx, c.p.cfg.Scope, c.corpNum, c.runID, ev.ID, c.p.clock.Now()); err != nil {
		return c.txErr(err, ev, "advance watermark")
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindTransaction, err, "commit").At(c.corpNum, ev.ID)
	}

	c.committed(ev)
	c.report.Skipped = append(c.report.Skipped, sk)
	c.p.metrics.Event(metrics.OutcomeSkipped)
	return nil
}

// advanceOnly moves the watermark past a correction whose effects are
// already filed.
func (c *corpRun) advanceOnly(ctx context.Context, ev ledger.Event) error {
	tx, err := c.p.store.BeginTx(ctx)
	if err != nil {
		return errs.Wrap(errs.KindTransaction, err, "begin").At(c.corpNum, ev.ID)
	}
	defer tx.Rollback()

	if err := tx.AdvanceTx(ctx, c.p.cfg.Scope, c.corpNum, c.runID, ev.ID, c.p.clock.Now()); err != nil {
		return c.txErr(err, ev, "advance watermark")
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindTransaction, err, "commit").At(c.corpNum, ev.ID)
	}

	c.committed(ev)
	c.report.Absorbed = append(c.report.Absorbed, ev.ID)
	c.p.metrics.Event(metrics.OutcomeAbsorbed)
	return nil
}

// notify announces a committed filing. Failures are logged and counted;
// the filing stays committed.
func (c *corpRun) notify(ctx context.Context, f *filed) {
	if f.rule.Notify == policy.NotifyNone {
		return
	}
	err := c.p.notifier.Notify(ctx, notify.Event{
		Target:     f.rule.Notify,
		Identifier: f.result.Identifier,
		FilingType: f.result.FilingType,
		FilingID:   f.result.FilingID,
	})
	c.p.metrics.Notification(err == nil)
	if err != nil {
		c.logger.Warn("notification failed",
			"filing_id", f.result.FilingID, "target", f.rule.Notify, "kind", errs.KindOf(err), "error", err)
	}
}

// foldedAfter returns the later corrections already folded into the filing
// of an event before ev, in this run or an earlier one.
func (c *corpRun) foldedAfter(ctx context.Context, ev ledger.Event) ([]int64, error) {
	var out []int64
	for _, id := range c.resolver.Spanning(ev.ID) {
		if _, ok := c.resolver.Absorbed(id); ok {
			out = append(out, id)
			continue
		}
		_, ok, err := c.p.store.FilingForEvent(ctx, id)
		if err != nil {
			return nil, errs.Wrap(errs.KindTransaction, err, "look up filing for correction %d", id).At(c.corpNum, ev.ID)
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (c *corpRun) committed(ev ledger.Event) {
	id := ev.ID
	c.report.LastEventID = &id
}

func (c *corpRun) txErr(err error, ev ledger.Event, what string) error {
	if errs.Is(err, errs.KindAlreadyClaimed) {
		return err
	}
	return errs.Wrap(errs.KindTransaction, err, "%s", what).At(c.corpNum, ev.ID)
}

func (c *corpRun) preceding(ev ledger.Event) *ledger.Event {
	i, ok := c.pos[ev.ID]
	if !ok || i == 0 {
		return nil
	}
	prev := c.events[i-1]
	return &prev
}

func (c *corpRun) priorIDs(ev ledger.Event) []int64 {
	i := c.pos[ev.ID]
	ids := make([]int64, 0, i)
	for _, e := range c.events[:i] {
		ids = append(ids, e.ID)
	}
	return ids
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
