// Package selector decides which corporations a run picks up and which of
// their events still need a filing.
package selector

import (
	"time"

	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/policy"
	"github.com/bcgov/colin-migrate/internal/store"
)

// Selector classifies legacy events against a policy table.
type Selector struct {
	policy *policy.Table
}

// New returns a Selector over the given policy table.
func New(p *policy.Table) *Selector {
	return &Selector{policy: p}
}

// Classify returns the rule and class of a legacy code. Unmapped codes
// return a rule carrying only the code and ClassUnsupported.
func (s *Selector) Classify(code string) (policy.Rule, policy.Class) {
	r, err := s.policy.Lookup(code)
	if err != nil {
		return policy.Rule{Code: code}, policy.ClassUnsupported
	}
	return r, r.Class
}

// CorrectionEventIDs returns the ids of the CORRECTION-class events, in
// event order.
func (s *Selector) CorrectionEventIDs(events []ledger.Event) []int64 {
	var ids []int64
	for _, e := range events {
		if _, class := s.Classify(e.Code()); class == policy.ClassCorrection {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// SelectEvents returns the events strictly after the watermark, preserving
// order. A nil watermark selects everything.
func SelectEvents(events []ledger.Event, watermark *int64) []ledger.Event {
	if watermark == nil {
		return events
	}
	out := make([]ledger.Event, 0, len(events))
	for _, e := range events {
		if e.ID > *watermark {
			out = append(out, e)
		}
	}
	return out
}

// Options bound corporation selection.
type Options struct {
	// ReclaimStale picks up PROCESSING corporations whose claim is older
	// than StaleAfter.
	ReclaimStale bool
	StaleAfter   time.Duration
	// BatchLimit caps the corporations selected; zero means no cap.
	BatchLimit int
	Now        time.Time
}

// SelectCorps filters corporation summaries against their watermarks.
//
// A corporation is dropped when its watermark already equals its last event
// id, or when another run holds it in PROCESSING. Order is preserved.
func SelectCorps(summaries []ledger.CorpSummary, watermarks map[string]store.Watermark, opts Options) []ledger.CorpSummary {
	var out []ledger.CorpSummary
	for _, s := range summaries {
		if opts.BatchLimit > 0 && len(out) >= opts.BatchLimit {
			break
		}
		wm, ok := watermarks[s.CorpNum]
		if ok && !eligible(s, wm, opts) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func eligible(s ledger.CorpSummary, wm store.Watermark, opts Options) bool {
	if wm.Status == store.StatusProcessing {
		if !opts.ReclaimStale || opts.StaleAfter <= 0 || wm.ClaimedAt == nil {
			return false
		}
		return !wm.ClaimedAt.Add(opts.StaleAfter).After(opts.Now)
	}
	return !caughtUp(s, wm)
}

func caughtUp(s ledger.CorpSummary, wm store.Watermark) bool {
	return wm.LastProcessedEventID != nil && *wm.LastProcessedEventID >= s.LastEventID
}
