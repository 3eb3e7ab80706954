// Package correction links legacy correction events to the events they
// correct, and folds a correction into the filing of the corrected event.
//
// The ledger records a correction C of an earlier event E as row changes
// made by C against rows E touched. Two shapes are recognised:
//   - a row started by E is closed by C (start_event_id = E, end_event_id = C)
//   - a row inserted by C back-references E (start_event_id = C, end_event_id = E)
//
// When several earlier events qualify, the latest one is the corrected event.
package correction

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bcgov/colin-migrate/internal/assembler"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/policy"
)

// Link ties a correcting event to the event it corrects.
type Link struct {
	CorrectedEventID  int64
	CorrectingEventID int64
	Entity            string
}

// Index is the set of correction links of one corporation.
type Index struct {
	corrected  map[int64]Link    // correcting event -> link
	correctors map[int64][]int64 // corrected event -> correcting events, ascending
}

// NewIndex builds the links from the touches of the given correction events.
func NewIndex(touches []ledger.Touch, correctionIDs []int64) *Index {
	isCorrection := make(map[int64]bool, len(correctionIDs))
	for _, id := range correctionIDs {
		isCorrection[id] = true
	}

	idx := &Index{
		corrected:  make(map[int64]Link),
		correctors: make(map[int64][]int64),
	}
	for _, t := range touches {
		if t.EndEventID == nil {
			continue
		}
		start, end := t.StartEventID, *t.EndEventID

		var c, e int64
		switch {
		case isCorrection[end] && start < end:
			c, e = end, start
		case isCorrection[start] && end < start:
			c, e = start, end
		default:
			continue
		}
		if isCorrection[e] {
			continue
		}
		if cur, ok := idx.corrected[c]; ok && cur.CorrectedEventID >= e {
			continue
		}
		idx.corrected[c] = Link{CorrectedEventID: e, CorrectingEventID: c, Entity: t.Entity}
	}

	for c, l := range idx.corrected {
		idx.correctors[l.CorrectedEventID] = append(idx.correctors[l.CorrectedEventID], c)
	}
	for e := range idx.correctors {
		slices.Sort(idx.correctors[e])
	}
	return idx
}

// CorrectedEventOf returns the event a correction amends.
func (i *Index) CorrectedEventOf(correctionID int64) (int64, bool) {
	l, ok := i.corrected[correctionID]
	return l.CorrectedEventID, ok
}

// CorrectorsOf returns the corrections of an event, ascending.
func (i *Index) CorrectorsOf(eventID int64) []int64 {
	return i.correctors[eventID]
}

// Spanning returns, ascending, the corrections after eventID whose
// corrected event precedes it.
func (i *Index) Spanning(eventID int64) []int64 {
	var out []int64
	for c, l := range i.corrected {
		if l.CorrectedEventID < eventID && c > eventID {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// Links returns every link ordered by correcting event.
func (i *Index) Links() []Link {
	out := make([]Link, 0, len(i.corrected))
	for _, l := range i.corrected {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b Link) int {
		switch {
		case a.CorrectingEventID < b.CorrectingEventID:
			return -1
		case a.CorrectingEventID > b.CorrectingEventID:
			return 1
		}
		return 0
	})
	return out
}

// Assembler re-gathers a bag as of a later event.
type Assembler interface {
	AssembleAsOf(ctx context.Context, bag *assembler.Bag, asOf int64, correcting []int64) (*assembler.Bag, error)
}

// Resolver applies an Index to the bags of one corporation's run. It is not
// safe for concurrent use; each corporation gets its own.
type Resolver struct {
	assembler Assembler
	index     *Index
	absorbed  map[int64]int64 // correcting event -> corrected event
}

// NewResolver returns a Resolver over idx.
func NewResolver(a Assembler, idx *Index) *Resolver {
	return &Resolver{assembler: a, index: idx, absorbed: make(map[int64]int64)}
}

// Resolve returns the bag to build a filing from.
//
// An event corrected by later corrections is re-gathered as of the latest of
// them and marked IsCorrectedEventFiling; once its filing is committed,
// Settle records those corrections as absorbed. A correction that was not
// absorbed gets CorrectedEventID when its target is known.
func (r *Resolver) Resolve(ctx context.Context, bag *assembler.Bag) (*assembler.Bag, error) {
	if bag.Class == policy.ClassCorrection {
		e, ok := r.index.CorrectedEventOf(bag.Event.ID)
		if !ok {
			return bag, nil
		}
		c := *bag
		c.CorrectedEventID = &e
		return &c, nil
	}

	var correcting []int64
	for _, c := range r.index.CorrectorsOf(bag.Event.ID) {
		if c > bag.Event.ID {
			correcting = append(correcting, c)
		}
	}
	if len(correcting) == 0 {
		return bag, nil
	}

	asOf := correcting[len(correcting)-1]
	out, err := r.assembler.AssembleAsOf(ctx, bag, asOf, correcting)
	if err != nil {
		return nil, fmt.Errorf("fold corrections into event %d: %w", bag.Event.ID, err)
	}
	slog.Info("corrections folded into corrected event",
		"corp_num", bag.CorpNum,
		"event_id", bag.Event.ID,
		"correcting_event_ids", correcting)
	return out, nil
}

// Settle records the corrections folded into a committed bag. A bag whose
// filing was skipped or rolled back must not be settled, so its corrections
// are still filed on their own.
func (r *Resolver) Settle(bag *assembler.Bag) {
	if !bag.IsCorrectedEventFiling {
		return
	}
	for _, c := range bag.CorrectingEventIDs {
		r.absorbed[c] = bag.Event.ID
	}
}

// Absorbed reports whether a correction was already folded into the filing
// of the event it corrects, and which event that was.
func (r *Resolver) Absorbed(correctionID int64) (int64, bool) {
	e, ok := r.absorbed[correctionID]
	return e, ok
}

// Spanning returns, ascending, the corrections after eventID that correct an
// earlier event. Once folded into that event's filing, their row changes are
// part of the history eventID is rebuilt from.
func (r *Resolver) Spanning(eventID int64) []int64 {
	return r.index.Spanning(eventID)
}
