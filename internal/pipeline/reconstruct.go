package pipeline

import (
	"context"

	"github.com/bcgov/colin-migrate/internal/assembler"
	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/filing"
	"github.com/bcgov/colin-migrate/internal/policy"
)

// Reconstruct builds and validates the document for one event without
// claiming the corporation or writing anything.
//
// Appointment dates are resolved from the ledger alone, since no earlier
// bag of the run is available; corrections later in the ledger are folded
// in exactly as a run would fold them, and those spanning the event are
// taken as already folded into the event they correct.
func (p *Pipeline) Reconstruct(ctx context.Context, corpNum string, eventID int64) (*filing.Result, error) {
	c := &corpRun{p: p, corpNum: corpNum}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	i, ok := c.pos[eventID]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "event not in ledger").At(corpNum, eventID)
	}
	ev := c.events[i]

	rule, class := p.selector.Classify(ev.Code())
	if class == policy.ClassUnsupported {
		return nil, errs.New(errs.KindInvalidFilingType, "unsupported legacy code %q", ev.Code()).At(corpNum, eventID)
	}

	bag, err := p.assembler.Assemble(ctx, assembler.Request{
		CorpNum:             corpNum,
		Event:               ev,
		Rule:                rule,
		Class:               class,
		PrecedingEvent:      c.preceding(ev),
		PriorEventIDs:       c.priorIDs(ev),
		CorrectionEventIDs:  c.correctionIDs,
		FoldedCorrectionIDs: c.resolver.Spanning(ev.ID),
	})
	if err != nil {
		return nil, err
	}
	resolved, err := c.resolver.Resolve(ctx, bag)
	if err != nil {
		return nil, err
	}
	res, err := filing.Build(resolved)
	if err != nil {
		return nil, err
	}
	if err := filing.Validate(res.Document); err != nil {
		return nil, errs.Wrap(errs.KindDataIntegrity, err, "rebuilt %s failed validation", res.FilingType).At(corpNum, eventID)
	}
	return res, nil
}
