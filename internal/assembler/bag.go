package assembler

import (
	"fmt"
	"slices"
	"time"

	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/policy"
)

// Party is a party row with its appointment date resolved and addresses
// attached.
type Party struct {
	Row             ledger.PartyRow
	AppointmentDate time.Time
	CessationDate   *time.Time
	// Carried is set when the row was started by an earlier event.
	Carried bool
	// PrevColinPartyID is the legacy party the filer should resolve this one
	// against: the row itself when carried, its prev_party_id otherwise.
	PrevColinPartyID *int64
	Mailing          *ledger.AddressRow
	Delivery         *ledger.AddressRow
}

// Office is an office row with addresses attached.
type Office struct {
	Type         string
	StartEventID int64
	Carried      bool
	Mailing      *ledger.AddressRow
	Delivery     *ledger.AddressRow
}

// ShareClass is a share class with its series nested under it.
type ShareClass struct {
	ledger.ShareClassRow
	Series []ledger.ShareSeriesRow
}

// Bag is everything one filing is built from.
//
// A Bag is immutable once returned. The pipeline threads the previous Bag of
// a corporation into the next Assemble call so appointment dates resolved
// earlier are reused instead of re-derived.
type Bag struct {
	CorpNum       string
	Event         ledger.Event
	Rule          policy.Rule
	Class         policy.Class
	Base          ledger.BaseRow
	EffectiveDate time.Time

	// AsOfEventID is the latest event whose row changes the snapshot
	// reflects. It is Event.ID unless later corrections were folded in.
	AsOfEventID   int64
	LegalName     string
	State         string
	Names         []ledger.NameRow
	Parties       []Party
	CeasedParties []Party
	Offices       []Office
	ShareClasses  []ShareClass
	Jurisdiction  *ledger.JurisdictionRow
	LedgerText    []string
	Comments      []ledger.CommentRow

	PriorEventIDs       []int64
	CorrectionEventIDs  []int64
	FoldedCorrectionIDs []int64

	// IsCorrectedEventFiling marks an event whose effects were corrected by
	// CorrectingEventIDs; its filing is emitted as a correction.
	IsCorrectedEventFiling bool
	CorrectingEventIDs     []int64
	// CorrectedEventID is the event a standalone correction amends, if known.
	CorrectedEventID *int64

	Warnings []errs.Warning

	prior map[int64]time.Time
	memo  map[int64]time.Time
}

// AppointmentOf returns the appointment date resolved for a legacy party id
// by this bag or any bag threaded before it.
func (b *Bag) AppointmentOf(partyID int64) (time.Time, bool) {
	if b == nil {
		return time.Time{}, false
	}
	t, ok := b.memo[partyID]
	return t, ok
}

// ColinIDs lists the legacy events the filing originates from.
func (b *Bag) ColinIDs() []int64 {
	ids := []int64{b.Event.ID}
	if b.IsCorrectedEventFiling {
		ids = append(ids, b.CorrectingEventIDs...)
	}
	return ids
}

// appliedCorrections lists, ascending, the corrections whose row changes the
// snapshot includes.
func (b *Bag) appliedCorrections() []int64 {
	ids := slices.Concat(b.FoldedCorrectionIDs, b.CorrectingEventIDs)
	slices.Sort(ids)
	return slices.Compact(ids)
}

// ceasingEvents lists the events whose closed party rows the filing must
// report as cessations. A corrected event's filing replaces the original, so
// it reports its own cessations and those of its corrections.
func (b *Bag) ceasingEvents() []int64 {
	switch {
	case b.IsCorrectedEventFiling:
		return append([]int64{b.Event.ID}, b.CorrectingEventIDs...)
	case b.Rule.Target == policy.ChangeOfDirectors, b.Class == policy.ClassCorrection:
		return []int64{b.Event.ID}
	}
	return nil
}

// Directors returns the active parties holding the director role.
func (b *Bag) Directors() []Party {
	var out []Party
	for _, p := range b.Parties {
		if p.Row.Role == RoleDirector {
			out = append(out, p)
		}
	}
	return out
}

func (b *Bag) warn(code, format string, args ...any) {
	b.Warnings = append(b.Warnings, errs.Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

// clone copies the event-level part of b; snapshot fields and warnings are
// left for the caller to refill.
func (b *Bag) clone() *Bag {
	c := *b
	c.Warnings = nil
	c.CorrectingEventIDs = append([]int64(nil), b.CorrectingEventIDs...)
	c.FoldedCorrectionIDs = append([]int64(nil), b.FoldedCorrectionIDs...)
	return &c
}
