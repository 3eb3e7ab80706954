// Package assembler gathers the ledger state one reconstructed filing is
// built from.
//
// Assemble reads the event's base row and the snapshot of every versioned
// entity in effect at the event, selecting rows per the event's policy rule:
// with carry-forward, everything active; without, only rows the event
// started. The result is a Bag the filing factory turns into a document.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/policy"
)

// Legacy party role codes.
const (
	RoleDirector        = "DIR"
	RoleOfficer         = "OFF"
	RoleIncorporator    = "INC"
	RoleCompletingParty = "FCP"
)

// Legacy office type codes.
const (
	OfficeRegistered  = "RG"
	OfficeRecords     = "RC"
	OfficeLiquidation = "LQ"
)

// Source is the ledger read surface the assembler needs. *ledger.Reader
// implements it.
type Source interface {
	BaseRow(ctx context.Context, corpNum string, eventID int64) (ledger.BaseRow, error)
	LegalName(ctx context.Context, corpNum string, at ledger.AsOf) (string, error)
	Names(ctx context.Context, corpNum string, at ledger.AsOf) ([]ledger.NameRow, error)
	State(ctx context.Context, corpNum string, at ledger.AsOf) (string, error)
	Parties(ctx context.Context, corpNum string, at ledger.AsOf) ([]ledger.PartyRow, error)
	PartiesCeasedAt(ctx context.Context, corpNum string, eventIDs ...int64) ([]ledger.PartyRow, error)
	Offices(ctx context.Context, corpNum string, at ledger.AsOf) ([]ledger.OfficeRow, error)
	Addresses(ctx context.Context, ids []int64) (map[int64]ledger.AddressRow, error)
	ShareStructure(ctx context.Context, corpNum string, at ledger.AsOf) ([]ledger.ShareClassRow, []ledger.ShareSeriesRow, error)
	Jurisdiction(ctx context.Context, corpNum string, at ledger.AsOf) (*ledger.JurisdictionRow, error)
	LedgerText(ctx context.Context, eventID int64) ([]string, error)
	Comments(ctx context.Context, corpNum string, until time.Time) ([]ledger.CommentRow, error)
	EventEffectiveDate(ctx context.Context, eventID int64) (time.Time, error)
}

var _ Source = (*ledger.Reader)(nil)

// Request identifies the event to assemble.
type Request struct {
	CorpNum string
	Event   ledger.Event
	Rule    policy.Rule
	Class   policy.Class
	// Previous is the bag assembled for the corporation's preceding
	// event in this run, or nil.
	Previous *Bag
	// PrecedingEvent is the ledger event before Event, processed or not.
	// Staff comments are windowed to (PrecedingEvent, Event].
	PrecedingEvent     *ledger.Event
	PriorEventIDs      []int64
	CorrectionEventIDs []int64
	// FoldedCorrectionIDs are corrections after Event already folded into
	// the filing of an earlier event. Their row changes are part of the
	// snapshot and the rows they started count as carried.
	FoldedCorrectionIDs []int64
}

// Assembler builds Bags from a ledger Source.
type Assembler struct {
	src Source
}

// New returns an Assembler reading from src.
func New(src Source) *Assembler {
	return &Assembler{src: src}
}

// minDirectors is the statutory minimum director count per corporation type.
var minDirectors = map[string]int{
	"CP":   3,
	"BC":   1,
	"BEN":  1,
	"C":    1,
	"CBEN": 1,
	"CC":   1,
	"CCC":  1,
	"CUL":  1,
	"ULC":  1,
}

// Assemble builds the bag for one event.
//
// Errors of KindNotFound and KindDataIntegrity only invalidate this event.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Bag, error) {
	base, err := a.src.BaseRow(ctx, req.CorpNum, req.Event.ID)
	if err != nil {
		return nil, fmt.Errorf("assemble event %d: %w", req.Event.ID, err)
	}

	b := &Bag{
		CorpNum:            req.CorpNum,
		Event:              base.Event,
		Rule:               req.Rule,
		Class:              req.Class,
		Base:               base,
		EffectiveDate:       base.Event.Timestamp,
		PriorEventIDs:       req.PriorEventIDs,
		CorrectionEventIDs:  req.CorrectionEventIDs,
		FoldedCorrectionIDs: req.FoldedCorrectionIDs,
	}
	if base.Event.EffectiveDate != nil {
		b.EffectiveDate = *base.Event.EffectiveDate
	}
	if req.Previous != nil {
		b.prior = req.Previous.memo
	}

	if b.LedgerText, err = a.src.LedgerText(ctx, req.Event.ID); err != nil {
		return nil, fmt.Errorf("assemble event %d: %w", req.Event.ID, err)
	}
	comments, err := a.src.Comments(ctx, req.CorpNum, base.Event.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("assemble event %d: %w", req.Event.ID, err)
	}
	for _, c := range comments {
		if req.PrecedingEvent == nil || c.Timestamp.After(req.PrecedingEvent.Timestamp) {
			b.Comments = append(b.Comments, c)
		}
	}

	if err := a.snapshot(ctx, b); err != nil {
		return nil, err
	}

	slog.Debug("event assembled",
		"corp_num", req.CorpNum,
		"event_id", req.Event.ID,
		"parties", len(b.Parties),
		"offices", len(b.Offices),
		"warnings", len(b.Warnings))
	return b, nil
}

// AssembleAsOf re-gathers the entity snapshot of bag with the row changes of
// the correcting events applied, keeping bag's base row. asOf is the latest
// of them. Rows the corrections started count as started by the bag's event;
// rows started by other events after the bag's event are not seen.
func (a *Assembler) AssembleAsOf(ctx context.Context, bag *Bag, asOf int64, correcting []int64) (*Bag, error) {
	if asOf < bag.Event.ID {
		return nil, fmt.Errorf("assemble event %d as of earlier event %d", bag.Event.ID, asOf)
	}
	for _, id := range correcting {
		if id <= bag.Event.ID || id > asOf {
			return nil, fmt.Errorf("assemble event %d as of %d: correcting event %d out of range", bag.Event.ID, asOf, id)
		}
	}
	c := bag.clone()
	c.prior = bag.memo
	c.CorrectingEventIDs = append([]int64(nil), correcting...)
	c.IsCorrectedEventFiling = len(correcting) > 0

	if err := a.snapshot(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// snapshot fills the entity fields of b: the state at b's event with the
// row changes of its applied corrections on top.
func (a *Assembler) snapshot(ctx context.Context, b *Bag) error {
	corp := b.CorpNum
	asOf := ledger.AsOf{EventID: b.Event.ID, Correcting: b.appliedCorrections()}
	b.AsOfEventID = b.Event.ID
	if n := len(asOf.Correcting); n > 0 {
		b.AsOfEventID = max(b.AsOfEventID, asOf.Correcting[n-1])
	}
	wrap := func(err error) error {
		return fmt.Errorf("assemble event %d as of %d: %w", b.Event.ID, b.AsOfEventID, err)
	}

	started := map[int64]bool{b.Event.ID: true}
	for _, id := range b.CorrectingEventIDs {
		started[id] = true
	}

	var err error
	if b.LegalName, err = a.src.LegalName(ctx, corp, asOf); err != nil {
		return wrap(err)
	}
	if b.State, err = a.src.State(ctx, corp, asOf); err != nil {
		return wrap(err)
	}
	if b.Names, err = a.src.Names(ctx, corp, asOf); err != nil {
		return wrap(err)
	}

	partyRows, err := a.src.Parties(ctx, corp, asOf)
	if err != nil {
		return wrap(err)
	}
	if !b.Rule.CarryForwardParties {
		partyRows = filterParties(partyRows, started)
	}
	var ceasedRows []ledger.PartyRow
	if ids := b.ceasingEvents(); len(ids) > 0 {
		if ceasedRows, err = a.src.PartiesCeasedAt(ctx, corp, ids...); err != nil {
			return wrap(err)
		}
		ceasedRows = filterCeased(ceasedRows, b.Event.ID)
	}

	officeRows, err := a.src.Offices(ctx, corp, asOf)
	if err != nil {
		return wrap(err)
	}
	if !b.Rule.CarryForwardOffices {
		officeRows = filterOffices(officeRows, started)
	}
	if len(officeRows) == 0 && (b.Class == policy.ClassNewBusiness || b.Rule.Target == policy.ChangeOfAddress) {
		return errs.New(errs.KindDataIntegrity, "no office rows for %s event", b.Rule.Code).At(corp, b.Event.ID)
	}

	addrs, err := a.src.Addresses(ctx, addressIDs(partyRows, ceasedRows, officeRows))
	if err != nil {
		return wrap(err)
	}

	b.memo = make(map[int64]time.Time, len(b.prior)+len(partyRows))
	maps.Copy(b.memo, b.prior)

	b.Parties = make([]Party, 0, len(partyRows))
	for _, row := range partyRows {
		p, err := a.party(ctx, b, row, started, addrs)
		if err != nil {
			return wrap(err)
		}
		if row.EndEventID != nil {
			// Closed by a later event; not ceased yet at this one.
			p.CessationDate = nil
		}
		b.Parties = append(b.Parties, p)
	}
	b.CeasedParties = nil
	for _, row := range ceasedRows {
		p, err := a.party(ctx, b, row, started, addrs)
		if err != nil {
			return wrap(err)
		}
		if p.CessationDate == nil {
			d := b.EffectiveDate
			p.CessationDate = &d
		}
		b.CeasedParties = append(b.CeasedParties, p)
	}

	b.Offices = make([]Office, 0, len(officeRows))
	for _, row := range officeRows {
		o := Office{
			Type:         row.Type,
			StartEventID: row.StartEventID,
			Carried:      !started[row.StartEventID],
			Mailing:      lookupAddress(addrs, row.MailingAddrID),
			Delivery:     lookupAddress(addrs, row.DeliveryAddrID),
		}
		if o.Mailing == nil && o.Delivery == nil {
			b.warn(errs.WarnAddressMissing, "office %s has no address", row.Type)
		}
		b.Offices = append(b.Offices, o)
	}

	b.ShareClasses = nil
	if b.Rule.IncludeShareStructure {
		classes, series, err := a.src.ShareStructure(ctx, corp, asOf)
		if err != nil {
			return wrap(err)
		}
		b.ShareClasses = nestShares(classes, series)
	}

	b.Jurisdiction = nil
	if b.Rule.IncludeJurisdiction {
		if b.Jurisdiction, err = a.src.Jurisdiction(ctx, corp, asOf); err != nil {
			return wrap(err)
		}
	}

	b.checkAddresses()
	b.checkDirectors()
	return nil
}

func (a *Assembler) party(ctx context.Context, b *Bag, row ledger.PartyRow, started map[int64]bool, addrs map[int64]ledger.AddressRow) (Party, error) {
	p := Party{
		Row:           row,
		CessationDate: row.CessationDate,
		Carried:       !started[row.StartEventID],
		Mailing:       lookupAddress(addrs, row.MailingAddrID),
		Delivery:      lookupAddress(addrs, row.DeliveryAddrID),
	}
	if p.Carried {
		id := row.ID
		p.PrevColinPartyID = &id
	} else if row.PrevPartyID != nil {
		id := *row.PrevPartyID
		p.PrevColinPartyID = &id
	}

	date, err := a.appointmentDate(ctx, b, row)
	if err != nil {
		return Party{}, err
	}
	p.AppointmentDate = date
	b.memo[row.ID] = date
	return p, nil
}

// appointmentDate resolves a party's appointment date: the row's own value,
// then the date already resolved for the party it replaces (or itself), then
// the effective date of the event that started it, then the filing's.
func (a *Assembler) appointmentDate(ctx context.Context, b *Bag, row ledger.PartyRow) (time.Time, error) {
	if row.AppointmentDate != nil {
		return *row.AppointmentDate, nil
	}
	if row.PrevPartyID != nil {
		if t, ok := b.memo[*row.PrevPartyID]; ok {
			return t, nil
		}
	}
	if t, ok := b.memo[row.ID]; ok {
		return t, nil
	}
	if row.StartEventID != b.Event.ID {
		t, err := a.src.EventEffectiveDate(ctx, row.StartEventID)
		if err == nil {
			return t, nil
		}
		if !errs.IsNotFound(err) {
			return time.Time{}, err
		}
	}
	b.warn(errs.WarnAppointmentDate, "party %d has no appointment date", row.ID)
	return b.EffectiveDate, nil
}

// checkAddresses flags free-text street lines that do not fit the two
// street fields of a filing address. Advanced-format rows have none.
func (b *Bag) checkAddresses() {
	seen := make(map[int64]bool)
	check := func(addr *ledger.AddressRow) {
		if addr == nil || seen[addr.ID] || addr.Format == ledger.FormatAdvanced {
			return
		}
		seen[addr.ID] = true
		if addr.Line3 != "" {
			b.warn(errs.WarnAddressLines, "address %d has three street lines", addr.ID)
		}
		if addr.Format != ledger.FormatBasic && addr.Line1 == "" && addr.Line2 == "" {
			b.warn(errs.WarnAddressMissing, "address %d has no street lines", addr.ID)
		}
	}
	for _, o := range b.Offices {
		check(o.Mailing)
		check(o.Delivery)
	}
	for _, p := range b.Parties {
		check(p.Mailing)
		check(p.Delivery)
	}
}

func (b *Bag) checkDirectors() {
	if !b.Rule.CarryForwardParties {
		return
	}
	want, ok := minDirectors[b.Base.Corporation.CorpType]
	if !ok {
		return
	}
	if n := len(b.Directors()); n < want {
		b.warn(errs.WarnDirectorCount, "%d directors, %s requires at least %d", n, b.Base.Corporation.CorpType, want)
	}
}

func filterParties(rows []ledger.PartyRow, started map[int64]bool) []ledger.PartyRow {
	out := make([]ledger.PartyRow, 0, len(rows))
	for _, r := range rows {
		if started[r.StartEventID] {
			out = append(out, r)
		}
	}
	return out
}

// filterCeased drops ceased rows the bag's own event or a later one
// started: those never reached the target, so there is nothing to close.
func filterCeased(rows []ledger.PartyRow, eventID int64) []ledger.PartyRow {
	out := make([]ledger.PartyRow, 0, len(rows))
	for _, r := range rows {
		if r.StartEventID < eventID {
			out = append(out, r)
		}
	}
	return out
}

func filterOffices(rows []ledger.OfficeRow, started map[int64]bool) []ledger.OfficeRow {
	out := make([]ledger.OfficeRow, 0, len(rows))
	for _, r := range rows {
		if started[r.StartEventID] {
			out = append(out, r)
		}
	}
	return out
}

func addressIDs(parties, ceased []ledger.PartyRow, offices []ledger.OfficeRow) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	add := func(id *int64) {
		if id != nil && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	for _, p := range parties {
		add(p.MailingAddrID)
		add(p.DeliveryAddrID)
	}
	for _, p := range ceased {
		add(p.MailingAddrID)
		add(p.DeliveryAddrID)
	}
	for _, o := range offices {
		add(o.MailingAddrID)
		add(o.DeliveryAddrID)
	}
	return ids
}

func lookupAddress(addrs map[int64]ledger.AddressRow, id *int64) *ledger.AddressRow {
	if id == nil {
		return nil
	}
	a, ok := addrs[*id]
	if !ok {
		return nil
	}
	return &a
}

// nestShares attaches each series to its class by class id, keeping class
// and series order. Series of an unknown class are dropped.
func nestShares(classes []ledger.ShareClassRow, series []ledger.ShareSeriesRow) []ShareClass {
	if len(classes) == 0 {
		return nil
	}
	out := make([]ShareClass, len(classes))
	index := make(map[int64]int, len(classes))
	for i, c := range classes {
		out[i] = ShareClass{ShareClassRow: c}
		index[c.ClassID] = i
	}
	for _, s := range series {
		if i, ok := index[s.ClassID]; ok {
			out[i].Series = append(out[i].Series, s)
		} else {
			slog.Warn("share series without class", "class_id", s.ClassID, "series_id", s.SeriesID)
		}
	}
	return out
}
