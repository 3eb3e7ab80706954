// Package filer applies reconstructed filing documents to the target model.
//
// Apply runs entirely inside the caller's transaction: the caller advances
// the watermark in the same transaction and commits, so a filing, its
// entity changes, its legacy-event linkage and the watermark move together
// or not at all.
//
// Re-applying a document whose legacy events are already linked is a no-op.
package filer

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/filing"
	"github.com/bcgov/colin-migrate/internal/policy"
	"github.com/bcgov/colin-migrate/internal/store"
)

// Clock supplies the completion and modification timestamps.
type Clock interface {
	Now() time.Time
}

// Result describes what Apply did.
type Result struct {
	FilingID        int64
	BusinessID      int64
	Identifier      string
	FilingType      policy.FilingType
	Status          Status
	History         []Status
	DocHash         string
	BusinessCreated bool
	Replayed        bool
}

// Filer writes filings into the target model.
type Filer struct {
	clock Clock
}

// New creates a Filer.
func New(clock Clock) *Filer {
	return &Filer{clock: clock}
}

// Apply writes doc inside tx. Validation failures are KindDataIntegrity, a
// missing business for a maintenance filing is KindNotFound, and any
// database failure is KindTransaction; in every case the caller must roll
// tx back.
func (f *Filer) Apply(ctx context.Context, tx *store.Tx, doc filing.Document) (*Result, error) {
	hdr := doc.Filing.Header
	res := &Result{
		Identifier: doc.Filing.Business.Identifier,
		FilingType: policy.FilingType(hdr.Name),
	}
	if len(hdr.ColinIDs) == 0 {
		return nil, errs.New(errs.KindDataIntegrity, "filing %s has no legacy event ids", hdr.Name)
	}

	a := &applier{ctx: ctx, tx: tx, doc: doc, now: f.clock.Now().UTC(), eventID: hdr.ColinIDs[0]}

	replayed, err := a.linkedFiling()
	if err != nil {
		return nil, err
	}
	if replayed != nil {
		replayed.Identifier = res.Identifier
		slog.Debug("filing already applied",
			"corp", res.Identifier, "event", a.eventID, "filing_id", replayed.FilingID)
		return replayed, nil
	}

	lc := NewLifecycle()
	fail := func(err error) (*Result, error) {
		lc.Fail()
		res.Status, res.History = lc.Status(), lc.History()
		return res, err
	}

	if err := filing.Validate(doc); err != nil {
		return fail(err)
	}
	if res.DocHash, err = filing.Hash(doc); err != nil {
		return fail(errs.Wrap(errs.KindDataIntegrity, err, "hash filing"))
	}
	if err := lc.To(settlement(doc)); err != nil {
		return fail(err)
	}

	if err := a.business(res.FilingType); err != nil {
		return fail(err)
	}
	res.BusinessID, res.BusinessCreated = a.businessID, a.businessCreated

	if err := a.filing(res.FilingType, res.DocHash); err != nil {
		return fail(err)
	}
	res.FilingID = a.filingID

	for _, step := range []func() error{a.parties, a.offices, a.shares, a.aliases} {
		if err := step(); err != nil {
			return fail(err)
		}
	}

	if err := lc.To(StatusCompleted); err != nil {
		return fail(err)
	}
	if _, err := a.tx.ExecContext(ctx,
		"UPDATE filings SET status = ?, completed_at = ? WHERE id = ?",
		string(StatusCompleted), a.now, a.filingID,
	); err != nil {
		return fail(a.txErr(err, "complete filing"))
	}

	res.Status, res.History = lc.Status(), lc.History()
	slog.Debug("filing applied",
		"corp", res.Identifier, "event", a.eventID, "type", res.FilingType,
		"filing_id", res.FilingID, "business_created", res.BusinessCreated)
	return res, nil
}

// settlement is the state a legacy filing passes through before completion.
// Nothing is charged for reconstructed filings; paper-only filings and
// filings against historical businesses are marked HISTORICAL, the rest
// PAID.
func settlement(doc filing.Document) Status {
	if doc.Filing.Header.AvailableOnPaperOnly || doc.Filing.Business.State == "HISTORICAL" {
		return StatusHistorical
	}
	return StatusPaid
}

// applier carries the state of one Apply.
type applier struct {
	ctx     context.Context
	tx      *store.Tx
	doc     filing.Document
	now     time.Time
	eventID int64

	businessID      int64
	businessCreated bool
	filingID        int64
}

func (a *applier) txErr(err error, what string) error {
	return errs.Wrap(errs.KindTransaction, err, "%s", what).At(a.doc.Filing.Business.Identifier, a.eventID)
}

func (a *applier) nextID(idType string) (int64, error) {
	id, err := a.tx.NextID(a.ctx, idType)
	if err != nil {
		return 0, a.txErr(err, "allocate "+idType+" id")
	}
	return id, nil
}

// linkedFiling returns the already-applied filing for any of the document's
// legacy events, linking the remaining ones to it.
func (a *applier) linkedFiling() (*Result, error) {
	ids := a.doc.Filing.Header.ColinIDs
	var filingID int64
	var missing []int64
	for _, id := range ids {
		var fid int64
		err := a.tx.QueryRowContext(a.ctx,
			"SELECT filing_id FROM colin_event_ids WHERE colin_event_id = ?", id,
		).Scan(&fid)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			missing = append(missing, id)
		case err != nil:
			return nil, a.txErr(err, "look up legacy event linkage")
		case filingID == 0:
			filingID = fid
		}
	}
	if filingID == 0 {
		return nil, nil
	}

	for _, id := range missing {
		if _, err := a.tx.ExecContext(a.ctx,
			"INSERT INTO colin_event_ids (colin_event_id, filing_id) VALUES (?, ?)", id, filingID,
		); err != nil {
			return nil, a.txErr(err, "link legacy event")
		}
	}

	res := &Result{FilingID: filingID, Status: StatusCompleted, Replayed: true}
	var filingType string
	if err := a.tx.QueryRowContext(a.ctx,
		"SELECT business_id, filing_type, doc_hash FROM filings WHERE id = ?", filingID,
	).Scan(&res.BusinessID, &filingType, &res.DocHash); err != nil {
		return nil, a.txErr(err, "load applied filing")
	}
	res.FilingType = policy.FilingType(filingType)
	return res, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// parseDate parses an optional document date; malformed dates have already
// been rejected by schema validation.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := filing.ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

func parseDatePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	return parseDate(*s)
}

func isNewBusiness(t policy.FilingType) bool {
	return t == policy.IncorporationApplication || t == policy.ContinuationIn
}

// business resolves the target business, creating it for new-business
// filings, and applies the business-level fields the filing changes.
func (a *applier) business(filingType policy.FilingType) error {
	biz := a.doc.Filing.Business
	err := a.tx.QueryRowContext(a.ctx,
		"SELECT id FROM businesses WHERE identifier = ?"+a.tx.Dialect().ForUpdate(), biz.Identifier,
	).Scan(&a.businessID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !isNewBusiness(filingType) {
			return errs.New(errs.KindNotFound, "business %s not found for %s", biz.Identifier, filingType).
				At(biz.Identifier, a.eventID)
		}
		if err := a.createBusiness(); err != nil {
			return err
		}
	case err != nil:
		return a.txErr(err, "look up business")
	}

	fields := a.businessFields(filingType)
	for _, col := range businessColumns {
		v, ok := fields[col]
		if !ok {
			continue
		}
		if _, err := a.tx.ExecContext(a.ctx,
			"UPDATE businesses SET "+col+" = ? WHERE id = ?", v, a.businessID,
		); err != nil {
			return a.txErr(err, "update business "+col)
		}
	}
	if _, err := a.tx.ExecContext(a.ctx,
		"UPDATE businesses SET last_modified = ? WHERE id = ?", a.now, a.businessID,
	); err != nil {
		return a.txErr(err, "touch business")
	}
	return nil
}

func (a *applier) createBusiness() error {
	biz := a.doc.Filing.Business
	id, err := a.nextID(store.IDBusiness)
	if err != nil {
		return err
	}
	state := biz.State
	if state == "" {
		state = "ACTIVE"
	}
	if _, err := a.tx.ExecContext(a.ctx, `
		INSERT INTO businesses (id, identifier, legal_type, state, last_modified)
		VALUES (?, ?, ?, ?, ?)
	`, id, biz.Identifier, biz.LegalType, state, a.now); err != nil {
		return a.txErr(err, "create business")
	}
	a.businessID = id
	a.businessCreated = true
	slog.Info("business created", "corp", biz.Identifier, "event", a.eventID, "business_id", id)
	return nil
}

// businessColumns fixes the order business updates are issued in.
var businessColumns = []string{
	"legal_name", "legal_type", "state", "founding_date", "tax_id", "last_ar_date", "dissolution_date",
	"foreign_jurisdiction_country", "foreign_jurisdiction_region", "foreign_legal_name",
	"foreign_identifier", "foreign_incorporation_date",
}

// businessFields returns the business columns this filing sets.
func (a *applier) businessFields(filingType policy.FilingType) map[string]any {
	f := a.doc.Filing
	out := map[string]any{"legal_type": f.Business.LegalType}
	if f.Business.LegalName != "" {
		out["legal_name"] = f.Business.LegalName
	}
	if f.Business.State != "" {
		out["state"] = f.Business.State
	}
	if f.Business.TaxID != "" {
		out["tax_id"] = f.Business.TaxID
	}
	if f.Business.FoundingDate != "" {
		if t, err := filing.ParseDateTime(f.Business.FoundingDate); err == nil {
			out["founding_date"] = t
		}
	}

	switch filingType {
	case policy.ContinuationIn:
		if fj := f.ContinuationIn.ForeignJurisdiction; fj != nil {
			out["foreign_jurisdiction_country"] = fj.Country
			out["foreign_jurisdiction_region"] = fj.Region
			out["foreign_legal_name"] = nullString(fj.LegalName)
			out["foreign_identifier"] = nullString(fj.Identifier)
			out["foreign_incorporation_date"] = nullTime(parseDate(fj.IncorporationDate))
		}
	case policy.AnnualReport:
		out["last_ar_date"] = nullTime(parseDate(f.AnnualReport.AnnualReportDate))
	case policy.Alteration:
		if nr := f.Alteration.NameRequest; nr != nil && nr.LegalName != "" {
			out["legal_name"] = nr.LegalName
		}
	case policy.Dissolution:
		out["dissolution_date"] = nullTime(parseDate(f.Dissolution.DissolutionDate))
		out["state"] = "HISTORICAL"
	case policy.PutBackOn:
		out["dissolution_date"] = nil
		out["state"] = "ACTIVE"
	case policy.Correction:
		if f.Correction.LegalName != "" {
			out["legal_name"] = f.Correction.LegalName
		}
	}
	return out
}

// filing inserts the filing row, its legacy-event linkage and, for a
// correction, the link to the corrected filing.
func (a *applier) filing(filingType policy.FilingType, docHash string) error {
	hdr := a.doc.Filing.Header
	effective, err := filing.ParseDateTime(hdr.EffectiveDate)
	if err != nil {
		return errs.Wrap(errs.KindDataIntegrity, err, "parse effective date").At(a.doc.Filing.Business.Identifier, a.eventID)
	}
	var filed *time.Time
	if t, err := filing.ParseDateTime(hdr.Date); err == nil {
		filed = &t
	}
	canon, err := filing.Canonical(a.doc)
	if err != nil {
		return errs.Wrap(errs.KindDataIntegrity, err, "canonicalize filing")
	}
	correctionOf, err := a.correctedFiling()
	if err != nil {
		return err
	}

	if a.filingID, err = a.nextID(store.IDFiling); err != nil {
		return err
	}
	if _, err := a.tx.ExecContext(a.ctx, `
		INSERT INTO filings (id, business_id, filing_type, status, effective_date, filing_date,
		                     filing_json, doc_hash, source, paper_only, correction_of_filing_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.filingID, a.businessID, string(filingType), string(StatusPending), effective, nullTime(filed),
		string(canon), docHash, hdr.Source, hdr.AvailableOnPaperOnly, correctionOf,
	); err != nil {
		return a.txErr(err, "insert filing")
	}

	for _, id := range hdr.ColinIDs {
		if _, err := a.tx.ExecContext(a.ctx,
			"INSERT INTO colin_event_ids (colin_event_id, filing_id) VALUES (?, ?)", id, a.filingID,
		); err != nil {
			return a.txErr(err, "link legacy event")
		}
	}
	return nil
}

// correctedFiling resolves correction_of_filing_id. A corrected event that
// is part of this document corrects nothing already stored.
func (a *applier) correctedFiling() (any, error) {
	c := a.doc.Filing.Correction
	if c == nil || c.CorrectedEventID == nil {
		return nil, nil
	}
	for _, id := range a.doc.Filing.Header.ColinIDs {
		if id == *c.CorrectedEventID {
			return nil, nil
		}
	}
	var fid int64
	err := a.tx.QueryRowContext(a.ctx,
		"SELECT filing_id FROM colin_event_ids WHERE colin_event_id = ?", *c.CorrectedEventID,
	).Scan(&fid)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("corrected event has no filing",
			"corp", a.doc.Filing.Business.Identifier, "event", a.eventID, "corrected_event", *c.CorrectedEventID)
		return nil, nil
	}
	if err != nil {
		return nil, a.txErr(err, "look up corrected filing")
	}
	return fid, nil
}

// writeAddress updates the address at existing in place, or inserts a new
// one. A nil address leaves existing untouched.
func (a *applier) writeAddress(existing *int64, addressType string, addr *filing.Address, officeID *int64) (*int64, error) {
	if addr == nil {
		return existing, nil
	}
	if existing != nil {
		if _, err := a.tx.ExecContext(a.ctx, `
			UPDATE addresses
			SET street = ?, street_additional = ?, city = ?, region = ?, country = ?,
			    postal_code = ?, delivery_instructions = ?
			WHERE id = ?
		`, addr.StreetAddress, nullString(addr.StreetAddressAdditional), addr.AddressCity,
			nullString(addr.AddressRegion), addr.AddressCountry, nullString(addr.PostalCode),
			nullString(addr.DeliveryInstructions), *existing,
		); err != nil {
			return nil, a.txErr(err, "update address")
		}
		return existing, nil
	}

	id, err := a.nextID(store.IDAddress)
	if err != nil {
		return nil, err
	}
	if _, err := a.tx.ExecContext(a.ctx, `
		INSERT INTO addresses (id, address_type, street, street_additional, city, region, country,
		                       postal_code, delivery_instructions, office_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, addressType, addr.StreetAddress, nullString(addr.StreetAddressAdditional), addr.AddressCity,
		nullString(addr.AddressRegion), addr.AddressCountry, nullString(addr.PostalCode),
		nullString(addr.DeliveryInstructions), nullID(officeID),
	); err != nil {
		return nil, a.txErr(err, "insert address")
	}
	return &id, nil
}

func nullID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// Address types.
const (
	AddressMailing  = "mailing"
	AddressDelivery = "delivery"
)

func (a *applier) debug(msg string, args ...any) {
	slog.Debug(msg, append([]any{"corp", a.doc.Filing.Business.Identifier, "event", a.eventID}, args...)...)
}
