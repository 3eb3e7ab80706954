package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BusinessRecord is a row of the businesses table.
type BusinessRecord struct {
	ID           int64      `json:"id"`
	Identifier   string     `json:"identifier"`
	LegalName    string     `json:"legal_name"`
	LegalType    string     `json:"legal_type"`
	State        string     `json:"state"`
	FoundingDate *time.Time `json:"founding_date,omitempty"`
	TaxID        string     `json:"tax_id,omitempty"`
	LastARDate   *time.Time `json:"last_ar_date,omitempty"`
}

// FilingRecord is a committed filing with its legacy event linkage.
type FilingRecord struct {
	ID                   int64     `json:"id"`
	BusinessID           int64     `json:"business_id"`
	FilingType           string    `json:"filing_type"`
	Status               string    `json:"status"`
	EffectiveDate        time.Time `json:"effective_date"`
	DocHash              string    `json:"doc_hash"`
	Source               string    `json:"source"`
	PaperOnly            bool      `json:"paper_only"`
	CorrectionOfFilingID *int64    `json:"correction_of_filing_id,omitempty"`
	ColinEventIDs        []int64   `json:"colin_event_ids"`
	JSON                 string    `json:"-"`
}

// PartyRoleRecord is an active party role joined with its party.
type PartyRoleRecord struct {
	PartyID          int64      `json:"party_id"`
	ColinPartyID     *int64     `json:"colin_party_id,omitempty"`
	Role             string     `json:"role"`
	FirstName        string     `json:"first_name,omitempty"`
	LastName         string     `json:"last_name,omitempty"`
	OrganizationName string     `json:"organization_name,omitempty"`
	AppointmentDate  *time.Time `json:"appointment_date,omitempty"`
	CessationDate    *time.Time `json:"cessation_date,omitempty"`
}

// Business retrieves a business by identifier.
// Returns sql.ErrNoRows if not found.
func (s *Store) Business(ctx context.Context, identifier string) (BusinessRecord, error) {
	var b BusinessRecord
	var legalName, taxID sql.NullString
	var founding, lastAR sql.NullTime

	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT id, identifier, legal_name, legal_type, state, founding_date, tax_id, last_ar_date
		FROM businesses
		WHERE identifier = ?
	`), identifier).Scan(&b.ID, &b.Identifier, &legalName, &b.LegalType, &b.State, &founding, &taxID, &lastAR)
	if err != nil {
		return BusinessRecord{}, err
	}

	b.LegalName = legalName.String
	b.TaxID = taxID.String
	b.FoundingDate = timePtr(founding)
	b.LastARDate = timePtr(lastAR)
	return b, nil
}

// Filings returns all filings of a business ordered by id.
// Returns an empty slice (not nil) if the business has none or does not exist.
func (s *Store) Filings(ctx context.Context, identifier string) ([]FilingRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT f.id, f.business_id, f.filing_type, f.status, f.effective_date, f.doc_hash,
		       f.source, f.paper_only, f.correction_of_filing_id, f.filing_json
		FROM filings f
		JOIN businesses b ON b.id = f.business_id
		WHERE b.identifier = ?
		ORDER BY f.id ASC
	`), identifier)
	if err != nil {
		return nil, fmt.Errorf("query filings: %w", err)
	}
	defer rows.Close()

	filings := []FilingRecord{}
	for rows.Next() {
		var f FilingRecord
		var correctionOf sql.NullInt64
		if err := rows.Scan(
			&f.ID, &f.BusinessID, &f.FilingType, &f.Status, &f.EffectiveDate, &f.DocHash,
			&f.Source, &f.PaperOnly, &correctionOf, &f.JSON,
		); err != nil {
			return nil, fmt.Errorf("scan filing: %w", err)
		}
		if correctionOf.Valid {
			v := correctionOf.Int64
			f.CorrectionOfFilingID = &v
		}
		filings = append(filings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filings: %w", err)
	}

	for i := range filings {
		ids, err := s.colinEventIDs(ctx, filings[i].ID)
		if err != nil {
			return nil, err
		}
		filings[i].ColinEventIDs = ids
	}
	return filings, nil
}

func (s *Store) colinEventIDs(ctx context.Context, filingID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT colin_event_id FROM colin_event_ids WHERE filing_id = ? ORDER BY colin_event_id ASC
	`), filingID)
	if err != nil {
		return nil, fmt.Errorf("query colin event ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan colin event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FilingForEvent returns the id of the filing linked to a legacy event.
// Returns (0, false, nil) when the event was never applied.
func (s *Store) FilingForEvent(ctx context.Context, colinEventID int64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		"SELECT filing_id FROM colin_event_ids WHERE colin_event_id = ?",
	), colinEventID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("filing for event: %w", err)
	}
	return id, true, nil
}

// ActivePartyRoles returns the roles of a business with no cessation date,
// ordered by role then party id.
func (s *Store) ActivePartyRoles(ctx context.Context, identifier string) ([]PartyRoleRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT p.id, p.colin_party_id, r.role, p.first_name, p.last_name, p.organization_name,
		       r.appointment_date, r.cessation_date
		FROM party_roles r
		JOIN parties p ON p.id = r.party_id
		JOIN businesses b ON b.id = r.business_id
		WHERE b.identifier = ? AND r.cessation_date IS NULL
		ORDER BY r.role ASC, p.id ASC
	`), identifier)
	if err != nil {
		return nil, fmt.Errorf("query party roles: %w", err)
	}
	defer rows.Close()

	out := []PartyRoleRecord{}
	for rows.Next() {
		var r PartyRoleRecord
		var colinID sql.NullInt64
		var first, last, org sql.NullString
		var appointed, ceased sql.NullTime
		if err := rows.Scan(&r.PartyID, &colinID, &r.Role, &first, &last, &org, &appointed, &ceased); err != nil {
			return nil, fmt.Errorf("scan party role: %w", err)
		}
		if colinID.Valid {
			v := colinID.Int64
			r.ColinPartyID = &v
		}
		r.FirstName, r.LastName, r.OrganizationName = first.String, last.String, org.String
		r.AppointmentDate = timePtr(appointed)
		r.CessationDate = timePtr(ceased)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate party roles: %w", err)
	}
	return out, nil
}

// CountRows returns the number of rows in a target table.
// The table name must be one of the schema's tables.
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "businesses", "filings", "colin_event_ids", "parties", "party_roles",
		"offices", "addresses", "share_classes", "share_series", "aliases",
		"corp_processing", "corp_event_skips":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
