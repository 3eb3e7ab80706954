package filer

import (
	"database/sql"
	"errors"
	"sort"

	"github.com/bcgov/colin-migrate/internal/filing"
	"github.com/bcgov/colin-migrate/internal/store"
)

// partyEntry is one (party, role) pair of a filing, whichever section it
// came from.
type partyEntry struct {
	officer     filing.Officer
	role        string
	appointment string
	cessation   *string
	mailing     *filing.Address
	delivery    *filing.Address
	prev        *filing.PrevColinParty
}

const roleDirector = "Director"

func (a *applier) partyEntries() []partyEntry {
	f := a.doc.Filing
	var parties []filing.Party
	var directors []filing.Director
	switch {
	case f.IncorporationApplication != nil:
		parties = f.IncorporationApplication.Parties
	case f.ContinuationIn != nil:
		parties = f.ContinuationIn.Parties
	case f.Correction != nil:
		parties = f.Correction.Parties
	case f.AnnualReport != nil:
		directors = f.AnnualReport.Directors
	case f.ChangeOfDirectors != nil:
		directors = f.ChangeOfDirectors.Directors
	}

	var out []partyEntry
	for _, p := range parties {
		for _, r := range p.Roles {
			out = append(out, partyEntry{
				officer: p.Officer, role: r.RoleType, appointment: r.AppointmentDate, cessation: r.CessationDate,
				mailing: p.MailingAddress, delivery: p.DeliveryAddress, prev: p.PrevColinParty,
			})
		}
	}
	for _, d := range directors {
		out = append(out, partyEntry{
			officer: d.Officer, role: roleDirector, appointment: d.AppointmentDate, cessation: d.CessationDate,
			mailing: d.MailingAddress, delivery: d.DeliveryAddress, prev: d.PrevColinParty,
		})
	}
	return out
}

// parties upserts every party the filing names. Identity is the legacy party
// id when the document carries one, else the match key and role.
func (a *applier) parties() error {
	for _, e := range a.partyEntries() {
		partyID, err := a.upsertParty(e)
		if err != nil {
			return err
		}
		if err := a.upsertRole(partyID, e); err != nil {
			return err
		}
	}
	return nil
}

type partyRef struct {
	id       int64
	mailing  *int64
	delivery *int64
}

func (a *applier) findParty(e partyEntry, key string) (*partyRef, error) {
	scan := func(row *sql.Row) (*partyRef, error) {
		var ref partyRef
		var mailing, delivery sql.NullInt64
		err := row.Scan(&ref.id, &mailing, &delivery)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, a.txErr(err, "look up party")
		}
		ref.mailing, ref.delivery = nullInt(mailing), nullInt(delivery)
		return &ref, nil
	}

	if e.prev != nil {
		ref, err := scan(a.tx.QueryRowContext(a.ctx, `
			SELECT id, mailing_address_id, delivery_address_id
			FROM parties
			WHERE business_id = ? AND colin_party_id = ?
			ORDER BY id DESC LIMIT 1
		`, a.businessID, e.prev.ID))
		if ref != nil || err != nil {
			return ref, err
		}
	}
	return scan(a.tx.QueryRowContext(a.ctx, `
		SELECT p.id, p.mailing_address_id, p.delivery_address_id
		FROM parties p
		JOIN party_roles r ON r.party_id = p.id
		WHERE p.business_id = ? AND p.match_key = ? AND r.role = ?
		ORDER BY p.id DESC LIMIT 1
	`, a.businessID, key, e.role))
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func (a *applier) upsertParty(e partyEntry) (int64, error) {
	key := MatchKey(e.officer)
	ref, err := a.findParty(e, key)
	if err != nil {
		return 0, err
	}

	var colinID any
	if e.prev != nil {
		colinID = e.prev.ID
	}
	o := e.officer

	if ref == nil {
		id, err := a.nextID(store.IDParty)
		if err != nil {
			return 0, err
		}
		ref = &partyRef{id: id}
		if _, err := a.tx.ExecContext(a.ctx, `
			INSERT INTO parties (id, business_id, colin_party_id, party_type, first_name, middle_name,
			                     last_name, organization_name, identifier, email, match_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, a.businessID, colinID, o.PartyType, nullString(o.FirstName), nullString(o.MiddleName),
			nullString(o.LastName), nullString(o.OrganizationName), nullString(o.Identifier),
			nullString(o.Email), key,
		); err != nil {
			return 0, a.txErr(err, "insert party")
		}
		a.debug("party created", "party_id", id, "role", e.role)
	} else if _, err := a.tx.ExecContext(a.ctx, `
		UPDATE parties
		SET colin_party_id = COALESCE(?, colin_party_id), party_type = ?, first_name = ?, middle_name = ?,
		    last_name = ?, organization_name = ?, identifier = ?, email = ?, match_key = ?
		WHERE id = ?
	`, colinID, o.PartyType, nullString(o.FirstName), nullString(o.MiddleName), nullString(o.LastName),
		nullString(o.OrganizationName), nullString(o.Identifier), nullString(o.Email), key, ref.id,
	); err != nil {
		return 0, a.txErr(err, "update party")
	}

	mailing, err := a.writeAddress(ref.mailing, AddressMailing, e.mailing, nil)
	if err != nil {
		return 0, err
	}
	delivery, err := a.writeAddress(ref.delivery, AddressDelivery, e.delivery, nil)
	if err != nil {
		return 0, err
	}
	if _, err := a.tx.ExecContext(a.ctx,
		"UPDATE parties SET mailing_address_id = ?, delivery_address_id = ? WHERE id = ?",
		nullID(mailing), nullID(delivery), ref.id,
	); err != nil {
		return 0, a.txErr(err, "link party addresses")
	}
	return ref.id, nil
}

// upsertRole updates the party's open role of the same type, or opens a new
// one. A cessation date closes the role.
func (a *applier) upsertRole(partyID int64, e partyEntry) error {
	appointed := nullTime(parseDate(e.appointment))
	ceased := nullTime(parseDatePtr(e.cessation))

	var roleID int64
	err := a.tx.QueryRowContext(a.ctx, `
		SELECT id FROM party_roles
		WHERE party_id = ? AND role = ? AND cessation_date IS NULL
		ORDER BY id DESC LIMIT 1
	`, partyID, e.role).Scan(&roleID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id, err := a.nextID(store.IDPartyRole)
		if err != nil {
			return err
		}
		if _, err := a.tx.ExecContext(a.ctx, `
			INSERT INTO party_roles (id, business_id, party_id, role, appointment_date, cessation_date, filing_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, a.businessID, partyID, e.role, appointed, ceased, a.filingID); err != nil {
			return a.txErr(err, "insert party role")
		}
	case err != nil:
		return a.txErr(err, "look up party role")
	default:
		if _, err := a.tx.ExecContext(a.ctx,
			"UPDATE party_roles SET appointment_date = ?, cessation_date = ? WHERE id = ?",
			appointed, ceased, roleID,
		); err != nil {
			return a.txErr(err, "update party role")
		}
	}
	return nil
}

func (a *applier) officeSet() filing.Offices {
	f := a.doc.Filing
	switch {
	case f.IncorporationApplication != nil:
		return f.IncorporationApplication.Offices
	case f.ContinuationIn != nil:
		return f.ContinuationIn.Offices
	case f.AnnualReport != nil:
		return f.AnnualReport.Offices
	case f.ChangeOfAddress != nil:
		return f.ChangeOfAddress.Offices
	case f.Correction != nil:
		return f.Correction.Offices
	}
	return nil
}

// offices upserts each office the filing names, keyed by office type.
func (a *applier) offices() error {
	set := a.officeSet()
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, officeType := range keys {
		office := set[officeType]
		var officeID int64
		err := a.tx.QueryRowContext(a.ctx, `
			SELECT id FROM offices
			WHERE business_id = ? AND office_type = ? AND deactivated_date IS NULL
			ORDER BY id DESC LIMIT 1
		`, a.businessID, officeType).Scan(&officeID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if officeID, err = a.nextID(store.IDOffice); err != nil {
				return err
			}
			if _, err := a.tx.ExecContext(a.ctx,
				"INSERT INTO offices (id, business_id, office_type, filing_id) VALUES (?, ?, ?, ?)",
				officeID, a.businessID, officeType, a.filingID,
			); err != nil {
				return a.txErr(err, "insert office")
			}
		case err != nil:
			return a.txErr(err, "look up office")
		}

		for _, addr := range []struct {
			typ  string
			addr *filing.Address
		}{{AddressMailing, office.MailingAddress}, {AddressDelivery, office.DeliveryAddress}} {
			existing, err := a.officeAddress(officeID, addr.typ)
			if err != nil {
				return err
			}
			if _, err := a.writeAddress(existing, addr.typ, addr.addr, &officeID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *applier) officeAddress(officeID int64, addressType string) (*int64, error) {
	var id int64
	err := a.tx.QueryRowContext(a.ctx,
		"SELECT id FROM addresses WHERE office_id = ? AND address_type = ? ORDER BY id DESC LIMIT 1",
		officeID, addressType,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, a.txErr(err, "look up office address")
	}
	return &id, nil
}

func (a *applier) shareStructure() *filing.ShareStructure {
	f := a.doc.Filing
	switch {
	case f.IncorporationApplication != nil:
		return f.IncorporationApplication.ShareStructure
	case f.ContinuationIn != nil:
		return f.ContinuationIn.ShareStructure
	case f.Alteration != nil:
		return f.Alteration.ShareStructure
	case f.Correction != nil:
		return f.Correction.ShareStructure
	}
	return nil
}

// shares replaces the business's share structure when the filing restates
// one.
func (a *applier) shares() error {
	ss := a.shareStructure()
	if ss == nil {
		return nil
	}
	if _, err := a.tx.ExecContext(a.ctx, `
		DELETE FROM share_series
		WHERE share_class_id IN (SELECT id FROM share_classes WHERE business_id = ?)
	`, a.businessID); err != nil {
		return a.txErr(err, "clear share series")
	}
	if _, err := a.tx.ExecContext(a.ctx,
		"DELETE FROM share_classes WHERE business_id = ?", a.businessID,
	); err != nil {
		return a.txErr(err, "clear share classes")
	}

	for _, c := range ss.ShareClasses {
		classID, err := a.nextID(store.IDShareClass)
		if err != nil {
			return err
		}
		if _, err := a.tx.ExecContext(a.ctx, `
			INSERT INTO share_classes (id, business_id, name, priority, max_share_flag, max_shares,
			                           par_value_flag, par_value, currency, special_rights_flag)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, classID, a.businessID, c.Name, c.Priority, c.HasMaximumShares, c.MaxNumberOfShares,
			c.HasParValue, c.ParValue, nullString(c.Currency), c.HasRightsOrRestrictions,
		); err != nil {
			return a.txErr(err, "insert share class")
		}
		for _, s := range c.Series {
			seriesID, err := a.nextID(store.IDSeries)
			if err != nil {
				return err
			}
			if _, err := a.tx.ExecContext(a.ctx, `
				INSERT INTO share_series (id, share_class_id, name, priority, max_share_flag, max_shares,
				                          special_rights_flag)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, seriesID, classID, s.Name, s.Priority, s.HasMaximumShares, s.MaxNumberOfShares,
				s.HasRightsOrRestrictions,
			); err != nil {
				return a.txErr(err, "insert share series")
			}
		}
	}
	a.debug("share structure replaced", "classes", len(ss.ShareClasses))
	return nil
}

func (a *applier) nameTranslations() []filing.NameTranslation {
	f := a.doc.Filing
	switch {
	case f.IncorporationApplication != nil:
		return f.IncorporationApplication.NameTranslations
	case f.ContinuationIn != nil:
		return f.ContinuationIn.NameTranslations
	case f.Alteration != nil:
		return f.Alteration.NameTranslations
	case f.Correction != nil:
		return f.Correction.NameTranslations
	}
	return nil
}

// aliases replaces the business's aliases when the filing lists any.
func (a *applier) aliases() error {
	names := a.nameTranslations()
	if len(names) == 0 {
		return nil
	}
	if _, err := a.tx.ExecContext(a.ctx,
		"DELETE FROM aliases WHERE business_id = ?", a.businessID,
	); err != nil {
		return a.txErr(err, "clear aliases")
	}
	for _, n := range names {
		id, err := a.nextID(store.IDAlias)
		if err != nil {
			return err
		}
		typ := n.Type
		if typ == "" {
			typ = "ALIAS"
		}
		if _, err := a.tx.ExecContext(a.ctx,
			"INSERT INTO aliases (id, business_id, alias, type) VALUES (?, ?, ?, ?)",
			id, a.businessID, n.Name, typ,
		); err != nil {
			return a.txErr(err, "insert alias")
		}
	}
	return nil
}
