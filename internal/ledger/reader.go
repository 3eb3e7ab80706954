package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// AsOf is a point in a corporation's history: the versioned rows in effect
// at EventID, with the row changes of the Correcting events applied on top.
// Rows started by later events that are not corrections are never included.
type AsOf struct {
	EventID    int64
	Correcting []int64
}

// At is the plain state at eventID.
func At(eventID int64) AsOf {
	return AsOf{EventID: eventID}
}

// active renders the predicate selecting rows in effect at the point, and
// its arguments.
//
// A row is in effect when it started at or before EventID or was started by
// a correction, and it is open, or it was closed after EventID by an event
// that is not one of the corrections.
func (a AsOf) active() (string, []any) {
	if len(a.Correcting) == 0 {
		return "start_event_id <= ? AND (end_event_id IS NULL OR end_event_id > ?)", []any{a.EventID, a.EventID}
	}
	ph := store.Placeholders(len(a.Correcting))
	args := []any{a.EventID}
	for _, id := range a.Correcting {
		args = append(args, id)
	}
	args = append(args, a.EventID)
	for _, id := range a.Correcting {
		args = append(args, id)
	}
	return "(start_event_id <= ? OR start_event_id IN (" + ph + ")) AND " +
		"(end_event_id IS NULL OR (end_event_id > ? AND end_event_id NOT IN (" + ph + ")))", args
}

// started renders the predicate selecting rows started at or before the
// point, and its arguments.
func (a AsOf) started() (string, []any) {
	if len(a.Correcting) == 0 {
		return "start_event_id <= ?", []any{a.EventID}
	}
	args := []any{a.EventID}
	for _, id := range a.Correcting {
		args = append(args, id)
	}
	return "(start_event_id <= ? OR start_event_id IN (" + store.Placeholders(len(a.Correcting)) + "))", args
}

// Legal-name types; every other corp_name type is an alias or translation.
var legalNameTypes = []string{"CO", "NB"}

// Reader runs read-only, typed queries against the legacy ledger.
//
// All results are decoded once into row structs; NULL and blank strings are
// normalised at this boundary and nowhere else.
type Reader struct {
	db      *sql.DB
	dialect store.Dialect
}

// NewReader wraps a ledger connection.
func NewReader(db *sql.DB, dialect store.Dialect) *Reader {
	return &Reader{db: db, dialect: dialect}
}

// CreateSchema creates the ledger tables. Dev and test databases only.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

func (r *Reader) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.dialect.Rebind(q), args...)
}

func (r *Reader) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.dialect.Rebind(q), args...)
}

// CorpEventSummaries aggregates events per corporation in corp_num order,
// starting strictly after the given corp_num. limit <= 0 means no limit.
func (r *Reader) CorpEventSummaries(ctx context.Context, filter Filter, after string, limit int) ([]CorpSummary, error) {
	q := `
		SELECT e.corp_num, c.corp_type_cd, COUNT(*), MAX(e.event_id)
		FROM event e
		JOIN corporation c ON c.corp_num = e.corp_num
		WHERE e.corp_num > ?`
	args := []any{after}

	if len(filter.CorpTypes) > 0 {
		q += " AND c.corp_type_cd IN (" + store.Placeholders(len(filter.CorpTypes)) + ")"
		for _, t := range filter.CorpTypes {
			args = append(args, t)
		}
	}
	if len(filter.CorpNums) > 0 {
		q += " AND e.corp_num IN (" + store.Placeholders(len(filter.CorpNums)) + ")"
		for _, c := range filter.CorpNums {
			args = append(args, c)
		}
	}
	q += " GROUP BY e.corp_num, c.corp_type_cd ORDER BY e.corp_num"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query corp summaries: %w", err)
	}
	defer rows.Close()

	out := []CorpSummary{}
	for rows.Next() {
		var s CorpSummary
		if err := rows.Scan(&s.CorpNum, &s.CorpType, &s.EventCount, &s.LastEventID); err != nil {
			return nil, fmt.Errorf("scan corp summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corp summaries: %w", err)
	}
	return out, nil
}

// Corporation returns the corporation row, or KindNotFound.
func (r *Reader) Corporation(ctx context.Context, corpNum string) (Corporation, error) {
	var c Corporation
	var recognition, lastAR sql.NullTime
	var bn9, bn15, email, sendAR sql.NullString

	err := r.queryRow(ctx, `
		SELECT corp_num, corp_type_cd, recognition_dts, bn_9, bn_15, admin_email, send_ar_ind, last_ar_filed_dt
		FROM corporation
		WHERE corp_num = ?
	`, corpNum).Scan(&c.CorpNum, &c.CorpType, &recognition, &bn9, &bn15, &email, &sendAR, &lastAR)
	if errors.Is(err, sql.ErrNoRows) {
		return Corporation{}, errs.New(errs.KindNotFound, "corporation not found").At(corpNum, 0)
	}
	if err != nil {
		return Corporation{}, fmt.Errorf("query corporation: %w", err)
	}

	c.RecognitionDate = normTime(recognition)
	c.BN9 = normString(bn9)
	c.BN15 = normString(bn15)
	c.AdminEmail = normString(email)
	c.SendAR = normFlag(sendAR)
	c.LastARFiledDate = normTime(lastAR)
	return c, nil
}

// Events returns every event of a corporation in ascending event_id order.
func (r *Reader) Events(ctx context.Context, corpNum string) ([]Event, error) {
	rows, err := r.query(ctx, `
		SELECT e.event_id, e.corp_num, e.event_type_cd, e.event_timestmp, e.trigger_dts,
		       f.filing_type_cd, f.effective_dt
		FROM event e
		LEFT JOIN filing f ON f.event_id = e.event_id
		WHERE e.corp_num = ?
		ORDER BY e.event_id ASC
	`, corpNum)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		var trigger, effective sql.NullTime
		var filingType sql.NullString
		if err := rows.Scan(&e.ID, &e.CorpNum, &e.TypeCode, &e.Timestamp, &trigger, &filingType, &effective); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.TypeCode = strings.TrimSpace(e.TypeCode)
		e.TriggerTimestamp = normTime(trigger)
		e.FilingTypeCode = normString(filingType)
		e.EffectiveDate = normTime(effective)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// BaseRow returns the aggregate row of an event: the event, its filing
// sub-record and submitting user when present, and the corporation.
func (r *Reader) BaseRow(ctx context.Context, corpNum string, eventID int64) (BaseRow, error) {
	var b BaseRow
	var trigger, effective, periodEnd, agm sql.NullTime
	var filingType, ods, nr, arrangement sql.NullString
	var userID, first, middle, last, email sql.NullString

	err := r.queryRow(ctx, `
		SELECT e.event_id, e.corp_num, e.event_type_cd, e.event_timestmp, e.trigger_dts,
		       f.filing_type_cd, f.effective_dt, f.period_end_dt, f.agm_date, f.ods_type_cd,
		       f.nr_num, f.arrangement_ind,
		       u.user_id, u.first_nme, u.middle_nme, u.last_nme, u.email_addr
		FROM event e
		LEFT JOIN filing f ON f.event_id = e.event_id
		LEFT JOIN filing_user u ON u.event_id = e.event_id
		WHERE e.corp_num = ? AND e.event_id = ?
	`, corpNum, eventID).Scan(
		&b.Event.ID, &b.Event.CorpNum, &b.Event.TypeCode, &b.Event.Timestamp, &trigger,
		&filingType, &effective, &periodEnd, &agm, &ods,
		&nr, &arrangement,
		&userID, &first, &middle, &last, &email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return BaseRow{}, errs.New(errs.KindNotFound, "event not found").At(corpNum, eventID)
	}
	if err != nil {
		return BaseRow{}, fmt.Errorf("query base row: %w", err)
	}

	b.Event.TypeCode = strings.TrimSpace(b.Event.TypeCode)
	b.Event.TriggerTimestamp = normTime(trigger)
	b.Event.FilingTypeCode = normString(filingType)
	b.Event.EffectiveDate = normTime(effective)
	b.HasFilingRow = filingType.Valid
	b.PeriodEndDate = normTime(periodEnd)
	b.AGMDate = normTime(agm)
	b.ODSType = normString(ods)
	b.NRNumber = normString(nr)
	b.Arrangement = normFlag(arrangement)
	b.User = FilingUser{
		UserID:     normString(userID),
		FirstName:  normString(first),
		MiddleName: normString(middle),
		LastName:   normString(last),
		Email:      normString(email),
	}

	corp, err := r.Corporation(ctx, corpNum)
	if err != nil {
		return BaseRow{}, err
	}
	b.Corporation = corp
	return b, nil
}

// LegalName returns the legal name in effect at a point, or "" if none.
func (r *Reader) LegalName(ctx context.Context, corpNum string, at AsOf) (string, error) {
	active, args := at.active()
	args = append([]any{corpNum}, args...)
	for _, t := range legalNameTypes {
		args = append(args, t)
	}
	var name sql.NullString
	err := r.queryRow(ctx, `
		SELECT corp_nme
		FROM corp_name
		WHERE corp_num = ? AND `+active+`
		AND corp_name_typ_cd IN (`+store.Placeholders(len(legalNameTypes))+`)
		ORDER BY start_event_id DESC, corp_name_seq_num DESC
		LIMIT 1
	`, args...).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query legal name: %w", err)
	}
	return normString(name), nil
}

// Names returns the non-legal names (aliases, translations) in effect at a
// point.
func (r *Reader) Names(ctx context.Context, corpNum string, at AsOf) ([]NameRow, error) {
	active, args := at.active()
	args = append([]any{corpNum}, args...)
	for _, t := range legalNameTypes {
		args = append(args, t)
	}
	rows, err := r.query(ctx, `
		SELECT corp_name_typ_cd, corp_name_seq_num, start_event_id, end_event_id, corp_nme
		FROM corp_name
		WHERE corp_num = ? AND `+active+`
		AND corp_name_typ_cd NOT IN (`+store.Placeholders(len(legalNameTypes))+`)
		ORDER BY corp_name_typ_cd, corp_name_seq_num
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	out := []NameRow{}
	for rows.Next() {
		var n NameRow
		var end sql.NullInt64
		var name sql.NullString
		if err := rows.Scan(&n.Type, &n.Seq, &n.StartEventID, &end, &name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		n.EndEventID = normInt(end)
		n.Name = normString(name)
		if n.Name == "" {
			continue
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return out, nil
}

const partyColumns = `corp_party_id, party_typ_cd, start_event_id, end_event_id, prev_party_id,
	appointment_dt, cessation_dt, first_nme, middle_nme, last_nme, business_nme,
	bus_company_num, email_address, mailing_addr_id, delivery_addr_id`

// Parties returns the party rows in effect at a point, ordered by id.
func (r *Reader) Parties(ctx context.Context, corpNum string, at AsOf) ([]PartyRow, error) {
	active, args := at.active()
	return r.parties(ctx, `
		SELECT `+partyColumns+`
		FROM corp_party
		WHERE corp_num = ? AND `+active+`
		ORDER BY corp_party_id
	`, append([]any{corpNum}, args...)...)
}

// PartiesCeasedAt returns the party rows closed by any of eventIDs that were
// started by an earlier event, ordered by id. Back-references a correction
// inserts against an earlier event are not cessations and are left out.
func (r *Reader) PartiesCeasedAt(ctx context.Context, corpNum string, eventIDs ...int64) ([]PartyRow, error) {
	if len(eventIDs) == 0 {
		return []PartyRow{}, nil
	}
	args := []any{corpNum}
	for _, id := range eventIDs {
		args = append(args, id)
	}
	return r.parties(ctx, `
		SELECT `+partyColumns+`
		FROM corp_party
		WHERE corp_num = ? AND end_event_id IN (`+store.Placeholders(len(eventIDs))+`)
		AND start_event_id < end_event_id
		ORDER BY corp_party_id
	`, args...)
}

func (r *Reader) parties(ctx context.Context, q string, args ...any) ([]PartyRow, error) {
	rows, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query parties: %w", err)
	}
	defer rows.Close()

	out := []PartyRow{}
	for rows.Next() {
		var p PartyRow
		var end, prev, mailing, delivery sql.NullInt64
		var appointed, ceased sql.NullTime
		var first, middle, last, business, company, email sql.NullString
		if err := rows.Scan(
			&p.ID, &p.Role, &p.StartEventID, &end, &prev,
			&appointed, &ceased, &first, &middle, &last, &business,
			&company, &email, &mailing, &delivery,
		); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		p.Role = strings.TrimSpace(p.Role)
		p.EndEventID = normInt(end)
		p.PrevPartyID = normInt(prev)
		p.AppointmentDate = normTime(appointed)
		p.CessationDate = normTime(ceased)
		p.FirstName = normString(first)
		p.MiddleName = normString(middle)
		p.LastName = normString(last)
		p.BusinessName = normString(business)
		p.CompanyNumber = normString(company)
		p.Email = normString(email)
		p.MailingAddrID = normInt(mailing)
		p.DeliveryAddrID = normInt(delivery)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parties: %w", err)
	}
	return out, nil
}

// Offices returns the office rows in effect at a point, ordered by type.
func (r *Reader) Offices(ctx context.Context, corpNum string, at AsOf) ([]OfficeRow, error) {
	active, args := at.active()
	rows, err := r.query(ctx, `
		SELECT office_typ_cd, start_event_id, end_event_id, mailing_addr_id, delivery_addr_id
		FROM office
		WHERE corp_num = ? AND `+active+`
		ORDER BY office_typ_cd, start_event_id
	`, append([]any{corpNum}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query offices: %w", err)
	}
	defer rows.Close()

	out := []OfficeRow{}
	for rows.Next() {
		var o OfficeRow
		var end, mailing, delivery sql.NullInt64
		if err := rows.Scan(&o.Type, &o.StartEventID, &end, &mailing, &delivery); err != nil {
			return nil, fmt.Errorf("scan office: %w", err)
		}
		o.Type = strings.TrimSpace(o.Type)
		o.EndEventID = normInt(end)
		o.MailingAddrID = normInt(mailing)
		o.DeliveryAddrID = normInt(delivery)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offices: %w", err)
	}
	return out, nil
}

// Addresses returns the address rows with the given ids keyed by id.
// Unknown ids are absent from the map.
func (r *Reader) Addresses(ctx context.Context, ids []int64) (map[int64]AddressRow, error) {
	out := make(map[int64]AddressRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.query(ctx, `
		SELECT addr_id, address_format_type, addr_line_1, addr_line_2, addr_line_3,
		       city, province, country_typ_cd, postal_cd,
		       unit_no, unit_type, civic_no, civic_no_suffix, street_name, street_type, street_direction,
		       lock_box_no, installation_type, installation_name, installation_qualifier,
		       route_service_type, route_service_no, delivery_instructions
		FROM address
		WHERE addr_id IN (`+store.Placeholders(len(ids))+`)
		ORDER BY addr_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a AddressRow
		var cols [22]sql.NullString
		dest := []any{&a.ID}
		for i := range cols {
			dest = append(dest, &cols[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		a.Format = normString(cols[0])
		a.Line1 = normString(cols[1])
		a.Line2 = normString(cols[2])
		a.Line3 = normString(cols[3])
		a.City = normString(cols[4])
		a.Province = normString(cols[5])
		a.Country = normString(cols[6])
		a.PostalCode = normString(cols[7])
		a.UnitNo = normString(cols[8])
		a.UnitType = normString(cols[9])
		a.CivicNo = normString(cols[10])
		a.CivicNoSuffix = normString(cols[11])
		a.StreetName = normString(cols[12])
		a.StreetType = normString(cols[13])
		a.StreetDirection = normString(cols[14])
		a.LockBoxNo = normString(cols[15])
		a.InstallationType = normString(cols[16])
		a.InstallationName = normString(cols[17])
		a.InstallationQualifier = normString(cols[18])
		a.RouteServiceType = normString(cols[19])
		a.RouteServiceNo = normString(cols[20])
		a.DeliveryInstructions = normString(cols[21])
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return out, nil
}

// ShareStructure returns the share classes and series of the share structure
// in effect at a point. Both are empty when the corporation has none.
func (r *Reader) ShareStructure(ctx context.Context, corpNum string, at AsOf) ([]ShareClassRow, []ShareSeriesRow, error) {
	active, args := at.active()
	var start int64
	err := r.queryRow(ctx, `
		SELECT start_event_id
		FROM share_struct
		WHERE corp_num = ? AND `+active+`
		ORDER BY start_event_id DESC
		LIMIT 1
	`, append([]any{corpNum}, args...)...).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return []ShareClassRow{}, []ShareSeriesRow{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query share structure: %w", err)
	}

	classes, err := r.shareClasses(ctx, corpNum, start)
	if err != nil {
		return nil, nil, err
	}
	series, err := r.shareSeries(ctx, corpNum, start)
	if err != nil {
		return nil, nil, err
	}
	return classes, series, nil
}

func (r *Reader) shareClasses(ctx context.Context, corpNum string, start int64) ([]ShareClassRow, error) {
	rows, err := r.query(ctx, `
		SELECT share_class_id, start_event_id, class_nme, currency_typ_cd, other_currency,
		       max_share_ind, share_quantity, spec_rights_ind, par_value_ind, par_value_amt
		FROM share_struct_cls
		WHERE corp_num = ? AND start_event_id = ?
		ORDER BY share_class_id
	`, corpNum, start)
	if err != nil {
		return nil, fmt.Errorf("query share classes: %w", err)
	}
	defer rows.Close()

	out := []ShareClassRow{}
	for rows.Next() {
		var c ShareClassRow
		var name, currency, other, maxInd, qty, rights, parInd, par sql.NullString
		if err := rows.Scan(&c.ClassID, &c.StartEventID, &name, &currency, &other,
			&maxInd, &qty, &rights, &parInd, &par); err != nil {
			return nil, fmt.Errorf("scan share class: %w", err)
		}
		c.Name = normString(name)
		c.Currency = normString(currency)
		c.OtherCurrency = normString(other)
		c.MaxShareFlag = normFlag(maxInd)
		c.MaxShares = normString(qty)
		c.SpecialRights = normFlag(rights)
		c.ParValueFlag = normFlag(parInd)
		c.ParValue = normString(par)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share classes: %w", err)
	}
	return out, nil
}

func (r *Reader) shareSeries(ctx context.Context, corpNum string, start int64) ([]ShareSeriesRow, error) {
	rows, err := r.query(ctx, `
		SELECT share_class_id, series_id, start_event_id, series_nme, max_share_ind, share_quantity, spec_right_ind
		FROM share_series
		WHERE corp_num = ? AND start_event_id = ?
		ORDER BY share_class_id, series_id
	`, corpNum, start)
	if err != nil {
		return nil, fmt.Errorf("query share series: %w", err)
	}
	defer rows.Close()

	out := []ShareSeriesRow{}
	for rows.Next() {
		var s ShareSeriesRow
		var name, maxInd, qty, rights sql.NullString
		if err := rows.Scan(&s.ClassID, &s.SeriesID, &s.StartEventID, &name, &maxInd, &qty, &rights); err != nil {
			return nil, fmt.Errorf("scan share series: %w", err)
		}
		s.Name = normString(name)
		s.MaxShareFlag = normFlag(maxInd)
		s.MaxShares = normString(qty)
		s.SpecialRights = normFlag(rights)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share series: %w", err)
	}
	return out, nil
}

// Jurisdiction returns the latest jurisdiction row started at or before a
// point, or nil.
func (r *Reader) Jurisdiction(ctx context.Context, corpNum string, at AsOf) (*JurisdictionRow, error) {
	started, args := at.started()
	var j JurisdictionRow
	var can, xpro, other, homeNum, bcNum, homeName sql.NullString
	var recognized sql.NullTime
	err := r.queryRow(ctx, `
		SELECT start_event_id, can_jur_typ_cd, xpro_typ_cd, othr_juris_desc, home_recogn_dt,
		       home_juris_num, bc_xpro_num, home_company_nme
		FROM jurisdiction
		WHERE corp_num = ? AND `+started+`
		ORDER BY start_event_id DESC
		LIMIT 1
	`, append([]any{corpNum}, args...)...).Scan(&j.StartEventID, &can, &xpro, &other, &recognized, &homeNum, &bcNum, &homeName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query jurisdiction: %w", err)
	}
	j.CanadianCode = normString(can)
	j.ExtraProvincial = normString(xpro)
	j.OtherDescription = normString(other)
	j.RecognitionDate = normTime(recognized)
	j.HomeNumber = normString(homeNum)
	j.BCExtraProNumber = normString(bcNum)
	j.HomeCompanyName = normString(homeName)
	return &j, nil
}

// State returns the corporation state code in effect at a point, or "".
func (r *Reader) State(ctx context.Context, corpNum string, at AsOf) (string, error) {
	active, args := at.active()
	var state string
	err := r.queryRow(ctx, `
		SELECT state_typ_cd
		FROM corp_state
		WHERE corp_num = ? AND `+active+`
		ORDER BY start_event_id DESC
		LIMIT 1
	`, append([]any{corpNum}, args...)...).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query state: %w", err)
	}
	return strings.TrimSpace(state), nil
}

// LedgerText returns the non-blank notations attached to an event.
func (r *Reader) LedgerText(ctx context.Context, eventID int64) ([]string, error) {
	rows, err := r.query(ctx, "SELECT notation FROM ledger_text WHERE event_id = ?", eventID)
	if err != nil {
		return nil, fmt.Errorf("query ledger text: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var n sql.NullString
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan ledger text: %w", err)
		}
		if s := normString(n); s != "" {
			out = append(out, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger text: %w", err)
	}
	return out, nil
}

// Comments returns the staff comments recorded up to and including until.
func (r *Reader) Comments(ctx context.Context, corpNum string, until time.Time) ([]CommentRow, error) {
	rows, err := r.query(ctx, `
		SELECT comment_dts, comments, first_nme, last_nme
		FROM corp_comments
		WHERE corp_num = ? AND comment_dts <= ?
		ORDER BY comment_dts
	`, corpNum, until)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	out := []CommentRow{}
	for rows.Next() {
		var c CommentRow
		var text, first, last sql.NullString
		if err := rows.Scan(&c.Timestamp, &text, &first, &last); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.Comment = normString(text)
		c.FirstName = normString(first)
		c.LastName = normString(last)
		if c.Comment == "" {
			continue
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}

// EventEffectiveDate returns the filing effective date of an event, falling
// back to the event timestamp. KindNotFound if the event does not exist.
func (r *Reader) EventEffectiveDate(ctx context.Context, eventID int64) (time.Time, error) {
	var ts time.Time
	var effective sql.NullTime
	err := r.queryRow(ctx, `
		SELECT e.event_timestmp, f.effective_dt
		FROM event e
		LEFT JOIN filing f ON f.event_id = e.event_id
		WHERE e.event_id = ?
	`, eventID).Scan(&ts, &effective)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, errs.New(errs.KindNotFound, "event %d not found", eventID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query event effective date: %w", err)
	}
	if t := normTime(effective); t != nil {
		return *t, nil
	}
	return ts, nil
}

// versionedTables are the ledger tables scanned for correction touches.
var versionedTables = []string{"corp_party", "office", "corp_name", "corp_state", "share_struct"}

// CorrectionTouches returns the versioned rows of a corporation that start or
// end at any of the given events.
func (r *Reader) CorrectionTouches(ctx context.Context, corpNum string, eventIDs []int64) ([]Touch, error) {
	if len(eventIDs) == 0 {
		return []Touch{}, nil
	}
	ph := store.Placeholders(len(eventIDs))

	parts := make([]string, 0, len(versionedTables))
	var args []any
	for _, table := range versionedTables {
		parts = append(parts, fmt.Sprintf(
			"SELECT '%s' AS entity, start_event_id, end_event_id FROM %s WHERE corp_num = ? AND (start_event_id IN (%s) OR end_event_id IN (%s))",
			table, table, ph, ph))
		args = append(args, corpNum)
		for range 2 {
			for _, id := range eventIDs {
				args = append(args, id)
			}
		}
	}
	q := strings.Join(parts, " UNION ALL ") + " ORDER BY entity, start_event_id"

	rows, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query correction touches: %w", err)
	}
	defer rows.Close()

	out := []Touch{}
	for rows.Next() {
		var t Touch
		var end sql.NullInt64
		if err := rows.Scan(&t.Entity, &t.StartEventID, &end); err != nil {
			return nil, fmt.Errorf("scan correction touch: %w", err)
		}
		t.EndEventID = normInt(end)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate correction touches: %w", err)
	}
	return out, nil
}
