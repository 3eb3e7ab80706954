package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bcgov/colin-migrate/internal/ledger"
)

// Ledger is a legacy ledger fixture, loadable from scenario YAML.
//
// Dates are strings: "2015-01-01" or RFC 3339. Empty means NULL.
type Ledger struct {
	Corporations    []Corporation  `yaml:"corporations"`
	Events          []Event        `yaml:"events"`
	Names           []Name         `yaml:"names"`
	States          []State        `yaml:"states"`
	Parties         []Party        `yaml:"parties"`
	Offices         []Office       `yaml:"offices"`
	Addresses       []Address      `yaml:"addresses"`
	ShareStructures []ShareStruct  `yaml:"share_structures"`
	ShareClasses    []ShareClass   `yaml:"share_classes"`
	ShareSeries     []ShareSeries  `yaml:"share_series"`
	Jurisdictions   []Jurisdiction `yaml:"jurisdictions"`
	LedgerText      []Notation     `yaml:"ledger_text"`
	Comments        []Comment      `yaml:"comments"`
}

type Corporation struct {
	CorpNum    string `yaml:"corp_num"`
	Type       string `yaml:"type"`
	Recognized string `yaml:"recognized"`
	BN9        string `yaml:"bn_9"`
	BN15       string `yaml:"bn_15"`
	AdminEmail string `yaml:"admin_email"`
	SendAR     string `yaml:"send_ar"`
	LastAR     string `yaml:"last_ar"`
}

type Event struct {
	ID        int64   `yaml:"id"`
	Corp      string  `yaml:"corp"`
	Type      string  `yaml:"type"`
	Timestamp string  `yaml:"timestamp"`
	Trigger   string  `yaml:"trigger"`
	Filing    *Filing `yaml:"filing"`
}

type Filing struct {
	Type        string `yaml:"type"`
	Effective   string `yaml:"effective"`
	PeriodEnd   string `yaml:"period_end"`
	AGM         string `yaml:"agm"`
	ODS         string `yaml:"ods"`
	NRNumber    string `yaml:"nr_num"`
	Arrangement string `yaml:"arrangement"`
	User        *User  `yaml:"user"`
}

type User struct {
	ID     string `yaml:"id"`
	First  string `yaml:"first"`
	Middle string `yaml:"middle"`
	Last   string `yaml:"last"`
	Email  string `yaml:"email"`
}

type Name struct {
	Corp  string `yaml:"corp"`
	Type  string `yaml:"type"`
	Seq   int    `yaml:"seq"`
	Start int64  `yaml:"start"`
	End   *int64 `yaml:"end"`
	Name  string `yaml:"name"`
}

type State struct {
	Corp  string `yaml:"corp"`
	Start int64  `yaml:"start"`
	End   *int64 `yaml:"end"`
	State string `yaml:"state"`
}

type Party struct {
	ID        int64  `yaml:"id"`
	Corp      string `yaml:"corp"`
	Role      string `yaml:"role"`
	Start     int64  `yaml:"start"`
	End       *int64 `yaml:"end"`
	Prev      *int64 `yaml:"prev"`
	Appointed string `yaml:"appointed"`
	Ceased    string `yaml:"ceased"`
	First     string `yaml:"first"`
	Middle    string `yaml:"middle"`
	Last      string `yaml:"last"`
	Business  string `yaml:"business"`
	CompanyNo string `yaml:"company_num"`
	Email     string `yaml:"email"`
	Mailing   *int64 `yaml:"mailing"`
	Delivery  *int64 `yaml:"delivery"`
}

type Office struct {
	Corp     string `yaml:"corp"`
	Type     string `yaml:"type"`
	Start    int64  `yaml:"start"`
	End      *int64 `yaml:"end"`
	Mailing  *int64 `yaml:"mailing"`
	Delivery *int64 `yaml:"delivery"`
}

type Address struct {
	ID                    int64  `yaml:"id"`
	Format                string `yaml:"format"`
	Line1                 string `yaml:"line1"`
	Line2                 string `yaml:"line2"`
	Line3                 string `yaml:"line3"`
	City                  string `yaml:"city"`
	Province              string `yaml:"province"`
	Country               string `yaml:"country"`
	PostalCode            string `yaml:"postal_code"`
	UnitNo                string `yaml:"unit_no"`
	UnitType              string `yaml:"unit_type"`
	CivicNo               string `yaml:"civic_no"`
	CivicNoSuffix         string `yaml:"civic_no_suffix"`
	StreetName            string `yaml:"street_name"`
	StreetType            string `yaml:"street_type"`
	StreetDirection       string `yaml:"street_direction"`
	LockBoxNo             string `yaml:"lock_box_no"`
	InstallationType      string `yaml:"installation_type"`
	InstallationName      string `yaml:"installation_name"`
	InstallationQualifier string `yaml:"installation_qualifier"`
	RouteServiceType      string `yaml:"route_service_type"`
	RouteServiceNo        string `yaml:"route_service_no"`
	DeliveryInstructions  string `yaml:"delivery_instructions"`
}

type ShareStruct struct {
	Corp  string `yaml:"corp"`
	Start int64  `yaml:"start"`
	End   *int64 `yaml:"end"`
}

type ShareClass struct {
	Corp          string `yaml:"corp"`
	Start         int64  `yaml:"start"`
	ID            int64  `yaml:"id"`
	Name          string `yaml:"name"`
	Currency      string `yaml:"currency"`
	OtherCurrency string `yaml:"other_currency"`
	MaxShareInd   string `yaml:"max_share_ind"`
	Quantity      string `yaml:"quantity"`
	SpecRightsInd string `yaml:"spec_rights_ind"`
	ParValueInd   string `yaml:"par_value_ind"`
	ParValue      string `yaml:"par_value"`
}

type ShareSeries struct {
	Corp          string `yaml:"corp"`
	Start         int64  `yaml:"start"`
	ClassID       int64  `yaml:"class_id"`
	ID            int64  `yaml:"id"`
	Name          string `yaml:"name"`
	MaxShareInd   string `yaml:"max_share_ind"`
	Quantity      string `yaml:"quantity"`
	SpecRightsInd string `yaml:"spec_rights_ind"`
}

type Jurisdiction struct {
	Corp             string `yaml:"corp"`
	Start            int64  `yaml:"start"`
	CanadianCode     string `yaml:"can_jur_typ_cd"`
	ExtraProvincial  string `yaml:"xpro_typ_cd"`
	OtherDescription string `yaml:"othr_juris_desc"`
	Recognized       string `yaml:"home_recogn_dt"`
	HomeNumber       string `yaml:"home_juris_num"`
	BCExtraProNumber string `yaml:"bc_xpro_num"`
	HomeCompanyName  string `yaml:"home_company_nme"`
}

type Notation struct {
	EventID  int64  `yaml:"event_id"`
	Notation string `yaml:"notation"`
}

type Comment struct {
	Corp      string `yaml:"corp"`
	Timestamp string `yaml:"timestamp"`
	Comment   string `yaml:"comment"`
	First     string `yaml:"first"`
	Last      string `yaml:"last"`
}

// Int returns a pointer to v, for optional fixture columns.
func Int(v int64) *int64 {
	return &v
}

// OpenLedger creates a SQLite ledger at path, loads the fixture and returns
// the open connection.
func OpenLedger(ctx context.Context, path string, l Ledger) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := ledger.CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := Seed(ctx, db, l); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Seed inserts every fixture row in one transaction. SQLite only.
func Seed(ctx context.Context, db *sql.DB, l Ledger) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed ledger: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	s := &seeder{ctx: ctx, tx: tx}
	for _, c := range l.Corporations {
		s.exec(`INSERT INTO corporation (corp_num, corp_type_cd, recognition_dts, bn_9, bn_15, admin_email, send_ar_ind, last_ar_filed_dt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.CorpNum, c.Type, s.date(c.Recognized), null(c.BN9), null(c.BN15), null(c.AdminEmail), null(c.SendAR), s.date(c.LastAR))
	}
	for _, e := range l.Events {
		s.exec(`INSERT INTO event (event_id, corp_num, event_type_cd, event_timestmp, trigger_dts) VALUES (?, ?, ?, ?, ?)`,
			e.ID, e.Corp, e.Type, s.date(e.Timestamp), s.date(e.Trigger))
		if f := e.Filing; f != nil {
			s.exec(`INSERT INTO filing (event_id, filing_type_cd, effective_dt, period_end_dt, agm_date, ods_type_cd, nr_num, arrangement_ind)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, f.Type, s.date(f.Effective), s.date(f.PeriodEnd), s.date(f.AGM), null(f.ODS), null(f.NRNumber), null(f.Arrangement))
			if u := f.User; u != nil {
				s.exec(`INSERT INTO filing_user (event_id, user_id, first_nme, middle_nme, last_nme, email_addr) VALUES (?, ?, ?, ?, ?, ?)`,
					e.ID, null(u.ID), null(u.First), null(u.Middle), null(u.Last), null(u.Email))
			}
		}
	}
	for _, n := range l.Names {
		s.exec(`INSERT INTO corp_name (corp_num, corp_name_typ_cd, corp_name_seq_num, start_event_id, end_event_id, corp_nme)
			VALUES (?, ?, ?, ?, ?, ?)`, n.Corp, n.Type, n.Seq, n.Start, n.End, n.Name)
	}
	for _, st := range l.States {
		s.exec(`INSERT INTO corp_state (corp_num, start_event_id, end_event_id, state_typ_cd) VALUES (?, ?, ?, ?)`,
			st.Corp, st.Start, st.End, st.State)
	}
	for _, p := range l.Parties {
		s.exec(`INSERT INTO corp_party (corp_party_id, corp_num, party_typ_cd, start_event_id, end_event_id, prev_party_id,
				appointment_dt, cessation_dt, first_nme, middle_nme, last_nme, business_nme, bus_company_num,
				email_address, mailing_addr_id, delivery_addr_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Corp, p.Role, p.Start, p.End, p.Prev, s.date(p.Appointed), s.date(p.Ceased),
			null(p.First), null(p.Middle), null(p.Last), null(p.Business), null(p.CompanyNo), null(p.Email), p.Mailing, p.Delivery)
	}
	for _, o := range l.Offices {
		s.exec(`INSERT INTO office (corp_num, office_typ_cd, start_event_id, end_event_id, mailing_addr_id, delivery_addr_id)
			VALUES (?, ?, ?, ?, ?, ?)`, o.Corp, o.Type, o.Start, o.End, o.Mailing, o.Delivery)
	}
	for _, a := range l.Addresses {
		s.exec(`INSERT INTO address (addr_id, address_format_type, addr_line_1, addr_line_2, addr_line_3, city, province,
				country_typ_cd, postal_cd, unit_no, unit_type, civic_no, civic_no_suffix, street_name, street_type,
				street_direction, lock_box_no, installation_type, installation_name, installation_qualifier,
				route_service_type, route_service_no, delivery_instructions)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, null(a.Format), null(a.Line1), null(a.Line2), null(a.Line3), null(a.City), null(a.Province),
			null(a.Country), null(a.PostalCode), null(a.UnitNo), null(a.UnitType), null(a.CivicNo), null(a.CivicNoSuffix),
			null(a.StreetName), null(a.StreetType), null(a.StreetDirection), null(a.LockBoxNo), null(a.InstallationType),
			null(a.InstallationName), null(a.InstallationQualifier), null(a.RouteServiceType), null(a.RouteServiceNo),
			null(a.DeliveryInstructions))
	}
	for _, ss := range l.ShareStructures {
		s.exec(`INSERT INTO share_struct (corp_num, start_event_id, end_event_id) VALUES (?, ?, ?)`, ss.Corp, ss.Start, ss.End)
	}
	for _, c := range l.ShareClasses {
		s.exec(`INSERT INTO share_struct_cls (corp_num, start_event_id, share_class_id, class_nme, currency_typ_cd, max_share_ind,
				share_quantity, spec_rights_ind, par_value_ind, par_value_amt, other_currency)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Corp, c.Start, c.ID, null(c.Name), null(c.Currency), null(c.MaxShareInd), null(c.Quantity),
			null(c.SpecRightsInd), null(c.ParValueInd), null(c.ParValue), null(c.OtherCurrency))
	}
	for _, sr := range l.ShareSeries {
		s.exec(`INSERT INTO share_series (corp_num, start_event_id, share_class_id, series_id, series_nme, max_share_ind,
				share_quantity, spec_right_ind)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sr.Corp, sr.Start, sr.ClassID, sr.ID, null(sr.Name), null(sr.MaxShareInd), null(sr.Quantity), null(sr.SpecRightsInd))
	}
	for _, j := range l.Jurisdictions {
		s.exec(`INSERT INTO jurisdiction (corp_num, start_event_id, can_jur_typ_cd, xpro_typ_cd, othr_juris_desc, home_recogn_dt,
				home_juris_num, bc_xpro_num, home_company_nme)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.Corp, j.Start, null(j.CanadianCode), null(j.ExtraProvincial), null(j.OtherDescription), s.date(j.Recognized),
			null(j.HomeNumber), null(j.BCExtraProNumber), null(j.HomeCompanyName))
	}
	for _, n := range l.LedgerText {
		s.exec(`INSERT INTO ledger_text (event_id, notation) VALUES (?, ?)`, n.EventID, n.Notation)
	}
	for _, c := range l.Comments {
		s.exec(`INSERT INTO corp_comments (corp_num, comment_dts, comments, first_nme, last_nme) VALUES (?, ?, ?, ?, ?)`,
			c.Corp, s.date(c.Timestamp), null(c.Comment), null(c.First), null(c.Last))
	}

	if s.err != nil {
		return s.err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed ledger: commit: %w", err)
	}
	return nil
}

// seeder keeps the first error so Seed reads as a flat list of inserts.
type seeder struct {
	ctx context.Context
	tx  *sql.Tx
	err error
}

func (s *seeder) exec(q string, args ...any) {
	if s.err != nil {
		return
	}
	if _, err := s.tx.ExecContext(s.ctx, q, args...); err != nil {
		s.err = fmt.Errorf("seed ledger: %w", err)
	}
}

func (s *seeder) date(v string) any {
	if v == "" || s.err != nil {
		return nil
	}
	t, err := ParseDate(v)
	if err != nil {
		s.err = err
		return nil
	}
	return t
}

// ParseDate parses "2006-01-02" or RFC 3339 into UTC.
func ParseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", v, err)
	}
	return t.UTC(), nil
}

// MustDate is ParseDate for literals in tests.
func MustDate(v string) time.Time {
	t, err := ParseDate(v)
	if err != nil {
		panic(err)
	}
	return t
}

func null(v string) any {
	if v == "" {
		return nil
	}
	return v
}
