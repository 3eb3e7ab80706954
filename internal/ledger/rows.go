package ledger

import (
	"database/sql"
	"strings"
	"time"
)

// CorpSummary aggregates a corporation's events for batch selection.
type CorpSummary struct {
	CorpNum     string
	CorpType    string
	EventCount  int
	LastEventID int64
}

// Filter narrows corporation selection.
type Filter struct {
	CorpTypes []string
	CorpNums  []string
}

// Corporation is the static corporation row.
type Corporation struct {
	CorpNum         string
	CorpType        string
	RecognitionDate *time.Time
	BN9             string
	BN15            string
	AdminEmail      string
	SendAR          bool
	LastARFiledDate *time.Time
}

// Event is one ledger event with its optional filing sub-record.
type Event struct {
	ID               int64
	CorpNum          string
	TypeCode         string
	Timestamp        time.Time
	TriggerTimestamp *time.Time
	FilingTypeCode   string
	EffectiveDate    *time.Time
}

// Code is the legacy code used for classification: the filing-type code
// when the event carries a filing, otherwise the event-type code.
func (e Event) Code() string {
	if e.FilingTypeCode != "" {
		return e.FilingTypeCode
	}
	return e.TypeCode
}

// FilingUser is the person who submitted a legacy filing.
type FilingUser struct {
	UserID     string
	FirstName  string
	MiddleName string
	LastName   string
	Email      string
}

// FullName joins the non-empty name parts.
func (u FilingUser) FullName() string {
	return joinNonEmpty(" ", u.FirstName, u.MiddleName, u.LastName)
}

// BaseRow is the aggregate row an event's filing is built around.
type BaseRow struct {
	Event         Event
	Corporation   Corporation
	PeriodEndDate *time.Time
	AGMDate       *time.Time
	ODSType       string
	NRNumber      string
	Arrangement   bool
	User          FilingUser
	HasFilingRow  bool
}

// PaperOnly reports whether the legacy filing was submitted on paper.
func (b BaseRow) PaperOnly() bool {
	return b.ODSType == "P"
}

// NameRow is a corp_name row.
type NameRow struct {
	Type         string
	Seq          int
	StartEventID int64
	EndEventID   *int64
	Name         string
}

// PartyRow is a corp_party row.
type PartyRow struct {
	ID              int64
	Role            string
	StartEventID    int64
	EndEventID      *int64
	PrevPartyID     *int64
	AppointmentDate *time.Time
	CessationDate   *time.Time
	FirstName       string
	MiddleName      string
	LastName        string
	BusinessName    string
	CompanyNumber   string
	Email           string
	MailingAddrID   *int64
	DeliveryAddrID  *int64
}

// IsOrganization reports whether the party is a business rather than a person.
func (p PartyRow) IsOrganization() bool {
	return p.BusinessName != "" && p.FirstName == "" && p.LastName == ""
}

// OfficeRow is an office row.
type OfficeRow struct {
	Type           string
	StartEventID   int64
	EndEventID     *int64
	MailingAddrID  *int64
	DeliveryAddrID *int64
}

// Address format variants.
const (
	FormatBasic    = "BAS"
	FormatAdvanced = "ADV"
	FormatForeign  = "FOR"
)

// AddressRow is an address row.
type AddressRow struct {
	ID                    int64
	Format                string
	Line1                 string
	Line2                 string
	Line3                 string
	City                  string
	Province              string
	Country               string
	PostalCode            string
	UnitNo                string
	UnitType              string
	CivicNo               string
	CivicNoSuffix         string
	StreetName            string
	StreetType            string
	StreetDirection       string
	LockBoxNo             string
	InstallationType      string
	InstallationName      string
	InstallationQualifier string
	RouteServiceType      string
	RouteServiceNo        string
	DeliveryInstructions  string
}

// ShareClassRow is a share_struct_cls row.
type ShareClassRow struct {
	ClassID       int64
	StartEventID  int64
	Name          string
	Currency      string
	OtherCurrency string
	MaxShareFlag  bool
	MaxShares     string
	SpecialRights bool
	ParValueFlag  bool
	ParValue      string
}

// ShareSeriesRow is a share_series row.
type ShareSeriesRow struct {
	ClassID       int64
	SeriesID      int64
	StartEventID  int64
	Name          string
	MaxShareFlag  bool
	MaxShares     string
	SpecialRights bool
}

// JurisdictionRow is the home jurisdiction of a continued-in corporation.
type JurisdictionRow struct {
	StartEventID     int64
	CanadianCode     string
	ExtraProvincial  string
	OtherDescription string
	RecognitionDate  *time.Time
	HomeNumber       string
	BCExtraProNumber string
	HomeCompanyName  string
}

// CommentRow is a corp_comments row.
type CommentRow struct {
	Timestamp time.Time
	Comment   string
	FirstName string
	LastName  string
}

// Touch is one versioned-entity row that starts or ends at an event of
// interest. Correction detection works only from these.
type Touch struct {
	Entity       string
	StartEventID int64
	EndEventID   *int64
}

// normString maps NULL, empty and whitespace-only strings to "".
func normString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return strings.TrimSpace(s.String)
}

// normTime maps NULL to nil.
func normTime(t sql.NullTime) *time.Time {
	if !t.Valid || t.Time.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// normInt maps NULL to nil.
func normInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// normFlag maps legacy Y/N indicators; anything but Y is false.
func normFlag(s sql.NullString) bool {
	return strings.EqualFold(normString(s), "Y")
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
