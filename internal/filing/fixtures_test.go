package filing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bcgov/colin-migrate/internal/assembler"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/policy"
)

func at(y int, m time.Month, d, hh int) time.Time {
	return time.Date(y, m, d, hh, 0, 0, 0, time.UTC)
}

func tp(t time.Time) *time.Time { return &t }

func ip(v int64) *int64 { return &v }

func rule(t *testing.T, code string) policy.Rule {
	t.Helper()
	table, err := policy.Default()
	require.NoError(t, err)
	r, err := table.Lookup(code)
	require.NoError(t, err)
	return r
}

var (
	orchardRd = ledger.AddressRow{ID: 501, Format: ledger.FormatBasic, CivicNo: "12", StreetName: "Orchard", StreetType: "Rd",
		City: "Kelowna", Province: "BC", Country: "CA", PostalCode: "V1Y 1A1"}
	ruralRoute = ledger.AddressRow{ID: 601, Format: ledger.FormatAdvanced, LockBoxNo: "345", RouteServiceType: "RR", RouteServiceNo: "2",
		InstallationType: "STN", InstallationName: "Main", City: "Kelowna", Province: "BC", Country: "CA", PostalCode: "V1Y 2B2"}
	harveyAve = ledger.AddressRow{ID: 602, Format: ledger.FormatBasic, UnitNo: "4", CivicNo: "880", StreetName: "Harvey", StreetType: "Ave",
		StreetDirection: "E", City: "Kelowna", Province: "BC", Country: "CA", PostalCode: "V1Y 3C3", DeliveryInstructions: "Rear door"}
	wharfSt = ledger.AddressRow{ID: 701, Format: ledger.FormatForeign, Line1: "1 Wharf St",
		City: "Victoria", Province: "BC", Country: "CA", PostalCode: "V8W 1T3"}
	dockRd = ledger.AddressRow{ID: 702, Format: ledger.FormatForeign, Line1: "22 Dock Rd", Line2: "Unit 5",
		City: "Sooke", Province: "BC", Country: "CA", PostalCode: "V9Z 0A1"}
)

// annualReportBag is event 140 of CP0001234: an annual report restating
// the director and office established at incorporation (event 100).
func annualReportBag(t *testing.T) *assembler.Bag {
	corp := ledger.Corporation{
		CorpNum: "CP0001234", CorpType: "CP", RecognitionDate: tp(at(2015, 1, 1, 0)),
		BN9: "123456789", BN15: "123456789BC0001", AdminEmail: "admin@growers.example", SendAR: true,
	}
	ev := ledger.Event{
		ID: 140, CorpNum: "CP0001234", TypeCode: "FILE", Timestamp: at(2016, 3, 1, 10),
		FilingTypeCode: "OTANN", EffectiveDate: tp(at(2016, 3, 1, 0)),
	}
	r := rule(t, "OTANN")
	return &assembler.Bag{
		CorpNum:       "CP0001234",
		Event:         ev,
		Rule:          r,
		Class:         r.Class,
		Base:          ledger.BaseRow{Event: ev, Corporation: corp, PeriodEndDate: tp(at(2015, 12, 31, 0)), AGMDate: tp(at(2016, 2, 15, 0)), HasFilingRow: true},
		EffectiveDate: at(2016, 3, 1, 0),
		AsOfEventID:   140,
		LegalName:     "PACIFIC GROWERS CO-OPERATIVE",
		State:         "ACT",
		Parties: []assembler.Party{{
			Row: ledger.PartyRow{
				ID: 1001, Role: assembler.RoleDirector, StartEventID: 100, AppointmentDate: tp(at(2015, 1, 1, 0)),
				FirstName: "Jane", LastName: "Smith", MailingAddrID: ip(501), DeliveryAddrID: ip(501),
			},
			AppointmentDate:  at(2015, 1, 1, 0),
			Carried:          true,
			PrevColinPartyID: ip(1001),
			Mailing:          &orchardRd,
			Delivery:         &orchardRd,
		}},
		Offices: []assembler.Office{{
			Type: assembler.OfficeRegistered, StartEventID: 100, Carried: true,
			Mailing: &ruralRoute, Delivery: &harveyAve,
		}},
		LedgerText: []string{"Annual report received by mail"},
	}
}

// correctedDirectorsBag is event 200 of CP0005678 re-gathered as of its
// correction, event 210, which fixed the spelling of the appointed
// director.
func correctedDirectorsBag(t *testing.T) *assembler.Bag {
	corp := ledger.Corporation{CorpNum: "CP0005678", CorpType: "CP", RecognitionDate: tp(at(2017, 1, 1, 0))}
	ev := ledger.Event{
		ID: 200, CorpNum: "CP0005678", TypeCode: "FILE", Timestamp: at(2017, 5, 1, 9),
		FilingTypeCode: "OTCDR", EffectiveDate: tp(at(2017, 5, 1, 0)),
	}
	r := rule(t, "OTCDR")
	return &assembler.Bag{
		CorpNum:       "CP0005678",
		Event:         ev,
		Rule:          r,
		Class:         r.Class,
		Base:          ledger.BaseRow{Event: ev, Corporation: corp, HasFilingRow: true},
		EffectiveDate: at(2017, 5, 1, 0),
		AsOfEventID:   210,
		LegalName:     "HARBOUR FISHERS CO-OPERATIVE",
		State:         "ACT",
		Parties: []assembler.Party{
			{
				Row:              ledger.PartyRow{ID: 2001, Role: assembler.RoleDirector, StartEventID: 150, AppointmentDate: tp(at(2017, 1, 1, 0)), FirstName: "Ana", LastName: "Lee", DeliveryAddrID: ip(701)},
				AppointmentDate:  at(2017, 1, 1, 0),
				Carried:          true,
				PrevColinPartyID: ip(2001),
				Delivery:         &wharfSt,
			},
			{
				Row:              ledger.PartyRow{ID: 2003, Role: assembler.RoleDirector, StartEventID: 210, PrevPartyID: ip(2002), FirstName: "John", LastName: "Doe", DeliveryAddrID: ip(702)},
				AppointmentDate:  at(2017, 5, 1, 0),
				PrevColinPartyID: ip(2002),
				Delivery:         &dockRd,
			},
		},
		IsCorrectedEventFiling: true,
		CorrectingEventIDs:     []int64{210},
	}
}
