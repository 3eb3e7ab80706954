package testutil

// CarryForwardLedger is an incorporation (event 100) followed by an annual
// report (event 140) that changes no directors and no offices.
func CarryForwardLedger() Ledger {
	const corp = "CP0001234"
	return Ledger{
		Corporations: []Corporation{
			{CorpNum: corp, Type: "CP", Recognized: "2015-01-01", BN9: "123456789", BN15: "123456789BC0001", AdminEmail: "admin@growers.example", SendAR: "Y"},
		},
		Events: []Event{
			{ID: 100, Corp: corp, Type: "FILE", Timestamp: "2015-01-01T09:00:00Z", Filing: &Filing{
				Type: "OTINC", Effective: "2015-01-01T00:00:00Z", ODS: "P",
				User: &User{ID: "staff1", First: "Pat", Last: "Clerk", Email: "pat@registry.example"},
			}},
			{ID: 140, Corp: corp, Type: "FILE", Timestamp: "2016-03-01T10:00:00Z", Filing: &Filing{
				Type: "OTANN", Effective: "2016-03-01T00:00:00Z", PeriodEnd: "2015-12-31", AGM: "2016-02-15",
			}},
		},
		Names: []Name{
			{Corp: corp, Type: "CO", Start: 100, Name: "PACIFIC GROWERS CO-OPERATIVE"},
		},
		States: []State{
			{Corp: corp, Start: 100, State: "ACT"},
		},
		Parties: []Party{
			{ID: 1001, Corp: corp, Role: "DIR", Start: 100, Appointed: "2015-01-01", First: "Jane", Last: "Smith", Mailing: Int(501), Delivery: Int(501)},
		},
		Offices: []Office{
			{Corp: corp, Type: "RG", Start: 100, Mailing: Int(601), Delivery: Int(602)},
		},
		Addresses: []Address{
			{ID: 501, Format: "BAS", CivicNo: "12", StreetName: "Orchard", StreetType: "Rd", City: "Kelowna", Province: "BC", Country: "CA", PostalCode: "V1Y 1A1"},
			{ID: 601, Format: "ADV", LockBoxNo: "345", RouteServiceType: "RR", RouteServiceNo: "2", InstallationType: "STN", InstallationName: "Main", City: "Kelowna", Province: "BC", Country: "CA", PostalCode: "V1Y 2B2"},
			{ID: 602, Format: "BAS", UnitNo: "4", CivicNo: "880", StreetName: "Harvey", StreetType: "Ave", StreetDirection: "E", City: "Kelowna", Province: "BC", Country: "CA", PostalCode: "V1Y 3C3", DeliveryInstructions: "Rear door"},
		},
		LedgerText: []Notation{
			{EventID: 140, Notation: "Annual report received by mail"},
		},
	}
}

// CorrectionLedger is an incorporation (150), a change of directors (200)
// appointing a misspelled director, and a correction (210) that closes the
// misspelled row and inserts the corrected one.
func CorrectionLedger() Ledger {
	const corp = "CP0005678"
	return Ledger{
		Corporations: []Corporation{
			{CorpNum: corp, Type: "CP", Recognized: "2017-01-01"},
		},
		Events: []Event{
			{ID: 150, Corp: corp, Type: "FILE", Timestamp: "2017-01-01T09:00:00Z", Filing: &Filing{Type: "OTINC", Effective: "2017-01-01T00:00:00Z"}},
			{ID: 200, Corp: corp, Type: "FILE", Timestamp: "2017-05-01T09:00:00Z", Filing: &Filing{Type: "OTCDR", Effective: "2017-05-01T00:00:00Z"}},
			{ID: 210, Corp: corp, Type: "FILE", Timestamp: "2017-05-10T09:00:00Z", Filing: &Filing{Type: "CORRC", Effective: "2017-05-10T00:00:00Z"}},
		},
		Names: []Name{
			{Corp: corp, Type: "CO", Start: 150, Name: "HARBOUR FISHERS CO-OPERATIVE"},
		},
		States: []State{
			{Corp: corp, Start: 150, State: "ACT"},
		},
		Parties: []Party{
			{ID: 2001, Corp: corp, Role: "DIR", Start: 150, Appointed: "2017-01-01", First: "Ana", Last: "Lee", Delivery: Int(701)},
			{ID: 2002, Corp: corp, Role: "DIR", Start: 200, End: Int(210), Appointed: "2017-05-01", First: "Jon", Last: "Doe", Delivery: Int(702)},
			{ID: 2003, Corp: corp, Role: "DIR", Start: 210, Prev: Int(2002), First: "John", Last: "Doe", Delivery: Int(702)},
		},
		Offices: []Office{
			{Corp: corp, Type: "RG", Start: 150, Mailing: Int(703), Delivery: Int(703)},
		},
		Addresses: []Address{
			{ID: 701, Format: "FOR", Line1: "1 Wharf St", City: "Victoria", Province: "BC", Country: "CA", PostalCode: "V8W 1T3"},
			{ID: 702, Format: "FOR", Line1: "22 Dock Rd", Line2: "Unit 5", City: "Sooke", Province: "BC", Country: "CA", PostalCode: "V9Z 0A1"},
			{ID: 703, Format: "BAS", CivicNo: "100", StreetName: "Wharf", StreetType: "St", City: "Victoria", Province: "BC", Country: "CA", PostalCode: "V8W 1T3"},
		},
	}
}

// ContinuationLedger is a company continued in from Washington State with a
// share structure whose series exceeds its class maximum.
func ContinuationLedger() Ledger {
	const corp = "C0000777"
	return Ledger{
		Corporations: []Corporation{
			{CorpNum: corp, Type: "C", Recognized: "2019-06-01"},
		},
		Events: []Event{
			{ID: 300, Corp: corp, Type: "FILE", Timestamp: "2019-06-01T12:00:00Z", Filing: &Filing{Type: "CONTI", Effective: "2019-06-01T00:00:00Z"}},
			{ID: 320, Corp: corp, Type: "FILE", Timestamp: "2020-01-15T12:00:00Z", Filing: &Filing{Type: "NOALT", Effective: "2020-01-15T00:00:00Z"}},
			{ID: 330, Corp: corp, Type: "ADMIN", Timestamp: "2020-02-01T12:00:00Z", Filing: &Filing{Type: "XXXXX"}},
		},
		Names: []Name{
			{Corp: corp, Type: "CO", Start: 300, End: Int(320), Name: "CASCADE TIMBER LTD."},
			{Corp: corp, Type: "CO", Start: 320, Name: "CASCADE FOREST PRODUCTS LTD."},
			{Corp: corp, Type: "TR", Seq: 1, Start: 300, Name: "BOIS CASCADE LTEE"},
		},
		States: []State{
			{Corp: corp, Start: 300, State: "ACT"},
		},
		Parties: []Party{
			{ID: 3001, Corp: corp, Role: "DIR", Start: 300, First: "Mara", Last: "Quinn", Delivery: Int(801)},
		},
		Offices: []Office{
			{Corp: corp, Type: "RG", Start: 300, Mailing: Int(801), Delivery: Int(801)},
			{Corp: corp, Type: "RC", Start: 300, Mailing: Int(802), Delivery: Int(802)},
		},
		Addresses: []Address{
			{ID: 801, Format: "BAS", CivicNo: "2500", StreetName: "Granville", StreetType: "St", City: "Vancouver", Province: "BC", Country: "CA", PostalCode: "V6H 3G8"},
			{ID: 802, Format: "FOR", Line1: "Suite 900", Line2: "1055 Georgia St", Line3: "Attn: Records", City: "Vancouver", Province: "BC", Country: "CA", PostalCode: "V6E 3P3"},
		},
		ShareStructures: []ShareStruct{
			{Corp: corp, Start: 300},
		},
		ShareClasses: []ShareClass{
			{Corp: corp, Start: 300, ID: 1, Name: "Common Shares", MaxShareInd: "Y", Quantity: "10000", ParValueInd: "N"},
			{Corp: corp, Start: 300, ID: 2, Name: "Preferred Shares", Currency: "CAD", MaxShareInd: "N", Quantity: "", ParValueInd: "Y", ParValue: "1.50", SpecRightsInd: "Y"},
		},
		ShareSeries: []ShareSeries{
			{Corp: corp, Start: 300, ClassID: 1, ID: 11, Name: "Series A", MaxShareInd: "Y", Quantity: "20000"},
		},
		Jurisdictions: []Jurisdiction{
			{Corp: corp, Start: 300, CanadianCode: "OT", OtherDescription: "US, WA", Recognized: "2001-04-10", HomeNumber: "604-555-123", HomeCompanyName: "Cascade Timber Inc."},
		},
		Comments: []Comment{
			{Corp: corp, Timestamp: "2019-06-02T08:00:00Z", Comment: "Continuation documents verified", First: "Pat", Last: "Clerk"},
			{Corp: corp, Timestamp: "2021-01-01T08:00:00Z", Comment: "Later note"},
		},
	}
}

// IntermediateCorrectionLedger is CorrectionLedger with a change of
// directors (205) between the corrected event (200) and its correction
// (210). Event 205 appoints Zed Park and ceases Bob Ray, a director since
// incorporation.
func IntermediateCorrectionLedger() Ledger {
	const corp = "CP0006001"
	return Ledger{
		Corporations: []Corporation{
			{CorpNum: corp, Type: "CP", Recognized: "2017-01-01"},
		},
		Events: []Event{
			{ID: 150, Corp: corp, Type: "FILE", Timestamp: "2017-01-01T09:00:00Z", Filing: &Filing{Type: "OTINC", Effective: "2017-01-01T00:00:00Z"}},
			{ID: 200, Corp: corp, Type: "FILE", Timestamp: "2017-05-01T09:00:00Z", Filing: &Filing{Type: "OTCDR", Effective: "2017-05-01T00:00:00Z"}},
			{ID: 205, Corp: corp, Type: "FILE", Timestamp: "2017-05-05T09:00:00Z", Filing: &Filing{Type: "OTCDR", Effective: "2017-05-05T00:00:00Z"}},
			{ID: 210, Corp: corp, Type: "FILE", Timestamp: "2017-05-10T09:00:00Z", Filing: &Filing{Type: "CORRC", Effective: "2017-05-10T00:00:00Z"}},
		},
		Names: []Name{
			{Corp: corp, Type: "CO", Start: 150, Name: "SALISH SEA CO-OPERATIVE"},
		},
		States: []State{
			{Corp: corp, Start: 150, State: "ACT"},
		},
		Parties: []Party{
			{ID: 2101, Corp: corp, Role: "DIR", Start: 150, Appointed: "2017-01-01", First: "Ana", Last: "Lee", Delivery: Int(711)},
			{ID: 2102, Corp: corp, Role: "DIR", Start: 200, End: Int(210), Appointed: "2017-05-01", First: "Jon", Last: "Doe", Delivery: Int(712)},
			{ID: 2103, Corp: corp, Role: "DIR", Start: 210, Prev: Int(2102), First: "John", Last: "Doe", Delivery: Int(712)},
			{ID: 2104, Corp: corp, Role: "DIR", Start: 205, Appointed: "2017-05-05", First: "Zed", Last: "Park", Delivery: Int(711)},
			{ID: 2105, Corp: corp, Role: "DIR", Start: 150, End: Int(205), Appointed: "2017-01-01", Ceased: "2017-05-05", First: "Bob", Last: "Ray", Delivery: Int(711)},
		},
		Offices: []Office{
			{Corp: corp, Type: "RG", Start: 150, Mailing: Int(713), Delivery: Int(713)},
		},
		Addresses: []Address{
			{ID: 711, Format: "FOR", Line1: "3 Ferry Ln", City: "Nanaimo", Province: "BC", Country: "CA", PostalCode: "V9R 5K2"},
			{ID: 712, Format: "FOR", Line1: "8 Quay St", City: "Ladysmith", Province: "BC", Country: "CA", PostalCode: "V9G 1A1"},
			{ID: 713, Format: "BAS", CivicNo: "40", StreetName: "Front", StreetType: "St", City: "Nanaimo", Province: "BC", Country: "CA", PostalCode: "V9R 5H7"},
		},
	}
}

// CorrectedCessationLedger is a change of directors (200) that ceases Bob
// Ray and appoints a misspelled director, corrected by 210.
func CorrectedCessationLedger() Ledger {
	const corp = "CP0006002"
	return Ledger{
		Corporations: []Corporation{
			{CorpNum: corp, Type: "CP", Recognized: "2017-01-01"},
		},
		Events: []Event{
			{ID: 150, Corp: corp, Type: "FILE", Timestamp: "2017-01-01T09:00:00Z", Filing: &Filing{Type: "OTINC", Effective: "2017-01-01T00:00:00Z"}},
			{ID: 200, Corp: corp, Type: "FILE", Timestamp: "2017-05-01T09:00:00Z", Filing: &Filing{Type: "OTCDR", Effective: "2017-05-01T00:00:00Z"}},
			{ID: 210, Corp: corp, Type: "FILE", Timestamp: "2017-05-10T09:00:00Z", Filing: &Filing{Type: "CORRC", Effective: "2017-05-10T00:00:00Z"}},
		},
		Names: []Name{
			{Corp: corp, Type: "CO", Start: 150, Name: "GULF ISLANDS CO-OPERATIVE"},
		},
		States: []State{
			{Corp: corp, Start: 150, State: "ACT"},
		},
		Parties: []Party{
			{ID: 2201, Corp: corp, Role: "DIR", Start: 150, Appointed: "2017-01-01", First: "Ana", Last: "Lee", Delivery: Int(721)},
			{ID: 2202, Corp: corp, Role: "DIR", Start: 150, End: Int(200), Appointed: "2017-01-01", Ceased: "2017-05-01", First: "Bob", Last: "Ray", Delivery: Int(721)},
			{ID: 2203, Corp: corp, Role: "DIR", Start: 200, End: Int(210), Appointed: "2017-05-01", First: "Cy", Last: "Jons", Delivery: Int(721)},
			{ID: 2204, Corp: corp, Role: "DIR", Start: 210, Prev: Int(2203), First: "Cy", Last: "Jones", Delivery: Int(721)},
		},
		Offices: []Office{
			{Corp: corp, Type: "RG", Start: 150, Mailing: Int(722), Delivery: Int(722)},
		},
		Addresses: []Address{
			{ID: 721, Format: "FOR", Line1: "5 Harbour Rd", City: "Ganges", Province: "BC", Country: "CA", PostalCode: "V8K 2S1"},
			{ID: 722, Format: "BAS", CivicNo: "12", StreetName: "Lower Ganges", StreetType: "Rd", City: "Ganges", Province: "BC", Country: "CA", PostalCode: "V8K 2T1"},
		},
	}
}

// BackReferenceLedger is a correction (210) recorded only as a row it
// inserts pointing back at the corrected change of directors (200): the
// row starts at 210 and ends at 200.
func BackReferenceLedger() Ledger {
	const corp = "CP0006003"
	return Ledger{
		Corporations: []Corporation{
			{CorpNum: corp, Type: "CP", Recognized: "2017-01-01"},
		},
		Events: []Event{
			{ID: 150, Corp: corp, Type: "FILE", Timestamp: "2017-01-01T09:00:00Z", Filing: &Filing{Type: "OTINC", Effective: "2017-01-01T00:00:00Z"}},
			{ID: 200, Corp: corp, Type: "FILE", Timestamp: "2017-05-01T09:00:00Z", Filing: &Filing{Type: "OTCDR", Effective: "2017-05-01T00:00:00Z"}},
			{ID: 210, Corp: corp, Type: "FILE", Timestamp: "2017-05-10T09:00:00Z", Filing: &Filing{Type: "CORRC", Effective: "2017-05-10T00:00:00Z"}},
		},
		Names: []Name{
			{Corp: corp, Type: "CO", Start: 150, Name: "DESOLATION SOUND CO-OPERATIVE"},
		},
		States: []State{
			{Corp: corp, Start: 150, State: "ACT"},
		},
		Parties: []Party{
			{ID: 2301, Corp: corp, Role: "DIR", Start: 150, Appointed: "2017-01-01", First: "Ana", Last: "Lee", Delivery: Int(731)},
			{ID: 2302, Corp: corp, Role: "DIR", Start: 200, Appointed: "2017-05-01", First: "Jon", Last: "Doe", Delivery: Int(731)},
			{ID: 2303, Corp: corp, Role: "DIR", Start: 210, End: Int(200), Prev: Int(2302), Appointed: "2017-05-01", First: "Jon", Last: "Doe", Delivery: Int(731)},
		},
		Offices: []Office{
			{Corp: corp, Type: "RG", Start: 150, Mailing: Int(732), Delivery: Int(732)},
		},
		Addresses: []Address{
			{ID: 731, Format: "FOR", Line1: "1 Refuge Cove", City: "Lund", Province: "BC", Country: "CA", PostalCode: "V0N 2G0"},
			{ID: 732, Format: "BAS", CivicNo: "7", StreetName: "Marina", StreetType: "Way", City: "Lund", Province: "BC", Country: "CA", PostalCode: "V0N 2G0"},
		},
	}
}
