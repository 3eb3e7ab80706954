package filing

// Source marks every reconstructed document as legacy-originated.
const Source = "COLIN"

// Document is a reconstructed filing: {filing: {header, business, <type>}}.
type Document struct {
	Filing Filing `json:"filing"`
}

// Filing holds the header, the business block and exactly one type section.
// Sections are pointers so absent ones are dropped from the JSON entirely.
type Filing struct {
	Header   Header    `json:"header"`
	Business Business  `json:"business"`
	Comments []Comment `json:"comments,omitempty"`

	IncorporationApplication *IncorporationApplication `json:"incorporationApplication,omitempty"`
	ContinuationIn           *ContinuationIn           `json:"continuationIn,omitempty"`
	AnnualReport             *AnnualReport             `json:"annualReport,omitempty"`
	ChangeOfDirectors        *ChangeOfDirectors        `json:"changeOfDirectors,omitempty"`
	ChangeOfAddress          *ChangeOfAddress          `json:"changeOfAddress,omitempty"`
	Alteration               *Alteration               `json:"alteration,omitempty"`
	Dissolution              *Dissolution              `json:"dissolution,omitempty"`
	PutBackOn                *PutBackOn                `json:"putBackOn,omitempty"`
	Correction               *Correction               `json:"correction,omitempty"`
}

// Header is the common filing header.
type Header struct {
	Name                 string  `json:"name"`
	Date                 string  `json:"date"`
	EffectiveDate        string  `json:"effectiveDate"`
	CertifiedBy          string  `json:"certifiedBy"`
	ColinIDs             []int64 `json:"colinIds"`
	Source               string  `json:"source"`
	AvailableOnPaperOnly bool    `json:"availableOnPaperOnly"`
}

// Business identifies the business the filing applies to.
type Business struct {
	Identifier   string `json:"identifier"`
	LegalType    string `json:"legalType"`
	LegalName    string `json:"legalName,omitempty"`
	FoundingDate string `json:"foundingDate,omitempty"`
	TaxID        string `json:"taxId,omitempty"`
	State        string `json:"state,omitempty"`
}

// Comment is a staff comment recorded against the corporation.
type Comment struct {
	Comment              string `json:"comment"`
	SubmitterDisplayName string `json:"submitterDisplayName,omitempty"`
	Timestamp            string `json:"timestamp"`
}

// Address is a normalised mailing or delivery address.
type Address struct {
	StreetAddress           string `json:"streetAddress"`
	StreetAddressAdditional string `json:"streetAddressAdditional,omitempty"`
	AddressCity             string `json:"addressCity"`
	AddressRegion           string `json:"addressRegion,omitempty"`
	AddressCountry          string `json:"addressCountry"`
	PostalCode              string `json:"postalCode,omitempty"`
	DeliveryInstructions    string `json:"deliveryInstructions,omitempty"`
}

// Office is one office's addresses.
type Office struct {
	MailingAddress  *Address `json:"mailingAddress,omitempty"`
	DeliveryAddress *Address `json:"deliveryAddress,omitempty"`
}

// Offices are keyed by office type: registeredOffice, recordsOffice, ...
type Offices map[string]Office

// Officer is the identity of a party.
type Officer struct {
	PartyType        string `json:"partyType"`
	FirstName        string `json:"firstName,omitempty"`
	MiddleName       string `json:"middleName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	OrganizationName string `json:"organizationName,omitempty"`
	Identifier       string `json:"identifier,omitempty"`
	Email            string `json:"email,omitempty"`
}

// Party types.
const (
	PartyPerson       = "person"
	PartyOrganization = "organization"
)

// PrevColinParty points the filer at an already materialized party.
type PrevColinParty struct {
	ID int64 `json:"id"`
}

// Role is one role a party holds.
type Role struct {
	RoleType        string  `json:"roleType"`
	AppointmentDate string  `json:"appointmentDate"`
	CessationDate   *string `json:"cessationDate,omitempty"`
}

// Party is a party with its roles, used by new-business and correction
// filings.
type Party struct {
	Officer         Officer         `json:"officer"`
	Roles           []Role          `json:"roles"`
	MailingAddress  *Address        `json:"mailingAddress,omitempty"`
	DeliveryAddress *Address        `json:"deliveryAddress,omitempty"`
	PrevColinParty  *PrevColinParty `json:"prevColinParty,omitempty"`
}

// Director is a director entry of annual report and director change
// filings.
type Director struct {
	Officer         Officer         `json:"officer"`
	AppointmentDate string          `json:"appointmentDate"`
	CessationDate   *string         `json:"cessationDate,omitempty"`
	Actions         []string        `json:"actions,omitempty"`
	MailingAddress  *Address        `json:"mailingAddress,omitempty"`
	DeliveryAddress *Address        `json:"deliveryAddress,omitempty"`
	PrevColinParty  *PrevColinParty `json:"prevColinParty,omitempty"`
}

// Director change actions.
const (
	ActionAppointed   = "appointed"
	ActionCeased      = "ceased"
	ActionNameChanged = "nameChanged"
)

// ShareStructure is the nested share classes of a business.
type ShareStructure struct {
	ShareClasses []ShareClass `json:"shareClasses"`
}

// ShareClass is one share class and its series.
type ShareClass struct {
	Name                    string        `json:"name"`
	Priority                int           `json:"priority"`
	HasMaximumShares        bool          `json:"hasMaximumShares"`
	MaxNumberOfShares       *int64        `json:"maxNumberOfShares"`
	HasParValue             bool          `json:"hasParValue"`
	ParValue                *float64      `json:"parValue"`
	Currency                string        `json:"currency,omitempty"`
	HasRightsOrRestrictions bool          `json:"hasRightsOrRestrictions"`
	Series                  []ShareSeries `json:"series"`
}

// ShareSeries is one series of a share class.
type ShareSeries struct {
	Name                    string `json:"name"`
	Priority                int    `json:"priority"`
	HasMaximumShares        bool   `json:"hasMaximumShares"`
	MaxNumberOfShares       *int64 `json:"maxNumberOfShares"`
	HasRightsOrRestrictions bool   `json:"hasRightsOrRestrictions"`
}

// NameRequest carries the name a new business was registered under.
type NameRequest struct {
	LegalType string `json:"legalType"`
	LegalName string `json:"legalName,omitempty"`
	NRNumber  string `json:"nrNumber,omitempty"`
}

// NameTranslation is an alias or translated name.
type NameTranslation struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// ForeignJurisdiction is the home jurisdiction of a continued-in business.
// Country and region are null when the legacy value cannot be decoded.
type ForeignJurisdiction struct {
	Country           *string `json:"country"`
	Region            *string `json:"region"`
	LegalName         string  `json:"legalName,omitempty"`
	Identifier        string  `json:"identifier,omitempty"`
	IncorporationDate string  `json:"incorporationDate,omitempty"`
}

// IncorporationApplication is the incorporationApplication section.
type IncorporationApplication struct {
	NameRequest      NameRequest       `json:"nameRequest"`
	NameTranslations []NameTranslation `json:"nameTranslations,omitempty"`
	Offices          Offices           `json:"offices"`
	Parties          []Party           `json:"parties"`
	ShareStructure   *ShareStructure   `json:"shareStructure,omitempty"`
}

// ContinuationIn is the continuationIn section.
type ContinuationIn struct {
	NameRequest         NameRequest          `json:"nameRequest"`
	NameTranslations    []NameTranslation    `json:"nameTranslations,omitempty"`
	ForeignJurisdiction *ForeignJurisdiction `json:"foreignJurisdiction"`
	Offices             Offices              `json:"offices"`
	Parties             []Party              `json:"parties"`
	ShareStructure      *ShareStructure      `json:"shareStructure,omitempty"`
}

// AnnualReport is the annualReport section.
type AnnualReport struct {
	AnnualReportDate         string     `json:"annualReportDate"`
	AnnualGeneralMeetingDate *string    `json:"annualGeneralMeetingDate"`
	DidNotHoldAGM            bool       `json:"didNotHoldAgm"`
	Offices                  Offices    `json:"offices,omitempty"`
	Directors                []Director `json:"directors"`
}

// ChangeOfDirectors is the changeOfDirectors section.
type ChangeOfDirectors struct {
	Directors []Director `json:"directors"`
}

// ChangeOfAddress is the changeOfAddress section.
type ChangeOfAddress struct {
	Offices Offices `json:"offices"`
}

// Alteration is the alteration section.
type Alteration struct {
	Business         Business          `json:"business"`
	NameRequest      *NameRequest      `json:"nameRequest,omitempty"`
	NameTranslations []NameTranslation `json:"nameTranslations,omitempty"`
	ShareStructure   *ShareStructure   `json:"shareStructure,omitempty"`
}

// Dissolution is the dissolution section.
type Dissolution struct {
	DissolutionDate string `json:"dissolutionDate"`
	DissolutionType string `json:"dissolutionType"`
	Details         string `json:"details,omitempty"`
}

// PutBackOn is the putBackOn section.
type PutBackOn struct {
	Details string `json:"details,omitempty"`
}

// Correction is the correction section. Entity snapshots are present when
// the correction restates them.
type Correction struct {
	CorrectedFilingType string            `json:"correctedFilingType,omitempty"`
	CorrectedEventID    *int64            `json:"correctedEventId,omitempty"`
	Comment             string            `json:"comment"`
	LegalName           string            `json:"legalName,omitempty"`
	NameTranslations    []NameTranslation `json:"nameTranslations,omitempty"`
	Offices             Offices           `json:"offices,omitempty"`
	Parties             []Party           `json:"parties,omitempty"`
	ShareStructure      *ShareStructure   `json:"shareStructure,omitempty"`
}
