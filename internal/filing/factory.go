// Package filing turns assembled ledger state into reconstructed filing
// documents.
//
// Build dispatches on the target filing type to one builder per type. Every
// builder fills the same Document shape; optional sections are left nil so
// they are absent from the JSON rather than present and empty.
package filing

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bcgov/colin-migrate/internal/assembler"
	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/policy"
)

const warnJurisdiction = errs.WarnJurisdictionForm

// Result is a built document with the warnings gathered along the way.
type Result struct {
	Document   Document
	FilingType policy.FilingType
	Warnings   []errs.Warning
}

type buildFunc func(b *builder, f *Filing) error

var builders = map[policy.FilingType]buildFunc{
	policy.IncorporationApplication: buildIncorporation,
	policy.ContinuationIn:           buildContinuation,
	policy.AnnualReport:             buildAnnualReport,
	policy.ChangeOfDirectors:        buildChangeOfDirectors,
	policy.ChangeOfAddress:          buildChangeOfAddress,
	policy.Alteration:               buildAlteration,
	policy.Dissolution:              buildDissolution,
	policy.PutBackOn:                buildPutBackOn,
	policy.Correction:               buildCorrection,
}

// FilingTypes returns the filing types Build supports.
func FilingTypes() []policy.FilingType {
	out := make([]policy.FilingType, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	return out
}

// TargetType is the filing type a bag is built as. A corrected event is
// built as a correction unless it created the business, in which case
// there is nothing to correct yet and the original type is kept.
func TargetType(bag *assembler.Bag) policy.FilingType {
	if bag.IsCorrectedEventFiling && bag.Class != policy.ClassNewBusiness {
		return policy.Correction
	}
	return bag.Rule.Target
}

// Build builds the document for an assembled bag.
func Build(bag *assembler.Bag) (*Result, error) {
	target := TargetType(bag)
	fn, ok := builders[target]
	if !ok {
		return nil, errs.New(errs.KindInvalidFilingType, "no builder for filing type %q (code %s)", target, bag.Rule.Code).At(bag.CorpNum, bag.Event.ID)
	}

	b := &builder{bag: bag, target: target}
	f := Filing{
		Header:   b.header(),
		Business: b.business(),
		Comments: b.comments(),
	}
	if err := fn(b, &f); err != nil {
		return nil, fmt.Errorf("build %s for event %d: %w", target, bag.Event.ID, err)
	}

	warnings := append(append([]errs.Warning(nil), bag.Warnings...), b.warnings...)
	return &Result{Document: Document{Filing: f}, FilingType: target, Warnings: warnings}, nil
}

type builder struct {
	bag      *assembler.Bag
	target   policy.FilingType
	warnings []errs.Warning
}

func (b *builder) warn(code, format string, args ...any) {
	b.warnings = append(b.warnings, errs.Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (b *builder) header() Header {
	bag := b.bag
	return Header{
		Name:                 string(b.target),
		Date:                 formatDateTime(bag.Event.Timestamp),
		EffectiveDate:        formatDateTime(bag.EffectiveDate),
		CertifiedBy:          clean(bag.Base.User.FullName()),
		ColinIDs:             bag.ColinIDs(),
		Source:               Source,
		AvailableOnPaperOnly: bag.Base.PaperOnly(),
	}
}

func (b *builder) business() Business {
	corp := b.bag.Base.Corporation
	biz := Business{
		Identifier: Identifier(b.bag.CorpNum),
		LegalType:  corp.CorpType,
		LegalName:  clean(b.bag.LegalName),
		TaxID:      corp.BN15,
		State:      stateName(b.bag.State),
	}
	if biz.TaxID == "" {
		biz.TaxID = corp.BN9
	}
	if corp.RecognitionDate != nil {
		biz.FoundingDate = formatDateTime(*corp.RecognitionDate)
	}
	return biz
}

func (b *builder) comments() []Comment {
	var out []Comment
	for _, c := range b.bag.Comments {
		out = append(out, Comment{
			Comment:              clean(c.Comment),
			SubmitterDisplayName: join(c.FirstName, c.LastName),
			Timestamp:            formatDateTime(c.Timestamp),
		})
	}
	return out
}

// Identifier maps a legacy corporation number to the business identifier.
// Numbered BC companies carry no prefix in the ledger.
func Identifier(corpNum string) string {
	corpNum = strings.TrimSpace(corpNum)
	if corpNum != "" && strings.IndexFunc(corpNum, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return "BC" + corpNum
	}
	return corpNum
}

var stateNames = map[string]string{
	"ACT": "ACTIVE",
	"HIS": "HISTORICAL",
	"LIQ": "LIQUIDATION",
}

func stateName(code string) string {
	if s, ok := stateNames[code]; ok {
		return s
	}
	return code
}

var officeKeys = map[string]string{
	assembler.OfficeRegistered:  "registeredOffice",
	assembler.OfficeRecords:     "recordsOffice",
	assembler.OfficeLiquidation: "liquidationRecordsOffice",
}

func (b *builder) offices() Offices {
	if len(b.bag.Offices) == 0 {
		return nil
	}
	out := make(Offices, len(b.bag.Offices))
	for _, o := range b.bag.Offices {
		key, ok := officeKeys[o.Type]
		if !ok {
			key = strings.ToLower(o.Type) + "Office"
		}
		out[key] = Office{
			MailingAddress:  BuildAddress(o.Mailing),
			DeliveryAddress: BuildAddress(o.Delivery),
		}
	}
	return out
}

var roleNames = map[string]string{
	assembler.RoleDirector:        "Director",
	assembler.RoleOfficer:         "Officer",
	assembler.RoleIncorporator:    "Incorporator",
	assembler.RoleCompletingParty: "Completing Party",
	"LIQ":                         "Liquidator",
	"RCV":                         "Receiver",
}

func roleName(code string) string {
	if r, ok := roleNames[code]; ok {
		return r
	}
	return code
}

func officer(row ledger.PartyRow) Officer {
	o := Officer{
		PartyType:  PartyPerson,
		FirstName:  clean(row.FirstName),
		MiddleName: clean(row.MiddleName),
		LastName:   clean(row.LastName),
		Email:      clean(row.Email),
	}
	if row.IsOrganization() {
		o = Officer{
			PartyType:        PartyOrganization,
			OrganizationName: clean(row.BusinessName),
			Identifier:       clean(row.CompanyNumber),
			Email:            clean(row.Email),
		}
	}
	return o
}

func prevColinParty(p assembler.Party) *PrevColinParty {
	if p.PrevColinPartyID == nil {
		return nil
	}
	return &PrevColinParty{ID: *p.PrevColinPartyID}
}

func (b *builder) parties() []Party {
	out := make([]Party, 0, len(b.bag.Parties))
	for _, p := range b.bag.Parties {
		out = append(out, Party{
			Officer: officer(p.Row),
			Roles: []Role{{
				RoleType:        roleName(p.Row.Role),
				AppointmentDate: formatDate(p.AppointmentDate),
				CessationDate:   formatDatePtr(p.CessationDate),
			}},
			MailingAddress:  BuildAddress(p.Mailing),
			DeliveryAddress: BuildAddress(p.Delivery),
			PrevColinParty:  prevColinParty(p),
		})
	}
	return out
}

func director(p assembler.Party, actions ...string) Director {
	return Director{
		Officer:         officer(p.Row),
		AppointmentDate: formatDate(p.AppointmentDate),
		CessationDate:   formatDatePtr(p.CessationDate),
		Actions:         actions,
		MailingAddress:  BuildAddress(p.Mailing),
		DeliveryAddress: BuildAddress(p.Delivery),
		PrevColinParty:  prevColinParty(p),
	}
}

func (b *builder) nameTranslations() []NameTranslation {
	var out []NameTranslation
	for _, n := range b.bag.Names {
		out = append(out, NameTranslation{Name: clean(n.Name), Type: nameType(n.Type)})
	}
	return out
}

func nameType(code string) string {
	switch code {
	case "TR":
		return "TRANSLATION"
	case "AL", "AS":
		return "ALIAS"
	}
	return code
}

// shareStructure nests the bag's share classes. Series maximums above their
// class maximum are capped to it and flagged.
func (b *builder) shareStructure() *ShareStructure {
	if len(b.bag.ShareClasses) == 0 {
		return nil
	}
	ss := &ShareStructure{ShareClasses: make([]ShareClass, 0, len(b.bag.ShareClasses))}
	for i, c := range b.bag.ShareClasses {
		sc := ShareClass{
			Name:                    clean(c.Name),
			Priority:                i + 1,
			HasMaximumShares:        c.MaxShareFlag,
			HasParValue:             c.ParValueFlag,
			HasRightsOrRestrictions: c.SpecialRights,
			Series:                  []ShareSeries{},
		}
		if c.MaxShareFlag {
			sc.MaxNumberOfShares = ParseQuantity(c.MaxShares)
		}
		if c.ParValueFlag {
			sc.ParValue = ParseParValue(c.ParValue)
			sc.Currency = c.Currency
			if sc.Currency == "OTH" {
				sc.Currency = clean(c.OtherCurrency)
			}
		}
		for j, s := range c.Series {
			ser := ShareSeries{
				Name:                    clean(s.Name),
				Priority:                j + 1,
				HasMaximumShares:        s.MaxShareFlag,
				HasRightsOrRestrictions: s.SpecialRights,
			}
			if s.MaxShareFlag {
				ser.MaxNumberOfShares = ParseQuantity(s.MaxShares)
			}
			if sc.MaxNumberOfShares != nil && ser.MaxNumberOfShares != nil && *ser.MaxNumberOfShares > *sc.MaxNumberOfShares {
				b.warn(errs.WarnSeriesExceeds, "series %q maximum %d exceeds class %q maximum %d",
					ser.Name, *ser.MaxNumberOfShares, sc.Name, *sc.MaxNumberOfShares)
				capped := *sc.MaxNumberOfShares
				ser.MaxNumberOfShares = &capped
			}
			sc.Series = append(sc.Series, ser)
		}
		ss.ShareClasses = append(ss.ShareClasses, sc)
	}
	return ss
}

func (b *builder) nameRequest() NameRequest {
	return NameRequest{
		LegalType: b.bag.Base.Corporation.CorpType,
		LegalName: clean(b.bag.LegalName),
		NRNumber:  b.bag.Base.NRNumber,
	}
}

func (b *builder) details() string {
	return strings.Join(b.bag.LedgerText, "\n")
}
