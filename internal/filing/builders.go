package filing

import (
	"fmt"

	"github.com/bcgov/colin-migrate/internal/assembler"
	"github.com/bcgov/colin-migrate/internal/policy"
)

func buildIncorporation(b *builder, f *Filing) error {
	f.IncorporationApplication = &IncorporationApplication{
		NameRequest:      b.nameRequest(),
		NameTranslations: b.nameTranslations(),
		Offices:          b.offices(),
		Parties:          b.parties(),
		ShareStructure:   b.shareStructure(),
	}
	return nil
}

func buildContinuation(b *builder, f *Filing) error {
	f.ContinuationIn = &ContinuationIn{
		NameRequest:         b.nameRequest(),
		NameTranslations:    b.nameTranslations(),
		ForeignJurisdiction: buildForeignJurisdiction(b),
		Offices:             b.offices(),
		Parties:             b.parties(),
		ShareStructure:      b.shareStructure(),
	}
	return nil
}

func buildAnnualReport(b *builder, f *Filing) error {
	bag := b.bag
	ar := &AnnualReport{
		AnnualReportDate:         formatDate(bag.EffectiveDate),
		AnnualGeneralMeetingDate: formatDatePtr(bag.Base.AGMDate),
		DidNotHoldAGM:            bag.Base.AGMDate == nil,
		Offices:                  b.offices(),
		Directors:                []Director{},
	}
	if bag.Base.PeriodEndDate != nil {
		ar.AnnualReportDate = formatDate(*bag.Base.PeriodEndDate)
	}
	for _, p := range bag.Directors() {
		ar.Directors = append(ar.Directors, director(p))
	}
	f.AnnualReport = ar
	return nil
}

func buildChangeOfDirectors(b *builder, f *Filing) error {
	bag := b.bag
	cod := &ChangeOfDirectors{Directors: []Director{}}

	// A ceased row replaced by a new row of the same party is a name
	// change, not a cessation.
	replaced := make(map[int64]bool)
	for _, p := range bag.Directors() {
		var actions []string
		switch {
		case p.Carried:
		case p.Row.PrevPartyID != nil:
			replaced[*p.Row.PrevPartyID] = true
			actions = []string{ActionNameChanged}
		default:
			actions = []string{ActionAppointed}
		}
		cod.Directors = append(cod.Directors, director(p, actions...))
	}
	for _, p := range bag.CeasedParties {
		if p.Row.Role != assembler.RoleDirector || replaced[p.Row.ID] {
			continue
		}
		d := director(p, ActionCeased)
		d.PrevColinParty = &PrevColinParty{ID: p.Row.ID}
		cod.Directors = append(cod.Directors, d)
	}
	f.ChangeOfDirectors = cod
	return nil
}

func buildChangeOfAddress(b *builder, f *Filing) error {
	f.ChangeOfAddress = &ChangeOfAddress{Offices: b.offices()}
	return nil
}

func buildAlteration(b *builder, f *Filing) error {
	alt := &Alteration{
		Business:         Business{Identifier: f.Business.Identifier, LegalType: f.Business.LegalType},
		NameTranslations: b.nameTranslations(),
		ShareStructure:   b.shareStructure(),
	}
	if b.bag.LegalName != "" {
		nr := b.nameRequest()
		alt.NameRequest = &nr
	}
	f.Alteration = alt
	return nil
}

var dissolutionTypes = map[string]string{
	"DISDE": "administrative",
	"DISLV": "voluntaryLiquidation",
}

func buildDissolution(b *builder, f *Filing) error {
	kind, ok := dissolutionTypes[b.bag.Rule.Code]
	if !ok {
		kind = "voluntary"
	}
	f.Dissolution = &Dissolution{
		DissolutionDate: formatDate(b.bag.EffectiveDate),
		DissolutionType: kind,
		Details:         b.details(),
	}
	return nil
}

func buildPutBackOn(b *builder, f *Filing) error {
	f.PutBackOn = &PutBackOn{Details: b.details()}
	return nil
}

// buildCorrection covers both a corrected event, whose own type becomes the
// corrected filing type, and a standalone correction event.
func buildCorrection(b *builder, f *Filing) error {
	bag := b.bag
	c := &Correction{
		LegalName:        clean(bag.LegalName),
		NameTranslations: b.nameTranslations(),
		Offices:          b.offices(),
		Parties:          append(b.parties(), b.ceasedParties()...),
		ShareStructure:   b.shareStructure(),
	}
	if bag.IsCorrectedEventFiling {
		id := bag.Event.ID
		c.CorrectedEventID = &id
		c.CorrectedFilingType = string(bag.Rule.Target)
	} else if bag.CorrectedEventID != nil {
		id := *bag.CorrectedEventID
		c.CorrectedEventID = &id
	}
	if bag.Rule.Target != policy.Correction && !bag.IsCorrectedEventFiling {
		return fmt.Errorf("event %d of type %s is not a correction", bag.Event.ID, bag.Rule.Target)
	}

	c.Comment = b.details()
	if c.Comment == "" {
		c.Comment = fmt.Sprintf("Correction reconstructed from legacy event %d.", bag.ColinIDs()[len(bag.ColinIDs())-1])
	}
	if len(c.Parties) == 0 {
		c.Parties = nil
	}
	f.Correction = c
	return nil
}

// ceasedParties reports the party rows the corrected history closes. A
// closed row replaced by a row of the same party is a change, not a
// cessation, and the replacement already carries it.
func (b *builder) ceasedParties() []Party {
	replaced := make(map[int64]bool)
	for _, p := range b.bag.Parties {
		if p.Row.PrevPartyID != nil {
			replaced[*p.Row.PrevPartyID] = true
		}
	}
	var out []Party
	for _, p := range b.bag.CeasedParties {
		if replaced[p.Row.ID] {
			continue
		}
		out = append(out, Party{
			Officer: officer(p.Row),
			Roles: []Role{{
				RoleType:        roleName(p.Row.Role),
				AppointmentDate: formatDate(p.AppointmentDate),
				CessationDate:   formatDatePtr(p.CessationDate),
			}},
			MailingAddress:  BuildAddress(p.Mailing),
			DeliveryAddress: BuildAddress(p.Delivery),
			PrevColinParty:  &PrevColinParty{ID: p.Row.ID},
		})
	}
	return out
}
