package filing

import (
	"strings"

	"github.com/bcgov/colin-migrate/internal/ledger"
)

const (
	jurisdictionOther   = "OT"
	jurisdictionFederal = "FD"
)

// DeriveJurisdiction decodes a legacy home jurisdiction into country and
// region. ok is false when the value has none of the known shapes, in which
// case both are nil:
//   - a Canadian code: country CA, region the code (FD is FEDERAL)
//   - OT with a 2-character description: the description is the country
//   - OT with a 6-character description "CC, RR": country CC, region RR
func DeriveJurisdiction(j ledger.JurisdictionRow) (country, region *string, ok bool) {
	code := strings.ToUpper(strings.TrimSpace(j.CanadianCode))
	switch code {
	case "":
		return nil, nil, false
	case jurisdictionOther:
	default:
		ca := "CA"
		if code == jurisdictionFederal {
			code = "FEDERAL"
		}
		return &ca, &code, true
	}

	desc := j.OtherDescription
	switch len(desc) {
	case 2:
		c := strings.ToUpper(desc)
		return &c, nil, true
	case 6:
		c := strings.ToUpper(desc[0:2])
		r := strings.ToUpper(strings.TrimSpace(desc[3:6]))
		return &c, &r, true
	}
	return nil, nil, false
}

func buildForeignJurisdiction(b *builder) *ForeignJurisdiction {
	j := b.bag.Jurisdiction
	if j == nil {
		return nil
	}
	country, region, ok := DeriveJurisdiction(*j)
	if !ok {
		b.warn(warnJurisdiction, "home jurisdiction %q/%q not decodable", j.CanadianCode, j.OtherDescription)
	}
	fj := &ForeignJurisdiction{
		Country:    country,
		Region:     region,
		LegalName:  clean(j.HomeCompanyName),
		Identifier: clean(j.HomeNumber),
	}
	if j.RecognitionDate != nil {
		fj.IncorporationDate = formatDate(*j.RecognitionDate)
	}
	return fj
}
