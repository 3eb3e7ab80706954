package filer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/bcgov/colin-migrate/internal/filing"
)

// MatchKey is the identity of a party within a business when no legacy
// party id links it: its type and name, NFC-normalised, whitespace-collapsed
// and case-folded. Middle names are left out; the ledger records them
// inconsistently across filings.
func MatchKey(o filing.Officer) string {
	var name string
	if o.PartyType == filing.PartyOrganization {
		name = fold(o.OrganizationName)
	} else {
		name = strings.TrimSpace(fold(o.FirstName) + " " + fold(o.LastName))
	}
	return o.PartyType + ":" + name
}

func fold(s string) string {
	s = strings.Join(strings.Fields(norm.NFC.String(s)), " ")
	return cases.Fold().String(s)
}
