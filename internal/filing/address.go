package filing

import (
	"strings"
	"unicode"

	"github.com/bcgov/colin-migrate/internal/ledger"
)

const lockBoxPrefix = "PO BOX"

// streetDirections are the BASIC-format direction tokens.
var streetDirections = map[string]bool{
	"N": true, "S": true, "E": true, "W": true,
	"NE": true, "NW": true, "SE": true, "SW": true,
}

// BuildAddress normalises a legacy address row. A nil row yields nil.
func BuildAddress(row *ledger.AddressRow) *Address {
	if row == nil {
		return nil
	}
	street, additional := BuildStreet(*row)
	return &Address{
		StreetAddress:           clean(street),
		StreetAddressAdditional: clean(additional),
		AddressCity:             clean(row.City),
		AddressRegion:           clean(row.Province),
		AddressCountry:          clean(row.Country),
		PostalCode:              clean(row.PostalCode),
		DeliveryInstructions:    clean(row.DeliveryInstructions),
	}
}

// BuildStreet concatenates the components of the row's format variant into
// streetAddress and streetAddressAdditional.
//
//	BASIC     [unitType] [unitNo-]civicNo[suffix] streetName streetType [direction] / line1 line2 line3
//	ADVANCED  [PO BOX lockBox] [routeType routeNo] / installationType installationName[, qualifier]
//	FOREIGN   line1 / line2 (line3 appended to line2)
func BuildStreet(row ledger.AddressRow) (street, additional string) {
	switch row.Format {
	case ledger.FormatBasic:
		civic := row.CivicNo + row.CivicNoSuffix
		if row.UnitNo != "" {
			civic = row.UnitNo + "-" + civic
		}
		street = join(row.UnitType, civic, row.StreetName, row.StreetType, row.StreetDirection)
		additional = join(row.Line1, row.Line2, row.Line3)
	case ledger.FormatAdvanced:
		var lockBox string
		if row.LockBoxNo != "" {
			lockBox = lockBoxPrefix + " " + row.LockBoxNo
		}
		street = join(lockBox, row.RouteServiceType, row.RouteServiceNo)
		additional = join(row.InstallationType, row.InstallationName)
		if row.InstallationQualifier != "" {
			additional += ", " + row.InstallationQualifier
		}
	default:
		lines := nonEmpty(row.Line1, row.Line2, row.Line3)
		switch len(lines) {
		case 0:
		case 1:
			street = lines[0]
		default:
			street = lines[0]
			additional = strings.Join(lines[1:], " ")
		}
	}
	return street, additional
}

// ParseStreet is the reverse of BuildStreet for the street components of
// a format. City, region and the like are not part of the street and are
// left empty.
func ParseStreet(format, street, additional string) ledger.AddressRow {
	row := ledger.AddressRow{Format: format}
	switch format {
	case ledger.FormatBasic:
		parseBasic(&row, strings.Fields(street))
	case ledger.FormatAdvanced:
		parseAdvanced(&row, strings.Fields(street), additional)
	default:
		row.Format = ledger.FormatForeign
		row.Line1 = strings.TrimSpace(street)
		row.Line2 = strings.TrimSpace(additional)
	}
	return row
}

func parseBasic(row *ledger.AddressRow, tokens []string) {
	// Civic token: the first one starting with a digit, optionally
	// unit-prefixed.
	civicAt := -1
	for i, tok := range tokens {
		if tok != "" && unicode.IsDigit(rune(tok[0])) {
			civicAt = i
			break
		}
	}
	if civicAt < 0 {
		row.StreetName = strings.Join(tokens, " ")
		return
	}
	row.UnitType = strings.Join(tokens[:civicAt], " ")
	civic := tokens[civicAt]
	if unit, rest, ok := strings.Cut(civic, "-"); ok {
		row.UnitNo = unit
		civic = rest
	}
	digits := strings.IndexFunc(civic, func(r rune) bool { return !unicode.IsDigit(r) })
	if digits < 0 {
		row.CivicNo = civic
	} else {
		row.CivicNo = civic[:digits]
		row.CivicNoSuffix = civic[digits:]
	}

	rest := tokens[civicAt+1:]
	if n := len(rest); n > 0 && streetDirections[rest[n-1]] {
		row.StreetDirection = rest[n-1]
		rest = rest[:n-1]
	}
	if n := len(rest); n > 1 {
		row.StreetType = rest[n-1]
		rest = rest[:n-1]
	}
	row.StreetName = strings.Join(rest, " ")
}

func parseAdvanced(row *ledger.AddressRow, tokens []string, additional string) {
	if len(tokens) >= 3 && tokens[0]+" "+tokens[1] == lockBoxPrefix {
		row.LockBoxNo = tokens[2]
		tokens = tokens[3:]
	}
	if len(tokens) > 0 {
		row.RouteServiceType = tokens[0]
	}
	if len(tokens) > 1 {
		row.RouteServiceNo = strings.Join(tokens[1:], " ")
	}

	install, qualifier, _ := strings.Cut(additional, ", ")
	row.InstallationQualifier = strings.TrimSpace(qualifier)
	if fields := strings.Fields(install); len(fields) > 0 {
		row.InstallationType = fields[0]
		row.InstallationName = strings.Join(fields[1:], " ")
	}
}

func join(parts ...string) string {
	return strings.Join(nonEmpty(parts...), " ")
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
