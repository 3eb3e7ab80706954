package filing

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/colin-migrate/internal/assembler"
	"github.com/bcgov/colin-migrate/internal/ledger"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want *int64
	}{
		{"", nil},
		{"   ", nil},
		{"0", ip(0)},
		{"10000", ip(10000)},
		{"1,000,000", ip(1000000)},
		{" 250 ", ip(250)},
		{"500.0", ip(500)},
		{"500.5", nil},
		{"unlimited", nil},
		{"1e400", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseQuantity(tt.in), "%q", tt.in)
	}
}

func TestParseParValue(t *testing.T) {
	fp := func(v float64) *float64 { return &v }
	tests := []struct {
		in   string
		want *float64
	}{
		{"", nil},
		{"0", fp(0)},
		{"0.01", fp(0.01)},
		{"1,000.50", fp(1000.5)},
		{"NaN", nil},
		{"Inf", nil},
		{"n/a", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseParValue(tt.in), "%q", tt.in)
	}
}

func TestDeriveJurisdiction(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		name        string
		row         ledger.JurisdictionRow
		wantCountry *string
		wantRegion  *string
		wantOK      bool
	}{
		{"province", ledger.JurisdictionRow{CanadianCode: "AB"}, str("CA"), str("AB"), true},
		{"federal", ledger.JurisdictionRow{CanadianCode: "FD"}, str("CA"), str("FEDERAL"), true},
		{"lower case code", ledger.JurisdictionRow{CanadianCode: " on "}, str("CA"), str("ON"), true},
		{"other country", ledger.JurisdictionRow{CanadianCode: "OT", OtherDescription: "gb"}, str("GB"), nil, true},
		{"other country and region", ledger.JurisdictionRow{CanadianCode: "OT", OtherDescription: "US, NY"}, str("US"), str("NY"), true},
		{"other free text", ledger.JurisdictionRow{CanadianCode: "OT", OtherDescription: "Cayman Islands"}, nil, nil, false},
		{"empty", ledger.JurisdictionRow{}, nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			country, region, ok := DeriveJurisdiction(tt.row)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCountry, country)
			assert.Equal(t, tt.wantRegion, region)
		})
	}
}

func TestFormatDateTime_RendersOffset(t *testing.T) {
	assert.Equal(t, "2016-03-01T10:00:00+00:00", formatDateTime(at(2016, 3, 1, 10)))
	assert.Equal(t, "2016-03-01", formatDate(at(2016, 3, 1, 23)))
	assert.Nil(t, formatDatePtr(nil))
}

func TestShareStructure_SeriesBoundedByClassProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no series maximum exceeds its class maximum", prop.ForAll(
		func(classMax int64, seriesMax []int64) bool {
			series := make([]ledger.ShareSeriesRow, 0, len(seriesMax))
			exceeding := 0
			for i, m := range seriesMax {
				if m > classMax {
					exceeding++
				}
				series = append(series, ledger.ShareSeriesRow{
					Name: fmt.Sprintf("Series %d", i), MaxShareFlag: true, MaxShares: fmt.Sprint(m),
				})
			}
			b := &builder{bag: &assembler.Bag{ShareClasses: []assembler.ShareClass{{
				ShareClassRow: ledger.ShareClassRow{Name: "Common", MaxShareFlag: true, MaxShares: fmt.Sprint(classMax)},
				Series:        series,
			}}}}

			ss := b.shareStructure()
			if len(b.warnings) != exceeding {
				return false
			}
			for _, s := range ss.ShareClasses[0].Series {
				if *s.MaxNumberOfShares > classMax {
					return false
				}
			}
			return len(ss.ShareClasses[0].Series) == len(seriesMax)
		},
		gen.Int64Range(1, 1_000_000),
		gen.SliceOf(gen.Int64Range(1, 2_000_000)),
	))

	properties.TestingRun(t)
}

func TestShareStructure_UnboundedClassKeepsSeries(t *testing.T) {
	b := &builder{bag: &assembler.Bag{ShareClasses: []assembler.ShareClass{{
		ShareClassRow: ledger.ShareClassRow{Name: "Common", MaxShareFlag: false, MaxShares: "500", Currency: "OTH", OtherCurrency: "GBP", ParValueFlag: true, ParValue: "1"},
		Series:        []ledger.ShareSeriesRow{{Name: "A", MaxShareFlag: true, MaxShares: "9999999"}, {Name: "B"}},
	}}}}

	ss := b.shareStructure()
	require.NotNil(t, ss)
	sc := ss.ShareClasses[0]
	assert.Nil(t, sc.MaxNumberOfShares)
	assert.Equal(t, "GBP", sc.Currency)
	assert.Equal(t, int64(9999999), *sc.Series[0].MaxNumberOfShares)
	assert.Nil(t, sc.Series[1].MaxNumberOfShares)
	assert.Equal(t, 2, sc.Series[1].Priority)
	assert.Empty(t, b.warnings)
}
