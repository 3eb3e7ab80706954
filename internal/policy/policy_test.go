package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/colin-migrate/internal/errs"
)

func TestDefault_MapsEveryCode(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	tests := []struct {
		code   string
		target FilingType
		class  Class
	}{
		{"OTINC", IncorporationApplication, ClassNewBusiness},
		{"ICORP", IncorporationApplication, ClassNewBusiness},
		{"ICORU", IncorporationApplication, ClassNewBusiness},
		{"ICORC", IncorporationApplication, ClassNewBusiness},
		{"CONTI", ContinuationIn, ClassNewBusiness},
		{"CONTU", ContinuationIn, ClassNewBusiness},
		{"CONTC", ContinuationIn, ClassNewBusiness},
		{"OTANN", AnnualReport, ClassMaintenance},
		{"ANNBC", AnnualReport, ClassMaintenance},
		{"OTCDR", ChangeOfDirectors, ClassMaintenance},
		{"NOCDR", ChangeOfDirectors, ClassMaintenance},
		{"OTADD", ChangeOfAddress, ClassMaintenance},
		{"NOCAD", ChangeOfAddress, ClassMaintenance},
		{"NOALT", Alteration, ClassMaintenance},
		{"OTDIS", Dissolution, ClassMaintenance},
		{"DISDE", Dissolution, ClassMaintenance},
		{"DISLV", Dissolution, ClassMaintenance},
		{"PUTBA", PutBackOn, ClassMaintenance},
		{"RESTF", PutBackOn, ClassMaintenance},
		{"CORRC", Correction, ClassCorrection},
		{"OTCOR", Correction, ClassCorrection},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r, err := table.Lookup(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.code, r.Code)
			assert.Equal(t, tt.target, r.Target)
			assert.Equal(t, tt.class, r.Class)
			assert.Equal(t, tt.class, table.Classify(tt.code))
		})
	}
	assert.Len(t, table.Codes(), len(tests))
}

func TestDefault_RuleFlags(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	inc, err := table.Lookup("OTINC")
	require.NoError(t, err)
	assert.True(t, inc.CarryForwardParties)
	assert.True(t, inc.CarryForwardOffices)
	assert.True(t, inc.IncludeShareStructure)
	assert.False(t, inc.IncludeJurisdiction)
	assert.Equal(t, NotifyAffiliation, inc.Notify)

	cont, err := table.Lookup("CONTI")
	require.NoError(t, err)
	assert.True(t, cont.IncludeJurisdiction)
	assert.Equal(t, NotifyAffiliation, cont.Notify)

	ann, err := table.Lookup("OTANN")
	require.NoError(t, err)
	assert.True(t, ann.CarryForwardOffices)
	assert.False(t, ann.IncludeShareStructure)
	assert.Equal(t, NotifyNone, ann.Notify)

	nocad, err := table.Lookup("NOCAD")
	require.NoError(t, err)
	assert.False(t, nocad.CarryForwardOffices)
	otadd, err := table.Lookup("OTADD")
	require.NoError(t, err)
	assert.True(t, otadd.CarryForwardOffices)

	dis, err := table.Lookup("OTDIS")
	require.NoError(t, err)
	assert.Equal(t, NotifyEntityState, dis.Notify)
}

func TestLookup_NormalizesCode(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	r, err := table.Lookup(" otann ")
	require.NoError(t, err)
	assert.Equal(t, AnnualReport, r.Target)
}

func TestLookup_Unknown(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	_, err = table.Lookup("XXXXX")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidFilingType(err))
	assert.True(t, errs.Skippable(err))
	assert.Equal(t, ClassUnsupported, table.Classify("XXXXX"))
	assert.Equal(t, ClassUnsupported, table.Classify(""))
}

func TestLoadSource_OverrideAddsAndReplaces(t *testing.T) {
	src := []byte(`
rules: {
	NOCAD: {target: "changeOfAddress", class: "MAINTENANCE", carryForwardOffices: true}
	OTAMA: {target: "alteration", class: "MAINTENANCE", includeShareStructure: true}
}
`)
	table, err := LoadSource(src, "override.cue")
	require.NoError(t, err)

	nocad, err := table.Lookup("NOCAD")
	require.NoError(t, err)
	assert.True(t, nocad.CarryForwardOffices)

	added, err := table.Lookup("OTAMA")
	require.NoError(t, err)
	assert.Equal(t, Alteration, added.Target)
	assert.True(t, added.IncludeShareStructure)
	assert.False(t, added.CarryForwardParties)

	// Untouched codes keep the embedded rule.
	inc, err := table.Lookup("OTINC")
	require.NoError(t, err)
	assert.Equal(t, IncorporationApplication, inc.Target)
}

func TestLoadSource_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown target", `rules: OTXYZ: {target: "amalgamation", class: "MAINTENANCE"}`},
		{"unknown class", `rules: OTXYZ: {target: "alteration", class: "OTHER"}`},
		{"unknown field", `rules: OTXYZ: {target: "alteration", class: "MAINTENANCE", extra: true}`},
		{"missing target", `rules: OTXYZ: {class: "MAINTENANCE"}`},
		{"syntax", `rules: {`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSource([]byte(tt.src), "override.cue")
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, table.Codes())

	path := filepath.Join(t.TempDir(), "policy.cue")
	require.NoError(t, os.WriteFile(path, []byte(`rules: PUTBA: {target: "putBackOn", class: "MAINTENANCE", carryForwardParties: true}`), 0o644))

	table, err = Load(path)
	require.NoError(t, err)
	r, err := table.Lookup("PUTBA")
	require.NoError(t, err)
	assert.True(t, r.CarryForwardParties)
	assert.Equal(t, NotifyNone, r.Notify)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
