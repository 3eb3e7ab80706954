// Package policy maps legacy filing-type codes to reconstruction rules.
//
// The table is CUE: an embedded default (policy.cue) that operators may
// extend or override per code with their own file. Every rule is unified
// with the #Rule schema, so an override cannot introduce an unknown target
// filing type or field.
package policy

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/bcgov/colin-migrate/internal/errs"
)

//go:embed policy.cue
var defaultPolicy []byte

// FilingType is the target filing type a legacy event is rebuilt as.
type FilingType string

const (
	IncorporationApplication FilingType = "incorporationApplication"
	ContinuationIn           FilingType = "continuationIn"
	AnnualReport             FilingType = "annualReport"
	ChangeOfDirectors        FilingType = "changeOfDirectors"
	ChangeOfAddress          FilingType = "changeOfAddress"
	Alteration               FilingType = "alteration"
	Dissolution              FilingType = "dissolution"
	PutBackOn                FilingType = "putBackOn"
	Correction               FilingType = "correction"
)

// Class is the event classification used by selection and assembly.
type Class string

const (
	ClassNewBusiness Class = "NEW_BUSINESS"
	ClassMaintenance Class = "MAINTENANCE"
	ClassCorrection  Class = "CORRECTION"
	ClassUnsupported Class = "UNSUPPORTED"
)

// Notification targets.
const (
	NotifyNone        = ""
	NotifyAffiliation = "affiliation"
	NotifyEntityState = "entityState"
)

// Rule is the reconstruction rule of one legacy code.
type Rule struct {
	Code                  string
	Target                FilingType
	Class                 Class
	CarryForwardParties   bool
	CarryForwardOffices   bool
	IncludeShareStructure bool
	IncludeJurisdiction   bool
	Notify                string
}

// Table is an immutable code -> rule lookup.
type Table struct {
	rules map[string]Rule
}

// Default returns the embedded policy table.
func Default() (*Table, error) {
	return build(nil, "")
}

// Load returns the embedded table with the rules of the CUE file at path
// replacing or adding codes. An empty path is Default().
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy override: %w", err)
	}
	return build(src, path)
}

// LoadSource is Load for an in-memory override.
func LoadSource(src []byte, filename string) (*Table, error) {
	return build(src, filename)
}

func build(override []byte, filename string) (*Table, error) {
	ctx := cuecontext.New()

	base := ctx.CompileBytes(defaultPolicy, cue.Filename("policy.cue"))
	if err := base.Err(); err != nil {
		return nil, fmt.Errorf("compile default policy: %w", formatCUEError(err))
	}
	schema := base.LookupPath(cue.ParsePath("#Rule"))

	rules, err := parseRules(base.LookupPath(cue.ParsePath("rules")), schema)
	if err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}

	if override != nil {
		ov := ctx.CompileBytes(override, cue.Filename(filename))
		if err := ov.Err(); err != nil {
			return nil, fmt.Errorf("compile policy override: %w", formatCUEError(err))
		}
		extra, err := parseRules(ov.LookupPath(cue.ParsePath("rules")), schema)
		if err != nil {
			return nil, fmt.Errorf("policy override %s: %w", filename, err)
		}
		for code, r := range extra {
			rules[code] = r
		}
	}

	return &Table{rules: rules}, nil
}

func parseRules(v cue.Value, schema cue.Value) (map[string]Rule, error) {
	out := make(map[string]Rule)
	if !v.Exists() {
		return out, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		code := iter.Label()
		rv := schema.Unify(iter.Value())
		if err := rv.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", code, formatCUEError(err))
		}
		r, err := parseRule(code, rv)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", code, err)
		}
		out[strings.ToUpper(code)] = r
	}
	return out, nil
}

func parseRule(code string, v cue.Value) (Rule, error) {
	r := Rule{Code: strings.ToUpper(code)}

	target, err := stringField(v, "target")
	if err != nil {
		return Rule{}, err
	}
	class, err := stringField(v, "class")
	if err != nil {
		return Rule{}, err
	}
	r.Target = FilingType(target)
	r.Class = Class(class)

	if r.Notify, err = stringField(v, "notify"); err != nil {
		return Rule{}, err
	}
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{"carryForwardParties", &r.CarryForwardParties},
		{"carryForwardOffices", &r.CarryForwardOffices},
		{"includeShareStructure", &r.IncludeShareStructure},
		{"includeJurisdiction", &r.IncludeJurisdiction},
	} {
		fv, _ := v.LookupPath(cue.ParsePath(f.name)).Default()
		b, err := fv.Bool()
		if err != nil {
			return Rule{}, fmt.Errorf("%s: %w", f.name, formatCUEError(err))
		}
		*f.dst = b
	}
	return r, nil
}

func stringField(v cue.Value, name string) (string, error) {
	fv, _ := v.LookupPath(cue.ParsePath(name)).Default()
	s, err := fv.String()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, formatCUEError(err))
	}
	return s, nil
}

// Lookup returns the rule for a legacy code, or KindInvalidFilingType.
func (t *Table) Lookup(code string) (Rule, error) {
	r, ok := t.rules[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Rule{}, errs.New(errs.KindInvalidFilingType, "unsupported filing type code %q", code)
	}
	return r, nil
}

// Classify returns the class of a legacy code; unknown codes are UNSUPPORTED.
func (t *Table) Classify(code string) Class {
	r, err := t.Lookup(code)
	if err != nil {
		return ClassUnsupported
	}
	return r.Class
}

// Codes returns every mapped code in sorted order.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.rules))
	for c := range t.rules {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// formatCUEError keeps the first error with its source position.
func formatCUEError(err error) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return err
	}
	first := list[0]
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		return fmt.Errorf("%s: %s", pos[0], first.Error())
	}
	return first
}
