package harness

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/bcgov/colin-migrate/internal/filing"
	"github.com/bcgov/colin-migrate/internal/pipeline"
	"github.com/bcgov/colin-migrate/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Corp     string // Corporation the assertion is about, if any
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Corp != "" {
		fmt.Fprintf(&buf, " (%s)", e.Corp)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// AssertionContext provides the target store assertions read from.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertWatermark:
			err = assertWatermark(actx, a)
		case AssertFilings:
			err = assertFilings(actx, a)
		case AssertBusiness:
			err = assertBusiness(actx, a)
		case AssertRowCount:
			err = assertRowCount(actx, a)
		case AssertActiveParties:
			err = assertActiveParties(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func assertWatermark(actx *AssertionContext, a Assertion) error {
	wm, err := actx.Store.Watermark(actx.Ctx, Scope, a.Corp)
	if err != nil {
		return err
	}
	if wm == nil {
		return &AssertionError{Type: a.Type, Corp: a.Corp, Expected: "status " + a.Status, Actual: "no watermark"}
	}
	if string(wm.Status) != a.Status {
		return &AssertionError{Type: a.Type, Corp: a.Corp, Expected: "status " + a.Status, Actual: "status " + string(wm.Status)}
	}
	if a.LastEvent != nil && (wm.LastProcessedEventID == nil || *wm.LastProcessedEventID != *a.LastEvent) {
		return &AssertionError{
			Type:     a.Type,
			Corp:     a.Corp,
			Expected: fmt.Sprintf("last event %d", *a.LastEvent),
			Actual:   "last event " + formatID(wm.LastProcessedEventID),
		}
	}
	return nil
}

func assertFilings(actx *AssertionContext, a Assertion) error {
	filings, err := actx.Store.Filings(actx.Ctx, filing.Identifier(a.Corp))
	if err != nil {
		return err
	}
	types := make([]string, len(filings))
	ids := make([][]int64, len(filings))
	for i, f := range filings {
		types[i] = f.FilingType
		ids[i] = f.ColinEventIDs
	}

	if !slices.Equal(types, a.Types) {
		return &AssertionError{
			Type:     a.Type,
			Corp:     a.Corp,
			Expected: fmt.Sprintf("filing types %v", a.Types),
			Actual:   fmt.Sprintf("filing types %v", types),
		}
	}
	for i, want := range a.EventIDs {
		if !slices.Equal(ids[i], want) {
			return &AssertionError{
				Type:     a.Type,
				Corp:     a.Corp,
				Expected: fmt.Sprintf("filing %d (%s) linked to events %v", i, types[i], want),
				Actual:   fmt.Sprintf("linked to events %v", ids[i]),
			}
		}
	}
	return nil
}

// assertBusiness matches expected fields against the business record's JSON
// form (subset semantics - only fields in Expect are checked).
func assertBusiness(actx *AssertionContext, a Assertion) error {
	biz, err := actx.Store.Business(actx.Ctx, filing.Identifier(a.Corp))
	if errors.Is(err, sql.ErrNoRows) {
		return &AssertionError{Type: a.Type, Corp: a.Corp, Expected: "a business", Actual: "business not found"}
	}
	if err != nil {
		return err
	}

	raw, err := json.Marshal(biz)
	if err != nil {
		return err
	}
	var actual map[string]any
	if err := json.Unmarshal(raw, &actual); err != nil {
		return err
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := a.Expect[key]
		value, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     a.Type,
				Corp:     a.Corp,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present", key),
			}
		}
		if !stateValuesEqual(expected, value) {
			return &AssertionError{
				Type:     a.Type,
				Corp:     a.Corp,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, value, value),
			}
		}
	}
	return nil
}

func assertRowCount(actx *AssertionContext, a Assertion) error {
	n, err := actx.Store.CountRows(actx.Ctx, a.Table)
	if err != nil {
		return err
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d rows in %s", *a.Count, a.Table),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

func assertActiveParties(actx *AssertionContext, a Assertion) error {
	roles, err := actx.Store.ActivePartyRoles(actx.Ctx, filing.Identifier(a.Corp))
	if err != nil {
		return err
	}
	var names []string
	for _, r := range roles {
		name := r.OrganizationName
		if name == "" {
			name = strings.TrimSpace(r.FirstName + " " + r.LastName)
		}
		names = append(names, name)
	}
	slices.Sort(names)
	names = slices.Compact(names)

	want := slices.Clone(a.Names)
	slices.Sort(want)
	if !slices.Equal(names, want) {
		return &AssertionError{
			Type:     a.Type,
			Corp:     a.Corp,
			Expected: fmt.Sprintf("active parties %v", want),
			Actual:   fmt.Sprintf("active parties %v", names),
		}
	}
	return nil
}

// checkReport compares a run report with the step's expected selection
// and the expected outcome of each listed corporation.
func checkReport(report *pipeline.RunReport, step RunStep) []string {
	var failures []string
	if step.Selected != nil && report.Selected != *step.Selected {
		failures = append(failures, fmt.Sprintf("selected %d corporations, want %d", report.Selected, *step.Selected))
	}

	expect := step.Expect
	byCorp := make(map[string]pipeline.CorpReport, len(report.Corps))
	for _, c := range report.Corps {
		byCorp[c.CorpNum] = c
	}

	corps := make([]string, 0, len(expect))
	for corp := range expect {
		corps = append(corps, corp)
	}
	sort.Strings(corps)

	for _, corp := range corps {
		want := expect[corp]
		got, ok := byCorp[corp]
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: not processed", corp))
			continue
		}
		if string(got.Status) != want.Status {
			failures = append(failures, fmt.Sprintf("%s: status %s, want %s", corp, got.Status, want.Status))
		}
		check := func(field string, want, got []int64) {
			if want != nil && !slices.Equal(want, got) {
				failures = append(failures, fmt.Sprintf("%s: %s %v, want %v", corp, field, got, want))
			}
		}
		check("filed", want.Filed, got.Filed)
		check("absorbed", want.Absorbed, got.Absorbed)
		check("replayed", want.Replayed, got.Replayed)
		skipped := make([]int64, len(got.Skipped))
		for i, s := range got.Skipped {
			skipped[i] = s.EventID
		}
		check("skipped", want.Skipped, skipped)
		if want.FailedAt != nil && (got.FailedEventID == nil || *got.FailedEventID != *want.FailedAt) {
			failures = append(failures, fmt.Sprintf("%s: failed at %s, want %d", corp, formatID(got.FailedEventID), *want.FailedAt))
		}
	}
	return failures
}

// stateValuesEqual compares a YAML-decoded expected value with a
// JSON-decoded actual one. Numbers compare by value.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	switch exp := expected.(type) {
	case int:
		f, ok := actual.(float64)
		return ok && f == float64(exp)
	case float64:
		f, ok := actual.(float64)
		return ok && f == exp
	case string:
		s, ok := actual.(string)
		return ok && s == exp
	case bool:
		b, ok := actual.(bool)
		return ok && b == exp
	}
	return reflect.DeepEqual(expected, actual)
}

func formatID(id *int64) string {
	if id == nil {
		return "none"
	}
	return fmt.Sprint(*id)
}
