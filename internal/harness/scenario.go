package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/bcgov/colin-migrate/internal/testutil"
)

// Scenario defines a migration test scenario: a ledger, one or more
// pipeline runs over it, and assertions on the resulting target state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixtures names built-in ledgers to load before Ledger.
	// Known names: carry_forward, correction, continuation.
	Fixtures []string `yaml:"fixtures,omitempty"`

	// Ledger holds additional legacy rows.
	Ledger testutil.Ledger `yaml:"ledger,omitempty"`

	// Runs are executed in order against the same target database.
	Runs []RunStep `yaml:"runs"`

	// Assertions validate the final target state after the last run.
	Assertions []Assertion `yaml:"assertions"`
}

// RunStep is one pipeline run.
type RunStep struct {
	// Name labels the run in error messages. Defaults to "run N".
	Name string `yaml:"name,omitempty"`

	// Corps restricts the run to these corporation numbers.
	Corps []string `yaml:"corps,omitempty"`

	// Limit is the batch limit. Zero processes every eligible corporation.
	Limit int `yaml:"limit,omitempty"`

	// FailEvents makes reading these events fail, as a broken connection
	// would, so the corporation stops there.
	FailEvents []int64 `yaml:"fail_events,omitempty"`

	// Reset releases these corporations before the run.
	Reset []string `yaml:"reset,omitempty"`

	// Selected, when set, is the expected number of corporations selected.
	Selected *int `yaml:"selected,omitempty"`

	// Expect checks the run report, keyed by corporation number.
	Expect map[string]CorpExpect `yaml:"expect,omitempty"`
}

// CorpExpect is the expected outcome of one corporation in a run report.
// Nil lists are not checked; an empty list expects none.
type CorpExpect struct {
	Status   string  `yaml:"status"`
	Filed    []int64 `yaml:"filed,omitempty"`
	Absorbed []int64 `yaml:"absorbed,omitempty"`
	Replayed []int64 `yaml:"replayed,omitempty"`
	Skipped  []int64 `yaml:"skipped,omitempty"`
	FailedAt *int64  `yaml:"failed_at,omitempty"`
}

// Assertion validates the final target state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "watermark": corporation status and last processed event
	// - "filings": filing types and legacy event links, in filing order
	// - "business": subset match on the business record
	// - "row_count": number of rows in a target table
	// - "active_parties": names of parties holding an active role
	Type string `yaml:"type"`

	// Corp is the corporation number (all types but row_count).
	Corp string `yaml:"corp,omitempty"`

	// Status and LastEvent are used by watermark.
	Status    string `yaml:"status,omitempty"`
	LastEvent *int64 `yaml:"last_event,omitempty"`

	// Types and EventIDs are used by filings. EventIDs, when given, lists
	// the legacy event ids of each filing.
	Types    []string  `yaml:"types,omitempty"`
	EventIDs [][]int64 `yaml:"event_ids,omitempty"`

	// Expect is the subset of business fields to match (business), using
	// the record's JSON field names.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Table and Count are used by row_count.
	Table string `yaml:"table,omitempty"`
	Count *int   `yaml:"count,omitempty"`

	// Names is used by active_parties, in any order.
	Names []string `yaml:"names,omitempty"`
}

// Assertion type constants.
const (
	AssertWatermark     = "watermark"
	AssertFilings       = "filings"
	AssertBusiness      = "business"
	AssertRowCount      = "row_count"
	AssertActiveParties = "active_parties"
)

var fixtures = map[string]func() testutil.Ledger{
	"carry_forward": testutil.CarryForwardLedger,
	"correction":    testutil.CorrectionLedger,
	"continuation":  testutil.ContinuationLedger,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	for _, f := range s.Fixtures {
		if _, ok := fixtures[f]; !ok {
			return fmt.Errorf("unknown fixture %q (known: %v)", f, FixtureNames())
		}
	}
	if len(s.Fixtures) == 0 && len(s.Ledger.Corporations) == 0 {
		return fmt.Errorf("a fixture or ledger corporations are required")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertWatermark, AssertFilings, AssertBusiness, AssertActiveParties:
		if a.Corp == "" {
			return fmt.Errorf("%s requires corp", a.Type)
		}
	case AssertRowCount:
		if a.Table == "" || a.Count == nil {
			return fmt.Errorf("row_count requires table and count")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}

	switch a.Type {
	case AssertWatermark:
		if a.Status == "" {
			return fmt.Errorf("watermark requires status")
		}
	case AssertFilings:
		if a.EventIDs != nil && len(a.EventIDs) != len(a.Types) {
			return fmt.Errorf("filings has %d types but %d event id lists", len(a.Types), len(a.EventIDs))
		}
	case AssertBusiness:
		if len(a.Expect) == 0 {
			return fmt.Errorf("business requires expect")
		}
	}
	return nil
}

// ledgers returns the fixtures in load order, Ledger last.
func (s *Scenario) ledgers() []testutil.Ledger {
	var out []testutil.Ledger
	for _, name := range s.Fixtures {
		out = append(out, fixtures[name]())
	}
	if len(s.Ledger.Corporations) > 0 || len(s.Ledger.Events) > 0 {
		out = append(out, s.Ledger)
	}
	return out
}

// FixtureNames lists the built-in fixtures.
func FixtureNames() []string {
	names := make([]string, 0, len(fixtures))
	for n := range fixtures {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
