package harness

import "github.com/bcgov/colin-migrate/internal/pipeline"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every run expectation and assertion matched.
	Pass bool `json:"pass"`

	// Reports holds the report of each run, in order.
	Reports []*pipeline.RunReport `json:"reports"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the final target state, for golden comparison.
	Snapshot Snapshot `json:"snapshot"`
}

// Snapshot is the target state of every corporation in the ledger.
type Snapshot struct {
	Scenario string         `json:"scenario"`
	Corps    []CorpSnapshot `json:"corps"`
}

// CorpSnapshot is the migrated state of one corporation.
type CorpSnapshot struct {
	CorpNum   string           `json:"corp_num"`
	Status    string           `json:"status"`
	LastEvent *int64           `json:"last_event"`
	Skipped   []int64          `json:"skipped"`
	LegalName string           `json:"legal_name,omitempty"`
	State     string           `json:"state,omitempty"`
	Filings   []FilingSnapshot `json:"filings"`
}

// FilingSnapshot is one stored filing without volatile columns.
type FilingSnapshot struct {
	Type     string  `json:"type"`
	Status   string  `json:"status"`
	EventIDs []int64 `json:"event_ids"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
