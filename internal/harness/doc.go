// Package harness runs migration scenarios end to end.
//
// A scenario seeds a legacy ledger, runs the real pipeline over it one or
// more times against a fresh SQLite target, and checks the run reports and
// the final target state. The final state is also snapshotted for golden
// comparison.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	fixtures: [carry_forward]      # built-in ledgers
//	ledger:                        # extra rows, same shape as the fixtures
//	  corporations: [...]
//	  events: [...]
//	runs:
//	  - fail_events: [140]         # reading these events fails this run
//	    expect:
//	      CP0001234: {status: FAILED, filed: [100], failed_at: 140}
//	  - expect:
//	      CP0001234: {status: COMPLETED, filed: [140]}
//	assertions:
//	  - type: watermark
//	    corp: CP0001234
//	    status: COMPLETED
//	    last_event: 140
//	  - type: filings
//	    corp: CP0001234
//	    types: [incorporationApplication, annualReport]
//	    event_ids: [[100], [140]]
//
// # Assertion Types
//
//   - watermark: processing status and last processed event
//   - filings: filing types in filing order, optionally with linked events
//   - business: subset match on the business record's JSON fields
//   - row_count: number of rows in a target table
//   - active_parties: names of parties holding an active role
//
// # Deterministic Testing
//
// Runs use a stepping clock, fixed run ids ("run-1", "run-2", ...) and one
// worker, so reports and snapshots are identical across executions.
package harness
