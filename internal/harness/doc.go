// Package harness provides scenario testing for the planner.
//
// A scenario names a catalog, an operator tree in explain form and
// assertions about what the planner makes of it. The harness runs the tree
// through the real engine and rule set, records the session in an
// in-memory store, and checks the outcome.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog: catalog.cue          # optional, relative to the scenario file
//	stats: {ATABLE: 50}           # optional row count overrides
//	mode: optimize                # or compile
//	rules: [ForwardTableScan]     # optional, defaults to every rule
//	plan: |
//	  ClientSort(collation=[[0, 1]])
//	    ToClient()
//	      TableScan(table=[[phoenix, ATABLE]])
//	assertions:
//	  - type: explain_is
//	    text: |
//	      ToClient()
//	        TableScan(table=[[phoenix, ATABLE]], scanOrder=[FORWARD])
//	  - type: derivation
//	    derivation: [ForwardTableScan]
//
// # Assertion Types
//
//   - explain_is: the chosen tree renders exactly as text
//   - derivation: the rules that produced the chosen tree, in order
//   - cost_infinite: whether the root tree has infinite cost
//   - rows: the row estimate of the chosen tree
//   - fragment_contains: a substring of the chosen fragment's rendering
//   - error_contains: a substring of the session error
//   - surface: table, order, limit, filter, families and projection of
//     the chosen fragment
//   - replay_matches: whether replaying the recorded session agrees
//
// # Deterministic Testing
//
// Every run uses a fixed session ID (testutil.FixedSessionGenerator), a
// deterministic clock (testutil.DeterministicClock) and a fresh in-memory
// SQLite store, so the same scenario always produces the same snapshot for
// golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/ordered_scan.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
