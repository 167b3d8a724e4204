package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pushplan/internal/ir"
)

// Snapshot captures what a scenario chose, in a form that is stable across
// runs. Costs are left out so retuning the cost model only breaks the
// snapshots whose choice actually changed.
type Snapshot struct {
	ScenarioName string
	SessionID    string
	Candidates   int
	Chosen       int
	Explain      string
	Derivation   []string
	Fragment     string
	Error        string
}

// toValue converts a Snapshot to an ir.Value for canonical serialization.
func (s *Snapshot) toValue() ir.Value {
	obj := ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"session_id":    ir.String(s.SessionID),
		"candidates":    ir.Int(s.Candidates),
		"chosen":        ir.Int(s.Chosen),
	}
	if s.Explain != "" {
		obj["explain"] = ir.String(s.Explain)
		obj["derivation"] = ir.Strings(s.Derivation...)
		obj["fragment"] = ir.String(s.Fragment)
	}
	if s.Error != "" {
		obj["error"] = ir.String(s.Error)
	}
	return obj
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(scenarioName string, result *Result) *Snapshot {
	return &Snapshot{
		ScenarioName: scenarioName,
		SessionID:    result.SessionID,
		Candidates:   len(result.Candidates),
		Chosen:       result.Chosen,
		Explain:      result.Explain,
		Derivation:   result.Derivation,
		Fragment:     result.Fragment,
		Error:        result.Error,
	}
}

// SnapshotJSON renders the snapshot of result as golden file content:
// indented JSON with canonical key order and a trailing newline.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	data, err := ir.MarshalIndent(NewSnapshot(scenarioName, result).toValue())
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Assertion failures are
// reported through t; a snapshot mismatch fails t via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
