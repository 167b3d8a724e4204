package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(n int64) *int64 { return &n }

func runSorted(t *testing.T) *Result {
	t.Helper()
	result, err := Run(sortedScanScenario())
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	return result
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertRows,
		Expected: "3 rows",
		Actual:   "1000 rows",
		Candidates: []CandidateSummary{
			{Ordinal: 0, Cost: "{inf}", Derivation: []string{}},
			{Ordinal: 1, Cost: "{1000 rows, 1000 cpu, 0 io}", Derivation: []string{"ForwardTableScan"}},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: rows\n")
	assert.Contains(t, msg, "  Expected: 3 rows\n")
	assert.Contains(t, msg, "  Actual: 1000 rows\n")
	assert.Contains(t, msg, "Candidates:\n")
	assert.Contains(t, msg, "  [1] {1000 rows, 1000 cpu, 0 io} [ForwardTableScan]\n")
}

func TestAssertionError_NoCandidates(t *testing.T) {
	err := &AssertionError{Type: AssertExplainIs, Expected: "a", Actual: "b"}
	assert.NotContains(t, err.Error(), "Candidates")
}

func TestEvaluateAssertions_Passing(t *testing.T) {
	result := runSorted(t)

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertExplainIs, Text: result.Explain},
		{Type: AssertDerivation, Derivation: []string{"ForwardTableScan"}},
		{Type: AssertCostInfinite, Expect: boolPtr(false)},
		{Type: AssertRows, Rows: floatPtr(1000)},
		{Type: AssertFragmentContains, Text: "[phoenix, ATABLE]"},
		{Type: AssertSurface, Surface: &SurfaceExpect{Order: "FORWARD", Projected: boolPtr(false)}},
	}, nil)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failing(t *testing.T) {
	result := runSorted(t)

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"explain", Assertion{Type: AssertExplainIs, Text: "ToClient()\n"}, "Assertion failed: explain_is"},
		{"derivation", Assertion{Type: AssertDerivation, Derivation: []string{"ReverseTableScan"}}, "[ReverseTableScan]"},
		{"rows", Assertion{Type: AssertRows, Rows: floatPtr(999)}, "999 rows"},
		{"fragment", Assertion{Type: AssertFragmentContains, Text: "HashJoin("}, `fragment containing "HashJoin("`},
		{"error", Assertion{Type: AssertErrorContains, Text: "x"}, "no error"},
		{"surface order", Assertion{Type: AssertSurface, Surface: &SurfaceExpect{Order: "REVERSE"}}, `order: want "REVERSE", got "FORWARD"`},
		{"surface limit", Assertion{Type: AssertSurface, Surface: &SurfaceExpect{Limit: int64Ptr(5)}}, `limit: want "5", got "none"`},
		{"surface families", Assertion{Type: AssertSurface, Surface: &SurfaceExpect{Families: []string{"A"}}}, `families: want "A", got "A,B"`},
		{"unknown type", Assertion{Type: "trace_contains"}, `assertion[0]: unknown assertion type "trace_contains"`},
		{"replay without engine", Assertion{Type: AssertReplayMatches, Expect: boolPtr(true)}, "replay_matches requires an engine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(result, []Assertion{tt.assertion}, nil)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestEvaluateAssertions_NoChosenPlan(t *testing.T) {
	result := NewResult()
	result.Error = "no plan for session s: 1 candidates"

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertExplainIs, Text: "x"},
		{Type: AssertRows, Rows: floatPtr(1)},
		{Type: AssertCostInfinite, Expect: boolPtr(true)},
		{Type: AssertErrorContains, Text: "no plan for session"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Actual: no plan: no plan for session s")
	assert.Contains(t, errs[1], "Assertion failed: rows")
	assert.Contains(t, errs[2], "no candidates")
}

func TestEvaluateAssertions_ReplayFromRun(t *testing.T) {
	scenario := sortedScanScenario()
	scenario.Assertions = []Assertion{
		{Type: AssertReplayMatches, Expect: boolPtr(true)},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	scenario.Assertions = []Assertion{
		{Type: AssertReplayMatches, Expect: boolPtr(false)},
	}
	result, err = Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "replay match = false")
}

func TestApproxEqual(t *testing.T) {
	assert.True(t, approxEqual(1500, 1500.0000000001))
	assert.True(t, approxEqual(0, 0))
	assert.False(t, approxEqual(1, 1.001))
	assert.False(t, approxEqual(10, 15))
}
