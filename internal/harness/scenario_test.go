package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.cue"), []byte(`table: T: {columns: [{name: "A", type: "INTEGER", pk: true}]}`), 0644))

	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
catalog: cat.cue
stats:
  T: 7
correlations:
  $cor0:
    - {name: ID, type: integer}
rules: [ForwardTableScan, addscanlimit]
session: "s-1"
plan: |
  ToClient()
    TableScan(table=[[T]])
assertions:
  - type: rows
    rows: 7
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(dir, "cat.cue"), scenario.Catalog)
	assert.Equal(t, map[string]float64{"T": 7}, scenario.Stats)
	assert.Equal(t, []string{"ForwardTableScan", "addscanlimit"}, scenario.Rules)
	assert.Equal(t, "s-1", scenario.Session)
	assert.Equal(t, "ToClient()\n  TableScan(table=[[T]])\n", scenario.Plan)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, 7.0, *scenario.Assertions[0].Rows)

	corr, err := scenario.correlationTypes()
	require.NoError(t, err)
	require.Len(t, corr["$cor0"], 1)
	assert.Equal(t, "ID", corr["$cor0"][0].Name)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("nonexistent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nplan: x\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nplan: x\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing plan",
			content: "name: n\ndescription: d\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: "plan is required",
		},
		{
			name:    "missing assertions",
			content: "name: n\ndescription: d\nplan: x\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown mode",
			content: "name: n\ndescription: d\nplan: x\nmode: fast\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: `unknown mode "fast"`,
		},
		{
			name:    "rules in compile mode",
			content: "name: n\ndescription: d\nplan: x\nmode: compile\nrules: [ServerJoin]\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: "rules cannot be set in compile mode",
		},
		{
			name:    "unknown rule",
			content: "name: n\ndescription: d\nplan: x\nrules: [Magic]\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: `unknown rule "Magic"`,
		},
		{
			name:    "missing catalog",
			content: "name: n\ndescription: d\nplan: x\ncatalog: nope.cue\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: "catalog not found",
		},
		{
			name:    "negative stats",
			content: "name: n\ndescription: d\nplan: x\nstats: {T: -1}\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: "stats[T]: row count must be non-negative",
		},
		{
			name:    "bad correlation type",
			content: "name: n\ndescription: d\nplan: x\ncorrelations: {$cor0: [{name: A, type: WIDGET}]}\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: `unknown data type "WIDGET"`,
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nplan: x\nassertion: []\nassertions: [{type: rows, rows: 1}]\n",
			wantErr: "field assertion not found",
		},
		{
			name:    "malformed yaml",
			content: "name: [unclosed\n",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, t.TempDir(), tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_AssertionTypes(t *testing.T) {
	tests := []struct {
		name      string
		assertion string
		wantErr   string
	}{
		{"explain_is", "{type: explain_is, text: x}", ""},
		{"explain_is without text", "{type: explain_is}", "text is required for explain_is"},
		{"derivation", "{type: derivation, derivation: []}", ""},
		{"derivation missing", "{type: derivation}", "derivation is required"},
		{"cost_infinite", "{type: cost_infinite, expect: true}", ""},
		{"cost_infinite without expect", "{type: cost_infinite}", "expect is required for cost_infinite"},
		{"rows", "{type: rows, rows: 0}", ""},
		{"negative rows", "{type: rows, rows: -2}", "rows must be non-negative"},
		{"fragment_contains", "{type: fragment_contains, text: Scan}", ""},
		{"error_contains without text", "{type: error_contains}", "text is required for error_contains"},
		{"surface", "{type: surface, surface: {order: FORWARD}}", ""},
		{"surface missing", "{type: surface}", "surface is required"},
		{"replay_matches", "{type: replay_matches, expect: true}", ""},
		{"missing type", "{text: x}", "type is required"},
		{"unknown type", "{type: trace_contains}", `unknown assertion type "trace_contains"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "name: n\ndescription: d\nplan: x\nassertions: [" + tt.assertion + "]\n"
			_, err := LoadScenario(writeScenario(t, t.TempDir(), content))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	scenarioDir := t.TempDir()
	catalogDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(catalogDir, "cat.cue"), []byte("table: T: {}"), 0644))

	path := writeScenario(t, scenarioDir, `
name: n
description: d
catalog: cat.cue
plan: x
assertions: [{type: rows, rows: 1}]
`)

	scenario, err := LoadScenarioWithBasePath(path, catalogDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(catalogDir, "cat.cue"), scenario.Catalog)

	_, err = LoadScenario(path)
	assert.ErrorContains(t, err, "catalog not found")
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "explain_is", AssertExplainIs)
	assert.Equal(t, "cost_infinite", AssertCostInfinite)
	assert.Equal(t, "fragment_contains", AssertFragmentContains)
	assert.Equal(t, "replay_matches", AssertReplayMatches)
}

func TestLoadExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, scenario.Assertions)
		})
	}
}
