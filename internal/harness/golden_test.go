package harness

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// First run with -update to create golden files:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"ordered_scan", "compile_scan"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestSnapshotJSON_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "server_join.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := SnapshotJSON(scenario.Name, first)
	require.NoError(t, err)
	b, err := SnapshotJSON(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSnapshot_NoPlan(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "union_unsupported.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	data, err := SnapshotJSON(scenario.Name, result)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, float64(-1), got["chosen"])
	assert.Contains(t, got["error"], "first unsupported: Union")
	assert.NotContains(t, got, "explain")
	assert.NotContains(t, got, "fragment")
}

func TestSnapshot_OmitsCosts(t *testing.T) {
	result, err := Run(sortedScanScenario())
	require.NoError(t, err)

	data, err := SnapshotJSON("sorted_scan", result)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "cpu")
	assert.Equal(t, byte('\n'), data[len(data)-1])
}
