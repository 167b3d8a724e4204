package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRequiresDatabase(t *testing.T) {
	w := newWorkspace(t)

	_, _, err := w.run("stats")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatsSetListDelete(t *testing.T) {
	w := newWorkspace(t)

	out, _, err := w.runDB("stats")
	require.NoError(t, err)
	assert.Contains(t, out, "No table statistics recorded.")

	out, _, err = w.runDB("--format", "json", "stats", "set", "atable", "250")
	require.NoError(t, err)
	var set StatsRow
	decodeResponse(t, out, &set)
	assert.Equal(t, "ATABLE", set.Table)
	assert.Equal(t, 250.0, set.RowCount)
	assert.Equal(t, 1000.0, set.Catalog)
	assert.Equal(t, int64(1), set.Seq)

	out, _, err = w.runDB("--format", "json", "stats")
	require.NoError(t, err)
	var rows []StatsRow
	decodeResponse(t, out, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "ATABLE", rows[0].Table)
	assert.Equal(t, 250.0, rows[0].RowCount)

	out, _, err = w.runDB("stats", "delete", "ATABLE")
	require.NoError(t, err)
	assert.Contains(t, out, "ATABLE: statistics deleted")

	out, _, err = w.runDB("stats")
	require.NoError(t, err)
	assert.Contains(t, out, "No table statistics recorded.")
}

func TestStatsOverrideEstimates(t *testing.T) {
	w := newWorkspace(t)
	before := optimizeSession(t, w, physicalPlan)
	_, _, err := w.runDB("stats", "set", "BTABLE", "12")
	require.NoError(t, err)
	after := optimizeSession(t, w, physicalPlan)

	chosenCost := func(id string) string {
		out, _, err := w.runDB("--format", "json", "history", "show", id)
		require.NoError(t, err)
		var detail SessionDetail
		decodeResponse(t, out, &detail)
		require.NotEmpty(t, detail.Detail)
		return detail.Detail[0].Cost
	}
	assert.NotEqual(t, chosenCost(before), chosenCost(after))

	// explain does not read the database, so it keeps the catalog estimate
	planPath := w.writePlan(t, "plan.txt", physicalPlan)
	out, _, err := w.runDB("--format", "json", "explain", planPath)
	require.NoError(t, err)
	var explained ExplainResult
	decodeResponse(t, out, &explained)
	assert.Equal(t, 100.0, explained.Rows)
}

func TestStatsSetErrors(t *testing.T) {
	w := newWorkspace(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{name: "unknown table", args: []string{"stats", "set", "NOPE", "10"}, code: ErrCodeNotFound},
		{name: "negative rows", args: []string{"stats", "set", "--", "BTABLE", "-1"}, code: ErrCodeInvalidInput},
		{name: "not a number", args: []string{"stats", "set", "BTABLE", "lots"}, code: ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := w.runDB(append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			resp := decodeResponse(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
