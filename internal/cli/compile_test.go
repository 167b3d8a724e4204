package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePhysicalPlan(t *testing.T) {
	w := newWorkspace(t)
	planPath := w.writePlan(t, "plan.txt", physicalPlan)

	out, _, err := w.run("compile", planPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Scan(table=[[phoenix, BTABLE] AS $0], families=[[0]], order=[FORWARD])")
	assert.Contains(t, out, "Table:     [phoenix, BTABLE] AS $0")
	assert.Contains(t, out, "Order:     FORWARD")
	assert.Contains(t, out, "Cost:")
}

func TestCompileJSON(t *testing.T) {
	w := newWorkspace(t)
	planPath := w.writePlan(t, "plan.txt", physicalPlan)

	out, _, err := w.run("--format", "json", "compile", planPath)
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, resp.SessionID, result.SessionID)
	assert.Equal(t, "[phoenix, BTABLE] AS $0", result.Surface.Table)
	assert.Equal(t, "FORWARD", result.Surface.Order)
	assert.Nil(t, result.Surface.Limit)
	assert.Contains(t, result.Fragment, "Scan(")
}

func TestCompileWritesOutputFile(t *testing.T) {
	w := newWorkspace(t)
	planPath := w.writePlan(t, "plan.txt", physicalPlan)
	outputPath := filepath.Join(w.dir, "fragment.json")

	out, _, err := w.run("compile", planPath, "-o", outputPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Output written to: "+outputPath)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	var desc map[string]any
	require.NoError(t, json.Unmarshal(data, &desc))
	assert.NotEmpty(t, desc)
}

func TestCompileOutputFileKeepsFormat(t *testing.T) {
	w := newWorkspace(t)
	planPath := w.writePlan(t, "plan.txt", physicalPlan)
	outputPath := filepath.Join(w.dir, "fragment.json")

	out, _, err := w.run("--format", "json", "compile", planPath, "--output", outputPath)
	require.NoError(t, err)
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "ok", resp.Status)
	assert.FileExists(t, outputPath)

	out, _, err = w.run("compile", planPath, "--output", outputPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Output written to: "+outputPath)
}

func TestCompileLogicalPlanHasNoPlan(t *testing.T) {
	w := newWorkspace(t)
	planPath := w.writePlan(t, "plan.txt", `LogicalJoin(condition=[=($0, $2)], joinType=[inner])
  TableScan(table=[[phoenix, BTABLE]])
  TableScan(table=[[phoenix, DTABLE]])
`)

	out, _, err := w.run("--format", "json", "compile", planPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoPlan, resp.Error.Code)
}

func TestCompileRecordsSession(t *testing.T) {
	w := newWorkspace(t)
	planPath := w.writePlan(t, "plan.txt", physicalPlan)

	_, _, err := w.runDB("compile", planPath)
	require.NoError(t, err)

	out, _, err := w.runDB("--format", "json", "history")
	require.NoError(t, err)
	var sessions []SessionSummary
	decodeResponse(t, out, &sessions)
	require.Len(t, sessions, 1)
	assert.Empty(t, sessions[0].Rules)
	assert.Equal(t, 0, sessions[0].Chosen)
}
