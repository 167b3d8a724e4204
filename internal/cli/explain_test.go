package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainText(t *testing.T) {
	w := newWorkspace(t)
	planPath := w.writePlan(t, "plan.txt", physicalPlan)

	out, _, err := w.run("explain", planPath)
	require.NoError(t, err)

	assert.Contains(t, out, "TableScan(table=[[phoenix, BTABLE]]")
	assert.Contains(t, out, "OPERATOR")
	assert.Contains(t, out, "Total: 100 rows")
}

func TestExplainJSON(t *testing.T) {
	w := newWorkspace(t)
	planPath := w.writePlan(t, "plan.txt", physicalPlan)

	out, _, err := w.run("--format", "json", "explain", planPath)
	require.NoError(t, err)

	var result ExplainResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 100.0, result.Rows)
	assert.NotEmpty(t, result.Fingerprint)
	require.Len(t, result.Operators, 2)
	assert.Equal(t, "ToClient", result.Operators[0].Name)
	assert.Equal(t, 0, result.Operators[0].Depth)
	assert.Equal(t, "TableScan", result.Operators[1].Name)
	assert.Equal(t, 1, result.Operators[1].Depth)
}

func TestExplainFromStdin(t *testing.T) {
	w := newWorkspace(t)

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(physicalPlan))
	cmd.SetArgs([]string{"--catalog", w.catalog, "explain", "-"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "BTABLE")
}

func TestExplainFingerprintIsStable(t *testing.T) {
	w := newWorkspace(t)
	planPath := w.writePlan(t, "plan.txt", physicalPlan)

	var first, second ExplainResult
	out, _, err := w.run("--format", "json", "explain", planPath)
	require.NoError(t, err)
	decodeResponse(t, out, &first)
	out, _, err = w.run("--format", "json", "explain", planPath)
	require.NoError(t, err)
	decodeResponse(t, out, &second)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestExplainErrors(t *testing.T) {
	w := newWorkspace(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{
			name: "missing plan",
			args: []string{"--catalog", w.catalog, "explain", filepath.Join(w.dir, "missing.txt")},
			code: ErrCodeNotFound,
		},
		{
			name: "missing catalog",
			args: []string{"--catalog", filepath.Join(w.dir, "nowhere"), "explain", w.writePlan(t, "ok.txt", physicalPlan)},
			code: ErrCodeNotFound,
		},
		{
			name: "unparsable plan",
			args: []string{"--catalog", w.catalog, "explain", w.writePlan(t, "bad.txt", "NoSuchOperator()\n")},
			code: ErrCodePlanParse,
		},
		{
			name: "bad correlation",
			args: []string{"--catalog", w.catalog, "explain", "--correlation", "$cor0", w.writePlan(t, "ok2.txt", physicalPlan)},
			code: ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
