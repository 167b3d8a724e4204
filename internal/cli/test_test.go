package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: compile_scan
description: Compile mode lowers the tree as written
mode: compile
plan: |
  ToClient()
    TableScan(table=[[phoenix, BTABLE]], scanOrder=[FORWARD])
assertions:
  - type: rows
    rows: 100
`

const failingScenario = `name: wrong_rows
description: Asserts a row count the catalog does not declare
mode: compile
plan: |
  ToClient()
    TableScan(table=[[phoenix, BTABLE]])
assertions:
  - type: rows
    rows: 5
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute("test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	out, _, err := execute("test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, _, err := execute("test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandPassing(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"compile_scan.yaml": passingScenario})

	out, _, err := execute("test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ compile_scan")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailing(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"compile_scan.yaml": passingScenario,
		"wrong_rows.yaml":   failingScenario,
	})

	out, _, err := execute("test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_rows")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"compile_scan.yaml": passingScenario,
		"wrong_rows.yaml":   failingScenario,
	})

	out, _, err := execute("--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"compile_scan.yaml": passingScenario,
		"wrong_rows.yaml":   failingScenario,
	})

	out, _, err := execute("test", dir, "--filter", "compile_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
	assert.NotContains(t, out, "wrong_rows")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"compile_scan.yaml": passingScenario})
	goldenPath := filepath.Join(dir, "golden", "compile_scan.golden")

	out, _, err := execute("test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")
	assert.FileExists(t, goldenPath)

	_, _, err = execute("test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	out, _, err = execute("test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestFindScenarioFilesSkipsGolden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"a.yaml": passingScenario, "notes.txt": "x"})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "b.yaml"), []byte("x"), 0644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "scan.golden"), goldenFilePath(filepath.Join("s", "scan.yaml")))
}
