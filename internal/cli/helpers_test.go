package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pushplan/internal/testutil"
)

const (
	sortedPlan = `ClientSort(collation=[[0, 1]])
  ToClient()
    TableScan(table=[[phoenix, ATABLE]])
`
	physicalPlan = `ToClient()
  TableScan(table=[[phoenix, BTABLE]], scanOrder=[FORWARD])
`
	unionPlan = `Union(all=[true])
  ToClient()
    TableScan(table=[[phoenix, BTABLE]])
  ToClient()
    TableScan(table=[[phoenix, BTABLE]])
`
)

// workspace is a temporary directory holding the shared test catalog and
// room for plans and a history database.
type workspace struct {
	dir     string
	catalog string
	db      string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "catalog")
	require.NoError(t, os.MkdirAll(catalogDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(catalogDir, "tables.cue"), []byte(testutil.CatalogSource()), 0644))
	return &workspace{
		dir:     dir,
		catalog: catalogDir,
		db:      filepath.Join(dir, "history.db"),
	}
}

func (w *workspace) writePlan(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(w.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

// run executes the root command with the workspace catalog.
func (w *workspace) run(args ...string) (string, string, error) {
	return execute(append([]string{"--catalog", w.catalog}, args...)...)
}

// runDB is run with the workspace history database configured.
func (w *workspace) runDB(args ...string) (string, string, error) {
	return w.run(append([]string{"--db", w.db}, args...)...)
}

func execute(args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// jsonResponse is CLIResponse with the payload left raw for decoding into
// the command's own result type.
type jsonResponse struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Error     *CLIError       `json:"error"`
	SessionID string          `json:"session_id"`
}

func decodeResponse(t *testing.T, out string, data any) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}
