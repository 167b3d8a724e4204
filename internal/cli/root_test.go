package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pushplan", cmd.Use)
	assert.Contains(t, cmd.Long, "range scans")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"explain", "compile", "optimize", "validate", "test", "history", "stats"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestSubcommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"history", "show"},
		{"history", "replay"},
		{"stats", "set"},
		{"stats", "delete"},
	} {
		subCmd, _, err := cmd.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[1], subCmd.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	catalogFlag := cmd.PersistentFlags().Lookup("catalog")
	require.NotNil(t, catalogFlag)
	assert.Equal(t, "catalog", catalogFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)

	for _, name := range []string{"workers", "max-candidates", "max-rule-steps", "phoenix-factor", "server-factor", "client-merge-factor"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestOptimizeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	optimizeCmd, _, err := cmd.Find([]string{"optimize"})
	require.NoError(t, err)

	assert.NotNil(t, optimizeCmd.Flags().Lookup("rules"))
	assert.NotNil(t, optimizeCmd.Flags().Lookup("correlation"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute("--format", "xml", "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidConfigValue(t *testing.T) {
	w := newWorkspace(t)
	_, _, err := w.run("--max-candidates=-1", "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "max_candidates")
}

func TestConfigFileSetsCatalog(t *testing.T) {
	w := newWorkspace(t)
	cfgPath := filepath.Join(w.dir, "pushplan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("catalog: "+w.catalog+"\noutput: json\n"), 0644))

	out, _, err := execute("--config", cfgPath, "validate")
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, result.Tables, 4)
}
