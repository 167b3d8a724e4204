package cli

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pushplan/internal/config"
)

func TestParseCorrelations(t *testing.T) {
	corr, err := parseCorrelations([]string{"$cor0=ID:INTEGER, NAME:VARCHAR", "$cor1=K:BIGINT"})
	require.NoError(t, err)
	require.Len(t, corr, 2)

	row := corr["$cor0"]
	require.Len(t, row, 2)
	assert.Equal(t, "ID", row[0].Name)
	assert.Equal(t, "NAME", row[1].Name)
	assert.Len(t, corr["$cor1"], 1)

	none, err := parseCorrelations(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestParseCorrelations_Invalid(t *testing.T) {
	for _, spec := range []string{"$cor0", "=ID:INTEGER", "$cor0=", "$cor0=ID", "$cor0=ID:NOTATYPE"} {
		t.Run(spec, func(t *testing.T) {
			_, err := parseCorrelations([]string{spec})
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, ErrCodeInvalidInput, loadErr.Code)
		})
	}
}

func TestSelectRules(t *testing.T) {
	ruleSet, err := selectRules([]string{" ForwardTableScan", "", "ServerJoin "})
	require.NoError(t, err)
	require.Len(t, ruleSet, 2)

	all, err := selectRules(nil)
	require.NoError(t, err)
	assert.Greater(t, len(all), 2)

	_, err = selectRules([]string{"Bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown rule "Bogus"`)
}

func TestReadPlan(t *testing.T) {
	w := newWorkspace(t)
	path := w.writePlan(t, "plan.txt", physicalPlan)

	text, err := readPlan(path, nil)
	require.NoError(t, err)
	assert.Equal(t, physicalPlan, text)

	text, err = readPlan("-", strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)

	_, err = readPlan(filepath.Join(w.dir, "missing.txt"), nil)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadError(t *testing.T) {
	inner := errors.New("boom")
	err := &LoadError{Code: ErrCodeCatalog, Message: "catalog failed", Err: inner}
	assert.Equal(t, "E003: catalog failed: boom", err.Error())
	assert.ErrorIs(t, err, inner)

	assert.Equal(t, "E002: missing", (&LoadError{Code: ErrCodeNotFound, Message: "missing"}).Error())
}

func TestOpenStoreOptional(t *testing.T) {
	opts := &RootOptions{Config: &config.Config{}}

	st, err := openStore(opts, false)
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = openStore(opts, true)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNoDatabase, loadErr.Code)
}
