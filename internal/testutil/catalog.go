package testutil

import (
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pushplan/internal/catalog"
)

//go:embed testdata/catalog.cue
var catalogSource string

// CatalogSource is the CUE source of the shared test catalog.
//
// Tables:
//
//	ATABLE      (ORGANIZATION_ID, ENTITY_ID) key, families A and B, 1000 rows
//	IDX_ATABLE  index on ATABLE keyed by A_STRING
//	BTABLE      (ID) key, 100 rows
//	DTABLE      (K DESC) key, 100 rows
func CatalogSource() string { return catalogSource }

// Catalog compiles the shared test catalog, failing the test on error.
func Catalog(t testing.TB) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.CompileString("testutil/catalog.cue", catalogSource)
	require.NoError(t, err)
	return cat
}
