package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/queryir"
)

func TestLoadDirectory(t *testing.T) {
	c, err := Load("testdata/catalog")
	require.NoError(t, err)

	names := make([]string, 0)
	for _, tbl := range c.Tables() {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"ATABLE", "DESCTABLE", "IDX_ATABLE"}, names)

	atable, err := c.Lookup("atable")
	require.NoError(t, err)
	assert.Equal(t, "[phoenix, ATABLE]", atable.QualifiedName())
	assert.Equal(t, float64(1000), atable.RowCount)
	assert.Equal(t, []int{0, 1}, atable.PKIndices())
	assert.False(t, atable.IsIndex())

	idx, err := c.Lookup("IDX_ATABLE")
	require.NoError(t, err)
	assert.True(t, idx.IsIndex())
	assert.Equal(t, DefaultFamily, idx.Columns[3].Family)
}

func TestLoadPath(t *testing.T) {
	dir, err := LoadPath("testdata/catalog")
	require.NoError(t, err)
	file, err := LoadPath("testdata/catalog/tables.cue")
	require.NoError(t, err)
	assert.Equal(t, len(dir.Tables()), len(file.Tables()))

	_, err = LoadPath("testdata/missing.cue")
	assert.ErrorContains(t, err, "catalog")
}

func TestTableLayout(t *testing.T) {
	c, err := Load("testdata/catalog")
	require.NoError(t, err)
	atable, err := c.Lookup("ATABLE")
	require.NoError(t, err)

	assert.Equal(t, queryir.Ascending(0, 1), atable.Collation())
	assert.Equal(t, 1, atable.PKPosition(1))
	assert.Equal(t, -1, atable.PKPosition(2))
	assert.Equal(t, []string{"A", "B"}, atable.Families([]int{0, 2, 5, 6}))
	assert.Equal(t, []string{"A"}, atable.Families([]int{1, 3}))
	assert.Empty(t, atable.Families([]int{0, 1}))

	row := atable.RowType()
	assert.Equal(t, "X_LONG", row[6].Name)
	assert.Equal(t, ir.TypeLong, row[6].Type)

	desc, err := c.Lookup("DESCTABLE")
	require.NoError(t, err)
	assert.Equal(t, queryir.Collation{{Index: 0, Direction: queryir.Desc, NullsLast: true}}, desc.Collation())
	assert.Equal(t, ir.Descending, desc.Columns[0].SortOrder)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{
			name: "no tables",
			src:  `other: 1`,
			msg:  "no tables declared",
		},
		{
			name: "missing pk",
			src:  `table: T: columns: [{name: "A", type: "INTEGER"}]`,
			msg:  "at least one pk column is required",
		},
		{
			name: "unknown type",
			src:  `table: T: columns: [{name: "A", type: "GEOMETRY", pk: true}]`,
			msg:  "unknown data type",
		},
		{
			name: "duplicate column",
			src:  `table: T: columns: [{name: "A", type: "INTEGER", pk: true}, {name: "a", type: "INTEGER"}]`,
			msg:  "duplicate column",
		},
		{
			name: "family on pk",
			src:  `table: T: columns: [{name: "A", type: "INTEGER", pk: true, family: "X"}]`,
			msg:  "pk columns have no family",
		},
		{
			name: "desc on non-pk",
			src:  `table: T: columns: [{name: "A", type: "INTEGER", pk: true}, {name: "B", type: "INTEGER", order: "desc"}]`,
			msg:  "only pk columns have a sort order",
		},
		{
			name: "missing parent",
			src:  `table: I: {parent: "NOPE", columns: [{name: "A", type: "INTEGER", pk: true}]}`,
			msg:  "parent table NOPE not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString("test.cue", tt.src)
			require.Error(t, err)
			var cerr *CompileError
			require.ErrorAs(t, err, &cerr)
			assert.Contains(t, cerr.Message, tt.msg)
		})
	}
}

func TestWithRowCounts(t *testing.T) {
	c, err := CompileString("test.cue", `table: T: {rows: 10, columns: [{name: "A", type: "INTEGER", pk: true}]}`)
	require.NoError(t, err)

	updated := c.WithRowCounts(map[string]float64{"T": 5000, "OTHER": 1})

	before, _ := c.Lookup("T")
	after, _ := updated.Lookup("T")
	assert.Equal(t, float64(10), before.RowCount, "original catalog must not change")
	assert.Equal(t, float64(5000), after.RowCount)
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(&Table{Name: "T"}, &Table{Name: "t"})
	assert.ErrorContains(t, err, "duplicate table")
}
