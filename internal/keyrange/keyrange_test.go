package keyrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/queryir"
)

var atable = &catalog.Table{
	Schema:   "phoenix",
	Name:     "ATABLE",
	RowCount: 1000,
	Columns: []catalog.Column{
		{Name: "ORGANIZATION_ID", Type: ir.TypeChar, PK: true},
		{Name: "ENTITY_ID", Type: ir.TypeChar, PK: true},
		{Name: "A_STRING", Type: ir.TypeVarchar, Family: "A"},
		{Name: "A_INTEGER", Type: ir.TypeInteger, Family: "A"},
	},
}

var descTable = &catalog.Table{
	Name: "DESCTABLE",
	Columns: []catalog.Column{
		{Name: "K", Type: ir.TypeInteger, PK: true, SortOrder: ir.Descending},
		{Name: "V", Type: ir.TypeVarchar, Family: "0"},
	},
}

func parse(t *testing.T, table *catalog.Table, s string) queryir.Node {
	t.Helper()
	n, err := queryir.Parse(s, queryir.Env{
		Input:        table.RowType(),
		Correlations: map[string]queryir.RowType{"$cor0": table.RowType()},
	})
	require.NoError(t, err)
	return n
}

func TestPush(t *testing.T) {
	tests := []struct {
		name        string
		table       *catalog.Table
		filter      string
		ranges      string
		bound       int
		pointLookup bool
		remainder   string
	}{
		{
			name:        "full key point lookup",
			table:       atable,
			filter:      "AND(=($0, 'o1'), =($1, 'e1'))",
			ranges:      "['o1', 'e1']",
			bound:       2,
			pointLookup: true,
		},
		{
			name:      "prefix equality",
			table:     atable,
			filter:    "AND(=($0, 'o1'), =($2, 'x'))",
			ranges:    "['o1']",
			bound:     1,
			remainder: "=($2, 'x')",
		},
		{
			name:   "reversed operands",
			table:  atable,
			filter: "<('o5', $0)",
			ranges: "[('o5' - *)]",
			bound:  1,
		},
		{
			name:   "range intersection",
			table:  atable,
			filter: "AND(>=($0, 'a'), <($0, 'm'), >($0, 'c'))",
			ranges: "[('c' - 'm')]",
			bound:  1,
		},
		{
			name:      "range stops the prefix",
			table:     atable,
			filter:    "AND(>($0, 'a'), =($1, 'e1'))",
			ranges:    "[('a' - *)]",
			bound:     1,
			remainder: "=($1, 'e1')",
		},
		{
			name:      "non-leading key column",
			table:     atable,
			filter:    "=($1, 'e1')",
			ranges:    "EVERYTHING",
			remainder: "=($1, 'e1')",
		},
		{
			name:      "not equals is residual",
			table:     atable,
			filter:    "<>($0, 'o1')",
			ranges:    "EVERYTHING",
			remainder: "<>($0, 'o1')",
		},
		{
			name:      "column compared to column",
			table:     atable,
			filter:    "=($0, $1)",
			ranges:    "EVERYTHING",
			remainder: "=($0, $1)",
		},
		{
			name:   "contradiction",
			table:  atable,
			filter: "AND(=($0, 'a'), =($0, 'b'))",
			ranges: "DEGENERATE",
			bound:  1,
		},
		{
			name:        "folded constant on a descending key",
			table:       descTable,
			filter:      "=($0, +(1, 2))",
			ranges:      "[3]",
			bound:       1,
			pointLookup: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Push(tt.table, parse(t, tt.table, tt.filter), nil)
			assert.Equal(t, tt.ranges, res.Ranges.String())
			assert.Equal(t, tt.bound, res.Ranges.BoundPKCount())
			assert.Equal(t, tt.pointLookup, res.Ranges.IsPointLookup())
			if tt.remainder == "" {
				assert.Nil(t, res.Remainder)
			} else {
				require.NotNil(t, res.Remainder)
				assert.Equal(t, tt.remainder, res.Remainder.String())
			}
		})
	}
}

func TestPushCorrelated(t *testing.T) {
	filter := parse(t, atable, "AND(=($0, $cor0.$0), =($1, 'e1'))")

	static := Push(atable, filter, SampleBinder)
	assert.True(t, static.Ranges.IsPointLookup())
	assert.Equal(t, "['a', 'e1']", static.Ranges.String())
	assert.Nil(t, static.Remainder)

	unbound := Push(atable, filter, nil)
	assert.True(t, unbound.Ranges.IsEverything())
	assert.False(t, unbound.Ranges.Equal(static.Ranges))
	require.NotNil(t, unbound.Remainder)
	assert.Equal(t, filter.String(), unbound.Remainder.String())
}

func TestPushNoFilter(t *testing.T) {
	res := Push(atable, nil, nil)
	assert.True(t, res.Ranges.IsEverything())
	assert.Equal(t, 2, res.Ranges.PKCount)
	assert.Nil(t, res.Remainder)
}

func TestRange(t *testing.T) {
	assert.True(t, Point(ir.DLong(1)).IsPoint())
	assert.False(t, Everything.IsPoint())
	assert.True(t, Everything.IsEverything())

	empty := Range{Lower: Bound{Value: ir.DLong(5)}, Upper: Bound{Value: ir.DLong(5), Inclusive: true}}
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "(5 - 5]", empty.String())
}
