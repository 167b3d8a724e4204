package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/planerr"
	"github.com/roach88/pushplan/internal/queryir"
)

func TestToAggregate(t *testing.T) {
	tests := []struct {
		call     queryir.AggCall
		want     string
		wantType ir.DataType
	}{
		{queryir.AggCall{Func: "COUNT"}, "COUNT(1)", ir.TypeLong},
		{queryir.AggCall{Func: "count", Args: []int{2}}, "COUNT($2)", ir.TypeLong},
		{queryir.AggCall{Func: "MAX", Args: []int{5}}, "MAX($5)", ir.TypeDecimal},
		{queryir.AggCall{Func: "MIN", Args: []int{4}}, "MIN($4)", ir.TypeDate},
		{queryir.AggCall{Func: "MIN", Args: []int{3}, DataType: ir.TypeLong}, "MIN($3)", ir.TypeLong},
		{queryir.AggCall{Func: "SINGLE_VALUE", Args: []int{0}}, "SINGLE_VALUE($0)", ir.TypeChar},
	}
	for _, tt := range tests {
		t.Run(tt.call.String(), func(t *testing.T) {
			agg, err := ToAggregate(tt.call, rowResolver{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, agg.String())
			assert.Equal(t, tt.wantType, agg.DataType())
		})
	}
}

func TestToAggregateRejects(t *testing.T) {
	tests := []struct {
		name string
		call queryir.AggCall
		kind string
	}{
		{"distinct", queryir.AggCall{Func: "COUNT", Args: []int{1}, Distinct: true}, "DISTINCT aggregate"},
		{"unknown", queryir.AggCall{Func: "STDDEV_POP", Args: []int{3}}, "STDDEV_POP"},
		{"sum", queryir.AggCall{Func: "SUM", Args: []int{3}}, "SUM"},
		{"arity", queryir.AggCall{Func: "MAX"}, "MAX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToAggregate(tt.call, rowResolver{})
			require.Error(t, err)
			assert.True(t, planerr.IsUnsupported(err))
			assert.Equal(t, tt.kind, planerr.UnsupportedKind(err))
		})
	}
}

func TestIsAggregateSupported(t *testing.T) {
	assert.True(t, IsAggregateSupported("COUNT"))
	assert.True(t, IsAggregateSupported("max"))
	assert.True(t, IsAggregateSupported("MIN"))
	assert.False(t, IsAggregateSupported("SINGLE_VALUE"))
	assert.False(t, IsAggregateSupported("SUM"))

	assert.True(t, IsAggregateKnown("SINGLE_VALUE"))
	assert.False(t, IsAggregateKnown("AVG"))
}
