package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/pushplan/internal/ir"
)

func TestInputsUsed(t *testing.T) {
	env := Env{Input: testRow, Correlations: map[string]RowType{"$cor0": testRow}}
	n := MustParse("AND(=($3, $cor0.$0), >($6, +($3, $5)))", env)

	assert.Equal(t, []int{3, 5, 6}, InputsUsed(n))
	assert.Equal(t, []int{0, 2, 3}, InputsUsed(testRow.Ref(2), nil, testRow.Ref(0), testRow.Ref(3)))
	assert.True(t, HasCorrelation(n))
	assert.False(t, HasCorrelation(testRow.Ref(1)))
}

func TestRemapAndShift(t *testing.T) {
	n := MustParse("=($2, +($3, 1))", Env{Input: testRow})

	remapped := Remap(n, map[int]int{2: 0, 3: 1})
	assert.Equal(t, "=($0, +($1, 1))", remapped.String())
	assert.Equal(t, "=($2, +($3, 1))", n.String(), "original must be untouched")

	shifted := Shift(n, 3, 10)
	assert.Equal(t, "=($2, +($13, 1))", shifted.String())
}

func TestAnalyzeJoin(t *testing.T) {
	joined := testRow.Concat(RowType{
		{Name: "ID", Type: ir.TypeChar},
		{Name: "NAME", Type: ir.TypeVarchar},
	})
	env := Env{Input: joined}

	t.Run("equi keys in either order", func(t *testing.T) {
		info := AnalyzeJoin(MustParse("AND(=($1, $9), =($10, $2))", env), len(testRow))
		assert.Equal(t, []int{1, 2}, info.LeftKeys)
		assert.Equal(t, []int{0, 1}, info.RightKeys)
		assert.True(t, info.IsEqui())
	})

	t.Run("remaining condition", func(t *testing.T) {
		info := AnalyzeJoin(MustParse("AND(=($1, $9), >($3, 5), =($0, $1))", env), len(testRow))
		assert.Equal(t, []int{1}, info.LeftKeys)
		assert.Equal(t, []int{0}, info.RightKeys)
		assert.Equal(t, "AND(>($3, 5), =($0, $1))", info.Remaining.String())
	})

	t.Run("cross join", func(t *testing.T) {
		info := AnalyzeJoin(TrueLiteral(), len(testRow))
		assert.Empty(t, info.LeftKeys)
		assert.Nil(t, info.Remaining)
	})
}
