package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/pushplan/internal/ir"
)

func TestValidateValid(t *testing.T) {
	n := MustParse("AND(=($2, 'a'), >($3, 10))", Env{Input: testRow})

	result := Validate(n, testRow, nil)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)
}

func TestValidateProblems(t *testing.T) {
	tests := []struct {
		name    string
		node    Node
		problem string
	}{
		{
			name:    "out of range",
			node:    &InputRef{Index: 20, DataType: ir.TypeInteger},
			problem: "out of range",
		},
		{
			name:    "type disagrees with row",
			node:    &InputRef{Index: 3, DataType: ir.TypeVarchar},
			problem: `column "A_INTEGER" is INTEGER`,
		},
		{
			name:    "comparison arity",
			node:    &Call{Op: OpEquals, Operands: []Node{testRow.Ref(0)}, DataType: ir.TypeBoolean},
			problem: "= takes 2 operands",
		},
		{
			name:    "and arity",
			node:    &Call{Op: OpAnd, Operands: []Node{TrueLiteral()}, DataType: ir.TypeBoolean},
			problem: "AND needs at least 2 operands",
		},
		{
			name:    "unknown correlation",
			node:    &FieldAccess{Correlation: "$cor1", Index: 0, DataType: ir.TypeChar},
			problem: "unknown correlation variable $cor1",
		},
		{
			name:    "missing",
			node:    nil,
			problem: "missing expression",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.node, testRow, nil)
			assert.False(t, result.Valid)
			if assert.Len(t, result.Problems, 1) {
				assert.Contains(t, result.Problems[0], tt.problem)
			}
		})
	}
}
