package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pushplan/internal/ir"
)

func TestParseRoundTrip(t *testing.T) {
	env := Env{
		Input:        testRow,
		Correlations: map[string]RowType{"$cor0": testRow},
	}
	inputs := []string{
		"=($2, 'a')",
		"CAST($6):INTEGER",
		"AND(>($3, 10), IS NOT NULL($2))",
		"OR(<($5, 1.25), >=($8, 1.5E+00))",
		"+($4, 3)",
		"-($4, $4)",
		"*($3, $6)",
		"/($5, 2):BIGINT",
		"=($0, $cor0.$1)",
		"<>($2, null:VARCHAR)",
		"=($4, DATE '2020-01-02')",
		"<($7, TIMESTAMP '2020-01-02 03:04:05')",
		"LIKE($2, 'a%')",
		"NOT(=($2, 'it''s'))",
		"=($3, -7)",
		"IS NULL($1)",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			n, err := Parse(in, env)
			require.NoError(t, err)
			assert.Equal(t, in, n.String())
		})
	}
}

func TestParseTypes(t *testing.T) {
	env := Env{Input: testRow}

	n := MustParse("=($3, 4000000000)", env)
	lit := n.(*Call).Operands[1].(*Literal)
	assert.Equal(t, ir.TypeLong, lit.Type())

	n = MustParse("+($3, $6)", env)
	assert.Equal(t, ir.TypeLong, n.Type())

	n = MustParse("CAST($5):DATE", env)
	assert.Equal(t, ir.TypeDate, n.Type())
	assert.Equal(t, ir.TypeDecimal, n.(*Call).Operands[0].Type())
}

func TestParseErrors(t *testing.T) {
	env := Env{Input: testRow}
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"out of range", "=($42, 1)", "out of range"},
		{"cast without type", "CAST($0)", "requires a :TYPE"},
		{"unknown operator", "FROB($0)", "unknown operator"},
		{"unterminated string", "=($2, 'abc)", "unexpected"},
		{"trailing input", "$0 $1", "after expression"},
		{"unknown correlation", "=($0, $cor9.$0)", "unknown correlation"},
		{"bad type", "CAST($0):GEOMETRY", "unknown data type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, env)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
