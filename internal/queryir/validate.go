package queryir

import (
	"fmt"
)

// ValidationResult contains the structural problems found in an expression.
//
// A valid expression references only columns of its input row type, reads
// columns at the type the row type declares, and applies every operator to
// the number of operands it takes. Validation does not decide whether an
// expression can be pushed to the store; that is the translator's question.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems lists each violation found, in traversal order.
	Problems []string
}

// Validate checks n against the input row type and the correlation row
// types it may reference.
//
// Validate is a pure function with no side effects.
func Validate(n Node, input RowType, correlations map[string]RowType) ValidationResult {
	v := &validator{input: input, correlations: correlations}
	v.validate(n)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	input        RowType
	correlations map[string]RowType
	problems     []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validate(n Node) {
	switch x := n.(type) {
	case nil:
		v.addProblem("missing expression")
	case *InputRef:
		if x.Index < 0 || x.Index >= len(v.input) {
			v.addProblem("input reference $%d out of range (input has %d columns)", x.Index, len(v.input))
			return
		}
		if want := v.input[x.Index].Type; want != x.DataType {
			v.addProblem("input reference $%d typed %s, column %q is %s", x.Index, x.DataType, v.input[x.Index].Name, want)
		}
	case *Literal:
		if x.Value == nil {
			v.addProblem("literal without value")
		}
	case *FieldAccess:
		row, ok := v.correlations[x.Correlation]
		if !ok {
			v.addProblem("unknown correlation variable %s", x.Correlation)
			return
		}
		if x.Index < 0 || x.Index >= len(row) {
			v.addProblem("field access %s out of range", x)
		}
	case *Call:
		v.validateArity(x)
		for _, op := range x.Operands {
			v.validate(op)
		}
	default:
		v.addProblem("unknown expression %T", n)
	}
}

func (v *validator) validateArity(c *Call) {
	n := len(c.Operands)
	switch {
	case c.Op == OpAnd || c.Op == OpOr:
		if n < 2 {
			v.addProblem("%s needs at least 2 operands, got %d", c.Op, n)
		}
	case c.Op == OpNot || c.Op == OpCast || c.Op == OpIsNull || c.Op == OpIsNotNull:
		if n != 1 {
			v.addProblem("%s takes 1 operand, got %d", c.Op, n)
		}
	case c.Op.IsComparison() || c.Op == OpLike:
		if n != 2 {
			v.addProblem("%s takes 2 operands, got %d", c.Op, n)
		}
	case c.Op.IsArithmetic():
		if n < 2 {
			v.addProblem("%s needs at least 2 operands, got %d", c.Op, n)
		}
	case c.Op == OpCase:
		if n < 3 || n%2 == 0 {
			v.addProblem("CASE takes WHEN/THEN pairs and an ELSE, got %d operands", n)
		}
	}
}
