// Package translate converts algebra scalar expressions (queryir.Node) into
// executable expressions (expression.Expression).
//
// Dispatch is a closed switch over the node variants and operators. Anything
// outside the supported set is rejected with an unsupported-construct error
// instead of being silently dropped, and IsSupported answers the same
// question up front for planner rules.
//
// Arithmetic follows a fixed coercion lattice: decimal beats floating point
// beats integral; a date/time operand turns the operation into date or
// timestamp arithmetic. The result is always cast back to the type the
// algebra inferred for the call.
package translate

import (
	"fmt"

	"github.com/roach88/pushplan/internal/expression"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/planerr"
	"github.com/roach88/pushplan/internal/queryir"
)

// Resolver maps positional references to executable column expressions in
// the scope of the operator being lowered.
type Resolver interface {
	// Column resolves input column index.
	Column(index int) (expression.Expression, error)
	// Correlated resolves field index of the outer row bound to name.
	Correlated(name string, index int, t ir.DataType) (expression.Expression, error)
}

// ToExpression translates n against resolver. A nil resolver means there is
// no input row: any column reference fails.
func ToExpression(n queryir.Node, resolver Resolver) (expression.Expression, error) {
	switch x := n.(type) {
	case *queryir.InputRef:
		if resolver == nil {
			return nil, fmt.Errorf("input reference %s without an input row", x)
		}
		return resolver.Column(x.Index)
	case *queryir.Literal:
		return &expression.Literal{Value: x.Value, Type: x.DataType}, nil
	case *queryir.FieldAccess:
		if resolver == nil {
			return nil, fmt.Errorf("correlated reference %s without a binding", x)
		}
		return resolver.Correlated(x.Correlation, x.Index, x.DataType)
	case *queryir.Call:
		return translateCall(x, resolver)
	case nil:
		return nil, fmt.Errorf("missing expression")
	}
	return nil, planerr.Unsupported(fmt.Sprintf("%T", n), "unknown expression kind %T", n)
}

func translateCall(c *queryir.Call, resolver Resolver) (expression.Expression, error) {
	switch c.Op {
	case queryir.OpAnd, queryir.OpOr:
		operands, err := translateAll(c.Operands, resolver)
		if err != nil {
			return nil, err
		}
		if c.Op == queryir.OpAnd {
			return &expression.And{Operands: operands}, nil
		}
		return &expression.Or{Operands: operands}, nil

	case queryir.OpEquals, queryir.OpNotEquals,
		queryir.OpGreaterThan, queryir.OpGreaterThanOrEqual,
		queryir.OpLessThan, queryir.OpLessThanOrEqual:
		return translateComparison(c, resolver)

	case queryir.OpPlus:
		return translateArithmetic(c, resolver, plusFamily)
	case queryir.OpMinus:
		return translateArithmetic(c, resolver, minusFamily)
	case queryir.OpTimes, queryir.OpDivide:
		return translateArithmetic(c, resolver, multiplicativeFamily)

	case queryir.OpCast:
		operand, err := ToExpression(c.Operands[0], resolver)
		if err != nil {
			return nil, err
		}
		return Cast(operand, c.DataType)

	case queryir.OpNot, queryir.OpIsNull, queryir.OpIsNotNull, queryir.OpLike, queryir.OpCase:
		return nil, planerr.Unsupported(c.Op.String(), "operator %s cannot be translated", c.Op)
	}
	return nil, planerr.Unsupported(c.Op.String(), "unknown operator %s", c.Op)
}

func translateAll(nodes []queryir.Node, resolver Resolver) ([]expression.Expression, error) {
	out := make([]expression.Expression, len(nodes))
	for i, n := range nodes {
		e, err := ToExpression(n, resolver)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func translateComparison(c *queryir.Call, resolver Resolver) (expression.Expression, error) {
	if len(c.Operands) != 2 {
		return nil, fmt.Errorf("%s takes 2 operands, got %d", c.Op, len(c.Operands))
	}
	operands, err := translateAll(c.Operands, resolver)
	if err != nil {
		return nil, err
	}
	l, r := operands[0].DataType(), operands[1].DataType()
	if !comparable(l, r) {
		return nil, planerr.TypeMismatch("cannot compare %s with %s in %s", l, r, c)
	}
	return &expression.Comparison{Op: c.Op, Left: operands[0], Right: operands[1]}, nil
}

func comparable(a, b ir.DataType) bool {
	switch {
	case a == ir.TypeUnknown || b == ir.TypeUnknown:
		return true
	case a.IsNumeric() && b.IsNumeric():
		return true
	case a.IsTemporal() && b.IsTemporal():
		return true
	case a.IsString() && b.IsString():
		return true
	}
	return a == b
}

// IsSupported reports whether n and all of its operands can be translated.
// It does not check operand types.
func IsSupported(n queryir.Node) bool {
	switch x := n.(type) {
	case *queryir.InputRef, *queryir.Literal, *queryir.FieldAccess:
		return true
	case *queryir.Call:
		if !isSupportedOp(x.Op) {
			return false
		}
		for _, op := range x.Operands {
			if !IsSupported(op) {
				return false
			}
		}
		return true
	}
	return false
}

func isSupportedOp(op queryir.Op) bool {
	switch op {
	case queryir.OpAnd, queryir.OpOr,
		queryir.OpEquals, queryir.OpNotEquals,
		queryir.OpGreaterThan, queryir.OpGreaterThanOrEqual,
		queryir.OpLessThan, queryir.OpLessThanOrEqual,
		queryir.OpPlus, queryir.OpMinus, queryir.OpTimes, queryir.OpDivide,
		queryir.OpCast:
		return true
	}
	return false
}

// Fold evaluates n to a constant when it is stateless and always
// deterministic. Every failure, including evaluation errors, reports not
// foldable.
func Fold(n queryir.Node) (ir.Datum, bool) {
	e, err := ToExpression(n, nil)
	if err != nil {
		return nil, false
	}
	if !e.Stateless() || e.Determinism() != ir.DeterminismAlways {
		return nil, false
	}
	v, err := e.Evaluate(nil)
	if err != nil {
		return nil, false
	}
	return v, true
}
