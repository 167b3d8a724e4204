package translate

import (
	"github.com/roach88/pushplan/internal/expression"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/planerr"
	"github.com/roach88/pushplan/internal/queryir"
)

// familyRule picks the evaluation family and its natural result type for an
// arithmetic call from the operand types. ok is false when every operand is
// an untyped null, in which case the call folds to a typed null.
type familyRule func(c *queryir.Call, types []ir.DataType) (f expression.Family, t ir.DataType, ok bool, err error)

func translateArithmetic(c *queryir.Call, resolver Resolver, rule familyRule) (expression.Expression, error) {
	if len(c.Operands) < 2 {
		return nil, planerr.TypeMismatch("%s needs at least 2 operands in %s", c.Op, c)
	}
	operands, err := translateAll(c.Operands, resolver)
	if err != nil {
		return nil, err
	}
	types := make([]ir.DataType, len(operands))
	for i, op := range operands {
		types[i] = op.DataType()
	}

	family, familyType, ok, err := rule(c, types)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &expression.Literal{Value: ir.DNull{}, Type: c.DataType}, nil
	}
	arith := &expression.Arithmetic{Op: c.Op, Family: family, Operands: operands, Type: familyType}
	if c.DataType == ir.TypeUnknown {
		return arith, nil
	}
	return Cast(arith, c.DataType)
}

// numericFamily ranks numeric operand types: decimal > double > long.
type numericFamily struct {
	seen   bool
	family expression.Family
}

func (n *numericFamily) add(t ir.DataType) {
	var f expression.Family
	switch t {
	case ir.TypeDecimal:
		f = expression.FamilyDecimal
	case ir.TypeDouble:
		f = expression.FamilyDouble
	default:
		f = expression.FamilyLong
	}
	if !n.seen || numericRank(f) > numericRank(n.family) {
		n.family = f
	}
	n.seen = true
}

func (n *numericFamily) result() (expression.Family, ir.DataType) {
	switch n.family {
	case expression.FamilyDecimal:
		return n.family, ir.TypeDecimal
	case expression.FamilyDouble:
		return n.family, ir.TypeDouble
	}
	return expression.FamilyLong, ir.TypeLong
}

func numericRank(f expression.Family) int {
	switch f {
	case expression.FamilyDecimal:
		return 3
	case expression.FamilyDouble:
		return 2
	}
	return 1
}

func mismatch(c *queryir.Call, t ir.DataType) error {
	return planerr.TypeMismatch("operand of type %s is not allowed in %s", t, c)
}

// plusFamily: at most one date/time operand, which makes the sum temporal.
// A timestamp operand forces timestamp arithmetic.
func plusFamily(c *queryir.Call, types []ir.DataType) (expression.Family, ir.DataType, bool, error) {
	var num numericFamily
	temporal := ir.TypeUnknown
	for _, t := range types {
		switch {
		case t == ir.TypeUnknown:
		case t.IsTemporal():
			if temporal != ir.TypeUnknown {
				return 0, ir.TypeUnknown, false, mismatch(c, t)
			}
			temporal = t
		case t.IsNumeric():
			num.add(t)
		default:
			return 0, ir.TypeUnknown, false, mismatch(c, t)
		}
	}
	switch {
	case temporal == ir.TypeTimestamp:
		return expression.FamilyTimestampAdd, ir.TypeTimestamp, true, nil
	case temporal != ir.TypeUnknown:
		return expression.FamilyDateAdd, ir.TypeDate, true, nil
	case !num.seen:
		return 0, ir.TypeUnknown, false, nil
	}
	f, t := num.result()
	return f, t, true, nil
}

// minusFamily: temporal minus temporal is a difference in days (decimal);
// temporal minus numbers stays temporal; a number minus a temporal value is
// rejected. An untyped null minus a temporal value could be either a date or
// a day count, so it folds to a typed null.
func minusFamily(c *queryir.Call, types []ir.DataType) (expression.Family, ir.DataType, bool, error) {
	first := types[0]
	if first == ir.TypeUnknown && types[1].IsTemporal() {
		for _, t := range types[2:] {
			if t != ir.TypeUnknown && !t.IsNumeric() {
				return 0, ir.TypeUnknown, false, mismatch(c, t)
			}
		}
		return 0, ir.TypeUnknown, false, nil
	}
	if first.IsTemporal() {
		timestamp := first == ir.TypeTimestamp
		second := types[1]
		if second.IsTemporal() {
			timestamp = timestamp || second == ir.TypeTimestamp
		}
		for i, t := range types[1:] {
			switch {
			case t == ir.TypeUnknown, t.IsNumeric():
			case t.IsTemporal() && i == 0:
			default:
				return 0, ir.TypeUnknown, false, mismatch(c, t)
			}
		}
		result := first
		if second.IsTemporal() {
			result = ir.TypeDecimal
		} else if first == ir.TypeTime {
			result = ir.TypeDate
		}
		if timestamp {
			return expression.FamilyTimestampSubtract, result, true, nil
		}
		return expression.FamilyDateSubtract, result, true, nil
	}

	var num numericFamily
	for _, t := range types {
		switch {
		case t == ir.TypeUnknown:
		case t.IsNumeric():
			num.add(t)
		default:
			return 0, ir.TypeUnknown, false, mismatch(c, t)
		}
	}
	if !num.seen {
		return 0, ir.TypeUnknown, false, nil
	}
	f, t := num.result()
	return f, t, true, nil
}

// multiplicativeFamily covers * and /, which are numeric only.
func multiplicativeFamily(c *queryir.Call, types []ir.DataType) (expression.Family, ir.DataType, bool, error) {
	var num numericFamily
	for _, t := range types {
		switch {
		case t == ir.TypeUnknown:
		case t.IsNumeric():
			num.add(t)
		default:
			return 0, ir.TypeUnknown, false, mismatch(c, t)
		}
	}
	if !num.seen {
		return 0, ir.TypeUnknown, false, nil
	}
	f, t := num.result()
	return f, t, true, nil
}

// Cast converts e to target. Narrowing a decimal or timestamp to an integral
// type rounds it first; narrowing either to a date rounds to the nearest day.
func Cast(e expression.Expression, target ir.DataType) (expression.Expression, error) {
	from := e.DataType()
	out := e
	switch {
	case from == target || from == ir.TypeUnknown:
	case (from == ir.TypeDecimal || from == ir.TypeTimestamp) && target.IsIntegral():
		out = &expression.RoundDecimal{Child: e}
	case (from == ir.TypeDecimal || from == ir.TypeTimestamp) && target == ir.TypeDate:
		out = &expression.RoundTimestamp{Child: e}
	case from.IsCastableTo(target):
	default:
		return nil, planerr.TypeMismatch("cannot cast %s from %s to %s", e, from, target)
	}
	return expression.NewCoerce(out, target, ir.Ascending), nil
}
