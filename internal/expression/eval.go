package expression

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/queryir"
)

// ErrNeedsRow is returned when a stateful expression is evaluated without a row.
var ErrNeedsRow = errors.New("expression needs an input row")

// decimalContext is the arithmetic context of DECIMAL evaluation.
var decimalContext = apd.BaseContext.WithPrecision(38)

const millisPerDay = 24 * 60 * 60 * 1000

func (e *Literal) Evaluate(Row) (ir.Datum, error) {
	return e.Value, nil
}

func (e *Column) Evaluate(row Row) (ir.Datum, error) {
	if row == nil {
		return nil, ErrNeedsRow
	}
	return row.Value(e.Index)
}

func (e *ProjectedColumn) Evaluate(row Row) (ir.Datum, error) {
	if row == nil {
		return nil, ErrNeedsRow
	}
	return row.Value(e.Position)
}

func (e *RowKeyColumn) Evaluate(row Row) (ir.Datum, error) {
	if row == nil {
		return nil, ErrNeedsRow
	}
	return row.Value(e.Position)
}

func (e *CorrelateVariable) Evaluate(Row) (ir.Datum, error) {
	return nil, fmt.Errorf("correlation variable %s is not bound", e.Name)
}

func (e *Aggregate) Evaluate(Row) (ir.Datum, error) {
	return nil, fmt.Errorf("aggregate %s has no scalar value", e.Func)
}

func (e *Comparison) Evaluate(row Row) (ir.Datum, error) {
	l, err := e.Left.Evaluate(row)
	if err != nil {
		return nil, err
	}
	r, err := e.Right.Evaluate(row)
	if err != nil {
		return nil, err
	}
	if ir.IsNull(l) || ir.IsNull(r) {
		return ir.DNull{}, nil
	}
	c, err := ir.Compare(l, r)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case queryir.OpEquals:
		return ir.DBool(c == 0), nil
	case queryir.OpNotEquals:
		return ir.DBool(c != 0), nil
	case queryir.OpGreaterThan:
		return ir.DBool(c > 0), nil
	case queryir.OpGreaterThanOrEqual:
		return ir.DBool(c >= 0), nil
	case queryir.OpLessThan:
		return ir.DBool(c < 0), nil
	case queryir.OpLessThanOrEqual:
		return ir.DBool(c <= 0), nil
	}
	return nil, fmt.Errorf("%s is not a comparison", e.Op)
}

func (e *And) Evaluate(row Row) (ir.Datum, error) {
	sawNull := false
	for _, op := range e.Operands {
		v, err := op.Evaluate(row)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(v) {
			sawNull = true
			continue
		}
		b, ok := v.(ir.DBool)
		if !ok {
			return nil, fmt.Errorf("AND operand is %s, not BOOLEAN", v.Type())
		}
		if !b {
			return ir.DBool(false), nil
		}
	}
	if sawNull {
		return ir.DNull{}, nil
	}
	return ir.DBool(true), nil
}

func (e *Or) Evaluate(row Row) (ir.Datum, error) {
	sawNull := false
	for _, op := range e.Operands {
		v, err := op.Evaluate(row)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(v) {
			sawNull = true
			continue
		}
		b, ok := v.(ir.DBool)
		if !ok {
			return nil, fmt.Errorf("OR operand is %s, not BOOLEAN", v.Type())
		}
		if b {
			return ir.DBool(true), nil
		}
	}
	if sawNull {
		return ir.DNull{}, nil
	}
	return ir.DBool(false), nil
}

func (e *Arithmetic) Evaluate(row Row) (ir.Datum, error) {
	values := make([]ir.Datum, len(e.Operands))
	for i, op := range e.Operands {
		v, err := op.Evaluate(row)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(v) {
			return ir.DNull{}, nil
		}
		values[i] = v
	}
	acc := values[0]
	for _, v := range values[1:] {
		var err error
		if acc, err = e.apply(acc, v); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (e *Arithmetic) apply(a, b ir.Datum) (ir.Datum, error) {
	switch e.Family {
	case FamilyLong:
		x, err := ir.ToInt(a)
		if err != nil {
			return nil, err
		}
		y, err := ir.ToInt(b)
		if err != nil {
			return nil, err
		}
		return longOp(e.Op, x, y)
	case FamilyDouble:
		x, err := ir.ToFloat(a)
		if err != nil {
			return nil, err
		}
		y, err := ir.ToFloat(b)
		if err != nil {
			return nil, err
		}
		return doubleOp(e.Op, x, y)
	case FamilyDecimal:
		x, err := ir.ToDecimal(a)
		if err != nil {
			return nil, err
		}
		y, err := ir.ToDecimal(b)
		if err != nil {
			return nil, err
		}
		return decimalOp(e.Op, x, y)
	case FamilyDateAdd, FamilyTimestampAdd, FamilyDateSubtract, FamilyTimestampSubtract:
		return e.temporalOp(a, b)
	}
	return nil, fmt.Errorf("unknown arithmetic family %s", e.Family)
}

func longOp(op queryir.Op, x, y int64) (ir.Datum, error) {
	switch op {
	case queryir.OpPlus:
		return ir.DLong(x + y), nil
	case queryir.OpMinus:
		return ir.DLong(x - y), nil
	case queryir.OpTimes:
		return ir.DLong(x * y), nil
	case queryir.OpDivide:
		if y == 0 {
			return nil, errors.New("division by zero")
		}
		return ir.DLong(x / y), nil
	}
	return nil, fmt.Errorf("%s is not arithmetic", op)
}

func doubleOp(op queryir.Op, x, y float64) (ir.Datum, error) {
	switch op {
	case queryir.OpPlus:
		return ir.DDouble(x + y), nil
	case queryir.OpMinus:
		return ir.DDouble(x - y), nil
	case queryir.OpTimes:
		return ir.DDouble(x * y), nil
	case queryir.OpDivide:
		if y == 0 {
			return nil, errors.New("division by zero")
		}
		return ir.DDouble(x / y), nil
	}
	return nil, fmt.Errorf("%s is not arithmetic", op)
}

func decimalOp(op queryir.Op, x, y *apd.Decimal) (ir.Datum, error) {
	out := new(apd.Decimal)
	var err error
	switch op {
	case queryir.OpPlus:
		_, err = decimalContext.Add(out, x, y)
	case queryir.OpMinus:
		_, err = decimalContext.Sub(out, x, y)
	case queryir.OpTimes:
		_, err = decimalContext.Mul(out, x, y)
	case queryir.OpDivide:
		if y.IsZero() {
			return nil, errors.New("division by zero")
		}
		_, err = decimalContext.Quo(out, x, y)
	default:
		return nil, fmt.Errorf("%s is not arithmetic", op)
	}
	if err != nil {
		return nil, err
	}
	return ir.NewDecimal(out), nil
}

// temporalOp adds or subtracts a number of days to a date/timestamp, or
// subtracts two temporal values giving the difference in days.
func (e *Arithmetic) temporalOp(a, b ir.Datum) (ir.Datum, error) {
	at, err := ir.ToTime(a)
	if err != nil {
		// number + date is commutative
		if e.Op == queryir.OpPlus && b.Type().IsTemporal() {
			return e.temporalOp(b, a)
		}
		return nil, err
	}
	if bt, err := ir.ToTime(b); err == nil {
		if e.Op != queryir.OpMinus {
			return nil, fmt.Errorf("cannot %s two temporal values", e.Op)
		}
		diff := apd.New(at.Sub(bt).Milliseconds(), 0)
		out := new(apd.Decimal)
		if _, err := decimalContext.Quo(out, diff, apd.New(millisPerDay, 0)); err != nil {
			return nil, err
		}
		out.Reduce(out)
		return ir.NewDecimal(out), nil
	}

	days, err := ir.ToFloat(b)
	if err != nil {
		return nil, err
	}
	if e.Op == queryir.OpMinus {
		days = -days
	}
	shifted := at.Add(time.Duration(math.Round(days*millisPerDay)) * time.Millisecond)
	if e.Type == ir.TypeDate {
		return ir.DDate(shifted), nil
	}
	return ir.DTimestamp(shifted), nil
}

func (e *Coerce) Evaluate(row Row) (ir.Datum, error) {
	v, err := e.Child.Evaluate(row)
	if err != nil {
		return nil, err
	}
	return Convert(v, e.Target)
}

func (e *RoundDecimal) Evaluate(row Row) (ir.Datum, error) {
	v, err := e.Child.Evaluate(row)
	if err != nil || ir.IsNull(v) {
		return v, err
	}
	d, err := ir.ToDecimal(v)
	if err != nil {
		return nil, err
	}
	rounded := new(apd.Decimal)
	ctx := decimalContext.WithPrecision(38)
	ctx.Rounding = apd.RoundHalfUp
	if _, err := ctx.RoundToIntegralValue(rounded, d); err != nil {
		return nil, err
	}
	n, err := rounded.Int64()
	if err != nil {
		return nil, err
	}
	return ir.DLong(n), nil
}

func (e *RoundTimestamp) Evaluate(row Row) (ir.Datum, error) {
	v, err := e.Child.Evaluate(row)
	if err != nil || ir.IsNull(v) {
		return v, err
	}
	var t time.Time
	if v.Type().IsTemporal() {
		t, _ = ir.ToTime(v)
	} else {
		millis, err := ir.ToFloat(v)
		if err != nil {
			return nil, err
		}
		t = time.UnixMilli(int64(millis)).UTC()
	}
	return ir.DDate(t.Add(12 * time.Hour).Truncate(24 * time.Hour)), nil
}

// Convert changes the type of v to target. NULL converts to NULL.
func Convert(v ir.Datum, target ir.DataType) (ir.Datum, error) {
	if ir.IsNull(v) || v.Type() == target {
		return v, nil
	}
	switch target {
	case ir.TypeInteger, ir.TypeLong:
		var n int64
		if v.Type().IsTemporal() {
			t, _ := ir.ToTime(v)
			n = t.UnixMilli()
		} else {
			var err error
			if n, err = ir.ToInt(v); err != nil {
				return nil, err
			}
		}
		if target == ir.TypeInteger {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("%d overflows INTEGER", n)
			}
			return ir.DInteger(n), nil
		}
		return ir.DLong(n), nil
	case ir.TypeDouble:
		f, err := ir.ToFloat(v)
		if err != nil {
			return nil, err
		}
		return ir.DDouble(f), nil
	case ir.TypeDecimal:
		d, err := ir.ToDecimal(v)
		if err != nil {
			return nil, err
		}
		return ir.NewDecimal(d), nil
	case ir.TypeDate, ir.TypeTime, ir.TypeTimestamp:
		t, err := ir.ToTime(v)
		if err != nil {
			d, derr := ir.ToDecimal(v)
			if derr != nil {
				return nil, err
			}
			millis, derr := d.Int64()
			if derr != nil {
				return nil, derr
			}
			t = time.UnixMilli(millis).UTC()
		}
		switch target {
		case ir.TypeDate:
			return ir.DDate(t.Truncate(24 * time.Hour)), nil
		case ir.TypeTime:
			return ir.DTime(time.Date(1970, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)), nil
		}
		return ir.DTimestamp(t), nil
	case ir.TypeChar, ir.TypeVarchar:
		s, ok := stringValue(v)
		if !ok {
			return nil, fmt.Errorf("cannot convert %s to %s", v.Type(), target)
		}
		if target == ir.TypeChar {
			return ir.DChar(s), nil
		}
		return ir.DVarchar(s), nil
	}
	return nil, fmt.Errorf("cannot convert %s to %s", v.Type(), target)
}

func stringValue(v ir.Datum) (string, bool) {
	switch s := v.(type) {
	case ir.DChar:
		return string(s), true
	case ir.DVarchar:
		return string(s), true
	}
	return "", false
}
