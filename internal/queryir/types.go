package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pushplan/internal/ir"
)

// Node is a scalar expression over positional input columns.
//
// This is a sealed interface: only types in this package implement it.
type Node interface {
	rexNode()
	// Type is the static SQL type of the expression's value.
	Type() ir.DataType
	// String renders the expression in explain form.
	String() string
}

// InputRef references column Index of the input row.
type InputRef struct {
	Index    int
	DataType ir.DataType
}

// Literal is a constant. DataType may differ from Value's natural type, for
// example a NULL typed as VARCHAR.
type Literal struct {
	Value    ir.Datum
	DataType ir.DataType
}

// Call applies Op to Operands. DataType is the statically inferred result
// type; for CAST it is the target type.
type Call struct {
	Op       Op
	Operands []Node
	DataType ir.DataType
}

// FieldAccess reads field Index of the correlated outer row bound to
// Correlation (for example "$cor0"). Its value is only known at run time.
type FieldAccess struct {
	Correlation string
	Index       int
	DataType    ir.DataType
}

func (*InputRef) rexNode()    {}
func (*Literal) rexNode()     {}
func (*Call) rexNode()        {}
func (*FieldAccess) rexNode() {}

func (r *InputRef) Type() ir.DataType    { return r.DataType }
func (l *Literal) Type() ir.DataType     { return l.DataType }
func (c *Call) Type() ir.DataType        { return c.DataType }
func (f *FieldAccess) Type() ir.DataType { return f.DataType }

func (r *InputRef) String() string { return "$" + strconv.Itoa(r.Index) }

func (l *Literal) String() string {
	s := l.Value.String()
	if !sameLiteralType(l.Value.Type(), l.DataType) {
		s += ":" + l.DataType.String()
	}
	return s
}

func sameLiteralType(natural, declared ir.DataType) bool {
	return natural == declared || natural.IsString() && declared.IsString()
}

func (c *Call) String() string {
	var b strings.Builder
	b.WriteString(c.Op.String())
	b.WriteByte('(')
	for i, op := range c.Operands {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(op.String())
	}
	b.WriteByte(')')
	if c.Op == OpCast || c.DataType != InferType(c.Op, c.Operands) {
		b.WriteString(":" + c.DataType.String())
	}
	return b.String()
}

func (f *FieldAccess) String() string {
	return fmt.Sprintf("%s.$%d", f.Correlation, f.Index)
}

// Op is the closed set of scalar operators.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpNot
	OpEquals
	OpNotEquals
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpPlus
	OpMinus
	OpTimes
	OpDivide
	OpCast
	OpIsNull
	OpIsNotNull
	OpLike
	OpCase
)

var opNames = [...]string{
	OpAnd:                "AND",
	OpOr:                 "OR",
	OpNot:                "NOT",
	OpEquals:             "=",
	OpNotEquals:          "<>",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpPlus:               "+",
	OpMinus:              "-",
	OpTimes:              "*",
	OpDivide:             "/",
	OpCast:               "CAST",
	OpIsNull:             "IS NULL",
	OpIsNotNull:          "IS NOT NULL",
	OpLike:               "LIKE",
	OpCase:               "CASE",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// LookupOp resolves an operator by its explain name.
func LookupOp(name string) (Op, bool) {
	for op, n := range opNames {
		if n == name {
			return Op(op), true
		}
	}
	return 0, false
}

// IsComparison reports whether o is a binary comparison.
func (o Op) IsComparison() bool {
	return o >= OpEquals && o <= OpLessThanOrEqual
}

// IsArithmetic reports whether o is a binary arithmetic operator.
func (o Op) IsArithmetic() bool {
	return o >= OpPlus && o <= OpDivide
}

// Reverse returns the comparison obtained by swapping operands.
func (o Op) Reverse() Op {
	switch o {
	case OpGreaterThan:
		return OpLessThan
	case OpGreaterThanOrEqual:
		return OpLessThanOrEqual
	case OpLessThan:
		return OpGreaterThan
	case OpLessThanOrEqual:
		return OpGreaterThanOrEqual
	}
	return o
}

// InferType derives the result type of op applied to operands. CAST has no
// inferable type and returns TypeUnknown.
func InferType(op Op, operands []Node) ir.DataType {
	switch op {
	case OpAnd, OpOr, OpNot, OpIsNull, OpIsNotNull, OpLike:
		return ir.TypeBoolean
	case OpCase:
		if len(operands) > 1 {
			return operands[1].Type()
		}
		return ir.TypeUnknown
	case OpCast:
		return ir.TypeUnknown
	}
	if op.IsComparison() {
		return ir.TypeBoolean
	}

	types := make([]ir.DataType, len(operands))
	for i, o := range operands {
		types[i] = o.Type()
	}
	if op == OpPlus || op == OpMinus {
		if t, ok := temporalResult(op, types); ok {
			return t
		}
	}
	return widestNumeric(types)
}

func temporalResult(op Op, types []ir.DataType) (ir.DataType, bool) {
	temporal := 0
	timestamp := false
	for _, t := range types {
		if t.IsTemporal() {
			temporal++
			timestamp = timestamp || t == ir.TypeTimestamp
		}
	}
	switch {
	case temporal == 0:
		return ir.TypeUnknown, false
	case op == OpMinus && temporal >= 2:
		return ir.TypeDecimal, true
	case timestamp:
		return ir.TypeTimestamp, true
	}
	return ir.TypeDate, true
}

func widestNumeric(types []ir.DataType) ir.DataType {
	rank := map[ir.DataType]int{ir.TypeInteger: 1, ir.TypeLong: 2, ir.TypeDouble: 3, ir.TypeDecimal: 4}
	best := ir.TypeUnknown
	for _, t := range types {
		if rank[t] > rank[best] {
			best = t
		}
	}
	return best
}

// NewCall builds a Call with an inferred result type.
func NewCall(op Op, operands ...Node) *Call {
	return &Call{Op: op, Operands: operands, DataType: InferType(op, operands)}
}

// NewCast builds a CAST to target.
func NewCast(operand Node, target ir.DataType) *Call {
	return &Call{Op: OpCast, Operands: []Node{operand}, DataType: target}
}

// NewLiteral builds a literal typed by its value.
func NewLiteral(v ir.Datum) *Literal {
	return &Literal{Value: v, DataType: v.Type()}
}

// TrueLiteral is the constant TRUE.
func TrueLiteral() *Literal {
	return NewLiteral(ir.DBool(true))
}

// IsAlwaysTrue reports whether n is the literal TRUE (or absent).
func IsAlwaysTrue(n Node) bool {
	if n == nil {
		return true
	}
	lit, ok := n.(*Literal)
	if !ok {
		return false
	}
	b, ok := lit.Value.(ir.DBool)
	return ok && bool(b)
}

// Conjunctions flattens nested ANDs into their conjuncts. A nil or TRUE
// condition has no conjuncts.
func Conjunctions(n Node) []Node {
	if IsAlwaysTrue(n) {
		return nil
	}
	call, ok := n.(*Call)
	if !ok || call.Op != OpAnd {
		return []Node{n}
	}
	var out []Node
	for _, op := range call.Operands {
		out = append(out, Conjunctions(op)...)
	}
	return out
}

// And combines conjuncts, returning nil for none and the sole conjunct for one.
func And(conjuncts ...Node) Node {
	switch len(conjuncts) {
	case 0:
		return nil
	case 1:
		return conjuncts[0]
	}
	return NewCall(OpAnd, conjuncts...)
}

// Field is one column of a row type.
type Field struct {
	Name string
	Type ir.DataType
}

// RowType is the ordered column list an operator produces.
type RowType []Field

// Names returns the field names in order.
func (r RowType) Names() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Name
	}
	return out
}

// Ref returns an InputRef to column i.
func (r RowType) Ref(i int) *InputRef {
	return &InputRef{Index: i, DataType: r[i].Type}
}

// Concat returns the row type of a join of r and other.
func (r RowType) Concat(other RowType) RowType {
	out := make(RowType, 0, len(r)+len(other))
	out = append(out, r...)
	return append(out, other...)
}

// Direction is the sort direction of a collation field.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// FieldCollation orders by one input column.
type FieldCollation struct {
	Index     int
	Direction Direction
	NullsLast bool
}

func (f FieldCollation) String() string {
	s := strconv.Itoa(f.Index)
	if f.Direction == Desc {
		s += " DESC"
	}
	if f.NullsLast != (f.Direction == Desc) {
		if f.NullsLast {
			s += "-nulls-last"
		} else {
			s += "-nulls-first"
		}
	}
	return s
}

// Collation is an ordered list of field collations. The empty collation
// imposes no order.
type Collation []FieldCollation

func (c Collation) String() string {
	parts := make([]string, len(c))
	for i, f := range c {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Satisfies reports whether rows ordered by c are also ordered by required,
// i.e. required is a prefix of c.
func (c Collation) Satisfies(required Collation) bool {
	if len(required) > len(c) {
		return false
	}
	for i, f := range required {
		if c[i] != f {
			return false
		}
	}
	return true
}

// Ascending builds an ascending, nulls-first collation over indices.
func Ascending(indices ...int) Collation {
	out := make(Collation, len(indices))
	for i, idx := range indices {
		out[i] = FieldCollation{Index: idx, Direction: Asc}
	}
	return out
}

// JoinType is the kind of a join.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
)

func (j JoinType) String() string {
	switch j {
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	case JoinFull:
		return "full"
	}
	return "inner"
}

// ParseJoinType resolves a join type name.
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToLower(s) {
	case "", "inner":
		return JoinInner, nil
	case "left":
		return JoinLeft, nil
	case "right":
		return JoinRight, nil
	case "full":
		return JoinFull, nil
	}
	return JoinInner, fmt.Errorf("unknown join type %q", s)
}

// Aggregate function names understood by the planner.
const (
	AggCount       = "COUNT"
	AggMax         = "MAX"
	AggMin         = "MIN"
	AggSum         = "SUM"
	AggSingleValue = "SINGLE_VALUE"
)

// AggCall is one aggregate function application over input columns.
type AggCall struct {
	Func     string
	Args     []int
	Distinct bool
	Name     string
	DataType ir.DataType
}

func (a AggCall) String() string {
	args := make([]string, len(a.Args))
	for i, arg := range a.Args {
		args[i] = "$" + strconv.Itoa(arg)
	}
	prefix := ""
	if a.Distinct {
		prefix = "DISTINCT "
	}
	return a.Func + "(" + prefix + strings.Join(args, ", ") + ")"
}
