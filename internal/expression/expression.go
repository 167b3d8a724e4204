// Package expression defines the executable scalar expressions that compiled
// plan fragments carry to the store and the client executor.
//
// Expression is sealed; the translator is the only producer. Every variant
// renders in the same positional explain form as the algebra it came from,
// so a translated comparison prints exactly like its source.
package expression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/queryir"
)

// Expression is an executable, typed, immutable scalar expression.
type Expression interface {
	expression()
	DataType() ir.DataType
	// SortOrder is the encoding direction of the value, relevant for row-key
	// columns and the keys derived from them.
	SortOrder() ir.SortOrder
	Determinism() ir.Determinism
	// Stateless reports whether Evaluate needs no input row.
	Stateless() bool
	Children() []Expression
	// Evaluate computes the value against row, which may be nil for
	// stateless expressions.
	Evaluate(row Row) (ir.Datum, error)
	String() string
}

// Row supplies column values by position.
type Row interface {
	Value(position int) (ir.Datum, error)
}

// Values is a Row backed by a slice.
type Values []ir.Datum

func (v Values) Value(position int) (ir.Datum, error) {
	if position < 0 || position >= len(v) {
		return nil, fmt.Errorf("row has no column %d", position)
	}
	return v[position], nil
}

// Literal is a constant.
type Literal struct {
	Value ir.Datum
	Type  ir.DataType
	Order ir.SortOrder
}

// Column reads a column of a base table. PKSlot is the column's position in
// the row key, or -1 for a key/value column stored in Family.
type Column struct {
	Index  int
	Name   string
	Type   ir.DataType
	Order  ir.SortOrder
	Family string
	PKSlot int
}

// ProjectedColumn reads position Position of a projected tuple.
type ProjectedColumn struct {
	Position int
	Name     string
	Type     ir.DataType
	Order    ir.SortOrder
}

// RowKeyColumn reads group-by key Position of an aggregated row. Key is the
// expression the key was computed from.
type RowKeyColumn struct {
	Key      Expression
	Position int
}

// CorrelateVariable reads field Index of the outer row bound to Name. It is
// bound by the executor when the enclosing statement runs.
type CorrelateVariable struct {
	Name  string
	Index int
	Type  ir.DataType
}

// Comparison is a binary comparison with SQL null semantics.
type Comparison struct {
	Op          queryir.Op
	Left, Right Expression
}

// And is an n-ary conjunction with three-valued logic.
type And struct {
	Operands []Expression
}

// Or is an n-ary disjunction with three-valued logic.
type Or struct {
	Operands []Expression
}

// Arithmetic applies Op left to right over Operands in Family.
type Arithmetic struct {
	Op       queryir.Op
	Family   Family
	Operands []Expression
	Type     ir.DataType
}

// Coerce converts Child to Target.
type Coerce struct {
	Child  Expression
	Target ir.DataType
	Order  ir.SortOrder
}

// RoundDecimal rounds a decimal (or a timestamp as epoch milliseconds) half
// up to a whole number.
type RoundDecimal struct {
	Child Expression
}

// RoundTimestamp rounds a timestamp (or epoch milliseconds) to the nearest day.
type RoundTimestamp struct {
	Child Expression
}

// Aggregate is an aggregate function over Args. It has no scalar value; the
// store or client aggregator evaluates it per group.
type Aggregate struct {
	Func string
	Args []Expression
	Type ir.DataType
}

func (*Literal) expression()           {}
func (*Column) expression()            {}
func (*ProjectedColumn) expression()   {}
func (*RowKeyColumn) expression()      {}
func (*CorrelateVariable) expression() {}
func (*Comparison) expression()        {}
func (*And) expression()               {}
func (*Or) expression()                {}
func (*Arithmetic) expression()        {}
func (*Coerce) expression()            {}
func (*RoundDecimal) expression()      {}
func (*RoundTimestamp) expression()    {}
func (*Aggregate) expression()         {}

// Family is the evaluation strategy of an arithmetic expression.
type Family int

const (
	FamilyLong Family = iota
	FamilyDouble
	FamilyDecimal
	FamilyDateAdd
	FamilyTimestampAdd
	FamilyDateSubtract
	FamilyTimestampSubtract
)

var familyNames = [...]string{
	FamilyLong:              "LONG",
	FamilyDouble:            "DOUBLE",
	FamilyDecimal:           "DECIMAL",
	FamilyDateAdd:           "DATE_ADD",
	FamilyTimestampAdd:      "TIMESTAMP_ADD",
	FamilyDateSubtract:      "DATE_SUBTRACT",
	FamilyTimestampSubtract: "TIMESTAMP_SUBTRACT",
}

func (f Family) String() string {
	if int(f) >= 0 && int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "Family(" + strconv.Itoa(int(f)) + ")"
}

// DataType

func (e *Literal) DataType() ir.DataType           { return e.Type }
func (e *Column) DataType() ir.DataType            { return e.Type }
func (e *ProjectedColumn) DataType() ir.DataType   { return e.Type }
func (e *RowKeyColumn) DataType() ir.DataType      { return e.Key.DataType() }
func (e *CorrelateVariable) DataType() ir.DataType { return e.Type }
func (e *Comparison) DataType() ir.DataType        { return ir.TypeBoolean }
func (e *And) DataType() ir.DataType               { return ir.TypeBoolean }
func (e *Or) DataType() ir.DataType                { return ir.TypeBoolean }
func (e *Arithmetic) DataType() ir.DataType        { return e.Type }
func (e *Coerce) DataType() ir.DataType            { return e.Target }
func (e *RoundDecimal) DataType() ir.DataType      { return ir.TypeLong }
func (e *RoundTimestamp) DataType() ir.DataType    { return ir.TypeDate }
func (e *Aggregate) DataType() ir.DataType         { return e.Type }

// SortOrder

func (e *Literal) SortOrder() ir.SortOrder           { return e.Order }
func (e *Column) SortOrder() ir.SortOrder            { return e.Order }
func (e *ProjectedColumn) SortOrder() ir.SortOrder   { return e.Order }
func (e *RowKeyColumn) SortOrder() ir.SortOrder      { return e.Key.SortOrder() }
func (e *CorrelateVariable) SortOrder() ir.SortOrder { return ir.Ascending }
func (e *Comparison) SortOrder() ir.SortOrder        { return ir.Ascending }
func (e *And) SortOrder() ir.SortOrder               { return ir.Ascending }
func (e *Or) SortOrder() ir.SortOrder                { return ir.Ascending }
func (e *Arithmetic) SortOrder() ir.SortOrder        { return ir.Ascending }
func (e *Coerce) SortOrder() ir.SortOrder            { return e.Order }
func (e *RoundDecimal) SortOrder() ir.SortOrder      { return e.Child.SortOrder() }
func (e *RoundTimestamp) SortOrder() ir.SortOrder    { return e.Child.SortOrder() }
func (e *Aggregate) SortOrder() ir.SortOrder         { return ir.Ascending }

// Children

func (*Literal) Children() []Expression           { return nil }
func (*Column) Children() []Expression            { return nil }
func (*ProjectedColumn) Children() []Expression   { return nil }
func (e *RowKeyColumn) Children() []Expression    { return nil }
func (*CorrelateVariable) Children() []Expression { return nil }
func (e *Comparison) Children() []Expression      { return []Expression{e.Left, e.Right} }
func (e *And) Children() []Expression             { return e.Operands }
func (e *Or) Children() []Expression              { return e.Operands }
func (e *Arithmetic) Children() []Expression      { return e.Operands }
func (e *Coerce) Children() []Expression          { return []Expression{e.Child} }
func (e *RoundDecimal) Children() []Expression    { return []Expression{e.Child} }
func (e *RoundTimestamp) Children() []Expression  { return []Expression{e.Child} }
func (e *Aggregate) Children() []Expression       { return e.Args }

// Determinism

func (*Literal) Determinism() ir.Determinism { return ir.DeterminismAlways }

func (*Column) Determinism() ir.Determinism { return ir.DeterminismAlways }

func (*ProjectedColumn) Determinism() ir.Determinism { return ir.DeterminismAlways }

func (*RowKeyColumn) Determinism() ir.Determinism { return ir.DeterminismAlways }

// A correlated value is fixed for one execution of the inner statement.
func (*CorrelateVariable) Determinism() ir.Determinism { return ir.DeterminismPerStatement }

func (e *Comparison) Determinism() ir.Determinism     { return combined(e.Children()) }
func (e *And) Determinism() ir.Determinism            { return combined(e.Operands) }
func (e *Or) Determinism() ir.Determinism             { return combined(e.Operands) }
func (e *Arithmetic) Determinism() ir.Determinism     { return combined(e.Operands) }
func (e *Coerce) Determinism() ir.Determinism         { return e.Child.Determinism() }
func (e *RoundDecimal) Determinism() ir.Determinism   { return e.Child.Determinism() }
func (e *RoundTimestamp) Determinism() ir.Determinism { return e.Child.Determinism() }
func (e *Aggregate) Determinism() ir.Determinism      { return combined(e.Args) }

func combined(children []Expression) ir.Determinism {
	d := ir.DeterminismAlways
	for _, c := range children {
		d = d.Combine(c.Determinism())
	}
	return d
}

// Stateless

func (*Literal) Stateless() bool           { return true }
func (*Column) Stateless() bool            { return false }
func (*ProjectedColumn) Stateless() bool   { return false }
func (*RowKeyColumn) Stateless() bool      { return false }
func (*CorrelateVariable) Stateless() bool { return false }
func (e *Comparison) Stateless() bool      { return allStateless(e.Children()) }
func (e *And) Stateless() bool             { return allStateless(e.Operands) }
func (e *Or) Stateless() bool              { return allStateless(e.Operands) }
func (e *Arithmetic) Stateless() bool      { return allStateless(e.Operands) }
func (e *Coerce) Stateless() bool          { return e.Child.Stateless() }
func (e *RoundDecimal) Stateless() bool    { return e.Child.Stateless() }
func (e *RoundTimestamp) Stateless() bool  { return e.Child.Stateless() }
func (*Aggregate) Stateless() bool         { return false }

func allStateless(children []Expression) bool {
	for _, c := range children {
		if !c.Stateless() {
			return false
		}
	}
	return true
}

// String

func (e *Literal) String() string {
	s := e.Value.String()
	natural := e.Value.Type()
	if natural != e.Type && !(natural.IsString() && e.Type.IsString()) {
		s += ":" + e.Type.String()
	}
	return s
}

func (e *Column) String() string            { return "$" + strconv.Itoa(e.Index) }
func (e *ProjectedColumn) String() string   { return "$" + strconv.Itoa(e.Position) }
func (e *RowKeyColumn) String() string      { return "$" + strconv.Itoa(e.Position) }
func (e *CorrelateVariable) String() string { return e.Name + ".$" + strconv.Itoa(e.Index) }
func (e *Comparison) String() string        { return call(e.Op.String(), e.Left, e.Right) }
func (e *And) String() string               { return call("AND", e.Operands...) }
func (e *Or) String() string                { return call("OR", e.Operands...) }
func (e *Arithmetic) String() string        { return call(e.Op.String(), e.Operands...) }
func (e *Coerce) String() string            { return call("CAST", e.Child) + ":" + e.Target.String() }
func (e *RoundDecimal) String() string      { return call("ROUND", e.Child) }
func (e *RoundTimestamp) String() string    { return call("ROUND", e.Child) + ":DATE" }
func (e *Aggregate) String() string         { return call(e.Func, e.Args...) }

func call(name string, operands ...Expression) string {
	parts := make([]string, len(operands))
	for i, op := range operands {
		parts[i] = op.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// NewCoerce converts child to target, returning child unchanged when it
// already has the target type and sort order.
func NewCoerce(child Expression, target ir.DataType, order ir.SortOrder) Expression {
	if child.DataType() == target && child.SortOrder() == order {
		return child
	}
	return &Coerce{Child: child, Target: target, Order: order}
}

// NewLiteral builds a literal typed by its value.
func NewLiteral(v ir.Datum) *Literal {
	return &Literal{Value: v, Type: v.Type()}
}

// IsTrue reports whether e is the literal TRUE.
func IsTrue(e Expression) bool {
	lit, ok := e.(*Literal)
	if !ok {
		return false
	}
	b, ok := lit.Value.(ir.DBool)
	return ok && bool(b)
}

// Walk visits e and its descendants depth-first, parents first.
func Walk(e Expression, visit func(Expression)) {
	if e == nil {
		return
	}
	visit(e)
	if rk, ok := e.(*RowKeyColumn); ok {
		Walk(rk.Key, visit)
		return
	}
	for _, c := range e.Children() {
		Walk(c, visit)
	}
}
