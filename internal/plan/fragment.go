// Package plan defines compiled plan fragments: the executable output of
// lowering an operator tree.
//
// Fragment is a closed set of variants. Server-side work (scans, server
// aggregation, broadcast hash joins) is described by fields of the scan it
// rides on; client-side work wraps its input. Fragments are immutable:
// every With* helper returns a modified copy.
package plan

import (
	"strconv"
	"strings"

	"github.com/roach88/pushplan/internal/expression"
	"github.com/roach88/pushplan/internal/keyrange"
	"github.com/roach88/pushplan/internal/queryir"
)

// Fragment is a compiled, executable plan piece.
type Fragment interface {
	fragment()
	// TableRef is the table (or projected layout) of the rows produced.
	TableRef() TableRef
}

// ScanOrder is the row-key order a scan is forced to return rows in.
type ScanOrder int

const (
	ScanOrderNone ScanOrder = iota
	ScanOrderForward
	ScanOrderReverse
)

func (o ScanOrder) String() string {
	switch o {
	case ScanOrderForward:
		return "FORWARD"
	case ScanOrderReverse:
		return "REVERSE"
	}
	return "NONE"
}

// TupleProjector is an ordered list of expressions evaluated per row.
type TupleProjector struct {
	Expressions []expression.Expression
}

func (p *TupleProjector) String() string {
	parts := make([]string, len(p.Expressions))
	for i, e := range p.Expressions {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// OrderByExpression is one sort key. Ascending is in terms of the encoded
// value, so it is flipped for descending row-key columns.
type OrderByExpression struct {
	Expr      expression.Expression
	Ascending bool
	NullsLast bool
}

func (o OrderByExpression) String() string {
	s := o.Expr.String()
	if !o.Ascending {
		s += " DESC"
	}
	if o.NullsLast {
		s += " NULLS LAST"
	}
	return s
}

// GroupBy describes the grouping keys of an aggregation.
type GroupBy struct {
	Keys []expression.Expression
	// Ordered is set when rows arrive sorted by the keys, so groups can be
	// aggregated as a stream.
	Ordered bool
}

// IsEmpty reports whether the aggregation is ungrouped.
func (g GroupBy) IsEmpty() bool { return len(g.Keys) == 0 }

// Attribute names the scan attribute the keys are serialized under.
func (g GroupBy) Attribute() string {
	if g.Ordered {
		return "KEY_ORDERED_GROUP_BY"
	}
	return "UNORDERED_GROUP_BY"
}

// Aggregators are the aggregate functions of an aggregation, in declaration
// order. MinNullableIndex is the position of the first function whose result
// may be null, or len(Funcs) if none.
type Aggregators struct {
	Funcs            []*expression.Aggregate
	MinNullableIndex int
}

// ScanFragment reads a range of one table on the store. Filter, projection
// and limit run next to the data.
type ScanFragment struct {
	Table    TableRef
	Ranges   keyrange.ScanRanges
	Families []string
	// Filter is the residual predicate evaluated per row, or nil.
	Filter expression.Expression
	// DynamicFilter is set when key ranges can only be computed once
	// correlated values are bound; the runtime recompiles ranges from it.
	DynamicFilter expression.Expression
	Order         ScanOrder
	Limit         *int64
	Projector     *TupleProjector
	// Output is the reference parents resolve columns against: Table itself
	// or the projected layout produced by Projector.
	Output TableRef
}

// ClientScanFragment post-processes its input on the client: filtering,
// ordering and limiting.
type ClientScanFragment struct {
	Input   Fragment
	Table   TableRef
	Filter  expression.Expression
	OrderBy []OrderByExpression
	Limit   *int64
}

// AggregateFragment groups and aggregates rows. A server aggregation rides
// on the scan request of Input; a client aggregation consumes Input's rows.
type AggregateFragment struct {
	Input       Fragment
	Table       TableRef
	Server      bool
	GroupBy     GroupBy
	Aggregators Aggregators
	OrderBy     []OrderByExpression
	Limit       *int64
}

// HashSubPlan is the build side of a broadcast hash join.
type HashSubPlan struct {
	Plan           Fragment
	Keys           []expression.Expression
	SingleValueRHS bool
}

// HashJoinFragment joins the probe-side Delegate against broadcast hash
// tables built from SubPlans.
type HashJoinFragment struct {
	Delegate Fragment
	Joined   TableRef
	JoinType queryir.JoinType
	LeftKeys []expression.Expression
	// PostFilter is the non-equi remainder of the join condition.
	PostFilter expression.Expression
	SubPlans   []HashSubPlan
	Projector  *TupleProjector
	// Output is the projected layout produced by Projector, unset when the
	// joined rows are returned as is.
	Output TableRef
}

// MergeJoinFragment joins two inputs sorted on their keys, on the client.
type MergeJoinFragment struct {
	Left, Right Fragment
	Joined      TableRef
	JoinType    queryir.JoinType
	LeftKeys    []expression.Expression
	RightKeys   []expression.Expression
	PostFilter  expression.Expression
}

// TupleProjectionFragment projects each row of Delegate through Projector.
type TupleProjectionFragment struct {
	Delegate   Fragment
	Projector  *TupleProjector
	Table      TableRef
	PostFilter expression.Expression
}

func (*ScanFragment) fragment()            {}
func (*ClientScanFragment) fragment()      {}
func (*AggregateFragment) fragment()       {}
func (*HashJoinFragment) fragment()        {}
func (*MergeJoinFragment) fragment()       {}
func (*TupleProjectionFragment) fragment() {}

func (f *ScanFragment) TableRef() TableRef {
	if f.Output.isZero() {
		return f.Table
	}
	return f.Output
}

func (f *HashJoinFragment) TableRef() TableRef {
	if f.Output.isZero() {
		return f.Joined
	}
	return f.Output
}

func (f *ClientScanFragment) TableRef() TableRef      { return f.Table }
func (f *AggregateFragment) TableRef() TableRef       { return f.Table }
func (f *MergeJoinFragment) TableRef() TableRef       { return f.Joined }
func (f *TupleProjectionFragment) TableRef() TableRef { return f.Table }

// Limit returns the row limit of f, or nil.
func Limit(f Fragment) *int64 {
	switch x := f.(type) {
	case *ScanFragment:
		return x.Limit
	case *ClientScanFragment:
		return x.Limit
	case *AggregateFragment:
		return x.Limit
	}
	return nil
}

// HasProjector reports whether a server projector is already serialized
// into f.
func HasProjector(f Fragment) bool {
	switch x := f.(type) {
	case *ScanFragment:
		return x.Projector != nil
	case *HashJoinFragment:
		return x.Projector != nil
	}
	return false
}

// BaseScan returns the scan f ultimately reads, following delegates and
// inputs (the probe side for joins), or nil.
func BaseScan(f Fragment) *ScanFragment {
	for f != nil {
		switch x := f.(type) {
		case *ScanFragment:
			return x
		case *ClientScanFragment:
			f = x.Input
		case *AggregateFragment:
			f = x.Input
		case *HashJoinFragment:
			f = x.Delegate
		case *MergeJoinFragment:
			f = x.Left
		case *TupleProjectionFragment:
			f = x.Delegate
		default:
			return nil
		}
	}
	return nil
}

// Int64 returns a pointer to n, for limits.
func Int64(n int64) *int64 { return &n }

func formatLimit(l *int64) string {
	if l == nil {
		return ""
	}
	return strconv.FormatInt(*l, 10)
}
