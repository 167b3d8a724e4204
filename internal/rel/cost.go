package rel

import (
	"fmt"
	"math"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/queryir"
)

// Cost is the estimated work of an operator: rows processed, cpu and io.
type Cost struct {
	Rows float64
	CPU  float64
	IO   float64
}

// InfiniteCost marks an operator that cannot run where it is placed.
var InfiniteCost = Cost{Rows: math.Inf(1), CPU: math.Inf(1), IO: math.Inf(1)}

// IsInfinite reports whether c is infinite.
func (c Cost) IsInfinite() bool {
	return math.IsInf(c.Rows, 1) || math.IsInf(c.CPU, 1) || math.IsInf(c.IO, 1)
}

// Plus adds two costs.
func (c Cost) Plus(o Cost) Cost {
	return Cost{Rows: c.Rows + o.Rows, CPU: c.CPU + o.CPU, IO: c.IO + o.IO}
}

// Multiply scales every component of c.
func (c Cost) Multiply(f float64) Cost {
	return Cost{Rows: c.Rows * f, CPU: c.CPU * f, IO: c.IO * f}
}

// Less orders costs by rows, then cpu, then io.
func (c Cost) Less(o Cost) bool {
	if c.Rows != o.Rows {
		return c.Rows < o.Rows
	}
	if c.CPU != o.CPU {
		return c.CPU < o.CPU
	}
	return c.IO < o.IO
}

func (c Cost) String() string {
	if c.IsInfinite() {
		return "{inf}"
	}
	return fmt.Sprintf("{%.4g rows, %.4g cpu, %.4g io}", c.Rows, c.CPU, c.IO)
}

// CostModel holds the weights that bias plans towards pushdown.
type CostModel struct {
	// PhoenixFactor scales every operator of this convention family, so
	// plans made of them beat generic plans.
	PhoenixFactor float64
	// ServerFactor scales work done inside a scan request.
	ServerFactor float64
	// ClientMergeFactor scales sorting merged server groups.
	ClientMergeFactor float64
	// OrderedGroupByFactor scales aggregation over key-ordered input.
	OrderedGroupByFactor float64
}

// DefaultCostModel returns the standard weights.
func DefaultCostModel() CostModel {
	return CostModel{
		PhoenixFactor:        0.5,
		ServerFactor:         0.2,
		ClientMergeFactor:    0.5,
		OrderedGroupByFactor: 0.5,
	}
}

// RowCount estimates the rows n produces under the default model.
func RowCount(n Node) float64 { return DefaultCostModel().RowCount(n) }

// SelfCost estimates the cost of n alone under the default model.
func SelfCost(n Node) Cost { return DefaultCostModel().SelfCost(n) }

// CumulativeCost estimates the cost of n and its inputs under the default
// model.
func CumulativeCost(n Node) Cost { return DefaultCostModel().CumulativeCost(n) }

// CumulativeCost is the self cost of n plus the cumulative cost of its
// inputs. It is infinite when any operator of the tree is.
func (m CostModel) CumulativeCost(n Node) Cost {
	total := m.SelfCost(n)
	for _, in := range n.Inputs() {
		if total.IsInfinite() {
			return InfiniteCost
		}
		total = total.Plus(m.CumulativeCost(in))
	}
	if total.IsInfinite() {
		return InfiniteCost
	}
	return total
}

// RowCount estimates the rows n produces.
func (m CostModel) RowCount(n Node) float64 {
	switch x := n.(type) {
	case *TableScan:
		rows := scanRows(x)
		if !x.staticRanges.IsPointLookup() && x.staticRanges.BoundPKCount() == 0 {
			rows *= Selectivity(x.Filter)
		}
		return capRows(rows, x.RowLimit)
	case *Filter:
		return m.RowCount(x.Input) * Selectivity(x.Condition)
	case *ServerProject:
		return m.RowCount(x.Input)
	case *ClientProject:
		return m.RowCount(x.Input)
	case *ServerAggregate:
		return aggregateRows(m.RowCount(x.Input), x.AggregateSpec)
	case *ClientAggregate:
		return aggregateRows(m.RowCount(x.Input), x.AggregateSpec)
	case *ServerJoin:
		return m.joinRows(x.Left, x.Right, x.JoinSpec)
	case *ClientJoin:
		return m.joinRows(x.Left, x.Right, x.JoinSpec)
	case *LogicalJoin:
		return m.joinRows(x.Left, x.Right, x.JoinSpec)
	case *ClientSort:
		return capRows(m.RowCount(x.Input), x.Fetch)
	case *CompactClientSort:
		return capRows(m.RowCount(x.Input), x.Fetch)
	case *Union:
		total := 0.0
		for _, in := range x.Children {
			total += m.RowCount(in)
		}
		return total
	case *ToClient:
		return m.RowCount(x.Input)
	}
	return 1
}

// scanRows is the number of rows a scan reads: one for a point lookup, the
// table rows narrowed by each bound key column otherwise.
func scanRows(s *TableScan) float64 {
	rows := s.Table.RowCount
	if rows <= 0 {
		rows = catalog.DefaultRowCount
	}
	switch {
	case s.staticRanges.IsPointLookup():
		return 1
	case s.staticRanges.BoundPKCount() > 0:
		return rows * math.Pow(Selectivity(s.Filter), float64(s.staticRanges.BoundPKCount()))
	}
	return rows
}

func capRows(rows float64, limit *int64) float64 {
	if limit != nil && float64(*limit) < rows {
		return float64(*limit)
	}
	return rows
}

func aggregateRows(input float64, spec AggregateSpec) float64 {
	if len(spec.GroupSet) == 0 {
		return 1
	}
	return math.Max(1, input*(1-math.Pow(0.5, float64(len(spec.GroupSet)))))
}

func (m CostModel) joinRows(left, right Node, spec JoinSpec) float64 {
	l, r := m.RowCount(left), m.RowCount(right)
	rows := l * r * Selectivity(spec.Condition)
	if spec.SingleValueRHS {
		rows = l
	}
	switch spec.JoinType {
	case queryir.JoinLeft:
		rows = math.Max(rows, l)
	case queryir.JoinRight:
		rows = math.Max(rows, r)
	case queryir.JoinFull:
		rows = math.Max(rows, l+r)
	}
	return rows
}

// SelfCost estimates the cost of n alone. Operators placed where they cannot
// run cost InfiniteCost.
func (m CostModel) SelfCost(n Node) Cost {
	if !Legal(n) {
		return InfiniteCost
	}
	switch x := n.(type) {
	case *TableScan:
		return m.scanCost(x)
	case *Filter:
		rows := m.RowCount(x.Input)
		return Cost{Rows: rows, CPU: rows}.Multiply(m.PhoenixFactor)
	case *ServerProject:
		return projectCost(m.RowCount(x.Input), len(x.Exprs)).Multiply(m.ServerFactor).Multiply(m.PhoenixFactor)
	case *ClientProject:
		return projectCost(m.RowCount(x.Input), len(x.Exprs)).Multiply(m.PhoenixFactor)
	case *ServerAggregate:
		return m.aggregateCost(m.RowCount(x.Input), x.AggregateSpec).Multiply(m.ServerFactor).Multiply(m.PhoenixFactor)
	case *ClientAggregate:
		return m.aggregateCost(m.RowCount(x.Input), x.AggregateSpec).Multiply(m.PhoenixFactor)
	case *ServerJoin:
		rows := m.RowCount(x)
		if left := m.RowCount(x.Left); math.IsInf(left, 1) {
			rows = left
		} else if right := m.RowCount(x.Right); math.IsInf(right, 1) {
			rows = right
		} else {
			rows += left + nLogN(right)
		}
		return Cost{Rows: rows}.Multiply(m.ServerFactor).Multiply(m.PhoenixFactor)
	case *ClientJoin:
		rows := m.RowCount(x) + m.RowCount(x.Left) + m.RowCount(x.Right)
		return Cost{Rows: rows}.Multiply(m.PhoenixFactor)
	case *ClientSort:
		return sortCost(m.RowCount(x.Input), len(x.RowType()), x.SortSpec).Multiply(m.PhoenixFactor)
	case *CompactClientSort:
		return sortCost(m.RowCount(x.Input), len(x.RowType()), x.SortSpec).Multiply(m.ClientMergeFactor).Multiply(m.PhoenixFactor)
	case *Union:
		return Cost{Rows: m.RowCount(x)}.Multiply(m.PhoenixFactor)
	case *ToClient:
		return Cost{}
	}
	return InfiniteCost
}

func (m CostModel) scanCost(s *TableScan) Cost {
	rows := capRows(scanRows(s), s.RowLimit)
	if s.staticRanges.BoundPKCount() == 0 && s.Table.IsIndex() {
		// Base tables win ties against their indexes.
		rows = addEpsilon(rows)
	}
	switch s.Order {
	case plan.ScanOrderForward:
		rows = addEpsilon(rows)
	case plan.ScanOrderReverse:
		rows = addEpsilon(addEpsilon(rows))
	}
	fields := float64(len(s.Table.Columns))
	return Cost{Rows: rows * 2 * fields / (fields + 1), CPU: rows + 1}.Multiply(m.PhoenixFactor)
}

// addEpsilon nudges d up by an amount that only decides between otherwise
// equal plans.
func addEpsilon(d float64) float64 {
	if d < 10 {
		return d * 1.001
	}
	bumped := d + 1
	if bumped == d {
		return d * 1.001
	}
	return bumped
}

func projectCost(rows float64, exprs int) Cost {
	return Cost{Rows: rows, CPU: rows * float64(exprs)}
}

func (m CostModel) aggregateCost(inputRows float64, spec AggregateSpec) Cost {
	c := Cost{Rows: inputRows * (1 + 0.125*float64(len(spec.Calls)))}
	if spec.Ordered {
		c = c.Multiply(m.OrderedGroupByFactor)
	}
	return c
}

func sortCost(inputRows float64, fields int, s SortSpec) Cost {
	rows := capRows(inputRows, s.Fetch)
	if len(s.Order) == 0 {
		return Cost{Rows: rows}
	}
	return Cost{Rows: rows, CPU: nLogN(inputRows) * float64(fields) * 4}
}

func nLogN(d float64) float64 {
	if d < math.E {
		return d
	}
	return d * math.Log(d)
}

// Selectivity guesses the fraction of rows that satisfy condition.
func Selectivity(condition queryir.Node) float64 {
	if condition == nil || queryir.IsAlwaysTrue(condition) {
		return 1
	}
	call, ok := condition.(*queryir.Call)
	if !ok {
		return 0.25
	}
	switch call.Op {
	case queryir.OpAnd:
		sel := 1.0
		for _, op := range call.Operands {
			sel *= Selectivity(op)
		}
		return sel
	case queryir.OpEquals:
		return 0.15
	case queryir.OpNotEquals, queryir.OpGreaterThan, queryir.OpGreaterThanOrEqual,
		queryir.OpLessThan, queryir.OpLessThanOrEqual:
		return 0.5
	case queryir.OpIsNotNull:
		return 0.9
	}
	return 0.25
}

// Legal reports whether n can run where it is placed, given the locations
// of its inputs.
func Legal(n Node) bool {
	switch x := n.(type) {
	case *TableScan:
		return true
	case *ServerProject:
		c := x.Input.Convention()
		return c == ConventionServer || c == ConventionServerJoin || c == ConventionProjectable
	case *ServerAggregate:
		c := x.Input.Convention()
		return (c == ConventionServer || c == ConventionServerJoin) && !x.IsSingleValueCheck()
	case *ServerJoin:
		return x.Left.Convention() == ConventionServer &&
			x.Right.Convention() == ConventionClient &&
			x.JoinType != queryir.JoinFull && x.JoinType != queryir.JoinRight
	case *ToClient:
		return x.Input.Convention().IsServerSide()
	case *LogicalJoin:
		return false
	case *Filter, *ClientProject, *ClientAggregate, *ClientJoin, *ClientSort, *CompactClientSort, *Union:
		for _, in := range n.Inputs() {
			if in.Convention() != ConventionClient {
				return false
			}
		}
		return true
	}
	return false
}
