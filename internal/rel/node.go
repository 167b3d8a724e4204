package rel

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/keyrange"
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/planerr"
	"github.com/roach88/pushplan/internal/queryir"
)

// Node is a relational operator with a fixed output row type and a physical
// location. Nodes are immutable: WithInputs returns a copy.
//
// This is a sealed interface: only types in this package implement it.
type Node interface {
	node()
	Inputs() []Node
	RowType() queryir.RowType
	Convention() Convention
	// Collation is the order rows are produced in, or nil.
	Collation() queryir.Collation
	// WithInputs returns a copy of the node over inputs. The number of
	// inputs must match Inputs().
	WithInputs(inputs ...Node) Node
}

// TableScan reads one table. Filter is the residual predicate pushed next to
// the data; Order forces row-key order; RowLimit caps the rows returned.
type TableScan struct {
	Table    *catalog.Table
	Filter   queryir.Node
	Order    plan.ScanOrder
	RowLimit *int64

	staticRanges keyrange.ScanRanges
}

// NewTableScan creates a scan. Key ranges are estimated up front, binding
// correlated variables to sample values.
func NewTableScan(table *catalog.Table, filter queryir.Node, order plan.ScanOrder, limit *int64) *TableScan {
	if queryir.IsAlwaysTrue(filter) {
		filter = nil
	}
	return &TableScan{
		Table:        table,
		Filter:       filter,
		Order:        order,
		RowLimit:     limit,
		staticRanges: keyrange.Push(table, filter, keyrange.SampleBinder).Ranges,
	}
}

// StaticRanges are the key ranges estimated with sample correlated values.
func (s *TableScan) StaticRanges() keyrange.ScanRanges { return s.staticRanges }

// Filter evaluates a predicate on the client.
type Filter struct {
	Input     Node
	Condition queryir.Node
}

func NewFilter(input Node, condition queryir.Node) *Filter {
	return &Filter{Input: input, Condition: condition}
}

// ServerProject computes expressions inside the scan request of its input.
type ServerProject struct {
	Input Node
	Exprs []queryir.Node
	Names []string
}

func NewServerProject(input Node, exprs []queryir.Node, names []string) *ServerProject {
	return &ServerProject{Input: input, Exprs: exprs, Names: projectNames(exprs, names)}
}

// ClientProject computes expressions on the client.
type ClientProject struct {
	Input Node
	Exprs []queryir.Node
	Names []string
}

func NewClientProject(input Node, exprs []queryir.Node, names []string) *ClientProject {
	return &ClientProject{Input: input, Exprs: exprs, Names: projectNames(exprs, names)}
}

func projectNames(exprs []queryir.Node, names []string) []string {
	out := make([]string, len(exprs))
	for i := range exprs {
		if i < len(names) && names[i] != "" {
			out[i] = names[i]
		} else {
			out[i] = fmt.Sprintf("EXPR$%d", i)
		}
	}
	return out
}

// AggregateSpec describes an aggregation: group-by columns (ascending
// ordinals) and aggregate calls in declaration order. Ordered is set when
// the input arrives sorted on the group columns.
type AggregateSpec struct {
	GroupSet []int
	Calls    []queryir.AggCall
	Ordered  bool
}

// IsSingleValueCheck reports whether the aggregation only asserts that its
// input has at most one row.
func (s AggregateSpec) IsSingleValueCheck() bool {
	return len(s.Calls) == 1 && s.Calls[0].Func == queryir.AggSingleValue
}

func newAggregateSpec(input Node, groupSet []int, groupSets [][]int, calls []queryir.AggCall) (AggregateSpec, error) {
	for _, c := range calls {
		if c.Distinct {
			return AggregateSpec{}, planerr.Unsupported("DISTINCT aggregate", "distinct aggregation %s is not supported", c)
		}
	}
	group := slices.Clone(groupSet)
	slices.Sort(group)
	group = slices.Compact(group)
	switch {
	case len(groupSets) == 0:
	case len(groupSets) == 1 && sameSet(groupSets[0], group):
	default:
		return AggregateSpec{}, planerr.Unsupported("grouping sets", "only simple grouping is supported, got %d grouping sets", len(groupSets))
	}
	return AggregateSpec{GroupSet: group, Calls: calls, Ordered: isOrderedGroupSet(group, input)}, nil
}

func sameSet(a, b []int) bool {
	return len(lo.Uniq(a)) == len(b) && len(lo.Intersect(a, b)) == len(b)
}

// isOrderedGroupSet reports whether the leading fields of the input
// collation are exactly the group columns, in any order.
func isOrderedGroupSet(group []int, input Node) bool {
	if len(group) == 0 {
		return true
	}
	collation := input.Collation()
	if len(collation) < len(group) {
		return false
	}
	leading := lo.Map(collation[:len(group)], func(f queryir.FieldCollation, _ int) int { return f.Index })
	return sameSet(leading, group)
}

func (s AggregateSpec) rowType(input queryir.RowType) queryir.RowType {
	out := make(queryir.RowType, 0, len(s.GroupSet)+len(s.Calls))
	for _, g := range s.GroupSet {
		out = append(out, input[g])
	}
	for i, c := range s.Calls {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("EXPR$%d", len(s.GroupSet)+i)
		}
		out = append(out, queryir.Field{Name: name, Type: aggCallType(c, input)})
	}
	return out
}

// ServerAggregate aggregates inside the scan request of its input and
// delivers the groups to the client.
type ServerAggregate struct {
	Input Node
	AggregateSpec
}

// NewServerAggregate creates a server aggregation. DISTINCT calls and
// grouping sets are rejected.
func NewServerAggregate(input Node, groupSet []int, groupSets [][]int, calls []queryir.AggCall) (*ServerAggregate, error) {
	spec, err := newAggregateSpec(input, groupSet, groupSets, calls)
	if err != nil {
		return nil, err
	}
	return &ServerAggregate{Input: input, AggregateSpec: spec}, nil
}

// ClientAggregate aggregates rows on the client.
type ClientAggregate struct {
	Input Node
	AggregateSpec
}

// NewClientAggregate creates a client aggregation. DISTINCT calls and
// grouping sets are rejected.
func NewClientAggregate(input Node, groupSet []int, groupSets [][]int, calls []queryir.AggCall) (*ClientAggregate, error) {
	spec, err := newAggregateSpec(input, groupSet, groupSets, calls)
	if err != nil {
		return nil, err
	}
	return &ClientAggregate{Input: input, AggregateSpec: spec}, nil
}

// JoinSpec is the condition and kind shared by the join variants.
type JoinSpec struct {
	Condition queryir.Node
	JoinType  queryir.JoinType
	// SingleValueRHS is set when the right input must produce at most one
	// row per key.
	SingleValueRHS bool
}

// ServerJoin is a broadcast hash join: the right input is built into a hash
// table on the client and probed by the scan of the left input.
type ServerJoin struct {
	Left, Right Node
	JoinSpec
}

func NewServerJoin(left, right Node, spec JoinSpec) *ServerJoin {
	return &ServerJoin{Left: left, Right: right, JoinSpec: spec}
}

// ClientJoin is a sort-merge join on the client.
type ClientJoin struct {
	Left, Right Node
	JoinSpec
}

func NewClientJoin(left, right Node, spec JoinSpec) *ClientJoin {
	return &ClientJoin{Left: left, Right: right, JoinSpec: spec}
}

// LogicalJoin is a join that has not been assigned a strategy yet.
type LogicalJoin struct {
	Left, Right Node
	JoinSpec
}

func NewLogicalJoin(left, right Node, spec JoinSpec) *LogicalJoin {
	return &LogicalJoin{Left: left, Right: right, JoinSpec: spec}
}

// SortSpec orders and limits rows. An empty Order only limits.
type SortSpec struct {
	Order  queryir.Collation
	Offset *int64
	Fetch  *int64
}

// ClientSort sorts and limits rows on the client.
type ClientSort struct {
	Input Node
	SortSpec
}

func NewClientSort(input Node, spec SortSpec) *ClientSort {
	return &ClientSort{Input: input, SortSpec: spec}
}

// CompactClientSort sorts the groups of a server aggregation while they are
// merged on the client.
type CompactClientSort struct {
	Input Node
	SortSpec
}

func NewCompactClientSort(input Node, spec SortSpec) *CompactClientSort {
	return &CompactClientSort{Input: input, SortSpec: spec}
}

// Union concatenates its inputs.
type Union struct {
	Children []Node
	All      bool
}

func NewUnion(all bool, inputs ...Node) *Union {
	return &Union{Children: inputs, All: all}
}

// ToClient moves rows from a server location to the client.
type ToClient struct {
	Input Node
}

func NewToClient(input Node) *ToClient {
	return &ToClient{Input: input}
}

func (*TableScan) node()         {}
func (*Filter) node()            {}
func (*ServerProject) node()     {}
func (*ClientProject) node()     {}
func (*ServerAggregate) node()   {}
func (*ClientAggregate) node()   {}
func (*ServerJoin) node()        {}
func (*ClientJoin) node()        {}
func (*LogicalJoin) node()       {}
func (*ClientSort) node()        {}
func (*CompactClientSort) node() {}
func (*Union) node()             {}
func (*ToClient) node()          {}

func (*TableScan) Inputs() []Node           { return nil }
func (n *Filter) Inputs() []Node            { return []Node{n.Input} }
func (n *ServerProject) Inputs() []Node     { return []Node{n.Input} }
func (n *ClientProject) Inputs() []Node     { return []Node{n.Input} }
func (n *ServerAggregate) Inputs() []Node   { return []Node{n.Input} }
func (n *ClientAggregate) Inputs() []Node   { return []Node{n.Input} }
func (n *ServerJoin) Inputs() []Node        { return []Node{n.Left, n.Right} }
func (n *ClientJoin) Inputs() []Node        { return []Node{n.Left, n.Right} }
func (n *LogicalJoin) Inputs() []Node       { return []Node{n.Left, n.Right} }
func (n *ClientSort) Inputs() []Node        { return []Node{n.Input} }
func (n *CompactClientSort) Inputs() []Node { return []Node{n.Input} }
func (n *Union) Inputs() []Node             { return n.Children }
func (n *ToClient) Inputs() []Node          { return []Node{n.Input} }

func (n *TableScan) RowType() queryir.RowType         { return n.Table.RowType() }
func (n *Filter) RowType() queryir.RowType            { return n.Input.RowType() }
func (n *ServerProject) RowType() queryir.RowType     { return projectRowType(n.Exprs, n.Names) }
func (n *ClientProject) RowType() queryir.RowType     { return projectRowType(n.Exprs, n.Names) }
func (n *ServerAggregate) RowType() queryir.RowType   { return n.rowType(n.Input.RowType()) }
func (n *ClientAggregate) RowType() queryir.RowType   { return n.rowType(n.Input.RowType()) }
func (n *ServerJoin) RowType() queryir.RowType        { return n.Left.RowType().Concat(n.Right.RowType()) }
func (n *ClientJoin) RowType() queryir.RowType        { return n.Left.RowType().Concat(n.Right.RowType()) }
func (n *LogicalJoin) RowType() queryir.RowType       { return n.Left.RowType().Concat(n.Right.RowType()) }
func (n *ClientSort) RowType() queryir.RowType        { return n.Input.RowType() }
func (n *CompactClientSort) RowType() queryir.RowType { return n.Input.RowType() }
func (n *ToClient) RowType() queryir.RowType          { return n.Input.RowType() }

func (n *Union) RowType() queryir.RowType {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[0].RowType()
}

func projectRowType(exprs []queryir.Node, names []string) queryir.RowType {
	out := make(queryir.RowType, len(exprs))
	for i, e := range exprs {
		out[i] = queryir.Field{Name: names[i], Type: e.Type()}
	}
	return out
}

func (*TableScan) Convention() Convention         { return ConventionServer }
func (*Filter) Convention() Convention            { return ConventionClient }
func (*ClientProject) Convention() Convention     { return ConventionClient }
func (*ServerAggregate) Convention() Convention   { return ConventionClient }
func (*ClientAggregate) Convention() Convention   { return ConventionClient }
func (*ServerJoin) Convention() Convention        { return ConventionProjectable }
func (*ClientJoin) Convention() Convention        { return ConventionClient }
func (*LogicalJoin) Convention() Convention       { return ConventionNone }
func (*ClientSort) Convention() Convention        { return ConventionClient }
func (*CompactClientSort) Convention() Convention { return ConventionClient }
func (*Union) Convention() Convention             { return ConventionClient }
func (*ToClient) Convention() Convention          { return ConventionClient }

// Convention is the input's location, except that projecting a server join
// turns it into a plain server join probe.
func (n *ServerProject) Convention() Convention {
	switch c := n.Input.Convention(); c {
	case ConventionProjectable, ConventionServerJoin:
		return ConventionServerJoin
	default:
		return c
	}
}

func (n *TableScan) Collation() queryir.Collation {
	switch n.Order {
	case plan.ScanOrderForward:
		return n.Table.Collation()
	case plan.ScanOrderReverse:
		return reverseCollation(n.Table.Collation())
	}
	return nil
}

func reverseCollation(c queryir.Collation) queryir.Collation {
	return lo.Map(c, func(f queryir.FieldCollation, _ int) queryir.FieldCollation {
		if f.Direction == queryir.Desc {
			return queryir.FieldCollation{Index: f.Index, Direction: queryir.Asc, NullsLast: !f.NullsLast}
		}
		return queryir.FieldCollation{Index: f.Index, Direction: queryir.Desc, NullsLast: !f.NullsLast}
	})
}

func (n *Filter) Collation() queryir.Collation            { return n.Input.Collation() }
func (n *ServerProject) Collation() queryir.Collation     { return projectCollation(n.Input, n.Exprs) }
func (n *ClientProject) Collation() queryir.Collation     { return projectCollation(n.Input, n.Exprs) }
func (*ServerAggregate) Collation() queryir.Collation     { return nil }
func (*ClientAggregate) Collation() queryir.Collation     { return nil }
func (n *ServerJoin) Collation() queryir.Collation        { return n.Left.Collation() }
func (n *ClientJoin) Collation() queryir.Collation        { return n.Left.Collation() }
func (*LogicalJoin) Collation() queryir.Collation         { return nil }
func (n *ClientSort) Collation() queryir.Collation        { return sortCollation(n.Input, n.SortSpec) }
func (n *CompactClientSort) Collation() queryir.Collation { return sortCollation(n.Input, n.SortSpec) }
func (*Union) Collation() queryir.Collation               { return nil }
func (n *ToClient) Collation() queryir.Collation          { return n.Input.Collation() }

func sortCollation(input Node, s SortSpec) queryir.Collation {
	if len(s.Order) == 0 {
		return input.Collation()
	}
	return s.Order
}

// projectCollation maps the input collation through the bare column
// references of a projection. The mapped prefix ends at the first field
// the projection drops.
func projectCollation(input Node, exprs []queryir.Node) queryir.Collation {
	positions := map[int]int{}
	for i, e := range exprs {
		if ref, ok := e.(*queryir.InputRef); ok {
			if _, seen := positions[ref.Index]; !seen {
				positions[ref.Index] = i
			}
		}
	}
	var out queryir.Collation
	for _, f := range input.Collation() {
		p, ok := positions[f.Index]
		if !ok {
			break
		}
		f.Index = p
		out = append(out, f)
	}
	return out
}

func (n *TableScan) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 0)
	return n
}

func (n *Filter) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 1)
	return NewFilter(inputs[0], n.Condition)
}

func (n *ServerProject) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 1)
	return NewServerProject(inputs[0], n.Exprs, n.Names)
}

func (n *ClientProject) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 1)
	return NewClientProject(inputs[0], n.Exprs, n.Names)
}

func (n *ServerAggregate) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 1)
	spec := n.AggregateSpec
	spec.Ordered = isOrderedGroupSet(spec.GroupSet, inputs[0])
	return &ServerAggregate{Input: inputs[0], AggregateSpec: spec}
}

func (n *ClientAggregate) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 1)
	spec := n.AggregateSpec
	spec.Ordered = isOrderedGroupSet(spec.GroupSet, inputs[0])
	return &ClientAggregate{Input: inputs[0], AggregateSpec: spec}
}

func (n *ServerJoin) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 2)
	return NewServerJoin(inputs[0], inputs[1], n.JoinSpec)
}

func (n *ClientJoin) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 2)
	return NewClientJoin(inputs[0], inputs[1], n.JoinSpec)
}

func (n *LogicalJoin) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 2)
	return NewLogicalJoin(inputs[0], inputs[1], n.JoinSpec)
}

func (n *ClientSort) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 1)
	return NewClientSort(inputs[0], n.SortSpec)
}

func (n *CompactClientSort) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 1)
	return NewCompactClientSort(inputs[0], n.SortSpec)
}

func (n *Union) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, len(n.Children))
	return NewUnion(n.All, slices.Clone(inputs)...)
}

func (n *ToClient) WithInputs(inputs ...Node) Node {
	mustInputs(n, inputs, 1)
	return NewToClient(inputs[0])
}

func mustInputs(n Node, inputs []Node, want int) {
	if len(inputs) != want {
		panic(fmt.Sprintf("%s: want %d inputs, got %d", Name(n), want, len(inputs)))
	}
}

// Name returns the operator name used in explain output.
func Name(n Node) string {
	switch n.(type) {
	case *TableScan:
		return "TableScan"
	case *Filter:
		return "Filter"
	case *ServerProject:
		return "ServerProject"
	case *ClientProject:
		return "ClientProject"
	case *ServerAggregate:
		return "ServerAggregate"
	case *ClientAggregate:
		return "ClientAggregate"
	case *ServerJoin:
		return "ServerJoin"
	case *ClientJoin:
		return "ClientJoin"
	case *LogicalJoin:
		return "LogicalJoin"
	case *ClientSort:
		return "ClientSort"
	case *CompactClientSort:
		return "CompactClientSort"
	case *Union:
		return "Union"
	case *ToClient:
		return "ToClient"
	}
	return fmt.Sprintf("%T", n)
}

func aggCallType(c queryir.AggCall, input queryir.RowType) ir.DataType {
	switch {
	case c.DataType != ir.TypeUnknown:
		return c.DataType
	case c.Func == queryir.AggCount || len(c.Args) == 0:
		return ir.TypeLong
	case c.Args[0] < len(input):
		return input[c.Args[0]].Type
	}
	return ir.TypeUnknown
}
