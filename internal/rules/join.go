package rules

import (
	"github.com/roach88/pushplan/internal/queryir"
	"github.com/roach88/pushplan/internal/rel"
)

// JoinSort turns a logical join into a sort-merge join on the client: both
// inputs are sorted ascending on their join keys.
type JoinSort struct{}

func (JoinSort) Name() string { return "JoinSort" }

func (JoinSort) Match(n rel.Node) bool {
	_, ok := n.(*rel.LogicalJoin)
	return ok
}

func (JoinSort) Apply(n rel.Node) ([]rel.Node, error) {
	j := n.(*rel.LogicalJoin)
	info := queryir.AnalyzeJoin(j.Condition, len(j.Left.RowType()))
	left, right := toClient(j.Left), toClient(j.Right)
	if len(info.LeftKeys) > 0 {
		left = rel.NewClientSort(left, rel.SortSpec{Order: queryir.Ascending(info.LeftKeys...)})
		right = rel.NewClientSort(right, rel.SortSpec{Order: queryir.Ascending(info.RightKeys...)})
	}
	return []rel.Node{rel.NewClientJoin(left, right, j.JoinSpec)}, nil
}

// ServerJoin turns a logical join whose left input is a scan into a
// broadcast hash join: the right input is collected on the client and the
// left scan probes it.
type ServerJoin struct{}

func (ServerJoin) Name() string { return "ServerJoin" }

func (ServerJoin) Match(n rel.Node) bool {
	j, ok := n.(*rel.LogicalJoin)
	if !ok || j.JoinType == queryir.JoinFull || j.JoinType == queryir.JoinRight {
		return false
	}
	return probeSide(j.Left) != nil
}

func (ServerJoin) Apply(n rel.Node) ([]rel.Node, error) {
	j := n.(*rel.LogicalJoin)
	return []rel.Node{rel.NewServerJoin(probeSide(j.Left), toClient(j.Right), j.JoinSpec)}, nil
}

// probeSide returns the server-side node a hash join can probe from, or nil.
func probeSide(n rel.Node) rel.Node {
	if in, ok := underToClient(n); ok {
		n = in
	}
	if n.Convention() != rel.ConventionServer {
		return nil
	}
	return n
}

// JoinSingleValueAggregateMerge drops a SINGLE_VALUE check on the right
// input of a join and lets the hash join enforce it instead.
type JoinSingleValueAggregateMerge struct{}

func (JoinSingleValueAggregateMerge) Name() string { return "JoinSingleValueAggregateMerge" }

func (JoinSingleValueAggregateMerge) Match(n rel.Node) bool {
	j, ok := n.(*rel.LogicalJoin)
	if !ok || j.SingleValueRHS {
		return false
	}
	_, ok = singleValueInput(j.Right)
	return ok
}

func (JoinSingleValueAggregateMerge) Apply(n rel.Node) ([]rel.Node, error) {
	j := n.(*rel.LogicalJoin)
	input, _ := singleValueInput(j.Right)
	spec := j.JoinSpec
	spec.SingleValueRHS = true
	return []rel.Node{rel.NewLogicalJoin(j.Left, input, spec)}, nil
}

// singleValueInput returns the input of an ungrouped SINGLE_VALUE aggregate
// over a single column, so that removing the aggregate keeps the row type.
func singleValueInput(n rel.Node) (rel.Node, bool) {
	var spec rel.AggregateSpec
	var input rel.Node
	switch x := n.(type) {
	case *rel.ClientAggregate:
		spec, input = x.AggregateSpec, x.Input
	case *rel.ServerAggregate:
		spec, input = x.AggregateSpec, x.Input
	default:
		return nil, false
	}
	if !spec.IsSingleValueCheck() || len(spec.GroupSet) != 0 {
		return nil, false
	}
	args := spec.Calls[0].Args
	if len(args) != 1 || args[0] != 0 || len(input.RowType()) != 1 {
		return nil, false
	}
	return input, true
}
