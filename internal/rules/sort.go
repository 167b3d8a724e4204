package rules

import "github.com/roach88/pushplan/internal/rel"

// CompactClientSort sorts server aggregation groups while they are merged,
// instead of collecting them and sorting afterwards.
type CompactClientSort struct{}

func (CompactClientSort) Name() string { return "CompactClientSort" }

func (CompactClientSort) Match(n rel.Node) bool {
	sort, ok := n.(*rel.ClientSort)
	if !ok || sort.Offset != nil {
		return false
	}
	_, ok = sort.Input.(*rel.ServerAggregate)
	return ok
}

func (CompactClientSort) Apply(n rel.Node) ([]rel.Node, error) {
	sort := n.(*rel.ClientSort)
	return []rel.Node{rel.NewCompactClientSort(sort.Input, sort.SortSpec)}, nil
}

// InnerSortRemove drops a sort that neither limits rows nor reorders them.
type InnerSortRemove struct{}

func (InnerSortRemove) Name() string { return "InnerSortRemove" }

func (InnerSortRemove) Match(n rel.Node) bool {
	spec, input, ok := sortOf(n)
	return ok && spec.Offset == nil && spec.Fetch == nil && input.Collation().Satisfies(spec.Order)
}

func (InnerSortRemove) Apply(n rel.Node) ([]rel.Node, error) {
	_, input, _ := sortOf(n)
	return []rel.Node{input}, nil
}

func sortOf(n rel.Node) (rel.SortSpec, rel.Node, bool) {
	switch x := n.(type) {
	case *rel.ClientSort:
		return x.SortSpec, x.Input, true
	case *rel.CompactClientSort:
		return x.SortSpec, x.Input, true
	}
	return rel.SortSpec{}, nil, false
}
