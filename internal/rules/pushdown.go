package rules

import (
	"github.com/samber/lo"

	"github.com/roach88/pushplan/internal/queryir"
	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/translate"
)

// ServerProject evaluates a client projection inside the scan request
// below it.
type ServerProject struct{}

func (ServerProject) Name() string { return "ServerProject" }

func (ServerProject) Match(n rel.Node) bool {
	p, ok := n.(*rel.ClientProject)
	if !ok {
		return false
	}
	if !lo.EveryBy(p.Exprs, translate.IsSupported) {
		return false
	}
	in, ok := underToClient(p.Input)
	if !ok {
		return false
	}
	switch in.(type) {
	case *rel.TableScan, *rel.ServerJoin:
		return true
	}
	return false
}

func (ServerProject) Apply(n rel.Node) ([]rel.Node, error) {
	p := n.(*rel.ClientProject)
	in, _ := underToClient(p.Input)
	return []rel.Node{rel.NewToClient(rel.NewServerProject(in, p.Exprs, p.Names))}, nil
}

// ServerAggregate evaluates a client aggregation inside the scan request
// below it. Only the aggregate functions the store implements qualify.
type ServerAggregate struct{}

func (ServerAggregate) Name() string { return "ServerAggregate" }

func (ServerAggregate) Match(n rel.Node) bool {
	a, ok := n.(*rel.ClientAggregate)
	if !ok || a.IsSingleValueCheck() {
		return false
	}
	if !lo.EveryBy(a.Calls, func(c queryir.AggCall) bool { return translate.IsAggregateSupported(c.Func) }) {
		return false
	}
	in, ok := underToClient(a.Input)
	return ok && aggregatable(in)
}

func (ServerAggregate) Apply(n rel.Node) ([]rel.Node, error) {
	a := n.(*rel.ClientAggregate)
	in, _ := underToClient(a.Input)
	agg, err := rel.NewServerAggregate(in, a.GroupSet, nil, a.Calls)
	if err != nil {
		return nil, err
	}
	return []rel.Node{agg}, nil
}

// aggregatable reports whether a server aggregation can ride on n: a scan
// without a limit, or a server projection of such a scan or of a hash join.
func aggregatable(n rel.Node) bool {
	if p, ok := n.(*rel.ServerProject); ok {
		if _, ok := p.Input.(*rel.ServerJoin); ok {
			return true
		}
		n = p.Input
	}
	scan, ok := n.(*rel.TableScan)
	return ok && scan.RowLimit == nil
}
