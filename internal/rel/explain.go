package rel

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/queryir"
)

type attr struct {
	key, value string
}

func attributes(n Node) []attr {
	var out []attr
	add := func(key, value string) { out = append(out, attr{key, value}) }
	addIf := func(key, value string, ok bool) {
		if ok {
			add(key, value)
		}
	}

	switch x := n.(type) {
	case *TableScan:
		add("table", "["+strings.Trim(x.Table.QualifiedName(), "[]")+"]")
		addIf("filter", nodeString(x.Filter), x.Filter != nil)
		addIf("scanOrder", x.Order.String(), x.Order != plan.ScanOrderNone)
		if x.RowLimit != nil {
			add("limit", limitString(x.RowLimit))
		}
	case *Filter:
		add("condition", x.Condition.String())
	case *ServerProject:
		for i, e := range x.Exprs {
			add(x.Names[i], e.String())
		}
	case *ClientProject:
		for i, e := range x.Exprs {
			add(x.Names[i], e.String())
		}
	case *ServerAggregate:
		out = aggregateAttributes(x.AggregateSpec, x.Input)
	case *ClientAggregate:
		out = aggregateAttributes(x.AggregateSpec, x.Input)
	case *ServerJoin:
		out = joinAttributes(x.JoinSpec)
	case *ClientJoin:
		out = joinAttributes(x.JoinSpec)
	case *LogicalJoin:
		out = joinAttributes(x.JoinSpec)
	case *ClientSort:
		out = sortAttributes(x.SortSpec)
	case *CompactClientSort:
		out = sortAttributes(x.SortSpec)
	case *Union:
		add("all", strconv.FormatBool(x.All))
	case *ToClient:
	}
	return out
}

func aggregateAttributes(s AggregateSpec, input Node) []attr {
	groups := lo.Map(s.GroupSet, func(g int, _ int) string { return strconv.Itoa(g) })
	out := []attr{{"group", "{" + strings.Join(groups, ", ") + "}"}}
	for i, f := range s.rowType(input.RowType())[len(s.GroupSet):] {
		out = append(out, attr{f.Name, s.Calls[i].String()})
	}
	if len(s.GroupSet) > 0 {
		out = append(out, attr{"isOrdered", strconv.FormatBool(s.Ordered)})
	}
	return out
}

func joinAttributes(s JoinSpec) []attr {
	out := []attr{
		{"condition", nodeString(s.Condition)},
		{"joinType", s.JoinType.String()},
	}
	if s.SingleValueRHS {
		out = append(out, attr{"isSingleValueRhs", "true"})
	}
	return out
}

func sortAttributes(s SortSpec) []attr {
	var out []attr
	if len(s.Order) > 0 {
		out = append(out, attr{"collation", s.Order.String()})
	}
	if s.Offset != nil {
		out = append(out, attr{"offset", limitString(s.Offset)})
	}
	if s.Fetch != nil {
		out = append(out, attr{"fetch", limitString(s.Fetch)})
	}
	return out
}

func nodeString(n queryir.Node) string {
	if n == nil {
		return "true"
	}
	return n.String()
}

func limitString(l *int64) string {
	return strconv.FormatInt(*l, 10)
}

// Explain renders n as text: one operator per line, indented two spaces per
// level of nesting, each line reading `Name(key=[value], ...)`. Identical
// trees always render identically.
func Explain(n Node) string {
	var b strings.Builder
	explain(&b, n, 0)
	return b.String()
}

func explain(b *strings.Builder, n Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(Name(n))
	b.WriteByte('(')
	for i, a := range attributes(n) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.key)
		b.WriteString("=[")
		b.WriteString(a.value)
		b.WriteByte(']')
	}
	b.WriteString(")\n")
	for _, in := range n.Inputs() {
		explain(b, in, depth+1)
	}
}

// Describe converts n into a canonical description tree. Attributes are a
// list of key/value pairs so projections keep their column order.
func Describe(n Node) ir.Value {
	obj := ir.Object{
		"kind":       ir.String(Name(n)),
		"convention": ir.String(n.Convention().String()),
	}
	attrs := make(ir.List, 0)
	for _, a := range attributes(n) {
		attrs = append(attrs, ir.List{ir.String(a.key), ir.String(a.value)})
	}
	obj["attrs"] = attrs
	if inputs := n.Inputs(); len(inputs) > 0 {
		described := make(ir.List, len(inputs))
		for i, in := range inputs {
			described[i] = Describe(in)
		}
		obj["inputs"] = described
	}
	return obj
}

// Fingerprint hashes the canonical description of n. Two trees fingerprint
// equally exactly when they explain equally.
func Fingerprint(n Node) (string, error) {
	return ir.Fingerprint(ir.DomainTree, Describe(n))
}
