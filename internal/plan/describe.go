package plan

import (
	"strconv"
	"strings"

	"github.com/roach88/pushplan/internal/expression"
	"github.com/roach88/pushplan/internal/ir"
)

type attr struct {
	key, value string
}

// attrs collects explain attributes, skipping empty values.
type attrs []attr

func (a *attrs) add(key, value string) {
	if value != "" {
		*a = append(*a, attr{key, value})
	}
}

func (a *attrs) addExpr(key string, e expression.Expression) {
	if e != nil {
		a.add(key, e.String())
	}
}

func exprList(es []expression.Expression) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func orderList(os []OrderByExpression) string {
	if len(os) == 0 {
		return ""
	}
	parts := make([]string, len(os))
	for i, o := range os {
		parts[i] = o.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func describe(f Fragment) (string, attrs, []Fragment) {
	var a attrs
	switch x := f.(type) {
	case *ScanFragment:
		a.add("table", x.Table.String())
		if !x.Ranges.IsEverything() {
			a.add("ranges", x.Ranges.String())
		}
		if len(x.Families) > 0 {
			a.add("families", "["+strings.Join(x.Families, ", ")+"]")
		}
		a.addExpr("filter", x.Filter)
		a.addExpr("dynamicFilter", x.DynamicFilter)
		if x.Order != ScanOrderNone {
			a.add("order", x.Order.String())
		}
		a.add("limit", formatLimit(x.Limit))
		if x.Projector != nil {
			a.add("projector", x.Projector.String())
		}
		return "Scan", a, nil

	case *ClientScanFragment:
		a.addExpr("filter", x.Filter)
		a.add("orderBy", orderList(x.OrderBy))
		a.add("limit", formatLimit(x.Limit))
		return "ClientScan", a, []Fragment{x.Input}

	case *AggregateFragment:
		if !x.GroupBy.IsEmpty() {
			a.add("groupBy", exprList(x.GroupBy.Keys))
			a.add("attribute", x.GroupBy.Attribute())
		}
		funcs := make([]expression.Expression, len(x.Aggregators.Funcs))
		for i, fn := range x.Aggregators.Funcs {
			funcs[i] = fn
		}
		a.add("aggregators", exprList(funcs))
		a.add("minNullableIndex", strconv.Itoa(x.Aggregators.MinNullableIndex))
		a.add("orderBy", orderList(x.OrderBy))
		a.add("limit", formatLimit(x.Limit))
		name := "ClientAggregate"
		if x.Server {
			name = "ServerAggregate"
		}
		return name, a, []Fragment{x.Input}

	case *HashJoinFragment:
		a.add("type", x.JoinType.String())
		a.add("table", x.Joined.String())
		a.add("leftKeys", exprList(x.LeftKeys))
		a.addExpr("postFilter", x.PostFilter)
		if x.Projector != nil {
			a.add("projector", x.Projector.String())
		}
		children := []Fragment{x.Delegate}
		for i, sub := range x.SubPlans {
			prefix := "subPlan" + strconv.Itoa(i)
			a.add(prefix+".keys", exprList(sub.Keys))
			if sub.SingleValueRHS {
				a.add(prefix+".singleValueRhs", "true")
			}
			children = append(children, sub.Plan)
		}
		return "HashJoin", a, children

	case *MergeJoinFragment:
		a.add("type", x.JoinType.String())
		a.add("table", x.Joined.String())
		a.add("leftKeys", exprList(x.LeftKeys))
		a.add("rightKeys", exprList(x.RightKeys))
		a.addExpr("postFilter", x.PostFilter)
		return "MergeJoin", a, []Fragment{x.Left, x.Right}

	case *TupleProjectionFragment:
		a.add("projector", x.Projector.String())
		a.add("table", x.Table.String())
		a.addExpr("postFilter", x.PostFilter)
		return "TupleProjection", a, []Fragment{x.Delegate}
	}
	return "Unknown", nil, nil
}

// Format renders f as an indented tree, one fragment per line.
func Format(f Fragment) string {
	var b strings.Builder
	format(&b, f, 0)
	return b.String()
}

func format(b *strings.Builder, f Fragment, depth int) {
	name, a, children := describe(f)
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(name)
	b.WriteByte('(')
	for i, kv := range a {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(kv.key)
		b.WriteString("=[")
		b.WriteString(kv.value)
		b.WriteByte(']')
	}
	b.WriteString(")\n")
	for _, c := range children {
		format(b, c, depth+1)
	}
}

// Describe converts f into a canonical description tree.
func Describe(f Fragment) ir.Value {
	name, a, children := describe(f)
	obj := ir.Object{"kind": ir.String(name)}
	for _, kv := range a {
		obj[kv.key] = ir.String(kv.value)
	}
	if len(children) > 0 {
		inputs := make(ir.List, len(children))
		for i, c := range children {
			inputs[i] = Describe(c)
		}
		obj["inputs"] = inputs
	}
	return obj
}

// Fingerprint hashes the canonical description of f. Aliases are part of the
// description, so two compilations of the same tree fingerprint equally only
// when their alias counters started at the same value.
func Fingerprint(f Fragment) (string, error) {
	return ir.Fingerprint(ir.DomainFragment, Describe(f))
}
