package rel

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/roach88/pushplan/internal/expression"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/keyrange"
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/planerr"
	"github.com/roach88/pushplan/internal/queryir"
	"github.com/roach88/pushplan/internal/translate"
)

// implement lowers n under ctx. The switch is exhaustive over the node
// variants; the default case is unreachable for trees built by this package.
func (impl *Implementor) implement(n Node, ctx Context) (plan.Fragment, error) {
	switch x := n.(type) {
	case *TableScan:
		return impl.implementScan(x, ctx)
	case *Filter:
		return impl.implementFilter(x, ctx)
	case *ServerProject:
		return impl.implementServerProject(x, ctx)
	case *ClientProject:
		return impl.implementClientProject(x, ctx)
	case *ServerAggregate:
		return impl.implementServerAggregate(x, ctx)
	case *ClientAggregate:
		return impl.implementClientAggregate(x, ctx)
	case *ServerJoin:
		return impl.implementServerJoin(x, ctx)
	case *ClientJoin:
		return impl.implementClientJoin(x, ctx)
	case *LogicalJoin:
		return nil, planerr.Unsupported("LogicalJoin", "join %s has no physical strategy", nodeString(x.Condition))
	case *ClientSort:
		return impl.implementClientSort(x, ctx)
	case *CompactClientSort:
		return impl.implementCompactClientSort(x, ctx)
	case *Union:
		for _, in := range x.Children {
			if _, err := impl.implement(in, ctx); err != nil {
				return nil, err
			}
		}
		return nil, planerr.Unsupported("Union", "union of %d inputs has no lowering", len(x.Children))
	case *ToClient:
		return impl.implement(x.Input, ctx)
	}
	return nil, errors.AssertionFailedf("no lowering for %T", n)
}

func (impl *Implementor) implementScan(x *TableScan, ctx Context) (plan.Fragment, error) {
	ref := impl.newTableRef(x)
	sc := scope{ref}
	pushed := keyrange.Push(x.Table, x.Filter, nil)

	frag := &plan.ScanFragment{
		Table:  ref,
		Ranges: pushed.Ranges,
		Order:  x.Order,
		Limit:  x.RowLimit,
	}
	if pushed.Remainder != nil {
		filter, err := translate.ToExpression(pushed.Remainder, sc)
		if err != nil {
			return nil, err
		}
		frag.Filter = filter
	}
	// Ranges that depend on correlated values are recomputed at run time
	// from the whole filter.
	if !pushed.Ranges.Equal(x.staticRanges) {
		dynamic, err := translate.ToExpression(x.Filter, sc)
		if err != nil {
			return nil, err
		}
		frag.DynamicFilter = dynamic
	}

	needed := ctx.NeededColumns
	if needed == nil {
		needed = lo.Range(len(x.Table.Columns))
	}
	frag.Families = x.Table.Families(lo.Union(needed, queryir.InputsUsed(pushed.Remainder)))

	if ctx.ForceProject {
		exprs := make([]expression.Expression, len(x.Table.Columns))
		cols := make([]plan.ProjectedColumn, len(x.Table.Columns))
		for i, c := range x.Table.Columns {
			e, err := sc.Column(i)
			if err != nil {
				return nil, err
			}
			exprs[i] = e
			cols[i] = plan.ProjectedColumn{Name: c.Name, Type: c.Type, Order: e.SortOrder(), Nullable: c.Nullable}
		}
		projected := plan.Project(x.Table.Name, cols)
		if ctx.RetainPKColumns {
			projected.PKColumns = len(x.Table.PKIndices())
		}
		frag.Projector = &plan.TupleProjector{Expressions: exprs}
		frag.Output = plan.ProjectedRef(ref, projected)
	}
	return frag, nil
}

func (impl *Implementor) implementFilter(x *Filter, ctx Context) (plan.Fragment, error) {
	child, err := impl.implement(x.Input, ctx.WithNeededColumns(nil))
	if err != nil {
		return nil, err
	}
	cond, err := translate.ToExpression(x.Condition, scope{child.TableRef()})
	if err != nil {
		return nil, err
	}
	return &plan.ClientScanFragment{Input: child, Table: child.TableRef(), Filter: cond}, nil
}

func (impl *Implementor) implementServerProject(x *ServerProject, ctx Context) (plan.Fragment, error) {
	childCtx := ctx.WithForceProject(false).WithNeededColumns(queryir.InputsUsed(x.Exprs...))
	child, err := impl.implement(x.Input, childCtx)
	if err != nil {
		return nil, err
	}
	if plan.HasProjector(child) {
		return nil, errors.AssertionFailedf("ServerProject: input %T already carries a projector", child)
	}

	projector, out, err := project(x.Exprs, x.Names, child.TableRef())
	if err != nil {
		return nil, err
	}
	switch f := child.(type) {
	case *plan.ScanFragment:
		cp := *f
		cp.Projector, cp.Output = projector, out
		return &cp, nil
	case *plan.HashJoinFragment:
		cp := *f
		cp.Projector, cp.Output = projector, out
		return &cp, nil
	}
	return nil, errors.AssertionFailedf("ServerProject: expected a scan or hash join input, got %T", child)
}

func (impl *Implementor) implementClientProject(x *ClientProject, ctx Context) (plan.Fragment, error) {
	child, err := impl.implement(x.Input, ctx.WithNeededColumns(nil))
	if err != nil {
		return nil, err
	}
	projector, out, err := project(x.Exprs, x.Names, child.TableRef())
	if err != nil {
		return nil, err
	}
	return &plan.TupleProjectionFragment{Delegate: child, Projector: projector, Table: out}, nil
}

// project translates exprs against from and describes the layout they
// produce.
func project(exprs []queryir.Node, names []string, from plan.TableRef) (*plan.TupleProjector, plan.TableRef, error) {
	sc := scope{from}
	out := make([]expression.Expression, len(exprs))
	cols := make([]plan.ProjectedColumn, len(exprs))
	for i, n := range exprs {
		e, err := translate.ToExpression(n, sc)
		if err != nil {
			return nil, plan.TableRef{}, err
		}
		out[i] = e
		cols[i] = plan.ProjectedColumn{Name: names[i], Type: n.Type(), Order: e.SortOrder(), Nullable: true}
	}
	ref := plan.ProjectedRef(from, plan.Project(tableName(from), cols))
	return &plan.TupleProjector{Expressions: out}, ref, nil
}

func tableName(ref plan.TableRef) string {
	switch {
	case ref.Projected != nil:
		return ref.Projected.Name
	case ref.Table != nil:
		return ref.Table.Name
	}
	return ""
}

func (impl *Implementor) implementServerAggregate(x *ServerAggregate, ctx Context) (plan.Fragment, error) {
	for _, c := range x.Calls {
		if !translate.IsAggregateSupported(c.Func) {
			return nil, planerr.Unsupported(strings.ToUpper(c.Func), "%s cannot be evaluated on the server", c)
		}
	}
	child, err := impl.implement(x.Input, ctx.WithNeededColumns(nil))
	if err != nil {
		return nil, err
	}

	var base *plan.ScanFragment
	var join *plan.HashJoinFragment
	switch f := child.(type) {
	case *plan.ScanFragment:
		base = f
	case *plan.HashJoinFragment:
		join = f
		scan, ok := f.Delegate.(*plan.ScanFragment)
		if !ok {
			return nil, errors.AssertionFailedf("ServerAggregate: hash join delegate is %T, not a scan", f.Delegate)
		}
		base = scan
	default:
		return nil, errors.AssertionFailedf("ServerAggregate: expected a scan or hash join input, got %T", child)
	}
	if base.Limit != nil {
		return nil, errors.AssertionFailedf("ServerAggregate: input scan is already limited to %d rows", *base.Limit)
	}

	from := child.TableRef()
	keys, aggs, err := aggregateParts(x.AggregateSpec, scope{from})
	if err != nil {
		return nil, err
	}
	var out plan.Fragment = &plan.AggregateFragment{
		Input:       base,
		Table:       from,
		Server:      true,
		GroupBy:     plan.GroupBy{Keys: keys, Ordered: x.Ordered},
		Aggregators: plan.Aggregators{Funcs: aggs, MinNullableIndex: minNullableIndex(aggs)},
	}
	if join != nil {
		cp := *join
		cp.Delegate = out
		out = &cp
	}
	return wrapWithProject(out, from, keys, aggs, x.RowType()), nil
}

func (impl *Implementor) implementClientAggregate(x *ClientAggregate, ctx Context) (plan.Fragment, error) {
	child, err := impl.implement(x.Input, ctx.WithNeededColumns(nil))
	if err != nil {
		return nil, err
	}
	from := child.TableRef()
	keys, aggs, err := aggregateParts(x.AggregateSpec, scope{from})
	if err != nil {
		return nil, err
	}
	agg := &plan.AggregateFragment{
		Input:       child,
		Table:       from,
		GroupBy:     plan.GroupBy{Keys: keys, Ordered: x.Ordered},
		Aggregators: plan.Aggregators{Funcs: aggs, MinNullableIndex: minNullableIndex(aggs)},
	}
	return wrapWithProject(agg, from, keys, aggs, x.RowType()), nil
}

func aggregateParts(spec AggregateSpec, sc scope) ([]expression.Expression, []*expression.Aggregate, error) {
	keys := make([]expression.Expression, len(spec.GroupSet))
	for i, g := range spec.GroupSet {
		k, err := sc.Column(g)
		if err != nil {
			return nil, nil, err
		}
		keys[i] = k
	}
	aggs := make([]*expression.Aggregate, len(spec.Calls))
	for i, c := range spec.Calls {
		a, err := translate.ToAggregate(c, sc)
		if err != nil {
			return nil, nil, err
		}
		aggs[i] = a
	}
	return keys, aggs, nil
}

// minNullableIndex is the position of the first aggregate that yields null
// over an empty group. COUNT never does.
func minNullableIndex(aggs []*expression.Aggregate) int {
	for i, a := range aggs {
		if a.Func != queryir.AggCount {
			return i
		}
	}
	return len(aggs)
}

// wrapWithProject exposes aggregated rows as group keys followed by
// aggregate results.
func wrapWithProject(input plan.Fragment, from plan.TableRef, keys []expression.Expression, aggs []*expression.Aggregate, rowType queryir.RowType) *plan.TupleProjectionFragment {
	exprs := make([]expression.Expression, 0, len(keys)+len(aggs))
	for i, k := range keys {
		exprs = append(exprs, &expression.RowKeyColumn{Key: k, Position: i})
	}
	for _, a := range aggs {
		exprs = append(exprs, a)
	}
	cols := lo.Map(rowType, func(f queryir.Field, i int) plan.ProjectedColumn {
		return plan.ProjectedColumn{Name: f.Name, Type: f.Type, Order: exprs[i].SortOrder(), Nullable: i >= len(keys)}
	})
	return &plan.TupleProjectionFragment{
		Delegate:  input,
		Projector: &plan.TupleProjector{Expressions: exprs},
		Table:     plan.ProjectedRef(from, plan.Project(tableName(from), cols)),
	}
}

func (impl *Implementor) implementServerJoin(x *ServerJoin, ctx Context) (plan.Fragment, error) {
	if x.JoinType == queryir.JoinFull || x.JoinType == queryir.JoinRight {
		kind := strings.ToUpper(x.JoinType.String()) + " server join"
		return nil, planerr.Unsupported(kind, "the right input of a hash join cannot be outer")
	}
	left, right, err := impl.joinInputs(x.Left, x.Right, ctx)
	if err != nil {
		return nil, err
	}
	info := queryir.AnalyzeJoin(x.Condition, len(x.Left.RowType()))
	leftKeys, err := joinKeys(info.LeftKeys, scope{left.TableRef()})
	if err != nil {
		return nil, err
	}
	rightKeys, err := joinKeys(info.RightKeys, scope{right.TableRef()})
	if err != nil {
		return nil, err
	}
	joined := joinedRef(left.TableRef(), right.TableRef(), x.JoinType)
	post, err := postFilter(info.Remaining, joined)
	if err != nil {
		return nil, err
	}
	return &plan.HashJoinFragment{
		Delegate:   left,
		Joined:     joined,
		JoinType:   x.JoinType,
		LeftKeys:   leftKeys,
		PostFilter: post,
		SubPlans:   []plan.HashSubPlan{{Plan: right, Keys: rightKeys, SingleValueRHS: x.SingleValueRHS}},
	}, nil
}

func (impl *Implementor) implementClientJoin(x *ClientJoin, ctx Context) (plan.Fragment, error) {
	left, right, err := impl.joinInputs(x.Left, x.Right, ctx)
	if err != nil {
		return nil, err
	}
	info := queryir.AnalyzeJoin(x.Condition, len(x.Left.RowType()))
	leftKeys, err := joinKeys(info.LeftKeys, scope{left.TableRef()})
	if err != nil {
		return nil, err
	}
	rightKeys, err := joinKeys(info.RightKeys, scope{right.TableRef()})
	if err != nil {
		return nil, err
	}
	joined := joinedRef(left.TableRef(), right.TableRef(), x.JoinType)
	post, err := postFilter(info.Remaining, joined)
	if err != nil {
		return nil, err
	}
	return &plan.MergeJoinFragment{
		Left:       left,
		Right:      right,
		Joined:     joined,
		JoinType:   x.JoinType,
		LeftKeys:   leftKeys,
		RightKeys:  rightKeys,
		PostFilter: post,
	}, nil
}

// joinInputs lowers both sides of a join into projected layouts. The left
// side keeps the parent's row-key retention; the right side never does.
func (impl *Implementor) joinInputs(leftNode, rightNode Node, ctx Context) (plan.Fragment, plan.Fragment, error) {
	left, err := impl.implement(leftNode, Context{RetainPKColumns: ctx.RetainPKColumns, ForceProject: true})
	if err != nil {
		return nil, nil, err
	}
	right, err := impl.implement(rightNode, Context{ForceProject: true})
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// joinKeys resolves key columns, re-encoding descending row-key columns in
// ascending order so both sides hash equal values equally. A join without
// keys hashes every row to the constant 0.
func joinKeys(indices []int, sc scope) ([]expression.Expression, error) {
	if len(indices) == 0 {
		return []expression.Expression{expression.NewLiteral(ir.DInteger(0))}, nil
	}
	keys := make([]expression.Expression, len(indices))
	for i, idx := range indices {
		e, err := sc.Column(idx)
		if err != nil {
			return nil, err
		}
		if e.SortOrder() == ir.Descending {
			e = expression.NewCoerce(e, e.DataType(), ir.Ascending)
		}
		keys[i] = e
	}
	return keys, nil
}

func joinedRef(left, right plan.TableRef, jt queryir.JoinType) plan.TableRef {
	leftOuter := jt == queryir.JoinLeft || jt == queryir.JoinFull
	rightOuter := jt == queryir.JoinRight || jt == queryir.JoinFull
	return plan.ProjectedRef(left, plan.JoinProjectedTables(projectedTable(left), projectedTable(right), leftOuter, rightOuter))
}

func projectedTable(ref plan.TableRef) *plan.ProjectedTable {
	if ref.Projected != nil {
		return ref.Projected
	}
	return plan.Project(tableName(ref), ref.Columns())
}

func postFilter(remaining queryir.Node, joined plan.TableRef) (expression.Expression, error) {
	if queryir.IsAlwaysTrue(remaining) {
		return nil, nil
	}
	return translate.ToExpression(remaining, scope{joined})
}

func (impl *Implementor) implementClientSort(x *ClientSort, ctx Context) (plan.Fragment, error) {
	if x.Offset != nil {
		return nil, planerr.Unsupported("Sort offset", "sort with offset %d cannot be lowered", *x.Offset)
	}
	child, err := impl.implement(x.Input, ctx.WithNeededColumns(nil))
	if err != nil {
		return nil, err
	}
	var projector *plan.TupleProjector
	if tp, ok := child.(*plan.TupleProjectionFragment); ok && aggregateOf(tp.Delegate) != nil {
		projector = tp.Projector
	}
	orderBy, err := sortKeys(x.Order, scope{child.TableRef()}, projector)
	if err != nil {
		return nil, err
	}
	return &plan.ClientScanFragment{Input: child, Table: child.TableRef(), OrderBy: orderBy, Limit: x.Fetch}, nil
}

func (impl *Implementor) implementCompactClientSort(x *CompactClientSort, ctx Context) (plan.Fragment, error) {
	if x.Offset != nil {
		return nil, planerr.Unsupported("Sort offset", "sort with offset %d cannot be lowered", *x.Offset)
	}
	child, err := impl.implement(x.Input, ctx.WithNeededColumns(nil))
	if err != nil {
		return nil, err
	}
	tp, ok := child.(*plan.TupleProjectionFragment)
	if !ok {
		return nil, errors.AssertionFailedf("CompactClientSort: expected a tuple projection input, got %T", child)
	}
	if tp.PostFilter != nil {
		return nil, errors.AssertionFailedf("CompactClientSort: tuple projection carries a post filter")
	}
	agg := aggregateOf(tp.Delegate)
	if agg == nil {
		return nil, errors.AssertionFailedf("CompactClientSort: expected an aggregate under the projection, got %T", tp.Delegate)
	}
	if agg.Limit != nil {
		return nil, errors.AssertionFailedf("CompactClientSort: aggregate is already limited to %d rows", *agg.Limit)
	}

	// Sort keys refer to projected positions; the aggregate orders by the
	// expressions those positions were projected from.
	orderBy, err := sortKeys(x.Order, scope{}, tp.Projector)
	if err != nil {
		return nil, err
	}
	sorted := *agg
	sorted.OrderBy, sorted.Limit = orderBy, x.Fetch

	var inner plan.Fragment = &sorted
	if join, ok := tp.Delegate.(*plan.HashJoinFragment); ok {
		cp := *join
		cp.Delegate = &sorted
		inner = &cp
	}
	out := *tp
	out.Delegate = inner
	return &out, nil
}

// aggregateOf returns f when it is an aggregate, the delegate of a hash join
// over an aggregate, or nil.
func aggregateOf(f plan.Fragment) *plan.AggregateFragment {
	switch x := f.(type) {
	case *plan.AggregateFragment:
		return x
	case *plan.HashJoinFragment:
		if agg, ok := x.Delegate.(*plan.AggregateFragment); ok {
			return agg
		}
	}
	return nil
}

// sortKeys resolves sort fields through projector when given, through sc
// otherwise. Direction is stated in encoded terms, so it flips for columns
// stored descending.
func sortKeys(collation queryir.Collation, sc scope, projector *plan.TupleProjector) ([]plan.OrderByExpression, error) {
	out := make([]plan.OrderByExpression, 0, len(collation))
	for _, f := range collation {
		var e expression.Expression
		if projector != nil {
			if f.Index < 0 || f.Index >= len(projector.Expressions) {
				return nil, errors.AssertionFailedf("sort field %d outside projector of %d expressions", f.Index, len(projector.Expressions))
			}
			e = projector.Expressions[f.Index]
		} else {
			col, err := sc.Column(f.Index)
			if err != nil {
				return nil, err
			}
			e = col
		}
		ascending := f.Direction == queryir.Asc
		if e.SortOrder() == ir.Descending {
			ascending = !ascending
		}
		out = append(out, plan.OrderByExpression{Expr: e, Ascending: ascending, NullsLast: f.NullsLast})
	}
	return out, nil
}
