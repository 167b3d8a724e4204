package rel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/queryir"
)

// ExplainParseError reports a malformed explain line.
type ExplainParseError struct {
	Line int
	Msg  string
}

func (e *ExplainParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type explainLine struct {
	num   int
	depth int
	name  string
	attrs []attr
}

// ParseExplain rebuilds an operator tree from its Explain rendering. Tables
// resolve through cat; correlations name the outer rows filters may read.
func ParseExplain(text string, cat *catalog.Catalog, correlations map[string]queryir.RowType) (Node, error) {
	var lines []explainLine
	for i, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		l, err := splitLine(i+1, raw)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if len(lines) == 0 {
		return nil, &ExplainParseError{Line: 1, Msg: "empty plan"}
	}
	if lines[0].depth != 0 {
		return nil, &ExplainParseError{Line: lines[0].num, Msg: "root must not be indented"}
	}
	b := &treeBuilder{lines: lines, cat: cat, correlations: correlations}
	n, err := b.build()
	if err != nil {
		return nil, err
	}
	if b.pos != len(lines) {
		return nil, &ExplainParseError{Line: lines[b.pos].num, Msg: "more than one root"}
	}
	return n, nil
}

func splitLine(num int, raw string) (explainLine, error) {
	trimmed := strings.TrimLeft(raw, " ")
	indent := len(raw) - len(trimmed)
	if indent%2 != 0 {
		return explainLine{}, &ExplainParseError{Line: num, Msg: "indentation must be a multiple of two spaces"}
	}
	trimmed = strings.TrimRight(trimmed, " \t\r")
	open := strings.IndexByte(trimmed, '(')
	if open <= 0 || !strings.HasSuffix(trimmed, ")") {
		return explainLine{}, &ExplainParseError{Line: num, Msg: fmt.Sprintf("expected Name(...), got %q", trimmed)}
	}
	attrs, err := splitAttrs(trimmed[open+1 : len(trimmed)-1])
	if err != nil {
		return explainLine{}, &ExplainParseError{Line: num, Msg: err.Error()}
	}
	return explainLine{num: num, depth: indent / 2, name: trimmed[:open], attrs: attrs}, nil
}

// splitAttrs splits `k=[v], k2=[v2]` honoring nested brackets and quoted
// strings inside values.
func splitAttrs(s string) ([]attr, error) {
	var out []attr
	for i := 0; i < len(s); {
		eq := strings.Index(s[i:], "=[")
		if eq < 0 {
			return nil, fmt.Errorf("expected key=[value] at %q", s[i:])
		}
		key := strings.TrimSpace(s[i : i+eq])
		start := i + eq + 2
		depth, j := 1, start
		for ; j < len(s) && depth > 0; j++ {
			switch s[j] {
			case '[':
				depth++
			case ']':
				depth--
			case '\'':
				for j++; j < len(s) && s[j] != '\''; j++ {
				}
			}
		}
		if depth != 0 {
			return nil, fmt.Errorf("unbalanced brackets in %s", key)
		}
		out = append(out, attr{key: key, value: s[start : j-1]})
		i = j
		if strings.HasPrefix(s[i:], ", ") {
			i += 2
		} else if i < len(s) {
			return nil, fmt.Errorf("expected ', ' after %s", key)
		}
	}
	return out, nil
}

type treeBuilder struct {
	lines        []explainLine
	pos          int
	cat          *catalog.Catalog
	correlations map[string]queryir.RowType
}

func (b *treeBuilder) build() (Node, error) {
	line := b.lines[b.pos]
	b.pos++
	var inputs []Node
	for b.pos < len(b.lines) && b.lines[b.pos].depth > line.depth {
		if b.lines[b.pos].depth != line.depth+1 {
			return nil, &ExplainParseError{Line: b.lines[b.pos].num, Msg: "indented more than one level below its parent"}
		}
		in, err := b.build()
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	n, err := b.node(line, inputs)
	if err != nil {
		if _, ok := err.(*ExplainParseError); ok {
			return nil, err
		}
		return nil, &ExplainParseError{Line: line.num, Msg: err.Error()}
	}
	return n, nil
}

func (b *treeBuilder) expr(s string, input queryir.RowType) (queryir.Node, error) {
	return queryir.Parse(s, queryir.Env{Input: input, Correlations: b.correlations})
}

func arity(name string, inputs []Node, want int) error {
	if len(inputs) != want {
		return fmt.Errorf("%s takes %d inputs, got %d", name, want, len(inputs))
	}
	return nil
}

func (b *treeBuilder) node(line explainLine, inputs []Node) (Node, error) {
	get := func(key string) (string, bool) {
		for _, a := range line.attrs {
			if a.key == key {
				return a.value, true
			}
		}
		return "", false
	}

	switch line.name {
	case "TableScan":
		if err := arity(line.name, inputs, 0); err != nil {
			return nil, err
		}
		return b.tableScan(get)

	case "Filter":
		if err := arity(line.name, inputs, 1); err != nil {
			return nil, err
		}
		s, _ := get("condition")
		cond, err := b.expr(s, inputs[0].RowType())
		if err != nil {
			return nil, err
		}
		return NewFilter(inputs[0], cond), nil

	case "ServerProject", "ClientProject":
		if err := arity(line.name, inputs, 1); err != nil {
			return nil, err
		}
		exprs := make([]queryir.Node, len(line.attrs))
		names := make([]string, len(line.attrs))
		for i, a := range line.attrs {
			e, err := b.expr(a.value, inputs[0].RowType())
			if err != nil {
				return nil, err
			}
			exprs[i], names[i] = e, a.key
		}
		if line.name == "ServerProject" {
			return NewServerProject(inputs[0], exprs, names), nil
		}
		return NewClientProject(inputs[0], exprs, names), nil

	case "ServerAggregate", "ClientAggregate":
		if err := arity(line.name, inputs, 1); err != nil {
			return nil, err
		}
		return aggregate(line, inputs[0])

	case "ServerJoin", "ClientJoin", "LogicalJoin":
		if err := arity(line.name, inputs, 2); err != nil {
			return nil, err
		}
		spec, err := b.joinSpec(get, inputs)
		if err != nil {
			return nil, err
		}
		switch line.name {
		case "ServerJoin":
			return NewServerJoin(inputs[0], inputs[1], spec), nil
		case "ClientJoin":
			return NewClientJoin(inputs[0], inputs[1], spec), nil
		}
		return NewLogicalJoin(inputs[0], inputs[1], spec), nil

	case "ClientSort", "CompactClientSort":
		if err := arity(line.name, inputs, 1); err != nil {
			return nil, err
		}
		spec, err := sortSpec(get)
		if err != nil {
			return nil, err
		}
		if line.name == "ClientSort" {
			return NewClientSort(inputs[0], spec), nil
		}
		return NewCompactClientSort(inputs[0], spec), nil

	case "Union":
		all, _ := get("all")
		return NewUnion(all == "true", inputs...), nil

	case "ToClient":
		if err := arity(line.name, inputs, 1); err != nil {
			return nil, err
		}
		return NewToClient(inputs[0]), nil
	}
	return nil, fmt.Errorf("unknown operator %q", line.name)
}

func (b *treeBuilder) tableScan(get func(string) (string, bool)) (Node, error) {
	name, ok := get("table")
	if !ok {
		return nil, fmt.Errorf("TableScan needs table")
	}
	parts := strings.Split(strings.Trim(name, "[]"), ", ")
	if b.cat == nil {
		return nil, fmt.Errorf("no catalog to resolve %s", name)
	}
	table, err := b.cat.Lookup(parts[len(parts)-1])
	if err != nil {
		return nil, err
	}

	var filter queryir.Node
	if s, ok := get("filter"); ok {
		if filter, err = b.expr(s, table.RowType()); err != nil {
			return nil, err
		}
	}
	order := plan.ScanOrderNone
	if s, ok := get("scanOrder"); ok {
		switch s {
		case "FORWARD":
			order = plan.ScanOrderForward
		case "REVERSE":
			order = plan.ScanOrderReverse
		case "NONE":
		default:
			return nil, fmt.Errorf("unknown scan order %q", s)
		}
	}
	limit, err := optionalInt(get, "limit")
	if err != nil {
		return nil, err
	}
	return NewTableScan(table, filter, order, limit), nil
}

func aggregate(line explainLine, input Node) (Node, error) {
	var group []int
	var calls []queryir.AggCall
	for _, a := range line.attrs {
		switch a.key {
		case "group":
			inner := strings.TrimSpace(strings.Trim(a.value, "{}"))
			if inner == "" {
				continue
			}
			for _, p := range strings.Split(inner, ",") {
				g, err := strconv.Atoi(strings.TrimSpace(p))
				if err != nil {
					return nil, fmt.Errorf("bad group column %q", p)
				}
				group = append(group, g)
			}
		case "isOrdered":
			// Derived from the input collation.
		default:
			call, err := parseAggCall(a.key, a.value)
			if err != nil {
				return nil, err
			}
			calls = append(calls, call)
		}
	}
	if line.name == "ServerAggregate" {
		return NewServerAggregate(input, group, nil, calls)
	}
	return NewClientAggregate(input, group, nil, calls)
}

// parseAggCall reads `FUNC([DISTINCT ]$i, ...)`.
func parseAggCall(name, s string) (queryir.AggCall, error) {
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return queryir.AggCall{}, fmt.Errorf("bad aggregate call %q", s)
	}
	call := queryir.AggCall{Func: strings.ToUpper(s[:open]), Name: name}
	args := strings.TrimSpace(s[open+1 : len(s)-1])
	if rest, ok := strings.CutPrefix(args, "DISTINCT "); ok {
		call.Distinct = true
		args = rest
	}
	if args == "" {
		return call, nil
	}
	for _, p := range strings.Split(args, ",") {
		idx, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(p), "$"))
		if err != nil {
			return queryir.AggCall{}, fmt.Errorf("bad aggregate argument %q", p)
		}
		call.Args = append(call.Args, idx)
	}
	return call, nil
}

func (b *treeBuilder) joinSpec(get func(string) (string, bool), inputs []Node) (JoinSpec, error) {
	var spec JoinSpec
	if s, ok := get("condition"); ok {
		cond, err := b.expr(s, inputs[0].RowType().Concat(inputs[1].RowType()))
		if err != nil {
			return JoinSpec{}, err
		}
		spec.Condition = cond
	}
	if s, ok := get("joinType"); ok {
		jt, err := queryir.ParseJoinType(s)
		if err != nil {
			return JoinSpec{}, err
		}
		spec.JoinType = jt
	}
	if s, ok := get("isSingleValueRhs"); ok {
		spec.SingleValueRHS = s == "true"
	}
	return spec, nil
}

func sortSpec(get func(string) (string, bool)) (SortSpec, error) {
	var spec SortSpec
	if s, ok := get("collation"); ok {
		c, err := ParseCollation(s)
		if err != nil {
			return SortSpec{}, err
		}
		spec.Order = c
	}
	var err error
	if spec.Offset, err = optionalInt(get, "offset"); err != nil {
		return SortSpec{}, err
	}
	if spec.Fetch, err = optionalInt(get, "fetch"); err != nil {
		return SortSpec{}, err
	}
	return spec, nil
}

// ParseCollation reads a collation rendered by queryir.Collation.String,
// e.g. `[0, 2 DESC, 3-nulls-last]`.
func ParseCollation(s string) (queryir.Collation, error) {
	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "["), "]"))
	if inner == "" {
		return nil, nil
	}
	var out queryir.Collation
	for _, p := range strings.Split(inner, ",") {
		p = strings.TrimSpace(p)
		var f queryir.FieldCollation
		nulls := ""
		if rest, ok := strings.CutSuffix(p, "-nulls-last"); ok {
			p, nulls = rest, "last"
		} else if rest, ok := strings.CutSuffix(p, "-nulls-first"); ok {
			p, nulls = rest, "first"
		}
		if rest, ok := strings.CutSuffix(p, " DESC"); ok {
			p, f.Direction = rest, queryir.Desc
		}
		idx, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad collation field %q", p)
		}
		f.Index = idx
		switch nulls {
		case "last":
			f.NullsLast = true
		case "first":
			f.NullsLast = false
		default:
			f.NullsLast = f.Direction == queryir.Desc
		}
		out = append(out, f)
	}
	return out, nil
}

func optionalInt(get func(string) (string, bool), key string) (*int64, error) {
	s, ok := get(key)
	if !ok {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %s %q", key, s)
	}
	return &n, nil
}
