package translate

import (
	"strings"

	"github.com/roach88/pushplan/internal/expression"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/planerr"
	"github.com/roach88/pushplan/internal/queryir"
)

type aggregateFunc struct {
	minArgs, maxArgs int
	// pushable aggregates can be evaluated by the store.
	pushable bool
	result   func(args []expression.Expression) ir.DataType
}

var aggregateFuncs = map[string]aggregateFunc{
	queryir.AggCount: {
		minArgs:  0,
		maxArgs:  1,
		pushable: true,
		result:   func([]expression.Expression) ir.DataType { return ir.TypeLong },
	},
	queryir.AggMax: {
		minArgs:  1,
		maxArgs:  1,
		pushable: true,
		result:   firstArgType,
	},
	queryir.AggMin: {
		minArgs:  1,
		maxArgs:  1,
		pushable: true,
		result:   firstArgType,
	},
	// SINGLE_VALUE checks that a scalar subquery yields at most one row. Only
	// the client aggregator implements the check.
	queryir.AggSingleValue: {
		minArgs: 1,
		maxArgs: 1,
		result:  firstArgType,
	},
}

func firstArgType(args []expression.Expression) ir.DataType { return args[0].DataType() }

// ToAggregate translates an aggregate call. Argument indices resolve through
// resolver. COUNT() with no arguments counts the constant 1.
func ToAggregate(call queryir.AggCall, resolver Resolver) (*expression.Aggregate, error) {
	name := strings.ToUpper(call.Func)
	fn, ok := aggregateFuncs[name]
	if !ok {
		return nil, planerr.Unsupported(name, "aggregate function %s is not supported", name)
	}
	if call.Distinct {
		return nil, planerr.Unsupported("DISTINCT aggregate", "%s cannot be evaluated", call)
	}
	if len(call.Args) < fn.minArgs || len(call.Args) > fn.maxArgs {
		return nil, planerr.Unsupported(name, "%s takes %d to %d arguments, got %d", name, fn.minArgs, fn.maxArgs, len(call.Args))
	}

	args := make([]expression.Expression, 0, len(call.Args))
	for _, idx := range call.Args {
		if resolver == nil {
			return nil, planerr.Unsupported(name, "%s without an input row", call)
		}
		arg, err := resolver.Column(idx)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if len(args) == 0 {
		args = append(args, expression.NewLiteral(ir.DInteger(1)))
	}

	t := call.DataType
	if t == ir.TypeUnknown {
		t = fn.result(args)
	}
	return &expression.Aggregate{Func: name, Args: args, Type: t}, nil
}

// IsAggregateSupported reports whether the named aggregate can be pushed to
// the store.
func IsAggregateSupported(name string) bool {
	fn, ok := aggregateFuncs[strings.ToUpper(name)]
	return ok && fn.pushable
}

// IsAggregateKnown reports whether the named aggregate can be translated at
// all, on the store or on the client.
func IsAggregateKnown(name string) bool {
	_, ok := aggregateFuncs[strings.ToUpper(name)]
	return ok
}
