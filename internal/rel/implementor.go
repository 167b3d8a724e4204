package rel

import (
	"fmt"

	"github.com/roach88/pushplan/internal/expression"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/translate"
)

// Implementor lowers one operator tree into a plan fragment. It holds the
// state of a single pass (the alias counter) and must not be shared between
// concurrent passes.
type Implementor struct {
	nextAlias int
}

// NewImplementor creates an implementor for one pass.
func NewImplementor() *Implementor {
	return &Implementor{}
}

// Compile lowers root under RootContext.
//
// Errors are planerr.Error values for constructs without a lowering, or
// assertion failures (see errors.IsAssertionFailure) when a child fragment
// does not have the shape its parent requires.
func (impl *Implementor) Compile(root Node) (plan.Fragment, error) {
	return impl.implement(root, RootContext())
}

// Compile lowers root with a fresh implementor.
func Compile(root Node) (plan.Fragment, error) {
	return NewImplementor().Compile(root)
}

// newTableRef references table under a fresh alias ($0, $1, ...) so two
// scans of the same table in one plan stay distinguishable.
func (impl *Implementor) newTableRef(n *TableScan) plan.TableRef {
	alias := fmt.Sprintf("$%d", impl.nextAlias)
	impl.nextAlias++
	return plan.NewTableRef(alias, n.Table)
}

// scope resolves positional references against the rows of a table
// reference: projected positions for projected layouts, base columns
// otherwise.
type scope struct {
	ref plan.TableRef
}

var _ translate.Resolver = scope{}

func (s scope) Column(index int) (expression.Expression, error) {
	if s.ref.Projected != nil {
		cols := s.ref.Projected.Columns
		if index < 0 || index >= len(cols) {
			return nil, fmt.Errorf("column $%d out of range for %s", index, s.ref)
		}
		c := cols[index]
		return &expression.ProjectedColumn{Position: index, Name: c.Name, Type: c.Type, Order: c.Order}, nil
	}
	if s.ref.Table == nil {
		return nil, fmt.Errorf("column $%d without a table", index)
	}
	cols := s.ref.Table.Columns
	if index < 0 || index >= len(cols) {
		return nil, fmt.Errorf("column $%d out of range for %s", index, s.ref)
	}
	c := cols[index]
	col := &expression.Column{Index: index, Name: c.Name, Type: c.Type, Family: c.Family, PKSlot: s.ref.Table.PKPosition(index)}
	if c.PK {
		col.Order = c.SortOrder
	}
	return col, nil
}

func (s scope) Correlated(name string, index int, t ir.DataType) (expression.Expression, error) {
	return &expression.CorrelateVariable{Name: name, Index: index, Type: t}, nil
}
