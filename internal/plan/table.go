package plan

import (
	"math"
	"strconv"
	"strings"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/ir"
)

// LatestTimestamp reads the newest version of every cell.
const LatestTimestamp int64 = math.MaxInt64

// TableRef identifies the table a fragment reads. Base references carry a
// per-pass alias so two scans of the same table stay distinguishable;
// projected references describe the tuple layout produced by a projector.
type TableRef struct {
	Alias     string
	Table     *catalog.Table
	Timestamp int64
	Projected *ProjectedTable
}

// NewTableRef references table under alias at the latest timestamp.
func NewTableRef(alias string, table *catalog.Table) TableRef {
	return TableRef{Alias: alias, Table: table, Timestamp: LatestTimestamp}
}

// ProjectedRef references a projected tuple layout. It keeps the timestamp of
// the reference it derives from.
func ProjectedRef(from TableRef, projected *ProjectedTable) TableRef {
	return TableRef{Alias: from.Alias, Table: from.Table, Timestamp: from.Timestamp, Projected: projected}
}

func (r TableRef) isZero() bool {
	return r.Table == nil && r.Projected == nil
}

// IsProjected reports whether r references a projected layout.
func (r TableRef) IsProjected() bool {
	return r.Projected != nil
}

// Columns returns the column layout of the referenced rows.
func (r TableRef) Columns() []ProjectedColumn {
	if r.Projected != nil {
		return r.Projected.Columns
	}
	if r.Table == nil {
		return nil
	}
	out := make([]ProjectedColumn, len(r.Table.Columns))
	for i, c := range r.Table.Columns {
		out[i] = ProjectedColumn{Name: c.Name, Type: c.Type, Nullable: c.Nullable}
		if c.PK {
			out[i].Order = c.SortOrder
		}
	}
	return out
}

func (r TableRef) String() string {
	var b strings.Builder
	switch {
	case r.Projected != nil:
		b.WriteString("PROJECTED ")
		b.WriteString(r.Projected.Name)
	case r.Table != nil:
		b.WriteString(r.Table.QualifiedName())
	default:
		b.WriteString("<none>")
	}
	if r.Alias != "" && r.Projected == nil {
		b.WriteString(" AS ")
		b.WriteString(r.Alias)
	}
	if r.Timestamp != LatestTimestamp && r.Timestamp != 0 {
		b.WriteString(" AT ")
		b.WriteString(strconv.FormatInt(r.Timestamp, 10))
	}
	return b.String()
}

// ProjectedColumn is one column of a projected tuple.
type ProjectedColumn struct {
	Name     string
	Type     ir.DataType
	Order    ir.SortOrder
	Nullable bool
}

// ProjectedTable is the row layout of projected tuples.
type ProjectedTable struct {
	Name    string
	Columns []ProjectedColumn
	// PKColumns is the number of leading columns kept as row-key columns.
	// It is zero when the row key is not retained.
	PKColumns int
	// RightFieldPosition is the first key/value field contributed by the
	// right side of a joined table, or -1 for a table that is not a join
	// result.
	RightFieldPosition int
}

// Project builds a projected table from column names and expression types.
func Project(name string, columns []ProjectedColumn) *ProjectedTable {
	return &ProjectedTable{Name: name, Columns: columns, RightFieldPosition: -1}
}

// JoinProjectedTables concatenates the layouts of the two sides of a join.
// The joined row key is the left row key.
// Right-side columns become nullable for LEFT joins, left-side columns for
// RIGHT joins, and both for FULL joins.
func JoinProjectedTables(left, right *ProjectedTable, leftOuter, rightOuter bool) *ProjectedTable {
	cols := make([]ProjectedColumn, 0, len(left.Columns)+len(right.Columns))
	for _, c := range left.Columns {
		if rightOuter {
			c.Nullable = true
		}
		cols = append(cols, c)
	}
	for _, c := range right.Columns {
		if leftOuter {
			c.Nullable = true
		}
		cols = append(cols, c)
	}
	return &ProjectedTable{
		Name:               left.Name + "+" + right.Name,
		Columns:            cols,
		PKColumns:          left.PKColumns,
		RightFieldPosition: len(left.Columns) - left.PKColumns,
	}
}
