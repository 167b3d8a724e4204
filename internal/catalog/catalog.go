// Package catalog describes the tables of the range-scanned store: their
// columns, row-key layout, column families and row-count statistics.
//
// Catalogs are declared in CUE and compiled with Load / CompileString.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/queryir"
)

// DefaultFamily is the column family of non-key columns that declare none.
const DefaultFamily = "0"

// DefaultRowCount is the row estimate of a table without statistics.
const DefaultRowCount = 100

// Column is one column of a table.
type Column struct {
	Name string
	Type ir.DataType
	// PK marks row-key columns. Row-key columns have no family.
	PK bool
	// SortOrder is the row-key encoding direction of a PK column.
	SortOrder ir.SortOrder
	// Family is the column family of a non-key column.
	Family   string
	Nullable bool
}

// Table is a physical table (or index table) of the store.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
	// RowCount is the estimated number of rows.
	RowCount float64
	// Parent names the data table when this table is an index.
	Parent string
}

// QualifiedName renders the table name as explain output shows it.
func (t *Table) QualifiedName() string {
	if t.Schema == "" {
		return "[" + t.Name + "]"
	}
	return "[" + t.Schema + ", " + t.Name + "]"
}

// IsIndex reports whether t is an index table.
func (t *Table) IsIndex() bool {
	return t.Parent != ""
}

// PKIndices returns the column positions of the row key, in key order.
func (t *Table) PKIndices() []int {
	var out []int
	for i, c := range t.Columns {
		if c.PK {
			out = append(out, i)
		}
	}
	return out
}

// PKPosition returns the slot of column i within the row key, or -1.
func (t *Table) PKPosition(i int) int {
	return slices.Index(t.PKIndices(), i)
}

// Collation is the physical order of rows in a forward scan.
func (t *Table) Collation() queryir.Collation {
	pk := t.PKIndices()
	out := make(queryir.Collation, len(pk))
	for i, idx := range pk {
		if t.Columns[idx].SortOrder == ir.Descending {
			out[i] = queryir.FieldCollation{Index: idx, Direction: queryir.Desc, NullsLast: true}
		} else {
			out[i] = queryir.FieldCollation{Index: idx, Direction: queryir.Asc}
		}
	}
	return out
}

// RowType is the full output row of a scan over t.
func (t *Table) RowType() queryir.RowType {
	out := make(queryir.RowType, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = queryir.Field{Name: c.Name, Type: c.Type}
	}
	return out
}

// Families returns the sorted distinct families of the given columns.
// Row-key columns contribute nothing.
func (t *Table) Families(columns []int) []string {
	seen := map[string]bool{}
	for _, i := range columns {
		if i < 0 || i >= len(t.Columns) || t.Columns[i].PK {
			continue
		}
		seen[t.Columns[i].Family] = true
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Catalog is a set of tables keyed by upper-cased name.
type Catalog struct {
	tables map[string]*Table
}

// New builds a catalog, rejecting duplicate names.
func New(tables ...*Table) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		key := strings.ToUpper(t.Name)
		if _, dup := c.tables[key]; dup {
			return nil, fmt.Errorf("duplicate table %s", t.Name)
		}
		c.tables[key] = t
	}
	for _, t := range tables {
		if t.Parent != "" {
			if _, ok := c.tables[strings.ToUpper(t.Parent)]; !ok {
				return nil, fmt.Errorf("index %s: parent table %s not found", t.Name, t.Parent)
			}
		}
	}
	return c, nil
}

// Lookup finds a table by name (case-insensitive).
func (c *Catalog) Lookup(name string) (*Table, error) {
	t, ok := c.tables[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("table %s not found", name)
	}
	return t, nil
}

// Tables returns all tables sorted by name.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Table) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// WithRowCounts returns a copy of c whose tables take row counts from stats
// where present. Tables are copied, never mutated.
func (c *Catalog) WithRowCounts(stats map[string]float64) *Catalog {
	out := &Catalog{tables: make(map[string]*Table, len(c.tables))}
	for key, t := range c.tables {
		if rows, ok := stats[t.Name]; ok {
			cp := *t
			cp.RowCount = rows
			out.tables[key] = &cp
			continue
		}
		out.tables[key] = t
	}
	return out
}
