package catalog

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/pushplan/internal/ir"
)

// CompileError reports an invalid catalog declaration with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load compiles every table declared by the CUE package in dir.
//
// A catalog declares tables under the top-level "table" struct:
//
//	table: ATABLE: {
//	    schema: "phoenix"
//	    rows:   1000
//	    columns: [
//	        {name: "ORGANIZATION_ID", type: "CHAR", pk: true},
//	        {name: "ENTITY_ID", type: "CHAR", pk: true, order: "desc"},
//	        {name: "A_STRING", type: "VARCHAR", family: "A"},
//	    ]
//	}
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(ctx.BuildInstance(instances[0]))
}

// LoadPath compiles the catalog at path, which is either a directory holding
// a CUE package or a single CUE file.
func LoadPath(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if info.IsDir() {
		return Load(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return CompileString(path, string(src))
}

// CompileString compiles a catalog from CUE source. filename only labels
// error positions.
func CompileString(filename, src string) (*Catalog, error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src, cue.Filename(filename)))
}

// Compile extracts the tables of an already built CUE value.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &CompileError{Field: "table", Message: "no tables declared", Pos: v.Pos()}
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var tables []*Table
	for iter.Next() {
		t, err := CompileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	c, err := New(tables...)
	if err != nil {
		return nil, &CompileError{Field: "table", Message: err.Error(), Pos: tablesVal.Pos()}
	}
	return c, nil
}

// CompileTable compiles one table declaration.
func CompileTable(name string, v cue.Value) (*Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	t := &Table{Name: name, RowCount: DefaultRowCount}

	if s, ok, err := optionalString(v, "schema"); err != nil {
		return nil, err
	} else if ok {
		t.Schema = s
	}
	if p, ok, err := optionalString(v, "parent"); err != nil {
		return nil, err
	} else if ok {
		t.Parent = p
	}
	if rowsVal := v.LookupPath(cue.ParsePath("rows")); rowsVal.Exists() {
		rows, err := rowsVal.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if rows < 0 {
			return nil, &CompileError{Field: name + ".rows", Message: "row count must not be negative", Pos: rowsVal.Pos()}
		}
		t.RowCount = rows
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{Field: name + ".columns", Message: "columns are required", Pos: v.Pos()}
	}
	list, err := colsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	seen := map[string]bool{}
	for list.Next() {
		col, err := compileColumn(name, list.Value())
		if err != nil {
			return nil, err
		}
		key := strings.ToUpper(col.Name)
		if seen[key] {
			return nil, &CompileError{Field: name + ".columns", Message: fmt.Sprintf("duplicate column %s", col.Name), Pos: list.Value().Pos()}
		}
		seen[key] = true
		t.Columns = append(t.Columns, col)
	}
	if len(t.PKIndices()) == 0 {
		return nil, &CompileError{Field: name + ".columns", Message: "at least one pk column is required", Pos: colsVal.Pos()}
	}
	return t, nil
}

func compileColumn(table string, v cue.Value) (Column, error) {
	var col Column
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return col, &CompileError{Field: table + ".columns", Message: "column name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return col, formatCUEError(err)
	}
	col.Name = name
	field := table + "." + name

	typeName, ok, err := optionalString(v, "type")
	if err != nil {
		return col, err
	}
	if !ok {
		return col, &CompileError{Field: field, Message: "type is required", Pos: v.Pos()}
	}
	col.Type, err = ir.ParseDataType(typeName)
	if err != nil {
		return col, &CompileError{Field: field, Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("type")).Pos()}
	}

	if pkVal := v.LookupPath(cue.ParsePath("pk")); pkVal.Exists() {
		if col.PK, err = pkVal.Bool(); err != nil {
			return col, formatCUEError(err)
		}
	}
	if nullVal := v.LookupPath(cue.ParsePath("nullable")); nullVal.Exists() {
		if col.Nullable, err = nullVal.Bool(); err != nil {
			return col, formatCUEError(err)
		}
	} else {
		col.Nullable = !col.PK
	}

	order, _, err := optionalString(v, "order")
	if err != nil {
		return col, err
	}
	switch strings.ToLower(order) {
	case "", "asc":
	case "desc":
		if !col.PK {
			return col, &CompileError{Field: field, Message: "only pk columns have a sort order", Pos: v.Pos()}
		}
		col.SortOrder = ir.Descending
	default:
		return col, &CompileError{Field: field, Message: fmt.Sprintf("unknown sort order %q", order), Pos: v.Pos()}
	}

	family, ok, err := optionalString(v, "family")
	if err != nil {
		return col, err
	}
	switch {
	case col.PK && ok:
		return col, &CompileError{Field: field, Message: "pk columns have no family", Pos: v.Pos()}
	case !col.PK && ok:
		col.Family = family
	case !col.PK:
		col.Family = DefaultFamily
	}
	return col, nil
}

func optionalString(v cue.Value, path string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
