package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/rel"
)

// ValidationError is one problem found by validate.
type ValidationError struct {
	Source  string `json:"source"` // catalog path or plan file
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// TableSummary describes one catalog table.
type TableSummary struct {
	Name     string  `json:"name"`
	Columns  int     `json:"columns"`
	PK       int     `json:"pk"`
	Rows     float64 `json:"rows"`
	Parent   string  `json:"parent,omitempty"`
	Families int     `json:"families"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Tables []TableSummary    `json:"tables,omitempty"`
	Plans  int               `json:"plans"`
	Errors []ValidationError `json:"errors,omitempty"`
	// Warnings are operators placed where they cannot run. Such plans
	// parse, but only rules can make them executable.
	Warnings []ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [plan-file...]",
		Short: "Validate the catalog and plan files",
		Long: `Validate the catalog and, optionally, plan files against it.

The catalog is compiled and summarized. Each plan file is parsed; operators
placed where they cannot run (a server operator over client rows, a logical
join) are reported as warnings, since optimize may still rewrite them.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, planFiles []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	catalogPath := opts.Config.Catalog

	cat, err := loadCatalog(cmd.Context(), catalogPath, nil)
	if err != nil {
		result := ValidationResult{Errors: []ValidationError{catalogIssue(catalogPath, err)}}
		return outputValidation(formatter, cmd.OutOrStdout(), result)
	}
	formatter.VerboseLog("Compiled catalog %s", catalogPath)

	result := ValidationResult{Plans: len(planFiles)}
	for _, t := range cat.Tables() {
		result.Tables = append(result.Tables, TableSummary{
			Name:     t.QualifiedName(),
			Columns:  len(t.Columns),
			PK:       len(t.PKIndices()),
			Rows:     t.RowCount,
			Parent:   t.Parent,
			Families: len(t.Families(allColumns(t))),
		})
	}

	for _, path := range planFiles {
		formatter.VerboseLog("Validating plan: %s", path)
		text, err := readPlan(path, cmd.InOrStdin())
		if err != nil {
			result.Errors = append(result.Errors, ValidationError{Source: path, Message: err.Error(), Code: ErrCodeNotFound})
			continue
		}
		root, err := rel.ParseExplain(text, cat, nil)
		if err != nil {
			issue := ValidationError{Source: path, Message: err.Error(), Code: ErrCodePlanParse}
			var parseErr *rel.ExplainParseError
			if errors.As(err, &parseErr) {
				issue.Line = parseErr.Line
				issue.Message = parseErr.Msg
			}
			result.Errors = append(result.Errors, issue)
			continue
		}
		result.Warnings = append(result.Warnings, placementWarnings(path, root)...)
	}

	return outputValidation(formatter, cmd.OutOrStdout(), result)
}

func allColumns(t *catalog.Table) []int {
	out := make([]int, len(t.Columns))
	for i := range out {
		out[i] = i
	}
	return out
}

// catalogIssue converts a catalog load failure, keeping the CUE position
// when there is one.
func catalogIssue(path string, err error) ValidationError {
	issue := ValidationError{Source: path, Message: err.Error(), Code: ErrCodeCatalog}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		issue.Code = loadErr.Code
		issue.Message = loadErr.Message
	}
	var compileErr *catalog.CompileError
	if errors.As(err, &compileErr) {
		issue.Field = compileErr.Field
		issue.Message = compileErr.Message
		if compileErr.Pos.IsValid() {
			issue.Line = compileErr.Pos.Line()
		}
	}
	return issue
}

// placementWarnings lists operators of root that rel.Legal rejects, in
// explain order.
func placementWarnings(path string, root rel.Node) []ValidationError {
	var out []ValidationError
	line := 0
	var walk func(n rel.Node)
	walk = func(n rel.Node) {
		line++
		if !rel.Legal(n) {
			out = append(out, ValidationError{
				Source:  path,
				Field:   rel.Name(n),
				Message: fmt.Sprintf("%s cannot run over its inputs as placed", rel.Name(n)),
				Code:    ErrCodeNoPlan,
				Line:    line,
			})
		}
		for _, in := range n.Inputs() {
			walk(in)
		}
	}
	walk(root)
	return out
}

func outputValidation(f *OutputFormatter, w io.Writer, result ValidationResult) error {
	result.Valid = len(result.Errors) == 0

	if f.Format == "json" {
		if result.Valid {
			return f.Success(result)
		}
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: fmt.Sprintf("%d validation error(s)", len(result.Errors)),
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	if len(result.Tables) > 0 {
		rows := make([]table.Row, len(result.Tables))
		for i, t := range result.Tables {
			rows[i] = table.Row{t.Name, t.Columns, t.PK, t.Families, fmt.Sprintf("%g", t.Rows), t.Parent}
		}
		renderTable(w, table.Row{"Table", "Columns", "PK", "Families", "Rows", "Index of"}, rows)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", formatIssue(warn))
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "error: %s\n", formatIssue(e))
	}

	if !result.Valid {
		fmt.Fprintf(w, "✗ %d validation error(s)\n", len(result.Errors))
		return NewExitError(ExitFailure, "validation failed")
	}
	fmt.Fprintf(w, "✓ Catalog valid (%d tables, %d plans)\n", len(result.Tables), result.Plans)
	return nil
}

func formatIssue(e ValidationError) string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: [%s] %s: %s", loc, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: [%s] %s", loc, e.Code, e.Message)
}
