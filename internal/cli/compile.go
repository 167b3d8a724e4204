package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pushplan/internal/engine"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/plan"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output       string // output file path
	Correlations []string
}

// SurfaceSummary is the printable form of plan.Surface.
type SurfaceSummary struct {
	Table     string   `json:"table"`
	Families  []string `json:"families"`
	Order     string   `json:"order"`
	Filter    string   `json:"filter,omitempty"`
	Limit     *int64   `json:"limit,omitempty"`
	Projector string   `json:"projector,omitempty"`
}

// CompilationResult is the output of the compile command.
type CompilationResult struct {
	SessionID string         `json:"session_id"`
	Fragment  string         `json:"fragment"`
	Surface   SurfaceSummary `json:"surface"`
	Cost      string         `json:"cost"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plan-file>",
		Short: "Lower a physical plan to an executable fragment",
		Long: `Lower a physical plan tree to its executable fragment without applying
any rewrite rules.

Every operator must already carry a physical convention; a logical node
makes the plan fail with the first unsupported operator. Use optimize to
let the rules choose a physical plan.

The fragment description is written as canonical JSON to --output when set.

Example:
  pushplan compile plan.txt
  pushplan compile plan.txt -o fragment.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringArrayVar(&opts.Correlations, "correlation", nil, "correlated variable as NAME=FIELD:TYPE,... (repeatable)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, false)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	defer closeStore(st)

	in, err := loadPlan(ctx, opts.RootOptions, path, opts.Correlations, cmd.InOrStdin(), st)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}

	eng, err := newEngine(ctx, opts.RootOptions, nil, st)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	out, err := eng.Optimize(ctx, in.Root)
	if err != nil {
		if engine.IsNoPlanError(err) {
			return formatter.Fail(ExitFailure, ErrCodeNoPlan, err.Error(), nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "compilation failed", err.Error())
	}

	best := out.Best()
	result := CompilationResult{
		SessionID: out.SessionID,
		Fragment:  plan.Format(best.Fragment),
		Surface:   summarizeSurface(plan.SurfaceOf(best.Fragment)),
		Cost:      best.Cost.String(),
	}
	formatter.VerboseLog("Compiled session %s", out.SessionID)

	if opts.Output != "" {
		if err := writeFragmentToFile(best.Fragment, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if opts.Format == "json" {
		return formatter.SessionSuccess(out.SessionID, result)
	}
	return outputCompileText(cmd, result, opts.Output)
}

// summarizeSurface renders s for output.
func summarizeSurface(s plan.Surface) SurfaceSummary {
	sum := SurfaceSummary{
		Table:    s.Table.String(),
		Families: s.Families,
		Order:    s.Order.String(),
		Limit:    s.Limit,
	}
	if sum.Families == nil {
		sum.Families = []string{}
	}
	if s.Filter != nil {
		sum.Filter = s.Filter.String()
	}
	if s.Projector != nil {
		sum.Projector = s.Projector.String()
	}
	return sum
}

// writeFragmentToFile writes the canonical description of f to path.
func writeFragmentToFile(f plan.Fragment, path string) error {
	data, err := ir.MarshalIndent(plan.Describe(f))
	if err != nil {
		return fmt.Errorf("marshaling fragment: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func outputCompileText(cmd *cobra.Command, result CompilationResult, outputPath string) error {
	w := cmd.OutOrStdout()

	fmt.Fprint(w, result.Fragment)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Table:     %s\n", result.Surface.Table)
	fmt.Fprintf(w, "Families:  [%s]\n", strings.Join(result.Surface.Families, ", "))
	fmt.Fprintf(w, "Order:     %s\n", result.Surface.Order)
	if result.Surface.Filter != "" {
		fmt.Fprintf(w, "Filter:    %s\n", result.Surface.Filter)
	}
	if result.Surface.Limit != nil {
		fmt.Fprintf(w, "Limit:     %d\n", *result.Surface.Limit)
	}
	if result.Surface.Projector != "" {
		fmt.Fprintf(w, "Projector: %s\n", result.Surface.Projector)
	}
	fmt.Fprintf(w, "Cost:      %s\n", result.Cost)

	if outputPath != "" {
		fmt.Fprintf(w, "\nOutput written to: %s\n", outputPath)
	}
	return nil
}
