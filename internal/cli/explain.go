package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/pushplan/internal/rel"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Correlations []string
}

// OperatorEstimate is the estimate of one operator of an explained tree.
type OperatorEstimate struct {
	Depth      int     `json:"depth"`
	Name       string  `json:"name"`
	Convention string  `json:"convention"`
	Rows       float64 `json:"rows"`
	SelfCost   string  `json:"self_cost"`
}

// ExplainResult is the output of the explain command.
type ExplainResult struct {
	Explain     string             `json:"explain"`
	Fingerprint string             `json:"fingerprint"`
	Rows        float64            `json:"rows"`
	Cost        string             `json:"cost"`
	Operators   []OperatorEstimate `json:"operators"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <plan-file>",
		Short: "Parse a plan and show its estimates",
		Long: `Parse a plan tree in explain form and print it back in canonical form
with row and cost estimates for every operator.

The plan is read from the file, or from stdin when the file is "-".
Correlated variables are declared with --correlation.

Example:
  pushplan explain --catalog ./catalog plan.txt
  pushplan explain --correlation '$cor0=ID:INTEGER' plan.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Correlations, "correlation", nil, "correlated variable as NAME=FIELD:TYPE,... (repeatable)")

	return cmd
}

func runExplain(opts *ExplainOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	in, err := loadPlan(cmd.Context(), opts.RootOptions, path, opts.Correlations, cmd.InOrStdin(), nil)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}

	model := opts.Config.CostModel()
	result := ExplainResult{
		Explain: rel.Explain(in.Root),
		Rows:    model.RowCount(in.Root),
		Cost:    model.CumulativeCost(in.Root).String(),
	}
	result.Fingerprint, err = rel.Fingerprint(in.Root)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "fingerprinting plan", err.Error())
	}
	collectEstimates(model, in.Root, 0, &result.Operators)
	formatter.VerboseLog("Parsed %d operator(s)", len(result.Operators))

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprint(w, result.Explain)
	fmt.Fprintln(w)
	rows := make([]table.Row, len(result.Operators))
	for i, op := range result.Operators {
		rows[i] = table.Row{strings.Repeat("  ", op.Depth) + op.Name, op.Convention, fmt.Sprintf("%.4g", op.Rows), op.SelfCost}
	}
	renderTable(w, table.Row{"Operator", "Convention", "Rows", "Self cost"}, rows)
	fmt.Fprintf(w, "Total: %.4g rows, cost %s\n", result.Rows, result.Cost)
	return nil
}

// collectEstimates appends n and its inputs in explain order.
func collectEstimates(model rel.CostModel, n rel.Node, depth int, out *[]OperatorEstimate) {
	*out = append(*out, OperatorEstimate{
		Depth:      depth,
		Name:       rel.Name(n),
		Convention: n.Convention().String(),
		Rows:       model.RowCount(n),
		SelfCost:   model.SelfCost(n).String(),
	})
	for _, input := range n.Inputs() {
		collectEstimates(model, input, depth+1, out)
	}
}

// newFormatter builds the formatter every command writes through.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
