package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/pushplan/internal/engine"
	"github.com/roach88/pushplan/internal/plan"
)

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	Rules        []string
	Correlations []string
}

// CandidateRow is one candidate of an optimizer session.
type CandidateRow struct {
	Ordinal    int      `json:"ordinal"`
	Cost       string   `json:"cost"`
	Derivation []string `json:"derivation"`
	Error      string   `json:"error,omitempty"`
}

// OptimizeResult is the output of the optimize command.
type OptimizeResult struct {
	SessionID  string         `json:"session_id"`
	Rules      []string       `json:"rules"`
	Candidates []CandidateRow `json:"candidates"`
	Chosen     int            `json:"chosen"`
	Truncated  bool           `json:"truncated,omitempty"`
	Explain    string         `json:"explain,omitempty"`
	Fragment   string         `json:"fragment,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize <plan-file>",
		Short: "Choose the cheapest pushdown plan",
		Long: `Apply pushdown rules to a plan tree, cost every alternative and lower the
cheapest one.

All rules run unless --rules names a subset. When a history database is
configured the session is recorded there and can be replayed later.

Exit codes:
  0 - A plan was chosen
  1 - No candidate could be lowered
  2 - Command error (bad plan, unknown rule, etc.)

Example:
  pushplan optimize plan.txt
  pushplan optimize plan.txt --rules ServerJoin,ForwardTableScan
  pushplan optimize --db ./pushplan.db plan.txt --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Rules, "rules", nil, "rules to apply, in order (default all)")
	cmd.Flags().StringArrayVar(&opts.Correlations, "correlation", nil, "correlated variable as NAME=FIELD:TYPE,... (repeatable)")

	return cmd
}

func runOptimize(opts *OptimizeOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	ruleSet, err := selectRules(opts.Rules)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}

	st, err := openStore(opts.RootOptions, false)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	defer closeStore(st)

	in, err := loadPlan(ctx, opts.RootOptions, path, opts.Correlations, cmd.InOrStdin(), st)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}

	eng, err := newEngine(ctx, opts.RootOptions, ruleSet, st)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	slog.Debug("optimizing", "plan", path, "rules", eng.Rules())

	out, planErr := eng.Optimize(ctx, in.Root)
	if planErr != nil && !engine.IsNoPlanError(planErr) {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "optimization failed", planErr.Error())
	}

	result := newOptimizeResult(out, planErr)
	if st != nil {
		formatter.VerboseLog("Recorded session %s in %s", out.SessionID, opts.Config.Database)
	}

	if opts.Format == "json" {
		if planErr != nil {
			if err := formatter.encode(CLIResponse{
				Status:    "error",
				Data:      result,
				SessionID: out.SessionID,
				Error:     &CLIError{Code: ErrCodeNoPlan, Message: planErr.Error()},
			}); err != nil {
				return err
			}
			return NewExitError(ExitFailure, planErr.Error())
		}
		return formatter.SessionSuccess(out.SessionID, result)
	}

	outputOptimizeText(cmd, result)
	if planErr != nil {
		return formatter.Fail(ExitFailure, ErrCodeNoPlan, planErr.Error(), nil)
	}
	return nil
}

func newOptimizeResult(out *engine.Outcome, planErr error) OptimizeResult {
	result := OptimizeResult{
		SessionID:  out.SessionID,
		Rules:      out.Rules,
		Candidates: make([]CandidateRow, len(out.Candidates)),
		Chosen:     out.Chosen,
		Truncated:  out.Truncated,
	}
	if result.Rules == nil {
		result.Rules = []string{}
	}
	for i, c := range out.Candidates {
		row := CandidateRow{
			Ordinal:    c.Ordinal,
			Cost:       c.Cost.String(),
			Derivation: c.Derivation,
		}
		if row.Derivation == nil {
			row.Derivation = []string{}
		}
		if c.Err != nil {
			row.Error = c.Err.Error()
		}
		result.Candidates[i] = row
	}
	if best := out.Best(); best != nil {
		result.Explain = best.Explain
		result.Fragment = plan.Format(best.Fragment)
	}
	if planErr != nil {
		result.Error = planErr.Error()
	}
	return result
}

func outputOptimizeText(cmd *cobra.Command, result OptimizeResult) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session %s\n", result.SessionID)
	rows := make([]table.Row, len(result.Candidates))
	for i, c := range result.Candidates {
		mark := ""
		if c.Ordinal == result.Chosen {
			mark = "*"
		}
		derivation := strings.Join(c.Derivation, " > ")
		if derivation == "" {
			derivation = "(root)"
		}
		rows[i] = table.Row{mark, c.Ordinal, c.Cost, derivation, c.Error}
	}
	renderTable(w, table.Row{"", "#", "Cost", "Derivation", "Error"}, rows)
	if result.Truncated {
		fmt.Fprintln(w, "Exploration stopped at the rule step limit.")
	}

	if result.Chosen < 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Plan:")
	fmt.Fprint(w, indent(result.Explain))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fragment:")
	fmt.Fprint(w, indent(result.Fragment))
}

// indent prefixes every line of s with two spaces.
func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
	}
	return b.String()
}
