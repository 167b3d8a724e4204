package cli

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/pushplan/internal/engine"
	"github.com/roach88/pushplan/internal/store"
)

// StatsRow is one recorded row count next to the catalog estimate it
// overrides.
type StatsRow struct {
	Table    string  `json:"table"`
	RowCount float64 `json:"row_count"`
	Catalog  float64 `json:"catalog_rows"`
	Seq      int64   `json:"seq"`
}

// NewStatsCommand creates the stats command and its subcommands.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "List recorded table row counts",
		Long: `Manage table statistics in the history database.

Recorded row counts replace the catalog estimates when optimize, compile
and history replay cost plans.

Examples:
  pushplan stats --db ./pushplan.db
  pushplan stats set ATABLE 250000 --db ./pushplan.db
  pushplan stats delete ATABLE --db ./pushplan.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatsList(rootOpts, cmd)
		},
	}

	set := &cobra.Command{
		Use:           "set <table> <rows>",
		Short:         "Record the row count of a table",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatsSet(rootOpts, args[0], args[1], cmd)
		},
	}

	del := &cobra.Command{
		Use:           "delete <table>",
		Short:         "Forget the row count of a table",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatsDelete(rootOpts, args[0], cmd)
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

func runStatsList(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts, cmd)

	st, err := openStore(opts, true)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	defer closeStore(st)

	stats, err := st.ReadTableStats(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "reading table statistics", err.Error())
	}
	cat, err := loadCatalog(ctx, opts.Config.Catalog, nil)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}

	rows := make([]StatsRow, len(stats))
	for i, s := range stats {
		rows[i] = StatsRow{Table: s.Table, RowCount: s.RowCount, Seq: s.Seq, Catalog: -1}
		if t, err := cat.Lookup(s.Table); err == nil {
			rows[i].Catalog = t.RowCount
		}
	}

	if opts.Format == "json" {
		return formatter.Success(rows)
	}

	w := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(w, "No table statistics recorded.")
		return nil
	}
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		catalogRows := "(not in catalog)"
		if r.Catalog >= 0 {
			catalogRows = fmt.Sprintf("%g", r.Catalog)
		}
		out[i] = table.Row{r.Table, fmt.Sprintf("%g", r.RowCount), catalogRows, r.Seq}
	}
	renderTable(w, table.Row{"Table", "Rows", "Catalog rows", "Seq"}, out)
	return nil
}

func runStatsSet(opts *RootOptions, tableName, rowsArg string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts, cmd)

	rows, err := strconv.ParseFloat(rowsArg, 64)
	if err != nil || rows < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("row count must be a non-negative number, got %q", rowsArg), nil)
	}

	cat, err := loadCatalog(ctx, opts.Config.Catalog, nil)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	t, err := cat.Lookup(tableName)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}

	st, err := openStore(opts, true)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	defer closeStore(st)

	last, err := st.LastSeq(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "reading history sequence", err.Error())
	}
	rec := store.TableStats{Table: t.Name, RowCount: rows, Seq: engine.NewClockAt(last).Next()}
	if err := st.WriteTableStats(ctx, rec); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "writing table statistics", err.Error())
	}

	result := StatsRow{Table: rec.Table, RowCount: rec.RowCount, Catalog: t.RowCount, Seq: rec.Seq}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %g rows (catalog estimate %g)\n", result.Table, result.RowCount, result.Catalog)
	return nil
}

func runStatsDelete(opts *RootOptions, tableName string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	st, err := openStore(opts, true)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	defer closeStore(st)

	name := tableName
	if cat, err := loadCatalog(cmd.Context(), opts.Config.Catalog, nil); err == nil {
		if t, err := cat.Lookup(tableName); err == nil {
			name = t.Name
		}
	}
	if err := st.DeleteTableStats(cmd.Context(), name); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "deleting table statistics", err.Error())
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]string{"deleted": name})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: statistics deleted\n", name)
	return nil
}
