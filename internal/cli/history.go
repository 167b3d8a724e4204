package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/store"
)

// HistoryOptions holds flags for the history commands.
type HistoryOptions struct {
	*RootOptions
	Limit        int
	Correlations []string
}

// SessionSummary is one row of the history listing.
type SessionSummary struct {
	SessionID  string   `json:"session_id"`
	Seq        int64    `json:"seq"`
	Status     string   `json:"status"`
	Rules      []string `json:"rules"`
	Candidates int      `json:"candidates"`
	Chosen     int      `json:"chosen"`
	Cost       string   `json:"cost,omitempty"`
}

// StoredCandidate is a candidate as read back from history.
type StoredCandidate struct {
	Ordinal    int      `json:"ordinal"`
	Cost       string   `json:"cost"`
	Derivation []string `json:"derivation"`
	Explain    string   `json:"explain"`
	Plan       string   `json:"plan,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// SessionDetail is the full stored record of one session.
type SessionDetail struct {
	SessionSummary
	Root            string            `json:"root"`
	Error           string            `json:"error,omitempty"`
	CompilerVersion string            `json:"compiler_version"`
	FragmentVersion string            `json:"fragment_version"`
	Detail          []StoredCandidate `json:"candidate_detail"`
}

// ReplayReport holds the replay result of one session.
type ReplayReport struct {
	SessionID          string `json:"session_id"`
	Match              bool   `json:"match"`
	Stored             string `json:"stored"`
	Replayed           string `json:"replayed"`
	StoredCandidates   int    `json:"stored_candidates"`
	ReplayedCandidates int    `json:"replayed_candidates"`
}

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded optimizer sessions",
		Long: `List the most recent optimizer sessions recorded in the history
database, in the order they ran.

Sessions are recorded by optimize and compile when a database is
configured with --db or PUSHPLAN_DATABASE.

Examples:
  pushplan history --db ./pushplan.db
  pushplan history show <session-id> --db ./pushplan.db
  pushplan history replay <session-id> --db ./pushplan.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(opts, cmd)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum sessions to list (0 = all)")

	show := &cobra.Command{
		Use:           "show <session-id>",
		Short:         "Show every candidate of a recorded session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(opts, args[0], cmd)
		},
	}

	replay := &cobra.Command{
		Use:   "replay <session-id>",
		Short: "Re-run a recorded session and verify it chooses the same plan",
		Long: `Re-run a recorded session against the current catalog, statistics and
cost settings, and compare the chosen plan with the recorded one.

Exit codes:
  0 - The replay chose the same plan
  1 - The replay chose a different plan
  2 - Command error (database not configured, unknown session, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryReplay(opts, args[0], cmd)
		},
	}
	replay.Flags().StringArrayVar(&opts.Correlations, "correlation", nil, "correlated variable as NAME=FIELD:TYPE,... (repeatable)")

	cmd.AddCommand(show, replay)
	return cmd
}

func runHistoryList(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Limit < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, "--limit must be non-negative", nil)
	}

	st, err := openStore(opts.RootOptions, true)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	defer closeStore(st)

	recs, err := st.ReadCompilations(cmd.Context(), opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "reading history", err.Error())
	}

	summaries := make([]SessionSummary, len(recs))
	for i, rec := range recs {
		full, err := st.ReadCompilation(cmd.Context(), rec.SessionID)
		if err != nil {
			return sessionReadError(formatter, rec.SessionID, err)
		}
		summaries[i] = summarizeSession(full)
	}

	if opts.Format == "json" {
		return formatter.Success(summaries)
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	rows := make([]table.Row, len(summaries))
	for i, s := range summaries {
		rows[i] = table.Row{s.Seq, s.SessionID, s.Status, s.Candidates, s.Chosen, s.Cost}
	}
	renderTable(w, table.Row{"Seq", "Session", "Status", "Candidates", "Chosen", "Cost"}, rows)
	return nil
}

func runHistoryShow(opts *HistoryOptions, sessionID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, true)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	defer closeStore(st)

	rec, err := st.ReadCompilation(cmd.Context(), sessionID)
	if err != nil {
		return sessionReadError(formatter, sessionID, err)
	}

	detail := SessionDetail{
		SessionSummary:  summarizeSession(rec),
		Root:            rec.Root,
		Error:           rec.Error,
		CompilerVersion: rec.CompilerVersion,
		FragmentVersion: rec.FragmentVersion,
		Detail:          make([]StoredCandidate, len(rec.Candidates)),
	}
	for i, c := range rec.Candidates {
		sc := StoredCandidate{
			Ordinal:    c.Ordinal,
			Cost:       storedCost(c).String(),
			Derivation: c.Derivation,
			Explain:    c.Explain,
			Plan:       c.Plan,
			Error:      c.Error,
		}
		if sc.Derivation == nil {
			sc.Derivation = []string{}
		}
		detail.Detail[i] = sc
	}

	if opts.Format == "json" {
		return formatter.SessionSuccess(sessionID, detail)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session %s (seq %d, %s)\n", detail.SessionID, detail.Seq, detail.Status)
	fmt.Fprintf(w, "Rules: %s\n", strings.Join(detail.Rules, ", "))
	if detail.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", detail.Error)
	}
	fmt.Fprintln(w, "Root:")
	fmt.Fprint(w, indent(detail.Root))
	for _, c := range detail.Detail {
		mark := ""
		if c.Ordinal == detail.Chosen {
			mark = " (chosen)"
		}
		fmt.Fprintf(w, "\n[%d]%s %s\n", c.Ordinal, mark, c.Cost)
		if len(c.Derivation) > 0 {
			fmt.Fprintf(w, "  derivation: %s\n", strings.Join(c.Derivation, " > "))
		}
		fmt.Fprint(w, indent(c.Explain))
		if c.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", c.Error)
		}
	}
	return nil
}

func runHistoryReplay(opts *HistoryOptions, sessionID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, true)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	defer closeStore(st)

	cat, err := loadCatalog(ctx, opts.Config.Catalog, st)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	corr, err := parseCorrelations(opts.Correlations)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}

	eng, err := newEngine(ctx, opts.RootOptions, nil, st)
	if err != nil {
		return report(formatter, ExitCommandError, err)
	}
	replayed, err := eng.Replay(ctx, cat, corr, sessionID)
	if err != nil {
		return sessionReadError(formatter, sessionID, err)
	}

	rep := ReplayReport{
		SessionID:          replayed.SessionID,
		Match:              replayed.Match(),
		Stored:             replayed.Stored,
		Replayed:           replayed.Replayed,
		StoredCandidates:   replayed.StoredCandidates,
		ReplayedCandidates: replayed.ReplayedCandidates,
	}

	if opts.Format == "json" {
		if !rep.Match {
			if err := formatter.encode(CLIResponse{
				Status:    "error",
				Data:      rep,
				SessionID: sessionID,
				Error:     &CLIError{Code: ErrCodeReplay, Message: "replay chose a different plan"},
			}); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "replay chose a different plan")
		}
		return formatter.SessionSuccess(sessionID, rep)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session %s\n", rep.SessionID)
	fmt.Fprintf(w, "  stored:   %s (%d candidates)\n", orNone(rep.Stored), rep.StoredCandidates)
	fmt.Fprintf(w, "  replayed: %s (%d candidates)\n", orNone(rep.Replayed), rep.ReplayedCandidates)
	if !rep.Match {
		return formatter.Fail(ExitFailure, ErrCodeReplay, "replay chose a different plan", nil)
	}
	fmt.Fprintln(w, "✓ Replay matches")
	return nil
}

func summarizeSession(rec store.Compilation) SessionSummary {
	s := SessionSummary{
		SessionID:  rec.SessionID,
		Seq:        rec.Seq,
		Status:     rec.Status,
		Rules:      rec.Rules,
		Candidates: len(rec.Candidates),
		Chosen:     rec.Chosen,
	}
	if s.Rules == nil {
		s.Rules = []string{}
	}
	for _, c := range rec.Candidates {
		if c.Ordinal == rec.Chosen {
			s.Cost = storedCost(c).String()
		}
	}
	return s
}

// storedCost rebuilds the cost of a stored candidate.
func storedCost(c store.Candidate) rel.Cost {
	if c.Infinite {
		return rel.InfiniteCost
	}
	return rel.Cost{Rows: c.Rows, CPU: c.CPU, IO: c.IO}
}

func sessionReadError(f *OutputFormatter, sessionID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session %s not found", sessionID), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("reading session %s", sessionID), err.Error())
}

func orNone(s string) string {
	if s == "" {
		return "(no plan)"
	}
	return s
}
