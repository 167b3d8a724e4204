package harness

import (
	"github.com/roach88/pushplan/internal/engine"
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/rel"
)

// CandidateSummary is one candidate of a session, as reported by Run.
type CandidateSummary struct {
	Ordinal    int      `json:"ordinal"`
	Explain    string   `json:"explain"`
	Derivation []string `json:"derivation"`
	Cost       string   `json:"cost"`
	Error      string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	SessionID string `json:"session_id"`

	// Candidates lists every tree the session derived, root first.
	Candidates []CandidateSummary `json:"candidates"`

	// Chosen is the ordinal of the winning candidate, -1 when none won.
	Chosen int `json:"chosen"`

	// Explain, Derivation, Rows and Fragment describe the winner.
	Explain    string   `json:"explain,omitempty"`
	Derivation []string `json:"derivation,omitempty"`
	Rows       float64  `json:"rows,omitempty"`
	Fragment   string   `json:"fragment,omitempty"`

	// Error is the session error, set when no candidate lowered.
	Error string `json:"error,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	outcome *engine.Outcome
}

// NewResult creates a new passing result with nothing chosen.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Candidates: []CandidateSummary{},
		Chosen:     -1,
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Outcome returns the engine outcome the result was built from.
func (r *Result) Outcome() *engine.Outcome {
	return r.outcome
}

// record fills r from a finished session.
func (r *Result) record(out *engine.Outcome, sessionErr error, model rel.CostModel) {
	r.outcome = out
	r.SessionID = out.SessionID
	r.Chosen = out.Chosen
	for _, c := range out.Candidates {
		summary := CandidateSummary{
			Ordinal:    c.Ordinal,
			Explain:    c.Explain,
			Derivation: c.Derivation,
			Cost:       c.Cost.String(),
		}
		if c.Err != nil {
			summary.Error = c.Err.Error()
		}
		r.Candidates = append(r.Candidates, summary)
	}
	if best := out.Best(); best != nil {
		r.Explain = best.Explain
		r.Derivation = best.Derivation
		r.Rows = model.RowCount(best.Tree)
		r.Fragment = plan.Format(best.Fragment)
	}
	if sessionErr != nil {
		r.Error = sessionErr.Error()
	}
}
