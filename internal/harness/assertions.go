package harness

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/engine"
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/queryir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type       string             // Assertion type for categorization
	Expected   string             // Human-readable expected outcome
	Actual     string             // Human-readable actual outcome
	Candidates []CandidateSummary // Everything the session derived
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Candidates) > 0 {
		fmt.Fprintf(&buf, "\nCandidates:\n")
		for _, c := range e.Candidates {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", c.Ordinal, c.Cost, c.Derivation)
		}
	}

	return buf.String()
}

func (r *Result) fail(kind, expected, actual string) error {
	return &AssertionError{
		Type:       kind,
		Expected:   expected,
		Actual:     actual,
		Candidates: r.Candidates,
	}
}

// chosenOrFail returns the winning candidate, or an assertion error naming
// kind when the session found no plan.
func (r *Result) chosenOrFail(kind string) (*engine.Candidate, error) {
	if r.outcome == nil || r.outcome.Best() == nil {
		return nil, r.fail(kind, "a chosen plan", "no plan: "+r.Error)
	}
	return r.outcome.Best(), nil
}

func assertExplainIs(r *Result, a Assertion) error {
	if _, err := r.chosenOrFail(a.Type); err != nil {
		return err
	}
	if r.Explain != a.Text {
		return r.fail(a.Type, "\n"+a.Text, "\n"+r.Explain)
	}
	return nil
}

func assertDerivation(r *Result, a Assertion) error {
	if _, err := r.chosenOrFail(a.Type); err != nil {
		return err
	}
	if !slices.Equal(r.Derivation, a.Derivation) {
		return r.fail(a.Type, fmt.Sprintf("%v", a.Derivation), fmt.Sprintf("%v", r.Derivation))
	}
	return nil
}

func assertCostInfinite(r *Result, a Assertion) error {
	if r.outcome == nil || len(r.outcome.Candidates) == 0 {
		return r.fail(a.Type, "a root candidate", "no candidates")
	}
	root := r.outcome.Root()
	if root.Cost.IsInfinite() != *a.Expect {
		return r.fail(a.Type, fmt.Sprintf("root cost infinite = %t", *a.Expect), root.Cost.String())
	}
	return nil
}

func assertRows(r *Result, a Assertion) error {
	if _, err := r.chosenOrFail(a.Type); err != nil {
		return err
	}
	if !approxEqual(r.Rows, *a.Rows) {
		return r.fail(a.Type, fmt.Sprintf("%g rows", *a.Rows), fmt.Sprintf("%g rows", r.Rows))
	}
	return nil
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func assertFragmentContains(r *Result, a Assertion) error {
	if _, err := r.chosenOrFail(a.Type); err != nil {
		return err
	}
	if !strings.Contains(r.Fragment, a.Text) {
		return r.fail(a.Type, fmt.Sprintf("fragment containing %q", a.Text), "\n"+r.Fragment)
	}
	return nil
}

func assertErrorContains(r *Result, a Assertion) error {
	if r.Error == "" {
		return r.fail(a.Type, fmt.Sprintf("error containing %q", a.Text), "no error")
	}
	if !strings.Contains(r.Error, a.Text) {
		return r.fail(a.Type, fmt.Sprintf("error containing %q", a.Text), r.Error)
	}
	return nil
}

func assertSurface(r *Result, a Assertion) error {
	best, err := r.chosenOrFail(a.Type)
	if err != nil {
		return err
	}
	got := plan.SurfaceOf(best.Fragment)
	want := a.Surface

	var mismatches []string
	check := func(field, expected, actual string) {
		if expected != actual {
			mismatches = append(mismatches, fmt.Sprintf("%s: want %q, got %q", field, expected, actual))
		}
	}

	if want.Table != "" {
		check("table", want.Table, got.Table.String())
	}
	if want.Order != "" {
		check("order", want.Order, got.Order.String())
	}
	if want.Limit != nil {
		actual := "none"
		if got.Limit != nil {
			actual = fmt.Sprint(*got.Limit)
		}
		check("limit", fmt.Sprint(*want.Limit), actual)
	}
	if want.Filter != "" {
		actual := ""
		if got.Filter != nil {
			actual = got.Filter.String()
		}
		check("filter", want.Filter, actual)
	}
	if want.Families != nil {
		check("families", strings.Join(want.Families, ","), strings.Join(got.Families, ","))
	}
	if want.Projected != nil {
		check("projected", fmt.Sprint(*want.Projected), fmt.Sprint(got.Projector != nil))
	}

	if len(mismatches) > 0 {
		return r.fail(a.Type, "surface fields to match", strings.Join(mismatches, "; "))
	}
	return nil
}

func assertReplayMatches(actx *AssertionContext, r *Result, a Assertion) error {
	replay, err := actx.Engine.Replay(actx.Ctx, actx.Catalog, actx.Correlations, r.SessionID)
	if err != nil {
		return fmt.Errorf("replay_matches: %w", err)
	}
	if replay.Match() != *a.Expect {
		return r.fail(a.Type,
			fmt.Sprintf("replay match = %t", *a.Expect),
			fmt.Sprintf("stored %q (%d candidates), replayed %q (%d candidates)",
				replay.Stored, replay.StoredCandidates, replay.Replayed, replay.ReplayedCandidates))
	}
	return nil
}

// AssertionContext provides what replay assertions need beyond the result.
type AssertionContext struct {
	Ctx          context.Context
	Engine       *engine.Engine
	Catalog      *catalog.Catalog
	Correlations map[string]queryir.RowType
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter is only needed for replay_matches assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertExplainIs:
			err = assertExplainIs(result, assertion)
		case AssertDerivation:
			err = assertDerivation(result, assertion)
		case AssertCostInfinite:
			err = assertCostInfinite(result, assertion)
		case AssertRows:
			err = assertRows(result, assertion)
		case AssertFragmentContains:
			err = assertFragmentContains(result, assertion)
		case AssertErrorContains:
			err = assertErrorContains(result, assertion)
		case AssertSurface:
			err = assertSurface(result, assertion)
		case AssertReplayMatches:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: replay_matches requires an engine", i)
			} else {
				err = assertReplayMatches(actx, result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
