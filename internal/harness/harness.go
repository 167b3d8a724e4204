package harness

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/engine"
	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/rules"
	"github.com/roach88/pushplan/internal/store"
	"github.com/roach88/pushplan/internal/testutil"
)

// Harness holds what one scenario run needs: a fresh store, a deterministic
// clock and an engine wired to both.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	model  rel.CostModel
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// fixed session ID and a deterministic clock, so two runs of the same
// scenario produce identical results.
//
// Execution flow:
// 1. Load the catalog and apply row count overrides through the store
// 2. Parse the plan
// 3. Optimize (or just compile) it, recording the session
// 4. Evaluate assertions
//
// A session that finds no plan is not an error here; scenarios assert on
// it with error_contains.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithModel(scenario, rel.DefaultCostModel())
}

// RunWithModel is Run with an explicit cost model.
func RunWithModel(scenario *Scenario, model rel.CostModel) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()

	cat, err := loadCatalog(scenario.Catalog)
	if err != nil {
		return nil, err
	}
	cat, err = applyStats(ctx, st, clock, cat, scenario.Stats)
	if err != nil {
		return nil, err
	}

	correlations, err := scenario.correlationTypes()
	if err != nil {
		return nil, err
	}
	root, err := rel.ParseExplain(scenario.Plan, cat, correlations)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	var ruleSet []rules.Rule
	if scenario.Mode != ModeCompile {
		ruleSet, err = rules.ByName(scenario.Rules...)
		if err != nil {
			return nil, err
		}
	}

	h := &Harness{
		store: st,
		clock: clock,
		model: model,
	}
	h.engine = engine.New(ruleSet, testutil.NewFixedSessionGenerator(scenario.Session),
		engine.WithStore(st),
		engine.WithClock(clock),
		engine.WithCostModel(model),
	)

	out, sessionErr := h.engine.Optimize(ctx, root)
	if sessionErr != nil && !engine.IsNoPlanError(sessionErr) {
		return nil, fmt.Errorf("failed to optimize: %w", sessionErr)
	}

	result := NewResult()
	result.record(out, sessionErr, h.model)

	actx := &AssertionContext{
		Ctx:          ctx,
		Engine:       h.engine,
		Catalog:      cat,
		Correlations: correlations,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// loadCatalog compiles the scenario catalog, or the shared test catalog
// when path is empty.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		cat, err := catalog.CompileString("testutil/catalog.cue", testutil.CatalogSource())
		if err != nil {
			return nil, fmt.Errorf("failed to compile test catalog: %w", err)
		}
		return cat, nil
	}
	cat, err := catalog.LoadPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// applyStats records row count overrides and reads them back, the same
// path the stats command and the CLI planner take.
func applyStats(ctx context.Context, st *store.Store, clock *testutil.DeterministicClock, cat *catalog.Catalog, stats map[string]float64) (*catalog.Catalog, error) {
	if len(stats) == 0 {
		return cat, nil
	}
	for _, table := range slices.Sorted(maps.Keys(stats)) {
		rows := stats[table]
		t, err := cat.Lookup(table)
		if err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		if err := st.WriteTableStats(ctx, store.TableStats{Table: t.Name, RowCount: rows, Seq: clock.Next()}); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}
	counts, err := st.RowCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return cat.WithRowCounts(counts), nil
}
