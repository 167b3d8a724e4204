package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pushplan/internal/planerr"
	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/rules"
	"github.com/roach88/pushplan/internal/store"
	"github.com/roach88/pushplan/internal/testutil"
)

const (
	sortedScan = "ClientSort(collation=[[0, 1]])\n" +
		"  ToClient()\n" +
		"    TableScan(table=[[phoenix, ATABLE]])\n"

	logicalJoin = "LogicalJoin(condition=[=($0, $2)], joinType=[inner])\n" +
		"  TableScan(table=[[phoenix, BTABLE]])\n" +
		"  TableScan(table=[[phoenix, DTABLE]])\n"

	union = "Union(all=[true])\n" +
		"  ToClient()\n" +
		"    TableScan(table=[[phoenix, BTABLE]])\n" +
		"  ToClient()\n" +
		"    TableScan(table=[[phoenix, BTABLE]])\n"
)

func parseTree(t *testing.T, text string) rel.Node {
	t.Helper()
	n, err := rel.ParseExplain(text, testutil.Catalog(t), nil)
	require.NoError(t, err)
	return n
}

func newTestEngine(ids []string, opts ...EngineOption) *Engine {
	return New(rules.All(), NewFixedGenerator(ids...), opts...)
}

func explains(cs []*Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Explain
	}
	return out
}

// failingRule matches every scan and fails.
type failingRule struct{}

func (failingRule) Name() string { return "Failing" }

func (failingRule) Match(n rel.Node) bool {
	_, ok := n.(*rel.TableScan)
	return ok
}

func (failingRule) Apply(rel.Node) ([]rel.Node, error) {
	return nil, errors.New("boom")
}

// identityRule matches everything and proposes the node itself.
type identityRule struct{}

func (identityRule) Name() string { return "Identity" }

func (identityRule) Match(rel.Node) bool { return true }

func (identityRule) Apply(n rel.Node) ([]rel.Node, error) { return []rel.Node{n}, nil }

func TestOptimize_ChoosesOrderedScan(t *testing.T) {
	e := newTestEngine([]string{"s-1"})

	out, err := e.Optimize(context.Background(), parseTree(t, sortedScan))
	require.NoError(t, err)

	assert.Equal(t, "s-1", out.SessionID)
	assert.Equal(t, int64(1), out.Seq)
	assert.Equal(t, e.Rules(), out.Rules)
	assert.False(t, out.Truncated)
	require.Len(t, out.Candidates, 2)
	assert.Equal(t, sortedScan, out.Root().Explain)

	best := out.Best()
	require.NotNil(t, best)
	assert.Equal(t, []string{"ForwardTableScan"}, best.Derivation)
	assert.Equal(t,
		"ToClient()\n  TableScan(table=[[phoenix, ATABLE]], scanOrder=[FORWARD])\n",
		best.Explain)
	assert.True(t, best.Cost.Less(out.Root().Cost))
	assert.NotNil(t, best.Fragment)
}

func TestOptimize_UnlimitedScan(t *testing.T) {
	e := newTestEngine([]string{"s-1"})
	text := "ToClient()\n  TableScan(table=[[phoenix, BTABLE]])\n"

	out, err := e.Optimize(context.Background(), parseTree(t, text))
	require.NoError(t, err)
	require.NotEmpty(t, out.Candidates)
	assert.Equal(t, text, out.Root().Explain)
	assert.NotEmpty(t, out.Root().Fingerprint)
	require.NotNil(t, out.Best())
}

func TestOptimize_ChoosesScanLimit(t *testing.T) {
	ruleSet, err := rules.ByName("AddScanLimit")
	require.NoError(t, err)
	e := New(ruleSet, NewFixedGenerator("s-1"))
	text := "ClientSort(fetch=[10])\n" +
		"  ToClient()\n" +
		"    TableScan(table=[[phoenix, ATABLE]])\n"

	out, err := e.Optimize(context.Background(), parseTree(t, text))
	require.NoError(t, err)
	require.Len(t, out.Candidates, 2)

	best := out.Best()
	require.NotNil(t, best)
	assert.Equal(t, []string{"AddScanLimit"}, best.Derivation)
	assert.Contains(t, best.Explain, "limit=[10]")
	assert.True(t, best.Cost.Less(out.Root().Cost))
}

func TestOptimize_JoinStrategies(t *testing.T) {
	e := newTestEngine([]string{"s-1"})

	out, err := e.Optimize(context.Background(), parseTree(t, logicalJoin))
	require.NoError(t, err)

	root := out.Root()
	assert.True(t, root.Cost.IsInfinite())
	assert.True(t, planerr.IsUnsupported(root.Err))
	assert.False(t, root.Viable())

	best := out.Best()
	require.NotNil(t, best)
	assert.NotEqual(t, 0, best.Ordinal)
	assert.NotContains(t, best.Explain, "LogicalJoin")

	// Both strategies were derived directly from the root.
	assert.Equal(t, []string{"JoinSort"}, out.Candidates[1].Derivation)
	assert.Equal(t, []string{"ServerJoin"}, out.Candidates[2].Derivation)
	for _, c := range out.Candidates {
		if c.Viable() {
			assert.False(t, c.Cost.Less(best.Cost), "candidate %d is cheaper than the winner", c.Ordinal)
		}
	}
}

func TestOptimize_Deterministic(t *testing.T) {
	first, err := newTestEngine([]string{"a"}, WithWorkers(1)).Optimize(context.Background(), parseTree(t, logicalJoin))
	require.NoError(t, err)
	second, err := newTestEngine([]string{"b"}, WithWorkers(8)).Optimize(context.Background(), parseTree(t, logicalJoin))
	require.NoError(t, err)

	assert.Equal(t, explains(first.Candidates), explains(second.Candidates))
	assert.Equal(t, first.Chosen, second.Chosen)
}

func TestOptimize_NoPlan(t *testing.T) {
	e := newTestEngine([]string{"s-1"})

	out, err := e.Optimize(context.Background(), parseTree(t, union))
	require.Error(t, err)
	require.NotNil(t, out)

	assert.True(t, IsNoPlanError(err))
	assert.True(t, planerr.IsUnsupported(err))
	assert.Equal(t, -1, out.Chosen)
	assert.Nil(t, out.Best())

	var np *NoPlanError
	require.ErrorAs(t, err, &np)
	assert.Equal(t, "Union", np.FirstUnsupported)
	assert.Equal(t, len(out.Candidates), np.Candidates)
	assert.Contains(t, err.Error(), "first unsupported: Union")
}

func TestExplore_QuotaTruncates(t *testing.T) {
	e := newTestEngine([]string{"s-1"}, WithMaxSteps(1))

	cands, err := e.Explore(context.Background(), "s-1", parseTree(t, logicalJoin), rules.All())
	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))
	assert.Len(t, cands, 2)

	out, err := e.Optimize(context.Background(), parseTree(t, logicalJoin))
	require.NoError(t, err)
	assert.True(t, out.Truncated)
	assert.Len(t, out.Candidates, 2)
}

func TestExplore_CandidateCap(t *testing.T) {
	e := newTestEngine(nil, WithMaxCandidates(2))

	cands, err := e.Explore(context.Background(), "s-1", parseTree(t, logicalJoin), rules.All())
	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestExplore_ClearsCycleHistory(t *testing.T) {
	e := newTestEngine(nil)

	_, err := e.Explore(context.Background(), "s-1", parseTree(t, logicalJoin), rules.All())
	require.NoError(t, err)
	assert.Equal(t, 0, e.cycleDetector.HistorySize())
}

func TestExplore_SkipsRevisitedTrees(t *testing.T) {
	e := newTestEngine(nil)

	cands, err := e.Explore(context.Background(), "s-1", parseTree(t, sortedScan), []rules.Rule{identityRule{}})
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestExplore_FailingRuleIsSkipped(t *testing.T) {
	e := newTestEngine(nil)

	cands, err := e.Explore(context.Background(), "s-1", parseTree(t, sortedScan),
		[]rules.Rule{failingRule{}, rules.ForwardTableScan{}})
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, []string{"ForwardTableScan"}, cands[1].Derivation)
}

func TestExplore_Cancelled(t *testing.T) {
	e := newTestEngine(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cands, err := e.Explore(ctx, "s-1", parseTree(t, logicalJoin), rules.All())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, cands, 1)
}

func TestExplore_DoesNotModifyRoot(t *testing.T) {
	e := newTestEngine(nil)
	root := parseTree(t, logicalJoin)

	_, err := e.Explore(context.Background(), "s-1", root, rules.All())
	require.NoError(t, err)
	assert.Equal(t, logicalJoin, rel.Explain(root))
}

func TestCompile_TiesGoToFirst(t *testing.T) {
	e := newTestEngine(nil)
	tree := parseTree(t, sortedScan)

	a, err := newCandidate(0, tree, nil)
	require.NoError(t, err)
	b, err := newCandidate(1, tree, nil)
	require.NoError(t, err)

	chosen, err := e.Compile(context.Background(), "s-1", []*Candidate{a, b})
	require.NoError(t, err)
	assert.Equal(t, 0, chosen)
	assert.Equal(t, a.Cost, b.Cost)
}

func TestCompile_Cancelled(t *testing.T) {
	e := newTestEngine(nil)
	c, err := newCandidate(0, parseTree(t, sortedScan), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chosen, err := e.Compile(ctx, "s-1", []*Candidate{c})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, -1, chosen)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOptimize_RecordsSession(t *testing.T) {
	s := openStore(t)
	clock := testutil.NewDeterministicClockAt(41)
	e := newTestEngine([]string{"s-1", "s-2"}, WithStore(s), WithClock(clock))
	ctx := context.Background()

	out, err := e.Optimize(ctx, parseTree(t, sortedScan))
	require.NoError(t, err)

	rec, err := s.ReadCompilation(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.Seq)
	assert.Equal(t, store.StatusOK, rec.Status)
	assert.Equal(t, sortedScan, rec.Root)
	assert.Equal(t, out.Chosen, rec.Chosen)
	assert.Equal(t, e.Rules(), rec.Rules)
	require.Len(t, rec.Candidates, len(out.Candidates))

	winner := rec.Candidates[rec.Chosen]
	assert.Equal(t, out.Best().Fingerprint, winner.Fingerprint)
	assert.Equal(t, []string{"ForwardTableScan"}, winner.Derivation)
	assert.NotEmpty(t, winner.Plan)
	assert.NotEmpty(t, winner.PlanJSON)
	assert.False(t, winner.Infinite)

	_, err = e.Optimize(ctx, parseTree(t, union))
	require.Error(t, err)
	failed, err := s.ReadCompilation(ctx, "s-2")
	require.NoError(t, err)
	assert.Equal(t, store.StatusNoPlan, failed.Status)
	assert.Equal(t, -1, failed.Chosen)
	assert.Contains(t, failed.Error, "Union")
}

func TestReplay(t *testing.T) {
	s := openStore(t)
	e := newTestEngine([]string{"s-1", "replay-1"}, WithStore(s))
	ctx := context.Background()

	_, err := e.Optimize(ctx, parseTree(t, logicalJoin))
	require.NoError(t, err)

	result, err := e.Replay(ctx, testutil.Catalog(t), nil, "s-1")
	require.NoError(t, err)
	assert.True(t, result.Match())
	assert.NotEmpty(t, result.Stored)

	// The replay itself is not recorded.
	_, err = s.ReadCompilation(ctx, "replay-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReplay_DetectsChangedRules(t *testing.T) {
	s := openStore(t)
	e := newTestEngine([]string{"s-1", "replay-1"}, WithStore(s))
	ctx := context.Background()

	_, err := e.Optimize(ctx, parseTree(t, sortedScan))
	require.NoError(t, err)

	// A different rule list in the record changes what the replay derives.
	rec, err := s.ReadCompilation(ctx, "s-1")
	require.NoError(t, err)
	rec.SessionID = "s-edited"
	rec.Rules = []string{"InnerSortRemove"}
	require.NoError(t, s.WriteCompilation(ctx, rec))

	result, err := e.Replay(ctx, testutil.Catalog(t), nil, "s-edited")
	require.NoError(t, err)
	assert.False(t, result.Match())
	assert.Equal(t, 1, result.ReplayedCandidates)
}

func TestReplay_Errors(t *testing.T) {
	_, err := newTestEngine(nil).Replay(context.Background(), testutil.Catalog(t), nil, "s-1")
	assert.ErrorContains(t, err, "needs a store")

	e := newTestEngine(nil, WithStore(openStore(t)))
	_, err = e.Replay(context.Background(), testutil.Catalog(t), nil, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
