package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/rules"
	"github.com/roach88/pushplan/internal/store"
)

// DefaultMaxSteps is the default maximum number of rule applications per
// session.
const DefaultMaxSteps = 1000

// DefaultMaxCandidates is the default maximum number of distinct trees one
// session derives.
const DefaultMaxCandidates = 256

// Engine runs optimizer sessions over a fixed rule set.
//
// Thread-safety model:
//   - Optimize, Explore and Compile: safe from any goroutine; sessions do
//     not share state beyond the cycle detector, which is keyed by session
//   - Compile lowers candidates on up to workers goroutines, one
//     rel.Implementor each
//
// INVARIANTS:
//   - rules slice order NEVER changes after construction
//   - Candidate ordinals follow derivation order
type Engine struct {
	store         *store.Store
	clock         Sequencer
	rules         []rules.Rule
	sessions      SessionIDGenerator
	cycleDetector *CycleDetector
	costModel     rel.CostModel

	workers       int
	maxSteps      int
	maxCandidates int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxSteps sets the maximum rule applications per session.
//
// Default: 1000 steps (DefaultMaxSteps)
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithMaxCandidates caps the distinct trees a session derives, the root
// included.
//
// Default: 256 (DefaultMaxCandidates)
func WithMaxCandidates(n int) EngineOption {
	return func(e *Engine) {
		e.maxCandidates = n
	}
}

// WithWorkers sets how many candidates compile concurrently. Values below
// one mean one.
//
// Default: GOMAXPROCS
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		e.workers = max(n, 1)
	}
}

// WithCostModel replaces the cost weights.
func WithCostModel(m rel.CostModel) EngineOption {
	return func(e *Engine) {
		e.costModel = m
	}
}

// WithStore records every session in s.
func WithStore(s *store.Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithClock replaces the session clock. Use NewClockAt(store.LastSeq) to
// continue a stored history.
func WithClock(c Sequencer) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine for ruleSet. A nil generator means UUIDv7 session
// IDs.
//
// The ruleSet slice is copied so callers cannot reorder it afterwards.
func New(ruleSet []rules.Rule, sessions SessionIDGenerator, opts ...EngineOption) *Engine {
	if sessions == nil {
		sessions = UUIDv7Generator{}
	}
	e := &Engine{
		clock:         NewClock(),
		rules:         slices.Clone(ruleSet),
		sessions:      sessions,
		cycleDetector: NewCycleDetector(),
		costModel:     rel.DefaultCostModel(),
		workers:       runtime.GOMAXPROCS(0),
		maxSteps:      DefaultMaxSteps,
		maxCandidates: DefaultMaxCandidates,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Rules returns the names of the engine's rules in application order.
func (e *Engine) Rules() []string {
	return ruleNames(e.rules)
}

func ruleNames(ruleSet []rules.Rule) []string {
	names := make([]string, len(ruleSet))
	for i, r := range ruleSet {
		names[i] = r.Name()
	}
	return names
}

// Candidate is one tree a session derived, with its cost and lowering once
// compiled.
type Candidate struct {
	Ordinal     int
	Tree        rel.Node
	Explain     string
	Fingerprint string
	// Derivation lists the rules applied, in order, to reach Tree from the
	// root. The root's derivation is empty.
	Derivation []string

	Cost     rel.Cost
	Fragment plan.Fragment
	Err      error
}

func newCandidate(ordinal int, tree rel.Node, derivation []string) (*Candidate, error) {
	fp, err := rel.Fingerprint(tree)
	if err != nil {
		return nil, fmt.Errorf("fingerprint candidate %d: %w", ordinal, err)
	}
	if derivation == nil {
		derivation = []string{}
	}
	return &Candidate{
		Ordinal:     ordinal,
		Tree:        tree,
		Explain:     rel.Explain(tree),
		Fingerprint: fp,
		Derivation:  derivation,
	}, nil
}

// Viable reports whether the candidate lowered with a finite cost.
func (c *Candidate) Viable() bool {
	return c.Err == nil && c.Fragment != nil && !c.Cost.IsInfinite()
}

// Outcome is the result of one session.
type Outcome struct {
	SessionID  string
	Seq        int64
	Rules      []string
	Candidates []*Candidate
	// Chosen is the index of the winning candidate, -1 when none won.
	Chosen int
	// Truncated is set when exploration stopped at the step quota.
	Truncated bool
}

// Best returns the winning candidate, or nil.
func (o *Outcome) Best() *Candidate {
	if o.Chosen < 0 || o.Chosen >= len(o.Candidates) {
		return nil
	}
	return o.Candidates[o.Chosen]
}

// Root returns the candidate the session started from.
func (o *Outcome) Root() *Candidate {
	return o.Candidates[0]
}

// Optimize runs a full session over root: explore, compile, choose, and
// record when a store is attached.
//
// The outcome is returned even when err is a NoPlanError, so callers can
// show what was tried. A step quota hit is logged and not returned.
func (e *Engine) Optimize(ctx context.Context, root rel.Node) (*Outcome, error) {
	return e.optimize(ctx, root, e.rules, true)
}

func (e *Engine) optimize(ctx context.Context, root rel.Node, ruleSet []rules.Rule, record bool) (*Outcome, error) {
	out := &Outcome{
		SessionID: e.sessions.Generate(),
		Seq:       e.clock.Next(),
		Rules:     ruleNames(ruleSet),
		Chosen:    -1,
	}

	slog.Debug("session starting",
		"session", out.SessionID,
		"seq", out.Seq,
		"rules", len(ruleSet))

	candidates, err := e.Explore(ctx, out.SessionID, root, ruleSet)
	switch {
	case IsStepsExceededError(err):
		slog.Warn("exploration truncated",
			"session", out.SessionID,
			"error", err,
			"candidates", len(candidates))
		out.Truncated = true
	case err != nil:
		return nil, err
	}
	out.Candidates = candidates

	chosen, planErr := e.Compile(ctx, out.SessionID, candidates)
	if planErr != nil && !IsNoPlanError(planErr) {
		return nil, planErr
	}
	out.Chosen = chosen

	if best := out.Best(); best != nil {
		slog.Info("plan chosen",
			"session", out.SessionID,
			"candidate", best.Ordinal,
			"cost", best.Cost.String(),
			"derivation", best.Derivation)
	} else {
		slog.Info("no plan",
			"session", out.SessionID,
			"candidates", len(candidates),
			"error", planErr)
	}

	if record && e.store != nil {
		if err := e.store.WriteCompilation(ctx, toRecord(out, planErr)); err != nil {
			return nil, fmt.Errorf("record session %s: %w", out.SessionID, err)
		}
	}
	return out, planErr
}

// Explore derives candidates from root by applying ruleSet breadth first.
// The root is candidate 0.
//
// Exploration stops when nothing new can be derived, when the candidate cap
// is reached, or when the step quota runs out. In the last case the
// candidates so far are returned together with a StepsExceededError.
//
// A rule whose Apply fails is logged and skipped.
func (e *Engine) Explore(ctx context.Context, sessionID string, root rel.Node, ruleSet []rules.Rule) ([]*Candidate, error) {
	defer e.cycleDetector.Clear(sessionID)

	first, err := newCandidate(0, root, nil)
	if err != nil {
		return nil, err
	}
	e.cycleDetector.Record(sessionID, first.Fingerprint)
	candidates := []*Candidate{first}

	quota := NewQuotaEnforcer(e.maxSteps)
	queue := newExploreQueue()
	queue.Enqueue(first)

	for {
		c, ok := queue.TryDequeue()
		if !ok {
			return candidates, nil
		}

		for _, s := range matchSites(c.Tree, ruleSet) {
			if err := ctx.Err(); err != nil {
				return candidates, err
			}
			if err := quota.Check(sessionID); err != nil {
				return candidates, err
			}

			alternatives, err := s.rule.Apply(s.node)
			if err != nil {
				slog.Warn("rule failed",
					"session", sessionID,
					"candidate", c.Ordinal,
					"error", NewRuleError(sessionID, s.rule.Name(), err))
				continue
			}

			for _, alt := range alternatives {
				derivation := append(slices.Clone(c.Derivation), s.rule.Name())
				next, err := newCandidate(len(candidates), replaceAt(c.Tree, s.path, alt), derivation)
				if err != nil {
					return candidates, err
				}
				if e.cycleDetector.WouldCycle(sessionID, next.Fingerprint) {
					slog.Debug("tree already derived, skipping",
						"session", sessionID,
						"rule", s.rule.Name())
					continue
				}
				e.cycleDetector.Record(sessionID, next.Fingerprint)
				candidates = append(candidates, next)

				slog.Debug("candidate derived",
					"session", sessionID,
					"candidate", next.Ordinal,
					"from", c.Ordinal,
					"rule", s.rule.Name())

				if len(candidates) >= e.maxCandidates {
					slog.Info("candidate cap reached",
						"session", sessionID,
						"cap", e.maxCandidates,
						"pending", queue.Len())
					return candidates, nil
				}
				queue.Enqueue(next)
			}
		}
	}
}

// Compile costs and lowers every candidate concurrently, filling in Cost,
// Fragment and Err, and returns the index of the cheapest viable one.
// Equal costs resolve to the lower index.
//
// When no candidate is viable the index is -1 and the error a NoPlanError.
// Other errors mean ctx was cancelled.
func (e *Engine) Compile(ctx context.Context, sessionID string, candidates []*Candidate) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.Cost = e.costModel.CumulativeCost(c.Tree)
			c.Fragment, c.Err = rel.NewImplementor().Compile(c.Tree)
			if c.Err != nil {
				slog.Debug("candidate did not lower",
					"session", sessionID,
					"candidate", c.Ordinal,
					"error", c.Err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return -1, err
	}

	chosen := -1
	for i, c := range candidates {
		if !c.Viable() {
			continue
		}
		if chosen < 0 || c.Cost.Less(candidates[chosen].Cost) {
			chosen = i
		}
	}
	if chosen < 0 {
		return -1, newNoPlanError(sessionID, candidates)
	}
	return chosen, nil
}

// toRecord converts an outcome into its stored form.
func toRecord(o *Outcome, planErr error) store.Compilation {
	rec := store.Compilation{
		SessionID:       o.SessionID,
		Seq:             o.Seq,
		Root:            o.Root().Explain,
		Fingerprint:     o.Root().Fingerprint,
		Rules:           o.Rules,
		Status:          store.StatusOK,
		Chosen:          o.Chosen,
		CompilerVersion: ir.CompilerVersion,
		FragmentVersion: ir.FragmentVersion,
		Candidates:      make([]store.Candidate, len(o.Candidates)),
	}
	if planErr != nil {
		rec.Status = store.StatusNoPlan
		rec.Error = planErr.Error()
	}

	for i, c := range o.Candidates {
		sc := store.Candidate{
			Ordinal:     c.Ordinal,
			Explain:     c.Explain,
			Fingerprint: c.Fingerprint,
			Derivation:  c.Derivation,
			Rows:        c.Cost.Rows,
			CPU:         c.Cost.CPU,
			IO:          c.Cost.IO,
			Infinite:    c.Cost.IsInfinite(),
		}
		if c.Err != nil {
			sc.Error = c.Err.Error()
		}
		if c.Fragment != nil {
			sc.Plan = plan.Format(c.Fragment)
			if data, err := ir.MarshalCanonical(plan.Describe(c.Fragment)); err == nil {
				sc.PlanJSON = string(data)
			}
		}
		rec.Candidates[i] = sc
	}
	return rec
}
