package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/queryir"
	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/rules"
	"github.com/roach88/pushplan/internal/store"
)

// ReplayResult compares a stored session with a fresh run of it.
type ReplayResult struct {
	SessionID string
	// Stored and Replayed are the fingerprints of the winning trees, empty
	// when the run found no plan.
	Stored   string
	Replayed string
	// StoredCandidates and ReplayedCandidates count the trees each run
	// derived.
	StoredCandidates   int
	ReplayedCandidates int
}

// Match reports whether both runs derived the same number of trees and
// picked the same winner.
func (r *ReplayResult) Match() bool {
	return r.Stored == r.Replayed && r.StoredCandidates == r.ReplayedCandidates
}

// Replay re-runs a stored session and compares the result.
//
// The stored root is parsed against cat with correlations, and explored
// with the stored rule names, not the engine's own rules. The replay is not
// recorded. Because exploration and choice are deterministic, a mismatch
// means the rules, the cost model or the catalog statistics changed since
// the session ran.
func (e *Engine) Replay(ctx context.Context, cat *catalog.Catalog, correlations map[string]queryir.RowType, sessionID string) (*ReplayResult, error) {
	if e.store == nil {
		return nil, errors.New("replay needs a store")
	}
	rec, err := e.store.ReadCompilation(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	root, err := rel.ParseExplain(rec.Root, cat, correlations)
	if err != nil {
		return nil, fmt.Errorf("replay %s: parse stored root: %w", sessionID, err)
	}
	ruleSet, err := rules.ByName(rec.Rules...)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}
	if len(rec.Rules) == 0 {
		ruleSet = nil
	}

	out, err := e.optimize(ctx, root, ruleSet, false)
	if err != nil && !IsNoPlanError(err) {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	result := &ReplayResult{
		SessionID:          sessionID,
		Stored:             storedWinner(rec),
		StoredCandidates:   len(rec.Candidates),
		ReplayedCandidates: len(out.Candidates),
	}
	if best := out.Best(); best != nil {
		result.Replayed = best.Fingerprint
	}

	slog.Info("session replayed",
		"session", sessionID,
		"match", result.Match(),
		"stored", result.Stored,
		"replayed", result.Replayed)
	return result, nil
}

func storedWinner(rec store.Compilation) string {
	for _, c := range rec.Candidates {
		if c.Ordinal == rec.Chosen {
			return c.Fingerprint
		}
	}
	return ""
}
