package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const compilationColumns = `session_id, seq, root, fingerprint, rules, status, error, chosen, compiler_version, fragment_version`

// ReadCompilations returns stored compilations without their candidates,
// ordered by seq ASC, session_id ASC COLLATE BINARY. When limit > 0 only the
// most recent limit compilations are returned, still in ascending order.
//
// Returns an empty slice (not nil) if nothing is stored.
func (s *Store) ReadCompilations(ctx context.Context, limit int) ([]Compilation, error) {
	query := `SELECT ` + compilationColumns + ` FROM compilations
		ORDER BY seq ASC, session_id COLLATE BINARY ASC`
	args := []any{}
	if limit > 0 {
		query = `SELECT ` + compilationColumns + ` FROM (
			SELECT * FROM compilations
			ORDER BY seq DESC, session_id COLLATE BINARY DESC
			LIMIT ?
		) ORDER BY seq ASC, session_id COLLATE BINARY ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	compilations := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		compilations = append(compilations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return compilations, nil
}

// ReadCompilation returns one compilation with its candidates ordered by
// ordinal. Returns ErrNotFound if the session is not stored.
func (s *Store) ReadCompilation(ctx context.Context, sessionID string) (Compilation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+compilationColumns+` FROM compilations WHERE session_id = ?`, sessionID)
	c, err := scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, fmt.Errorf("compilation %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return Compilation{}, err
	}

	c.Candidates, err = s.readCandidates(ctx, sessionID)
	if err != nil {
		return Compilation{}, err
	}
	return c, nil
}

func (s *Store) readCandidates(ctx context.Context, sessionID string) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, explain, fingerprint, derivation, cost_rows, cost_cpu, cost_io, plan, plan_json, error
		FROM candidates
		WHERE session_id = ?
		ORDER BY ordinal ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	candidates := []Candidate{}
	for rows.Next() {
		var (
			c              Candidate
			derivationJSON string
			r, cpu, io     sql.NullFloat64
		)
		if err := rows.Scan(&c.Ordinal, &c.Explain, &c.Fingerprint, &derivationJSON, &r, &cpu, &io, &c.Plan, &c.PlanJSON, &c.Error); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if c.Derivation, err = unmarshalNames(derivationJSON); err != nil {
			return nil, fmt.Errorf("candidate %d: %w", c.Ordinal, err)
		}
		c.Infinite = !r.Valid
		c.Rows, c.CPU, c.IO = r.Float64, cpu.Float64, io.Float64
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

func scanCompilation(row rowScanner) (Compilation, error) {
	var c Compilation
	var rulesJSON string
	err := row.Scan(&c.SessionID, &c.Seq, &c.Root, &c.Fingerprint, &rulesJSON, &c.Status, &c.Error, &c.Chosen, &c.CompilerVersion, &c.FragmentVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, err
	}
	if err != nil {
		return Compilation{}, fmt.Errorf("scan compilation: %w", err)
	}
	if c.Rules, err = unmarshalNames(rulesJSON); err != nil {
		return Compilation{}, fmt.Errorf("compilation %s: %w", c.SessionID, err)
	}
	return c, nil
}

// LastSeq returns the highest stored seq, or 0 for an empty store. A clock
// resumed from it never reuses a stored seq.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM compilations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// ReadTableStats returns all stored row counts ordered by table name.
func (s *Store) ReadTableStats(ctx context.Context) ([]TableStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, row_count, seq
		FROM table_stats
		ORDER BY table_name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query table stats: %w", err)
	}
	defer rows.Close()

	stats := []TableStats{}
	for rows.Next() {
		var ts TableStats
		if err := rows.Scan(&ts.Table, &ts.RowCount, &ts.Seq); err != nil {
			return nil, fmt.Errorf("scan table stats: %w", err)
		}
		stats = append(stats, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table stats: %w", err)
	}
	return stats, nil
}

// RowCounts returns the stored row counts keyed by table name, in the shape
// catalog.WithRowCounts takes.
func (s *Store) RowCounts(ctx context.Context) (map[string]float64, error) {
	stats, err := s.ReadTableStats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(stats))
	for _, ts := range stats {
		out[ts.Table] = ts.RowCount
	}
	return out, nil
}
