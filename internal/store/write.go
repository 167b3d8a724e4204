package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteCompilation inserts a compilation and its candidates in one
// transaction. Uses ON CONFLICT(session_id) DO NOTHING for idempotency: a
// session that is already stored is left untouched, candidates included.
func (s *Store) WriteCompilation(ctx context.Context, c Compilation) error {
	rulesJSON, err := marshalNames(c.Rules)
	if err != nil {
		return fmt.Errorf("write compilation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write compilation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO compilations
		(session_id, seq, root, fingerprint, rules, status, error, chosen, compiler_version, fragment_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`,
		c.SessionID,
		c.Seq,
		c.Root,
		c.Fingerprint,
		rulesJSON,
		c.Status,
		c.Error,
		c.Chosen,
		c.CompilerVersion,
		c.FragmentVersion,
	)
	if err != nil {
		return fmt.Errorf("write compilation: insert: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write compilation: rows affected: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for _, cand := range c.Candidates {
		if err := writeCandidate(ctx, tx, c.SessionID, cand); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write compilation: commit: %w", err)
	}
	return nil
}

func writeCandidate(ctx context.Context, tx *sql.Tx, sessionID string, c Candidate) error {
	derivationJSON, err := marshalNames(c.Derivation)
	if err != nil {
		return fmt.Errorf("write candidate %d: %w", c.Ordinal, err)
	}

	var rows, cpu, io sql.NullFloat64
	if !c.Infinite {
		rows = sql.NullFloat64{Float64: c.Rows, Valid: true}
		cpu = sql.NullFloat64{Float64: c.CPU, Valid: true}
		io = sql.NullFloat64{Float64: c.IO, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO candidates
		(session_id, ordinal, explain, fingerprint, derivation, cost_rows, cost_cpu, cost_io, plan, plan_json, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sessionID,
		c.Ordinal,
		c.Explain,
		c.Fingerprint,
		derivationJSON,
		rows,
		cpu,
		io,
		c.Plan,
		c.PlanJSON,
		c.Error,
	)
	if err != nil {
		return fmt.Errorf("write candidate %d: %w", c.Ordinal, err)
	}
	return nil
}

// WriteTableStats records a row count for a table, replacing any earlier
// one.
func (s *Store) WriteTableStats(ctx context.Context, stats TableStats) error {
	if stats.RowCount < 0 {
		return fmt.Errorf("write table stats: negative row count %v for %s", stats.RowCount, stats.Table)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO table_stats (table_name, row_count, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET row_count = excluded.row_count, seq = excluded.seq
	`, stats.Table, stats.RowCount, stats.Seq)
	if err != nil {
		return fmt.Errorf("write table stats: %w", err)
	}
	return nil
}

// DeleteTableStats forgets the row count of a table. Deleting a table
// without stats is not an error.
func (s *Store) DeleteTableStats(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM table_stats WHERE table_name = ?`, table); err != nil {
		return fmt.Errorf("delete table stats: %w", err)
	}
	return nil
}
