// Package store provides SQLite-backed storage for compilation history and
// table statistics.
//
// The store keeps:
//   - Compilations: one record per optimizer session
//   - Candidates: every alternative a session costed, with its derivation
//   - Table stats: row counts that override catalog estimates
//
// # Ordering
//
// All ordering uses the logical seq column, never wall-clock time. Queries
// that return several rows order by seq ASC and then by a unique key with
// COLLATE BINARY, so reading the same database twice yields identical
// results.
//
// # Idempotency
//
// Writing a compilation whose session ID already exists is a no-op, so a
// retried write never duplicates candidates.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// List-valued columns (rule names, derivations) hold canonical JSON written
// by ir.MarshalCanonical.
package store
