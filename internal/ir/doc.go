// Package ir provides the foundational value vocabulary for pushplan.
//
// It holds three things every other package builds on:
//   - DataType, the closed set of SQL column types and the implicit
//     coercion / explicit cast lattice between them
//   - Datum, the sealed set of runtime scalar values (decimals are backed by
//     apd so folding never loses precision)
//   - Value, the canonical description tree used to fingerprint plan trees
//     and compiled fragments
//
// ir imports nothing internal. Everything else imports ir.
package ir
