// Package engine is the reference driver for the planner rules.
//
// An optimizer session takes a logical tree, explores the alternatives the
// rule set derives from it, costs and lowers every alternative, and keeps
// the cheapest one that lowers. Production optimizers own this search; the
// engine exists so rule sets can be exercised end to end from the CLI and
// from scenario files.
//
// SESSION FLOW:
//
//  1. Optimize stamps the session with an ID (SessionIDGenerator) and a
//     seq (Clock).
//  2. Explore applies rules breadth first. Every distinct tree, identified
//     by rel.Fingerprint, becomes a candidate. Trees seen before in the
//     session are skipped (CycleDetector), and the number of rule
//     applications is bounded (QuotaEnforcer).
//  3. Compile costs and lowers candidates concurrently, one Implementor per
//     candidate. Failures and infinite costs are dropped.
//  4. The cheapest remaining candidate wins. Ties go to the candidate
//     derived first, so the outcome does not depend on goroutine timing.
//  5. With a store attached, the session is recorded.
//
// DETERMINISM:
//
// Rules are applied in the order given, to nodes in pre-order, so the same
// tree and rule set always derive the same candidates with the same
// ordinals. Replay uses this to check a stored session.
package engine
