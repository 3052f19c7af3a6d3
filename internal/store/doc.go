// Package store provides SQLite-backed storage for recorded interpreter runs.
//
// The store is an append-only log with:
//   - Runs: one record per interpreter session (network, hash, outcome)
//   - Channel Events: every value written to or read from a channel queue
//
// It records what crossed the channels, never interpreter state: a stored
// run can be inspected and replayed, not resumed.
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER from the engine clock, NEVER timestamps
//   - UNIQUE(run_id, seq) makes re-recording an event a no-op
//
// Deterministic query results:
//   - Event queries use ORDER BY seq ASC
//   - Run listings use ORDER BY id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Values are stored as canonical JSON (ir.MarshalCanonical) next to their
// type, so they decode back to identical ir.Values.
package store
