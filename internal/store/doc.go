// Package store provides SQLite-backed durable storage for canonxml runs.
//
// The store implements an append-only run log with:
//   - Runs: one row per `canonxml run`, with configuration, input schema,
//     final status and counters
//   - Error rows: every record diverted to the error channel, with its
//     original values as JSON
//
// # Critical Patterns
//
// Idempotent error rows:
//   - PRIMARY KEY(run_id, seq) with ON CONFLICT DO NOTHING
//   - Re-delivering the same diverted record is a no-op
//
// Logical ordering:
//   - Error rows are ordered by the stage's record sequence number, NEVER
//     by timestamps
//   - Runs are ordered by insertion
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Error rows must reference an existing run
package store
