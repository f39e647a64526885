// Package store provides SQLite-backed run history for the axiom pipeline.
//
// Three tables are kept:
//   - runs: one row per pipeline execution, keyed by run id, unique by seq
//   - tasks: the ordered task list of each run
//   - state_snapshots: engine state vectors, so a later process can resume
//     the hidden state where the last recorded run left it
//
// # Ordering
//
// All ordering uses the seq column (logical clock), never timestamps.
// Every multi-row query includes ORDER BY seq ASC (or position ASC within a
// run), so identical databases always produce identical listings.
//
// # Idempotency
//
// WriteRun ignores a run whose id is already stored. A different run reusing
// an existing seq is rejected by the UNIQUE constraint.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: 5s wait on lock contention
//   - foreign_keys=ON: tasks must reference a stored run
//   - single open connection: SQLite has one writer
package store
