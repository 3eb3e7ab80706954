// Package store provides durable storage for the migration target: the
// modern business/filing tables, the per-corporation watermark and the
// legacy-style id counters.
//
// # Critical Patterns
//
// Idempotent linkage
//   - colin_event_ids.colin_event_id is the primary key
//   - a legacy event can be linked to at most one committed filing
//
// Monotonic watermark
//   - last_processed_event_id only moves forward, and only inside the
//     transaction that committed the corresponding filing
//
// Row-locked claims and counters
//   - Postgres: SELECT ... FOR UPDATE
//   - SQLite: every transaction is BEGIN IMMEDIATE (_txlock=immediate), which
//     takes the database write lock up front
//
// Deterministic reads
//   - all list queries are ordered by their natural key
//
// # Database Configuration (SQLite)
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
