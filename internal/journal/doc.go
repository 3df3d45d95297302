// Package journal provides SQLite-backed durable storage of device operations.
//
// The journal is an append-only log with:
//   - Devices: one row per registered device instance (id, name, capacity)
//   - Operations: every open/release/seek/read/write dispatched through the
//     host framework, with its arguments, result and error code
//
// # Ordering
//
// All rows are stamped with seq from a logical Clock. Queries order by
// seq ASC, so replay sees operations in the order the host dispatched them.
// On Open the clock resumes after the highest seq already stored.
//
// # Replay
//
// Replay re-executes a device instance's operations against a fresh
// device.Store and compares every result, error code and cursor. The store
// is deterministic, so any mismatch means the journal was written by a
// store with different semantics or was tampered with.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package journal
