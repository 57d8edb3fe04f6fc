// Package store keeps the history of test runs in SQLite.
//
// Each run stores one row in runs, one row per test in results and one
// row per closed scope activation in closures. Rows are written once in a
// single transaction and never updated.
//
// # Ordering
//
//   - Results are read back ORDER BY seq ASC, id ASC COLLATE BINARY.
//   - Runs are listed newest first by started_at, ties broken by id.
//
// # Identity
//
// Result IDs and run digests come from internal/canon: SHA-256 over RFC
// 8785 canonical JSON with domain separation. Two runs with the same
// selection and the same outcomes share a digest, which is how history
// spots a run whose outcomes changed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
