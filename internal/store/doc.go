// Package store provides a SQLite-backed journal of orchestration passes.
//
// Every replay pass driven by the tooling is recorded with the payload it
// ran against and the outcome it produced. The journal is an audit trail,
// not the system of record for history: the host owns history, and the
// journal only lets a later run prove that replaying the same payload
// produces the same outcome.
//
// # Critical Patterns
//
// Logical ordering: passes are ordered by seq, the 1-based pass number
// within an instance, never by timestamps.
//
// Deterministic reads: every query orders by seq ASC, id COLLATE BINARY ASC.
//
// Idempotent writes: a pass is unique per (instance_id, seq). Rewriting the
// same pass is a no-op.
//
// Content addressing: payload and result are stored as RFC 8785 canonical
// JSON with domain-separated SHA-256 fingerprints from internal/ir.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
