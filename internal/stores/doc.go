// Package stores implements the Redis-backed state shared across
// authentication calls: the append-only attempt ledger and the one-time
// code challenge store.
//
// # Architecture boundaries
//
// This package owns key layout, record encoding, and the CAS retry loops
// that keep challenge attempt counting correct under concurrent calls.
// Policy (thresholds, windows, what to record) belongs to the engine.
//
// # What this package must NOT do
//
//   - Import authgate or any sibling internal package.
//   - Interpret risk scores or lockout thresholds.
//   - Store plaintext one-time codes; only hashes arrive here.
package stores
