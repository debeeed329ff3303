// Package internal contains helper utilities that are intentionally private
// to authgate, currently secure numeric code generation.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - flows — pure-function flow orchestrators for every Engine operation
//   - limiters — domain-specific throttles (code delivery)
//   - risk — pure sliding-window risk scoring and suspicion gates
//   - stores — Redis-backed attempt ledger and challenge store
//
// # What this package must NOT do
//
//   - Export types that appear in the public authgate API.
//   - Be imported by any package outside the authgate module.
package internal
