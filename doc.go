// Package authgate provides an authentication orchestration engine with
// pluggable credential-check strategies, sliding-window fraud scoring,
// account lockout, and multi-method two-factor verification (TOTP, SMS,
// email, backup codes).
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Each Authenticate or Register call is an independent,
// short-lived unit of work; the only cross-call shared state is the account
// store (reached through the caller-supplied [AccountProvider]) and the
// Redis-backed attempt ledger and challenge stores.
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config],
// the [Strategy] interface, and value types (AuthResult, TwoFactorSetup,
// AttemptRecord, etc.). All internal coordination — flow orchestration, risk
// scoring, attempt bookkeeping, challenge storage, audit dispatch — lives
// under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Terminate HTTP, deliver SMS/email, or render CAPTCHAs; those are
//     collaborator interfaces the caller implements.
//   - Retain plaintext secrets: passwords, backup codes, and one-time codes
//     are hashed before they reach any store.
//
// # Failure contract
//
// Every authentication-path failure is appended to the attempt ledger with a
// human-readable reason before being surfaced, except the pre-identity
// CAPTCHA gate and the challenge-required branch, which precede or defer the
// final outcome. Domain failures (wrong password, locked account) and
// infrastructure failures (ledger or challenge backend unreachable) are
// distinct sentinel errors so callers can tell them apart.
package authgate
