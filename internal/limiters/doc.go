// Package limiters provides domain-specific throttles for the engine.
//
// # Limiters
//
//   - [SendCodeLimiter] — per-account fixed window on out-of-band code delivery.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Policy
// thresholds come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import authgate or any sibling internal package.
//   - Make policy decisions beyond counting — flow functions decide consequences.
package limiters
