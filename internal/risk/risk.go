// Package risk computes the bounded attempt risk score and the coarse
// suspicion pre-check over sliding-window attempt counts.
//
// The package is pure: it owns no I/O and no clock. Callers (the engine's
// attempt recorder) gather window counts from the ledger and pass them in.
package risk

// Score weights. Both per-user checks are independent and additive: a user
// past the higher threshold collects both contributions.
const (
	userFailuresSoftThreshold = 3
	userFailuresHardThreshold = 5
	ipFailuresThreshold       = 10
	rapidAttemptsThreshold    = 5

	userFailuresSoftWeight = 30
	userFailuresHardWeight = 20
	ipFailuresWeight       = 30
	rapidAttemptsWeight    = 20

	// MaxScore bounds every computed score.
	MaxScore = 100
	// SuspicionCutoff is the score above which a record is flagged suspicious.
	SuspicionCutoff = 50
)

// Counts are sliding-window attempt aggregates for one authentication call.
// FailedByUser and FailedByIP cover the full lookback window; RecentByUser
// counts attempts of any outcome over the short rapid-attempt window.
type Counts struct {
	FailedByUser int64
	FailedByIP   int64
	RecentByUser int64
}

// Thresholds configure the coarse suspicion pre-check. These are distinct
// from the score weights above: the pre-check gates authentication outright
// while the score only annotates the ledger record.
type Thresholds struct {
	MaxFailedAttempts int
	MaxIPFailures     int64
}

// Score computes the bounded [0,MaxScore] risk score from window counts.
func Score(c Counts) int {
	score := 0

	if c.FailedByUser > userFailuresSoftThreshold {
		score += userFailuresSoftWeight
	}
	if c.FailedByUser > userFailuresHardThreshold {
		score += userFailuresHardWeight
	}
	if c.FailedByIP > ipFailuresThreshold {
		score += ipFailuresWeight
	}
	if c.RecentByUser > rapidAttemptsThreshold {
		score += rapidAttemptsWeight
	}

	if score > MaxScore {
		score = MaxScore
	}
	return score
}

// Suspicious reports whether a score marks the record suspicious. The flag
// is stored on the record and does not itself block authentication.
func Suspicious(score int) bool {
	return score > SuspicionCutoff
}

// SuspiciousActivity is the pre-strategy gate: true when either window
// count exceeds its configured threshold.
func SuspiciousActivity(c Counts, t Thresholds) bool {
	return c.FailedByUser > int64(t.MaxFailedAttempts) || c.FailedByIP > t.MaxIPFailures
}
