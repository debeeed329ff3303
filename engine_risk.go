package authgate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/halcyonsec/authgate/internal/risk"
	"github.com/halcyonsec/authgate/internal/stores"
)

func ledgerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, stores.ErrLedgerBackend) {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return err
}

func (e *Engine) windowCounts(ctx context.Context, username, ip string) (risk.Counts, error) {
	now := time.Now()
	windowStart := now.Add(-e.config.Risk.Window)
	recentStart := now.Add(-e.config.Risk.RecentWindow)

	var counts risk.Counts
	var err error

	counts.FailedByUser, err = e.ledger.CountFailedByUser(ctx, username, windowStart)
	if err != nil {
		return counts, ledgerErr(err)
	}
	if ip != "" {
		counts.FailedByIP, err = e.ledger.CountFailedByIP(ctx, ip, windowStart)
		if err != nil {
			return counts, ledgerErr(err)
		}
	}
	counts.RecentByUser, err = e.ledger.CountByUser(ctx, username, recentStart)
	if err != nil {
		return counts, ledgerErr(err)
	}
	return counts, nil
}

// recordAttempt is the engine's full attempt bookkeeping: it scores the
// attempt against the window counts, appends the immutable ledger record,
// and drives the per-account failure counter and lockout trigger. Counts
// are read before the append, so the record's score reflects the history
// at the moment of the attempt.
func (e *Engine) recordAttempt(ctx context.Context, username, ip, userAgent string, success bool, failureReason string) error {
	counts, err := e.windowCounts(ctx, username, ip)
	if err != nil {
		return err
	}

	score := risk.Score(counts)
	record := &stores.Attempt{
		ID:            uuid.NewString(),
		Username:      username,
		IP:            ip,
		UserAgent:     userAgent,
		Success:       success,
		FailureReason: failureReason,
		At:            time.Now().Unix(),
		Suspicious:    risk.Suspicious(score),
		RiskScore:     uint8(score),
	}
	if err := e.ledger.Append(ctx, record); err != nil {
		return ledgerErr(err)
	}

	if success {
		if err := e.provider.ResetLoginFailures(ctx, username, time.Now()); err != nil && !errors.Is(err, ErrUserNotFound) {
			return err
		}
		return nil
	}

	// Failures against unknown usernames still land in the ledger but have
	// no counter to advance.
	count, err := e.provider.RecordLoginFailure(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if count >= e.config.Lockout.Threshold {
		if err := e.provider.SetLocked(ctx, username, true); err != nil {
			return err
		}
		e.metricInc(MetricAccountLockTriggered)
		e.emitAudit(ctx, auditEventAccountLocked, false, username, ip, ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"failed_attempts": strconv.Itoa(count),
			}
		})
	}
	return nil
}

// isSuspiciousActivity is the coarse pre-strategy gate over the same
// window counts the scorer uses.
func (e *Engine) isSuspiciousActivity(ctx context.Context, username, ip string) (bool, error) {
	counts, err := e.windowCounts(ctx, username, ip)
	if err != nil {
		return false, err
	}
	return risk.SuspiciousActivity(counts, risk.Thresholds{
		MaxFailedAttempts: e.config.Risk.MaxFailedAttempts,
		MaxIPFailures:     e.config.Risk.SuspiciousIPFailures,
	}), nil
}

// isAccountLocked reports the lock state, clearing a time-boxed lock whose
// duration has elapsed. Unknown usernames are never locked; they fail the
// credential check instead.
func (e *Engine) isAccountLocked(ctx context.Context, username string) (bool, error) {
	account, err := e.provider.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	if !account.Locked {
		return false, nil
	}

	if e.config.Lockout.Duration > 0 && account.LockedAt != nil &&
		time.Since(*account.LockedAt) >= e.config.Lockout.Duration {
		if err := e.provider.SetLocked(ctx, username, false); err != nil {
			return true, err
		}
		e.metricInc(MetricAccountUnlocked)
		e.emitAudit(ctx, auditEventAccountUnlocked, true, username, "", nil, func() map[string]string {
			return map[string]string{
				"reason": "lock_expired",
			}
		})
		return false, nil
	}

	return true, nil
}

// UnlockAccount describes the unlockaccount operation and its observable behavior.
//
// UnlockAccount may return an error when input validation, dependency calls, or security checks fail.
// UnlockAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UnlockAccount(ctx context.Context, username string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	if err := e.provider.SetLocked(ctx, username, false); err != nil {
		return err
	}
	e.metricInc(MetricAccountUnlocked)
	e.emitAudit(ctx, auditEventAccountUnlocked, true, username, "", nil, func() map[string]string {
		return map[string]string{
			"reason": "manual_unlock",
		}
	})
	return nil
}

// RecentAttempts describes the recentattempts operation and its observable behavior.
//
// RecentAttempts may return an error when input validation, dependency calls, or security checks fail.
// RecentAttempts does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RecentAttempts(ctx context.Context, username string, limit int64) ([]AttemptRecord, error) {
	if e == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	attempts, err := e.ledger.Recent(ctx, username, limit)
	if err != nil {
		return nil, ledgerErr(err)
	}

	out := make([]AttemptRecord, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptRecord{
			ID:            a.ID,
			Username:      a.Username,
			IP:            a.IP,
			UserAgent:     a.UserAgent,
			Success:       a.Success,
			FailureReason: a.FailureReason,
			At:            time.Unix(a.At, 0),
			Suspicious:    a.Suspicious,
			RiskScore:     int(a.RiskScore),
		})
	}
	return out, nil
}
