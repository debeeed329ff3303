package authgate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordAttemptRiskScoring(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.MaxFailedAttempts = 50
	cfg.Lockout.Threshold = 50

	provider := newMockProvider()
	engine, _, cleanup := newTestEngine(t, cfg, provider)
	defer cleanup()

	ctx := context.Background()

	// The first record sees an empty window: score 0, not suspicious.
	if err := engine.recordAttempt(ctx, "alice", "10.0.0.1", "", false, "invalid credentials"); err != nil {
		t.Fatalf("recordAttempt failed: %v", err)
	}
	attempts, err := engine.RecentAttempts(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentAttempts failed: %v", err)
	}
	if attempts[0].RiskScore != 0 || attempts[0].Suspicious {
		t.Fatalf("expected a zero score on an empty window, got %+v", attempts[0])
	}

	// Push the user past both per-user failure thresholds. With six prior
	// failures in the window the next record scores 30+20, plus 20 for the
	// rapid-attempt count, and is flagged suspicious.
	for i := 0; i < 5; i++ {
		if err := engine.recordAttempt(ctx, "alice", "10.0.0.1", "", false, "invalid credentials"); err != nil {
			t.Fatalf("recordAttempt failed: %v", err)
		}
	}
	if err := engine.recordAttempt(ctx, "alice", "10.0.0.1", "", false, "invalid credentials"); err != nil {
		t.Fatalf("recordAttempt failed: %v", err)
	}

	attempts, err = engine.RecentAttempts(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("RecentAttempts failed: %v", err)
	}
	if attempts[0].RiskScore != 70 {
		t.Fatalf("expected score 70, got %d", attempts[0].RiskScore)
	}
	if !attempts[0].Suspicious {
		t.Fatal("expected the record to be flagged suspicious")
	}
}

func TestRecordAttemptSuccessResetsCounter(t *testing.T) {
	provider := newMockProvider()
	engine, _, cleanup := newTestEngine(t, testConfig(), provider)
	defer cleanup()

	ctx := context.Background()
	provider.seedAccount(t, engine, "alice", "alice@example.com", "correct horse battery")

	if _, err := provider.RecordLoginFailure(ctx, "alice"); err != nil {
		t.Fatalf("RecordLoginFailure failed: %v", err)
	}
	if _, err := provider.RecordLoginFailure(ctx, "alice"); err != nil {
		t.Fatalf("RecordLoginFailure failed: %v", err)
	}

	if err := engine.recordAttempt(ctx, "alice", "10.0.0.1", "", true, ""); err != nil {
		t.Fatalf("recordAttempt failed: %v", err)
	}

	account, _ := provider.GetAccountByUsername(ctx, "alice")
	if account.FailedLoginAttempts != 0 {
		t.Fatalf("expected the counter to reset on success, got %d", account.FailedLoginAttempts)
	}
	if account.LastLogin == nil {
		t.Fatal("expected last login to be stamped on success")
	}
}

func TestLockExpiresAfterDuration(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.Duration = time.Minute
	cfg.Risk.MaxFailedAttempts = 50

	provider := newMockProvider()
	engine, _, cleanup := newTestEngine(t, cfg, provider)
	defer cleanup()

	ctx := context.Background()
	provider.seedAccount(t, engine, "alice", "alice@example.com", "correct horse battery")

	lockedAt := time.Now().Add(-2 * time.Minute)
	provider.mu.Lock()
	provider.accounts["alice"].Locked = true
	provider.accounts["alice"].LockedAt = &lockedAt
	provider.mu.Unlock()

	// The duration has elapsed, so the lock gate clears the flag and the
	// login proceeds.
	if _, err := engine.Authenticate(ctx, AuthRequest{
		Username: "alice",
		Password: "correct horse battery",
	}); err != nil {
		t.Fatalf("expected the expired lock to clear, got %v", err)
	}

	account, _ := provider.GetAccountByUsername(ctx, "alice")
	if account.Locked {
		t.Fatal("expected the lock flag to be cleared")
	}
}

func TestStickyLockRequiresManualUnlock(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.Duration = 0
	cfg.Risk.MaxFailedAttempts = 50

	provider := newMockProvider()
	engine, _, cleanup := newTestEngine(t, cfg, provider)
	defer cleanup()

	ctx := context.Background()
	provider.seedAccount(t, engine, "alice", "alice@example.com", "correct horse battery")

	lockedAt := time.Now().Add(-24 * time.Hour)
	provider.mu.Lock()
	provider.accounts["alice"].Locked = true
	provider.accounts["alice"].LockedAt = &lockedAt
	provider.mu.Unlock()

	_, err := engine.Authenticate(ctx, AuthRequest{
		Username: "alice",
		Password: "correct horse battery",
	})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected a sticky lock to hold, got %v", err)
	}

	if err := engine.UnlockAccount(ctx, "alice"); err != nil {
		t.Fatalf("UnlockAccount failed: %v", err)
	}

	if _, err := engine.Authenticate(ctx, AuthRequest{
		Username: "alice",
		Password: "correct horse battery",
	}); err != nil {
		t.Fatalf("expected success after manual unlock, got %v", err)
	}
}

func TestRecentAttemptsNewestFirst(t *testing.T) {
	provider := newMockProvider()
	engine, _, cleanup := newTestEngine(t, testConfig(), provider)
	defer cleanup()

	ctx := context.Background()
	if err := engine.recordAttempt(ctx, "alice", "10.0.0.1", "agent-a", false, "first"); err != nil {
		t.Fatalf("recordAttempt failed: %v", err)
	}
	if err := engine.recordAttempt(ctx, "alice", "10.0.0.2", "agent-b", false, "second"); err != nil {
		t.Fatalf("recordAttempt failed: %v", err)
	}

	attempts, err := engine.RecentAttempts(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentAttempts failed: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 records, got %d", len(attempts))
	}
	if attempts[0].FailureReason != "second" || attempts[1].FailureReason != "first" {
		t.Fatalf("expected newest-first ordering, got %q then %q", attempts[0].FailureReason, attempts[1].FailureReason)
	}
	if attempts[0].IP != "10.0.0.2" || attempts[0].UserAgent != "agent-b" {
		t.Fatalf("record fields not preserved: %+v", attempts[0])
	}

	// The limit truncates from the newest end.
	attempts, err = engine.RecentAttempts(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("RecentAttempts failed: %v", err)
	}
	if len(attempts) != 1 || attempts[0].FailureReason != "second" {
		t.Fatalf("expected only the newest record, got %+v", attempts)
	}
}
