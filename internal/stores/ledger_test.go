package stores

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestLedger(t *testing.T) (*LedgerStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLedgerStore(rdb, LedgerConfig{
		Prefix:      "test",
		Retention:   time.Hour,
		RecentLimit: 5,
	}), mr
}

func attempt(username, ip string, success bool, at time.Time) *Attempt {
	return &Attempt{
		ID:            uuid.NewString(),
		Username:      username,
		IP:            ip,
		UserAgent:     "test-agent",
		Success:       success,
		FailureReason: "invalid credentials",
		At:            at.Unix(),
		Suspicious:    false,
		RiskScore:     30,
	}
}

func TestLedgerAppendAndCounts(t *testing.T) {
	store, _ := newTestLedger(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Append(ctx, attempt("alice", "10.0.0.1", false, now)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, attempt("alice", "10.0.0.1", false, now)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, attempt("alice", "10.0.0.1", true, now)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, attempt("bob", "10.0.0.1", false, now)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	since := now.Add(-time.Minute)

	n, err := store.CountFailedByUser(ctx, "alice", since)
	if err != nil {
		t.Fatalf("CountFailedByUser failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 failures for alice, got %d", n)
	}

	// Successes count toward the any-outcome total only.
	n, err = store.CountByUser(ctx, "alice", since)
	if err != nil {
		t.Fatalf("CountByUser failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 attempts for alice, got %d", n)
	}

	// The IP index aggregates across usernames.
	n, err = store.CountFailedByIP(ctx, "10.0.0.1", since)
	if err != nil {
		t.Fatalf("CountFailedByIP failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 failures for the address, got %d", n)
	}
}

func TestLedgerCountWindowExcludesOldAttempts(t *testing.T) {
	store, _ := newTestLedger(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Append(ctx, attempt("alice", "10.0.0.1", false, now.Add(-2*time.Hour))); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, attempt("alice", "10.0.0.1", false, now)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	n, err := store.CountFailedByUser(ctx, "alice", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountFailedByUser failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the old attempt to fall outside the window, got %d", n)
	}
}

func TestLedgerRecentRoundTrip(t *testing.T) {
	store, _ := newTestLedger(t)
	ctx := context.Background()
	now := time.Now()

	record := &Attempt{
		ID:            uuid.NewString(),
		Username:      "alice",
		IP:            "203.0.113.9",
		UserAgent:     "cli/1.0",
		Success:       false,
		FailureReason: "Invalid 2FA code",
		At:            now.Unix(),
		Suspicious:    true,
		RiskScore:     80,
	}
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	out, err := store.Recent(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one record, got %d", len(out))
	}
	got := out[0]
	if got.ID != record.ID ||
		got.Username != record.Username ||
		got.IP != record.IP ||
		got.UserAgent != record.UserAgent ||
		got.Success != record.Success ||
		got.FailureReason != record.FailureReason ||
		got.At != record.At ||
		got.Suspicious != record.Suspicious ||
		got.RiskScore != record.RiskScore {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, *record)
	}
}

func TestLedgerRecentCapped(t *testing.T) {
	store, _ := newTestLedger(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 8; i++ {
		record := attempt("alice", "10.0.0.1", false, now)
		record.FailureReason = fmt.Sprintf("reason-%d", i)
		if err := store.Append(ctx, record); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// RecentLimit is 5; the list is trimmed from the old end.
	out, err := store.Recent(ctx, "alice", 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("expected the recent list to be capped at 5, got %d", len(out))
	}
	if out[0].FailureReason != "reason-7" {
		t.Fatalf("expected newest-first, got %q", out[0].FailureReason)
	}
	if out[4].FailureReason != "reason-3" {
		t.Fatalf("expected the oldest surviving record to be reason-3, got %q", out[4].FailureReason)
	}
}

func TestLedgerKeysExpire(t *testing.T) {
	store, mr := newTestLedger(t)
	ctx := context.Background()

	if err := store.Append(ctx, attempt("alice", "10.0.0.1", false, time.Now())); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	n, err := store.CountFailedByUser(ctx, "alice", time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountFailedByUser failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected retention to clear the index, got %d", n)
	}

	out, err := store.Recent(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected retention to clear the recent list, got %d", len(out))
	}
}
