package flows

import (
	"context"
	"errors"
	"testing"
)

var (
	errNotReady   = errors.New("engine not initialized")
	errLocked     = errors.New("account locked")
	errBadCreds   = errors.New("invalid credentials")
	errNoSuchUser = errors.New("user not found")
)

type loginFixture struct {
	deps     LoginDeps
	recorded []string
	warned   int
}

func newLoginFixture() *loginFixture {
	f := &loginFixture{}
	account := Account{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@example.com",
		Active:   true,
		Roles:    []string{"USER"},
	}

	f.deps = LoginDeps{
		DefaultMethod: "JWT",
		SuspiciousActivity: func(context.Context, string, string) (bool, error) {
			return false, nil
		},
		IsAccountLocked: func(context.Context, string) (bool, error) {
			return false, nil
		},
		ResolveStrategy: func(method string) (StrategyRef, error) {
			return StrategyRef{
				Name: method,
				Authenticate: func(_ context.Context, _, secret string) (Identity, error) {
					if secret != "open sesame" {
						return Identity{}, errBadCreds
					}
					return Identity{UserID: account.ID, Username: account.Username}, nil
				},
			}, nil
		},
		GetAccount: func(context.Context, string) (Account, error) {
			return account, nil
		},
		RolePrivileges: func(_ context.Context, role string) ([]string, error) {
			return []string{role + ".read"}, nil
		},
		RecordAttempt: func(_ context.Context, username, _, _ string, success bool, reason string) error {
			if success {
				f.recorded = append(f.recorded, username+":ok")
			} else {
				f.recorded = append(f.recorded, username+":"+reason)
			}
			return nil
		},
		VerifyTwoFactor: func(context.Context, Account, string, bool) (bool, error) {
			return false, nil
		},
		IssueToken: func(context.Context, Identity, []string, string) (string, error) {
			return "token-1", nil
		},
		Warn: func(string, ...any) { f.warned++ },
		Errors: LoginErrors{
			EngineNotReady: errNotReady,
			AccountLocked:  errLocked,
			UserNotFound:   errNoSuchUser,
		},
	}
	return f
}

func TestRunAuthenticateRequiresDeps(t *testing.T) {
	fixture := newLoginFixture()
	fixture.deps.IssueToken = nil

	_, err := RunAuthenticate(context.Background(), AuthInput{Username: "alice"}, fixture.deps)
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected the not-ready sentinel, got %v", err)
	}
}

func TestRunAuthenticateSuccess(t *testing.T) {
	fixture := newLoginFixture()

	outcome, err := RunAuthenticate(context.Background(), AuthInput{
		Username: "alice",
		Password: "open sesame",
	}, fixture.deps)
	if err != nil {
		t.Fatalf("RunAuthenticate failed: %v", err)
	}
	if outcome.Token != "token-1" || outcome.AuthMethod != "JWT" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(outcome.Privileges) != 1 || outcome.Privileges[0] != "USER.read" {
		t.Fatalf("unexpected privileges: %v", outcome.Privileges)
	}
	if len(fixture.recorded) != 1 || fixture.recorded[0] != "alice:ok" {
		t.Fatalf("expected one success record, got %v", fixture.recorded)
	}
}

func TestRunAuthenticateRejectStandsWhenLedgerIsDown(t *testing.T) {
	fixture := newLoginFixture()
	fixture.deps.IsAccountLocked = func(context.Context, string) (bool, error) {
		return true, nil
	}
	fixture.deps.RecordAttempt = func(context.Context, string, string, string, bool, string) error {
		return errors.New("ledger down")
	}

	_, err := RunAuthenticate(context.Background(), AuthInput{
		Username: "alice",
		Password: "open sesame",
	}, fixture.deps)
	if !errors.Is(err, errLocked) {
		t.Fatalf("expected the lock rejection to stand, got %v", err)
	}
	if fixture.warned != 1 {
		t.Fatalf("expected the dropped record to be warned about, got %d warnings", fixture.warned)
	}
}

func TestRunAuthenticateSuccessFailsWhenLedgerIsDown(t *testing.T) {
	fixture := newLoginFixture()
	ledgerDown := errors.New("ledger down")
	fixture.deps.RecordAttempt = func(context.Context, string, string, string, bool, string) error {
		return ledgerDown
	}

	// A success that cannot be recorded is not a success.
	_, err := RunAuthenticate(context.Background(), AuthInput{
		Username: "alice",
		Password: "open sesame",
	}, fixture.deps)
	if !errors.Is(err, ledgerDown) {
		t.Fatalf("expected the ledger outage to fail the call, got %v", err)
	}
}

func TestRunAuthenticateMethodDefaultsAndUppercases(t *testing.T) {
	fixture := newLoginFixture()
	var resolved string
	inner := fixture.deps.ResolveStrategy
	fixture.deps.ResolveStrategy = func(method string) (StrategyRef, error) {
		resolved = method
		return inner(method)
	}

	if _, err := RunAuthenticate(context.Background(), AuthInput{
		Username: "alice",
		Password: "open sesame",
		Method:   "  basic  ",
	}, fixture.deps); err != nil {
		t.Fatalf("RunAuthenticate failed: %v", err)
	}
	if resolved != "BASIC" {
		t.Fatalf("expected the method to be trimmed and uppercased, got %q", resolved)
	}

	if _, err := RunAuthenticate(context.Background(), AuthInput{
		Username: "alice",
		Password: "open sesame",
	}, fixture.deps); err != nil {
		t.Fatalf("RunAuthenticate failed: %v", err)
	}
	if resolved != "JWT" {
		t.Fatalf("expected the default method, got %q", resolved)
	}
}

func TestRunAuthenticateReloadFailurePropagates(t *testing.T) {
	fixture := newLoginFixture()
	backendErr := errors.New("provider timeout")
	fixture.deps.GetAccount = func(context.Context, string) (Account, error) {
		return Account{}, backendErr
	}

	_, err := RunAuthenticate(context.Background(), AuthInput{
		Username: "alice",
		Password: "open sesame",
	}, fixture.deps)
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected the backend error to propagate, got %v", err)
	}
	if errors.Is(err, errNoSuchUser) {
		t.Fatal("a provider failure must not read as an unknown user")
	}
	if len(fixture.recorded) != 0 {
		t.Fatalf("expected no attempt record, got %v", fixture.recorded)
	}
}

func TestRunAuthenticateReloadNotFoundRecorded(t *testing.T) {
	fixture := newLoginFixture()
	fixture.deps.GetAccount = func(context.Context, string) (Account, error) {
		return Account{}, errNoSuchUser
	}

	_, err := RunAuthenticate(context.Background(), AuthInput{
		Username: "alice",
		Password: "open sesame",
	}, fixture.deps)
	if !errors.Is(err, errNoSuchUser) {
		t.Fatalf("expected the not-found sentinel, got %v", err)
	}
	if len(fixture.recorded) != 1 || fixture.recorded[0] != "alice:"+errNoSuchUser.Error() {
		t.Fatalf("expected one failure record, got %v", fixture.recorded)
	}
}
