package flows

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Ledger failure reasons with fixed wording; dashboards and tests key on
// these strings.
const (
	ReasonSuspiciousActivity = "Suspicious activity detected"
	ReasonAccountLocked      = "Account locked"
	ReasonInvalidTwoFactor   = "Invalid 2FA code"
)

// Account is the flow-local account model used by login and 2FA flows.
type Account struct {
	ID                  string
	Username            string
	Email               string
	PasswordHash        string
	Active              bool
	Locked              bool
	FailedLoginAttempts int
	Roles               []string
	TwoFactorEnabled    bool
	TwoFactorMethod     string
}

// Identity is the flow-local resolved identity passed to token issuance.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Roles    []string
}

// AuthInput carries one authentication call's request data.
type AuthInput struct {
	Username      string
	Password      string
	Method        string
	TwoFactorCode string
	CaptchaToken  string
	IP            string
	UserAgent     string
}

// AuthOutcome is the flow-local authentication response shape. Either Token
// is populated, or TwoFactorRequired is set and the caller must retry with
// a code.
type AuthOutcome struct {
	Token      string
	Username   string
	Email      string
	Roles      []string
	Privileges []string
	AuthMethod string

	TwoFactorRequired bool
	TwoFactorMethod   string
}

// StrategyRef is a resolved credential-check strategy: its canonical name
// and authenticate function.
type StrategyRef struct {
	Name         string
	Authenticate func(ctx context.Context, username, secret string) (Identity, error)
}

// LoginMetrics carries metric IDs needed by the authenticate flow.
type LoginMetrics struct {
	LoginSuccess      int
	LoginFailure      int
	CaptchaRejected   int
	SuspicionRejected int
	LockRejected      int
	TwoFactorRequired int
	TwoFactorFailure  int
}

// LoginEvents carries audit event names used by the authenticate flow.
type LoginEvents struct {
	LoginSuccess      string
	LoginFailure      string
	CaptchaRejected   string
	SuspicionRejected string
	LockRejected      string
	ChallengeRequired string
	TwoFactorFailure  string
}

// LoginErrors carries host-level sentinel errors used by the authenticate flow.
type LoginErrors struct {
	EngineNotReady            error
	CaptchaFailed             error
	CaptchaUnavailable        error
	SuspiciousActivity        error
	AccountLocked             error
	UserNotFound              error
	InvalidTwoFactorCode      error
	TwoFactorAttemptsExceeded error
}

// LoginDeps captures authenticate-flow dependencies.
type LoginDeps struct {
	CaptchaEnabled   bool
	DefaultMethod    string
	BackupCodeLength int

	VerifyCaptcha      func(context.Context, string) (bool, error)
	SuspiciousActivity func(context.Context, string, string) (bool, error)
	IsAccountLocked    func(context.Context, string) (bool, error)
	ResolveStrategy    func(string) (StrategyRef, error)
	GetAccount         func(context.Context, string) (Account, error)
	RolePrivileges     func(context.Context, string) ([]string, error)

	// RecordAttempt is the risk engine's full attempt bookkeeping: score
	// computation, ledger append, and counter increment/reset.
	RecordAttempt func(ctx context.Context, username, ip, userAgent string, success bool, failureReason string) error

	VerifyTwoFactor func(ctx context.Context, account Account, code string, useBackup bool) (bool, error)
	SendCode        func(ctx context.Context, account Account) error
	IssueToken      func(ctx context.Context, identity Identity, privileges []string, method string) (string, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, username, ip string, err error, meta func() map[string]string)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.BackupCodeLength <= 0 {
		deps.BackupCodeLength = 8
	}
}

// RunAuthenticate executes the full authentication state machine:
// CaptchaGate, SuspicionGate, LockGate, CredentialCheck, optional
// TwoFactorChallenge, TokenIssuance, and ledger bookkeeping.
func RunAuthenticate(ctx context.Context, input AuthInput, deps LoginDeps) (*AuthOutcome, error) {
	normalizeLoginDeps(&deps)

	if deps.SuspiciousActivity == nil ||
		deps.IsAccountLocked == nil ||
		deps.ResolveStrategy == nil ||
		deps.GetAccount == nil ||
		deps.RolePrivileges == nil ||
		deps.RecordAttempt == nil ||
		deps.VerifyTwoFactor == nil ||
		deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	method := strings.ToUpper(strings.TrimSpace(input.Method))
	if method == "" {
		method = deps.DefaultMethod
	}

	// CaptchaGate precedes identity resolution and stays outside fraud
	// bookkeeping: no attempt record on rejection.
	if deps.CaptchaEnabled && deps.VerifyCaptcha != nil {
		ok, err := deps.VerifyCaptcha(ctx, input.CaptchaToken)
		if err != nil {
			deps.MetricInc(deps.Metrics.CaptchaRejected)
			deps.EmitAudit(ctx, deps.Events.CaptchaRejected, false, input.Username, input.IP, deps.Errors.CaptchaUnavailable, nil)
			return nil, deps.Errors.CaptchaUnavailable
		}
		if !ok {
			deps.MetricInc(deps.Metrics.CaptchaRejected)
			deps.EmitAudit(ctx, deps.Events.CaptchaRejected, false, input.Username, input.IP, deps.Errors.CaptchaFailed, nil)
			return nil, deps.Errors.CaptchaFailed
		}
	}

	// SuspicionGate
	suspicious, err := deps.SuspiciousActivity(ctx, input.Username, input.IP)
	if err != nil {
		return nil, err
	}
	if suspicious {
		recordFailedAttempt(ctx, input, ReasonSuspiciousActivity, deps)
		deps.MetricInc(deps.Metrics.SuspicionRejected)
		deps.EmitAudit(ctx, deps.Events.SuspicionRejected, false, input.Username, input.IP, deps.Errors.SuspiciousActivity, nil)
		return nil, deps.Errors.SuspiciousActivity
	}

	// LockGate
	locked, err := deps.IsAccountLocked(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if locked {
		recordFailedAttempt(ctx, input, ReasonAccountLocked, deps)
		deps.MetricInc(deps.Metrics.LockRejected)
		deps.EmitAudit(ctx, deps.Events.LockRejected, false, input.Username, input.IP, deps.Errors.AccountLocked, nil)
		return nil, deps.Errors.AccountLocked
	}

	// CredentialCheck
	ref, err := deps.ResolveStrategy(method)
	if err != nil {
		recordFailedAttempt(ctx, input, err.Error(), deps)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, input.Username, input.IP, err, func() map[string]string {
			return map[string]string{
				"method": method,
			}
		})
		return nil, err
	}

	if _, err := ref.Authenticate(ctx, input.Username, input.Password); err != nil {
		recordFailedAttempt(ctx, input, err.Error(), deps)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, input.Username, input.IP, err, func() map[string]string {
			return map[string]string{
				"method": ref.Name,
			}
		})
		return nil, err
	}

	account, err := deps.GetAccount(ctx, input.Username)
	if err != nil {
		if deps.Errors.UserNotFound == nil || !errors.Is(err, deps.Errors.UserNotFound) {
			return nil, err
		}
		recordFailedAttempt(ctx, input, deps.Errors.UserNotFound.Error(), deps)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, input.Username, input.IP, deps.Errors.UserNotFound, nil)
		return nil, deps.Errors.UserNotFound
	}

	// TwoFactorChallenge
	if account.TwoFactorEnabled {
		code := strings.TrimSpace(input.TwoFactorCode)
		if code == "" {
			// Deliberate asymmetry: no final outcome has occurred yet, so
			// this branch writes no attempt record and issues no token.
			if deps.SendCode != nil && (account.TwoFactorMethod == "SMS" || account.TwoFactorMethod == "EMAIL") {
				if err := deps.SendCode(ctx, account); err != nil {
					return nil, err
				}
			}
			deps.MetricInc(deps.Metrics.TwoFactorRequired)
			deps.EmitAudit(ctx, deps.Events.ChallengeRequired, true, account.Username, input.IP, nil, func() map[string]string {
				return map[string]string{
					"method": account.TwoFactorMethod,
				}
			})
			return &AuthOutcome{
				TwoFactorRequired: true,
				Username:          account.Username,
				TwoFactorMethod:   account.TwoFactorMethod,
			}, nil
		}

		useBackup := len(code) == deps.BackupCodeLength
		ok, verr := deps.VerifyTwoFactor(ctx, account, code, useBackup)
		if verr != nil {
			if errors.Is(verr, deps.Errors.TwoFactorAttemptsExceeded) {
				recordFailedAttempt(ctx, input, ReasonInvalidTwoFactor, deps)
				deps.MetricInc(deps.Metrics.TwoFactorFailure)
				deps.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, account.Username, input.IP, verr, nil)
				return nil, verr
			}
			return nil, verr
		}
		if !ok {
			recordFailedAttempt(ctx, input, ReasonInvalidTwoFactor, deps)
			deps.MetricInc(deps.Metrics.TwoFactorFailure)
			deps.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, account.Username, input.IP, deps.Errors.InvalidTwoFactorCode, nil)
			return nil, deps.Errors.InvalidTwoFactorCode
		}
	}

	roles := append([]string(nil), account.Roles...)
	privileges, err := collectPrivileges(ctx, roles, deps)
	if err != nil {
		return nil, err
	}

	// TokenIssuance
	identity := Identity{
		UserID:   account.ID,
		Username: account.Username,
		Email:    account.Email,
		Roles:    roles,
	}
	token, err := deps.IssueToken(ctx, identity, privileges, ref.Name)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.Username, input.IP, err, func() map[string]string {
			return map[string]string{
				"reason": "token_issuance",
			}
		})
		return nil, err
	}

	// Success bookkeeping: one ledger record, counter reset, last-login
	// stamp. A ledger outage here is an infrastructure failure for the
	// whole call.
	if err := deps.RecordAttempt(ctx, input.Username, input.IP, input.UserAgent, true, ""); err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.Username, input.IP, err, func() map[string]string {
			return map[string]string{
				"reason": "attempt_record",
			}
		})
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, account.Username, input.IP, nil, func() map[string]string {
		return map[string]string{
			"method": ref.Name,
		}
	})

	return &AuthOutcome{
		Token:      token,
		Username:   account.Username,
		Email:      account.Email,
		Roles:      roles,
		Privileges: privileges,
		AuthMethod: ref.Name,
	}, nil
}

// recordFailedAttempt appends a failed ledger record on a reject path. The
// reject itself stands even when the ledger is unreachable; the outage is
// only warned about.
func recordFailedAttempt(ctx context.Context, input AuthInput, reason string, deps LoginDeps) {
	if err := deps.RecordAttempt(ctx, input.Username, input.IP, input.UserAgent, false, reason); err != nil {
		deps.Warn("authgate: failed attempt record dropped: %v", err)
	}
}

func collectPrivileges(ctx context.Context, roles []string, deps LoginDeps) ([]string, error) {
	seen := make(map[string]struct{})
	for _, role := range roles {
		privs, err := deps.RolePrivileges(ctx, role)
		if err != nil {
			return nil, err
		}
		for _, p := range privs {
			seen[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
