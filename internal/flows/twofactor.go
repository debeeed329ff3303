package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TwoFactorRecord is the flow-local two-factor configuration model.
type TwoFactorRecord struct {
	UserID           string
	Enabled          bool
	Method           string
	Secret           string
	PhoneNumber      string
	BackupCodeHashes [][32]byte
}

// ChallengeRecord is the flow-local one-time code challenge model.
type ChallengeRecord struct {
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
}

// SetupResult is the flow-local setup response: provisioning material plus
// the plaintext backup codes, observable only here.
type SetupResult struct {
	Method          string
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// TwoFactorMetrics carries metric IDs needed by the 2FA flows.
type TwoFactorMetrics struct {
	SetupCompleted   int
	Enabled          int
	Disabled         int
	CodeSent         int
	SendThrottled    int
	BackupCodeUsed   int
	BackupCodeFailed int
}

// TwoFactorEvents carries audit event names used by the 2FA flows.
type TwoFactorEvents struct {
	Setup            string
	Enabled          string
	Disabled         string
	CodeSent         string
	BackupCodeUsed   string
	BackupCodeFailed string
}

// TwoFactorErrors carries host-level sentinel errors used by the 2FA flows.
type TwoFactorErrors struct {
	EngineNotReady    error
	UserNotFound      error
	NotConfigured     error
	InvalidCode       error
	AttemptsExceeded  error
	MissingPhone      error
	UnsupportedMethod error
	DeliveryFailed    error
}

// TwoFactorDeps captures the dependencies shared by all 2FA flows.
type TwoFactorDeps struct {
	BackupCodeCount      int
	BackupCodeDigits     int
	CodeDigits           int
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	RetainOnDisable      bool

	Now func() time.Time

	GetAccount        func(context.Context, string) (Account, error)
	GetTwoFactor      func(context.Context, string) (*TwoFactorRecord, error)
	SaveTwoFactor     func(context.Context, *TwoFactorRecord) error
	SetTwoFactorState func(ctx context.Context, userID string, enabled bool, method string) error
	ConsumeBackupCode func(ctx context.Context, userID string, codeHash [32]byte) (bool, error)

	HashBackupCode    func(userID, code string) [32]byte
	HashChallengeCode func(code string) [32]byte
	NewNumericCode    func(digits int) (string, error)

	GenerateTOTP func(username string) (secret, uri string, err error)
	VerifyTOTP   func(secret, code string, at time.Time) bool

	SaveChallenge          func(ctx context.Context, userID, method string, codeHash [32]byte, ttl time.Duration) error
	GetChallenge           func(ctx context.Context, userID, method string) (*ChallengeRecord, error)
	DeleteChallenge        func(ctx context.Context, userID, method string) (bool, error)
	RecordChallengeFailure func(ctx context.Context, userID, method string, maxAttempts int) (bool, error)
	// IsChallengeMissing maps store not-found/expired sentinels, which
	// verify treats as a plain mismatch rather than an infrastructure
	// failure.
	IsChallengeMissing func(error) bool

	AllowSendCode func(context.Context, string) error
	SendSMS       func(ctx context.Context, phoneNumber, code string) error
	SendEmail     func(ctx context.Context, email, code string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, username, ip string, err error, meta func() map[string]string)

	Metrics TwoFactorMetrics
	Events  TwoFactorEvents
	Errors  TwoFactorErrors
}

func normalizeTwoFactorDeps(deps *TwoFactorDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.IsChallengeMissing == nil {
		deps.IsChallengeMissing = func(error) bool { return false }
	}
	if deps.BackupCodeCount <= 0 {
		deps.BackupCodeCount = 10
	}
	if deps.BackupCodeDigits <= 0 {
		deps.BackupCodeDigits = 8
	}
	if deps.CodeDigits <= 0 {
		deps.CodeDigits = 6
	}
	if deps.ChallengeTTL <= 0 {
		deps.ChallengeTTL = 5 * time.Minute
	}
	if deps.ChallengeMaxAttempts <= 0 {
		deps.ChallengeMaxAttempts = 5
	}
}

// resolveAccount loads the account, keeping the not-found sentinel intact
// and letting provider outages propagate as-is.
func resolveAccount(ctx context.Context, username string, deps TwoFactorDeps) (Account, error) {
	account, err := deps.GetAccount(ctx, username)
	if err != nil {
		if deps.Errors.UserNotFound != nil && errors.Is(err, deps.Errors.UserNotFound) {
			return Account{}, deps.Errors.UserNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// RunSetupTwoFactor creates or overwrites the account's two-factor
// configuration in the not-yet-enabled state and regenerates the full set
// of backup codes. The plaintext codes exist only in the returned result.
func RunSetupTwoFactor(ctx context.Context, username, method, phoneNumber string, deps TwoFactorDeps) (*SetupResult, error) {
	normalizeTwoFactorDeps(&deps)
	if deps.GetAccount == nil || deps.SaveTwoFactor == nil || deps.HashBackupCode == nil || deps.NewNumericCode == nil {
		return nil, deps.Errors.EngineNotReady
	}

	account, err := resolveAccount(ctx, username, deps)
	if err != nil {
		return nil, err
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	record := &TwoFactorRecord{
		UserID: account.ID,
		Method: method,
	}
	result := &SetupResult{Method: method}

	switch method {
	case "TOTP":
		if deps.GenerateTOTP == nil {
			return nil, deps.Errors.EngineNotReady
		}
		secret, uri, err := deps.GenerateTOTP(account.Username)
		if err != nil {
			return nil, err
		}
		record.Secret = secret
		result.Secret = secret
		result.ProvisioningURI = uri
	case "SMS":
		phone := strings.TrimSpace(phoneNumber)
		if phone == "" {
			return nil, deps.Errors.MissingPhone
		}
		record.PhoneNumber = phone
	case "EMAIL":
		// Delivery uses the account's stored email; no extra material.
	default:
		return nil, fmt.Errorf("%w: %s", deps.Errors.UnsupportedMethod, method)
	}

	codes := make([]string, 0, deps.BackupCodeCount)
	hashes := make([][32]byte, 0, deps.BackupCodeCount)
	for i := 0; i < deps.BackupCodeCount; i++ {
		code, err := deps.NewNumericCode(deps.BackupCodeDigits)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, deps.HashBackupCode(account.ID, code))
	}
	record.BackupCodeHashes = hashes

	if err := deps.SaveTwoFactor(ctx, record); err != nil {
		return nil, err
	}
	// Re-running setup drops back to the configured-but-not-enabled state.
	if account.TwoFactorEnabled && deps.SetTwoFactorState != nil {
		if err := deps.SetTwoFactorState(ctx, account.ID, false, ""); err != nil {
			return nil, err
		}
	}

	result.BackupCodes = codes
	deps.MetricInc(deps.Metrics.SetupCompleted)
	deps.EmitAudit(ctx, deps.Events.Setup, true, account.Username, "", nil, func() map[string]string {
		return map[string]string{
			"method": method,
		}
	})
	return result, nil
}

// RunEnableTwoFactor verifies the code against the pre-enabled
// configuration, then flips the enabled flags and mirrors the method onto
// the account record.
func RunEnableTwoFactor(ctx context.Context, username, code string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)
	if deps.GetAccount == nil || deps.GetTwoFactor == nil || deps.SetTwoFactorState == nil {
		return deps.Errors.EngineNotReady
	}

	account, err := resolveAccount(ctx, username, deps)
	if err != nil {
		return err
	}
	record, err := deps.GetTwoFactor(ctx, account.ID)
	if err != nil {
		return err
	}
	if record == nil {
		return deps.Errors.NotConfigured
	}

	ok, err := verifyAgainstRecord(ctx, account, record, code, false, deps)
	if err != nil {
		return err
	}
	if !ok {
		return deps.Errors.InvalidCode
	}

	if err := deps.SetTwoFactorState(ctx, account.ID, true, record.Method); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.Enabled)
	deps.EmitAudit(ctx, deps.Events.Enabled, true, account.Username, "", nil, func() map[string]string {
		return map[string]string{
			"method": record.Method,
		}
	})
	return nil
}

// RunDisableTwoFactor clears the enabled flags and the account method tag.
// Unless RetainOnDisable is set, the secret, phone number, and backup codes
// are wiped too, so re-enabling requires a fresh setup.
func RunDisableTwoFactor(ctx context.Context, username string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)
	if deps.GetAccount == nil || deps.GetTwoFactor == nil || deps.SetTwoFactorState == nil {
		return deps.Errors.EngineNotReady
	}

	account, err := resolveAccount(ctx, username, deps)
	if err != nil {
		return err
	}

	record, err := deps.GetTwoFactor(ctx, account.ID)
	if err != nil {
		return err
	}
	if record != nil && !deps.RetainOnDisable {
		record.Enabled = false
		record.Secret = ""
		record.PhoneNumber = ""
		record.BackupCodeHashes = nil
		if err := deps.SaveTwoFactor(ctx, record); err != nil {
			return err
		}
	}

	if err := deps.SetTwoFactorState(ctx, account.ID, false, ""); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.Disabled)
	deps.EmitAudit(ctx, deps.Events.Disabled, true, account.Username, "", nil, nil)
	return nil
}

// RunVerifyTwoFactor resolves the account and verifies a code or backup
// code against its configuration.
func RunVerifyTwoFactor(ctx context.Context, username, code string, useBackupCode bool, deps TwoFactorDeps) (bool, error) {
	normalizeTwoFactorDeps(&deps)
	if deps.GetAccount == nil {
		return false, deps.Errors.EngineNotReady
	}
	account, err := resolveAccount(ctx, username, deps)
	if err != nil {
		return false, err
	}
	return RunVerifyForAccount(ctx, account, code, useBackupCode, deps)
}

// RunVerifyForAccount verifies a code for an already-resolved account. The
// login flow calls this directly after its own account load.
func RunVerifyForAccount(ctx context.Context, account Account, code string, useBackupCode bool, deps TwoFactorDeps) (bool, error) {
	normalizeTwoFactorDeps(&deps)
	if deps.GetTwoFactor == nil {
		return false, deps.Errors.EngineNotReady
	}

	record, err := deps.GetTwoFactor(ctx, account.ID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, deps.Errors.NotConfigured
	}

	return verifyAgainstRecord(ctx, account, record, code, useBackupCode, deps)
}

func verifyAgainstRecord(ctx context.Context, account Account, record *TwoFactorRecord, code string, useBackupCode bool, deps TwoFactorDeps) (bool, error) {
	code = strings.TrimSpace(code)

	if useBackupCode {
		if deps.ConsumeBackupCode == nil || deps.HashBackupCode == nil {
			return false, deps.Errors.EngineNotReady
		}
		consumed, err := deps.ConsumeBackupCode(ctx, account.ID, deps.HashBackupCode(account.ID, code))
		if err != nil {
			return false, err
		}
		if consumed {
			deps.MetricInc(deps.Metrics.BackupCodeUsed)
			deps.EmitAudit(ctx, deps.Events.BackupCodeUsed, true, account.Username, "", nil, nil)
		} else {
			deps.MetricInc(deps.Metrics.BackupCodeFailed)
			deps.EmitAudit(ctx, deps.Events.BackupCodeFailed, false, account.Username, "", deps.Errors.InvalidCode, nil)
		}
		return consumed, nil
	}

	switch record.Method {
	case "TOTP":
		if deps.VerifyTOTP == nil {
			return false, deps.Errors.EngineNotReady
		}
		return deps.VerifyTOTP(record.Secret, code, deps.Now()), nil
	case "SMS", "EMAIL":
		// Both setup-time and login-time codes verify only against a bound,
		// previously issued challenge.
		return verifyChallenge(ctx, account.ID, record.Method, code, deps)
	default:
		return false, nil
	}
}

func verifyChallenge(ctx context.Context, userID, method, code string, deps TwoFactorDeps) (bool, error) {
	if deps.GetChallenge == nil || deps.DeleteChallenge == nil || deps.RecordChallengeFailure == nil || deps.HashChallengeCode == nil {
		return false, deps.Errors.EngineNotReady
	}

	challenge, err := deps.GetChallenge(ctx, userID, method)
	if err != nil {
		if deps.IsChallengeMissing(err) {
			return false, nil
		}
		return false, err
	}

	hash := deps.HashChallengeCode(code)
	if subtle.ConstantTimeCompare(hash[:], challenge.CodeHash[:]) == 1 {
		deleted, err := deps.DeleteChallenge(ctx, userID, method)
		if err != nil {
			return false, err
		}
		// deleted == false means a concurrent verify consumed it first.
		return deleted, nil
	}

	exceeded, err := deps.RecordChallengeFailure(ctx, userID, method, deps.ChallengeMaxAttempts)
	if err != nil {
		if deps.IsChallengeMissing(err) {
			return false, nil
		}
		return false, err
	}
	if exceeded {
		return false, deps.Errors.AttemptsExceeded
	}
	return false, nil
}

// RunSendCode generates a one-time code, binds it to a stored challenge,
// and dispatches it through the configured channel. Delivery failures
// propagate; a failed send leaves an undelivered challenge behind, which
// simply expires.
func RunSendCode(ctx context.Context, username string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)
	if deps.GetAccount == nil {
		return deps.Errors.EngineNotReady
	}
	account, err := resolveAccount(ctx, username, deps)
	if err != nil {
		return err
	}
	return RunSendCodeForAccount(ctx, account, deps)
}

// RunSendCodeForAccount issues a code for an already-resolved account.
func RunSendCodeForAccount(ctx context.Context, account Account, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)
	if deps.GetTwoFactor == nil || deps.SaveChallenge == nil || deps.NewNumericCode == nil || deps.HashChallengeCode == nil {
		return deps.Errors.EngineNotReady
	}

	record, err := deps.GetTwoFactor(ctx, account.ID)
	if err != nil {
		return err
	}
	if record == nil {
		return deps.Errors.NotConfigured
	}
	if record.Method != "SMS" && record.Method != "EMAIL" {
		return fmt.Errorf("%w: cannot send code for %s", deps.Errors.UnsupportedMethod, record.Method)
	}

	if deps.AllowSendCode != nil {
		if err := deps.AllowSendCode(ctx, account.ID); err != nil {
			deps.MetricInc(deps.Metrics.SendThrottled)
			return err
		}
	}

	code, err := deps.NewNumericCode(deps.CodeDigits)
	if err != nil {
		return err
	}
	if err := deps.SaveChallenge(ctx, account.ID, record.Method, deps.HashChallengeCode(code), deps.ChallengeTTL); err != nil {
		return err
	}

	switch record.Method {
	case "SMS":
		if deps.SendSMS == nil {
			return deps.Errors.EngineNotReady
		}
		if err := deps.SendSMS(ctx, record.PhoneNumber, code); err != nil {
			return fmt.Errorf("%w: %v", deps.Errors.DeliveryFailed, err)
		}
	case "EMAIL":
		if deps.SendEmail == nil {
			return deps.Errors.EngineNotReady
		}
		if err := deps.SendEmail(ctx, account.Email, code); err != nil {
			return fmt.Errorf("%w: %v", deps.Errors.DeliveryFailed, err)
		}
	}

	deps.MetricInc(deps.Metrics.CodeSent)
	deps.EmitAudit(ctx, deps.Events.CodeSent, true, account.Username, "", nil, func() map[string]string {
		return map[string]string{
			"method": record.Method,
		}
	})
	return nil
}
