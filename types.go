package authgate

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/halcyonsec/authgate/internal/audit"
)

// Two-factor method tags stored on accounts and TwoFactorRecord rows.
const (
	// MethodTOTP is an exported constant or variable used by the authentication engine.
	MethodTOTP = "TOTP"
	// MethodSMS is an exported constant or variable used by the authentication engine.
	MethodSMS = "SMS"
	// MethodEmail is an exported constant or variable used by the authentication engine.
	MethodEmail = "EMAIL"
)

// AccountRecord is the full account record returned by [AccountProvider].
// It carries the credential hash, lock state, failure counter, role names,
// and the mirrored two-factor flags used for fast lookup on login.
type AccountRecord struct {
	ID                  string
	Username            string
	Email               string
	FullName            string
	PasswordHash        string
	Active              bool
	Locked              bool
	LockedAt            *time.Time
	FailedLoginAttempts int
	LastLogin           *time.Time
	Roles               []string
	TwoFactorEnabled    bool
	TwoFactorMethod     string
}

// RoleRecord is static reference data: a named role and its privileges.
type RoleRecord struct {
	Name        string
	Description string
	Privileges  []PrivilegeRecord
}

// PrivilegeRecord is a single named privilege with resource/action tags.
type PrivilegeRecord struct {
	Name         string
	ResourceType string
	ActionType   string
}

// BackupCodeRecord stores the salted SHA-256 hash of a single backup code.
// The plaintext is never persisted.
type BackupCodeRecord struct {
	Hash [32]byte
}

// TwoFactorRecord is the per-account two-factor configuration, one-to-one
// with the account. Secret is present only for TOTP, PhoneNumber only for
// SMS. BackupCodes is an ordered list consumed front-to-back on use.
type TwoFactorRecord struct {
	UserID      string
	Enabled     bool
	Method      string
	Secret      string
	PhoneNumber string
	BackupCodes []BackupCodeRecord
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AttemptRecord is one immutable row of the attempt ledger. Username is
// recorded as supplied and is not necessarily resolvable to an account.
type AttemptRecord struct {
	ID            string
	Username      string
	IP            string
	UserAgent     string
	Success       bool
	FailureReason string
	At            time.Time
	Suspicious    bool
	RiskScore     int
}

// CreateAccountInput is the input for [AccountProvider.CreateAccount].
type CreateAccountInput struct {
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	Roles        []string
}

// Identity is the resolved identity produced by a credential-check
// [Strategy] and enriched by the orchestrator before token issuance.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Roles    []string
}

// AccountProvider is the primary interface callers implement to integrate
// authgate with their entity store. It covers account lookup and creation,
// role bootstrap, the lockout counter, and two-factor configuration.
//
// RecordLoginFailure and ConsumeBackupCode are the two mutations shared
// across concurrent calls and MUST be applied atomically per account:
// RecordLoginFailure is a serialized increment returning the post-increment
// count, and ConsumeBackupCode is a single test-and-remove of the first
// matching hash so the same code can never be consumed twice.
type AccountProvider interface {
	// GetAccountByUsername returns [ErrUserNotFound] when no account
	// exists for the username. Other errors are treated as provider
	// outages and surface wrapped in [ErrProviderUnavailable].
	GetAccountByUsername(ctx context.Context, username string) (AccountRecord, error)
	GetAccountByEmail(ctx context.Context, email string) (AccountRecord, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (AccountRecord, error)

	// RecordLoginFailure atomically increments the consecutive-failure
	// counter and returns the new value.
	RecordLoginFailure(ctx context.Context, username string) (int, error)
	// ResetLoginFailures zeroes the counter and stamps the last successful
	// login time.
	ResetLoginFailures(ctx context.Context, username string, lastLogin time.Time) error
	// SetLocked flips the sticky lock flag; implementations stamp LockedAt
	// when locking and clear it when unlocking.
	SetLocked(ctx context.Context, username string, locked bool) error

	GetRole(ctx context.Context, name string) (RoleRecord, error)
	// EnsureRole creates the role if absent and returns the stored record.
	EnsureRole(ctx context.Context, role RoleRecord) (RoleRecord, error)

	// GetTwoFactor returns nil with no error when the account has no
	// two-factor configuration.
	GetTwoFactor(ctx context.Context, userID string) (*TwoFactorRecord, error)
	SaveTwoFactor(ctx context.Context, record *TwoFactorRecord) error
	// SetTwoFactorState mirrors the enabled flag and method tag onto both
	// the configuration row and the account record.
	SetTwoFactorState(ctx context.Context, userID string, enabled bool, method string) error
	// ConsumeBackupCode removes the first stored hash equal to codeHash and
	// reports whether one was removed. Test-and-remove must be atomic.
	ConsumeBackupCode(ctx context.Context, userID string, codeHash [32]byte) (bool, error)
}

// CaptchaVerifier validates a caller-supplied CAPTCHA token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// TokenIssuer issues an opaque credential bound to a resolved identity.
// The default implementation is the jwt/ package manager; callers may
// substitute their own through [Builder.WithTokenIssuer].
type TokenIssuer interface {
	Issue(ctx context.Context, identity Identity, privileges []string, method string) (string, error)
}

// CodeSender delivers one-time codes out of band. Failures are propagated
// to the caller, never swallowed.
type CodeSender interface {
	SendSMS(ctx context.Context, phoneNumber, code string) error
	SendEmail(ctx context.Context, email, code string) error
}

// DirectoryBinder performs a directory (LDAP) bind for the config-gated
// directory strategy.
type DirectoryBinder interface {
	Bind(ctx context.Context, username, password string) error
}

// AuthRequest is the input for [Engine.Authenticate].
type AuthRequest struct {
	Username      string
	Password      string
	Method        string // empty defaults to the primary password method
	TwoFactorCode string
	CaptchaToken  string
	SourceIP      string
	UserAgent     string
}

// AuthResult is returned by [Engine.Authenticate]. Either Token is set with
// the role/privilege unions, or TwoFactorRequired is true and the caller
// must retry with a code.
type AuthResult struct {
	Token      string
	Username   string
	Email      string
	Roles      []string
	Privileges []string
	AuthMethod string

	TwoFactorRequired bool
	TwoFactorMethod   string
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	FullName string
}

// TwoFactorSetup is returned by [Engine.SetupTwoFactor]. BackupCodes holds
// the plaintext codes; this is the only point at which they are observable.
type TwoFactorSetup struct {
	Method          string
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
