package authgate

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	App       AppConfig
	Risk      RiskConfig
	Lockout   LockoutConfig
	TwoFactor TwoFactorConfig
	Captcha   CaptchaConfig
	Directory DirectoryConfig
	Token     TokenConfig
	Password  PasswordConfig
	Ledger    LedgerConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
APP CONFIG
====================================
*/

// AppConfig defines a public type used by authgate APIs.
//
// AppConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AppConfig struct {
	// Name is used as the TOTP provisioning issuer.
	Name                   string
	DefaultRole            string
	DefaultRoleDescription string
	// DefaultMethod is the strategy resolved when a request names none.
	DefaultMethod string
}

/*
====================================
RISK CONFIG
====================================
*/

// RiskConfig defines a public type used by authgate APIs.
//
// RiskConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RiskConfig struct {
	// Window is the sliding lookback for failure counts.
	Window time.Duration
	// RecentWindow is the short lookback for rapid-attempt scoring.
	RecentWindow time.Duration
	// MaxFailedAttempts is the per-user failure count above which the
	// suspicion pre-check rejects outright.
	MaxFailedAttempts int
	// SuspiciousIPFailures is the per-IP failure count above which the
	// suspicion pre-check rejects outright.
	SuspiciousIPFailures int64
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by authgate APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	// Threshold is the consecutive-failure count at which the account locks.
	Threshold int
	// Duration time-boxes the lock. 0 keeps the lock sticky until
	// [Engine.UnlockAccount] clears it.
	Duration time.Duration
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TOTPConfig defines a public type used by authgate APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Period int
	Skew   int
	Digits int
}

// TwoFactorConfig defines a public type used by authgate APIs.
//
// TwoFactorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TwoFactorConfig struct {
	TOTP TOTPConfig

	BackupCodeCount  int
	BackupCodeDigits int

	// CodeDigits is the length of SMS/email one-time codes.
	CodeDigits           int
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int

	// SendMaxPerWindow / SendWindow throttle SendTwoFactorCode per account.
	SendMaxPerWindow int
	SendWindow       time.Duration

	// RetainMaterialOnDisable keeps the secret, phone number, and backup
	// codes after Disable, reproducing the legacy behavior. The default
	// wipes them so re-enabling requires a fresh Setup.
	RetainMaterialOnDisable bool
}

/*
====================================
CAPTCHA / DIRECTORY CONFIG
====================================
*/

// CaptchaConfig defines a public type used by authgate APIs.
//
// CaptchaConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CaptchaConfig struct {
	Enabled bool
}

// DirectoryConfig defines a public type used by authgate APIs.
//
// DirectoryConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DirectoryConfig struct {
	Enabled bool
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authgate APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authgate APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

/*
====================================
LEDGER CONFIG
====================================
*/

// LedgerConfig defines a public type used by authgate APIs.
//
// LedgerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LedgerConfig struct {
	RedisPrefix string
	// Retention bounds how long attempt keys live; it must cover the risk
	// window or window counts under-report.
	Retention time.Duration
	// RecentLimit caps the per-user recent attempt list.
	RecentLimit int64
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by authgate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authgate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		App: AppConfig{
			Name:                   "authgate",
			DefaultRole:            "USER",
			DefaultRoleDescription: "Default user role",
			DefaultMethod:          "JWT",
		},
		Risk: RiskConfig{
			Window:               60 * time.Minute,
			RecentWindow:         5 * time.Minute,
			MaxFailedAttempts:    5,
			SuspiciousIPFailures: 20,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  0, // sticky, manual unlock only
		},
		TwoFactor: TwoFactorConfig{
			TOTP: TOTPConfig{
				Period: 30,
				Skew:   1,
				Digits: 6,
			},
			BackupCodeCount:      10,
			BackupCodeDigits:     8,
			CodeDigits:           6,
			ChallengeTTL:         5 * time.Minute,
			ChallengeMaxAttempts: 5,
			SendMaxPerWindow:     3,
			SendWindow:           10 * time.Minute,
		},
		Token: TokenConfig{
			TTL:           15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "authgate",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		Ledger: LedgerConfig{
			RedisPrefix: "agl",
			Retention:   24 * time.Hour,
			RecentLimit: 50,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = append([]byte(nil), cfg.Token.PrivateKey...)
	out.Token.PublicKey = append([]byte(nil), cfg.Token.PublicKey...)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if strings.TrimSpace(c.App.Name) == "" {
		return errors.New("App.Name required")
	}
	if strings.TrimSpace(c.App.DefaultRole) == "" {
		return errors.New("App.DefaultRole required")
	}
	if strings.TrimSpace(c.App.DefaultMethod) == "" {
		return errors.New("App.DefaultMethod required")
	}
	if c.Risk.Window <= 0 || c.Risk.RecentWindow <= 0 {
		return errors.New("risk windows must be positive")
	}
	if c.Risk.RecentWindow > c.Risk.Window {
		return errors.New("Risk.RecentWindow must not exceed Risk.Window")
	}
	if c.Risk.MaxFailedAttempts <= 0 || c.Risk.SuspiciousIPFailures <= 0 {
		return errors.New("risk thresholds must be positive")
	}
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout.Threshold must be positive")
	}
	if c.Lockout.Duration < 0 {
		return errors.New("Lockout.Duration must not be negative")
	}
	if c.TwoFactor.TOTP.Period <= 0 || c.TwoFactor.TOTP.Skew < 0 {
		return errors.New("invalid TOTP configuration")
	}
	if c.TwoFactor.TOTP.Digits != 6 && c.TwoFactor.TOTP.Digits != 8 {
		return errors.New("TOTP.Digits must be 6 or 8")
	}
	if c.TwoFactor.BackupCodeCount <= 0 || c.TwoFactor.BackupCodeDigits < 6 {
		return errors.New("invalid backup code configuration")
	}
	if c.TwoFactor.CodeDigits < 6 || c.TwoFactor.CodeDigits > 10 {
		return errors.New("TwoFactor.CodeDigits must be between 6 and 10")
	}
	if c.TwoFactor.ChallengeTTL <= 0 || c.TwoFactor.ChallengeMaxAttempts <= 0 {
		return errors.New("invalid challenge configuration")
	}
	if c.TwoFactor.SendMaxPerWindow > 0 && c.TwoFactor.SendWindow <= 0 {
		return errors.New("TwoFactor.SendWindow required when throttling is enabled")
	}
	if c.Token.TTL <= 0 {
		return errors.New("Token.TTL must be positive")
	}
	switch c.Token.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("unsupported Token.SigningMethod")
	}
	if c.Ledger.Retention < c.Risk.Window {
		return errors.New("Ledger.Retention must cover Risk.Window")
	}
	if c.Ledger.RecentLimit <= 0 {
		return errors.New("Ledger.RecentLimit must be positive")
	}
	return nil
}
