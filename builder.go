package authgate

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	internalpkg "github.com/halcyonsec/authgate/internal"
	internalaudit "github.com/halcyonsec/authgate/internal/audit"
	"github.com/halcyonsec/authgate/internal/flows"
	"github.com/halcyonsec/authgate/internal/limiters"
	"github.com/halcyonsec/authgate/internal/stores"
	"github.com/halcyonsec/authgate/jwt"
	"github.com/halcyonsec/authgate/password"
)

// Builder defines a public type used by authgate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	provider  AccountProvider
	issuer    TokenIssuer
	captcha   CaptchaVerifier
	sender    CodeSender
	directory DirectoryBinder
	auditSink AuditSink

	extraStrategies []Strategy

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountProvider describes the withaccountprovider operation and its observable behavior.
//
// WithAccountProvider may return an error when input validation, dependency calls, or security checks fail.
// WithAccountProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.provider = p
	return b
}

// WithTokenIssuer describes the withtokenissuer operation and its observable behavior.
//
// WithTokenIssuer may return an error when input validation, dependency calls, or security checks fail.
// WithTokenIssuer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenIssuer(i TokenIssuer) *Builder {
	b.issuer = i
	return b
}

// WithCaptchaVerifier describes the withcaptchaverifier operation and its observable behavior.
//
// WithCaptchaVerifier may return an error when input validation, dependency calls, or security checks fail.
// WithCaptchaVerifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCaptchaVerifier(v CaptchaVerifier) *Builder {
	b.captcha = v
	return b
}

// WithCodeSender describes the withcodesender operation and its observable behavior.
//
// WithCodeSender may return an error when input validation, dependency calls, or security checks fail.
// WithCodeSender does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCodeSender(s CodeSender) *Builder {
	b.sender = s
	return b
}

// WithDirectoryBinder describes the withdirectorybinder operation and its observable behavior.
//
// WithDirectoryBinder may return an error when input validation, dependency calls, or security checks fail.
// WithDirectoryBinder does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithDirectoryBinder(d DirectoryBinder) *Builder {
	b.directory = d
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithStrategy describes the withstrategy operation and its observable behavior.
//
// WithStrategy may return an error when input validation, dependency calls, or security checks fail.
// WithStrategy does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStrategy(s Strategy) *Builder {
	if s != nil {
		b.extraStrategies = append(b.extraStrategies, s)
	}
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("account provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		provider: b.provider,
		captcha:  b.captcha,
		sender:   b.sender,
	}

	engine.ledger = stores.NewLedgerStore(b.redis, stores.LedgerConfig{
		Prefix:      cfg.Ledger.RedisPrefix,
		Retention:   cfg.Ledger.Retention,
		RecentLimit: cfg.Ledger.RecentLimit,
	})
	engine.challenges = stores.NewChallengeStore(b.redis, cfg.Ledger.RedisPrefix+":2c")
	engine.sendLimiter = limiters.NewSendCodeLimiter(b.redis, limiters.SendCodeConfig{
		MaxPerWindow: cfg.TwoFactor.SendMaxPerWindow,
		Window:       cfg.TwoFactor.SendWindow,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.totp = newTOTPManager(cfg.App.Name, cfg.TwoFactor.TOTP)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	// -------- TOKEN ISSUER --------
	if b.issuer != nil {
		engine.issuer = b.issuer
	} else {
		jm, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.Token.TTL,
			SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    append([]byte(nil), cfg.Token.PrivateKey...),
			PublicKey:     append([]byte(nil), cfg.Token.PublicKey...),
			Issuer:        cfg.Token.Issuer,
		})
		if err != nil {
			return nil, err
		}
		engine.jwtManager = jm
		engine.issuer = &jwtIssuer{manager: jm}
	}

	// -------- STRATEGY REGISTRY --------
	defaultMethod := strings.ToUpper(cfg.App.DefaultMethod)
	strategies := append([]Strategy(nil), b.extraStrategies...)
	strategies = append(strategies, &passwordStrategy{
		name:     defaultMethod,
		provider: b.provider,
		hasher:   ph,
	})
	if defaultMethod != "BASIC" {
		strategies = append(strategies, &passwordStrategy{
			name:     "BASIC",
			provider: b.provider,
			hasher:   ph,
		})
	}
	strategies = append(strategies, &directoryStrategy{
		enabled:  cfg.Directory.Enabled,
		binder:   b.directory,
		provider: b.provider,
	})
	engine.registry = &strategyRegistry{strategies: strategies}

	deps := buildFlowDeps(engine)
	engine.tfDeps = deps.TwoFactor
	engine.flows = flows.New(deps)

	b.built = true

	return engine, nil
}

func accountToFlow(a AccountRecord) flows.Account {
	return flows.Account{
		ID:                  a.ID,
		Username:            a.Username,
		Email:               a.Email,
		PasswordHash:        a.PasswordHash,
		Active:              a.Active,
		Locked:              a.Locked,
		FailedLoginAttempts: a.FailedLoginAttempts,
		Roles:               append([]string(nil), a.Roles...),
		TwoFactorEnabled:    a.TwoFactorEnabled,
		TwoFactorMethod:     a.TwoFactorMethod,
	}
}

func twoFactorToFlow(r *TwoFactorRecord) *flows.TwoFactorRecord {
	if r == nil {
		return nil
	}
	hashes := make([][32]byte, 0, len(r.BackupCodes))
	for _, c := range r.BackupCodes {
		hashes = append(hashes, c.Hash)
	}
	return &flows.TwoFactorRecord{
		UserID:           r.UserID,
		Enabled:          r.Enabled,
		Method:           r.Method,
		Secret:           r.Secret,
		PhoneNumber:      r.PhoneNumber,
		BackupCodeHashes: hashes,
	}
}

func buildFlowDeps(e *Engine) flows.Deps {
	cfg := e.config

	getAccount := func(ctx context.Context, username string) (flows.Account, error) {
		account, err := e.provider.GetAccountByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return flows.Account{}, ErrUserNotFound
			}
			return flows.Account{}, errors.Join(ErrProviderUnavailable, err)
		}
		return accountToFlow(account), nil
	}

	emitAudit := e.emitAudit
	metricInc := func(id int) {
		e.metricInc(MetricID(id))
	}

	login := flows.LoginDeps{
		CaptchaEnabled:   cfg.Captcha.Enabled,
		DefaultMethod:    strings.ToUpper(cfg.App.DefaultMethod),
		BackupCodeLength: cfg.TwoFactor.BackupCodeDigits,

		SuspiciousActivity: e.isSuspiciousActivity,
		IsAccountLocked:    e.isAccountLocked,
		GetAccount:         getAccount,
		RecordAttempt:      e.recordAttempt,

		ResolveStrategy: func(method string) (flows.StrategyRef, error) {
			s, err := e.registry.resolve(method)
			if err != nil {
				return flows.StrategyRef{}, err
			}
			return flows.StrategyRef{
				Name: s.Name(),
				Authenticate: func(ctx context.Context, username, secret string) (flows.Identity, error) {
					identity, err := s.Authenticate(ctx, username, secret)
					if err != nil {
						return flows.Identity{}, err
					}
					return flows.Identity{
						UserID:   identity.UserID,
						Username: identity.Username,
						Email:    identity.Email,
						Roles:    identity.Roles,
					}, nil
				},
			}, nil
		},

		RolePrivileges: func(ctx context.Context, role string) ([]string, error) {
			record, err := e.provider.GetRole(ctx, role)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(record.Privileges))
			for _, p := range record.Privileges {
				names = append(names, p.Name)
			}
			return names, nil
		},

		VerifyTwoFactor: func(ctx context.Context, account flows.Account, code string, useBackup bool) (bool, error) {
			return flows.RunVerifyForAccount(ctx, account, code, useBackup, e.tfDeps)
		},
		SendCode: func(ctx context.Context, account flows.Account) error {
			return flows.RunSendCodeForAccount(ctx, account, e.tfDeps)
		},

		IssueToken: func(ctx context.Context, identity flows.Identity, privileges []string, method string) (string, error) {
			token, err := e.issuer.Issue(ctx, Identity{
				UserID:   identity.UserID,
				Username: identity.Username,
				Email:    identity.Email,
				Roles:    identity.Roles,
			}, privileges, method)
			if err != nil {
				return "", errors.Join(ErrTokenIssuanceFailed, err)
			}
			return token, nil
		},

		MetricInc: metricInc,
		EmitAudit: emitAudit,
		Warn:      log.Printf,

		Metrics: flows.LoginMetrics{
			LoginSuccess:      int(MetricLoginSuccess),
			LoginFailure:      int(MetricLoginFailure),
			CaptchaRejected:   int(MetricCaptchaRejected),
			SuspicionRejected: int(MetricSuspicionRejected),
			LockRejected:      int(MetricLockRejected),
			TwoFactorRequired: int(MetricTwoFactorRequired),
			TwoFactorFailure:  int(MetricTwoFactorFailure),
		},
		Events: flows.LoginEvents{
			LoginSuccess:      auditEventLoginSuccess,
			LoginFailure:      auditEventLoginFailure,
			CaptchaRejected:   auditEventCaptchaRejected,
			SuspicionRejected: auditEventSuspicionRejected,
			LockRejected:      auditEventLockRejected,
			ChallengeRequired: auditEventChallengeRequired,
			TwoFactorFailure:  auditEventTwoFactorFailure,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:            ErrEngineNotReady,
			CaptchaFailed:             ErrCaptchaFailed,
			CaptchaUnavailable:        ErrCaptchaUnavailable,
			SuspiciousActivity:        ErrSuspiciousActivity,
			AccountLocked:             ErrAccountLocked,
			UserNotFound:              ErrUserNotFound,
			InvalidTwoFactorCode:      ErrInvalidTwoFactorCode,
			TwoFactorAttemptsExceeded: ErrTwoFactorAttemptsExceeded,
		},
	}
	if e.captcha != nil {
		login.VerifyCaptcha = e.captcha.Verify
	}

	register := flows.RegisterDeps{
		DefaultRole:            cfg.App.DefaultRole,
		DefaultRoleDescription: cfg.App.DefaultRoleDescription,
		MinPasswordLength:      cfg.Password.MinLength,

		UsernameExists: func(ctx context.Context, username string) (bool, error) {
			_, err := e.provider.GetAccountByUsername(ctx, username)
			if err != nil {
				if errors.Is(err, ErrUserNotFound) {
					return false, nil
				}
				return false, err
			}
			return true, nil
		},
		EmailExists: func(ctx context.Context, email string) (bool, error) {
			_, err := e.provider.GetAccountByEmail(ctx, email)
			if err != nil {
				if errors.Is(err, ErrUserNotFound) {
					return false, nil
				}
				return false, err
			}
			return true, nil
		},
		HashPassword: e.passwordHash.Hash,
		EnsureRole: func(ctx context.Context, name, description string) error {
			_, err := e.provider.EnsureRole(ctx, RoleRecord{Name: name, Description: description})
			return err
		},
		CreateAccount: func(ctx context.Context, username, email, fullName, passwordHash string, roles []string) error {
			_, err := e.provider.CreateAccount(ctx, CreateAccountInput{
				Username:     username,
				Email:        email,
				FullName:     fullName,
				PasswordHash: passwordHash,
				Roles:        roles,
			})
			return err
		},

		MetricInc: metricInc,
		EmitAudit: emitAudit,

		Metrics: flows.RegisterMetrics{
			RegisterSuccess:   int(MetricRegisterSuccess),
			RegisterDuplicate: int(MetricRegisterDuplicate),
			RegisterFailure:   int(MetricRegisterFailure),
		},
		Events: flows.RegisterEvents{
			RegisterSuccess:   auditEventRegisterSuccess,
			RegisterDuplicate: auditEventRegisterDuplicate,
			RegisterFailure:   auditEventRegisterFailure,
		},
		Errors: flows.RegisterErrors{
			EngineNotReady:    ErrEngineNotReady,
			DuplicateUsername: ErrDuplicateUsername,
			DuplicateEmail:    ErrDuplicateEmail,
			InvalidRequest:    ErrInvalidRegistration,
		},
	}

	twoFactor := flows.TwoFactorDeps{
		BackupCodeCount:      cfg.TwoFactor.BackupCodeCount,
		BackupCodeDigits:     cfg.TwoFactor.BackupCodeDigits,
		CodeDigits:           cfg.TwoFactor.CodeDigits,
		ChallengeTTL:         cfg.TwoFactor.ChallengeTTL,
		ChallengeMaxAttempts: cfg.TwoFactor.ChallengeMaxAttempts,
		RetainOnDisable:      cfg.TwoFactor.RetainMaterialOnDisable,

		Now: time.Now,

		GetAccount: getAccount,
		GetTwoFactor: func(ctx context.Context, userID string) (*flows.TwoFactorRecord, error) {
			record, err := e.provider.GetTwoFactor(ctx, userID)
			if err != nil {
				return nil, err
			}
			return twoFactorToFlow(record), nil
		},
		SaveTwoFactor: func(ctx context.Context, record *flows.TwoFactorRecord) error {
			now := time.Now()
			out := &TwoFactorRecord{
				UserID:      record.UserID,
				Enabled:     record.Enabled,
				Method:      record.Method,
				Secret:      record.Secret,
				PhoneNumber: record.PhoneNumber,
				BackupCodes: make([]BackupCodeRecord, 0, len(record.BackupCodeHashes)),
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			for _, h := range record.BackupCodeHashes {
				out.BackupCodes = append(out.BackupCodes, BackupCodeRecord{Hash: h})
			}
			if existing, err := e.provider.GetTwoFactor(ctx, record.UserID); err == nil && existing != nil {
				out.CreatedAt = existing.CreatedAt
			}
			return e.provider.SaveTwoFactor(ctx, out)
		},
		SetTwoFactorState: e.provider.SetTwoFactorState,
		ConsumeBackupCode: e.provider.ConsumeBackupCode,

		HashBackupCode:    internalpkg.HashBackupCode,
		HashChallengeCode: internalpkg.HashChallengeCode,
		NewNumericCode:    internalpkg.NewNumericCode,

		GenerateTOTP: e.totp.Generate,
		VerifyTOTP:   e.totp.Verify,

		SaveChallenge: func(ctx context.Context, userID, method string, codeHash [32]byte, ttl time.Duration) error {
			return challengeErr(e.challenges.Save(ctx, &stores.Challenge{
				UserID:    userID,
				Method:    method,
				CodeHash:  codeHash,
				ExpiresAt: time.Now().Add(ttl).Unix(),
			}, ttl))
		},
		GetChallenge: func(ctx context.Context, userID, method string) (*flows.ChallengeRecord, error) {
			record, err := e.challenges.Get(ctx, userID, method)
			if err != nil {
				return nil, challengeErr(err)
			}
			return &flows.ChallengeRecord{
				CodeHash:  record.CodeHash,
				ExpiresAt: record.ExpiresAt,
				Attempts:  record.Attempts,
			}, nil
		},
		DeleteChallenge: func(ctx context.Context, userID, method string) (bool, error) {
			deleted, err := e.challenges.Delete(ctx, userID, method)
			return deleted, challengeErr(err)
		},
		RecordChallengeFailure: func(ctx context.Context, userID, method string, maxAttempts int) (bool, error) {
			exceeded, err := e.challenges.RecordFailure(ctx, userID, method, maxAttempts)
			return exceeded, challengeErr(err)
		},
		IsChallengeMissing: func(err error) bool {
			return errors.Is(err, stores.ErrChallengeNotFound) || errors.Is(err, stores.ErrChallengeExpired)
		},

		AllowSendCode: func(ctx context.Context, userID string) error {
			err := e.sendLimiter.Allow(ctx, userID)
			if err != nil {
				if errors.Is(err, limiters.ErrSendCodeThrottled) {
					return ErrSendCodeThrottled
				}
				return err
			}
			return nil
		},

		MetricInc: metricInc,
		EmitAudit: emitAudit,

		Metrics: flows.TwoFactorMetrics{
			SetupCompleted:   int(MetricTwoFactorSetup),
			Enabled:          int(MetricTwoFactorEnabled),
			Disabled:         int(MetricTwoFactorDisabled),
			CodeSent:         int(MetricCodeSent),
			SendThrottled:    int(MetricCodeSendThrottled),
			BackupCodeUsed:   int(MetricBackupCodeUsed),
			BackupCodeFailed: int(MetricBackupCodeFailed),
		},
		Events: flows.TwoFactorEvents{
			Setup:            auditEventTwoFactorSetup,
			Enabled:          auditEventTwoFactorEnabled,
			Disabled:         auditEventTwoFactorDisabled,
			CodeSent:         auditEventCodeSent,
			BackupCodeUsed:   auditEventBackupCodeUsed,
			BackupCodeFailed: auditEventBackupCodeFailed,
		},
		Errors: flows.TwoFactorErrors{
			EngineNotReady:    ErrEngineNotReady,
			UserNotFound:      ErrUserNotFound,
			NotConfigured:     ErrTwoFactorNotConfigured,
			InvalidCode:       ErrInvalidTwoFactorCode,
			AttemptsExceeded:  ErrTwoFactorAttemptsExceeded,
			MissingPhone:      ErrMissingPhoneNumber,
			UnsupportedMethod: ErrUnsupportedTwoFactorMethod,
			DeliveryFailed:    ErrCodeDeliveryFailed,
		},
	}
	if e.sender != nil {
		twoFactor.SendSMS = e.sender.SendSMS
		twoFactor.SendEmail = e.sender.SendEmail
	}

	return flows.Deps{
		Login:     login,
		Register:  register,
		TwoFactor: twoFactor,
	}
}

func challengeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, stores.ErrChallengeBackend) {
		return errors.Join(ErrChallengeUnavailable, err)
	}
	return err
}
