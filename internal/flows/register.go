package flows

import (
	"context"
	"strings"
)

// RegisterInput carries one registration call's request data.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// RegisterMetrics carries metric IDs needed by the registration flow.
type RegisterMetrics struct {
	RegisterSuccess   int
	RegisterDuplicate int
	RegisterFailure   int
}

// RegisterEvents carries audit event names used by the registration flow.
type RegisterEvents struct {
	RegisterSuccess   string
	RegisterDuplicate string
	RegisterFailure   string
}

// RegisterErrors carries host-level sentinel errors used by the registration flow.
type RegisterErrors struct {
	EngineNotReady    error
	DuplicateUsername error
	DuplicateEmail    error
	InvalidRequest    error
}

// RegisterDeps captures registration-flow dependencies.
type RegisterDeps struct {
	DefaultRole            string
	DefaultRoleDescription string
	MinPasswordLength      int

	UsernameExists func(context.Context, string) (bool, error)
	EmailExists    func(context.Context, string) (bool, error)
	HashPassword   func(string) (string, error)
	EnsureRole     func(ctx context.Context, name, description string) error
	CreateAccount  func(ctx context.Context, username, email, fullName, passwordHash string, roles []string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, username, ip string, err error, meta func() map[string]string)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister creates a new active, unlocked account with the default role
// and a hashed credential. Username and email uniqueness are checked first;
// the provider's CreateAccount re-checks under its own write lock so a
// racing duplicate still fails.
func RunRegister(ctx context.Context, input RegisterInput, deps RegisterDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.UsernameExists == nil ||
		deps.EmailExists == nil ||
		deps.HashPassword == nil ||
		deps.EnsureRole == nil ||
		deps.CreateAccount == nil {
		return deps.Errors.EngineNotReady
	}

	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	if username == "" || email == "" || len(input.Password) < deps.MinPasswordLength {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		return deps.Errors.InvalidRequest
	}

	if exists, err := deps.UsernameExists(ctx, username); err != nil {
		return err
	} else if exists {
		deps.MetricInc(deps.Metrics.RegisterDuplicate)
		deps.EmitAudit(ctx, deps.Events.RegisterDuplicate, false, username, "", deps.Errors.DuplicateUsername, nil)
		return deps.Errors.DuplicateUsername
	}

	if exists, err := deps.EmailExists(ctx, email); err != nil {
		return err
	} else if exists {
		deps.MetricInc(deps.Metrics.RegisterDuplicate)
		deps.EmitAudit(ctx, deps.Events.RegisterDuplicate, false, username, "", deps.Errors.DuplicateEmail, nil)
		return deps.Errors.DuplicateEmail
	}

	hash, err := deps.HashPassword(input.Password)
	if err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		return err
	}

	if err := deps.EnsureRole(ctx, deps.DefaultRole, deps.DefaultRoleDescription); err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		return err
	}

	if err := deps.CreateAccount(ctx, username, email, strings.TrimSpace(input.FullName), hash, []string{deps.DefaultRole}); err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, username, "", err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, username, "", nil, nil)
	return nil
}
