package flows

import (
	"context"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.ResolveStrategy != nil
}

func (s Service) Authenticate(ctx context.Context, input AuthInput) (*AuthOutcome, error) {
	return RunAuthenticate(ctx, input, s.deps.Login)
}

func (s Service) Register(ctx context.Context, input RegisterInput) error {
	return RunRegister(ctx, input, s.deps.Register)
}

func (s Service) SetupTwoFactor(ctx context.Context, username, method, phoneNumber string) (*SetupResult, error) {
	return RunSetupTwoFactor(ctx, username, method, phoneNumber, s.deps.TwoFactor)
}

func (s Service) EnableTwoFactor(ctx context.Context, username, code string) error {
	return RunEnableTwoFactor(ctx, username, code, s.deps.TwoFactor)
}

func (s Service) DisableTwoFactor(ctx context.Context, username string) error {
	return RunDisableTwoFactor(ctx, username, s.deps.TwoFactor)
}

func (s Service) VerifyTwoFactor(ctx context.Context, username, code string, useBackupCode bool) (bool, error) {
	return RunVerifyTwoFactor(ctx, username, code, useBackupCode, s.deps.TwoFactor)
}

func (s Service) SendTwoFactorCode(ctx context.Context, username string) error {
	return RunSendCode(ctx, username, s.deps.TwoFactor)
}
