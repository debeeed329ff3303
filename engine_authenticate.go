package authgate

import (
	"context"

	"github.com/halcyonsec/authgate/internal/flows"
)

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate may return an error when input validation, dependency calls, or security checks fail.
// Authenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Authenticate(ctx context.Context, req AuthRequest) (*AuthResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	outcome, err := e.flows.Authenticate(ctx, flows.AuthInput{
		Username:      req.Username,
		Password:      req.Password,
		Method:        req.Method,
		TwoFactorCode: req.TwoFactorCode,
		CaptchaToken:  req.CaptchaToken,
		IP:            req.SourceIP,
		UserAgent:     req.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Token:             outcome.Token,
		Username:          outcome.Username,
		Email:             outcome.Email,
		Roles:             outcome.Roles,
		Privileges:        outcome.Privileges,
		AuthMethod:        outcome.AuthMethod,
		TwoFactorRequired: outcome.TwoFactorRequired,
		TwoFactorMethod:   outcome.TwoFactorMethod,
	}, nil
}

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	return e.flows.Register(ctx, flows.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
}
