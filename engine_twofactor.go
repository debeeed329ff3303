package authgate

import (
	"context"
)

// SetupTwoFactor describes the setuptwofactor operation and its observable behavior.
//
// SetupTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// SetupTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SetupTwoFactor(ctx context.Context, username, method, phoneNumber string) (*TwoFactorSetup, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	result, err := e.flows.SetupTwoFactor(ctx, username, method, phoneNumber)
	if err != nil {
		return nil, err
	}

	return &TwoFactorSetup{
		Method:          result.Method,
		Secret:          result.Secret,
		ProvisioningURI: result.ProvisioningURI,
		BackupCodes:     result.BackupCodes,
	}, nil
}

// EnableTwoFactor describes the enabletwofactor operation and its observable behavior.
//
// EnableTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// EnableTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EnableTwoFactor(ctx context.Context, username, code string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.EnableTwoFactor(ctx, username, code)
}

// DisableTwoFactor describes the disabletwofactor operation and its observable behavior.
//
// DisableTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// DisableTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DisableTwoFactor(ctx context.Context, username string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.DisableTwoFactor(ctx, username)
}

// VerifyTwoFactor describes the verifytwofactor operation and its observable behavior.
//
// VerifyTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// VerifyTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyTwoFactor(ctx context.Context, username, code string, useBackupCode bool) (bool, error) {
	if e == nil || !e.flows.Initialized() {
		return false, ErrEngineNotReady
	}
	return e.flows.VerifyTwoFactor(ctx, username, code, useBackupCode)
}

// SendTwoFactorCode describes the sendtwofactorcode operation and its observable behavior.
//
// SendTwoFactorCode may return an error when input validation, dependency calls, or security checks fail.
// SendTwoFactorCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SendTwoFactorCode(ctx context.Context, username string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.SendTwoFactorCode(ctx, username)
}
