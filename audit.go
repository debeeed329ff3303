package authgate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventCaptchaRejected   = "captcha_rejected"
	auditEventSuspicionRejected = "suspicious_activity_rejected"
	auditEventLockRejected      = "account_lock_rejected"
	auditEventAccountLocked     = "account_locked"
	auditEventAccountUnlocked   = "account_unlocked"
	auditEventChallengeRequired = "twofactor_challenge_required"
	auditEventTwoFactorFailure  = "twofactor_failure"
	auditEventTwoFactorSetup    = "twofactor_setup"
	auditEventTwoFactorEnabled  = "twofactor_enabled"
	auditEventTwoFactorDisabled = "twofactor_disabled"
	auditEventBackupCodeUsed    = "backup_code_used"
	auditEventBackupCodeFailed  = "backup_code_failed"
	auditEventCodeSent          = "twofactor_code_sent"
	auditEventRegisterSuccess   = "registration_success"
	auditEventRegisterDuplicate = "registration_duplicate"
	auditEventRegisterFailure   = "registration_failure"
)

// AuditErrorCode defines a public type used by authgate APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnsupportedMethod  AuditErrorCode = "unsupported_method"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrSuspicious         AuditErrorCode = "suspicious_activity"
	auditErrCaptcha            AuditErrorCode = "captcha_rejected"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrTwoFactorInvalid   AuditErrorCode = "twofactor_invalid"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrThrottled          AuditErrorCode = "throttled"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	ip string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil || eventType == "" {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Username:  username,
		IP:        ip,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUnsupportedMethod),
		errors.Is(err, ErrUnsupportedTwoFactorMethod),
		errors.Is(err, ErrDirectoryDisabled):
		return auditErrUnsupportedMethod
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrSuspiciousActivity):
		return auditErrSuspicious
	case errors.Is(err, ErrCaptchaFailed),
		errors.Is(err, ErrCaptchaUnavailable):
		return auditErrCaptcha
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidRegistration):
		return auditErrInvalidRequest
	case errors.Is(err, ErrInvalidTwoFactorCode),
		errors.Is(err, ErrTwoFactorNotConfigured),
		errors.Is(err, ErrMissingPhoneNumber):
		return auditErrTwoFactorInvalid
	case errors.Is(err, ErrTwoFactorAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrSendCodeThrottled):
		return auditErrThrottled
	case errors.Is(err, ErrCodeDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrLedgerUnavailable),
		errors.Is(err, ErrChallengeUnavailable),
		errors.Is(err, ErrProviderUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
