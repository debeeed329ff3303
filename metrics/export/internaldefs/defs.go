package internaldefs

import (
	authgate "github.com/halcyonsec/authgate"
)

// CounterDef defines a public type used by authgate APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful login attempts."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed login attempts."},
	{ID: authgate.MetricCaptchaRejected, Name: "authgate_captcha_rejected_total", Help: "Logins rejected by the captcha gate."},
	{ID: authgate.MetricSuspicionRejected, Name: "authgate_suspicion_rejected_total", Help: "Logins rejected by the suspicion gate."},
	{ID: authgate.MetricLockRejected, Name: "authgate_lock_rejected_total", Help: "Logins rejected because the account is locked."},
	{ID: authgate.MetricAccountLockTriggered, Name: "authgate_account_lock_triggered_total", Help: "Accounts locked by the failure threshold."},
	{ID: authgate.MetricAccountUnlocked, Name: "authgate_account_unlocked_total", Help: "Manual account unlock operations."},
	{ID: authgate.MetricTwoFactorRequired, Name: "authgate_two_factor_required_total", Help: "Logins requiring a two-factor step-up."},
	{ID: authgate.MetricTwoFactorFailure, Name: "authgate_two_factor_failure_total", Help: "Failed two-factor verifications."},
	{ID: authgate.MetricTwoFactorSetup, Name: "authgate_two_factor_setup_total", Help: "Two-factor setup operations."},
	{ID: authgate.MetricTwoFactorEnabled, Name: "authgate_two_factor_enabled_total", Help: "Two-factor enable operations."},
	{ID: authgate.MetricTwoFactorDisabled, Name: "authgate_two_factor_disabled_total", Help: "Two-factor disable operations."},
	{ID: authgate.MetricBackupCodeUsed, Name: "authgate_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: authgate.MetricBackupCodeFailed, Name: "authgate_backup_code_failed_total", Help: "Failed backup-code authentications."},
	{ID: authgate.MetricCodeSent, Name: "authgate_code_sent_total", Help: "Dispatched one-time codes."},
	{ID: authgate.MetricCodeSendThrottled, Name: "authgate_code_send_throttled_total", Help: "One-time code sends rejected by the per-account limiter."},
	{ID: authgate.MetricRegisterSuccess, Name: "authgate_register_success_total", Help: "Successful account registrations."},
	{ID: authgate.MetricRegisterDuplicate, Name: "authgate_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authgate.MetricRegisterFailure, Name: "authgate_register_failure_total", Help: "Failed account registrations."},
}
