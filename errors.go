package authgate

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnsupportedMethod is an exported constant or variable used by the authentication engine.
	ErrUnsupportedMethod = errors.New("unsupported authentication method")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is an exported constant or variable used by the authentication engine.
	ErrAccountInactive = errors.New("account inactive")
	// ErrSuspiciousActivity is an exported constant or variable used by the authentication engine.
	ErrSuspiciousActivity = errors.New("suspicious activity detected")
	// ErrCaptchaFailed is an exported constant or variable used by the authentication engine.
	ErrCaptchaFailed = errors.New("captcha verification failed")
	// ErrCaptchaUnavailable is an exported constant or variable used by the authentication engine.
	ErrCaptchaUnavailable = errors.New("captcha backend unavailable")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRegistration is an exported constant or variable used by the authentication engine.
	ErrInvalidRegistration = errors.New("invalid registration request")
	// ErrDuplicateUsername is an exported constant or variable used by the authentication engine.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail is an exported constant or variable used by the authentication engine.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDirectoryDisabled is an exported constant or variable used by the authentication engine.
	ErrDirectoryDisabled = errors.New("directory authentication is not configured")
	// ErrInvalidTwoFactorCode is an exported constant or variable used by the authentication engine.
	ErrInvalidTwoFactorCode = errors.New("invalid 2fa code")
	// ErrTwoFactorNotConfigured is an exported constant or variable used by the authentication engine.
	ErrTwoFactorNotConfigured = errors.New("2fa not configured")
	// ErrTwoFactorAttemptsExceeded is an exported constant or variable used by the authentication engine.
	ErrTwoFactorAttemptsExceeded = errors.New("2fa verification attempts exceeded")
	// ErrMissingPhoneNumber is an exported constant or variable used by the authentication engine.
	ErrMissingPhoneNumber = errors.New("phone number required for sms 2fa")
	// ErrUnsupportedTwoFactorMethod is an exported constant or variable used by the authentication engine.
	ErrUnsupportedTwoFactorMethod = errors.New("unsupported 2fa method")
	// ErrSendCodeThrottled is an exported constant or variable used by the authentication engine.
	ErrSendCodeThrottled = errors.New("2fa code delivery throttled")
	// ErrCodeDeliveryFailed is an exported constant or variable used by the authentication engine.
	ErrCodeDeliveryFailed = errors.New("2fa code delivery failed")
	// ErrLedgerUnavailable is an exported constant or variable used by the authentication engine.
	ErrLedgerUnavailable = errors.New("attempt ledger backend unavailable")
	// ErrChallengeUnavailable is an exported constant or variable used by the authentication engine.
	ErrChallengeUnavailable = errors.New("2fa challenge backend unavailable")
	// ErrTokenIssuanceFailed is an exported constant or variable used by the authentication engine.
	ErrTokenIssuanceFailed = errors.New("token issuance failed")
	// ErrProviderUnavailable is an exported constant or variable used by the authentication engine.
	ErrProviderUnavailable = errors.New("account provider unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
