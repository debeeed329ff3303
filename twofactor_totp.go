package authgate

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpManager wraps TOTP secret provisioning and code validation with the
// configured period, digits, and step skew.
type totpManager struct {
	issuer string
	config TOTPConfig
}

func newTOTPManager(issuer string, cfg TOTPConfig) *totpManager {
	return &totpManager{
		issuer: issuer,
		config: cfg,
	}
}

// Generate provisions a new random secret and the otpauth:// URI clients
// scan into their authenticator app.
func (m *totpManager) Generate(accountName string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
		Period:      uint(m.config.Period),
		Digits:      otp.Digits(m.config.Digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Verify checks a code against the secret at the given instant, accepting
// the configured number of adjacent time steps.
func (m *totpManager) Verify(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      uint(m.config.Skew),
		Digits:    otp.Digits(m.config.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
