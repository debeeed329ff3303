package authgate

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing app name", func(c *Config) { c.App.Name = " " }},
		{"missing default role", func(c *Config) { c.App.DefaultRole = "" }},
		{"missing default method", func(c *Config) { c.App.DefaultMethod = "" }},
		{"zero risk window", func(c *Config) { c.Risk.Window = 0 }},
		{"recent window exceeds window", func(c *Config) { c.Risk.RecentWindow = 2 * c.Risk.Window }},
		{"zero failure threshold", func(c *Config) { c.Risk.MaxFailedAttempts = 0 }},
		{"zero lockout threshold", func(c *Config) { c.Lockout.Threshold = 0 }},
		{"negative lockout duration", func(c *Config) { c.Lockout.Duration = -time.Minute }},
		{"invalid totp digits", func(c *Config) { c.TwoFactor.TOTP.Digits = 7 }},
		{"zero backup codes", func(c *Config) { c.TwoFactor.BackupCodeCount = 0 }},
		{"short challenge code", func(c *Config) { c.TwoFactor.CodeDigits = 4 }},
		{"zero challenge ttl", func(c *Config) { c.TwoFactor.ChallengeTTL = 0 }},
		{"throttle without window", func(c *Config) { c.TwoFactor.SendWindow = 0 }},
		{"zero token ttl", func(c *Config) { c.Token.TTL = 0 }},
		{"unknown signing method", func(c *Config) { c.Token.SigningMethod = "rs256" }},
		{"retention below risk window", func(c *Config) { c.Ledger.Retention = time.Minute }},
		{"zero recent limit", func(c *Config) { c.Ledger.RecentLimit = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected Build to fail without redis")
	}

	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected Build to fail without an account provider")
	}

	cfg := testConfig()
	cfg.Token.PrivateKey = nil
	if _, err := New().WithConfig(cfg).WithRedis(rdb).WithAccountProvider(newMockProvider()).Build(); err == nil {
		t.Fatal("expected Build to fail without a signing key")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	builder := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithAccountProvider(newMockProvider())

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected a second Build to fail")
	}
}
