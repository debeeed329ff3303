package authgate

import (
	"context"

	internalaudit "github.com/halcyonsec/authgate/internal/audit"
	"github.com/halcyonsec/authgate/internal/flows"
	"github.com/halcyonsec/authgate/internal/limiters"
	"github.com/halcyonsec/authgate/internal/stores"
	"github.com/halcyonsec/authgate/jwt"
	"github.com/halcyonsec/authgate/password"
)

// Engine defines a public type used by authgate APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	provider     AccountProvider
	registry     *strategyRegistry
	ledger       *stores.LedgerStore
	challenges   *stores.ChallengeStore
	sendLimiter  *limiters.SendCodeLimiter
	flows        flows.Service
	tfDeps       flows.TwoFactorDeps
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	totp         *totpManager
	jwtManager   *jwt.Manager // nil when a custom TokenIssuer is supplied
	issuer       TokenIssuer
	captcha      CaptchaVerifier
	sender       CodeSender
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ParseToken describes the parsetoken operation and its observable behavior.
//
// ParseToken may return an error when input validation, dependency calls, or security checks fail.
// ParseToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ParseToken(tokenStr string) (*jwt.Claims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	return e.jwtManager.Parse(tokenStr)
}

// jwtIssuer adapts the jwt manager to the [TokenIssuer] interface used by
// the authenticate flow.
type jwtIssuer struct {
	manager *jwt.Manager
}

func (i *jwtIssuer) Issue(_ context.Context, identity Identity, privileges []string, method string) (string, error) {
	return i.manager.Issue(
		identity.UserID,
		identity.Username,
		identity.Email,
		identity.Roles,
		privileges,
		method,
	)
}
