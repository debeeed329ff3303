package authgate

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyonsec/authgate/password"
)

// Strategy defines a public type used by authgate APIs.
//
// Strategy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// A Strategy performs the credential check for one or more authentication
// method names. The engine resolves the request's method against its
// ordered strategy list and uses the first match; custom strategies added
// through [Builder.WithStrategy] are consulted before the built-ins.
type Strategy interface {
	// Name is the canonical method tag stamped on results and tokens.
	Name() string
	// Supports reports whether this strategy handles the given method
	// name. Method names are compared upper-cased.
	Supports(method string) bool
	// Authenticate checks the secret and resolves the identity. It must
	// not consult lock state or two-factor configuration; the engine
	// gates those separately.
	Authenticate(ctx context.Context, username, secret string) (Identity, error)
}

type strategyRegistry struct {
	strategies []Strategy
}

// resolve returns the first strategy supporting the method. Method has
// already been upper-cased by the caller.
func (r *strategyRegistry) resolve(method string) (Strategy, error) {
	for _, s := range r.strategies {
		if s.Supports(method) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

// passwordStrategy verifies the stored Argon2id hash. It backs both the
// primary token method and the basic method, which differ only in the
// method tag stamped on the result.
type passwordStrategy struct {
	name     string
	provider AccountProvider
	hasher   *password.Argon2
}

func (s *passwordStrategy) Name() string {
	return s.name
}

func (s *passwordStrategy) Supports(method string) bool {
	return method == s.name
}

func (s *passwordStrategy) Authenticate(ctx context.Context, username, secret string) (Identity, error) {
	account, err := s.provider.GetAccountByUsername(ctx, username)
	if err != nil {
		// Unknown usernames and wrong passwords are indistinguishable to
		// the caller.
		return Identity{}, ErrInvalidCredentials
	}
	if !account.Active {
		return Identity{}, ErrAccountInactive
	}

	ok, err := s.hasher.Verify(secret, account.PasswordHash)
	if err != nil || !ok {
		return Identity{}, ErrInvalidCredentials
	}

	return Identity{
		UserID:   account.ID,
		Username: account.Username,
		Email:    account.Email,
		Roles:    append([]string(nil), account.Roles...),
	}, nil
}

// directoryStrategy delegates the credential check to an external
// directory bind and resolves the account locally afterward. A disabled
// directory does not claim the method, so requests naming it fall through
// resolution and fail with [ErrUnsupportedMethod].
type directoryStrategy struct {
	enabled  bool
	binder   DirectoryBinder
	provider AccountProvider
}

func (s *directoryStrategy) Name() string {
	return "LDAP"
}

func (s *directoryStrategy) Supports(method string) bool {
	return s.enabled && strings.EqualFold(method, s.Name())
}

func (s *directoryStrategy) Authenticate(ctx context.Context, username, secret string) (Identity, error) {
	if !s.enabled || s.binder == nil {
		return Identity{}, ErrDirectoryDisabled
	}

	if err := s.binder.Bind(ctx, username, secret); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	account, err := s.provider.GetAccountByUsername(ctx, username)
	if err != nil {
		return Identity{}, ErrUserNotFound
	}
	if !account.Active {
		return Identity{}, ErrAccountInactive
	}

	return Identity{
		UserID:   account.ID,
		Username: account.Username,
		Email:    account.Email,
		Roles:    append([]string(nil), account.Roles...),
	}, nil
}
