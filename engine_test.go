package authgate

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// mockAccountProvider is an in-memory AccountProvider used across engine
// tests. All mutations are serialized by a single mutex, which satisfies
// the atomicity contract for RecordLoginFailure and ConsumeBackupCode.
type mockAccountProvider struct {
	mu        sync.Mutex
	accounts  map[string]*AccountRecord // by username
	byEmail   map[string]string
	byID      map[string]string
	roles     map[string]RoleRecord
	twoFactor map[string]*TwoFactorRecord // by user ID
}

func newMockProvider() *mockAccountProvider {
	return &mockAccountProvider{
		accounts:  map[string]*AccountRecord{},
		byEmail:   map[string]string{},
		byID:      map[string]string{},
		roles:     map[string]RoleRecord{},
		twoFactor: map[string]*TwoFactorRecord{},
	}
}

func (m *mockAccountProvider) GetAccountByUsername(_ context.Context, username string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[username]
	if !ok {
		return AccountRecord{}, ErrUserNotFound
	}
	return *account, nil
}

func (m *mockAccountProvider) GetAccountByEmail(_ context.Context, email string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	username, ok := m.byEmail[email]
	if !ok {
		return AccountRecord{}, ErrUserNotFound
	}
	return *m.accounts[username], nil
}

func (m *mockAccountProvider) CreateAccount(_ context.Context, input CreateAccountInput) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[input.Username]; exists {
		return AccountRecord{}, ErrDuplicateUsername
	}
	if _, exists := m.byEmail[input.Email]; exists {
		return AccountRecord{}, ErrDuplicateEmail
	}
	account := &AccountRecord{
		ID:           uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: input.PasswordHash,
		Active:       true,
		Roles:        append([]string(nil), input.Roles...),
	}
	m.accounts[input.Username] = account
	m.byEmail[input.Email] = input.Username
	m.byID[account.ID] = input.Username
	return *account, nil
}

func (m *mockAccountProvider) RecordLoginFailure(_ context.Context, username string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[username]
	if !ok {
		return 0, ErrUserNotFound
	}
	account.FailedLoginAttempts++
	return account.FailedLoginAttempts, nil
}

func (m *mockAccountProvider) ResetLoginFailures(_ context.Context, username string, lastLogin time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[username]
	if !ok {
		return ErrUserNotFound
	}
	account.FailedLoginAttempts = 0
	account.LastLogin = &lastLogin
	return nil
}

func (m *mockAccountProvider) SetLocked(_ context.Context, username string, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[username]
	if !ok {
		return ErrUserNotFound
	}
	account.Locked = locked
	if locked {
		now := time.Now()
		account.LockedAt = &now
	} else {
		account.LockedAt = nil
		account.FailedLoginAttempts = 0
	}
	return nil
}

func (m *mockAccountProvider) GetRole(_ context.Context, name string) (RoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[name]
	if !ok {
		return RoleRecord{}, ErrUserNotFound
	}
	return role, nil
}

func (m *mockAccountProvider) EnsureRole(_ context.Context, role RoleRecord) (RoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.roles[role.Name]; ok {
		return existing, nil
	}
	m.roles[role.Name] = role
	return role, nil
}

func (m *mockAccountProvider) GetTwoFactor(_ context.Context, userID string) (*TwoFactorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.twoFactor[userID]
	if !ok {
		return nil, nil
	}
	clone := *record
	clone.BackupCodes = append([]BackupCodeRecord(nil), record.BackupCodes...)
	return &clone, nil
}

func (m *mockAccountProvider) SaveTwoFactor(_ context.Context, record *TwoFactorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	clone.BackupCodes = append([]BackupCodeRecord(nil), record.BackupCodes...)
	m.twoFactor[record.UserID] = &clone
	return nil
}

func (m *mockAccountProvider) SetTwoFactorState(_ context.Context, userID string, enabled bool, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.twoFactor[userID]; ok {
		record.Enabled = enabled
	}
	username, ok := m.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	account := m.accounts[username]
	account.TwoFactorEnabled = enabled
	account.TwoFactorMethod = method
	return nil
}

func (m *mockAccountProvider) ConsumeBackupCode(_ context.Context, userID string, codeHash [32]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.twoFactor[userID]
	if !ok {
		return false, nil
	}
	for i := range record.BackupCodes {
		if subtle.ConstantTimeCompare(record.BackupCodes[i].Hash[:], codeHash[:]) == 1 {
			record.BackupCodes = append(record.BackupCodes[:i], record.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// seedAccount creates an active account with a hashed password and the
// default USER role wired with one privilege.
func (m *mockAccountProvider) seedAccount(t *testing.T, e *Engine, username, email, plaintext string) *AccountRecord {
	t.Helper()

	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	account := &AccountRecord{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Roles:        []string{"USER"},
	}
	m.accounts[username] = account
	m.byEmail[email] = username
	m.byID[account.ID] = username
	m.roles["USER"] = RoleRecord{
		Name: "USER",
		Privileges: []PrivilegeRecord{
			{Name: "profile.read", ResourceType: "profile", ActionType: "read"},
		},
	}
	return account
}

type mockCaptcha struct {
	ok  bool
	err error
}

func (m *mockCaptcha) Verify(context.Context, string) (bool, error) {
	return m.ok, m.err
}

type mockSender struct {
	mu         sync.Mutex
	smsCodes   []string
	emailCodes []string
	failSMS    bool
}

func (m *mockSender) SendSMS(_ context.Context, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSMS {
		return errSendFailed
	}
	m.smsCodes = append(m.smsCodes, code)
	return nil
}

func (m *mockSender) SendEmail(_ context.Context, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailCodes = append(m.emailCodes, code)
	return nil
}

func (m *mockSender) lastSMS(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.smsCodes) == 0 {
		t.Fatal("no SMS code was sent")
	}
	return m.smsCodes[len(m.smsCodes)-1]
}

var errSendFailed = errors.New("sms gateway down")

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.PrivateKey = []byte("test-secret-key")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestEngine(t *testing.T, cfg Config, provider AccountProvider, opts ...func(*Builder)) (*Engine, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(provider)
	for _, opt := range opts {
		opt(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, mr, func() {
		engine.Close()
		mr.Close()
	}
}
