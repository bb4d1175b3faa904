package auth_test

import (
	"context"
	"sync"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/stretchr/testify/mock"
)

// MockConfig implements auth.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetIssuer() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetTokenExpiration() int {
	return m.Called().Int(0)
}

func (m *MockConfig) GetContextKey() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetCookieName() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetCookieSecure() bool {
	return m.Called().Bool(0)
}

func (m *MockConfig) GetAuthScheme() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetRoutePrefix() string {
	return m.Called().String(0)
}

func (m *MockConfig) IsDevelopmentKey() bool {
	return m.Called().Bool(0)
}

func newMockConfig() *MockConfig {
	cfg := new(MockConfig)
	cfg.On("GetSigningKey").Return(testSigningKey).Maybe()
	cfg.On("GetIssuer").Return(testIssuer).Maybe()
	cfg.On("GetTokenExpiration").Return(24).Maybe()
	cfg.On("GetContextKey").Return("admin").Maybe()
	cfg.On("GetCookieName").Return("token").Maybe()
	cfg.On("GetCookieSecure").Return(false).Maybe()
	cfg.On("GetAuthScheme").Return("Bearer").Maybe()
	cfg.On("GetRoutePrefix").Return("/api/auth").Maybe()
	cfg.On("IsDevelopmentKey").Return(false).Maybe()
	return cfg
}

// MockCredentialStore implements auth.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) FindByEmail(ctx context.Context, email string) (*auth.Admin, error) {
	args := m.Called(ctx, email)
	if admin, ok := args.Get(0).(*auth.Admin); ok {
		return admin, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCredentialStore) FindByID(ctx context.Context, id string) (*auth.Admin, error) {
	args := m.Called(ctx, id)
	if admin, ok := args.Get(0).(*auth.Admin); ok {
		return admin, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCredentialStore) VerifyPassword(admin *auth.Admin, candidate string) bool {
	return m.Called(admin, candidate).Bool(0)
}

func (m *MockCredentialStore) UpdatePasswordHash(ctx context.Context, email, passwordHash string) error {
	return m.Called(ctx, email, passwordHash).Error(0)
}

func (m *MockCredentialStore) UpdateEmail(ctx context.Context, oldEmail, newEmail string) error {
	return m.Called(ctx, oldEmail, newEmail).Error(0)
}

func (m *MockCredentialStore) Create(ctx context.Context, admin *auth.Admin) (*auth.Admin, error) {
	args := m.Called(ctx, admin)
	if out, ok := args.Get(0).(*auth.Admin); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCredentialStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockLoginPayload implements auth.LoginPayload
type MockLoginPayload struct {
	Identifier string
	Password   string
}

func (m MockLoginPayload) GetIdentifier() string {
	return m.Identifier
}

func (m MockLoginPayload) GetPassword() string {
	return m.Password
}

// recordingSink keeps every activity event it receives
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *recordingSink) Last() auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return auth.ActivityEvent{}
	}
	return r.events[len(r.events)-1]
}
