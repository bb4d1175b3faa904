package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the structured logger used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Principal holds the verified identity extracted from a session token
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CredentialStore is the source of truth for the administrator identity.
// It is the only place where the email and password hash are mutated.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	FindByID(ctx context.Context, id string) (*Admin, error)
	// VerifyPassword compares candidate against the stored hash in constant time.
	VerifyPassword(admin *Admin, candidate string) bool
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error
	// UpdateEmail returns ErrEmailAlreadyExists when newEmail belongs to
	// another record. The check and the update are atomic.
	UpdateEmail(ctx context.Context, oldEmail, newEmail string) error
	Create(ctx context.Context, admin *Admin) (*Admin, error)
	Count(ctx context.Context) (int, error)
}

// PasswordAuthenticator hashes and compares passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetTokenExpiration() int
	GetContextKey() string
	GetCookieName() string
	GetCookieSecure() bool
	GetAuthScheme() string
	GetRoutePrefix() string
	IsDevelopmentKey() bool
}

// LoginPayload is the input of a login request
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// LoginResult is returned after a successful login
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Admin     *Admin
}

// Middleware guards privileged routes
type Middleware interface {
	ProtectedRoute() fiber.Handler
}

// HTTPAuthenticator binds authentication to fiber requests
type HTTPAuthenticator interface {
	Middleware
	Login(c *fiber.Ctx, payload LoginPayload) (*LoginResult, error)
	Logout(c *fiber.Ctx)
	ChangePassword(c *fiber.Ctx, currentPassword, newPassword string) error
	ChangeEmail(c *fiber.Ctx, currentPassword, newEmail string) error
}

func tokenExpiration(cfg Config) time.Duration {
	if cfg == nil || cfg.GetTokenExpiration() <= 0 {
		return DefaultTokenExpiration
	}
	return time.Duration(cfg.GetTokenExpiration()) * time.Hour
}
