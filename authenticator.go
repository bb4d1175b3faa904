package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Auther checks credentials against the store and issues session tokens
type Auther struct {
	store        CredentialStore
	tokenService TokenService
	hasher       PasswordAuthenticator
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// AutherOption configures an Auther
type AutherOption func(*Auther)

// WithAutherLogger sets the logger
func WithAutherLogger(logger Logger) AutherOption {
	return func(a *Auther) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAutherActivitySink configures an ActivitySink for emitting auth events.
func WithAutherActivitySink(sink ActivitySink) AutherOption {
	return func(a *Auther) {
		a.activitySink = normalizeActivitySink(sink)
	}
}

// WithAutherClock injects a custom clock (useful for tests).
func WithAutherClock(now func() time.Time) AutherOption {
	return func(a *Auther) {
		if now != nil {
			a.now = now
		}
	}
}

// WithAutherPasswordHasher sets the hasher used for the unknown email decoy
// comparison.
func WithAutherPasswordHasher(hasher PasswordAuthenticator) AutherOption {
	return func(a *Auther) {
		if hasher != nil {
			a.hasher = hasher
		}
	}
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(store CredentialStore, tokenService TokenService, opts ...AutherOption) *Auther {
	a := &Auther{
		store:        store,
		tokenService: tokenService,
		hasher:       NewBcryptHasher(0),
		logger:       defLogger(),
		activitySink: noopActivitySink{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// TokenService returns the TokenService instance used by this Authenticator
func (a *Auther) TokenService() TokenService {
	return a.tokenService
}

// Login verifies email and password and issues a session token. Unknown
// emails and wrong passwords fail the same way.
func (a *Auther) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	admin, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			// keep timing close to the wrong password path
			_ = a.hasher.ComparePasswordAndHash(password, decoyPasswordHash())
			a.loginFailed(ctx, "", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		a.logger.Error("login store lookup failed", "error", err)
		return nil, err
	}

	if !a.store.VerifyPassword(admin, password) {
		a.loginFailed(ctx, admin.ID.String(), "wrong_password")
		return nil, ErrInvalidCredentials
	}

	token, claims, err := a.tokenService.Issue(admin.Principal(), a.now())
	if err != nil {
		a.logger.Error("login token issue failed", "error", err)
		return nil, ErrInternal
	}

	emitActivity(ctx, a.activitySink, a.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		AdminID:   admin.ID.String(),
		Metadata: map[string]any{
			"token_id": claims.ID,
		},
	})

	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.Expires(),
		Admin:     admin,
	}, nil
}

// SessionFromToken verifies a raw token and returns its principal
func (a *Auther) SessionFromToken(raw string) (Principal, error) {
	claims, err := a.tokenService.Verify(raw, a.now())
	if err != nil {
		a.logger.Debug("session from token rejected", "error", err)
		return Principal{}, err
	}
	return claims.Principal(), nil
}

func (a *Auther) loginFailed(ctx context.Context, adminID, reason string) {
	a.logger.Info("login failed", "reason", reason)
	emitActivity(ctx, a.activitySink, a.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		AdminID:   adminID,
		Metadata: map[string]any{
			"reason": reason,
		},
	})
}
