package auth

import (
	"errors"

	"github.com/goliatone/go-admin-auth/middleware/jwtware"
	"github.com/gofiber/fiber/v2"
)

// RouteAuthenticator binds the authenticator, the rotation service and the
// session transport to fiber requests.
type RouteAuthenticator struct {
	auth         *Auther
	rotation     *CredentialRotation
	transport    *SessionTransport
	cfg          Config
	listeners    []ValidationListener
	activitySink ActivitySink
	Logger       Logger
	ErrorHandler fiber.ErrorHandler
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

// RouteAuthenticatorOption configures a RouteAuthenticator
type RouteAuthenticatorOption func(*RouteAuthenticator)

// WithValidationListener adds a check that runs after a token verifies
func WithValidationListener(listener ValidationListener) RouteAuthenticatorOption {
	return func(a *RouteAuthenticator) {
		if listener != nil {
			a.listeners = append(a.listeners, listener)
		}
	}
}

// WithRouteLogger sets the logger
func WithRouteLogger(logger Logger) RouteAuthenticatorOption {
	return func(a *RouteAuthenticator) {
		if logger != nil {
			a.Logger = logger
		}
	}
}

// WithRouteActivitySink sets the sink receiving logout and access denied events
func WithRouteActivitySink(sink ActivitySink) RouteAuthenticatorOption {
	return func(a *RouteAuthenticator) {
		a.activitySink = normalizeActivitySink(sink)
	}
}

// WithGuardErrorHandler replaces the guard rejection handler
func WithGuardErrorHandler(handler fiber.ErrorHandler) RouteAuthenticatorOption {
	return func(a *RouteAuthenticator) {
		if handler != nil {
			a.ErrorHandler = handler
		}
	}
}

// NewHTTPAuthenticator creates the fiber facing authenticator
func NewHTTPAuthenticator(auther *Auther, rotation *CredentialRotation, cfg Config, opts ...RouteAuthenticatorOption) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, errors.New("http authenticator: authenticator is required")
	}
	if rotation == nil {
		return nil, errors.New("http authenticator: credential rotation is required")
	}

	a := &RouteAuthenticator{
		auth:         auther,
		rotation:     rotation,
		transport:    NewSessionTransport(cfg),
		cfg:          cfg,
		activitySink: noopActivitySink{},
		Logger:       defLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.ErrorHandler == nil {
		a.ErrorHandler = a.defaultGuardErrHandler
	}

	return a, nil
}

// Transport returns the session transport
func (a *RouteAuthenticator) Transport() *SessionTransport {
	return a.transport
}

func (a *RouteAuthenticator) contextKey() string {
	if a.cfg != nil && a.cfg.GetContextKey() != "" {
		return a.cfg.GetContextKey()
	}
	return DefaultContextKey
}

// ProtectedRoute returns the guard. Only verified requests reach the next
// handler, with the claims in locals and the principal in the user context.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	cfg := jwtware.Config{
		ErrorHandler:    a.ErrorHandler,
		ContextKey:      a.contextKey(),
		Extractors:      a.transport.Extractors(),
		AuthScheme:      a.transport.AuthScheme(),
		TokenValidator:  a.auth.TokenService(),
		ContextEnricher: PrincipalEnricher,
	}
	RegisterValidationListeners(&cfg, a.listeners...)

	return jwtware.New(cfg)
}

// Login checks the payload credentials and attaches the session cookie
func (a *RouteAuthenticator) Login(c *fiber.Ctx, payload LoginPayload) (*LoginResult, error) {
	res, err := a.auth.Login(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		return nil, err
	}

	a.transport.Attach(c, res.Token, res.ExpiresAt)
	return res, nil
}

// Logout clears the session cookie. The token itself stays valid until it
// expires.
func (a *RouteAuthenticator) Logout(c *fiber.Ctx) {
	a.transport.Clear(c)

	var adminID string
	if raw, _, ok := a.transport.Extract(c); ok {
		if p, err := a.auth.SessionFromToken(raw); err == nil {
			adminID = p.ID
		}
	}

	emitActivity(c.UserContext(), a.activitySink, a.Logger, ActivityEvent{
		EventType: ActivityEventLogout,
		AdminID:   adminID,
	})
}

// ChangePassword rotates the password of the guarded principal
func (a *RouteAuthenticator) ChangePassword(c *fiber.Ctx, currentPassword, newPassword string) error {
	principal, ok := GetPrincipal(c, a.contextKey())
	if !ok {
		return ErrNoToken
	}
	return a.rotation.ChangePassword(c.UserContext(), principal, currentPassword, newPassword)
}

// ChangeEmail rotates the email of the guarded principal and drops the
// session cookie on success.
func (a *RouteAuthenticator) ChangeEmail(c *fiber.Ctx, currentPassword, newEmail string) error {
	principal, ok := GetPrincipal(c, a.contextKey())
	if !ok {
		return ErrNoToken
	}

	if err := a.rotation.ChangeEmail(c.UserContext(), principal, currentPassword, newEmail); err != nil {
		return err
	}

	a.transport.Clear(c)
	return nil
}

func (a *RouteAuthenticator) defaultGuardErrHandler(c *fiber.Ctx, err error) error {
	reason := "invalid_token"
	richErr := ErrTokenInvalid

	switch {
	case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
		reason = "no_token"
		richErr = ErrNoToken
	case errors.Is(err, ErrTokenExpired):
		reason = "expired"
	case errors.Is(err, ErrStaleSession):
		reason = "stale_session"
	case errors.Is(err, ErrStoreUnavailable):
		a.Logger.Error("session check failed", "error", err, "path", c.Path())
		return c.Status(ErrStoreUnavailable.Code).JSON(fiber.Map{"error": ErrStoreUnavailable.Message})
	}

	a.Logger.Info("request rejected by auth guard", "reason", reason, "path", c.Path())

	emitActivity(c.UserContext(), a.activitySink, a.Logger, ActivityEvent{
		EventType: ActivityEventAccessDenied,
		Metadata: map[string]any{
			"reason": reason,
			"path":   c.Path(),
		},
	})

	return c.Status(richErr.Code).JSON(fiber.Map{"error": richErr.Message})
}

// StoreBackedSessionCheck rejects tokens whose administrator no longer
// exists or whose email claim no longer matches the stored record.
func StoreBackedSessionCheck(store CredentialStore) ValidationListener {
	return func(c *fiber.Ctx, claims jwtware.AuthClaims) error {
		admin, err := store.FindByID(c.UserContext(), claims.UserID())
		if err != nil {
			if errors.Is(err, ErrAdminNotFound) {
				return ErrStaleSession
			}
			return err
		}

		if NormalizeEmail(admin.Email) != NormalizeEmail(claims.Email()) {
			return ErrStaleSession
		}

		return nil
	}
}

// FiberErrorHandler renders any error that escapes a handler as a JSON
// error body with the mapped status.
func FiberErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger()
	}

	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
		}

		richErr := AsError(err)
		if richErr.Category == CategoryInternal {
			logger.Error("request failed", "error", err, "method", c.Method(), "path", c.Path())
		}

		return c.Status(richErr.Code).JSON(fiber.Map{"error": richErr.Message})
	}
}
