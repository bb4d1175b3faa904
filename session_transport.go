package auth

import (
	"time"

	"github.com/goliatone/go-admin-auth/middleware/jwtware"
	"github.com/gofiber/fiber/v2"
)

// DefaultCookieName is the cookie carrying the session token
const DefaultCookieName = "token"

// TokenSource tells where a token was read from
type TokenSource string

const (
	TokenSourceNone   TokenSource = ""
	TokenSourceCookie TokenSource = "cookie"
	TokenSourceHeader TokenSource = "header"
)

type sourcedExtractor struct {
	source  TokenSource
	extract jwtware.JWTExtractor
}

// SessionTransport decides where the session token lives on the wire. The
// server sets it as an HTTP-only cookie, callers may also present it in an
// Authorization header. The cookie is always read first.
type SessionTransport struct {
	cookieName  string
	authScheme  string
	forceSecure bool
	now         func() time.Time
	extractors  []sourcedExtractor
}

// NewSessionTransport creates a transport from the auth configuration
func NewSessionTransport(cfg Config) *SessionTransport {
	cookieName := DefaultCookieName
	authScheme := "Bearer"
	forceSecure := false

	if cfg != nil {
		if cfg.GetCookieName() != "" {
			cookieName = cfg.GetCookieName()
		}
		if cfg.GetAuthScheme() != "" {
			authScheme = cfg.GetAuthScheme()
		}
		forceSecure = cfg.GetCookieSecure()
	}

	return &SessionTransport{
		cookieName:  cookieName,
		authScheme:  authScheme,
		forceSecure: forceSecure,
		now:         time.Now,
		extractors: []sourcedExtractor{
			{source: TokenSourceCookie, extract: jwtware.FromCookie(cookieName)},
			{source: TokenSourceHeader, extract: jwtware.FromHeader(fiber.HeaderAuthorization, authScheme)},
		},
	}
}

// CookieName returns the session cookie name
func (t *SessionTransport) CookieName() string {
	return t.cookieName
}

// AuthScheme returns the Authorization header scheme
func (t *SessionTransport) AuthScheme() string {
	return t.authScheme
}

// Extractors returns the extraction chain in the order Extract applies it,
// so the guard reads tokens exactly like the transport does.
func (t *SessionTransport) Extractors() []jwtware.JWTExtractor {
	out := make([]jwtware.JWTExtractor, 0, len(t.extractors))
	for _, e := range t.extractors {
		out = append(out, e.extract)
	}
	return out
}

// Attach sets the session cookie. Max-Age mirrors the token expiry, fasthttp
// writes no Expires attribute once Max-Age is set.
func (t *SessionTransport) Attach(c *fiber.Ctx, token string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(t.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	c.Cookie(&fiber.Cookie{
		Name:     t.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   t.secure(c),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// Extract reads the token from the cookie first, then from the
// Authorization header.
func (t *SessionTransport) Extract(c *fiber.Ctx) (string, TokenSource, bool) {
	for _, e := range t.extractors {
		raw, err := e.extract(c)
		if err == nil && raw != "" {
			return raw, e.source, true
		}
	}
	return "", TokenSourceNone, false
}

// Clear expires the session cookie immediately
func (t *SessionTransport) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     t.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  t.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   t.secure(c),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (t *SessionTransport) secure(c *fiber.Ctx) bool {
	return t.forceSecure || c.Secure()
}
