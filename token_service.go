package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-admin-auth/middleware/jwtware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenExpiration is the session lifetime when none is configured
const DefaultTokenExpiration = 24 * time.Hour

// TokenService issues and verifies session tokens
type TokenService interface {
	Issue(principal Principal, now time.Time) (string, *SessionClaims, error)
	Verify(tokenString string, now time.Time) (*SessionClaims, error)
	// Validate verifies against the service clock, it is what the guard calls.
	Validate(tokenString string) (jwtware.AuthClaims, error)
	Expiration() time.Duration
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption configures the token service
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock overrides the clock used by Validate
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, expiration time.Duration, issuer string, logger Logger, opts ...TokenServiceOption) TokenService {
	if logger == nil {
		logger = defLogger()
	}

	if expiration <= 0 {
		expiration = DefaultTokenExpiration
	}

	ts := &TokenServiceImpl{
		signingKey: signingKey,
		expiration: expiration,
		issuer:     issuer,
		logger:     logger,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Expiration returns the configured token lifetime
func (ts *TokenServiceImpl) Expiration() time.Duration {
	return ts.expiration
}

// Issue signs a token for principal, valid from now for the configured lifetime
func (ts *TokenServiceImpl) Issue(principal Principal, now time.Time) (string, *SessionClaims, error) {
	if principal.ID == "" || principal.Email == "" {
		return "", nil, fmt.Errorf("issue token: principal id and email are required")
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
		UID:        principal.ID,
		AdminEmail: principal.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signed, claims, nil
}

// Verify checks signature and expiry at the given instant. Signature
// problems are reported as ErrTokenInvalid, a well signed token at or past
// its expiry as ErrTokenExpired.
func (ts *TokenServiceImpl) Verify(tokenString string, now time.Time) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	// exp is exclusive: the token is dead at the exact expiry second too
	if !now.Before(claims.Expires()) {
		return nil, ErrTokenExpired
	}

	if claims.UserID() == "" || claims.Email() == "" {
		ts.logger.Warn("token service rejected token without identity claims")
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Validate implements jwtware.TokenValidator
func (ts *TokenServiceImpl) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := ts.Verify(tokenString, ts.now())
	if err != nil {
		return nil, err
	}
	return claims, nil
}
