package auth

import (
	"time"

	"github.com/goliatone/go-admin-auth/middleware/jwtware"
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by the session token
type SessionClaims struct {
	jwt.RegisteredClaims
	UID        string `json:"uid,omitempty"`
	AdminEmail string `json:"email,omitempty"`
}

// Verify interface compliance
var _ jwtware.AuthClaims = (*SessionClaims)(nil)

// Subject returns the subject claim
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the admin ID
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the admin email the token was issued for
func (c *SessionClaims) Email() string {
	return c.AdminEmail
}

// Principal returns the identity embedded in the token
func (c *SessionClaims) Principal() Principal {
	return Principal{
		ID:    c.UserID(),
		Email: c.Email(),
	}
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
