package auth_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issueTime = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

func testPrincipal() auth.Principal {
	return auth.Principal{ID: uuid.NewString(), Email: seedEmail}
}

func TestNewTokenService_DefaultExpiration(t *testing.T) {
	ts := auth.NewTokenService([]byte(testSigningKey), 0, testIssuer, nil)
	assert.Equal(t, auth.DefaultTokenExpiration, ts.Expiration())
}

func TestTokenService_IssueVerifyRoundTrip(t *testing.T) {
	ts := newTestTokenService()
	principal := testPrincipal()

	token, issued, err := ts.Issue(principal, issueTime)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Equal(t, issueTime, issued.IssuedAt())
	assert.Equal(t, issueTime.Add(24*time.Hour), issued.Expires())
	assert.NotEmpty(t, issued.ID)

	claims, err := ts.Verify(token, issueTime)
	require.NoError(t, err)
	assert.Equal(t, principal, claims.Principal())
	assert.Equal(t, principal.ID, claims.Subject())
	assert.Equal(t, testIssuer, claims.Issuer)
}

func TestTokenService_IssueRequiresIdentity(t *testing.T) {
	ts := newTestTokenService()

	_, _, err := ts.Issue(auth.Principal{Email: seedEmail}, issueTime)
	assert.Error(t, err)

	_, _, err = ts.Issue(auth.Principal{ID: uuid.NewString()}, issueTime)
	assert.Error(t, err)
}

func TestTokenService_Expiry(t *testing.T) {
	ts := newTestTokenService()

	token, _, err := ts.Issue(testPrincipal(), issueTime)
	require.NoError(t, err)

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{name: "just issued", at: issueTime},
		{name: "one second before expiry", at: issueTime.Add(24*time.Hour - time.Second)},
		{name: "at expiry", at: issueTime.Add(24 * time.Hour), wantErr: auth.ErrTokenExpired},
		{name: "after expiry", at: issueTime.Add(48 * time.Hour), wantErr: auth.ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Verify(token, tt.at)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotErrorIs(t, err, auth.ErrTokenInvalid)
			assert.True(t, auth.IsTokenExpiredError(err))
		})
	}
}

func TestTokenService_SignatureBitFlipsAreInvalid(t *testing.T) {
	ts := newTestTokenService()

	token, _, err := ts.Issue(testPrincipal(), issueTime)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)

	for i := 0; i < len(sig)*8; i++ {
		flipped := make([]byte, len(sig))
		copy(flipped, sig)
		flipped[i/8] ^= 1 << (i % 8)

		forged := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(flipped)

		_, err := ts.Verify(forged, issueTime)
		if !assert.ErrorIs(t, err, auth.ErrTokenInvalid, "bit %d", i) {
			return
		}
	}

	// expired and tampered is still tampered
	sig[0] ^= 1
	forged := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(sig)
	_, err = ts.Verify(forged, issueTime.Add(72*time.Hour))
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
	assert.False(t, auth.IsTokenExpiredError(err))
}

func TestTokenService_RejectsForeignTokens(t *testing.T) {
	ts := newTestTokenService()
	principal := testPrincipal()

	foreign := auth.NewTokenService([]byte("another-secret"), time.Hour, testIssuer, quietLogger())
	foreignToken, _, err := foreign.Issue(principal, issueTime)
	require.NoError(t, err)

	otherIssuer := auth.NewTokenService([]byte(testSigningKey), time.Hour, "someone-else", quietLogger())
	otherIssuerToken, _, err := otherIssuer.Issue(principal, issueTime)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(issueTime.Add(time.Hour)),
		},
		UID:        principal.ID,
		AdminEmail: principal.Email,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512Token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &auth.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(issueTime.Add(time.Hour)),
		},
		UID:        principal.ID,
		AdminEmail: principal.Email,
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	noExpToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer},
		UID:              principal.ID,
		AdminEmail:       principal.Email,
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	noEmailToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(issueTime.Add(time.Hour)),
		},
		UID: principal.ID,
	}).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	tests := map[string]string{
		"foreign secret":  foreignToken,
		"foreign issuer":  otherIssuerToken,
		"alg none":        noneToken,
		"other algorithm": hs512Token,
		"missing exp":     noExpToken,
		"missing email":   noEmailToken,
		"garbage":         "not-a-jwt",
		"empty":           "",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Verify(token, issueTime)
			assert.ErrorIs(t, err, auth.ErrTokenInvalid)
			assert.True(t, auth.IsAuthenticationError(err))
		})
	}
}

func TestTokenService_ValidateUsesServiceClock(t *testing.T) {
	now := issueTime
	ts := newTestTokenService(auth.WithTokenClock(func() time.Time { return now }))
	principal := testPrincipal()

	token, _, err := ts.Issue(principal, issueTime)
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, principal.ID, claims.UserID())
	assert.Equal(t, principal.Email, claims.Email())

	now = issueTime.Add(25 * time.Hour)
	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}
