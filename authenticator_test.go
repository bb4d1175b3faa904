package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAuther(store auth.CredentialStore, sink auth.ActivitySink, now time.Time) *auth.Auther {
	return auth.NewAuthenticator(store, newTestTokenService(),
		auth.WithAutherLogger(quietLogger()),
		auth.WithAutherActivitySink(sink),
		auth.WithAutherPasswordHasher(testHasher),
		auth.WithAutherClock(func() time.Time { return now }),
	)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	store := newTestManager(t).Admins()
	admin := seedAdmin(t, store, seedEmail, seedPassword)
	sink := &recordingSink{}
	authenticator := newTestAuther(store, sink, issueTime)

	t.Run("Successful login", func(t *testing.T) {
		res, err := authenticator.Login(ctx, seedEmail, seedPassword)
		require.NoError(t, err)
		require.NotEmpty(t, res.Token)
		assert.Equal(t, admin.ID, res.Admin.ID)
		assert.Equal(t, issueTime.Add(24*time.Hour), res.ExpiresAt)

		claims, err := authenticator.TokenService().Verify(res.Token, issueTime.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, seedEmail, claims.Email())
		assert.Equal(t, admin.ID.String(), claims.UserID())

		assert.Equal(t, auth.ActivityEventLoginSuccess, sink.Last().EventType)
		assert.Equal(t, admin.ID.String(), sink.Last().AdminID)
	})

	t.Run("Email is matched case insensitively", func(t *testing.T) {
		_, err := authenticator.Login(ctx, " ADMIN@example.com ", seedPassword)
		assert.NoError(t, err)
	})

	t.Run("Wrong password and unknown email fail the same way", func(t *testing.T) {
		_, wrongPwd := authenticator.Login(ctx, seedEmail, "admin124")
		_, unknown := authenticator.Login(ctx, "ghost@example.com", seedPassword)

		assert.ErrorIs(t, wrongPwd, auth.ErrInvalidCredentials)
		assert.ErrorIs(t, unknown, auth.ErrInvalidCredentials)
		assert.Equal(t, wrongPwd.Error(), unknown.Error())
		assert.Equal(t, auth.ActivityEventLoginFailure, sink.Last().EventType)
	})

	t.Run("Missing fields", func(t *testing.T) {
		for _, tc := range [][2]string{{"", seedPassword}, {seedEmail, ""}, {"  ", ""}} {
			_, err := authenticator.Login(ctx, tc[0], tc[1])
			assert.ErrorIs(t, err, auth.ErrMissingCredentials)
		}
	})
}

func TestLogin_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockCredentialStore)
	storeErr := errors.Join(auth.ErrStoreUnavailable, errors.New("connection refused"))
	store.On("FindByEmail", mock.Anything, seedEmail).Return(nil, storeErr)

	authenticator := newTestAuther(store, nil, issueTime)

	_, err := authenticator.Login(ctx, seedEmail, seedPassword)
	assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	store.AssertExpectations(t)
}

func TestSessionFromToken(t *testing.T) {
	store := newTestManager(t).Admins()
	admin := seedAdmin(t, store, seedEmail, seedPassword)
	authenticator := newTestAuther(store, nil, issueTime)

	res, err := authenticator.Login(context.Background(), seedEmail, seedPassword)
	require.NoError(t, err)

	principal, err := authenticator.SessionFromToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.Principal(), principal)

	_, err = authenticator.SessionFromToken(res.Token + "x")
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}
