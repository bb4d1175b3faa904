package auth_test

import (
	"context"
	"io"
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSigningKey = "test-signing-key"
	testIssuer     = "go-admin-auth-test"
	seedEmail      = "admin@example.com"
	seedPassword   = "admin123"
)

var testHasher = auth.NewBcryptHasher(bcrypt.MinCost)

func quietLogger() auth.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return auth.NewLogrusLogger(l)
}

// newTestManager opens a private in memory sqlite database with the
// migrations applied.
func newTestManager(t *testing.T) *repository.Manager {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := repository.Open(repository.DriverSQLite, dsn)
	require.NoError(t, err)

	mgr := repository.NewManager(db, repository.DriverSQLite,
		repository.WithHasher(testHasher),
		repository.WithLogger(quietLogger()),
	)
	require.NoError(t, mgr.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = mgr.Close()
	})

	return mgr
}

func seedAdmin(t *testing.T, store auth.CredentialStore, email, password string) *auth.Admin {
	t.Helper()

	hash, err := testHasher.HashPassword(password)
	require.NoError(t, err)

	admin, err := store.Create(context.Background(), &auth.Admin{
		Email:        email,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return admin
}

func newTestTokenService(opts ...auth.TokenServiceOption) auth.TokenService {
	return auth.NewTokenService([]byte(testSigningKey), 24*time.Hour, testIssuer, quietLogger(), opts...)
}
