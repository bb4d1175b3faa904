package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := testHasher.HashPassword(tt.password)

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrNoEmptyString)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)
			assert.NoError(t, testHasher.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestHashPassword_IsSalted(t *testing.T) {
	a, err := testHasher.HashPassword("admin123")
	require.NoError(t, err)
	b, err := testHasher.HashPassword("admin123")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := testHasher.HashPassword("testPassword123!")
	require.NoError(t, err)

	assert.NoError(t, auth.ComparePasswordAndHash("testPassword123!", hash))
	assert.ErrorIs(t, auth.ComparePasswordAndHash("wrongPassword", hash), auth.ErrMismatchedHashAndPassword)
	assert.Error(t, auth.ComparePasswordAndHash("testPassword123!", "not-a-hash"))
}

func TestNewBcryptHasher_Cost(t *testing.T) {
	hash, err := auth.NewBcryptHasher(bcrypt.MinCost).HashPassword("admin123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.NotZero(t, auth.NewBcryptHasher(0).Cost)
}

func TestRandomPasswordHash(t *testing.T) {
	hash, err := auth.NewBcryptHasher(bcrypt.MinCost).RandomPasswordHash()
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestRandomPasswordHash_ReturnsHashError(t *testing.T) {
	hash, err := auth.NewBcryptHasher(bcrypt.MaxCost + 1).RandomPasswordHash()
	require.Error(t, err)
	assert.Empty(t, hash)

	var costErr bcrypt.InvalidCostError
	assert.ErrorAs(t, err, &costErr)
}
