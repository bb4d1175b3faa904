package auth

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements PasswordAuthenticator with bcrypt
type BcryptHasher struct {
	Cost int
}

var _ PasswordAuthenticator = BcryptHasher{}

// NewBcryptHasher returns a hasher using the given cost, or the build
// default when cost is zero.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost == 0 {
		cost = passwordHashCost()
	}
	return BcryptHasher{Cost: cost}
}

// HashPassword will generate a password hash
func (h BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	cost := h.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(out), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// HashPassword hashes with the build default cost
func HashPassword(password string) (string, error) {
	return NewBcryptHasher(0).HashPassword(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash hashes a random value, used to provision records
// nobody can log into yet.
func (h BcryptHasher) RandomPasswordHash() (string, error) {
	return h.HashPassword(uuid.NewString())
}

// RandomPasswordHash hashes a random value with the build default cost
func RandomPasswordHash() (string, error) {
	return NewBcryptHasher(0).RandomPasswordHash()
}

var (
	decoyHashOnce sync.Once
	decoyHash     string
)

// decoyPasswordHash is compared against when the email is unknown so that
// both login failure paths pay for a bcrypt comparison. On a hashing error
// it stays empty and the comparison fails fast.
func decoyPasswordHash() string {
	decoyHashOnce.Do(func() {
		decoyHash, _ = RandomPasswordHash()
	})
	return decoyHash
}
