package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Category groups errors by the kind of failure
type Category string

const (
	CategoryBadInput Category = "bad_input"
	CategoryAuth     Category = "authentication"
	CategoryConflict Category = "conflict"
	CategoryNotFound Category = "not_found"
	CategoryInternal Category = "internal"
)

// Error is a categorized error. Message is safe to return to clients,
// anything else belongs in the server logs.
type Error struct {
	Category Category
	Code     int
	TextCode string
	Message  string
}

func newError(category Category, code int, textCode, message string) *Error {
	return &Error{
		Category: category,
		Code:     code,
		TextCode: textCode,
		Message:  message,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors sharing the same TextCode so that copies created with
// WithMessage still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.TextCode == e.TextCode
}

// WithMessage returns a copy of the error with a different client message
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

var (
	// ErrMissingCredentials required fields were not provided
	ErrMissingCredentials = newError(CategoryBadInput, http.StatusBadRequest, "MISSING_CREDENTIALS", "Email and password are required")
	// ErrInvalidRequestBody the request body could not be decoded
	ErrInvalidRequestBody = newError(CategoryBadInput, http.StatusBadRequest, "INVALID_REQUEST_BODY", "Invalid request body")
	// ErrInvalidCredentials is used for both unknown emails and wrong passwords
	ErrInvalidCredentials = newError(CategoryAuth, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	// ErrNoToken no session token in cookie or header
	ErrNoToken = newError(CategoryAuth, http.StatusUnauthorized, "NO_TOKEN", "Access token required")
	// ErrTokenInvalid bad signature, algorithm, issuer or encoding
	ErrTokenInvalid = newError(CategoryAuth, http.StatusUnauthorized, "TOKEN_INVALID", "Invalid or expired token")
	// ErrTokenExpired token was correctly signed but is past its expiry
	ErrTokenExpired = newError(CategoryAuth, http.StatusUnauthorized, "TOKEN_EXPIRED", "Invalid or expired token")
	// ErrStaleSession token claims no longer match the stored administrator
	ErrStaleSession = newError(CategoryAuth, http.StatusUnauthorized, "STALE_SESSION", "Invalid or expired token")
	// ErrWrongPassword current password did not match during a rotation
	ErrWrongPassword = newError(CategoryAuth, http.StatusUnauthorized, "WRONG_PASSWORD", "Current password is incorrect")
	// ErrEmailAlreadyExists new email belongs to another record
	ErrEmailAlreadyExists = newError(CategoryConflict, http.StatusBadRequest, "EMAIL_ALREADY_EXISTS", "Email already in use")
	// ErrEmailUnchanged new email equals the current one
	ErrEmailUnchanged = newError(CategoryBadInput, http.StatusBadRequest, "EMAIL_UNCHANGED", "New email must be different from the current email")
	// ErrInvalidEmail new email is not a valid address
	ErrInvalidEmail = newError(CategoryBadInput, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email format")
	// ErrPasswordTooShort new password is under the minimum length
	ErrPasswordTooShort = newError(CategoryBadInput, http.StatusBadRequest, "PASSWORD_TOO_SHORT", "New password must be at least 6 characters long")
	// ErrAdminNotFound no administrator matches the lookup
	ErrAdminNotFound = newError(CategoryNotFound, http.StatusNotFound, "ADMIN_NOT_FOUND", "Admin not found")
	// ErrStoreUnavailable the credential store failed
	ErrStoreUnavailable = newError(CategoryInternal, http.StatusInternalServerError, "STORE_UNAVAILABLE", "Internal server error")
	// ErrInternal any other unexpected failure
	ErrInternal = newError(CategoryInternal, http.StatusInternalServerError, "INTERNAL", "Internal server error")
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword password does not match hash
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// AsError resolves err to its categorized form, defaulting to ErrInternal
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var richErr *Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return ErrInternal
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var richErr *Error
	if errors.As(err, &richErr) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// IsAuthenticationError reports errors that should surface as a 401
func IsAuthenticationError(err error) bool {
	richErr := AsError(err)
	return richErr != nil && richErr.Category == CategoryAuth
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if isPgUniqueViolation(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
