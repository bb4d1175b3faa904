package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// DefaultMinPasswordLength is the shortest accepted new password
const DefaultMinPasswordLength = 6

// CredentialRotation changes the administrator password or email. Both
// operations re-verify the current password before touching the store.
type CredentialRotation struct {
	store             CredentialStore
	hasher            PasswordAuthenticator
	logger            Logger
	activitySink      ActivitySink
	minPasswordLength int
}

// RotationOption configures CredentialRotation
type RotationOption func(*CredentialRotation)

// WithRotationLogger sets the logger
func WithRotationLogger(logger Logger) RotationOption {
	return func(r *CredentialRotation) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRotationActivitySink sets the activity sink
func WithRotationActivitySink(sink ActivitySink) RotationOption {
	return func(r *CredentialRotation) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// WithMinPasswordLength overrides the minimum new password length
func WithMinPasswordLength(n int) RotationOption {
	return func(r *CredentialRotation) {
		if n > 0 {
			r.minPasswordLength = n
		}
	}
}

// NewCredentialRotation creates the rotation service
func NewCredentialRotation(store CredentialStore, hasher PasswordAuthenticator, opts ...RotationOption) *CredentialRotation {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}

	r := &CredentialRotation{
		store:             store,
		hasher:            hasher,
		logger:            defLogger(),
		activitySink:      noopActivitySink{},
		minPasswordLength: DefaultMinPasswordLength,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// ChangePassword replaces the password hash. Existing tokens stay valid.
func (r *CredentialRotation) ChangePassword(ctx context.Context, principal Principal, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return ErrMissingCredentials.WithMessage("Current password and new password are required")
	}

	if len(newPassword) < r.minPasswordLength {
		return r.passwordTooShort()
	}

	admin, err := r.authorize(ctx, principal, currentPassword, "change_password")
	if err != nil {
		return err
	}

	hash, err := r.hasher.HashPassword(newPassword)
	if err != nil {
		r.logger.Error("change password hash failed", "error", err)
		return ErrInternal
	}

	if err := r.store.UpdatePasswordHash(ctx, admin.Email, hash); err != nil {
		r.logStoreFailure("change password update failed", err)
		return err
	}

	emitActivity(ctx, r.activitySink, r.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		AdminID:   admin.ID.String(),
	})

	return nil
}

// ChangeEmail replaces the login email. Tokens issued for the old email no
// longer describe the record, callers must drop the session afterwards.
func (r *CredentialRotation) ChangeEmail(ctx context.Context, principal Principal, currentPassword, newEmail string) error {
	newEmail = strings.TrimSpace(newEmail)
	if currentPassword == "" || newEmail == "" {
		return ErrMissingCredentials.WithMessage("Current password and new email are required")
	}

	if err := validation.Validate(newEmail, is.Email); err != nil {
		return ErrInvalidEmail
	}

	admin, err := r.authorize(ctx, principal, currentPassword, "change_email")
	if err != nil {
		return err
	}

	if NormalizeEmail(newEmail) == NormalizeEmail(admin.Email) {
		return ErrEmailUnchanged
	}

	if err := r.store.UpdateEmail(ctx, admin.Email, newEmail); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			r.rotationFailed(ctx, admin.ID.String(), "change_email", "email_taken")
			return err
		}
		r.logStoreFailure("change email update failed", err)
		return err
	}

	emitActivity(ctx, r.activitySink, r.logger, ActivityEvent{
		EventType: ActivityEventEmailChanged,
		AdminID:   admin.ID.String(),
	})

	return nil
}

// authorize loads the admin named by the principal and checks the current
// password against it.
func (r *CredentialRotation) authorize(ctx context.Context, principal Principal, currentPassword, op string) (*Admin, error) {
	admin, err := r.store.FindByEmail(ctx, principal.Email)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			r.logger.Error("verified principal has no admin record", "operation", op, "admin_id", principal.ID)
			return nil, err
		}
		r.logStoreFailure("rotation lookup failed", err)
		return nil, err
	}

	if principal.ID != "" && admin.ID.String() != principal.ID {
		r.logger.Error("principal id does not match admin record", "operation", op, "admin_id", principal.ID)
		return nil, ErrAdminNotFound
	}

	if !r.store.VerifyPassword(admin, currentPassword) {
		r.rotationFailed(ctx, admin.ID.String(), op, "wrong_password")
		return nil, ErrWrongPassword
	}

	return admin, nil
}

func (r *CredentialRotation) passwordTooShort() error {
	if r.minPasswordLength == DefaultMinPasswordLength {
		return ErrPasswordTooShort
	}
	return ErrPasswordTooShort.WithMessage(
		fmt.Sprintf("New password must be at least %d characters long", r.minPasswordLength),
	)
}

func (r *CredentialRotation) rotationFailed(ctx context.Context, adminID, op, reason string) {
	r.logger.Info("credential rotation rejected", "operation", op, "reason", reason)
	emitActivity(ctx, r.activitySink, r.logger, ActivityEvent{
		EventType: ActivityEventRotationFailure,
		AdminID:   adminID,
		Metadata: map[string]any{
			"operation": op,
			"reason":    reason,
		},
	})
}

func (r *CredentialRotation) logStoreFailure(msg string, err error) {
	if errors.Is(err, ErrStoreUnavailable) {
		r.logger.Error(msg, "error", err)
	}
}
