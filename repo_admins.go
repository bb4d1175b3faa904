package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const pgUniqueViolation = "23505"

type admins struct {
	db     *bun.DB
	hasher PasswordAuthenticator
	now    func() time.Time
}

var _ CredentialStore = (*admins)(nil)

// AdminsOption configures the admins repository
type AdminsOption func(*admins)

// WithAdminsClock overrides the clock used for timestamps
func WithAdminsClock(now func() time.Time) AdminsOption {
	return func(a *admins) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAdminsRepository returns a bun backed CredentialStore
func NewAdminsRepository(db *bun.DB, hasher PasswordAuthenticator, opts ...AdminsOption) CredentialStore {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}

	repo := &admins{
		db:     db,
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}

	return repo
}

func (a *admins) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *admins) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Admin, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrAdminNotFound
	}

	record := &Admin{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, storeError("find admin by email", err)
	}

	return record, nil
}

func (a *admins) FindByID(ctx context.Context, id string) (*Admin, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *admins) FindByIDTx(ctx context.Context, tx bun.IDB, id string) (*Admin, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrAdminNotFound
	}

	record := &Admin{}
	err = tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", uid.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, storeError("find admin by id", err)
	}

	return record, nil
}

func (a *admins) VerifyPassword(admin *Admin, candidate string) bool {
	if admin == nil || admin.PasswordHash == "" || candidate == "" {
		return false
	}
	return a.hasher.ComparePasswordAndHash(candidate, admin.PasswordHash) == nil
}

func (a *admins) UpdatePasswordHash(ctx context.Context, email, passwordHash string) error {
	return a.UpdatePasswordHashTx(ctx, a.db, email, passwordHash)
}

func (a *admins) UpdatePasswordHashTx(ctx context.Context, tx bun.IDB, email, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*Admin)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", a.now()).
		Where("email = ?", NormalizeEmail(email)).
		Exec(ctx)
	if err != nil {
		return storeError("update password hash", err)
	}

	return expectOneRow(res)
}

// UpdateEmail runs the uniqueness check and the update in one transaction,
// the unique index is the last line when two writers still race.
func (a *admins) UpdateEmail(ctx context.Context, oldEmail, newEmail string) error {
	newEmail = NormalizeEmail(newEmail)

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := a.FindByEmailTx(ctx, tx, oldEmail)
		if err != nil {
			return err
		}

		taken, err := tx.NewSelect().
			Model((*Admin)(nil)).
			Where("email = ?", newEmail).
			Where("id <> ?", current.ID.String()).
			Exists(ctx)
		if err != nil {
			return storeError("check email availability", err)
		}

		if taken {
			return ErrEmailAlreadyExists
		}

		res, err := tx.NewUpdate().
			Model((*Admin)(nil)).
			Set("email = ?", newEmail).
			Set("updated_at = ?", a.now()).
			Where("id = ?", current.ID.String()).
			Exec(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrEmailAlreadyExists
			}
			return storeError("update email", err)
		}

		return expectOneRow(res)
	})

	if err != nil && isUniqueViolation(err) {
		return ErrEmailAlreadyExists
	}

	return storeError("update email", err)
}

func (a *admins) Create(ctx context.Context, record *Admin) (*Admin, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *admins) CreateTx(ctx context.Context, tx bun.IDB, record *Admin) (*Admin, error) {
	if record == nil || record.PasswordHash == "" {
		return nil, ErrMissingCredentials
	}

	prepareAdminDefaults(record, a.now())
	if record.Email == "" {
		return nil, ErrMissingCredentials
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, storeError("create admin", err)
	}

	return record, nil
}

func (a *admins) Count(ctx context.Context) (int, error) {
	n, err := a.db.NewSelect().Model((*Admin)(nil)).Count(ctx)
	if err != nil {
		return 0, storeError("count admins", err)
	}
	return n, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("rows affected", err)
	}
	if n == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
