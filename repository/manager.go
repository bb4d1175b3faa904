// Package repository opens the credential database, runs the embedded
// migrations and vends the admins store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	auth "github.com/goliatone/go-admin-auth"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver is returned by Open for unknown drivers
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Manager owns the database handle and the admins store
type Manager struct {
	db       *bun.DB
	driver   string
	admins   auth.CredentialStore
	hasher   auth.PasswordAuthenticator
	logger   auth.Logger
	queryLog io.Writer
}

// Option configures a Manager
type Option func(*Manager)

// WithHasher sets the password hasher used by the store and the seed
func WithHasher(hasher auth.PasswordAuthenticator) Option {
	return func(m *Manager) {
		if hasher != nil {
			m.hasher = hasher
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger auth.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithQueryDebug writes every executed query to w
func WithQueryDebug(w io.Writer) Option {
	return func(m *Manager) {
		m.queryLog = w
	}
}

// Open connects to driver using dsn. An empty driver is inferred from the
// dsn, postgres:// and postgresql:// select postgres, anything else sqlite.
func Open(driver, dsn string) (*bun.DB, error) {
	if driver == "" {
		driver = DriverFromDSN(dsn)
	}

	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// a single connection keeps in memory databases shared across queries
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// DriverFromDSN guesses the driver for a connection string
func DriverFromDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// NewManager wraps an open database
func NewManager(db *bun.DB, driver string, opts ...Option) *Manager {
	m := &Manager{
		db:     db,
		driver: driver,
		hasher: auth.NewBcryptHasher(0),
		logger: auth.NewLogrusLogger(nil),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.driver == "" {
		m.driver = DriverSQLite
	}

	if m.queryLog != nil && db != nil {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.WithWriter(m.queryLog),
		))
	}

	m.admins = auth.NewAdminsRepository(db, m.hasher)
	return m
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.admins == nil {
		return errors.New("repository admins should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// DB returns the underlying handle
func (m *Manager) DB() *bun.DB {
	return m.db
}

// Admins returns the credential store
func (m *Manager) Admins() auth.CredentialStore {
	return m.admins
}

// Ping checks the database is reachable
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", auth.ErrStoreUnavailable, err)
	}
	return nil
}

// gooseUpContext is a seam for tests
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations
func (m *Manager) Migrate(ctx context.Context) error {
	dialect := "sqlite3"
	if m.driver == DriverPostgres {
		dialect = "pgx"
	}

	goose.SetBaseFS(auth.GetMigrationsFS())
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := gooseUpContext(ctx, m.db.DB, auth.MigrationsDir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	m.logger.Debug("migrations applied", "driver", m.driver)
	return nil
}

// SeedAdmin creates the administrator when the store is empty. It returns
// true when a record was created.
func (m *Manager) SeedAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	n, err := m.admins.Count(ctx)
	if err != nil {
		return false, err
	}

	if n > 0 {
		m.logger.Debug("admin already provisioned, skipping seed")
		return false, nil
	}

	hash, err := m.hasher.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}

	admin, err := m.admins.Create(ctx, &auth.Admin{
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}

	m.logger.Info("seeded admin", "admin_id", admin.ID.String())
	return true, nil
}

// Close closes the database
func (m *Manager) Close() error {
	return m.db.Close()
}
