// Package config loads the admin auth server configuration from an
// optional YAML file and ADMIN_AUTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	auth "github.com/goliatone/go-admin-auth"
	"gopkg.in/yaml.v3"
)

// DevelopmentSigningKey is used when no signing key is configured. Tokens
// signed with it must never reach production.
const DevelopmentSigningKey = "development-only-signing-key-change-me"

// EnvPrefix prefixes every environment override
const EnvPrefix = "ADMIN_AUTH_"

type Auth struct {
	SigningKey      string `yaml:"signing_key"`
	Issuer          string `yaml:"issuer"`
	TokenExpiration int    `yaml:"token_expiration"`
	ContextKey      string `yaml:"context_key"`
	CookieName      string `yaml:"cookie_name"`
	CookieSecure    bool   `yaml:"cookie_secure"`
	AuthScheme      string `yaml:"auth_scheme"`
	RoutePrefix     string `yaml:"route_prefix"`
	BcryptCost      int    `yaml:"bcrypt_cost"`
}

type Server struct {
	Addr  string `yaml:"addr"`
	Debug bool   `yaml:"debug"`
}

type Persistence struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Seed struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// AuditPath appends one JSON audit record per auth event when set
	AuditPath string `yaml:"audit_path"`
}

// BaseConfig implements auth.Config
type BaseConfig struct {
	Auth        Auth        `yaml:"auth"`
	Server      Server      `yaml:"server"`
	Persistence Persistence `yaml:"persistence"`
	Seed        Seed        `yaml:"seed"`
	Log         Log         `yaml:"log"`

	devKey bool
}

var _ auth.Config = (*BaseConfig)(nil)

// Defaults returns a configuration usable for local development
func Defaults() *BaseConfig {
	return &BaseConfig{
		Auth: Auth{
			Issuer:          "go-admin-auth",
			TokenExpiration: 24,
			ContextKey:      auth.DefaultContextKey,
			CookieName:      auth.DefaultCookieName,
			AuthScheme:      "Bearer",
			RoutePrefix:     "/api/auth",
		},
		Server: Server{
			Addr: ":8080",
		},
		Persistence: Persistence{
			Driver: "sqlite",
			DSN:    "file:admin-auth.db?cache=shared",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// LookupEnv matches os.LookupEnv
type LookupEnv func(key string) (string, bool)

// Load reads path when not empty, applies environment overrides and
// validates the result.
func Load(path string, lookup LookupEnv) (*BaseConfig, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if cfg.Auth.SigningKey == "" {
		cfg.Auth.SigningKey = DevelopmentSigningKey
	}
	cfg.devKey = cfg.Auth.SigningKey == DevelopmentSigningKey

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *BaseConfig) applyEnv(lookup LookupEnv) error {
	strs := map[string]*string{
		"SIGNING_KEY":   &c.Auth.SigningKey,
		"ISSUER":        &c.Auth.Issuer,
		"CONTEXT_KEY":   &c.Auth.ContextKey,
		"COOKIE_NAME":   &c.Auth.CookieName,
		"AUTH_SCHEME":   &c.Auth.AuthScheme,
		"ROUTE_PREFIX":  &c.Auth.RoutePrefix,
		"ADDR":          &c.Server.Addr,
		"DB_DRIVER":     &c.Persistence.Driver,
		"DB_DSN":        &c.Persistence.DSN,
		"SEED_EMAIL":    &c.Seed.Email,
		"SEED_PASSWORD": &c.Seed.Password,
		"LOG_LEVEL":     &c.Log.Level,
		"LOG_FORMAT":    &c.Log.Format,
		"AUDIT_PATH":    &c.Log.AuditPath,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"TOKEN_EXPIRATION": &c.Auth.TokenExpiration,
		"BCRYPT_COST":      &c.Auth.BcryptCost,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"COOKIE_SECURE": &c.Auth.CookieSecure,
		"DEBUG":         &c.Server.Debug,
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	return nil
}

// Validate checks the configuration values
func (c BaseConfig) Validate() error {
	err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.Auth.TokenExpiration, validation.Min(1)),
		validation.Field(&c.Auth.CookieName, validation.Required),
		validation.Field(&c.Auth.AuthScheme, validation.Required),
		validation.Field(&c.Auth.RoutePrefix, validation.Required),
		validation.Field(&c.Auth.BcryptCost, validation.Min(4), validation.Max(31)),
	)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	err = validation.ValidateStruct(&c.Persistence,
		validation.Field(&c.Persistence.Driver, validation.In("sqlite", "postgres")),
		validation.Field(&c.Persistence.DSN, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("persistence: %w", err)
	}

	err = validation.ValidateStruct(&c.Seed,
		validation.Field(&c.Seed.Email, validation.By(requiredWith(c.Seed.Password)), is.Email),
		validation.Field(&c.Seed.Password, validation.By(requiredWith(c.Seed.Email)), validation.Length(6, 0)),
	)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	err = validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.Log.Format, validation.In("text", "json")),
	)
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if c.Server.Addr == "" {
		return errors.New("server: addr is required")
	}

	return nil
}

// requiredWith makes a field mandatory once its sibling is set
func requiredWith(sibling string) validation.RuleFunc {
	return func(value any) error {
		if sibling == "" {
			return nil
		}
		return validation.Required.Validate(value)
	}
}

// Redacted returns a copy safe to print
func (c BaseConfig) Redacted() BaseConfig {
	out := c
	if out.Auth.SigningKey != "" {
		out.Auth.SigningKey = "********"
	}
	if out.Seed.Password != "" {
		out.Seed.Password = "********"
	}
	return out
}

func (c BaseConfig) GetSigningKey() string {
	return c.Auth.SigningKey
}

func (c BaseConfig) GetIssuer() string {
	return c.Auth.Issuer
}

// GetTokenExpiration is the token lifetime in hours
func (c BaseConfig) GetTokenExpiration() int {
	return c.Auth.TokenExpiration
}

func (c BaseConfig) GetContextKey() string {
	return c.Auth.ContextKey
}

func (c BaseConfig) GetCookieName() string {
	return c.Auth.CookieName
}

func (c BaseConfig) GetCookieSecure() bool {
	return c.Auth.CookieSecure
}

func (c BaseConfig) GetAuthScheme() string {
	return c.Auth.AuthScheme
}

func (c BaseConfig) GetRoutePrefix() string {
	return c.Auth.RoutePrefix
}

func (c BaseConfig) GetBcryptCost() int {
	return c.Auth.BcryptCost
}

// IsDevelopmentKey reports whether the fallback signing key is in use
func (c BaseConfig) IsDevelopmentKey() bool {
	return c.devKey
}
