package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-admin-auth/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.BaseConfig {
	cfg := config.Defaults()
	cfg.Auth.SigningKey = "cmd-test-signing-key-0123456789"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Persistence.DSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Seed.Email = "admin@example.com"
	cfg.Seed.Password = "admin123"
	cfg.Log.Level = "error"
	cfg.Server.Addr = "127.0.0.1:0"
	return cfg
}

func newTestApp(t *testing.T, mutate ...func(*config.BaseConfig)) *App {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, cfg.Validate())

	app, err := NewApp(t.Context(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func stubPassword(t *testing.T, password string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) { return []byte(password), nil }
}

func TestApp_Healthz(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.srv.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApp_LoginFeedsMetrics(t *testing.T) {
	app := newTestApp(t)

	body := strings.NewReader(`{"email":"admin@example.com","password":"admin123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.srv.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	req = httptest.NewRequest(http.MethodGet, "/api/admin/session", nil)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	resp, err = app.srv.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.srv.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, `admin_auth_activity_events_total{event="auth.login.success"} 1`)
	assert.Contains(t, text, `route="/api/auth/login"`)
}

func TestApp_AuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	app := newTestApp(t, func(cfg *config.BaseConfig) { cfg.Log.AuditPath = path })

	body := strings.NewReader(`{"email":"admin@example.com","password":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.srv.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec struct {
		Verb    string `json:"verb"`
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &rec))
	assert.Equal(t, "auth.login.failure", rec.Verb)
	assert.Equal(t, "failure", rec.Outcome)
}

func TestApp_SeedUsesConfiguredAdmin(t *testing.T) {
	app := newTestApp(t)

	admin, err := app.repo.Admins().FindByEmail(t.Context(), "admin@example.com")
	require.NoError(t, err)
	assert.True(t, app.repo.Admins().VerifyPassword(admin, "admin123"))
}

func TestRun_HashPassword(t *testing.T) {
	stubPassword(t, "s3cret-pass")

	var stdout, stderr bytes.Buffer
	err := run(t.Context(), []string{"hash-password", "-cost", "4"}, os.Stdin, &stdout, &stderr)
	require.NoError(t, err)

	hash := strings.TrimSpace(stdout.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")))
}

func TestRun_HashPasswordTooShort(t *testing.T) {
	stubPassword(t, "abc")

	err := run(t.Context(), []string{"hash-password"}, os.Stdin, io.Discard, io.Discard)
	assert.Error(t, err)
}

func TestRun_HashPasswordReadFailure(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }

	err := run(t.Context(), []string{"hash-password"}, os.Stdin, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a terminal")
}

func TestRun_UnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	err := run(t.Context(), []string{"frobnicate"}, os.Stdin, io.Discard, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "usage: admin-auth")
}

func TestRun_SessionCommands(t *testing.T) {
	app := newTestApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.srv.Listener(ln) }()
	t.Cleanup(func() { _ = app.srv.Shutdown() })

	server := "http://" + ln.Addr().String() + "/api/auth"
	marker := filepath.Join(t.TempDir(), "session")
	common := []string{"-server", server, "-marker", marker}

	exec := func(args ...string) (string, error) {
		var stdout bytes.Buffer
		err := run(context.Background(), args, os.Stdin, &stdout, io.Discard)
		return stdout.String(), err
	}

	out, err := exec(append([]string{"whoami"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "not logged in\n", out)

	stubPassword(t, "wrong")
	_, err = exec(append([]string{"login", "-email", "admin@example.com"}, common...)...)
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())

	stubPassword(t, "admin123")
	out, err = exec(append([]string{"login", "-email", "admin@example.com"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "logged in as admin@example.com\n", out)

	out, err = exec(append([]string{"whoami"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "admin@example.com")

	out, err = exec(append([]string{"logout"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr))
}
