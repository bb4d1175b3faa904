package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	auth "github.com/goliatone/go-admin-auth"
)

// API is the server surface the session needs. Token is the bearer the
// caller holds, it may be empty when the cookie jar carries the session.
type API interface {
	Login(ctx context.Context, email, password string) (LoginResponse, error)
	Verify(ctx context.Context, token string) (auth.Principal, error)
	Logout(ctx context.Context, token string) error
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	Token string         `json:"token"`
	User  auth.Principal `json:"user"`
}

// APIError is a non 2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth api: %d %s", e.Status, e.Message)
}

// IsUnauthorized reports a 401 answer
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// HTTPAPI talks to the auth routes over HTTP
type HTTPAPI struct {
	baseURL string
	client  *http.Client
}

// HTTPAPIOption configures HTTPAPI
type HTTPAPIOption func(*HTTPAPI)

// WithHTTPClient replaces the http client, its jar is kept as is
func WithHTTPClient(c *http.Client) HTTPAPIOption {
	return func(a *HTTPAPI) {
		if c != nil {
			a.client = c
		}
	}
}

// NewHTTPAPI creates a client for the auth routes mounted at baseURL, for
// example http://localhost:8080/api/auth.
func NewHTTPAPI(baseURL string, opts ...HTTPAPIOption) (*HTTPAPI, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	a := &HTTPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a, nil
}

func (a *HTTPAPI) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var out LoginResponse
	err := a.do(ctx, http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (a *HTTPAPI) Verify(ctx context.Context, token string) (auth.Principal, error) {
	var out auth.Principal
	err := a.do(ctx, http.MethodGet, "/verify", token, nil, &out)
	return out, err
}

func (a *HTTPAPI) Logout(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodPost, "/logout", token, nil, nil)
}

// ChangePassword rotates the password, the session stays valid
func (a *HTTPAPI) ChangePassword(ctx context.Context, token, currentPassword, newPassword string) error {
	return a.do(ctx, http.MethodPut, "/change-password", token, map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}, nil)
}

// ChangeEmail rotates the email, the caller must log in again afterwards
func (a *HTTPAPI) ChangeEmail(ctx context.Context, token, currentPassword, newEmail string) error {
	return a.do(ctx, http.MethodPut, "/change-email", token, map[string]string{
		"currentPassword": currentPassword,
		"newEmail":        newEmail,
	}, nil)
}

func (a *HTTPAPI) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
