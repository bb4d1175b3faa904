package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/client"
	"github.com/goliatone/go-admin-auth/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword
var readPassword = term.ReadPassword

func promptPassword(stdin *os.File, stderr io.Writer, prompt string) (string, error) {
	fmt.Fprint(stderr, prompt)
	raw, err := readPassword(int(stdin.Fd()))
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func runHashPassword(args []string, stdin *os.File, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cost := fs.Int("cost", 0, "bcrypt cost, 0 uses the default")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := promptPassword(stdin, stderr, "Password: ")
	if err != nil {
		return err
	}
	if len(password) < auth.DefaultMinPasswordLength {
		return auth.ErrPasswordTooShort
	}

	hash, err := auth.NewBcryptHasher(*cost).HashPassword(password)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, hash)
	return nil
}

type sessionFlags struct {
	server  string
	marker  string
	verbose bool
}

func defaultMarkerPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "admin-auth", "session")
}

func parseSessionFlags(name string, args []string, stderr io.Writer, extra func(*flag.FlagSet)) (sessionFlags, error) {
	var sf sessionFlags

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&sf.server, "server", "http://localhost:8080"+config.Defaults().GetRoutePrefix(), "base url of the auth routes")
	fs.StringVar(&sf.marker, "marker", defaultMarkerPath(), "file holding the session marker")
	fs.BoolVar(&sf.verbose, "v", false, "verbose logging")
	if extra != nil {
		extra(fs)
	}

	return sf, fs.Parse(args)
}

func (sf sessionFlags) open(stderr io.Writer) (*client.Session, error) {
	api, err := client.NewHTTPAPI(sf.server)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetOutput(stderr)
	l.SetLevel(logrus.WarnLevel)
	if sf.verbose {
		l.SetLevel(logrus.DebugLevel)
	}

	s := client.NewSession(api,
		client.WithMarkerStore(client.FileMarker{Path: sf.marker}),
		client.WithSessionLogger(auth.NewLogrusLogger(l)),
	)
	return s, nil
}

func runLogin(ctx context.Context, args []string, stdin *os.File, stdout, stderr io.Writer) error {
	var email string
	sf, err := parseSessionFlags("login", args, stderr, func(fs *flag.FlagSet) {
		fs.StringVar(&email, "email", "", "administrator email")
	})
	if err != nil {
		return err
	}

	session, err := sf.open(stderr)
	if err != nil {
		return err
	}
	defer session.Close()

	if session.Start(ctx) == client.StateAuthenticated {
		fmt.Fprintf(stdout, "already logged in as %s\n", session.Snapshot().Principal.Email)
		return nil
	}

	if strings.TrimSpace(email) == "" {
		return errors.New("login: -email is required")
	}

	password, err := promptPassword(stdin, stderr, "Password: ")
	if err != nil {
		return err
	}

	if err := session.Login(ctx, email, password); err != nil {
		return describeAPIError(err)
	}

	fmt.Fprintf(stdout, "logged in as %s\n", session.Snapshot().Principal.Email)
	return nil
}

func runWhoami(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	sf, err := parseSessionFlags("whoami", args, stderr, nil)
	if err != nil {
		return err
	}

	session, err := sf.open(stderr)
	if err != nil {
		return err
	}
	defer session.Close()

	if session.Start(ctx) != client.StateAuthenticated {
		fmt.Fprintln(stdout, "not logged in")
		return nil
	}

	p := session.Snapshot().Principal
	fmt.Fprintf(stdout, "%s (%s)\n", p.Email, p.ID)
	return nil
}

func runLogout(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	sf, err := parseSessionFlags("logout", args, stderr, nil)
	if err != nil {
		return err
	}

	session, err := sf.open(stderr)
	if err != nil {
		return err
	}
	defer session.Close()

	session.Start(ctx)
	session.Logout(ctx)

	fmt.Fprintln(stdout, "logged out")
	return nil
}

func describeAPIError(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return errors.New(apiErr.Message)
	}
	return err
}
