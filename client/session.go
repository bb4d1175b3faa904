// Package client tracks the administrator session on the calling side.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	auth "github.com/goliatone/go-admin-auth"
)

// State of the client session
type State string

const (
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

var (
	// ErrInvalidTransition the requested state change is not in the graph
	ErrInvalidTransition = errors.New("invalid session state transition")
	// ErrVerificationPending login was attempted while the startup check runs
	ErrVerificationPending = errors.New("session verification in progress")
	// ErrAlreadyAuthenticated login was attempted on a live session
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
	// ErrSessionClosed the session was closed
	ErrSessionClosed = errors.New("session closed")
)

// Snapshot is a copy of the session state. Principal is only set when
// authenticated.
type Snapshot struct {
	State     State
	Principal auth.Principal
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithMarkerStore sets where the session marker is kept
func WithMarkerStore(store MarkerStore) SessionOption {
	return func(s *Session) {
		if store != nil {
			s.markers = store
		}
	}
}

// WithSessionLogger sets the logger
func WithSessionLogger(logger auth.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is the client side session state machine
type Session struct {
	mu          sync.Mutex
	api         API
	markers     MarkerStore
	logger      auth.Logger
	transitions map[State]map[State]struct{}

	state     State
	principal auth.Principal
	token     string
	// generation changes on every state change so late results can be dropped
	generation  uint64
	verifying   bool
	closed      bool
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// NewSession creates a session in the loading state. Call Start to resolve it.
func NewSession(api API, opts ...SessionOption) *Session {
	s := &Session{
		api:     api,
		markers: &MemoryMarker{},
		logger:  auth.NewLogrusLogger(nil),
		transitions: map[State]map[State]struct{}{
			StateLoading: {
				StateAuthenticated:   {},
				StateUnauthenticated: {},
			},
			StateAuthenticated: {
				StateUnauthenticated: {},
			},
			StateUnauthenticated: {
				StateAuthenticated: {},
			},
		},
		state:       StateLoading,
		subscribers: map[int]func(Snapshot){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start resolves the loading state. With a stored marker the server is asked
// to verify it, without one the session is unauthenticated right away.
func (s *Session) Start(ctx context.Context) State {
	s.mu.Lock()
	if s.closed || s.state != StateLoading || s.verifying {
		state := s.state
		s.mu.Unlock()
		return state
	}

	token, ok, err := s.markers.Load()
	if err != nil {
		s.logger.Warn("session marker load failed", "error", err)
	}

	if !ok {
		notify := s.transitionLocked(StateUnauthenticated, auth.Principal{}, "")
		s.mu.Unlock()
		notify()
		return StateUnauthenticated
	}

	s.verifying = true
	gen := s.generation
	s.mu.Unlock()

	principal, verr := s.api.Verify(ctx, token)

	s.mu.Lock()
	s.verifying = false
	if s.closed || s.generation != gen {
		state := s.state
		s.mu.Unlock()
		s.logger.Debug("dropping stale verification result")
		return state
	}

	var notify func()
	if verr != nil {
		s.logger.Info("stored session rejected", "error", verr)
		s.clearMarker()
		notify = s.transitionLocked(StateUnauthenticated, auth.Principal{}, "")
	} else {
		notify = s.transitionLocked(StateAuthenticated, principal, token)
	}
	state := s.state
	s.mu.Unlock()

	notify()
	return state
}

// Login authenticates with the server. On failure the session stays
// unauthenticated and the server error is returned.
func (s *Session) Login(ctx context.Context, email, password string) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.state == StateLoading:
		s.mu.Unlock()
		return ErrVerificationPending
	case s.state == StateAuthenticated:
		s.mu.Unlock()
		return ErrAlreadyAuthenticated
	}
	gen := s.generation
	s.mu.Unlock()

	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.generation != gen || s.state != StateUnauthenticated {
		s.mu.Unlock()
		return ErrInvalidTransition
	}

	if err := s.markers.Save(res.Token); err != nil {
		s.logger.Warn("session marker save failed", "error", err)
	}
	notify := s.transitionLocked(StateAuthenticated, res.User, res.Token)
	s.mu.Unlock()

	notify()
	return nil
}

// Logout drops the local session immediately and then asks the server to
// clear its cookie. A failed server call does not undo the local logout.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	token := s.token
	s.clearMarker()

	notify := func() {}
	if s.state != StateUnauthenticated {
		notify = s.transitionLocked(StateUnauthenticated, auth.Principal{}, "")
	}
	s.mu.Unlock()

	notify()

	if err := s.api.Logout(ctx, token); err != nil {
		s.logger.Warn("server logout failed", "error", err)
	}
}

// Invalidate records that an authenticated call was rejected by the server
func (s *Session) Invalidate() {
	s.mu.Lock()
	if s.closed || s.state != StateAuthenticated {
		s.mu.Unlock()
		return
	}

	s.clearMarker()
	notify := s.transitionLocked(StateUnauthenticated, auth.Principal{}, "")
	s.mu.Unlock()

	notify()
}

// Close disposes the session. Results arriving afterwards are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subscribers = map[int]func(Snapshot){}
}

// Snapshot returns the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Token returns the bearer token of an authenticated session
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Subscribe registers fn for every state change
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn == nil || s.closed {
		return func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state}
	if s.state == StateAuthenticated {
		snap.Principal = s.principal
	}
	return snap
}

func (s *Session) canTransition(from, to State) bool {
	targets, ok := s.transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// transitionLocked moves to target and returns a func that notifies the
// subscribers, to be called once the lock is released.
func (s *Session) transitionLocked(target State, principal auth.Principal, token string) func() {
	if !s.canTransition(s.state, target) {
		s.logger.Error("rejected session transition", "from", string(s.state), "to", string(target))
		panic(fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, target))
	}

	s.state = target
	s.principal = principal
	s.token = token
	s.generation++

	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}

	return func() {
		for _, fn := range subs {
			fn(snap)
		}
	}
}

func (s *Session) clearMarker() {
	if err := s.markers.Clear(); err != nil {
		s.logger.Warn("session marker clear failed", "error", err)
	}
}
