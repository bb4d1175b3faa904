// Package activitymap turns auth activity events into flat audit records.
package activitymap

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-admin-auth"
)

const (
	// MetadataKeyReason stores why a login, rotation or guard check failed
	MetadataKeyReason = "reason"
	// MetadataKeyOperation stores the rotation operation name
	MetadataKeyOperation = "operation"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "admin"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic audit record
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	Outcome    string         `json:"outcome"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize converts an auth.ActivityEvent into an audit record
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	adminID := strings.TrimSpace(event.AdminID)
	actorID := firstNonEmpty(adminID, options.actorFallback)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		Outcome:    outcome(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   adminID,
		Channel:    options.channel,
		Metadata:   cloneMap(event.Metadata),
		OccurredAt: occurredAt.UTC(),
	}
}

// WithDefaultChannel sets the channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event has no admin,
// for example a login with an unknown email.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the time used for events without a timestamp
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func outcome(t auth.ActivityEventType) string {
	switch t {
	case auth.ActivityEventLoginFailure,
		auth.ActivityEventAccessDenied,
		auth.ActivityEventRotationFailure:
		return OutcomeFailure
	default:
		return OutcomeSuccess
	}
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// WriterSink writes one JSON record per event to w
type WriterSink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	opts []Option
}

var _ auth.ActivitySink = (*WriterSink)(nil)

// NewWriterSink creates a sink writing JSON lines to w
func NewWriterSink(w io.Writer, opts ...Option) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w), opts: opts}
}

// Record implements auth.ActivitySink
func (s *WriterSink) Record(_ context.Context, event auth.ActivityEvent) error {
	record := Normalize(event, s.opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(record)
}
