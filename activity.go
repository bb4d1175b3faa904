package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
	ActivityEventLogout          ActivityEventType = "auth.logout"
	ActivityEventAccessDenied    ActivityEventType = "auth.access.denied"
	ActivityEventPasswordChanged ActivityEventType = "auth.password.changed"
	ActivityEventEmailChanged    ActivityEventType = "auth.email.changed"
	ActivityEventRotationFailure ActivityEventType = "auth.rotation.failure"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	AdminID    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

type multiActivitySink []ActivitySink

// MultiActivitySink fans events out to every sink, the first error wins
// but every sink still receives the event.
func MultiActivitySink(sinks ...ActivitySink) ActivitySink {
	out := make(multiActivitySink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewLoggerActivitySink writes every event to the logger
func NewLoggerActivitySink(logger Logger) ActivitySink {
	if logger == nil {
		logger = defLogger()
	}
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		args := []any{
			"event", string(event.EventType),
			"admin_id", event.AdminID,
			"occurred_at", event.OccurredAt,
		}
		for k, v := range event.Metadata {
			args = append(args, k, v)
		}
		logger.Info("auth activity", args...)
		return nil
	})
}

// emitActivity records best-effort, sink failures are only logged
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink failed", "event", string(event.EventType), "error", err)
	}
}
