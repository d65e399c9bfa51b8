package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserStatusChanged ActivityEventType = "user.status.changed"
	ActivityEventUserRegistered    ActivityEventType = "user.registered"
	ActivityEventUserDeleted       ActivityEventType = "user.deleted"
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventPasswordChanged   ActivityEventType = "auth.password.changed"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Name string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromStatus UserStatus
	ToStatus   UserStatus
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

// LogActivitySink writes every event as a structured log line
type LogActivitySink struct {
	logger Logger
}

// NewLogActivitySink returns a sink backed by logger
func NewLogActivitySink(logger Logger) *LogActivitySink {
	return &LogActivitySink{logger: normalizeLogger(logger)}
}

func (s *LogActivitySink) Record(_ context.Context, event ActivityEvent) error {
	args := []any{
		"event", string(event.EventType),
		"actor_id", event.Actor.ID,
		"actor_type", event.Actor.Type,
		"user_id", event.UserID,
		"occurred_at", event.OccurredAt,
	}
	if event.FromStatus != "" || event.ToStatus != "" {
		args = append(args, "from", string(event.FromStatus), "to", string(event.ToStatus))
	}
	for k, v := range event.Metadata {
		args = append(args, k, v)
	}

	if event.EventType == ActivityEventLoginFailure {
		s.logger.Warn("activity", args...)
		return nil
	}
	s.logger.Info("activity", args...)
	return nil
}

// MultiActivitySink fans events out to every sink. The first error is
// returned after all sinks ran.
type MultiActivitySink []ActivitySink

func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		if now == nil {
			now = time.Now
		}
		event.OccurredAt = now()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink record error", "error", err, "event", string(event.EventType))
	}
}

func actorFromPrincipal(p *Principal) ActorRef {
	if p == nil {
		return ActorRef{Type: "system"}
	}
	return ActorRef{ID: p.ID, Name: p.Name, Type: "user"}
}
