package activitymap

import (
	"strings"
	"time"

	"github.com/google/uuid"
	auth "github.com/mavi3006/hotel-auth"
	"github.com/uptrace/bun"
)

// Metadata keys added while flattening an event.
const (
	MetadataKeyActorType  = "actor_type"
	MetadataKeyActorName  = "actor_name"
	MetadataKeyFromStatus = "from_status"
	MetadataKeyToStatus   = "to_status"
)

// Entry is one row of the audit trail.
type Entry struct {
	bun.BaseModel `bun:"table:activity_log,alias:act"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	ActorID    string         `bun:"actor_id,notnull" json:"actor_id"`
	Verb       string         `bun:"verb,notnull" json:"verb"`
	ObjectType string         `bun:"object_type" json:"object_type,omitempty"`
	ObjectID   string         `bun:"object_id" json:"object_id,omitempty"`
	Channel    string         `bun:"channel" json:"channel,omitempty"`
	Metadata   map[string]any `bun:"metadata" json:"metadata,omitempty"`
	OccurredAt time.Time      `bun:"occurred_at,notnull" json:"occurred_at"`
}

// Option customizes Normalize
type Option func(*mapping)

type mapping struct {
	channel    string
	objectType string
	fallback   string
	objectID   func(auth.ActivityEvent) string
	now        func() time.Time
}

func defaultMapping() mapping {
	return mapping{
		channel:    "api",
		objectType: "user",
		fallback:   "system",
		objectID:   func(e auth.ActivityEvent) string { return e.UserID },
		now:        time.Now,
	}
}

// WithDefaultChannel sets the channel stamped on every entry.
func WithDefaultChannel(channel string) Option {
	return func(m *mapping) { m.channel = strings.TrimSpace(channel) }
}

// WithDefaultObjectType sets the object type stamped on every entry.
func WithDefaultObjectType(objectType string) Option {
	return func(m *mapping) { m.objectType = strings.TrimSpace(objectType) }
}

// WithObjectIDResolver overrides how the object id is read from an event.
// By default it is the affected user.
func WithObjectIDResolver(resolver func(auth.ActivityEvent) string) Option {
	return func(m *mapping) {
		if resolver != nil {
			m.objectID = resolver
		}
	}
}

// WithActorFallback sets the actor recorded when the event names none.
func WithActorFallback(actorID string) Option {
	return func(m *mapping) { m.fallback = strings.TrimSpace(actorID) }
}

// Normalize flattens an auth.ActivityEvent into an audit row. The actor
// falls back to the affected user, then to "system". Timestamps are UTC.
func Normalize(event auth.ActivityEvent, opts ...Option) Entry {
	m := defaultMapping()
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = m.now()
	}

	return Entry{
		ID:         uuid.New(),
		ActorID:    firstNonEmpty(event.Actor.ID, event.UserID, m.fallback),
		Verb:       string(event.EventType),
		ObjectType: m.objectType,
		ObjectID:   strings.TrimSpace(m.objectID(event)),
		Channel:    m.channel,
		Metadata:   flattenMetadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// flattenMetadata copies the event metadata and adds the actor and status
// fields. Caller supplied actor keys win, status keys always reflect the
// transition.
func flattenMetadata(event auth.ActivityEvent) map[string]any {
	var out map[string]any
	if len(event.Metadata) > 0 {
		out = make(map[string]any, len(event.Metadata)+4)
		for k, v := range event.Metadata {
			out[k] = v
		}
	}

	set := func(key, value string, overwrite bool) {
		if value == "" {
			return
		}
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[key]; exists && !overwrite {
			return
		}
		out[key] = value
	}

	set(MetadataKeyActorType, strings.TrimSpace(event.Actor.Type), false)
	set(MetadataKeyActorName, strings.TrimSpace(event.Actor.Name), false)
	set(MetadataKeyFromStatus, string(event.FromStatus), true)
	set(MetadataKeyToStatus, string(event.ToStatus), true)

	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
