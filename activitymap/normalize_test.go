package activitymap_test

import (
	"testing"
	"time"

	auth "github.com/mavi3006/hotel-auth"
	"github.com/mavi3006/hotel-auth/activitymap"
	"github.com/stretchr/testify/assert"
)

func TestNormalize_Defaults(t *testing.T) {
	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventUserStatusChanged,
		Actor:      auth.ActorRef{ID: "admin-42", Name: "Front Desk", Type: "user"},
		UserID:     "user-100",
		FromStatus: auth.UserStatusActive,
		ToStatus:   auth.UserStatusDisabled,
		Metadata:   map[string]any{"reason": "left the company"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.NotEqual(t, "", out.ID.String())
	assert.Equal(t, "admin-42", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventUserStatusChanged), out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "api", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, "left the company", out.Metadata["reason"])
	assert.Equal(t, "user", out.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, "Front Desk", out.Metadata[activitymap.MetadataKeyActorName])
	assert.Equal(t, "active", out.Metadata[activitymap.MetadataKeyFromStatus])
	assert.Equal(t, "disabled", out.Metadata[activitymap.MetadataKeyToStatus])

	assert.Len(t, event.Metadata, 1, "source metadata is left untouched")
}

func TestNormalize_Options(t *testing.T) {
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Actor:     auth.ActorRef{Type: "anonymous"},
		Metadata: map[string]any{
			"email":                          "guest@example.com",
			activitymap.MetadataKeyActorType: "existing",
		},
	}

	out := activitymap.Normalize(event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("login"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			email, _ := e.Metadata["email"].(string)
			return email
		}),
	)

	assert.Equal(t, "security", out.Channel)
	assert.Equal(t, "login", out.ObjectType)
	assert.Equal(t, "guest@example.com", out.ObjectID)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeyActorType])
	assert.False(t, out.OccurredAt.IsZero())
}

func TestNormalize_ActorFallback(t *testing.T) {
	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "actor id",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{ID: "actor-1"}, UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "user id when actor is blank",
			event:  auth.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "system",
			event:  auth.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "configured fallback",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("migration")},
			expect: "migration",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, activitymap.Normalize(tc.event, tc.opts...).ActorID)
		})
	}
}
