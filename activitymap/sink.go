package activitymap

import (
	"context"
	"strings"

	auth "github.com/mavi3006/hotel-auth"
	"github.com/uptrace/bun"
)

const defaultRecentLimit = 50

// Sink persists activity events to the activity_log table.
type Sink struct {
	db   bun.IDB
	opts []Option
}

var _ auth.ActivitySink = (*Sink)(nil)

// NewSink returns a sink writing through db. The options are applied to
// every normalized entry.
func NewSink(db bun.IDB, opts ...Option) *Sink {
	return &Sink{db: db, opts: opts}
}

// Record implements auth.ActivitySink.
func (s *Sink) Record(ctx context.Context, event auth.ActivityEvent) error {
	entry := Normalize(event, s.opts...)
	if _, err := s.db.NewInsert().Model(&entry).Exec(ctx); err != nil {
		return auth.DependencyError(err, "failed to record activity")
	}
	return nil
}

// Recent returns the newest entries first. A blank objectID lists every
// object.
func (s *Sink) Recent(ctx context.Context, objectID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > defaultRecentLimit {
		limit = defaultRecentLimit
	}

	var entries []Entry
	q := s.db.NewSelect().
		Model(&entries).
		OrderExpr("?TableAlias.occurred_at DESC").
		Limit(limit)

	if objectID = strings.TrimSpace(objectID); objectID != "" {
		q = q.Where("?TableAlias.object_id = ?", objectID)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, auth.DependencyError(err, "failed to list activity")
	}
	return entries, nil
}
