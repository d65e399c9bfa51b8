package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	bunrepo "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	auth "github.com/mavi3006/hotel-auth"
	"github.com/mavi3006/hotel-auth/rooms"
	"github.com/uptrace/bun"
)

// RoomRepository implements rooms.Repository on top of the generic bun
// repository. Lookups that need more than criteria live on the wrapper.
type RoomRepository struct {
	bunrepo.Repository[*rooms.Room]
	db  bun.IDB
	now func() time.Time
}

var _ rooms.Repository = (*RoomRepository)(nil)

// NewRoomRepository creates a new repository.
func NewRoomRepository(db bun.IDB) *RoomRepository {
	return &RoomRepository{
		Repository: bunrepo.NewRepository[*rooms.Room](db, bunrepo.ModelHandlers[*rooms.Room]{
			NewRecord: func() *rooms.Room { return &rooms.Room{} },
			GetID: func(r *rooms.Room) uuid.UUID {
				if r == nil {
					return uuid.Nil
				}
				return r.ID
			},
			SetID: func(r *rooms.Room, id uuid.UUID) {
				if r != nil {
					r.ID = id
				}
			},
			GetIdentifier: func() string { return "number" },
		}),
		db:  db,
		now: time.Now,
	}
}

// WithClock overrides the clock used for timestamps
func (r *RoomRepository) WithClock(now func() time.Time) *RoomRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// GetByID implements rooms.Repository.
func (r *RoomRepository) GetByID(ctx context.Context, id string) (*rooms.Room, error) {
	rid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, notFound(id)
	}

	room, err := r.Repository.GetByID(ctx, rid.String())
	if err != nil {
		if bunrepo.IsRecordNotFound(err) {
			return nil, notFound(id)
		}
		return nil, auth.DependencyError(err, "failed to query rooms")
	}
	return room, nil
}

// NumberInUse implements rooms.Repository.
func (r *RoomRepository) NumberInUse(ctx context.Context, number int, except uuid.UUID) (bool, error) {
	q := r.db.NewSelect().
		Model((*rooms.Room)(nil)).
		Where("?TableAlias.number = ?", number)
	if except != uuid.Nil {
		q = q.Apply(bunrepo.SelectBy("id", "!=", except.String()))
	}

	ok, err := q.Exists(ctx)
	if err != nil {
		return false, auth.DependencyError(err, "failed to query rooms")
	}
	return ok, nil
}

// Create implements rooms.Repository.
func (r *RoomRepository) Create(ctx context.Context, room *rooms.Room) (*rooms.Room, error) {
	if room == nil {
		return nil, goerrors.New("room must not be nil", goerrors.CategoryBadInput)
	}

	if room.Status == "" {
		room.Status = rooms.StatusAvailable
	}
	if room.Amenities == nil {
		room.Amenities = []string{}
	}
	now := r.now()
	room.CreatedAt = &now
	room.UpdatedAt = &now

	created, err := r.Repository.Create(ctx, room)
	if err != nil {
		return nil, writeError(err, "failed to create room")
	}
	return created, nil
}

// Update implements rooms.Repository. Every mutable column is written,
// including cleared description and amenities.
func (r *RoomRepository) Update(ctx context.Context, room *rooms.Room) (*rooms.Room, error) {
	if room == nil || room.ID == uuid.Nil {
		return nil, notFound("")
	}
	if room.Amenities == nil {
		room.Amenities = []string{}
	}

	amenities, err := json.Marshal(room.Amenities)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid amenities")
	}

	now := r.now()
	room.UpdatedAt = &now

	updated, err := r.Repository.Update(ctx, room,
		bunrepo.UpdateColumns("number", "type", "capacity", "price", "description", "amenities", "status", "updated_at"),
		writeValue("price", room.Price),
		writeValue("description", room.Description),
		writeValue("amenities", string(amenities)),
	)
	if err != nil {
		if bunrepo.IsRecordNotFound(err) {
			return nil, notFound(room.ID.String())
		}
		return nil, writeError(err, "failed to update room")
	}
	return updated, nil
}

// SoftDelete implements rooms.Repository.
func (r *RoomRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) error {
	now := r.now()
	_, err := r.Repository.Update(ctx,
		&rooms.Room{ID: id, DeletedAt: &now, DeletedBy: deletedBy, UpdatedAt: &now},
		bunrepo.UpdateColumns("deleted_at", "deleted_by", "updated_at"),
	)
	if err != nil {
		if bunrepo.IsRecordNotFound(err) {
			return notFound(id.String())
		}
		return auth.DependencyError(err, "failed to delete room")
	}
	return nil
}

// List implements rooms.Repository. Rooms are ordered by number.
func (r *RoomRepository) List(ctx context.Context, filter rooms.ListFilter) ([]*rooms.Room, int, error) {
	filter = filter.Normalize()

	criteria := []bunrepo.SelectCriteria{
		bunrepo.SelectOrderAsc("number"),
		bunrepo.Paginate(filter.Limit, filter.Offset()),
	}
	if filter.Search != "" {
		criteria = append(criteria, searchRooms(filter.Search))
	}
	if filter.Status != "" {
		criteria = append(criteria, bunrepo.SelectBy("status", "=", string(filter.Status)))
	}
	if filter.Type != "" {
		criteria = append(criteria, bunrepo.SelectBy("type", "=", filter.Type))
	}
	if filter.MinPrice != nil {
		criteria = append(criteria, whereNumber("price", ">=", *filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		criteria = append(criteria, whereNumber("price", "<=", *filter.MaxPrice))
	}
	if filter.MinCapacity > 0 {
		criteria = append(criteria, whereNumber("capacity", ">=", filter.MinCapacity))
	}

	records, total, err := r.Repository.List(ctx, criteria...)
	if err != nil {
		return nil, 0, auth.DependencyError(err, "failed to list rooms")
	}
	return records, total, nil
}

// searchRooms matches the room number as text, or a case insensitive
// fragment of the type or description
func searchRooms(term string) bunrepo.SelectCriteria {
	pattern := "%" + strings.ToLower(term) + "%"
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("CAST(?TableAlias.number AS TEXT) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.type) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.description) LIKE ?", pattern)
		})
	}
}

// whereNumber compares a numeric column. bunrepo.SelectBy binds strings,
// which sqlite compares as text.
func whereNumber(column, operator string, value any) bunrepo.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? "+operator+" ?", bun.Ident(column), value)
	}
}

// writeValue forces column into the SET clause even when value is zero
func writeValue(column string, value any) bunrepo.UpdateCriteria {
	return func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Value(column, "?", value)
	}
}

// Available implements rooms.Repository. The listing is not paged.
func (r *RoomRepository) Available(ctx context.Context, filter rooms.AvailableFilter) ([]*rooms.Room, error) {
	criteria := []bunrepo.SelectCriteria{
		bunrepo.SelectBy("status", "=", string(rooms.StatusAvailable)),
		bunrepo.SelectOrderAsc("number"),
	}
	if filter.MinCapacity > 0 {
		criteria = append(criteria, whereNumber("capacity", ">=", filter.MinCapacity))
	}
	if t := strings.TrimSpace(filter.Type); t != "" {
		criteria = append(criteria, bunrepo.SelectBy("type", "=", t))
	}

	records := []*rooms.Room{}
	q := r.db.NewSelect().Model(&records)
	for _, c := range criteria {
		q = q.Apply(c)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, auth.DependencyError(err, "failed to list available rooms")
	}
	return records, nil
}

func notFound(id string) error {
	return auth.ErrRecordNotFound.Clone().WithMetadata(map[string]any{
		"room_id": id,
	})
}

func writeError(err error, message string) error {
	if auth.IsUniqueViolation(err) {
		dup := auth.ErrDuplicateRecord.Clone()
		dup.Source = err
		return dup
	}
	return auth.DependencyError(err, message)
}
