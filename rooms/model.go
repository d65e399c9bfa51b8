package rooms

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status is the occupancy state of a room
type Status string

const (
	StatusAvailable   Status = "available"
	StatusOccupied    Status = "occupied"
	StatusMaintenance Status = "maintenance"
	StatusReserved    Status = "reserved"
)

// Statuses lists every accepted status
var Statuses = []Status{StatusAvailable, StatusOccupied, StatusMaintenance, StatusReserved}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

type Room struct {
	bun.BaseModel `bun:"table:rooms,alias:rm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Number        int        `bun:"number,notnull" json:"number"`
	Type          string     `bun:"type,notnull" json:"type"`
	Capacity      int        `bun:"capacity,notnull" json:"capacity"`
	Price         float64    `bun:"price,notnull" json:"price"`
	Description   *string    `bun:"description" json:"description"`
	Amenities     []string   `bun:"amenities,notnull" json:"amenities"`
	Status        Status     `bun:"status,notnull" json:"status"`
	CreatedBy     *uuid.UUID `bun:"created_by,type:uuid" json:"-"`
	DeletedBy     string     `bun:"deleted_by" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// ListFilter narrows the public room listing. Zero values mean no filter.
type ListFilter struct {
	Page        int
	Limit       int
	Search      string
	Status      Status
	Type        string
	MinPrice    *float64
	MaxPrice    *float64
	MinCapacity int
}

// Normalize clamps paging values
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	f.Search = strings.TrimSpace(f.Search)
	f.Type = strings.TrimSpace(f.Type)
	return f
}

// Offset returns the number of rows to skip
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// AvailableFilter narrows the bookable room listing
type AvailableFilter struct {
	MinCapacity int
	Type        string
}

// Repository is the room store. Soft deleted rooms are invisible to every
// read and their number can be reused.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Room, error)
	NumberInUse(ctx context.Context, number int, except uuid.UUID) (bool, error)
	Create(ctx context.Context, room *Room) (*Room, error)
	Update(ctx context.Context, room *Room) (*Room, error)
	SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) error
	List(ctx context.Context, filter ListFilter) ([]*Room, int, error)
	Available(ctx context.Context, filter AvailableFilter) ([]*Room, error)
}
