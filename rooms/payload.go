package rooms

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

var statusValues = func() []any {
	out := make([]any, len(Statuses))
	for i, s := range Statuses {
		out[i] = string(s)
	}
	return out
}()

// CreatePayload is the body of POST /rooms
type CreatePayload struct {
	Number      *int     `json:"number"`
	Type        string   `json:"type"`
	Capacity    *int     `json:"capacity"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
	Amenities   []string `json:"amenities"`
	Status      string   `json:"status"`
}

// Validate will validate the payload
func (p CreatePayload) Validate() error {
	p.Type = strings.TrimSpace(p.Type)
	return validation.ValidateStruct(&p,
		validation.Field(&p.Number, validation.Required, validation.Min(1)),
		validation.Field(&p.Type, validation.Required, validation.Length(2, 50)),
		validation.Field(&p.Capacity, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&p.Price, validation.NotNil, validation.Min(0.0)),
		validation.Field(&p.Amenities, validation.Each(validation.Required)),
		validation.Field(&p.Status, validation.In(statusValues...)),
	)
}

// Room builds the record the payload describes
func (p CreatePayload) Room() *Room {
	room := &Room{
		Number:    *p.Number,
		Type:      strings.TrimSpace(p.Type),
		Capacity:  *p.Capacity,
		Price:     *p.Price,
		Amenities: p.Amenities,
		Status:    Status(p.Status),
	}
	room.Description = trimmed(p.Description)
	return room
}

// UpdatePayload only touches the fields that are present
type UpdatePayload struct {
	Number      *int      `json:"number"`
	Type        *string   `json:"type"`
	Capacity    *int      `json:"capacity"`
	Price       *float64  `json:"price"`
	Description *string   `json:"description"`
	Amenities   *[]string `json:"amenities"`
	Status      *string   `json:"status"`
}

// Validate will validate the payload
func (p UpdatePayload) Validate() error {
	if p.Type != nil {
		t := strings.TrimSpace(*p.Type)
		p.Type = &t
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Number, validation.NilOrNotEmpty, validation.Min(1)),
		validation.Field(&p.Type, validation.NilOrNotEmpty, validation.Length(2, 50)),
		validation.Field(&p.Capacity, validation.NilOrNotEmpty, validation.Min(1), validation.Max(10)),
		validation.Field(&p.Price, validation.Min(0.0)),
		validation.Field(&p.Status, validation.NilOrNotEmpty, validation.In(statusValues...)),
	)
}

// Apply copies the present fields onto room
func (p UpdatePayload) Apply(room *Room) {
	if p.Number != nil {
		room.Number = *p.Number
	}
	if p.Type != nil {
		room.Type = strings.TrimSpace(*p.Type)
	}
	if p.Capacity != nil {
		room.Capacity = *p.Capacity
	}
	if p.Price != nil {
		room.Price = *p.Price
	}
	if p.Description != nil {
		room.Description = trimmed(p.Description)
	}
	if p.Amenities != nil {
		room.Amenities = *p.Amenities
	}
	if p.Status != nil {
		room.Status = Status(*p.Status)
	}
}

// ListQuery is the query string of GET /rooms
type ListQuery struct {
	Page        int      `query:"page" json:"page"`
	Limit       int      `query:"limit" json:"limit"`
	Search      string   `query:"search" json:"search"`
	Status      string   `query:"status" json:"status"`
	Type        string   `query:"type" json:"type"`
	MinPrice    *float64 `query:"min_price" json:"min_price"`
	MaxPrice    *float64 `query:"max_price" json:"max_price"`
	MinCapacity int      `query:"min_capacity" json:"min_capacity"`
}

// Validate will validate the query
func (q ListQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Status, validation.In(statusValues...)),
		validation.Field(&q.MinCapacity, validation.Min(0)),
	)
}

// Filter converts the query into a repository filter
func (q ListQuery) Filter() ListFilter {
	return ListFilter{
		Page:        q.Page,
		Limit:       q.Limit,
		Search:      q.Search,
		Status:      Status(q.Status),
		Type:        q.Type,
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
		MinCapacity: q.MinCapacity,
	}.Normalize()
}

// AvailableQuery is the query string of GET /rooms/available
type AvailableQuery struct {
	Capacity int    `query:"capacity" json:"capacity"`
	Type     string `query:"type" json:"type"`
}

// Validate will validate the query
func (q AvailableQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Capacity, validation.Min(0)),
	)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
