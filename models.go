package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Name          string     `bun:"name,notnull" json:"name"`
	Pronoun       string     `bun:"pronoun" json:"pronoun,omitempty"`
	Email         string     `bun:"email,notnull" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Phone         string     `bun:"phone" json:"phone,omitempty"`
	BirthDate     *time.Time `bun:"birth_date,nullzero" json:"birth_date,omitempty"`
	NationalID    string     `bun:"national_id,notnull" json:"national_id"`
	Active        bool       `bun:"active,notnull" json:"active"`
	Role          *UserRole  `bun:"user_role" json:"role,omitempty"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	DeletedBy     string     `bun:"deleted_by" json:"deleted_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RoleName returns the stored role or an empty string when none is set
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return string(*u.Role)
}

// IsDeleted reports whether the record was soft deleted
func (u *User) IsDeleted() bool {
	return u != nil && u.DeletedAt != nil && !u.DeletedAt.IsZero()
}

// UserIdentity adapts a User to the Identity interface
type UserIdentity struct {
	user *User
}

// NewUserIdentity wraps u
func NewUserIdentity(u *User) UserIdentity {
	return UserIdentity{user: u}
}

var _ Identity = UserIdentity{}

func (i UserIdentity) ID() string {
	if i.user == nil {
		return ""
	}
	return i.user.ID.String()
}

func (i UserIdentity) Name() string {
	if i.user == nil {
		return ""
	}
	return i.user.Name
}

func (i UserIdentity) Email() string {
	if i.user == nil {
		return ""
	}
	return i.user.Email
}

func (i UserIdentity) Role() string {
	return i.user.RoleName()
}

// NormalizeEmail lower cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserListFilter narrows admin listings
type UserListFilter struct {
	Page   int
	Limit  int
	Search string
}

// Normalize clamps paging values
func (f UserListFilter) Normalize() UserListFilter {
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
	return f
}

// Offset returns the number of rows to skip
func (f UserListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination is returned alongside list results
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes page counts for total rows
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
