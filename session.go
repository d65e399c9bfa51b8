package auth

import (
	"github.com/google/uuid"
)

// Principal is the per request projection of an authenticated user. It is
// built after the live record check and never persisted.
type Principal struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  *UserRole `json:"role,omitempty"`
}

// NewPrincipal projects the fields a request needs out of u. The role is
// left unset, only the role gate resolves it.
func NewPrincipal(u *User) *Principal {
	if u == nil {
		return nil
	}
	return &Principal{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
	}
}

// UUID parses the principal id
func (p *Principal) UUID() (uuid.UUID, bool) {
	if p == nil {
		return uuid.Nil, false
	}
	return ParseUserID(p.ID)
}

// WithRole returns a copy of p annotated with role
func (p *Principal) WithRole(role UserRole) *Principal {
	if p == nil {
		return nil
	}
	out := *p
	out.Role = RolePtr(role)
	return &out
}

// IsAdmin reports whether a resolved role sits on the admin allow-list
func (p *Principal) IsAdmin() bool {
	return p != nil && IsAdminRole(p.Role)
}

func (p *Principal) GetID() string {
	if p == nil {
		return ""
	}
	return p.ID
}

// AsIdentity exposes p through the Identity interface
func (p *Principal) AsIdentity() Identity {
	return principalIdentity{p: p}
}

type principalIdentity struct{ p *Principal }

var _ Identity = principalIdentity{}

func (i principalIdentity) ID() string    { return i.p.ID }
func (i principalIdentity) Name() string  { return i.p.Name }
func (i principalIdentity) Email() string { return i.p.Email }
func (i principalIdentity) Role() string {
	if i.p.Role == nil {
		return ""
	}
	return string(*i.p.Role)
}
