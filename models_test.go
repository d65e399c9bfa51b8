package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIsAdminRoleDefaultDeny(t *testing.T) {
	cases := []struct {
		name   string
		role   *UserRole
		expect bool
	}{
		{name: "admin", role: RolePtr(RoleAdmin), expect: true},
		{name: "administrator", role: RolePtr(RoleAdministrator), expect: true},
		{name: "standard", role: RolePtr(RoleStandard), expect: false},
		{name: "nil", role: nil, expect: false},
		{name: "empty", role: RolePtr(""), expect: false},
		{name: "upper case", role: RolePtr("ADMIN"), expect: false},
		{name: "padded", role: RolePtr(" admin"), expect: false},
		{name: "superuser", role: RolePtr("superuser"), expect: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAdminRole(tc.role); got != tc.expect {
				t.Fatalf("IsAdminRole(%v) = %v, want %v", tc.role, got, tc.expect)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole(" admin "); !ok || role != RoleAdmin {
		t.Fatalf("expected admin, got %q (%v)", role, ok)
	}
	if _, ok := ParseRole("owner"); ok {
		t.Fatal("owner must not parse as a valid role")
	}
}

func TestGetAllRolesAreValid(t *testing.T) {
	roles := GetAllRoles()
	if len(roles) != 3 {
		t.Fatalf("expected 3 roles, got %v", roles)
	}
	for _, role := range roles {
		if !role.IsValid() {
			t.Fatalf("%q should be valid", role)
		}
	}
	if UserRole("Admin").IsValid() {
		t.Fatal("role matching is case sensitive")
	}
}

func TestUserIdentity(t *testing.T) {
	id := uuid.New()
	u := &User{ID: id, Name: "Ana", Email: "ana@example.com"}

	identity := NewUserIdentity(u)
	if identity.ID() != id.String() || identity.Name() != "Ana" || identity.Email() != "ana@example.com" {
		t.Fatalf("unexpected identity projection: %+v", identity)
	}
	if identity.Role() != "" {
		t.Fatalf("expected empty role, got %q", identity.Role())
	}

	u.Role = RolePtr(RoleAdmin)
	if identity.Role() != "admin" {
		t.Fatalf("expected admin role, got %q", identity.Role())
	}
}

func TestUserIsDeleted(t *testing.T) {
	u := &User{}
	if u.IsDeleted() {
		t.Fatal("fresh user should not be deleted")
	}
	now := time.Now()
	u.DeletedAt = &now
	if !u.IsDeleted() {
		t.Fatal("user with deleted_at should be deleted")
	}
}

func TestUserListFilterNormalize(t *testing.T) {
	f := UserListFilter{Page: 0, Limit: 500, Search: "  ana "}.Normalize()
	if f.Page != 1 || f.Limit != 100 || f.Search != "ana" {
		t.Fatalf("unexpected normalized filter: %+v", f)
	}
	if f.Offset() != 0 {
		t.Fatalf("unexpected offset %d", f.Offset())
	}

	p := NewPagination(2, 10, 21)
	if p.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", p.TotalPages)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ana@Example.COM "); got != "ana@example.com" {
		t.Fatalf("unexpected email %q", got)
	}
}
