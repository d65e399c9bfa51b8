package auth

import (
	"context"
)

// RoleGate authorizes an authenticated principal against the admin
// allow-list. The role is read from the live record on every check, it is
// never taken from the token or from the principal built at authentication.
type RoleGate struct {
	store   UserStore
	logger  Logger
	metrics *Metrics
}

// NewRoleGate returns a gate backed by store
func NewRoleGate(store UserStore) *RoleGate {
	return &RoleGate{
		store:  store,
		logger: defLogger,
	}
}

func (g *RoleGate) WithLogger(logger Logger) *RoleGate {
	g.logger = normalizeLogger(logger)
	return g
}

// WithMetrics enables outcome counters
func (g *RoleGate) WithMetrics(m *Metrics) *RoleGate {
	g.metrics = m
	return g
}

// Authorize returns a copy of p annotated with the resolved role, or one of
// ErrAdminRequired, ErrPrincipalNotFound or a dependency error.
func (g *RoleGate) Authorize(ctx context.Context, p *Principal) (*Principal, error) {
	out, err := g.authorize(ctx, p)
	g.metrics.observeRoleCheck(err)
	return out, err
}

func (g *RoleGate) authorize(ctx context.Context, p *Principal) (*Principal, error) {
	if p == nil || p.ID == "" {
		return nil, ErrPrincipalNotFound
	}

	user, err := g.store.GetByID(ctx, p.ID)
	if err != nil {
		if IsRecordNotFound(err) {
			g.logger.Warn("role gate principal vanished", "user_id", p.ID)
			return nil, ErrPrincipalNotFound
		}
		g.logger.Error("role gate lookup failed", "user_id", p.ID, "error", err)
		return nil, asDependency(err, "failed to resolve principal role")
	}

	if !IsAdminRole(user.Role) {
		g.logger.Debug("role gate denied", "user_id", p.ID, "role", user.RoleName())
		return nil, ErrAdminRequired
	}

	return p.WithRole(*user.Role), nil
}
