package auth

import (
	"context"
	"strings"
	"time"
)

// BearerScheme is the only accepted Authorization scheme
const BearerScheme = "Bearer"

// LoginResult is what a successful login hands back to the handler
type LoginResult struct {
	User  *User
	Token IssuedToken
}

type Auther struct {
	provider       *UserProvider
	store          UserStore
	tokenService   TokenService
	tokenValidator TokenValidator
	logger         Logger
	activitySink   ActivitySink
	metrics        *Metrics
	now            func() time.Time
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator. tokenService issues the
// credentials handed out by Login and is the default verification backend.
func NewAuthenticator(store UserStore, tokenService TokenService) *Auther {
	return &Auther{
		provider:     NewUserProvider(store),
		store:        store,
		tokenService: tokenService,
		logger:       defLogger,
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	s.provider.WithLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator swaps the verification backend, e.g. a delegated or
// JWKS validator. Issuance still goes through the token service.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// WithPasswordHasher overrides the hasher used by Login
func (s *Auther) WithPasswordHasher(h PasswordAuthenticator) *Auther {
	s.provider.WithHasher(h)
	return s
}

// WithMetrics enables outcome counters
func (s *Auther) WithMetrics(m *Metrics) *Auther {
	s.metrics = m
	return s
}

// WithClock injects the clock used for activity timestamps
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials, stamps last_login_at and issues a token.
// Nothing is written when verification fails.
func (s *Auther) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.provider.VerifyIdentity(ctx, email, password)
	if err != nil {
		s.metrics.observeLogin(err)
		s.logger.Warn("login rejected", "error", err)
		actor := ActorRef{Type: "unknown"}
		userID := ""
		if user != nil {
			actor = ActorRef{ID: user.ID.String(), Type: "user"}
			userID = user.ID.String()
		}
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, actor, userID, map[string]any{
			"email": NormalizeEmail(email),
			"error": err.Error(),
		})
		return nil, err
	}

	token, err := s.tokenService.Generate(user.ID.String())
	if err != nil {
		s.metrics.observeLogin(err)
		s.logger.Error("login failed to issue token", "error", err)
		return nil, asDependency(err, "failed to issue token")
	}

	if err := s.store.TrackSuccessfulLogin(ctx, user); err != nil {
		// the credential is already valid, a missed timestamp must not block it
		s.logger.Error("login failed to track last login", "user_id", user.ID, "error", err)
	}

	s.metrics.observeLogin(nil)
	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), nil)

	return &LoginResult{User: user, Token: token}, nil
}

// Authenticate runs the full verification pipeline on a raw Authorization
// header value: extraction, offline validation, then the live record check.
func (s *Auther) Authenticate(ctx context.Context, authorization string) (*Principal, error) {
	raw, err := ExtractBearerToken(authorization)
	if err != nil {
		s.metrics.observeVerification(err)
		return nil, err
	}

	claims, err := s.SessionFromToken(ctx, raw)
	if err != nil {
		s.metrics.observeVerification(err)
		return nil, err
	}

	principal, err := s.PrincipalFromClaims(ctx, claims)
	s.metrics.observeVerification(err)
	if err != nil {
		return nil, err
	}
	return principal, nil
}

// SessionFromToken performs the offline checks only
func (s *Auther) SessionFromToken(ctx context.Context, raw string) (AuthClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrTokenMissing
	}

	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(ctx, raw)
	if err != nil {
		if ClassifyError(err) == KindDependency {
			s.logger.Error("token validation backend failed", "error", err)
			return nil, asDependency(err, "token validation failed")
		}
		s.logger.Debug("token validation rejected", "error", err)
		if ClassifyError(err) != KindAuthentication {
			return nil, withCause(ErrTokenMalformed, err, nil)
		}
		return nil, err
	}

	if claims == nil || claims.UserID() == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// PrincipalFromClaims re-resolves the subject against the live record. The
// account state is read on every call so deactivation applies to tokens
// that are still within their validity window.
func (s *Auther) PrincipalFromClaims(ctx context.Context, claims AuthClaims) (*Principal, error) {
	if claims == nil {
		return nil, ErrTokenMalformed
	}

	user, err := s.store.GetByID(ctx, claims.UserID())
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("principal lookup failed", "subject", claims.UserID(), "error", err)
		return nil, asDependency(err, "failed to resolve principal")
	}

	if user == nil || user.IsDeleted() {
		return nil, ErrUserNotFound
	}

	if !user.Active {
		return nil, ErrAccountDisabled
	}

	return NewPrincipal(user), nil
}

// ExtractBearerToken parses an Authorization header value. Anything other
// than "Bearer <token>" is treated as a missing token.
func ExtractBearerToken(authorization string) (string, error) {
	authorization = strings.TrimSpace(authorization)
	l := len(BearerScheme)
	if len(authorization) <= l+1 || !strings.EqualFold(authorization[:l], BearerScheme) || authorization[l] != ' ' {
		return "", ErrTokenMissing
	}

	token := strings.TrimSpace(authorization[l+1:])
	if token == "" {
		return "", ErrTokenMissing
	}
	return token, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}
