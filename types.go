package auth

import (
	"context"
	"time"
)

// Logger is satisfied by *slog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() time.Duration
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetStrategy() []string
	IsProduction() bool
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Name() string
	Email() string
	Role() string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// TokenService issues and validates locally signed tokens
type TokenService interface {
	TokenValidator
	Generate(userID string) (IssuedToken, error)
	SignClaims(claims *JWTClaims) (string, error)
}

// UserStore is the read path the authenticator needs from the credential store.
// Lookups only ever see records that have not been soft deleted.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, authorization string) (*Principal, error)
	SessionFromToken(ctx context.Context, token string) (AuthClaims, error)
	PrincipalFromClaims(ctx context.Context, claims AuthClaims) (*Principal, error)
}
