package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenExpiration is the lifetime of issued bearer tokens
const DefaultTokenExpiration = 24 * time.Hour

// ErrMissingSigningKey is returned at construction time when no secret is configured
var ErrMissingSigningKey = goerrors.New("token signing key is required", goerrors.CategoryInternal).
	WithTextCode("MISSING_SIGNING_KEY").
	WithCode(goerrors.CodeInternal)

// IssuedToken is the credential issuance contract returned to login and
// registration handlers
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresIn string    `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption customizes the token service
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects the clock used for issuance and expiry checks
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// NewTokenService creates a new TokenService instance. An empty signing key
// is a configuration error, there is no development fallback.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, audience jwt.ClaimStrings, logger Logger, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	if ttl <= 0 {
		ttl = DefaultTokenExpiration
	}

	ts := &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		audience:   audience,
		logger:     normalizeLogger(logger),
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

var _ TokenService = (*TokenServiceImpl)(nil)

// Generate creates a signed token for userID
func (ts *TokenServiceImpl) Generate(userID string) (IssuedToken, error) {
	if userID == "" {
		return IssuedToken{}, goerrors.New("user id is required to issue a token", goerrors.CategoryBadInput)
	}

	now := ts.now()
	claims := newSessionClaims(userID, ts.issuer, ts.audience, now, ts.ttl)

	token, err := ts.SignClaims(claims)
	if err != nil {
		return IssuedToken{}, err
	}

	return IssuedToken{
		Token:     token,
		ExpiresIn: FormatTTL(ts.ttl),
		ExpiresAt: now.Add(ts.ttl),
	}, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", DependencyError(err, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
// Signature is checked before expiry, so "expired" implies a genuine token.
func (ts *TokenServiceImpl) Validate(_ context.Context, tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		// the parser checks a single expected audience, issued tokens carry all of them
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("token service rejected unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, withCause(ErrTokenExpired, err, nil)
		}
		return nil, withCause(ErrTokenMalformed, err, map[string]any{"cause": err.Error()})
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		ts.logger.Warn("token service could not decode claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// TTL returns the configured token lifetime
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}

// FormatTTL renders a lifetime the way clients expect it, "24h", "90m", "45s"
func FormatTTL(ttl time.Duration) string {
	switch {
	case ttl%time.Hour == 0:
		return fmt.Sprintf("%dh", int64(ttl/time.Hour))
	case ttl%time.Minute == 0:
		return fmt.Sprintf("%dm", int64(ttl/time.Minute))
	default:
		return fmt.Sprintf("%ds", int64(ttl/time.Second))
	}
}
