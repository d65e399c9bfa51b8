package supabase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/mavi3006/hotel-auth"
	"github.com/patrickmn/go-cache"
)

var (
	ErrMissingURL    = errors.New("supabase: URL is required")
	ErrMissingAPIKey = errors.New("supabase: API key is required")
)

// TokenValidator asks the identity API who owns a token.
type TokenValidator struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	ttl      time.Duration
	cache    *cache.Cache
	now      func() time.Time
	logger   auth.Logger
}

var _ auth.TokenValidator = (*TokenValidator)(nil)

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NewTokenValidator creates a delegated validator.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrMissingURL
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	v := &TokenValidator{
		endpoint: cfg.endpoint(),
		apiKey:   cfg.APIKey,
		timeout:  cfg.timeout(),
		ttl:      cfg.CacheTTL,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.logger == nil {
		v.logger = auth.NewLogger("development", "info").With("component", "supabase")
	}
	if v.ttl > 0 {
		v.cache = cache.New(v.ttl, 2*v.ttl)
	}
	return v, nil
}

// Validate implements auth.TokenValidator.
func (v *TokenValidator) Validate(ctx context.Context, tokenString string) (auth.AuthClaims, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.DependencyError(err, "token validation cancelled")
	}

	unverified := &auth.JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return nil, rejected(auth.ErrTokenMalformed, err)
	}

	key := cacheKey(tokenString)
	if v.cache != nil {
		if cached, found := v.cache.Get(key); found {
			return cached.(*auth.JWTClaims), nil
		}
	}

	code, body, errs := fiber.Get(v.endpoint).
		Set("apikey", v.apiKey).
		Set(fiber.HeaderAuthorization, "Bearer "+tokenString).
		Timeout(v.callTimeout(ctx)).
		Bytes()
	if len(errs) > 0 {
		v.logger.Error("identity provider unreachable", "error", errs[0])
		return nil, auth.DependencyError(errors.Join(errs...), "identity provider unreachable")
	}

	switch code {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		cause := fmt.Errorf("identity provider rejected token with status %d", code)
		if exp := unverified.Expires(); !exp.IsZero() && !exp.After(v.now()) {
			return nil, rejected(auth.ErrTokenExpired, cause)
		}
		return nil, rejected(auth.ErrTokenMalformed, cause)
	default:
		v.logger.Error("identity provider failed", "status", code)
		return nil, auth.DependencyError(
			fmt.Errorf("identity provider returned status %d", code),
			"identity provider failed",
		)
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, auth.DependencyError(err, "invalid identity provider response")
	}
	if user.ID == "" {
		return nil, rejected(auth.ErrTokenMalformed, errors.New("identity provider returned no user id"))
	}

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: unverified.ExpiresAt,
			IssuedAt:  unverified.RegisteredClaims.IssuedAt,
		},
		UID:   user.ID,
		Email: user.Email,
	}

	if ttl := v.cacheTTL(claims.Expires()); ttl > 0 {
		v.cache.Set(key, claims, ttl)
	}

	return claims, nil
}

func (v *TokenValidator) callTimeout(ctx context.Context) time.Duration {
	timeout := v.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := deadline.Sub(v.now()); left > 0 && left < timeout {
			timeout = left
		}
	}
	return timeout
}

// cacheTTL is zero when caching is off or the token has no usable expiry
func (v *TokenValidator) cacheTTL(exp time.Time) time.Duration {
	if v.cache == nil || exp.IsZero() {
		return 0
	}
	left := exp.Sub(v.now())
	if left <= 0 {
		return 0
	}
	if left < v.ttl {
		return left
	}
	return v.ttl
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func rejected(base *goerrors.Error, cause error) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = cause
	return clone.WithMetadata(map[string]any{
		"provider": "supabase",
		"cause":    cause.Error(),
	})
}
