package jwks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	auth "github.com/mavi3006/hotel-auth"
)

// ErrNoKeySet is returned when the config carries no JWKS URL
var ErrNoKeySet = errors.New("jwks: at least one key set URL is required")

// TokenValidator validates tokens signed by keys published in remote JWK sets.
type TokenValidator struct {
	keys   *keyfunc.MultipleJWKS
	parser *jwt.Parser
	logger auth.Logger
}

var _ auth.TokenValidator = (*TokenValidator)(nil)

// NewTokenValidator fetches every configured key set once and starts the
// background refresh. Call Close to stop it.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	urls := cfg.urls()
	if len(urls) == 0 {
		return nil, ErrNoKeySet
	}

	logger := cfg.Logger
	if logger == nil {
		logger = auth.NewLogger("development", "info").With("component", "jwks")
	}

	opts := keyfuncOptions(logger, cfg.refreshInterval())
	sets := make(map[string]keyfunc.Options, len(urls))
	for _, u := range urls {
		sets[u] = opts
	}

	keys, err := keyfunc.GetMultiple(sets, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: failed to get key sets: %w", err)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.algorithms()),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(cfg.Leeway))
	}

	return &TokenValidator{
		keys:   keys,
		parser: jwt.NewParser(parserOpts...),
		logger: logger,
	}, nil
}

// Validate implements auth.TokenValidator.
func (v *TokenValidator) Validate(ctx context.Context, tokenString string) (auth.AuthClaims, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.DependencyError(err, "token validation cancelled")
	}

	claims := &auth.JWTClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keys.Keyfunc)
	if err != nil {
		return nil, normalizeValidationError(err)
	}
	if !token.Valid || claims.Subject() == "" {
		return nil, normalizeValidationError(jwt.ErrTokenInvalidClaims)
	}

	return claims, nil
}

// Close stops the background refresh of every key set
func (v *TokenValidator) Close() {
	if v == nil || v.keys == nil {
		return
	}
	for _, set := range v.keys.JWKSets() {
		set.EndBackground()
	}
}

func keyfuncOptions(logger auth.Logger, refresh time.Duration) keyfunc.Options {
	return keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("failed to do a background refresh of JWT set", "error", err)
		},
		RefreshInterval:   refresh,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
}

func normalizeValidationError(err error) error {
	base := auth.ErrTokenMalformed
	// signature failures take precedence so forged tokens never read as expired
	if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		base = auth.ErrTokenExpired
	}

	clone := base.Clone()
	if clone == nil {
		return err
	}

	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": "jwks",
		"cause":    err.Error(),
	})
}
