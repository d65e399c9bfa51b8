package jwtware

import (
	"context"
	"net/http"

	"github.com/goliatone/go-router"
)

// RouterConfig configures the go-router flavor of the middleware. Claims
// are always stored in the request store under ContextKey.
type RouterConfig struct {
	Filter       func(router.Context) bool
	ErrorHandler func(router.Context, error) error
	ContextKey   string
	TokenLookup  string
	AuthScheme   string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator

	ContextEnricher     func(c context.Context, claims AuthClaims) context.Context
	ValidationListeners []func(ctx router.Context, claims AuthClaims) error
}

// RouterExtractor pulls the raw credential out of a router.Context
type RouterExtractor func(ctx router.Context) (string, error)

// NewRouter returns the middleware for routes registered through go-router.
// Extraction and validation follow New.
func NewRouter(config RouterConfig) router.MiddlewareFunc {
	cfg := getDefaultRouterConfig(config)
	extractors := GetRouterExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx)
			}

			raw, err := ExtractRawTokenFromContext(ctx, extractors)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.TokenValidator.Validate(ctx.Context(), raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Set(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))
			}

			for _, listener := range cfg.ValidationListeners {
				if listener == nil {
					continue
				}
				if err := listener(ctx, claims); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			return next(ctx)
		}
	}
}

// ExtractRawTokenFromContext runs the extractors in order and returns the first token found
func ExtractRawTokenFromContext(ctx router.Context, extractors []RouterExtractor) (string, error) {
	if len(extractors) == 0 {
		return "", ErrJWTMissingOrMalformed
	}

	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

// GetRouterExtractors builds extractors for the same lookup syntax as GetExtractors
func GetRouterExtractors(tokenLookup string, authSchemes ...string) []RouterExtractor {
	extractors := make([]RouterExtractor, 0)
	authScheme := resolveScheme(authSchemes...)

	for _, l := range parseTokenLookup(tokenLookup) {
		name := l.name
		switch l.source {
		case "header":
			extractors = append(extractors, func(ctx router.Context) (string, error) {
				return schemeToken(ctx.Header(name), authScheme)
			})
		case "query":
			extractors = append(extractors, func(ctx router.Context) (string, error) {
				return nonEmpty(ctx.Query(name, ""))
			})
		case "param":
			extractors = append(extractors, func(ctx router.Context) (string, error) {
				return nonEmpty(ctx.Param(name, ""))
			})
		case "cookie":
			extractors = append(extractors, func(ctx router.Context) (string, error) {
				return nonEmpty(cookieValue(ctx.Header("Cookie"), name))
			})
		}
	}

	return extractors
}

func getDefaultRouterConfig(cfg RouterConfig) RouterConfig {
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			return ctx.JSON(http.StatusUnauthorized, map[string]any{
				"success": false,
				"message": "Unauthorized: invalid token",
			})
		}
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// cookieValue reads one cookie from a raw Cookie header. router.Context
// exposes headers only.
func cookieValue(header, name string) string {
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func nonEmpty(token string) (string, error) {
	if token == "" {
		return "", ErrJWTMissingOrMalformed
	}
	return token, nil
}
