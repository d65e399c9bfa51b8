package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup       = "header:" + fiber.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenValidator interface for validating tokens without import cycles
// This mirrors the TokenValidator interface from the auth package
type TokenValidator interface {
	Validate(ctx context.Context, tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function to TokenValidator
type TokenValidatorFunc func(ctx context.Context, tokenString string) (AuthClaims, error)

func (f TokenValidatorFunc) Validate(ctx context.Context, tokenString string) (AuthClaims, error) {
	return f(ctx, tokenString)
}

// AuthClaims interface for structured claims without import cycles
type AuthClaims interface {
	Subject() string
	UserID() string
}

// ValidationListener is invoked after a token has been validated and before
// the request proceeds. Returning an error rejects the request.
type ValidationListener func(c *fiber.Ctx, claims AuthClaims) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	ContextKey     string
	// TokenLookup is a comma separated list of "<source>:<name>" pairs,
	// source being one of header, query, param or cookie.
	TokenLookup string
	AuthScheme  string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator

	// ContextEnricher propagates claims to the request user context.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context

	// ValidationListeners are invoked in order after token validation succeeds.
	ValidationListeners []ValidationListener

	// StoreClaims controls whether the validated claims are stored in
	// locals under ContextKey. Listeners that store their own value under
	// the same key should leave it false.
	StoreClaims bool
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(c.UserContext(), raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if cfg.StoreClaims {
			c.Locals(cfg.ContextKey, claims)
		}

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		if err := cfg.runValidationListeners(c, claims); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		return cfg.SuccessHandler(c)
	}
}

// ExtractRawToken runs the extractors in order and returns the first token found
func ExtractRawToken(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	if len(extractors) == 0 {
		return "", ErrJWTMissingOrMalformed
	}

	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
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

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(c *fiber.Ctx, claims AuthClaims) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, claims); err != nil {
			return err
		}
	}
	return nil
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)
	authScheme := resolveScheme(authSchemes...)

	for _, l := range parseTokenLookup(tokenLookup) {
		switch l.source {
		case "header":
			extractors = append(extractors, jwtFromHeader(l.name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(l.name))
		case "param":
			extractors = append(extractors, jwtFromParam(l.name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(l.name))
		}
	}

	return extractors
}

type tokenLookup struct {
	source string
	name   string
}

// parseTokenLookup splits "header:Authorization,cookie:jwt,query:auth_token,param:token".
// Malformed pairs are skipped.
func parseTokenLookup(lookup string) []tokenLookup {
	out := make([]tokenLookup, 0)
	for _, rootPart := range strings.Split(lookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if name == "" {
			continue
		}
		out = append(out, tokenLookup{source: source, name: name})
	}
	return out
}

func resolveScheme(authSchemes ...string) string {
	if len(authSchemes) > 0 && strings.TrimSpace(authSchemes[0]) != "" {
		return strings.TrimSpace(authSchemes[0])
	}
	return "Bearer"
}

// schemeToken returns the credential after "<scheme> ". The scheme must be
// followed by a single space and a non empty token.
func schemeToken(value, authScheme string) (string, error) {
	a := strings.TrimSpace(value)
	l := len(authScheme)
	if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
		if token := strings.TrimSpace(a[l+1:]); token != "" {
			return token, nil
		}
	}
	return "", ErrJWTMissingOrMalformed
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		return schemeToken(c.Get(header), authScheme)
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
