package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/mavi3006/hotel-auth/middleware/jwtware"
)

// InternalErrorMessage replaces the message of every 500 response
const InternalErrorMessage = "Internal server error"

// ValidationListener runs after the principal has been resolved
type ValidationListener = jwtware.ValidationListener

type RouteAuthenticator struct {
	auth         Authenticator
	gate         *RoleGate
	cfg          Config
	metrics      *Metrics
	listeners    []ValidationListener
	Logger       Logger
	ErrorHandler func(c *fiber.Ctx, err error) error
}

// NewHTTPAuthenticator returns the fiber middleware factory. gate may be nil
// when no route needs admin privileges.
func NewHTTPAuthenticator(auther Authenticator, gate *RoleGate, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, errors.New("auth: authenticator is required")
	}
	if cfg == nil {
		return nil, errors.New("auth: config is required")
	}

	a := &RouteAuthenticator{
		auth:   auther,
		gate:   gate,
		cfg:    cfg,
		Logger: defLogger,
	}
	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	return a
}

// WithMetrics counts the outcome of every protected request
func (a *RouteAuthenticator) WithMetrics(m *Metrics) *RouteAuthenticator {
	a.metrics = m
	return a
}

// WithValidationListeners adds listeners that run once the principal has
// been resolved. A listener error rejects the request.
func (a *RouteAuthenticator) WithValidationListeners(listeners ...ValidationListener) *RouteAuthenticator {
	a.listeners = append(a.listeners, listeners...)
	return a
}

func (a *RouteAuthenticator) contextKey() string {
	if key := a.cfg.GetContextKey(); key != "" {
		return key
	}
	return DefaultContextKey
}

// ProtectedRoute verifies the bearer credential and the live account state.
// On success the Principal is stored in the fiber locals and the user context.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	cfg := jwtware.Config{
		ContextKey:  a.contextKey(),
		TokenLookup: a.cfg.GetTokenLookup(),
		AuthScheme:  a.cfg.GetAuthScheme(),
		TokenValidator: jwtware.TokenValidatorFunc(func(ctx context.Context, raw string) (jwtware.AuthClaims, error) {
			claims, err := a.auth.SessionFromToken(ctx, raw)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		ContextEnricher:     enrichWithClaims,
		ValidationListeners: append([]ValidationListener{a.resolvePrincipal}, a.listeners...),
		ErrorHandler:        a.authErrHandler,
	}

	return jwtware.New(cfg)
}

// SessionRoute is ProtectedRoute for handlers registered through go-router.
// Failures are returned so the app error handler renders them.
func (a *RouteAuthenticator) SessionRoute() router.MiddlewareFunc {
	key := a.contextKey()
	return jwtware.NewRouter(jwtware.RouterConfig{
		ContextKey:  key + ".claims",
		TokenLookup: a.cfg.GetTokenLookup(),
		AuthScheme:  a.cfg.GetAuthScheme(),
		TokenValidator: jwtware.TokenValidatorFunc(func(ctx context.Context, raw string) (jwtware.AuthClaims, error) {
			claims, err := a.auth.SessionFromToken(ctx, raw)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		ContextEnricher: enrichWithClaims,
		ValidationListeners: []func(router.Context, jwtware.AuthClaims) error{
			func(ctx router.Context, claims jwtware.AuthClaims) error {
				ac, ok := claims.(AuthClaims)
				if !ok {
					return ErrTokenMalformed
				}
				p, err := a.auth.PrincipalFromClaims(ctx.Context(), ac)
				if err != nil {
					return err
				}
				a.metrics.observeVerification(nil)
				ctx.Set(key, p)
				ctx.SetContext(WithPrincipal(ctx.Context(), p))
				return nil
			},
		},
		ErrorHandler: func(_ router.Context, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				err = ErrTokenMissing
			}
			a.metrics.observeVerification(err)
			return err
		},
	})
}

// RouterPrincipal returns the principal stored by SessionRoute
func RouterPrincipal(ctx router.Context, key string) (*Principal, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if p := router.GetContextValue[*Principal](ctx, key, nil); p != nil {
		return p, true
	}
	return PrincipalFromContext(ctx.Context())
}

// AdminRoute must be mounted after ProtectedRoute. It re-reads the role from
// the store and annotates the Principal with it.
func (a *RouteAuthenticator) AdminRoute() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if a.gate == nil {
			return a.ErrorHandler(c, DependencyError(errors.New("role gate not configured"), "admin route misconfigured"))
		}

		p, _ := GetPrincipal(c, a.contextKey())
		annotated, err := a.gate.Authorize(c.UserContext(), p)
		if err != nil {
			return a.ErrorHandler(c, err)
		}

		SetPrincipal(c, a.contextKey(), annotated)
		return c.Next()
	}
}

func (a *RouteAuthenticator) resolvePrincipal(c *fiber.Ctx, claims jwtware.AuthClaims) error {
	ac, ok := claims.(AuthClaims)
	if !ok {
		return ErrTokenMalformed
	}

	p, err := a.auth.PrincipalFromClaims(c.UserContext(), ac)
	if err != nil {
		return err
	}

	a.metrics.observeVerification(nil)
	SetPrincipal(c, a.contextKey(), p)
	return nil
}

func (a *RouteAuthenticator) authErrHandler(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		err = ErrTokenMissing
	}
	a.metrics.observeVerification(err)
	return a.ErrorHandler(c, err)
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	return WriteError(c, err, a.cfg.IsProduction(), a.Logger)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Errors  map[string]any `json:"errors,omitempty"`
	Path    string         `json:"path,omitempty"`
	Stack   string         `json:"stack,omitempty"`
}

// WriteError renders err as {"success": false, "message": ...}. Errors outside
// the taxonomy are treated as 500 and never leak their text. Outside production
// a 500 carries the trace recorded on the error itself, see errorTrace.
func WriteError(c *fiber.Ctx, err error, production bool, logger Logger) error {
	logger = normalizeLogger(logger)

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			richErr = fromFiberError(fiberErr)
		} else {
			richErr = DependencyError(err, "An unexpected server error occurred")
		}
	}

	status := StatusCode(richErr)
	resp := ErrorResponse{
		Success: false,
		Message: ErrorMessage(richErr),
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"error", err,
			"method", c.Method(),
			"path", c.Path(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		resp.Message = InternalErrorMessage
		if !production {
			resp.Stack = errorTrace(richErr)
		}
	} else {
		logger.Debug("request rejected",
			"status", status,
			"text_code", richErr.TextCode,
			"message", richErr.Message,
			"path", c.Path(),
		)
		if ClassifyError(richErr) == KindValidation && len(richErr.Metadata) > 0 {
			resp.Errors = richErr.Metadata
		}
	}

	return c.Status(status).JSON(resp)
}

// errorTrace is the stack captured when the error was built (DependencyError
// records one), or the file:line it was created at. Errors carrying neither
// produce an empty string.
func errorTrace(err *goerrors.Error) string {
	if len(err.StackTrace) > 0 {
		return err.StackTrace.String()
	}
	if err.HasLocation() {
		loc := err.GetLocation()
		return loc.Function + "\n\t" + loc.String()
	}
	return ""
}

// FiberErrorHandler adapts WriteError to fiber.Config.ErrorHandler
func FiberErrorHandler(production bool, logger Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return WriteError(c, err, production, logger)
	}
}

// NotFoundHandler answers unmatched routes with a JSON 404
func NotFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Success: false,
		Message: "Route not found",
		Path:    c.OriginalURL(),
	})
}

func fromFiberError(fe *fiber.Error) *goerrors.Error {
	var richErr *goerrors.Error
	switch {
	case fe.Code == http.StatusUnauthorized:
		richErr = goerrors.New(fe.Message, goerrors.CategoryAuth)
	case fe.Code == http.StatusForbidden:
		richErr = goerrors.New(fe.Message, goerrors.CategoryAuthz)
	case fe.Code == http.StatusNotFound:
		richErr = goerrors.New(fe.Message, goerrors.CategoryNotFound)
	case fe.Code >= 400 && fe.Code < 500:
		richErr = goerrors.New(fe.Message, goerrors.CategoryBadInput)
	default:
		richErr = goerrors.New(fe.Message, goerrors.CategoryInternal)
	}
	return richErr.WithCode(fe.Code)
}

func enrichWithClaims(ctx context.Context, claims jwtware.AuthClaims) context.Context {
	if ac, ok := claims.(AuthClaims); ok {
		return WithClaimsContext(ctx, ac)
	}
	return ctx
}
