// Package server assembles the hotel API: storage, token validation
// strategy, auth middleware, the users and rooms routes and the ambient
// fiber middleware stack.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-router"
	auth "github.com/mavi3006/hotel-auth"
	"github.com/mavi3006/hotel-auth/activitymap"
	"github.com/mavi3006/hotel-auth/config"
	"github.com/mavi3006/hotel-auth/repository"
	"github.com/mavi3006/hotel-auth/rooms"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
)

const (
	AppName = "Hotel Mavi API"
	Version = "1.0.0"
)

type Server struct {
	App *fiber.App

	adapter router.Server[*fiber.App]
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

type options struct {
	accessLog io.Writer
	registry  *prometheus.Registry
}

type Option func(*options)

// WithAccessLog redirects the HTTP access log, os.Stdout by default
func WithAccessLog(w io.Writer) Option {
	return func(o *options) {
		o.accessLog = w
	}
}

// WithRegistry sets the registry served on /metrics
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// New wires every component over db. cfg must already be validated.
func New(cfg *config.Config, db *bun.DB, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := &options{accessLog: os.Stdout}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	metrics, err := auth.NewMetrics(o.registry)
	if err != nil {
		return nil, err
	}

	repo := repository.NewManager(db)
	repo.MustValidate()

	tokens, err := auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		logger.With("component", "tokens"),
	)
	if err != nil {
		return nil, err
	}

	validator, closers, err := NewTokenValidator(cfg, tokens, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, logger: logger, closers: closers}

	authLogger := logger.With("component", "auth")
	activity := auth.MultiActivitySink{
		auth.NewLogActivitySink(logger.With("component", "activity")),
		activitymap.NewSink(db),
	}

	authenticator := auth.NewAuthenticator(repo.Users(), tokens).
		WithLogger(authLogger).
		WithActivitySink(activity).
		WithMetrics(metrics).
		WithTokenValidator(validator)

	gate := auth.NewRoleGate(repo.Users()).
		WithLogger(authLogger).
		WithMetrics(metrics)

	mw, err := auth.NewHTTPAuthenticator(authenticator, gate, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	mw.WithLogger(authLogger).WithMetrics(metrics)

	users := auth.NewUsersController(repo, authenticator, tokens,
		auth.WithControllerLogger(logger.With("component", "users")),
		auth.WithControllerActivitySink(activity),
		auth.WithControllerProduction(cfg.IsProduction()),
		auth.WithControllerContextKey(cfg.GetContextKey()),
	)

	roomsController := rooms.NewController(repo.Rooms(),
		rooms.WithLogger(logger.With("component", "rooms")),
		rooms.WithProduction(cfg.IsProduction()),
		rooms.WithContextKey(cfg.GetContextKey()),
	)

	s.adapter = router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:      AppName,
			ErrorHandler: auth.FiberErrorHandler(cfg.IsProduction(), logger),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			BodyLimit:    10 * 1024 * 1024,
		})

		app.Use(recover.New(recover.Config{EnableStackTrace: !cfg.IsProduction()}))
		app.Use(requestid.New())
		app.Use(fiberlogger.New(fiberlogger.Config{
			Output: o.accessLog,
			Format: "${time} ${locals:requestid} ${status} - ${method} ${path} ${latency}\n",
		}))
		app.Use(helmet.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.FrontendURL,
			AllowCredentials: true,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		}))
		return app
	})

	app := s.adapter.WrappedRouter()
	r := s.adapter.Router()

	r.Get("/health", s.health).SetName("health")
	r.Get("/", s.banner).SetName("banner")
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})))

	api := app.Group("/api", rateLimiter(cfg.RateLimit.APIMax, cfg.RateLimit.APIWindow,
		"Too many requests, please try again later"))

	loginLimiter := rateLimiter(cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow,
		"Too many login attempts, please try again later")

	auth.RegisterUserRoutes(api.Group("/users"), users, mw, loginLimiter)
	rooms.RegisterRoutes(api.Group("/rooms"), roomsController, mw)
	r.Group("/api").Get("/session", s.session, mw.SessionRoute()).SetName("session")

	app.Use(auth.NotFoundHandler)

	s.App = app
	return s, nil
}

// Listen blocks serving on the configured port
func (s *Server) Listen() error {
	s.logger.Info("server listening",
		"addr", s.cfg.Addr(),
		"mode", s.cfg.Mode,
		"strategy", s.cfg.GetStrategy(),
	)
	return s.adapter.Serve(s.cfg.Addr())
}

// Shutdown drains in flight requests then stops background work
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.adapter.Shutdown(ctx)
	s.Close()
	return err
}

// Close stops background work started by the token validators
func (s *Server) Close() {
	for _, c := range s.closers {
		c()
	}
	s.closers = nil
}

func (s *Server) health(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"message":   AppName + " is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

func (s *Server) banner(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": AppName,
		"version": Version,
		"endpoints": map[string]string{
			"health":  "/health",
			"session": "/api/session",
			"users":   "/api/users",
			"rooms":   "/api/rooms",
			"metrics": "/metrics",
		},
	})
}

// session echoes the caller's principal and token lifetime
func (s *Server) session(ctx router.Context) error {
	p, ok := auth.RouterPrincipal(ctx, s.cfg.GetContextKey())
	if !ok {
		return auth.ErrTokenMissing
	}

	data := map[string]any{"user": p}
	if claims, ok := auth.GetClaims(ctx.Context()); ok {
		data["expiresAt"] = claims.Expires().UTC().Format(time.RFC3339)
		data["issuedAt"] = claims.IssuedAt().UTC().Format(time.RFC3339)
	}

	return ctx.JSON(http.StatusOK, auth.SuccessResponse{
		Success: true,
		Data:    data,
	})
}

func rateLimiter(limit int, window time.Duration, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(auth.SuccessResponse{
				Success: false,
				Message: message,
			})
		},
	})
}
