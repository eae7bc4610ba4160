// Package server exposes the assistant calendar operations over HTTP.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"mira/internal/assistant"
	"mira/internal/auth"
	"mira/internal/config"
)

// Server holds the fiber app and the collaborators the handlers need.
type Server struct {
	app       *fiber.App
	assistant *assistant.Service
	resolver  auth.UserResolver
	cfg       *config.Config
	logger    *slog.Logger
}

// New builds the HTTP server: middleware, auth, rate limiting, and the
// assistant calendar routes.
func New(cfg *config.Config, svc *assistant.Service, resolver auth.UserResolver, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:     "mira",
		ReadTimeout: 30 * time.Second,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	s := &Server{
		app:       app,
		assistant: svc,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger,
	}

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-User-Id,X-User-Email",
	}))

	app.Get("/healthz", s.handleHealth)

	cal := app.Group("/assistant/calendar", s.requireUser)
	cal.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Auth runs first, so the resolved user ID is the key. IP is
			// only a fallback if a route is ever mounted before auth.
			if userID, ok := c.Locals(localUserID).(string); ok && userID != "" {
				return userID
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "too many requests, slow down",
			})
		},
	}))

	cal.Post("/check-conflicts", s.handleCheckConflicts)
	cal.Post("/schedule", s.handleSchedule)
	cal.Post("/reschedule", s.handleReschedule)
	cal.Post("/cancel", s.handleCancel)
	cal.Get("/agenda.ics", s.handleAgenda)

	return s
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("http server listening", "addr", s.cfg.ListenAddr)
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
