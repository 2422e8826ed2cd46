// Package server exposes the PAM facade over HTTP as JSON, with bearer
// authentication, RFC 7807 problem responses, and operational endpoints.
package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/pam-core/internal/audit"
	"github.com/p-blackswan/pam-core/internal/health"
	"github.com/p-blackswan/pam-core/internal/metrics"
	"github.com/p-blackswan/pam-core/internal/pam"
)

// Config holds server configuration.
type Config struct {
	ListenAddr string
	Auth       AuthConfig
}

// Server is the PAM API fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	cfg      Config
}

// New creates and wires the API server.
func New(cfg Config, mgr *pam.Manager, sink *audit.MemorySink, checker *health.Checker, met *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	handlers := NewHandlers(mgr, sink, checker, logger)

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "server").Logger(),
		cfg:      cfg,
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(NewAuthMiddleware(cfg.Auth, logger))

	s.setupRoutes(met)
	return s
}

func (s *Server) setupRoutes(met *metrics.Metrics) {
	h := s.handlers

	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)
	s.app.Get("/metrics", adaptor.HTTPHandler(met.Handler()))

	api := s.app.Group("/api/v1")

	api.Post("/requests", h.RequestAccess)
	api.Get("/requests/:id", h.GetRequest)
	api.Post("/requests/:id/decision", h.DecideRequest)
	api.Post("/requests/:id/activate", h.ActivateSession)

	api.Post("/permissions/check", h.CheckPermission)

	api.Get("/sessions", h.ListActiveSessions)
	api.Get("/sessions/:id", h.GetSession)
	api.Post("/sessions/:id/activities", h.RecordActivity)
	api.Post("/sessions/:id/revoke", h.RevokeSession)

	api.Post("/emergency", h.RequestEmergencyAccess)

	api.Get("/roles", h.ListRoles)
	api.Get("/audit", h.ListAuditEvents)
}

// Listen starts serving. Blocks until shutdown.
func (s *Server) Listen() error {
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("API server listening")
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// errorHandler converts unhandled fiber errors into problem responses.
func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if fe, ok := err.(*fiber.Error); ok {
			code = fe.Code
		}
		logger.Error().Err(err).Str("path", c.Path()).Int("status", code).Msg("request failed")
		return problemResponse(c, code, "internal_error", "Internal Server Error", err.Error())
	}
}
