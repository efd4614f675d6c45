// Package server wires the Echo application together.
package server

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"jobtrack/internal/cache"
	"jobtrack/internal/config"
	"jobtrack/internal/database"
	"jobtrack/internal/handlers"
	"jobtrack/internal/pipeline"
	"jobtrack/internal/review"
)

// Server represents the application server
type Server struct {
	echo     *echo.Echo
	db       *sqlx.DB
	store    *database.Store
	pipeline *pipeline.Pipeline
	resolver *review.Resolver
	config   *config.Config
	logger   zerolog.Logger
	cache    *cache.Cache
}

// New creates a new server instance
func New(cfg *config.Config, db *sqlx.DB, store *database.Store, pipe *pipeline.Pipeline, resolver *review.Resolver, logger zerolog.Logger) *Server {
	return &Server{
		config:   cfg,
		db:       db,
		store:    store,
		pipeline: pipe,
		resolver: resolver,
		logger:   logger,
		cache:    cache.New(),
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			s.logger.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	// Middleware
	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Hide Echo banner
	s.echo.HideBanner = true

	s.setupRoutes()
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health endpoints (keep at root level for monitoring)
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.db))

	api.GET("/applications", handlers.ListApplicationsHandler(s.store, s.cache))
	api.GET("/applications/:id", handlers.GetApplicationHandler(s.store))
	api.GET("/reviews", handlers.ListReviewsHandler(s.store))
	api.POST("/reviews/:id/resolve", handlers.ResolveReviewHandler(s.resolver, s.cache))
	api.GET("/stats", handlers.StatsHandler(s.store))
	api.POST("/import", handlers.ImportHandler(s.pipeline, s.cache, s.logger))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}
