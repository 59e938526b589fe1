// Package http exposes the workflow engine over a JSON API.
// Handlers translate requests into application calls and nothing more.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/garyjia/invoice-workflow/internal/application/dispatcher"
	"github.com/garyjia/invoice-workflow/internal/application/service"
	"github.com/garyjia/invoice-workflow/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	JWTSecret      string
	// RateLimit is a limiter rate such as "30-M" applied per actor to the
	// booking-form trigger and bulk routes; empty disables limiting
	RateLimit string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		RateLimit:    "30-M",
	}
}

// Services are the application services behind the API
type Services struct {
	Engine      workflow.WorkflowEngine
	Dispatcher  dispatcher.Dispatcher
	Notes       service.NoteService
	Timeline    service.TimelineService
	Delegations service.DelegationService
	Extraction  service.ExtractionService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) (*Server, error) {
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}

	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	if err := server.setupRoutes(); err != nil {
		return nil, err
	}
	return server, nil
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	if len(s.config.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = s.config.AllowedOrigins
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"}
		s.router.Use(cors.New(corsConfig))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() error {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := func(c *gin.Context) { c.Next() }
	if s.config.RateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(s.config.RateLimit)
		if err != nil {
			return fmt.Errorf("invalid rate limit %q: %w", s.config.RateLimit, err)
		}
		limited = rateLimitMiddleware(rate)
	}

	api := s.router.Group("/api", authMiddleware([]byte(s.config.JWTSecret)))
	{
		api.POST("/invoices", h.CreateInvoice)
		api.POST("/invoices/bulk/status", limited, h.BulkTransition)
		api.GET("/invoices/:id", h.GetInvoice)
		api.PATCH("/invoices/:id", h.EditInvoice)
		api.POST("/invoices/:id/status", h.Transition)
		api.GET("/invoices/:id/notes", h.ListNotes)
		api.POST("/invoices/:id/notes", h.AddNote)
		api.GET("/invoices/:id/timeline", h.Timeline)
		api.PUT("/invoices/:id/extracted-fields", h.SaveExtractedFields)
		api.GET("/invoices/:id/extracted-fields", h.GetExtractedFields)
		api.POST("/invoices/:id/notifications/retry", h.RetryNotifications)

		api.POST("/freelancer-invoices/:id/booking-form/trigger", limited, h.TriggerBookingForm)

		api.GET("/delegations", h.ListDelegations)
		api.POST("/delegations", h.CreateDelegation)
	}
	return nil
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
