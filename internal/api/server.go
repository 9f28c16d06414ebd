package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logrouter/config"
	"example.com/backstage/services/logrouter/internal/api/handlers"
	"example.com/backstage/services/logrouter/internal/api/middleware"
	"example.com/backstage/services/logrouter/internal/metrics"
)

// maxBodyBytes caps a delivery; Firehose buffers at most a few MiB
const maxBodyBytes = 16 << 20

// Server represents the HTTP ingest server
type Server struct {
	config     config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	processor  handlers.Processor
	metrics    *metrics.Metrics
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, processor handlers.Processor, m *metrics.Metrics) *Server {
	server := &Server{
		config:    cfg,
		processor: processor,
		metrics:   m,
	}
	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Timeout,
	}
	return server
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	})

	handlers.NewFirehoseHandler(s.processor, s.config.AccessKey).RegisterRoutes(router)
	handlers.NewMetricsHandler(s.metrics).RegisterRoutes(router)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
