package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/omafgen/internal/config"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/health"
	"github.com/zsiec/omafgen/internal/logger"
	"github.com/zsiec/omafgen/internal/runner"
)

// ShutdownTimeout bounds the graceful shutdown of the status server.
const ShutdownTimeout = 5 * time.Second

// Server is the status server that runs next to a pipeline run.
type Server struct {
	config       *config.MetricsConfig
	router       *mux.Router
	httpServer   *http.Server
	logger       *logrus.Logger
	healthMgr    *health.Manager
	progress     *runner.Progress
	errorHandler *apperrors.ErrorHandler
}

// New creates a server with all routes registered.
func New(cfg *config.MetricsConfig, log *logrus.Logger, healthMgr *health.Manager, progress *runner.Progress) *Server {
	s := &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		logger:       log,
		healthMgr:    healthMgr,
		progress:     progress,
		errorHandler: apperrors.NewErrorHandler(log),
	}
	s.setupRoutes()
	return s
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return apperrors.WrapIOError(err, "failed to listen for status server")
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.WithField("addr", listener.Addr().String()).Info("Starting status server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown status server: %w", err)
	}
	s.logger.Debug("Status server shutdown complete")
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(logger.RequestLoggerMiddleware(logger.FromLogrus(s.logger)))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods("GET")

	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")
	s.router.HandleFunc("/progress", s.handleProgress).Methods("GET")
	s.router.Handle(s.metricsPath(), promhttp.Handler()).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

func (s *Server) metricsPath() string {
	if s.config.Path == "" {
		return "/metrics"
	}
	return s.config.Path
}

// GetRouter returns the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
