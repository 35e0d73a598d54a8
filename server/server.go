// Package server hosts the HTTP surface of hivebridge: the install-intent
// and webhook-reconciliation API plus the inbound GitHub delivery endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/stakwork/hivebridge/config"
	"github.com/stakwork/hivebridge/integrations"
	"github.com/stakwork/hivebridge/telemetry"
)

// Integrations is the slice of the integration service the server exposes.
type Integrations interface {
	RequestInstall(ctx context.Context, req integrations.InstallRequest) (integrations.InstallResult, error)
	EnsureRepoWebhook(ctx context.Context, userID, workspaceID, repositoryURL, callbackURL string) (integrations.WebhookResult, error)
	VerifyAndEnqueueDelivery(ctx context.Context, d integrations.Delivery) error
}

// Server is the hivebridge HTTP server.
type Server struct {
	logger       zerolog.Logger
	metrics      *telemetry.Metrics
	integrations Integrations
	port         int
	server       *http.Server
}

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(data)
	rw.size += size
	return size, err
}

type options struct {
	logger       zerolog.Logger
	metrics      *telemetry.Metrics
	integrations Integrations
	port         int
}

// Option is a functional option that configures the server.
type Option func(*options)

// WithLogger sets the logger for the server.
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithMetrics sets the metrics instance for the server.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(opts *options) {
		opts.metrics = metrics
	}
}

// WithIntegrations sets the integration service handlers delegate to.
func WithIntegrations(service Integrations) Option {
	return func(opts *options) {
		opts.integrations = service
	}
}

// WithConfig pulls the listen port from the service configuration.
func WithConfig(cfg config.Config) Option {
	return func(opts *options) {
		opts.port = cfg.Port
	}
}

// WithPort sets the port for the server. 0 picks a random free port.
func WithPort(port int) Option {
	return func(opts *options) {
		opts.port = port
	}
}

// New creates a new Server.
func New(options ...Option) (*Server, error) {
	opts := defaultOptions()
	for _, opt := range options {
		opt(opts)
	}

	if opts.integrations == nil {
		return nil, errors.New("integration service is required")
	}

	return &Server{
		logger:       opts.logger,
		metrics:      opts.metrics,
		integrations: opts.integrations,
		port:         opts.port,
	}, nil
}

func defaultOptions() *options {
	return &options{
		logger: zerolog.Nop(),
		port:   0,
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/github/install", s.handleInstall).Methods(http.MethodPost)
	router.HandleFunc("/api/github/webhook", s.handleEnsureWebhook).Methods(http.MethodPost)
	router.HandleFunc("/webhooks/github/{workspaceSlug}", s.handleDelivery).Methods(http.MethodPost)
	return s.loggingMiddleware(router)
}

// loggingMiddleware logs all incoming HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		s.metrics.IncHTTPRequest(r.Context(), rw.statusCode, r.Method, r.URL.Path)

		s.logger.Trace().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status_code", rw.statusCode).
			Int("response_size", rw.size).
			Dur("duration", duration).
			Msg("Processed request")
	})
}

// Start starts the server and blocks until shutdown.
// It handles both programmatic shutdown (via context) and OS signals.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Info().Int("port", s.port).Msg("Starting server")

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		s.logger.Info().Msg("Server listening for requests")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		s.logger.Error().Err(err).Msg("Server error")
		return err
	case sig := <-sigChan:
		s.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		s.logger.Info().Msg("Context cancelled, shutting down")
	}

	return s.shutdown()
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	s.logger.Info().Msg("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Graceful shutdown failed, forcing close")
		if closeErr := s.server.Close(); closeErr != nil {
			s.logger.Error().Err(closeErr).Msg("Failed to force close server")
			return closeErr
		}
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Stop programmatically stops the server (for testing or programmatic control).
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.shutdown()
}
