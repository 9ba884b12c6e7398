package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/swiftgate/swiftgate/internal/api"
	"github.com/swiftgate/swiftgate/internal/auth"
	"github.com/swiftgate/swiftgate/internal/config"
	"github.com/swiftgate/swiftgate/internal/metrics"
	"github.com/swiftgate/swiftgate/internal/middleware"
	"github.com/swiftgate/swiftgate/internal/multidelete"
	"github.com/swiftgate/swiftgate/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// Server represents the swiftgate server
type Server struct {
	config         *config.Config
	httpServer     *http.Server
	storageBackend storage.Backend
	metricsManager metrics.Manager
	startTime      time.Time
}

// New creates a new swiftgate server
func New(cfg *config.Config) (*Server, error) {
	// Initialize storage backend
	storageBackend, err := storage.NewBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}

	return newServer(cfg, storageBackend), nil
}

func newServer(cfg *config.Config, storageBackend storage.Backend) *Server {
	metricsManager := metrics.NewManager(cfg.Metrics)

	// Responses must be able to outlive the multi-delete deadline
	writeTimeout := 30 * time.Second
	if t := cfg.S3.MultiDeleteTimeout + 10*time.Second; t > writeTimeout {
		writeTimeout = t
	}

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	server := &Server{
		config:         cfg,
		httpServer:     httpServer,
		storageBackend: metrics.InstrumentBackend(storageBackend, metricsManager),
		metricsManager: metricsManager,
		startTime:      time.Now(),
	}

	server.setupRoutes()
	return server
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"api_address": s.config.Listen,
		"backend":     s.storageBackend.Name(),
		"s3_acl":      s.config.S3.S3ACL,
		"tls":         s.config.EnableTLS,
	}).Info("Starting swiftgate server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.startAPIServer()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.shutdown()
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	return s.shutdown()
}

func (s *Server) startAPIServer() error {
	logrus.WithField("address", s.config.Listen).Info("Starting API server")

	if s.config.EnableTLS {
		return s.httpServer.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) shutdown() error {
	logrus.WithField("uptime", time.Since(s.startTime).Round(time.Second)).Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Failed to shutdown API server")
	}

	// Close storage backend
	if err := s.storageBackend.Close(); err != nil {
		logrus.WithError(err).Error("Failed to close storage backend")
		return err
	}

	return nil
}

func (s *Server) setupRoutes() {
	cfg := s.config
	containers := multidelete.NewContainerCache(s.storageBackend, cfg.S3.ACLCacheSize, cfg.S3.ACLCacheTTL)

	var authorizer multidelete.Authorizer = multidelete.AllowAll{}
	if cfg.S3.S3ACL {
		authorizer = multidelete.NewACLAuthorizer(containers)
	}

	service := multidelete.NewService(s.storageBackend, containers, authorizer, multidelete.Options{
		Concurrency: cfg.S3.MultiDeleteConcurrency,
		Timeout:     cfg.S3.MultiDeleteTimeout,
		Recorder:    s.metricsManager,
	})

	apiHandler := api.NewHandler(
		s.storageBackend,
		multidelete.NewValidator(cfg.S3.MaxMultiDeleteObjects, cfg.S3.MaxMultiDeleteBodySize),
		service,
		s.metricsManager,
	)

	apiRouter := mux.NewRouter()
	if cfg.Metrics.Enable {
		apiRouter.Handle(cfg.Metrics.Path, s.metricsManager.Handler()).Methods("GET")
	}
	apiHandler.RegisterRoutes(apiRouter)

	// Wrap the router directly; Use() skips requests no route matches
	var handler http.Handler = apiRouter
	handler = auth.Middleware(cfg.Storage.Swift.ResellerPrefix)(handler)
	handler = s.metricsManager.Middleware()(handler)
	handler = middleware.Logging()(handler)
	handler = middleware.S3Headers()(handler)

	s.httpServer.Handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(logrus.StandardLogger()),
	)(handler)
}
