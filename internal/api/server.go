package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/servicedesk-core/internal/audit"
	"github.com/nerrad567/servicedesk-core/internal/auth"
	"github.com/nerrad567/servicedesk-core/internal/infrastructure/config"
	"github.com/nerrad567/servicedesk-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds each dependency check made by GET /health.
const healthCheckTimeout = 2 * time.Second

// HealthChecker is implemented by every dependency reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Sessions *auth.Service

	// Audit receives auth events; AuditRepo serves GET /audit. Both optional.
	Audit     *audit.Recorder
	AuditRepo audit.Repository

	// Health lists named dependencies checked by GET /health.
	Health map[string]HealthChecker

	MetricsEnabled bool
	Version        string
}

// Server is the HTTP API server for the service desk core.
//
// It owns the listener, router and middleware. Create it with New and start
// it with Start.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	sessions  *auth.Service
	recorder  *audit.Recorder
	auditRepo audit.Repository
	health    map[string]HealthChecker
	metrics   *metrics
	version   string
	server    *http.Server
	cancel    context.CancelFunc
	auditDone chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		sessions:  deps.Sessions,
		recorder:  deps.Audit,
		auditRepo: deps.AuditRepo,
		health:    deps.Health,
		version:   deps.Version,
	}
	if deps.MetricsEnabled {
		s.metrics = newMetrics(deps.Audit)
	}

	return s, nil
}

// Start begins listening for HTTP connections in a background goroutine
// and starts the audit writer. The server is stopped with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.recorder != nil {
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.recorder.Run(srvCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then stops
// the audit writer, which flushes whatever is still queued.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if s.auditDone != nil {
		<-s.auditDone
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
