// Package api wires the JSON-RPC handlers, event stream and operational
// endpoints onto one HTTP server.
//
// @title Settings API
// @version 1.0
// @description JSON-RPC 2.0 settings service over a versioned document store.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/IcodeNet/employee-scheduling-api/internal/api/docs"
	"github.com/IcodeNet/employee-scheduling-api/internal/api/handlers"
	"github.com/IcodeNet/employee-scheduling-api/internal/api/jsonrpcx"
	"github.com/IcodeNet/employee-scheduling-api/internal/api/middleware"
	"github.com/IcodeNet/employee-scheduling-api/internal/cqrs"
	cqrshandlers "github.com/IcodeNet/employee-scheduling-api/internal/cqrs/handlers"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/auth"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/setting"
	"github.com/IcodeNet/employee-scheduling-api/pkg/autorouter"
	"github.com/IcodeNet/employee-scheduling-api/pkg/config"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
	"github.com/IcodeNet/employee-scheduling-api/pkg/metrics"
	"github.com/IcodeNet/employee-scheduling-api/pkg/sse"
)

const (
	apiPrefix        = "/api/v1/"
	settingStreamURL = "/api/v1/stream/settings"
	healthTimeout    = 2 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// HealthChecker reports whether the document store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services the server exposes
type Dependencies struct {
	Settings *setting.Service
	Auth     *auth.Service
	Store    HealthChecker
	// Bus is optional; without it no change notifications are streamed
	Bus         *cqrs.Bus
	Broadcaster *sse.SSEBroadcaster
	// Registry defaults to a fresh registry
	Registry *prometheus.Registry
	Backend  string
	Version  string
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	logger      *logger.Logger
	mux         *http.ServeMux
	store       HealthChecker
	bus         *cqrs.Bus
	broadcaster *sse.SSEBroadcaster
	registry    *prometheus.Registry
	router      *autorouter.AutoRouter
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Dependencies, log *logger.Logger) (*Server, error) {
	if deps.Settings == nil || deps.Auth == nil || deps.Store == nil {
		return nil, fmt.Errorf("settings, auth and store dependencies are required")
	}

	apiLogger := log.WithComponent("api")
	mux := http.NewServeMux()

	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
		deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	metrics.RegisterCollectors(deps.Registry)

	if deps.Broadcaster == nil {
		deps.Broadcaster = sse.NewSSEBroadcaster(apiLogger)
	}

	events := "disabled"
	if deps.Bus != nil {
		events = "enabled"
		sseEventHandler := cqrshandlers.NewSSEEventHandler(deps.Broadcaster, apiLogger)
		if err := deps.Bus.AddHandlers(sseEventHandler.Handlers()...); err != nil {
			return nil, fmt.Errorf("failed to register event handlers: %w", err)
		}
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.GetServerAddr(),
			Handler:      mux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		logger:      apiLogger,
		mux:         mux,
		store:       deps.Store,
		bus:         deps.Bus,
		broadcaster: deps.Broadcaster,
		registry:    deps.Registry,
		router: autorouter.NewAutoRouter(mux, autorouter.RegistrationOptions{
			Prefix:  apiPrefix,
			Logger:  apiLogger,
			OnError: func(w http.ResponseWriter, r *http.Request, err error) { jsonrpcx.WithDomainError(r, nil, err) },
		}),
	}

	authMiddleware := middleware.NewAuthMiddleware(deps.Auth, apiLogger)
	if err := s.setupRoutes(cfg, deps, events, authMiddleware); err != nil {
		return nil, err
	}
	s.setupMiddleware(cfg)

	return s, nil
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes(cfg *config.Config, deps Dependencies, events string, authMiddleware *middleware.AuthMiddleware) error {
	healthPath := cfg.Server.HealthCheckPath
	if healthPath == "" {
		healthPath = "/health"
	}
	s.mux.HandleFunc(healthPath, s.healthCheckHandler)

	if cfg.Server.MetricsEnabled {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	}

	s.mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// public
	if err := s.router.WithMethodPrefix("server.").RegisterHandlers(
		handlers.NewServerHandler(deps.Version, deps.Backend, events)); err != nil {
		return err
	}
	if err := s.router.WithMethodPrefix("auth.").RegisterHandlers(
		handlers.NewAuthHandler(s.logger, deps.Auth)); err != nil {
		return err
	}

	// JWT required
	if err := s.router.WithMethodPrefix("setting.").RegisterHandlersWithAuth(
		handlers.NewSettingHandler(s.logger, deps.Settings), authMiddleware.RequireAuth); err != nil {
		return err
	}

	s.mux.Handle(settingStreamURL, authMiddleware.RequireSSEAuth(http.HandlerFunc(s.broadcaster.HandleSSE)))
	return nil
}

// setupMiddleware applies middleware to all routes
func (s *Server) setupMiddleware(cfg *config.Config) {
	chain := []middleware.Middleware{
		middleware.Recovery(s.logger),
		middleware.ErrorAdapter(s.logger),
		middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
		}),
		middleware.Logging(s.logger),
	}
	if cfg.Server.RateLimitRPS > 0 {
		chain = append(chain, middleware.RateLimit(s.logger, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
	}

	s.httpServer.Handler = middleware.Chain(chain...)(s.mux)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Routes lists the auto-registered JSON-RPC routes
func (s *Server) Routes() []autorouter.Route {
	return s.router.Routes()
}

// Start runs the event router and the HTTP server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))

	if s.bus != nil {
		go func() {
			if err := s.bus.Run(ctx); err != nil {
				s.logger.Error("Event router error", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			s.logger.Error("HTTP server error", zap.Error(err))
			_ = s.Shutdown()
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")

	// stream connections never go idle, close them first
	s.broadcaster.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown error", zap.Error(err))
		firstErr = err
	}

	if s.bus != nil {
		if err := s.bus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.logger.Info("HTTP server stopped")
	return firstErr
}

// GetAddr returns the server address
func (s *Server) GetAddr() string {
	return s.httpServer.Addr
}

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]healthCheck `json:"checks"`
}

type healthCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// healthCheckHandler pings the document store
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy", Checks: map[string]healthCheck{"store": {Status: "up"}}}
	code := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("Store health check failed", zap.Error(err))
		resp = healthResponse{Status: "unhealthy", Checks: map[string]healthCheck{"store": {Status: "down", Error: err.Error()}}}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
