package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/doorpasses/platform/pkg/admin"
	"github.com/doorpasses/platform/pkg/audit"
	"github.com/doorpasses/platform/pkg/auth"
	"github.com/doorpasses/platform/pkg/config"
	"github.com/doorpasses/platform/pkg/httputil"
	"github.com/doorpasses/platform/pkg/middleware"
	"github.com/doorpasses/platform/pkg/observability"
	"github.com/doorpasses/platform/pkg/orgs"
)

// Server is the API server. It owns the router and the middleware chain;
// the stores and services are injected.
type Server struct {
	cfg     *config.Config
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
	health  *observability.HealthChecker

	sessions auth.Store
	users    auth.UserStore
	bans     *auth.BanCache
	orgs     orgs.Service
	admin    *admin.Service
	audit    audit.Store

	httpServer *http.Server
}

// Deps bundles the constructed dependencies for NewServer.
type Deps struct {
	DB       *sql.DB
	Redis    *redis.Client
	Sessions auth.Store
	Users    auth.UserStore
	Bans     *auth.BanCache
	Orgs     orgs.Service
	Admin    *admin.Service
	Audit    audit.Store
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

// NewServer builds the server and its routes.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		health:   observability.NewHealthChecker(deps.DB, deps.Redis),
		sessions: deps.Sessions,
		users:    deps.Users,
		bans:     deps.Bans,
		orgs:     deps.Orgs,
		admin:    deps.Admin,
		audit:    deps.Audit,
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all the API routes.
func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestID)
	s.router.Use(httputil.Logging(s.logger))
	s.router.Use(httputil.Recovery(s.logger))
	if s.metrics != nil {
		s.router.Use(func(next http.Handler) http.Handler {
			return s.metrics.InstrumentHTTP("api", next)
		})
	}

	s.router.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	sessionAuth := middleware.NewSessionAuth(s.sessions, s.users, s.bans, s.logger, false)
	orgContext := middleware.NewOrgContext(s.orgs, s.logger, s.metrics)
	guards := middleware.NewGuards(s.metrics)

	apiRouter := s.router.PathPrefix("/api/v1").Subrouter()

	authHandlers := NewAuthHandlers(s.sessions, s.users, s.orgs, s.cfg.Session.TTL, s.logger)
	authHandlers.RegisterRoutes(apiRouter, sessionAuth)

	orgHandlers := NewOrgHandlers(s.orgs, s.logger)
	orgHandlers.RegisterRoutes(apiRouter, sessionAuth, orgContext, guards)

	adminHandlers := NewAdminHandlers(s.admin, s.audit, s.sessions, s.logger)
	adminHandlers.RegisterRoutes(apiRouter, sessionAuth, guards)
}

// Start begins serving on the configured address. It blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(s.router, "doorpasses-api"),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	s.logger.WithField("addr", addr).Info("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
