package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/identity"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/avast/retry-go/v4"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// UserStore is the account repository behind the management controller.
type UserStore interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]identity.Account, error)
	Get(ctx context.Context, id int64) (*identity.Account, error)
	Create(ctx context.Context, na identity.NewAccount) (*identity.Account, error)
	Update(ctx context.Context, id int64, u identity.AccountUpdate) (*identity.Account, error)
	Deactivate(ctx context.Context, id int64) (*identity.Account, error)
}

// Server is the back-office API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	engine    *goSession.Engine
	users     UserStore
	gate      *middleware.Gate
	cookies   middleware.CookieOptions
	policies  *middleware.PolicyTable
}

// New creates a Server with all routes registered.
func New(cfg config.Config, engine *goSession.Engine, users UserStore, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("server: engine required")
	}
	if users == nil {
		return nil, errors.New("server: user store required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	security := engine.Config().Security
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		engine:    engine,
		users:     users,
		gate: middleware.NewGate(engine,
			middleware.WithCookieName(security.CookieName),
			middleware.WithBearerHeader(security.AllowBearerHeader),
			middleware.WithLogger(logger),
		),
		cookies: middleware.CookieOptionsFromConfig(security),
	}

	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Policies returns the resolved policy of every mounted route.
func (s *Server) Policies() *middleware.PolicyTable {
	return s.policies
}

func (s *Server) routes() error {
	r := s.router

	if s.config.Server.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(clientIPMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, middleware.CodeAPINotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, middleware.CodeAPINotFound, "method not allowed")
	})

	loginRequired := &goSession.Policy{}
	adminOnly := &goSession.Policy{RequireAdminPermission: true}

	table, err := s.gate.Mount(r,
		middleware.Controller{
			Prefix: "/auth",
			Routes: []middleware.Route{
				{Method: http.MethodPost, Pattern: "/login", Handler: http.HandlerFunc(s.handleLogin)},
				{Method: http.MethodPost, Pattern: "/logout", Policy: &goSession.Policy{AllowAnonymous: true}, Handler: http.HandlerFunc(s.handleLogout)},
				{Method: http.MethodGet, Pattern: "/me", Policy: loginRequired, Handler: http.HandlerFunc(s.handleMe)},
			},
		},
		middleware.Controller{
			Prefix: "/management/user",
			Policy: adminOnly,
			Routes: []middleware.Route{
				{Method: http.MethodGet, Pattern: "/", Handler: http.HandlerFunc(s.handleListUsers)},
				{Method: http.MethodPut, Pattern: "/", Handler: http.HandlerFunc(s.handleCreateUser)},
				{Method: http.MethodPost, Pattern: "/", Handler: http.HandlerFunc(s.handleUpdateUser)},
				{Method: http.MethodGet, Pattern: "/{id}", Handler: http.HandlerFunc(s.handleGetUser)},
				{Method: http.MethodDelete, Pattern: "/{id}", Handler: http.HandlerFunc(s.handleDeleteUser)},
			},
		},
		middleware.Controller{
			Routes: []middleware.Route{
				{Method: http.MethodGet, Pattern: "/health", Handler: http.HandlerFunc(s.handleHealth)},
				{Method: http.MethodGet, Pattern: "/metrics", Policy: adminOnly, Handler: prometheus.NewPrometheusExporter(s.engine).Handler()},
			},
		},
	)
	if err != nil {
		return fmt.Errorf("mount routes: %w", err)
	}
	s.policies = table
	return nil
}

// WaitReady pings the session store and the user database until both answer,
// backing off between attempts.
func (s *Server) WaitReady(ctx context.Context) error {
	return retry.Do(
		func() error {
			if err := s.engine.Ping(ctx); err != nil {
				return fmt.Errorf("session store: %w", err)
			}
			if err := s.users.Ping(ctx); err != nil {
				return fmt.Errorf("user database: %w", err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.config.Readiness.Attempts),
		retry.Delay(s.config.Readiness.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.WarnContext(ctx, "dependency not ready", "attempt", n+1, "err", err)
		}),
	)
}

// Run serves HTTP on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. Cancelling ctx stops
// new connections only: requests already in flight keep their own contexts
// and run to completion within Server.ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
