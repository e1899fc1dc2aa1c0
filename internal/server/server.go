// Package server wires the authentication routes into an HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BlackMission/gatekeeper/internal/auth"
	"github.com/BlackMission/gatekeeper/internal/handler"
	"github.com/BlackMission/gatekeeper/internal/middleware"
	"github.com/BlackMission/gatekeeper/internal/respond"
)

// Config holds the server configuration.
type Config struct {
	Host string
	Port int
	// FrontendURL is where the callback sends the browser, without a trailing slash.
	FrontendURL string
	// ExpiryWarning is the remaining lifetime below which /auth/me flags the token.
	ExpiryWarning time.Duration
}

// Deps holds the service dependencies.
type Deps struct {
	Gateway auth.IdentityGateway
	Tokens  auth.TokenService
	// State may be nil, in which case callbacks are not checked for a state value.
	State  auth.StateService
	Logger *zap.Logger
	// API is mounted under /api behind Authenticate. Optional.
	API http.Handler
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *zap.Logger
}

// New creates a new Server with all routes wired.
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	authn := auth.NewAuthenticator(deps.Gateway, deps.Tokens, logger)
	mw := middleware.NewAuth(deps.Tokens, logger)

	r := chi.NewRouter()
	r.Use(requestLogger(logger.Named("http")))
	r.Use(chimw.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	health := handler.Health(deps.Gateway, deps.Tokens, logger)
	r.Get("/health", health)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/health", health)
		r.Get("/google", handler.Login(deps.Gateway, deps.State, logger))
		r.Get("/google/url", handler.LoginURL(deps.Gateway, deps.State, logger))

		callback := handler.Callback(authn, deps.State, cfg.FrontendURL, logger)
		r.Get("/google/callback", callback)
		r.Post("/google/callback", callback)

		r.Post("/refresh", handler.Refresh(deps.Tokens, logger))
		r.Post("/logout", handler.Logout())

		r.With(mw.Authenticate, mw.CheckExpirationWindow(cfg.ExpiryWarning)).
			Get("/me", handler.CurrentUser())
	})

	if deps.API != nil {
		r.Route("/api", func(r chi.Router) {
			r.Use(mw.Authenticate)
			r.Use(mw.CheckExpirationWindow(cfg.ExpiryWarning))
			r.Use(middleware.RequireDomain(deps.Tokens.AllowedDomain()))
			r.Mount("/", deps.API)
		})
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	return &Server{
		handler: r,
		logger:  logger,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handler returns the server's HTTP handler (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening and serving. It returns nil after Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info("gatekeeper listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
