package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-surface-auth/auth"
	"github.com/jrsteele09/go-surface-auth/handoff"
	"github.com/jrsteele09/go-surface-auth/internal/config"
	"github.com/jrsteele09/go-surface-auth/internal/metrics"
	"github.com/jrsteele09/go-surface-auth/sessions"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Deps holds the components a Server dispatches to.
type Deps struct {
	Verifier *auth.Verifier
	Sessions *sessions.Manager
	Issuer   *handoff.Issuer
	Redeemer *handoff.Verifier
	Metrics  *metrics.Metrics
	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Cleanups run on every sweeper tick after idle sessions are removed.
	Cleanups []func(ctx context.Context)
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	surface  handoff.Surface
	router   chi.Router
	routes   []string
	config   config.Config
	deps     Deps
	throttle *loginThrottle
	logger   zerolog.Logger
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Verifier == nil || deps.Sessions == nil {
		return nil, errors.New("[Server New] verifier and session manager are required")
	}
	if deps.Issuer == nil || deps.Redeemer == nil {
		return nil, errors.New("[Server New] handoff issuer and redeemer are required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		surface:  handoff.Surface(cfg.GetSurface()),
		router:   chi.NewRouter(),
		config:   cfg,
		deps:     deps,
		throttle: newLoginThrottle(rate.Limit(cfg.GetLoginRate()), cfg.GetLoginBurst()),
		logger:   log.With().Str("surface", cfg.GetSurface()).Logger(),
	}
	if deps.Redeemer.Surface() != s.surface {
		return nil, errors.Errorf("[Server New] redeemer serves %q but app.surface is %q", deps.Redeemer.Surface(), s.surface)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		s.routes = append(s.routes, method+" "+route)
		logRoute(method, route)
		return nil
	})
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	fmt.Printf("[%s%s%s] %s\n", color, paddedMethod, ResetColor, strings.TrimSuffix(path, "/*"))
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
