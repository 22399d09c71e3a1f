package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.FrameSecurityMiddleware)

	r.Get(RouteHealth, s.HealthHandler())
	if s.deps.Gatherer != nil {
		r.Handle(RouteMetrics, promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.NoStoreMiddleware)
		r.Use(s.LoadSession)

		r.With(s.ThrottleMiddleware).Post(RouteAuthLogin, s.LoginHandler())
		r.Post(RouteAuthLogout, s.LogoutHandler())
		r.Get(RouteHandoffRedeem, s.HandoffRedeemHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.RequireAuthenticated())
			r.Get(RouteAPIMe, s.MeHandler())
			r.Get(RouteHandoffIssue, s.HandoffIssueHandler())
		})

		r.With(s.RequireRole(users.RoleAdmin)).Get(RouteAPIAdminStatus, s.AdminStatusHandler())
	})
}
