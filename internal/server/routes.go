package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/signin/internal/config"
	"github.com/nfrund/signin/internal/handlers"
	"github.com/nfrund/signin/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	h := s.signInHandler
	attempt := middleware.RequireAttempt(s.registry)

	auth := s.E.Group("/auth", middleware.RateLimiter(s.Cfg.GetRateLimit()))

	auth.POST("/attempt", h.Create)
	auth.GET("/attempt", h.Get, attempt)
	auth.DELETE("/attempt", h.Delete, attempt)
	auth.GET("/attempt/stream", h.Stream, attempt)

	auth.POST("/tab", h.SelectTab, attempt)
	auth.POST("/submit", h.Submit, attempt)
	auth.POST("/magic-link", h.MagicLink, attempt)
	auth.POST("/resend", h.Resend, attempt)
	auth.POST("/password", h.Password, attempt)
	auth.POST("/verify", h.Verify, attempt)
	auth.POST("/oauth/:provider", h.OAuth, attempt)
	auth.POST("/fields/:field/edit", h.FieldEdited, attempt)
	auth.GET("/mailbox", h.Mailbox, attempt)

	if s.Cfg.GetIdentityProvider() == config.IdentityLog {
		auth.GET("/dev/oauth", handlers.DevOAuth(s.Cfg.GetAppBaseURL()))
	}

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	s.E.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.prometheus, promhttp.HandlerOpts{})))
}
