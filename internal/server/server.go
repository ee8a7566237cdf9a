package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/signin/internal/app"
	"github.com/nfrund/signin/internal/attempts"
	"github.com/nfrund/signin/internal/config"
	"github.com/nfrund/signin/internal/handlers"
	"github.com/nfrund/signin/internal/metrics"
	"github.com/nfrund/signin/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
)

// sessionMaxAge keeps the attempt and preference cookie for a week.
const sessionMaxAge = 86400 * 7

// Server holds the dependencies for the HTTP server.
type Server struct {
	E   *echo.Echo
	Cfg config.Provider

	injector      *do.RootScope
	signInHandler *handlers.SignInHandler
	registry      *attempts.Registry
	metrics       *metrics.Collector
	prometheus    *prometheus.Registry
}

// New builds the echo instance from the services in the container i. Routes are added by
// RegisterRoutes.
func New(i *do.RootScope) (*Server, error) {
	cfg, err := do.Invoke[config.Provider](i)
	if err != nil {
		return nil, err
	}
	signInHandler, err := do.Invoke[*handlers.SignInHandler](i)
	if err != nil {
		return nil, fmt.Errorf("failed to build sign-in handler: %w", err)
	}

	s := &Server{
		E:             echo.New(),
		Cfg:           cfg,
		injector:      i,
		signInHandler: signInHandler,
		registry:      do.MustInvoke[*app.Attempts](i).Registry,
		metrics:       do.MustInvoke[*metrics.Collector](i),
		prometheus:    do.MustInvoke[*prometheus.Registry](i),
	}

	e := s.E
	e.HideBanner = true
	e.Validator = handlers.NewValidator()
	setupErrorHandling(e)

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.Recover())
	e.Use(s.metrics.Middleware())

	store := sessions.NewCookieStore([]byte(cfg.GetSessionSecret()))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.GetAppEnv() == "prod",
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))

	return s, nil
}
