package handlers

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/signin/internal/domain"
)

// DevOAuth completes the development identity backend's OAuth redirect by
// sending the browser straight to redirect_to. Targets outside baseURL's
// origin are refused.
func DevOAuth(baseURL string) echo.HandlerFunc {
	base, _ := url.Parse(baseURL)

	return func(c echo.Context) error {
		if _, err := domain.ParseProvider(c.QueryParam("provider")); err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		target, err := url.Parse(c.QueryParam("redirect_to"))
		if err != nil || target.Path == "" && target.Host == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid redirect target.")
		}
		if target.IsAbs() && (base == nil || target.Scheme != base.Scheme || target.Host != base.Host) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid redirect target.")
		}
		if !target.IsAbs() && target.Host != "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid redirect target.")
		}
		return c.Redirect(http.StatusFound, target.String())
	}
}
