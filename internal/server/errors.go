package server

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/signin/internal/handlers"
	"github.com/nfrund/signin/internal/middleware"
)

// setupErrorHandling renders every error that escapes a handler as a
// handlers.ErrorResponse. Anything that is not an *echo.HTTPError is a bug
// and is logged with a stack trace.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger := middleware.FromContext(c.Request().Context())

		status := http.StatusInternalServerError
		body := handlers.ErrorResponse{Code: handlers.CodeInternal, Message: "Something went wrong."}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			body.Code = codeForStatus(status)
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			} else {
				body.Message = http.StatusText(status)
			}
			if status >= http.StatusInternalServerError {
				logger.Error("Internal Server Error", "status", status, "error", err)
			}
		} else {
			logger.Error("Internal Server Error (Unhandled)",
				"error", err.Error(),
				"stack_trace", string(debug.Stack()),
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error("Failed to write error response", "error", werr)
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return handlers.CodeBadRequest
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return handlers.CodeNotFound
	case http.StatusConflict:
		return handlers.CodeBusy
	case http.StatusGone:
		return handlers.CodeFinished
	case http.StatusUnprocessableEntity:
		return handlers.CodeInvalid
	case http.StatusTooManyRequests:
		return handlers.CodeRateLimited
	default:
		return handlers.CodeInternal
	}
}
