package middleware

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/signin/internal/attempts"
)

const (
	// SessionName is the cookie session that ties a browser to its attempt.
	SessionName = "signin"

	sessionKeyAttempt = "attempt_id"
	attemptContextKey = "attempt"
)

// Session returns the sign-in cookie session of the request.
func Session(c echo.Context) (*sessions.Session, error) {
	return session.Get(SessionName, c)
}

// AttemptID returns the attempt id stored in the session, if any.
func AttemptID(c echo.Context) string {
	sess, err := Session(c)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[sessionKeyAttempt].(string)
	return id
}

// BindAttempt records attempt id in sess without saving it. An empty id
// unbinds the session.
func BindAttempt(sess *sessions.Session, id string) {
	if id == "" {
		delete(sess.Values, sessionKeyAttempt)
		return
	}
	sess.Values[sessionKeyAttempt] = id
}

// SetAttemptID binds the browser session to attempt id and saves it.
func SetAttemptID(c echo.Context, id string) error {
	sess, err := Session(c)
	if err != nil {
		return err
	}
	BindAttempt(sess, id)
	return sess.Save(c.Request(), c.Response())
}

// RequireAttempt loads the session's live attempt from reg and stores it on
// the context. Requests without one get 404 and a stale id is dropped from
// the session.
func RequireAttempt(reg *attempts.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := AttemptID(c)
			entry, ok := reg.Get(id)
			if !ok {
				if id != "" {
					if err := SetAttemptID(c, ""); err != nil {
						FromContext(c.Request().Context()).Warn("failed to clear stale attempt", "error", err)
					}
				}
				return echo.NewHTTPError(http.StatusNotFound, "No sign-in attempt in progress.")
			}
			c.Set(attemptContextKey, entry)
			return next(c)
		}
	}
}

// AttemptFrom returns the entry stored by RequireAttempt.
func AttemptFrom(c echo.Context) *attempts.Entry {
	entry, _ := c.Get(attemptContextKey).(*attempts.Entry)
	return entry
}
