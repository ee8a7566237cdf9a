package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/signin/internal/attempts"
	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/flow"
	"github.com/nfrund/signin/internal/launch"
	"github.com/nfrund/signin/internal/metrics"
	"github.com/nfrund/signin/internal/middleware"
	"github.com/nfrund/signin/internal/preferences"
	"github.com/nfrund/signin/internal/pubsub"
	"github.com/nfrund/signin/internal/signin"
	"github.com/nfrund/signin/internal/view"
	"github.com/nfrund/signin/internal/websocket"
)

// SignInConfig holds what SignInHandler needs to build and serve attempts.
type SignInConfig struct {
	Identity      domain.IdentityService
	Registry      *attempts.Registry
	Stream        *websocket.Stream
	Publisher     pubsub.Publisher
	Metrics       metrics.Recorder
	Redirects     launch.Redirects
	DefaultLocale string
	Logger        *slog.Logger
	// ControllerOptions are appended to the options of every new controller.
	ControllerOptions []signin.Option
}

// SignInHandler is the HTTP surface of the sign-in page: one controller per
// browser session, driven by JSON requests.
type SignInHandler struct {
	cfg    SignInConfig
	logger *slog.Logger
}

// NewSignInHandler creates a new SignInHandler.
func NewSignInHandler(cfg SignInConfig) *SignInHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Redirects == (launch.Redirects{}) {
		cfg.Redirects = launch.DefaultRedirects()
	}
	return &SignInHandler{cfg: cfg, logger: cfg.Logger.With("component", "handlers")}
}

// Create starts a new attempt for the session (POST /auth/attempt). A
// previous attempt of the same session is closed.
func (h *SignInHandler) Create(c echo.Context) error {
	var req CreateAttemptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	sess, err := middleware.Session(c)
	if err != nil {
		return err
	}
	prefs := loadPreferences(sess)

	locale := req.Locale
	if locale == "" {
		locale = h.cfg.DefaultLocale
	}
	var ac domain.AttemptContext
	if req.URL != "" {
		ac, err = launch.CaptureURL(req.URL, prefs, locale)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid entry URL.")
		}
	} else {
		ac = launch.Capture(c.QueryParams(), prefs, locale)
	}

	if old := middleware.AttemptID(c); old != "" {
		h.cfg.Registry.Remove(old)
	}

	out := &signin.Outbox{}
	opts := []signin.Option{
		signin.WithRedirects(h.cfg.Redirects),
		signin.WithPublisher(h.cfg.Publisher),
		signin.WithMetrics(h.cfg.Metrics),
		signin.WithLogger(h.cfg.Logger),
	}
	opts = append(opts, h.cfg.ControllerOptions...)
	ctrl := signin.New(ac, signin.Deps{
		Identity:    h.cfg.Identity,
		Preferences: prefs,
		Notifier:    out,
		Navigator:   out,
	}, opts...)

	entry := &attempts.Entry{Controller: ctrl, Outbox: out, Prefs: prefs}
	h.cfg.Registry.Add(entry)
	middleware.BindAttempt(sess, ctrl.ID())

	h.logger.Debug("attempt created", "attempt_id", ctrl.ID(), "subscription", ac.SubscriptionIntent)
	status, resp := h.render(c, entry, nil)
	if status == http.StatusOK {
		status = http.StatusCreated
	}
	return c.JSON(status, resp)
}

// Get returns the current view (GET /auth/attempt), including flash notices
// left by the last navigation.
func (h *SignInHandler) Get(c echo.Context) error {
	status, resp := h.render(c, middleware.AttemptFrom(c), nil)
	resp.Attempt = resp.Attempt.WithFlash(view.GetFlashData(c))
	return c.JSON(status, resp)
}

// Delete closes the session's attempt (DELETE /auth/attempt).
func (h *SignInHandler) Delete(c echo.Context) error {
	entry := middleware.AttemptFrom(c)
	h.cfg.Registry.Remove(entry.ID())

	sess, err := middleware.Session(c)
	if err != nil {
		return err
	}
	middleware.BindAttempt(sess, "")
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SelectTab handles POST /auth/tab.
func (h *SignInHandler) SelectTab(c echo.Context) error {
	var req TabRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	entry := middleware.AttemptFrom(c)
	return h.respond(c, entry, entry.Controller.SetTab(c.Request().Context(), domain.Tab(req.Tab)))
}

// Submit sends the credential form to the method of the current tab (POST /auth/submit).
func (h *SignInHandler) Submit(c echo.Context) error {
	var req CredentialRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	entry := middleware.AttemptFrom(c)
	form := domain.CredentialForm{Email: req.Email, Password: req.Password}
	return h.respond(c, entry, entry.Controller.Submit(c.Request().Context(), form))
}

// MagicLink handles POST /auth/magic-link.
func (h *SignInHandler) MagicLink(c echo.Context) error {
	var req EmailRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	entry := middleware.AttemptFrom(c)
	return h.respond(c, entry, entry.Controller.SubmitMagicLink(c.Request().Context(), req.Email))
}

// Resend handles POST /auth/resend.
func (h *SignInHandler) Resend(c echo.Context) error {
	entry := middleware.AttemptFrom(c)
	return h.respond(c, entry, entry.Controller.Resend(c.Request().Context()))
}

// Password handles POST /auth/password.
func (h *SignInHandler) Password(c echo.Context) error {
	var req CredentialRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	entry := middleware.AttemptFrom(c)
	return h.respond(c, entry, entry.Controller.SubmitPassword(c.Request().Context(), req.Email, req.Password))
}

// Verify handles POST /auth/verify.
func (h *SignInHandler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	entry := middleware.AttemptFrom(c)
	return h.respond(c, entry, entry.Controller.SubmitCode(c.Request().Context(), req.Code))
}

// OAuth handles POST /auth/oauth/:provider.
func (h *SignInHandler) OAuth(c echo.Context) error {
	entry := middleware.AttemptFrom(c)
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return h.respond(c, entry, err)
	}
	return h.respond(c, entry, entry.Controller.SignInWithProvider(c.Request().Context(), provider))
}

// FieldEdited handles POST /auth/fields/:field/edit.
func (h *SignInHandler) FieldEdited(c echo.Context) error {
	var req FieldRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	entry := middleware.AttemptFrom(c)
	entry.Controller.ClearFieldError(c.Request().Context(), domain.Field(req.Field))
	return h.respond(c, entry, nil)
}

// Mailbox handles GET /auth/mailbox. The resolved webmail or mailto target is
// returned as a pending open or navigation on the view.
func (h *SignInHandler) Mailbox(c echo.Context) error {
	entry := middleware.AttemptFrom(c)
	email := c.QueryParam("email")
	if email == "" && entry.Controller.Snapshot().Email == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "No email address to open a mailbox for.")
	}
	entry.Controller.OpenMailClient(email)
	return h.respond(c, entry, nil)
}

// Stream handles GET /auth/attempt/stream.
func (h *SignInHandler) Stream(c echo.Context) error {
	return h.cfg.Stream.Serve(c, middleware.AttemptFrom(c))
}

func (h *SignInHandler) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body.")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}

func (h *SignInHandler) respond(c echo.Context, entry *attempts.Entry, actionErr error) error {
	status, resp := h.render(c, entry, actionErr)
	return c.JSON(status, resp)
}

// render drains the entry's effects and saves the session. Notices raised
// together with a final redirect are moved to flash so the landing page
// shows them.
func (h *SignInHandler) render(c echo.Context, entry *attempts.Entry, actionErr error) (int, AttemptResponse) {
	ctrl := entry.Controller
	eff := entry.Outbox.Drain()
	st := ctrl.Snapshot()

	if st.Phase == flow.PhaseRedirecting && len(eff.Notices) > 0 {
		for _, n := range eff.Notices {
			if err := view.SetFlashNotice(c, n); err != nil {
				h.logger.Warn("failed to store flash notice", "error", err)
			}
		}
		eff.Notices = nil
	}

	if sess, err := middleware.Session(c); err == nil {
		storePreferences(sess, entry.Prefs)
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			h.logger.Warn("failed to save session", "error", err)
		}
	}

	resp := AttemptResponse{Attempt: view.NewAttempt(ctrl.ID(), ctrl.Attempt(), st, eff)}
	status := http.StatusOK
	if actionErr != nil {
		status, resp.Error = errorStatus(actionErr)
		if status >= http.StatusInternalServerError {
			h.logger.Error("sign-in action failed", "attempt_id", ctrl.ID(), "error", actionErr)
		}
	}
	return status, resp
}

// Session keys for persisted preferences.
const prefSessionPrefix = "pref."

// loadPreferences seeds a per-attempt store from the cookie session.
func loadPreferences(sess *sessions.Session) *preferences.Memory {
	values := make(map[string]string, len(preferences.Keys))
	for _, k := range preferences.Keys {
		if v, ok := sess.Values[prefSessionPrefix+k].(string); ok {
			values[k] = v
		}
	}
	return preferences.NewMemory(values)
}

// storePreferences writes the attempt's preferences back into the session.
func storePreferences(sess *sessions.Session, prefs *preferences.Memory) {
	for k, v := range prefs.Values() {
		sess.Values[prefSessionPrefix+k] = v
	}
}
