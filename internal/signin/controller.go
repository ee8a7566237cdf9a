// Package signin implements the sign-in attempt controller. A Controller owns
// one attempt: it validates forms, calls the identity service for the chosen
// method, keeps at most one call in flight, runs the resend cooldown and turns
// identity failures into field errors and notices.
package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/signin/internal/classify"
	"github.com/nfrund/signin/internal/cooldown"
	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/flow"
	"github.com/nfrund/signin/internal/launch"
	"github.com/nfrund/signin/internal/mailclient"
	"github.com/nfrund/signin/internal/metrics"
	"github.com/nfrund/signin/internal/pubsub"
	"github.com/nfrund/signin/internal/validation"
)

// Notice texts.
const (
	TitleSuccess       = "Success"
	TitleError         = "Error"
	TitleCheckEmail    = "Check your email"
	MsgSignedIn        = "Signed in"
	MsgVerified        = "Successfully verified. Redirecting..."
	MsgVerifyFailed    = "Failed to verify code"
	MsgRedirectMissing = "The sign-in provider did not return a redirect"
)

// Deps are the collaborators every controller needs.
type Deps struct {
	Identity    domain.IdentityService
	Preferences domain.PreferenceStore
	Notifier    domain.Notifier
	Navigator   domain.Navigator
}

// Controller drives a single sign-in attempt. All methods are safe for
// concurrent use; a second identity call while one is in flight is rejected
// with domain.ErrBusy rather than queued.
type Controller struct {
	id      string
	attempt domain.AttemptContext

	identity  domain.IdentityService
	prefs     domain.PreferenceStore
	notifier  domain.Notifier
	navigator domain.Navigator

	clock           cooldown.Clock
	timer           *cooldown.Timer
	cooldownSeconds int
	redirects       launch.Redirects
	publisher       pubsub.Publisher
	recorder        metrics.Recorder
	tracer          trace.Tracer
	logger          *slog.Logger

	mu     sync.Mutex
	state  flow.State
	closed bool
}

// Option is a function that configures a Controller.
type Option func(*Controller)

// WithID sets the attempt id. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.id = id
		}
	}
}

// WithClock replaces the clock that drives the cooldown.
func WithClock(clock cooldown.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithCooldown overrides the resend window in seconds.
func WithCooldown(seconds int) Option {
	return func(c *Controller) {
		if seconds > 0 {
			c.cooldownSeconds = seconds
		}
	}
}

// WithRedirects overrides the checkout path and default landing page.
func WithRedirects(r launch.Redirects) Option {
	return func(c *Controller) { c.redirects = r }
}

// WithPublisher publishes an AttemptEvent after every transition.
func WithPublisher(p pubsub.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithMetrics records attempt instrumentation.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracer overrides the tracer used for identity call spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a controller for an attempt launched with ac. The initial tab
// comes from the persisted preference.
func New(ac domain.AttemptContext, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		id:              uuid.NewString(),
		attempt:         ac,
		identity:        deps.Identity,
		prefs:           deps.Preferences,
		notifier:        deps.Notifier,
		navigator:       deps.Navigator,
		cooldownSeconds: cooldown.DefaultSeconds,
		redirects:       launch.DefaultRedirects(),
		publisher:       pubsub.Nop{},
		recorder:        metrics.Nop{},
		tracer:          otel.Tracer(pubsub.TracerName),
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = cooldown.RealClock()
	}
	if c.attempt.Locale == "" {
		c.attempt.Locale = launch.DefaultLocale
	}
	c.logger = c.logger.With("component", "signin", "attempt_id", c.id)
	c.timer = cooldown.New(c.clock, cooldown.WithOnTick(c.onCooldownTick))

	var tab domain.Tab
	if c.prefs != nil {
		if v, ok := c.prefs.Get(domain.PrefLastAuthTab); ok {
			tab = domain.Tab(v)
		}
	}
	c.state = flow.Initial(tab)
	return c
}

// ID returns the attempt id.
func (c *Controller) ID() string { return c.id }

// Attempt returns the captured launch context.
func (c *Controller) Attempt() domain.AttemptContext { return c.attempt }

// Snapshot returns the current state.
func (c *Controller) Snapshot() flow.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetTab switches the credential form tab and remembers it for next time.
func (c *Controller) SetTab(ctx context.Context, tab domain.Tab) error {
	tab = domain.ParseTab(string(tab))

	c.mu.Lock()
	if c.closed || c.state.Phase.Terminal() {
		c.mu.Unlock()
		return domain.ErrAttemptFinished
	}
	st := c.transition(flow.TabSelected{Tab: tab})
	c.mu.Unlock()

	c.savePreference(domain.PrefLastAuthTab, string(tab))
	c.emit(ctx, EventTabSelected, st, nil, nil)
	return nil
}

// Submit dispatches the credential form to the method of the current tab.
func (c *Controller) Submit(ctx context.Context, form domain.CredentialForm) error {
	if c.Snapshot().LastUsedTab == domain.TabPassword {
		return c.SubmitPassword(ctx, form.Email, form.Password)
	}
	return c.SubmitMagicLink(ctx, form.Email)
}

// SubmitMagicLink validates email and mails a one-time code. On success the
// code entry is revealed and the resend cooldown starts.
func (c *Controller) SubmitMagicLink(ctx context.Context, email string) error {
	form, err := validation.ValidateCredentialForm(email, "")
	if err != nil {
		return c.invalid(ctx, err)
	}
	return c.sendCode(ctx, form.Email)
}

// Resend mails another code to the address used for the first send. It is
// rejected while the cooldown is running.
func (c *Controller) Resend(ctx context.Context) error {
	st := c.Snapshot()
	if !st.CodeEntryVisible || st.Email == "" {
		c.recorder.Rejected(rejectReason(domain.ErrCodeEntryHidden))
		return domain.ErrCodeEntryHidden
	}
	return c.sendCode(ctx, st.Email)
}

func (c *Controller) sendCode(ctx context.Context, email string) error {
	const method = domain.MethodMagicLink
	if err := c.begin(ctx, method, email); err != nil {
		return err
	}
	defer c.settle(ctx, method)

	target := c.redirects.Target(c.attempt)
	err := c.call(ctx, method, "send_sign_in_email", func(ctx context.Context) error {
		return c.identity.SendSignInEmail(ctx, email, target, c.attempt.Locale)
	})
	if err != nil {
		c.fail(ctx, method, err, false)
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.transition(flow.CodeSent{})
		c.mu.Unlock()
		c.logger.Debug("sign-in code sent after close", "email", email)
		return nil
	}
	st := c.transition(flow.CodeSent{Cooldown: c.cooldownSeconds})
	c.timer.Start(c.cooldownSeconds)
	c.mu.Unlock()

	c.logger.Debug("sign-in code sent", "email", email)
	c.emit(ctx, EventCodeSent, st, nil, nil)
	return nil
}

// SubmitPassword validates the form and signs in with a password. On success
// the password tab is remembered and the browser is sent to the landing page.
func (c *Controller) SubmitPassword(ctx context.Context, email, password string) error {
	form, err := validation.ValidateCredentialForm(email, password)
	if err != nil {
		return c.invalid(ctx, err)
	}

	const method = domain.MethodPassword
	if err := c.begin(ctx, method, ""); err != nil {
		return err
	}
	defer c.settle(ctx, method)

	err = c.call(ctx, method, "sign_in_with_password", func(ctx context.Context) error {
		return c.identity.SignInWithPassword(ctx, form.Email, form.Password)
	})
	if err != nil {
		c.fail(ctx, method, err, true)
		return nil
	}

	notice := domain.Notice{Level: domain.NoticeSuccess, Title: TitleSuccess, Message: MsgSignedIn}
	c.notify(notice)

	c.mu.Lock()
	c.transition(flow.TabSelected{Tab: domain.TabPassword})
	c.mu.Unlock()
	c.savePreference(domain.PrefLastAuthTab, string(domain.TabPassword))

	c.redirect(ctx, c.redirects.Landing(c.attempt), &notice)
	return nil
}

// SubmitCode verifies the one-time code against the email the code was sent
// to. Failures surface the service message as a notice without a field.
func (c *Controller) SubmitCode(ctx context.Context, code string) error {
	form, err := validation.ValidateCodeForm(code)
	if err != nil {
		return c.invalid(ctx, err)
	}

	const method = domain.MethodMagicLink
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.reject(domain.ErrAttemptFinished)
	}
	if err := c.state.CanVerify(); err != nil {
		c.mu.Unlock()
		return c.reject(err)
	}
	st := c.transition(flow.VerifyStarted{})
	email := c.state.Email
	c.mu.Unlock()

	c.recorder.AttemptStarted(method.String())
	c.emit(ctx, EventVerifying, st, nil, nil)
	defer c.settle(ctx, method)

	err = c.call(ctx, method, "verify_one_time_code", func(ctx context.Context) error {
		return c.identity.VerifyOneTimeCode(ctx, email, form.Code)
	})
	if err != nil {
		c.failVerify(ctx, err)
		return nil
	}

	notice := domain.Notice{Level: domain.NoticeSuccess, Title: TitleSuccess, Message: MsgVerified}
	c.notify(notice)
	c.redirect(ctx, c.redirects.Landing(c.attempt), &notice)
	return nil
}

// SignInWithDiscord starts the Discord redirect flow.
func (c *Controller) SignInWithDiscord(ctx context.Context) error {
	return c.SignInWithProvider(ctx, domain.ProviderDiscord)
}

// SignInWithGoogle starts the Google redirect flow.
func (c *Controller) SignInWithGoogle(ctx context.Context) error {
	return c.SignInWithProvider(ctx, domain.ProviderGoogle)
}

// SignInWithProvider asks the identity service for a provider redirect and
// navigates to it. No form is involved.
func (c *Controller) SignInWithProvider(ctx context.Context, provider domain.Provider) error {
	method := provider.Method()
	if method == domain.MethodNone {
		return domain.ErrUnknownProvider
	}
	if err := c.begin(ctx, method, ""); err != nil {
		return err
	}
	defer c.settle(ctx, method)

	target := c.redirects.Target(c.attempt)
	var redirectURL string
	err := c.call(ctx, method, "start_oauth_sign_in", func(ctx context.Context) error {
		u, err := c.identity.StartOAuthSignIn(ctx, provider, target, c.attempt.Locale)
		if err != nil {
			return err
		}
		if u == "" {
			return &domain.IdentityError{Op: "authorize", Message: MsgRedirectMissing}
		}
		redirectURL = u
		return nil
	})
	if err != nil {
		c.fail(ctx, method, err, false)
		return nil
	}

	c.redirect(ctx, redirectURL, nil)
	return nil
}

// OpenMailClient opens the webmail for email's provider in a new window, or
// falls back to a mailto navigation. An empty email uses the address the
// code was sent to. The attempt state is not touched.
func (c *Controller) OpenMailClient(email string) mailclient.Action {
	if email == "" {
		email = c.Snapshot().Email
	}
	action := mailclient.Resolve(email)
	if c.navigator != nil {
		if action.Kind == mailclient.KindWebmail {
			c.navigator.Open(action.URL)
		} else {
			c.navigator.Navigate(action.URL)
		}
	}
	return action
}

// ClearFieldError drops the error on field, as when the user edits it.
func (c *Controller) ClearFieldError(ctx context.Context, field domain.Field) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	st := c.transition(flow.FieldEdited{Field: field})
	c.mu.Unlock()
	c.emit(ctx, EventFieldEdited, st, nil, nil)
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops the cooldown and rejects every later action. An identity call
// already in flight is not cancelled. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.timer.Stop()
	st := c.state
	c.mu.Unlock()

	c.emit(context.Background(), EventClosed, st, nil, nil)
}

// begin claims the method selector for m.
func (c *Controller) begin(ctx context.Context, m domain.Method, email string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.reject(domain.ErrAttemptFinished)
	}
	if err := c.state.CanStart(m); err != nil {
		c.mu.Unlock()
		return c.reject(err)
	}
	st := c.transition(flow.SubmitStarted{Method: m, Email: email})
	c.mu.Unlock()

	c.recorder.AttemptStarted(m.String())
	c.emit(ctx, EventSubmitted, st, nil, nil)
	return nil
}

// call runs one identity operation inside a span. A panic in fn is recovered
// and reported as errRecovered so that it takes the normal failure path.
func (c *Controller) call(ctx context.Context, m domain.Method, op string, fn func(context.Context) error) (err error) {
	ctx, span := c.tracer.Start(ctx, "signin."+op,
		trace.WithAttributes(
			attribute.String("signin.method", m.String()),
			attribute.String("signin.attempt_id", c.id),
		),
	)
	start := c.clock.Now()
	outcome := metrics.OutcomeSuccess

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("identity call panicked", "op", op, "panic", fmt.Sprint(r))
			err = &recoveredError{value: r}
			outcome = metrics.OutcomePanic
		} else if err != nil {
			outcome = metrics.OutcomeFailure
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		c.recorder.AttemptFinished(m.String(), outcome, c.clock.Now().Sub(start))
	}()

	if c.identity == nil {
		return domain.ErrIdentityUnavailable
	}
	return fn(ctx)
}

// settle is deferred by every identity call site. If the method is still
// marked in flight, something between the call and the state update went
// wrong; the attempt is failed so Busy and the active method never stick.
func (c *Controller) settle(ctx context.Context, m domain.Method) {
	r := recover()
	if r != nil {
		c.logger.Error("sign-in transition panicked", "method", m.String(), "panic", fmt.Sprint(r))
	}

	c.mu.Lock()
	stuck := c.state.Busy && c.state.ActiveMethod == m
	c.mu.Unlock()
	if stuck {
		c.fail(ctx, m, &recoveredError{value: r}, false)
	}
}

// fail classifies cause once and derives both the optional field error and
// the notice from that single result.
func (c *Controller) fail(ctx context.Context, m domain.Method, cause error, attachField bool) {
	var subject any = cause
	var rec *recoveredError
	if errors.As(cause, &rec) {
		subject = rec.value
	}
	res := classify.Classify(subject)
	c.recorder.Classified(res.Code)
	c.logger.Warn("sign-in attempt failed", "method", m.String(), "classification", res.Code)

	var fields []domain.FieldError
	if attachField && res.HasField() {
		fields = []domain.FieldError{{Field: res.Field, Message: res.Message}}
	}

	c.mu.Lock()
	st := c.transition(flow.AttemptFailed{FieldErrors: fields})
	c.mu.Unlock()

	notice := domain.Notice{Level: domain.NoticeError, Title: TitleError, Message: res.Message}
	if res.Kind == classify.KindNotice {
		notice = domain.Notice{Level: domain.NoticeInfo, Title: TitleCheckEmail, Message: res.Message}
	}
	c.notify(notice)
	c.emit(ctx, EventFailed, st, &notice, &res)
}

// failVerify reports a code verification failure with the service's own
// message. Code errors never attach to the email or password field.
func (c *Controller) failVerify(ctx context.Context, cause error) {
	msg := MsgVerifyFailed
	var ierr *domain.IdentityError
	var rec *recoveredError
	switch {
	case errors.As(cause, &rec):
	case errors.As(cause, &ierr):
		if ierr.Message != "" {
			msg = ierr.Message
		}
	case cause.Error() != "":
		msg = cause.Error()
	}
	c.logger.Warn("code verification failed", "error", cause)

	c.mu.Lock()
	st := c.transition(flow.AttemptFailed{})
	c.mu.Unlock()

	notice := domain.Notice{Level: domain.NoticeError, Title: TitleError, Message: msg}
	c.notify(notice)
	c.emit(ctx, EventFailed, st, &notice, nil)
}

func (c *Controller) invalid(ctx context.Context, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return c.reject(domain.ErrAttemptFinished)
		}
		if c.state.Busy {
			c.mu.Unlock()
			return c.reject(domain.ErrBusy)
		}
		st := c.transition(flow.ValidationFailed{FieldErrors: verrs})
		c.mu.Unlock()
		c.emit(ctx, EventInvalid, st, nil, nil)
	}
	c.recorder.Rejected("invalid")
	return err
}

func (c *Controller) redirect(ctx context.Context, target string, notice *domain.Notice) {
	c.mu.Lock()
	st := c.transition(flow.RedirectDispatched{Target: target})
	c.timer.Stop()
	c.mu.Unlock()

	c.logger.Info("sign-in redirect dispatched", "target", target)
	if c.navigator != nil {
		c.navigator.Navigate(target)
	}
	c.emit(ctx, EventRedirecting, st, notice, nil)
}

func (c *Controller) onCooldownTick(remaining int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	st := c.transition(flow.CooldownTicked{Remaining: remaining})
	c.mu.Unlock()
	c.emit(context.Background(), EventCooldownTick, st, nil, nil)
}

// transition must be called with c.mu held.
func (c *Controller) transition(e flow.Event) flow.State {
	c.state = flow.Reduce(c.state, e)
	return c.state
}

func (c *Controller) notify(n domain.Notice) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

func (c *Controller) savePreference(key, value string) {
	if c.prefs == nil {
		return
	}
	if err := c.prefs.Set(key, value); err != nil {
		c.logger.Warn("failed to persist preference", "key", key, "error", err)
	}
}

func (c *Controller) reject(err error) error {
	c.recorder.Rejected(rejectReason(err))
	return err
}

func (c *Controller) emit(ctx context.Context, kind EventKind, st flow.State, notice *domain.Notice, res *classify.Result) {
	ev := AttemptEvent{
		AttemptID:      c.id,
		Kind:           kind,
		State:          st,
		Notice:         notice,
		Classification: res,
		At:             c.clock.Now(),
	}
	if err := pubsub.Publish(context.WithoutCancel(ctx), c.publisher, EventsFor(c.id), c.id, ev); err != nil {
		c.logger.Warn("failed to publish attempt event", "kind", kind, "error", err)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	case errors.Is(err, domain.ErrCooldownActive):
		return "cooldown"
	case errors.Is(err, domain.ErrCodeEntryHidden):
		return "code_hidden"
	case errors.Is(err, domain.ErrAttemptFinished):
		return "finished"
	default:
		return "other"
	}
}

// recoveredError carries a value recovered from a panic. Only the raw value
// reaches the classifier, and a value that is not an error classifies to the
// generic fallback.
type recoveredError struct {
	value any
}

func (e *recoveredError) Error() string {
	return fmt.Sprintf("recovered panic: %v", e.value)
}
