package signin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/flow"
	"github.com/nfrund/signin/internal/mailclient"
	"github.com/nfrund/signin/internal/preferences"
	"github.com/nfrund/signin/internal/pubsub"
	"github.com/nfrund/signin/internal/signin"
	"github.com/nfrund/signin/internal/testutils"
	"github.com/nfrund/signin/internal/validation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	ctrl     *signin.Controller
	identity *testutils.ScriptedIdentity
	effects  *testutils.RecordingEffects
	clock    *testutils.FakeClock
	prefs    *preferences.Memory
}

func newHarness(t *testing.T, ac domain.AttemptContext, opts ...signin.Option) *harness {
	t.Helper()
	h := &harness{
		identity: testutils.NewScriptedIdentity(),
		effects:  &testutils.RecordingEffects{},
		clock:    testutils.NewFakeClock(),
		prefs:    preferences.NewMemory(nil),
	}
	opts = append([]signin.Option{signin.WithClock(h.clock), signin.WithID("attempt-1")}, opts...)
	h.ctrl = signin.New(ac, signin.Deps{
		Identity:    h.identity,
		Preferences: h.prefs,
		Notifier:    h.effects,
		Navigator:   h.effects,
	}, opts...)
	t.Cleanup(h.ctrl.Close)
	return h
}

func TestMagicLink_Success(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{Locale: "de"})
	ctx := context.Background()

	require.NoError(t, h.ctrl.SubmitMagicLink(ctx, "a@gmail.com"))

	st := h.ctrl.Snapshot()
	assert.Equal(t, flow.PhaseCodeAwaiting, st.Phase)
	assert.True(t, st.CodeEntryVisible)
	assert.Equal(t, 15, st.CooldownRemaining)
	assert.Equal(t, domain.MethodNone, st.ActiveMethod)
	assert.False(t, st.Busy)

	calls := h.identity.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, testutils.OpSendSignInEmail, calls[0].Op)
	assert.Equal(t, "a@gmail.com", calls[0].Email)
	assert.Equal(t, "de", calls[0].Locale)
	assert.Empty(t, calls[0].RedirectTarget)
}

func TestMagicLink_MethodActiveUntilAcknowledged(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	release := h.identity.Hold(testutils.OpSendSignInEmail)

	done := make(chan error, 1)
	go func() { done <- h.ctrl.SubmitMagicLink(context.Background(), "a@gmail.com") }()
	<-h.identity.Started()

	st := h.ctrl.Snapshot()
	assert.Equal(t, domain.MethodMagicLink, st.ActiveMethod)
	assert.True(t, st.Busy)
	assert.Equal(t, flow.PhaseSubmitting, st.Phase)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, domain.MethodNone, h.ctrl.Snapshot().ActiveMethod)
}

func TestMagicLink_SubscriptionTarget(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{
		SubscriptionIntent: true,
		PriceLookupKey:     "pro",
		ReferralCode:       "FRIEND",
		PromoCode:          "P1",
		PostLoginRedirect:  "/ignored",
	})

	require.NoError(t, h.ctrl.SubmitMagicLink(context.Background(), "a@b.com"))
	require.NoError(t, h.ctrl.SignInWithGoogle(context.Background()))

	calls := h.identity.Calls()
	require.Len(t, calls, 2)
	want := "api/stripe/create-checkout-session?lookup_key=pro&referral=FRIEND&promo_code=P1"
	assert.Equal(t, want, calls[0].RedirectTarget)
	assert.Equal(t, want, calls[1].RedirectTarget, "every strategy uses the same target rule")
}

func TestMagicLink_Failure(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	h.identity.FailWith(testutils.OpSendSignInEmail, &domain.IdentityError{Op: "otp", Status: 429, Message: "Email rate limit exceeded"})

	require.NoError(t, h.ctrl.SubmitMagicLink(context.Background(), "a@b.com"), "identity failures are absorbed")

	st := h.ctrl.Snapshot()
	assert.Equal(t, flow.PhaseFailed, st.Phase)
	assert.False(t, st.CodeEntryVisible)
	assert.False(t, st.Busy)
	assert.Equal(t, domain.MethodNone, st.ActiveMethod)
	assert.Empty(t, st.FieldErrors)
	assert.Equal(t, 0, st.CooldownRemaining)

	n, ok := h.effects.LastNotice()
	require.True(t, ok)
	assert.Equal(t, domain.NoticeError, n.Level)
	assert.Equal(t, "Email rate limit exceeded", n.Message)
}

func TestPasswordTooShort_NoNetworkCall(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})

	err := h.ctrl.SubmitPassword(context.Background(), "a@b.com", "short")

	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	msg, ok := verrs.Message(domain.FieldPassword)
	require.True(t, ok)
	assert.Equal(t, validation.MsgPasswordTooShort, msg)

	assert.Empty(t, h.identity.Calls())
	st := h.ctrl.Snapshot()
	fieldMsg, ok := st.FieldError(domain.FieldPassword)
	require.True(t, ok)
	assert.Equal(t, validation.MsgPasswordTooShort, fieldMsg)
	assert.False(t, st.Busy)
}

func TestPassword_InvalidCredentials(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	h.identity.FailWith(testutils.OpSignInWithPassword, errors.New("Invalid login credentials"))

	require.NoError(t, h.ctrl.SubmitPassword(context.Background(), "a@b.com", "secret123"))

	st := h.ctrl.Snapshot()
	msg, ok := st.FieldError(domain.FieldPassword)
	require.True(t, ok)
	assert.Equal(t, "Invalid email or password.", msg)
	assert.Equal(t, domain.MethodNone, st.ActiveMethod)
	assert.False(t, st.Busy)

	n, ok := h.effects.LastNotice()
	require.True(t, ok)
	assert.Equal(t, msg, n.Message, "field error and notice come from one classification")
	assert.Empty(t, h.effects.Navigations())

	h.ctrl.ClearFieldError(context.Background(), domain.FieldPassword)
	_, ok = h.ctrl.Snapshot().FieldError(domain.FieldPassword)
	assert.False(t, ok)
}

func TestPassword_Success(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{PostLoginRedirect: "/billing"})

	require.NoError(t, h.ctrl.SubmitPassword(context.Background(), "a@b.com", "secret123"))

	assert.Equal(t, []string{"/billing"}, h.effects.Navigations())
	tab, ok := h.prefs.Get(domain.PrefLastAuthTab)
	require.True(t, ok)
	assert.Equal(t, "password", tab)

	st := h.ctrl.Snapshot()
	assert.Equal(t, flow.PhaseRedirecting, st.Phase)
	assert.Equal(t, domain.MethodNone, st.ActiveMethod)

	n, _ := h.effects.LastNotice()
	assert.Equal(t, domain.NoticeSuccess, n.Level)

	assert.ErrorIs(t, h.ctrl.SubmitMagicLink(context.Background(), "a@b.com"), domain.ErrAttemptFinished)
}

func TestVerifyCode_NavigatesToLanding(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{"post login redirect", "/settings", "/settings"},
		{"default landing", "", "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, domain.AttemptContext{PostLoginRedirect: tt.next})
			ctx := context.Background()

			require.NoError(t, h.ctrl.SubmitMagicLink(ctx, "a@b.com"))
			require.NoError(t, h.ctrl.SubmitCode(ctx, "123456"))

			assert.Equal(t, []string{tt.want}, h.effects.Navigations())
			calls := h.identity.Calls()
			require.Len(t, calls, 2)
			assert.Equal(t, "a@b.com", calls[1].Email)
			assert.Equal(t, "123456", calls[1].Code)

			n, _ := h.effects.LastNotice()
			assert.Equal(t, signin.MsgVerified, n.Message)
			assert.Equal(t, 0, h.clock.Pending(), "redirect stops the cooldown")
		})
	}
}

func TestVerifyCode_Failure(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	ctx := context.Background()
	require.NoError(t, h.ctrl.SubmitMagicLink(ctx, "a@b.com"))

	h.identity.FailWith(testutils.OpVerifyOneTimeCode, &domain.IdentityError{Op: "verify", Status: 403, Message: "Token has expired or is invalid"})
	require.NoError(t, h.ctrl.SubmitCode(ctx, "123456"))

	st := h.ctrl.Snapshot()
	assert.Equal(t, flow.PhaseFailed, st.Phase)
	assert.True(t, st.CodeEntryVisible)
	assert.False(t, st.Busy)
	assert.Equal(t, domain.MethodNone, st.ActiveMethod)
	assert.Empty(t, st.FieldErrors, "code errors never attach to a field")

	n, _ := h.effects.LastNotice()
	assert.Equal(t, "Token has expired or is invalid", n.Message)

	h.identity.FailWith(testutils.OpVerifyOneTimeCode, errors.New(""))
	require.NoError(t, h.ctrl.SubmitCode(ctx, "654321"))
	n, _ = h.effects.LastNotice()
	assert.Equal(t, signin.MsgVerifyFailed, n.Message)
}

func TestVerifyCode_Guards(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	ctx := context.Background()

	assert.ErrorIs(t, h.ctrl.SubmitCode(ctx, "123456"), domain.ErrCodeEntryHidden)

	var verrs validation.Errors
	require.ErrorAs(t, h.ctrl.SubmitCode(ctx, "12ab56"), &verrs)
	assert.Empty(t, h.identity.Calls())
}

func TestResend_Cooldown(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	ctx := context.Background()

	assert.ErrorIs(t, h.ctrl.Resend(ctx), domain.ErrCodeEntryHidden)
	require.NoError(t, h.ctrl.SubmitMagicLink(ctx, "a@b.com"))

	for remaining := 15; remaining > 0; remaining-- {
		assert.Equal(t, remaining, h.ctrl.Snapshot().CooldownRemaining)
		assert.ErrorIs(t, h.ctrl.Resend(ctx), domain.ErrCooldownActive)
		assert.ErrorIs(t, h.ctrl.SubmitMagicLink(ctx, "a@b.com"), domain.ErrCooldownActive)
		h.clock.Tick()
	}
	assert.Equal(t, 0, h.ctrl.Snapshot().CooldownRemaining)
	assert.Equal(t, 1, h.identity.CallCount(testutils.OpSendSignInEmail))

	require.NoError(t, h.ctrl.Resend(ctx))
	assert.Equal(t, 2, h.identity.CallCount(testutils.OpSendSignInEmail))
	assert.Equal(t, "a@b.com", h.identity.Calls()[1].Email)
	assert.Equal(t, 15, h.ctrl.Snapshot().CooldownRemaining)
	assert.Equal(t, 1, h.clock.Pending(), "re-arming never stacks timers")
}

func TestOAuth(t *testing.T) {
	t.Run("success navigates to provider", func(t *testing.T) {
		h := newHarness(t, domain.AttemptContext{PostLoginRedirect: "/next"})
		require.NoError(t, h.ctrl.SignInWithDiscord(context.Background()))

		calls := h.identity.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, domain.ProviderDiscord, calls[0].Provider)
		assert.Equal(t, "/next", calls[0].RedirectTarget)
		assert.Equal(t, []string{"https://identity.test/authorize?provider=discord"}, h.effects.Navigations())
		assert.Equal(t, flow.PhaseRedirecting, h.ctrl.Snapshot().Phase)
	})

	t.Run("failure clears method and notifies", func(t *testing.T) {
		h := newHarness(t, domain.AttemptContext{})
		h.identity.FailWith(testutils.OpStartOAuthSignIn, errors.New("provider is not enabled"))

		require.NoError(t, h.ctrl.SignInWithGoogle(context.Background()))
		st := h.ctrl.Snapshot()
		assert.Equal(t, domain.MethodNone, st.ActiveMethod)
		assert.False(t, st.Busy)
		assert.Empty(t, h.effects.Navigations())

		n, ok := h.effects.LastNotice()
		require.True(t, ok)
		assert.Equal(t, "provider is not enabled", n.Message)
	})

	t.Run("unknown provider", func(t *testing.T) {
		h := newHarness(t, domain.AttemptContext{})
		assert.ErrorIs(t, h.ctrl.SignInWithProvider(context.Background(), "github"), domain.ErrUnknownProvider)
	})
}

func TestPanicIsRecovered(t *testing.T) {
	ops := []struct {
		op  string
		run func(h *harness) error
	}{
		{testutils.OpSendSignInEmail, func(h *harness) error { return h.ctrl.SubmitMagicLink(context.Background(), "a@b.com") }},
		{testutils.OpSignInWithPassword, func(h *harness) error {
			return h.ctrl.SubmitPassword(context.Background(), "a@b.com", "secret123")
		}},
		{testutils.OpStartOAuthSignIn, func(h *harness) error { return h.ctrl.SignInWithGoogle(context.Background()) }},
	}

	for _, tt := range ops {
		t.Run(tt.op, func(t *testing.T) {
			h := newHarness(t, domain.AttemptContext{})
			h.identity.PanicWith(tt.op, "boom: invalid login credentials")

			require.NotPanics(t, func() { require.NoError(t, tt.run(h)) })

			st := h.ctrl.Snapshot()
			assert.False(t, st.Busy)
			assert.Equal(t, domain.MethodNone, st.ActiveMethod)
			assert.Empty(t, st.FieldErrors, "a panic value is never matched against the rule table")

			n, ok := h.effects.LastNotice()
			require.True(t, ok)
			assert.Equal(t, "Sign in failed. Please try again.", n.Message)
		})
	}

	t.Run("verify", func(t *testing.T) {
		h := newHarness(t, domain.AttemptContext{})
		require.NoError(t, h.ctrl.SubmitMagicLink(context.Background(), "a@b.com"))
		h.identity.PanicWith(testutils.OpVerifyOneTimeCode, errors.New("kaboom"))

		require.NotPanics(t, func() { require.NoError(t, h.ctrl.SubmitCode(context.Background(), "123456")) })
		assert.False(t, h.ctrl.Snapshot().Busy)
		n, _ := h.effects.LastNotice()
		assert.Equal(t, signin.MsgVerifyFailed, n.Message)
	})
}

type panickingNavigator struct{ testutils.RecordingEffects }

func (*panickingNavigator) Navigate(string) { panic("navigation exploded") }

func TestSettle_PanicAfterCall(t *testing.T) {
	nav := &panickingNavigator{}
	ctrl := signin.New(domain.AttemptContext{}, signin.Deps{
		Identity:  testutils.NewScriptedIdentity(),
		Notifier:  nav,
		Navigator: nav,
	}, signin.WithClock(testutils.NewFakeClock()))
	defer ctrl.Close()

	assert.NotPanics(t, func() { _ = ctrl.SignInWithDiscord(context.Background()) })
	st := ctrl.Snapshot()
	assert.False(t, st.Busy)
	assert.Equal(t, domain.MethodNone, st.ActiveMethod)
}

func TestMutualExclusion(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	release := h.identity.Hold(testutils.OpSignInWithPassword)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.ctrl.SubmitPassword(ctx, "a@b.com", "secret123") }()
	<-h.identity.Started()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 10; i++ {
		wg.Add(4)
		go func() { defer wg.Done(); errs <- h.ctrl.SubmitMagicLink(ctx, "a@b.com") }()
		go func() { defer wg.Done(); errs <- h.ctrl.SubmitPassword(ctx, "a@b.com", "secret123") }()
		go func() { defer wg.Done(); errs <- h.ctrl.SignInWithDiscord(ctx) }()
		go func() { defer wg.Done(); errs <- h.ctrl.SignInWithGoogle(ctx) }()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, domain.ErrBusy)
	}
	assert.Len(t, h.identity.Calls(), 1, "rejected submissions never reach the identity service")
	assert.Equal(t, domain.MethodPassword, h.ctrl.Snapshot().ActiveMethod)

	release()
	require.NoError(t, <-done)
}

func TestSetTab_Persists(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})

	require.NoError(t, h.ctrl.SetTab(context.Background(), domain.TabPassword))
	v, _ := h.prefs.Get(domain.PrefLastAuthTab)
	assert.Equal(t, "password", v)

	next := signin.New(domain.AttemptContext{}, signin.Deps{Preferences: h.prefs}, signin.WithClock(h.clock))
	defer next.Close()
	assert.Equal(t, domain.TabPassword, next.Snapshot().LastUsedTab, "the next attempt starts on the remembered tab")
}

func TestSubmit_DispatchesByTab(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Submit(ctx, domain.CredentialForm{Email: "a@b.com"}))
	assert.Equal(t, 1, h.identity.CallCount(testutils.OpSendSignInEmail))

	require.NoError(t, h.ctrl.SetTab(ctx, domain.TabPassword))
	require.NoError(t, h.ctrl.Submit(ctx, domain.CredentialForm{Email: "a@b.com", Password: "secret123"}))
	assert.Equal(t, 1, h.identity.CallCount(testutils.OpSignInWithPassword))
}

func TestOpenMailClient(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})

	a := h.ctrl.OpenMailClient("user@outlook.com")
	assert.Equal(t, mailclient.KindWebmail, a.Kind)
	assert.Equal(t, []string{"https://outlook.live.com"}, h.effects.Opened())

	a = h.ctrl.OpenMailClient("user@unknownmail.xyz")
	assert.Equal(t, mailclient.KindMailto, a.Kind)
	assert.Equal(t, []string{"mailto:user@unknownmail.xyz"}, h.effects.Navigations())
	assert.Equal(t, flow.PhaseIdle, h.ctrl.Snapshot().Phase)
}

func TestClose(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	ctx := context.Background()
	require.NoError(t, h.ctrl.SubmitMagicLink(ctx, "a@b.com"))
	require.Equal(t, 1, h.clock.Pending())

	h.ctrl.Close()
	h.ctrl.Close()

	assert.Equal(t, 0, h.clock.Pending(), "closing discards the pending tick")
	assert.ErrorIs(t, h.ctrl.SignInWithGoogle(ctx), domain.ErrAttemptFinished)
	assert.ErrorIs(t, h.ctrl.SetTab(ctx, domain.TabPassword), domain.ErrAttemptFinished)
}

func TestClose_DuringSend(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	release := h.identity.Hold(testutils.OpSendSignInEmail)

	done := make(chan error, 1)
	go func() { done <- h.ctrl.SubmitMagicLink(context.Background(), "a@b.com") }()
	<-h.identity.Started()

	h.ctrl.Close()
	release()
	require.NoError(t, <-done)

	assert.True(t, h.ctrl.Closed())
	assert.Equal(t, 0, h.clock.Pending(), "no cooldown is armed once closed")
	st := h.ctrl.Snapshot()
	assert.False(t, st.Busy)
	assert.Zero(t, st.CooldownRemaining)
	assert.Empty(t, h.effects.Notices())
}

func TestInvalidSubmission_WhileBusy(t *testing.T) {
	h := newHarness(t, domain.AttemptContext{})
	release := h.identity.Hold(testutils.OpSignInWithPassword)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.ctrl.SubmitPassword(ctx, "a@b.com", "secret123") }()
	<-h.identity.Started()

	assert.ErrorIs(t, h.ctrl.SubmitMagicLink(ctx, "not-an-email"), domain.ErrBusy)
	assert.ErrorIs(t, h.ctrl.SubmitPassword(ctx, "a@b.com", "abc"), domain.ErrBusy)

	st := h.ctrl.Snapshot()
	assert.True(t, st.Busy)
	assert.Equal(t, domain.MethodPassword, st.ActiveMethod)
	assert.Empty(t, st.FieldErrors)

	release()
	require.NoError(t, <-done)
}

func TestEventsArePublished(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan signin.AttemptEvent, 16)
	require.NoError(t, pubsub.Subscribe(ctx, bridge, signin.EventsFor("attempt-1"), func(_ context.Context, ev signin.AttemptEvent) error {
		got <- ev
		return nil
	}))

	h := newHarness(t, domain.AttemptContext{}, signin.WithPublisher(bridge))
	require.NoError(t, h.ctrl.SubmitMagicLink(context.Background(), "a@b.com"))

	var kinds []signin.EventKind
	timeout := time.After(2 * time.Second)
	for len(kinds) < 2 {
		select {
		case ev := <-got:
			assert.Equal(t, "attempt-1", ev.AttemptID)
			kinds = append(kinds, ev.Kind)
		case <-timeout:
			t.Fatalf("only received %v", kinds)
		}
	}
	assert.ElementsMatch(t, []signin.EventKind{signin.EventSubmitted, signin.EventCodeSent}, kinds)
}
