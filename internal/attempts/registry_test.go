package attempts_test

import (
	"context"
	"testing"
	"time"

	"github.com/nfrund/signin/internal/attempts"
	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/preferences"
	"github.com/nfrund/signin/internal/signin"
	"github.com/nfrund/signin/internal/testutils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(t *testing.T, id string) *attempts.Entry {
	t.Helper()
	out := &signin.Outbox{}
	prefs := preferences.NewMemory(nil)
	ctrl := signin.New(domain.AttemptContext{}, signin.Deps{
		Identity:    testutils.NewScriptedIdentity(),
		Preferences: prefs,
		Notifier:    out,
		Navigator:   out,
	}, signin.WithID(id), signin.WithClock(testutils.NewFakeClock()), signin.WithLogger(testutils.DiscardLogger()))
	return &attempts.Entry{Controller: ctrl, Outbox: out, Prefs: prefs}
}

func newGauge() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_live_attempts"})
}

func TestRegistry_AddGetRemove(t *testing.T) {
	g := newGauge()
	r := attempts.New(4, time.Hour, attempts.WithGauge(g), attempts.WithLogger(testutils.DiscardLogger()))

	e := newEntry(t, "a")
	r.Add(e)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(g))

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, e, got)

	_, ok = r.Get("")
	assert.False(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.True(t, e.Controller.Closed())
	assert.Equal(t, 0.0, testutil.ToFloat64(g))
}

func TestRegistry_EvictionClosesOldest(t *testing.T) {
	g := newGauge()
	r := attempts.New(2, time.Hour, attempts.WithGauge(g))

	a, b, c := newEntry(t, "a"), newEntry(t, "b"), newEntry(t, "c")
	r.Add(a)
	r.Add(b)
	r.Add(c)

	assert.Equal(t, 2, r.Len())
	assert.True(t, a.Controller.Closed())
	assert.False(t, b.Controller.Closed())
	assert.Equal(t, 2.0, testutil.ToFloat64(g))

	err := a.Controller.SubmitMagicLink(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, domain.ErrAttemptFinished)
}

func TestRegistry_ReplaceClosesPrevious(t *testing.T) {
	g := newGauge()
	r := attempts.New(2, time.Hour, attempts.WithGauge(g))

	first, second := newEntry(t, "same"), newEntry(t, "same")
	r.Add(first)
	r.Add(second)

	assert.True(t, first.Controller.Closed())
	assert.False(t, second.Controller.Closed())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(g))
}

func TestRegistry_Expiry(t *testing.T) {
	r := attempts.New(2, 20*time.Millisecond)
	e := newEntry(t, "a")
	r.Add(e)

	assert.Eventually(t, func() bool {
		_, ok := r.Get("a")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_Purge(t *testing.T) {
	g := newGauge()
	r := attempts.New(0, 0, attempts.WithGauge(g))
	a, b := newEntry(t, "a"), newEntry(t, "b")
	r.Add(a)
	r.Add(b)

	r.Purge()
	assert.Equal(t, 0, r.Len())
	assert.True(t, a.Controller.Closed())
	assert.True(t, b.Controller.Closed())
	assert.Equal(t, 0.0, testutil.ToFloat64(g))
}
