// Package attempts keeps the live sign-in controllers of the HTTP surface,
// one per browser session, in a bounded cache that closes whatever it drops.
package attempts

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nfrund/signin/internal/preferences"
	"github.com/nfrund/signin/internal/signin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultSize = 1024
	DefaultTTL  = 30 * time.Minute
)

// Entry is one live attempt: its controller, the outbox the controller
// reports effects to, and the per-session preference values it writes.
type Entry struct {
	Controller *signin.Controller
	Outbox     *signin.Outbox
	Prefs      *preferences.Memory
}

// ID is the attempt id of the controller.
func (e *Entry) ID() string { return e.Controller.ID() }

// Registry is safe for concurrent use. Entries leave either by Remove, by
// least-recent-use eviction once size is reached, or after ttl; in every case
// the controller is closed.
type Registry struct {
	lru    *expirable.LRU[string, *Entry]
	live   prometheus.Gauge
	logger *slog.Logger
}

// Option is a function that configures a Registry.
type Option func(*Registry)

// WithGauge tracks the number of live attempts on g.
func WithGauge(g prometheus.Gauge) Option {
	return func(r *Registry) { r.live = g }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a registry holding at most size attempts for ttl each. Get
// does not extend the ttl.
func New(size int, ttl time.Duration, opts ...Option) *Registry {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "attempts")
	r.lru = expirable.NewLRU[string, *Entry](size, r.onEvict, ttl)
	return r
}

// onEvict runs under the cache lock; it must not call back into the cache.
func (r *Registry) onEvict(id string, e *Entry) {
	e.Controller.Close()
	if r.live != nil {
		r.live.Dec()
	}
	r.logger.Debug("attempt released", "attempt_id", id)
}

// Add stores e under its attempt id. A different entry already stored under
// the same id is closed.
func (r *Registry) Add(e *Entry) {
	id := e.ID()
	if old, ok := r.lru.Peek(id); ok {
		if old != e {
			old.Controller.Close()
		}
		r.lru.Add(id, e)
		return
	}
	r.lru.Add(id, e)
	if r.live != nil {
		r.live.Inc()
	}
}

// Get returns the live entry for id.
func (r *Registry) Get(id string) (*Entry, bool) {
	if id == "" {
		return nil, false
	}
	return r.lru.Get(id)
}

// Remove closes and drops the entry for id. It reports whether one existed.
func (r *Registry) Remove(id string) bool {
	return r.lru.Remove(id)
}

// Len returns the number of live attempts, expired ones included until the
// next cleanup pass.
func (r *Registry) Len() int {
	return r.lru.Len()
}

// Purge closes and drops every attempt.
func (r *Registry) Purge() {
	r.lru.Purge()
}
