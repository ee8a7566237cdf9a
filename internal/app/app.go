// Package app wires the sign-in server's services together in a samber/do
// container. Everything is lazy; invoking the sign-in handler pulls in the
// rest.
package app

import (
	"context"
	"log/slog"

	"github.com/nfrund/signin/internal/attempts"
	"github.com/nfrund/signin/internal/config"
	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/handlers"
	"github.com/nfrund/signin/internal/identity"
	"github.com/nfrund/signin/internal/launch"
	"github.com/nfrund/signin/internal/metrics"
	"github.com/nfrund/signin/internal/pubsub"
	"github.com/nfrund/signin/internal/signin"
	"github.com/nfrund/signin/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"
)

// Version is reported in traces. It is set at build time with -ldflags.
var Version = "dev"

// Tracing owns the tracer provider set up for the process.
type Tracing struct {
	Tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// Bus is the in-process event bus. Shutdown lets the container close it.
type Bus struct {
	*pubsub.WatermillBridge
}

func (b *Bus) Shutdown() error {
	return b.Close()
}

// Attempts wraps the registry so the container closes every live attempt
// on shutdown.
type Attempts struct {
	*attempts.Registry
}

func (a *Attempts) Shutdown() {
	a.Purge()
}

// Package registers every service. cfg and logger are provided as values.
func Package(cfg config.Provider, logger *slog.Logger) func(do.Injector) {
	return do.Package(
		do.Eager(cfg),
		do.Eager(logger),
		do.Lazy(newTracing),
		do.Lazy(newBus),
		do.Lazy(newPrometheus),
		do.Lazy(newMetrics),
		do.Lazy(newIdentity),
		do.Lazy(newAttempts),
		do.Lazy(newStream),
		do.Lazy(newSignInHandler),
	)
}

// New creates the root container.
func New(cfg config.Provider, logger *slog.Logger) *do.RootScope {
	return do.New(Package(cfg, logger))
}

func newTracing(i do.Injector) (*Tracing, error) {
	cfg := do.MustInvoke[config.Provider](i)
	tc := pubsub.DefaultTracingConfig()
	tc.Enabled = cfg.GetTracingEnabled()
	tc.Version = Version
	if name := cfg.GetTracingServiceName(); name != "" {
		tc.ServiceName = name
	}
	if u := cfg.GetZipkinURL(); u != "" {
		tc.ZipkinURL = u
	}

	tracer, shutdown, err := pubsub.SetupOTel(context.Background(), tc)
	if err != nil {
		return nil, err
	}
	return &Tracing{Tracer: tracer, shutdown: shutdown}, nil
}

func newBus(i do.Injector) (*Bus, error) {
	tracing := do.MustInvoke[*Tracing](i)
	return &Bus{WatermillBridge: pubsub.NewWatermillBridgeWithTracer(tracing.Tracer)}, nil
}

func newPrometheus(do.Injector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, nil
}

func newMetrics(i do.Injector) (*metrics.Collector, error) {
	return metrics.New(do.MustInvoke[*prometheus.Registry](i)), nil
}

func newIdentity(i do.Injector) (domain.IdentityService, error) {
	return identity.NewIdentityService(do.MustInvoke[config.Provider](i))
}

func newAttempts(i do.Injector) (*Attempts, error) {
	cfg := do.MustInvoke[config.Provider](i)
	collector := do.MustInvoke[*metrics.Collector](i)
	logger := do.MustInvoke[*slog.Logger](i)
	reg := attempts.New(cfg.GetAttemptCacheSize(), cfg.GetAttemptTTL(),
		attempts.WithGauge(collector.LiveAttempts),
		attempts.WithLogger(logger),
	)
	return &Attempts{Registry: reg}, nil
}

func newStream(i do.Injector) (*websocket.Stream, error) {
	bus := do.MustInvoke[*Bus](i)
	logger := do.MustInvoke[*slog.Logger](i)
	return websocket.NewStream(bus, websocket.WithLogger(logger)), nil
}

func newSignInHandler(i do.Injector) (*handlers.SignInHandler, error) {
	cfg := do.MustInvoke[config.Provider](i)
	ident, err := do.Invoke[domain.IdentityService](i)
	if err != nil {
		return nil, err
	}
	tracing := do.MustInvoke[*Tracing](i)

	return handlers.NewSignInHandler(handlers.SignInConfig{
		Identity:  ident,
		Registry:  do.MustInvoke[*Attempts](i).Registry,
		Stream:    do.MustInvoke[*websocket.Stream](i),
		Publisher: do.MustInvoke[*Bus](i),
		Metrics:   do.MustInvoke[*metrics.Collector](i),
		Redirects: launch.Redirects{
			CheckoutPath:   cfg.GetCheckoutPath(),
			DefaultLanding: cfg.GetDefaultLanding(),
		},
		DefaultLocale:     cfg.GetDefaultLocale(),
		Logger:            do.MustInvoke[*slog.Logger](i),
		ControllerOptions: []signin.Option{signin.WithTracer(tracing.Tracer)},
	}), nil
}
