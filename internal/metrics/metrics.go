// Package metrics exposes Prometheus instrumentation for sign-in attempts and
// the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives sign-in instrumentation from the controller.
type Recorder interface {
	AttemptStarted(method string)
	AttemptFinished(method, outcome string, elapsed time.Duration)
	Classified(code string)
	Rejected(reason string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) AttemptStarted(string)                         {}
func (Nop) AttemptFinished(string, string, time.Duration) {}
func (Nop) Classified(string)                             {}
func (Nop) Rejected(string)                               {}

// Collector is the Prometheus Recorder. All collectors are registered on the
// Registerer passed to New.
type Collector struct {
	started          *prometheus.CounterVec
	finished         *prometheus.CounterVec
	classified       *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	identityDuration *prometheus.HistogramVec
	LiveAttempts     prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the sign-in collectors on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		started: factory.NewCounterVec(
			prometheus.CounterOpts{Name: MetricNameAttemptsStarted, Help: HelpTextAttemptsStarted},
			[]string{LabelMethod},
		),
		finished: factory.NewCounterVec(
			prometheus.CounterOpts{Name: MetricNameAttemptsFinished, Help: HelpTextAttemptsFinished},
			[]string{LabelMethod, LabelOutcome},
		),
		classified: factory.NewCounterVec(
			prometheus.CounterOpts{Name: MetricNameClassifications, Help: HelpTextClassifications},
			[]string{LabelCode},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{Name: MetricNameRejections, Help: HelpTextRejections},
			[]string{LabelReason},
		),
		identityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: MetricNameIdentityDuration, Help: HelpTextIdentityDuration, Buckets: IdentityLatencyBuckets},
			[]string{LabelMethod},
		),
		LiveAttempts: factory.NewGauge(
			prometheus.GaugeOpts{Name: MetricNameLiveAttempts, Help: HelpTextLiveAttempts},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{Name: MetricNameHTTPRequestsTotal, Help: HelpTextHTTPRequestsTotal},
			[]string{LabelHTTPVerb, LabelPath, LabelStatus},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: MetricNameHTTPRequestDuration, Help: HelpTextHTTPRequestDuration, Buckets: prometheus.DefBuckets},
			[]string{LabelHTTPVerb, LabelPath},
		),
	}
}

func (c *Collector) AttemptStarted(method string) {
	c.started.WithLabelValues(method).Inc()
}

func (c *Collector) AttemptFinished(method, outcome string, elapsed time.Duration) {
	c.finished.WithLabelValues(method, outcome).Inc()
	c.identityDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (c *Collector) Classified(code string) {
	c.classified.WithLabelValues(code).Inc()
}

func (c *Collector) Rejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}
