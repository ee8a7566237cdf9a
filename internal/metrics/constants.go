package metrics

// Metric names
const (
	MetricNameAttemptsStarted     = "signin_attempts_started_total"
	MetricNameAttemptsFinished    = "signin_attempts_finished_total"
	MetricNameClassifications     = "signin_error_classifications_total"
	MetricNameRejections          = "signin_rejections_total"
	MetricNameIdentityDuration    = "signin_identity_call_duration_seconds"
	MetricNameLiveAttempts        = "signin_live_attempts"
	MetricNameHTTPRequestsTotal   = "http_requests_total"
	MetricNameHTTPRequestDuration = "http_request_duration_seconds"
)

// Help text
const (
	HelpTextAttemptsStarted     = "Identity calls started, by sign-in method"
	HelpTextAttemptsFinished    = "Identity calls finished, by sign-in method and outcome"
	HelpTextClassifications     = "Identity failures by classification code"
	HelpTextRejections          = "Requests rejected before reaching the identity service, by reason"
	HelpTextIdentityDuration    = "Identity call latency in seconds"
	HelpTextLiveAttempts        = "Sign-in attempts currently held in the registry"
	HelpTextHTTPRequestsTotal   = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration = "HTTP request latency in seconds"
)

// Labels
const (
	LabelMethod   = "method"
	LabelOutcome  = "outcome"
	LabelCode     = "code"
	LabelReason   = "reason"
	LabelHTTPVerb = "verb"
	LabelPath     = "path"
	LabelStatus   = "status"
)

// Outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePanic   = "panic"
)

// IdentityLatencyBuckets covers fast local fakes up to slow upstream calls.
var IdentityLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
