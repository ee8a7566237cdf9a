package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity provider names accepted in IDENTITY_PROVIDER.
const (
	IdentityLog    = "log"
	IdentityGoTrue = "gotrue"
	IdentityNone   = "none"
)

// Provider is the read-only view of the configuration that components depend
// on. Tests substitute their own implementation.
type Provider interface {
	GetAppAddr() string
	GetAppBaseURL() string
	GetAppEnv() string
	GetSessionSecret() string
	GetLogFormat() string
	GetLogLevel() string
	GetIdentityProvider() string
	GetIdentityURL() string
	GetIdentityAPIKey() string
	GetDefaultLanding() string
	GetCheckoutPath() string
	GetDefaultLocale() string
	GetPreferencesPath() string
	GetAttemptCacheSize() int
	GetAttemptTTL() time.Duration
	GetRateLimit() float64
	GetTracingEnabled() bool
	GetTracingServiceName() string
	GetZipkinURL() string
}

// Config holds all configuration for the application.
type Config struct {
	AppAddr            string
	AppBaseURL         string
	AppEnv             string
	SessionSecret      string
	LogFormat          string
	LogLevel           string
	IdentityProvider   string
	IdentityURL        string
	IdentityAPIKey     string
	DefaultLanding     string
	CheckoutPath       string
	DefaultLocale      string
	PreferencesPath    string
	AttemptCacheSize   int
	AttemptTTL         time.Duration
	RateLimit          float64
	TracingEnabled     bool
	TracingServiceName string
	ZipkinURL          string
}

var _ Provider = (*Config)(nil)

// New loads .env (if present) and then reads the environment.
func New() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset values.
func FromEnv(getenv func(string) string) *Config {
	str := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	return &Config{
		AppAddr:            str("APP_ADDR", ":8080"),
		AppBaseURL:         strings.TrimRight(str("APP_BASE_URL", "http://localhost:8080"), "/"),
		AppEnv:             str("APP_ENV", "dev"),
		SessionSecret:      getenv("SESSION_SECRET"),
		LogFormat:          str("LOG_FORMAT", "text"),
		LogLevel:           str("LOG_LEVEL", "info"),
		IdentityProvider:   strings.ToLower(str("IDENTITY_PROVIDER", IdentityLog)),
		IdentityURL:        strings.TrimRight(str("IDENTITY_URL", ""), "/"),
		IdentityAPIKey:     getenv("IDENTITY_API_KEY"),
		DefaultLanding:     str("DEFAULT_LANDING", "/dashboard"),
		CheckoutPath:       str("CHECKOUT_PATH", "api/stripe/create-checkout-session"),
		DefaultLocale:      str("DEFAULT_LOCALE", "en"),
		PreferencesPath:    str("PREFERENCES_PATH", defaultPreferencesPath(getenv)),
		AttemptCacheSize:   intValue(getenv("ATTEMPT_CACHE_SIZE"), 1024),
		AttemptTTL:         durationValue(getenv("ATTEMPT_TTL"), 30*time.Minute),
		RateLimit:          floatValue(getenv("RATE_LIMIT"), 5),
		TracingEnabled:     boolValue(getenv("TRACING_ENABLED"), false),
		TracingServiceName: str("TRACING_SERVICE_NAME", "signin"),
		ZipkinURL:          str("ZIPKIN_URL", "http://localhost:9411/api/v2/spans"),
	}
}

// Validate reports configuration that cannot work. requireSession is set by
// the HTTP server, which needs a cookie secret; the CLI does not.
func (c *Config) Validate(requireSession bool) error {
	var errs []error
	if requireSession && len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters"))
	}
	switch c.IdentityProvider {
	case IdentityLog:
		if c.AppEnv == "prod" {
			errs = append(errs, errors.New("IDENTITY_PROVIDER=log is not allowed when APP_ENV=prod"))
		}
	case IdentityGoTrue:
		if c.IdentityURL == "" {
			errs = append(errs, errors.New("IDENTITY_URL is required for IDENTITY_PROVIDER=gotrue"))
		}
	case IdentityNone:
	default:
		errs = append(errs, fmt.Errorf("unknown IDENTITY_PROVIDER %q", c.IdentityProvider))
	}
	if c.AttemptCacheSize <= 0 {
		errs = append(errs, errors.New("ATTEMPT_CACHE_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) GetAppAddr() string            { return c.AppAddr }
func (c *Config) GetAppBaseURL() string         { return c.AppBaseURL }
func (c *Config) GetAppEnv() string             { return c.AppEnv }
func (c *Config) GetSessionSecret() string      { return c.SessionSecret }
func (c *Config) GetLogFormat() string          { return c.LogFormat }
func (c *Config) GetLogLevel() string           { return c.LogLevel }
func (c *Config) GetIdentityProvider() string   { return c.IdentityProvider }
func (c *Config) GetIdentityURL() string        { return c.IdentityURL }
func (c *Config) GetIdentityAPIKey() string     { return c.IdentityAPIKey }
func (c *Config) GetDefaultLanding() string     { return c.DefaultLanding }
func (c *Config) GetCheckoutPath() string       { return c.CheckoutPath }
func (c *Config) GetDefaultLocale() string      { return c.DefaultLocale }
func (c *Config) GetPreferencesPath() string    { return c.PreferencesPath }
func (c *Config) GetAttemptCacheSize() int      { return c.AttemptCacheSize }
func (c *Config) GetAttemptTTL() time.Duration  { return c.AttemptTTL }
func (c *Config) GetRateLimit() float64         { return c.RateLimit }
func (c *Config) GetTracingEnabled() bool       { return c.TracingEnabled }
func (c *Config) GetTracingServiceName() string { return c.TracingServiceName }
func (c *Config) GetZipkinURL() string          { return c.ZipkinURL }

func defaultPreferencesPath(getenv func(string) string) string {
	if dir := getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "signin", "preferences.json")
	}
	if home := getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", "signin", "preferences.json")
	}
	return filepath.Join(os.TempDir(), "signin", "preferences.json")
}

func intValue(raw string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return v
	}
	return def
}

func floatValue(raw string, def float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && v > 0 {
		return v
	}
	return def
}

func boolValue(raw string, def bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
		return v
	}
	return def
}

func durationValue(raw string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && v > 0 {
		return v
	}
	return def
}
