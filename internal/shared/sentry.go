package shared

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter forwards fatal errors to Sentry when a DSN is configured and is a no-op otherwise.
type Reporter struct {
	enabled bool
}

// NewReporter initializes the Sentry SDK from the telemetry config.
func NewReporter(cfg TelemetryConfig, release string) (*Reporter, error) {
	if cfg.SentryDSN == "" {
		return &Reporter{}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     "flacsync@" + release,
	})
	if err != nil {
		return &Reporter{}, err
	}
	return &Reporter{enabled: true}, nil
}

// Enabled reports whether events are sent anywhere.
func (r *Reporter) Enabled() bool { return r != nil && r.enabled }

// Capture sends err with optional string tags.
func (r *Reporter) Capture(err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits up to two seconds for buffered events.
func (r *Reporter) Flush() {
	if r.Enabled() {
		sentry.Flush(2 * time.Second)
	}
}
