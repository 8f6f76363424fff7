// Package sentryx reports fatal run errors to Sentry when a DSN is configured.
// Every function is a no-op until Init succeeds.
package sentryx

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

var enabled bool

// Init enables reporting. dsn falls back to SENTRY_DSN; with neither set
// reporting stays off and Init returns false.
func Init(dsn, environment, release, runID string) (bool, error) {
	if dsn == "" {
		dsn = os.Getenv("SENTRY_DSN")
	}
	if dsn == "" {
		return false, nil
	}
	if environment == "" {
		environment = "unknown"
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		ServerName:       "milemarker",
		AttachStacktrace: true,
	}); err != nil {
		return false, fmt.Errorf("sentry init: %w", err)
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", runID)
	})
	enabled = true
	return true, nil
}

// Enabled reports whether Init succeeded.
func Enabled() bool {
	return enabled
}

func CaptureError(err error, message string, args ...any) {
	if !enabled {
		return
	}
	if err == nil {
		return
	}

	msg := message
	if len(args) > 0 {
		msg = fmt.Sprintf(message, args...)
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		if msg != "" {
			scope.SetTag("log_message", msg)
		}
		sentry.CaptureException(err)
	})
}

// RecoverPanicAndCapture must be deferred. It reports a panic, flushes, and
// re-panics.
func RecoverPanicAndCapture() {
	if !enabled {
		return
	}
	if rec := recover(); rec != nil {
		sentry.CurrentHub().Recover(rec)
		sentry.Flush(2 * time.Second)
		panic(rec)
	}
}

func Flush(timeout time.Duration) {
	if !enabled {
		return
	}
	sentry.Flush(timeout)
}
