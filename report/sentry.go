// Package report sends configuration and rendering failures to Sentry.
package report

import (
	"os"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
)

// EnvDSN names the environment variable holding the Sentry DSN.
const EnvDSN = "SENTRY_DSN"

const flushTimeout = 2 * time.Second

// Setup initializes the Sentry client. An empty dsn falls back to SENTRY_DSN;
// when both are empty events are dropped silently.
func Setup(dsn, env, version string) error {
	if dsn == "" {
		dsn = os.Getenv(EnvDSN)
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     version,
	}); err != nil {
		return errors.Wrap(err, "sentry.Init")
	}
	configureScope(env, version)
	return nil
}

// Flush waits for buffered events to be delivered.
func Flush() {
	sentry.Flush(flushTimeout)
}

func configureScope(env, version string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("env", env)
		scope.SetTag("app_version", version)
		scope.SetTag("go_version", runtime.Version())
		scope.SetContext("host_info", map[string]interface{}{
			"hostname": hostname(),
		})
	})
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
