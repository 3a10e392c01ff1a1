package report

import (
	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"

	"github.com/secinto/secure-headers/headers"
)

// Options carries optional data attached to a reported error.
type Options struct {
	Tags         map[string]string
	ExtraContext map[string]interface{}
	Level        sentry.Level
}

// Error reports err at error level. Configuration errors are tagged with
// the header key they belong to.
func Error(err error) {
	ErrorWithOptions(err, Options{})
}

// ErrorWithOptions reports err with additional tags, context and level.
func ErrorWithOptions(err error, opts Options) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		level := opts.Level
		if level == "" {
			level = sentry.LevelError
		}
		scope.SetLevel(level)
		var cfgErr *headers.ConfigError
		if errors.As(err, &cfgErr) {
			scope.SetTag("header_key", string(cfgErr.Key))
		}
		for k, v := range opts.Tags {
			scope.SetTag(k, v)
		}
		if opts.ExtraContext != nil {
			scope.SetContext("extra", opts.ExtraContext)
		}
		sentry.CaptureException(err)
	})
}
