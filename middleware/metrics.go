package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Responses counts responses by configuration and whether the headers
	// came from the precomputed cache or were rendered for the request.
	Responses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secure_headers_responses_total",
		Help: "Number of responses the secure headers were applied to",
	}, []string{"config", "render"})

	// Errors counts failures by the stage they happened in.
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secure_headers_errors_total",
		Help: "Number of requests that failed while applying secure headers",
	}, []string{"stage"})

	// FlaggedCookies counts Set-Cookie headers rewritten by the middleware.
	FlaggedCookies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "secure_headers_flagged_cookies_total",
		Help: "Number of Set-Cookie headers whose attributes were changed",
	})
)

const (
	renderCached  = "cached"
	renderDynamic = "dynamic"

	stageAttach = "attach"
	stageRender = "render"
	stageCookie = "cookies"
)
