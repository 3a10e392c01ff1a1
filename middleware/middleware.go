// Package middleware applies secure headers to net/http responses.
package middleware

import (
	"net/http"

	"github.com/projectdiscovery/gologger"

	"github.com/secinto/secure-headers/config"
	"github.com/secinto/secure-headers/cookie"
	"github.com/secinto/secure-headers/request"
)

// ErrorHandler is called when the headers for a request cannot be produced.
// The response has already been replaced by a 500.
type ErrorHandler func(r *http.Request, err error)

// SecureHeaders attaches per-request state from a Store and writes the
// resulting header set right before the response status is sent. Handlers
// further down can change the request's configuration through the request
// package until they write.
type SecureHeaders struct {
	store   *config.Store
	onError ErrorHandler
}

func New(store *config.Store) *SecureHeaders {
	return &SecureHeaders{store: store}
}

// OnError sets the hook called on failures.
func (m *SecureHeaders) OnError(fn ErrorHandler) *SecureHeaders {
	m.onError = fn
	return m
}

func (m *SecureHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, err := request.Attach(r, m.store)
		if err != nil {
			m.fail(w, r, stageAttach, err)
			return
		}
		ww := &responseWriter{ResponseWriter: w, m: m, r: r}
		next.ServeHTTP(ww, r)
		if !ww.wroteHeader {
			ww.WriteHeader(http.StatusOK)
		}
	})
}

func (m *SecureHeaders) fail(w http.ResponseWriter, r *http.Request, stage string, err error) {
	Errors.WithLabelValues(stage).Inc()
	gologger.Error().Msgf("Could not apply secure headers to %s: %s", r.URL.Path, err)
	if m.onError != nil {
		m.onError(r, err)
	}
	h := w.Header()
	for k := range h {
		delete(h, k)
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// apply writes the header set and flags cookies. Header values already set
// by the handler are kept.
func (m *SecureHeaders) apply(w http.ResponseWriter, r *http.Request) (string, error) {
	hs, err := request.HeaderSet(r)
	if err != nil {
		return stageRender, err
	}
	h := w.Header()
	for _, header := range hs {
		if h.Get(header.Name) == "" {
			h.Set(header.Name, header.Value)
		}
	}

	c, err := request.Cookies(r)
	if err != nil {
		return stageCookie, err
	}
	if raw := h.Values("Set-Cookie"); len(raw) > 0 {
		flagged := make([]string, len(raw))
		for i, v := range raw {
			flagged[i] = cookie.Flag(v, c)
			if flagged[i] != v {
				FlaggedCookies.Inc()
			}
		}
		h["Set-Cookie"] = flagged
	}

	render := renderCached
	if request.Dynamic(r) {
		render = renderDynamic
	}
	Responses.WithLabelValues(request.ConfigName(r), render).Inc()
	return "", nil
}

type responseWriter struct {
	http.ResponseWriter
	m           *SecureHeaders
	r           *http.Request
	wroteHeader bool
	failed      bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if stage, err := w.m.apply(w.ResponseWriter, w.r); err != nil {
		w.failed = true
		w.m.fail(w.ResponseWriter, w.r, stage, err)
		return
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.failed {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok && !w.failed {
		f.Flush()
	}
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
