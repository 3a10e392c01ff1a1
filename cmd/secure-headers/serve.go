package main

import (
	"context"
	"html/template"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/secinto/secure-headers/config"
	"github.com/secinto/secure-headers/hashes"
	"github.com/secinto/secure-headers/headers"
	"github.com/secinto/secure-headers/middleware"
	"github.com/secinto/secure-headers/report"
	"github.com/secinto/secure-headers/request"
)

const maxReportSize = 64 << 10

var indexTemplate = template.Must(template.New("index.html").Parse(`<!DOCTYPE html>
<html>
<head><title>secure-headers</title></head>
<body>
<h1>secure-headers</h1>
<p id="status"></p>
<script nonce="{{.Nonce}}">document.getElementById("status").textContent = "nonce accepted";</script>
</body>
</html>
`))

type demo struct {
	hashes *hashes.Hashes
}

func serve(store *config.Store, options *Options) error {
	h, err := loadHashes(options.HashesFile)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              options.Serve,
		Handler:           newHandler(store, h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			gologger.Error().Msgf("Shutdown failed: %s", err)
		}
	}()

	gologger.Info().Msgf("Serving on %s", options.Serve)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server stopped")
	}
	return nil
}

func loadHashes(location string) (*hashes.Hashes, error) {
	if location != "" {
		return hashes.Load(location)
	}
	return hashes.LoadFromEnv()
}

// newHandler wires the demo routes behind the secure headers middleware.
// /metrics is served without it.
func newHandler(store *config.Store, h *hashes.Hashes) http.Handler {
	d := &demo{hashes: h}
	secured := middleware.New(store).OnError(func(r *http.Request, err error) {
		report.ErrorWithOptions(err, report.Options{
			Tags: map[string]string{"path": r.URL.Path, "config": request.ConfigName(r)},
		})
	})

	router := httprouter.New()
	router.GET("/", d.index)
	router.GET("/embed", d.embed)
	router.POST("/csp-report", d.cspReport)

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/", secured.Handler(router))

	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic:         true,
		WaitForDelivery: true,
		Timeout:         2 * time.Second,
	})
	return sentryHandler.Handle(root)
}

func (d *demo) index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	nonce, err := request.ScriptNonce(r)
	if err != nil {
		d.serverError(w, r, err)
		return
	}
	if additions := d.hashes.Additions("index.html"); additions != nil {
		if err := request.AppendDirectives(r, additions); err != nil {
			d.serverError(w, r, err)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct{ Nonce string }{nonce}); err != nil {
		gologger.Error().Msgf("Could not render index: %s", err)
	}
}

// embed may be framed by any site.
func (d *demo) embed(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := request.OptOut(r, headers.KeyXFrameOptions); err != nil {
		d.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "embeddable\n")
}

func (d *demo) cspReport(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := request.OptOutOfAll(r); err != nil {
		d.serverError(w, r, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportSize))
	if err != nil {
		http.Error(w, "could not read report", http.StatusBadRequest)
		return
	}
	gologger.Warning().Msgf("CSP violation report from %s: %s", r.RemoteAddr, body)
	w.WriteHeader(http.StatusNoContent)
}

func (d *demo) serverError(w http.ResponseWriter, r *http.Request, err error) {
	report.Error(err)
	gologger.Error().Msgf("%s %s: %s", r.Method, r.URL.Path, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
