package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/secinto/secure-headers/config"
	"github.com/secinto/secure-headers/cookie"
	"github.com/secinto/secure-headers/csp"
	"github.com/secinto/secure-headers/headers"
	"github.com/secinto/secure-headers/request"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func newStore(t *testing.T) *config.Store {
	t.Helper()
	s := config.NewStore()
	_, err := s.Default(func(c *config.Configuration) error {
		if err := c.SetCSP(csp.NewPolicy(csp.Directives{csp.DefaultSrc: csp.Sources{csp.Self}})); err != nil {
			return err
		}
		c.SetCookies(cookie.Config{
			Secure:   cookie.Always(),
			HttpOnly: cookie.ExceptFor("js_visible"),
			SameSite: cookie.SameSiteConfig{Lax: cookie.Always()},
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Could not configure store: %v", err)
	}
	return s
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.Header.Set("User-Agent", chromeUA)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandler_AppliesHeaders(t *testing.T) {
	h := New(newStore(t)).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	before := testutil.ToFloat64(Responses.WithLabelValues(config.DefaultName, renderCached))
	w := serve(h, "https://example.com/")

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("Unexpected response %d %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get(csp.HeaderName); got != "default-src 'self';" {
		t.Errorf("Unexpected CSP %q", got)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got == "" {
		t.Error("Expected HSTS on https")
	}
	if got := w.Header().Get("X-Frame-Options"); got != "sameorigin" {
		t.Errorf("Unexpected X-Frame-Options %q", got)
	}
	if after := testutil.ToFloat64(Responses.WithLabelValues(config.DefaultName, renderCached)); after != before+1 {
		t.Errorf("Expected cached response counter to grow by one, got %v -> %v", before, after)
	}
}

func TestHandler_EmptyHandler(t *testing.T) {
	h := New(newStore(t)).Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	w := serve(h, "https://example.com/")
	if got := w.Header().Get(csp.HeaderName); got != "default-src 'self';" {
		t.Errorf("Expected headers without an explicit write, got %q", got)
	}
}

func TestHandler_RequestChanges(t *testing.T) {
	h := New(newStore(t)).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := request.AppendDirectives(r, csp.NewPolicy(csp.Directives{csp.ImgSrc: csp.Sources{"cdn.example"}})); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	before := testutil.ToFloat64(Responses.WithLabelValues(config.DefaultName, renderDynamic))
	w := serve(h, "https://example.com/")
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status to pass through, got %d", w.Code)
	}
	if got := w.Header().Get(csp.HeaderName); got != "default-src 'self'; img-src 'self' cdn.example;" {
		t.Errorf("Unexpected CSP %q", got)
	}
	if after := testutil.ToFloat64(Responses.WithLabelValues(config.DefaultName, renderDynamic)); after != before+1 {
		t.Errorf("Expected dynamic response counter to grow by one, got %v -> %v", before, after)
	}
}

func TestHandler_HandlerValueWins(t *testing.T) {
	h := New(newStore(t)).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
	}))
	w := serve(h, "https://example.com/")
	if got := w.Header().Get("X-Frame-Options"); got != "deny" {
		t.Errorf("Expected handler value to be kept, got %q", got)
	}
}

func TestHandler_Cookies(t *testing.T) {
	h := New(newStore(t)).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "1"})
		http.SetCookie(w, &http.Cookie{Name: "js_visible", Value: "2"})
	}))

	tests := []struct {
		target string
		want   []string
	}{
		{"https://example.com/", []string{
			"session=1; secure; HttpOnly; SameSite=Lax",
			"js_visible=2; secure; SameSite=Lax",
		}},
		{"http://example.com/", []string{
			"session=1; HttpOnly; SameSite=Lax",
			"js_visible=2; SameSite=Lax",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got := serve(h, tt.target).Header().Values("Set-Cookie")
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d cookies, got %v", len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Cookie %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestHandler_FailsClosed(t *testing.T) {
	var reported error
	h := New(newStore(t)).OnError(func(r *http.Request, err error) {
		reported = err
	}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := request.OptOut(r, headers.KeyCSP); err != nil {
			t.Fatal(err)
		}
		if err := request.OverrideDirectives(r, csp.NewPolicy(csp.Directives{csp.ScriptSrc: csp.Sources{csp.Self}}), request.Enforced); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("X-Secret", "leak")
		w.Write([]byte("secret body"))
	}))

	before := testutil.ToFloat64(Errors.WithLabelValues(stageRender))
	w := serve(h, "https://example.com/")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if w.Body.String() == "secret body" || w.Header().Get("X-Secret") != "" {
		t.Error("Handler output must not be sent when headers fail")
	}
	if reported == nil {
		t.Error("Expected OnError to be called")
	}
	if after := testutil.ToFloat64(Errors.WithLabelValues(stageRender)); after != before+1 {
		t.Errorf("Expected render error counter to grow by one, got %v -> %v", before, after)
	}
}

func TestHandler_NotConfigured(t *testing.T) {
	called := false
	h := New(config.NewStore()).Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	w := serve(h, "https://example.com/")
	if called || w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 without calling the handler, got %d (called=%v)", w.Code, called)
	}
}
