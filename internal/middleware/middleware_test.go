package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	appmw "github.com/s1natex/todo-master/internal/middleware"
)

func TestRecoveryMiddleware_Returns500(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{}))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(appmw.RequestLogger(logger))
	r.Use(appmw.Recoverer(logger))

	r.Get("/debug/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom: secret detail")
	})

	req := httptest.NewRequest(http.MethodGet, "/debug/panic", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d (body=%s)", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("unexpected body %v", body)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("panic detail leaked to client")
	}
	if !strings.Contains(logs.String(), "panic_recovered") || !strings.Contains(logs.String(), `"status":500`) {
		t.Fatalf("expected panic and request to be logged, got %s", logs.String())
	}
	if !strings.Contains(logs.String(), `"level":"ERROR","msg":"http_request"`) {
		t.Fatalf("expected 5xx request line at error level, got %s", logs.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := chi.NewRouter()
	r.Use(appmw.SecurityHeaders)
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	for _, target := range []string{"/ping", "/missing"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		want := map[string]string{
			"X-Content-Type-Options": "nosniff",
			"X-Frame-Options":        "DENY",
			"X-XSS-Protection":       "1; mode=block",
			"Referrer-Policy":        "no-referrer",
		}
		for k, v := range want {
			if got := rec.Header().Get(k); got != v {
				t.Errorf("%s: header %s = %q, want %q", target, k, got, v)
			}
		}
	}
}

func TestBodyLimit(t *testing.T) {
	r := chi.NewRouter()
	r.Use(appmw.BodyLimit(8))
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("small")))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 under the cap, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("definitely too large")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 over the cap, got %d", rec.Code)
	}
}

func TestBodyLimit_DeclaredLengthRejectedUpFront(t *testing.T) {
	reached := false
	r := chi.NewRouter()
	r.Use(appmw.BodyLimit(8))
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) { reached = true })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("{}"+strings.Repeat(" ", 64))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if reached {
		t.Fatalf("handler must not run for an oversize body")
	}
	if !strings.Contains(rec.Body.String(), `"payload too large"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestBearerGuard(t *testing.T) {
	r := chi.NewRouter()
	r.With(appmw.BearerGuard("tok_abc", "metrics")).Get("/metrics", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.With(appmw.BearerGuard("", "metrics")).Get("/open", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != `Bearer realm="metrics"` {
		t.Fatalf("unexpected challenge %q", rec.Header().Get("WWW-Authenticate"))
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Authorization", "Bearer tok_abc")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/open", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("empty token should disable the guard, got %d", rec.Code)
	}
}
