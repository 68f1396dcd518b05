package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	appmw "github.com/s1natex/todo-master/internal/middleware"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func ping(r http.Handler, remote string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	req.RemoteAddr = remote
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)}
	lim := appmw.NewLimiter(appmw.WithLimit(3, time.Minute), appmw.WithClock(clock.Now))

	r := chi.NewRouter()
	r.Use(appmw.RateLimitMiddleware(lim))
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	for i := 1; i <= 3; i++ {
		rec := ping(r, "10.0.0.1:1111")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if got := ping(r, "10.0.0.1:1111").Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected remaining 0 once over the cap, got %q", got)
	}

	// over the cap, even from another source port
	rec := ping(r, "10.0.0.1:2222")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != "too many requests" {
		t.Fatalf("unexpected 429 body %s", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}

	// other clients have their own window
	if rec := ping(r, "10.0.0.2:1111"); rec.Code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", rec.Code)
	}

	// still blocked just before the window ends, allowed once it does
	clock.Advance(59 * time.Second)
	if rec := ping(r, "10.0.0.1:1111"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 before reset, got %d", rec.Code)
	}
	clock.Advance(time.Second)
	if rec := ping(r, "10.0.0.1:1111"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after reset, got %d", rec.Code)
	}
}

func TestMemoryCounter_Prune(t *testing.T) {
	c := appmw.NewMemoryCounter()
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, _, _ = c.Incr(ctx, "a", time.Minute, start)
	_, _, _ = c.Incr(ctx, "b", time.Minute, start.Add(30*time.Second))

	if n := c.Prune(start.Add(time.Minute)); n != 1 {
		t.Fatalf("expected 1 pruned window, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining window, got %d", c.Len())
	}

	// a fresh window starts at one
	count, resetAt, _ := c.Incr(ctx, "a", time.Minute, start.Add(2*time.Minute))
	if count != 1 || !resetAt.Equal(start.Add(3*time.Minute)) {
		t.Fatalf("expected new window, got count=%d reset=%v", count, resetAt)
	}
}

func TestLimiter_RunStopsWithContext(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)}
	lim := appmw.NewLimiter(appmw.WithLimit(1, time.Second), appmw.WithClock(clock.Now))
	if _, err := lim.Allow(context.Background(), "x"); err != nil {
		t.Fatalf("allow: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		lim.Run(ctx, time.Millisecond)
		close(done)
	}()

	clock.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// the window expired, so the key starts over
	res, _ := lim.Allow(context.Background(), "x")
	if !res.Allowed || res.Remaining != 0 {
		t.Fatalf("expected fresh window, got %+v", res)
	}
	if err := lim.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

type brokenCounter struct{}

func (brokenCounter) Incr(context.Context, string, time.Duration, time.Time) (int, time.Time, error) {
	return 0, time.Time{}, context.DeadlineExceeded
}

func TestRateLimit_FailsOpen(t *testing.T) {
	lim := appmw.NewLimiter(appmw.WithCounter(brokenCounter{}))

	r := chi.NewRouter()
	r.Use(appmw.RateLimitMiddleware(lim))
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	if rec := ping(r, "10.0.0.1:1"); rec.Code != http.StatusOK {
		t.Fatalf("expected request through on counter error, got %d", rec.Code)
	}
}

func TestRedisCounter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	prefix := "test:ratelimit:" + time.Now().Format(time.RFC3339Nano) + ":"
	c := appmw.NewRedisCounter(client, prefix)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	now := time.Now()
	for i := 1; i <= 3; i++ {
		count, resetAt, err := c.Incr(ctx, "10.0.0.1", time.Minute, now)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
		if resetAt.After(now.Add(time.Minute)) || resetAt.Before(now.Add(50*time.Second)) {
			t.Fatalf("unexpected reset time %v", resetAt)
		}
	}
}
