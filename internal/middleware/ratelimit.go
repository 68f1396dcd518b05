package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	DefaultRateWindow = 15 * time.Minute
	DefaultRateLimit  = 100
)

type errBody struct {
	Error string `json:"error"`
}

// Counter counts hits per key inside fixed windows.
type Counter interface {
	// Incr records one hit for key and returns the count so far in the
	// current window and when that window ends. A window starts on the
	// first hit after the previous one expired.
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error)
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter caps requests per client per fixed window. It owns its
// counters; call Run to prune expired windows and Close on shutdown.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger
	warn    rate.Sometimes
}

type LimiterOption func(*Limiter)

// WithLimit sets the per-window cap and the window length.
func WithLimit(limit int, window time.Duration) LimiterOption {
	return func(l *Limiter) {
		l.limit = limit
		l.window = window
	}
}

// WithRedis keeps the counters in Redis so several instances share them.
func WithRedis(client *redis.Client, keyPrefix string) LimiterOption {
	return func(l *Limiter) {
		l.counter = NewRedisCounter(client, keyPrefix)
	}
}

func WithCounter(c Counter) LimiterOption {
	return func(l *Limiter) { l.counter = c }
}

func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

func WithLimiterLogger(logger *slog.Logger) LimiterOption {
	return func(l *Limiter) { l.logger = logger }
}

func NewLimiter(opts ...LimiterOption) *Limiter {
	l := &Limiter{
		limit:  DefaultRateLimit,
		window: DefaultRateWindow,
		now:    time.Now,
		logger: slog.Default(),
		warn:   rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.counter == nil {
		l.counter = NewMemoryCounter()
	}
	return l
}

// Allow counts one request for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, resetAt, err := l.counter.Incr(ctx, key, l.window, l.now())
	if err != nil {
		return Result{}, err
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Run prunes expired windows every interval until ctx is done.
// Counters that expire on their own (Redis) make this a no-op wait.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	p, ok := l.counter.(interface{ Prune(time.Time) int })
	if !ok {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Prune(l.now()); n > 0 {
				l.logger.Debug("ratelimit_pruned", slog.Int("windows", n))
			}
		}
	}
}

func (l *Limiter) Close() error {
	if c, ok := l.counter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// RateLimitMiddleware rejects clients over their window quota with 429.
// Counter failures let the request through.
func RateLimitMiddleware(l *Limiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			res, err := l.Allow(r.Context(), ip)
			if err != nil {
				l.logger.Error("ratelimit_error", slog.String("ip", ip), slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			rateLimitedTotal.Inc()
			l.warn.Do(func() {
				l.logger.Warn("rate_limited",
					slog.String("ip", ip),
					slog.Int("limit", res.Limit),
					slog.Time("reset_at", res.ResetAt),
				)
			})

			retry := int(res.ResetAt.Sub(l.now()).Seconds() + 0.999)
			if retry < 1 {
				retry = 1
			}
			h.Set("Content-Type", "application/json")
			h.Set("Retry-After", strconv.Itoa(retry))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(errBody{Error: "too many requests"})
		})
	}
}

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// MemoryCounter keeps windows in a process-local map.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*memoryWindow)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

// Prune drops windows that ended at or before now and returns how many.
func (c *MemoryCounter) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, k)
			n++
		}
	}
	return n
}

// Len reports the number of tracked windows.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// incrScript starts the window expiry on the first hit only.
var incrScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return {count, redis.call('PTTL', KEYS[1])}
`)

// RedisCounter keeps windows in Redis keys that expire with the window.
type RedisCounter struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisCounter(client *redis.Client, keyPrefix string) *RedisCounter {
	return &RedisCounter{client: client, keyPrefix: keyPrefix}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	res, err := incrScript.Run(ctx, c.client, []string{c.keyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis incr: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected redis response length: %d", len(res))
	}
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = window
	}
	return int(res[0]), now.Add(ttl), nil
}

func (c *RedisCounter) Close() error { return c.client.Close() }
