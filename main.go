package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/s1natex/todo-master/internal/config"
	"github.com/s1natex/todo-master/internal/middleware"
	"github.com/s1natex/todo-master/internal/tasks"
	"github.com/s1natex/todo-master/internal/telemetry"
	"github.com/s1natex/todo-master/internal/web"
)

const (
	shutdownTimeout   = 15 * time.Second
	limiterPruneEvery = time.Minute
	redisTimeout      = 3 * time.Second
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger) // for third-party packages that use slog
	if err := cfg.Validate(); err != nil {
		fatal(logger, "config_error", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.TracesExporter)
	if err != nil {
		fatal(logger, "tracing_setup_error", err)
	}

	dsn, err := tasks.SQLiteFileDSN(cfg.DBPath)
	if err != nil {
		fatal(logger, "db_path_error", err)
	}
	repo, err := tasks.NewSQLiteRepo(dsn)
	if err != nil {
		fatal(logger, "db_open_error", err)
	}
	if err := repo.ApplyMigrations(ctx); err != nil {
		fatal(logger, "db_migrate_error", err)
	}

	limiter := newLimiter(ctx, cfg, logger)
	pruneCtx, stopPrune := context.WithCancel(ctx)
	go limiter.Run(pruneCtx, limiterPruneEvery)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(cfg, repo, limiter, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server_listen",
			slog.String("addr", srv.Addr),
			slog.String("env", cfg.Env),
			slog.String("db", cfg.DBPath),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server_error", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		// in-flight requests finish before the store and limiter go away
		"http-server": func(ctx context.Context) error {
			err := srv.Shutdown(ctx)
			stopPrune()
			return errors.Join(err, limiter.Close(), repo.Close())
		},
		"tracing": func(ctx context.Context) error {
			return shutdownTracing(ctx)
		},
	})
	code := <-wait
	logger.Info("server_stopped", slog.Int("exit_code", code))
	os.Exit(code)
}

// newRouter wires the health and metrics endpoints, the /api routes, the
// client fallback and the middleware stack.
func newRouter(cfg config.Config, repo tasks.Repository, limiter *middleware.Limiter, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// ---- Middleware stack (order matters a bit) ----
	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.MetricsMiddleware)

	// Panic recovery: never crash the server; returns a JSON 500 on panics
	r.Use(middleware.Recoverer(logger))

	corsOpts := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}
	if len(cfg.AllowedOrigins) == 0 {
		// go-chi/cors reads an empty list as "*"
		corsOpts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	r.Use(cors.Handler(corsOpts))

	// ---- Routes ----

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.With(middleware.BearerGuard(cfg.MetricsToken, "metrics")).
		Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RateLimitMiddleware(limiter))
		api.Use(middleware.BodyLimit(middleware.DefaultMaxBodyBytes))

		tasks.RegisterRoutes(api, repo, logger)

		api.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		})
		api.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		})
	})

	// everything else is the client application
	client := web.Handler()
	r.Method(http.MethodGet, "/*", client)
	r.Method(http.MethodHead, "/*", client)

	return r
}

// newLimiter keeps counters in Redis when RATE_LIMIT_REDIS_ADDR is set and
// reachable, in memory otherwise.
func newLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) *middleware.Limiter {
	opts := []middleware.LimiterOption{
		middleware.WithLimit(middleware.DefaultRateLimit, middleware.DefaultRateWindow),
		middleware.WithLimiterLogger(logger),
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  redisTimeout,
			ReadTimeout:  redisTimeout,
			WriteTimeout: redisTimeout,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("ratelimit_redis_unavailable",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
			_ = client.Close()
		} else {
			opts = append(opts, middleware.WithRedis(client, "todo:ratelimit:"))
		}
	}
	return middleware.NewLimiter(opts...)
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: l,
	})
	return slog.New(handler)
}

func fatal(logger *slog.Logger, event string, err error) {
	logger.Error(event, slog.String("error", err.Error()))
	os.Exit(1)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
