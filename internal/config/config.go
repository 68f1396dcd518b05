// Package config reads process settings from the environment.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// devOrigins are the local front-end dev servers allowed outside production.
var devOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5000",
	"http://localhost:5173",
}

type Config struct {
	Port           string
	Env            string
	AllowedOrigins []string
	DBPath         string
	LogLevel       string
	RedisAddr      string
	TracesExporter string
	MetricsToken   string
}

// Production reports whether APP_ENV selects the production origin list.
func (c Config) Production() bool { return c.Env == EnvProduction }

// ErrNoAllowedOrigins means production mode was selected without
// ALLOWED_ORIGINS. An empty CORS list would otherwise admit every origin.
var ErrNoAllowedOrigins = errors.New("APP_ENV=production requires ALLOWED_ORIGINS")

// Validate rejects settings the server must not start with.
func (c Config) Validate() error {
	if c.Production() && len(c.AllowedOrigins) == 0 {
		return ErrNoAllowedOrigins
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the server configuration.
func Load() Config {
	v := newViper()
	v.SetDefault("PORT", "5000")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("DB_PATH", "./data/todo.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OTEL_TRACES_EXPORTER", "none")

	cfg := Config{
		Port:           v.GetString("PORT"),
		Env:            strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		DBPath:         v.GetString("DB_PATH"),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		RedisAddr:      v.GetString("RATE_LIMIT_REDIS_ADDR"),
		TracesExporter: strings.ToLower(strings.TrimSpace(v.GetString("OTEL_TRACES_EXPORTER"))),
		MetricsToken:   v.GetString("METRICS_TOKEN"),
	}
	if cfg.Production() {
		cfg.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))
	} else {
		cfg.AllowedOrigins = append([]string(nil), devOrigins...)
	}
	return cfg
}

type ClientConfig struct {
	APIURL string
}

// LoadClient reads the terminal client configuration.
func LoadClient() ClientConfig {
	v := newViper()
	v.SetDefault("TASKS_API_URL", "http://localhost:5000")
	return ClientConfig{APIURL: strings.TrimRight(v.GetString("TASKS_API_URL"), "/")}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
