// Package config loads the API server configuration. Values come from an
// optional YAML file merged with koanf; environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// DatabaseURL selects PostgreSQL storage. Empty runs on the in-memory store.
	DatabaseURL    string `koanf:"database_url"`
	DBMaxOpenConns int    `koanf:"db_max_open_conns"`
	MigrateOnStart bool   `koanf:"migrate_on_start"`

	// RedisURL selects the shared rate limit store. Empty keeps limits in process.
	RedisURL string `koanf:"redis_url"`

	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// RankingCalibrationPath optionally overrides the score decay constants.
	RankingCalibrationPath string `koanf:"ranking_calibration_path"`

	RateLimitFeedRequests   int           `koanf:"rate_limit_feed_requests"`
	RateLimitSearchRequests int           `koanf:"rate_limit_search_requests"`
	RateLimitWindow         time.Duration `koanf:"rate_limit_window"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required")
	ErrShortJWTSecret      = errors.New("JWT_SECRET must be at least 32 bytes")
	ErrInvalidPort         = errors.New("PORT must be between 1 and 65535")
	ErrInvalidDatabaseURL  = errors.New("DATABASE_URL must be a postgres:// or postgresql:// URL")
	ErrInvalidRedisURL     = errors.New("REDIS_URL must be a redis:// or rediss:// URL")
	ErrInvalidRateLimit    = errors.New("rate limits must be positive")
	ErrInvalidSamplingRate = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
	ErrInvalidNumber       = errors.New("value must be numeric")
)

// Default values for non-secret configuration.
const (
	DefaultPort                    = 8080
	DefaultEnv                     = "development"
	DefaultDBMaxOpenConns          = 25
	DefaultRateLimitFeedRequests   = 120
	DefaultRateLimitSearchRequests = 30
	DefaultRateLimitWindow         = time.Minute
	DefaultTracingExporter         = "otlp-http"
	DefaultTracingSamplingRate     = 0.1
	minJWTSecretLength             = 32
)

// loader resolves each key from the environment first, then the file.
type loader struct {
	k    *koanf.Koanf
	errs []error
}

func (l *loader) str(envKeys []string, key, def string) string {
	for _, e := range envKeys {
		if v := os.Getenv(e); v != "" {
			return v
		}
	}
	if v := l.k.String(key); v != "" {
		return v
	}
	return def
}

func (l *loader) int(envKey, key string, def int) int {
	if v := os.Getenv(envKey); v != "" {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s=%q: %w", envKey, v, ErrInvalidNumber))
			return def
		}
		return i
	}
	if l.k.Exists(key) {
		return l.k.Int(key)
	}
	return def
}

func (l *loader) float(envKey, key string, def float64) float64 {
	if v := os.Getenv(envKey); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s=%q: %w", envKey, v, ErrInvalidNumber))
			return def
		}
		return f
	}
	if l.k.Exists(key) {
		return l.k.Float64(key)
	}
	return def
}

func (l *loader) bool(envKey, key string, def bool) bool {
	if v := os.Getenv(envKey); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
		l.errs = append(l.errs, fmt.Errorf("%s=%q: not a boolean", envKey, v))
		return def
	}
	if l.k.Exists(key) {
		return l.k.Bool(key)
	}
	return def
}

func (l *loader) duration(envKey, key string, def time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s=%q: %w", envKey, v, err))
			return def
		}
		return d
	}
	if l.k.Exists(key) {
		return l.k.Duration(key)
	}
	return def
}

func (l *loader) list(envKey, key string) []string {
	if v := os.Getenv(envKey); v != "" {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return l.k.Strings(key)
}

// Load reads configuration from an optional YAML file and the environment.
// It returns the config and every validation error found (empty if valid).
// A config file that cannot be read is reported as the only error.
func Load(configFilePath string) (*Config, []error) {
	l := &loader{k: koanf.New(".")}
	if configFilePath != "" {
		if err := l.k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	cfg := &Config{
		Port:                    l.int("PORT", "port", DefaultPort),
		Env:                     l.str([]string{"SEMICOLON_ENV", "ENV", "GO_ENV"}, "env", DefaultEnv),
		DatabaseURL:             l.str([]string{"DATABASE_URL"}, "database_url", ""),
		DBMaxOpenConns:          l.int("DB_MAX_OPEN_CONNS", "db_max_open_conns", DefaultDBMaxOpenConns),
		MigrateOnStart:          l.bool("MIGRATE_ON_START", "migrate_on_start", true),
		RedisURL:                l.str([]string{"REDIS_URL"}, "redis_url", ""),
		JWTSecret:               l.str([]string{"JWT_SECRET"}, "jwt_secret", ""),
		JWTPreviousSecret:       l.str([]string{"JWT_PREVIOUS_SECRET"}, "jwt_previous_secret", ""),
		RankingCalibrationPath:  l.str([]string{"RANKING_CALIBRATION_PATH"}, "ranking_calibration_path", ""),
		RateLimitFeedRequests:   l.int("RATE_LIMIT_FEED_REQUESTS", "rate_limit_feed_requests", DefaultRateLimitFeedRequests),
		RateLimitSearchRequests: l.int("RATE_LIMIT_SEARCH_REQUESTS", "rate_limit_search_requests", DefaultRateLimitSearchRequests),
		RateLimitWindow:         l.duration("RATE_LIMIT_WINDOW", "rate_limit_window", DefaultRateLimitWindow),
		CORSAllowedOrigins:      l.list("CORS_ALLOWED_ORIGINS", "cors_allowed_origins"),
		TracingEnabled:          l.bool("TRACING_ENABLED", "tracing_enabled", false),
		TracingExporter:         l.str([]string{"TRACING_EXPORTER"}, "tracing_exporter", DefaultTracingExporter),
		TracingEndpoint:         l.str([]string{"OTEL_EXPORTER_OTLP_ENDPOINT", "TRACING_ENDPOINT"}, "tracing_endpoint", ""),
		TracingSamplingRate:     l.float("TRACING_SAMPLING_RATE", "tracing_sampling_rate", DefaultTracingSamplingRate),
		TracingInsecure:         l.bool("TRACING_INSECURE", "tracing_insecure", false),
	}

	return cfg, append(l.errs, cfg.Validate()...)
}

// Validate checks required values and ranges.
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	switch {
	case c.JWTSecret == "":
		errs = append(errs, ErrMissingJWTSecret)
	case len(c.JWTSecret) < minJWTSecretLength:
		errs = append(errs, ErrShortJWTSecret)
	}
	if c.DatabaseURL != "" && !hasScheme(c.DatabaseURL, "postgres", "postgresql") {
		errs = append(errs, ErrInvalidDatabaseURL)
	}
	if c.RedisURL != "" && !hasScheme(c.RedisURL, "redis", "rediss") {
		errs = append(errs, ErrInvalidRedisURL)
	}
	if c.RateLimitFeedRequests <= 0 || c.RateLimitSearchRequests <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}
	return errs
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}

// LogSummary returns the configuration with secrets masked, for logging.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                       strconv.Itoa(c.Port),
		"env":                        c.Env,
		"database_url":               maskURL(c.DatabaseURL),
		"db_max_open_conns":          strconv.Itoa(c.DBMaxOpenConns),
		"migrate_on_start":           strconv.FormatBool(c.MigrateOnStart),
		"redis_url":                  maskURL(c.RedisURL),
		"jwt_secret":                 maskSecret(c.JWTSecret),
		"jwt_previous_secret":        maskSecret(c.JWTPreviousSecret),
		"ranking_calibration_path":   c.RankingCalibrationPath,
		"rate_limit_feed_requests":   strconv.Itoa(c.RateLimitFeedRequests),
		"rate_limit_search_requests": strconv.Itoa(c.RateLimitSearchRequests),
		"rate_limit_window":          c.RateLimitWindow.String(),
		"cors_allowed_origins":       strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":            strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":           c.TracingExporter,
		"tracing_endpoint":           c.TracingEndpoint,
		"tracing_sampling_rate":      strconv.FormatFloat(c.TracingSamplingRate, 'f', -1, 64),
	}
}

// maskSecret shows the first 4 characters of secrets at least 8 long.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskURL hides the password of a URL with userinfo.
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return maskSecret(s)
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
		return strings.Replace(u.String(), ":xxxxx@", ":****@", 1)
	}
	return s
}
