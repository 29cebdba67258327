package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig defines a fixed-window limit.
type RateLimitConfig struct {
	// RequestsPerWindow is the maximum number of requests allowed per window.
	RequestsPerWindow int
	// WindowDuration is the length of one window.
	WindowDuration time.Duration
}

// Validate checks that both fields are positive.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultFeedLimit is applied to the feed endpoints.
func DefaultFeedLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 120, WindowDuration: time.Minute}
}

// DefaultSearchLimit is applied to post search, which is more expensive.
func DefaultSearchLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 30, WindowDuration: time.Minute}
}

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the time until the current window resets.
	RetryAfter time.Duration
}

// RateLimitStore holds rate limit state.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, config RateLimitConfig) (Decision, error)
}

type bucket struct {
	count     int
	windowEnd time.Time
}

// InMemoryRateLimitStore is a fixed-window counter kept in process memory.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewInMemoryRateLimitStore creates an empty in-memory store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow implements RateLimitStore. It never returns an error.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, config RateLimitConfig) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || !now.Before(b.windowEnd) {
		b = &bucket{windowEnd: now.Add(config.WindowDuration)}
		s.buckets[key] = b
	}

	if b.count >= config.RequestsPerWindow {
		return Decision{RetryAfter: b.windowEnd.Sub(now)}, nil
	}
	b.count++
	return Decision{
		Allowed:    true,
		Remaining:  config.RequestsPerWindow - b.count,
		RetryAfter: b.windowEnd.Sub(now),
	}, nil
}

// Cleanup removes expired buckets. Call it periodically.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, b := range s.buckets {
		if !now.Before(b.windowEnd) {
			delete(s.buckets, key)
		}
	}
}

// RedisRateLimitStore shares fixed-window counters between API replicas.
type RedisRateLimitStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRateLimitStore wraps an existing client. Keys are namespaced by prefix.
func NewRedisRateLimitStore(client redis.UniversalClient, prefix string) *RedisRateLimitStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisRateLimitStore{client: client, prefix: prefix}
}

// Allow increments the window counter and sets its expiry on first use.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (Decision, error) {
	window := config.WindowDuration.Milliseconds()
	if window <= 0 {
		window = 1
	}
	slot := time.Now().UnixMilli() / window
	redisKey := s.prefix + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, config.WindowDuration)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}

	count := int(incr.Val())
	retry := ttl.Val()
	if retry <= 0 {
		retry = config.WindowDuration
	}
	if count > config.RequestsPerWindow {
		return Decision{RetryAfter: retry}, nil
	}
	return Decision{
		Allowed:    true,
		Remaining:  config.RequestsPerWindow - count,
		RetryAfter: retry,
	}, nil
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys on the client IP, honoring X-Forwarded-For and X-Real-IP.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
}

// ViewerKeyFunc keys on the authenticated viewer, falling back to the client IP.
func ViewerKeyFunc() KeyFunc {
	ipFunc := IPKeyFunc()
	return func(r *http.Request) string {
		if id := ViewerID(r.Context()); id != "" {
			return "viewer:" + id
		}
		return "ip:" + ipFunc(r)
	}
}

// RateLimiter rejects requests over the limit with 429 and a JSON error body.
// Store errors fail open: the request is served and the error is counted.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, endpoint string, metrics *Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			keyType, _, _ := strings.Cut(key, ":")
			if metrics != nil {
				metrics.IncRateLimitRequests(endpoint, keyType)
			}

			// Each endpoint group draws from its own budget.
			d, err := store.Allow(r.Context(), endpoint+"|"+key, config)
			if err != nil {
				if metrics != nil {
					metrics.IncRateLimitStoreErrors()
				}
				logger.WarnContext(r.Context(), "rate limit store unavailable, allowing request",
					slog.String("endpoint", endpoint),
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.RetryAfter).Unix(), 10))

			if !d.Allowed {
				if metrics != nil {
					metrics.IncRateLimitBlocked(endpoint, keyType)
				}
				SetErrorCode(r.Context(), "rate_limited")

				retry := int((d.RetryAfter + time.Second - 1) / time.Second)
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":    "rate_limited",
						"message": "too many requests",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
