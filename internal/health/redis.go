package health

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisChecker sends PING to Redis.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING command.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
