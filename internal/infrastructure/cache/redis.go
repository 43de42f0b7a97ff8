package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"DomainScore/internal/domain"
	"DomainScore/internal/ports"
	"DomainScore/pkg/logger"
)

const keyPrefix = "domainscore:analysis:"

// Connect builds a client from a redis:// URL or a bare host:port.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisCache stores analyses as JSON with a server-side TTL. Redis errors
// degrade to cache misses.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.ResultCache = (*RedisCache)(nil)

// NewRedisCache wraps client.
func NewRedisCache(client redis.Cmdable, ttl time.Duration, log *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger.Component(log, "cache.redis")}
}

func (r *RedisCache) Get(ctx context.Context, name string) (domain.DomainAnalysis, bool) {
	raw, err := r.client.Get(ctx, cacheKey(name)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Debug("cache read failed", "domain", name, "error", err)
		}
		return domain.DomainAnalysis{}, false
	}

	var a domain.DomainAnalysis
	if err := json.Unmarshal(raw, &a); err != nil {
		r.logger.Debug("cache entry corrupt", "domain", name, "error", err)
		return domain.DomainAnalysis{}, false
	}
	return a, true
}

func (r *RedisCache) Set(ctx context.Context, a domain.DomainAnalysis) {
	raw, err := json.Marshal(a)
	if err != nil {
		r.logger.Debug("cache encode failed", "domain", a.Domain, "error", err)
		return
	}
	if err := r.client.Set(ctx, cacheKey(a.Domain), raw, r.ttl).Err(); err != nil {
		r.logger.Debug("cache write failed", "domain", a.Domain, "error", err)
	}
}

func cacheKey(name string) string {
	return keyPrefix + name
}
