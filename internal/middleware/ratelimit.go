// ratelimit.go provides Gin middleware that enforces per-client rate limits,
// returning 429 responses when the configured requests-per-minute threshold is
// exceeded. Limits are enforced in Redis when an address is configured so they
// hold across replicas; otherwise an in-process token bucket is used.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/modplane/modplane/internal/config"
	"github.com/modplane/modplane/internal/telemetry"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often the in-memory limiter cleans up idle entries
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200, // Higher limit for authenticated API usage
		BurstSize:         50,  // Allow burst for clients that load several resources
		CleanupInterval:   5 * time.Minute,
	}
}

// ReportRateLimitConfig returns stricter limits for report submission, the
// endpoint most exposed to flooding.
func ReportRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
	}
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	// Allow returns whether the request is permitted and how many requests
	// remain in the current window.
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Stop()
}

// NewLimiter builds a Redis-backed limiter when the Redis address is
// configured, falling back to a per-process token bucket otherwise. The
// fallback is fine for single-replica deployments; multi-replica deployments
// should configure Redis so the limit is shared.
func NewLimiter(rlCfg RateLimitConfig, redisCfg config.RedisConfig) Limiter {
	if redisCfg.Addr == "" {
		return NewMemoryLimiter(rlCfg)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	slog.Info("rate limiter using redis backend", "addr", redisCfg.Addr)
	return &redisLimiter{
		limiter: redis_rate.NewLimiter(client),
		client:  client,
		limit: redis_rate.Limit{
			Rate:   rlCfg.RequestsPerMinute,
			Burst:  rlCfg.BurstSize,
			Period: time.Minute,
		},
	}
}

// redisLimiter enforces limits via the GCRA implementation in redis_rate so
// the budget is shared across all server replicas.
type redisLimiter struct {
	limiter *redis_rate.Limiter
	client  *redis.Client
	limit   redis_rate.Limit
}

func (rl *redisLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	res, err := rl.limiter.Allow(ctx, key, rl.limit)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed > 0, res.Remaining, nil
}

func (rl *redisLimiter) Stop() {
	_ = rl.client.Close()
}

// rateLimitEntry tracks the token bucket state for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// MemoryLimiter implements a per-process token bucket rate limiter.
type MemoryLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	stopCh  chan struct{}
}

// NewMemoryLimiter creates an in-process limiter with the given config.
func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	rl := &MemoryLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// cleanup periodically removes idle entries
func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				// Remove entries that haven't been accessed in 10 minutes
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *MemoryLimiter) Stop() {
	close(rl.stopCh)
}

// Allow checks if a request from the given key should be allowed
func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]

	if !exists {
		// New client, give them full burst
		rl.entries[key] = &rateLimitEntry{
			tokens:     float64(rl.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true, rl.config.BurstSize - 1, nil
	}

	// Calculate tokens to add based on time elapsed
	elapsed := now.Sub(entry.lastUpdate)
	tokensPerSecond := float64(rl.config.RequestsPerMinute) / 60.0
	tokensToAdd := elapsed.Seconds() * tokensPerSecond

	// Update tokens (capped at burst size)
	entry.tokens = min(float64(rl.config.BurstSize), entry.tokens+tokensToAdd)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true, int(entry.tokens), nil
	}

	return false, 0, nil
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests.
// When the limiter itself fails (e.g. Redis unreachable) the request is
// allowed through; shedding all traffic on a limiter outage would be a worse
// failure mode than briefly running unlimited.
func RateLimitMiddleware(limiter Limiter, requestsPerMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		allowed, remaining, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		if !allowed {
			path := c.FullPath()
			if path == "" {
				path = "<no-route>"
			}
			telemetry.RateLimitedRequestsTotal.WithLabelValues(path).Inc()

			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(requestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting
// Priority: actor_id > IP address
func getRateLimitKey(c *gin.Context) string {
	if actorID := c.GetString(ActorIDKey); actorID != "" {
		return "actor:" + actorID
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}

// Helper function for min (Go 1.21+ has this built-in, but for compatibility)
func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
