package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/scribesync/api/pkg/response"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a rate limiting middleware. Windows are keyed per caller,
// falling back to the client IP for unauthenticated paths.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := GetComponent(c)
		if caller == "" {
			caller = c.IP()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, caller)
		ctx := context.Background()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// If Redis fails, allow the request
			return c.Next()
		}

		// Set expiration on first request
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// IntakeLimit returns a rate limiter for the inbox scan endpoint
func (rl *RateLimiter) IntakeLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("intake", maxPerHour, time.Hour)
}

// PollLimit returns a rate limiter for job polling endpoints
func (rl *RateLimiter) PollLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("poll", maxPerMin, time.Minute)
}

// DistillLimit returns a rate limiter for distillation endpoints
func (rl *RateLimiter) DistillLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("distill", maxPerMin, time.Minute)
}
