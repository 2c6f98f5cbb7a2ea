package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimiter creates a rate limiting middleware
func RateLimiter(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Use user ID if authenticated, otherwise use IP
			if userID := GetUserID(c); userID != "" {
				return userID
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later")
		},
	})
}

// StrictRateLimiter for session endpoints (register, login, refresh)
func StrictRateLimiter() fiber.Handler {
	return RateLimiter(20, 15*time.Minute)
}

// ModerateRateLimiter for writes such as spam reports
func ModerateRateLimiter() fiber.Handler {
	return RateLimiter(30, 1*time.Minute)
}

// RelaxedRateLimiter for read-only endpoints
func RelaxedRateLimiter() fiber.Handler {
	return RateLimiter(100, 1*time.Minute)
}
