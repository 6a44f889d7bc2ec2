package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// RateLimit limits requests per authenticated user, falling back to the
// client IP for anonymous calls. Buckets are namespaced by identifier so two
// limited routes never share a budget.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return identifier + ":" + rateLimitSubject(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many requests, try again later", fiber.Map{
				"retry_after_seconds": int(window.Seconds()),
			})
		},
	})
}

func rateLimitSubject(c *fiber.Ctx) string {
	switch id := c.Locals("user_id").(type) {
	case uint:
		if id > 0 {
			return "user:" + strconv.FormatUint(uint64(id), 10)
		}
	case int:
		if id > 0 {
			return "user:" + strconv.Itoa(id)
		}
	}
	return "ip:" + c.IP()
}
