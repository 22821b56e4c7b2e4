package middleware

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"esign-examples/internal/config"
	"esign-examples/internal/http/handlers"
	"esign-examples/internal/infra/logging"
)

// Register attaches the global middleware chain. store backs the limiter
// and CSRF state and may be nil for in-memory defaults.
func Register(app *fiber.App, cfg config.Config, store fiber.Storage) {
	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  "/ops/health",
		ReadinessEndpoint: "/ops/ready",
	}))

	app.Use(func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	})

	if cfg.Security.RateLimit > 0 {
		app.Use(ClientRateLimit(cfg, store))
	}
	if cfg.Security.CSRFEnabled {
		app.Use(CSRF(cfg, store))
	}
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

// ClientRateLimit limits requests per client (IP and user agent).
func ClientRateLimit(cfg config.Config, store fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               cfg.Security.RateLimit,
		Expiration:        cfg.Security.RateInterval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "client", clientKey(c), "path", c.Path())
			return fiber.NewError(fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})
}

// CSRF protects form posts. The token is exposed to handlers under
// handlers.CSRFContextKey and must be posted back as the _csrf field.
func CSRF(cfg config.Config, store fiber.Storage) fiber.Handler {
	return csrf.New(csrf.Config{
		KeyLookup:      "form:_csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.Session.CookieSecure,
		CookieHTTPOnly: true,
		Expiration:     cfg.Session.Expiration,
		Storage:        store,
		ContextKey:     handlers.CSRFContextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logging.Warn("CSRF check failed", "path", c.Path(), "error", err)
			return fiber.NewError(fiber.StatusForbidden, "Forbidden")
		},
	})
}
