package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"

	"esign-examples/internal/config"
	"esign-examples/internal/http/handlers"
)

func TestRegister_AddsHealthAndRequestID(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{}, nil)
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	healthReq, _ := http.NewRequest(http.MethodGet, "/ops/health", nil)
	healthResp, err := app.Test(healthReq)
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if healthResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected health endpoint 200, got %d", healthResp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("ping request failed: %v", err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id to be present")
	}
}

func TestClientRateLimit_Enforced(t *testing.T) {
	var cfg config.Config
	cfg.Security.RateLimit = 1
	cfg.Security.RateInterval = time.Hour

	app := fiber.New()
	app.Use(ClientRateLimit(cfg, memoryStorage.New()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	makeReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("User-Agent", "test-agent")
		return req
	}

	resp1, err := app.Test(makeReq())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp1.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp1.StatusCode)
	}

	resp2, err := app.Test(makeReq())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp2.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.StatusCode)
	}
}

func TestCSRF_RejectsPostWithoutTokenAndAcceptsIssuedToken(t *testing.T) {
	var cfg config.Config
	cfg.Session.Expiration = time.Hour

	app := fiber.New()
	app.Use(CSRF(cfg, memoryStorage.New()))
	app.Get("/form", func(c *fiber.Ctx) error {
		token, _ := c.Locals(handlers.CSRFContextKey).(string)
		return c.SendString(token)
	})
	app.Post("/form", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	getResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/form", nil))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	var cookie *http.Cookie
	for _, c := range getResp.Cookies() {
		if c.Name == "csrf_" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected csrf cookie to be issued")
	}

	blocked := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader("a=b"))
	blocked.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(blocked)
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", resp.StatusCode)
	}

	form := url.Values{"_csrf": {cookie.Value}}
	allowed := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	allowed.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	allowed.AddCookie(cookie)
	resp, err = app.Test(allowed)
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}
