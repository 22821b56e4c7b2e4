package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/redis/go-redis/v9"

	"esign-examples/internal/auth"
	"esign-examples/internal/config"
	"esign-examples/internal/http/handlers"
	"esign-examples/internal/http/middleware"
	"esign-examples/internal/infra/cache"
	"esign-examples/internal/infra/logging"
	"esign-examples/internal/infra/views"
)

// Deps bundles everything New needs. Zero values fall back to defaults.
type Deps struct {
	Config    config.Config
	Storage   fiber.Storage
	Redis     *redis.Client
	Views     fiber.Views
	NewClient handlers.ClientFactory
	AuthOpts  []auth.Option
}

// New creates the Fiber app with middleware and routes mounted.
func New(d Deps) *fiber.App {
	cfg := d.Config
	if d.Views == nil {
		d.Views = views.New()
	}
	if d.NewClient == nil {
		d.NewClient = handlers.NewClientFactory(cfg.ESign.Timeout)
	}

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		Views:                 d.Views,
		ViewsLayout:           "layouts/main",
		PassLocalsToViews:     true,
		ErrorHandler:          errorHandler,
	})

	middleware.Register(app, cfg, d.Storage)

	store := session.New(session.Config{
		Storage:        d.Storage,
		Expiration:     cfg.Session.Expiration,
		KeyLookup:      "cookie:" + cookieName(cfg),
		CookieSecure:   cfg.Session.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})
	authn := auth.NewManager(store, cfg, d.AuthOpts...)

	var listings *cache.Listings
	if cfg.Cache.ListingsEnabled {
		listings = cache.NewListings(d.Redis, cfg.Cache.ListingsTTL)
	}

	pages := &handlers.Pages{Flashes: authn}
	eg026 := handlers.NewBrandedTemplateHandler(cfg, authn, d.NewClient, listings)

	app.Use(authn.ExposeUser)
	app.Get("/", pages.Home)
	app.Get(auth.MustAuthenticatePath, pages.MustAuthenticate)
	app.Get("/ds/login", authn.Login)
	app.Get("/ds/callback", authn.Callback)
	app.Get("/ds/logout", authn.Logout)
	app.Get("/"+handlers.BrandedTemplateExample, eg026.ShowForm)
	app.Post("/"+handlers.BrandedTemplateExample, eg026.SubmitEnvelope)

	// Ensure all unknown routes return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func cookieName(cfg config.Config) string {
	if cfg.Session.CookieName != "" {
		return cfg.Session.CookieName
	}
	return "session_id"
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		logging.Error("Unhandled error", "path", c.Path(), "error", err)
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
		},
	})
}
