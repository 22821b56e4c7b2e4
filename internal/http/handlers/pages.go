package handlers

import (
	"github.com/gofiber/fiber/v2"

	"esign-examples/internal/auth"
)

// FlashReader drains queued flash messages.
type FlashReader interface {
	TakeFlash(c *fiber.Ctx) ([]auth.Flash, error)
}

// Pages serves the static-ish pages around the examples.
type Pages struct {
	Flashes FlashReader
}

// Home lists the available examples.
func (p *Pages) Home(c *fiber.Ctx) error {
	return c.Render("pages/index", fiber.Map{"title": "eSignature examples"})
}

// MustAuthenticate asks the user to log in and shows pending flash messages.
func (p *Pages) MustAuthenticate(c *fiber.Ctx) error {
	flashes, err := p.Flashes.TakeFlash(c)
	if err != nil {
		return err
	}
	return c.Render("pages/must_authenticate", fiber.Map{
		"title":   "Authentication required",
		"flashes": flashes,
	})
}
