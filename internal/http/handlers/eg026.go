package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"esign-examples/internal/auth"
	"esign-examples/internal/config"
	"esign-examples/internal/domain"
	"esign-examples/internal/infra/cache"
	"esign-examples/internal/infra/esign"
	"esign-examples/internal/infra/logging"
	"esign-examples/internal/infra/views"
)

// BrandedTemplateExample is the id of the "apply brand to template" example.
const BrandedTemplateExample = "eg026"

const brandedTemplateSource = "eg026.go"

// CSRFContextKey is the Locals key holding the CSRF token when enabled.
const CSRFContextKey = "csrf"

// Authenticator exposes the session operations the example handlers need.
type Authenticator interface {
	Load(c *fiber.Ctx) (*auth.Session, error)
	SetEg(c *fiber.Ctx, eg string) error
	Flash(c *fiber.Ctx, kind, msg string) error
}

// SignatureService is the subset of the remote API used by the example.
type SignatureService interface {
	ListTemplates(ctx context.Context, accountID string) (*esign.EnvelopeTemplateResults, error)
	ListBrands(ctx context.Context, accountID string) (*esign.BrandsResponse, error)
	CreateEnvelope(ctx context.Context, accountID string, def esign.EnvelopeDefinition) (*esign.EnvelopeSummary, error)
}

// ClientFactory builds a SignatureService for one user's base path and token.
type ClientFactory func(ctx context.Context, basePath, accessToken string) SignatureService

// NewClientFactory returns a factory producing esign clients bounded by timeout.
func NewClientFactory(timeout time.Duration) ClientFactory {
	return func(ctx context.Context, basePath, accessToken string) SignatureService {
		return esign.NewClient(ctx, basePath, accessToken, esign.WithTimeout(timeout))
	}
}

// BrandedTemplateHandler creates an envelope from a template with a brand applied.
type BrandedTemplateHandler struct {
	Auth           Authenticator
	NewClient      ClientFactory
	Listings       *cache.Listings
	FormBuffer     time.Duration
	SubmitBuffer   time.Duration
	EnvelopeStatus string
	SourceURL      string
	Documentation  string
}

// NewBrandedTemplateHandler wires the handler from configuration.
func NewBrandedTemplateHandler(cfg config.Config, authn Authenticator, newClient ClientFactory, listings *cache.Listings) *BrandedTemplateHandler {
	return &BrandedTemplateHandler{
		Auth:           authn,
		NewClient:      newClient,
		Listings:       listings,
		FormBuffer:     cfg.Auth.FormBuffer,
		SubmitBuffer:   cfg.Auth.SubmitBuffer,
		EnvelopeStatus: cfg.ESign.EnvelopeStatus,
		SourceURL:      cfg.Examples.SourceURL,
		Documentation:  cfg.Examples.Documentation,
	}
}

// submission is the untrusted form posted by the user.
type submission struct {
	SignerEmail string
	SignerName  string
	CCEmail     string
	CCName      string
	BrandID     string
	TemplateID  string
}

func readSubmission(c *fiber.Ctx) submission {
	return submission{
		SignerEmail: c.FormValue("signerEmail"),
		SignerName:  c.FormValue("signerName"),
		CCEmail:     c.FormValue("ccEmail"),
		CCName:      c.FormValue("ccName"),
		BrandID:     c.FormValue("brandId"),
		TemplateID:  c.FormValue("templateId"),
	}
}

// escaped returns the submission with every field HTML-escaped for the
// outbound request. Validation runs on the raw values.
func (s submission) escaped() submission {
	return submission{
		SignerEmail: escape(s.SignerEmail),
		SignerName:  escape(s.SignerName),
		CCEmail:     escape(s.CCEmail),
		CCName:      escape(s.CCName),
		BrandID:     escape(s.BrandID),
		TemplateID:  escape(s.TemplateID),
	}
}

func (s submission) envelopeDefinition(status string) esign.EnvelopeDefinition {
	return esign.EnvelopeDefinition{
		TemplateID: s.TemplateID,
		BrandID:    s.BrandID,
		Status:     status,
		TemplateRoles: []esign.TemplateRole{
			{Name: s.SignerName, Email: s.SignerEmail, RoleName: esign.RoleSigner},
			{Name: s.CCName, Email: s.CCEmail, RoleName: esign.RoleCC},
		},
	}
}

// ShowForm renders the submission form populated with the account's
// templates and brands.
func (h *BrandedTemplateHandler) ShowForm(c *fiber.Ctx) error {
	sess, err := h.Auth.Load(c)
	if err != nil {
		return err
	}
	if !sess.CheckToken(h.FormBuffer) {
		if err := h.Auth.SetEg(c, BrandedTemplateExample); err != nil {
			return err
		}
		return c.Redirect(auth.MustAuthenticatePath)
	}

	ctx := c.UserContext()
	svc := h.NewClient(ctx, sess.BasePath, sess.AccessToken)

	templates, err := h.listTemplates(ctx, svc, sess.AccountID)
	if err != nil {
		return renderRemoteError(c, "list templates", err)
	}
	brands, err := h.listBrands(ctx, svc, sess.AccountID)
	if err != nil {
		return renderRemoteError(c, "list brands", err)
	}

	csrfToken, _ := c.Locals(CSRFContextKey).(string)
	return c.Render("pages/examples/eg026", fiber.Map{
		"eg":            BrandedTemplateExample,
		"csrfToken":     csrfToken,
		"title":         "Apply brand to template",
		"templates":     templates,
		"brands":        brands,
		"sourceFile":    brandedTemplateSource,
		"sourceUrl":     linkTo(h.SourceURL, brandedTemplateSource),
		"documentation": linkTo(h.Documentation, BrandedTemplateExample),
	})
}

// SubmitEnvelope creates and sends the envelope described by the posted form.
func (h *BrandedTemplateHandler) SubmitEnvelope(c *fiber.Ctx) error {
	sess, err := h.Auth.Load(c)
	if err != nil {
		return err
	}
	if !sess.CheckToken(h.SubmitBuffer) {
		if err := h.Auth.Flash(c, "info", "Sorry, you need to re-authenticate."); err != nil {
			return err
		}
		if err := h.Auth.SetEg(c, BrandedTemplateExample); err != nil {
			return err
		}
		return c.Redirect(auth.MustAuthenticatePath)
	}

	raw := readSubmission(c)
	if err := raw.envelopeDefinition(h.EnvelopeStatus).Validate(); err != nil {
		logging.Warn("Rejected envelope submission", "account_id", sess.AccountID, "error", err)
		return c.Status(fiber.StatusBadRequest).Render("pages/error", fiber.Map{
			"err":          fmt.Errorf("%w: %v", domain.ErrInvalidSubmission, err).Error(),
			"errorCode":    nil,
			"errorMessage": domain.ErrInvalidSubmission.Error(),
		})
	}

	def := raw.escaped().envelopeDefinition(h.EnvelopeStatus)
	ctx := c.UserContext()
	summary, err := h.NewClient(ctx, sess.BasePath, sess.AccessToken).CreateEnvelope(ctx, sess.AccountID, def)
	if err != nil {
		return renderRemoteError(c, "create envelope", err)
	}
	if summary == nil || summary.EnvelopeID == "" {
		return renderRemoteError(c, "create envelope", domain.ErrMissingEnvelopeID)
	}

	logging.Info("Envelope sent", "account_id", sess.AccountID, "envelope_id", summary.EnvelopeID,
		"template_id", def.TemplateID, "brand_id", def.BrandID, "request_id", c.GetRespHeader(fiber.HeaderXRequestID))
	return c.Render("pages/example_done", fiber.Map{
		"title":      "Envelope sent",
		"h1":         "Envelope sent",
		"envelopeId": summary.EnvelopeID,
		"message": views.SanitizeHTML(fmt.Sprintf(
			"The envelope has been created and sent!<br />Envelope ID: %s.", escape(summary.EnvelopeID))),
	})
}

func (h *BrandedTemplateHandler) listTemplates(ctx context.Context, svc SignatureService, accountID string) ([]esign.EnvelopeTemplate, error) {
	key := cache.Key("templates", accountID)
	var out []esign.EnvelopeTemplate
	if h.Listings.Get(ctx, key, &out) {
		return out, nil
	}
	res, err := svc.ListTemplates(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out = []esign.EnvelopeTemplate{}
	if res != nil && res.EnvelopeTemplates != nil {
		out = res.EnvelopeTemplates
	}
	h.Listings.Set(ctx, key, out)
	return out, nil
}

func (h *BrandedTemplateHandler) listBrands(ctx context.Context, svc SignatureService, accountID string) ([]esign.Brand, error) {
	key := cache.Key("brands", accountID)
	var out []esign.Brand
	if h.Listings.Get(ctx, key, &out) {
		return out, nil
	}
	res, err := svc.ListBrands(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out = []esign.Brand{}
	if res != nil && res.Brands != nil {
		out = res.Brands
	}
	h.Listings.Set(ctx, key, out)
	return out, nil
}

// renderRemoteError renders the error page for a failed remote call. The
// vendor code and message are passed through unchanged, or nil when absent.
func renderRemoteError(c *fiber.Ctx, op string, err error) error {
	d := esign.Details(err)
	status := fiber.StatusBadGateway
	var apiErr *esign.APIError
	if errors.As(err, &apiErr) {
		logging.Warn("Remote call rejected", "op", op, "status", apiErr.StatusCode, "error", err)
	} else {
		logging.Error("Remote call failed", "op", op, "error", err)
	}
	return c.Status(status).Render("pages/error", fiber.Map{
		"err":          err.Error(),
		"errorCode":    optional(d.Code),
		"errorMessage": optional(d.Message),
	})
}

// linkTo joins a configured base URL with a path, or returns "" when the
// base is not configured.
func linkTo(base, path string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + path
}

func optional(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
