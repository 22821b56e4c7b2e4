package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const maxResponseBytes = 4 << 20

// Client calls the signature service REST API on behalf of one user.
type Client struct {
	basePath string
	http     *http.Client
	timeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every call made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient returns a client for basePath that authenticates every request
// with accessToken as a bearer token. An *http.Client stored in ctx under
// oauth2.HTTPClient is used as the underlying transport.
func NewClient(ctx context.Context, basePath, accessToken string, opts ...Option) *Client {
	if ctx == nil {
		ctx = context.Background()
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	c := &Client{
		basePath: strings.TrimRight(basePath, "/"),
		http:     oauth2.NewClient(ctx, src),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTemplates returns the templates available to the account.
func (c *Client) ListTemplates(ctx context.Context, accountID string) (*EnvelopeTemplateResults, error) {
	var out EnvelopeTemplateResults
	if err := c.do(ctx, http.MethodGet, c.accountURL(accountID, "templates"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBrands returns the brands configured on the account.
func (c *Client) ListBrands(ctx context.Context, accountID string) (*BrandsResponse, error) {
	var out BrandsResponse
	if err := c.do(ctx, http.MethodGet, c.accountURL(accountID, "brands"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEnvelope creates (and, with status "sent", sends) an envelope.
func (c *Client) CreateEnvelope(ctx context.Context, accountID string, def EnvelopeDefinition) (*EnvelopeSummary, error) {
	var out EnvelopeSummary
	if err := c.do(ctx, http.MethodPost, c.accountURL(accountID, "envelopes"), def, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserInfo returns the authenticated user and their accounts. The client's
// base path must point at the OAuth server.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var out UserInfo
	if err := c.do(ctx, http.MethodGet, c.basePath+"/oauth/userinfo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) accountURL(accountID, resource string) string {
	return fmt.Sprintf("%s/v2.1/accounts/%s/%s", c.basePath, url.PathEscape(accountID), resource)
}

func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("esign: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("esign: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("esign: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("esign: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: raw}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("esign: decode response: %w", err)
	}
	return nil
}
