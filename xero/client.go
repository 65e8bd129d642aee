// Package xero is a thin client for the Xero identity and accounting APIs:
// the OAuth 2.0 token endpoints, tenant discovery, and the three read
// endpoints the ETL pipeline consumes.
package xero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultIdentityURL = "https://identity.xero.com"
	defaultLoginURL    = "https://login.xero.com"
	defaultAPIURL      = "https://api.xero.com"
	defaultTimeout     = 30 * time.Second
)

var defaultScopes = []string{
	"offline_access",
	"accounting.transactions.read",
	"accounting.settings.read",
	"accounting.reports.read",
}

// Config holds the OAuth client credentials and endpoint bases. All fields
// are injected explicitly; the client never reads the environment.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	IdentityURL  string        // token endpoint base, defaults to identity.xero.com
	LoginURL     string        // authorize endpoint base, defaults to login.xero.com
	APIURL       string        // accounting API base, defaults to api.xero.com
	Scopes       []string      // defaults to offline_access + accounting read scopes
	Timeout      time.Duration // per-call timeout, defaults to 30s
}

// Client performs outbound Xero calls. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = defaultIdentityURL
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = defaultLoginURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaultScopes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// StatusError reports a non-2xx response from a Xero endpoint. The upstream
// status code is preserved so callers can surface it verbatim.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %d", e.Op, e.StatusCode)
}

// apiGet performs an authenticated, tenant-scoped GET against the accounting
// API and returns the raw response body.
func (c *Client) apiGet(ctx context.Context, path, rawQuery, accessToken, tenantID, op string) (json.RawMessage, error) {
	u := c.cfg.APIURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Xero-tenant-id", tenantID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	return body, nil
}

// postToken performs a client-authenticated call against the identity token
// endpoint for either grant type.
func (c *Client) postToken(ctx context.Context, form url.Values, op string) (*TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.IdentityURL+"/connect/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	var tokens TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return &tokens, nil
}
