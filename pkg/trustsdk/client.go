package trustsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Default API surface layout. Overridable per client for deployments that
// mount the backend under a different prefix.
const (
	DefaultSessionCookie    = "hd_session"
	DefaultCSRFTokenPath    = "/csrf-token"
	DefaultPrivilegedPrefix = "/v1/admin"
	DefaultSensitivePrefix  = "/v1/admin/users"
)

// SDKClient is a client for the HostDeck dashboard backend. It owns the
// trust-layer state for one authenticated session: the per-path anti-forgery
// token cache and the access revocation latch.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// SessionToken authenticates every call; it is sent as the session
	// cookie. The backend derives per-path anti-forgery tokens from it.
	SessionToken  string
	SessionCookie string

	// UserID of the authenticated user, used by the earn flow to bind
	// prepare signatures.
	UserID string

	// SigningSecret is the client-held key for reward prepare signatures.
	// Deliberately distinct from anything derived from anti-forgery tokens.
	SigningSecret string

	// CSRFTokenPath is the endpoint returning {token} for a canonical path.
	CSRFTokenPath string

	// PrivilegedPrefix marks the API surface whose mutations require the
	// token/signature headers. SensitivePrefix marks the sub-surface whose
	// JSON bodies are additionally encrypted.
	PrivilegedPrefix string
	SensitivePrefix  string

	// Tokens and Revocations are constructed by NewSDKClient and shared by
	// everything built on this client.
	Tokens      *TokenStore
	Revocations *RevocationBus

	now func() time.Time

	policyMu        sync.Mutex
	policy          *Policy
	policyFetchedAt time.Time
}

// NewSDKClient creates a client for the backend at baseURL. The returned
// client is not yet authenticated; set SessionToken (and UserID) after login.
func NewSDKClient(baseURL string) *SDKClient {
	c := &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		SessionCookie:    DefaultSessionCookie,
		CSRFTokenPath:    DefaultCSRFTokenPath,
		PrivilegedPrefix: DefaultPrivilegedPrefix,
		SensitivePrefix:  DefaultSensitivePrefix,
		Revocations:      NewRevocationBus(),
		now:              time.Now,
	}
	c.Tokens = NewTokenStore(c.fetchToken)
	c.Tokens.onAuthFailure = c.Revocations.NotifyRevoked
	return c
}

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// newRequest creates an HTTP request with the session cookie attached.
func (c *SDKClient) newRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.SessionToken != "" {
		req.AddCookie(&http.Cookie{Name: c.SessionCookie, Value: c.SessionToken})
	}
	return req, nil
}

// fetchToken retrieves a fresh anti-forgery token for a canonical path. A
// 401/403 here is an authorization failure; the TokenStore translates it into
// eviction plus the revocation broadcast before surfacing the error.
func (c *SDKClient) fetchToken(ctx context.Context, canonicalPath string) (string, error) {
	path := c.CSRFTokenPath + "?path=" + url.QueryEscape(canonicalPath)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	// The token must be present and a string; anything else is a protocol
	// error and must not poison the cache.
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedTokenResponse, err)
	}
	raw, ok := payload["token"]
	if !ok {
		return "", ErrMalformedTokenResponse
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil || token == "" {
		return "", ErrMalformedTokenResponse
	}
	return token, nil
}
