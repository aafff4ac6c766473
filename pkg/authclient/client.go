// Package authclient is a small HTTP client for services and tools
// that call the API with the OTP-issued token pair. It transparently
// refreshes an expired access token: a 401 triggers one refresh call
// and one retry of the original request, with concurrent refreshes
// collapsed into a single in-flight call.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrAuthExpired signals that the session is gone for good: the
// refresh token was rejected, or the refresh endpoint itself answered
// 401. Callers should drop their tokens and send the user back
// through login. It is distinct from transport errors and from
// ordinary non-2xx responses, which are returned as-is.
var ErrAuthExpired = errors.New("authclient: authentication expired")

const defaultRefreshPath = "/auth/refresh"

// Client wraps http.Client with automatic access-token refresh.
// Construct one per principal; the refresh de-duplication state is
// per-instance, so independent clients never serialize on each other.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	refreshPath string

	mu      sync.Mutex
	access  string
	refresh string

	// sf collapses concurrent refresh attempts into one call; every
	// waiter observes the same outcome.
	sf singleflight.Group
}

// New builds a Client against baseURL. The underlying http.Client
// carries a cookie jar, so browser-style cookie sessions work without
// ever calling SetTokens.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTP:        &http.Client{Jar: jar, Timeout: 30 * time.Second},
		refreshPath: defaultRefreshPath,
	}
}

// SetTokens installs a token pair obtained out of band (e.g. from a
// verify response body) for header-based use.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	c.access, c.refresh = access, refresh
	c.mu.Unlock()
}

// AccessToken returns the current access token, which changes after a
// successful refresh.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}

// Do sends the request, refreshing the access token and retrying
// exactly once on a 401. A 401 from the retried request is returned
// to the caller untouched; a 401 from the refresh endpoint itself
// yields ErrAuthExpired.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if strings.HasSuffix(req.URL.Path, c.refreshPath) {
		resp.Body.Close()
		return nil, ErrAuthExpired
	}

	// The retry needs a rewindable body.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	resp.Body.Close()

	if err := c.refreshAccess(req.Context()); err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	c.authorize(retry)

	// One retry only. Whatever comes back, comes back.
	return c.HTTP.Do(retry)
}

// Get is a convenience wrapper around Do.
func (c *Client) Get(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// PostJSON marshals v and posts it to path through Do.
func (c *Client) PostJSON(path string, v any) (*http.Response, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

func (c *Client) authorize(req *http.Request) {
	c.mu.Lock()
	access := c.access
	c.mu.Unlock()
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
}

// refreshAccess exchanges the refresh token for a new access token.
// Concurrent callers share one in-flight exchange; they all see the
// same new token or the same ErrAuthExpired.
func (c *Client) refreshAccess(ctx context.Context) error {
	ch := c.sf.DoChan("refresh", func() (interface{}, error) {
		return nil, c.doRefresh()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Client) doRefresh() error {
	c.mu.Lock()
	refresh := c.refresh
	c.mu.Unlock()

	var body *bytes.Reader
	if refresh != "" {
		payload, err := json.Marshal(map[string]string{"refreshToken": refresh})
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	} else {
		// Cookie-based session; the jar carries the refresh token.
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+c.refreshPath, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("authclient: refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrAuthExpired
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("authclient: refresh response: %w", err)
	}
	if out.AccessToken != "" {
		c.mu.Lock()
		c.access = out.AccessToken
		c.mu.Unlock()
	}
	return nil
}
