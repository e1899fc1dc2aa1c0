// Package gatekeeper is a client for the gatekeeper sign-in service.
package gatekeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

// Config holds the configuration for a gatekeeper client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// User is the signed-in user as reported by gatekeeper.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Domain  string `json:"domain"`
}

// Session is a session token and the user it belongs to.
type Session struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	User      User   `json:"user"`
	// State is the value passed to LoginURLWithState, returned after sign-in.
	State string `json:"state,omitempty"`
}

// Me is the response of CurrentUser.
type Me struct {
	User User
	// ExpiresIn is set when the server reports the token is close to expiry.
	ExpiresIn    time.Duration
	ExpiringSoon bool
}

type meResponse struct {
	User User `json:"user"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	AllowedDomain string `json:"allowedDomain"`
	UserDomain    string `json:"userDomain"`
}

// Client is the gatekeeper SDK client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a new gatekeeper client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// LoginURL is where a browser should be sent to start signing in.
func (c *Client) LoginURL() string {
	return c.baseURL + "/auth/google"
}

// LoginURLWithState is LoginURL with an opaque value, such as the page to
// return to, that comes back in Session.State.
func (c *Client) LoginURLWithState(state string) string {
	return c.baseURL + "/auth/google?" + url.Values{"state": {state}}.Encode()
}

// Refresh exchanges a still-valid session token for a new one.
func (c *Client) Refresh(ctx context.Context, token string) (*Session, error) {
	var session Session
	if _, err := c.do(ctx, http.MethodPost, "/auth/refresh", token, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CurrentUser returns the user a session token belongs to.
func (c *Client) CurrentUser(ctx context.Context, token string) (*Me, error) {
	var data meResponse
	header, err := c.do(ctx, http.MethodGet, "/auth/me", token, &data)
	if err != nil {
		return nil, err
	}
	me := &Me{User: data.User, ExpiringSoon: header.Get("X-Token-Expiring-Soon") == "true"}
	if secs, err := strconv.ParseInt(header.Get("X-Token-Expires-In"), 10, 64); err == nil {
		me.ExpiresIn = time.Duration(secs) * time.Second
	}
	return me, nil
}

// Logout tells gatekeeper the client is discarding its token.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil)
	return err
}

// HealthCheck returns true if the gatekeeper server is healthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var data healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return false
	}
	return data.Status == "healthy"
}

func (c *Client) do(ctx context.Context, method, path, token string, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to create request: %s", err.Error())}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("network error: %s", err.Error())}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, &Error{Message: fmt.Sprintf("failed to decode response: %s", err.Error())}
		}
	}
	return resp.Header, nil
}

func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp errorResponse
	e := &Error{Message: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error != "" {
			e.Message = errResp.Error
		}
		e.Code = errResp.Code
		e.AllowedDomain = errResp.AllowedDomain
		e.UserDomain = errResp.UserDomain
	}
	return e
}
