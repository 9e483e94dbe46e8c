// Package remote talks to the hosted CityReport backend over HTTPS.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cityreport/models"
)

// Auth actions understood by POST /auth
const (
	ActionChangePassword    = "change_password"
	ActionChangeEmail       = "change_email"
	ActionResetUserPassword = "reset_user_password"
)

// ErrInsecureURL is returned by New for anything but an https base URL.
var ErrInsecureURL = errors.New("remote base URL must use https")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Body)
}

// AuthRequest is the body of POST /auth.
type AuthRequest struct {
	Action          string `json:"action"`
	UserID          string `json:"userId,omitempty"`
	TargetUserID    string `json:"targetUserId,omitempty"`
	AdminID         string `json:"adminId,omitempty"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
	NewEmail        string `json:"newEmail,omitempty"`
	Password        string `json:"password,omitempty"`
}

// AuthResponse is the body returned by POST /auth.
type AuthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Client is a small JSON-over-HTTPS client for the remote contract.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New validates baseURL and apiKey and returns a Client.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote base URL: %w", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return nil, ErrInsecureURL
	}
	if apiKey == "" {
		return nil, errors.New("remote API key is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PushReport uploads one report. Any 2xx status is success.
func (c *Client) PushReport(ctx context.Context, report models.Report) error {
	return c.post(ctx, "/reports", report, nil)
}

// Deliver forwards a security event to POST /security-audit. It satisfies audit.Sink.
func (c *Client) Deliver(ctx context.Context, event models.SecurityEvent) error {
	return c.post(ctx, "/security-audit", event, nil)
}

// Name identifies the client when used as an audit sink.
func (c *Client) Name() string {
	return "remote"
}

// Auth invokes the remote auth endpoint. A response with success=false is an error.
func (c *Client) Auth(ctx context.Context, req AuthRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, "/auth", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "remote rejected " + req.Action
		}
		return &resp, errors.New(msg)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
