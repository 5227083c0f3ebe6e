// AngelaMos | 2026
// client.go

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nfphealth/nfp-backend/internal/auth"
	"github.com/nfphealth/nfp-backend/internal/config"
	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/localstore"
)

// APIError is a non-2xx response that carried no field errors.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto core sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return core.ErrUnauthorized
	case http.StatusForbidden:
		return core.ErrForbidden
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusConflict:
		return core.ErrDuplicateKey
	case http.StatusNotImplemented, http.StatusServiceUnavailable:
		return core.ErrUnavailable
	}
	return nil
}

// Credentials are the persisted tokens of the signed-in user.
type Credentials struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	User         auth.UserResponse `json:"user"`
}

// Client talks to the NFP API. It keeps one credential set on disk and
// refreshes the access token once per request on a 401.
type Client struct {
	baseURL       string
	submitURL     string
	submitTimeout time.Duration
	credsPath     string
	http          *http.Client
	logger        *slog.Logger

	mu    sync.Mutex
	creds *Credentials
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSubmitURL overrides the enquiry endpoint with a full URL.
func WithSubmitURL(u string) Option {
	return func(c *Client) { c.submitURL = u }
}

// WithSubmitTimeout bounds each enquiry post so a slow endpoint falls back
// to local storage quickly.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Client) { c.submitTimeout = d }
}

func New(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:   strings.TrimRight(cfg.APIURL, "/"),
		credsPath: cfg.CredentialsPath,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		c.http = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	if c.baseURL == "" && c.submitURL == "" {
		return nil, fmt.Errorf("client: api url is required")
	}

	if err := c.loadCredentials(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Credentials returns a copy of the stored credentials, or nil.
func (c *Client) Credentials() *Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creds == nil {
		return nil
	}
	cp := *c.creds
	return &cp
}

func (c *Client) loadCredentials() error {
	if c.credsPath == "" {
		return nil
	}

	data, err := os.ReadFile(c.credsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		c.logger.Warn("ignoring unreadable credentials file",
			"path", c.credsPath,
			"error", err,
		)
		return nil
	}
	c.creds = &creds
	return nil
}

func (c *Client) setCredentials(creds *Credentials) error {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()

	if c.credsPath == "" {
		return nil
	}

	if creds == nil {
		if err := os.Remove(c.credsPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove credentials: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := localstore.WriteFileAtomic(c.credsPath, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return ""
	}
	return c.creds.AccessToken
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// do sends a JSON request. A 401 on an authenticated call triggers one
// refresh and retry.
func (c *Client) do(ctx context.Context, method, target string, in, out any, authed bool) error {
	err := c.send(ctx, method, target, in, out, authed)

	var apiErr *APIError
	if !authed || !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}

	if rerr := c.refresh(ctx); rerr != nil {
		c.logger.DebugContext(ctx, "token refresh failed", "error", rerr)
		return err
	}
	return c.send(ctx, method, target, in, out, authed)
}

func (c *Client) send(ctx context.Context, method, target string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if token := c.accessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var body struct {
		Error  string            `json:"error"`
		Code   string            `json:"code"`
		Errors map[string]string `json:"errors"`
	}
	_ = json.Unmarshal(data, &body)

	if len(body.Errors) > 0 {
		verr := core.NewValidationError()
		for field, msg := range body.Errors {
			verr.Add(field, msg)
		}
		return verr
	}

	msg := body.Error
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg, Code: body.Code}
}

func (c *Client) refresh(ctx context.Context) error {
	current := c.Credentials()
	if current == nil || current.RefreshToken == "" {
		return fmt.Errorf("no refresh token: %w", core.ErrUnauthorized)
	}

	var tokens auth.TokenResponse
	err := c.send(ctx, http.MethodPost, c.url("/v1/auth/refresh"),
		auth.RefreshRequest{RefreshToken: current.RefreshToken}, &tokens, false)
	if err != nil {
		return err
	}

	current.AccessToken = tokens.AccessToken
	current.RefreshToken = tokens.RefreshToken
	return c.setCredentials(current)
}

func query(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}
