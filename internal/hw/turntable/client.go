package turntable

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cjeanneret/turntable/internal/debug"
)

// maxStatusBody bounds the /status payload read into memory.
const maxStatusBody = 64 << 10

// ClientOption configures Client.
type ClientOption func(*Client)

// Client is an HTTP client for the turntable controller.
type Client struct {
	baseURL string
	timeout time.Duration
	naming  FieldNaming
	http    *http.Client
}

// NewClient creates a client for the controller at baseURL
// (e.g. "http://192.168.1.110:8000").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 2 * time.Second,
		naming:  NamingAuto,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithFieldNaming sets the expected key naming of /status.
func WithFieldNaming(n FieldNaming) ClientOption {
	return func(c *Client) {
		c.naming = n
	}
}

// BaseURL returns the controller address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status fetches the current angle pair.
func (c *Client) Status(ctx context.Context) (Reading, error) {
	resp, err := c.get(ctx, "/status", nil)
	if err != nil {
		return Reading{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return Reading{}, fmt.Errorf("%w: read status: %v", ErrNetworkFailure, err)
	}
	return DecodeStatus(body, c.naming)
}

// Rotate asks the controller to turn axis by amount degrees in dir.
func (c *Client) Rotate(ctx context.Context, axis Axis, amount float64, dir Direction) error {
	return c.command(ctx, "/rotate", url.Values{
		"motor":     {string(axis)},
		"angle":     {formatDegrees(amount)},
		"direction": {string(dir)},
	})
}

// SetAngle asks the controller to move axis to the absolute target angle.
func (c *Client) SetAngle(ctx context.Context, axis Axis, target float64) error {
	return c.command(ctx, "/set_angle", url.Values{
		"motor":        {string(axis)},
		"target_angle": {formatDegrees(target)},
	})
}

func (c *Client) command(ctx context.Context, path string, q url.Values) error {
	resp, err := c.get(ctx, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// The body is not part of the contract; drain it so the connection is reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	debug.Trace("GET %s", u)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrNetworkFailure, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: unexpected status %d: %s",
			ErrNetworkFailure, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
