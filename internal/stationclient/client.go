package stationclient

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

	"github.com/cenkalti/backoff"
	"github.com/weatherbird/provisioning/internal/provisioning"
	"github.com/weatherbird/provisioning/internal/server"
	"github.com/weatherbird/provisioning/internal/version"
)

const (
	// DefaultTimeout is the default HTTP request timeout. Network
	// submissions block while the station tries to join, so it is generous.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed reads
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default initial delay between retry attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second

	maxBodySize = 1 << 20

	userAgentComponent = "cfg"
)

// NetworkUpdate is a credential slot update. Nil fields are left unchanged.
type NetworkUpdate struct {
	Slot     *int    `json:"slot,omitempty"`
	SSID     *string `json:"ssid,omitempty"`
	Password *string `json:"password,omitempty"`
	Exit     bool    `json:"exit,omitempty"`
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

// Client represents an HTTP client for one station
type Client struct {
	// BaseURL is the base URL of the station (e.g., "http://192.168.1.50")
	BaseURL string

	// HTTPClient is the underlying HTTP client. Redirects are not followed.
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for failed reads
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration
}

// New creates a client for the station at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// NewForHost creates a client for a station at host:port.
func NewForHost(host string, port int) *Client {
	return New(fmt.Sprintf("http://%s:%d", host, port))
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Status retrieves the station's status document.
func (c *Client) Status(ctx context.Context) (*server.StatusDocument, error) {
	var doc server.StatusDocument
	err := c.retry(ctx, func() error {
		resp, body, err := c.do(ctx, http.MethodGet, "/status.json", nil, "")
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return newStatusError(resp.StatusCode, string(body))
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			return newParseError("failed to parse status document", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Ping reports which interface the station answered on: "AP" or "STA".
func (c *Client) Ping(ctx context.Context) (string, error) {
	var side string
	err := c.retry(ctx, func() error {
		resp, body, err := c.do(ctx, http.MethodGet, "/test", nil, "")
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return newStatusError(resp.StatusCode, string(body))
		}
		text := strings.TrimSpace(string(body))
		if !strings.HasPrefix(text, "Hello from ") {
			return newParseError("unexpected test response: "+text, nil)
		}
		side = strings.TrimPrefix(text, "Hello from ")
		return nil
	})
	return side, err
}

// SubmitNetwork sends a credential slot update and returns the outcome of
// the join attempt the station makes in response.
func (c *Client) SubmitNetwork(ctx context.Context, update NetworkUpdate) (provisioning.ConnectionStatus, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return "", fmt.Errorf("failed to encode network update: %w", err)
	}

	resp, body, err := c.do(ctx, http.MethodPost, "/confignetwork", payload, "application/json")
	if err != nil {
		return "", err
	}
	switch {
	case update.Exit && resp.StatusCode == http.StatusFound:
		return "", nil
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		status := provisioning.ConnectionStatus(resp.Header.Get(server.HeaderConnectionStatus))
		if status == "" {
			return "", newParseError("response is missing "+server.HeaderConnectionStatus, nil)
		}
		return status, nil
	default:
		return "", newStatusError(resp.StatusCode, string(body))
	}
}

// ExitConfiguration leaves configuration mode. The station must be
// associated with a network.
func (c *Client) ExitConfiguration(ctx context.Context) error {
	_, err := c.SubmitNetwork(ctx, NetworkUpdate{Exit: true})
	return err
}

// Claim registers the station with the cloud under owner. An empty owner
// cancels the sign-in.
func (c *Client) Claim(ctx context.Context, owner string) error {
	path := "/userloggedin.html?uid=" + url.QueryEscape(owner)
	return c.expect(ctx, http.MethodGet, path, http.StatusOK)
}

// Cancel abandons identity configuration.
func (c *Client) Cancel(ctx context.Context) error {
	return c.expect(ctx, http.MethodGet, "/cancel.html", http.StatusOK)
}

// Reconfigure asks a fully configured station to accept a new owner.
func (c *Client) Reconfigure(ctx context.Context) error {
	return c.expect(ctx, http.MethodPost, "/reconfigure", http.StatusSeeOther)
}

func (c *Client) expect(ctx context.Context, method, path string, want int) error {
	resp, body, err := c.do(ctx, method, path, nil, "")
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return newStatusError(resp.StatusCode, string(body))
	}
	return nil
}

// do performs a single request and reads the whole body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, contentType string) (*http.Response, []byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", version.UserAgent(userAgentComponent))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, classifyNetworkError(method+" "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, classifyNetworkError("failed to read response body", err)
	}
	return resp, body, nil
}

// retry runs op with exponential backoff while it fails with a retryable error.
func (c *Client) retry(ctx context.Context, op func() error) error {
	policy := retryPolicy(ctx, c.MaxRetries, c.RetryDelay, c.MaxRetryDelay)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// retryPolicy allows retries attempts after the first, backing off
// exponentially from delay up to maxDelay. WithMaxRetries treats zero as
// unlimited, so no retries is expressed with StopBackOff.
func retryPolicy(ctx context.Context, retries int, delay, maxDelay time.Duration) backoff.BackOffContext {
	if retries <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}
