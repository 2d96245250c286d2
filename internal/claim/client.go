// Package claim registers a station with the cloud service on behalf of its owner.
//
// A claim is a single JSON POST. Success is exactly HTTP 200; every other
// outcome is reported as an *Error and is never retried here.
package claim

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/weatherbird/provisioning/internal/logging"
	"github.com/weatherbird/provisioning/internal/version"
	"go.uber.org/zap"
)

const (
	// DefaultURL is the production claim endpoint
	DefaultURL = "https://weather.sourceauditor.com/api/claimstation"

	// DefaultTimeout bounds connecting to the endpoint
	DefaultTimeout = 15 * time.Second
)

// Request is the body of a claim call.
type Request struct {
	DeviceEmail    string `json:"deviceEmail"`
	DevicePassword string `json:"devicePassword"`
	StationID      string `json:"stationId"`
	OwnerID        string `json:"ownerId"`
}

// Claimer is implemented by Client; the provisioning manager depends on this.
type Claimer interface {
	Claim(ctx context.Context, req Request) error
}

// Client posts claim requests to a fixed endpoint.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient creates a client whose connect timeout is timeout. The whole
// request is bounded by twice that.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Transport: transport, Timeout: 2 * timeout},
	}
}

// Claim performs one claim call.
func (c *Client) Claim(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return &Error{Type: ErrTypeRequest, Message: "failed to encode claim", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return &Error{Type: ErrTypeRequest, Message: "failed to create claim request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent("prov"))

	logging.Info("Claiming station",
		zap.String("url", c.URL),
		zap.String("station_id", req.StationID),
		zap.String("owner_id", req.OwnerID),
		zap.String("password", logging.Redact(req.DevicePassword)),
	)

	start := time.Now()
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		claimErr := classify("claim request failed", err)
		logging.Warn("Claim call failed", zap.Stringer("type", claimErr.Type), zap.Error(err))
		return claimErr
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	logging.Debug("Claim response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return newHTTPError(resp.StatusCode)
	}
	return nil
}
