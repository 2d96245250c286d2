package stationclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/weatherbird/provisioning/internal/record"
	"github.com/weatherbird/provisioning/internal/server"
)

// VerificationOptions configures how a slot update is verified
type VerificationOptions struct {
	// MaxRetries is the maximum number of status reads after the first
	// Default: 3
	MaxRetries int

	// InitialDelay gives the station time to persist the record
	// Default: 500ms
	InitialDelay time.Duration

	// RetryDelay is the initial delay between reads, doubled per retry
	// Default: 1s
	RetryDelay time.Duration

	// MaxRetryDelay caps the delay between reads
	// Default: 5s
	MaxRetryDelay time.Duration
}

// DefaultVerificationOptions returns the default verification options
func DefaultVerificationOptions() *VerificationOptions {
	return &VerificationOptions{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 5 * time.Second,
	}
}

// VerificationResult contains the results of a slot verification
type VerificationResult struct {
	Success    bool
	Attempts   int
	Status     *server.StatusDocument
	Mismatches []string
	Error      error
}

// VerifyNetwork reads the status document until it reflects update or
// the retries run out. Passwords are never returned by the station, so
// only their presence is compared.
func (c *Client) VerifyNetwork(ctx context.Context, update NetworkUpdate, opts *VerificationOptions) *VerificationResult {
	if opts == nil {
		opts = DefaultVerificationOptions()
	}
	result := &VerificationResult{}

	select {
	case <-time.After(opts.InitialDelay):
	case <-ctx.Done():
		result.Error = ctx.Err()
		return result
	}

	policy := retryPolicy(ctx, opts.MaxRetries, opts.RetryDelay, opts.MaxRetryDelay)
	err := backoff.Retry(func() error {
		result.Attempts++
		doc, err := c.Status(ctx)
		if err != nil {
			return fmt.Errorf("attempt %d: failed to read status: %w", result.Attempts, err)
		}
		result.Status = doc
		result.Mismatches = slotMismatches(update, doc.Config.Slots)
		if len(result.Mismatches) > 0 {
			return fmt.Errorf("attempt %d: %s", result.Attempts, formatMismatches(result.Mismatches))
		}
		return nil
	}, policy)

	if err != nil {
		result.Error = fmt.Errorf("verification failed after %d attempts: %w", result.Attempts, err)
		return result
	}
	result.Success = true
	return result
}

// UpdateAndVerify submits update and verifies it was stored. The join
// outcome is returned even when verification fails.
func (c *Client) UpdateAndVerify(ctx context.Context, update NetworkUpdate, opts *VerificationOptions) (string, *VerificationResult) {
	status, err := c.SubmitNetwork(ctx, update)
	if err != nil {
		return "", &VerificationResult{Error: fmt.Errorf("update failed: %w", err)}
	}
	return string(status), c.VerifyNetwork(ctx, update, opts)
}

// slotMismatches compares an update with the reported slots.
func slotMismatches(update NetworkUpdate, slots []server.SlotDocument) []string {
	if update.Slot == nil || update.SSID == nil {
		return nil
	}
	i := *update.Slot
	if i < 0 || i >= len(slots) {
		return []string{fmt.Sprintf("slot %d: not reported (station has %d slots)", i, len(slots))}
	}

	var mismatches []string
	got := slots[i]
	want := storedSSID(*update.SSID)
	if got.SSID != want {
		mismatches = append(mismatches, fmt.Sprintf("slot %d SSID: expected %q, got %q", i, want, got.SSID))
	}
	if want != "" && update.Password != nil {
		if hasPassword := *update.Password != ""; got.HasPassword != hasPassword {
			mismatches = append(mismatches, fmt.Sprintf("slot %d password: expected set=%v, got set=%v", i, hasPassword, got.HasPassword))
		}
	}
	return mismatches
}

// storedSSID returns the name as the station stores it.
func storedSSID(ssid string) string {
	if ssid == record.NoConfig {
		return ""
	}
	if limit := record.SSIDFieldLen - 1; len(ssid) > limit {
		return ssid[:limit]
	}
	return ssid
}

// formatMismatches creates a human-readable summary of mismatches
func formatMismatches(mismatches []string) string {
	switch len(mismatches) {
	case 0:
		return "none"
	case 1:
		return mismatches[0]
	}
	return fmt.Sprintf("%d mismatches: %s", len(mismatches), strings.Join(mismatches, "; "))
}
