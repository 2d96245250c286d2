package stationclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the station refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeHTTP indicates an unexpected HTTP status
	ErrTypeHTTP
	// ErrTypeConflict indicates the request is not valid in the current state (409)
	ErrTypeConflict
	// ErrTypeValidation indicates the station rejected the input (422)
	ErrTypeValidation
	// ErrTypeClaim indicates the cloud identity claim failed (502)
	ErrTypeClaim
	// ErrTypeParse indicates a malformed response
	ErrTypeParse
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeConflict:
		return "State Conflict"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeClaim:
		return "Claim Error"
	case ErrTypeParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// StationError represents an error that occurred talking to a station
type StationError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
	Retryable  bool
}

// Error implements the error interface
func (e *StationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *StationError) Unwrap() error {
	return e.Err
}

// classifyNetworkError analyzes a transport error.
func classifyNetworkError(message string, err error) *StationError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	e := &StationError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}

	var dnsErr *net.DNSError
	switch {
	case os.IsTimeout(err):
		e.Type = ErrTypeTimeout
	case errors.As(err, &dnsErr):
		e.Type = ErrTypeDNS
		e.Retryable = false
	case errors.Is(err, syscall.ECONNREFUSED):
		e.Type = ErrTypeConnectionRefused
	}
	return e
}

// newStatusError maps a response status to an error.
func newStatusError(statusCode int, body string) *StationError {
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	e := &StationError{Type: ErrTypeHTTP, Message: msg, StatusCode: statusCode}
	switch statusCode {
	case http.StatusConflict:
		e.Type = ErrTypeConflict
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		e.Type = ErrTypeValidation
	case http.StatusBadGateway:
		e.Type = ErrTypeClaim
		e.Message = "the weather service rejected the claim"
	default:
		e.Retryable = statusCode >= 500
	}
	return e
}

func newParseError(message string, err error) *StationError {
	return &StationError{Type: ErrTypeParse, Message: message, Err: err}
}

func isType(err error, types ...ErrorType) bool {
	var se *StationError
	if !errors.As(err, &se) {
		return false
	}
	for _, t := range types {
		if se.Type == t {
			return true
		}
	}
	return false
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS)
func IsNetworkError(err error) bool {
	return isType(err, ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS)
}

// IsConflictError checks if the station refused the request in its current state
func IsConflictError(err error) bool {
	return isType(err, ErrTypeConflict)
}

// IsValidationError checks if the station rejected the input
func IsValidationError(err error) bool {
	return isType(err, ErrTypeValidation)
}

// IsClaimError checks if the cloud claim failed
func IsClaimError(err error) bool {
	return isType(err, ErrTypeClaim)
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var se *StationError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var se *StationError
	if !errors.As(err, &se) {
		return "An unexpected error occurred. Please try again."
	}

	switch se.Type {
	case ErrTypeTimeout, ErrTypeNetwork:
		return strings.Join([]string{
			"The station did not respond.",
			"Troubleshooting:",
			"  • Check that the station is powered on",
			"  • Join the station's WEATHERBIRD<id> network, or the same network as the station",
			"  • Hold the provisioning button to force discovery mode",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The station refused the connection.",
			"Troubleshooting:",
			"  • The station may still be starting up; wait a few seconds",
			"  • Verify the port number (default is 80)",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the station hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of the ES32-<id>.local name",
			"  • Run 'weatherbird-cfg scan' to find stations on this network",
		}, "\n")

	case ErrTypeConflict:
		return strings.Join([]string{
			"The station is not in a state that accepts this request.",
			"Troubleshooting:",
			"  • Run 'weatherbird-cfg status' to see the current state",
			"  • Configure the network before claiming the station",
		}, "\n")

	case ErrTypeValidation:
		return "The station rejected the values. Check the error message for details."

	case ErrTypeClaim:
		return strings.Join([]string{
			"Registration with the weather service failed.",
			"Troubleshooting:",
			"  • Check that the station's network has internet access",
			"  • Retry the claim; the station stays in identity configuration",
		}, "\n")

	case ErrTypeParse:
		return "Failed to parse the station's response. The firmware may be incompatible."

	default:
		if se.StatusCode >= 500 {
			return fmt.Sprintf("The station returned an error (HTTP %d). Try again or restart the station.", se.StatusCode)
		}
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var se *StationError
	if !errors.As(err, &se) {
		return err.Error()
	}

	switch se.Type {
	case ErrTypeTimeout:
		return "Station not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Station refused connection"
	case ErrTypeDNS:
		return "Cannot resolve station hostname"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeClaim:
		return "Cloud registration failed"
	case ErrTypeHTTP:
		return fmt.Sprintf("Station error (HTTP %d)", se.StatusCode)
	default:
		return se.Message
	}
}
